package municipality

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/statfin"
)

// EntitiesFromMetadata lists the values of the variable holding entities,
// labelled with their value texts.
func EntitiesFromMetadata(meta *statfin.TableMetadata, variableCode string) ([]common.Entity, error) {
	v := meta.Variable(variableCode)
	if v == nil {
		return nil, fmt.Errorf("%w: table has no variable %q", common.ErrNoData, variableCode)
	}
	if len(v.Values) != len(v.ValueTexts) {
		return nil, fmt.Errorf("%w: variable %q has %d values and %d texts", common.ErrFetchFailure, variableCode, len(v.Values), len(v.ValueTexts))
	}
	res := make([]common.Entity, len(v.Values))
	for i, code := range v.Values {
		name := v.ValueTexts[i]
		if name == common.WholeCountryLabel {
			name = common.WholeCountry.Name
		}
		res[i] = common.Entity{Code: code, Name: name}
	}
	return res, nil
}

type Feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// EntityFromFeature reads the entity a boundary belongs to. Municipality
// numbers are three digits; the statistics tables prefix them with "KU".
func EntityFromFeature(f Feature) (common.Entity, error) {
	var number string
	switch k := f.Properties["kunta"].(type) {
	case string:
		number = k
	case float64:
		number = fmt.Sprintf("%03d", int(k))
	default:
		return common.Entity{}, fmt.Errorf("feature without kunta property")
	}
	if _, err := strconv.Atoi(number); err != nil || number == "" {
		return common.Entity{}, fmt.Errorf("feature has malformed kunta %q", number)
	}
	name, _ := f.Properties["name"].(string)
	if name == "" {
		name, _ = f.Properties["nimi"].(string)
	}
	return common.Entity{Code: "KU" + number, Name: name}, nil
}

// ParseBoundaries checks raw is a FeatureCollection whose features all name
// their municipality, and returns those municipalities.
func ParseBoundaries(raw []byte) ([]common.Entity, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("%w: decoding boundaries: %v", common.ErrFetchFailure, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: boundaries are a %q, not a FeatureCollection", common.ErrFetchFailure, fc.Type)
	}
	res := make([]common.Entity, 0, len(fc.Features))
	for i, f := range fc.Features {
		e, err := EntityFromFeature(f)
		if err != nil {
			return nil, fmt.Errorf("%w: feature %d: %v", common.ErrFetchFailure, i, err)
		}
		res = append(res, e)
	}
	return res, nil
}
