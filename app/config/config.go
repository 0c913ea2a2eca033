package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"

	"github.com/mahesh-hegde/tilasto/app/common"
)

type DimensionDefn struct {
	// PxWeb variable code, eg: "Alue" or "Vuosi"
	Code string      `json:"code"`
	Role common.Role `json:"role"`
	// PxWeb selection filter, "item" unless stated otherwise
	Filter string   `json:"filter,omitempty"`
	Values []string `json:"values,omitempty"`
}

// QueryDefn describes the static part of a statistics query. The entity
// dimension is filled in per request; every other dimension is sent as is.
type QueryDefn struct {
	URL        string          `json:"url"`
	Dimensions []DimensionDefn `json:"dimensions"`
	Format     string          `json:"format,omitempty"`
}

type TilastoConfig struct {
	InstanceName string   `json:"instance_name"`
	Hostnames    []string `json:"hostnames"`
	DataDir      string   `json:"-"`

	Population QueryDefn `json:"population"`
	Crime      QueryDefn `json:"crime"`
	Employment QueryDefn `json:"employment"`
	GeoJSONURL string    `json:"geojson_url"`

	// Markdown file shown in the info section of the index page, relative to DataDir.
	InfoFile string `json:"info_file,omitempty"`

	// "sqlite" or "bleve"
	SearchBackend string `json:"search_backend"`

	FetchTimeoutSeconds int  `json:"fetch_timeout_seconds"`
	CacheTTLSeconds     int  `json:"cache_ttl_seconds"`
	SessionTTLMinutes   int  `json:"session_ttl_minutes"`
	TimeoutSeconds      int  `json:"timeout_seconds"`
	LogLatency          bool `json:"log_latency"`
}

type ServerRuntimeConfig struct {
	Addr               string
	Port               int
	CertDir            string
	AcmeEnabled        bool
	BehindLoadBalancer bool
	RateLimit          int
	GzipLevel          int
}

func (c *TilastoConfig) QueryDefnFor(m common.Metric) *QueryDefn {
	switch m {
	case common.MetricPopulation:
		return &c.Population
	case common.MetricCrime:
		return &c.Crime
	case common.MetricEmployment:
		return &c.Employment
	}
	return nil
}

func yearRange(from, to int) []string {
	years := make([]string, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, strconv.Itoa(y))
	}
	return years
}

const statfinBase = "https://statfin.stat.fi/PxWeb/api/v1/en/StatFin"

func Default() TilastoConfig {
	return TilastoConfig{
		InstanceName: "tilasto",
		Hostnames:    []string{"localhost"},
		Population: QueryDefn{
			URL: statfinBase + "/vaerak/statfin_vaerak_pxt_11ra.px",
			Dimensions: []DimensionDefn{
				{Code: "Vuosi", Role: common.RolePeriod, Values: yearRange(1990, 2023)},
				{Code: "Alue", Role: common.RoleEntity},
			},
		},
		Crime: QueryDefn{
			URL: statfinBase + "/rpk/statfin_rpk_pxt_13it.px",
			Dimensions: []DimensionDefn{
				{Code: "Vuosi", Role: common.RolePeriod, Values: yearRange(2001, 2023)},
				{Code: "Alue", Role: common.RoleEntity},
			},
		},
		Employment: QueryDefn{
			URL: statfinBase + "/tyokay/statfin_tyokay_pxt_115b.px",
			Dimensions: []DimensionDefn{
				{Code: "Alue", Role: common.RoleEntity},
				// 11 = employed, 12 = unemployed
				{Code: "Pääasiallinen toiminta", Role: common.RoleCategory, Values: []string{"11", "12"}},
				{Code: "Sukupuoli", Role: common.RoleOther, Values: []string{"SSS"}},
				{Code: "Vuosi", Role: common.RolePeriod, Values: yearRange(1987, 2022)},
			},
		},
		GeoJSONURL: "https://geo.stat.fi/geoserver/wfs?service=WFS&version=2.0.0&request=GetFeature" +
			"&typeName=tilastointialueet:kunta4500k&outputFormat=json&srsName=EPSG:4326",
		SearchBackend:       "sqlite",
		FetchTimeoutSeconds: 20,
		CacheTTLSeconds:     600,
		SessionTTLMinutes:   30,
		TimeoutSeconds:      30,
	}
}

// Load reads config.json from dataDir on top of Default(). A missing file
// is not an error.
func Load(dataDir string) (*TilastoConfig, error) {
	conf := Default()
	confFile, err := os.Open(path.Join(dataDir, "config.json"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("error while opening config.json: %w", err)
	default:
		defer confFile.Close()
		if err := json.NewDecoder(confFile).Decode(&conf); err != nil {
			return nil, fmt.Errorf("error while reading config.json: %w", err)
		}
	}
	conf.DataDir = dataDir
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *TilastoConfig) Validate() error {
	if len(c.Hostnames) == 0 {
		return errors.New("at least one hostname is required")
	}
	if c.SearchBackend != "sqlite" && c.SearchBackend != "bleve" {
		return fmt.Errorf("search_backend must be sqlite or bleve, got %q", c.SearchBackend)
	}
	if c.FetchTimeoutSeconds <= 0 {
		return errors.New("fetch_timeout_seconds must be > 0")
	}
	if c.CacheTTLSeconds < 0 || c.SessionTTLMinutes <= 0 {
		return errors.New("cache_ttl_seconds must be >= 0 and session_ttl_minutes > 0")
	}
	for _, m := range []common.Metric{common.MetricPopulation, common.MetricCrime, common.MetricEmployment} {
		if err := c.QueryDefnFor(m).validate(m); err != nil {
			return fmt.Errorf("%s query: %w", m, err)
		}
	}
	return nil
}

func (q *QueryDefn) validate(m common.Metric) error {
	if q.URL == "" {
		return errors.New("url is required")
	}
	counts := map[common.Role]int{}
	for _, d := range q.Dimensions {
		if d.Code == "" {
			return errors.New("dimension without code")
		}
		counts[d.Role]++
		seen := make(map[string]struct{}, len(d.Values))
		for _, v := range d.Values {
			if _, ok := seen[v]; ok {
				return fmt.Errorf("dimension %q selects %q twice", d.Code, v)
			}
			seen[v] = struct{}{}
		}
		switch d.Role {
		case common.RoleEntity:
		case common.RolePeriod, common.RoleOther:
			if len(d.Values) == 0 {
				return fmt.Errorf("dimension %q has no values", d.Code)
			}
		case common.RoleCategory:
			if m == common.MetricEmployment && len(d.Values) != 2 {
				return fmt.Errorf("category dimension %q must hold employed and unemployed, got %d values", d.Code, len(d.Values))
			}
		default:
			return fmt.Errorf("dimension %q has unknown role %q", d.Code, d.Role)
		}
	}
	if counts[common.RoleEntity] != 1 || counts[common.RolePeriod] != 1 {
		return errors.New("exactly one entity and one period dimension are required")
	}
	if m == common.MetricEmployment && counts[common.RoleCategory] != 1 {
		return errors.New("exactly one category dimension is required")
	}
	return nil
}
