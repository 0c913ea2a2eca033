package series

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/decode"
)

// LabeledSeries is what the chart is fed with.
type LabeledSeries struct {
	Title  string           `json:"title"`
	Name   string           `json:"name"`
	Metric common.Metric    `json:"metric"`
	Mode   common.ChartMode `json:"mode"`
	Color  string           `json:"color"`
	Labels []string         `json:"labels"`
	Values []decode.Value   `json:"values"`
}

// Compose labels a decoded series for the chart. Labels are the periods of
// the query the series was decoded from.
func Compose(state ChartState, s *decode.Series) (*LabeledSeries, error) {
	if s == nil || len(s.Values) == 0 {
		return nil, fmt.Errorf("%w: nothing to chart for %s", common.ErrNoData, state.Entity.Code)
	}
	if s.Metric != state.Metric {
		return nil, fmt.Errorf("series holds %s, chart shows %s", s.Metric, state.Metric)
	}
	if len(s.Periods) != len(s.Values) {
		return nil, fmt.Errorf("%w: %d labels for %d values", common.ErrNoData, len(s.Periods), len(s.Values))
	}
	return &LabeledSeries{
		Title:  fmt.Sprintf("%s statistics chart", state.Entity.Name),
		Name:   state.Entity.Name,
		Metric: state.Metric,
		Mode:   state.Mode,
		Color:  common.MetricStyles[state.Metric].Color,
		Labels: slices.Clone(s.Periods),
		Values: slices.Clone(s.Values),
	}, nil
}

// WithMode re-renders an already composed series in another mode. Values
// are left alone.
func (ls *LabeledSeries) WithMode(mode common.ChartMode) *LabeledSeries {
	cp := *ls
	cp.Mode = mode
	return &cp
}

// Summary is what the map popup shows.
type Summary struct {
	Code                        string  `json:"code"`
	Name                        string  `json:"name"`
	LatestPopulation            float64 `json:"latest_population"`
	LatestCrimeCount            float64 `json:"latest_crime_count"`
	LatestEmploymentRatePercent string  `json:"latest_employment_rate_percent"`
}

const rateUndefined = "n/a"

// Summarize builds the popup record. All three inputs must decode; only an
// undefined latest employment rate is tolerated and shown as "n/a".
func Summarize(e common.Entity, population *decode.Series, latestCrime float64, employment *decode.Series) (*Summary, error) {
	pop, err := population.Latest()
	if err != nil {
		return nil, fmt.Errorf("latest population of %s: %w", e.Code, err)
	}
	sum := &Summary{
		Code:             e.Code,
		Name:             e.Name,
		LatestPopulation: pop,
		LatestCrimeCount: latestCrime,
	}
	rate, err := employment.Latest()
	switch {
	case err == nil:
		sum.LatestEmploymentRatePercent = common.FormatPercent(rate)
	case errors.Is(err, common.ErrDivisionByZero):
		sum.LatestEmploymentRatePercent = rateUndefined
	default:
		return nil, fmt.Errorf("latest employment rate of %s: %w", e.Code, err)
	}
	return sum, nil
}
