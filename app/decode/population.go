package decode

import (
	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/statfin"
)

// Population decodes a population result. The query selects a single entity,
// so the flat result already is the series.
func Population(res *statfin.Result, code string) (*Series, error) {
	l, err := NewLayout(res.Query)
	if err != nil {
		return nil, err
	}
	entityIdx, err := l.EntityIndex(code)
	if err != nil {
		return nil, err
	}
	offsets, err := l.PeriodOffsets(map[common.Role]int{common.RoleEntity: entityIdx})
	if err != nil {
		return nil, err
	}
	vals, err := l.Extract(res.Values, offsets)
	if err != nil {
		return nil, err
	}
	return &Series{
		Metric:  common.MetricPopulation,
		Entity:  code,
		Periods: l.Periods(),
		Values:  numbers(vals),
	}, nil
}
