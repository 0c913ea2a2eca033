package decode

import (
	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/statfin"
)

// CrimeTable is the crime result for all entities, periods outer and
// entities inner. It is built once and only read afterwards.
type CrimeTable struct {
	layout *Layout
	flat   []float64
}

func NewCrimeTable(res *statfin.Result) (*CrimeTable, error) {
	l, err := NewLayout(res.Query)
	if err != nil {
		return nil, err
	}
	if err := l.Check(res.Values); err != nil {
		return nil, err
	}
	return &CrimeTable{layout: l, flat: res.Values}, nil
}

func (t *CrimeTable) Layout() *Layout { return t.layout }

func (t *CrimeTable) offsets(code string) ([]int, error) {
	entityIdx, err := t.layout.EntityIndex(code)
	if err != nil {
		return nil, err
	}
	return t.layout.PeriodOffsets(map[common.Role]int{common.RoleEntity: entityIdx})
}

// Latest returns the value of the final period for code; with periods outer
// this is flat[(periodCount-1)*entityCount + entityIndex].
func (t *CrimeTable) Latest(code string) (float64, error) {
	offsets, err := t.offsets(code)
	if err != nil {
		return 0, err
	}
	return t.flat[offsets[len(offsets)-1]], nil
}

// Series returns every period for code, the values whose flat index i
// satisfies i mod entityCount == entityIndex.
func (t *CrimeTable) Series(code string) (*Series, error) {
	offsets, err := t.offsets(code)
	if err != nil {
		return nil, err
	}
	vals, err := t.layout.Extract(t.flat, offsets)
	if err != nil {
		return nil, err
	}
	return &Series{
		Metric:  common.MetricCrime,
		Entity:  code,
		Periods: t.layout.Periods(),
		Values:  numbers(vals),
	}, nil
}
