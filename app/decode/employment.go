package decode

import (
	"fmt"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/statfin"
)

const (
	categoryEmployed   = 0
	categoryUnemployed = 1
)

// Employment decodes an employment result into rates per period. For a
// single entity the first half of the flat result holds the employed counts
// and the second half the unemployed ones.
//
// rate = employed / (employed + unemployed) * 100, rounded half away from
// zero to 2 decimals. A period whose counts sum to zero is left absent; the
// other periods are unaffected.
func Employment(res *statfin.Result, code string) (*Series, error) {
	l, err := NewLayout(res.Query)
	if err != nil {
		return nil, err
	}
	if n := l.Cardinality(common.RoleCategory); n != 2 {
		return nil, fmt.Errorf("employment query must select 2 categories, got %d", n)
	}
	entityIdx, err := l.EntityIndex(code)
	if err != nil {
		return nil, err
	}

	read := func(category int) ([]float64, error) {
		offsets, err := l.PeriodOffsets(map[common.Role]int{
			common.RoleEntity:   entityIdx,
			common.RoleCategory: category,
		})
		if err != nil {
			return nil, err
		}
		return l.Extract(res.Values, offsets)
	}
	employed, err := read(categoryEmployed)
	if err != nil {
		return nil, err
	}
	unemployed, err := read(categoryUnemployed)
	if err != nil {
		return nil, err
	}

	rates := make([]Value, len(employed))
	for i := range employed {
		rates[i] = rate(employed[i], unemployed[i])
	}
	return &Series{
		Metric:  common.MetricEmployment,
		Entity:  code,
		Periods: l.Periods(),
		Values:  rates,
	}, nil
}

func rate(employed, unemployed float64) Value {
	total := employed + unemployed
	if total == 0 {
		return Absent
	}
	return Num(common.Round2(employed / total * 100))
}
