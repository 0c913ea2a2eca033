package decode

import (
	"fmt"
	"slices"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/statfin"
)

type dimension struct {
	code   string
	role   common.Role
	values []string
	stride int
}

// Layout describes how a flat result is keyed. It is derived from the query
// that produced the result: the API sends one value per combination of the
// selected values, first dimension slowest, with no labels of its own.
type Layout struct {
	metric common.Metric
	dims   []dimension
	size   int
}

func NewLayout(q *statfin.Query) (*Layout, error) {
	if q == nil || len(q.Query) == 0 {
		return nil, fmt.Errorf("cannot derive layout from an empty query")
	}
	l := &Layout{metric: q.Metric, dims: make([]dimension, len(q.Query))}
	for i, d := range q.Query {
		l.dims[i] = dimension{code: d.Code, role: d.Role, values: d.Selection.Values}
	}

	// row-major: last dimension varies fastest
	stride := 1
	for i := len(l.dims) - 1; i >= 0; i-- {
		l.dims[i].stride = stride
		stride *= len(l.dims[i].values)
	}
	l.size = stride
	if _, err := l.dim(common.RolePeriod); err != nil {
		return nil, err
	}
	return l, nil
}

// Size is the number of values a complete result holds.
func (l *Layout) Size() int { return l.size }

func (l *Layout) dim(role common.Role) (*dimension, error) {
	for i := range l.dims {
		if l.dims[i].role == role {
			return &l.dims[i], nil
		}
	}
	return nil, fmt.Errorf("%s query has no %s dimension", l.metric, role)
}

// Cardinality returns the number of selected values of the role's dimension.
func (l *Layout) Cardinality(role common.Role) int {
	d, err := l.dim(role)
	if err != nil {
		return 0
	}
	return len(d.values)
}

// Periods returns the period labels in result order.
func (l *Layout) Periods() []string {
	d, _ := l.dim(common.RolePeriod)
	return slices.Clone(d.values)
}

// EntityIndex returns the position of code in the entity dimension of the
// query that was sent.
func (l *Layout) EntityIndex(code string) (int, error) {
	d, err := l.dim(common.RoleEntity)
	if err != nil {
		return -1, err
	}
	idx := slices.Index(d.values, code)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %q is not part of the %s query", common.ErrUnknownEntity, code, l.metric)
	}
	return idx, nil
}

// Check verifies flat is a complete result for this layout.
func (l *Layout) Check(flat []float64) error {
	if len(flat) == 0 {
		return fmt.Errorf("%w: empty %s result", common.ErrNoData, l.metric)
	}
	if l.size == 0 || len(flat) < l.size {
		return fmt.Errorf("%w: %s result has %d values, query selects %d", common.ErrNoData, l.metric, len(flat), l.size)
	}
	return nil
}

// PeriodOffsets returns the flat indexes of every period for one cell of the
// remaining dimensions. fixed gives the index to hold for each non-period
// role; a dimension that is not fixed must have exactly one value.
func (l *Layout) PeriodOffsets(fixed map[common.Role]int) ([]int, error) {
	base := 0
	var period *dimension
	for i := range l.dims {
		d := &l.dims[i]
		if d.role == common.RolePeriod {
			period = d
			continue
		}
		idx, ok := fixed[d.role]
		if !ok {
			if len(d.values) != 1 {
				return nil, fmt.Errorf("%s dimension %q selects %d values, cannot pick one", l.metric, d.code, len(d.values))
			}
			idx = 0
		}
		if idx < 0 || idx >= len(d.values) {
			return nil, fmt.Errorf("index %d out of range for %s dimension %q", idx, l.metric, d.code)
		}
		base += idx * d.stride
	}

	offsets := make([]int, len(period.values))
	for p := range offsets {
		offsets[p] = base + p*period.stride
	}
	return offsets, nil
}

// Extract reads the values at offsets.
func (l *Layout) Extract(flat []float64, offsets []int) ([]float64, error) {
	if err := l.Check(flat); err != nil {
		return nil, err
	}
	res := make([]float64, len(offsets))
	for i, o := range offsets {
		res[i] = flat[o]
	}
	return res, nil
}
