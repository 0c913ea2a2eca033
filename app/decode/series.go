package decode

import (
	"fmt"
	"strconv"

	"github.com/mahesh-hegde/tilasto/app/common"
)

// Value is a decoded number that may be absent, eg: a rate whose
// denominator was zero. Absent values encode as JSON null.
type Value struct {
	V     float64
	Valid bool
}

func Num(v float64) Value { return Value{V: v, Valid: true} }

var Absent = Value{}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v.V, 'f', -1, 64)), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Absent
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*v = Num(f)
	return nil
}

// Series is one metric of one entity over the periods of the query.
type Series struct {
	Metric  common.Metric `json:"metric"`
	Entity  string        `json:"entity"`
	Periods []string      `json:"periods"`
	Values  []Value       `json:"values"`
}

// Latest returns the value of the final period. An absent final value is
// reported as ErrDivisionByZero, the only way a decoded value goes missing.
func (s *Series) Latest() (float64, error) {
	if len(s.Values) == 0 {
		return 0, fmt.Errorf("%w: no %s values for %s", common.ErrNoData, s.Metric, s.Entity)
	}
	last := s.Values[len(s.Values)-1]
	if !last.Valid {
		return 0, fmt.Errorf("%w: %s of %s in %s", common.ErrDivisionByZero, s.Metric, s.Entity, s.Periods[len(s.Periods)-1])
	}
	return last.V, nil
}

func numbers(vals []float64) []Value {
	res := make([]Value, len(vals))
	for i, v := range vals {
		res[i] = Num(v)
	}
	return res
}
