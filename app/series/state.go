package series

import (
	"github.com/mahesh-hegde/tilasto/app/common"
)

// ChartState is what the chart currently shows. Transitions return a new
// state instead of mutating the receiver.
type ChartState struct {
	Metric common.Metric    `json:"metric"`
	Mode   common.ChartMode `json:"mode"`
	Entity common.Entity    `json:"entity"`
}

func DefaultState() ChartState {
	return ChartState{Metric: common.MetricPopulation, Mode: common.ModeLine, Entity: common.WholeCountry}
}

// Refetch says what a transition requires before the chart can be redrawn.
type Refetch int

const (
	// re-render the last composed series
	RefetchNone Refetch = iota
	// fetch and compose the chart metric for the current entity
	RefetchMetric
	// fetch the chart series and the popup summary for the new entity
	RefetchAll
)

func (s ChartState) SelectMetric(m common.Metric) (ChartState, Refetch) {
	s.Metric = m
	return s, RefetchMetric
}

func (s ChartState) ToggleMode() (ChartState, Refetch) {
	if s.Mode == common.ModeBar {
		s.Mode = common.ModeLine
	} else {
		s.Mode = common.ModeBar
	}
	return s, RefetchNone
}

// SelectEntity switches to e and goes back to the population view.
func (s ChartState) SelectEntity(e common.Entity) (ChartState, Refetch) {
	s.Entity = e
	s.Metric = common.MetricPopulation
	return s, RefetchAll
}
