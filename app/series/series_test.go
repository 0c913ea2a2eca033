package series

import (
	"errors"
	"sync"
	"testing"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var helsinki = common.Entity{Code: "KU091", Name: "Helsinki"}

func populationSeries() *decode.Series {
	return &decode.Series{
		Metric:  common.MetricPopulation,
		Entity:  "KU091",
		Periods: []string{"2022", "2023"},
		Values:  []decode.Value{decode.Num(658457), decode.Num(664028)},
	}
}

func TestTransitions(t *testing.T) {
	s := DefaultState()
	assert.Equal(t, common.MetricPopulation, s.Metric)
	assert.Equal(t, common.ModeLine, s.Mode)
	assert.Equal(t, common.WholeCountry, s.Entity)

	s, r := s.SelectMetric(common.MetricCrime)
	assert.Equal(t, RefetchMetric, r)
	assert.Equal(t, common.MetricCrime, s.Metric)

	s, r = s.ToggleMode()
	assert.Equal(t, RefetchNone, r)
	assert.Equal(t, common.ModeBar, s.Mode)
	assert.Equal(t, common.MetricCrime, s.Metric)

	s, r = s.SelectEntity(helsinki)
	assert.Equal(t, RefetchAll, r)
	assert.Equal(t, helsinki, s.Entity)
	assert.Equal(t, common.MetricPopulation, s.Metric)
	assert.Equal(t, common.ModeBar, s.Mode)

	s, _ = s.ToggleMode()
	assert.Equal(t, common.ModeLine, s.Mode)
}

func TestTransitionsDoNotMutateReceiver(t *testing.T) {
	s := DefaultState()
	_, _ = s.SelectEntity(helsinki)
	_, _ = s.ToggleMode()
	assert.Equal(t, DefaultState(), s)
}

func TestCompose(t *testing.T) {
	state, _ := DefaultState().SelectEntity(helsinki)
	ls, err := Compose(state, populationSeries())
	require.NoError(t, err)
	assert.Equal(t, "Helsinki statistics chart", ls.Title)
	assert.Equal(t, []string{"2022", "2023"}, ls.Labels)
	assert.Equal(t, []decode.Value{decode.Num(658457), decode.Num(664028)}, ls.Values)
	assert.Equal(t, common.ModeLine, ls.Mode)
	assert.Equal(t, "#007bff", ls.Color)
}

func TestComposeRejectsMismatch(t *testing.T) {
	state, _ := DefaultState().SelectMetric(common.MetricCrime)
	_, err := Compose(state, populationSeries())
	assert.Error(t, err)

	_, err = Compose(DefaultState(), &decode.Series{Metric: common.MetricPopulation})
	assert.True(t, errors.Is(err, common.ErrNoData))
}

func TestToggleKeepsValues(t *testing.T) {
	ls, err := Compose(DefaultState(), populationSeries())
	require.NoError(t, err)

	state, _ := DefaultState().ToggleMode()
	bar := ls.WithMode(state.Mode)
	assert.Equal(t, common.ModeBar, bar.Mode)
	assert.Equal(t, ls.Values, bar.Values)
	assert.Equal(t, ls.Labels, bar.Labels)
	assert.Equal(t, common.ModeLine, ls.Mode)

	back := bar.WithMode(common.ModeLine)
	assert.Equal(t, ls, back)
}

func TestSummarize(t *testing.T) {
	employment := &decode.Series{
		Metric:  common.MetricEmployment,
		Periods: []string{"2021", "2022"},
		Values:  []decode.Value{decode.Num(70), decode.Num(80)},
	}
	sum, err := Summarize(helsinki, populationSeries(), 50, employment)
	require.NoError(t, err)
	assert.Equal(t, &Summary{
		Code:                        "KU091",
		Name:                        "Helsinki",
		LatestPopulation:            664028,
		LatestCrimeCount:            50,
		LatestEmploymentRatePercent: "80.00",
	}, sum)

	employment.Values[1] = decode.Absent
	sum, err = Summarize(helsinki, populationSeries(), 50, employment)
	require.NoError(t, err)
	assert.Equal(t, "n/a", sum.LatestEmploymentRatePercent)

	_, err = Summarize(helsinki, &decode.Series{Metric: common.MetricPopulation}, 50, employment)
	assert.True(t, errors.Is(err, common.ErrNoData))
}

func TestGenerationsLatestWins(t *testing.T) {
	g := NewGenerations()
	first := g.Start("chart")
	second := g.Start("chart")
	other := g.Start("popup")

	assert.False(t, g.Current(first))
	assert.True(t, g.Current(second))

	applied := ""
	err := g.Commit(first, func() { applied = "first" })
	assert.True(t, errors.Is(err, common.ErrStale))
	assert.Empty(t, applied)

	require.NoError(t, g.Commit(second, func() { applied = "second" }))
	assert.Equal(t, "second", applied)

	// targets are independent
	assert.NoError(t, g.Commit(other, nil))
}

func TestGenerationsConcurrentStarts(t *testing.T) {
	g := NewGenerations()
	var wg sync.WaitGroup
	tickets := make([]Ticket, 100)
	for i := range tickets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tickets[i] = g.Start("chart")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, tk := range tickets {
		if g.Current(tk) {
			winners++
			assert.Equal(t, uint64(100), tk.Gen)
		}
	}
	assert.Equal(t, 1, winners)
}
