package statfin

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplates() Templates {
	conf := config.Default()
	return NewTemplates(&conf)
}

func TestBuildPopulatesEntityDimension(t *testing.T) {
	ts := testTemplates()

	q, err := ts.Build(common.MetricPopulation, "KU091")
	require.NoError(t, err)
	assert.Equal(t, common.MetricPopulation, q.Metric)
	require.Len(t, q.Query, 2)
	assert.Equal(t, "Vuosi", q.Query[0].Code)
	assert.Equal(t, []string{"KU091"}, q.Query[1].Selection.Values)
	assert.Equal(t, "item", q.Query[1].Selection.Filter)

	q, err = ts.Build(common.MetricEmployment, "KU049")
	require.NoError(t, err)
	assert.Equal(t, []string{"KU049"}, q.Query[0].Selection.Values)
	assert.Equal(t, []string{"11", "12"}, q.Query[1].Selection.Values)
	assert.Equal(t, "2022", q.Periods()[len(q.Periods())-1])
}

func TestBuildDeduplicatesInOrder(t *testing.T) {
	q, err := testTemplates().Build(common.MetricCrime, "KU091", "KU049", "KU091", "", "SSS")
	require.NoError(t, err)
	_, d := q.Dimension(common.RoleEntity)
	assert.Equal(t, []string{"KU091", "KU049", "SSS"}, d.Selection.Values)
}

func TestBuildWithoutEntitiesFails(t *testing.T) {
	_, err := testTemplates().Build(common.MetricPopulation)
	assert.Error(t, err)
}

func TestBuildDoesNotTouchTemplate(t *testing.T) {
	ts := testTemplates()
	first, err := ts.Build(common.MetricPopulation, "KU091")
	require.NoError(t, err)

	// mutating one built query must not leak into the next one
	first.Query[0].Selection.Values[0] = "tampered"
	first.Query[1].Selection.Values[0] = "tampered"

	second, err := ts.Build(common.MetricPopulation, "KU049")
	require.NoError(t, err)
	assert.Equal(t, "1990", second.Query[0].Selection.Values[0])
	assert.Equal(t, []string{"KU049"}, second.Query[1].Selection.Values)
	assert.Empty(t, ts[common.MetricPopulation].dims[1].Selection.Values)
}

func TestBuildConcurrently(t *testing.T) {
	ts := testTemplates()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := fmt.Sprintf("KU%03d", i)
			q, err := ts.Build(common.MetricEmployment, code)
			if assert.NoError(t, err) {
				assert.Equal(t, []string{code}, q.Query[0].Selection.Values)
			}
		}(i)
	}
	wg.Wait()
}

func TestQueryJSONShape(t *testing.T) {
	q, err := testTemplates().Build(common.MetricPopulation, "KU091")
	require.NoError(t, err)
	raw, err := json.Marshal(q)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, map[string]any{"format": "json-stat2"}, body["response"])
	dims := body["query"].([]any)
	require.Len(t, dims, 2)
	alue := dims[1].(map[string]any)
	assert.Equal(t, "Alue", alue["code"])
	assert.Equal(t, map[string]any{"filter": "item", "values": []any{"KU091"}}, alue["selection"])
	assert.NotContains(t, alue, "Role")
}
