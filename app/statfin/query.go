package statfin

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/config"
)

type Selection struct {
	Filter string   `json:"filter"`
	Values []string `json:"values"`
}

type QueryDimension struct {
	Code      string      `json:"code"`
	Selection Selection   `json:"selection"`
	Role      common.Role `json:"-"`
}

type ResponseFormat struct {
	Format string `json:"format"`
}

// Query is the body POSTed to a PxWeb table. The API answers with one value
// per combination of selected values, first dimension varying slowest, so a
// Query is also the only valid key for reading its result.
type Query struct {
	Metric   common.Metric    `json:"-"`
	URL      string           `json:"-"`
	Query    []QueryDimension `json:"query"`
	Response ResponseFormat   `json:"response"`
}

// Dimension returns the index and the dimension holding role, or -1.
func (q *Query) Dimension(role common.Role) (int, *QueryDimension) {
	for i := range q.Query {
		if q.Query[i].Role == role {
			return i, &q.Query[i]
		}
	}
	return -1, nil
}

// Periods returns the period labels of the query, in result order.
func (q *Query) Periods() []string {
	_, d := q.Dimension(common.RolePeriod)
	if d == nil {
		return nil
	}
	return d.Selection.Values
}

// Template is the immutable part of a metric query. Build never modifies
// it, so one Template may be shared by any number of goroutines.
type Template struct {
	metric common.Metric
	url    string
	format string
	dims   []QueryDimension
}

const defaultFormat = "json-stat2"

func NewTemplate(m common.Metric, defn config.QueryDefn) *Template {
	t := &Template{metric: m, url: defn.URL, format: defn.Format}
	if t.format == "" {
		t.format = defaultFormat
	}
	for _, d := range defn.Dimensions {
		filter := d.Filter
		if filter == "" {
			filter = "item"
		}
		t.dims = append(t.dims, QueryDimension{
			Code:      d.Code,
			Role:      d.Role,
			Selection: Selection{Filter: filter, Values: slices.Clone(d.Values)},
		})
	}
	return t
}

func (t *Template) Metric() common.Metric { return t.metric }

func (t *Template) URL() string { return t.url }

// Build returns a fresh Query whose entity dimension holds codes,
// deduplicated with first occurrence order kept.
func (t *Template) Build(codes ...string) (*Query, error) {
	entities := dedup(codes)
	if len(entities) == 0 {
		return nil, common.NewUserVisibleError(http.StatusBadRequest,
			fmt.Sprintf("%s query needs at least one entity", t.metric))
	}

	q := &Query{
		Metric:   t.metric,
		URL:      t.url,
		Query:    make([]QueryDimension, len(t.dims)),
		Response: ResponseFormat{Format: t.format},
	}
	for i, d := range t.dims {
		d.Selection.Values = slices.Clone(d.Selection.Values)
		if d.Role == common.RoleEntity {
			d.Selection.Values = entities
		}
		q.Query[i] = d
	}
	return q, nil
}

func dedup(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	res := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		res = append(res, c)
	}
	return res
}

// Templates holds one Template per metric.
type Templates map[common.Metric]*Template

func NewTemplates(conf *config.TilastoConfig) Templates {
	return Templates{
		common.MetricPopulation: NewTemplate(common.MetricPopulation, conf.Population),
		common.MetricCrime:      NewTemplate(common.MetricCrime, conf.Crime),
		common.MetricEmployment: NewTemplate(common.MetricEmployment, conf.Employment),
	}
}

func (ts Templates) Build(m common.Metric, codes ...string) (*Query, error) {
	t, ok := ts[m]
	if !ok {
		return nil, fmt.Errorf("no query template for metric %q", m)
	}
	return t.Build(codes...)
}
