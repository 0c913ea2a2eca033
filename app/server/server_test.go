package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/config"
	"github.com/mahesh-hegde/tilasto/app/dashboard"
	"github.com/mahesh-hegde/tilasto/app/municipality"
	"github.com/mahesh-hegde/tilasto/app/statfin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEntities = []common.Entity{
	common.WholeCountry,
	{Code: "KU049", Name: "Espoo"},
	{Code: "KU091", Name: "Helsinki"},
}

type memBoundaries struct {
	raw []byte
}

func (m *memBoundaries) SaveBoundaries(ctx context.Context, geojson []byte) error {
	m.raw = geojson
	return nil
}

func (m *memBoundaries) Boundaries(ctx context.Context) ([]byte, error) {
	if m.raw == nil {
		return nil, fmt.Errorf("%w: no boundaries", common.ErrNoData)
	}
	return m.raw, nil
}

type stubFetcher struct {
	mu   sync.Mutex
	fail error
}

func (f *stubFetcher) Fetch(ctx context.Context, q *statfin.Query) (*statfin.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	_, ent := q.Dimension(common.RoleEntity)
	periods := len(q.Periods())
	var flat []float64
	switch q.Metric {
	case common.MetricPopulation:
		flat = []float64{100, 200}
	case common.MetricCrime:
		for p := 0; p < periods; p++ {
			for e := range ent.Selection.Values {
				flat = append(flat, float64(10*p+e))
			}
		}
	case common.MetricEmployment:
		flat = []float64{80, 90, 20, 10}
	}
	return &statfin.Result{Query: q, Values: flat}, nil
}

type testServer struct {
	e          *echo.Echo
	ds         *dashboard.DashboardService
	fetcher    *stubFetcher
	boundaries *memBoundaries
}

func newTestServer(t *testing.T) *testServer {
	ctx := context.Background()
	conf := config.Default()
	conf.Population.Dimensions[0].Values = []string{"2022", "2023"}
	conf.Crime.Dimensions[0].Values = []string{"2022", "2023"}
	conf.Employment.Dimensions[3].Values = []string{"2021", "2022"}
	conf.DataDir = t.TempDir()

	store := municipality.NewBleveEntityStore("")
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Add(ctx, testEntities))

	boundaries := &memBoundaries{}
	ms := municipality.NewMunicipalityService(store, boundaries)
	fetcher := &stubFetcher{}
	ds := dashboard.NewDashboardService(statfin.NewTemplates(&conf), fetcher, ms)

	e, err := NewEcho(NewTilastoController(ds, ms, &conf), &conf, config.ServerRuntimeConfig{})
	require.NoError(t, err)
	return &testServer{e: e, ds: ds, fetcher: fetcher, boundaries: boundaries}
}

func (ts *testServer) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestGetEntities(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/entities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all municipality.Suggestions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, testEntities, all.Items)

	rec = ts.do(http.MethodGet, "/api/entities?q=hel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, []common.Entity{testEntities[2]}, all.Items)

	rec = ts.do(http.MethodGet, "/api/entities?q=hel&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "limit")
}

func TestGetSummary(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/entities/KU091/summary", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, ts.ds.LoadCrime(context.Background()))
	rec = ts.do(http.MethodGet, "/api/entities/KU091/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Helsinki", body["name"])
	assert.Equal(t, 200.0, body["latest_population"])
	assert.Equal(t, 12.0, body["latest_crime_count"])
	assert.Equal(t, "90.00", body["latest_employment_rate_percent"])

	rec = ts.do(http.MethodGet, "/api/entities/KU000/summary", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.fetcher.mu.Lock()
	ts.fetcher.fail = fmt.Errorf("%w: status 500", common.ErrFetchFailure)
	ts.fetcher.mu.Unlock()
	rec = ts.do(http.MethodGet, "/api/entities/KU049/summary", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetSeries(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/entities/KU091/series/population?mode=bar", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "bar", body["mode"])
	assert.Equal(t, []any{"2022", "2023"}, body["labels"])
	assert.Equal(t, []any{100.0, 200.0}, body["values"])

	rec = ts.do(http.MethodGet, "/api/entities/KU091/series/crime", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(http.MethodGet, "/api/entities/KU091/series/weather", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/entities/KU091/series/population?mode=pie", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBoundaries(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/boundaries", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	raw := `{"type":"FeatureCollection","features":[]}`
	require.NoError(t, ts.boundaries.SaveBoundaries(context.Background(), []byte(raw)))
	rec = ts.do(http.MethodGet, "/api/boundaries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get(echo.HeaderContentType))
	assert.JSONEq(t, raw, rec.Body.String())
}

func TestSessionActions(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.ds.LoadCrime(context.Background()))

	rec := ts.do(http.MethodPost, "/api/session/actions", `{"kind":"select_entity","entity":"KU091"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	body := decodeBody(t, rec)
	assert.NotNil(t, body["summary"])

	rec = ts.do(http.MethodPost, "/api/session/actions", `{"kind":"select_metric","metric":"crime"}`, cookies[0])
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies())
	state := decodeBody(t, rec)["state"].(map[string]any)
	assert.Equal(t, "crime", state["metric"])
	assert.Equal(t, "KU091", state["entity"].(map[string]any)["code"])

	rec = ts.do(http.MethodPost, "/api/session/actions", `{"kind":"toggle_mode"}`, cookies[0])
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "bar", body["series"].(map[string]any)["mode"])
	assert.Equal(t, []any{2.0, 12.0}, body["series"].(map[string]any)["values"])

	rec = ts.do(http.MethodPost, "/api/session/actions", `{"kind":"select_entity","entity":"KU000"}`, cookies[0])
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPost, "/api/session/actions", `{"kind":`, cookies[0])
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHomePage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, `href="/?entity=KU091"`)
	assert.Contains(t, html, ">Helsinki</a>")
	assert.Contains(t, html, "@KU564")
	assert.Contains(t, html, "/static/style.css?hash=")

	rec = ts.do(http.MethodGet, "/?entity=KU049", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h2>Espoo</h2>")

	rec = ts.do(http.MethodGet, "/?entity=KU000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")

	rec = ts.do(http.MethodGet, "/static/style.css", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
