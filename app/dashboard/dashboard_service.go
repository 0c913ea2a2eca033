package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/decode"
	"github.com/mahesh-hegde/tilasto/app/series"
	"github.com/mahesh-hegde/tilasto/app/statfin"
	"golang.org/x/sync/errgroup"
)

type Fetcher interface {
	Fetch(ctx context.Context, q *statfin.Query) (*statfin.Result, error)
}

type EntityLookup interface {
	Lookup(ctx context.Context, code string) (common.Entity, error)
	List(ctx context.Context) ([]common.Entity, error)
}

type crimeState struct {
	table *decode.CrimeTable
	err   error
}

// DashboardService fetches, decodes and composes everything the map popup
// and the chart need.
type DashboardService struct {
	templates statfin.Templates
	fetcher   Fetcher
	entities  EntityLookup

	crimeLoading atomic.Bool
	crime        atomic.Pointer[crimeState]
}

func NewDashboardService(templates statfin.Templates, fetcher Fetcher, entities EntityLookup) *DashboardService {
	return &DashboardService{templates: templates, fetcher: fetcher, entities: entities}
}

// LoadCrime fetches the crime table for every known entity. It runs once;
// later calls return immediately. The table is read-only afterwards.
func (s *DashboardService) LoadCrime(ctx context.Context) error {
	if !s.crimeLoading.CompareAndSwap(false, true) {
		return nil
	}
	start := time.Now()
	table, err := s.fetchCrime(ctx)
	if err != nil {
		slog.Error("failed to load crime table", "err", err)
		s.crime.Store(&crimeState{err: err})
		return err
	}
	s.crime.Store(&crimeState{table: table})
	slog.Info("crime table loaded",
		"entities", table.Layout().Cardinality(common.RoleEntity),
		"periods", table.Layout().Cardinality(common.RolePeriod),
		"took", time.Since(start))
	return nil
}

func (s *DashboardService) fetchCrime(ctx context.Context) (*decode.CrimeTable, error) {
	all, err := s.entities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	codes := make([]string, len(all))
	for i, e := range all {
		codes[i] = e.Code
	}
	q, err := s.templates.Build(common.MetricCrime, codes...)
	if err != nil {
		return nil, err
	}
	res, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	return decode.NewCrimeTable(res)
}

func (s *DashboardService) crimeTable() (*decode.CrimeTable, error) {
	st := s.crime.Load()
	if st == nil {
		return nil, common.ErrNotReady
	}
	if st.err != nil {
		return nil, fmt.Errorf("%w: crime table failed to load: %w", common.ErrNotReady, st.err)
	}
	return st.table, nil
}

func (s *DashboardService) Lookup(ctx context.Context, code string) (common.Entity, error) {
	return s.entities.Lookup(ctx, code)
}

func (s *DashboardService) fetchDecoded(ctx context.Context, m common.Metric, code string) (*decode.Series, error) {
	if m == common.MetricCrime {
		table, err := s.crimeTable()
		if err != nil {
			return nil, err
		}
		return table.Series(code)
	}

	q, err := s.templates.Build(m, code)
	if err != nil {
		return nil, err
	}
	res, err := s.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if m == common.MetricEmployment {
		return decode.Employment(res, code)
	}
	return decode.Population(res, code)
}

// Series composes the chart series for state.
func (s *DashboardService) Series(ctx context.Context, state series.ChartState) (*series.LabeledSeries, error) {
	decoded, err := s.fetchDecoded(ctx, state.Metric, state.Entity.Code)
	if err != nil {
		return nil, fmt.Errorf("%s series of %s: %w", state.Metric, state.Entity.Code, err)
	}
	return series.Compose(state, decoded)
}

// Summary builds the popup record for e. Population and employment are
// fetched concurrently; any failure fails the whole summary.
func (s *DashboardService) Summary(ctx context.Context, e common.Entity) (*series.Summary, error) {
	table, err := s.crimeTable()
	if err != nil {
		return nil, err
	}
	latestCrime, err := table.Latest(e.Code)
	if err != nil {
		return nil, err
	}

	var population, employment *decode.Series
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		population, err = s.fetchDecoded(gctx, common.MetricPopulation, e.Code)
		return err
	})
	g.Go(func() error {
		var err error
		employment, err = s.fetchDecoded(gctx, common.MetricEmployment, e.Code)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("summary of %s: %w", e.Code, err)
	}
	return series.Summarize(e, population, latestCrime, employment)
}
