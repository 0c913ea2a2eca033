package dashboard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/series"
	"github.com/patrickmn/go-cache"
)

type ActionKind string

const (
	ActionSelectEntity ActionKind = "select_entity"
	ActionSelectMetric ActionKind = "select_metric"
	ActionToggleMode   ActionKind = "toggle_mode"
)

type Action struct {
	Kind   ActionKind    `json:"kind"`
	Metric common.Metric `json:"metric,omitempty"`
	Entity string        `json:"entity,omitempty"`
}

// View is what a session answers an action with.
type View struct {
	State   series.ChartState     `json:"state"`
	Series  *series.LabeledSeries `json:"series,omitempty"`
	Summary *series.Summary       `json:"summary,omitempty"`
}

const (
	targetChart = "chart"
	targetPopup = "popup"
)

// Session is the chart of one browser. The state changes as soon as an
// action arrives; the composed series is replaced only by the result of the
// newest request. When the newest request fails, the state goes back to
// what the chart shows.
type Session struct {
	ID string

	mu    sync.Mutex
	gens  *series.Generations
	state series.ChartState

	// state last was composed for
	shown   series.ChartState
	last    *series.LabeledSeries
	summary *series.Summary
}

func newSession(id string) *Session {
	return &Session{
		ID:    id,
		gens:  series.NewGenerations(),
		state: series.DefaultState(),
		shown: series.DefaultState(),
	}
}

func (s *Session) State() series.ChartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply runs action against svc. When a newer action for the same target
// started while this one was fetching, the result is dropped and
// common.ErrStale returned.
func (s *Session) Apply(ctx context.Context, svc *DashboardService, action Action) (*View, error) {
	var entity common.Entity
	if action.Kind == ActionSelectEntity {
		var err error
		if entity, err = svc.Lookup(ctx, action.Entity); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	var next series.ChartState
	var refetch series.Refetch
	switch action.Kind {
	case ActionSelectEntity:
		next, refetch = s.state.SelectEntity(entity)
	case ActionSelectMetric:
		if _, err := common.ParseMetric(string(action.Metric)); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		next, refetch = s.state.SelectMetric(action.Metric)
	case ActionToggleMode:
		next, refetch = s.state.ToggleMode()
	default:
		s.mu.Unlock()
		return nil, common.NewUserVisibleError(http.StatusBadRequest, fmt.Sprintf("unknown action %q", action.Kind))
	}
	s.state = next

	if refetch == series.RefetchNone && s.last != nil {
		s.shown.Mode = next.Mode
		s.last = s.last.WithMode(next.Mode)
		view := &View{State: s.shown, Series: s.last}
		s.mu.Unlock()
		return view, nil
	}

	chartTicket := s.gens.Start(targetChart)
	var popupTicket series.Ticket
	if refetch == series.RefetchAll {
		popupTicket = s.gens.Start(targetPopup)
	}
	s.mu.Unlock()

	ls, err := svc.Series(ctx, next)
	if err != nil {
		s.abort(chartTicket)
		return nil, err
	}
	var summary *series.Summary
	if refetch == series.RefetchAll {
		if summary, err = svc.Summary(ctx, next.Entity); err != nil {
			s.abort(chartTicket)
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	view := &View{}
	err = s.gens.Commit(chartTicket, func() {
		// the mode may have been toggled while fetching
		s.last = ls.WithMode(s.state.Mode)
		s.shown = s.state
		view.State = s.state
		view.Series = s.last
	})
	if err != nil {
		return nil, err
	}
	if summary != nil {
		if err := s.gens.Commit(popupTicket, func() { s.summary = summary }); err == nil {
			view.Summary = summary
		}
	}
	return view, nil
}

// abort puts the state back to what the chart shows after the request of t
// failed. A newer request owns the state and is left alone. The mode is kept,
// it never depends on fetched data.
func (s *Session) abort(t series.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.gens.Commit(t, func() {
		restored := s.shown
		restored.Mode = s.state.Mode
		s.state = restored
	})
}

// SessionStore keeps sessions in memory and forgets idle ones.
type SessionStore struct {
	cache *cache.Cache
	mu    sync.Mutex
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{cache: cache.New(ttl, ttl/2)}
}

// Get returns the session with id, creating one (with a fresh id when id is
// empty or unknown). Each access extends the session's lifetime.
func (ss *SessionStore) Get(id string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if id != "" {
		if v, found := ss.cache.Get(id); found {
			sess := v.(*Session)
			ss.cache.SetDefault(id, sess)
			return sess
		}
	}
	sess := newSession(newSessionID())
	ss.cache.SetDefault(sess.ID, sess)
	return sess
}

func (ss *SessionStore) Count() int {
	return ss.cache.ItemCount()
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
