package series

import (
	"sync"

	"github.com/mahesh-hegde/tilasto/app/common"
)

// Generations implements last-request-wins for asynchronous fetches. Every
// request for a target takes a ticket; when its result arrives, Commit
// accepts it only if no newer ticket was issued for that target since.
// Nothing is cancelled on the wire, stale results are just dropped.
type Generations struct {
	mu      sync.Mutex
	current map[string]uint64
}

type Ticket struct {
	Target string
	Gen    uint64
}

func NewGenerations() *Generations {
	return &Generations{current: make(map[string]uint64)}
}

func (g *Generations) Start(target string) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current[target]++
	return Ticket{Target: target, Gen: g.current[target]}
}

// Current reports whether t is still the newest ticket of its target.
func (g *Generations) Current(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current[t.Target] == t.Gen
}

// Commit runs apply while holding the lock if t is still current, so that
// a newer request cannot slip in between the check and the update.
func (g *Generations) Commit(t Ticket, apply func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current[t.Target] != t.Gen {
		return common.ErrStale
	}
	if apply != nil {
		apply()
	}
	return nil
}
