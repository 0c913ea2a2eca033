package municipality

import (
	"context"

	"github.com/mahesh-hegde/tilasto/app/common"
)

type EntityStore interface {
	Init() error
	// Add replaces the stored entity list with es, keeping its order.
	Add(ctx context.Context, es []common.Entity) error

	// Get returns the entity with code, or common.ErrUnknownEntity.
	Get(ctx context.Context, code string) (common.Entity, error)

	// All returns every entity in API order.
	All(ctx context.Context) ([]common.Entity, error)

	// Suggest returns entities whose name starts with s.PartialQuery,
	// ignoring case.
	Suggest(ctx context.Context, s SuggestParams) (Suggestions, error)
}

// BoundaryStore keeps the map boundaries as the raw GeoJSON that was fetched.
type BoundaryStore interface {
	SaveBoundaries(ctx context.Context, geojson []byte) error
	Boundaries(ctx context.Context) ([]byte, error)
}
