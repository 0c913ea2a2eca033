package municipality

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mahesh-hegde/tilasto/app/common"
	"github.com/mahesh-hegde/tilasto/app/statfin"
)

type MunicipalityService struct {
	store      EntityStore
	boundaries BoundaryStore
}

func NewMunicipalityService(store EntityStore, boundaries BoundaryStore) *MunicipalityService {
	return &MunicipalityService{store: store, boundaries: boundaries}
}

func (s *MunicipalityService) Lookup(ctx context.Context, code string) (common.Entity, error) {
	return s.store.Get(ctx, code)
}

func (s *MunicipalityService) List(ctx context.Context) ([]common.Entity, error) {
	return s.store.All(ctx)
}

func (s *MunicipalityService) Suggest(ctx context.Context, partial string, limit int) (Suggestions, error) {
	return s.store.Suggest(ctx, SuggestParams{PartialQuery: partial, Limit: limit})
}

func (s *MunicipalityService) Boundaries(ctx context.Context) ([]byte, error) {
	return s.boundaries.Boundaries(ctx)
}

// Snapshot fetches the entity list and the boundaries and stores both. The
// entity list comes from the metadata of tableURL, boundaries from geoJSONURL.
func Snapshot(ctx context.Context, client *statfin.Client, tableURL, entityVariable, geoJSONURL string, store EntityStore, boundaries BoundaryStore) error {
	meta, err := client.Metadata(ctx, tableURL)
	if err != nil {
		return fmt.Errorf("failed to fetch entity list: %w", err)
	}
	entities, err := EntitiesFromMetadata(meta, entityVariable)
	if err != nil {
		return err
	}

	raw, err := client.Get(ctx, geoJSONURL)
	if err != nil {
		return fmt.Errorf("failed to fetch boundaries: %w", err)
	}
	mapped, err := ParseBoundaries(raw)
	if err != nil {
		return err
	}
	missing := 0
	for _, m := range mapped {
		if !slices.ContainsFunc(entities, func(e common.Entity) bool { return e.Code == m.Code }) {
			missing++
		}
	}
	if missing > 0 {
		slog.Warn("boundaries without statistics", "count", missing)
	}

	if err := store.Add(ctx, entities); err != nil {
		return fmt.Errorf("failed to store entities: %w", err)
	}
	if err := boundaries.SaveBoundaries(ctx, raw); err != nil {
		return fmt.Errorf("failed to store boundaries: %w", err)
	}
	slog.Info("snapshot stored", "entities", len(entities), "features", len(mapped))
	return nil
}

// Reindex copies every entity of from into to.
func Reindex(ctx context.Context, from, to EntityStore) error {
	all, err := from.All(ctx)
	if err != nil {
		return err
	}
	return to.Add(ctx, all)
}
