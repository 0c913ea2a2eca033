package municipality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/mahesh-hegde/tilasto/app/common"
)

// BleveEntityStore keeps entities in a bleve index. With an empty path the
// index lives in memory and is rebuilt from the SQLite snapshot at startup.
type BleveEntityStore struct {
	path string
	idx  bleve.Index
}

func NewBleveEntityStore(path string) *BleveEntityStore {
	return &BleveEntityStore{path: path}
}

var _ EntityStore = &BleveEntityStore{}
var _ mapping.Classifier = &EntityInDB{}

func getBleveIndexMappings() mapping.IndexMapping {
	indexMapping := mapping.NewIndexMapping()

	entityMapping := mapping.NewDocumentMapping()
	entityMapping.AddFieldMappingsAt("code", mapping.NewKeywordFieldMapping())
	entityMapping.AddFieldMappingsAt("name", mapping.NewTextFieldMapping())
	// folded name as keyword for prefix search
	entityMapping.AddFieldMappingsAt("name_f", mapping.NewKeywordFieldMapping())
	entityMapping.AddFieldMappingsAt("position", mapping.NewNumericFieldMapping())

	indexMapping.AddDocumentMapping("entity", entityMapping)
	indexMapping.DefaultMapping = entityMapping
	indexMapping.TypeField = "_type"
	return indexMapping
}

func (b *BleveEntityStore) Init() error {
	if b.path == "" {
		idx, err := bleve.NewMemOnly(getBleveIndexMappings())
		if err != nil {
			return fmt.Errorf("failed to create in-memory bleve index: %w", err)
		}
		b.idx = idx
		return nil
	}

	idx, err := bleve.Open(b.path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		slog.Info("creating new bleve index", "path", b.path)
		idx, err = bleve.New(b.path, getBleveIndexMappings())
	}
	if err != nil {
		return fmt.Errorf("failed to open bleve index: %w", err)
	}
	b.idx = idx
	return nil
}

func (b *BleveEntityStore) Close() error {
	if b.idx == nil {
		return nil
	}
	return b.idx.Close()
}

func (b *BleveEntityStore) Add(ctx context.Context, es []common.Entity) error {
	existing, err := b.All(ctx)
	if err != nil {
		return err
	}
	batch := b.idx.NewBatch()
	for _, e := range existing {
		batch.Delete(e.Code)
	}
	for i, e := range es {
		row := prepareEntityForDb(e, i)
		if err := batch.Index(e.Code, &row); err != nil {
			return fmt.Errorf("failed to add entity %s to batch: %w", e.Code, err)
		}
	}
	if err := b.idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	slog.Info("indexed entities", "count", len(es))
	return nil
}

func (b *BleveEntityStore) Get(ctx context.Context, code string) (common.Entity, error) {
	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{code}))
	req.Size = 1
	items, err := b.search(ctx, req)
	if err != nil {
		return common.Entity{}, err
	}
	if len(items) == 0 {
		return common.Entity{}, fmt.Errorf("%w: %q", common.ErrUnknownEntity, code)
	}
	return items[0], nil
}

func (b *BleveEntityStore) All(ctx context.Context) ([]common.Entity, error) {
	count, err := b.idx.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []common.Entity{}, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	return b.search(ctx, req)
}

func (b *BleveEntityStore) Suggest(ctx context.Context, p SuggestParams) (Suggestions, error) {
	prefix := common.FoldName(p.PartialQuery)
	if prefix == "" {
		return Suggestions{Items: []common.Entity{}}, nil
	}
	q := bleve.NewPrefixQuery(prefix)
	q.SetField("name_f")

	req := bleve.NewSearchRequest(q)
	req.Size = p.Limit
	if req.Size <= 0 {
		req.Size = defaultSuggestLimit
	}
	items, err := b.search(ctx, req)
	if err != nil {
		return Suggestions{}, fmt.Errorf("bleve suggest failed: %w", err)
	}
	return Suggestions{Items: items}, nil
}

func (b *BleveEntityStore) search(ctx context.Context, req *bleve.SearchRequest) ([]common.Entity, error) {
	req.Fields = []string{"code", "name"}
	req.SortBy([]string{"position"})
	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	items := make([]common.Entity, 0, len(res.Hits))
	for _, hit := range res.Hits {
		items = append(items, entityFromHit(hit))
	}
	return items, nil
}

func entityFromHit(hit *search.DocumentMatch) common.Entity {
	e := common.Entity{Code: hit.ID}
	if name, ok := hit.Fields["name"].(string); ok {
		e.Name = name
	}
	return e
}
