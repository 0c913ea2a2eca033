package municipality

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mahesh-hegde/tilasto/app/common"
)

type SQLiteEntityStore struct {
	db *sql.DB
}

func NewSQLiteEntityStore(db *sql.DB) *SQLiteEntityStore {
	return &SQLiteEntityStore{db: db}
}

var _ EntityStore = &SQLiteEntityStore{}
var _ BoundaryStore = &SQLiteEntityStore{}

func (s *SQLiteEntityStore) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tilasto_entities (
			code TEXT PRIMARY KEY,
			name TEXT,
			name_folded TEXT,
			position INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_entity_name ON tilasto_entities(name_folded);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tilasto_entities table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tilasto_boundaries (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			geojson BLOB,
			fetched_at TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tilasto_boundaries table: %w", err)
	}
	return nil
}

func (s *SQLiteEntityStore) Add(ctx context.Context, es []common.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tilasto_entities"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO tilasto_entities (code, name, name_folded, position) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range es {
		row := prepareEntityForDb(e, i)
		if _, err := stmt.ExecContext(ctx, row.Code, row.Name, row.NameFolded, row.Position); err != nil {
			return fmt.Errorf("failed to insert entity %s: %w", e.Code, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteEntityStore) Get(ctx context.Context, code string) (common.Entity, error) {
	var e common.Entity
	err := s.db.QueryRowContext(ctx, "SELECT code, name FROM tilasto_entities WHERE code = ?", code).Scan(&e.Code, &e.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return common.Entity{}, fmt.Errorf("%w: %q", common.ErrUnknownEntity, code)
	}
	return e, err
}

func (s *SQLiteEntityStore) All(ctx context.Context) ([]common.Entity, error) {
	return s.query(ctx, "SELECT code, name FROM tilasto_entities ORDER BY position")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *SQLiteEntityStore) Suggest(ctx context.Context, p SuggestParams) (Suggestions, error) {
	prefix := common.FoldName(p.PartialQuery)
	if prefix == "" {
		return Suggestions{Items: []common.Entity{}}, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	items, err := s.query(ctx, `
		SELECT code, name
		FROM tilasto_entities
		WHERE name_folded LIKE ? ESCAPE '\'
		ORDER BY position
		LIMIT ?
	`, likeEscaper.Replace(prefix)+"%", limit)
	if err != nil {
		return Suggestions{}, fmt.Errorf("sqlite suggest failed: %w", err)
	}
	return Suggestions{Items: items}, nil
}

func (s *SQLiteEntityStore) query(ctx context.Context, query string, args ...any) ([]common.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]common.Entity, 0)
	for rows.Next() {
		var e common.Entity
		if err := rows.Scan(&e.Code, &e.Name); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (s *SQLiteEntityStore) SaveBoundaries(ctx context.Context, geojson []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO tilasto_boundaries (id, geojson, fetched_at) VALUES (1, ?, ?)",
		geojson, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLiteEntityStore) Boundaries(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, "SELECT geojson FROM tilasto_boundaries WHERE id = 1").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: boundaries have not been fetched", common.ErrNoData)
	}
	return raw, err
}
