package docstore

import (
	"database/sql"
	"log/slog"
	"path/filepath"
)

// NewSQLiteDB creates a new SQLite DB connection.
func NewSQLiteDB(dataDir string) (*sql.DB, error) {
	dbPath := filepath.Join(dataDir, "tilasto.db")
	slog.Info("opening SQLite DB", "dbPath", dbPath)
	db, err := sql.Open(SQLiteDriverName, dbPath)
	if err != nil {
		return nil, err
	}
	// one writer at a time; the snapshot is small
	db.SetMaxOpenConns(1)
	return db, nil
}
