package learning

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/conciliar-dev/conciliar/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS learning_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id TEXT NOT NULL,
	description TEXT NOT NULL,
	normalized_description TEXT NOT NULL,
	category_id INTEGER NOT NULL,
	confidence INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_learning_records_company_created
	ON learning_records(company_id, created_at);
`

// SQLiteStore keeps learning records in a SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening learning database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating learning database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Recent implements Store.
func (s *SQLiteStore) Recent(ctx context.Context, companyID string, limit int) ([]model.LearningRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT company_id, description, normalized_description, category_id, confidence, created_at
		FROM learning_records
		WHERE company_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying learning records: %w", err)
	}
	defer rows.Close()

	var out []model.LearningRecord
	for rows.Next() {
		var rec model.LearningRecord
		if err := rows.Scan(&rec.CompanyID, &rec.Description, &rec.NormalizedDescription,
			&rec.CategoryID, &rec.Confidence, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning learning record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, rec model.LearningRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_records
			(company_id, description, normalized_description, category_id, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CompanyID, rec.Description, rec.NormalizedDescription, rec.CategoryID, rec.Confidence, created.UTC())
	if err != nil {
		return fmt.Errorf("inserting learning record: %w", err)
	}
	return nil
}
