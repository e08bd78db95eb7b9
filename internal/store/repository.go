package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/runway/internal/database"
	"github.com/aristath/runway/internal/domain"
)

// schema is the single source of truth for the entity table. Descriptors are
// stored as msgpack blobs keyed by a stable row id, with the columns needed
// for indexed queries broken out.
const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	name        TEXT NOT NULL,
	start_date  TEXT NOT NULL,
	end_date    TEXT,
	source_path TEXT,
	data        BLOB NOT NULL,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	UNIQUE(type, name)
);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_entities_start_date ON entities(start_date);
CREATE INDEX IF NOT EXISTS idx_entities_end_date ON entities(end_date);
`

// Repository persists entity descriptors in the embedded database. The
// attribute map is the unit of persistence: it round-trips the open schema
// (unknown fields included) without column changes.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates the repository and applies the schema.
func NewRepository(db *database.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply entities schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "entities").Logger(),
	}, nil
}

// Upsert inserts or replaces an entity descriptor keyed by (type, name).
func (r *Repository) Upsert(e *domain.Entity) error {
	blob, err := msgpack.Marshal(e.Attrs)
	if err != nil {
		return fmt.Errorf("failed to encode entity %q: %w", e.Name, err)
	}

	var endDate any
	if e.EndDate != nil {
		endDate = e.EndDate.Format(domain.DateLayout)
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO entities (id, type, name, start_date, end_date, source_path, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, name) DO UPDATE SET
			start_date  = excluded.start_date,
			end_date    = excluded.end_date,
			source_path = excluded.source_path,
			data        = excluded.data,
			updated_at  = excluded.updated_at
	`
	_, err = r.db.Exec(query,
		uuid.NewString(),
		string(e.Type),
		e.Name,
		e.StartDate.Format(domain.DateLayout),
		endDate,
		e.SourcePath,
		blob,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entity %q: %w", e.Name, err)
	}
	return nil
}

// Delete removes an entity row by (type, name). Returns the number of rows
// removed.
func (r *Repository) Delete(typ domain.EntityType, name string) (int64, error) {
	result, err := r.db.Exec("DELETE FROM entities WHERE type = ? AND name = ?", string(typ), name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entity %q: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

// DeleteByName removes rows matching a name across all types.
func (r *Repository) DeleteByName(name string) (int64, error) {
	result, err := r.db.Exec("DELETE FROM entities WHERE name = ?", name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entity %q: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected, nil
}

// ReplaceAll atomically swaps the persisted entity set. Used by directory
// sync so a failed load never leaves a half-replaced table.
func (r *Repository) ReplaceAll(entities []*domain.Entity) error {
	return database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM entities"); err != nil {
			return fmt.Errorf("failed to clear entities: %w", err)
		}
		now := time.Now().Unix()
		for _, e := range entities {
			blob, err := msgpack.Marshal(e.Attrs)
			if err != nil {
				return fmt.Errorf("failed to encode entity %q: %w", e.Name, err)
			}
			var endDate any
			if e.EndDate != nil {
				endDate = e.EndDate.Format(domain.DateLayout)
			}
			_, err = tx.Exec(`
				INSERT INTO entities (id, type, name, start_date, end_date, source_path, data, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(),
				string(e.Type),
				e.Name,
				e.StartDate.Format(domain.DateLayout),
				endDate,
				e.SourcePath,
				blob,
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert entity %q: %w", e.Name, err)
			}
		}
		return nil
	})
}

// LoadAll reads every persisted entity. Rows that fail decoding or
// reconstruction are logged and skipped so one corrupt row cannot block
// startup.
func (r *Repository) LoadAll() ([]*domain.Entity, error) {
	rows, err := r.db.Query("SELECT name, source_path, data FROM entities ORDER BY type, name")
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*domain.Entity
	for rows.Next() {
		var (
			name       string
			sourcePath sql.NullString
			blob       []byte
		)
		if err := rows.Scan(&name, &sourcePath, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}

		var attrs map[string]any
		if err := msgpack.Unmarshal(blob, &attrs); err != nil {
			r.log.Error().Err(err).Str("entity", name).Msg("failed to decode entity blob, skipping")
			continue
		}

		entity, err := domain.New(attrs)
		if err != nil {
			r.log.Error().Err(err).Str("entity", name).Msg("persisted entity failed validation, skipping")
			continue
		}
		if sourcePath.Valid {
			entity.SourcePath = sourcePath.String
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return entities, nil
}

// Count returns the number of persisted entities.
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM entities").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}
