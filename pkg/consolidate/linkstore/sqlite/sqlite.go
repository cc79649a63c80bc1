// Package sqlite provides a SQLite-backed consolidation link store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loomworks/loom/pkg/consolidate/linkstore"
	"github.com/loomworks/loom/pkg/memory"
)

// Store implements linkstore.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a SQLite-backed link store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the links table if it doesn't exist. The unique index on
// the (user, canonical, superseded) triple is what makes Append idempotent.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS consolidation_links (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		canonical_id TEXT NOT NULL,
		superseded_id TEXT NOT NULL,
		similarity REAL NOT NULL,
		detected_at DATETIME NOT NULL,
		UNIQUE (user_id, canonical_id, superseded_id)
	);

	CREATE INDEX IF NOT EXISTS idx_links_user ON consolidation_links(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Append records a new link. Re-appending an existing pair is a no-op.
func (s *Store) Append(ctx context.Context, link memory.ConsolidationLink) error {
	query := `INSERT OR IGNORE INTO consolidation_links
		(id, user_id, canonical_id, superseded_id, similarity, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		link.ID, link.UserID, link.CanonicalID, link.SupersededID,
		link.Similarity, link.DetectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

// Linked reports whether the pair has been consolidated in either direction.
func (s *Store) Linked(ctx context.Context, userID, recordA, recordB string) (bool, error) {
	query := `SELECT 1 FROM consolidation_links
		WHERE user_id = ?
		AND ((canonical_id = ? AND superseded_id = ?) OR (canonical_id = ? AND superseded_id = ?))
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, userID, recordA, recordB, recordB, recordA)

	var exists int
	err := row.Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check link: %w", err)
	}
	return true, nil
}

// Superseded returns every retired record id for the user.
func (s *Store) Superseded(ctx context.Context, userID string) (map[string]time.Time, error) {
	query := `SELECT superseded_id, detected_at FROM consolidation_links
		WHERE user_id = ? ORDER BY detected_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query superseded records: %w", err)
	}
	defer rows.Close()

	retired := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var detectedAt time.Time
		if err := rows.Scan(&id, &detectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan superseded record: %w", err)
		}
		// First detection wins; invalidation is monotonic.
		if _, ok := retired[id]; !ok {
			retired[id] = detectedAt
		}
	}
	return retired, rows.Err()
}

// List returns the user's audit trail, oldest first.
func (s *Store) List(ctx context.Context, userID string) ([]memory.ConsolidationLink, error) {
	query := `SELECT id, user_id, canonical_id, superseded_id, similarity, detected_at
		FROM consolidation_links WHERE user_id = ? ORDER BY detected_at, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []memory.ConsolidationLink
	for rows.Next() {
		var link memory.ConsolidationLink
		if err := rows.Scan(&link.ID, &link.UserID, &link.CanonicalID,
			&link.SupersededID, &link.Similarity, &link.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ linkstore.Store = (*Store)(nil)
