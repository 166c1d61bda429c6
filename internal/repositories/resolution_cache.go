package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/chartx/internal/models"
)

// ResolutionCache stores exact catalog matches keyed by normalized title and artist so later runs can
// skip the search.
type ResolutionCache struct {
	db *sql.DB
}

// NewResolutionCache creates a new ResolutionCache with the given database connection
func NewResolutionCache(db *sql.DB) *ResolutionCache {
	return &ResolutionCache{db: db}
}

// Lookup returns the cached external ID for key and counts the hit.
func (c *ResolutionCache) Lookup(key string) (string, bool, error) {
	var id string
	err := c.db.QueryRow(`SELECT external_id FROM resolution_cache WHERE cache_key = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up %q: %w", key, err)
	}

	if _, err := c.db.Exec(`UPDATE resolution_cache SET hits = hits + 1 WHERE cache_key = ?`, key); err != nil {
		return "", false, fmt.Errorf("failed to count hit for %q: %w", key, err)
	}
	return id, true, nil
}

// Store records match under key, replacing a previous match.
func (c *ResolutionCache) Store(key string, match models.MatchCandidate) error {
	if key == "" || match.ExternalID == "" {
		return fmt.Errorf("cache key and external id are required")
	}

	now := time.Now()
	query := `
		INSERT INTO resolution_cache (cache_key, external_id, title, artist, hits, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			external_id = excluded.external_id,
			title = excluded.title,
			artist = excluded.artist,
			updated_at = excluded.updated_at
	`

	if _, err := c.db.Exec(query, key, match.ExternalID, match.Title, match.Artist, now, now); err != nil {
		return fmt.Errorf("failed to cache %q: %w", key, err)
	}
	return nil
}

// Hits returns how many times key was served from the cache.
func (c *ResolutionCache) Hits(key string) (int, error) {
	var hits int
	err := c.db.QueryRow(`SELECT hits FROM resolution_cache WHERE cache_key = ?`, key).Scan(&hits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read hits for %q: %w", key, err)
	}
	return hits, nil
}

// Clear removes every cached match and reports how many were removed.
func (c *ResolutionCache) Clear() (int64, error) {
	result, err := c.db.Exec(`DELETE FROM resolution_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear resolution cache: %w", err)
	}
	return result.RowsAffected()
}
