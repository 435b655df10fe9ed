package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// Cache provides database-backed caching for catalog lookups keyed by
// normalized (artist, title). The provider is never queried more than
// once per unique key, including across process restarts.
type Cache struct {
	db       *sql.DB
	provider Provider

	mu       sync.Mutex
	inFlight map[string]chan struct{}
}

// NewCache creates a new cache wrapping a provider
func NewCache(db *sql.DB, provider Provider) *Cache {
	return &Cache{
		db:       db,
		provider: provider,
		inFlight: make(map[string]chan struct{}),
	}
}

// EnsureSchema creates the cache table if it doesn't exist
func (c *Cache) EnsureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_cache (
		cache_key TEXT PRIMARY KEY,
		identities TEXT NOT NULL, -- JSON array of identities
		cached_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		hit_count INTEGER DEFAULT 0
	);
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create catalog_cache table: %w", err)
	}
	return nil
}

// cacheKey normalizes (artist, title) into the cache key
func cacheKey(artist, title string) string {
	return strings.ToLower(strings.TrimSpace(artist)) + "\x00" + strings.ToLower(strings.TrimSpace(title))
}

// Search resolves a query ladder through the cache. On a miss the
// queries run in order against the provider until one returns results,
// and the outcome of the whole ladder is cached under the normalized
// (artist, title) key. Caching the combined outcome keeps the provider
// at one batch per key without an empty early rung masking a fallback.
func (c *Cache) Search(ctx context.Context, artist, title string, queries []string) ([]Identity, error) {
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries for %s / %s", artist, title)
	}
	key := cacheKey(artist, title)

	// Serialize concurrent misses for the same key so only one worker
	// issues the provider call.
	for {
		c.mu.Lock()
		wait, busy := c.inFlight[key]
		if !busy {
			done := make(chan struct{})
			c.inFlight[key] = done
			c.mu.Unlock()
			defer func() {
				c.mu.Lock()
				delete(c.inFlight, key)
				close(done)
				c.mu.Unlock()
			}()
			break
		}
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}

	if cached, err := c.getFromCache(key); err == nil && cached != nil {
		util.DebugLog("Catalog cache hit: %s / %s", artist, title)
		c.incrementHitCount(key)
		return cached, nil
	}

	util.DebugLog("Catalog cache miss: %s / %s, querying provider", artist, title)
	var identities []Identity
	var lastErr error
	answered := false
	for _, query := range queries {
		found, err := c.provider.Search(ctx, query)
		if err != nil {
			// A failed rung is non-fatal while a wider rung may serve
			util.WarnLog("Catalog query %q failed: %v", query, err)
			lastErr = err
			continue
		}
		answered = true
		if len(found) > 0 {
			identities = found
			break
		}
	}
	if !answered {
		return nil, lastErr
	}
	if identities == nil {
		// An empty outcome is still an outcome; nil would read back
		// as a miss
		identities = []Identity{}
	}

	if err := c.putInCache(key, identities); err != nil {
		util.WarnLog("Failed to cache catalog result for %s / %s: %v", artist, title, err)
	}
	return identities, nil
}

// Lookup passes an id lookup straight to the provider; id lookups are
// already unique and cheap on the provider side
func (c *Cache) Lookup(ctx context.Context, sourceID string) (*Identity, error) {
	return c.provider.Lookup(ctx, sourceID)
}

func (c *Cache) getFromCache(key string) ([]Identity, error) {
	var payload string
	err := c.db.QueryRow(
		"SELECT identities FROM catalog_cache WHERE cache_key = ?", key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var identities []Identity
	if err := json.Unmarshal([]byte(payload), &identities); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for key: %w", err)
	}
	return identities, nil
}

func (c *Cache) putInCache(key string, identities []Identity) error {
	payload, err := json.Marshal(identities)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`
		INSERT INTO catalog_cache (cache_key, identities, cached_at, hit_count)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(cache_key) DO UPDATE SET identities = excluded.identities, cached_at = excluded.cached_at`,
		key, string(payload), time.Now().UTC())
	return err
}

func (c *Cache) incrementHitCount(key string) {
	if _, err := c.db.Exec(
		"UPDATE catalog_cache SET hit_count = hit_count + 1 WHERE cache_key = ?", key,
	); err != nil {
		util.DebugLog("Failed to bump cache hit count: %v", err)
	}
}
