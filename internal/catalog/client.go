package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

const (
	// UserAgent identifies this application to the metadata provider
	UserAgent = "SoulSync/1.0 (https://github.com/Nezreka/SoulSync-sub000)"

	// RateLimit is the minimum spacing between provider requests
	RateLimit = 250 * time.Millisecond
)

// Provider is the metadata catalog surface the match engine depends on.
// Implementations must be safe for concurrent use.
type Provider interface {
	Search(ctx context.Context, query string) ([]Identity, error)
	Lookup(ctx context.Context, sourceID string) (*Identity, error)
}

// Client talks to the metadata catalog HTTP API with rate limiting
type Client struct {
	baseURL     string
	httpClient  *http.Client
	userAgent   string
	rateLimiter *time.Ticker
	retryCfg    *util.RetryConfig
}

// NewClient creates a new catalog API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent:   UserAgent,
		rateLimiter: time.NewTicker(RateLimit),
		retryCfg:    util.AdapterRetryConfig(),
	}
}

// Close releases resources used by the client
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}

// searchResponse is the provider's search payload
type searchResponse struct {
	Tracks []trackEntry `json:"tracks"`
	Count  int          `json:"count"`
}

// trackEntry is the provider's track shape, flattened into Identity
type trackEntry struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	Album   struct {
		Name        string `json:"name"`
		Kind        string `json:"album_type"`
		TotalTracks int    `json:"total_tracks"`
		ReleaseDate string `json:"release_date"`
		ArtworkURL  string `json:"artwork_url"`
	} `json:"album"`
	TrackNumber int      `json:"track_number"`
	DurationMs  int      `json:"duration_ms"`
	Genres      []string `json:"genres"`
}

func (t *trackEntry) identity() Identity {
	return Identity{
		SourceID:    t.ID,
		Title:       t.Name,
		Artists:     t.Artists,
		AlbumName:   t.Album.Name,
		AlbumKind:   ParseAlbumKind(t.Album.Kind),
		TrackNumber: t.TrackNumber,
		TotalTracks: t.Album.TotalTracks,
		ReleaseDate: t.Album.ReleaseDate,
		Genres:      t.Genres,
		ArtworkRef:  t.Album.ArtworkURL,
		DurationSec: t.DurationMs / 1000,
	}
}

// Search queries the provider for tracks matching the free-text query.
// Results come back in provider ranking order.
func (c *Client) Search(ctx context.Context, query string) ([]Identity, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	urlStr := fmt.Sprintf("%s/v1/search?q=%s&type=track&limit=10",
		c.baseURL, url.QueryEscape(query))

	util.DebugLog("Catalog API: searching %q", query)

	var result searchResponse
	if err := c.getJSON(ctx, urlStr, &result); err != nil {
		return nil, err
	}

	identities := make([]Identity, 0, len(result.Tracks))
	for i := range result.Tracks {
		identities = append(identities, result.Tracks[i].identity())
	}
	util.DebugLog("Catalog API: %d results for %q", len(identities), query)
	return identities, nil
}

// Lookup retrieves one track identity by its catalog id
func (c *Client) Lookup(ctx context.Context, sourceID string) (*Identity, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("source id cannot be empty")
	}

	urlStr := fmt.Sprintf("%s/v1/tracks/%s", c.baseURL, url.PathEscape(sourceID))

	util.DebugLog("Catalog API: looking up track %s", sourceID)

	var entry trackEntry
	if err := c.getJSON(ctx, urlStr, &entry); err != nil {
		return nil, err
	}

	identity := entry.identity()
	return &identity, nil
}

// getJSON performs a rate-limited GET with retry-with-backoff and decodes
// the JSON body into out. Transient failures are retried; exhaustion
// surfaces as ErrAdapterUnavailable.
func (c *Client) getJSON(ctx context.Context, urlStr string, out interface{}) error {
	_, err := util.RetryWithBackoff(c.retryCfg, func() (struct{}, error) {
		select {
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		case <-c.rateLimiter.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests,
			resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("provider status %d: too many requests or service unavailable", resp.StatusCode)
		default:
			body, _ := io.ReadAll(resp.Body)
			return struct{}{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, fmt.Errorf("failed to decode response: %w", err)
		}
		return struct{}{}, nil
	}, "catalog "+urlStr)

	if err != nil && util.IsRetryableError(err) {
		return fmt.Errorf("%w: %v", util.ErrAdapterUnavailable, err)
	}
	return err
}
