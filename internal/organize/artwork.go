package organize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// maxArtworkBytes rejects absurd cover files before buffering them
const maxArtworkBytes = 10 << 20

// ArtworkFetcher downloads cover art once per (artist, album) and keeps
// it for the rest of the batch. Every track of an album shares one
// fetch no matter how many completions race through the pipeline.
type ArtworkFetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string][]byte
}

// NewArtworkFetcher creates a fetcher with an empty batch cache
func NewArtworkFetcher() *ArtworkFetcher {
	return &ArtworkFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		cache:  make(map[string][]byte),
	}
}

// Fetch returns the cover bytes for the given release, hitting the
// network only on first sight of the (artist, album) pair. Failures are
// cached as empty so one broken URL does not retry per track.
func (f *ArtworkFetcher) Fetch(ctx context.Context, artist, album, ref string) []byte {
	if ref == "" {
		return nil
	}

	key := strings.ToLower(artist) + "\x00" + strings.ToLower(album)

	f.mu.Lock()
	if data, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return data
	}
	f.mu.Unlock()

	data, err := f.download(ctx, ref)
	if err != nil {
		util.WarnLog("artwork fetch failed for %s - %s: %v", artist, album, err)
		data = nil
	}

	f.mu.Lock()
	f.cache[key] = data
	f.mu.Unlock()
	return data
}

func (f *ArtworkFetcher) download(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxArtworkBytes {
		return nil, fmt.Errorf("artwork exceeds %d bytes", maxArtworkBytes)
	}
	return data, nil
}
