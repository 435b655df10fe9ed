package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL)
	t.Cleanup(client.Close)
	return client, server
}

func TestClientSearch(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Boards of Canada Roygbiv" {
			t.Errorf("query = %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua != UserAgent {
			t.Errorf("user agent = %q", ua)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tracks": []map[string]interface{}{
				{
					"id":      "trk1",
					"name":    "Roygbiv",
					"artists": []string{"Boards of Canada"},
					"album": map[string]interface{}{
						"name":         "Music Has the Right to Children",
						"album_type":   "album",
						"total_tracks": 17,
						"release_date": "1998-04-20",
					},
					"track_number": 2,
					"duration_ms":  321000,
				},
			},
			"count": 1,
		})
	})

	identities, err := client.Search(context.Background(), "Boards of Canada Roygbiv")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(identities) != 1 {
		t.Fatalf("got %d identities, expected 1", len(identities))
	}

	id := identities[0]
	if id.Title != "Roygbiv" || id.PrimaryArtist() != "Boards of Canada" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if id.AlbumKind != AlbumKindAlbum || id.TrackNumber != 2 || id.TotalTracks != 17 {
		t.Errorf("album fields wrong: %+v", id)
	}
	if id.DurationSec != 321 {
		t.Errorf("duration = %d, expected 321", id.DurationSec)
	}
}

func TestClientLookup(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tracks/trk9" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "trk9",
			"name":    "Faded",
			"artists": []string{"ZHU"},
			"album": map[string]interface{}{
				"name":         "Faded",
				"album_type":   "single",
				"total_tracks": 1,
			},
			"track_number": 1,
			"duration_ms":  223000,
		})
	})

	id, err := client.Lookup(context.Background(), "trk9")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !id.IsTrueSingle() {
		t.Errorf("expected true single, got kind=%s total=%d", id.AlbumKind, id.TotalTracks)
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	calls := 0
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(searchResponse{})
	})

	if _, err := client.Search(context.Background(), "anything"); err != nil {
		t.Fatalf("expected retry to recover, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, expected 2", calls)
	}
}

func TestParseAlbumKind(t *testing.T) {
	tests := []struct {
		in   string
		want AlbumKind
	}{
		{"single", AlbumKindSingle},
		{"EP", AlbumKindEP},
		{"Compilation", AlbumKindCompilation},
		{"album", AlbumKindAlbum},
		{"weird", AlbumKindAlbum},
	}
	for _, tt := range tests {
		if got := ParseAlbumKind(tt.in); got != tt.want {
			t.Errorf("ParseAlbumKind(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestIsTrueSingleEdgeCases(t *testing.T) {
	multiTrackSingle := Identity{AlbumKind: AlbumKindSingle, TotalTracks: 4}
	if multiTrackSingle.IsTrueSingle() {
		t.Error("a 'single' with 4 tracks must use the album layout")
	}
	oneTrackAlbum := Identity{AlbumKind: AlbumKindAlbum, TotalTracks: 1}
	if oneTrackAlbum.IsTrueSingle() {
		t.Error("a one-track album is not a single")
	}
}
