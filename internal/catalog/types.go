package catalog

import "strings"

// AlbumKind classifies the release a track belongs to
type AlbumKind string

const (
	AlbumKindSingle      AlbumKind = "single"
	AlbumKindEP          AlbumKind = "ep"
	AlbumKindAlbum       AlbumKind = "album"
	AlbumKindCompilation AlbumKind = "compilation"
)

// ParseAlbumKind normalizes a catalog-reported album type string
func ParseAlbumKind(value string) AlbumKind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "single":
		return AlbumKindSingle
	case "ep":
		return AlbumKindEP
	case "compilation":
		return AlbumKindCompilation
	default:
		return AlbumKindAlbum
	}
}

// Identity is the authoritative track/album/artist record from the
// metadata catalog. Immutable once fetched.
type Identity struct {
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Artists     []string  `json:"artists"`
	AlbumName   string    `json:"album_name"`
	AlbumKind   AlbumKind `json:"album_kind"`
	TrackNumber int       `json:"track_number"`
	TotalTracks int       `json:"total_tracks"`
	ReleaseDate string    `json:"release_date"`
	Genres      []string  `json:"genres"`
	ArtworkRef  string    `json:"artwork_ref"`
	DurationSec int       `json:"duration_sec"`
}

// PrimaryArtist returns the first credited artist, or empty
func (id *Identity) PrimaryArtist() string {
	if len(id.Artists) == 0 {
		return ""
	}
	return id.Artists[0]
}

// IsTrueSingle reports whether the single layout applies: the catalog
// must say single AND the release must hold exactly one track. Catalogs
// that mark multi-track EPs as "single" fall through to the album layout.
func (id *Identity) IsTrueSingle() bool {
	return id.AlbumKind == AlbumKindSingle && id.TotalTracks == 1
}
