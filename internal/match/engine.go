package match

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/peer"
)

// Kind classifies how a candidate matched an identity
type Kind string

const (
	KindExact     Kind = "exact"
	KindFuzzy     Kind = "fuzzy"
	KindRemix     Kind = "remix"
	KindUnmatched Kind = "unmatched"
)

// Confidence scoring weights. Title similarity dominates, artist close
// behind, album a light tiebreaker, with a small bonus when the peer's
// reported duration agrees with the catalog.
const (
	weightTitle   = 0.5
	weightArtist  = 0.4
	weightAlbum   = 0.1
	durationBonus = 0.05
	durationSlack = 5 // seconds

	exactFloor = 0.95
	fuzzyFloor = 0.6

	// DefaultAcceptanceFloor is the confidence required for unattended
	// acceptance; callers may lower it for interactive flows
	DefaultAcceptanceFloor = 0.8
)

// Result is one confidence-scored pairing of a candidate with a
// canonical identity. Derived, never persisted beyond a download.
type Result struct {
	Candidate  peer.SearchCandidate
	Identity   *catalog.Identity // nil when unmatched
	Confidence float64
	Kind       Kind
	Parsed     *ParsedName
}

// Searcher is the catalog surface the engine resolves against. It runs
// a fallback ladder of queries as one unit so implementations can cache
// the combined outcome under the (artist, title) key. *catalog.Cache
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, artist, title string, queries []string) ([]catalog.Identity, error)
}

// Engine converts rough file candidates into ranked, confidence-scored
// canonical identities
type Engine struct {
	searcher Searcher
}

// NewEngine creates a match resolution engine
func NewEngine(searcher Searcher) *Engine {
	return &Engine{searcher: searcher}
}

// Desired carries caller-supplied intent that overrides filename parsing
type Desired struct {
	Artist string
	Title  string
	Album  string
}

// Resolve produces match results for a candidate, sorted by descending
// confidence. An empty slice means the catalog had nothing plausible.
func (e *Engine) Resolve(ctx context.Context, candidate peer.SearchCandidate, desired *Desired) ([]Result, error) {
	parsed := ParseFilename(candidate.RemoteFilename)
	if desired != nil {
		if desired.Artist != "" {
			parsed.Artist = desired.Artist
		}
		if desired.Title != "" {
			parsed.Title = desired.Title
			detectRemix(parsed)
		}
		if desired.Album != "" {
			parsed.Album = desired.Album
		}
	}

	identities, err := e.queryLadder(ctx, parsed)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(identities))
	for i := range identities {
		identity := identities[i]
		confidence := e.score(candidate, parsed, &identity)
		results = append(results, Result{
			Candidate:  candidate,
			Identity:   &identity,
			Confidence: confidence,
			Kind:       classify(parsed, &identity, confidence),
			Parsed:     parsed,
		})
	}

	if len(results) == 0 {
		results = append(results, Result{
			Candidate: candidate,
			Kind:      KindUnmatched,
			Parsed:    parsed,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results, nil
}

// queryLadder builds the fallback ladder for the parsed fields, most
// specific rung first, and hands it to the searcher as one unit. The
// most specific rung that produces anything wins; wider rungs only add
// noise.
func (e *Engine) queryLadder(ctx context.Context, parsed *ParsedName) ([]catalog.Identity, error) {
	artist := parsed.LookupArtist()
	title := parsed.LookupTitle()

	var queries []string
	if artist != "" && title != "" && parsed.Album != "" {
		queries = append(queries, strings.TrimSpace(artist+" "+title+" "+parsed.Album))
	}
	if artist != "" && title != "" {
		queries = append(queries, strings.TrimSpace(artist+" "+title))
	}
	if title != "" {
		queries = append(queries, title)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("nothing to query: filename yielded no fields")
	}

	identities, err := e.searcher.Search(ctx, artist, title, queries)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(identities))
	unique := make([]catalog.Identity, 0, len(identities))
	for _, identity := range identities {
		if _, dup := seen[identity.SourceID]; dup {
			continue
		}
		seen[identity.SourceID] = struct{}{}
		unique = append(unique, identity)
	}
	return unique, nil
}

// score computes the weighted confidence for one candidate/identity pair
func (e *Engine) score(candidate peer.SearchCandidate, parsed *ParsedName, identity *catalog.Identity) float64 {
	titleSim := Similarity(parsed.LookupTitle(), identity.Title)
	artistSim := ArtistSimilarity(parsed.LookupArtist(), identity.Artists)

	// With no parsed album the album weight redistributes onto the
	// fields that exist, so a clean two-field parse can still reach
	// the exact threshold.
	confidence := 0.0
	if parsed.Album != "" && identity.AlbumName != "" {
		confidence = weightTitle*titleSim + weightArtist*artistSim +
			weightAlbum*Similarity(parsed.Album, identity.AlbumName)
	} else {
		total := weightTitle + weightArtist
		confidence = (weightTitle*titleSim + weightArtist*artistSim) / total
	}

	if candidate.ReportedDuration > 0 && identity.DurationSec > 0 {
		delta := candidate.ReportedDuration - identity.DurationSec
		if delta < 0 {
			delta = -delta
		}
		if delta <= durationSlack {
			confidence += durationBonus
		}
	}

	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// classify buckets a scored pair into a match kind
func classify(parsed *ParsedName, identity *catalog.Identity, confidence float64) Kind {
	switch {
	case parsed.IsRemix && confidence >= fuzzyFloor:
		return KindRemix
	case confidence >= exactFloor && fieldsEqual(parsed, identity):
		return KindExact
	case confidence >= fuzzyFloor:
		return KindFuzzy
	default:
		return KindUnmatched
	}
}

// fieldsEqual requires normalized equality on title and artist (and
// album, when both sides carry one) for the exact classification
func fieldsEqual(parsed *ParsedName, identity *catalog.Identity) bool {
	if Normalize(parsed.LookupTitle()) != Normalize(identity.Title) {
		return false
	}
	if ArtistSimilarity(parsed.LookupArtist(), identity.Artists) < 1 {
		return false
	}
	if parsed.Album != "" && identity.AlbumName != "" &&
		Normalize(parsed.Album) != Normalize(identity.AlbumName) {
		return false
	}
	return true
}

// Best returns the top result meeting the acceptance floor, or nil
func Best(results []Result, floor float64) *Result {
	if floor <= 0 {
		floor = DefaultAcceptanceFloor
	}
	for i := range results {
		if results[i].Identity != nil && results[i].Confidence >= floor {
			return &results[i]
		}
	}
	return nil
}
