package match

import (
	"context"
	"testing"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/peer"
)

type fakeSearcher struct {
	identities []catalog.Identity
	ladders    [][]string
}

func (f *fakeSearcher) Search(ctx context.Context, artist, title string, queries []string) ([]catalog.Identity, error) {
	f.ladders = append(f.ladders, queries)
	return f.identities, nil
}

func roygbivIdentity() catalog.Identity {
	return catalog.Identity{
		SourceID:    "trk1",
		Title:       "Roygbiv",
		Artists:     []string{"Boards of Canada"},
		AlbumName:   "Music Has the Right to Children",
		AlbumKind:   catalog.AlbumKindAlbum,
		TrackNumber: 2,
		TotalTracks: 17,
		DurationSec: 321,
	}
}

func TestResolveExactScenario(t *testing.T) {
	// Filename "02 - Boards of Canada - Roygbiv.flac", duration 320s,
	// identity duration 321s: exact with confidence >= 0.95
	searcher := &fakeSearcher{identities: []catalog.Identity{roygbivIdentity()}}
	engine := NewEngine(searcher)

	candidate := peer.SearchCandidate{
		RemoteFilename:   `@@music\02 - Boards of Canada - Roygbiv.flac`,
		ReportedDuration: 320,
	}

	results, err := engine.Resolve(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}

	best := results[0]
	if best.Kind != KindExact {
		t.Errorf("kind = %s, expected exact", best.Kind)
	}
	if best.Confidence < 0.95 {
		t.Errorf("confidence = %f, expected >= 0.95", best.Confidence)
	}
	if best.Identity.SourceID != "trk1" {
		t.Errorf("wrong identity: %+v", best.Identity)
	}
}

func TestResolveConfidenceMonotonicInTitleSimilarity(t *testing.T) {
	engine := NewEngine(nil)
	identity := roygbivIdentity()
	candidate := peer.SearchCandidate{}

	parsedClose := &ParsedName{Artist: "Boards of Canada", Title: "Roygbiv"}
	parsedFar := &ParsedName{Artist: "Boards of Canada", Title: "Roigbyv"}
	parsedFarther := &ParsedName{Artist: "Boards of Canada", Title: "Riogbyf"}

	scoreClose := engine.score(candidate, parsedClose, &identity)
	scoreFar := engine.score(candidate, parsedFar, &identity)
	scoreFarther := engine.score(candidate, parsedFarther, &identity)

	if !(scoreClose >= scoreFar && scoreFar >= scoreFarther) {
		t.Errorf("confidence not monotonic in title similarity: %f, %f, %f", scoreClose, scoreFar, scoreFarther)
	}
}

func TestResolveRemixClassification(t *testing.T) {
	searcher := &fakeSearcher{identities: []catalog.Identity{{
		SourceID:    "rmx1",
		Title:       "Faded",
		Artists:     []string{"NightOwl"},
		AlbumName:   "Faded Remixes",
		DurationSec: 222,
	}}}
	engine := NewEngine(searcher)

	candidate := peer.SearchCandidate{RemoteFilename: "ZHU - Faded (NightOwl Remix).mp3"}
	results, err := engine.Resolve(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	best := results[0]
	if best.Kind != KindRemix {
		t.Errorf("kind = %s, expected remix (confidence %f)", best.Kind, best.Confidence)
	}
	if best.Parsed.CreditedRemixer != "NightOwl" || best.Parsed.OriginalTitle != "Faded" {
		t.Errorf("remix attribution wrong: %+v", best.Parsed)
	}
}

func TestResolveUnmatchedWhenCatalogEmpty(t *testing.T) {
	engine := NewEngine(&fakeSearcher{})
	candidate := peer.SearchCandidate{RemoteFilename: "Nobody - Nothing.mp3"}

	results, err := engine.Resolve(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(results) != 1 || results[0].Kind != KindUnmatched || results[0].Identity != nil {
		t.Errorf("expected a single unmatched placeholder, got %+v", results)
	}
}

func TestResolveDesiredOverridesFilename(t *testing.T) {
	searcher := &fakeSearcher{identities: []catalog.Identity{roygbivIdentity()}}
	engine := NewEngine(searcher)

	candidate := peer.SearchCandidate{RemoteFilename: "garbage_filename_2007_rip.flac"}
	desired := &Desired{Artist: "Boards of Canada", Title: "Roygbiv"}

	results, err := engine.Resolve(context.Background(), candidate, desired)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if results[0].Kind == KindUnmatched {
		t.Errorf("desired fields should drive the lookup, got %+v", results[0])
	}
	if len(searcher.ladders) == 0 || searcher.ladders[0][0] != "Boards of Canada Roygbiv" {
		t.Errorf("ladders = %v", searcher.ladders)
	}
}

func TestResolveLadderMostSpecificFirst(t *testing.T) {
	// The whole ladder goes to the searcher in one call so an empty
	// specific rung cannot shadow a wider one
	searcher := &fakeSearcher{}
	engine := NewEngine(searcher)

	candidate := peer.SearchCandidate{RemoteFilename: "Burial - Untrue - Archangel.mp3"}
	if _, err := engine.Resolve(context.Background(), candidate, nil); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(searcher.ladders) != 1 {
		t.Fatalf("searcher called %d times, expected one ladder", len(searcher.ladders))
	}
	want := []string{"Burial Archangel Untrue", "Burial Archangel", "Archangel"}
	got := searcher.ladders[0]
	if len(got) != len(want) {
		t.Fatalf("ladder = %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ladder[%d] = %q, expected %q", i, got[i], want[i])
		}
	}
}

func TestResolveDeduplicatesBySourceID(t *testing.T) {
	identity := roygbivIdentity()
	searcher := &fakeSearcher{identities: []catalog.Identity{identity, identity}}
	engine := NewEngine(searcher)

	candidate := peer.SearchCandidate{RemoteFilename: "Boards of Canada - Roygbiv.flac"}
	results, err := engine.Resolve(context.Background(), candidate, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results for one source id, expected 1", len(results))
	}
}

func TestBestRespectsAcceptanceFloor(t *testing.T) {
	identity := roygbivIdentity()
	results := []Result{
		{Identity: &identity, Confidence: 0.75, Kind: KindFuzzy},
	}
	if got := Best(results, 0.8); got != nil {
		t.Errorf("0.75 should not pass a 0.8 floor, got %+v", got)
	}
	if got := Best(results, 0.7); got == nil {
		t.Error("0.75 should pass a 0.7 floor")
	}
}
