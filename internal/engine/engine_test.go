package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/match"
	"github.com/Nezreka/SoulSync-sub000/internal/organize"
	"github.com/Nezreka/SoulSync-sub000/internal/peer"
	"github.com/Nezreka/SoulSync-sub000/internal/queue"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

type fakePeer struct {
	mu           sync.Mutex
	beginErr     error
	noTransferID bool
	nextID       int
	cancels      []string
	acks         []string
	transfers    []peer.TransferEntry
	transferErr  error
}

func (f *fakePeer) Search(ctx context.Context, query string) ([]peer.SearchCandidate, error) {
	return nil, nil
}

func (f *fakePeer) BeginDownload(ctx context.Context, candidate peer.SearchCandidate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return "", f.beginErr
	}
	if f.noTransferID {
		return "", nil
	}
	f.nextID++
	return "t-" + strconv.Itoa(f.nextID), nil
}

func (f *fakePeer) ListTransfers(ctx context.Context) ([]peer.TransferEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transfers, f.transferErr
}

func (f *fakePeer) Cancel(ctx context.Context, username, transferID string, remove bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, transferID)
	return nil
}

func (f *fakePeer) SignalCompletionAck(ctx context.Context, username, transferID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks = append(f.acks, transferID)
	return nil
}

type fakeSearcher struct {
	identities []catalog.Identity
}

func (f *fakeSearcher) Search(ctx context.Context, artist, title string, queries []string) ([]catalog.Identity, error) {
	return f.identities, nil
}

func testCandidate(dir string) peer.SearchCandidate {
	return peer.SearchCandidate{
		Username:       "peer1",
		RemoteFilename: `@@music\NightOwl - Faded.flac`,
		SizeBytes:      11,
	}
}

// testEngine builds an engine with synchronous dispatch so completion
// work runs inline and assertions need no sleeps
func testEngine(t *testing.T, fp *fakePeer, searcher match.Searcher, allowUnmatched bool) (*Engine, string, string) {
	t.Helper()
	downloads := t.TempDir()
	library := t.TempDir()

	organizer := organize.NewOrganizer(library)
	organizer.SetTagWriter(func(path string, id *catalog.Identity, artwork []byte) error {
		return nil
	})

	e := New(Config{
		Peer:            fp,
		Matcher:         match.NewEngine(searcher),
		Organizer:       organizer,
		DownloadDir:     downloads,
		AllowUnmatched:  allowUnmatched,
		AcceptanceFloor: 0.8,
	})
	e.dispatch = func(fn func()) { fn() }
	return e, downloads, library
}

func seedDownload(t *testing.T, downloads string) {
	t.Helper()
	path := filepath.Join(downloads, "NightOwl - Faded.flac")
	if err := os.WriteFile(path, []byte("audio-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
}

func matchedIdentity() catalog.Identity {
	return catalog.Identity{
		SourceID:    "trk-1",
		Title:       "Faded",
		Artists:     []string{"NightOwl"},
		AlbumKind:   catalog.AlbumKindSingle,
		TrackNumber: 1,
		TotalTracks: 1,
	}
}

func TestEnqueueAttachesTransferID(t *testing.T) {
	fp := &fakePeer{}
	e, downloads, _ := testEngine(t, fp, &fakeSearcher{}, false)

	id, err := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	snapshot := e.ActiveSnapshot()
	if len(snapshot) != 1 {
		t.Fatalf("snapshot has %d records", len(snapshot))
	}
	rec := snapshot[0]
	if rec.LogicalID != id {
		t.Errorf("logical id mismatch")
	}
	if rec.State != queue.StateDownloading {
		t.Errorf("state = %s, expected downloading", rec.State)
	}
	if rec.RemoteTransferID == "" {
		t.Error("no transfer id attached")
	}
}

func TestEnqueueBeginFailureFailsRecord(t *testing.T) {
	fp := &fakePeer{beginErr: errors.New("daemon rejected")}
	e, downloads, _ := testEngine(t, fp, &fakeSearcher{}, false)

	id, err := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	if !errors.Is(err, util.ErrTransferFailed) {
		t.Errorf("error = %v, expected ErrTransferFailed", err)
	}

	finished, ok := e.queue.FindFinished(id)
	if !ok {
		t.Fatal("failed record not in finished store")
	}
	if finished.State != queue.StateFailed {
		t.Errorf("state = %s", finished.State)
	}
}

func TestCompletionOrganizesAndAcks(t *testing.T) {
	fp := &fakePeer{}
	searcher := &fakeSearcher{identities: []catalog.Identity{matchedIdentity()}}
	e, downloads, library := testEngine(t, fp, searcher, false)
	seedDownload(t, downloads)

	id, err := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.queue.Apply(id, func(r *queue.Record) error {
		return r.Transition(queue.StateCompleted)
	}); err != nil {
		t.Fatal(err)
	}

	finished, ok := e.queue.FindFinished(id)
	if !ok {
		t.Fatal("completed record not finished")
	}
	want := filepath.Join(library, "NightOwl", "NightOwl - Faded", "Faded.flac")
	if finished.OrganizedPath != want {
		t.Errorf("organized path = %q, want %q", finished.OrganizedPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("organized file missing: %v", err)
	}
	if len(fp.acks) != 1 {
		t.Errorf("acks = %v, expected exactly one", fp.acks)
	}
}

func TestCompletionIsExactlyOnce(t *testing.T) {
	fp := &fakePeer{}
	searcher := &fakeSearcher{identities: []catalog.Identity{matchedIdentity()}}
	e, downloads, _ := testEngine(t, fp, searcher, false)
	seedDownload(t, downloads)

	id, err := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	if err != nil {
		t.Fatal(err)
	}
	e.queue.Apply(id, func(r *queue.Record) error {
		return r.Transition(queue.StateCompleted)
	})

	// A second independent observer reports the same completion
	e.completeOne(context.Background(), id)

	if len(fp.acks) != 1 {
		t.Errorf("acks = %d, completion side effects ran more than once", len(fp.acks))
	}
	drained := e.DrainFinished()
	if len(drained) != 1 {
		t.Errorf("finished entries = %d, expected exactly one", len(drained))
	}
}

func TestCompletionBelowFloorWithoutUnmatched(t *testing.T) {
	fp := &fakePeer{}
	e, downloads, _ := testEngine(t, fp, &fakeSearcher{}, false)
	seedDownload(t, downloads)

	id, _ := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	e.queue.Apply(id, func(r *queue.Record) error {
		return r.Transition(queue.StateCompleted)
	})

	finished, ok := e.queue.FindFinished(id)
	if !ok {
		t.Fatal("record not finished")
	}
	if finished.OrganizedPath != "" {
		t.Errorf("unmatched file organized to %q", finished.OrganizedPath)
	}
	if finished.ErrorMessage == "" {
		t.Error("no match failure not surfaced")
	}
	if _, err := os.Stat(filepath.Join(downloads, "NightOwl - Faded.flac")); err != nil {
		t.Error("unmatched file should stay in the download dir")
	}
}

func TestCompletionBelowFloorWithUnmatchedAllowed(t *testing.T) {
	fp := &fakePeer{}
	e, downloads, library := testEngine(t, fp, &fakeSearcher{}, true)
	seedDownload(t, downloads)

	id, _ := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	e.queue.Apply(id, func(r *queue.Record) error {
		return r.Transition(queue.StateCompleted)
	})

	finished, ok := e.queue.FindFinished(id)
	if !ok {
		t.Fatal("record not finished")
	}
	if finished.OrganizedPath == "" {
		t.Fatal("unmatched-allowed completion should organize under parsed names")
	}
	rel, err := filepath.Rel(library, finished.OrganizedPath)
	if err != nil || filepath.IsAbs(rel) {
		t.Errorf("organized outside library: %q", finished.OrganizedPath)
	}
}

func TestPreResolvedSkipsMatching(t *testing.T) {
	fp := &fakePeer{}
	// Searcher returns nothing, so organizing proves resolution was skipped
	e, downloads, _ := testEngine(t, fp, &fakeSearcher{}, false)
	seedDownload(t, downloads)

	desired := matchedIdentity()
	id, _ := e.Enqueue(context.Background(), testCandidate(downloads), &desired)
	e.queue.Apply(id, func(r *queue.Record) error {
		return r.Transition(queue.StateCompleted)
	})

	finished, _ := e.queue.FindFinished(id)
	if finished.OrganizedPath == "" {
		t.Error("pre-resolved completion did not organize")
	}
}

func TestCancelIssuesRemoteCancel(t *testing.T) {
	fp := &fakePeer{}
	e, downloads, _ := testEngine(t, fp, &fakeSearcher{}, false)

	id, _ := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	if err := e.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if len(fp.cancels) != 1 {
		t.Errorf("remote cancels = %v", fp.cancels)
	}
	finished, ok := e.queue.FindFinished(id)
	if !ok || finished.State != queue.StateCancelled {
		t.Errorf("finished = %+v, %v", finished, ok)
	}
}

func TestCancelUsesTransferIDFromObservation(t *testing.T) {
	// The peer accepts the download without an id; the observation
	// loop attaches one later. Cancel must read the id at transition
	// time, not from an earlier snapshot.
	fp := &fakePeer{noTransferID: true}
	e, downloads, _ := testEngine(t, fp, &fakeSearcher{}, false)

	id, err := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.queue.Apply(id, func(r *queue.Record) error {
		r.RemoteTransferID = "t-77"
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := e.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(fp.cancels) != 1 || fp.cancels[0] != "t-77" {
		t.Errorf("remote cancels = %v, expected the attached id", fp.cancels)
	}
}

func TestRetryCreatesFreshRecord(t *testing.T) {
	fp := &fakePeer{beginErr: errors.New("daemon rejected")}
	e, downloads, _ := testEngine(t, fp, &fakeSearcher{}, false)

	failedID, _ := e.Enqueue(context.Background(), testCandidate(downloads), nil)

	fp.mu.Lock()
	fp.beginErr = nil
	fp.mu.Unlock()

	retryID, err := e.Retry(context.Background(), failedID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retryID == failedID {
		t.Error("retry reused the logical id")
	}

	rec, err := e.queue.Get(retryID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != queue.StateDownloading {
		t.Errorf("retried record state = %s", rec.State)
	}

	// The failed record's history is untouched
	original, ok := e.queue.FindFinished(failedID)
	if !ok || original.State != queue.StateFailed {
		t.Errorf("original record disturbed: %+v, %v", original, ok)
	}
}

func TestRetryRejectsNonFailed(t *testing.T) {
	fp := &fakePeer{}
	searcher := &fakeSearcher{identities: []catalog.Identity{matchedIdentity()}}
	e, downloads, _ := testEngine(t, fp, searcher, false)
	seedDownload(t, downloads)

	id, _ := e.Enqueue(context.Background(), testCandidate(downloads), nil)
	e.queue.Apply(id, func(r *queue.Record) error {
		return r.Transition(queue.StateCompleted)
	})

	if _, err := e.Retry(context.Background(), id); err == nil {
		t.Error("retry of a completed record should fail")
	}
}
