package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/match"
	"github.com/Nezreka/SoulSync-sub000/internal/organize"
	"github.com/Nezreka/SoulSync-sub000/internal/peer"
	"github.com/Nezreka/SoulSync-sub000/internal/queue"
	"github.com/Nezreka/SoulSync-sub000/internal/reconcile"
	"github.com/Nezreka/SoulSync-sub000/internal/store"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// Config wires the engine's collaborators
type Config struct {
	Peer      peer.Adapter
	Matcher   *match.Engine
	Organizer *organize.Organizer
	Journal   *store.Store // optional persistent finished log

	DownloadDir     string
	Workers         int
	AcceptanceFloor float64
	AllowUnmatched  bool
	Reconcile       reconcile.Config
}

// Engine is the host-facing facade over the download pipeline: queue
// state machine, reconciliation loop, match resolution and the
// organizer all hang off it.
type Engine struct {
	queue     *queue.MemoryStore
	peer      peer.Adapter
	matcher   *match.Engine
	organizer *organize.Organizer
	journal   *store.Store
	loop      *reconcile.Loop

	downloadDir    string
	floor          float64
	allowUnmatched bool

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	// dispatch hands terminal-record work to the pool; replaced with a
	// synchronous version in tests
	dispatch func(fn func())
}

// New assembles an engine. Start must be called before records flow.
func New(cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.AcceptanceFloor <= 0 {
		cfg.AcceptanceFloor = match.DefaultAcceptanceFloor
	}

	q := queue.NewMemoryStore()

	group := &errgroup.Group{}
	group.SetLimit(cfg.Workers)

	e := &Engine{
		queue:          q,
		peer:           cfg.Peer,
		matcher:        cfg.Matcher,
		organizer:      cfg.Organizer,
		journal:        cfg.Journal,
		downloadDir:    cfg.DownloadDir,
		floor:          cfg.AcceptanceFloor,
		allowUnmatched: cfg.AllowUnmatched,
		group:          group,
	}
	e.loop = reconcile.NewLoop(q, cfg.Peer, cfg.Reconcile)
	e.dispatch = func(fn func()) {
		e.group.Go(func() error {
			fn()
			return nil
		})
	}
	q.SetNotify(e.onTransition)
	return e
}

// Start launches the reconciliation loop. The engine runs until Stop.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)
	go e.loop.Run(e.ctx)
	util.InfoLog("engine started")
}

// Stop halts polling and waits for in-flight completion work to drain
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.group.Wait()
	util.InfoLog("engine stopped")
}

// Enqueue registers a candidate, begins the remote download and returns
// the logical id tracking it. A caller-supplied identity skips match
// resolution at completion time.
func (e *Engine) Enqueue(ctx context.Context, candidate peer.SearchCandidate, desired *catalog.Identity) (string, error) {
	logicalID := uuid.NewString()
	rec := &queue.Record{
		LogicalID:      logicalID,
		Username:       candidate.Username,
		RemoteFilename: candidate.RemoteFilename,
		State:          queue.StateQueued,
		BytesTotal:     candidate.SizeBytes,
		Candidate:      candidate,
		PreResolved:    desired,
	}
	if err := e.queue.Insert(rec); err != nil {
		return "", err
	}

	transferID, err := e.peer.BeginDownload(ctx, candidate)
	if err != nil {
		applyErr := e.queue.Apply(logicalID, func(r *queue.Record) error {
			r.ErrorMessage = fmt.Sprintf("begin download: %v", err)
			return r.Transition(queue.StateFailed)
		})
		if applyErr != nil {
			util.WarnLog("enqueue %s: %v", logicalID, applyErr)
		}
		return logicalID, fmt.Errorf("%w: %v", util.ErrTransferFailed, err)
	}

	err = e.queue.Apply(logicalID, func(r *queue.Record) error {
		r.RemoteTransferID = transferID
		return r.Transition(queue.StateDownloading)
	})
	if err != nil {
		return logicalID, err
	}

	util.InfoLog("enqueued %s from %s as %s", peer.BaseName(candidate.RemoteFilename), candidate.Username, logicalID)
	return logicalID, nil
}

// Cancel moves a record to its terminal cancelled state and issues a
// best-effort remote cancel. Once cancelled, later remote observations
// are ignored.
func (e *Engine) Cancel(ctx context.Context, logicalID string) error {
	// The transfer id is captured under the record lock; an id the
	// observation loop attaches right before the transition still
	// reaches the remote cancel
	var username, transferID string
	if err := e.queue.Apply(logicalID, func(r *queue.Record) error {
		if err := r.Transition(queue.StateCancelled); err != nil {
			return err
		}
		username = r.Username
		transferID = r.RemoteTransferID
		return nil
	}); err != nil {
		return err
	}

	if transferID != "" {
		if err := e.peer.Cancel(ctx, username, transferID, false); err != nil {
			util.WarnLog("remote cancel of %s: %v", logicalID, err)
		}
	}
	return nil
}

// Retry spawns a fresh record from a finished failed one still pending
// drain; once the host drains it, the candidate must be re-searched.
// The original record keeps its history; the new download gets a new
// logical id.
func (e *Engine) Retry(ctx context.Context, logicalID string) (string, error) {
	finished, ok := e.queue.FindFinished(logicalID)
	if !ok {
		return "", fmt.Errorf("%w: %s", util.ErrRecordNotFound, logicalID)
	}
	if finished.State != queue.StateFailed {
		return "", fmt.Errorf("record %s finished as %s, only failed records retry", logicalID, finished.State)
	}
	return e.Enqueue(ctx, finished.Candidate, finished.Identity)
}

// ActiveSnapshot returns read-only copies of the live queue
func (e *Engine) ActiveSnapshot() []queue.Record {
	return e.queue.ActiveSnapshot()
}

// DrainFinished returns and clears finished records
func (e *Engine) DrainFinished() []queue.FinishedRecord {
	return e.queue.DrainFinished()
}

// onTransition reacts to every applied queue mutation. Terminal states
// hand off to the worker pool; the notify callback itself must stay
// cheap because the reconcile loop calls it inline.
func (e *Engine) onTransition(rec queue.Record) {
	switch rec.State {
	case queue.StateCompleted:
		if rec.CompletionClaimed {
			// Already owned by a completion worker; re-dispatching
			// from inside the pool could exhaust it
			return
		}
		e.dispatch(func() { e.completeOne(e.workCtx(), rec.LogicalID) })
	case queue.StateFailed, queue.StateCancelled:
		e.dispatch(func() { e.finalize(rec.LogicalID, "", nil) })
	}
}

func (e *Engine) workCtx() context.Context {
	if e.ctx != nil {
		return e.ctx
	}
	return context.Background()
}

// completeOne runs the completion pipeline: claim, resolve, organize,
// ack, journal. The claim CAS makes the side effects at-most-once no
// matter how many observers report the same completion.
func (e *Engine) completeOne(ctx context.Context, logicalID string) {
	claimed, err := e.queue.ClaimCompletion(logicalID)
	if err != nil {
		util.WarnLog("completion claim %s: %v", logicalID, err)
		return
	}
	if !claimed {
		return
	}

	rec, err := e.queue.Get(logicalID)
	if err != nil {
		util.WarnLog("completion %s: %v", logicalID, err)
		return
	}

	localPath := rec.LocalPath
	if localPath == "" {
		localPath = filepath.Join(e.downloadDir, peer.BaseName(rec.RemoteFilename))
	}

	identity, resolveErr := e.resolveIdentity(ctx, &rec, localPath)

	var organizedPath string
	var failure string
	switch {
	case resolveErr != nil:
		failure = resolveErr.Error()
		util.WarnLog("completion %s: %s, file left at %s", logicalID, failure, localPath)
	default:
		organizedPath, err = e.organizer.Organize(ctx, localPath, identity)
		if err != nil {
			failure = err.Error()
			identity = nil
			util.WarnLog("completion %s: %v", logicalID, err)
		}
	}

	if rec.RemoteTransferID != "" {
		if err := e.peer.SignalCompletionAck(ctx, rec.Username, rec.RemoteTransferID); err != nil {
			util.WarnLog("completion ack %s: %v", logicalID, err)
		}
	}

	if failure != "" {
		e.queue.Apply(logicalID, func(r *queue.Record) error {
			r.ErrorMessage = failure
			return nil
		})
	}
	e.finalize(logicalID, organizedPath, identity)
}

// resolveIdentity picks the canonical identity for a completed download.
// Pre-resolved wins; otherwise the matcher runs and the acceptance
// floor decides. Below the floor the parsed filename substitutes only
// when the caller opted into unmatched organization.
func (e *Engine) resolveIdentity(ctx context.Context, rec *queue.Record, localPath string) (*catalog.Identity, error) {
	if rec.PreResolved != nil {
		return rec.PreResolved, nil
	}

	results, err := e.matcher.Resolve(ctx, rec.Candidate, embeddedTagHints(localPath))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrNoMatchFound, err)
	}

	if best := match.Best(results, e.floor); best != nil {
		return best.Identity, nil
	}

	if !e.allowUnmatched {
		return nil, fmt.Errorf("%w: confidence below %.2f for %s",
			util.ErrNoMatchFound, e.floor, peer.BaseName(rec.RemoteFilename))
	}

	parsed := results[0].Parsed
	identity := &catalog.Identity{
		Title:       parsed.Title,
		AlbumName:   parsed.Album,
		TrackNumber: parsed.Track,
	}
	if parsed.Artist != "" {
		identity.Artists = []string{parsed.Artist}
	}
	return identity, nil
}

// finalize migrates a terminal record into the finished projection and
// journals it. Safe to call more than once; only the first migration
// does anything.
func (e *Engine) finalize(logicalID, organizedPath string, identity *catalog.Identity) {
	if err := e.queue.MoveToFinished(logicalID, organizedPath, identity); err != nil {
		if !isNotFound(err) {
			util.WarnLog("finalize %s: %v", logicalID, err)
		}
		return
	}

	if e.journal == nil {
		return
	}
	finished, ok := e.queue.FindFinished(logicalID)
	if !ok {
		return
	}
	if err := e.journal.AppendFinished(finished); err != nil {
		util.WarnLog("journal %s: %v", logicalID, err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, util.ErrRecordNotFound)
}
