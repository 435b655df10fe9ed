package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/Nezreka/SoulSync-sub000/internal/peer"
	"github.com/Nezreka/SoulSync-sub000/internal/queue"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// TransferLister is the narrow slice of the peer adapter the loop needs
type TransferLister interface {
	ListTransfers(ctx context.Context) ([]peer.TransferEntry, error)
}

// Config tunes polling behavior
type Config struct {
	// ActiveInterval applies while any record is queued or downloading
	ActiveInterval time.Duration

	// IdleInterval applies when the queue has no live work
	IdleInterval time.Duration

	// GraceThreshold is how many consecutive cycles a record may be
	// absent from the remote transfer list before it fails
	GraceThreshold int
}

// DefaultConfig matches the tuning that works well against a local daemon
func DefaultConfig() Config {
	return Config{
		ActiveInterval: 1 * time.Second,
		IdleInterval:   5 * time.Second,
		GraceThreshold: 3,
	}
}

// Loop drives remote transfer state back into the queue. One fetch per
// cycle covers every active record; per-record requests would hammer
// the daemon at scale.
type Loop struct {
	store  queue.Store
	lister TransferLister
	cfg    Config
}

// NewLoop wires a reconciliation loop over the given store and adapter
func NewLoop(store queue.Store, lister TransferLister, cfg Config) *Loop {
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = DefaultConfig().ActiveInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = DefaultConfig().IdleInterval
	}
	if cfg.GraceThreshold <= 0 {
		cfg.GraceThreshold = DefaultConfig().GraceThreshold
	}
	return &Loop{store: store, lister: lister, cfg: cfg}
}

// Run polls until the context is cancelled. The interval adapts to the
// queue: fast while work is live, slow when idle.
func (l *Loop) Run(ctx context.Context) {
	timer := time.NewTimer(l.cfg.ActiveInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		live := l.Cycle(ctx)

		interval := l.cfg.IdleInterval
		if live > 0 {
			interval = l.cfg.ActiveInterval
		}
		timer.Reset(interval)
	}
}

// Cycle runs one reconciliation pass and returns the number of records
// still live afterwards. A failed remote fetch skips the pass without
// touching any record; transient daemon wobble must not fail downloads.
func (l *Loop) Cycle(ctx context.Context) int {
	snapshot := l.store.ActiveSnapshot()

	var targets []queue.Record
	for _, rec := range snapshot {
		if !rec.State.IsTerminal() {
			targets = append(targets, rec)
		}
	}
	if len(targets) == 0 {
		return 0
	}

	transfers, err := l.lister.ListTransfers(ctx)
	if err != nil {
		util.WarnLog("reconcile: transfer list fetch failed: %v", err)
		return len(targets)
	}

	live := 0
	for _, rec := range targets {
		if l.reconcileOne(rec.LogicalID, transfers) {
			live++
		}
	}
	return live
}

// reconcileOne folds the remote view into one record and reports whether
// it is still live
func (l *Loop) reconcileOne(logicalID string, transfers []peer.TransferEntry) bool {
	live := true
	err := l.store.Apply(logicalID, func(rec *queue.Record) error {
		if rec.State.IsTerminal() {
			live = false
			return nil
		}
		entry, found := matchTransfer(rec, transfers)
		if !found {
			return l.applyMissing(rec, &live)
		}
		rec.MissingPollCount = 0
		if rec.RemoteTransferID == "" && entry.TransferID != "" {
			rec.RemoteTransferID = entry.TransferID
		}
		return l.applyRemoteState(rec, entry, &live)
	})
	if err != nil {
		util.WarnLog("reconcile: %s: %v", logicalID, err)
	}
	return live
}

// matchTransfer finds the remote entry for a record. The transfer id is
// authoritative once known; until the daemon reports one, the record
// falls back to username plus normalized base filename.
func matchTransfer(rec *queue.Record, transfers []peer.TransferEntry) (peer.TransferEntry, bool) {
	if rec.RemoteTransferID != "" {
		for _, t := range transfers {
			if t.TransferID == rec.RemoteTransferID {
				return t, true
			}
		}
		return peer.TransferEntry{}, false
	}

	want := peer.NormalizedBaseName(rec.RemoteFilename)
	for _, t := range transfers {
		if t.Username == rec.Username && peer.NormalizedBaseName(t.RemoteFilename) == want {
			return t, true
		}
	}
	return peer.TransferEntry{}, false
}

func (l *Loop) applyMissing(rec *queue.Record, live *bool) error {
	rec.MissingPollCount++
	if rec.MissingPollCount <= l.cfg.GraceThreshold {
		util.DebugLog("reconcile: %s missing from remote list (%d/%d)",
			rec.LogicalID, rec.MissingPollCount, l.cfg.GraceThreshold)
		return nil
	}

	rec.ErrorMessage = fmt.Sprintf("transfer vanished from remote list after %d polls", rec.MissingPollCount)
	if err := rec.Transition(queue.StateFailed); err != nil {
		return err
	}
	*live = false
	util.WarnLog("reconcile: %s failed: %s", rec.LogicalID, rec.ErrorMessage)
	return nil
}

// applyRemoteState maps a compound remote state string onto the record.
// Success outranks cancellation outranks error when the daemon reports
// several at once.
func (l *Loop) applyRemoteState(rec *queue.Record, entry peer.TransferEntry, live *bool) error {
	switch {
	case entry.IsTerminalSuccess():
		rec.SetProgress(100, entry.BytesTransferred, entry.BytesTotal)
		if err := rec.Transition(queue.StateDownloading); err != nil {
			return err
		}
		if err := rec.Transition(queue.StateCompleted); err != nil {
			return err
		}
		*live = false
		util.InfoLog("reconcile: %s completed (%s)", rec.LogicalID, entry.State)
		return nil

	case entry.IsTerminalCancel():
		if err := rec.Transition(queue.StateCancelled); err != nil {
			return err
		}
		*live = false
		util.InfoLog("reconcile: %s cancelled remotely", rec.LogicalID)
		return nil

	case entry.IsTerminalError():
		rec.ErrorMessage = fmt.Sprintf("remote state %q", entry.State)
		if err := rec.Transition(queue.StateFailed); err != nil {
			return err
		}
		*live = false
		util.WarnLog("reconcile: %s failed: %s", rec.LogicalID, rec.ErrorMessage)
		return nil

	default:
		if rec.State == queue.StateQueued {
			if err := rec.Transition(queue.StateDownloading); err != nil {
				return err
			}
		}
		rec.SetProgress(entry.PercentComplete, entry.BytesTransferred, entry.BytesTotal)
		return nil
	}
}
