package queue

import (
	"fmt"
	"time"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/peer"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// State represents the lifecycle of a download record
type State string

const (
	StateQueued      State = "queued"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateCancelled   State = "cancelled"
)

var terminalStates = map[State]struct{}{
	StateCompleted: {},
	StateFailed:    {},
	StateCancelled: {},
}

// IsTerminal reports whether no further reconciliation-driven transition
// applies to this state
func (s State) IsTerminal() bool {
	_, ok := terminalStates[s]
	return ok
}

// legalTransitions is the single place transition legality lives
var legalTransitions = map[State][]State{
	StateQueued:      {StateDownloading, StateFailed, StateCancelled},
	StateDownloading: {StateCompleted, StateFailed, StateCancelled},
}

func canTransition(from, to State) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Record is one logical download owned exclusively by the state machine.
// All mutation flows through Store.Apply; the fields are exported for
// read-only snapshots.
type Record struct {
	LogicalID        string
	RemoteTransferID string // empty until the daemon assigns one
	Username         string
	RemoteFilename   string
	State            State
	ProgressPercent  float64
	BytesTotal       int64
	BytesTransferred int64
	MissingPollCount int
	CompletionClaimed bool
	ErrorMessage     string
	LocalPath        string // local path of the completed file

	// Candidate is retained for retry; PreResolved carries a
	// caller-supplied identity that skips match resolution.
	Candidate   peer.SearchCandidate
	PreResolved *catalog.Identity

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transition moves the record to a new state, enforcing legality.
// Terminal records never transition again, which also gives cancellation
// its precedence: a cancelled record ignores later failed observations.
func (r *Record) Transition(to State) error {
	if r.State == to {
		return nil
	}
	if r.State.IsTerminal() {
		return fmt.Errorf("%w: %s is already %s, cannot become %s",
			util.ErrTerminalState, r.LogicalID, r.State, to)
	}
	if !canTransition(r.State, to) {
		return fmt.Errorf("illegal transition %s -> %s for %s", r.State, to, r.LogicalID)
	}
	r.State = to
	r.UpdatedAt = time.Now()
	return nil
}

// SetProgress updates transfer progress fields together
func (r *Record) SetProgress(percent float64, transferred, total int64) {
	r.ProgressPercent = percent
	r.BytesTransferred = transferred
	if total > 0 {
		r.BytesTotal = total
	}
	r.UpdatedAt = time.Now()
}

// FinishedRecord is the projection a record collapses into once drained
// from the active queue
type FinishedRecord struct {
	LogicalID      string
	State          State
	Username       string
	RemoteFilename string
	ErrorMessage   string
	OrganizedPath  string
	Identity       *catalog.Identity
	Candidate      peer.SearchCandidate
	FinishedAt     time.Time
}
