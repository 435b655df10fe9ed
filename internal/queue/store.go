package queue

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Nezreka/SoulSync-sub000/internal/catalog"
	"github.com/Nezreka/SoulSync-sub000/internal/util"
)

// Store is the injectable queue state surface. The reconciliation loop
// and the engine both run against it, so tests can substitute a fake
// with no network behind it.
type Store interface {
	// Insert adds a new record; the logical id must be unique
	Insert(rec *Record) error

	// Get returns a copy of one active record
	Get(logicalID string) (Record, error)

	// Apply runs fn against the live record under its per-record lock
	// and notifies subscribers of the result. This is the single
	// synchronization point for state transitions.
	Apply(logicalID string, fn func(*Record) error) error

	// ActiveSnapshot returns copies of all active records, pollable
	// at any rate
	ActiveSnapshot() []Record

	// ClaimCompletion flips completion_claimed exactly once; only the
	// first caller gets true and may run completion side effects
	ClaimCompletion(logicalID string) (bool, error)

	// MoveToFinished relocates a terminal record into the finished
	// projection and drops it from the active set
	MoveToFinished(logicalID string, organizedPath string, identity *catalog.Identity) error

	// DrainFinished returns and clears the finished projections
	DrainFinished() []FinishedRecord

	// FindFinished looks up a finished record still pending drain.
	// Drained records leave the store; the journal keeps their history.
	FindFinished(logicalID string) (FinishedRecord, bool)

	// ClearAll drops every record, active and finished
	ClearAll()
}

// Notify is invoked after every applied mutation with a copy of the
// record. Long work must not run inside the callback.
type Notify func(rec Record)

type entry struct {
	mu  sync.Mutex
	rec *Record
}

// MemoryStore is the in-memory Store implementation. One mutex per
// logical id serializes transitions without a global lock across records.
type MemoryStore struct {
	mu       sync.RWMutex
	active   map[string]*entry
	finished []FinishedRecord
	notify   Notify
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active: make(map[string]*entry),
	}
}

// SetNotify registers the transition listener. Call before use; not
// safe to swap while records are in flight.
func (s *MemoryStore) SetNotify(fn Notify) {
	s.notify = fn
}

func (s *MemoryStore) Insert(rec *Record) error {
	if rec.LogicalID == "" {
		return fmt.Errorf("record has no logical id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.active[rec.LogicalID]; exists {
		return fmt.Errorf("duplicate logical id %s", rec.LogicalID)
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.active[rec.LogicalID] = &entry{rec: rec}
	return nil
}

func (s *MemoryStore) lookup(logicalID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.active[logicalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrRecordNotFound, logicalID)
	}
	return e, nil
}

func (s *MemoryStore) Get(logicalID string) (Record, error) {
	e, err := s.lookup(logicalID)
	if err != nil {
		return Record{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.rec, nil
}

func (s *MemoryStore) Apply(logicalID string, fn func(*Record) error) error {
	e, err := s.lookup(logicalID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if err := fn(e.rec); err != nil {
		e.mu.Unlock()
		return err
	}
	snapshot := *e.rec
	e.mu.Unlock()

	if s.notify != nil {
		s.notify(snapshot)
	}
	return nil
}

func (s *MemoryStore) ActiveSnapshot() []Record {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.active))
	for _, e := range s.active {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		records = append(records, *e.rec)
		e.mu.Unlock()
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

func (s *MemoryStore) ClaimCompletion(logicalID string) (bool, error) {
	e, err := s.lookup(logicalID)
	if err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.CompletionClaimed {
		return false, nil
	}
	e.rec.CompletionClaimed = true
	e.rec.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) MoveToFinished(logicalID string, organizedPath string, identity *catalog.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.active[logicalID]
	if !ok {
		return fmt.Errorf("%w: %s", util.ErrRecordNotFound, logicalID)
	}

	e.mu.Lock()
	rec := *e.rec
	e.mu.Unlock()

	if !rec.State.IsTerminal() {
		return fmt.Errorf("record %s is %s, only terminal records finish", logicalID, rec.State)
	}

	finished := FinishedRecord{
		LogicalID:      rec.LogicalID,
		State:          rec.State,
		Username:       rec.Username,
		RemoteFilename: rec.RemoteFilename,
		ErrorMessage:   rec.ErrorMessage,
		OrganizedPath:  organizedPath,
		Candidate:      rec.Candidate,
		Identity:       identity,
		FinishedAt:     time.Now(),
	}

	s.finished = append(s.finished, finished)
	delete(s.active, logicalID)
	return nil
}

func (s *MemoryStore) DrainFinished() []FinishedRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.finished
	s.finished = nil
	return drained
}

func (s *MemoryStore) FindFinished(logicalID string) (FinishedRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.finished {
		if f.LogicalID == logicalID {
			return f, true
		}
	}
	return FinishedRecord{}, false
}

func (s *MemoryStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = make(map[string]*entry)
	s.finished = nil
}
