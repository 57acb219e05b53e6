package memstore

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/oofurkan/CncMachineTracker/internal/domain"
	"github.com/oofurkan/CncMachineTracker/internal/ports"
)

// Store keeps every machine's snapshot and recent history in memory.
//
// Each machine owns one record guarding its (snapshot, history) pair, so a
// commit replaces both under a single lock and readers never see them torn.
// The outer lock only protects the id -> record index.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record

	retention ports.RetentionPolicy
	now       func() time.Time
	listeners []ports.CommitListener
}

type record struct {
	mu       sync.Mutex
	snapshot domain.MachineState
	history  []domain.Sample
}

// Option customizes a Store.
type Option func(*Store)

// WithRetention overrides the default 60 minute / 10 sample policy.
func WithRetention(p ports.RetentionPolicy) Option {
	return func(s *Store) {
		if p.Horizon > 0 {
			s.retention.Horizon = p.Horizon
		}
		if p.Floor > 0 {
			s.retention.Floor = p.Floor
		}
	}
}

// WithClock replaces time.Now for window and retention cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCommitListener registers fn to run after every successful Upsert.
func WithCommitListener(fn ports.CommitListener) Option {
	return func(s *Store) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		records:   make(map[string]*record),
		retention: ports.DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) GetAll() []domain.MachineState {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	out := make([]domain.MachineState, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		out = append(out, r.snapshot)
		r.mu.Unlock()
	}
	return out
}

func (s *Store) GetLatest(id string) (domain.MachineState, bool) {
	r := s.lookup(id)
	if r == nil {
		return domain.MachineState{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot, true
}

// GetHistory returns samples no older than window and not in the future,
// newest first. Unknown ids yield an empty slice.
func (s *Store) GetHistory(id string, window time.Duration) []domain.Sample {
	out := []domain.Sample{}
	r := s.lookup(id)
	if r == nil {
		return out
	}

	now := s.now().UTC()
	cutoff := now.Add(-window)

	r.mu.Lock()
	for i := len(r.history) - 1; i >= 0; i-- {
		smp := r.history[i]
		if smp.Timestamp.Before(cutoff) || smp.Timestamp.After(now) {
			continue
		}
		out = append(out, smp)
	}
	r.mu.Unlock()

	sortNewestFirst(out)
	return out
}

// Upsert replaces the snapshot for snapshot.ID and appends sample to its
// history as one unit, then trims the history per the retention policy.
func (s *Store) Upsert(snapshot domain.MachineState, sample domain.Sample) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	if sample.MachineID != snapshot.ID {
		return fmt.Errorf("%w: sample for %q committed with snapshot %q", domain.ErrInvalidState, sample.MachineID, snapshot.ID)
	}

	r := s.recordFor(snapshot.ID, snapshot)

	r.mu.Lock()
	r.snapshot = snapshot
	r.history = append(r.history, sample)
	r.history = s.trim(r.history)
	r.mu.Unlock()

	for _, fn := range s.listeners {
		fn(sample)
	}
	return nil
}

// EnsureExists registers id with initial as its snapshot and an empty history.
// An existing machine is left untouched.
func (s *Store) EnsureExists(id string, initial domain.MachineState) error {
	if initial.ID != id {
		return fmt.Errorf("%w: initial snapshot for %q carries id %q", domain.ErrInvalidState, id, initial.ID)
	}
	if err := initial.Validate(); err != nil {
		return err
	}
	s.recordFor(id, initial)
	return nil
}

// Len reports how many samples are retained for id, regardless of age.
func (s *Store) Len(id string) int {
	r := s.lookup(id)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

func (s *Store) lookup(id string) *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id]
}

// recordFor returns the record for id, creating it with initial when absent.
func (s *Store) recordFor(id string, initial domain.MachineState) *record {
	if r := s.lookup(id); r != nil {
		return r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return r
	}
	r := &record{snapshot: initial, history: make([]domain.Sample, 0, s.retention.Floor)}
	s.records[id] = r
	return r
}

// trim drops samples older than the horizon unless that would leave fewer
// than Floor samples out of at least Floor; then the newest Floor survive.
func (s *Store) trim(history []domain.Sample) []domain.Sample {
	cutoff := s.now().UTC().Add(-s.retention.Horizon)

	kept := make([]domain.Sample, 0, len(history))
	for _, smp := range history {
		if !smp.Timestamp.Before(cutoff) {
			kept = append(kept, smp)
		}
	}

	floor := s.retention.Floor
	if len(kept) < floor && len(history) >= floor {
		newest := make([]domain.Sample, 0, len(history))
		for i := len(history) - 1; i >= 0; i-- {
			newest = append(newest, history[i])
		}
		sortNewestFirst(newest)
		newest = newest[:floor]
		slices.Reverse(newest)
		return newest
	}
	return kept
}

// sortNewestFirst expects samples in reverse commit order so that equal
// timestamps keep the most recent commit first.
func sortNewestFirst(samples []domain.Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.After(samples[j].Timestamp)
	})
}

var _ ports.MachineStore = (*Store)(nil)
