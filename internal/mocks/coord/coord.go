package coord

// Package coord contains simple hand-written test doubles for the coordination ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.RateLimiter       = (*StaticLimiter)(nil)
	_ ports.LeaderLease       = (*ScriptedLease)(nil)
	_ ports.CompletionJournal = (*MemoryJournal)(nil)
)

// StaticLimiter allows the first Budget calls per key, then denies.
type StaticLimiter struct {
	Budget int
	Err    error

	mu    sync.Mutex
	calls map[string]int
}

func (s *StaticLimiter) Allow(_ context.Context, key string) (bool, error) {
	if s.Err != nil {
		return false, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[key]++
	return s.calls[key] <= s.Budget, nil
}

// Calls returns how many times key was checked.
func (s *StaticLimiter) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// ScriptedLease returns the scripted Acquire outcomes in order, repeating the last one.
type ScriptedLease struct {
	Outcomes []bool
	Err      error

	mu       sync.Mutex
	acquires int
	released bool
}

func (l *ScriptedLease) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.Err != nil {
		return false, l.Err
	}
	if len(l.Outcomes) == 0 {
		return true, nil
	}
	idx := min(l.acquires-1, len(l.Outcomes)-1)
	return l.Outcomes[idx], nil
}

func (l *ScriptedLease) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

// Released reports whether Release was called.
func (l *ScriptedLease) Released() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

// MemoryJournal is an in-memory completion journal for unit tests.
type MemoryJournal struct {
	mu      sync.Mutex
	entries map[string]model.JournalEntry
	// RecordErr, when set, is returned by Record.
	RecordErr error
}

// NewMemoryJournal creates an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[string]model.JournalEntry)}
}

func (m *MemoryJournal) Record(_ context.Context, entry model.JournalEntry) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	if entry.ID == "" {
		return errors.New("journal entry id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
	return nil
}

func (m *MemoryJournal) List(context.Context) ([]model.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.JournalEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (m *MemoryJournal) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}
