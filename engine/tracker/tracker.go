// Package tracker implements the in-process, per-note fan-out completion
// counter described in spec §4.6. It is a process-wide singleton handed
// out by the dependency container so tests can substitute a fresh one.
package tracker

import (
	"sync"
	"time"
)

// State is the snapshot returned by Check and Increment.
type State struct {
	TotalJobs     int
	CompletedJobs int
	IsComplete    bool

	// JustCompleted is true only on the Increment call that flipped
	// IsComplete from false to true. A duplicate delivery's Increment call
	// lands on an already-complete entry and reports false here, which is
	// what lets SCHEDULE_CATEGORIZATION_AFTER_COMPLETION fire exactly once
	// per note instead of once per redelivered last child.
	JustCompleted bool
}

type entry struct {
	total     int
	completed int
	complete  bool
	updatedAt time.Time
}

// Tracker is a linearizable per-noteId completion counter. A single mutex
// around the map is the spec-sanctioned implementation; per-key locking is
// an allowed optimization this implementation does not need at the scale
// described.
type Tracker struct {
	mu   sync.Mutex
	now  func() time.Time
	rows map[string]*entry
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{now: time.Now, rows: make(map[string]*entry)}
}

// Create overwrites any prior tracker for noteId and resets counters.
func (t *Tracker) Create(noteID string, totalJobs int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[noteID] = &entry{total: totalJobs, completed: 0, complete: totalJobs <= 0, updatedAt: t.now()}
}

// Update sets the absolute completed count. If no tracker exists, one is
// synthesized with totalJobs = completedJobs (isComplete = true) — this is
// the spec's documented absence-as-synthesize asymmetry with Check, kept
// intentionally per SPEC_FULL.md's Open Question decision.
func (t *Tracker) Update(noteID string, completedJobs int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.rows[noteID]
	if !ok {
		t.rows[noteID] = &entry{total: completedJobs, completed: completedJobs, complete: true, updatedAt: t.now()}
		return
	}
	e.completed = completedJobs
	e.complete = e.completed >= e.total
	e.updatedAt = t.now()
}

// Increment adds one to the completed count. A no-op once complete, so
// duplicate at-least-once deliveries can't corrupt the count. If no
// tracker exists, one is synthesized as already complete.
func (t *Tracker) Increment(noteID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.rows[noteID]
	if !ok {
		e = &entry{total: 1, completed: 1, complete: true, updatedAt: t.now()}
		t.rows[noteID] = e
		return stateOf(e)
	}
	if e.complete {
		return stateOf(e)
	}
	e.completed++
	e.complete = e.completed >= e.total
	e.updatedAt = t.now()
	st := stateOf(e)
	st.JustCompleted = e.complete
	return st
}

// Check returns the current state. Absence of a tracker is interpreted as
// "nothing left to wait for": {true, 0, 0}. This is deliberately
// asymmetric with Increment/Update's synthesize-on-absence behavior; see
// SPEC_FULL.md §14 Open Question 1.
func (t *Tracker) Check(noteID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.rows[noteID]
	if !ok {
		return State{IsComplete: true}
	}
	return stateOf(e)
}

// Sweep returns noteIds whose tracker is incomplete and hasn't been
// touched since olderThan ago. Nothing in this module consumes it yet —
// it exists for a future timeout-driven reconciliation pass per spec §7,
// an Open Question the spec raises but does not resolve.
func (t *Tracker) Sweep(olderThan time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-olderThan)
	var stale []string
	for noteID, e := range t.rows {
		if !e.complete && e.updatedAt.Before(cutoff) {
			stale = append(stale, noteID)
		}
	}
	return stale
}

func stateOf(e *entry) State {
	return State{TotalJobs: e.total, CompletedJobs: e.completed, IsComplete: e.complete}
}
