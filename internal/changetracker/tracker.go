// Package changetracker tracks overlapping in-flight editor saves.
//
// A counter, not a boolean: concurrent mutations (a text edit saving while an
// image upload is still writing) must collapse into one "saving" indicator
// without flicker when the first one finishes.
package changetracker

import (
	"sync"
	"time"
)

// SavedWindow is how long the "recently saved" status lasts after the final
// pending save completes. The window is measured against wall-clock time so a
// reader arriving mid-window sees the correct remaining duration.
const SavedWindow = 3 * time.Second

// Status describes the save indicator state exposed to the editor UI.
type Status string

const (
	// StatusIdle indicates no recent or in-flight saves.
	StatusIdle Status = "idle"
	// StatusSaving indicates at least one save is in flight.
	StatusSaving Status = "saving"
	// StatusSaved indicates all saves completed within the saved window.
	StatusSaved Status = "saved"
)

// State is a point-in-time snapshot of tracker state for UI payloads.
type State struct {
	PendingSaves    int        `json:"pendingSaves"`
	LastCompletedAt *time.Time `json:"lastCompletedAt"`
	Status          Status     `json:"status"`
}

// Tracker counts in-flight saves for one editing session. It is owned by a
// single editor instance and never shared across editing sessions.
type Tracker struct {
	mu              sync.Mutex
	clock           func() time.Time
	pending         int
	lastCompletedAt time.Time
}

// New creates a tracker. A nil clock defaults to time.Now.
func New(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{clock: clock}
}

// StartSave records one save entering flight.
func (t *Tracker) StartSave() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending++
}

// CompleteSave records one save leaving flight. The counter is floored at
// zero; an unmatched complete is tolerated rather than treated as an error.
// lastCompletedAt moves only on the transition to exactly zero pending saves.
func (t *Tracker) CompleteSave() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == 0 {
		return
	}
	t.pending--
	if t.pending == 0 {
		t.lastCompletedAt = t.clock()
	}
}

// Reset clears all tracker state. Used when the editor navigates away.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = 0
	t.lastCompletedAt = time.Time{}
}

// PendingSaves returns the current in-flight save count.
func (t *Tracker) PendingSaves() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// LastCompletedAt returns the time the pending count last reached zero.
// The second return is false when no save has completed since the last reset.
func (t *Tracker) LastCompletedAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastCompletedAt.IsZero() {
		return time.Time{}, false
	}
	return t.lastCompletedAt, true
}

// Status derives the save indicator state at the current clock reading.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending > 0 {
		return StatusSaving
	}
	if !t.lastCompletedAt.IsZero() && t.clock().Sub(t.lastCompletedAt) < SavedWindow {
		return StatusSaved
	}
	return StatusIdle
}

// Snapshot returns the full UI-facing state in one locked read.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := State{PendingSaves: t.pending, Status: StatusIdle}
	if !t.lastCompletedAt.IsZero() {
		completed := t.lastCompletedAt
		state.LastCompletedAt = &completed
	}
	switch {
	case t.pending > 0:
		state.Status = StatusSaving
	case !t.lastCompletedAt.IsZero() && t.clock().Sub(t.lastCompletedAt) < SavedWindow:
		state.Status = StatusSaved
	}
	return state
}
