package changetracker

import (
	"sync"
	"time"
)

// DefaultToggleQuiet is the quiet period for toggle-like field edits.
const DefaultToggleQuiet = 300 * time.Millisecond

// Debouncer coalesces a burst of edits into a single commit after a quiet
// period. Each Trigger call replaces the pending commit and restarts the
// timer. Stop cancels the pending commit so a torn-down editor never fires a
// commit against a context that no longer exists.
type Debouncer struct {
	mu      sync.Mutex
	quiet   time.Duration
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the provided quiet period. A
// non-positive duration falls back to DefaultToggleQuiet.
func NewDebouncer(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultToggleQuiet
	}
	return &Debouncer{quiet: quiet}
}

// Trigger schedules commit to run after the quiet period, replacing any
// previously scheduled commit.
func (d *Debouncer) Trigger(commit func()) {
	if commit == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
		commit()
	})
}

// Stop cancels any pending commit and rejects future triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
