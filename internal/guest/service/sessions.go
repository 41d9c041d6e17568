// Package service orchestrates guest sessions and stage navigation.
package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenfoto/backstage/internal/guest/domain"
	"github.com/lumenfoto/backstage/internal/platform/id"
	"github.com/lumenfoto/backstage/internal/storage"
)

// ErrHandleClosed indicates a session handle was used after its page
// instance went away. Late resolutions against a closed handle are no-ops.
var ErrHandleClosed = errors.New("session handle is closed")

// Sessions creates, resumes, and links guest session records, and fans out
// committed changes to subscribers.
type Sessions struct {
	store       storage.SessionStore
	clock       func() time.Time
	idGenerator func() (string, error)
	logf        func(format string, args ...any)

	mu       sync.Mutex
	watchers map[string]map[int]chan domain.Session
	watchSeq int
}

// NewSessions creates a Sessions service with default dependencies.
func NewSessions(store storage.SessionStore) *Sessions {
	return &Sessions{
		store:       store,
		clock:       time.Now,
		idGenerator: id.NewID,
		logf:        log.Printf,
		watchers:    make(map[string]map[int]chan domain.Session),
	}
}

// Get returns one session record.
func (s *Sessions) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// Subscribe delivers the current session record immediately and again on
// every committed change. The returned cancel func releases the watcher.
func (s *Sessions) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Session, func(), error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	updates := make(chan domain.Session, 8)
	updates <- session

	s.mu.Lock()
	s.watchSeq++
	key := s.watchSeq
	perSession, ok := s.watchers[sessionID]
	if !ok {
		perSession = make(map[int]chan domain.Session)
		s.watchers[sessionID] = perSession
	}
	perSession[key] = updates
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if perSession, ok := s.watchers[sessionID]; ok {
			delete(perSession, key)
			if len(perSession) == 0 {
				delete(s.watchers, sessionID)
			}
		}
	}
	return updates, cancel, nil
}

func (s *Sessions) notify(session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, updates := range s.watchers[session.ID] {
		select {
		case updates <- session:
		default:
			// A slow subscriber keeps only the records it has room for; the
			// next commit delivers fresh state anyway.
		}
	}
}

// NewHandle creates a session handle for one guest page instance.
func (s *Sessions) NewHandle() *Handle {
	return &Handle{sessions: s}
}

// Handle scopes session creation and linking to one page instance.
//
// Reactive shells re-render and re-mount; Ensure and LinkToMain carry
// one-shot guards so repeat invocations cannot create duplicate sessions or
// re-fire the link write.
type Handle struct {
	sessions *Sessions
	closed   atomic.Bool

	mu        sync.Mutex
	ensured   bool
	linkFired bool
	session   domain.Session
}

// Ensure resolves the session for this handle exactly once.
//
// When existingSessionID is present (recovered from a URL), the existing
// record is resumed; a stale or tampered id falls back to creating a fresh
// session rather than stranding the guest. Repeat calls return the memoized
// session. A failed attempt does not latch the guard, so a manual retry can
// attempt creation again.
func (h *Handle) Ensure(ctx context.Context, input domain.CreateSessionInput, existingSessionID string) (domain.Session, error) {
	if h.closed.Load() {
		return domain.Session{}, ErrHandleClosed
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ensured {
		return h.session, nil
	}

	session, err := h.sessions.resolve(ctx, input, existingSessionID)
	if err != nil {
		return domain.Session{}, err
	}

	// The page may have gone away while the store round-trip was in flight;
	// a closed handle must not expose the late result.
	if h.closed.Load() {
		return domain.Session{}, ErrHandleClosed
	}

	h.session = session
	h.ensured = true
	return session, nil
}

// Session returns the resolved session, if Ensure has succeeded.
func (h *Handle) Session() (domain.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session, h.ensured
}

// LinkToMain links this handle's session to the main session at most once,
// even when the triggering condition re-evaluates. Linking is best-effort:
// one in-line retry, then a logged warning; it never blocks the guest's
// progression.
func (h *Handle) LinkToMain(ctx context.Context, mainSessionID string) {
	if h.closed.Load() {
		return
	}

	h.mu.Lock()
	if h.linkFired || !h.ensured {
		h.mu.Unlock()
		return
	}
	h.linkFired = true
	sessionID := h.session.ID
	h.mu.Unlock()

	linked, err := h.sessions.store.LinkSession(ctx, sessionID, mainSessionID, h.sessions.clock())
	if err != nil {
		linked, err = h.sessions.store.LinkSession(ctx, sessionID, mainSessionID, h.sessions.clock())
	}
	if err != nil {
		h.sessions.logf("link session failed session_id=%s main_session_id=%s err=%v", sessionID, mainSessionID, err)
		return
	}
	h.sessions.notify(linked)

	if h.closed.Load() {
		return
	}
	h.mu.Lock()
	h.session = linked
	h.mu.Unlock()
}

// Close marks the handle's page instance as gone. Later resolutions become
// no-ops instead of mutating now-irrelevant state.
func (h *Handle) Close() {
	h.closed.Store(true)
}

func (s *Sessions) resolve(ctx context.Context, input domain.CreateSessionInput, existingSessionID string) (domain.Session, error) {
	if existingSessionID != "" {
		session, err := s.store.GetSession(ctx, existingSessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return domain.Session{}, err
		}
		s.logf("session resume fell back to create session_id=%s event_id=%s", existingSessionID, input.EventID)
	}

	session, err := domain.CreateSession(input, s.clock, s.idGenerator)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.Session{}, err
	}
	s.notify(session)
	return session, nil
}
