package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventdomain "github.com/lumenfoto/backstage/internal/eventconfig/domain"
	"github.com/lumenfoto/backstage/internal/guest/domain"
	"github.com/lumenfoto/backstage/internal/storage"
)

// fakeSessionStore is an in-memory session store with injectable failures.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session

	createCalls int
	createErr   error
	getErr      error
	linkCalls   int
	// linkFailures fails that many link attempts before succeeding.
	linkFailures int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]domain.Session)}
}

func (f *fakeSessionStore) CreateSession(_ context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.sessions[session.ID]; ok {
		return storage.ErrAlreadyExists
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Session{}, f.getErr
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) LinkSession(_ context.Context, sessionID, mainSessionID string, linkedAt time.Time) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls++
	if f.linkFailures > 0 {
		f.linkFailures--
		return domain.Session{}, fmt.Errorf("transient link failure")
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	if session.MainSessionID == mainSessionID {
		return session, nil
	}
	if session.MainSessionID != "" {
		return domain.Session{}, domain.ErrAlreadyLinked
	}
	session.MainSessionID = mainSessionID
	session.UpdatedAt = linkedAt.UTC()
	f.sessions[sessionID] = session
	return session, nil
}

var _ storage.SessionStore = (*fakeSessionStore)(nil)

// fakeConfigStore serves one published configuration per event.
type fakeConfigStore struct {
	mu      sync.Mutex
	records map[string]eventdomain.Record
	getErr  error
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{records: make(map[string]eventdomain.Record)}
}

func (f *fakeConfigStore) setPublished(eventID string, cfg eventdomain.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := f.records[eventID]
	record.EventID = eventID
	record.Published = &cfg
	f.records[eventID] = record
}

func (f *fakeConfigStore) GetRecord(_ context.Context, eventID string) (eventdomain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return eventdomain.Record{}, f.getErr
	}
	record, ok := f.records[eventID]
	if !ok {
		return eventdomain.Record{}, storage.ErrNotFound
	}
	return record, nil
}

func (f *fakeConfigStore) UpdateRecord(_ context.Context, eventID string, mutate func(*eventdomain.Record) error) (eventdomain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[eventID]
	if !ok {
		record = eventdomain.Record{EventID: eventID}
	}
	if err := mutate(&record); err != nil {
		return eventdomain.Record{}, err
	}
	f.records[eventID] = record
	return record, nil
}

var _ storage.ConfigStore = (*fakeConfigStore)(nil)

// fakeProgressStore tracks completions in memory with injectable failures.
type fakeProgressStore struct {
	mu        sync.Mutex
	completed map[string][]string
	markErr   error
	markCalls int
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{completed: make(map[string][]string)}
}

func progressKey(eventID, guestID string) string {
	return eventID + "/" + guestID
}

func (f *fakeProgressStore) GetProgress(_ context.Context, eventID, guestID string) (domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	experiences, ok := f.completed[progressKey(eventID, guestID)]
	if !ok {
		return domain.Progress{}, storage.ErrNotFound
	}
	return domain.Progress{
		EventID:              eventID,
		GuestID:              guestID,
		CompletedExperiences: append([]string(nil), experiences...),
	}, nil
}

func (f *fakeProgressStore) MarkExperienceComplete(_ context.Context, eventID, guestID, experienceID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return f.markErr
	}
	key := progressKey(eventID, guestID)
	for _, existing := range f.completed[key] {
		if existing == experienceID {
			return nil
		}
	}
	f.completed[key] = append(f.completed[key], experienceID)
	return nil
}

var _ storage.ProgressStore = (*fakeProgressStore)(nil)

// fakeExperienceStore serves a fixed workspace catalog.
type fakeExperienceStore struct {
	mu          sync.Mutex
	experiences map[string]domain.Experience
	getErr      error
}

func newFakeExperienceStore() *fakeExperienceStore {
	return &fakeExperienceStore{experiences: make(map[string]domain.Experience)}
}

func experienceKey(workspaceID, experienceID string) string {
	return workspaceID + "/" + experienceID
}

func (f *fakeExperienceStore) PutExperience(_ context.Context, experience domain.Experience) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.experiences[experienceKey(experience.WorkspaceID, experience.ID)] = experience
	return nil
}

func (f *fakeExperienceStore) GetExperience(_ context.Context, workspaceID, experienceID string) (domain.Experience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.Experience{}, f.getErr
	}
	experience, ok := f.experiences[experienceKey(workspaceID, experienceID)]
	if !ok {
		return domain.Experience{}, storage.ErrNotFound
	}
	return experience, nil
}

var _ storage.ExperienceStore = (*fakeExperienceStore)(nil)
