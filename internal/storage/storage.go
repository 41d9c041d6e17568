// Package storage defines persistence contracts for backstage records.
package storage

import (
	"context"
	"errors"
	"time"

	eventdomain "github.com/lumenfoto/backstage/internal/eventconfig/domain"
	guestdomain "github.com/lumenfoto/backstage/internal/guest/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// ConfigStore persists event configuration records.
type ConfigStore interface {
	GetRecord(ctx context.Context, eventID string) (eventdomain.Record, error)
	// UpdateRecord runs mutate inside a single serializable read-modify-write
	// so concurrent field edits against the same event cannot lose updates. A
	// missing record is initialized before mutate runs. Any error returned by
	// mutate rolls the whole operation back.
	UpdateRecord(ctx context.Context, eventID string, mutate func(*eventdomain.Record) error) (eventdomain.Record, error)
}

// SessionStore persists guest session records.
type SessionStore interface {
	CreateSession(ctx context.Context, session guestdomain.Session) error
	GetSession(ctx context.Context, sessionID string) (guestdomain.Session, error)
	// LinkSession sets the main session link on a pregate or preshare session.
	// Relinking to the same main session is a no-op; relinking to a different
	// one fails with the domain already-linked error.
	LinkSession(ctx context.Context, sessionID, mainSessionID string, linkedAt time.Time) (guestdomain.Session, error)
}

// ProgressStore persists per-guest experience completion records.
type ProgressStore interface {
	// GetProgress returns ErrNotFound before the guest's first contact.
	GetProgress(ctx context.Context, eventID, guestID string) (guestdomain.Progress, error)
	// MarkExperienceComplete records a completion. Marking the same
	// experience twice is a no-op, never an error.
	MarkExperienceComplete(ctx context.Context, eventID, guestID, experienceID string, completedAt time.Time) error
}

// ExperienceStore persists the workspace experience catalog.
type ExperienceStore interface {
	PutExperience(ctx context.Context, experience guestdomain.Experience) error
	GetExperience(ctx context.Context, workspaceID, experienceID string) (guestdomain.Experience, error)
}
