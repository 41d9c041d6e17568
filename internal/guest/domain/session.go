// Package domain defines guest session and progress records.
package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/lumenfoto/backstage/internal/errors"
	"github.com/lumenfoto/backstage/internal/platform/id"
)

var (
	// ErrEmptySessionID indicates a missing session ID.
	ErrEmptySessionID = apperrors.New(apperrors.CodeSessionEmptyID, "session id is required")
	// ErrEmptyEventID indicates a missing event ID.
	ErrEmptyEventID = apperrors.New(apperrors.CodeSessionEmptyEventID, "event id is required")
	// ErrEmptyExperienceID indicates a missing experience ID.
	ErrEmptyExperienceID = apperrors.New(apperrors.CodeSessionEmptyExperienceID, "experience id is required")
	// ErrAlreadyLinked indicates a session already carries a main session link.
	ErrAlreadyLinked = apperrors.New(apperrors.CodeSessionAlreadyLinked, "session already linked")
)

// Stage identifies one step of the guest traversal.
type Stage string

const (
	// StagePregate is the optional gate stage run before the main experience.
	StagePregate Stage = "pregate"
	// StageMain is the main experience stage.
	StageMain Stage = "main"
	// StagePreshare is the optional stage run between main and share.
	StagePreshare Stage = "preshare"
	// StageShare is the final share screen.
	StageShare Stage = "share"
	// StageWelcome is the event start screen, used when a deep link is invalid.
	StageWelcome Stage = "welcome"
)

// Session records one guest's traversal of one experience stage.
// Pregate and preshare sessions carry MainSessionID once linked to the main
// session; the main session itself leaves it empty.
type Session struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	WorkspaceID   string    `json:"workspaceId"`
	EventID       string    `json:"eventId"`
	ExperienceID  string    `json:"experienceId"`
	MainSessionID string    `json:"mainSessionId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CreateSessionInput describes the context needed to create a session.
type CreateSessionInput struct {
	ProjectID    string
	WorkspaceID  string
	EventID      string
	ExperienceID string
}

// CreateSession creates a new session with a generated ID and timestamps.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateSessionInput(input)
	if err != nil {
		return Session{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:           sessionID,
		ProjectID:    normalized.ProjectID,
		WorkspaceID:  normalized.WorkspaceID,
		EventID:      normalized.EventID,
		ExperienceID: normalized.ExperienceID,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// NormalizeCreateSessionInput trims and validates session context.
func NormalizeCreateSessionInput(input CreateSessionInput) (CreateSessionInput, error) {
	input.ProjectID = strings.TrimSpace(input.ProjectID)
	input.WorkspaceID = strings.TrimSpace(input.WorkspaceID)
	input.EventID = strings.TrimSpace(input.EventID)
	input.ExperienceID = strings.TrimSpace(input.ExperienceID)
	if input.EventID == "" {
		return CreateSessionInput{}, ErrEmptyEventID
	}
	if input.ExperienceID == "" {
		return CreateSessionInput{}, ErrEmptyExperienceID
	}
	// Project and workspace are optional for single-tenant deployments.
	return input, nil
}
