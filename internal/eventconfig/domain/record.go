package domain

import (
	"time"

	apperrors "github.com/lumenfoto/backstage/internal/errors"
)

var (
	// ErrNoDraftConfigured indicates publish was attempted with no draft.
	ErrNoDraftConfigured = apperrors.New(apperrors.CodeConfigNoDraft, "no draft configured")
	// ErrEmptyEventID indicates a missing event ID.
	ErrEmptyEventID = apperrors.New(apperrors.CodeConfigEmptyEventID, "event id is required")
)

// Record holds the draft and published configuration for one event.
//
// Version zero means unset: DraftVersion becomes 1 on the first draft write
// and increments on every draft mutation. PublishedVersion is assigned from
// DraftVersion only by the publish operation, so it never runs ahead of the
// draft version observed at publish time.
type Record struct {
	EventID          string     `json:"eventId"`
	Draft            *Config    `json:"draft,omitempty"`
	Published        *Config    `json:"published,omitempty"`
	DraftVersion     int64      `json:"draftVersion,omitempty"`
	PublishedVersion int64      `json:"publishedVersion,omitempty"`
	PublishedAt      *time.Time `json:"publishedAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// HasUnpublishedChanges reports whether the draft has moved past the last
// published snapshot. Derived, never stored.
func (r Record) HasUnpublishedChanges() bool {
	return r.PublishedVersion == 0 || r.DraftVersion > r.PublishedVersion
}
