// Package service implements the draft/publish version ledger.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/lumenfoto/backstage/internal/eventconfig/domain"
	"github.com/lumenfoto/backstage/internal/storage"
)

// Ledger coordinates draft mutations and atomic publishes for event
// configuration records.
type Ledger struct {
	store storage.ConfigStore
	clock func() time.Time
}

// NewLedger creates a Ledger with default dependencies.
func NewLedger(store storage.ConfigStore) *Ledger {
	return &Ledger{
		store: store,
		clock: time.Now,
	}
}

// MutateDraft applies partial field updates to an event's draft inside a
// single atomic read-modify-write. A missing draft is lazily initialized to
// defaults, and the draft version increments on every call (1 on the first).
func (l *Ledger) MutateDraft(ctx context.Context, eventID string, updates map[string]any) (domain.Record, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return domain.Record{}, domain.ErrEmptyEventID
	}

	return l.store.UpdateRecord(ctx, eventID, func(record *domain.Record) error {
		draft := domain.DefaultConfig()
		if record.Draft != nil {
			draft = *record.Draft
		}

		next, err := domain.ApplyFieldUpdates(draft, updates)
		if err != nil {
			return err
		}

		record.Draft = &next
		record.DraftVersion++
		record.UpdatedAt = l.clock().UTC()
		return nil
	})
}

// Publish copies the current draft to the published slot and synchronizes
// versions, all in one transaction. The draft is re-read at commit time, so
// publish snapshots whatever draft state is committed at the moment of the
// attempt; a failure rolls the whole record back untouched.
func (l *Ledger) Publish(ctx context.Context, eventID string) (domain.Record, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return domain.Record{}, domain.ErrEmptyEventID
	}

	return l.store.UpdateRecord(ctx, eventID, func(record *domain.Record) error {
		if record.Draft == nil {
			return domain.ErrNoDraftConfigured
		}

		published := *record.Draft
		now := l.clock().UTC()
		record.Published = &published
		record.PublishedVersion = record.DraftVersion
		record.PublishedAt = &now
		record.UpdatedAt = now
		return nil
	})
}

// Get returns the event's configuration record.
func (l *Ledger) Get(ctx context.Context, eventID string) (domain.Record, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return domain.Record{}, domain.ErrEmptyEventID
	}
	return l.store.GetRecord(ctx, eventID)
}
