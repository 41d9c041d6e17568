// Package bbolt provides a BoltDB-backed event configuration store.
//
// Each event's configuration record is one JSON document. bbolt's Update
// transactions serialize writers, which is exactly the atomic
// read-modify-write the draft/publish ledger depends on.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	eventdomain "github.com/lumenfoto/backstage/internal/eventconfig/domain"
	"github.com/lumenfoto/backstage/internal/storage"
	"go.etcd.io/bbolt"
)

const configBucket = "event_config"

// Store provides a BoltDB-backed configuration record store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetRecord fetches a configuration record by event ID.
func (s *Store) GetRecord(ctx context.Context, eventID string) (eventdomain.Record, error) {
	if err := ctx.Err(); err != nil {
		return eventdomain.Record{}, err
	}
	if s == nil || s.db == nil {
		return eventdomain.Record{}, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return eventdomain.Record{}, fmt.Errorf("event id is required")
	}

	var record eventdomain.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(configBucket))
		if bucket == nil {
			return fmt.Errorf("event config bucket is missing")
		}
		payload := bucket.Get(recordKey(eventID))
		if payload == nil {
			return storage.ErrNotFound
		}
		if err := json.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("unmarshal config record: %w", err)
		}
		return nil
	})
	if err != nil {
		return eventdomain.Record{}, err
	}

	return record, nil
}

// UpdateRecord applies mutate to the event's record inside one write
// transaction. The record is re-read at transaction time, never taken from a
// caller-side cache, so a publish concurrent with a draft edit always
// snapshots the committed draft.
func (s *Store) UpdateRecord(ctx context.Context, eventID string, mutate func(*eventdomain.Record) error) (eventdomain.Record, error) {
	if err := ctx.Err(); err != nil {
		return eventdomain.Record{}, err
	}
	if s == nil || s.db == nil {
		return eventdomain.Record{}, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return eventdomain.Record{}, fmt.Errorf("event id is required")
	}
	if mutate == nil {
		return eventdomain.Record{}, fmt.Errorf("mutate func is required")
	}

	var record eventdomain.Record
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(configBucket))
		if bucket == nil {
			return fmt.Errorf("event config bucket is missing")
		}

		record = eventdomain.Record{EventID: eventID}
		if payload := bucket.Get(recordKey(eventID)); payload != nil {
			if err := json.Unmarshal(payload, &record); err != nil {
				return fmt.Errorf("unmarshal config record: %w", err)
			}
		}

		if err := mutate(&record); err != nil {
			return err
		}
		record.EventID = eventID

		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal config record: %w", err)
		}
		return bucket.Put(recordKey(eventID), payload)
	})
	if err != nil {
		return eventdomain.Record{}, err
	}

	return record, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(configBucket))
		if err != nil {
			return fmt.Errorf("create event config bucket: %w", err)
		}
		return nil
	})
}

func recordKey(eventID string) []byte {
	return []byte(eventID)
}

var _ storage.ConfigStore = (*Store)(nil)
