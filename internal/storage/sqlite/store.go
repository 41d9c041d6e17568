// Package sqlite provides a SQLite-backed guest storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	guestdomain "github.com/lumenfoto/backstage/internal/guest/domain"
	sqlitemigrate "github.com/lumenfoto/backstage/internal/platform/storage/sqlitemigrate"
	"github.com/lumenfoto/backstage/internal/storage"
	"github.com/lumenfoto/backstage/internal/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists guest sessions, progress, and the experience catalog.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite guest store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateSession inserts one session record.
func (s *Store) CreateSession(ctx context.Context, session guestdomain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID := strings.TrimSpace(session.ID)
	eventID := strings.TrimSpace(session.EventID)
	experienceID := strings.TrimSpace(session.ExperienceID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}
	if experienceID == "" {
		return fmt.Errorf("experience id is required")
	}
	createdAt := session.CreatedAt.UTC()
	updatedAt := session.UpdatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (
		   id,
		   project_id,
		   workspace_id,
		   event_id,
		   experience_id,
		   main_session_id,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		strings.TrimSpace(session.ProjectID),
		strings.TrimSpace(session.WorkspaceID),
		eventID,
		experienceID,
		strings.TrimSpace(session.MainSessionID),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns one session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (guestdomain.Session, error) {
	if err := ctx.Err(); err != nil {
		return guestdomain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return guestdomain.Session{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return guestdomain.Session{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, project_id, workspace_id, event_id, experience_id,
		        main_session_id, created_at, updated_at
		   FROM sessions
		  WHERE id = ?`,
		sessionID,
	)
	return scanSession(row)
}

// LinkSession sets main_session_id on a child session once. Relinking to the
// same main session is idempotent; a conflicting relink fails.
func (s *Store) LinkSession(ctx context.Context, sessionID, mainSessionID string, linkedAt time.Time) (guestdomain.Session, error) {
	if err := ctx.Err(); err != nil {
		return guestdomain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return guestdomain.Session{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	mainSessionID = strings.TrimSpace(mainSessionID)
	if sessionID == "" {
		return guestdomain.Session{}, fmt.Errorf("session id is required")
	}
	if mainSessionID == "" {
		return guestdomain.Session{}, fmt.Errorf("main session id is required")
	}
	if linkedAt.IsZero() {
		linkedAt = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return guestdomain.Session{}, fmt.Errorf("begin link transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT id, project_id, workspace_id, event_id, experience_id,
		        main_session_id, created_at, updated_at
		   FROM sessions
		  WHERE id = ?`,
		sessionID,
	)
	session, err := scanSession(row)
	if err != nil {
		return guestdomain.Session{}, err
	}

	if session.MainSessionID == mainSessionID {
		return session, nil
	}
	if session.MainSessionID != "" {
		return guestdomain.Session{}, guestdomain.ErrAlreadyLinked
	}

	updatedAt := linkedAt.UTC()
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET main_session_id = ?, updated_at = ? WHERE id = ?`,
		mainSessionID,
		toMillis(updatedAt),
		sessionID,
	); err != nil {
		return guestdomain.Session{}, fmt.Errorf("link session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return guestdomain.Session{}, fmt.Errorf("commit link transaction: %w", err)
	}

	session.MainSessionID = mainSessionID
	session.UpdatedAt = updatedAt
	return session, nil
}

// GetProgress aggregates one guest's completion rows for an event.
func (s *Store) GetProgress(ctx context.Context, eventID, guestID string) (guestdomain.Progress, error) {
	if err := ctx.Err(); err != nil {
		return guestdomain.Progress{}, err
	}
	if s == nil || s.sqlDB == nil {
		return guestdomain.Progress{}, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	guestID = strings.TrimSpace(guestID)
	if eventID == "" {
		return guestdomain.Progress{}, fmt.Errorf("event id is required")
	}
	if guestID == "" {
		return guestdomain.Progress{}, fmt.Errorf("guest id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT experience_id, completed_at
		   FROM guest_progress
		  WHERE event_id = ? AND guest_id = ?
		  ORDER BY completed_at ASC`,
		eventID,
		guestID,
	)
	if err != nil {
		return guestdomain.Progress{}, fmt.Errorf("get progress: %w", err)
	}
	defer rows.Close()

	progress := guestdomain.Progress{EventID: eventID, GuestID: guestID}
	for rows.Next() {
		var experienceID string
		var completedAt int64
		if err := rows.Scan(&experienceID, &completedAt); err != nil {
			return guestdomain.Progress{}, fmt.Errorf("get progress: %w", err)
		}
		completed := fromMillis(completedAt)
		if progress.CreatedAt.IsZero() {
			progress.CreatedAt = completed
		}
		progress.UpdatedAt = completed
		progress.CompletedExperiences = append(progress.CompletedExperiences, experienceID)
	}
	if err := rows.Err(); err != nil {
		return guestdomain.Progress{}, fmt.Errorf("get progress: %w", err)
	}
	if len(progress.CompletedExperiences) == 0 {
		return guestdomain.Progress{}, storage.ErrNotFound
	}
	return progress, nil
}

// MarkExperienceComplete records one completion. Repeat marks are no-ops.
func (s *Store) MarkExperienceComplete(ctx context.Context, eventID, guestID, experienceID string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	guestID = strings.TrimSpace(guestID)
	experienceID = strings.TrimSpace(experienceID)
	if eventID == "" {
		return fmt.Errorf("event id is required")
	}
	if guestID == "" {
		return fmt.Errorf("guest id is required")
	}
	if experienceID == "" {
		return fmt.Errorf("experience id is required")
	}
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO guest_progress (event_id, guest_id, experience_id, completed_at)
		 VALUES (?, ?, ?, ?)`,
		eventID,
		guestID,
		experienceID,
		toMillis(completedAt.UTC()),
	)
	if err != nil {
		return fmt.Errorf("mark experience complete: %w", err)
	}
	return nil
}

// PutExperience upserts one catalog entry.
func (s *Store) PutExperience(ctx context.Context, experience guestdomain.Experience) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	workspaceID := strings.TrimSpace(experience.WorkspaceID)
	experienceID := strings.TrimSpace(experience.ID)
	if workspaceID == "" {
		return fmt.Errorf("workspace id is required")
	}
	if experienceID == "" {
		return fmt.Errorf("experience id is required")
	}
	if experience.StepCount < 0 {
		return fmt.Errorf("step count must not be negative")
	}
	createdAt := experience.CreatedAt.UTC()
	updatedAt := experience.UpdatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO experiences (workspace_id, id, name, step_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workspace_id, id) DO UPDATE SET
		   name = excluded.name,
		   step_count = excluded.step_count,
		   updated_at = excluded.updated_at`,
		workspaceID,
		experienceID,
		strings.TrimSpace(experience.Name),
		experience.StepCount,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put experience: %w", err)
	}
	return nil
}

// GetExperience returns one catalog entry.
func (s *Store) GetExperience(ctx context.Context, workspaceID, experienceID string) (guestdomain.Experience, error) {
	if err := ctx.Err(); err != nil {
		return guestdomain.Experience{}, err
	}
	if s == nil || s.sqlDB == nil {
		return guestdomain.Experience{}, fmt.Errorf("storage is not configured")
	}
	workspaceID = strings.TrimSpace(workspaceID)
	experienceID = strings.TrimSpace(experienceID)
	if workspaceID == "" {
		return guestdomain.Experience{}, fmt.Errorf("workspace id is required")
	}
	if experienceID == "" {
		return guestdomain.Experience{}, fmt.Errorf("experience id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT workspace_id, id, name, step_count, created_at, updated_at
		   FROM experiences
		  WHERE workspace_id = ? AND id = ?`,
		workspaceID,
		experienceID,
	)

	var experience guestdomain.Experience
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&experience.WorkspaceID,
		&experience.ID,
		&experience.Name,
		&experience.StepCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return guestdomain.Experience{}, storage.ErrNotFound
		}
		return guestdomain.Experience{}, fmt.Errorf("get experience: %w", err)
	}
	experience.CreatedAt = fromMillis(createdAt)
	experience.UpdatedAt = fromMillis(updatedAt)
	return experience, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (guestdomain.Session, error) {
	var session guestdomain.Session
	var createdAt int64
	var updatedAt int64
	err := row.Scan(
		&session.ID,
		&session.ProjectID,
		&session.WorkspaceID,
		&session.EventID,
		&session.ExperienceID,
		&session.MainSessionID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return guestdomain.Session{}, storage.ErrNotFound
		}
		return guestdomain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	return session, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed")
}

var _ storage.SessionStore = (*Store)(nil)
var _ storage.ProgressStore = (*Store)(nil)
var _ storage.ExperienceStore = (*Store)(nil)
