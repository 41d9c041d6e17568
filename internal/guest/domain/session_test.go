package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCreateSessionGeneratesIDAndTimestamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 12, 10, 0, 0, 0, time.UTC)
	session, err := CreateSession(CreateSessionInput{
		ProjectID:    " proj-1 ",
		WorkspaceID:  "ws-1",
		EventID:      "event-1",
		ExperienceID: "exp-main",
	}, func() time.Time { return now }, func() (string, error) { return "sess-fixed", nil })
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "sess-fixed" {
		t.Fatalf("id = %q, want %q", session.ID, "sess-fixed")
	}
	if session.ProjectID != "proj-1" {
		t.Fatalf("project id = %q, want trimmed", session.ProjectID)
	}
	if !session.CreatedAt.Equal(now) || !session.UpdatedAt.Equal(now) {
		t.Fatalf("timestamps = %v/%v, want %v", session.CreatedAt, session.UpdatedAt, now)
	}
	if session.MainSessionID != "" {
		t.Fatalf("main session id = %q, want empty on create", session.MainSessionID)
	}
}

func TestCreateSessionRequiresEventAndExperience(t *testing.T) {
	t.Parallel()

	_, err := CreateSession(CreateSessionInput{ExperienceID: "exp"}, nil, nil)
	if !errors.Is(err, ErrEmptyEventID) {
		t.Fatalf("missing event error = %v, want %v", err, ErrEmptyEventID)
	}

	_, err = CreateSession(CreateSessionInput{EventID: "event-1"}, nil, nil)
	if !errors.Is(err, ErrEmptyExperienceID) {
		t.Fatalf("missing experience error = %v, want %v", err, ErrEmptyExperienceID)
	}
}

func TestCreateSessionAllowsMissingProjectAndWorkspace(t *testing.T) {
	t.Parallel()

	session, err := CreateSession(CreateSessionInput{
		EventID:      "event-1",
		ExperienceID: "exp-main",
	}, nil, func() (string, error) { return "sess-1", nil })
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ProjectID != "" || session.WorkspaceID != "" {
		t.Fatalf("project/workspace = %q/%q, want empty", session.ProjectID, session.WorkspaceID)
	}
}

func TestCreateSessionPropagatesIDGeneratorError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := CreateSession(CreateSessionInput{
		EventID:      "event-1",
		ExperienceID: "exp-main",
	}, nil, func() (string, error) { return "", boom })
	if !errors.Is(err, boom) {
		t.Fatalf("id generator error = %v, want %v", err, boom)
	}
}

func TestProgressCompleted(t *testing.T) {
	t.Parallel()

	progress := Progress{CompletedExperiences: []string{"exp-a", "exp-b"}}
	if !progress.Completed("exp-a") {
		t.Fatal("exp-a should be completed")
	}
	if progress.Completed("exp-c") {
		t.Fatal("exp-c should not be completed")
	}
	if (Progress{}).Completed("exp-a") {
		t.Fatal("empty progress should complete nothing")
	}
}
