package domain

import (
	"testing"

	apperrors "github.com/lumenfoto/backstage/internal/errors"
)

func TestApplyFieldUpdatesDotPathScalar(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Sharing.Title = "Original"
	cfg.Sharing.Message = "Keep me"

	updated, err := ApplyFieldUpdates(cfg, map[string]any{
		"sharing.title": "New Title",
	})
	if err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	if updated.Sharing.Title != "New Title" {
		t.Fatalf("title = %q, want %q", updated.Sharing.Title, "New Title")
	}
	if updated.Sharing.Message != "Keep me" {
		t.Fatalf("message = %q, want sibling preserved", updated.Sharing.Message)
	}
	if !updated.Sharing.Enabled {
		t.Fatal("enabled flag should survive a partial update")
	}
}

func TestApplyFieldUpdatesObjectDeepMerges(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Theme.PrimaryColor = "#112233"
	cfg.Theme.FontFamily = "Inter"

	updated, err := ApplyFieldUpdates(cfg, map[string]any{
		"theme": map[string]any{"primaryColor": "#ff0066"},
	})
	if err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	if updated.Theme.PrimaryColor != "#ff0066" {
		t.Fatalf("primary color = %q, want %q", updated.Theme.PrimaryColor, "#ff0066")
	}
	if updated.Theme.FontFamily != "Inter" {
		t.Fatalf("font family = %q, want sibling preserved", updated.Theme.FontFamily)
	}
}

func TestApplyFieldUpdatesMultipleKeys(t *testing.T) {
	t.Parallel()

	updated, err := ApplyFieldUpdates(DefaultConfig(), map[string]any{
		"experiences.mainExperienceId":    "exp-main",
		"experiences.pregateExperienceId": "exp-pregate",
		"overlays.showBranding":           false,
	})
	if err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	if updated.Experiences.MainExperienceID != "exp-main" {
		t.Fatalf("main experience = %q", updated.Experiences.MainExperienceID)
	}
	if updated.Experiences.PregateExperienceID != "exp-pregate" {
		t.Fatalf("pregate experience = %q", updated.Experiences.PregateExperienceID)
	}
	if updated.Overlays.ShowBranding {
		t.Fatal("show branding should be disabled")
	}
}

func TestApplyFieldUpdatesRejectsEmptyUpdates(t *testing.T) {
	t.Parallel()

	_, err := ApplyFieldUpdates(DefaultConfig(), nil)
	if !apperrors.IsCode(err, apperrors.CodeConfigInvalidUpdate) {
		t.Fatalf("empty updates error = %v, want code %s", err, apperrors.CodeConfigInvalidUpdate)
	}
}

func TestApplyFieldUpdatesRejectsEmptyPathSegment(t *testing.T) {
	t.Parallel()

	_, err := ApplyFieldUpdates(DefaultConfig(), map[string]any{
		"sharing..title": "broken",
	})
	if !apperrors.IsCode(err, apperrors.CodeConfigEmptyFieldPath) {
		t.Fatalf("empty segment error = %v, want code %s", err, apperrors.CodeConfigEmptyFieldPath)
	}
}

func TestApplyFieldUpdatesDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Theme.PrimaryColor = "#112233"

	if _, err := ApplyFieldUpdates(cfg, map[string]any{
		"theme.primaryColor": "#ff0066",
	}); err != nil {
		t.Fatalf("apply updates: %v", err)
	}
	if cfg.Theme.PrimaryColor != "#112233" {
		t.Fatalf("input config mutated: primary color = %q", cfg.Theme.PrimaryColor)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if !cfg.Sharing.Enabled {
		t.Fatal("sharing should default to enabled")
	}
	if !cfg.Sharing.AllowDownload {
		t.Fatal("download should default to allowed")
	}
	if !cfg.Overlays.ShowBranding {
		t.Fatal("branding should default to shown")
	}
	if cfg.Experiences.MainExperienceID != "" {
		t.Fatal("no experience should be wired by default")
	}
}
