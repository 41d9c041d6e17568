package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	eventdomain "github.com/lumenfoto/backstage/internal/eventconfig/domain"
	"github.com/lumenfoto/backstage/internal/guest/domain"
	"github.com/lumenfoto/backstage/internal/storage"
)

// Action tells the guest shell what to do with a routing decision.
type Action string

const (
	// ActionStay keeps the guest on the requested stage.
	ActionStay Action = "stay"
	// ActionRedirect sends the guest to Decision.Stage instead.
	ActionRedirect Action = "redirect"
)

// Decision is the outcome of evaluating the stage state machine for one page
// load or completion. Redirects always replace history: a completed or
// bypassed stage must not be reachable through the back button.
type Decision struct {
	Action        Action
	Stage         domain.Stage
	ExperienceID  string
	MainSessionID string
	// ReturnTo carries the originally requested experience id through a
	// pregate redirect so the guest lands back where they started.
	ReturnTo string
	Replace  bool
}

func stay(stage domain.Stage, experienceID string) Decision {
	return Decision{Action: ActionStay, Stage: stage, ExperienceID: experienceID}
}

func redirect(stage domain.Stage) Decision {
	return Decision{Action: ActionRedirect, Stage: stage, Replace: true}
}

// FlowRouter sequences pregate, main, preshare, and share using the
// published event configuration and the guest's progress record.
type FlowRouter struct {
	configs     storage.ConfigStore
	progress    storage.ProgressStore
	experiences storage.ExperienceStore
	clock       func() time.Time
	logf        func(format string, args ...any)
}

// NewFlowRouter creates a FlowRouter with default dependencies.
func NewFlowRouter(configs storage.ConfigStore, progress storage.ProgressStore, experiences storage.ExperienceStore) *FlowRouter {
	return &FlowRouter{
		configs:     configs,
		progress:    progress,
		experiences: experiences,
		clock:       time.Now,
		logf:        log.Printf,
	}
}

// ResolveMainEntry decides whether a guest arriving at the main stage may
// enter or must first pass the configured pregate.
func (r *FlowRouter) ResolveMainEntry(ctx context.Context, eventID, guestID, requestedExperienceID string) (Decision, error) {
	cfg, err := r.publishedConfig(ctx, eventID)
	if err != nil {
		return Decision{}, err
	}

	pregateID := strings.TrimSpace(cfg.Experiences.PregateExperienceID)
	if pregateID == "" {
		return stay(domain.StageMain, requestedExperienceID), nil
	}

	progress, err := r.guestProgress(ctx, eventID, guestID)
	if err != nil {
		return Decision{}, err
	}
	if progress.Completed(pregateID) {
		return stay(domain.StageMain, requestedExperienceID), nil
	}

	decision := redirect(domain.StagePregate)
	decision.ExperienceID = pregateID
	decision.ReturnTo = requestedExperienceID
	return decision, nil
}

// CompleteMain marks the main experience complete, then decides the next
// stage. The completion write is durable before any navigation: a write
// failure returns the error and no decision, so the caller surfaces a retry
// instead of advancing optimistically.
func (r *FlowRouter) CompleteMain(ctx context.Context, eventID, workspaceID, guestID, mainExperienceID, mainSessionID string) (Decision, error) {
	mainExperienceID = strings.TrimSpace(mainExperienceID)
	if mainExperienceID == "" {
		return Decision{}, domain.ErrEmptyExperienceID
	}

	if err := r.progress.MarkExperienceComplete(ctx, eventID, guestID, mainExperienceID, r.clock()); err != nil {
		return Decision{}, fmt.Errorf("mark main experience complete: %w", err)
	}

	next, err := r.preshareOrShare(ctx, eventID, workspaceID)
	if err != nil {
		return Decision{}, err
	}
	next.MainSessionID = mainSessionID
	return next, nil
}

// ResolvePreshareEntry guards the preshare stage. A missing main session id
// means an invalid deep link and sends the guest back to the welcome screen;
// a misconfigured preshare skips straight to share.
func (r *FlowRouter) ResolvePreshareEntry(ctx context.Context, eventID, workspaceID, mainSessionID string) (Decision, error) {
	if strings.TrimSpace(mainSessionID) == "" {
		return redirect(domain.StageWelcome), nil
	}

	cfg, err := r.publishedConfig(ctx, eventID)
	if err != nil {
		return Decision{}, err
	}

	preshareID := strings.TrimSpace(cfg.Experiences.PreshareExperienceID)
	runnable, err := r.preshareRunnable(ctx, eventID, workspaceID, preshareID)
	if err != nil {
		return Decision{}, err
	}
	if !runnable {
		decision := redirect(domain.StageShare)
		decision.MainSessionID = mainSessionID
		return decision, nil
	}

	decision := stay(domain.StagePreshare, preshareID)
	decision.MainSessionID = mainSessionID
	return decision, nil
}

// CompletePreshare marks the preshare experience complete and moves the
// guest to share. Like CompleteMain, the write commits before navigation.
func (r *FlowRouter) CompletePreshare(ctx context.Context, eventID, guestID, preshareExperienceID, mainSessionID string) (Decision, error) {
	preshareExperienceID = strings.TrimSpace(preshareExperienceID)
	if preshareExperienceID == "" {
		return Decision{}, domain.ErrEmptyExperienceID
	}
	if strings.TrimSpace(mainSessionID) == "" {
		return redirect(domain.StageWelcome), nil
	}

	if err := r.progress.MarkExperienceComplete(ctx, eventID, guestID, preshareExperienceID, r.clock()); err != nil {
		return Decision{}, fmt.Errorf("mark preshare experience complete: %w", err)
	}

	decision := redirect(domain.StageShare)
	decision.MainSessionID = mainSessionID
	return decision, nil
}

func (r *FlowRouter) logPreshareSkip(eventID, reason string) {
	r.logf("preshare skipped event_id=%s reason=%s", eventID, reason)
}

// preshareOrShare picks the stage that follows main completion.
func (r *FlowRouter) preshareOrShare(ctx context.Context, eventID, workspaceID string) (Decision, error) {
	cfg, err := r.publishedConfig(ctx, eventID)
	if err != nil {
		return Decision{}, err
	}

	preshareID := strings.TrimSpace(cfg.Experiences.PreshareExperienceID)
	runnable, err := r.preshareRunnable(ctx, eventID, workspaceID, preshareID)
	if err != nil {
		return Decision{}, err
	}
	if !runnable {
		return redirect(domain.StageShare), nil
	}

	decision := redirect(domain.StagePreshare)
	decision.ExperienceID = preshareID
	return decision, nil
}

// preshareRunnable reports whether the configured preshare stage can run:
// an experience id is set, the experience exists in the workspace catalog,
// and it has at least one step. Misconfiguration is a non-blocking warning,
// never an error.
func (r *FlowRouter) preshareRunnable(ctx context.Context, eventID, workspaceID, preshareID string) (bool, error) {
	if preshareID == "" {
		r.logPreshareSkip(eventID, "not_configured")
		return false, nil
	}

	experience, err := r.experiences.GetExperience(ctx, workspaceID, preshareID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.logPreshareSkip(eventID, "experience_not_found")
			return false, nil
		}
		return false, err
	}
	if experience.StepCount < 1 {
		r.logPreshareSkip(eventID, "zero_steps")
		return false, nil
	}
	return true, nil
}

// publishedConfig returns the guest-visible configuration. An event that has
// never been published behaves as an empty configuration.
func (r *FlowRouter) publishedConfig(ctx context.Context, eventID string) (eventdomain.Config, error) {
	record, err := r.configs.GetRecord(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return eventdomain.Config{}, nil
		}
		return eventdomain.Config{}, err
	}
	if record.Published == nil {
		return eventdomain.Config{}, nil
	}
	return *record.Published, nil
}

// guestProgress returns the guest's progress, empty before first contact.
func (r *FlowRouter) guestProgress(ctx context.Context, eventID, guestID string) (domain.Progress, error) {
	progress, err := r.progress.GetProgress(ctx, eventID, guestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Progress{EventID: eventID, GuestID: guestID}, nil
		}
		return domain.Progress{}, err
	}
	return progress, nil
}
