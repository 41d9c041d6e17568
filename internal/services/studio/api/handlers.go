// Package api exposes the studio editor HTTP surface.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lumenfoto/backstage/internal/changetracker"
	eventdomain "github.com/lumenfoto/backstage/internal/eventconfig/domain"
	eventservice "github.com/lumenfoto/backstage/internal/eventconfig/service"
	"github.com/lumenfoto/backstage/internal/services/shared/httpx"
)

// editorSessionHeader names the header carrying the editor session id. Each
// open editor tab mints its own id so save indicators never bleed across tabs.
const editorSessionHeader = "X-Editor-Session"

// Handlers serves draft mutation, publish, and save-status endpoints.
type Handlers struct {
	ledger *eventservice.Ledger
	clock  func() time.Time

	mu       sync.Mutex
	trackers map[string]*changetracker.Tracker
}

// NewHandlers creates studio handlers.
func NewHandlers(ledger *eventservice.Ledger) *Handlers {
	return &Handlers{
		ledger:   ledger,
		clock:    time.Now,
		trackers: make(map[string]*changetracker.Tracker),
	}
}

// Register mounts the studio routes on the provided mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/events/{event}/config", h.getRecord)
	mux.HandleFunc("PATCH /api/events/{event}/draft", h.patchDraft)
	mux.HandleFunc("POST /api/events/{event}/publish", h.publish)
	mux.HandleFunc("GET /api/editor/save-status", h.saveStatus)
	mux.HandleFunc("POST /api/editor/reset", h.resetTracker)
}

type recordPayload struct {
	EventID               string              `json:"eventId"`
	Draft                 *eventdomain.Config `json:"draft,omitempty"`
	Published             *eventdomain.Config `json:"published,omitempty"`
	DraftVersion          int64               `json:"draftVersion"`
	PublishedVersion      int64               `json:"publishedVersion"`
	PublishedAt           *time.Time          `json:"publishedAt,omitempty"`
	UpdatedAt             time.Time           `json:"updatedAt"`
	HasUnpublishedChanges bool                `json:"hasUnpublishedChanges"`
}

func toRecordPayload(record eventdomain.Record) recordPayload {
	return recordPayload{
		EventID:               record.EventID,
		Draft:                 record.Draft,
		Published:             record.Published,
		DraftVersion:          record.DraftVersion,
		PublishedVersion:      record.PublishedVersion,
		PublishedAt:           record.PublishedAt,
		UpdatedAt:             record.UpdatedAt,
		HasUnpublishedChanges: record.HasUnpublishedChanges(),
	}
}

func (h *Handlers) getRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.ledger.Get(httpx.RequestContext(r), r.PathValue("event"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, toRecordPayload(record))
}

type patchDraftRequest struct {
	Updates map[string]any `json:"updates"`
}

// patchDraft applies partial field updates to the event's draft. The save is
// bracketed by the tracker so overlapping mutations from one editor collapse
// into a single saving indicator.
func (h *Handlers) patchDraft(w http.ResponseWriter, r *http.Request) {
	var req patchDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	tracker := h.trackerFor(r)
	if tracker != nil {
		tracker.StartSave()
		defer tracker.CompleteSave()
	}

	record, err := h.ledger.MutateDraft(httpx.RequestContext(r), r.PathValue("event"), req.Updates)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, toRecordPayload(record))
}

// publish snapshots the committed draft into the published slot. No tracker
// bracket: publishing is an explicit action with its own button state, not an
// autosave.
func (h *Handlers) publish(w http.ResponseWriter, r *http.Request) {
	record, err := h.ledger.Publish(httpx.RequestContext(r), r.PathValue("event"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, toRecordPayload(record))
}

func (h *Handlers) saveStatus(w http.ResponseWriter, r *http.Request) {
	tracker := h.trackerFor(r)
	if tracker == nil {
		_ = httpx.WriteJSON(w, http.StatusOK, changetracker.State{Status: changetracker.StatusIdle})
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, tracker.Snapshot())
}

// resetTracker clears the editor session's save state. Called when the editor
// navigates away from the event.
func (h *Handlers) resetTracker(w http.ResponseWriter, r *http.Request) {
	editorID := editorSession(r)
	if editorID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.mu.Lock()
	tracker, ok := h.trackers[editorID]
	if ok {
		delete(h.trackers, editorID)
	}
	h.mu.Unlock()
	if ok {
		tracker.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}

// trackerFor returns the tracker for the request's editor session, creating
// one on first use. Requests without an editor session id get no tracker.
func (h *Handlers) trackerFor(r *http.Request) *changetracker.Tracker {
	editorID := editorSession(r)
	if editorID == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	tracker, ok := h.trackers[editorID]
	if !ok {
		tracker = changetracker.New(h.clock)
		h.trackers[editorID] = tracker
	}
	return tracker
}

func editorSession(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(editorSessionHeader))
}
