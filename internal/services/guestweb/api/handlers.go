// Package api exposes the guest-facing HTTP surface.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/lumenfoto/backstage/internal/errors"
	guestdomain "github.com/lumenfoto/backstage/internal/guest/domain"
	guestservice "github.com/lumenfoto/backstage/internal/guest/service"
	"github.com/lumenfoto/backstage/internal/services/guestweb/identity"
	"github.com/lumenfoto/backstage/internal/services/shared/httpx"
)

// handleTTL bounds how long an idle page-instance handle is retained before
// the lazy sweep drops it.
const handleTTL = time.Hour

// Handlers serves guest stage navigation and session endpoints.
type Handlers struct {
	flow     *guestservice.FlowRouter
	sessions *guestservice.Sessions
	identity identity.Config
	clock    func() time.Time

	mu      sync.Mutex
	handles map[string]*handleEntry
}

type handleEntry struct {
	handle   *guestservice.Handle
	lastUsed time.Time
}

// NewHandlers creates guest web handlers.
func NewHandlers(flow *guestservice.FlowRouter, sessions *guestservice.Sessions, identityCfg identity.Config) *Handlers {
	return &Handlers{
		flow:     flow,
		sessions: sessions,
		identity: identityCfg,
		clock:    time.Now,
		handles:  make(map[string]*handleEntry),
	}
}

// Register mounts the guest routes on the provided mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /e/{event}/main", h.mainEntry)
	mux.HandleFunc("POST /e/{event}/main/complete", h.completeMain)
	mux.HandleFunc("GET /e/{event}/preshare", h.preshareEntry)
	mux.HandleFunc("POST /e/{event}/preshare/complete", h.completePreshare)
	mux.HandleFunc("POST /api/sessions/ensure", h.ensureSession)
	mux.HandleFunc("POST /api/sessions/{session}/link", h.linkSession)
	mux.HandleFunc("GET /api/sessions/{session}", h.getSession)
	mux.HandleFunc("GET /api/sessions/{session}/watch", h.watchSession)
	mux.HandleFunc("DELETE /api/pages/{instance}", h.releasePage)
}

type stagePayload struct {
	Stage         guestdomain.Stage `json:"stage"`
	EventID       string            `json:"eventId"`
	ExperienceID  string            `json:"experienceId,omitempty"`
	MainSessionID string            `json:"mainSessionId,omitempty"`
	ReturnTo      string            `json:"returnTo,omitempty"`
}

// mainEntry evaluates the pregate guard on every main stage load.
func (h *Handlers) mainEntry(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("event")
	guestID, err := identity.EnsureGuest(w, r, h.identity)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	requested := strings.TrimSpace(r.URL.Query().Get("experience"))
	decision, err := h.flow.ResolveMainEntry(httpx.RequestContext(r), eventID, guestID, requested)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if decision.Action == guestservice.ActionRedirect {
		httpx.WriteReplaceRedirect(w, r, h.stageLocation(eventID, decision))
		return
	}

	_ = httpx.WriteJSON(w, http.StatusOK, stagePayload{
		Stage:        decision.Stage,
		EventID:      eventID,
		ExperienceID: decision.ExperienceID,
	})
}

type completeMainRequest struct {
	ExperienceID  string `json:"experienceId"`
	WorkspaceID   string `json:"workspaceId"`
	MainSessionID string `json:"mainSessionId"`
}

// completeMain records main completion, then redirects to preshare or share.
// The completion write must commit before any redirect is issued; a failed
// write answers with an error payload so the shell offers a retry.
func (h *Handlers) completeMain(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("event")
	guestID, err := identity.EnsureGuest(w, r, h.identity)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	var req completeMainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	decision, err := h.flow.CompleteMain(httpx.RequestContext(r), eventID, req.WorkspaceID, guestID, req.ExperienceID, req.MainSessionID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteReplaceRedirect(w, r, h.stageLocation(eventID, decision))
}

// preshareEntry guards preshare deep links on every load.
func (h *Handlers) preshareEntry(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("event")
	if _, err := identity.EnsureGuest(w, r, h.identity); err != nil {
		httpx.WriteError(w, err)
		return
	}

	query := r.URL.Query()
	mainSessionID := strings.TrimSpace(query.Get("mainSession"))
	workspaceID := strings.TrimSpace(query.Get("workspace"))

	decision, err := h.flow.ResolvePreshareEntry(httpx.RequestContext(r), eventID, workspaceID, mainSessionID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if decision.Action == guestservice.ActionRedirect {
		httpx.WriteReplaceRedirect(w, r, h.stageLocation(eventID, decision))
		return
	}

	_ = httpx.WriteJSON(w, http.StatusOK, stagePayload{
		Stage:         decision.Stage,
		EventID:       eventID,
		ExperienceID:  decision.ExperienceID,
		MainSessionID: decision.MainSessionID,
	})
}

type completePreshareRequest struct {
	ExperienceID  string `json:"experienceId"`
	MainSessionID string `json:"mainSessionId"`
}

func (h *Handlers) completePreshare(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("event")
	guestID, err := identity.EnsureGuest(w, r, h.identity)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	var req completePreshareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	decision, err := h.flow.CompletePreshare(httpx.RequestContext(r), eventID, guestID, req.ExperienceID, req.MainSessionID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteReplaceRedirect(w, r, h.stageLocation(eventID, decision))
}

type ensureSessionRequest struct {
	InstanceID        string `json:"instanceId"`
	ProjectID         string `json:"projectId"`
	WorkspaceID       string `json:"workspaceId"`
	EventID           string `json:"eventId"`
	ExperienceID      string `json:"experienceId"`
	ExistingSessionID string `json:"existingSessionId"`
}

type sessionPayload struct {
	SessionID string              `json:"sessionId"`
	Session   guestdomain.Session `json:"session"`
	Status    string              `json:"status"`
}

// ensureSession resolves the session for one page instance. Re-renders and
// re-mounts repeat the call with the same instance id and hit the same
// one-shot handle, so a session is created at most once per page instance.
func (h *Handlers) ensureSession(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.EnsureGuest(w, r, h.identity); err != nil {
		httpx.WriteError(w, err)
		return
	}

	var req ensureSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	instanceID := strings.TrimSpace(req.InstanceID)
	if instanceID == "" {
		httpx.WriteJSONError(w, http.StatusBadRequest, "INVALID_BODY", "instance id is required")
		return
	}

	handle := h.handleFor(instanceID)
	session, err := handle.Ensure(httpx.RequestContext(r), guestdomain.CreateSessionInput{
		ProjectID:    req.ProjectID,
		WorkspaceID:  req.WorkspaceID,
		EventID:      req.EventID,
		ExperienceID: req.ExperienceID,
	}, strings.TrimSpace(req.ExistingSessionID))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	_ = httpx.WriteJSON(w, http.StatusOK, sessionPayload{
		SessionID: session.ID,
		Session:   session,
		Status:    "ready",
	})
}

type linkSessionRequest struct {
	InstanceID    string `json:"instanceId"`
	MainSessionID string `json:"mainSessionId"`
}

// linkSession links a pregate or preshare session to its main session.
// Best-effort: the response is accepted even when the link write fails,
// because linking must never block the guest's progression.
func (h *Handlers) linkSession(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.EnsureGuest(w, r, h.identity); err != nil {
		httpx.WriteError(w, err)
		return
	}

	var req linkSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	instanceID := strings.TrimSpace(req.InstanceID)
	if instanceID == "" {
		httpx.WriteJSONError(w, http.StatusBadRequest, "INVALID_BODY", "instance id is required")
		return
	}

	handle := h.handleFor(instanceID)
	handle.LinkToMain(httpx.RequestContext(r), strings.TrimSpace(req.MainSessionID))
	w.WriteHeader(http.StatusAccepted)
}

// getSession returns the current session record. The shell polls this as its
// subscription surface.
func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(httpx.RequestContext(r), r.PathValue("session"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, sessionPayload{
		SessionID: session.ID,
		Session:   session,
		Status:    "ready",
	})
}

// watchSession streams session updates as server-sent events until the
// client disconnects.
func (h *Handlers) watchSession(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(w, apperrors.New(apperrors.CodeUnknown, "streaming unsupported"))
		return
	}

	updates, cancel, err := h.sessions.Subscribe(httpx.RequestContext(r), r.PathValue("session"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			return
		case session, open := <-updates:
			if !open {
				return
			}
			body, err := json.Marshal(session)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// releasePage closes the page instance's handle so late store resolutions
// become no-ops.
func (h *Handlers) releasePage(w http.ResponseWriter, r *http.Request) {
	instanceID := strings.TrimSpace(r.PathValue("instance"))
	h.mu.Lock()
	entry, ok := h.handles[instanceID]
	if ok {
		delete(h.handles, instanceID)
	}
	h.mu.Unlock()
	if ok {
		entry.handle.Close()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleFor(instanceID string) *guestservice.Handle {
	now := h.clock()
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, entry := range h.handles {
		if now.Sub(entry.lastUsed) > handleTTL {
			entry.handle.Close()
			delete(h.handles, key)
		}
	}

	entry, ok := h.handles[instanceID]
	if !ok {
		entry = &handleEntry{handle: h.sessions.NewHandle()}
		h.handles[instanceID] = entry
	}
	entry.lastUsed = now
	return entry.handle
}

// stageLocation renders the URL for a routing decision.
func (h *Handlers) stageLocation(eventID string, decision guestservice.Decision) string {
	params := url.Values{}
	if decision.ExperienceID != "" {
		params.Set("experience", decision.ExperienceID)
	}
	if decision.MainSessionID != "" {
		params.Set("mainSession", decision.MainSessionID)
	}
	if decision.ReturnTo != "" {
		params.Set("returnTo", decision.ReturnTo)
	}

	var path string
	switch decision.Stage {
	case guestdomain.StageWelcome:
		path = fmt.Sprintf("/e/%s", eventID)
	default:
		path = fmt.Sprintf("/e/%s/%s", eventID, decision.Stage)
	}
	if encoded := params.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}
