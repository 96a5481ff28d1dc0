package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/queue"
)

type RequestHandler struct {
	queue  *queue.Queue
	logger zerolog.Logger
}

type requestResponse struct {
	models.Request
	Match *models.Match `json:"match,omitempty"`
}

type createRequestPayload struct {
	Location  string `json:"location"`
	NumGuests int    `json:"num_guests"`
}

func NewRequestHandler(q *queue.Queue, logger zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		queue:  q,
		logger: logger.With().Str("handler", "request").Logger(),
	}
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	studentID, ok := callerID(w, r)
	if !ok {
		return
	}
	var payload createRequestPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	req, err := h.queue.Submit(r.Context(), studentID, payload.Location, payload.NumGuests)
	if err != nil {
		writeError(w, h.logger, err, "Failed to create request")
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, ok := h.ownRequest(w, r)
	if !ok {
		return
	}
	resp := requestResponse{Request: req}
	if req.Status == models.RequestMatched {
		match, err := h.queue.MatchFor(r.Context(), req.ID)
		if err != nil {
			writeError(w, h.logger, err, "Failed to load match")
			return
		}
		resp.Match = &match
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RequestHandler) ListByStudent(w http.ResponseWriter, r *http.Request) {
	studentID, ok := selfFromPath(w, r, "studentID")
	if !ok {
		return
	}
	requests, err := h.queue.ListByStudent(r.Context(), studentID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to list requests")
		return
	}
	if requests == nil {
		requests = []models.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	req, ok := h.ownRequest(w, r)
	if !ok {
		return
	}
	cancelled, err := h.queue.Cancel(r.Context(), req.ID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to cancel request")
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

// ownRequest loads the path's request and checks the caller submitted it.
func (h *RequestHandler) ownRequest(w http.ResponseWriter, r *http.Request) (models.Request, bool) {
	caller, ok := callerID(w, r)
	if !ok {
		return models.Request{}, false
	}
	id := strings.TrimSpace(mux.Vars(r)["requestID"])
	req, err := h.queue.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err, "Failed to load request")
		return models.Request{}, false
	}
	if req.StudentID != caller {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return models.Request{}, false
	}
	return req, true
}

// selfFromPath returns the path id when it names the caller, or writes a 403.
func selfFromPath(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	caller, ok := callerID(w, r)
	if !ok {
		return "", false
	}
	id := strings.TrimSpace(mux.Vars(r)[key])
	if id != caller {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return "", false
	}
	return id, true
}
