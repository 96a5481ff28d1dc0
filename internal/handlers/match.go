package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/confirmation"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/notification"
)

type MatchHandler struct {
	tracker  *confirmation.Tracker
	notifier notification.Service
	logger   zerolog.Logger
}

type matchResponse struct {
	models.Match
	// ExpiresAt is set while the match is still awaiting confirmation.
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Location  string         `json:"location"`
	NumGuests int            `json:"num_guests"`
	Host      models.Account `json:"host"`
	Student   models.Account `json:"student"`
}

func toMatchResponse(d models.MatchDetails, window time.Duration) matchResponse {
	resp := matchResponse{
		Match:     d.Match,
		Location:  d.Request.Location,
		NumGuests: d.Request.NumGuests,
		Host:      d.Host,
		Student:   d.Student,
	}
	if d.Match.Status == models.MatchAwaiting {
		expires := d.Match.ExpiresAt(window)
		resp.ExpiresAt = &expires
	}
	return resp
}

func NewMatchHandler(tracker *confirmation.Tracker, notifier notification.Service, logger zerolog.Logger) *MatchHandler {
	return &MatchHandler{
		tracker:  tracker,
		notifier: notifier,
		logger:   logger.With().Str("handler", "match").Logger(),
	}
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	details, err := h.tracker.Get(r.Context(), strings.TrimSpace(mux.Vars(r)["matchID"]))
	if err != nil {
		writeError(w, h.logger, err, "Failed to load match")
		return
	}
	if caller != details.Host.ID && caller != details.Student.ID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(details, h.tracker.Window()))
}

func (h *MatchHandler) ConfirmHost(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, models.PartyHost)
}

func (h *MatchHandler) ConfirmStudent(w http.ResponseWriter, r *http.Request) {
	h.confirm(w, r, models.PartyStudent)
}

func (h *MatchHandler) confirm(w http.ResponseWriter, r *http.Request, party models.Party) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	matchID := strings.TrimSpace(mux.Vars(r)["matchID"])
	details, err := h.tracker.Get(r.Context(), matchID)
	if err != nil {
		writeError(w, h.logger, err, "Failed to load match")
		return
	}
	if (party == models.PartyHost && caller != details.Host.ID) ||
		(party == models.PartyStudent && caller != details.Student.ID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var result confirmation.Result
	if party == models.PartyHost {
		result, err = h.tracker.ConfirmHost(r.Context(), matchID)
	} else {
		result, err = h.tracker.ConfirmStudent(r.Context(), matchID)
	}
	if err != nil {
		writeError(w, h.logger, err, "Failed to confirm match")
		return
	}

	if result.Completed {
		if err := h.notifier.NotifyMatchConfirmed(r.Context(), result.Match); err != nil {
			h.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to notify confirmed match")
		}
	}
	writeJSON(w, http.StatusOK, toMatchResponse(result.Match, h.tracker.Window()))
}
