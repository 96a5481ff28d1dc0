package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/availability"
)

type AvailabilityHandler struct {
	registry *availability.Registry
	logger   zerolog.Logger
}

type availabilityPayload struct {
	Available   *bool      `json:"available"`
	Capacity    *int       `json:"capacity"`
	WindowStart *time.Time `json:"window_start,omitempty"`
}

func NewAvailabilityHandler(registry *availability.Registry, logger zerolog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		registry: registry,
		logger:   logger.With().Str("handler", "availability").Logger(),
	}
}

func (h *AvailabilityHandler) Update(w http.ResponseWriter, r *http.Request) {
	hostID, ok := callerID(w, r)
	if !ok {
		return
	}
	var payload availabilityPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Available == nil || payload.Capacity == nil {
		http.Error(w, "available and capacity are required", http.StatusBadRequest)
		return
	}
	var window time.Time
	if payload.WindowStart != nil {
		window = *payload.WindowStart
	}

	rec, err := h.registry.SetAvailability(r.Context(), hostID, *payload.Available, *payload.Capacity, window)
	if err != nil {
		writeError(w, h.logger, err, "Failed to update availability")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
