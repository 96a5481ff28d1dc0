package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/accounts"
	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/availability"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/notification"
)

// WebhookHandler receives hosts' replies to the weekly availability question.
type WebhookHandler struct {
	accounts *accounts.Service
	registry *availability.Registry
	notifier notification.Service
	logger   zerolog.Logger
}

type inboundMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func NewWebhookHandler(svc *accounts.Service, registry *availability.Registry, notifier notification.Service, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		accounts: svc,
		registry: registry,
		notifier: notifier,
		logger:   logger.With().Str("handler", "webhook").Logger(),
	}
}

func (h *WebhookHandler) WhatsApp(w http.ResponseWriter, r *http.Request) {
	var msg inboundMessage
	if !decodeJSON(w, r, &msg) {
		return
	}
	msg.Phone = strings.TrimSpace(msg.Phone)
	if msg.Phone == "" {
		http.Error(w, "phone is required", http.StatusBadRequest)
		return
	}

	host, err := h.accounts.ByPhone(r.Context(), msg.Phone)
	if apperrors.IsNotFound(err) || (err == nil && host.Role != models.RoleHost) {
		http.Error(w, "Host not found", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, h.logger, err, "Failed to resolve sender")
		return
	}

	reply := availability.ParseReply(msg.Message)
	text := notification.ReplyHelpText
	switch reply.Kind {
	case availability.ReplyYes, availability.ReplyNo:
		if _, err := h.registry.ApplyReply(r.Context(), host.ID, reply); err != nil {
			writeError(w, h.logger, err, "Failed to record availability")
			return
		}
		text = notification.ReplyAvailableText
		if reply.Kind == availability.ReplyNo {
			text = notification.ReplyUnavailableText
		}
	}

	if err := h.notifier.Reply(r.Context(), host, text); err != nil {
		h.logger.Warn().Err(err).Str("host_id", host.ID).Msg("failed to send webhook reply")
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Response received"})
}
