package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/anywhere-israel/hostmatch/internal/config"
	"github.com/anywhere-israel/hostmatch/internal/models"
)

const defaultWhatsAppAPIURL = "https://graph.facebook.com/v17.0"

// WhatsAppNotifier sends text messages through the WhatsApp Cloud API.
type WhatsAppNotifier struct {
	endpoint    string
	accessToken string
	client      *http.Client
	logger      zerolog.Logger
}

func NewWhatsAppNotifier(cfg config.WhatsAppConfig, client *http.Client, logger zerolog.Logger) (*WhatsAppNotifier, error) {
	phoneNumberID := strings.TrimSpace(cfg.PhoneNumberID)
	if phoneNumberID == "" {
		return nil, fmt.Errorf("phone_number_id is required for whatsapp notifier")
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, fmt.Errorf("access_token is required for whatsapp notifier")
	}
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = defaultWhatsAppAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &WhatsAppNotifier{
		endpoint:    apiURL + "/" + phoneNumberID + "/messages",
		accessToken: cfg.AccessToken,
		client:      client,
		logger:      logger.With().Str("notifier", "whatsapp").Logger(),
	}, nil
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

func (n *WhatsAppNotifier) Notify(ctx context.Context, notif models.Notification) error {
	payload, err := json.Marshal(whatsAppMessage{
		MessagingProduct: "whatsapp",
		To:               notif.Address,
		Type:             "text",
		Text:             whatsAppText{Body: notif.Message},
	})
	if err != nil {
		return errors.Wrap(err, "marshal whatsapp message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build whatsapp request")
	}
	req.Header.Set("Authorization", "Bearer "+n.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send whatsapp message")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("whatsapp api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	n.logger.Info().
		Str("notification_id", notif.ID).
		Str("event_type", string(notif.EventType)).
		Str("to", notif.Address).
		Msg("whatsapp message sent")
	return nil
}

func (n *WhatsAppNotifier) String() string {
	return "WhatsAppNotifier"
}
