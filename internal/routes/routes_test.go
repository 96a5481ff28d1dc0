package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anywhere-israel/hostmatch/internal/accounts"
	"github.com/anywhere-israel/hostmatch/internal/apperrors"
	"github.com/anywhere-israel/hostmatch/internal/authz"
	"github.com/anywhere-israel/hostmatch/internal/availability"
	"github.com/anywhere-israel/hostmatch/internal/confirmation"
	"github.com/anywhere-israel/hostmatch/internal/handlers"
	"github.com/anywhere-israel/hostmatch/internal/matcher"
	"github.com/anywhere-israel/hostmatch/internal/models"
	"github.com/anywhere-israel/hostmatch/internal/notification"
	"github.com/anywhere-israel/hostmatch/internal/queue"
	"github.com/anywhere-israel/hostmatch/internal/repository/memory"
)

type captureNotifier struct {
	sent []models.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n models.Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

type app struct {
	t        *testing.T
	server   *httptest.Server
	store    *memory.Store
	matcher  *matcher.Matcher
	notifier *captureNotifier
}

func newApp(t *testing.T) *app {
	t.Helper()
	return newAppWithWebhookSecret(t, "")
}

func newAppWithWebhookSecret(t *testing.T, secret string) *app {
	t.Helper()
	log := zerolog.Nop()
	store := memory.New()
	tokens := authz.NewTokenIssuer("test-secret", time.Hour)
	captured := &captureNotifier{}
	notifier := notification.NewService(store.Notifications(), log, time.Second, captured)
	accountSvc := accounts.NewService(store.Accounts(), tokens, log)
	registry := availability.NewRegistry(store, log, nil)
	tracker := confirmation.NewTracker(store, 24*time.Hour, log)

	router := NewRouter(Handlers{
		Auth:          handlers.NewAuthHandler(accountSvc, log),
		Profile:       handlers.NewProfileHandler(accountSvc, log),
		Requests:      handlers.NewRequestHandler(queue.New(store, log), log),
		Matches:       handlers.NewMatchHandler(tracker, notifier, log),
		Availability:  handlers.NewAvailabilityHandler(registry, log),
		Webhook:       handlers.NewWebhookHandler(accountSvc, registry, notifier, log),
		Notifications: handlers.NewNotificationHandler(notifier, log),
	}, tokens, secret)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &app{
		t:        t,
		server:   srv,
		store:    store,
		matcher:  matcher.New(store, matcher.PolicyFirstEligible, log, nil),
		notifier: captured,
	}
}

func (a *app) call(method, path, token string, body interface{}, out interface{}) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *app) signup(name, phone string, role models.Role, location string) (models.Account, string) {
	a.t.Helper()
	var account models.Account
	code := a.call(http.MethodPost, "/api/register", "", accounts.Registration{
		Name: name, Phone: phone, Role: role, Password: "password1", ConfirmPassword: "password1", Location: location,
	}, &account)
	require.Equal(a.t, http.StatusCreated, code)

	var login struct {
		Token string `json:"token"`
	}
	code = a.call(http.MethodPost, "/api/login", "", map[string]string{"phone": phone, "password": "password1"}, &login)
	require.Equal(a.t, http.StatusOK, code)
	return account, login.Token
}

func TestMatchLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)
	host, hostToken := a.signup("Noa", "+972500000001", models.RoleHost, "Tel Aviv")
	student, studentToken := a.signup("Eli", "+972500000002", models.RoleStudent, "")

	assert.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/host/availability", hostToken,
		map[string]interface{}{"available": true, "capacity": 3}, nil))

	var req models.Request
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/requests", studentToken,
		map[string]interface{}{"location": "Tel Aviv", "num_guests": 2}, &req))
	assert.Equal(t, models.RequestPending, req.Status)

	created, err := a.matcher.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, created, 1)
	matchID := created[0].Match.ID
	assert.Equal(t, host.ID, created[0].Match.HostID)

	var got struct {
		models.Match
		ExpiresAt *time.Time `json:"expires_at"`
		Location  string     `json:"location"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/matches/"+matchID, studentToken, nil, &got))
	assert.Equal(t, "Tel Aviv", got.Location)
	assert.Equal(t, models.MatchAwaiting, got.Status)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, got.CreatedAt.Add(24*time.Hour), *got.ExpiresAt, time.Second)

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPut, "/api/matches/"+matchID+"/confirm/host", studentToken, nil, nil))

	require.Equal(t, http.StatusOK, a.call(http.MethodPut, "/api/matches/"+matchID+"/confirm/host", hostToken, nil, &got))
	assert.Equal(t, models.MatchAwaiting, got.Status)
	got.ExpiresAt = nil
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, "/api/matches/"+matchID+"/confirm/student", studentToken, nil, &got))
	assert.Equal(t, models.MatchConfirmed, got.Status)
	assert.Nil(t, got.ExpiresAt)

	var list struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/notifications", studentToken, nil, &list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, models.NotificationMatchConfirmed, list.Notifications[0].EventType)

	var stored struct {
		models.Request
		Match *models.Match `json:"match"`
	}
	require.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/requests/"+req.ID, studentToken, nil, &stored))
	assert.Equal(t, models.RequestMatched, stored.Status)
	require.NotNil(t, stored.Match)
	assert.Equal(t, matchID, stored.Match.ID)
	assert.Equal(t, models.MatchConfirmed, stored.Match.Status)
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPost, "/api/requests/"+req.ID+"/cancel", studentToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/api/requests/student/"+host.ID, studentToken, nil, nil))
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/api/requests/student/"+student.ID, studentToken, nil, nil))
}

func TestConfirmExpiredMatchIsConflict(t *testing.T) {
	a := newApp(t)
	_, hostToken := a.signup("Noa", "+1", models.RoleHost, "Haifa")
	student, _ := a.signup("Eli", "+2", models.RoleStudent, "")
	ctx := context.Background()

	req, err := a.store.Requests().CreateRequest(ctx, models.Request{StudentID: student.ID, Location: "Haifa", NumGuests: 1})
	require.NoError(t, err)
	host, err := a.store.Accounts().GetAccountByPhone(ctx, "+1")
	require.NoError(t, err)
	m, err := a.store.Matches().CreateMatch(ctx, req.ID, host.ID, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	_, err = a.store.Matches().ExpireStale(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, a.call(http.MethodPut, "/api/matches/"+m.ID+"/confirm/host", hostToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodPut, "/api/matches/missing/confirm/host", hostToken, nil, nil))
}

func TestValidationAndAuth(t *testing.T) {
	a := newApp(t)
	_, hostToken := a.signup("Noa", "+1", models.RoleHost, "Haifa")
	_, studentToken := a.signup("Eli", "+2", models.RoleStudent, "")

	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodGet, "/api/notifications", "", nil, nil))
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/api/requests", hostToken,
		map[string]interface{}{"location": "Haifa", "num_guests": 1}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/requests", studentToken,
		map[string]interface{}{"location": "Haifa", "num_guests": 0}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/host/availability", hostToken,
		map[string]interface{}{"available": true, "capacity": -1}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/host/availability", hostToken,
		map[string]interface{}{"available": true}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/host/availability", hostToken,
		map[string]interface{}{"available": true, "capacity": 3000000000}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/host/availability", hostToken,
		map[string]interface{}{"available": true, "capacity": 2, "window_start": "2020-01-06T00:00:00Z"}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/webhook/whatsapp", "",
		map[string]string{"phone": "+1", "message": "yes 99999"}, nil))
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPost, "/api/register", "", accounts.Registration{
		Name: "Dup", Phone: "+1", Role: models.RoleHost, Password: "password1", ConfirmPassword: "password1",
	}, nil))
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodPost, "/api/login", "",
		map[string]string{"phone": "+1", "password": "nope-nope"}, nil))
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, "/health", "", nil, nil))
}

func TestProfileSelfOnly(t *testing.T) {
	a := newApp(t)
	host, hostToken := a.signup("Noa", "+1", models.RoleHost, "Haifa")
	student, _ := a.signup("Eli", "+2", models.RoleStudent, "")

	var updated models.Account
	require.Equal(t, http.StatusOK, a.call(http.MethodPut, "/api/profile/"+host.ID, hostToken,
		map[string]string{"about_me": "Two spare rooms"}, &updated))
	assert.Equal(t, "Two spare rooms", updated.AboutMe)
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/api/profile/"+student.ID, hostToken, nil, nil))
}

func TestWhatsAppWebhook(t *testing.T) {
	a := newApp(t)
	host, _ := a.signup("Noa", "+972500000001", models.RoleHost, "Tel Aviv")
	a.signup("Eli", "+972500000002", models.RoleStudent, "")
	ctx := context.Background()

	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/webhook/whatsapp", "",
		map[string]string{"phone": "+972500000001", "message": "Yes 3"}, nil))
	rec, err := a.store.Availability().GetLatestAvailability(ctx, host.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, rec.Available)
	assert.Equal(t, 3, rec.Capacity)
	require.NotEmpty(t, a.notifier.sent)
	assert.Equal(t, notification.ReplyAvailableText, a.notifier.sent[len(a.notifier.sent)-1].Message)

	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/webhook/whatsapp", "",
		map[string]string{"phone": "+972500000001", "message": "what?"}, nil))
	assert.Equal(t, notification.ReplyHelpText, a.notifier.sent[len(a.notifier.sent)-1].Message)

	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/webhook/whatsapp", "",
		map[string]string{"phone": "+972500000002", "message": "yes"}, nil))
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/api/webhook/whatsapp", "",
		map[string]string{"phone": "+000", "message": "yes"}, nil))
}

func TestWhatsAppWebhookSignature(t *testing.T) {
	a := newAppWithWebhookSecret(t, "app-secret")
	host, _ := a.signup("Noa", "+972500000001", models.RoleHost, "Tel Aviv")

	body := []byte(`{"phone":"+972500000001","message":"yes 2"}`)
	send := func(sig string) int {
		req, err := http.NewRequest(http.MethodPost, a.server.URL+"/api/webhook/whatsapp", bytes.NewReader(body))
		require.NoError(t, err)
		if sig != "" {
			req.Header.Set(authz.SignatureHeader, sig)
		}
		resp, err := a.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send(authz.Sign("wrong", body)))
	_, err := a.store.Availability().GetLatestAvailability(context.Background(), host.ID, time.Now())
	assert.True(t, apperrors.IsNotFound(err), "unsigned replies change nothing")

	assert.Equal(t, http.StatusOK, send(authz.Sign("app-secret", body)))
	rec, err := a.store.Availability().GetLatestAvailability(context.Background(), host.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, rec.Available)
	assert.Equal(t, 2, rec.Capacity)
}
