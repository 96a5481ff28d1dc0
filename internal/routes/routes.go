package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/anywhere-israel/hostmatch/internal/authz"
	"github.com/anywhere-israel/hostmatch/internal/handlers"
	"github.com/anywhere-israel/hostmatch/internal/models"
)

type Handlers struct {
	Auth          *handlers.AuthHandler
	Profile       *handlers.ProfileHandler
	Requests      *handlers.RequestHandler
	Matches       *handlers.MatchHandler
	Availability  *handlers.AvailabilityHandler
	Webhook       *handlers.WebhookHandler
	Notifications *handlers.NotificationHandler
}

// NewRouter sets up the API routes. A non-empty webhookSecret makes the
// WhatsApp webhook require a valid X-Hub-Signature-256.
func NewRouter(h Handlers, tokens *authz.TokenIssuer, webhookSecret string) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public endpoints
	router.HandleFunc("/api/register", h.Auth.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/login", h.Auth.Login).Methods(http.MethodPost)
	router.Handle("/api/webhook/whatsapp", authz.RequireSignature(webhookSecret)(http.HandlerFunc(h.Webhook.WhatsApp))).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authz.Authenticate(tokens))

	student := authz.RequireRole(models.RoleStudent)
	host := authz.RequireRole(models.RoleHost)

	api.HandleFunc("/profile/{accountID}", h.Profile.Get).Methods(http.MethodGet)
	api.HandleFunc("/profile/{accountID}", h.Profile.Update).Methods(http.MethodPut)

	api.Handle("/requests", student(http.HandlerFunc(h.Requests.Create))).Methods(http.MethodPost)
	api.HandleFunc("/requests/student/{studentID}", h.Requests.ListByStudent).Methods(http.MethodGet)
	api.HandleFunc("/requests/{requestID}", h.Requests.Get).Methods(http.MethodGet)
	api.HandleFunc("/requests/{requestID}/cancel", h.Requests.Cancel).Methods(http.MethodPost)

	api.HandleFunc("/matches/{matchID}", h.Matches.Get).Methods(http.MethodGet)
	api.Handle("/matches/{matchID}/confirm/host", host(http.HandlerFunc(h.Matches.ConfirmHost))).Methods(http.MethodPut)
	api.Handle("/matches/{matchID}/confirm/student", student(http.HandlerFunc(h.Matches.ConfirmStudent))).Methods(http.MethodPut)

	api.Handle("/host/availability", host(http.HandlerFunc(h.Availability.Update))).Methods(http.MethodPost)

	api.HandleFunc("/notifications", h.Notifications.List).Methods(http.MethodGet)

	return router
}
