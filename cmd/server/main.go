package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/anywhere-israel/hostmatch/internal/accounts"
	"github.com/anywhere-israel/hostmatch/internal/authz"
	"github.com/anywhere-israel/hostmatch/internal/availability"
	"github.com/anywhere-israel/hostmatch/internal/config"
	"github.com/anywhere-israel/hostmatch/internal/confirmation"
	"github.com/anywhere-israel/hostmatch/internal/handlers"
	"github.com/anywhere-israel/hostmatch/internal/jobs"
	"github.com/anywhere-israel/hostmatch/internal/lock"
	"github.com/anywhere-israel/hostmatch/internal/matcher"
	"github.com/anywhere-israel/hostmatch/internal/middleware"
	"github.com/anywhere-israel/hostmatch/internal/migration"
	"github.com/anywhere-israel/hostmatch/internal/notification"
	"github.com/anywhere-israel/hostmatch/internal/queue"
	"github.com/anywhere-israel/hostmatch/internal/repository"
	"github.com/anywhere-israel/hostmatch/internal/repository/memory"
	"github.com/anywhere-israel/hostmatch/internal/routes"
	"github.com/anywhere-israel/hostmatch/internal/temporal"
	"github.com/anywhere-israel/hostmatch/internal/temporal/activities"
	"github.com/anywhere-israel/hostmatch/internal/temporal/workflows"
	jobworker "github.com/anywhere-israel/hostmatch/internal/worker"

	_ "github.com/lib/pq" // PostgreSQL driver
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

type application struct {
	config        *config.Config
	logger        zerolog.Logger
	store         repository.Store
	tokens        *authz.TokenIssuer
	notifications notification.Service
	accounts      *accounts.Service
	registry      *availability.Registry
	tracker       *confirmation.Tracker
	queue         *queue.Queue
	jobs          *jobs.Runner

	closers []func() error
}

func main() {
	configPath := pflag.String("config", "", "path to config.yaml")
	runJob := pflag.String("run-job", "", "run one job (poll-hosts, expire-sweep, run-matching) and exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	log.SetFlags(0)
	log.SetOutput(logger)

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer app.close()

	if *runJob != "" {
		if err := app.runOnce(*runJob); err != nil {
			logger.Error().Err(err).Str("job", *runJob).Msg("Job failed")
			app.close()
			os.Exit(1)
		}
		return
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	stopScheduler, err := app.startScheduler(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	router := app.initRouter()
	loggedRouter := middleware.Logging(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.Server.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	app.startServer(corsHandler, func() {
		stop()
		stopScheduler()
	})

	logger.Info().Msg("Application terminated.")
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
		return zerolog.New(consoleWriter).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newApplication(cfg *config.Config, logger zerolog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		tokens: authz.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	}

	store, err := app.openStore()
	if err != nil {
		app.close()
		return nil, err
	}
	app.store = store

	notifiers, err := app.buildNotifiers()
	if err != nil {
		app.close()
		return nil, err
	}
	app.notifications = notification.NewService(store.Notifications(), logger, cfg.Notification.SendTimeout, notifiers...)

	policy, err := matcher.ParsePolicy(cfg.Matching.Policy)
	if err != nil {
		app.close()
		return nil, err
	}

	locker, err := app.buildLocker()
	if err != nil {
		app.close()
		return nil, err
	}

	app.accounts = accounts.NewService(store.Accounts(), app.tokens, logger)
	app.registry = availability.NewRegistry(store, logger, nil)
	app.tracker = confirmation.NewTracker(store, cfg.Matching.ConfirmationWindow, logger)
	app.queue = queue.New(store, logger)
	app.jobs = jobs.NewRunner(
		store,
		matcher.New(store, policy, logger, nil),
		app.tracker,
		app.notifications,
		locker,
		jobs.Config{Timeout: cfg.Scheduler.JobTimeout, LockTTL: cfg.Redis.LockTTL},
		logger,
		nil,
	)
	return app, nil
}

func (app *application) openStore() (repository.Store, error) {
	if app.config.Database.Driver == "memory" {
		app.logger.Warn().Msg("Using in-memory store; data is lost on restart")
		return memory.New(), nil
	}

	db, err := sql.Open("postgres", app.config.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migration.Run(ctx, db, app.logger); err != nil {
		return nil, err
	}
	return repository.NewPostgresStore(db), nil
}

func (app *application) buildNotifiers() ([]notification.Notifier, error) {
	cfg := app.config.Notification
	var notifiers []notification.Notifier

	if cfg.DevMode {
		notifiers = append(notifiers, notification.NewLogNotifier(app.logger))
	} else {
		wa, err := notification.NewWhatsAppNotifier(cfg.WhatsApp, &http.Client{Timeout: cfg.SendTimeout}, app.logger)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, wa)
	}

	if cfg.NATS.URL != "" {
		nn, err := notification.NewNATSNotifier(cfg.NATS.URL, cfg.NATS.SubjectPrefix, app.logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, nn.Close)
		notifiers = append(notifiers, nn)
	}
	return notifiers, nil
}

func (app *application) buildLocker() (lock.Locker, error) {
	if app.config.Redis.URL == "" {
		return lock.NewLocalLocker(), nil
	}
	opts, err := redis.ParseURL(app.config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	app.closers = append(app.closers, rdb.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	app.logger.Info().Msg("Using Redis job locks")
	return lock.NewRedisLocker(rdb), nil
}

func (app *application) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn().Err(err).Msg("Failed to release resource")
		}
	}
	app.closers = nil
}

func (app *application) runOnce(name string) error {
	job, err := jobs.ParseName(name)
	if err != nil {
		return err
	}
	report, err := app.jobs.Run(context.Background(), job)
	app.logger.Info().
		Str("job", string(job)).
		Int("processed", report.Processed).
		Int("failed", report.Failed).
		Bool("skipped", report.Skipped).
		Msg("Job finished")
	return err
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter() http.Handler {
	if app.config.Notification.WhatsApp.AppSecret == "" {
		app.logger.Warn().Msg("WhatsApp webhook signature check disabled; set notification.whatsapp.app_secret")
	}
	return routes.NewRouter(routes.Handlers{
		Auth:          handlers.NewAuthHandler(app.accounts, app.logger),
		Profile:       handlers.NewProfileHandler(app.accounts, app.logger),
		Requests:      handlers.NewRequestHandler(app.queue, app.logger),
		Matches:       handlers.NewMatchHandler(app.tracker, app.notifications, app.logger),
		Availability:  handlers.NewAvailabilityHandler(app.registry, app.logger),
		Webhook:       handlers.NewWebhookHandler(app.accounts, app.registry, app.notifications, app.logger),
		Notifications: handlers.NewNotificationHandler(app.notifications, app.logger),
	}, app.tokens, app.config.Notification.WhatsApp.AppSecret)
}

// startScheduler starts the configured job driver and returns its stop func.
func (app *application) startScheduler(ctx context.Context) (func(), error) {
	switch app.config.Scheduler.Mode {
	case "temporal":
		return app.startTemporalWorker(ctx)
	case "ticker":
		return app.startTickerWorker(ctx), nil
	default:
		app.logger.Info().Msg("Scheduler disabled")
		return func() {}, nil
	}
}

func (app *application) startTickerWorker(ctx context.Context) func() {
	sc := app.config.Scheduler
	w := jobworker.NewWorker(app.jobs, []jobworker.Schedule{
		{Job: jobs.PollHosts, Interval: sc.PollHosts.Interval},
		{Job: jobs.ExpireSweep, Interval: sc.ExpireSweep.Interval, RunAtStart: true},
		{Job: jobs.RunMatching, Interval: sc.RunMatching.Interval, RunAtStart: true},
	}, app.logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Error().Err(err).Msg("Ticker worker stopped")
		}
	}()
	return func() { <-done }
}

func (app *application) startTemporalWorker(ctx context.Context) (func(), error) {
	tcfg := app.config.Temporal
	temporalClient, err := tc.Dial(tc.Options{
		HostPort:  tcfg.HostPort,
		Namespace: tcfg.Namespace,
		Logger:    temporal.NewZerologAdapter(app.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("create temporal client: %w", err)
	}

	sc := app.config.Scheduler
	err = temporal.EnsureSchedules(ctx, temporalClient, tcfg.TaskQueue, []temporal.JobSchedule{
		{Job: jobs.PollHosts, Cron: sc.PollHosts.Cron},
		{Job: jobs.ExpireSweep, Cron: sc.ExpireSweep.Cron},
		{Job: jobs.RunMatching, Cron: sc.RunMatching.Cron},
	}, app.logger)
	if err != nil {
		temporalClient.Close()
		return nil, err
	}

	w := worker.New(temporalClient, tcfg.TaskQueue, worker.Options{})
	workflows.Register(w, &activities.Activities{Jobs: app.jobs})

	// Start the worker in a goroutine so it doesn't block.
	go func() {
		app.logger.Info().Str("task_queue", tcfg.TaskQueue).Msg("Starting Temporal worker...")
		if err := w.Run(worker.InterruptCh()); err != nil {
			app.logger.Fatal().Err(err).Msg("Unable to start worker")
		}
	}()

	return func() {
		app.logger.Info().Msg("Stopping Temporal worker...")
		w.Stop()
		temporalClient.Close()
		app.logger.Info().Msg("Temporal worker stopped.")
	}, nil
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, stopBackground func()) {
	logger := app.logger
	server := &http.Server{
		Addr:              ":" + app.config.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	stopBackground()
}
