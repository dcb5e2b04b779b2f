package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"tenderdash/internal/assistant"
	"tenderdash/internal/config"
	"tenderdash/internal/dataprocessing"
	apierrors "tenderdash/internal/errors"
	"tenderdash/internal/exporter"
	"tenderdash/internal/infrastructure"
	customMiddleware "tenderdash/internal/middleware"
	"tenderdash/internal/services"
	"tenderdash/internal/source"
	handlers "tenderdash/internal/transport/http"
	ws "tenderdash/internal/websocket"
)

// BuildTime is set at link time with -ldflags "-X tenderdash/internal/app.BuildTime=...".
var BuildTime = ""

const runtimeSampleInterval = 15 * time.Second

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	Router        *chi.Mux
	Server        *http.Server
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Runtime       *infrastructure.RuntimeCollector
	WebSocketHub  *ws.Hub
	Dashboard     *services.DashboardService
	Assistant     *assistant.SessionStore
	HealthService *services.HealthService
	ErrorHandler  *apierrors.ErrorHandler
	Validator     *customMiddleware.Validator

	serverErr chan error
}

// NewApplication loads configuration and the logger, then builds the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("source", cfg.Data.Source))

	return New(cfg, logger)
}

// New wires every component from cfg. Nothing is started; see Start.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, apierrors.NewConfigError("configuration is required", nil)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, false),
		Validator:     customMiddleware.NewValidator(logger),
		serverErr:     make(chan error, 1),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.NewPipelineMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	a.Metrics = metrics

	runtimeCollector, err := infrastructure.NewRuntimeCollector(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create runtime collector: %w", err)
	}
	a.Runtime = runtimeCollector

	hubMetrics, err := ws.NewHubMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, hubMetrics)

	fetcher, err := source.NewConfiguredFetcher(context.Background(), a.Config.Data, a.Logger)
	if err != nil {
		return err
	}

	aggregator := dataprocessing.NewAggregator(a.Logger, dataprocessing.AggregatorConfig{
		Markers: dataprocessing.WinnerMarkers{
			NoBids:      a.Config.Data.NoBidsMarkers,
			InvalidBids: a.Config.Data.InvalidBidsMarkers,
			Placeholder: a.Config.Data.PlaceholderMarkers,
		},
	})

	dashboard, err := services.NewDashboardService(services.DashboardOptions{
		Source:     a.Config.Data.Source,
		Fetcher:    fetcher,
		Aggregator: aggregator,
		Exporter:   exporter.NewWorkbookExporter(a.Logger),
		Hub:        a.WebSocketHub,
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize dashboard service: %w", err)
	}
	a.Dashboard = dashboard

	a.Assistant = assistant.NewSessionStore(assistant.Options{
		TTL:             a.Config.Assistant.SessionTTL,
		CleanupInterval: a.Config.Assistant.CleanupInterval,
		MaxMessageLen:   a.Config.Assistant.MaxMessageLen,
		Logger:          a.Logger,
	})

	a.HealthService = services.NewHealthService(services.HealthOptions{
		Version:   config.AppVersion,
		BuildTime: BuildTime,
		Dataset:   a.Dashboard,
		Clients:   a.WebSocketHub,
		Runtime:   a.Runtime,
		Logger:    a.Logger,
	})

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Only middleware that leaves the ResponseWriter hijackable runs before /ws.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	r.Method(http.MethodGet, "/ws", ws.NewHandler(a.WebSocketHub, ws.HandlerOptions{
		AllowedOrigins:  a.Config.Security.AllowedOrigins,
		ReadBufferSize:  a.Config.WebSocket.ReadBufferSize,
		WriteBufferSize: a.Config.WebSocket.WriteBufferSize,
		PingPeriod:      a.Config.WebSocket.PingPeriod,
		PongWait:        a.Config.WebSocket.PongWait,
		Logger:          a.Logger,
	}))

	r.Method(http.MethodGet, "/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	r.Group(func(r chi.Router) {
		// RequestID -> RealIP -> StripSlashes -> OTel -> Logger -> Recoverer -> headers -> CORS -> rate limit -> timeout
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
				AllowedOrigins: a.Config.Security.AllowedOrigins,
			}))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		dashboardHandler := handlers.NewDashboardHandler(a.Dashboard, a.Validator, a.Logger, a.ErrorHandler)
		dashboardHandler.RegisterRoutes(r)

		assistantHandler := handlers.NewAssistantHandler(a.Assistant, a.Validator, a.Metrics, a.Logger, a.ErrorHandler)
		r.Mount("/assistant", assistantHandler.Routes())

		clientLogHandler := handlers.NewClientLogHandler(a.Validator, a.Logger, a.ErrorHandler)
		r.With(customMiddleware.ContentTypeValidator("application/json")).Post("/client-logs", clientLogHandler.Handle)
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services and the HTTP server. The initial
// dataset load runs in the background; readiness reports not_ready until it
// succeeds.
func (a *Application) Start(ctx context.Context) error {
	a.WebSocketHub.Start()
	go a.Runtime.Start(ctx, runtimeSampleInterval)

	if a.Config.Data.LoadOnStart {
		go a.initialLoad(ctx)
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			a.serverErr <- err
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

func (a *Application) initialLoad(ctx context.Context) {
	result, err := a.Dashboard.Load(ctx)
	if err != nil {
		a.Logger.ErrorContext(ctx, "Initial dataset load failed",
			slog.String("source", a.Config.Data.Source),
			slog.String("error", err.Error()))
		return
	}
	a.Logger.InfoContext(ctx, "Initial dataset loaded",
		slog.String("fingerprint", result.Fingerprint),
		slog.Int("accepted", result.Report.Accepted),
		slog.Int("dropped", result.Report.Dropped))
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.WebSocketHub.Stop()
	a.Runtime.Stop()
	a.Assistant.Flush()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	return errors.Join(errs...)
}

// Run runs the application until interrupted or until the server fails.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Received interrupt signal")
	case runErr = <-a.serverErr:
	}

	if err := a.Stop(context.Background()); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
