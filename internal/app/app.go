package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"opsunify/internal/config"
	"opsunify/internal/infrastructure"
	customMiddleware "opsunify/internal/middleware"
	"opsunify/internal/operations"
	"opsunify/internal/services"
	handlers "opsunify/internal/transport/http"
	ws "opsunify/internal/websocket"
	"opsunify/pkg/contracts"
)

// BuildID is a unique identifier for this build
var BuildID = generateBuildID()

func generateBuildID() string {
	// Deterministic build ID based on version and build date
	h := sha256.New()
	h.Write([]byte(contracts.Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	WebSocketHub  *ws.Hub
	UnifyService  *services.UnifyService
	QuoteService  *services.QuoteService
	HealthService *services.HealthService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	metricsCollector *infrastructure.SystemMetricsCollector
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Single infrastructure logger shared by every component
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", cfg.Server.Port))

	// Ensure all required directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	// Log all resolved paths at startup for debugging
	cfg.ResolvedPaths().LogPathResolution()

	// Initialize OpenTelemetry
	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	// Initialize global run tracer
	if err := operations.InitGlobalRunTracer(otelProviders); err != nil {
		return nil, fmt.Errorf("failed to initialize run tracer: %w", err)
	}

	// Initialize WebSocket OpenTelemetry metrics
	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	// Create application
	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	// Initialize services in order
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Setup router
	app.setupRouter()

	// Create HTTP server
	app.createServer()

	return app, nil
}

// initializeServices wires the hub and the domain services together.
func (a *Application) initializeServices() error {
	// WebSocket hub feeds run progress to connected clients
	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	// Unify service owns pipeline execution and the report store. The hub
	// satisfies the progress broadcaster interface directly.
	unifyService, err := services.NewUnifyService(a.Config, hub, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize unify service: %w", err)
	}
	a.UnifyService = unifyService

	// Quote service is best-effort; it degrades to null prices when disabled
	a.QuoteService = services.NewQuoteService(a.Config.MarketData, a.Logger)
	if a.Config.MarketData.Enabled {
		unifyService.SetQuotePrefetcher(a.QuoteService)
	}

	a.HealthService = services.NewHealthServiceWithBuildInfo(
		contracts.Version,
		contracts.BuildTime,
		BuildID,
		a.Config.ResolvedPaths(),
		unifyService,
		hub,
		a.Logger,
	)

	// Periodic runtime gauges for the /metrics endpoint; the health service
	// reads the same collector for its stats snapshot.
	collector, err := infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 30*time.Second)
	if err != nil {
		return fmt.Errorf("failed to initialize system metrics collector: %w", err)
	}
	a.metricsCollector = collector
	a.HealthService.SetSystemCollector(collector)

	return nil
}

// setupRouter configures the HTTP router with middleware
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Minimal middleware that won't wrap the ResponseWriter, safe for the
	// WebSocket upgrade below.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	// WebSocket route with minimal middleware and tracing. Must be
	// registered after the minimal middleware but before the group.
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).HandleFunc(config.WebSocketEndpoint, a.handleWebSocket)

	// Everything else gets the full middleware chain
	r.Group(func(r chi.Router) {
		// OpenTelemetry middleware for tracing and metrics. Handlers read the
		// same instruments back through the request context.
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
			r.Use(customMiddleware.BusinessMetricsMiddleware(otelMiddleware.Metrics()))
		}

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.Compress(5))
		// Timeout middleware is applied per route group below; the unify
		// endpoint needs a longer budget than the read endpoints.
		r.Use(customMiddleware.SecurityHeaders)

		corsConfig := a.getCORSConfig()
		r.Use(customMiddleware.CORS(corsConfig))

		// Rate limiting
		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r)
	})

	// Prometheus metrics endpoint, outside the middleware group
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		// Standard timeout for read endpoints
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
			r.Get("/healthz", healthHandler.HealthCheck)
			r.Get("/readyz", healthHandler.ReadinessCheck)
			r.Get("/livez", healthHandler.LivenessCheck)
			r.Get("/version", healthHandler.Version)
			r.Get("/stats", healthHandler.SystemStats)

			reportsHandler := handlers.NewReportsHandler(a.UnifyService, a.Config.ResolvedPaths(), a.Config.Pipeline, a.Logger)
			r.Mount("/reports", reportsHandler.Routes())

			quotesHandler := handlers.NewQuotesHandler(a.QuoteService, a.Logger)
			r.Mount("/quotes", quotesHandler.Routes())

			runsHandler := handlers.NewRunsHandler(a.UnifyService, a.Logger)
			r.Mount("/runs", runsHandler.Routes())
		})

		// The unify endpoint runs the whole pipeline within the request, so
		// it gets the operation timeout instead of the read timeout.
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout, a.Logger))

			unifyHandler := handlers.NewUnifyHandler(a.UnifyService, a.Config.Pipeline, a.Logger)
			r.Mount("/unify", unifyHandler.Routes())
		})
	})
}

// getCORSConfig builds the CORS policy for the current environment.
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	isDevelopment := a.isDevelopmentMode()

	corsConfig := customMiddleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           300,
		Logger:           a.Logger,
	}

	if isDevelopment {
		corsConfig.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
		}
		a.Logger.Info("CORS configured for development mode",
			slog.Any("allowed_origins", corsConfig.AllowedOrigins))
	} else {
		corsConfig.AllowedOrigins = []string{
			fmt.Sprintf("http://localhost:%d", a.Config.Server.Port),
			fmt.Sprintf("http://127.0.0.1:%d", a.Config.Server.Port),
		}

		if a.Config.Security.EnableCORS && len(a.Config.Security.AllowedOrigins) > 0 {
			corsConfig.AllowedOrigins = append(corsConfig.AllowedOrigins, a.Config.Security.AllowedOrigins...)
		}

		a.Logger.Info("CORS configured for production mode",
			slog.Any("allowed_origins", corsConfig.AllowedOrigins))
	}

	return corsConfig
}

// isDevelopmentMode detects if we're running in development mode
func (a *Application) isDevelopmentMode() bool {
	if env := os.Getenv("OPSUNIFY_ENV"); env == "development" {
		return true
	}
	if env := os.Getenv("GO_ENV"); env == "development" {
		return true
	}
	return false
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

// Start starts the application
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	paths := a.Config.ResolvedPaths()
	a.Logger.InfoContext(ctx, "Application paths",
		slog.String("executable_dir", paths.ExecutableDir),
		slog.String("data_dir", paths.DataDir),
		slog.String("logs_dir", paths.LogsDir))

	// Background runtime gauge collection
	go a.metricsCollector.Start(ctx)

	// Start server
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	// Probe readiness once so misconfigured storage shows up in the logs
	// immediately rather than on the first request.
	if status := a.HealthService.ReadinessCheck(ctx); status.Status != "ready" {
		a.Logger.WarnContext(ctx, "Startup readiness probe reported degraded state",
			slog.String("status", status.Status))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Stop server
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Cancel running pipeline runs, then drain the service. Close waits for
	// the cancelled runs to finish and stops the progress broadcaster, so it
	// must complete before the hub goes away.
	if cancelled := a.UnifyService.CancelAll(); cancelled > 0 {
		a.Logger.InfoContext(ctx, "Cancelled running pipeline runs", slog.Int("count", cancelled))
	}
	a.UnifyService.Close()

	// Stop background services
	a.WebSocketHub.Stop()
	a.metricsCollector.Stop()

	// Shutdown OpenTelemetry providers
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")

	// Last so every shutdown message above still reaches the file.
	if err := infrastructure.CloseLogFile(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start application
	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	// Wait for interrupt or server failure
	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped, shutting down")
	}

	// Graceful shutdown
	return a.Stop(context.Background())
}

// handleWebSocket upgrades the connection and registers the client with the hub.
func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = fmt.Sprintf("ws-%d", time.Now().UnixNano())
	}

	ctx := infrastructure.WithTraceID(r.Context(), reqID)
	a.Logger.InfoContext(ctx, "WebSocket upgrade request",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("origin", r.Header.Get("Origin")),
		slog.String("host", r.Host))

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// No origin means a same-origin or non-browser client
			if origin == "" {
				return true
			}

			if a.isDevelopmentMode() {
				return true
			}

			corsConfig := a.getCORSConfig()
			for _, allowed := range corsConfig.AllowedOrigins {
				if origin == allowed {
					return true
				}
			}

			a.Logger.WarnContext(ctx, "WebSocket origin not allowed",
				slog.String("origin", origin),
				slog.Any("allowed_origins", corsConfig.AllowedOrigins))
			return false
		},
		ReadBufferSize:  config.WebSocketReadBufferSize,
		WriteBufferSize: config.WebSocketWriteBufferSize,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			a.Logger.ErrorContext(ctx, "WebSocket upgrade error",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	// Register the client and start its pumps
	client := ws.NewClientWithTrace(a.WebSocketHub, conn, reqID, a.Logger)
	a.WebSocketHub.Register(client)

	a.Logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket write pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.WritePump()
	}()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.ErrorContext(ctx, "WebSocket read pump panic",
					slog.Any("panic", rec),
					slog.String("request_id", reqID))
			}
		}()
		client.ReadPump()
	}()
}
