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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"integralq/internal/config"
	apperrors "integralq/internal/errors"
	"integralq/internal/exporter"
	"integralq/internal/infrastructure"
	customMiddleware "integralq/internal/middleware"
	"integralq/internal/services"
	"integralq/internal/session"
	"integralq/internal/storage"
	handlers "integralq/internal/transport/http"
	"integralq/internal/validation"
	ws "integralq/internal/websocket"
	"integralq/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	DB            *gorm.DB
	WebSocketHub  *ws.Hub
	Services      *ServiceContainer
	Router        *chi.Mux
	Server        *http.Server

	validator    *validation.FileValidator
	errorHandler *apperrors.ErrorHandler
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Analysis    *services.AnalysisService
	Preferences *services.PreferenceService
	Audit       *services.AuditService
	Health      *services.HealthService
}

// New creates the application with dependency injection. A nil logger is
// built from cfg.Logging.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		l, err := infrastructure.NewLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
	}

	logger.Info("Application starting",
		slog.String("version", contracts.Version),
		slog.String("addr", cfg.Addr()),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.Bool("database", cfg.Database.Enabled))

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.ServiceName = cfg.Telemetry.ServiceName
	otelCfg.EnableMetrics = cfg.Telemetry.MetricsEnabled
	otelCfg.EnableTracing = cfg.Telemetry.TracingEnabled
	if cfg.Telemetry.TracingEnabled {
		otelCfg.TraceExporter = "stdout"
	}
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
		errorHandler:  apperrors.NewErrorHandler(logger, cfg.Logging.Development),
	}

	if err := a.initializeServices(); err != nil {
		a.shutdownProviders(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	cfg := a.Config

	if cfg.Database.Enabled {
		db, err := storage.Open(cfg.Database, a.Logger)
		if err != nil {
			return err
		}
		a.DB = db
	}

	sops, err := LoadSOPs(cfg)
	if err != nil {
		return err
	}
	narrator, err := BuildNarrator(cfg, a.Logger, sops)
	if err != nil {
		return err
	}
	prefs := PreferenceStore(cfg, a.DB)

	var audit storage.AuditRepository
	if a.DB != nil {
		audit = storage.NewAuditRepository(a.DB)
	}

	a.validator = validation.NewFileValidator(a.Logger, validation.Limits{
		MaxFiles: cfg.Analysis.MaxFiles,
		MaxBytes: cfg.Analysis.MaxUploadBytes,
	})
	a.WebSocketHub = ws.NewHub(a.Logger, ws.WithKeepalive(cfg.WebSocket.PingPeriod, cfg.WebSocket.PongWait))

	analysisSvc := services.NewAnalysisService(services.AnalysisDeps{
		Pipeline:      BuildPipeline(cfg, a.Logger, sops, narrator, prefs, a.Metrics),
		Sessions:      session.NewStore(cfg.Analysis.SessionTTL),
		Validator:     a.validator,
		Exporter:      exporter.New(a.Logger),
		Narrator:      narrator,
		Audit:         audit,
		Hub:           a.WebSocketHub,
		Metrics:       a.Metrics,
		MaxConcurrent: cfg.Analysis.MaxConcurrent,
	}, a.Logger)

	health := services.HealthDeps{
		Hub:         a.WebSocketHub,
		Sessions:    analysisSvc.ActiveSessions,
		LLMProvider: cfg.LLM.Provider,
	}
	if a.DB != nil {
		health.Database = a.pingDatabase
	}

	a.Services = &ServiceContainer{
		Analysis:    analysisSvc,
		Preferences: services.NewPreferenceService(prefs, audit, a.Logger),
		Audit:       services.NewAuditService(audit),
		Health:      services.NewHealthService(health, a.Logger),
	}
	return nil
}

func (a *Application) pingDatabase(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// setupRouter configures the middleware chain and routes
func (a *Application) setupRouter() {
	cfg := a.Config
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.Telemetry(a.OTelProviders.Tracer, a.Metrics))
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	if cfg.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: cfg.Security.AllowedOrigins,
			Logger:         a.Logger,
		}))
	}
	if rl := cfg.Security.RateLimit; rl.Enabled && rl.RPS > 0 {
		r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}
	r.Handle("/ws", ws.NewHandler(a.WebSocketHub, cfg.Security.AllowedOrigins,
		cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize))

	a.setupAPIRoutes(r)
	a.Router = r
}

// setupAPIRoutes mounts the JSON API under /api
func (a *Application) setupAPIRoutes(r chi.Router) {
	cfg := a.Config
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	analysisHandler := handlers.NewAnalysisHandler(a.Services.Analysis, a.validator, a.errorHandler,
		cfg.Analysis.MaxUploadBytes, a.Logger)
	preferenceHandler := handlers.NewPreferenceHandler(a.Services.Preferences, a.validator, a.errorHandler, a.Logger)
	auditHandler := handlers.NewAuditHandler(a.Services.Audit, a.errorHandler, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
			r.Use(customMiddleware.Compress(5))

			r.With(customMiddleware.ContentTypeValidator(a.errorHandler, "multipart/form-data")).
				Post("/analyze", analysisHandler.Analyze)
			r.Mount("/sessions", analysisHandler.SessionRoutes())
			r.Mount("/preferences", preferenceHandler.Routes())
			r.Get("/audit", auditHandler.List)
		})
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Addr(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.Router
}

// Run serves until ctx is cancelled or an interrupt arrives, then shuts
// down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.WebSocketHub.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(gctx, "Shutdown requested")
		return a.Stop(context.Background())
	})
	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	if err := storage.Close(a.DB); err != nil {
		errs = append(errs, fmt.Errorf("database close error: %w", err))
	}
	a.shutdownProviders(shutdownCtx)

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, fmt.Errorf("log file close error: %w", err))
	}
	return errors.Join(errs...)
}

func (a *Application) shutdownProviders(ctx context.Context) {
	if a.OTelProviders == nil {
		return
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}
}
