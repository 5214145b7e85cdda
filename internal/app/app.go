package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"nftgate/internal/config"
	"nftgate/internal/errors"
	"nftgate/internal/infrastructure"
	"nftgate/internal/license"
	customMiddleware "nftgate/internal/middleware"
	"nftgate/internal/oracle"
	handlers "nftgate/internal/transport/http"
	ws "nftgate/internal/websocket"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Oracle        *oracle.Built
	Store         *license.RequestStore
	Licenser      *license.Licenser
	WebSocketHub  *ws.Hub
	Router        *chi.Mux
	Server        *http.Server

	startedAt     time.Time
	registrations []metric.Registration
	stopOnce      sync.Once
	stopErr       error

	mu       sync.Mutex // guards listener and serveErr
	listener net.Listener
	serveErr chan error
}

// NewApplication loads configuration, initializes the global logger and
// builds the application from them.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewConfigError("failed to load configuration", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, errors.NewConfigError("failed to initialize logger", err)
	}

	return New(ctx, cfg, logger)
}

// New wires every component from cfg. The caller owns logger.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("oracle", cfg.Oracle.Kind))

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, errors.NewTelemetryError("failed to initialize OpenTelemetry", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		startedAt:     time.Now(),
	}

	if err := a.initializeServices(ctx); err != nil {
		a.release(ctx)
		return nil, err
	}

	if err := a.setupRouter(); err != nil {
		a.release(ctx)
		return nil, errors.NewServerError("failed to set up router", err)
	}

	a.createServer()
	return a, nil
}

// initializeServices builds the oracle, the licensing core and their metrics
func (a *Application) initializeServices(ctx context.Context) error {
	built, err := oracle.FromConfig(ctx, a.Config.Oracle, a.Logger)
	if err != nil {
		return errors.NewOracleError("failed to build ownership oracle", err).
			WithContext("kind", a.Config.Oracle.Kind)
	}
	a.Oracle = built

	a.Store = license.NewRequestStore(
		license.WithTTL(a.Config.License.RequestTTL),
		license.WithStoreLogger(a.Logger),
	)

	licenseMeter := otel.Meter(license.MeterName)
	licenseMetrics, err := license.NewMetrics(licenseMeter)
	if err != nil {
		return errors.NewTelemetryError("failed to create license metrics", err)
	}

	a.Licenser, err = license.NewLicenser(built.Oracle,
		license.WithPreamble(a.Config.License.Preamble),
		license.WithStore(a.Store),
		license.WithLogger(a.Logger),
		license.WithMetrics(licenseMetrics),
	)
	if err != nil {
		return errors.NewServerError("failed to create licenser", err)
	}

	storeReg, err := license.ObserveStore(licenseMeter, a.Store)
	if err != nil {
		return errors.NewTelemetryError("failed to observe request store", err)
	}
	a.registrations = append(a.registrations, storeReg)

	runtimeReg, err := infrastructure.RegisterRuntimeMetrics(a.OTelProviders.Meter, a.startedAt)
	if err != nil {
		return errors.NewTelemetryError("failed to register runtime metrics", err)
	}
	a.registrations = append(a.registrations, runtimeReg)

	a.WebSocketHub = ws.NewHub(a.Logger)
	return nil
}

// setupRouter configures middleware and routes
func (a *Application) setupRouter() error {
	errorHandler := errors.NewErrorHandler(a.Logger, a.Config.Telemetry.Environment == "development")
	errorMiddleware := errors.NewErrorMiddleware(errorHandler, a.Logger)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return err
	}

	wsMetrics, err := ws.NewMetrics(otel.Meter(ws.MeterName))
	if err != nil {
		return err
	}

	r := chi.NewRouter()

	// RequestID → OTel → request log/recover → headers
	r.Use(customMiddleware.RequestID)
	r.Use(otelMiddleware.Handler)
	r.Use(errorMiddleware.Handler)
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
	}))

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// Sockets are long-lived and stay outside the request timeout
	r.Handle("/ws", ws.NewHandler(a.Licenser, a.WebSocketHub, a.Config.WebSocket,
		a.Config.Server.AllowedOrigins, wsMetrics, a.Logger))

	healthHandler := handlers.NewHealthHandler(a.Store, a.Oracle, a.Oracle.Kind, a.startedAt, a.Logger)
	licenseHandler := handlers.NewLicenseHandler(a.Licenser, errorHandler, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.RequestTimeout(a.Config.Server.RequestTimeout))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)

		r.Group(func(r chi.Router) {
			if rl := a.Config.Server.RateLimit; rl.Enabled {
				r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
			}
			r.Mount("/license", licenseHandler.Routes())
		})
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
	return nil
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start binds the listener, starts the expiry sweeper and serves in the
// background. Bind errors are returned directly.
func (a *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return errors.NewServerError("failed to listen", err).WithContext("addr", a.Server.Addr)
	}
	serveErr := make(chan error, 1)

	a.mu.Lock()
	a.listener = ln
	a.serveErr = serveErr
	a.mu.Unlock()

	if a.Config.License.RequestTTL > 0 {
		a.Store.StartSweeper(a.Config.License.SweepInterval)
	}

	go func() {
		if err := a.Server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", ln.Addr().String()),
		slog.Duration("request_ttl", a.Config.License.RequestTTL))
	return nil
}

// Addr returns the bound address once Start has succeeded
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

func (a *Application) started() (net.Listener, <-chan error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listener, a.serveErr
}

// Stop gracefully stops the application. Later calls return the first result.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.Logger.InfoContext(ctx, "Shutting down application")

		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if ln, _ := a.started(); ln != nil {
			if err := a.Server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown: %w", err))
			}
		}

		a.WebSocketHub.Shutdown(shutdownCtx)
		if err := a.release(shutdownCtx); err != nil {
			errs = append(errs, err)
		}

		if err := stderrors.Join(errs...); err != nil {
			a.stopErr = errors.NewServerError("shutdown incomplete", err)
			return
		}
		a.Logger.InfoContext(ctx, "Application shutdown complete")
	})
	return a.stopErr
}

// release frees everything built by New, in reverse order
func (a *Application) release(ctx context.Context) error {
	for _, reg := range a.registrations {
		reg.Unregister()
	}
	a.registrations = nil

	if a.Licenser != nil {
		a.Licenser.Close()
	}
	if a.Oracle != nil {
		a.Oracle.Close()
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

// Run starts the application and blocks until ctx is cancelled, SIGINT or
// SIGTERM arrives, or the server fails.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	_, serveErrs := a.started()

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Received shutdown signal")
	case err, ok := <-serveErrs:
		if ok {
			serveErr = errors.NewServerError("server failed", err)
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
		}
	}

	if err := a.Stop(context.WithoutCancel(ctx)); err != nil {
		return stderrors.Join(serveErr, err)
	}
	return serveErr
}
