package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevin07696/swish-payment-service/internal/adapters/swish"
	"github.com/kevin07696/swish-payment-service/internal/config"
	paymentHandler "github.com/kevin07696/swish-payment-service/internal/handlers/payment"
	paymentService "github.com/kevin07696/swish-payment-service/internal/services/payment"
	"github.com/kevin07696/swish-payment-service/pkg/middleware"
	"github.com/kevin07696/swish-payment-service/pkg/observability"
	"github.com/kevin07696/swish-payment-service/pkg/resilience"
	"github.com/kevin07696/swish-payment-service/pkg/security"
	"github.com/kevin07696/swish-payment-service/pkg/shutdown"
)

// certificateWarning is how early /health starts reporting an expiring merchant certificate
const certificateWarning = 30 * 24 * time.Hour

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting Swish payment service",
		zap.String("version", "0.1.0"),
		zap.String("base_url", cfg.Swish.BaseURL),
		zap.String("payee_alias", cfg.Swish.PayeeAlias),
	)

	passphrase, closeSecrets := resolvePassphrase(cfg, logger)

	creds := swish.Credentials{
		BundlePath: cfg.Swish.CertPath,
		Passphrase: passphrase,
		RootCAPath: cfg.Swish.RootCAPath,
	}

	orchestrator, channels := paymentService.NewDefaultOrchestrator(paymentService.Config{
		Credentials: creds,
		BaseURL:     cfg.Swish.BaseURL,
		CallbackURL: cfg.Swish.CallbackURL,
		PayeeAlias:  cfg.Swish.PayeeAlias,
		Currency:    cfg.Swish.Currency,
		Poll: swish.PollConfig{
			Interval:    cfg.Poll.Interval,
			MaxAttempts: cfg.Poll.MaxAttempts,
			Timeout:     cfg.Poll.Timeout,
		},
		HTTPTimeout: cfg.Swish.RequestTimeout(),
	}, security.NewZapLogger(logger).Named("swish"), logger)

	// Build the channel up front so a broken bundle shows in the logs and /health
	// before the first payer is waiting. A failure here is not fatal; it is retried per payment.
	if _, err := channels.Get(context.Background(), creds); err != nil {
		logger.Warn("Swish channel not available at startup", zap.Error(err))
	}

	pollBudget := resilience.PollBudget(cfg.Poll.Timeout, cfg.Poll.Interval, cfg.Poll.MaxAttempts, cfg.Swish.RequestTimeout())
	timeouts := resilience.NewTimeoutConfig(pollBudget, cfg.Swish.RequestTimeout())
	handler := paymentHandler.NewHandler(orchestrator, timeouts, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	securityHeaders := middleware.NewSecurityHeaders(!cfg.Logger.IsProduction())
	payments := shutdown.NewInFlightTracker("payments", logger)

	httpMux := http.NewServeMux()
	httpMux.Handle("/payments", observability.HTTPMiddleware("/payments",
		payments.Middleware(http.HandlerFunc(handler.CreatePayment))))
	httpMux.Handle("/payments/callback", observability.HTTPMiddleware("/payments/callback",
		http.HandlerFunc(handler.HandleCallback)))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           securityHeaders.Middleware(rateLimiter.Middleware(httpMux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      timeouts.HTTPHandler + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(func() (time.Time, bool) {
		return channels.CertificateExpiry(creds)
	}, certificateWarning)
	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Stopped in reverse order: running payments drain first, then the servers close.
	manager := shutdown.NewManager(logger, timeouts.Shutdown+10*time.Second)
	manager.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)
	if closeSecrets != nil {
		manager.Register("secret-manager", func(context.Context) error { return closeSecrets() })
	}
	manager.Register("metrics-server", func(ctx context.Context) error {
		return observability.ShutdownMetricsServer(ctx, metricsServer)
	})
	manager.RegisterHTTPServer("http-server", httpServer)
	manager.Register("payments", payments.Shutdown)

	manager.WaitForShutdown()
	logger.Info("Servers stopped")
}

// initLogger builds a production JSON logger or a development console logger
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
