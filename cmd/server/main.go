package main

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

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/travelmatch/internal/compatibility"
	"github.com/mmynk/travelmatch/internal/config"
	"github.com/mmynk/travelmatch/internal/matcher"
	"github.com/mmynk/travelmatch/internal/metrics"
	"github.com/mmynk/travelmatch/internal/middleware"
	"github.com/mmynk/travelmatch/internal/notify"
	"github.com/mmynk/travelmatch/internal/service"
	"github.com/mmynk/travelmatch/internal/storage"
	"github.com/mmynk/travelmatch/internal/storage/cache"
	"github.com/mmynk/travelmatch/internal/storage/mongo"
	"github.com/mmynk/travelmatch/internal/storage/postgres"
	"github.com/mmynk/travelmatch/internal/storage/sqlite"
	"github.com/mmynk/travelmatch/internal/telemetry"
	"github.com/mmynk/travelmatch/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.StoreDriver)

	if cfg.UserCacheSize > 0 {
		cached, err := cache.New(store, cfg.UserCacheSize)
		if err != nil {
			return err
		}
		store = cached
	}

	m := metrics.New()

	dispatcher := notify.NewDispatcher(notificationChannels(cfg, logger), notify.Config{
		Workers: cfg.NotifyWorkers,
		Async:   cfg.NotifyAsync,
		Timeout: cfg.NotifyTimeout,
	}, m, logger)
	defer dispatcher.Wait()

	match := matcher.New(store, matcher.Options{
		Evaluator:         compatibility.New(cfg.MatchThreshold),
		Notifier:          dispatcher,
		Metrics:           m,
		Logger:            logger,
		MaxCommitAttempts: cfg.MatchMaxCommitAttempts,
	})
	svc := service.NewMatchService(match, cfg.Location(), logger)

	mux := http.NewServeMux()

	matchPath, matchHandler := service.NewMatchServiceHandler(svc,
		connect.WithInterceptors(middleware.LoggingInterceptor(logger)))
	mux.Handle(matchPath, matchHandler)
	svc.RegisterRoutes(mux)
	mux.Handle("GET /healthz", service.HealthHandler(store))
	mux.Handle("GET /metrics", m.Handler())

	handler := middleware.RequestID(middleware.Logging(logger)(middleware.CORS(mux)))

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// Wrap with h2c for HTTP/2 without TLS (required for Connect)
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.PostgresDriver, cfg.PostgresDSN)
	case config.DriverMongo:
		return mongo.New(ctx, mongo.Config{URI: cfg.MongoURI, DatabaseName: cfg.MongoDatabase})
	default:
		return sqlite.New(cfg.DBPath)
	}
}

// notificationChannels returns SMS and email channels, logging instead of
// sending for any provider without credentials.
func notificationChannels(cfg config.Config, logger *slog.Logger) []notify.Channel {
	var channels []notify.Channel

	if cfg.SMSEnabled() {
		channels = append(channels, notify.NewSMSChannel(notify.SMSConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioPhoneNumber,
		}))
	} else {
		logger.Warn("Twilio credentials missing, SMS notifications will only be logged")
		channels = append(channels, notify.NewLogChannel("sms", logger))
	}

	if cfg.EmailEnabled() {
		channels = append(channels, notify.NewEmailChannel(notify.EmailConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}))
	} else {
		logger.Warn("SendGrid credentials missing, email notifications will only be logged")
		channels = append(channels, notify.NewLogChannel("email", logger))
	}

	return channels
}
