/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave tracker server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger
  3. Open the record store and the user directory
  4. Choose the notifier (SMTP email or log-only) behind a worker queue
  5. Create the leave service, API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (default: search leave.yaml)
  -port    HTTP server port, overrides server.port

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Drain queued notifications
  4. Close the store
  5. Exit

EXAMPLES:
  # Run with defaults (JSON store in ./data)
  ./server

  # Run against SQLite
  LEAVE_STORE_DRIVER=sqlite LEAVE_STORE_PATH=./data/leave.db ./server

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - leave/service.go: Submission and approval logic
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leave-tracker/api"
	"github.com/warp/leave-tracker/config"
	"github.com/warp/leave-tracker/directory"
	"github.com/warp/leave-tracker/leave"
	"github.com/warp/leave-tracker/notify"
	"github.com/warp/leave-tracker/store"
	"go.uber.org/zap"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "HTTP server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Initialize store
	records, closer, err := store.Open(cfg.Store, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closer.Close()

	dir, err := directory.Load(cfg.Directory.Path, directory.Options{
		DefaultRole:   cfg.Directory.DefaultRole,
		ApproverEmail: cfg.Directory.ApproverEmail,
		EmailDomain:   cfg.Directory.EmailDomain,
	})
	if err != nil {
		logger.Fatal("Failed to load user directory", zap.String("path", cfg.Directory.Path), zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("Invalid time zone", zap.Error(err))
	}

	// Notifications run on a worker queue so requests never wait on SMTP.
	queue := notify.NewQueue(notify.QueueConfig{
		Size:    cfg.Email.QueueSize,
		Workers: cfg.Email.Workers,
		Timeout: cfg.Email.Timeout,
	}, logger)
	queue.Start()

	types := make([]leave.Type, 0, len(cfg.Leave.Types))
	for _, t := range cfg.Leave.Types {
		types = append(types, leave.Type(t))
	}

	svc := leave.NewService(records,
		leave.WithNotifier(newNotifier(cfg, dir, logger)),
		leave.WithDispatcher(queue),
		leave.WithLogger(logger),
		leave.WithAllowedTypes(types...),
		leave.WithClock(func() time.Time { return time.Now().In(loc) }),
	)

	// Initialize handler
	handler := api.NewHandler(svc, dir, logger)
	if len(types) > 0 {
		handler.Types = types
	}
	handler.EmailEnabled = cfg.Email.Enabled
	handler.Now = func() time.Time { return time.Now().In(loc) }

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		Identity: &api.IdentityResolver{
			Directory:     dir,
			TestUserEmail: cfg.Identity.TestUserEmail,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
		Debug:          cfg.Server.Debug,
		RatePerSecond:  cfg.RateLimit.PerSecond,
		RateBurst:      cfg.RateLimit.Burst,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting",
			zap.String("url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)),
			zap.String("store", cfg.Store.Driver),
			zap.String("store_path", cfg.Store.Path),
			zap.Bool("email", cfg.Email.Enabled),
			zap.Bool("email_test_mode", cfg.Email.TestMode),
			zap.String("time_zone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	queue.Stop()

	logger.Info("Server stopped")
}

// newNotifier returns the SMTP notifier when email is enabled, otherwise
// one that only logs.
func newNotifier(cfg *config.Config, dir *directory.Directory, logger *zap.Logger) leave.Notifier {
	if !cfg.Email.Enabled {
		return notify.NewLog(logger)
	}
	transport := notify.NewSMTPTransport(notify.SMTPConfig{
		Host:       cfg.Email.SMTP.Host,
		Port:       cfg.Email.SMTP.Port,
		Secure:     cfg.Email.SMTP.Secure,
		User:       cfg.Email.SMTP.User,
		Pass:       cfg.Email.SMTP.Pass,
		SkipVerify: cfg.Email.SMTP.SkipVerify,
	})
	return notify.NewEmail(notify.EmailConfig{
		TestMode:     cfg.Email.TestMode,
		TestEmail:    cfg.Email.TestEmail,
		ServerURL:    cfg.Email.ServerURL,
		From:         cfg.Email.From,
		FromName:     cfg.Email.FromName,
		EnvelopeFrom: cfg.Email.EnvelopeFrom,
		Domain:       cfg.Email.Domain,
	}, transport, dir, logger)
}
