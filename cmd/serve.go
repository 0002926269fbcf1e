package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"froidapi/config"
	"froidapi/email"
	"froidapi/poll"
	"froidapi/server"
	"froidapi/storage"
	"froidapi/users"

	gcs "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		interval, err := cmd.Flags().GetDuration("poll-interval")
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, interval)
	},
}

func init() {
	serveCmd.Flags().Duration("poll-interval", 0, "refresh the post cache on this interval (0 relies on POST /pollz)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, pollInterval time.Duration) error {
	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	store, closeStore, err := newPostStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	db, err := users.Open(users.DSN(cfg.DB.Path), logger)
	if err != nil {
		return fmt.Errorf("open user database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close user database", "error", err)
		}
	}()

	emailer := newEmailer(ctx, cfg, logger)

	site := newScraper(cfg, logger)
	monitor := poll.New(site, store, cfg.Cache.TTL, logger)

	if pollInterval > 0 {
		go pollLoop(ctx, monitor, pollInterval, logger)
	}

	srv := server.New(&server.Config{
		Posts:   monitor,
		Site:    site,
		Users:   db,
		Emailer: emailer,
		Poller:  monitor,
		Logger:  logger,
		Info: server.AppInfo{
			Name:        cfg.App.Name,
			Version:     cfg.App.Version,
			Description: cfg.App.Description,
			Contact:     cfg.App.Contact,
		},
		CORS: server.CORS{
			Origins:     cfg.CORS.Origins,
			Methods:     cfg.CORS.Methods,
			Headers:     cfg.CORS.Headers,
			Credentials: cfg.CORS.Credentials,
		},
		RequireToken: cfg.API.RequireToken,
		TrustProxy:   cfg.Server.TrustProxy,
		RateLimit:    cfg.RateLimit.Requests,
		RateWindow:   cfg.RateLimit.Window,
	})
	return srv.ListenAndServe(ctx, cfg.Addr())
}

// newPostStore uses the GCS bucket when configured, local files otherwise.
func newPostStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage.Store, func(), error) {
	if cfg.Cache.Bucket == "" {
		logger.Info("No cache bucket set, using local storage", "storage_path", cfg.Cache.LocalPath)
		if err := os.MkdirAll(cfg.Cache.LocalPath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create local storage directory: %w", err)
		}
		return storage.New(nil, "", cfg.Cache.LocalPath, logger), func() {}, nil
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize storage client: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close storage client", "error", err)
		}
	}
	logger.Info("Using Cloud Storage cache", "bucket", cfg.Cache.Bucket)
	return storage.New(client, cfg.Cache.Bucket, "", logger), closeFn, nil
}

func newEmailer(ctx context.Context, cfg *config.Config, logger *slog.Logger) *email.Sender {
	var provider email.Provider
	switch cfg.Email.Provider {
	case "gmail":
		service, err := email.NewGmailService(ctx, cfg.Email.CredentialsJSON)
		if err != nil {
			logger.Warn("Failed to initialize Gmail service, using mock email", "error", err)
			provider = email.NewMockProvider(logger)
			break
		}
		provider = email.NewGmailProvider(service, cfg.Email.From, logger)
	case "brevo":
		provider = email.NewBrevoProvider(cfg.Email.BrevoAPIKey, cfg.Email.From, cfg.App.Name, logger)
	default:
		logger.Info("Mock email mode enabled")
		provider = email.NewMockProvider(logger)
	}
	return email.New(provider, logger, cfg.App.BaseURL, cfg.App.Name)
}

func pollLoop(ctx context.Context, monitor *poll.Monitor, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := monitor.CheckAll(ctx); err != nil {
				logger.Error("Scheduled cache check failed", "error", err)
			}
		}
	}
}
