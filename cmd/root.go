// Package cmd holds the froidapi command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"froidapi/config"
	"froidapi/scraper"

	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "froidapi",
	Short: "Unofficial REST API for farsroid.com",
	Long: "froidapi scrapes farsroid.com post pages and search listings and serves them as JSON.\n" +
		"Run `froidapi serve` to start the HTTP API.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding config.toml (default . and /etc/froidapi/)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	if configDir != "" {
		return config.Load(configDir)
	}
	return config.Load()
}

// newLogger builds the JSON logger used by every command.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func newScraper(cfg *config.Config, logger *slog.Logger) *scraper.Scraper {
	opts := []scraper.Option{
		scraper.WithBaseURL(cfg.Site.BaseURL),
		scraper.WithRetry(cfg.Site.Attempts, time.Second),
	}
	if cfg.Site.UserAgent != "" {
		opts = append(opts, scraper.WithUserAgent(cfg.Site.UserAgent))
	}
	return scraper.New(&http.Client{Timeout: cfg.Site.Timeout}, logger, opts...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// siteCommand loads config and a scraper for the one-shot commands.
// Logs go to stderr so stdout stays valid JSON.
func siteCommand() (*scraper.Scraper, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newScraper(cfg, newLogger(cfg, os.Stderr)), nil
}
