// Package server handles HTTP endpoints and request routing.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"froidapi/email"
	"froidapi/pkg/froid"
	"froidapi/scraper"
	"froidapi/users"
)

// Posts serves parsed post pages, usually through the cache.
type Posts interface {
	Post(ctx context.Context, id int) (*froid.PostDownloadPage, error)
}

// Site queries the site's search and comment endpoints.
type Site interface {
	Search(ctx context.Context, q scraper.SearchQuery) (*froid.PaginatedResult, error)
	LegacySearch(ctx context.Context, query string, page int) (*froid.LegacySearchPage, error)
	Comments(ctx context.Context, q scraper.CommentQuery) ([]froid.Comment, error)
}

// Users interface for account and token management.
type Users interface {
	Register(ctx context.Context, username, emailAddr, password string) (*users.User, error)
	Authenticate(ctx context.Context, username, password string) (*users.User, error)
	Delete(ctx context.Context, user *users.User) error
	ChangePassword(ctx context.Context, user *users.User, newPassword string) (*users.User, error)
	Token(ctx context.Context, user *users.User) (*users.Token, error)
	CreateToken(ctx context.Context, user *users.User) (*users.Token, error)
	RevokeToken(ctx context.Context, user *users.User) error
	VerifyToken(ctx context.Context, value string) (*users.Token, error)
}

// Emailer interface for account notices.
type Emailer interface {
	SendWelcome(ctx context.Context, to email.Recipient, client email.Client) error
	SendPasswordChanged(ctx context.Context, to email.Recipient, client email.Client) error
	SendTokenCreated(ctx context.Context, to email.Recipient, client email.Client) error
}

// Poller interface for triggering cache refreshes.
type Poller interface {
	CheckAll(ctx context.Context) error
}

// AppInfo is served at the root path.
type AppInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Contact     string `json:"contact"`
}

// CORS lists the allowed cross-origin settings.
type CORS struct {
	Origins     []string
	Methods     []string
	Headers     []string
	Credentials bool
}

// Server handles HTTP requests.
type Server struct {
	posts        Posts
	site         Site
	users        Users
	emailer      Emailer
	poller       Poller
	logger       *slog.Logger
	info         AppInfo
	cors         CORS
	requireToken bool
	trustProxy   bool
	limiter      *rateLimiter
}

// Config holds server configuration.
type Config struct {
	Posts        Posts
	Site         Site
	Users        Users
	Emailer      Emailer // Optional
	Poller       Poller
	Logger       *slog.Logger
	Info         AppInfo
	CORS         CORS
	RequireToken bool // Gate post and search routes behind an API token
	TrustProxy   bool // Take client IPs from X-Forwarded-For / X-Real-IP

	// Per-IP limit on user routes: RateLimit requests per RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		posts:        cfg.Posts,
		site:         cfg.Site,
		users:        cfg.Users,
		emailer:      cfg.Emailer,
		poller:       cfg.Poller,
		logger:       cfg.Logger,
		info:         cfg.Info,
		cors:         cfg.CORS,
		requireToken: cfg.RequireToken,
		trustProxy:   cfg.TrustProxy,
		limiter:      newRateLimiter(cfg.RateLimit, cfg.RateWindow),
	}
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /pollz", s.handlePoll)

	posts := func(h http.HandlerFunc) http.Handler {
		if !s.requireToken {
			return h
		}
		return s.tokenGate(h)
	}
	mux.Handle("GET /v1/posts/search", posts(s.handleSearch))
	mux.Handle("GET /v1/posts/legacy-search", posts(s.handleLegacySearch))
	mux.Handle("GET /v1/posts/{post_id}/dp", posts(s.handleDownloadPage))
	mux.Handle("GET /v1/posts/{post_id}/comments", posts(s.handleComments))
	mux.Handle("GET /v1/search", posts(s.handleSearchList))

	limited := func(h http.HandlerFunc) http.Handler {
		return s.rateLimit(h)
	}
	mux.Handle("POST /v1/users/register", limited(s.handleRegister))
	mux.Handle("POST /v1/users/me", limited(s.handleMe))
	mux.Handle("DELETE /v1/users/me", limited(s.handleDeleteMe))
	mux.Handle("PUT /v1/users/me/change-password", limited(s.handleChangePassword))
	mux.Handle("POST /v1/users/me/token", limited(s.handleToken))
	mux.Handle("POST /v1/users/me/token/new", limited(s.handleNewToken))
	mux.Handle("DELETE /v1/users/me/token/revoke", limited(s.handleRevokeToken))

	return s.logRequests(s.withCORS(securityHeaders(mux)))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,  // Time to read request headers and body
		WriteTimeout:      60 * time.Second,  // Scrapes with retries can be slow
		IdleTimeout:       120 * time.Second, // Time to keep connection alive between requests
		ReadHeaderTimeout: 5 * time.Second,   // Time to read request headers only
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.info)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("Poll endpoint triggered")

	if err := s.poller.CheckAll(r.Context()); err != nil {
		s.logger.Error("Poll check failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Check failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
