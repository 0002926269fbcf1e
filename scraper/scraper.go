// Package scraper handles fetching pages and JSON from farsroid.com.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"froidapi/pkg/froid"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

const maxBodySize = 10 << 20

// StatusError reports an unexpected HTTP status from the site.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

func statusIs(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.Code == c {
			return true
		}
	}
	return false
}

// IsNotFound checks if an error is a 404 from the site.
func IsNotFound(err error) bool {
	return statusIs(err, http.StatusNotFound)
}

// IsAccessDenied checks if an error is a 401 or 403 from the site.
func IsAccessDenied(err error) bool {
	return statusIs(err, http.StatusUnauthorized, http.StatusForbidden)
}

// IsBadRequest checks if an error is a 400 from the site.
func IsBadRequest(err error) bool {
	return statusIs(err, http.StatusBadRequest)
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithBaseURL points the scraper at another host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(s *Scraper) { s.baseURL = u }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Scraper) { s.userAgent = ua }
}

// WithRetry overrides the number of attempts and the initial delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(s *Scraper) {
		s.attempts = attempts
		s.delay = delay
	}
}

// Scraper fetches and parses farsroid.com pages.
type Scraper struct {
	client    *http.Client
	logger    *slog.Logger
	baseURL   string
	userAgent string
	attempts  uint
	delay     time.Duration
}

// New creates a new scraper.
func New(client *http.Client, logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		client:    client,
		logger:    logger,
		baseURL:   froid.SiteURL,
		userAgent: DefaultUserAgent,
		attempts:  5,
		delay:     time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// response is what survives of an HTTP exchange once the body is read.
type response struct {
	header http.Header
	body   []byte
}

func (s *Scraper) fetch(ctx context.Context, endpoint, accept, purpose string) (*response, error) {
	pageURL := s.baseURL + endpoint
	jitter := max(s.delay, time.Millisecond)
	var out *response

	err := retry.Do(
		func() error {
			s.logger.Info("HTTP request starting",
				"method", "GET",
				"url", pageURL,
				"purpose", purpose)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}

			req.Header.Set("User-Agent", s.userAgent)
			req.Header.Set("Accept", accept)
			req.Header.Set("Accept-Language", "fa-IR,fa;q=0.9,en-US;q=0.8,en;q=0.7")
			// Go's http.Client negotiates compression itself.
			req.Header.Set("Cache-Control", "max-age=0")

			startTime := time.Now()
			resp, err := s.client.Do(req)
			duration := time.Since(startTime)

			if err != nil {
				s.logger.Warn("HTTP request failed, will retry",
					"url", pageURL,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					s.logger.Warn("Failed to close response body", "error", closeErr)
				}
			}()

			s.logger.Info("HTTP request completed",
				"url", pageURL,
				"status_code", resp.StatusCode,
				"duration_ms", duration.Milliseconds(),
				"content_length", resp.ContentLength)

			switch resp.StatusCode {
			case http.StatusOK, http.StatusFound, http.StatusNotModified:
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
				s.logger.Warn("HTTP request rejected", "url", pageURL, "status_code", resp.StatusCode)
				return &StatusError{URL: pageURL, Code: resp.StatusCode}
			default:
				s.logger.Warn("HTTP request returned non-OK status, will retry", "status_code", resp.StatusCode)
				return &StatusError{URL: pageURL, Code: resp.StatusCode}
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			out = &response{header: resp.Header, body: body}
			return nil
		},
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(jitter),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying fetch after error", "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			// Client errors will not change on retry.
			return !IsNotFound(err) && !IsAccessDenied(err) && !IsBadRequest(err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}
	return out, nil
}

// Document fetches an HTML page and parses it into a document tree.
func (s *Scraper) Document(ctx context.Context, endpoint string) (*goquery.Document, error) {
	resp, err := s.fetch(ctx, endpoint, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", "fetch_page")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func (s *Scraper) decodeJSON(ctx context.Context, endpoint string, v any) (http.Header, error) {
	resp, err := s.fetch(ctx, endpoint, "application/json", "fetch_json")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.body, v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return resp.header, nil
}
