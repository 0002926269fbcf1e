package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// BrevoProvider sends emails through Brevo's transactional API.
type BrevoProvider struct {
	apiKey   string
	sender   brevoContact
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	delay    time.Duration
}

// NewBrevoProvider creates a new Brevo email provider.
func NewBrevoProvider(apiKey, fromAddr, fromName string, logger *slog.Logger) *BrevoProvider {
	return &BrevoProvider{
		apiKey:   apiKey,
		sender:   brevoContact{Email: fromAddr, Name: fromName},
		endpoint: brevoEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
		delay:    time.Second,
	}
}

type brevoSendRequest struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// BrevoError is a non-2xx answer from the Brevo API.
type BrevoError struct {
	Code    int
	Message string
}

func (e *BrevoError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("brevo: HTTP %d", e.Code)
	}
	return fmt.Sprintf("brevo: HTTP %d: %s", e.Code, e.Message)
}

// temporary reports whether resending could succeed.
func (e *BrevoError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Send sends an email via Brevo API.
func (b *BrevoProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(brevoSendRequest{
		Sender:  b.sender,
		To:      []brevoContact{{Email: to}},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return deliver(ctx, b.logger, "brevo", to, b.delay, func() error {
		return b.post(ctx, payload)
	})
}

func (b *BrevoProvider) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &BrevoError{Code: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
	}
	if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<10)); readErr == nil && json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
	}
	if !apiErr.temporary() {
		return retry.Unrecoverable(apiErr)
	}
	return apiErr
}
