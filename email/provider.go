// Package email sends account emails via multiple providers.
package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Recipient is the account an email is about.
type Recipient struct {
	Username string
	Email    string
}

// Client describes the request that triggered an email.
type Client struct {
	IP        string
	UserAgent string
}

// Sender sends account emails using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	baseURL  string // For links in emails
	appName  string
	now      func() time.Time
}

// New creates a new email sender with the given provider.
func New(provider Provider, logger *slog.Logger, baseURL, appName string) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		baseURL:  baseURL,
		appName:  appName,
		now:      time.Now,
	}
}

// SendWelcome greets a newly registered user.
func (s *Sender) SendWelcome(ctx context.Context, to Recipient, client Client) error {
	subject := "Welcome to " + s.appName
	body := s.formatWelcomeBody(to, client)

	s.logger.Info("Sending welcome email", "to", to.Email, "username", to.Username)
	return s.provider.Send(ctx, to.Email, subject, body)
}

// SendPasswordChanged tells a user their password was changed.
func (s *Sender) SendPasswordChanged(ctx context.Context, to Recipient, client Client) error {
	subject := s.appName + ": your password was changed"
	body := s.formatNoticeBody(to, client, "Password changed",
		"The password of your account was just changed.")

	s.logger.Info("Sending password change email", "to", to.Email, "username", to.Username)
	return s.provider.Send(ctx, to.Email, subject, body)
}

// SendTokenCreated tells a user a new API token was issued for their account.
func (s *Sender) SendTokenCreated(ctx context.Context, to Recipient, client Client) error {
	subject := s.appName + ": new API token"
	body := s.formatNoticeBody(to, client, "New API token",
		"A new API token was created for your account. Requests signed with it count against your account.")

	s.logger.Info("Sending token email", "to", to.Email, "username", to.Username)
	return s.provider.Send(ctx, to.Email, subject, body)
}

// deliver runs a provider's send attempt with retries and logs each try.
// Attempts that return retry.Unrecoverable are not repeated.
func deliver(ctx context.Context, logger *slog.Logger, provider, to string, delay time.Duration, attempt func() error) error {
	return retry.Do(
		func() error {
			start := time.Now()
			err := attempt()
			duration := time.Since(start)
			if err != nil {
				logger.Warn("Email send attempt failed",
					"provider", provider,
					"to", to,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			logger.Info("Email sent",
				"provider", provider,
				"to", to,
				"duration_ms", duration.Milliseconds())
			return nil
		},
		retry.Attempts(3),
		retry.Delay(delay),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(max(delay, time.Millisecond)),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("Retrying email send after error", "provider", provider, "attempt", n, "error", err)
		}),
	)
}
