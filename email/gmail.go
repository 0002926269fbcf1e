package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailProvider sends emails via Gmail API.
type GmailProvider struct {
	service  *gmail.Service
	logger   *slog.Logger
	fromAddr string
	delay    time.Duration
}

// NewGmailProvider creates a new Gmail email provider.
// An empty fromAddr lets Gmail use the authenticated account.
func NewGmailProvider(service *gmail.Service, fromAddr string, logger *slog.Logger) *GmailProvider {
	return &GmailProvider{
		service:  service,
		logger:   logger,
		fromAddr: fromAddr,
		delay:    time.Second,
	}
}

// NewGmailService builds a Gmail client from explicit credentials, or from
// Application Default Credentials when running on Google Cloud.
func NewGmailService(ctx context.Context, credentialsJSON string) (*gmail.Service, error) {
	if credentialsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)), option.WithScopes(gmail.GmailSendScope))
	}
	if onGoogleCloud(ctx) {
		return gmail.NewService(ctx, option.WithScopes(gmail.GmailSendScope))
	}
	return nil, errors.New("gmail credentials required when not running on Google Cloud")
}

// onGoogleCloud checks for the GCP metadata server.
func onGoogleCloud(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/project/project-id", http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := (&http.Client{Timeout: 2 * time.Second}).Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	return resp.StatusCode == http.StatusOK
}

// sanitizeEmailHeader removes newlines and control characters to prevent header injection.
func sanitizeEmailHeader(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// buildMessage renders a raw RFC 5322 message, base64url encoded for the API.
func buildMessage(from, to, subject, htmlBody string) string {
	var msg strings.Builder
	msg.WriteString("MIME-Version: 1.0\r\n")
	if from != "" {
		msg.WriteString(fmt.Sprintf("From: %s\r\n", sanitizeEmailHeader(from)))
	}
	msg.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeEmailHeader(to)))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeEmailHeader(subject)))
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	msg.WriteString(htmlBody)
	return base64.URLEncoding.EncodeToString([]byte(msg.String()))
}

// Send sends an email via Gmail API.
func (g *GmailProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	raw := buildMessage(g.fromAddr, to, subject, htmlBody)
	return deliver(ctx, g.logger, "gmail", sanitizeEmailHeader(to), g.delay, func() error {
		_, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return retry.Unrecoverable(err)
		}
		return err
	})
}
