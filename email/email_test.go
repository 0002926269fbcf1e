package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSender(provider Provider) *Sender {
	s := New(provider, testLogger(), "http://localhost:8080", "FroidAPI")
	s.now = func() time.Time { return time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC) }
	return s
}

func TestSendWelcome(t *testing.T) {
	mock := NewMockProvider(testLogger())
	sender := newTestSender(mock)

	err := sender.SendWelcome(context.Background(),
		Recipient{Username: "Reza", Email: "reza@example.com"},
		Client{IP: "203.0.113.7", UserAgent: "curl/8.0"})
	require.NoError(t, err)

	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "reza@example.com", sent[0].To)
	assert.Equal(t, "Welcome to FroidAPI", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Welcome, Reza")
	assert.Contains(t, sent[0].Body, "203.0.113.7")
	assert.Contains(t, sent[0].Body, "curl/8.0")
	assert.Contains(t, sent[0].Body, "Mar 5, 2024 at 2:30 PM UTC")
	assert.Contains(t, sent[0].Body, `<a href="http://localhost:8080/">FroidAPI</a>`)
}

func TestNoticesEscapeInput(t *testing.T) {
	mock := NewMockProvider(testLogger())
	sender := newTestSender(mock)
	to := Recipient{Username: "<script>alert(1)</script>", Email: "x@example.com"}

	require.NoError(t, sender.SendPasswordChanged(context.Background(), to, Client{UserAgent: `"><img src=x>`}))
	require.NoError(t, sender.SendTokenCreated(context.Background(), to, Client{}))

	sent := mock.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "FroidAPI: your password was changed", sent[0].Subject)
	assert.Equal(t, "FroidAPI: new API token", sent[1].Subject)
	for _, m := range sent {
		assert.NotContains(t, m.Body, "<script>")
		assert.NotContains(t, m.Body, `"><img`)
		assert.Contains(t, m.Body, "&lt;script&gt;")
	}
	assert.NotContains(t, sent[1].Body, "IP Address", "empty client details are omitted")
}

func TestSanitizeEmailHeader(t *testing.T) {
	assert.Equal(t, "a@b.comBcc: evil@x.com", sanitizeEmailHeader("a@b.com\r\nBcc: evil@x.com"))
	assert.Equal(t, "Hello World", sanitizeEmailHeader("Hello World"))
	assert.Equal(t, "سلام", sanitizeEmailHeader("سلام"))
}

func TestBuildMessage(t *testing.T) {
	raw, err := base64.URLEncoding.DecodeString(buildMessage("noreply@example.com", "a@b.com\nBcc: x@y.com", "Hi", "<p>body</p>"))
	require.NoError(t, err)

	msg := string(raw)
	assert.Contains(t, msg, "From: noreply@example.com\r\n")
	assert.Contains(t, msg, "To: a@b.comBcc: x@y.com\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n<p>body</p>"))

	raw, err = base64.URLEncoding.DecodeString(buildMessage("", "a@b.com", "Hi", ""))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "From:")
}

func TestBrevoProvider(t *testing.T) {
	var got brevoSendRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	b := NewBrevoProvider("secret", "noreply@example.com", "FroidAPI", testLogger())
	b.endpoint = srv.URL

	require.NoError(t, b.Send(context.Background(), "reza@example.com", "Subject", "<p>Hi</p>"))
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "noreply@example.com", got.Sender.Email)
	assert.Equal(t, []brevoContact{{Email: "reza@example.com"}}, got.To)
	assert.Equal(t, "<p>Hi</p>", got.HTML)
}

func TestBrevoProviderClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Key not found"}`))
	}))
	defer srv.Close()

	b := NewBrevoProvider("bad", "noreply@example.com", "", testLogger())
	b.endpoint = srv.URL
	b.delay = time.Millisecond

	err := b.Send(context.Background(), "reza@example.com", "Subject", "body")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *BrevoError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Code)
	assert.Equal(t, "Key not found", apiErr.Message)
}

func TestBrevoProviderServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	b := NewBrevoProvider("key", "noreply@example.com", "", testLogger())
	b.endpoint = srv.URL
	b.delay = time.Millisecond

	require.NoError(t, b.Send(context.Background(), "reza@example.com", "Subject", "body"))
	assert.Equal(t, int32(3), calls.Load())
}

func newTestGmail(t *testing.T, h http.Handler) *GmailProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	service, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication())
	require.NoError(t, err)

	g := NewGmailProvider(service, "noreply@example.com", testLogger())
	g.delay = time.Millisecond
	return g
}

func TestGmailProvider(t *testing.T) {
	var got gmail.Message
	g := newTestGmail(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages/send"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-1"}`))
	}))

	require.NoError(t, g.Send(context.Background(), "reza@example.com", "Hi", "<p>body</p>"))

	raw, err := base64.URLEncoding.DecodeString(got.Raw)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "From: noreply@example.com\r\n")
	assert.Contains(t, string(raw), "Subject: Hi\r\n")
}

func TestGmailProviderClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	g := newTestGmail(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid To header"}}`))
	}))

	require.Error(t, g.Send(context.Background(), "bad", "Hi", "body"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGmailProviderServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	g := newTestGmail(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"backend"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"msg-2"}`))
	}))

	require.NoError(t, g.Send(context.Background(), "reza@example.com", "Hi", "body"))
	assert.Equal(t, int32(2), calls.Load())
}
