package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync/atomic"
	"testing"

	"portfolio-hub/internal/broadcast"
	"portfolio-hub/internal/config"
	"portfolio-hub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	err  error
	sent []models.Notification
}

func (s *stubNotifier) Send(_ context.Context, n models.Notification) error {
	s.sent = append(s.sent, n)
	return s.err
}

func TestNotifyService_SucceedsWhenAnyChannelDoes(t *testing.T) {
	ok := &stubNotifier{}
	broken := &stubNotifier{err: errors.New("smtp down")}
	svc := NewNotifyServiceWith(quietLogger(), broken, ok)

	require.NoError(t, svc.Send(context.Background(), models.Notification{Title: "x"}))
	assert.Len(t, ok.sent, 1)
	assert.Len(t, broken.sent, 1)

	allBroken := NewNotifyServiceWith(quietLogger(), broken)
	assert.Error(t, allBroken.Send(context.Background(), models.Notification{Title: "x"}))
}

func TestNewNotifyService_EnabledChannels(t *testing.T) {
	cfg := &config.NotificationsConfig{}
	cfg.Webhook.Enabled = true
	cfg.Webhook.URL = "http://localhost"
	cfg.Telegram.Enabled = true
	cfg.Telegram.Proxy = "127.0.0.1:1080"

	assert.Equal(t, 2, NewNotifyService(cfg, quietLogger()).Channels())
	assert.Equal(t, 0, NewNotifyService(&config.NotificationsConfig{}, quietLogger()).Channels())
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(&config.WebhookConfig{Enabled: true, URL: srv.URL})
	err := n.Send(context.Background(), models.Notification{
		ID: "n1", Recipient: "admin@example.com", Title: "Invoice paid", Type: "invoice", CreatedAt: fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, "Invoice paid", got["title"])
	assert.Equal(t, "2026-03-01T12:00:00Z", got["created_at"])
}

func TestWebhookNotifier_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(&config.WebhookConfig{Enabled: true, URL: srv.URL})
	assert.Error(t, n.Send(context.Background(), models.Notification{Title: "x"}))
}

func TestTelegramNotifier_SendsMessage(t *testing.T) {
	var path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(&config.TelegramConfig{Enabled: true, BotToken: "TOKEN", ChatID: "42"}, quietLogger())
	n.baseURL = srv.URL
	err := n.Send(context.Background(), models.Notification{Title: "Contract signed", Message: "done", Link: "/admin"})
	require.NoError(t, err)

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", body["chat_id"])
	assert.Contains(t, body["text"], "Contract signed")
	assert.Contains(t, body["text"], "/admin")
}

func TestEmailNotifier_Send(t *testing.T) {
	cfg := &config.EmailConfig{
		Enabled: true, SMTPHost: "smtp.example.com", SMTPPort: 587,
		From: "bot@example.com", To: []string{"admin@example.com"},
	}
	n := NewEmailNotifier(cfg)

	var addr string
	var msg string
	n.send = func(a string, _ smtp.Auth, from string, to []string, m []byte) error {
		addr, msg = a, string(m)
		return nil
	}
	require.NoError(t, n.Send(context.Background(), models.Notification{Title: "New lead", Message: "hi"}))
	assert.Equal(t, "smtp.example.com:587", addr)
	assert.True(t, strings.Contains(msg, "Subject: New lead\r\n"))

	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("short response: 250") }
	assert.NoError(t, n.Send(context.Background(), models.Notification{Title: "x"}))

	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("auth failed") }
	assert.Error(t, n.Send(context.Background(), models.Notification{Title: "x"}))
}

func TestNewNotification_DispatchesAdminOnly(t *testing.T) {
	ctx := context.Background()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	notifier := NewNotifyServiceWith(quietLogger(), NewWebhookNotifier(&config.WebhookConfig{Enabled: true, URL: srv.URL}))
	f := newFixture(t, func(o *Options) { o.Notifier = notifier })

	var published []any
	cancel := f.bus.Subscribe(func(ev broadcast.Event) { published = append(published, ev.Payload) }, broadcast.TopicNotification)
	defer cancel()

	f.svc.NewNotification(ctx, models.Notification{Recipient: "client@example.com", Title: "For client"})
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))

	res := f.svc.NewNotification(ctx, models.Notification{Recipient: "Admin@Example.com", Title: "For admin"})
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, "admin@example.com", res.Value.Recipient)
	assert.Equal(t, "info", res.Value.Type)
	assert.Len(t, published, 2)

	f.svc.UpdateSettings(ctx, map[string]any{"features": map[string]any{models.FeatureNotifications: false}})
	f.svc.NewNotification(ctx, models.Notification{Recipient: "admin@example.com", Title: "Muted"})
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
