package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"portfolio-hub/internal/config"
	"portfolio-hub/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// Notifier delivers a notification over one outbound channel
type Notifier interface {
	Send(ctx context.Context, n models.Notification) error
}

// NotifyService fans admin notifications out to the enabled channels
type NotifyService struct {
	notifiers []Notifier
	log       logrus.FieldLogger
}

// NewNotifyService creates a notification service from config
func NewNotifyService(cfg *config.NotificationsConfig, log logrus.FieldLogger) *NotifyService {
	service := &NotifyService{log: log}

	if cfg.Email.Enabled {
		service.notifiers = append(service.notifiers, NewEmailNotifier(&cfg.Email))
	}
	if cfg.Webhook.Enabled {
		service.notifiers = append(service.notifiers, NewWebhookNotifier(&cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		service.notifiers = append(service.notifiers, NewTelegramNotifier(&cfg.Telegram, log))
	}
	return service
}

// NewNotifyServiceWith creates a service over the given notifiers
func NewNotifyServiceWith(log logrus.FieldLogger, notifiers ...Notifier) *NotifyService {
	return &NotifyService{notifiers: notifiers, log: log}
}

// Channels returns the number of enabled channels
func (s *NotifyService) Channels() int {
	return len(s.notifiers)
}

// Send delivers n on every channel. It fails only when every channel failed.
func (s *NotifyService) Send(ctx context.Context, n models.Notification) error {
	var lastErr error
	successCount := 0

	for _, notifier := range s.notifiers {
		channel := fmt.Sprintf("%T", notifier)
		if err := notifier.Send(ctx, n); err != nil {
			s.log.WithError(err).WithField("channel", channel).Error("notification failed")
			lastErr = err
			continue
		}
		successCount++
		s.log.WithField("channel", channel).Info("notification sent")
	}

	if successCount > 0 {
		return nil
	}
	return lastErr
}

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.EmailConfig
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg, send: smtp.SendMail}
}

// Send sends email notification
func (e *EmailNotifier) Send(_ context.Context, n models.Notification) error {
	subject := n.Title
	body := fmt.Sprintf("%s\n\n%s\n\nType: %s\nTime: %s\n",
		n.Title,
		n.Message,
		n.Type,
		n.CreatedAt.Format("2006-01-02 15:04:05"),
	)
	if n.Link != "" {
		body += fmt.Sprintf("Link: %s\n", n.Link)
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", strings.Join(e.config.To, ","))
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.From, e.config.Password, e.config.SMTPHost)
	addr := fmt.Sprintf("%s:%d", e.config.SMTPHost, e.config.SMTPPort)
	err := e.send(addr, auth, e.config.From, e.config.To, []byte(message))
	if err != nil {
		// some providers answer "short response" after accepting the mail
		if !strings.Contains(err.Error(), "short response") {
			return fmt.Errorf("failed to send email: %w", err)
		}
	}
	return nil
}

// WebhookNotifier posts notifications as JSON
type WebhookNotifier struct {
	config *config.WebhookConfig
	client *http.Client
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(cfg *config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{config: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

// Send sends webhook notification
func (w *WebhookNotifier) Send(ctx context.Context, n models.Notification) error {
	payload := map[string]interface{}{
		"id":         n.ID,
		"recipient":  n.Recipient,
		"title":      n.Title,
		"message":    n.Message,
		"type":       n.Type,
		"link":       n.Link,
		"created_at": n.CreatedAt.Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// TelegramNotifier sends Telegram notifications
type TelegramNotifier struct {
	config  *config.TelegramConfig
	client  *http.Client
	baseURL string
}

// NewTelegramNotifier creates a Telegram notifier. When a SOCKS5 proxy is
// configured the bot API is reached through it.
func NewTelegramNotifier(cfg *config.TelegramConfig, log logrus.FieldLogger) *TelegramNotifier {
	client := &http.Client{Timeout: 30 * time.Second}
	if cfg.Proxy != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.Proxy, nil, proxy.Direct)
		if err != nil {
			log.WithError(err).Warn("telegram proxy disabled")
		} else {
			client.Transport = &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					if cd, ok := dialer.(proxy.ContextDialer); ok {
						return cd.DialContext(ctx, network, addr)
					}
					return dialer.Dial(network, addr)
				},
			}
			log.WithField("proxy", cfg.Proxy).Info("telegram using SOCKS5 proxy")
		}
	}
	return &TelegramNotifier{config: cfg, client: client, baseURL: "https://api.telegram.org"}
}

// Send sends Telegram notification
func (t *TelegramNotifier) Send(ctx context.Context, n models.Notification) error {
	message := fmt.Sprintf("🔔 %s\n\n%s", n.Title, n.Message)
	if n.Link != "" {
		message += "\n" + n.Link
	}

	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.config.BotToken)
	payload := map[string]interface{}{
		"chat_id": t.config.ChatID,
		"text":    message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
