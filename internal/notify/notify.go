// Package notify delivers reader leads and signups to the configured
// webhook and Slack channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sgx-labs/breakdown/internal/config"
	"github.com/sgx-labs/breakdown/internal/logger"
	"github.com/sgx-labs/breakdown/internal/store"
)

// Delivery tuning.
const (
	WebhookAttempts = 2
	RequestTimeout  = 10 * time.Second
)

// ErrNotConfigured is returned when no webhook endpoint is set.
var ErrNotConfigured = errors.New("webhook not configured")

// Notifier posts events to a webhook and a Slack incoming webhook.
type Notifier struct {
	WebhookURL    string
	WebhookSecret string
	SlackURL      string

	HTTPClient *http.Client
	Backoff    time.Duration // multiplied by the attempt number
	Logger     *zap.Logger
}

// New builds a Notifier from the [notify] section.
func New(cfg config.NotifyConfig, log *zap.Logger) *Notifier {
	return &Notifier{
		WebhookURL:    strings.TrimSpace(cfg.WebhookURL),
		WebhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		SlackURL:      strings.TrimSpace(cfg.SlackWebhookURL),
		HTTPClient:    &http.Client{},
		Backoff:       150 * time.Millisecond,
		Logger:        logger.OrNop(log),
	}
}

// Enabled reports whether any destination is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && (n.WebhookURL != "" || n.SlackURL != "")
}

// Event is the JSON body sent to the webhook.
type Event struct {
	Type    string `json:"type"` // "lead" or "newsletter"
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
	Source  string `json:"source,omitempty"`
	SentAt  string `json:"sent_at"`
}

// LeadEvent converts a stored lead.
func LeadEvent(l store.Lead) Event {
	return Event{
		Type: "lead", ID: l.ID, Name: l.Name, Email: l.Email, Company: l.Company,
		Phone: l.Phone, Message: l.Message, Source: l.Source,
	}
}

// LeadReceived fans ev out to the webhook and Slack. Failures from both
// destinations are joined.
func (n *Notifier) LeadReceived(ctx context.Context, ev Event) error {
	if ev.SentAt == "" {
		ev.SentAt = time.Now().UTC().Format(time.RFC3339)
	}
	var errs []error
	if n.WebhookURL != "" {
		if err := n.PostWebhook(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if n.SlackURL != "" {
		if err := n.PostSlack(ctx, slackText(ev)); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		n.log().Warn("notification delivery failed", zap.String("type", ev.Type), zap.Error(err))
	}
	return err
}

// PostWebhook POSTs payload as JSON to WebhookURL?key=WebhookSecret.
// Transport errors and 5xx responses are retried with a linear backoff.
// A 200 body of {"ok": false, "error": ...} counts as a failure.
func (n *Notifier) PostWebhook(ctx context.Context, payload any) error {
	if n.WebhookURL == "" {
		return ErrNotConfigured
	}
	target, err := url.Parse(n.WebhookURL)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if n.WebhookSecret != "" {
		q := target.Query()
		q.Set("key", n.WebhookSecret)
		target.RawQuery = q.Encode()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= WebhookAttempts; attempt++ {
		retry, err := n.postOnce(ctx, target.String(), body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == WebhookAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.Backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("webhook: %w", lastErr)
}

type webhookReply struct {
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
}

func (n *Notifier) postOnce(ctx context.Context, target string, body []byte) (retry bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client().Do(req)
	if err != nil {
		// SECURITY: the URL carries the secret; report only the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return true, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}
	var reply webhookReply
	if json.Unmarshal(data, &reply) == nil && reply.OK != nil && !*reply.OK {
		msg := reply.Error
		if msg == "" {
			msg = "upstream error"
		}
		return false, errors.New(msg)
	}
	return false, nil
}

// PostSlack sends a text message to the Slack incoming webhook.
func (n *Notifier) PostSlack(ctx context.Context, text string) error {
	if n.SlackURL == "" {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client().Do(req)
	if err != nil {
		return fmt.Errorf("slack: post failed")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

func slackText(ev Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*New %s*\n", ev.Type)
	fmt.Fprintf(&b, "• *Email:* %s\n", ev.Email)
	if ev.Name != "" {
		fmt.Fprintf(&b, "• *Name:* %s\n", ev.Name)
	}
	if ev.Company != "" {
		fmt.Fprintf(&b, "• *Company:* %s\n", ev.Company)
	}
	src := ev.Source
	if src == "" {
		src = "-"
	}
	fmt.Fprintf(&b, "• *From:* %s", src)
	return b.String()
}

func (n *Notifier) client() *http.Client {
	if n.HTTPClient != nil {
		return n.HTTPClient
	}
	return http.DefaultClient
}

func (n *Notifier) log() *zap.Logger {
	return logger.OrNop(n.Logger)
}
