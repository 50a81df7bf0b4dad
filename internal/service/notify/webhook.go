package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"

	"github.com/catalogmf/catalog/internal/model"
	"github.com/catalogmf/catalog/internal/service/log"
)

// WebhookConfig is the configuration of the webhook notifier.
type WebhookConfig struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Client      *http.Client
	Logger      log.Logger
}

func (c *WebhookConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Second
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Dummy
	}
}

// Message is the body sent to the host webhook.
type Message struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Title   string    `json:"title,omitempty"`
	Target  string    `json:"target,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// webhook is a model.Notifier that delivers notifications to the host
// shell using an HTTP webhook.
type webhook struct {
	cfg WebhookConfig
	now func() time.Time
}

// NewWebhook returns a new webhook notifier.
func NewWebhook(cfg WebhookConfig) (model.Notifier, error) {
	cfg.defaults()
	if cfg.URL == "" {
		return nil, errors.New("webhook URL is required")
	}

	return &webhook{cfg: cfg, now: time.Now}, nil
}

func (w *webhook) Notify(ctx context.Context, message string, opts model.NotifyOptions) error {
	msg := Message{
		ID:      uuid.New().String(),
		Message: message,
		Title:   opts.Title,
		Target:  opts.Target,
		SentAt:  w.now().UTC(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "could not marshal notification")
	}

	b := &backoff.Backoff{
		Min:    w.cfg.MinBackoff,
		Max:    w.cfg.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		lastErr = w.post(ctx, msg.ID, body)
		if lastErr == nil {
			w.cfg.Logger.Debugf("notification %s delivered on attempt %d", msg.ID, attempt)
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) || ctx.Err() != nil || attempt == w.cfg.MaxAttempts {
			break
		}

		wait := b.Duration()
		w.cfg.Logger.Warningf("notification %s attempt %d failed, retrying in %s: %s", msg.ID, attempt, wait, lastErr)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "notification aborted")
		}
	}

	return errors.Wrapf(lastErr, "could not deliver notification %s", msg.ID)
}

func (w *webhook) post(ctx context.Context, id string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequest(http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return &permanentError{err: errors.Wrap(err, "build request")}
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", id)

	resp, err := w.cfg.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "http post")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return &permanentError{err: fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)}
	}
	return nil
}

// permanentError marks errors that should not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }
