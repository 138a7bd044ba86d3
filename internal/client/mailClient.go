package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"creator-playbook/internal/apperr"
	"creator-playbook/internal/config"

	"golang.org/x/time/rate"
)

// ErrMailDisabled is returned when no API key is configured. Callers report
// it as a skipped side effect rather than a failure.
var ErrMailDisabled = errors.New("mail delivery disabled")

type Email struct {
	To      []string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
}

type MailClient interface {
	Send(ctx context.Context, email *Email) error
	AddContact(ctx context.Context, email, name string) error
}

type mailClientImpl struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
	audienceID string
	limiter    *rate.Limiter
}

func NewMailClient(cfg *config.Mail) MailClient {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &mailClientImpl{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		from:       cfg.From,
		audienceID: cfg.AudienceID,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (c *mailClientImpl) Send(ctx context.Context, email *Email) error {
	if c.apiKey == "" {
		return ErrMailDisabled
	}

	payload := map[string]interface{}{
		"from":    c.from,
		"to":      email.To,
		"subject": email.Subject,
	}
	if email.HTML != "" {
		payload["html"] = email.HTML
	}
	if email.Text != "" {
		payload["text"] = email.Text
	}
	if email.ReplyTo != "" {
		payload["reply_to"] = email.ReplyTo
	}

	return c.post(ctx, "/emails", payload)
}

func (c *mailClientImpl) AddContact(ctx context.Context, email, name string) error {
	if c.apiKey == "" || c.audienceID == "" {
		return ErrMailDisabled
	}

	payload := map[string]interface{}{
		"email":        email,
		"first_name":   name,
		"unsubscribed": false,
	}

	return c.post(ctx, fmt.Sprintf("/audiences/%s/contacts", c.audienceID), payload)
}

func (c *mailClientImpl) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal req payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for mail rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream("mail", "", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

		var mailErr struct {
			Name    string `json:"name"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(b, &mailErr)

		return apperr.Upstream("mail", mailErr.Name, resp.Header.Get("X-Request-Id"),
			fmt.Errorf("mail api error %d: %s", resp.StatusCode, string(b)))
	}

	return nil
}
