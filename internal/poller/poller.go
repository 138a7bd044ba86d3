// Package poller re-queries a purchase after the buyer returns from hosted
// checkout, covering the gap until the payment webhook lands.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"creator-playbook/internal/dto"
	"creator-playbook/internal/logger"

	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts  = 15
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 3 * time.Second
)

// ErrNotPaid is returned when every attempt saw an unpaid purchase.
var ErrNotPaid = errors.New("purchase not paid")

// ErrUnknownSession means the server has no purchase for the session.
var ErrUnknownSession = errors.New("unknown checkout session")

type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Poller)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) { p.httpClient = c }
}

func WithSleep(sleep SleepFunc) Option {
	return func(p *Poller) { p.sleep = sleep }
}

func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

type Poller struct {
	httpClient   *http.Client
	baseURL      string
	sleep        SleepFunc
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

func New(baseURL string, opts ...Option) *Poller {
	p := &Poller{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:      strings.TrimRight(baseURL, "/"),
		sleep:        sleepCtx,
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls until the purchase is paid, the attempts run out or ctx ends.
// The last observed status is returned alongside ErrNotPaid.
func (p *Poller) Wait(ctx context.Context, sessionID string) (*dto.PurchaseStatusResponse, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}

	var (
		last  *dto.PurchaseStatusResponse
		delay = p.initialDelay
	)
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		status, err := p.fetch(ctx, sessionID)
		switch {
		case errors.Is(err, ErrUnknownSession):
			return nil, err
		case err != nil:
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			logger.Get().Debug("purchase status poll failed",
				zap.String("session_id", sessionID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		default:
			last = status
			if status.Paid {
				return status, nil
			}
		}

		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			return last, err
		}
		delay = nextDelay(delay, p.maxDelay)
	}

	return last, ErrNotPaid
}

func (p *Poller) fetch(ctx context.Context, sessionID string) (*dto.PurchaseStatusResponse, error) {
	endpoint := p.baseURL + "/api/purchases/status?session_id=" + url.QueryEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnknownSession
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("status endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var status dto.PurchaseStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
