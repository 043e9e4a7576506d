package billing

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

	"github.com/rs/zerolog"

	"github.com/simonbarrel6/aakora/internal/config"
	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/ports/adapter"
	"github.com/simonbarrel6/aakora/internal/infra/logging"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
)

var _ adapter.BillingClient = (*Client)(nil)

const maxErrorBody = 512

// Client calls the billing API with bounded linear backoff retries.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	attempts  int
	baseDelay time.Duration
	timeout   time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	log       *zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithSleep replaces the backoff wait; tests use it to record delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") + "/" }
}

func NewClient(cfg config.BillingConfig, logger *zerolog.Logger, opts ...Option) *Client {
	l := logger.With().Str("component", "BillingClient").Logger()
	c := &Client{
		http:      &http.Client{},
		baseURL:   cfg.BaseURL(),
		userAgent: cfg.UserAgent,
		attempts:  cfg.Attempts,
		baseDelay: cfg.BaseDelay,
		timeout:   cfg.Timeout,
		sleep:     sleepCtx,
		log:       &l,
	}
	if c.attempts <= 0 {
		c.attempts = 3
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Call(ctx context.Context, endpoint string, payload adapter.Payload, method adapter.Method, opts ...adapter.CallOption) (adapter.Response, error) {
	var o adapter.CallOptions
	for _, fn := range opts {
		fn(&o)
	}
	l := logging.With(ctx, c.log)
	start := time.Now()

	var lastErr error
	made := 0
	for attempt := 1; attempt <= c.attempts; attempt++ {
		made = attempt
		resp, err := c.once(ctx, endpoint, payload, method, o)
		if err == nil {
			metrics.ObserveBillingCall(endpoint, "ok", time.Since(start))
			l.Debug().Str("endpoint", endpoint).Int("attempt", attempt).Str("code", resp.Code()).Msg("billing call ok")
			return resp, nil
		}
		lastErr = err
		metrics.IncBillingAttemptFailure(endpoint)
		l.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Int("max_attempts", c.attempts).Msg("billing attempt failed")

		if attempt == c.attempts {
			break
		}
		if err := c.sleep(ctx, time.Duration(attempt)*c.baseDelay); err != nil {
			lastErr = err
			break
		}
	}

	metrics.ObserveBillingCall(endpoint, "exhausted", time.Since(start))
	return adapter.Response{}, &domain.APIError{Endpoint: endpoint, Attempts: made, Cause: lastErr}
}

func (c *Client) once(ctx context.Context, endpoint string, payload adapter.Payload, method adapter.Method, o adapter.CallOptions) (adapter.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, endpoint, payload, method)
	if err != nil {
		return adapter.Response{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if o.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+o.Bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return adapter.Response{}, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return adapter.Response{}, fmt.Errorf("read body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return adapter.Response{}, fmt.Errorf("unexpected status %d: %s", res.StatusCode, truncate(body))
	}
	return decode(body)
}

func (c *Client) newRequest(ctx context.Context, endpoint string, payload adapter.Payload, method adapter.Method) (*http.Request, error) {
	target := c.baseURL + strings.TrimPrefix(endpoint, "/")
	switch method {
	case adapter.MethodGet, "":
		if len(payload) > 0 {
			q := url.Values{}
			for k, v := range payload {
				q.Set(k, adapter.Stringify(v))
			}
			target += "?" + q.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	case adapter.MethodPost:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	default:
		return nil, fmt.Errorf("%w: method %q", domain.ErrInvalidArgument, method)
	}
}

func decode(body []byte) (adapter.Response, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return adapter.Response{}, fmt.Errorf("decode body: %w", err)
	}
	if m == nil {
		return adapter.Response{}, errors.New("decode body: null")
	}
	var raw bytes.Buffer
	if err := json.Compact(&raw, body); err != nil {
		return adapter.Response{}, fmt.Errorf("compact body: %w", err)
	}
	return adapter.Response{Body: m, Raw: raw.Bytes()}, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
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
