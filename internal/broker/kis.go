// Package broker implements the Korea Investment & Securities (KIS) OpenAPI
// adapter. It is the only package that talks to the brokerage: it owns the
// authenticated session, rate-limits every call, retries transient failures
// and translates KIS errors into the domain taxonomy.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"kisquant/internal/domain"
)

const (
	// BaseURLReal is the production trading endpoint.
	BaseURLReal = "https://openapi.koreainvestment.com:9443"
	// BaseURLVirtual is the paper-trading endpoint.
	BaseURLVirtual = "https://openapivts.koreainvestment.com:29443"

	tokenPath   = "/oauth2/tokenP"
	quotePath   = "/uapi/domestic-stock/v1/quotations/inquire-price"
	dailyPath   = "/uapi/domestic-stock/v1/quotations/inquire-daily-price"
	orderPath   = "/uapi/domestic-stock/v1/trading/order-cash"
	balancePath = "/uapi/domestic-stock/v1/trading/inquire-balance"

	trIDQuote   = "FHKST01010100"
	trIDDaily   = "FHKST01010400"
	trIDBuy     = "TTTC0802U"
	trIDSell    = "TTTC0801U"
	trIDBalance = "TTTC8434R"

	// tokenExpirySlack refreshes the token before the broker-side expiry.
	tokenExpirySlack = 60 * time.Second

	maxAttempts = 3
)

// Credentials hold everything the adapter needs to act on one account.
// They are supplied once at construction; the adapter never reads the
// environment itself.
type Credentials struct {
	AppKey             string
	AppSecret          string
	AccountNo          string
	AccountProductCode string
}

func (c Credentials) validate() error {
	if c.AppKey == "" || c.AppSecret == "" {
		return errors.Wrap(domain.ErrValidation, "app key and secret are required")
	}
	if c.AccountNo == "" || c.AccountProductCode == "" {
		return errors.Wrap(domain.ErrValidation, "account number and product code are required")
	}
	return nil
}

// Config tunes the adapter transport.
type Config struct {
	// BaseURL selects the KIS environment; defaults to the virtual one.
	BaseURL string
	// Timeout bounds every network call.
	Timeout time.Duration
	// RequestsPerSecond and Burst shape the shared rate limiter.
	RequestsPerSecond float64
	Burst             int
}

func (c *Config) fillDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = BaseURLVirtual
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
}

// Client is the KIS broker adapter.
type Client struct {
	httpc   *http.Client
	baseURL string
	creds   Credentials
	limiter *rate.Limiter
	logger  *zap.Logger

	refresh singleflight.Group

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time

	now func() time.Time
}

// NewClient builds the adapter. The session starts unauthenticated; the first
// call that needs a token acquires one.
func NewClient(logger *zap.Logger, creds Credentials, cfg Config) (*Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()

	return &Client{
		httpc:   &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		creds:   creds,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Authenticate ensures the session holds a token that has not expired.
// Concurrent callers share a single in-flight refresh; late arrivals await its
// result instead of issuing their own.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.tokenValid() {
		return nil
	}

	_, err, _ := c.refresh.Do("token", func() (interface{}, error) {
		// the flight winner re-checks: a refresh that completed while this
		// caller queued makes another one redundant
		if c.tokenValid() {
			return nil, nil
		}
		return nil, c.refreshToken(ctx)
	})
	return err
}

func (c *Client) tokenValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && c.now().Before(c.tokenExpiry)
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// refreshToken fetches a fresh access token, retrying transient failures with
// bounded exponential backoff. Invalid credentials fail immediately.
func (c *Client) refreshToken(ctx context.Context) error {
	payload, err := json.Marshal(tokenRequest{
		GrantType: "client_credentials",
		AppKey:    c.creds.AppKey,
		AppSecret: c.creds.AppSecret,
	})
	if err != nil {
		return errors.Wrap(err, "marshal token request")
	}

	bo := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 2 * time.Second, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(domain.ErrTransient, ctx.Err().Error())
			case <-time.After(bo.Duration()):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(payload))
		if err != nil {
			return errors.Wrap(err, "build token request")
		}
		req.Header.Set("content-type", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = errors.Wrapf(domain.ErrTransient, "token request failed: %v", err)
			c.logger.Warn("token refresh attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = errors.Wrapf(domain.ErrTransient, "read token response: %v", readErr)
				continue
			}
			var tok tokenResponse
			if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
				lastErr = errors.Wrap(domain.ErrTransient, "malformed token response")
				continue
			}
			c.mu.Lock()
			c.token = tok.AccessToken
			c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySlack)
			c.mu.Unlock()
			c.logger.Info("acquired KIS access token",
				zap.Duration("valid_for", time.Duration(tok.ExpiresIn)*time.Second-tokenExpirySlack))
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return errors.Wrapf(domain.ErrAuth, "broker rejected credentials: status %d", resp.StatusCode)
		case resp.StatusCode >= 500:
			lastErr = errors.Wrapf(domain.ErrTransient, "token endpoint returned %d", resp.StatusCode)
			c.logger.Warn("token refresh attempt failed", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
		default:
			return errors.Wrapf(domain.ErrAuth, "token endpoint returned %d: %s", resp.StatusCode, string(body))
		}
	}

	return errors.Wrapf(lastErr, "token refresh failed after %d attempts", maxAttempts)
}

// do performs an authenticated call and decodes the KIS envelope into out.
// The caller is responsible for rate-limiter discipline.
func (c *Client) do(ctx context.Context, method, path, trID string, query url.Values, body, out interface{}) error {
	if err := c.Authenticate(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("authorization", "Bearer "+c.bearer())
	req.Header.Set("appkey", c.creds.AppKey)
	req.Header.Set("appsecret", c.creds.AppSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrapf(domain.ErrTransient, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(domain.ErrAuth, "%s returned %d", path, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrapf(domain.ErrRateLimited, "%s returned 429", path)
	case resp.StatusCode >= 500:
		return errors.Wrapf(domain.ErrTransient, "%s returned %d", path, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return errors.Errorf("%s returned unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(domain.ErrDataUnavailable, "decode %s response: %v", path, err)
	}
	return nil
}

// withRetry runs a read operation, retrying transient failures. Auth and
// validation failures surface immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 2 * time.Second, Factor: 2, Jitter: true}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(domain.ErrTransient, ctx.Err().Error())
			case <-time.After(bo.Duration()):
			}
		}

		err = fn()
		if err == nil || !errors.Is(err, domain.ErrTransient) {
			return err
		}
		c.logger.Warn("transient broker failure, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
	}
	return errors.Wrapf(err, "%s failed after %d attempts", op, maxAttempts)
}

func apiError(path string, env envelope) error {
	msg := env.Msg1
	if msg == "" {
		msg = "unknown API error"
	}
	return fmt.Errorf("KIS API error on %s (rt_cd=%s): %s", path, env.RtCd, msg)
}
