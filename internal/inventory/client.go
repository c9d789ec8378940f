package inventory

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

	"github.com/shopspring/decimal"

	"github.com/movilpay/vendorpay-backend/pkg/config"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/metrics"
)

var (
	errBaseURLRequired = errors.New("inventory base url is required")
	errTokenRequired   = errors.New("inventory bearer token is required")
	errLoggerRequired  = errors.New("inventory logger is required")
)

// Device is the registry's record for a looked-up IMEI.
type Device struct {
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Color        string          `json:"color"`
	Capacity     string          `json:"capacity"`
	ListedPrice  decimal.Decimal `json:"listed_price"`
	Available    bool            `json:"available"`
	RegisteredAt time.Time       `json:"registered_at"`
}

// Result carries the lookup outcome. Unverified means the registry could not
// be reached, which is a different signal from a definitive not-found.
type Result struct {
	Status   enums.InventoryStatus
	Device   *Device
	Snapshot json.RawMessage
}

// Client performs authenticated IMEI lookups against the external device
// registry with a per-attempt timeout and bounded retry on 5xx.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	bearerToken    string
	attemptTimeout time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	logger         *logger.Logger
	metrics        *metrics.SettlementMetrics
}

// NewClient validates the registry configuration and builds a lookup client.
func NewClient(cfg config.InventoryConfig, logg *logger.Logger, m *metrics.SettlementMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	token := strings.TrimSpace(cfg.BearerToken)
	if token == "" {
		return nil, errTokenRequired
	}
	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = time.Second
	}

	return &Client{
		httpClient:     &http.Client{},
		baseURL:        baseURL,
		bearerToken:    token,
		attemptTimeout: attemptTimeout,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		logger:         logg,
		metrics:        m,
	}, nil
}

// Lookup resolves an IMEI against the registry. 5xx responses are retried
// with exponential backoff; 4xx and well-formed not-found responses are
// terminal. Exhausting retries yields an unverified result, never an error,
// so the caller can surface "could not verify" to a human. A cancelled
// context stops in-flight retries and is the only error path.
func (c *Client) Lookup(ctx context.Context, imei string) (Result, error) {
	ctx = c.logger.WithIMEI(ctx, imei)

	backoff := c.initialBackoff
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result, retryable, err := c.attempt(ctx, imei)
		if err == nil {
			c.observe(result.Status)
			return result, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if !retryable {
			c.logger.Warn(ctx, fmt.Sprintf("inventory lookup terminal failure: %v", err))
			c.observe(enums.InventoryStatusUnverified)
			return Result{Status: enums.InventoryStatusUnverified}, nil
		}

		c.logger.Warn(ctx, fmt.Sprintf("inventory lookup attempt %d/%d failed: %v", attempt, c.maxAttempts, err))
		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	c.logger.Warn(ctx, "inventory lookup exhausted retries, recording unverified")
	c.observe(enums.InventoryStatusUnverified)
	return Result{Status: enums.InventoryStatusUnverified}, nil
}

// attempt performs one bounded lookup. The bool reports whether a failure is
// retryable.
func (c *Client) attempt(ctx context.Context, imei string) (Result, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/devices/%s", c.baseURL, imei)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = fmt.Errorf("building registry request: %w", urlErr.Err)
		}
		return Result{}, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures and attempt timeouts count as retryable. The
		// url.Error embeds the full request URL, IMEI included, so only the
		// underlying cause may surface in diagnostics.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = fmt.Errorf("registry request failed: %w", urlErr.Err)
		}
		return Result{}, true, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var device Device
		if err := json.Unmarshal(body, &device); err != nil {
			return Result{}, false, fmt.Errorf("decoding device record: %w", err)
		}
		return Result{
			Status:   enums.InventoryStatusVerified,
			Device:   &device,
			Snapshot: json.RawMessage(body),
		}, false, nil
	case resp.StatusCode == http.StatusNotFound:
		return Result{Status: enums.InventoryStatusNotFound, Snapshot: json.RawMessage(body)}, false, nil
	case resp.StatusCode >= 500:
		return Result{}, true, fmt.Errorf("registry returned %s", resp.Status)
	default:
		return Result{}, false, fmt.Errorf("registry returned %s", resp.Status)
	}
}

func (c *Client) observe(status enums.InventoryStatus) {
	if c.metrics != nil {
		c.metrics.IncInventoryOutcome(status.String())
	}
}
