package mls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrMarketDataUnavailable is returned when the vendor rejected our
// credentials or kept failing after every retry.
var ErrMarketDataUnavailable = errors.New("market data unavailable")

const (
	defaultPageSize   = 500
	defaultFetchCap   = 1000
	defaultTimeout    = 25 * time.Second
	maxAttempts       = 4
	initialRetryDelay = 1 * time.Second
)

// Fetcher is the slice of the client the report pipeline depends on.
type Fetcher interface {
	Fetch(ctx context.Context, query Query, cap int) ([]Record, error)
}

type ClientConfig struct {
	BaseURL           string
	Username          string
	Password          string
	RequestsPerMinute float64
	Burst             int
	PageSize          int
	DefaultCap        int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client talks to the MLS vendor's /properties endpoint with basic
// auth, a token-bucket limiter and limit/offset pagination.
type Client struct {
	baseURL    string
	username   string
	password   string
	pageSize   int
	defaultCap int
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

func NewClient(config ClientConfig) *Client {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.PageSize <= 0 || config.PageSize > defaultPageSize {
		config.PageSize = defaultPageSize
	}
	if config.DefaultCap <= 0 {
		config.DefaultCap = defaultFetchCap
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		username:   config.Username,
		password:   config.Password,
		pageSize:   config.PageSize,
		defaultCap: config.DefaultCap,
		timeout:    config.Timeout,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerMinute/60), config.Burst),
		httpClient: config.HTTPClient,
	}
}

// Fetch pages through /properties until the caller's cap is reached or
// the vendor returns a short page. A cap of zero uses the configured
// default.
func (c *Client) Fetch(ctx context.Context, query Query, cap int) ([]Record, error) {
	if cap <= 0 {
		cap = c.defaultCap
	}

	var records []Record
	offset := 0
	for len(records) < cap {
		pageSize := c.pageSize
		if remaining := cap - len(records); remaining < pageSize {
			pageSize = remaining
		}

		page, err := c.fetchPage(ctx, query, pageSize, offset)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
		if len(page) < pageSize {
			break
		}
		offset += len(page)
	}
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, query Query, limit, offset int) ([]Record, error) {
	endpoint := c.baseURL + "/properties?" + query.values(limit, offset).Encode()

	var lastErr error
	delay := initialRetryDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		page, err := c.doRequest(ctx, endpoint)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	if isRetryable(lastErr) || errors.Is(lastErr, ErrMarketDataUnavailable) {
		return nil, fmt.Errorf("%w: %v", ErrMarketDataUnavailable, lastErr)
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, endpoint string) ([]Record, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build mls request: %w", err)
	}
	request.SetBasicAuth(c.username, c.password)
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, retryableError{fmt.Errorf("mls request: %w", err)}
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusOK:
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: credentials rejected (status %d)", ErrMarketDataUnavailable, response.StatusCode)
	case response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, retryableError{fmt.Errorf("mls status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))}
	default:
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("mls status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []Record
	if err := json.NewDecoder(response.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode mls response: %w", err)
	}
	return records, nil
}

type retryableError struct {
	err error
}

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var retryable retryableError
	return errors.As(err, &retryable)
}
