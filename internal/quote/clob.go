package quote

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

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
)

// DefaultCLOBURL is the public Polymarket CLOB API.
const DefaultCLOBURL = "https://clob.polymarket.com"

// ErrUnexpectedStatus is returned for non-200 responses from the CLOB.
var ErrUnexpectedStatus = errors.New("quote: unexpected status")

// CLOBClient reads order books from a CLOB-style HTTP API
// (GET {host}/book?token_id=<asset>).
type CLOBClient struct {
	host       string
	httpClient *http.Client
	maxTries   uint
	retryDelay time.Duration
}

// Option customizes a CLOBClient.
type Option func(*CLOBClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *CLOBClient) { cl.httpClient = c }
}

// WithMaxTries bounds the number of attempts per lookup (minimum 1).
func WithMaxTries(n uint) Option {
	return func(cl *CLOBClient) {
		if n > 0 {
			cl.maxTries = n
		}
	}
}

// WithRetryDelay sets the initial backoff interval between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(cl *CLOBClient) {
		if d > 0 {
			cl.retryDelay = d
		}
	}
}

// NewCLOBClient creates a client for the CLOB at host.
func NewCLOBClient(host string, timeout time.Duration, opts ...Option) *CLOBClient {
	if host == "" {
		host = DefaultCLOBURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &CLOBClient{
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxTries:   3,
		retryDelay: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BestBid fetches the order book for asset and returns its highest bid.
func (c *CLOBClient) BestBid(ctx context.Context, asset string) (decimal.Decimal, error) {
	book, err := c.Book(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return book.BestBid()
}

// Book fetches the order book for asset. Network errors, 429 and 5xx
// responses are retried with exponential backoff; anything else fails fast.
func (c *CLOBClient) Book(ctx context.Context, asset string) (*Book, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxInterval = c.retryDelay * 10

	operation := func() (*Book, error) {
		return c.fetchBook(ctx, asset)
	}

	book, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return nil, fmt.Errorf("order book %s: %w", asset, err)
	}
	return book, nil
}

func (c *CLOBClient) fetchBook(ctx context.Context, asset string) (*Book, error) {
	endpoint := fmt.Sprintf("%s/book?token_id=%s", c.host, url.QueryEscape(asset))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	var book Book
	if err := json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode order book: %w", err))
	}
	return &book, nil
}
