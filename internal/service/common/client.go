//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/arpitkhare33/maxshapez-printer-update/internal/auth"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/config"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/domain/build"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/logger"
	"github.com/arpitkhare33/maxshapez-printer-update/internal/version"
)

// Client wraps a resty client bound to the build-distribution server.
type Client struct {
	// http is the underlying resty client with the base URL set.
	http *resty.Client
	// strategy produces the authentication header of every request.
	strategy auth.Strategy

	// callTimeout is the default timeout for individual requests.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for requests, body transfer included.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithRetries retries requests that fail at the transport level.
func WithRetries(count int) Option {
	return func(c *Client) {
		if count > 0 {
			c.http.SetRetryCount(count)
		}
	}
}

// maxErrorBodyLength caps how much of an error response ends up in the error text.
const maxErrorBodyLength = 512

var (
	// errBaseURLRequired is returned when a required base URL is missing.
	errBaseURLRequired = errors.New("base URL must be provided")
	// errStrategyRequired is returned when no authentication strategy is set.
	errStrategyRequired = errors.New("authentication strategy must be provided")
	// errBadHTTPStatus is returned for non-success responses.
	errBadHTTPStatus = errors.New("unexpected http status")
)

// NewClient builds a client for baseURL. Resty's own diagnostics go to the
// logger carried by ctx.
func NewClient(ctx context.Context, baseURL string, strategy auth.Strategy, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	if strategy == nil {
		return nil, errStrategyRequired
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", version.UserAgent()).
		SetLogger(logger.FromContext(ctx))

	client := &Client{
		http:        httpClient,
		strategy:    strategy,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c == nil || c.http == nil {
		return nil
	}

	c.http.GetClient().CloseIdleConnections()

	return nil
}

// Download posts body as JSON to endpoint and streams a successful response
// into dst. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, endpoint string, body any, dst io.Writer) (int64, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	request, err := c.newRequest(callCtx)
	if err != nil {
		return 0, err
	}

	response, err := request.
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(endpoint)

	// The raw body must be closed on every path once a response exists.
	if response != nil && response.RawBody() != nil {
		defer func() {
			_ = response.RawBody().Close()
		}()
	}

	if err != nil {
		return 0, fmt.Errorf("%w: post %s: %w", build.ErrFetch, endpoint, err)
	}

	if !response.IsSuccess() {
		// Read past the limit so truncate can cut on a rune boundary.
		message, _ := io.ReadAll(io.LimitReader(response.RawBody(), maxErrorBodyLength+utf8.UTFMax))

		return 0, statusError(response, truncate(string(message), maxErrorBodyLength))
	}

	written, err := io.Copy(dst, response.RawBody())
	if err != nil {
		return written, fmt.Errorf("%w: read %s: %w", build.ErrFetch, endpoint, err)
	}

	return written, nil
}

// Get requests endpoint and returns the raw body of a successful response.
func (c *Client) Get(ctx context.Context, endpoint string) ([]byte, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	request, err := c.newRequest(callCtx)
	if err != nil {
		return nil, err
	}

	response, err := request.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", build.ErrFetch, endpoint, err)
	}

	if !response.IsSuccess() {
		return nil, statusError(response, truncate(response.String(), maxErrorBodyLength))
	}

	return response.Body(), nil
}

// newRequest creates a request bound to ctx with the authentication header set.
func (c *Client) newRequest(ctx context.Context) (*resty.Request, error) {
	name, value, err := c.strategy.Header()
	if err != nil {
		return nil, fmt.Errorf("%w: authentication header: %w", build.ErrConfig, err)
	}

	return c.http.R().
		SetContext(ctx).
		SetHeader(name, value), nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// statusError describes a non-success response.
func statusError(response *resty.Response, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("%w: %s, %s: %w",
			build.ErrFetch, response.Request.URL, response.Status(), errBadHTTPStatus)
	}

	return fmt.Errorf("%w: %s, %s, %q: %w",
		build.ErrFetch, response.Request.URL, response.Status(), message, errBadHTTPStatus)
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
