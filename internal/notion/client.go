// Package notion implements board.Store against a Notion database.
package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jomei/notionapi"

	"github.com/josephgoksu/voiceboard/internal/board"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"
	DefaultTimeout = 30 * time.Second

	pageSize = 100
)

// APIError is an error reported by the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion API error (%d): %s", e.StatusCode, e.Message)
}

// Is lets callers test API errors against the board sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case board.ErrTransientRemote:
		return e.Transient()
	case board.ErrNotFound:
		return e.StatusCode == http.StatusNotFound || e.Code == "object_not_found"
	}
	return false
}

// Transient reports whether the request may succeed if repeated.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 ||
		e.Code == "rate_limited"
}

// Config configures the client.
type Config struct {
	APIKey       string
	DatabaseID   string
	BaseURL      string
	Version      string
	Timeout      time.Duration
	MaxRetries   int
	Properties   PropertyNames
	StatusLabels StatusLabels
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client talks to the Notion API.
type Client struct {
	api        *notionapi.Client
	databaseID notionapi.DatabaseID
	maxRetries int
	props      PropertyNames
	labels     StatusLabels
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

var _ board.Store = (*Client)(nil)

// New creates a client. APIKey and DatabaseID are required.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("notion: API key is required")
	}
	if strings.TrimSpace(cfg.DatabaseID) == "" {
		return nil, errors.New("notion: database ID is required")
	}

	version := cfg.Version
	if version == "" {
		version = DefaultVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	httpClient, err := redirect(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api: notionapi.NewClient(notionapi.Token(cfg.APIKey),
			notionapi.WithHTTPClient(httpClient),
			notionapi.WithVersion(version),
		),
		databaseID: notionapi.DatabaseID(cfg.DatabaseID),
		maxRetries: max(cfg.MaxRetries, 0),
		props:      cfg.Properties.withDefaults(),
		labels:     cfg.StatusLabels.withDefaults(),
		logger:     logger,
		newBackOff: exponentialBackOff,
	}, nil
}

func exponentialBackOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(8*time.Second),
	)
}

// redirect points the client at baseURL when it is not the public API host.
func redirect(client *http.Client, baseURL string) (*http.Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" || baseURL == DefaultBaseURL {
		return client, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("notion: invalid base URL %q", baseURL)
	}
	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	redirected := *client
	redirected.Transport = hostTransport{base: base, next: next}
	return &redirected, nil
}

// hostTransport rewrites the scheme and host of every request.
type hostTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t hostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.base.Scheme
	out.URL.Host = t.base.Host
	out.Host = t.base.Host
	return t.next.RoundTrip(out)
}

// call runs one API request. Transient failures are retried up to maxRetries
// times; everything else is returned on the first attempt.
func (c *Client) call(ctx context.Context, what string, request func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	err := backoff.RetryNotify(func() error {
		err := classify(request())
		if err != nil && !errors.Is(err, board.ErrTransientRemote) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.logger.Debug("retrying store request", "call", what, "wait", wait, "error", err)
	})
	if err != nil && ctx.Err() != nil && !errors.Is(err, board.ErrTransientRemote) {
		return fmt.Errorf("%w: %w", board.ErrTransientRemote, err)
	}
	return err
}

// classify maps library errors onto APIError and the board sentinels. Anything
// that is not an API response (network failures, unreadable bodies) is transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Status, Code: string(apiErr.Code), Message: apiErr.Message}
	}
	return fmt.Errorf("%w: %w", board.ErrTransientRemote, err)
}
