package catalog

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

	"github.com/oshokin/dmd-downloader/internal/domain/release"
	"github.com/oshokin/dmd-downloader/internal/logger"
)

const (
	// DefaultBaseURL is the public TRUD API root.
	DefaultBaseURL = "https://isd.digital.nhs.uk/trud/api/v1"

	// DefaultUserAgent mimics a browser; the catalog rejects some bare clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// DefaultCallTimeout bounds a single catalog request.
	DefaultCallTimeout = 30 * time.Second

	// statusOK is the sentinel the catalog puts in the message field on success.
	statusOK = "OK"

	// maxErrorBody limits how much of an error response is kept for diagnostics.
	maxErrorBody = 4 << 10

	// redacted replaces the API key in logged URLs.
	redacted = "<redacted>"
)

var (
	// ErrBadHTTPStatus is returned for non-2xx catalog responses.
	ErrBadHTTPStatus = errors.New("unexpected http status")
	// ErrAPIStatus is returned when the catalog message is not "OK".
	ErrAPIStatus = errors.New("catalog api error")

	// errAPIKeyRequired is returned when the client is built without a key.
	errAPIKeyRequired = errors.New("api key must be provided")
	// errItemIDRequired is returned when releases are requested for an empty item.
	errItemIDRequired = errors.New("item id must be provided")
)

// Client queries the releases endpoint of the catalog.
type Client struct {
	// apiKey is the lower-cased TRUD API key embedded in request paths.
	apiKey string
	// baseURL is the API root without a trailing slash.
	baseURL string
	// userAgent is sent with every request.
	userAgent string
	// httpClient performs the requests.
	httpClient *http.Client
	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithBaseURL overrides the catalog root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithCallTimeout sets a default timeout for catalog calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// releasesResponse is the envelope of the releases endpoint.
type releasesResponse struct {
	APIVersion string            `json:"apiVersion"`
	Message    string            `json:"message"`
	HTTPStatus int               `json:"httpStatus"`
	Releases   []release.Release `json:"releases"`
}

// NewClient creates a catalog client. The API key is lower-cased as the catalog expects.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.ToLower(strings.TrimSpace(apiKey))
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		userAgent:   DefaultUserAgent,
		httpClient:  http.DefaultClient,
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// ReleasesURL builds GET <base>/keys/{apiKey}/items/{itemID}/releases[?latest].
func (c *Client) ReleasesURL(itemID string, latestOnly bool) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, "keys", c.apiKey, "items", itemID, "releases")
	if err != nil {
		return "", fmt.Errorf("build releases url: %w", err)
	}

	if latestOnly {
		endpoint += "?latest"
	}

	return endpoint, nil
}

// FetchReleases requests the releases of an item and reports every failure as an error.
func (c *Client) FetchReleases(ctx context.Context, itemID string, latestOnly bool) ([]release.Release, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, errItemIDRequired
	}

	endpoint, err := c.ReleasesURL(itemID, latestOnly)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", c.scrub(err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get releases: %w", c.scrub(err))
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))

		return nil, fmt.Errorf("%s, %s: %w", response.Status, describeErrorBody(body), ErrBadHTTPStatus)
	}

	var envelope releasesResponse
	if err = json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode releases: %w", err)
	}

	if envelope.Message != statusOK {
		message := envelope.Message
		if message == "" {
			message = "Unknown error"
		}

		return nil, fmt.Errorf("%s: %w", message, ErrAPIStatus)
	}

	return envelope.Releases, nil
}

// GetReleases is FetchReleases with the pass error policy applied:
// any failure is logged and yields an empty list.
func (c *Client) GetReleases(ctx context.Context, itemID string, latestOnly bool) []release.Release {
	endpoint, _ := c.ReleasesURL(itemID, latestOnly)

	logger.InfoKV(ctx, "Fetching releases from API", "url", c.Redact(endpoint))

	releases, err := c.FetchReleases(ctx, itemID, latestOnly)
	if err != nil {
		logger.ErrorKV(ctx, "Error fetching releases", "item_id", itemID, "error", err)
		return nil
	}

	logger.InfoKV(ctx, "Fetched releases", "item_id", itemID, "count", len(releases))

	return releases
}

// Redact hides the API key inside s.
func (c *Client) Redact(s string) string {
	if c.apiKey == "" {
		return s
	}

	return strings.ReplaceAll(s, c.apiKey, redacted)
}

// scrub rewrites an error so that its message no longer carries the API key.
// url.Error embeds the full request URL.
func (c *Client) scrub(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{
			Op:  urlErr.Op,
			URL: c.Redact(urlErr.URL),
			Err: urlErr.Err,
		}
	}

	return err
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// describeErrorBody extracts the catalog message from an error body, falling back to raw text.
func describeErrorBody(body []byte) string {
	var envelope releasesResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty body"
	}

	return text
}
