package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/dmd-downloader/internal/domain/release"
)

const okPayload = `{
	"apiVersion": "1",
	"message": "OK",
	"httpStatus": 200,
	"releases": [{
		"id": "42",
		"releaseDate": "2025-01-06",
		"archiveFileUrl": "https://x/a.zip",
		"archiveFileName": "a.zip"
	}]
}`

// newCatalog serves handler and returns a client pointed at it.
func newCatalog(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := NewClient("SeCrEt", WithBaseURL(ts.URL+"/"), WithCallTimeout(time.Second))
	require.NoError(t, err)

	return c
}

// TestNewClient_ValidatesKey verifies that an empty key is rejected.
func TestNewClient_ValidatesKey(t *testing.T) {
	t.Parallel()

	c, err := NewClient("  ")
	require.ErrorIs(t, err, errAPIKeyRequired)
	require.Nil(t, c)
}

// TestReleasesURL checks path layout, key normalisation and the latest flag.
func TestReleasesURL(t *testing.T) {
	t.Parallel()

	c, err := NewClient("ABC", WithBaseURL("https://example.test/trud/api/v1/"))
	require.NoError(t, err)

	got, err := c.ReleasesURL("24", true)
	require.NoError(t, err)
	require.Equal(t, "https://example.test/trud/api/v1/keys/abc/items/24/releases?latest", got)

	got, err = c.ReleasesURL("24", false)
	require.NoError(t, err)
	require.Equal(t, "https://example.test/trud/api/v1/keys/abc/items/24/releases", got)
}

// TestFetchReleases_OK decodes the release list and sends the expected request.
func TestFetchReleases_OK(t *testing.T) {
	t.Parallel()

	var (
		calls    atomic.Int32
		received atomic.Pointer[http.Request]
	)

	c := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		received.Store(r.Clone(context.Background()))

		_, _ = w.Write([]byte(okPayload))
	})

	releases, err := c.FetchReleases(context.Background(), "24", true)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Equal(t, release.ID("42"), releases[0].ID)
	require.Equal(t, "a.zip", releases[0].ArchiveFileName)
	require.Equal(t, int32(1), calls.Load())

	r := received.Load()
	require.NotNil(t, r)
	require.Equal(t, "/keys/secret/items/24/releases", r.URL.Path)
	require.True(t, r.URL.Query().Has("latest"))
	require.Equal(t, "application/json", r.Header.Get("Accept"))
	require.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
}

// TestFetchReleases_Errors covers the API sentinel, HTTP status and decode failures.
func TestFetchReleases_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "message is not OK",
			status:  http.StatusOK,
			body:    `{"message": "Item not subscribed", "releases": []}`,
			wantErr: ErrAPIStatus,
			wantMsg: "Item not subscribed",
		},
		{
			name:    "missing message",
			status:  http.StatusOK,
			body:    `{"releases": []}`,
			wantErr: ErrAPIStatus,
			wantMsg: "Unknown error",
		},
		{
			name:    "http error with catalog message",
			status:  http.StatusBadRequest,
			body:    `{"message": "Invalid API key", "httpStatus": 400}`,
			wantErr: ErrBadHTTPStatus,
			wantMsg: "Invalid API key",
		},
		{
			name:    "http error with plain body",
			status:  http.StatusBadGateway,
			body:    "upstream down",
			wantErr: ErrBadHTTPStatus,
			wantMsg: "upstream down",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := newCatalog(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			releases, err := c.FetchReleases(context.Background(), "24", true)
			require.ErrorIs(t, err, tc.wantErr)
			require.Contains(t, err.Error(), tc.wantMsg)
			require.Nil(t, releases)

			// The lenient variant turns the same failure into an empty list.
			require.Empty(t, c.GetReleases(context.Background(), "24", true))
		})
	}
}

// TestFetchReleases_BadJSON ensures malformed payloads are reported.
func TestFetchReleases_BadJSON(t *testing.T) {
	t.Parallel()

	c := newCatalog(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := c.FetchReleases(context.Background(), "24", false)
	require.Error(t, err)
	require.Empty(t, c.GetReleases(context.Background(), "24", false))
}

// TestFetchReleases_TransportErrorIsRedacted checks that the key never leaks through url.Error.
func TestFetchReleases_TransportErrorIsRedacted(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	baseURL := ts.URL
	ts.Close()

	c, err := NewClient("very-secret-key", WithBaseURL(baseURL))
	require.NoError(t, err)

	_, err = c.FetchReleases(context.Background(), "24", true)
	require.Error(t, err)
	require.NotContains(t, err.Error(), "very-secret-key")
	require.Contains(t, err.Error(), redacted)
	require.Empty(t, c.GetReleases(context.Background(), "24", true))
}

// TestFetchReleases_EmptyItem rejects a blank item without calling the server.
func TestFetchReleases_EmptyItem(t *testing.T) {
	t.Parallel()

	c := newCatalog(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("server must not be called")
	})

	_, err := c.FetchReleases(context.Background(), " ", true)
	require.ErrorIs(t, err, errItemIDRequired)
}

// TestRedact replaces every occurrence of the key.
func TestRedact(t *testing.T) {
	t.Parallel()

	c, err := NewClient("K3Y")
	require.NoError(t, err)

	got := c.Redact("https://h/keys/k3y/items/24?k=k3y")
	require.False(t, strings.Contains(got, "k3y"))
	require.Equal(t, "https://h/keys/"+redacted+"/items/24?k="+redacted, got)
}
