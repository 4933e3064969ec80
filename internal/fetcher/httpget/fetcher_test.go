package httpget

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/codeecho/codeecho/internal/analysis"
)

func TestFetchAgainstLocalServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>hi</h1></body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second})
	snap, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, snap.StatusCode)
	require.Equal(t, analysis.StrategyHTTP, snap.Strategy)
	require.Contains(t, snap.RawHTML, "<h1>hi</h1>")
	require.Empty(t, snap.RenderedHTML)
}

func TestFetchKeepsNon2xxSnapshot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html><body>missing</body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Timeout: 5 * time.Second})
	snap, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, snap.StatusCode)
	require.Contains(t, snap.RawHTML, "missing")
}

func TestFetchFailsWhenServerUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), url)
	require.Error(t, err)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var result analysis.PageSnapshot
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, "https://example.com", &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onError(&colly.Response{StatusCode: 503, Body: []byte("down")}, errors.New("status 503"))
	require.NoError(t, fetchErr)
	require.Equal(t, 503, result.StatusCode)
	require.Equal(t, "down", result.RawHTML)

	result = analysis.PageSnapshot{}
	hooks.onError(nil, errors.New("dial refused"))
	require.EqualError(t, fetchErr, "dial refused")
	require.Zero(t, result.StatusCode)
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }
