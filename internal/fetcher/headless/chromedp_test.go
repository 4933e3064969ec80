package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpRejectsNegativeParallel(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)
}

func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	f, err := NewChromedp(Config{})
	require.NoError(t, err)
	t.Cleanup(f.Close)

	require.Equal(t, 30*time.Second, f.cfg.NavigationTimeout)
	require.Equal(t, 500*time.Millisecond, f.cfg.SettleDelay)
	require.Nil(t, f.limiter)
}

func TestResponseMetaCapturesDocumentOnly(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://example.com/x.png"},
	})
	status, url := meta.snapshotWithFallbacks("https://example.com", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://example.com", url)

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 301, URL: "https://example.com/final"},
	})
	status, url = meta.snapshotWithFallbacks("https://example.com", "https://loc")
	require.Equal(t, 301, status)
	require.Equal(t, "https://example.com/final", url)
}

func TestResponseMetaFallsBackToLocation(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	_, url := meta.snapshotWithFallbacks("https://requested", "https://located")
	require.Equal(t, "https://located", url)
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	f := &Fetcher{limiter: make(chan struct{}, 1)}
	require.NoError(t, f.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, f.acquire(ctx))

	f.release()
	require.NoError(t, f.acquire(context.Background()))
}
