// Package httpget implements a plain HTTP fetcher using gocolly.
package httpget

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/codeecho/codeecho/internal/analysis"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements analysis.Fetcher with a single Colly GET. It never
// executes JavaScript, so the snapshot carries raw markup only.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (analysis.PageSnapshot, error) {
	var (
		result   analysis.PageSnapshot
		fetchErr error
	)
	collector := f.buildCollector(rawURL, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &result, &fetchErr); err != nil {
		return analysis.PageSnapshot{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(rawURL string, result *analysis.PageSnapshot, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	if f.transport != nil {
		collector.WithTransport(f.transport)
	}

	f.configureCollectorHooks(collector, rawURL, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, rawURL string, result *analysis.PageSnapshot, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = analysis.PageSnapshot{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			RawHTML:    string(r.Body),
			Strategy:   analysis.StrategyHTTP,
			FetchedAt:  time.Now().UTC(),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		// Non-2xx responses surface through OnError with a body attached.
		// A reachable server that answers with an error page is still a
		// fetchable snapshot.
		if r != nil && r.StatusCode > 0 {
			*result = analysis.PageSnapshot{
				URL:        rawURL,
				FinalURL:   responseURL(r, rawURL),
				StatusCode: r.StatusCode,
				RawHTML:    string(r.Body),
				Strategy:   analysis.StrategyHTTP,
				FetchedAt:  time.Now().UTC(),
			}
			return
		}
		*fetchErr = err
	})
}

func responseURL(r *colly.Response, fallback string) string {
	if r.Request != nil && r.Request.URL != nil {
		return r.Request.URL.String()
	}
	return fallback
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, result *analysis.PageSnapshot, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("http fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("http response failed: %w", *fetchErr)
		}
		// Visit repeats HTTP status errors that the OnError hook already
		// converted into a snapshot; only fail when nothing was captured.
		if err != nil && result.StatusCode == 0 {
			return fmt.Errorf("http visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
