package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codeecho/codeecho/internal/analysis"
	"github.com/codeecho/codeecho/internal/config"
	"github.com/codeecho/codeecho/internal/metrics"
	sessionmem "github.com/codeecho/codeecho/internal/session/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

// Session ids must be well-formed UUIDs to pass handler validation.
const (
	sessionIDAlpha   = "0190c1ea-5c00-7aaa-8000-0000000000a1"
	sessionIDBravo   = "0190c1ea-5c00-7aaa-8000-0000000000b2"
	sessionIDUnknown = "0190c1ea-5c00-7aaa-8000-0000000000ff"
)

type fakeRunner struct {
	session analysis.Session
	err     error
	lastURL string
}

func (f *fakeRunner) Run(_ context.Context, rawURL string) (analysis.Session, error) {
	f.lastURL = rawURL
	return f.session, f.err
}

func testConfig() config.Config {
	cfg := config.Config{}
	cfg.Server.RequestTimeout = 5
	return cfg
}

func testSession(id string) analysis.Session {
	return analysis.Session{
		ID: id,
		Record: analysis.AnalysisRecord{
			URL:        "https://example.com",
			FinalURL:   "https://example.com",
			StatusCode: 200,
			Strategy:   analysis.StrategyRender,
			Signals: analysis.SignalBundle{
				SiteType: analysis.SiteInformational,
			},
			GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		TextDoc:   strings.Repeat("x", 1500),
		JSONDoc:   []byte(`{"url":"https://example.com"}`),
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(runner Runner, sessions analysis.SessionStore) *Server {
	if sessions == nil {
		sessions = sessionmem.New()
	}
	return NewServer(runner, sessions, testConfig(), zap.NewNop())
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestServer_Analyze_Succeeds(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{session: testSession(sessionIDAlpha)}
	server := newTestServer(runner, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString(`{"url":"https://example.com"}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "https://example.com", runner.lastURL)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, sessionIDAlpha, resp.SessionID)
	require.Equal(t, "success", resp.Status)
	require.Equal(t, analysis.SiteInformational, resp.Analysis.SiteType)
	require.Len(t, resp.Prompts.TextPreview, textPreviewLimit+len("..."))
	require.True(t, strings.HasSuffix(resp.Prompts.TextPreview, "..."))
	require.JSONEq(t, `{"url":"https://example.com"}`, string(resp.Prompts.JSONPreview))
}

func TestServer_Analyze_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Analyze_MissingURL(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString(`{"url":"  "}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "error", resp.Status)
	require.Equal(t, "url is required", resp.Message)
}

func TestServer_Analyze_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "invalid url",
			err:  analysis.NewFetchError(analysis.FetchInvalidURL, "not-a-url", errors.New("no host")),
			want: http.StatusBadRequest,
		},
		{
			name: "unreachable",
			err:  analysis.NewFetchError(analysis.FetchUnreachable, "https://down.example", errors.New("refused")),
			want: http.StatusBadGateway,
		},
		{
			name: "internal",
			err:  errors.New("store exploded"),
			want: http.StatusInternalServerError,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(&fakeRunner{err: tc.err}, nil)
			req := httptest.NewRequest(http.MethodPost, "/v1/analyze", bytes.NewBufferString(`{"url":"https://example.com"}`))
			rec := httptest.NewRecorder()

			server.Handler().ServeHTTP(rec, req)

			require.Equal(t, tc.want, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, "error", resp.Status)
			require.NotEmpty(t, resp.Message)
		})
	}
}

func TestServer_GetSession_Succeeds(t *testing.T) {
	t.Parallel()

	store := sessionmem.New()
	require.NoError(t, store.Create(context.Background(), testSession(sessionIDAlpha)))
	server := newTestServer(&fakeRunner{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionIDAlpha, nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, sessionIDAlpha, resp.SessionID)
	require.Equal(t, "https://example.com", resp.URL)
	require.Len(t, resp.TextDoc, 1500)
}

func TestServer_GetSession_NotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionIDUnknown, nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "session not found")
}

func TestServer_DownloadSession_ReturnsArchive(t *testing.T) {
	t.Parallel()

	store := sessionmem.New()
	require.NoError(t, store.Create(context.Background(), testSession(sessionIDBravo)))
	server := newTestServer(&fakeRunner{}, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionIDBravo+"/download", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "codeecho-"+sessionIDBravo+".zip")

	reader, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	require.Contains(t, names, "prompt.txt")
	require.Contains(t, names, "prompt.json")
	require.Contains(t, names, "metadata.json")
}

func TestServer_DownloadSession_NotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeRunner{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/"+sessionIDUnknown+"/download", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	server := NewServer(&fakeRunner{}, sessionmem.New(), cfg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

type countingStore struct {
	analysis.SessionStore
	gets int
}

func (c *countingStore) Get(ctx context.Context, id string) (analysis.Session, error) {
	c.gets++
	return c.SessionStore.Get(ctx, id)
}

func TestServer_SessionRoutes_MalformedID(t *testing.T) {
	t.Parallel()

	store := &countingStore{SessionStore: sessionmem.New()}
	server := newTestServer(&fakeRunner{}, store)

	for _, path := range []string{
		"/v1/sessions/not-a-uuid",
		"/v1/sessions/not-a-uuid/download",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		server.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "session not found")
	}
	require.Zero(t, store.gets, "malformed ids should never reach the store")
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	short := "plain ascii"
	require.Equal(t, short, truncate(short, textPreviewLimit))

	long := strings.Repeat("é", textPreviewLimit+5)
	got := truncate(long, textPreviewLimit)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, textPreviewLimit+len("..."), utf8.RuneCountInString(got))
	require.True(t, strings.HasSuffix(got, "..."))

	exact := strings.Repeat("a", textPreviewLimit)
	require.Equal(t, exact, truncate(exact, textPreviewLimit))
}
