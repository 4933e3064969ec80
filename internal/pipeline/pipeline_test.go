package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codeecho/codeecho/internal/analysis"
	"github.com/codeecho/codeecho/internal/hash/sha256"
	"github.com/codeecho/codeecho/internal/metrics"
	"github.com/codeecho/codeecho/internal/progress"
	"github.com/codeecho/codeecho/internal/publisher/memory"
	sessionmem "github.com/codeecho/codeecho/internal/session/memory"
	storagemem "github.com/codeecho/codeecho/internal/storage/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeFetcher struct {
	snap analysis.PageSnapshot
	err  error
}

func (f *fakeFetcher) Fetch(context.Context, string) (analysis.PageSnapshot, error) {
	return f.snap, f.err
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze(analysis.PageSnapshot) analysis.SignalBundle {
	return analysis.SignalBundle{SiteType: analysis.SiteInformational}
}

type fakeOrch struct {
	calls atomic.Int64
}

func (o *fakeOrch) Generate(_ context.Context, req analysis.GenerationRequest) analysis.GenerationResult {
	o.calls.Add(1)
	return analysis.GenerationResult{
		Section:     req.Section,
		Text:        "text for " + string(req.Section),
		BackendUsed: "primary",
		Attempts:    1,
	}
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("session-%d", s.n.Add(1)), nil
}

func okSnapshot() analysis.PageSnapshot {
	return analysis.PageSnapshot{
		URL:          "https://example.com",
		FinalURL:     "https://example.com",
		StatusCode:   200,
		RenderedHTML: "<html><body>hi</body></html>",
		Strategy:     analysis.StrategyRender,
	}
}

func newTestPipeline(t *testing.T, deps Deps) *Pipeline {
	t.Helper()
	if deps.Fetcher == nil {
		deps.Fetcher = &fakeFetcher{snap: okSnapshot()}
	}
	if deps.Analyzer == nil {
		deps.Analyzer = fakeAnalyzer{}
	}
	if deps.Orch == nil {
		deps.Orch = &fakeOrch{}
	}
	if deps.Sessions == nil {
		deps.Sessions = sessionmem.New()
	}
	if deps.Clock == nil {
		deps.Clock = fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	}
	if deps.IDs == nil {
		deps.IDs = &seqIDs{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	p, err := New(Config{RunTimeout: 30 * time.Second}, deps)
	require.NoError(t, err)
	return p
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, Deps{})
	require.Error(t, err)
}

func TestRunStoresSessionWithAllSections(t *testing.T) {
	t.Parallel()

	store := sessionmem.New()
	orch := &fakeOrch{}
	p := newTestPipeline(t, Deps{Sessions: store, Orch: orch})

	session, err := p.Run(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "session-1", session.ID)
	require.Len(t, session.Record.Sections, len(analysis.SectionOrder))
	require.EqualValues(t, len(analysis.SectionOrder), orch.calls.Load())

	stored, err := store.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, session.TextDoc, stored.TextDoc)
	require.NotEmpty(t, stored.JSONDoc)

	// Sections land in canonical order regardless of goroutine scheduling.
	for i, sec := range stored.Record.Sections {
		require.Equal(t, analysis.SectionOrder[i], sec.Section)
		require.Contains(t, sec.Text, string(analysis.SectionOrder[i]))
	}
}

func TestRunFetchErrorStoresNothing(t *testing.T) {
	t.Parallel()

	store := sessionmem.New()
	fetchErr := analysis.NewFetchError(analysis.FetchUnreachable, "https://down.example", nil)
	p := newTestPipeline(t, Deps{Sessions: store, Fetcher: &fakeFetcher{err: fetchErr}})

	_, err := p.Run(context.Background(), "https://down.example")
	require.Error(t, err)
	require.True(t, analysis.FetchErrorIs(err, analysis.FetchUnreachable))
	require.Zero(t, store.Len())
}

func TestRunUploadsArtifactsAndPublishes(t *testing.T) {
	t.Parallel()

	blobs := storagemem.NewBlobStore()
	events := memory.New()
	p := newTestPipeline(t, Deps{Blobs: blobs, Events: events})

	session, err := p.Run(context.Background(), "https://example.com")
	require.NoError(t, err)

	html, ok := blobs.Object(session.ID + "/snapshot.html")
	require.True(t, ok)
	require.Contains(t, string(html), "<body>hi</body>")
	_, ok = blobs.Object(session.ID + "/prompt.txt")
	require.True(t, ok)
	_, ok = blobs.Object(session.ID + "/prompt.json")
	require.True(t, ok)

	payloads := events.Payloads()
	require.Len(t, payloads, 1)
	event, ok := payloads[0].(completedEvent)
	require.True(t, ok)
	require.Equal(t, session.ID, event.SessionID)
}

func TestRunConcurrentRunsAreIsolated(t *testing.T) {
	t.Parallel()

	store := sessionmem.New()
	p := newTestPipeline(t, Deps{Sessions: store})

	const runs = 8
	type outcome struct {
		session analysis.Session
		err     error
	}
	results := make(chan outcome, runs)
	for i := 0; i < runs; i++ {
		go func() {
			s, err := p.Run(context.Background(), "https://example.com")
			results <- outcome{session: s, err: err}
		}()
	}

	seen := make(map[string]bool, runs)
	for i := 0; i < runs; i++ {
		out := <-results
		require.NoError(t, out.err)
		require.False(t, seen[out.session.ID], "duplicate session id %s", out.session.ID)
		seen[out.session.ID] = true
	}
	require.Equal(t, runs, store.Len())
}

func TestRunCanceledContextStoresNothing(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := sessionmem.New()
	p := newTestPipeline(t, Deps{Sessions: store})

	_, err := p.Run(ctx, "https://example.com")
	require.Error(t, err)
	require.Zero(t, store.Len())
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	stages := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		stages = append(stages, evt.Stage)
	}
	return stages
}

func TestRunRecordsContentHash(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, Deps{Hasher: sha256.New()})
	session, err := p.Run(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Len(t, session.Record.ContentHash, 64)

	again, err := p.Run(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, session.Record.ContentHash, again.Record.ContentHash)
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	p := newTestPipeline(t, Deps{Progress: emitter})

	session, err := p.Run(context.Background(), "https://example.com")
	require.NoError(t, err)

	stages := emitter.stages()
	require.Equal(t, progress.StageAnalysisStart, stages[0])
	require.Equal(t, progress.StageFetchDone, stages[1])
	require.Equal(t, progress.StageAnalysisDone, stages[len(stages)-1])

	sections := 0
	for _, stage := range stages {
		if stage == progress.StageSectionDone {
			sections++
		}
	}
	require.Equal(t, len(analysis.SectionOrder), sections)

	for _, evt := range emitter.events {
		require.Equal(t, session.ID, evt.SessionID)
	}
}

func TestRunEmitsErrorEventOnFetchFailure(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	fetchErr := analysis.NewFetchError(analysis.FetchUnreachable, "https://down.example", nil)
	p := newTestPipeline(t, Deps{Progress: emitter, Fetcher: &fakeFetcher{err: fetchErr}})

	_, err := p.Run(context.Background(), "https://down.example")
	require.Error(t, err)

	stages := emitter.stages()
	require.Equal(t, progress.StageAnalysisError, stages[len(stages)-1])
}

func TestRunTextDocDeterministicAcrossRuns(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, Deps{})
	first, err := p.Run(context.Background(), "https://example.com")
	require.NoError(t, err)
	second, err := p.Run(context.Background(), "https://example.com")
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.TextDoc, second.TextDoc)
	require.True(t, strings.HasPrefix(first.TextDoc, "Website Rebuild Prompt"))
}
