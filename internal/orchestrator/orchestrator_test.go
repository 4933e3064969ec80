package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codeecho/codeecho/internal/analysis"
	"github.com/codeecho/codeecho/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type fakeBackend struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Generate(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func designRequest() analysis.GenerationRequest {
	return analysis.GenerationRequest{
		Section:       analysis.SectionDesign,
		SystemPrompt:  "you describe visual design",
		Prompt:        "describe the design of example.com",
		SignalExcerpt: "palette_mood: muted\nlayout_pattern: grid-like",
	}
}

func TestNewRejectsUnknownOrderEntry(t *testing.T) {
	t.Parallel()

	_, err := New(Config{DefaultOrder: []string{"ghost"}}, nil, zap.NewNop())
	require.Error(t, err)
}

func TestNewRejectsDuplicateBackends(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, []analysis.Backend{
		&fakeBackend{name: "twin"},
		&fakeBackend{name: "twin"},
	}, zap.NewNop())
	require.Error(t, err)
}

func TestGenerateUsesFirstHealthyBackend(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{name: "primary", text: "primary output"}
	secondary := &fakeBackend{name: "secondary", text: "secondary output"}
	chain, err := New(Config{AttemptTimeout: time.Second}, []analysis.Backend{primary, secondary}, zap.NewNop())
	require.NoError(t, err)

	res := chain.Generate(context.Background(), designRequest())
	require.Equal(t, "primary output", res.Text)
	require.Equal(t, "primary", res.BackendUsed)
	require.Equal(t, 1, res.Attempts)
	require.False(t, res.Degraded)
	require.Zero(t, secondary.calls)
}

func TestGenerateFallsThroughFailures(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{name: "primary", err: errors.New("rate limited")}
	empty := &fakeBackend{name: "empty", text: "   \n\t "}
	last := &fakeBackend{name: "last", text: "useful text"}
	chain, err := New(Config{AttemptTimeout: time.Second}, []analysis.Backend{primary, empty, last}, zap.NewNop())
	require.NoError(t, err)

	res := chain.Generate(context.Background(), designRequest())
	require.Equal(t, "useful text", res.Text)
	require.Equal(t, "last", res.BackendUsed)
	require.Equal(t, 3, res.Attempts)
	require.True(t, res.Degraded, "non-first backend output is a fallback")
}

func TestGenerateNeverReturnsEmpty(t *testing.T) {
	t.Parallel()

	primary := &fakeBackend{name: "primary", err: errors.New("down")}
	secondary := &fakeBackend{name: "secondary", err: errors.New("also down")}
	chain, err := New(Config{AttemptTimeout: time.Second}, []analysis.Backend{primary, secondary}, zap.NewNop())
	require.NoError(t, err)

	res := chain.Generate(context.Background(), designRequest())
	require.True(t, res.Degraded)
	require.Empty(t, res.BackendUsed, "synthesized output reports no backend")
	require.Equal(t, 2, res.Attempts)
	require.NotEmpty(t, strings.TrimSpace(res.Text))
	require.Contains(t, res.Text, "palette_mood: muted")
}

func TestGenerateWithNoBackendsSynthesizes(t *testing.T) {
	t.Parallel()

	chain, err := New(Config{}, nil, zap.NewNop())
	require.NoError(t, err)

	res := chain.Generate(context.Background(), designRequest())
	require.True(t, res.Degraded)
	require.Empty(t, res.BackendUsed)
	require.Zero(t, res.Attempts)
	require.NotEmpty(t, res.Text)
}

func TestGenerateRespectsRequestOrder(t *testing.T) {
	t.Parallel()

	a := &fakeBackend{name: "a", text: "from a"}
	b := &fakeBackend{name: "b", text: "from b"}
	chain, err := New(Config{AttemptTimeout: time.Second}, []analysis.Backend{a, b}, zap.NewNop())
	require.NoError(t, err)

	req := designRequest()
	req.Backends = []string{"b"}
	res := chain.Generate(context.Background(), req)
	require.Equal(t, "from b", res.Text)
	require.Zero(t, a.calls)
}

func TestSynthesizeDeterministic(t *testing.T) {
	t.Parallel()

	req := designRequest()
	require.Equal(t, Synthesize(req), Synthesize(req))
	require.True(t, strings.HasPrefix(Synthesize(req), "Design Requirements"))

	ux := analysis.GenerationRequest{Section: analysis.SectionUX, Prompt: "p"}
	require.True(t, strings.HasPrefix(Synthesize(ux), "User Experience Requirements"))
}

func TestGenerateCanceledContextSynthesizes(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	slow := &fakeBackend{name: "slow", text: "never used"}
	chain, err := New(Config{AttemptTimeout: time.Second}, []analysis.Backend{slow}, zap.NewNop())
	require.NoError(t, err)

	res := chain.Generate(ctx, designRequest())
	require.True(t, res.Degraded)
	require.Empty(t, res.BackendUsed)
	require.Zero(t, slow.calls)
}
