// Package orchestrator runs section generation across an ordered chain of
// text backends, degrading to templated output when every backend fails.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codeecho/codeecho/internal/analysis"
	"github.com/codeecho/codeecho/internal/metrics"
)

// Config controls fallback behavior.
type Config struct {
	// AttemptTimeout bounds each individual backend call.
	AttemptTimeout time.Duration
	// DefaultOrder is the backend chain used when a request names none.
	DefaultOrder []string
}

// Chain implements analysis.Orchestrator over named backends.
type Chain struct {
	cfg      Config
	backends map[string]analysis.Backend
	logger   *zap.Logger
}

// New builds a Chain from the given backends. Order entries that name no
// registered backend are rejected so a typo fails at startup.
func New(cfg Config, backends []analysis.Backend, logger *zap.Logger) (*Chain, error) {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	byName := make(map[string]analysis.Backend, len(backends))
	for _, b := range backends {
		if _, dup := byName[b.Name()]; dup {
			return nil, fmt.Errorf("duplicate backend name %q", b.Name())
		}
		byName[b.Name()] = b
	}
	if len(cfg.DefaultOrder) == 0 {
		for _, b := range backends {
			cfg.DefaultOrder = append(cfg.DefaultOrder, b.Name())
		}
	}
	for _, name := range cfg.DefaultOrder {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("backend order names unknown backend %q", name)
		}
	}

	return &Chain{
		cfg:      cfg,
		backends: byName,
		logger:   logger,
	}, nil
}

// Generate tries each backend in order and returns the first non-empty
// result. When every backend fails the result is synthesized from the
// request's signal excerpt and flagged as degraded; Generate never returns
// an empty section.
func (c *Chain) Generate(ctx context.Context, req analysis.GenerationRequest) analysis.GenerationResult {
	start := time.Now()
	defer func() {
		metrics.ObserveGenerationDuration(string(req.Section), time.Since(start))
	}()

	order := req.Backends
	if len(order) == 0 {
		order = c.cfg.DefaultOrder
	}

	attempts := 0
	for idx, name := range order {
		backend, ok := c.backends[name]
		if !ok {
			c.logger.Warn("request names unknown backend", zap.String("backend", name))
			continue
		}
		if ctx.Err() != nil {
			break
		}
		attempts++

		text, err := c.attempt(ctx, backend, req)
		if err != nil {
			metrics.ObserveGenerationAttempt(name, "error")
			c.logger.Warn("backend attempt failed",
				zap.String("backend", name),
				zap.String("section", string(req.Section)),
				zap.Error(err),
			)
			continue
		}
		metrics.ObserveGenerationAttempt(name, "success")
		return analysis.GenerationResult{
			Section:     req.Section,
			Text:        text,
			BackendUsed: name,
			Attempts:    attempts,
			// Anything past the first-choice backend is a fallback.
			Degraded: idx > 0,
		}
	}

	metrics.ObserveGenerationFallback(string(req.Section))
	c.logger.Info("synthesizing templated section",
		zap.String("section", string(req.Section)),
		zap.Int("attempts", attempts),
	)
	// No backend produced the text, so none is reported.
	return analysis.GenerationResult{
		Section:  req.Section,
		Text:     Synthesize(req),
		Attempts: attempts,
		Degraded: true,
	}
}

// attempt calls one backend with its own deadline. Whitespace-only output
// counts as a failure so the chain keeps moving.
func (c *Chain) attempt(ctx context.Context, backend analysis.Backend, req analysis.GenerationRequest) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	text, err := backend.Generate(attemptCtx, req.SystemPrompt, req.Prompt)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("backend %s returned empty output", backend.Name())
	}
	return trimmed, nil
}

// Synthesize produces deterministic templated output for a section from the
// signals the analyzer extracted. The same request always yields the same
// text.
func Synthesize(req analysis.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Requirements\n\n", sectionTitle(req.Section))
	if excerpt := strings.TrimSpace(req.SignalExcerpt); excerpt != "" {
		b.WriteString(excerpt)
		b.WriteString("\n")
	} else {
		b.WriteString(strings.TrimSpace(req.Prompt))
		b.WriteString("\n")
	}
	return b.String()
}

func sectionTitle(section analysis.SectionName) string {
	words := strings.Split(string(section), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
