// Package pipeline runs one full analysis: fetch, signal extraction,
// section generation, document assembly, and session persistence.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codeecho/codeecho/internal/analysis"
	"github.com/codeecho/codeecho/internal/metrics"
	"github.com/codeecho/codeecho/internal/progress"
	"github.com/codeecho/codeecho/internal/prompt"
)

// Config bounds pipeline runs.
type Config struct {
	// RunTimeout caps the whole run, fetch included.
	RunTimeout time.Duration
}

// Pipeline wires the fetch-analyze-generate flow. BlobStore, Publisher,
// Hasher, and Progress are optional; a nil value disables that side effect.
type Pipeline struct {
	cfg      Config
	fetcher  analysis.Fetcher
	analyzer analysis.Analyzer
	orch     analysis.Orchestrator
	sessions analysis.SessionStore
	blobs    analysis.BlobStore
	events   analysis.Publisher
	hasher   analysis.Hasher
	progress progress.Emitter
	clock    analysis.Clock
	ids      analysis.IDGenerator
	logger   *zap.Logger
}

// Deps carries the pipeline's collaborators.
type Deps struct {
	Fetcher  analysis.Fetcher
	Analyzer analysis.Analyzer
	Orch     analysis.Orchestrator
	Sessions analysis.SessionStore
	Blobs    analysis.BlobStore
	Events   analysis.Publisher
	Hasher   analysis.Hasher
	Progress progress.Emitter
	Clock    analysis.Clock
	IDs      analysis.IDGenerator
	Logger   *zap.Logger
}

// New builds a Pipeline, rejecting missing required collaborators.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("analyzer is required")
	case deps.Orch == nil:
		return nil, fmt.Errorf("orchestrator is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session store is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 4 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		analyzer: deps.Analyzer,
		orch:     deps.Orch,
		sessions: deps.Sessions,
		blobs:    deps.Blobs,
		events:   deps.Events,
		hasher:   deps.Hasher,
		progress: deps.Progress,
		clock:    deps.Clock,
		ids:      deps.IDs,
		logger:   logger,
	}, nil
}

// completedEvent is published after a session is stored.
type completedEvent struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	SiteType  string `json:"site_type"`
	Degraded  int    `json:"degraded_sections"`
	CreatedAt string `json:"created_at"`
}

// Run executes one analysis and returns the stored session. A canceled
// context aborts the run without storing anything.
func (p *Pipeline) Run(ctx context.Context, rawURL string) (analysis.Session, error) {
	metrics.IncActiveAnalyses()
	defer metrics.DecActiveAnalyses()

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.RunTimeout)
	defer cancel()

	// The session ID is assigned up front so every progress event and
	// artifact of this run shares it.
	id, err := p.ids.NewID()
	if err != nil {
		metrics.ObserveAnalysisRun(rawURL, "id_error")
		return analysis.Session{}, fmt.Errorf("generate session id: %w", err)
	}
	runStart := p.clock.Now()
	p.emit(progress.Event{
		SessionID: id,
		TS:        runStart,
		Stage:     progress.StageAnalysisStart,
		Site:      metrics.SanitizeSite(rawURL),
		URL:       rawURL,
	})

	fetchStart := p.clock.Now()
	snapshot, err := p.fetcher.Fetch(runCtx, rawURL)
	if err != nil {
		metrics.ObserveAnalysisRun(rawURL, "fetch_error")
		p.emitError(id, rawURL, "fetch failed")
		return analysis.Session{}, err
	}
	fetchDur := p.clock.Now().Sub(fetchStart)
	metrics.ObserveFetch(string(snapshot.Strategy), snapshot.StatusCode, fetchDur)
	p.emit(progress.Event{
		SessionID:   id,
		TS:          p.clock.Now(),
		Stage:       progress.StageFetchDone,
		Site:        metrics.SanitizeSite(snapshot.URL),
		URL:         snapshot.URL,
		StatusClass: progress.ClassifyStatus(snapshot.StatusCode),
		Bytes:       int64(len(snapshot.HTML())),
		Dur:         fetchDur,
	})

	contentHash := p.hashSnapshot(snapshot)
	signals := p.analyzer.Analyze(snapshot)
	requests := prompt.BuildRequests(snapshot.URL, signals)

	// Sections generate concurrently but land in fixed slots, so document
	// assembly never depends on completion order.
	results := make([]analysis.GenerationResult, len(requests))
	g, genCtx := errgroup.WithContext(runCtx)
	for i, req := range requests {
		g.Go(func() error {
			sectionStart := time.Now()
			results[i] = p.orch.Generate(genCtx, req)
			p.emit(progress.Event{
				SessionID: id,
				TS:        p.clock.Now(),
				Stage:     progress.StageSectionDone,
				URL:       snapshot.URL,
				Section:   string(req.Section),
				Dur:       time.Since(sectionStart),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ObserveAnalysisRun(rawURL, "generate_error")
		p.emitError(id, rawURL, "generation failed")
		return analysis.Session{}, fmt.Errorf("generate sections: %w", err)
	}
	if runCtx.Err() != nil {
		metrics.ObserveAnalysisRun(rawURL, "canceled")
		p.emitError(id, rawURL, "canceled")
		return analysis.Session{}, fmt.Errorf("analysis canceled: %w", runCtx.Err())
	}

	record := analysis.AnalysisRecord{
		URL:         snapshot.URL,
		FinalURL:    snapshot.FinalURL,
		StatusCode:  snapshot.StatusCode,
		Strategy:    snapshot.Strategy,
		ContentHash: contentHash,
		Signals:     signals,
		Sections:    results,
		GeneratedAt: p.clock.Now(),
	}

	jsonDoc, err := prompt.RenderJSON(record)
	if err != nil {
		metrics.ObserveAnalysisRun(rawURL, "render_error")
		p.emitError(id, rawURL, "render failed")
		return analysis.Session{}, err
	}

	session := analysis.Session{
		ID:        id,
		Record:    record,
		TextDoc:   prompt.RenderText(record),
		JSONDoc:   jsonDoc,
		CreatedAt: p.clock.Now(),
	}
	if err := p.sessions.Create(runCtx, session); err != nil {
		metrics.ObserveAnalysisRun(rawURL, "store_error")
		p.emitError(id, rawURL, "store failed")
		return analysis.Session{}, fmt.Errorf("store session: %w", err)
	}

	p.archiveArtifacts(runCtx, session, snapshot)
	p.publishCompletion(runCtx, session)

	metrics.ObserveAnalysisRun(rawURL, "success")
	p.emit(progress.Event{
		SessionID: id,
		TS:        p.clock.Now(),
		Stage:     progress.StageAnalysisDone,
		Site:      metrics.SanitizeSite(snapshot.URL),
		URL:       snapshot.URL,
		Dur:       p.clock.Now().Sub(runStart),
	})
	p.logger.Info("analysis complete",
		zap.String("session_id", session.ID),
		zap.String("url", rawURL),
		zap.String("strategy", string(snapshot.Strategy)),
		zap.String("site_type", string(signals.SiteType)),
	)
	return session, nil
}

func (p *Pipeline) emit(evt progress.Event) {
	if p.progress == nil {
		return
	}
	p.progress.Emit(evt)
}

func (p *Pipeline) emitError(id, rawURL, note string) {
	p.emit(progress.Event{
		SessionID: id,
		TS:        p.clock.Now(),
		Stage:     progress.StageAnalysisError,
		Site:      metrics.SanitizeSite(rawURL),
		URL:       rawURL,
		Note:      note,
	})
}

// hashSnapshot digests the fetched markup; failures degrade to an empty
// hash rather than failing the run.
func (p *Pipeline) hashSnapshot(snapshot analysis.PageSnapshot) string {
	if p.hasher == nil {
		return ""
	}
	sum, err := p.hasher.Hash([]byte(snapshot.HTML()))
	if err != nil {
		p.logger.Warn("content hash failed", zap.String("url", snapshot.URL), zap.Error(err))
		return ""
	}
	return sum
}

// archiveArtifacts uploads the fetched markup and assembled documents.
// Failures are logged, not fatal: the session is already stored.
func (p *Pipeline) archiveArtifacts(ctx context.Context, session analysis.Session, snapshot analysis.PageSnapshot) {
	if p.blobs == nil {
		return
	}
	artifacts := []struct {
		path        string
		contentType string
		data        []byte
	}{
		{fmt.Sprintf("%s/snapshot.html", session.ID), "text/html; charset=utf-8", []byte(snapshot.HTML())},
		{fmt.Sprintf("%s/prompt.txt", session.ID), "text/plain; charset=utf-8", []byte(session.TextDoc)},
		{fmt.Sprintf("%s/prompt.json", session.ID), "application/json", session.JSONDoc},
	}
	for _, artifact := range artifacts {
		uri, err := p.blobs.PutObject(ctx, artifact.path, artifact.contentType, bytes.NewReader(artifact.data))
		if err != nil {
			p.logger.Warn("artifact upload failed",
				zap.String("session_id", session.ID),
				zap.String("path", artifact.path),
				zap.Error(err),
			)
			continue
		}
		p.logger.Debug("artifact stored", zap.String("uri", uri))
	}
}

// publishCompletion emits the completed-analysis event. Failures are logged,
// not fatal.
func (p *Pipeline) publishCompletion(ctx context.Context, session analysis.Session) {
	if p.events == nil {
		return
	}
	degraded := 0
	for _, sec := range session.Record.Sections {
		if sec.Degraded {
			degraded++
		}
	}
	event := completedEvent{
		SessionID: session.ID,
		URL:       session.Record.URL,
		SiteType:  string(session.Record.Signals.SiteType),
		Degraded:  degraded,
		CreatedAt: session.CreatedAt.UTC().Format(time.RFC3339),
	}
	if _, err := p.events.Publish(ctx, event); err != nil {
		p.logger.Warn("completion publish failed",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
}
