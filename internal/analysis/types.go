// Package analysis defines core types shared across the analysis pipeline.
package analysis

import (
	"time"
)

// FetchStrategy names the strategy that produced a PageSnapshot.
type FetchStrategy string

// Strategies recorded on snapshots.
const (
	StrategyRender FetchStrategy = "render"
	StrategyHTTP   FetchStrategy = "http"
)

// PageSnapshot is the immutable result of fetching one page. It is owned by
// the pipeline run that created it and never shared across runs.
type PageSnapshot struct {
	URL          string        `json:"url"`
	FinalURL     string        `json:"final_url"`
	StatusCode   int           `json:"status_code"`
	RawHTML      string        `json:"raw_html"`
	RenderedHTML string        `json:"rendered_html,omitempty"`
	Strategy     FetchStrategy `json:"fetch_strategy_used"`
	FetchedAt    time.Time     `json:"fetched_at"`
}

// HTML returns the markup the analyzer should inspect: the rendered DOM when
// the render strategy produced one, otherwise the raw response body.
func (s PageSnapshot) HTML() string {
	if s.RenderedHTML != "" {
		return s.RenderedHTML
	}
	return s.RawHTML
}

// SectionName identifies one analysis section.
type SectionName string

// The five analysis sections, in canonical order.
const (
	SectionDesign        SectionName = "design"
	SectionFunctionality SectionName = "functionality"
	SectionTechnical     SectionName = "technical"
	SectionContent       SectionName = "content"
	SectionUX            SectionName = "user_experience"
)

// SectionOrder is the canonical ordering of sections in every rendering,
// independent of generation completion order.
var SectionOrder = []SectionName{
	SectionDesign,
	SectionFunctionality,
	SectionTechnical,
	SectionContent,
	SectionUX,
}

// SectionIndex returns the canonical slot for a section, or -1 if unknown.
func SectionIndex(name SectionName) int {
	for i, s := range SectionOrder {
		if s == name {
			return i
		}
	}
	return -1
}

// GenerationRequest asks the orchestrator for the prose of one section.
// Each request is created once per run and consumed exactly once.
type GenerationRequest struct {
	Section       SectionName
	SystemPrompt  string
	Prompt        string
	SignalExcerpt string
	Backends      []string
}

// GenerationResult is the guaranteed outcome of a GenerationRequest.
// Degraded marks text produced by a fallback backend or synthesized locally.
type GenerationResult struct {
	Section     SectionName `json:"section"`
	Text        string      `json:"text"`
	BackendUsed string      `json:"backend_used,omitempty"`
	Attempts    int         `json:"attempts"`
	Degraded    bool        `json:"degraded"`
}

// AnalysisRecord is the canonical merge of one run's signals and generated
// sections, ordered canonically regardless of completion order.
type AnalysisRecord struct {
	URL         string             `json:"url"`
	FinalURL    string             `json:"final_url"`
	StatusCode  int                `json:"status_code"`
	Strategy    FetchStrategy      `json:"fetch_strategy_used"`
	ContentHash string             `json:"content_hash,omitempty"`
	Signals     SignalBundle       `json:"signals"`
	Sections    []GenerationResult `json:"sections"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Section returns the generated result for a section name. The second return
// is false only for names outside the canonical set.
func (r AnalysisRecord) Section(name SectionName) (GenerationResult, bool) {
	idx := SectionIndex(name)
	if idx < 0 || idx >= len(r.Sections) {
		return GenerationResult{}, false
	}
	return r.Sections[idx], true
}

// Session is the immutable record of one completed run.
type Session struct {
	ID        string         `json:"id"`
	Record    AnalysisRecord `json:"record"`
	TextDoc   string         `json:"text_rendering"`
	JSONDoc   []byte         `json:"json_rendering"`
	CreatedAt time.Time      `json:"created_at"`
}
