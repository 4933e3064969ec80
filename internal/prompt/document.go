package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeecho/codeecho/internal/analysis"
)

// jsonDocument is the wire shape of the assembled JSON rendering.
type jsonDocument struct {
	URL                 string                     `json:"url"`
	GeneratedAt         string                     `json:"generated_at"`
	SiteType            analysis.SiteType          `json:"site_type"`
	ExecutiveSummary    string                     `json:"executive_summary"`
	Sections            map[string]jsonSection     `json:"sections"`
	RequirementsSummary map[string]int             `json:"requirements_summary"`
	Signals             analysis.SignalBundle      `json:"analysis"`
	Generation          map[string]generationNotes `json:"generation"`
}

type jsonSection struct {
	Text     string `json:"text"`
	Degraded bool   `json:"degraded"`
}

type generationNotes struct {
	Backend  string `json:"backend"`
	Attempts int    `json:"attempts"`
}

// RenderText assembles the sections of a record into one prompt document.
// Sections always appear in canonical order regardless of completion order,
// so re-rendering the same record is byte-identical.
func RenderText(record analysis.AnalysisRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Website Rebuild Prompt: %s\n", record.URL)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString("Executive Summary\n-----------------\n")
	b.WriteString(ExecutiveSummary(record))
	b.WriteString("\n")

	for _, section := range analysis.SectionOrder {
		result, ok := record.Section(section)
		if !ok {
			continue
		}
		title := sectionLabel(section)
		fmt.Fprintf(&b, "\n%s\n%s\n", strings.ToUpper(title[:1])+title[1:], strings.Repeat("-", len(title)))
		b.WriteString(strings.TrimRight(result.Text, "\n"))
		b.WriteString("\n")
		if result.Degraded {
			b.WriteString("(generated from page observations without a language model)\n")
		}
	}
	return b.String()
}

// RenderJSON assembles the record into the structured JSON rendering. The
// encoding is deterministic: object keys serialize in sorted order.
func RenderJSON(record analysis.AnalysisRecord) ([]byte, error) {
	doc := jsonDocument{
		URL:                 record.URL,
		GeneratedAt:         record.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		SiteType:            record.Signals.SiteType,
		ExecutiveSummary:    ExecutiveSummary(record),
		Sections:            make(map[string]jsonSection, len(record.Sections)),
		RequirementsSummary: RequirementsSummary(record),
		Signals:             record.Signals,
		Generation:          make(map[string]generationNotes, len(record.Sections)),
	}
	for _, section := range analysis.SectionOrder {
		result, ok := record.Section(section)
		if !ok {
			continue
		}
		doc.Sections[string(section)] = jsonSection{Text: result.Text, Degraded: result.Degraded}
		doc.Generation[string(section)] = generationNotes{Backend: result.BackendUsed, Attempts: result.Attempts}
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal prompt document: %w", err)
	}
	return out, nil
}

// RequirementsSummary reports the character length of each section's text.
func RequirementsSummary(record analysis.AnalysisRecord) map[string]int {
	summary := make(map[string]int, len(record.Sections))
	for _, section := range analysis.SectionOrder {
		if result, ok := record.Section(section); ok {
			summary[string(section)] = len(result.Text)
		}
	}
	return summary
}

// ExecutiveSummary writes a short deterministic overview from the signals.
func ExecutiveSummary(record analysis.AnalysisRecord) string {
	s := record.Signals
	var b strings.Builder
	fmt.Fprintf(&b, "Rebuild a %s website with a %s layout, %s interaction complexity, and %s navigation.",
		s.SiteType, s.Design.LayoutPattern, s.Functionality.Complexity, s.Functionality.NavPattern)
	if len(s.Technical.Frameworks) > 0 {
		fmt.Fprintf(&b, " The original uses %s.", strings.Join(s.Technical.Frameworks, ", "))
	}
	degraded := 0
	for _, sec := range record.Sections {
		if sec.Degraded {
			degraded++
		}
	}
	if degraded > 0 {
		fmt.Fprintf(&b, " %d of %d sections were generated from page observations only.", degraded, len(record.Sections))
	}
	b.WriteString("\n")
	return b.String()
}
