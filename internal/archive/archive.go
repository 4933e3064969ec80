// Package archive packages a finished session into a downloadable zip.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/codeecho/codeecho/internal/analysis"
	"github.com/codeecho/codeecho/internal/prompt"
)

// File names inside the bundle.
const (
	PromptTextName   = "prompt.txt"
	PromptJSONName   = "prompt.json"
	AnalysisJSONName = "analysis.json"
	MetadataName     = "metadata.json"
	ReadmeName       = "README.md"
)

// metadata is the shape of the bundle's metadata.json entry.
type metadata struct {
	SessionID           string            `json:"session_id"`
	URL                 string            `json:"url"`
	FinalURL            string            `json:"final_url"`
	StatusCode          int               `json:"status_code"`
	FetchStrategy       string            `json:"fetch_strategy"`
	SiteType            analysis.SiteType `json:"site_type"`
	CreatedAt           string            `json:"created_at"`
	RequirementsSummary map[string]int    `json:"requirements_summary"`
	DegradedSections    []string          `json:"degraded_sections"`
}

// Build renders a session into a zip bundle. The same session always
// produces the same entries in the same order.
func Build(session analysis.Session) ([]byte, error) {
	if session.ID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	analysisJSON, err := json.MarshalIndent(session.Record.Signals, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal signals: %w", err)
	}
	metaJSON, err := json.MarshalIndent(buildMetadata(session), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	entries := []struct {
		name string
		data []byte
	}{
		{PromptTextName, []byte(session.TextDoc)},
		{PromptJSONName, session.JSONDoc},
		{AnalysisJSONName, analysisJSON},
		{MetadataName, metaJSON},
		{ReadmeName, []byte(readme(session))},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		header := &zip.FileHeader{
			Name:     entry.name,
			Method:   zip.Deflate,
			Modified: session.CreatedAt,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", entry.name, err)
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download name for a session bundle.
func Filename(sessionID string) string {
	return fmt.Sprintf("codeecho-%s.zip", sessionID)
}

func buildMetadata(session analysis.Session) metadata {
	rec := session.Record
	degraded := make([]string, 0, len(rec.Sections))
	for _, sec := range rec.Sections {
		if sec.Degraded {
			degraded = append(degraded, string(sec.Section))
		}
	}
	return metadata{
		SessionID:           session.ID,
		URL:                 rec.URL,
		FinalURL:            rec.FinalURL,
		StatusCode:          rec.StatusCode,
		FetchStrategy:       string(rec.Strategy),
		SiteType:            rec.Signals.SiteType,
		CreatedAt:           session.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		RequirementsSummary: prompt.RequirementsSummary(rec),
		DegradedSections:    degraded,
	}
}

func readme(session analysis.Session) string {
	return fmt.Sprintf(`# Website Rebuild Bundle

Source: %s
Session: %s

## Contents

- prompt.txt - the assembled rebuild prompt, ready to paste into a code generator
- prompt.json - the same prompt as structured JSON
- analysis.json - the raw signals extracted from the page
- metadata.json - session details and per-section character counts
`, session.Record.URL, session.ID)
}
