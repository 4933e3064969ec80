package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeecho/codeecho/internal/analysis"
)

func sampleSession() analysis.Session {
	sections := make([]analysis.GenerationResult, 0, len(analysis.SectionOrder))
	for _, name := range analysis.SectionOrder {
		sections = append(sections, analysis.GenerationResult{
			Section:     name,
			Text:        "requirements for " + string(name),
			BackendUsed: "primary",
			Attempts:    1,
		})
	}
	sections[2].Degraded = true
	sections[2].BackendUsed = ""

	return analysis.Session{
		ID: "0190a0a0-0000-7000-8000-000000000001",
		Record: analysis.AnalysisRecord{
			URL:        "https://example.com",
			FinalURL:   "https://example.com",
			StatusCode: 200,
			Strategy:   analysis.StrategyRender,
			Signals:    analysis.SignalBundle{SiteType: analysis.SiteContent},
			Sections:   sections,
		},
		TextDoc:   "the assembled prompt",
		JSONDoc:   []byte(`{"url":"https://example.com"}`),
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func readEntry(t *testing.T, zr *zip.Reader, name string) []byte {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close() //nolint:errcheck // test read
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return data
	}
	t.Fatalf("entry %s not found", name)
	return nil
}

func TestBuildContainsAllEntries(t *testing.T) {
	t.Parallel()

	data, err := Build(sampleSession())
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 5)

	require.Equal(t, "the assembled prompt", string(readEntry(t, zr, PromptTextName)))
	require.JSONEq(t, `{"url":"https://example.com"}`, string(readEntry(t, zr, PromptJSONName)))

	var meta map[string]any
	require.NoError(t, json.Unmarshal(readEntry(t, zr, MetadataName), &meta))
	require.Equal(t, "https://example.com", meta["url"])
	require.Equal(t, "render", meta["fetch_strategy"])
	require.Equal(t, []any{"technical"}, meta["degraded_sections"])

	readmeText := string(readEntry(t, zr, ReadmeName))
	require.Contains(t, readmeText, "prompt.txt")
	require.Contains(t, readmeText, "https://example.com")
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	session := sampleSession()
	first, err := Build(session)
	require.NoError(t, err)
	second, err := Build(session)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestBuildRequiresID(t *testing.T) {
	t.Parallel()

	_, err := Build(analysis.Session{})
	require.Error(t, err)
}

func TestFilename(t *testing.T) {
	t.Parallel()

	require.Equal(t, "codeecho-abc.zip", Filename("abc"))
}
