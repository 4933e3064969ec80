package analyzer

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeecho/codeecho/internal/analysis"
)

// frameworkFingerprints maps framework names to markers searched in script
// sources and markup attributes.
var frameworkFingerprints = map[string][]string{
	"react":   {"react", "data-reactroot", "_react"},
	"vue":     {"vue", "data-v-", "v-bind", "v-if", "__nuxt"},
	"angular": {"angular", "ng-app", "ng-controller", "ng-version"},
	"jquery":  {"jquery", "jquery.min"},
	"next":    {"__next", "_next/", "next.js"},
	"svelte":  {"svelte", "__svelte"},
}

func (a *Analyzer) technicalSignals(doc *goquery.Document, snapshot analysis.PageSnapshot) analysis.TechnicalSignals {
	scripts := doc.Find("script")
	blob := strings.ToLower(markupBlob(doc))

	return analysis.TechnicalSignals{
		Frameworks:     detectFrameworks(blob),
		ModernFeatures: detectModernFeatures(doc, blob),
		HasJavaScript:  scripts.Length() > 0,
		UsesHTTPS:      strings.HasPrefix(snapshot.FinalURL, "https://") || strings.HasPrefix(snapshot.URL, "https://"),
		ScriptCount:    scripts.Length(),
		StylesheetRefs: doc.Find("link[rel=stylesheet]").Length(),
	}
}

// markupBlob concatenates the searchable surface for fingerprinting: script
// src attributes, inline script text, and the root element's raw attributes.
func markupBlob(doc *goquery.Document) string {
	var b strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			b.WriteString(src)
			b.WriteByte(' ')
		}
		b.WriteString(s.Text())
		b.WriteByte(' ')
	})
	if html, err := doc.Find("html").Html(); err == nil {
		b.WriteString(html)
	}
	return b.String()
}

func detectFrameworks(blob string) []string {
	found := make([]string, 0, len(frameworkFingerprints))
	for name, markers := range frameworkFingerprints {
		for _, m := range markers {
			if strings.Contains(blob, m) {
				found = append(found, name)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}

func detectModernFeatures(doc *goquery.Document, blob string) []string {
	features := make([]string, 0, 6)
	if doc.Find("meta[name=viewport]").Length() > 0 {
		features = append(features, "responsive_viewport")
	}
	if doc.Find("link[rel=manifest]").Length() > 0 {
		features = append(features, "pwa_manifest")
	}
	if strings.Contains(blob, "serviceworker") || strings.Contains(blob, "service-worker") {
		features = append(features, "service_worker")
	}
	if doc.Find("script[type=module]").Length() > 0 {
		features = append(features, "es_modules")
	}
	if doc.Find("img[loading=lazy]").Length() > 0 {
		features = append(features, "lazy_images")
	}
	if strings.Contains(blob, "fetch(") || strings.Contains(blob, "xmlhttprequest") {
		features = append(features, "async_requests")
	}
	sort.Strings(features)
	return features
}
