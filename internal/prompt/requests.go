// Package prompt builds generation requests from extracted signals and
// assembles the finished sections into text and JSON documents.
package prompt

import (
	"fmt"
	"strings"

	"github.com/codeecho/codeecho/internal/analysis"
)

// systemPrompts holds the fixed per-section instructions sent to backends.
var systemPrompts = map[analysis.SectionName]string{
	analysis.SectionDesign: "You are an expert web designer. Write precise, buildable design " +
		"requirements from the observations you are given. Do not invent details that are not supported " +
		"by the observations.",
	analysis.SectionFunctionality: "You are an expert product engineer. Write concrete functional " +
		"requirements describing what the site does, derived strictly from the observations given.",
	analysis.SectionTechnical: "You are an expert software architect. Write technical requirements " +
		"covering stack, frameworks, and platform features, derived strictly from the observations given.",
	analysis.SectionContent: "You are an expert content strategist. Write content-structure " +
		"requirements describing the information architecture, derived strictly from the observations given.",
	analysis.SectionUX: "You are an expert UX researcher. Write user-experience requirements " +
		"covering navigation, interaction, and accessibility, derived strictly from the observations given.",
}

// BuildRequests produces one generation request per section in canonical
// order. The same URL and signals always produce identical requests.
func BuildRequests(url string, signals analysis.SignalBundle) []analysis.GenerationRequest {
	requests := make([]analysis.GenerationRequest, 0, len(analysis.SectionOrder))
	for _, section := range analysis.SectionOrder {
		excerpt := Excerpt(section, signals)
		requests = append(requests, analysis.GenerationRequest{
			Section:       section,
			SystemPrompt:  systemPrompts[section],
			Prompt:        userPrompt(section, url, excerpt),
			SignalExcerpt: excerpt,
		})
	}
	return requests
}

func userPrompt(section analysis.SectionName, url, excerpt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %s requirements for rebuilding the website at %s.\n\n", sectionLabel(section), url)
	b.WriteString("Observations extracted from the live page:\n")
	b.WriteString(excerpt)
	b.WriteString("\nProduce a numbered list of requirements a developer could implement directly.")
	return b.String()
}

func sectionLabel(section analysis.SectionName) string {
	return strings.ReplaceAll(string(section), "_", " ")
}

// Excerpt renders the signals relevant to one section as deterministic
// "key: value" lines. Unknown sections get the full site-type line only.
func Excerpt(section analysis.SectionName, signals analysis.SignalBundle) string {
	var lines []string
	switch section {
	case analysis.SectionDesign:
		d := signals.Design
		lines = []string{
			kv("palette_mood", string(d.PaletteMood)),
			kv("colors", joinOrNone(d.Colors)),
			kv("font_class", string(d.FontClass)),
			kv("font_families", joinOrNone(d.FontFamilies)),
			kv("typography_strategy", string(d.TypographyStrategy)),
			kv("layout_pattern", string(d.LayoutPattern)),
			kv("has_header", boolWord(d.HasHeader)),
			kv("has_footer", boolWord(d.HasFooter)),
			kv("has_hero", boolWord(d.HasHero)),
			kv("image_count", fmt.Sprint(d.ImageCount)),
		}
	case analysis.SectionFunctionality:
		f := signals.Functionality
		lines = []string{
			kv("interaction_complexity", string(f.Complexity)),
			kv("navigation_pattern", string(f.NavPattern)),
			kv("nav_item_count", fmt.Sprint(f.NavItemCount)),
			kv("button_count", fmt.Sprint(f.ButtonCount)),
			kv("link_count", fmt.Sprint(f.LinkCount)),
			kv("form_count", fmt.Sprint(f.FormCount)),
			kv("form_purposes", joinOrNone(f.FormPurposes)),
			kv("has_search", boolWord(f.HasSearch)),
		}
	case analysis.SectionTechnical:
		tech := signals.Technical
		lines = []string{
			kv("frameworks", joinOrNone(tech.Frameworks)),
			kv("modern_features", joinOrNone(tech.ModernFeatures)),
			kv("has_javascript", boolWord(tech.HasJavaScript)),
			kv("uses_https", boolWord(tech.UsesHTTPS)),
			kv("script_count", fmt.Sprint(tech.ScriptCount)),
			kv("stylesheet_refs", fmt.Sprint(tech.StylesheetRefs)),
		}
	case analysis.SectionContent:
		c := signals.Content
		lines = []string{
			kv("title", orNone(c.Title)),
			kv("word_count", fmt.Sprint(c.WordCount)),
			kv("paragraph_count", fmt.Sprint(c.ParagraphCount)),
			kv("heading_levels", joinOrNone(c.HeadingLevels)),
			kv("section_count", fmt.Sprint(c.SectionCount)),
			kv("list_count", fmt.Sprint(c.ListCount)),
		}
	case analysis.SectionUX:
		lines = []string{
			kv("site_type", string(signals.SiteType)),
			kv("navigation_pattern", string(signals.Functionality.NavPattern)),
			kv("interaction_complexity", string(signals.Functionality.Complexity)),
			kv("layout_pattern", string(signals.Design.LayoutPattern)),
			kv("has_search", boolWord(signals.Functionality.HasSearch)),
			kv("modern_features", joinOrNone(signals.Technical.ModernFeatures)),
		}
	default:
		lines = []string{kv("site_type", string(signals.SiteType))}
	}
	return strings.Join(lines, "\n") + "\n"
}

func kv(key, value string) string {
	return key + ": " + value
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

func orNone(v string) string {
	if strings.TrimSpace(v) == "" {
		return "none"
	}
	return v
}

func boolWord(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
