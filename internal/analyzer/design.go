package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeecho/codeecho/internal/analysis"
)

var (
	hexColorRe = regexp.MustCompile(`#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})\b`)
	rgbColorRe = regexp.MustCompile(`rgba?\([^)]*\)`)
	fontRe     = regexp.MustCompile(`font-family\s*:\s*([^;"}]+)`)
)

const maxPaletteColors = 12

func (a *Analyzer) designSignals(doc *goquery.Document) analysis.DesignSignals {
	css := collectCSS(doc)

	colors := extractColors(css)
	fonts := extractFonts(css)

	sig := analysis.DesignSignals{
		Colors:             colors,
		PaletteMood:        a.classifyPalette(colors),
		FontFamilies:       fonts,
		FontClass:          classifyFontClass(fonts),
		TypographyStrategy: classifyTypography(fonts),
		LayoutPattern:      classifyLayout(doc, css),
		HasHeader:          doc.Find("header").Length() > 0,
		HasFooter:          doc.Find("footer").Length() > 0,
		HasHero:            hasHero(doc),
		ImageCount:         doc.Find("img").Length(),
	}
	return sig
}

// collectCSS gathers inline style attributes and <style> blocks into one
// searchable blob.
func collectCSS(doc *goquery.Document) string {
	var b strings.Builder
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("style"); ok {
			b.WriteString(v)
			b.WriteByte(';')
		}
	})
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		b.WriteString(s.Text())
		b.WriteByte(';')
	})
	return b.String()
}

// extractColors pulls hex and rgb() literals, deduplicated in lowercase and
// sorted so identical markup always yields the same palette.
func extractColors(css string) []string {
	seen := make(map[string]struct{})
	for _, m := range hexColorRe.FindAllString(css, -1) {
		seen[strings.ToLower(m)] = struct{}{}
	}
	for _, m := range rgbColorRe.FindAllString(css, -1) {
		cleaned := strings.ToLower(strings.Join(strings.Fields(m), ""))
		seen[cleaned] = struct{}{}
	}
	colors := make([]string, 0, len(seen))
	for c := range seen {
		colors = append(colors, c)
	}
	sort.Strings(colors)
	if len(colors) > maxPaletteColors {
		colors = colors[:maxPaletteColors]
	}
	return colors
}

func (a *Analyzer) classifyPalette(colors []string) analysis.PaletteMood {
	switch {
	case len(colors) == 0:
		return analysis.MoodUnknown
	case len(colors) >= a.cfg.VibrantColorCount:
		return analysis.MoodVibrant
	case len(colors) <= a.cfg.MonochromeColorCount:
		return analysis.MoodMonochrome
	default:
		return analysis.MoodMuted
	}
}

// extractFonts pulls the first family from each font-family declaration,
// strips quotes, and drops generic keywords.
func extractFonts(css string) []string {
	generic := map[string]bool{
		"serif": true, "sans-serif": true, "monospace": true,
		"cursive": true, "fantasy": true, "system-ui": true, "inherit": true,
	}
	seen := make(map[string]struct{})
	for _, m := range fontRe.FindAllStringSubmatch(css, -1) {
		first, _, _ := strings.Cut(m[1], ",")
		name := strings.Trim(strings.TrimSpace(first), `'"`)
		if name == "" || generic[strings.ToLower(name)] {
			continue
		}
		seen[name] = struct{}{}
	}
	fonts := make([]string, 0, len(seen))
	for f := range seen {
		fonts = append(fonts, f)
	}
	sort.Strings(fonts)
	return fonts
}

var serifHints = []string{"georgia", "times", "garamond", "serif", "playfair", "merriweather", "lora"}

func classifyFontClass(fonts []string) analysis.FontClass {
	if len(fonts) == 0 {
		return analysis.FontUnknown
	}
	var serif, sans int
	for _, f := range fonts {
		lower := strings.ToLower(f)
		matched := false
		for _, h := range serifHints {
			if strings.Contains(lower, h) && !strings.Contains(lower, "sans") {
				serif++
				matched = true
				break
			}
		}
		if !matched {
			sans++
		}
	}
	switch {
	case serif > 0 && sans > 0:
		return analysis.FontMixed
	case serif > 0:
		return analysis.FontSerif
	default:
		return analysis.FontSans
	}
}

func classifyTypography(fonts []string) analysis.TypographyStrategy {
	switch {
	case len(fonts) == 0:
		return analysis.TypographyUnknown
	case len(fonts) == 1:
		return analysis.TypographyMinimal
	case len(fonts) == 2:
		return analysis.TypographyPaired
	default:
		return analysis.TypographyVaried
	}
}

// classifyLayout is a coarse structural guess: grid/flex declarations or a
// dense sibling structure read as grid-like, otherwise single-column.
func classifyLayout(doc *goquery.Document, css string) analysis.LayoutPattern {
	if strings.Contains(css, "display:grid") || strings.Contains(css, "display: grid") ||
		strings.Contains(css, "display:flex") || strings.Contains(css, "display: flex") {
		return analysis.LayoutGridLike
	}
	if doc.Find("[class*=grid], [class*=row], [class*=col]").Length() >= 3 {
		return analysis.LayoutGridLike
	}
	if doc.Find("main, article, section, div").Length() == 0 {
		return analysis.LayoutUnknown
	}
	return analysis.LayoutSingleColumn
}

func hasHero(doc *goquery.Document) bool {
	if doc.Find("[class*=hero], [id*=hero], [class*=banner], [class*=jumbotron]").Length() > 0 {
		return true
	}
	// A leading h1 next to a call-to-action reads as a hero block.
	return doc.Find("h1").Length() > 0 && doc.Find("a[class*=btn], a[class*=button], button").Length() > 0
}
