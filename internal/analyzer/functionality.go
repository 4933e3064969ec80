package analyzer

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeecho/codeecho/internal/analysis"
)

func (a *Analyzer) functionalitySignals(doc *goquery.Document) analysis.FunctionalitySignals {
	buttons := doc.Find("button, input[type=button], input[type=submit], a[class*=btn]").Length()
	links := doc.Find("a[href]").Length()
	inputs := doc.Find("input, textarea, select").Length()
	forms := doc.Find("form").Length()
	navItems := countNavItems(doc)

	sig := analysis.FunctionalitySignals{
		ButtonCount:     buttons,
		LinkCount:       links,
		InputCount:      inputs,
		FormCount:       forms,
		Complexity:      a.classifyComplexity(buttons, inputs, links),
		NavItemCount:    navItems,
		NavPattern:      a.classifyNav(navItems),
		HasSearch:       hasSearch(doc),
		FormPurposes:    formPurposes(doc),
		HasPricingHints: hasPricingHints(doc),
		HasGalleryHints: hasGalleryHints(doc),
	}
	return sig
}

// classifyComplexity buckets a weighted score: buttons and inputs weigh
// double because they imply user action, links weigh single.
func (a *Analyzer) classifyComplexity(buttons, inputs, links int) analysis.ComplexityTier {
	score := buttons*2 + inputs*2 + links
	switch {
	case score >= a.cfg.ComplexityHighScore:
		return analysis.ComplexityHigh
	case score >= a.cfg.ComplexityMedScore:
		return analysis.ComplexityMedium
	default:
		return analysis.ComplexityLow
	}
}

// countNavItems counts links inside the primary navigation container only.
func countNavItems(doc *goquery.Document) int {
	nav := doc.Find("nav").First()
	if nav.Length() == 0 {
		nav = doc.Find("[role=navigation], [class*=nav]").First()
	}
	if nav.Length() == 0 {
		return 0
	}
	return nav.Find("a").Length()
}

func (a *Analyzer) classifyNav(items int) analysis.NavPattern {
	if items > a.cfg.NavComplexItems {
		return analysis.NavComplex
	}
	return analysis.NavSimple
}

func hasSearch(doc *goquery.Document) bool {
	return doc.Find("input[type=search], [role=search], [class*=search], [id*=search]").Length() > 0
}

// formPurposes guesses what each form is for from its field names and
// surrounding text, deduplicated and sorted.
func formPurposes(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		blob := strings.ToLower(formText(form))
		switch {
		case strings.Contains(blob, "password") && (strings.Contains(blob, "login") || strings.Contains(blob, "sign in")):
			seen["login"] = struct{}{}
		case strings.Contains(blob, "password"):
			seen["registration"] = struct{}{}
		case strings.Contains(blob, "search"):
			seen["search"] = struct{}{}
		case strings.Contains(blob, "subscribe") || strings.Contains(blob, "newsletter"):
			seen["newsletter"] = struct{}{}
		case strings.Contains(blob, "email") || strings.Contains(blob, "message") || strings.Contains(blob, "contact"):
			seen["contact"] = struct{}{}
		default:
			seen["general"] = struct{}{}
		}
	})
	purposes := make([]string, 0, len(seen))
	for p := range seen {
		purposes = append(purposes, p)
	}
	sort.Strings(purposes)
	return purposes
}

func formText(form *goquery.Selection) string {
	var b strings.Builder
	b.WriteString(form.Text())
	form.Find("input, textarea, button").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"name", "id", "placeholder", "type", "aria-label"} {
			if v, ok := s.Attr(attr); ok {
				b.WriteByte(' ')
				b.WriteString(v)
			}
		}
	})
	if v, ok := form.Attr("action"); ok {
		b.WriteByte(' ')
		b.WriteString(v)
	}
	return b.String()
}

var pricingHints = []string{"add to cart", "checkout", "price", "$", "buy now", "shopping cart"}

func hasPricingHints(doc *goquery.Document) bool {
	body := strings.ToLower(doc.Find("body").Text())
	for _, h := range pricingHints {
		if strings.Contains(body, h) {
			return true
		}
	}
	return doc.Find("[class*=cart], [class*=price], [class*=product]").Length() > 0
}

func hasGalleryHints(doc *goquery.Document) bool {
	if doc.Find("[class*=gallery], [class*=portfolio], [class*=carousel]").Length() > 0 {
		return true
	}
	return doc.Find("img").Length() > 8
}
