// Package analyzer derives design, functionality, and technical signals from
// fetched markup using pattern heuristics. Analysis is pure and total:
// malformed markup degrades to explicit unknown values, never to an error.
package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeecho/codeecho/internal/analysis"
)

// Config holds classification thresholds. The thresholds are heuristic
// policy; only the navigation boundary (> NavComplexItems) is load-bearing.
type Config struct {
	NavComplexItems      int
	ComplexityHighScore  int
	ComplexityMedScore   int
	VibrantColorCount    int
	MonochromeColorCount int
}

// DefaultConfig returns the thresholds used in production.
func DefaultConfig() Config {
	return Config{
		NavComplexItems:      5,
		ComplexityHighScore:  40,
		ComplexityMedScore:   15,
		VibrantColorCount:    8,
		MonochromeColorCount: 2,
	}
}

// Analyzer classifies page snapshots into signal bundles.
type Analyzer struct {
	cfg Config
}

// New constructs an Analyzer, filling zero thresholds with defaults.
func New(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.NavComplexItems <= 0 {
		cfg.NavComplexItems = def.NavComplexItems
	}
	if cfg.ComplexityHighScore <= 0 {
		cfg.ComplexityHighScore = def.ComplexityHighScore
	}
	if cfg.ComplexityMedScore <= 0 {
		cfg.ComplexityMedScore = def.ComplexityMedScore
	}
	if cfg.VibrantColorCount <= 0 {
		cfg.VibrantColorCount = def.VibrantColorCount
	}
	if cfg.MonochromeColorCount <= 0 {
		cfg.MonochromeColorCount = def.MonochromeColorCount
	}
	return &Analyzer{cfg: cfg}
}

// Analyze derives a SignalBundle from the snapshot. Identical snapshots
// always produce identical bundles.
func (a *Analyzer) Analyze(snapshot analysis.PageSnapshot) analysis.SignalBundle {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML()))
	if err != nil || doc == nil {
		return unknownBundle(snapshot)
	}

	bundle := analysis.SignalBundle{
		Design:        a.designSignals(doc),
		Functionality: a.functionalitySignals(doc),
		Technical:     a.technicalSignals(doc, snapshot),
		Content:       a.contentSignals(doc),
	}
	bundle.SiteType = classifySiteType(bundle)
	return bundle
}

// unknownBundle is returned when the markup cannot be parsed at all. Every
// field still carries an explicit value.
func unknownBundle(snapshot analysis.PageSnapshot) analysis.SignalBundle {
	return analysis.SignalBundle{
		Design: analysis.DesignSignals{
			Colors:             []string{},
			PaletteMood:        analysis.MoodUnknown,
			FontFamilies:       []string{},
			FontClass:          analysis.FontUnknown,
			TypographyStrategy: analysis.TypographyUnknown,
			LayoutPattern:      analysis.LayoutUnknown,
		},
		Functionality: analysis.FunctionalitySignals{
			Complexity:   analysis.ComplexityLow,
			NavPattern:   analysis.NavSimple,
			FormPurposes: []string{},
		},
		Technical: analysis.TechnicalSignals{
			Frameworks:     []string{},
			ModernFeatures: []string{},
			UsesHTTPS:      strings.HasPrefix(snapshot.URL, "https://"),
		},
		Content: analysis.ContentSignals{
			HeadingLevels: []string{},
		},
		SiteType: analysis.SiteInformational,
	}
}

// classifySiteType mirrors the coarse site-type rules: pricing hints win,
// then long-form text, then galleries, then interactive density.
func classifySiteType(b analysis.SignalBundle) analysis.SiteType {
	switch {
	case b.Functionality.HasPricingHints:
		return analysis.SiteECommerce
	case b.Content.ParagraphCount > 10 && b.Content.WordCount > 1000:
		return analysis.SiteContent
	case b.Functionality.HasGalleryHints:
		return analysis.SitePortfolio
	case b.Design.HasHero && b.Functionality.ButtonCount > 2:
		return analysis.SiteLanding
	case b.Functionality.FormCount > 2 || b.Functionality.InputCount > 5:
		return analysis.SiteApplication
	default:
		return analysis.SiteInformational
	}
}
