package analysis

// Unknown is the explicit value used whenever a heuristic cannot classify a
// signal. Consumers match on values, never on key presence.
const Unknown = "unknown"

// PaletteMood classifies the extracted color palette.
type PaletteMood string

// Palette moods.
const (
	MoodVibrant    PaletteMood = "vibrant"
	MoodMuted      PaletteMood = "muted"
	MoodMonochrome PaletteMood = "monochrome"
	MoodUnknown    PaletteMood = Unknown
)

// FontClass classifies the dominant typography.
type FontClass string

// Font classifications.
const (
	FontSerif   FontClass = "serif"
	FontSans    FontClass = "sans-serif"
	FontMixed   FontClass = "mixed"
	FontUnknown FontClass = Unknown
)

// TypographyStrategy labels how many distinct families a page leans on.
type TypographyStrategy string

// Typography strategies.
const (
	TypographyMinimal TypographyStrategy = "minimal"
	TypographyPaired  TypographyStrategy = "paired"
	TypographyVaried  TypographyStrategy = "varied"
	TypographyUnknown TypographyStrategy = Unknown
)

// LayoutPattern classifies the page layout from structural tag density.
type LayoutPattern string

// Layout patterns.
const (
	LayoutGridLike     LayoutPattern = "grid-like"
	LayoutSingleColumn LayoutPattern = "single-column"
	LayoutUnknown      LayoutPattern = Unknown
)

// ComplexityTier buckets weighted interactive-element counts.
type ComplexityTier string

// Interaction complexity tiers.
const (
	ComplexityLow    ComplexityTier = "low"
	ComplexityMedium ComplexityTier = "medium"
	ComplexityHigh   ComplexityTier = "high"
)

// NavPattern classifies navigation from its item count.
type NavPattern string

// Navigation patterns. More than five items classifies as complex.
const (
	NavSimple  NavPattern = "simple"
	NavComplex NavPattern = "complex"
)

// SiteType is a coarse classification of what kind of site a page belongs to.
type SiteType string

// Site types inferred from content hints.
const (
	SiteECommerce     SiteType = "e-commerce"
	SiteContent       SiteType = "content"
	SitePortfolio     SiteType = "portfolio"
	SiteLanding       SiteType = "landing_page"
	SiteApplication   SiteType = "web_application"
	SiteInformational SiteType = "informational"
)

// DesignSignals captures visual heuristics extracted from markup.
type DesignSignals struct {
	Colors             []string           `json:"colors"`
	PaletteMood        PaletteMood        `json:"palette_mood"`
	FontFamilies       []string           `json:"font_families"`
	FontClass          FontClass          `json:"font_class"`
	TypographyStrategy TypographyStrategy `json:"typography_strategy"`
	LayoutPattern      LayoutPattern      `json:"layout_pattern"`
	HasHeader          bool               `json:"has_header"`
	HasFooter          bool               `json:"has_footer"`
	HasHero            bool               `json:"has_hero"`
	ImageCount         int                `json:"image_count"`
}

// FunctionalitySignals captures interactive-surface heuristics.
type FunctionalitySignals struct {
	ButtonCount     int            `json:"button_count"`
	LinkCount       int            `json:"link_count"`
	InputCount      int            `json:"input_count"`
	FormCount       int            `json:"form_count"`
	Complexity      ComplexityTier `json:"interaction_complexity"`
	NavItemCount    int            `json:"nav_item_count"`
	NavPattern      NavPattern     `json:"navigation_pattern"`
	HasSearch       bool           `json:"has_search"`
	FormPurposes    []string       `json:"form_purposes"`
	HasPricingHints bool           `json:"has_pricing_hints"`
	HasGalleryHints bool           `json:"has_gallery_hints"`
}

// TechnicalSignals captures stack fingerprints and modern-feature hints.
type TechnicalSignals struct {
	Frameworks     []string `json:"frameworks"`
	ModernFeatures []string `json:"modern_features"`
	HasJavaScript  bool     `json:"has_javascript"`
	UsesHTTPS      bool     `json:"uses_https"`
	ScriptCount    int      `json:"script_count"`
	StylesheetRefs int      `json:"stylesheet_refs"`
}

// ContentSignals captures coarse content-shape measurements.
type ContentSignals struct {
	Title          string   `json:"title"`
	WordCount      int      `json:"word_count"`
	ParagraphCount int      `json:"paragraph_count"`
	HeadingLevels  []string `json:"heading_levels"`
	SectionCount   int      `json:"section_count"`
	ListCount      int      `json:"list_count"`
}

// SignalBundle is the deterministic output of analyzing one PageSnapshot.
// Every field carries an explicit value; absence is expressed as Unknown,
// zero, or an empty (but non-nil once serialized) list, never a missing key.
type SignalBundle struct {
	Design        DesignSignals        `json:"design_signals"`
	Functionality FunctionalitySignals `json:"functionality_signals"`
	Technical     TechnicalSignals     `json:"technical_signals"`
	Content       ContentSignals       `json:"content_signals"`
	SiteType      SiteType             `json:"site_type"`
}
