package model

// Classification is the result of scoring page text for menu-ness.
// IsMenu is derived: score > 50.
type Classification struct {
	Score      int     `json:"score"`
	Confidence float64 `json:"confidence"`
	IsMenu     bool    `json:"is_menu"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// ColorPalette holds brand colors as hex strings. All fields optional;
// produced best-effort.
type ColorPalette struct {
	Primary    string `json:"primary,omitempty"`
	Secondary  string `json:"secondary,omitempty"`
	Accent     string `json:"accent,omitempty"`
	Text       string `json:"text,omitempty"`
	Background string `json:"background,omitempty"`
}

// Empty reports whether no color was found at all.
func (p *ColorPalette) Empty() bool {
	return p == nil || (p.Primary == "" && p.Secondary == "" && p.Accent == "" &&
		p.Text == "" && p.Background == "")
}

// ScrapeResult is the orchestrator's output for one successful scrape:
// accumulated raw menu text plus landing-page branding.
type ScrapeResult struct {
	Text    string        `json:"text"`
	LogoURL string        `json:"logo_url,omitempty"`
	Colors  *ColorPalette `json:"colors,omitempty"`
}
