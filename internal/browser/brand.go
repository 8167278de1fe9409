package browser

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/classify"
	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/pkg/anthropic"
)

// logoScript scores logo candidates across strategies and returns the best
// URL. Avatar, placeholder, hero, and consent-widget images are excluded;
// size constraints apply to everything except explicitly logo-named elements.
const logoScript = `(() => {
	const excludeRe = /avatar|placeholder|banner|hero|cookie|consent|captcha|gravatar|widget|badge|icon-only|spinner|loading/i;
	const sizeOK = (r, strict) => {
		if (!strict) return r.width > 10 && r.height > 10;
		return r.width >= 40 && r.width <= 500 && r.height >= 30 && r.height <= 300;
	};
	const bgURL = el => {
		const bg = getComputedStyle(el).backgroundImage || '';
		const m = bg.match(/url\(["']?([^"')]+)["']?\)/);
		return m ? m[1] : '';
	};

	let best = null, bestScore = 0;
	const consider = (url, score) => {
		if (!url || excludeRe.test(url)) return;
		if (score > bestScore) { bestScore = score; best = url; }
	};

	// Logo/brand-named elements: highest weight, relaxed size constraints.
	for (const el of document.querySelectorAll('[class*="logo" i], [id*="logo" i], [aria-label*="logo" i], [class*="brand" i]')) {
		const r = el.getBoundingClientRect();
		if (!sizeOK(r, false)) continue;
		let score = 100;
		if (r.top < 200) score += 30;
		const img = el.tagName === 'IMG' ? el : el.querySelector('img');
		if (img && img.src) { consider(img.src, score); continue; }
		const bg = bgURL(el);
		if (bg) { consider(bg, score - 10); continue; }
		const svg = el.tagName === 'svg' ? el : el.querySelector('svg');
		if (svg) {
			try {
				const data = 'data:image/svg+xml;base64,' + btoa(unescape(encodeURIComponent(new XMLSerializer().serializeToString(svg))));
				consider(data, 40);
			} catch (e) {}
		}
	}

	// Header/nav images.
	for (const img of document.querySelectorAll('header img, nav img')) {
		const r = img.getBoundingClientRect();
		if (!sizeOK(r, true) || excludeRe.test(img.src + ' ' + (img.alt || ''))) continue;
		let score = 60;
		if (r.top < 150 && r.left < 400) score += 20;
		consider(img.src, score);
	}
	for (const el of document.querySelectorAll('header, header *, nav')) {
		const bg = bgURL(el);
		if (!bg) continue;
		const r = el.getBoundingClientRect();
		if (!sizeOK(r, true)) continue;
		consider(bg, 50);
	}

	// Any image that says "logo" in src or alt.
	for (const img of document.querySelectorAll('img')) {
		if (!/logo/i.test((img.src || '') + ' ' + (img.alt || ''))) continue;
		const r = img.getBoundingClientRect();
		if (r.width === 0) continue;
		consider(img.src, 45);
	}

	if (best) return best;

	// Favicon as last resort.
	const fav = document.querySelector('link[rel*="icon"]');
	return fav ? fav.href : '';
})()`

// domColorsScript gathers color candidates with source labels and raw
// weights from computed styles across button, CTA, brand, nav, and heading
// selectors, plus CSS custom properties and the theme-color meta tag.
const domColorsScript = `(() => {
	const out = [];
	const push = (color, weight, source) => {
		if (!color || color === 'transparent' || color === 'rgba(0, 0, 0, 0)') return;
		out.push({color, weight, source});
	};

	const meta = document.querySelector('meta[name="theme-color"]');
	if (meta) push(meta.getAttribute('content'), 10, 'theme-color');

	const rootStyle = getComputedStyle(document.documentElement);
	for (const name of ['--primary', '--primary-color', '--brand', '--brand-color', '--accent', '--accent-color', '--color-primary', '--color-accent', '--theme-color', '--main-color']) {
		const v = rootStyle.getPropertyValue(name).trim();
		if (v) push(v, 8, 'custom-prop');
	}

	const groups = [
		{sel: 'button, [role="button"], .btn, .button, [class*="cta" i], input[type="submit"]', weight: 6, prop: 'backgroundColor'},
		{sel: '[class*="brand" i], [class*="logo" i], header, nav', weight: 5, prop: 'backgroundColor'},
		{sel: 'a', weight: 2, prop: 'color'},
		{sel: 'h1, h2, h3', weight: 1.5, prop: 'color'},
		{sel: '[style*="background"]', weight: 3, prop: 'backgroundColor'},
	];
	for (const g of groups) {
		let n = 0;
		for (const el of document.querySelectorAll(g.sel)) {
			if (n++ > 40) break;
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			const style = getComputedStyle(el);
			push(style[g.prop], g.weight, 'style');
			const bgImage = style.backgroundImage || '';
			const gm = bgImage.match(/rgba?\([^)]+\)|#[0-9a-fA-F]{3,6}/);
			if (gm) push(gm[0], g.weight * 0.6, 'style');
		}
	}

	// Representative text and page background colors.
	const bodyStyle = getComputedStyle(document.body);
	push(bodyStyle.color, 3, 'text');
	push(bodyStyle.backgroundColor, 3, 'page-background');
	for (const el of document.querySelectorAll('p, li')) {
		push(getComputedStyle(el).color, 1, 'text');
		break;
	}
	const main = document.querySelector('main, #content, .content');
	if (main) push(getComputedStyle(main).backgroundColor, 2, 'page-background');

	return out;
})()`

const visionColorPrompt = `This is a screenshot of a restaurant website. Identify the brand color palette. Respond with a single valid JSON object and nothing else:
{"primary": "<hex>", "secondary": "<hex or null>", "accent": "<hex or null>"}
Use six-digit hex strings like "#d43f2a". Pick colors the brand actually uses for buttons, headings, and accents — not photo content.`

// Brander extracts branding (logo, colors) from the landing page. Both
// operations are independent and best-effort; callers run them in parallel
// before any menu navigation, since ordering-platform redirects lose the
// original branding.
type Brander struct {
	ai          anthropic.Client
	visionModel string
}

// NewBrander creates a Brander. ai may be nil, disabling the vision path.
func NewBrander(ai anthropic.Client, visionModel string) *Brander {
	return &Brander{ai: ai, visionModel: visionModel}
}

// ExtractLogo returns the best logo candidate URL, or "" when none scored.
func (b *Brander) ExtractLogo(s *Session) string {
	var logo string
	if err := s.Eval(logoScript, &logo); err != nil {
		zap.L().Debug("brand: logo extraction failed", zap.Error(err))
		return ""
	}
	return logo
}

// ExtractColors derives a brand palette, preferring an AI vision pass over a
// full-page screenshot and degrading to DOM/CSS analysis.
func (b *Brander) ExtractColors(ctx context.Context, s *Session) model.ColorPalette {
	if b.ai != nil {
		palette, err := b.visionColors(ctx, s)
		if err == nil && !palette.Empty() {
			return palette
		}
		if err != nil {
			zap.L().Debug("brand: vision color pass failed, using DOM analysis", zap.Error(err))
		}
	}
	return b.domColors(s)
}

func (b *Brander) visionColors(ctx context.Context, s *Session) (model.ColorPalette, error) {
	shot, err := s.Screenshot()
	if err != nil {
		return model.ColorPalette{}, err
	}

	resp, err := b.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     b.visionModel,
		MaxTokens: 256,
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: visionColorPrompt,
				Image:   &anthropic.ImageBlock{MediaType: "image/png", Data: shot},
			},
		},
	})
	if err != nil {
		return model.ColorPalette{}, err
	}
	resp.Usage.LogCost(b.visionModel, "brand_colors")

	var parsed struct {
		Primary   *string `json:"primary"`
		Secondary *string `json:"secondary"`
		Accent    *string `json:"accent"`
	}
	if err := json.Unmarshal([]byte(classify.StripCodeFences(resp.Text())), &parsed); err != nil {
		return model.ColorPalette{}, eris.Wrap(err, "brand: decode vision palette")
	}

	var palette model.ColorPalette
	palette.Primary = normalizeHex(parsed.Primary)
	palette.Secondary = normalizeHex(parsed.Secondary)
	palette.Accent = normalizeHex(parsed.Accent)
	return palette, nil
}

func (b *Brander) domColors(s *Session) model.ColorPalette {
	var candidates []colorCandidate
	if err := s.Eval(domColorsScript, &candidates); err != nil {
		zap.L().Debug("brand: dom color collection failed", zap.Error(err))
		return model.ColorPalette{}
	}
	return BuildPalette(candidates)
}

// normalizeHex validates a model-provided hex string, returning "" for junk.
func normalizeHex(s *string) string {
	if s == nil {
		return ""
	}
	c, ok := parseCSSColor(*s)
	if !ok {
		return ""
	}
	return c.hex()
}
