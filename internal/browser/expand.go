package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/classify"
)

// Page is the slice of Session the expander and popup dismisser drive. A
// live Session satisfies it; tests substitute scripted pages.
type Page interface {
	Eval(js string, out any) error
	EvalWith(fnExpr string, arg any, out any) error
	WaitFor(js string, timeout, interval time.Duration) bool
	Sleep(d time.Duration)
	Navigate(url string) error
	Location() (string, error)
	BodyText() (string, error)
	IsSPA() bool
}

var _ Page = (*Session)(nil)

// categoryBlock is one named chunk of menu text extracted from the page.
type categoryBlock struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// directTabScript inspects the DOM for tab-widget conventions outside
// navigation chrome: Elementor tabs, generic ARIA tab/tabpanel pairs, and
// Bootstrap-style toggle/target pairs. It returns name/text pairs only when
// tab and panel counts line up and the panel content is substantial.
const directTabScript = `(() => {
	const inChrome = el => !!el.closest('nav, header, footer');
	const pairs = [];

	// Elementor-style widgets keep titles and content side by side.
	const elTitles = Array.from(document.querySelectorAll('.elementor-tab-title, .e-n-tab-title')).filter(el => !inChrome(el));
	const elPanels = Array.from(document.querySelectorAll('.elementor-tab-content, .e-n-tabs-content > div')).filter(el => !inChrome(el));
	if (elTitles.length > 0 && elTitles.length === elPanels.length) {
		for (let i = 0; i < elTitles.length; i++) {
			pairs.push({name: elTitles[i].innerText.trim(), text: elPanels[i].innerText.trim()});
		}
	}

	// Generic ARIA pairing.
	if (pairs.length === 0) {
		const tabs = Array.from(document.querySelectorAll('[role="tab"]')).filter(el => !inChrome(el));
		const panels = Array.from(document.querySelectorAll('[role="tabpanel"]')).filter(el => !inChrome(el));
		if (tabs.length > 0 && tabs.length === panels.length) {
			for (let i = 0; i < tabs.length; i++) {
				let panel = panels[i];
				const id = tabs[i].getAttribute('aria-controls');
				if (id) {
					const byID = document.getElementById(id);
					if (byID) panel = byID;
				}
				pairs.push({name: tabs[i].innerText.trim(), text: panel.innerText.trim()});
			}
		}
	}

	// Bootstrap-style toggles pointing at panes.
	if (pairs.length === 0) {
		const toggles = Array.from(document.querySelectorAll('[data-bs-toggle="tab"], [data-toggle="tab"]')).filter(el => !inChrome(el));
		for (const t of toggles) {
			const sel = t.getAttribute('data-bs-target') || t.getAttribute('data-target') || t.getAttribute('href');
			if (!sel || !sel.startsWith('#')) continue;
			const pane = document.querySelector(sel);
			if (pane) pairs.push({name: t.innerText.trim(), text: pane.innerText.trim()});
		}
	}

	return pairs.filter(p => p.name && p.text.length > 100);
})()`

// accordionScript clicks collapsed menu-related accordion toggles (bounded)
// and opens every native <details>. Returns how many elements it touched.
const accordionScript = `(() => {
	const foodRe = /appetizer|starter|entree|main|dessert|drink|beverage|salad|soup|side|breakfast|lunch|dinner|pizza|pasta|burger|special/i;
	const navTokenRe = /nav|header|footer|menu-toggle|hamburger|drawer|sidebar/i;
	let clicked = 0;

	const toggles = Array.from(document.querySelectorAll('[aria-expanded="false"]'));
	for (const el of toggles) {
		if (clicked >= 12) break;
		if (el.closest('nav, header, footer')) continue;
		const idcls = ((el.className || '') + ' ' + (el.id || '')).toString();
		if (navTokenRe.test(idcls)) continue;
		const context = (el.innerText || '') + ' ' + ((el.closest('section, article, div') || {}).innerText || '').slice(0, 200);
		if (!foodRe.test(context)) continue;
		el.click();
		clicked++;
	}

	// Native details are cheap to open and carry no navigation risk.
	for (const d of document.querySelectorAll('details:not([open])')) {
		d.setAttribute('open', '');
		clicked++;
	}
	return clicked;
})()`

// discoverCategoriesScript collects clickable category candidates inside
// likely menu containers, falling back to a broad main-content scan when the
// containers yield too little. Returns labels split into in-page tabs and
// real navigation links.
const discoverCategoriesScript = `(() => {
	const excludeRe = /order|checkout|cart|contact|location|direction|about|reserv|gift|career|social|facebook|instagram|twitter|account|login|sign|privacy|terms|catering/i;

	const collect = (root, maxLen) => {
		const out = [];
		const els = Array.from(root.querySelectorAll('a, button, [role="tab"], [role="button"], li'));
		for (const el of els) {
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			const text = (el.innerText || '').trim();
			if (!text || text.length > maxLen || text.split('\n').length > 2) continue;
			if (excludeRe.test(text)) continue;
			const href = el.getAttribute('href') || '';
			if (href && !href.startsWith('#')) {
				try {
					const u = new URL(el.href);
					if (u.hostname !== location.hostname && !/menu/i.test(href + text)) continue;
					out.push({text, href: el.href, isLink: true});
					continue;
				} catch (e) { continue; }
			}
			out.push({text, href: '', isLink: false});
		}
		return out;
	};

	const containers = Array.from(document.querySelectorAll(
		'[class*="menu-grid"], [class*="menu-tab"], [class*="menu-categor"], [class*="category"], ' +
		'[class*="menu-nav"], [id*="menu"], [role="tablist"]'
	)).filter(el => !el.closest('nav, header, footer'));

	let candidates = [];
	for (const c of containers) candidates = candidates.concat(collect(c, 35));

	if (candidates.length < 2) {
		const main = document.querySelector('main, [role="main"], #content, .content') || document.body;
		candidates = collect(main, 30).filter(c => !excludeRe.test(c.text));
	}

	// Dedupe labels that differ only by case (ALL CAPS nav twin vs body tab).
	const seen = new Set();
	const unique = [];
	for (const c of candidates) {
		const key = c.text.toLowerCase().replace(/\s+/g, ' ');
		if (seen.has(key)) continue;
		seen.add(key);
		unique.push(c);
	}
	return unique;
})()`

// clickTabScript clicks the first visible clickable whose normalized text
// equals the label, trying progressively looser selector strategies, with
// the discovery exclusion rules re-applied. Returns whether a click landed.
const clickTabScript = `(label) => {
	const excludeRe = /order|checkout|cart|contact|location|direction|about|reserv|gift|career|social|account|login|sign|privacy|terms|catering/i;
	const norm = s => (s || '').trim().toLowerCase().replace(/\s+/g, ' ');
	const want = norm(label);
	const strategies = [
		'[role="tab"]',
		'.elementor-tab-title, .e-n-tab-title',
		'[data-bs-toggle="tab"], [data-toggle="tab"]',
		'button, a, [role="button"]',
		'li, span, div',
	];
	for (const sel of strategies) {
		for (const el of document.querySelectorAll(sel)) {
			const r = el.getBoundingClientRect();
			if (r.width === 0 || r.height === 0) continue;
			const text = norm(el.innerText);
			if (text !== want || excludeRe.test(text)) continue;
			el.click();
			return true;
		}
	}
	return false;
}`

// activePanelScript extracts the active tab panel's text through a strategy
// cascade, ending at a nav-stripped main-content fallback.
const activePanelScript = `(() => {
	const strategies = [
		'.elementor-tab-content.elementor-active, .e-n-tabs-content > .e-active',
		'[role="tabpanel"]:not([hidden])',
		'.tab-pane.active, .tab-pane.show, [class*="tab-content"] .active',
	];
	for (const sel of strategies) {
		const els = Array.from(document.querySelectorAll(sel)).filter(el => {
			const r = el.getBoundingClientRect();
			return r.width > 0 && r.height > 0;
		});
		if (els.length > 0) {
			const text = els.map(el => el.innerText.trim()).join('\n');
			if (text.length > 50) return text;
		}
	}
	const main = document.querySelector('main, [role="main"], #content, .content');
	const root = (main || document.body).cloneNode(true);
	for (const strip of root.querySelectorAll('nav, header, footer')) strip.remove();
	return root.innerText.trim();
})()`

// sectionBlocksScript extracts heading-delimited blocks from the main
// content region for pages that lay categories out statically (no tabs, no
// category links). Only price-bearing sections count.
const sectionBlocksScript = `(() => {
	const priceRe = /[$€£¥₹]\s?\d+(?:[.,]\d{1,2})?/;
	const main = document.querySelector('main, [role="main"], #content, .content') || document.body;
	const out = [];

	for (const section of main.querySelectorAll('section, [class*="menu-section"], [class*="category"]')) {
		if (section.closest('nav, header, footer')) continue;
		const heading = section.querySelector('h1, h2, h3, h4');
		if (!heading) continue;
		const name = heading.innerText.trim();
		const text = section.innerText.trim();
		if (!name || name.length > 50 || !priceRe.test(text) || text.length < 40) continue;
		out.push({name, text});
	}
	return out;
})()`

// pdfMenuScript detects PDF-only or image-only menu indicators.
const pdfMenuScript = `(() => {
	if (document.querySelector('a[href$=".pdf"], embed[type="application/pdf"], iframe[src*=".pdf"]')) return 'pdf';
	const imgs = document.querySelectorAll('img[src*="menu" i], img[alt*="menu" i]');
	const text = document.body ? document.body.innerText : '';
	if (imgs.length > 0 && !/[$€£¥₹]\s?\d/.test(text)) return 'image';
	return '';
})()`

// pdfMenuLinkScript resolves the first linked or embedded PDF to an
// absolute URL.
const pdfMenuLinkScript = `(() => {
	const el = document.querySelector('a[href$=".pdf"], embed[type="application/pdf"], iframe[src*=".pdf"]');
	if (!el) return '';
	const raw = el.href || el.src || '';
	if (!raw) return '';
	try { return new URL(raw, location.href).href; } catch (e) { return ''; }
})()`

// Expander drives lazy-load scrolling, accordion expansion, and category
// extraction for one page.
type Expander struct {
	cls       *classify.Classifier
	maxLinks  int
	maxClicks int
}

// NewExpander creates an Expander. maxLinks bounds nav-link category
// crawling; maxClicks bounds in-page tab click-through.
func NewExpander(cls *classify.Classifier, maxLinks, maxClicks int) *Expander {
	if maxLinks <= 0 {
		maxLinks = 5
	}
	if maxClicks <= 0 {
		maxClicks = 15
	}
	return &Expander{cls: cls, maxLinks: maxLinks, maxClicks: maxClicks}
}

// ExpandInPlace triggers lazy loading and opens collapsed menu sections
// without leaving the page. Best-effort.
func (e *Expander) ExpandInPlace(s Page) {
	e.scrollToBottom(s)

	var touched int
	if err := s.Eval(accordionScript, &touched); err == nil && touched > 0 {
		zap.L().Debug("expand: opened collapsed sections", zap.Int("count", touched))
		s.Sleep(800 * time.Millisecond)
	}
}

// scrollToBottom scrolls in viewport increments until the page height
// stabilizes. SPAs get more attempts and longer settle delays since their
// lazy loaders fire on intersection.
func (e *Expander) scrollToBottom(s Page) {
	maxAttempts, delay := 8, 400*time.Millisecond
	if s.IsSPA() {
		maxAttempts, delay = 15, 900*time.Millisecond
	}

	stable := 0
	lastHeight := -1
	for i := 0; i < maxAttempts; i++ {
		var state struct {
			Height int  `json:"height"`
			AtEnd  bool `json:"atEnd"`
		}
		err := s.Eval(`(() => {
			window.scrollBy(0, window.innerHeight);
			const height = document.body ? document.body.scrollHeight : 0;
			const atEnd = window.scrollY + window.innerHeight >= height - 100;
			return {height, atEnd};
		})()`, &state)
		if err != nil {
			return
		}
		s.Sleep(delay)

		if state.AtEnd && state.Height == lastHeight {
			stable++
			if stable >= 3 {
				break
			}
		} else {
			stable = 0
		}
		lastHeight = state.Height
	}

	_ = s.Eval(`window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`, nil)
	s.Sleep(delay)
}

// Extract returns the page's menu text. The direct tabbed-DOM fast path is
// tried first and returns immediately on success; otherwise categories are
// discovered and clicked through (or read straight from heading-delimited
// sections), with fingerprint dedup across blocks.
func (e *Expander) Extract(ctx context.Context, s Page) string {
	if text, ok := e.directExtract(s); ok {
		zap.L().Debug("expand: direct tab extraction succeeded", zap.Int("chars", len(text)))
		return text
	}

	if kind := e.detectNonHTMLMenu(s); kind != "" {
		loc, _ := s.Location()
		zap.L().Info("expand: non-HTML menu detected, text extraction will be partial",
			zap.String("kind", kind),
			zap.String("url", loc),
		)
	}

	var candidates []struct {
		Text   string `json:"text"`
		Href   string `json:"href"`
		IsLink bool   `json:"isLink"`
	}
	if err := s.Eval(discoverCategoriesScript, &candidates); err != nil {
		zap.L().Debug("expand: category discovery failed", zap.Error(err))
	}

	var tabs []string
	var links []string
	for _, c := range candidates {
		if c.IsLink {
			links = append(links, c.Href)
		} else {
			tabs = append(tabs, c.Text)
		}
	}

	seen := make(map[string]bool)
	var out strings.Builder

	if len(tabs) >= 2 {
		e.clickThroughTabs(ctx, s, tabs, seen, &out)
	}
	// Tab candidates whose clicks all miss (detached SPA widgets) leave the
	// nav links as the remaining per-category source.
	if out.Len() == 0 && len(links) >= 2 {
		e.crawlCategoryLinks(ctx, s, links, seen, &out)
	}

	// Static layouts: no clickable categories, the sections are already in
	// the DOM under their headings.
	if out.Len() == 0 {
		var blocks []categoryBlock
		if err := s.Eval(sectionBlocksScript, &blocks); err == nil {
			for _, b := range blocks {
				appendBlock(&out, seen, b.Name, b.Text)
			}
		}
	}

	if out.Len() > 0 {
		return out.String()
	}

	// Whole-page fallback.
	text, err := s.BodyText()
	if err != nil {
		return ""
	}
	return text
}

// directExtract attempts the tabbed-DOM fast path. The assembled text must
// carry price density or food keywords before it is accepted.
func (e *Expander) directExtract(s Page) (string, bool) {
	var pairs []categoryBlock
	if err := s.Eval(directTabScript, &pairs); err != nil || len(pairs) < 2 {
		return "", false
	}

	var out strings.Builder
	seen := make(map[string]bool)
	for _, p := range pairs {
		appendBlock(&out, seen, p.Name, p.Text)
	}

	text := out.String()
	if classify.CountPrices(text) >= 3 || classify.HasFoodKeywords(text) {
		return text, true
	}
	return "", false
}

// clickThroughTabs simulates clicks through each in-page category tab,
// diffing accumulated text by fingerprint. It exits early once enough tabs
// are processed and the classifier deems the accumulated text sufficient.
func (e *Expander) clickThroughTabs(ctx context.Context, s Page, labels []string, seen map[string]bool, out *strings.Builder) {
	if len(labels) > e.maxClicks {
		labels = labels[:e.maxClicks]
	}

	for i, label := range labels {
		var clicked bool
		if err := s.EvalWith(clickTabScript, label, &clicked); err != nil || !clicked {
			continue
		}

		// Wait for the active panel to settle and carry real content.
		s.WaitFor(`(() => {
			const text = document.body ? document.body.innerText : '';
			return text.length > 300;
		})()`, 5*time.Second, 300*time.Millisecond)
		s.Sleep(400 * time.Millisecond)

		var panel string
		if err := s.Eval(activePanelScript, &panel); err != nil || len(strings.TrimSpace(panel)) < 40 {
			continue
		}
		appendBlock(out, seen, label, panel)

		// Sufficiency early-exit to bound total click work.
		if i >= 2 && out.Len() > 1500 {
			cls := e.cls.Classify(ctx, out.String())
			if cls.Score > 70 && cls.Confidence > 0.6 {
				zap.L().Debug("expand: early exit, accumulated content sufficient",
					zap.Int("tabs_processed", i+1),
					zap.Int("score", cls.Score),
				)
				return
			}
		}
	}
}

// crawlCategoryLinks visits per-category URLs (bounded), re-expanding each
// page and appending fingerprint-novel main-content text.
func (e *Expander) crawlCategoryLinks(ctx context.Context, s Page, urls []string, seen map[string]bool, out *strings.Builder) {
	if len(urls) > e.maxLinks {
		urls = urls[:e.maxLinks]
	}

	base, _ := s.Location()
	for _, u := range urls {
		if u == "" || strings.HasPrefix(u, "#") || sameDoc(base, u) {
			continue
		}
		if err := s.Navigate(u); err != nil {
			zap.L().Debug("expand: category link navigation failed",
				zap.String("url", u), zap.Error(err))
			continue
		}
		DismissPopups(s)
		e.scrollToBottom(s)

		var text string
		if err := s.Eval(activePanelScript, &text); err != nil {
			continue
		}
		name := categoryNameFromURL(u)
		appendBlock(out, seen, name, text)

		if ctx.Err() != nil {
			return
		}
	}
}

func (e *Expander) detectNonHTMLMenu(s Page) string {
	var kind string
	if err := s.Eval(pdfMenuScript, &kind); err != nil {
		return ""
	}
	return kind
}

// PDFMenuURL returns the absolute URL of a linked or embedded PDF menu,
// or "" when the page has none.
func (e *Expander) PDFMenuURL(s Page) string {
	var href string
	if err := s.Eval(pdfMenuLinkScript, &href); err != nil {
		return ""
	}
	return href
}

// appendBlock appends a "=== NAME ===" block unless an equivalent text block
// was already accumulated.
func appendBlock(out *strings.Builder, seen map[string]bool, name, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	fp := ContentFingerprint(text)
	if seen[fp] {
		return
	}
	seen[fp] = true

	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		name = "MENU"
	}
	fmt.Fprintf(out, "=== %s ===\n\n%s\n\n", name, text)
}

// sameDoc reports whether b is just an anchor within a.
func sameDoc(a, b string) bool {
	stripFrag := func(u string) string {
		if i := strings.IndexByte(u, '#'); i >= 0 {
			return u[:i]
		}
		return u
	}
	return stripFrag(a) == stripFrag(b) && strings.Contains(b, "#")
}

// categoryNameFromURL derives a readable category label from the last URL
// path segment.
func categoryNameFromURL(raw string) string {
	trimmed := strings.TrimSuffix(raw, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	trimmed = strings.ReplaceAll(trimmed, "-", " ")
	trimmed = strings.ReplaceAll(trimmed, "_", " ")
	if trimmed == "" {
		return "MENU"
	}
	return trimmed
}
