package browser

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/classify"
)

// orderingPlatformHosts is the allowlist of known food-ordering SaaS host
// patterns. A redirect onto one of these means the restaurant outsources its
// menu; the page needs the ordering-platform handler and longer waits.
var orderingPlatformHosts = []string{
	"toasttab.com",
	"order.toasttab.com",
	"ubereats.com",
	"doordash.com",
	"order.online",
	"grubhub.com",
	"seamless.com",
	"chownow.com",
	"clover.com",
	"square.site",
	"squareup.com",
	"spoton.com",
	"olo.com",
	"popmenu.com",
	"getbento.com",
	"bentobox.com",
	"zuppler.com",
	"menufy.com",
	"slicelife.com",
	"eatstreet.com",
	"hungerrush.com",
	"lunchbox.io",
}

// IsOrderingPlatform reports whether rawURL points at a known third-party
// ordering platform.
func IsOrderingPlatform(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range orderingPlatformHosts {
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	return false
}

// IsMenuURL reports whether the URL path strongly indicates a menu page.
// A trailing "/menu" or a "/menu/" segment short-circuits the content checks.
func IsMenuURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
	return strings.HasSuffix(path, "/menu") || strings.Contains(path+"/", "/menu/")
}

// hasMenuNavScript reports whether a visible menu-labeled navigation element
// exists on the page.
const hasMenuNavScript = `(() => {
	const els = Array.from(document.querySelectorAll('a, button, [role="button"], [role="menuitem"]'));
	return els.some(el => {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return false;
		const text = (el.innerText || '').trim().toLowerCase();
		const href = (el.getAttribute('href') || '').toLowerCase();
		return text === 'menu' || text === 'menus' || text === 'our menu' ||
			text === 'view menu' || text === 'food menu' || text === 'full menu' ||
			href.includes('/menu');
	});
})()`

// menuPageSignalsScript collects content-level menu-page signals.
const menuPageSignalsScript = `(() => {
	const text = document.body ? document.body.innerText : '';
	const prices = (text.match(/[$€£¥₹]\s?\d+(?:[.,]\d{1,2})?/g) || []).length;
	const menuWords = (text.toLowerCase().match(/appetizer|entree|dessert|starters|mains|sides|beverages/g) || []).length;
	const hasGrid = !!document.querySelector('[class*="menu-grid"], [class*="menu-list"], [class*="menu-item"], [class*="menu-section"], [id*="menu"]');
	return {prices, menuWords, hasGrid};
})()`

// clickMenuControlScript locates the best "menu"/"order" control. It clicks
// in-page controls directly; for controls that open a new tab it reports the
// href instead so the caller can navigate the same page there.
const clickMenuControlScript = `(() => {
	const excluded = /cart|checkout|account|login|sign in|sign up|reservation|gift card|catering/;
	const exact = ['menu', 'menus', 'our menu', 'view menu', 'full menu', 'food menu', 'order', 'order now', 'order online'];
	const els = Array.from(document.querySelectorAll('a, button, [role="button"], [role="menuitem"]'));

	let best = null, bestScore = 0;
	for (const el of els) {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		const text = (el.innerText || '').trim().toLowerCase();
		if (!text || text.length > 40 || excluded.test(text)) continue;
		const href = (el.getAttribute('href') || '').toLowerCase();

		let score = 0;
		if (exact.includes(text)) score = text.includes('menu') ? 100 : 60;
		else if (text.includes('menu')) score = 50;
		else if (text.includes('order')) score = 30;
		if (href.includes('/menu')) score += 40;
		if (score > bestScore) { bestScore = score; best = el; }
	}
	if (!best) return {found: false};

	const href = best.getAttribute('href') || '';
	const isAnchor = href.startsWith('#');
	const target = best.getAttribute('target') || '';
	if (href && !isAnchor && target === '_blank') {
		return {found: true, clicked: false, href: best.href, targetBlank: true, isAnchor: false, text: best.innerText.trim()};
	}
	best.click();
	return {found: true, clicked: true, href: href ? best.href : '', targetBlank: false, isAnchor: isAnchor, text: best.innerText.trim()};
})()`

// dropdownMenuScript handles menus tucked inside dropdown widgets: expand a
// dropdown whose list contains a /menu link, then click that link.
const dropdownMenuScript = `(() => {
	const toggles = Array.from(document.querySelectorAll(
		'[aria-haspopup="true"], .dropdown-toggle, [data-toggle="dropdown"], [class*="dropdown"] > a, [class*="dropdown"] > button'
	));
	for (const toggle of toggles) {
		const container = toggle.closest('[class*="dropdown"], li, nav') || toggle.parentElement;
		if (!container) continue;
		const link = container.querySelector('a[href*="/menu"]');
		if (!link) continue;
		toggle.click();
		link.click();
		return {clicked: true, href: link.href};
	}
	return {clicked: false};
})()`

// secondaryControlScript re-searches for a menu/order control that causes
// real navigation, for use after the first match was an in-page anchor.
// Footer, social, utility, and cross-origin links are excluded unless the
// cross-origin target is a known ordering platform or menu-labeled.
const secondaryControlScript = `(platforms) => {
	const excluded = /cart|checkout|account|login|sign in|facebook|instagram|twitter|tiktok|yelp|maps|privacy|terms|contact|about/;
	const els = Array.from(document.querySelectorAll('a[href], button'));
	let best = null, bestScore = 0;
	for (const el of els) {
		if (el.closest('footer')) continue;
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		const text = (el.innerText || '').trim().toLowerCase();
		const href = (el.getAttribute('href') || '');
		if (!href || href.startsWith('#') || excluded.test(text)) continue;

		let crossOrigin = false;
		try { crossOrigin = new URL(el.href).hostname !== location.hostname; } catch (e) { continue; }
		const menuish = text.includes('menu') || text.includes('order') || href.toLowerCase().includes('menu') || href.toLowerCase().includes('order');
		if (crossOrigin) {
			const host = new URL(el.href).hostname;
			const platform = platforms.some(p => host === p || host.endsWith('.' + p));
			if (!platform && !menuish) continue;
		} else if (!menuish) {
			continue;
		}

		let score = 0;
		if (text === 'menu' || text === 'view menu' || text === 'order now' || text === 'order online') score = 100;
		else if (menuish) score = 50;
		if (score > bestScore) { bestScore = score; best = el; }
	}
	if (!best) return {found: false};
	const target = best.getAttribute('target') || '';
	if (target === '_blank') return {found: true, clicked: false, href: best.href, targetBlank: true};
	best.click();
	return {found: true, clicked: true, href: best.href, targetBlank: false};
}`

// orderingPlatformScript scores every clickable control against the ordering
// platform entry vocabulary, boosting controls inside location-card-like
// containers, and clicks the best non-disabled one.
const orderingPlatformScript = `(() => {
	const vocab = [
		{re: /order now/, w: 100},
		{re: /start order/, w: 95},
		{re: /order online/, w: 90},
		{re: /schedule order/, w: 80},
		{re: /view menu|full menu|see menu/, w: 75},
		{re: /^menu$/, w: 70},
		{re: /^continue$/, w: 60},
		{re: /pickup|delivery/, w: 50},
		{re: /^order$/, w: 45},
	];
	const addressRe = /\d{1,5}\s+\w+.*\b(st|street|ave|avenue|rd|road|blvd|dr|drive|way|ln|lane)\b/i;

	const els = Array.from(document.querySelectorAll('a, button, [role="button"]'));
	let best = null, bestScore = 0;
	for (const el of els) {
		if (el.disabled || el.getAttribute('aria-disabled') === 'true') continue;
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		const text = (el.innerText || '').trim().toLowerCase();
		if (!text || text.length > 50) continue;

		let score = 0;
		for (const v of vocab) {
			if (v.re.test(text)) { score = Math.max(score, v.w); }
		}
		if (score === 0) continue;

		const card = el.closest('[class*="location"], [class*="store"], [class*="card"], li, article');
		if (card) {
			score += 10;
			const cardText = (card.innerText || '').toLowerCase();
			if (addressRe.test(cardText)) score += 15;
			if (/\bopen\b|\bopen now\b/.test(cardText)) score += 10;
		}
		if (score > bestScore) { bestScore = score; best = el; }
	}
	if (!best) return false;
	best.click();
	return true;
})()`

// menuPageSignals mirrors menuPageSignalsScript's result.
type menuPageSignals struct {
	Prices    int  `json:"prices"`
	MenuWords int  `json:"menuWords"`
	HasGrid   bool `json:"hasGrid"`
}

type controlResult struct {
	Found       bool   `json:"found"`
	Clicked     bool   `json:"clicked"`
	Href        string `json:"href"`
	TargetBlank bool   `json:"targetBlank"`
	IsAnchor    bool   `json:"isAnchor"`
	Text        string `json:"text"`
}

// Resolver decides whether the current page is an acceptable menu page and,
// if not, finds and activates the most likely menu entry point.
type Resolver struct {
	cls *classify.Classifier
}

// NewResolver creates a Resolver backed by the given classifier.
func NewResolver(cls *classify.Classifier) *Resolver {
	return &Resolver{cls: cls}
}

// NavigateToMenu mutates the session's navigation state toward the best menu
// page it can find. Best-effort: every failure mode degrades to "stay put".
func (r *Resolver) NavigateToMenu(ctx context.Context, s *Session) {
	text, err := s.BodyText()
	if err != nil {
		zap.L().Debug("navigate: body text unavailable", zap.Error(err))
		return
	}
	cls := r.cls.Classify(ctx, text)

	// Excellent content: do not navigate away from it.
	if cls.Score > 80 && cls.Confidence > 0.8 {
		zap.L().Debug("navigate: staying on excellent content", zap.Int("score", cls.Score))
		return
	}

	var hasMenuNav bool
	_ = s.Eval(hasMenuNavScript, &hasMenuNav)

	// Good content with nowhere better to go.
	if cls.Score > 60 && cls.Confidence > 0.7 && !hasMenuNav {
		return
	}

	loc, _ := s.Location()
	if r.looksLikeMenuPage(s, loc) {
		return
	}

	// Dropdown-tucked menu link first, then the general control search.
	var dd struct {
		Clicked bool   `json:"clicked"`
		Href    string `json:"href"`
	}
	if err := s.Eval(dropdownMenuScript, &dd); err == nil && dd.Clicked {
		r.settleAfterNavigation(ctx, s, loc)
		return
	}

	var ctl controlResult
	if err := s.Eval(clickMenuControlScript, &ctl); err != nil || !ctl.Found {
		zap.L().Debug("navigate: no menu control found")
		return
	}

	r.followControl(ctx, s, loc, ctl, true)
}

// followControl finishes the navigation a chosen control started. When the
// control was an in-page anchor, one secondary search for a real navigation
// control is allowed.
func (r *Resolver) followControl(ctx context.Context, s *Session, fromURL string, ctl controlResult, allowSecondary bool) {
	switch {
	case ctl.TargetBlank && ctl.Href != "":
		// Keep the single-page model: load the new-tab target in place.
		if err := s.Navigate(ctl.Href); err != nil {
			zap.L().Debug("navigate: target=_blank follow failed", zap.Error(err))
			return
		}
		r.settleAfterNavigation(ctx, s, fromURL)

	case ctl.IsAnchor:
		// Anchor scroll, no real navigation. Give it a beat, then look for a
		// secondary control that actually navigates.
		s.Sleep(1 * time.Second)
		if !allowSecondary {
			return
		}
		var sec controlResult
		if err := s.EvalWith(secondaryControlScript, orderingPlatformHosts, &sec); err != nil || !sec.Found {
			return
		}
		r.followControl(ctx, s, fromURL, sec, false)

	default:
		r.settleAfterNavigation(ctx, s, fromURL)
	}
}

// settleAfterNavigation waits for a click-initiated navigation to land, then
// applies ordering-platform handling when the destination warrants it.
func (r *Resolver) settleAfterNavigation(ctx context.Context, s *Session, fromURL string) {
	// Wait for the URL to change or the body to grow substantial.
	deadline := time.Now().Add(s.navTimeout)
	for time.Now().Before(deadline) {
		loc, err := s.Location()
		if err == nil && loc != fromURL {
			break
		}
		var length int
		if err := s.Eval(`document.body ? document.body.innerText.length : 0`, &length); err == nil && length > 3000 {
			break
		}
		s.Sleep(500 * time.Millisecond)
		if s.ctx.Err() != nil {
			return
		}
	}
	s.Sleep(1 * time.Second)

	loc, _ := s.Location()
	if IsOrderingPlatform(loc) || s.IsSPA() {
		var clicked bool
		if err := s.Eval(orderingPlatformScript, &clicked); err == nil && clicked {
			zap.L().Debug("navigate: ordering platform control clicked", zap.String("url", loc))
		}
		// Platforms render menus lazily; wait on a price/keyword predicate.
		s.WaitFor(`(() => {
			const text = document.body ? document.body.innerText : '';
			const prices = (text.match(/[$€£¥₹]\s?\d+(?:[.,]\d{1,2})?/g) || []).length;
			return prices >= 5 || text.length > 8000;
		})()`, 15*time.Second, 1*time.Second)
	}
}

// looksLikeMenuPage combines URL and content signals to decide whether the
// current page already counts as a menu page.
func (r *Resolver) looksLikeMenuPage(s *Session, loc string) bool {
	if IsMenuURL(loc) {
		// Strong URL match wins even with imperfect content.
		return true
	}

	var sig menuPageSignals
	if err := s.Eval(menuPageSignalsScript, &sig); err != nil {
		return false
	}
	if sig.MenuWords >= 3 && sig.Prices >= 5 {
		return true
	}
	return sig.HasGrid && sig.Prices >= 3
}
