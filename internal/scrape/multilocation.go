package scrape

import (
	"time"

	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/browser"
	"github.com/mirchapp/menu-pipeline/internal/classify"
)

// multiLocationScript scores clickable candidates for "looks like a
// per-location menu link" and clicks the best one when at least two strong
// candidates exist and the top one clears the score threshold.
const multiLocationScript = `(() => {
	const addressRe = /\d{1,5}\s+\w+.*\b(st|street|ave|avenue|rd|road|blvd|dr|drive|way|ln|lane)\b/i;
	const storeRe = /store\s*#?\d+|location\s*#?\d+/i;

	const candidates = [];
	for (const el of document.querySelectorAll('a, button, [role="button"]')) {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		const text = (el.innerText || '').trim();
		if (!text || text.length > 80) continue;
		const href = (el.getAttribute('href') || '').toLowerCase();

		let score = 0;
		const lower = text.toLowerCase();
		if (lower.length < 30 && /menu/.test(lower)) score += 40;
		if (addressRe.test(text)) score += 35;
		if (storeRe.test(text)) score += 30;
		if (href.includes('/menu/')) score += 30;
		if (score > 0) candidates.push({el, score});
	}

	candidates.sort((a, b) => b.score - a.score);
	const strong = candidates.filter(c => c.score >= 40);
	if (strong.length < 2 || strong[0].score < 60) return false;
	strong[0].el.click();
	return true;
})()`

// disambiguateLocation handles multi-location menu hubs: pages already at a
// /menu URL but with too few prices to be an actual menu. Only then is a
// per-location link worth chasing.
func (b *BrowserScraper) disambiguateLocation(s *browser.Session) {
	loc, err := s.Location()
	if err != nil || !browser.IsMenuURL(loc) {
		return
	}
	text, err := s.BodyText()
	if err != nil || classify.CountPrices(text) >= 15 {
		return
	}

	var clicked bool
	if err := s.Eval(multiLocationScript, &clicked); err != nil || !clicked {
		return
	}
	zap.L().Debug("scrape: selected per-location menu link", zap.String("from", loc))
	s.WaitFor(`(() => {
		const text = document.body ? document.body.innerText : '';
		return (text.match(/[$€£¥₹]\s?\d+(?:[.,]\d{1,2})?/g) || []).length >= 5;
	})()`, 8*time.Second, 1*time.Second)
}
