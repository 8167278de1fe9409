package browser

import (
	"time"

	"go.uber.org/zap"
)

// dismissScript performs at most one popup-clearing action and returns what
// it did. Priority: a close affordance inside a modal container, then a
// consent button inside a modal container, then forcible removal of a
// viewport-covering fixed overlay.
const dismissScript = `(() => {
	const containers = Array.from(document.querySelectorAll(
		'[role="dialog"], [aria-modal="true"], .modal, .popup, .overlay, .lightbox, ' +
		'[class*="modal"], [class*="popup"], [class*="cookie"], [class*="consent"], [class*="gdpr"]'
	)).filter(el => {
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	});

	const visible = el => {
		const r = el.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	};
	const inChrome = el => !!el.closest('nav, header, footer');

	// 1) Close affordances: ×, "close", "dismiss" in text, aria-label, class.
	for (const container of containers) {
		const candidates = Array.from(container.querySelectorAll('button, a, [role="button"], span, div'));
		for (const el of candidates) {
			if (!visible(el)) continue;
			const text = (el.innerText || '').trim().toLowerCase();
			const label = (el.getAttribute('aria-label') || '').toLowerCase();
			const cls = (el.className && el.className.toString ? el.className.toString() : '').toLowerCase();
			if (text === '×' || text === 'x' || text === '✕' ||
				text === 'close' || text === 'dismiss' ||
				label.includes('close') || label.includes('dismiss') ||
				/\bclose\b|\bdismiss\b/.test(cls)) {
				el.click();
				return 'close:' + (text || label || 'class');
			}
		}
	}

	// 2) Consent/accept vocabulary. Short ambiguous words match whole-word
	// only, and navigation chrome is excluded.
	const consentPhrases = ['accept all', 'accept cookies', 'i accept', 'i agree', 'agree', 'got it', 'continue', 'allow all', 'confirm'];
	const shortWords = ['ok', 'yes', 'no'];
	for (const container of containers) {
		const candidates = Array.from(container.querySelectorAll('button, a, [role="button"]'));
		for (const el of candidates) {
			if (!visible(el) || inChrome(el)) continue;
			const text = (el.innerText || '').trim().toLowerCase();
			if (!text || text.length > 40) continue;
			if (consentPhrases.some(p => text.includes(p)) ||
				shortWords.some(w => new RegExp('^' + w + '$').test(text))) {
				el.click();
				return 'consent:' + text;
			}
		}
	}

	// 3) Last resort: strip a fixed overlay covering most of the viewport.
	const all = Array.from(document.querySelectorAll('body *'));
	for (const el of all) {
		const style = getComputedStyle(el);
		if (style.position !== 'fixed') continue;
		const z = parseInt(style.zIndex, 10);
		if (isNaN(z) || z < 100) continue;
		const r = el.getBoundingClientRect();
		if (r.width >= window.innerWidth * 0.8 && r.height >= window.innerHeight * 0.5) {
			el.remove();
			return 'removed-overlay';
		}
	}

	return '';
})()`

// DismissPopups makes one best-effort attempt to clear a blocking modal or
// overlay. It never fails the pipeline; callers may invoke it repeatedly,
// each call takes at most one action.
func DismissPopups(s Page) {
	var action string
	if err := s.Eval(dismissScript, &action); err != nil {
		zap.L().Debug("browser: popup dismissal errored", zap.Error(err))
		return
	}
	if action != "" {
		zap.L().Debug("browser: dismissed popup", zap.String("action", action))
		// Let any close animation settle before the caller re-inspects.
		s.Sleep(500 * time.Millisecond)
	}
}
