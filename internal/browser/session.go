// Package browser drives a headless Chrome page through the menu discovery
// heuristics: popup dismissal, menu navigation, content expansion, and
// branding extraction. All heuristic DOM work runs as evaluated JavaScript
// returning JSON-decoded results.
package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// Options configures one browser session.
type Options struct {
	Headless   bool
	NavTimeout time.Duration
	UserAgent  string
}

// stealthScript hides the obvious automation fingerprints before any page
// script runs: webdriver flag, empty plugin list, missing languages.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
window.chrome = window.chrome || {runtime: {}};
`

// Session owns one isolated browser context. Sessions are single-use: one
// scrape attempt creates one and must Close it, success or failure.
type Session struct {
	ctx        context.Context
	cancels    []context.CancelFunc
	navTimeout time.Duration
}

// NewSession launches an isolated browser context with stealth flags and a
// realistic user agent.
func NewSession(parent context.Context, opts Options) (*Session, error) {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:        browserCtx,
		cancels:    []context.CancelFunc{cancelBrowser, cancelAlloc},
		navTimeout: opts.NavTimeout,
	}

	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		s.Close()
		return nil, eris.Wrap(err, "browser: launch")
	}

	return s, nil
}

// Close tears down the browser context. Safe to call more than once.
func (s *Session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

// Ctx exposes the chromedp context for raw actions.
func (s *Session) Ctx() context.Context { return s.ctx }

// Navigate loads a URL with the primary wait strategy (document ready),
// falling back to a fixed settle delay when the primary strategy errors.
func (s *Session) Navigate(url string) error {
	tctx, cancel := context.WithTimeout(s.ctx, s.navTimeout)
	defer cancel()

	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}

	// Fallback: some sites never settle the primary wait. Give the page a
	// short fixed window and take whatever rendered.
	fctx, fcancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer fcancel()
	ferr := chromedp.Run(fctx,
		chromedp.Navigate(url),
		chromedp.Sleep(3*time.Second),
	)
	if ferr != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

// Eval evaluates a JS expression, JSON-decoding the result into out.
// out may be nil when the result is irrelevant.
func (s *Session) Eval(js string, out any) error {
	tctx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()
	if out == nil {
		return chromedp.Run(tctx, chromedp.Evaluate(js, nil))
	}
	return chromedp.Run(tctx, chromedp.Evaluate(js, out))
}

// EvalWith evaluates a JS function expression applied to a JSON-marshaled
// argument, decoding the result into out.
func (s *Session) EvalWith(fnExpr string, arg any, out any) error {
	data, err := json.Marshal(arg)
	if err != nil {
		return eris.Wrap(err, "browser: marshal eval argument")
	}
	return s.Eval("("+fnExpr+")("+string(data)+")", out)
}

// BodyText returns the page's rendered text.
func (s *Session) BodyText() (string, error) {
	var text string
	if err := s.Eval(`document.body ? document.body.innerText : ''`, &text); err != nil {
		return "", eris.Wrap(err, "browser: body text")
	}
	return text, nil
}

// Location returns the current page URL.
func (s *Session) Location() (string, error) {
	var loc string
	tctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "browser: location")
	}
	return loc, nil
}

// Screenshot captures a full-page screenshot as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	var buf []byte
	tctx, cancel := context.WithTimeout(s.ctx, 20*time.Second)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.FullScreenshot(&buf, 80)); err != nil {
		return nil, eris.Wrap(err, "browser: screenshot")
	}
	return buf, nil
}

// Sleep pauses cooperatively, returning early on context cancellation.
func (s *Session) Sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
	case <-timer.C:
	}
}

// WaitFor polls a JS predicate until it returns true or timeout elapses.
// Reports whether the predicate became true.
func (s *Session) WaitFor(js string, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var ok bool
		if err := s.Eval(js, &ok); err == nil && ok {
			return true
		}
		s.Sleep(interval)
		if s.ctx.Err() != nil {
			return false
		}
	}
	return false
}

// IsSPA sniffs for single-page-app markers: framework mount points and
// near-empty server-rendered bodies.
func (s *Session) IsSPA() bool {
	var spa bool
	err := s.Eval(`(() => {
		if (document.querySelector('#root, #__next, #app, [ng-version], [data-reactroot]')) return true;
		const scripts = Array.from(document.scripts).map(s => s.src).join(' ');
		if (/react|angular|vue|next|nuxt|svelte/i.test(scripts)) return true;
		const body = document.body ? document.body.innerText.trim() : '';
		return body.length < 200 && document.scripts.length > 5;
	})()`, &spa)
	return err == nil && spa
}
