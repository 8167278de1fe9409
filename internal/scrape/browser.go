package scrape

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mirchapp/menu-pipeline/internal/browser"
	"github.com/mirchapp/menu-pipeline/internal/classify"
	"github.com/mirchapp/menu-pipeline/internal/config"
	"github.com/mirchapp/menu-pipeline/internal/fetcher"
	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/internal/ocr"
	"github.com/mirchapp/menu-pipeline/internal/resilience"
)

// BrowserScraper runs the full headless-browser acquisition flow: navigate,
// dismiss popups, extract branding, find the menu, expand it, and validate
// the result. Retries are strictly sequential; every attempt owns and tears
// down its own browser context.
type BrowserScraper struct {
	cls      *classify.Classifier
	resolver *browser.Resolver
	expander *browser.Expander
	brander  *browser.Brander
	fetcher  *fetcher.HTTPFetcher
	pdf      ocr.Extractor
	cfg      config.ScrapeConfig
}

// NewBrowserScraper wires the scrape components together.
func NewBrowserScraper(cls *classify.Classifier, brander *browser.Brander, cfg config.ScrapeConfig) *BrowserScraper {
	return &BrowserScraper{
		cls:      cls,
		resolver: browser.NewResolver(cls),
		expander: browser.NewExpander(cls, cfg.MaxCategoryLinks, cfg.MaxCategoryClicks),
		brander:  brander,
		fetcher:  fetcher.NewHTTPFetcher(fetcher.HTTPOptions{UserAgent: cfg.UserAgent}),
		pdf:      ocr.NewPdfToText(""),
		cfg:      cfg,
	}
}

func (b *BrowserScraper) Name() string { return "browser" }

// Scrape acquires menu content for url. Returns an error once every retry
// attempt produced content below the acceptance thresholds.
func (b *BrowserScraper) Scrape(ctx context.Context, url string) (*model.ScrapeResult, error) {
	attempts := b.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	result, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: 2 * time.Second,
		Multiplier:     1.0, // linear backoff between scrape attempts
		ShouldRetry:    func(error) bool { return true },
		OnRetry:        resilience.RetryLogger("browser", "scrape"),
	}, func(ctx context.Context) (*model.ScrapeResult, error) {
		return b.attempt(ctx, url)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: %s", url)
	}
	return result, nil
}

// attempt runs one full scrape attempt in a fresh browser context.
func (b *BrowserScraper) attempt(ctx context.Context, url string) (*model.ScrapeResult, error) {
	session, err := browser.NewSession(ctx, browser.Options{
		Headless:   b.cfg.Headless,
		NavTimeout: time.Duration(b.cfg.NavTimeoutSecs) * time.Second,
		UserAgent:  b.cfg.UserAgent,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	if err := session.Navigate(url); err != nil {
		return nil, err
	}

	if session.IsSPA() {
		b.waitForSPAContent(ctx, session)
	}

	browser.DismissPopups(session)

	// Branding comes off the landing page: ordering-platform redirects lose it.
	result := &model.ScrapeResult{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.LogoURL = b.brander.ExtractLogo(session)
		return nil
	})
	g.Go(func() error {
		palette := b.brander.ExtractColors(gctx, session)
		if !palette.Empty() {
			result.Colors = &palette
		}
		return nil
	})
	_ = g.Wait()

	b.resolver.NavigateToMenu(ctx, session)
	browser.DismissPopups(session)
	b.disambiguateLocation(session)

	b.expander.ExpandInPlace(session)
	text := b.expander.Extract(ctx, session)
	pdfURL := b.expander.PDFMenuURL(session)

	session.Close()

	cls := b.cls.Classify(ctx, text)
	if !Accept(cls, len(text), b.cfg.MinContentLength) {
		// Sites that only publish the menu as a PDF leave thin page text;
		// pull the PDF and extract from that instead.
		if pdfText := b.pdfMenuText(ctx, pdfURL); pdfText != "" {
			pdfCls := b.cls.Classify(ctx, pdfText)
			if Accept(pdfCls, len(pdfText), b.cfg.MinContentLength) {
				zap.L().Info("scrape: accepted PDF menu text",
					zap.String("pdf_url", pdfURL),
					zap.Int("score", pdfCls.Score),
					zap.Int("length", len(pdfText)),
				)
				result.Text = pdfText
				return result, nil
			}
		}

		zap.L().Info("scrape: content rejected",
			zap.String("url", url),
			zap.Int("score", cls.Score),
			zap.Float64("confidence", cls.Confidence),
			zap.Int("length", len(text)),
		)
		return nil, eris.Errorf("scrape: content below acceptance thresholds (score=%d confidence=%.2f)",
			cls.Score, cls.Confidence)
	}

	result.Text = text
	return result, nil
}

// pdfMenuText downloads a PDF menu and extracts its text. Best effort: any
// failure returns "".
func (b *BrowserScraper) pdfMenuText(ctx context.Context, pdfURL string) string {
	if pdfURL == "" {
		return ""
	}

	tmp, err := os.CreateTemp("", "menu-*.pdf")
	if err != nil {
		return ""
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	if _, err := b.fetcher.DownloadToFile(ctx, pdfURL, path); err != nil {
		zap.L().Debug("scrape: pdf download failed", zap.String("url", pdfURL), zap.Error(err))
		return ""
	}

	text, err := b.pdf.ExtractText(ctx, path)
	if err != nil {
		zap.L().Debug("scrape: pdf text extraction failed", zap.String("url", pdfURL), zap.Error(err))
		return ""
	}
	return text
}

// waitForSPAContent gives a slow-rendering SPA time to produce content,
// unless the initial render already classifies well.
func (b *BrowserScraper) waitForSPAContent(ctx context.Context, s *browser.Session) {
	text, err := s.BodyText()
	if err == nil {
		cls := b.cls.Classify(ctx, text)
		if cls.Score > 60 {
			return
		}
	}
	s.WaitFor(`(() => {
		const text = document.body ? document.body.innerText : '';
		const prices = (text.match(/[$€£¥₹]\s?\d+(?:[.,]\d{1,2})?/g) || []).length;
		return prices >= 3 || text.length > 2000;
	})()`, 12*time.Second, 1*time.Second)
}

// Accept is the final content-quality predicate. Both clauses use strict
// inequalities: score 60 / confidence 0.6 exactly is rejected.
func Accept(cls model.Classification, textLen, minLen int) bool {
	if cls.Score > 60 && cls.Confidence > 0.6 {
		return true
	}
	return textLen >= minLen && cls.Score > 40 && cls.Confidence > 0.5
}
