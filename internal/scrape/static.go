package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

// StaticScraper fetches HTML via net/http and extracts text with goquery.
// No JS execution: it only works for server-rendered menus, which makes it
// the fallback when Chrome is unavailable, never the primary path.
type StaticScraper struct {
	client    *http.Client
	userAgent string
}

// NewStaticScraper creates a StaticScraper with sensible defaults.
func NewStaticScraper(userAgent string) *StaticScraper {
	return &StaticScraper{
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

func (s *StaticScraper) Name() string { return "static_http" }

// Scrape fetches a URL, detects anti-bot blocks, and strips it to text plus
// whatever branding the raw HTML exposes.
func (s *StaticScraper) Scrape(ctx context.Context, targetURL string) (*model.ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "static_http: create request")
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "static_http: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, eris.Wrap(err, "static_http: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return nil, eris.Errorf("static_http: blocked (%s)", blockType)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("static_http: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, eris.Wrap(err, "static_http: parse html")
	}

	result := &model.ScrapeResult{
		Text:    extractText(doc),
		LogoURL: findStaticLogo(doc, targetURL),
	}
	if len(result.Text) < 100 {
		return nil, eris.New("static_http: empty page")
	}
	return result, nil
}

// extractText strips scripts, styles, and navigation chrome, then collapses
// the remaining text.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		b.WriteString(sel.Text())
	})

	lines := strings.Split(b.String(), "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

// findStaticLogo looks for a logo-named image, an og:image, or a favicon.
func findStaticLogo(doc *goquery.Document, pageURL string) string {
	var logo string
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		alt, _ := sel.Attr("alt")
		class, _ := sel.Attr("class")
		if strings.Contains(strings.ToLower(src+alt+class), "logo") {
			logo = src
			return false
		}
		return true
	})
	if logo == "" {
		if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
			logo = og
		}
	}
	if logo == "" {
		if fav, ok := doc.Find(`link[rel*="icon"]`).Attr("href"); ok {
			logo = fav
		}
	}
	return absoluteURL(pageURL, logo)
}

// absoluteURL resolves ref against base, returning "" for junk.
func absoluteURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}
