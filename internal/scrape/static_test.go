package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const menuHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Thai Garden</title>
	<meta property="og:image" content="/images/social.png">
	<script>window.analytics = {};</script>
	<style>.menu { color: red; }</style>
</head>
<body>
	<nav><a href="/">Home</a> <a href="/menu">Menu</a></nav>
	<header><img src="/images/logo.png" alt="Thai Garden logo"></header>
	<main>
		<h2>Starters</h2>
		<p>Spring Rolls $6.50</p>
		<p>Chicken Satay $8.00</p>
		<h2>Noodles</h2>
		<p>Pad Thai — rice noodles with tamarind and peanuts $14.50</p>
		<p>Drunken Noodles $15.00</p>
		<p>Green Curry with jasmine rice $15.00</p>
		<p>Mango Sticky Rice $7.00</p>
	</main>
	<footer>All rights reserved</footer>
</body>
</html>`

func TestStaticScraper_Scrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(menuHTML))
	}))
	defer srv.Close()

	s := NewStaticScraper("test-agent")
	result, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Pad Thai")
	assert.Contains(t, result.Text, "$14.50")
	// Scripts, styles, and chrome are stripped.
	assert.NotContains(t, result.Text, "analytics")
	assert.NotContains(t, result.Text, "color: red")
	assert.NotContains(t, result.Text, "All rights reserved")
	assert.Equal(t, srv.URL+"/images/logo.png", result.LogoURL)
}

func TestStaticScraper_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewStaticScraper("")
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestStaticScraper_TinyBodyRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	s := NewStaticScraper("")
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty page")
}

func TestStaticScraper_BlockedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("<html><body>Checking your browser before accessing…</body></html>"))
	}))
	defer srv.Close()

	s := NewStaticScraper("")
	_, err := s.Scrape(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestFindStaticLogo_Fallbacks(t *testing.T) {
	parse := func(html string) *goquery.Document {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		require.NoError(t, err)
		return doc
	}

	ogOnly := parse(`<html><head><meta property="og:image" content="/social.png"></head><body></body></html>`)
	assert.Equal(t, "https://x.test/social.png", findStaticLogo(ogOnly, "https://x.test/"))

	favOnly := parse(`<html><head><link rel="shortcut icon" href="/favicon.ico"></head><body></body></html>`)
	assert.Equal(t, "https://x.test/favicon.ico", findStaticLogo(favOnly, "https://x.test/"))

	nothing := parse(`<html><body><img src="/hero.jpg" alt="dining room"></body></html>`)
	assert.Equal(t, "", findStaticLogo(nothing, "https://x.test/"))
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://x.test/a/logo.png", absoluteURL("https://x.test/a/page", "logo.png"))
	assert.Equal(t, "https://x.test/logo.png", absoluteURL("https://x.test/a/page", "/logo.png"))
	assert.Equal(t, "https://cdn.test/logo.png", absoluteURL("https://x.test/", "https://cdn.test/logo.png"))
	assert.Equal(t, "", absoluteURL("https://x.test/", ""))
}
