package classify

import (
	"regexp"
	"strings"
)

// priceRe matches currency-prefixed amounts ("$12", "€9.50") and bare
// decimal prices ("12.99").
var priceRe = regexp.MustCompile(`[$€£¥₹]\s?\d+(?:[.,]\d{1,2})?|\b\d{1,4}\.\d{2}\b`)

// foodKeywords are category and dish words that indicate menu content.
var foodKeywords = []string{
	"appetizer", "appetizers", "starters", "entree", "entrees", "mains",
	"main course", "dessert", "desserts", "beverage", "beverages", "drinks",
	"salad", "salads", "soup", "soups", "sandwich", "sandwiches", "burger",
	"pizza", "pasta", "sides", "breakfast", "lunch", "dinner", "brunch",
	"specials", "combo", "platter", "wrap", "taco", "sushi", "noodles",
	"curry", "grill", "fried", "roasted", "vegetarian", "vegan", "gluten",
}

// nonMenuPhrases indicate legal or navigational boilerplate, not a menu.
var nonMenuPhrases = []string{
	"privacy policy", "terms of service", "terms and conditions",
	"cookie policy", "all rights reserved", "careers", "job openings",
	"sign in", "create account", "forgot password", "newsletter",
}

// CountPrices returns the number of price-like tokens in text.
func CountPrices(text string) int {
	return len(priceRe.FindAllString(text, -1))
}

// HasFoodKeywords reports whether text mentions any known food or
// menu-category keyword.
func HasFoodKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range foodKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HeuristicScore rates text 0-100 for menu-ness without an LLM call.
//
// Price density dominates: restaurant menus sit in a narrow band of prices
// per character that almost no other page type matches. Keyword, structural,
// and length signals refine the score; boilerplate phrases subtract.
func HeuristicScore(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	score := 0
	lower := strings.ToLower(text)
	prices := priceRe.FindAllString(text, -1)

	// Price density per 1000 characters. The 5-20 band is the menu sweet
	// spot; anything price-bearing outside it still counts for less.
	density := float64(len(prices)) / float64(len(text)) * 1000
	switch {
	case density >= 5 && density <= 20:
		score += 35
	case len(prices) > 0:
		score += 15
	}

	// Food and category keywords, capped so keyword-stuffed pages don't win.
	kwPoints := 0
	for _, kw := range foodKeywords {
		if strings.Contains(lower, kw) {
			kwPoints += 4
			if kwPoints >= 20 {
				break
			}
		}
	}
	score += kwPoints

	// Structural signals.
	lines := strings.Split(text, "\n")
	headerCount := 0
	shortPriceLines := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isCategoryHeader(trimmed) {
			headerCount++
		}
		if len(trimmed) < 120 && priceRe.MatchString(trimmed) {
			shortPriceLines++
		}
	}
	if headerCount >= 2 {
		score += 10
	}
	if len(prices) > 3 {
		score += 10
	}
	if shortPriceLines >= 3 {
		score += 10
	}

	// Known non-menu boilerplate subtracts.
	penalty := 0
	for _, phrase := range nonMenuPhrases {
		if strings.Contains(lower, phrase) {
			penalty += 15
			if penalty >= 30 {
				break
			}
		}
	}
	score -= penalty

	// Length sweet spot: a real menu is substantial but bounded.
	words := len(strings.Fields(text))
	switch {
	case words >= 200 && words <= 2000:
		score += 10
	case words > 5000:
		score -= 15
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// isCategoryHeader recognizes "=== NAME ===" blocks and short all-caps lines
// that look like menu section headings.
func isCategoryHeader(line string) bool {
	if strings.HasPrefix(line, "===") && strings.HasSuffix(line, "===") {
		return true
	}
	if len(line) > 40 || len(line) < 3 {
		return false
	}
	letters := 0
	for _, r := range line {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			letters++
		}
	}
	return letters >= 3
}
