package extract

import (
	"regexp"
	"strings"
)

// boilerplatePhrases are legal/footer lines that waste extraction tokens and
// occasionally confuse the model into emitting non-menu "items".
var boilerplatePhrases = []string{
	"privacy policy",
	"terms of service",
	"terms and conditions",
	"cookie policy",
	"all rights reserved",
	"copyright ©",
	"powered by",
	"follow us",
	"sign up for our newsletter",
	"subscribe to our newsletter",
	"accessibility statement",
	"do not sell my personal information",
}

var (
	urlRe        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	decorationRe = regexp.MustCompile(`\*{5,}|-{5,}|_{5,}|={5,}|~{5,}|\.{5,}|#{5,}`)
	spaceRe      = regexp.MustCompile(`[ \t]+`)
	blankRunRe   = regexp.MustCompile(`\n{3,}`)
)

// Preprocess strips boilerplate, URLs, and decorative character runs from raw
// scraped text and collapses whitespace, keeping extraction input dense.
//
// Category markers ("=== NAME ===") inserted by the content expander survive:
// the decoration filter requires runs of five or more.
func Preprocess(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		lower := strings.ToLower(line)
		drop := false
		for _, phrase := range boilerplatePhrases {
			if strings.Contains(lower, phrase) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	text := strings.Join(kept, "\n")

	text = urlRe.ReplaceAllString(text, "")
	text = decorationRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
