package browser

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirchapp/menu-pipeline/internal/classify"
	"github.com/mirchapp/menu-pipeline/internal/config"
)

// fakePage replays scripted results for the expander's evaluated JS. The
// active panel is keyed by the last clicked tab label or navigated URL;
// clicking a label absent from panels reports a missed click.
type fakePage struct {
	candidatesJSON string
	sectionsJSON   string
	bodyText       string
	panels         map[string]string

	active    string
	clicked   []string
	navigated []string
}

func (p *fakePage) Eval(js string, out any) error {
	var raw string
	switch js {
	case directTabScript:
		raw = `[]`
	case discoverCategoriesScript:
		raw = p.candidatesJSON
	case activePanelScript:
		data, err := json.Marshal(p.panels[p.active])
		if err != nil {
			return err
		}
		raw = string(data)
	case sectionBlocksScript:
		raw = p.sectionsJSON
	case accordionScript:
		raw = `0`
	case pdfMenuScript, pdfMenuLinkScript:
		raw = `""`
	default:
		raw = `null`
	}
	if out == nil || raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}

func (p *fakePage) EvalWith(fnExpr string, arg any, out any) error {
	if fnExpr == clickTabScript {
		label, _ := arg.(string)
		p.clicked = append(p.clicked, label)
		_, landed := p.panels[label]
		if landed {
			p.active = label
		}
		if b, ok := out.(*bool); ok {
			*b = landed
		}
	}
	return nil
}

func (p *fakePage) WaitFor(string, time.Duration, time.Duration) bool { return true }

func (p *fakePage) Sleep(time.Duration) {}

func (p *fakePage) Navigate(url string) error {
	p.navigated = append(p.navigated, url)
	p.active = url
	return nil
}

func (p *fakePage) Location() (string, error) { return "https://thaigarden.test/menu", nil }

func (p *fakePage) BodyText() (string, error) { return p.bodyText, nil }

func (p *fakePage) IsSPA() bool { return false }

func newTestExpander() *Expander {
	return NewExpander(classify.New(nil, "", config.ClassifyConfig{}), 5, 15)
}

const mixedCandidatesJSON = `[
	{"text": "Lunch", "href": "", "isLink": false},
	{"text": "Dinner", "href": "", "isLink": false},
	{"text": "Lunch Menu", "href": "https://thaigarden.test/menu/lunch", "isLink": true},
	{"text": "Dinner Menu", "href": "https://thaigarden.test/menu/dinner", "isLink": true}
]`

func TestExtract_TabClickFailureFallsBackToLinks(t *testing.T) {
	p := &fakePage{
		candidatesJSON: mixedCandidatesJSON,
		sectionsJSON:   `[]`,
		panels: map[string]string{
			"https://thaigarden.test/menu/lunch":  "Pad See Ew $13.00\nKhao Soi $15.00\nThai Iced Tea $4.50",
			"https://thaigarden.test/menu/dinner": "Crying Tiger $24.00\nWhole Fried Fish $32.00\nMango Sticky Rice $9.00",
		},
	}

	text := newTestExpander().Extract(context.Background(), p)

	// Both tab clicks missed, so the nav-link pass takes over.
	assert.Equal(t, []string{"Lunch", "Dinner"}, p.clicked)
	require.Equal(t, []string{
		"https://thaigarden.test/menu/lunch",
		"https://thaigarden.test/menu/dinner",
	}, p.navigated)
	assert.Contains(t, text, "=== LUNCH ===")
	assert.Contains(t, text, "Khao Soi")
	assert.Contains(t, text, "=== DINNER ===")
	assert.Contains(t, text, "Crying Tiger")
}

func TestExtract_SuccessfulTabsSkipLinkCrawl(t *testing.T) {
	p := &fakePage{
		candidatesJSON: mixedCandidatesJSON,
		sectionsJSON:   `[]`,
		panels: map[string]string{
			"Lunch":  "Pad See Ew $13.00\nKhao Soi $15.00\nThai Iced Tea $4.50",
			"Dinner": "Crying Tiger $24.00\nWhole Fried Fish $32.00\nMango Sticky Rice $9.00",
		},
	}

	text := newTestExpander().Extract(context.Background(), p)

	assert.Empty(t, p.navigated)
	assert.Contains(t, text, "=== LUNCH ===")
	assert.Contains(t, text, "=== DINNER ===")
}

func TestExtract_StaticSections(t *testing.T) {
	p := &fakePage{
		candidatesJSON: `[]`,
		sectionsJSON: `[
			{"name": "Starters", "text": "Spring Roll $6.50\nChicken Satay $8.00"},
			{"name": "Noodles", "text": "Pad Thai $14.50\nDrunken Noodles $15.00"}
		]`,
	}

	text := newTestExpander().Extract(context.Background(), p)

	assert.Contains(t, text, "=== STARTERS ===")
	assert.Contains(t, text, "=== NOODLES ===")
	assert.Contains(t, text, "Pad Thai $14.50")
}

func TestExtract_WholePageFallback(t *testing.T) {
	p := &fakePage{
		candidatesJSON: `[]`,
		sectionsJSON:   `[]`,
		bodyText:       "Pad Thai $14.50\nGreen Curry $15.00",
	}

	text := newTestExpander().Extract(context.Background(), p)
	assert.Equal(t, "Pad Thai $14.50\nGreen Curry $15.00", text)
}

func TestAppendBlock_DedupsRepeatedContent(t *testing.T) {
	var out strings.Builder
	seen := make(map[string]bool)
	const text = "Spring Roll $6.50\nChicken Satay $8.00\nTom Yum Soup $7.50"

	appendBlock(&out, seen, "Starters", text)
	appendBlock(&out, seen, "Starters", text)
	// Whitespace and case variants fingerprint identically.
	appendBlock(&out, seen, "Appetizers", "SPRING  ROLL $6.50\n CHICKEN SATAY $8.00\nTOM YUM SOUP  $7.50")

	assert.Equal(t, "=== STARTERS ===\n\n"+text+"\n\n", out.String())
}

func TestAppendBlock_DistinctContentAccumulates(t *testing.T) {
	var out strings.Builder
	seen := make(map[string]bool)

	appendBlock(&out, seen, "Starters", "Spring Roll $6.50")
	appendBlock(&out, seen, "Noodles", "Pad Thai $14.50")

	assert.Equal(t, "=== STARTERS ===\n\nSpring Roll $6.50\n\n=== NOODLES ===\n\nPad Thai $14.50\n\n", out.String())
}

func TestAppendBlock_NameAndTextEdgeCases(t *testing.T) {
	var out strings.Builder
	seen := make(map[string]bool)

	appendBlock(&out, seen, "Starters", "   ")
	assert.Zero(t, out.Len())

	appendBlock(&out, seen, "", "Pad Thai $14.50")
	assert.Equal(t, "=== MENU ===\n\nPad Thai $14.50\n\n", out.String())
}
