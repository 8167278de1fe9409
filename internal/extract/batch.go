package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mirchapp/menu-pipeline/internal/classify"
	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/pkg/anthropic"
)

const batchSystemPrompt = `You extract restaurant menu data from raw website text. Respond with a single valid JSON object and nothing else:
{"items":[{"name":"<dish>","description":<string or null>,"price":<string or null>,"category":<string or null>,"tags":<array or null>}],"categories":["<category>", ...],"description":<string or null>}
Title-Case names and categories. Never invent data not present in the source text.`

const batchUserPrompt = `Restaurant name: %s

Raw website text:
%s`

// ParseMenu is the synchronous variant of StreamExtract: one call, one
// ParsedMenu. Items are deduplicated by (lowercased name, price), keeping
// the entry with the longer description.
func (e *Extractor) ParseMenu(ctx context.Context, rawText, restaurantName string) (*model.ParsedMenu, error) {
	cleaned := Preprocess(rawText)
	if len(cleaned) > maxExtractInputChars {
		cleaned = cleaned[:maxExtractInputChars]
	}
	if cleaned == "" {
		return nil, eris.New("extract: no content after preprocessing")
	}

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 16384,
		System:    []anthropic.SystemBlock{{Text: batchSystemPrompt}},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(batchUserPrompt, restaurantName, cleaned)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: batch parse")
	}
	resp.Usage.LogCost(e.model, "batch_extract")

	return decodeParsedMenu(resp.Text())
}

func decodeParsedMenu(raw string) (*model.ParsedMenu, error) {
	var menu model.ParsedMenu
	if err := json.Unmarshal([]byte(classify.StripCodeFences(raw)), &menu); err != nil {
		return nil, eris.Wrap(err, "extract: decode parsed menu")
	}
	return dedupeMenu(&menu), nil
}

// dedupeMenu normalizes names and collapses duplicate items, keeping the
// most descriptive entry for each (name, price) pair.
func dedupeMenu(menu *model.ParsedMenu) *model.ParsedMenu {
	byKey := make(map[itemKey]int)
	out := menu.Items[:0]
	for _, item := range menu.Items {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		item.Name = TitleCase(item.Name)
		if item.Category != nil {
			titled := TitleCase(*item.Category)
			item.Category = &titled
		}

		price := ""
		if item.Price != nil {
			price = strings.TrimSpace(*item.Price)
		}
		key := itemKey{name: strings.ToLower(item.Name), price: price}

		if idx, ok := byKey[key]; ok {
			if descLen(item) > descLen(out[idx]) {
				out[idx] = item
			}
			continue
		}
		byKey[key] = len(out)
		out = append(out, item)
	}
	menu.Items = out

	seen := make(map[string]bool)
	cats := menu.Categories[:0]
	for _, c := range menu.Categories {
		norm := normalizeCategory(c)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		cats = append(cats, TitleCase(c))
	}
	menu.Categories = cats

	return menu
}

func descLen(item model.MenuItem) int {
	if item.Description == nil {
		return 0
	}
	return len(*item.Description)
}
