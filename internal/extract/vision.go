package extract

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/pkg/anthropic"
)

const visionUserPrompt = `Restaurant name: %s

Extract the menu from the attached photo. Read every legible item, price, and section heading.`

// ParseMenuImage extracts a menu from a photo (e.g. a printed menu snapshot)
// using a vision-capable model. Same contract as ParseMenu.
func (e *Extractor) ParseMenuImage(ctx context.Context, image []byte, mediaType, restaurantName string) (*model.ParsedMenu, error) {
	if len(image) == 0 {
		return nil, eris.New("extract: empty image")
	}
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 16384,
		System:    []anthropic.SystemBlock{{Text: batchSystemPrompt}},
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: fmt.Sprintf(visionUserPrompt, restaurantName),
				Image:   &anthropic.ImageBlock{MediaType: mediaType, Data: image},
			},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: vision parse")
	}
	resp.Usage.LogCost(e.model, "vision_extract")

	return decodeParsedMenu(resp.Text())
}
