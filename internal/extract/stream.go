// Package extract turns raw scraped menu text into structured menu data via
// Claude, either as an incrementally-delivered chunk stream or as a single
// batch parse.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/pkg/anthropic"
)

// maxExtractInputChars bounds raw text sent for extraction.
const maxExtractInputChars = 60000

const streamSystemPrompt = `You extract restaurant menu data from raw website text. You emit newline-delimited JSON: exactly one complete JSON object per line, no markdown, no commentary, no blank lines.

Each line must match exactly one of these five shapes:
{"type":"description","data":{"description":"<one-paragraph restaurant description>"}}
{"type":"cuisine","data":{"cuisine":"<one of the allowed cuisines>"}}
{"type":"tags","data":{"tags":["<restaurant-level dietary tag>", ...]}}
{"type":"category","data":{"categoryName":"<menu category name>"}}
{"type":"item","data":{"item":{"name":"<dish name>","description":<string or null>,"price":<string or null>,"category":<string or null>,"tags":<array or null>}}}

Rules:
- Emit the description early, and re-emit it only if you need to revise it.
- Emit cuisine at most once. Allowed cuisines: %s.
- Emit restaurant-level dietary tags at most once, only from: vegetarian, vegan, gluten-free, halal, kosher, dairy-free, nut-free, organic, and only when the text clearly supports them.
- Emit a category line before any item lines belonging to that category.
- Emit an item only once its name is known; other item fields may be null.
- Title-Case names and category names.
- Never invent dishes, prices, or details not present in the source text.`

const streamUserPrompt = `Restaurant name: %s
Source: %s

Raw website text:
%s`

// Extractor runs LLM-backed menu extraction.
type Extractor struct {
	ai    anthropic.Client
	model string
}

// NewExtractor creates an Extractor using the given model for all parses.
func NewExtractor(ai anthropic.Client, modelID string) *Extractor {
	return &Extractor{ai: ai, model: modelID}
}

// StreamExtract extracts menu data from rawText and delivers validated,
// deduplicated chunks to onChunk as they arrive. Dedup state lives for
// exactly one call: callbacks only ever observe novel events, a category
// chunk always precedes its items, cuisine and tags fire at most once, and
// items are unique by (lowercased name, price).
//
// Malformed NDJSON lines are logged and skipped. The callback is invoked
// synchronously from the stream consumer.
func (e *Extractor) StreamExtract(ctx context.Context, rawText, restaurantName string, hasWebsiteData bool, onChunk func(model.MenuChunk)) error {
	cleaned := Preprocess(rawText)
	if len(cleaned) > maxExtractInputChars {
		cleaned = cleaned[:maxExtractInputChars]
	}
	if cleaned == "" {
		return eris.New("extract: no content after preprocessing")
	}

	source := "search results and reviews"
	if hasWebsiteData {
		source = "the restaurant's own website"
	}

	proc := newLineProcessor(onChunk)

	resp, err := e.ai.StreamMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 16384,
		System: []anthropic.SystemBlock{
			{Text: fmt.Sprintf(streamSystemPrompt, strings.Join(CuisineVocabulary(), ", "))},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(streamUserPrompt, restaurantName, source, cleaned)},
		},
	}, proc.feed)
	if err != nil {
		return eris.Wrap(err, "extract: stream")
	}
	resp.Usage.LogCost(e.model, "stream_extract")

	// Flush any trailing partial line through the same processor.
	proc.flush()

	zap.L().Info("extract: stream complete",
		zap.String("restaurant", restaurantName),
		zap.Int("chunks_emitted", proc.emitted),
		zap.Int("lines_skipped", proc.skipped),
	)
	return nil
}

// lineProcessor buffers raw streamed text, splits it on newlines, and runs
// each complete line through parse + dedup before invoking the callback.
type lineProcessor struct {
	buf     strings.Builder
	state   *dedupState
	onChunk func(model.MenuChunk)
	emitted int
	skipped int
}

func newLineProcessor(onChunk func(model.MenuChunk)) *lineProcessor {
	return &lineProcessor{
		state:   newDedupState(),
		onChunk: onChunk,
	}
}

// feed appends a raw text delta and processes any lines it completes.
func (p *lineProcessor) feed(delta string) {
	p.buf.WriteString(delta)
	content := p.buf.String()
	for {
		idx := strings.IndexByte(content, '\n')
		if idx < 0 {
			break
		}
		line := content[:idx]
		content = content[idx+1:]
		p.processLine(line)
	}
	p.buf.Reset()
	p.buf.WriteString(content)
}

// flush processes a trailing partial line after the stream ends.
func (p *lineProcessor) flush() {
	rest := strings.TrimSpace(p.buf.String())
	p.buf.Reset()
	if rest != "" {
		p.processLine(rest)
	}
}

func (p *lineProcessor) processLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "```") {
		return
	}

	var chunk model.MenuChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		p.skipped++
		zap.L().Debug("extract: skipping malformed line",
			zap.String("line", truncateForLog(line, 200)),
			zap.Error(err),
		)
		return
	}

	for _, out := range p.state.admit(chunk) {
		p.emitted++
		p.onChunk(out)
	}
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
