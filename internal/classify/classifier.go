// Package classify scores page text for "is this a restaurant menu".
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mirchapp/menu-pipeline/internal/config"
	"github.com/mirchapp/menu-pipeline/internal/model"
	"github.com/mirchapp/menu-pipeline/pkg/anthropic"
)

// maxLLMContentChars bounds how much page text reaches the model.
const maxLLMContentChars = 6000

// minLLMWords is the floor below which the LLM adds nothing over heuristics.
const minLLMWords = 50

const classifySystemPrompt = `You rate web page text for whether it is a restaurant menu. Respond with a valid JSON object and nothing else: {"score": <0-100>, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}. A score above 50 means the text is a menu.`

const classifyUserPrompt = `Rate the following page text 0-100 for whether it is a restaurant menu (items, prices, categories). Text:

%s`

// Classifier scores arbitrary page text for menu-ness with an LLM primary
// path and a heuristic fallback, memoized by content fingerprint.
//
// Classify never returns an error: any LLM failure degrades to the heuristic
// result. Callers invoke it redundantly per page state; the fingerprint cache
// makes that cheap.
type Classifier struct {
	ai      anthropic.Client
	model   string
	limiter *rate.Limiter
	cache   *resultCache
}

// New creates a Classifier. ai may be nil, in which case every call takes
// the heuristic path.
func New(ai anthropic.Client, modelID string, cfg config.ClassifyConfig) *Classifier {
	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 2.0
	}
	return &Classifier{
		ai:      ai,
		model:   modelID,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cache:   newResultCache(ttl),
	}
}

// Classify scores text 0-100 with a confidence. Results are cached by
// content fingerprint for the configured TTL.
func (c *Classifier) Classify(ctx context.Context, text string) model.Classification {
	key := Fingerprint(text)
	if cls, ok := c.cache.get(key); ok {
		return cls
	}

	cls := c.classifyUncached(ctx, text)
	cls.IsMenu = cls.Score > 50
	c.cache.set(key, cls)
	return cls
}

func (c *Classifier) classifyUncached(ctx context.Context, text string) model.Classification {
	truncated := text
	if len(truncated) > maxLLMContentChars {
		truncated = truncated[:maxLLMContentChars]
	}

	if c.ai == nil || len(strings.Fields(truncated)) < minLLMWords {
		return model.Classification{
			Score:      HeuristicScore(text),
			Confidence: 0.4,
		}
	}

	cls, err := c.classifyLLM(ctx, truncated)
	if err != nil {
		zap.L().Debug("classify: llm path failed, falling back to heuristic",
			zap.Error(err),
		)
		return model.Classification{
			Score:      HeuristicScore(text),
			Confidence: 0.3,
		}
	}
	return cls
}

func (c *Classifier) classifyLLM(ctx context.Context, text string) (model.Classification, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Classification{}, err
	}

	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 256,
		System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(classifyUserPrompt, text)},
		},
	})
	if err != nil {
		return model.Classification{}, err
	}
	resp.Usage.LogCost(c.model, "classify")

	var parsed struct {
		Score      int     `json:"score"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	raw := StripCodeFences(resp.Text())
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return model.Classification{}, err
	}

	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 100 {
		parsed.Score = 100
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}

	return model.Classification{
		Score:      parsed.Score,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
	}, nil
}

// StripCodeFences removes a wrapping markdown code fence from LLM output,
// if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
