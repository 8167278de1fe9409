package extract

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

// titleCaser capitalizes word-initial letters without lowercasing the rest,
// so "spring roll" becomes "Spring Roll" and "BLT" stays "BLT".
var titleCaser = cases.Title(language.English, cases.NoLower)

// TitleCase normalizes a display name.
func TitleCase(s string) string {
	return titleCaser.String(strings.TrimSpace(s))
}

// dedupState holds per-call dedup bookkeeping for one streaming extraction.
// It must not outlive a single StreamExtract call.
type dedupState struct {
	description string
	cuisineSent bool
	tagsSent    bool
	categories  map[string]bool // normalized name → emitted
	items       map[itemKey]bool
}

type itemKey struct {
	name  string
	price string
}

func newDedupState() *dedupState {
	return &dedupState{
		categories: make(map[string]bool),
		items:      make(map[itemKey]bool),
	}
}

func normalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// admit validates and deduplicates a parsed chunk. It returns the chunks to
// deliver to the caller, in order — usually zero or one, but an item whose
// category has not been announced yet is preceded by a synthetic category
// chunk so the category-before-item invariant holds for consumers.
func (s *dedupState) admit(chunk model.MenuChunk) []model.MenuChunk {
	switch chunk.Type {
	case model.ChunkDescription:
		desc := strings.TrimSpace(chunk.Data.Description)
		if desc == "" || desc == s.description {
			return nil
		}
		s.description = desc
		return []model.MenuChunk{{Type: model.ChunkDescription, Data: model.ChunkData{Description: desc}}}

	case model.ChunkCuisine:
		cuisine := strings.ToLower(strings.TrimSpace(chunk.Data.Cuisine))
		if s.cuisineSent || !validCuisines[cuisine] {
			return nil
		}
		s.cuisineSent = true
		return []model.MenuChunk{{Type: model.ChunkCuisine, Data: model.ChunkData{Cuisine: cuisine}}}

	case model.ChunkTags:
		if s.tagsSent {
			return nil
		}
		tags := filterTags(chunk.Data.Tags)
		if len(tags) == 0 {
			return nil
		}
		s.tagsSent = true
		return []model.MenuChunk{{Type: model.ChunkTags, Data: model.ChunkData{Tags: tags}}}

	case model.ChunkCategory:
		norm := normalizeCategory(chunk.Data.CategoryName)
		if norm == "" || s.categories[norm] {
			return nil
		}
		s.categories[norm] = true
		return []model.MenuChunk{{
			Type: model.ChunkCategory,
			Data: model.ChunkData{CategoryName: TitleCase(chunk.Data.CategoryName)},
		}}

	case model.ChunkItem:
		item := chunk.Data.Item
		if item == nil || strings.TrimSpace(item.Name) == "" {
			return nil
		}
		price := ""
		if item.Price != nil {
			price = strings.TrimSpace(*item.Price)
		}
		key := itemKey{name: strings.ToLower(strings.TrimSpace(item.Name)), price: price}
		if s.items[key] {
			return nil
		}
		s.items[key] = true

		out := make([]model.MenuChunk, 0, 2)
		cleaned := *item
		cleaned.Name = TitleCase(item.Name)
		if item.Category != nil {
			norm := normalizeCategory(*item.Category)
			titled := TitleCase(*item.Category)
			cleaned.Category = &titled
			// Announce the category first if the model skipped it.
			if norm != "" && !s.categories[norm] {
				s.categories[norm] = true
				out = append(out, model.MenuChunk{
					Type: model.ChunkCategory,
					Data: model.ChunkData{CategoryName: titled},
				})
			}
		}
		out = append(out, model.MenuChunk{Type: model.ChunkItem, Data: model.ChunkData{Item: &cleaned}})
		return out
	}
	return nil
}

// validCuisines is the enumerated cuisine vocabulary. Values outside it are
// dropped rather than guessed at.
var validCuisines = map[string]bool{
	"american": true, "italian": true, "mexican": true, "chinese": true,
	"japanese": true, "thai": true, "indian": true, "french": true,
	"greek": true, "mediterranean": true, "korean": true, "vietnamese": true,
	"middle eastern": true, "caribbean": true, "spanish": true,
	"ethiopian": true, "brazilian": true, "german": true, "turkish": true,
	"peruvian": true, "filipino": true, "cajun": true, "soul food": true,
	"seafood": true, "steakhouse": true, "pizza": true, "sushi": true,
	"bbq": true, "burgers": true, "breakfast": true, "cafe": true,
	"bakery": true, "dessert": true, "vegan": true, "vegetarian": true,
	"fusion": true, "other": true,
}

// validTags is the restaurant-level dietary tag vocabulary.
var validTags = map[string]bool{
	"vegetarian": true, "vegan": true, "gluten-free": true, "halal": true,
	"kosher": true, "dairy-free": true, "nut-free": true, "organic": true,
}

func filterTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tags {
		norm := strings.ToLower(strings.TrimSpace(t))
		if validTags[norm] && !seen[norm] {
			seen[norm] = true
			out = append(out, norm)
		}
	}
	return out
}

// CuisineVocabulary returns the enumerated cuisine list, sorted for stable
// prompt construction.
func CuisineVocabulary() []string {
	out := make([]string, 0, len(validCuisines))
	for c := range validCuisines {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
