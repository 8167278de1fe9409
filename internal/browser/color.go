package browser

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

// colorCandidate is one observed color with its heuristic weight and the
// style source it came from.
type colorCandidate struct {
	Color  string  `json:"color"`
	Weight float64 `json:"weight"`
	Source string  `json:"source"`
}

type rgb struct{ r, g, b int }

var (
	rgbFuncRe = regexp.MustCompile(`rgba?\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)(?:\s*,\s*([0-9.]+))?\s*\)`)
	hexRe     = regexp.MustCompile(`^#?([0-9a-fA-F]{6}|[0-9a-fA-F]{3})$`)
)

// parseCSSColor accepts #rgb, #rrggbb, rgb() and rgba() forms. Fully
// transparent colors are rejected.
func parseCSSColor(s string) (rgb, bool) {
	s = strings.TrimSpace(s)
	if m := rgbFuncRe.FindStringSubmatch(s); m != nil {
		if m[4] != "" {
			if alpha, err := strconv.ParseFloat(m[4], 64); err == nil && alpha < 0.1 {
				return rgb{}, false
			}
		}
		r, _ := strconv.Atoi(m[1])
		g, _ := strconv.Atoi(m[2])
		b, _ := strconv.Atoi(m[3])
		if r > 255 || g > 255 || b > 255 {
			return rgb{}, false
		}
		return rgb{r, g, b}, true
	}
	if m := hexRe.FindStringSubmatch(s); m != nil {
		hexPart := m[1]
		if len(hexPart) == 3 {
			hexPart = string([]byte{hexPart[0], hexPart[0], hexPart[1], hexPart[1], hexPart[2], hexPart[2]})
		}
		v, err := strconv.ParseUint(hexPart, 16, 32)
		if err != nil {
			return rgb{}, false
		}
		return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, true
	}
	return rgb{}, false
}

func (c rgb) hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.r, c.g, c.b)
}

// saturation returns HSL saturation in [0,1].
func (c rgb) saturation() float64 {
	maxV := math.Max(float64(c.r), math.Max(float64(c.g), float64(c.b))) / 255
	minV := math.Min(float64(c.r), math.Min(float64(c.g), float64(c.b))) / 255
	if maxV == minV {
		return 0
	}
	l := (maxV + minV) / 2
	d := maxV - minV
	if l > 0.5 {
		return d / (2 - maxV - minV)
	}
	return d / (maxV + minV)
}

func (c rgb) luminance() float64 {
	return (0.299*float64(c.r) + 0.587*float64(c.g) + 0.114*float64(c.b)) / 255
}

// colorDistance is Euclidean RGB distance, used to collapse perceptually
// similar candidates.
func colorDistance(a, b rgb) float64 {
	dr, dg, db := float64(a.r-b.r), float64(a.g-b.g), float64(a.b-b.b)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// similarityThreshold collapses colors closer than this RGB distance.
const similarityThreshold = 60

// BuildPalette scores and deduplicates DOM color candidates into a palette.
// Background colors of button-like and brand-like elements dominate; colors
// sourced from CSS custom properties or a theme-color meta tag are near
// certain primaries; washed-out and near-black/white colors are penalized.
func BuildPalette(candidates []colorCandidate) model.ColorPalette {
	type scored struct {
		c      rgb
		weight float64
	}

	var textBest, bgBest *scored
	var brand []scored

	for _, cand := range candidates {
		c, ok := parseCSSColor(cand.Color)
		if !ok {
			continue
		}
		w := cand.Weight
		lum := c.luminance()
		sat := c.saturation()

		switch cand.Source {
		case "text":
			// Representative text color: dark and readable wins.
			if lum < 0.45 {
				s := scored{c: c, weight: w * (1 - lum)}
				if textBest == nil || s.weight > textBest.weight {
					textBest = &s
				}
			}
			continue
		case "page-background":
			// Light background heuristic.
			if lum > 0.8 {
				s := scored{c: c, weight: w * lum}
				if bgBest == nil || s.weight > bgBest.weight {
					bgBest = &s
				}
			}
			continue
		case "custom-prop", "theme-color":
			w *= 5
		}

		// Brand colors should pop: punish near-black, near-white, and gray.
		if lum > 0.95 || lum < 0.05 {
			w *= 0.1
		}
		if sat < 0.15 {
			w *= 0.25
		}

		brand = append(brand, scored{c: c, weight: w})
	}

	sort.SliceStable(brand, func(i, j int) bool { return brand[i].weight > brand[j].weight })

	// Perceptual dedup, then top 3.
	var top []rgb
	for _, s := range brand {
		dup := false
		for _, t := range top {
			if colorDistance(s.c, t) < similarityThreshold {
				dup = true
				break
			}
		}
		if !dup {
			top = append(top, s.c)
		}
		if len(top) == 3 {
			break
		}
	}

	var palette model.ColorPalette
	if len(top) > 0 {
		palette.Primary = top[0].hex()
	}
	if len(top) > 1 {
		palette.Secondary = top[1].hex()
	}
	if len(top) > 2 {
		palette.Accent = top[2].hex()
	}
	if textBest != nil {
		palette.Text = textBest.c.hex()
	}
	if bgBest != nil {
		palette.Background = bgBest.c.hex()
	}
	return palette
}
