package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSSColor(t *testing.T) {
	tests := []struct {
		in   string
		want rgb
		ok   bool
	}{
		{"#ff0000", rgb{255, 0, 0}, true},
		{"ff0000", rgb{255, 0, 0}, true},
		{"#f00", rgb{255, 0, 0}, true},
		{"#1A2b3C", rgb{26, 43, 60}, true},
		{"rgb(12, 34, 56)", rgb{12, 34, 56}, true},
		{"rgba(12, 34, 56, 0.9)", rgb{12, 34, 56}, true},
		{"rgba(12, 34, 56, 0.05)", rgb{}, false}, // effectively transparent
		{"rgb(300, 0, 0)", rgb{}, false},
		{"blue", rgb{}, false},
		{"", rgb{}, false},
	}
	for _, tt := range tests {
		got, ok := parseCSSColor(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestRGBHex(t *testing.T) {
	assert.Equal(t, "#ff8000", rgb{255, 128, 0}.hex())
	assert.Equal(t, "#000000", rgb{}.hex())
}

func TestColorDistance(t *testing.T) {
	assert.Zero(t, colorDistance(rgb{10, 10, 10}, rgb{10, 10, 10}))
	assert.InDelta(t, 255, colorDistance(rgb{0, 0, 0}, rgb{255, 0, 0}), 1e-9)
}

func TestBuildPalette_RanksAndDedupes(t *testing.T) {
	palette := BuildPalette([]colorCandidate{
		{Color: "#e63946", Weight: 10, Source: "button"},   // vivid red
		{Color: "#e73a47", Weight: 8, Source: "button"},    // near-identical red, collapsed
		{Color: "#2a9d8f", Weight: 6, Source: "button"},    // teal
		{Color: "#f4a261", Weight: 4, Source: "heading"},   // orange
		{Color: "#264653", Weight: 3, Source: "link"},      // extra, beyond top 3
		{Color: "#111111", Weight: 12, Source: "text"},     // dark text color
		{Color: "#fdfdfd", Weight: 9, Source: "page-background"},
		{Color: "not-a-color", Weight: 99, Source: "button"},
	})

	assert.Equal(t, "#e63946", palette.Primary)
	assert.Equal(t, "#2a9d8f", palette.Secondary)
	assert.Equal(t, "#f4a261", palette.Accent)
	assert.Equal(t, "#111111", palette.Text)
	assert.Equal(t, "#fdfdfd", palette.Background)
}

func TestBuildPalette_ThemeColorBoost(t *testing.T) {
	// A lower-weight theme-color entry outranks a heavier generic one
	// thanks to its source multiplier.
	palette := BuildPalette([]colorCandidate{
		{Color: "#8d99ae", Weight: 8, Source: "button"},
		{Color: "#d90429", Weight: 3, Source: "theme-color"},
	})
	assert.Equal(t, "#d90429", palette.Primary)
}

func TestBuildPalette_PenalizesNearBlackAndGray(t *testing.T) {
	palette := BuildPalette([]colorCandidate{
		{Color: "#0a0a0a", Weight: 10, Source: "button"}, // near black
		{Color: "#808080", Weight: 10, Source: "button"}, // gray
		{Color: "#e63946", Weight: 4, Source: "button"},  // vivid
	})
	assert.Equal(t, "#e63946", palette.Primary)
}

func TestBuildPalette_Empty(t *testing.T) {
	palette := BuildPalette(nil)
	require.True(t, palette.Empty())
}
