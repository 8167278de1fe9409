package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Joe's Diner", "joe-s-diner"},
		{"spaces collapse", "The   Golden  Spoon", "the-golden-spoon"},
		{"punctuation runs", "Café -- Olé!!", "caf-ol"},
		{"leading trailing junk", "  *Taco Town*  ", "taco-town"},
		{"numbers kept", "Pizza 4 You", "pizza-4-you"},
		{"all symbols", "***", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestMenuChunkJSONShape(t *testing.T) {
	raw := `{"type":"category","data":{"categoryName":"starters"}}`

	var chunk MenuChunk
	require.NoError(t, json.Unmarshal([]byte(raw), &chunk))
	assert.Equal(t, ChunkCategory, chunk.Type)
	assert.Equal(t, "starters", chunk.Data.CategoryName)

	out, err := json.Marshal(chunk)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestMenuChunkItemPayload(t *testing.T) {
	raw := `{"type":"item","data":{"item":{"name":"Pad Thai","description":null,"price":"14.50","category":"Noodles","tags":null}}}`

	var chunk MenuChunk
	require.NoError(t, json.Unmarshal([]byte(raw), &chunk))
	require.NotNil(t, chunk.Data.Item)
	assert.Equal(t, "Pad Thai", chunk.Data.Item.Name)
	assert.Nil(t, chunk.Data.Item.Description)
	require.NotNil(t, chunk.Data.Item.Price)
	assert.Equal(t, "14.50", *chunk.Data.Item.Price)
	require.NotNil(t, chunk.Data.Item.Category)
	assert.Equal(t, "Noodles", *chunk.Data.Item.Category)
}

func TestColorPaletteEmpty(t *testing.T) {
	var nilPalette *ColorPalette
	assert.True(t, nilPalette.Empty())
	assert.True(t, (&ColorPalette{}).Empty())
	assert.False(t, (&ColorPalette{Primary: "#ff0000"}).Empty())
	assert.False(t, (&ColorPalette{Background: "#ffffff"}).Empty())
}
