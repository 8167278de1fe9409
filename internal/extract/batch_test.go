package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirchapp/menu-pipeline/internal/model"
)

func TestDedupeMenu_LongerDescriptionWins(t *testing.T) {
	short := "Stir-fried noodles."
	long := "Stir-fried rice noodles with tamarind, peanuts, and lime."

	menu := &model.ParsedMenu{
		Items: []model.MenuItem{
			{Name: "pad thai", Price: strPtr("14.50"), Description: &short},
			{Name: "PAD THAI", Price: strPtr("14.50"), Description: &long},
			{Name: "green curry", Price: strPtr("15.00")},
			{Name: "  ", Price: strPtr("1.00")},
		},
	}

	out := dedupeMenu(menu)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "Pad Thai", out.Items[0].Name)
	require.NotNil(t, out.Items[0].Description)
	assert.Equal(t, long, *out.Items[0].Description)
	assert.Equal(t, "Green Curry", out.Items[1].Name)
}

func TestDedupeMenu_Categories(t *testing.T) {
	menu := &model.ParsedMenu{
		Categories: []string{"starters", "STARTERS", " mains ", "", "mains"},
	}
	out := dedupeMenu(menu)
	assert.Equal(t, []string{"Starters", "Mains"}, out.Categories)
}

func TestDecodeParsedMenu(t *testing.T) {
	raw := "```json\n" + `{"items":[{"name":"pad thai","price":"14.50","category":"noodles"}],"categories":["noodles"],"description":"Thai kitchen."}` + "\n```"
	menu, err := decodeParsedMenu(raw)
	require.NoError(t, err)
	require.Len(t, menu.Items, 1)
	assert.Equal(t, "Pad Thai", menu.Items[0].Name)
	require.NotNil(t, menu.Items[0].Category)
	assert.Equal(t, "Noodles", *menu.Items[0].Category)
	assert.Equal(t, []string{"Noodles"}, menu.Categories)
	require.NotNil(t, menu.Description)
	assert.Equal(t, "Thai kitchen.", *menu.Description)
}

func TestDecodeParsedMenu_Invalid(t *testing.T) {
	_, err := decodeParsedMenu("sorry, I cannot help with that")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode parsed menu")
}

func TestParseMenu_EmptyInput(t *testing.T) {
	ex := NewExtractor(&fakeStreamer{}, "test-model")
	_, err := ex.ParseMenu(context.Background(), "", "X")
	require.Error(t, err)
}
