package recipe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/recipe-hunter/internal/content"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"PT1H15M", 75, true},
		{"PT45M", 45, true},
		{"PT2H", 120, true},
		{"pt1h5m", 65, true},
		{"PT", 0, true},
		{"bogus", 0, false},
		{"", 0, false},
		{"PT99999999999999999999H30M", 0, false},
		{"PT999999999999999999H", 0, false},
		{"PT5H99999999999999999999M", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDuration(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectTags(t *testing.T) {
	got := CollectTags([]any{"Vegan, Quick", []any{"Spicy"}})
	assert.ElementsMatch(t, []string{"vegan", "quick", "spicy"}, got)

	// idempotent on its own output
	assert.ElementsMatch(t, got, CollectTags(toAny(got)))
}

func TestCollectTagsDedupesCaseInsensitively(t *testing.T) {
	got := CollectTags("Vegan", "VEGAN, ,vegan", nil, 42, []any{"Österreichisch", "österreichisch"})
	assert.Equal(t, []string{"vegan", "österreichisch"}, got)
}

func TestIngredients(t *testing.T) {
	assert.Equal(t, []string{"200 g Lachs", "1 Zitrone"}, Ingredients([]any{" 200 g Lachs ", "", "  ", 7, "1 Zitrone"}))
	assert.Equal(t, []string{}, Ingredients("200 g Lachs"))
	assert.Equal(t, []string{}, Ingredients(nil))
}

func TestCalories(t *testing.T) {
	assert.Equal(t, "520 kcal", Calories(map[string]any{"calories": "520 kcal"}))
	assert.Equal(t, "610", Calories(map[string]any{"calories": float64(610)}))
	assert.Equal(t, "610.5", Calories(map[string]any{"calories": 610.5}))
	assert.Empty(t, Calories(map[string]any{"calories": float64(0)}))
	assert.Empty(t, Calories(map[string]any{"fat": "3 g"}))
	assert.Empty(t, Calories(nil))
}

func TestID(t *testing.T) {
	assert.Equal(t, "marleyspoon.de/menu/abc-123", ID("https://marleyspoon.de/menu/abc-123"))
}

func TestIsErrorTitle(t *testing.T) {
	assert.True(t, IsErrorTitle("Error: The request could not be satisfied"))
	assert.True(t, IsErrorTitle("ERROR - request could not be satisfied."))
	assert.False(t, IsErrorTitle("Error-free Pasta"))
	assert.False(t, IsErrorTitle("Lachs"))
}

func TestNormalizeStructured(t *testing.T) {
	page := content.Page{
		Node: &content.Node{
			Name:             "Lachs mit Dill",
			Image:            []any{"https://cdn.example/a.jpg", "https://cdn.example/b.jpg"},
			RecipeIngredient: []any{" 200 g Lachs", "Dill "},
			TotalTime:        "",
			CookTime:         "PT25M",
			PrepTime:         "PT10M",
			Nutrition:        map[string]any{"calories": "520 kcal"},
			RecipeCategory:   "Hauptgericht",
			Keywords:         "Fisch, Schnell",
			RecipeCuisine:    []any{"Deutsch"},
			SuitableForDiet:  "https://schema.org/LowLactoseDiet",
		},
		DocTitle: "Ignored | Marley Spoon",
	}

	rec, err := Normalize("https://marleyspoon.de/menu/lachs", page)
	require.NoError(t, err)

	image := "https://cdn.example/a.jpg"
	minutes := 25
	want := Record{
		ID:               "marleyspoon.de/menu/lachs",
		Title:            "Lachs mit Dill",
		URL:              "https://marleyspoon.de/menu/lachs",
		Image:            &image,
		Tags:             []string{"hauptgericht", "fisch", "schnell", "deutsch", "https://schema.org/lowlactosediet"},
		TotalTimeMinutes: &minutes,
		Calories:         "520 kcal",
		Ingredients:      []string{"200 g Lachs", "Dill"},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		page      content.Page
		wantTitle string
		wantImage string
	}{
		{
			name:      "document title",
			page:      content.Page{DocTitle: "Curry | Marley Spoon Deutschland", Heading: "Curry H1"},
			wantTitle: "Curry",
		},
		{
			name:      "heading",
			page:      content.Page{DocTitle: " | Marley Spoon", Heading: "Curry H1"},
			wantTitle: "Curry H1",
		},
		{
			name:      "placeholder",
			page:      content.Page{},
			wantTitle: PlaceholderTitle,
		},
		{
			name:      "og image",
			page:      content.Page{Node: &content.Node{Name: "N"}, OGImage: "https://cdn.example/og.jpg"},
			wantTitle: "N",
			wantImage: "https://cdn.example/og.jpg",
		},
		{
			name:      "image object",
			page:      content.Page{Node: &content.Node{Name: "N", Image: map[string]any{"url": "https://cdn.example/obj.jpg"}}},
			wantTitle: "N",
			wantImage: "https://cdn.example/obj.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Normalize("https://marleyspoon.de/menu/x", tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, rec.Title)
			if tt.wantImage == "" {
				assert.Nil(t, rec.Image)
			} else {
				require.NotNil(t, rec.Image)
				assert.Equal(t, tt.wantImage, *rec.Image)
			}
			assert.NotNil(t, rec.Tags)
			assert.NotNil(t, rec.Ingredients)
			assert.Nil(t, rec.TotalTimeMinutes)
		})
	}
}

func TestNormalizeErrorPage(t *testing.T) {
	page := content.Page{DocTitle: "ERROR: The request could not be satisfied"}
	_, err := Normalize("https://marleyspoon.de/menu/x", page)
	assert.ErrorIs(t, err, ErrErrorPage)
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
