package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/recipe-hunter/internal/recipe"
)

func sampleRecords() []recipe.Record {
	image := "https://cdn.example/a.jpg"
	minutes := 30
	return []recipe.Record{
		{
			ID:               "marleyspoon.de/menu/a",
			Title:            "Alpha",
			URL:              "https://marleyspoon.de/menu/a",
			Image:            &image,
			Tags:             []string{"vegan", "quick"},
			TotalTimeMinutes: &minutes,
			Calories:         "450 kcal",
			Ingredients:      []string{"1 Zwiebel", "200 g Reis"},
		},
		{
			ID:          "marleyspoon.de/menu/b",
			Title:       "Beta",
			URL:         "https://marleyspoon.de/menu/b",
			Tags:        []string{},
			Ingredients: []string{},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "recipes.json")
	fs := NewFileStore(path)

	want := sampleRecords()
	require.NoError(t, fs.Save(want))

	got := fs.Load()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	raw, err := fs.Raw()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  {\n    \"id\": \"marleyspoon.de/menu/a\"")
	assert.Contains(t, string(raw), `"image": null`)
}

func TestFileStoreLoadFailsOpen(t *testing.T) {
	dir := t.TempDir()

	missing := NewFileStore(filepath.Join(dir, "missing.json"))
	assert.Empty(t, missing.Load())

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0o644))
	assert.Empty(t, NewFileStore(broken).Load())

	object := filepath.Join(dir, "object.json")
	require.NoError(t, os.WriteFile(object, []byte(`{"id":"x"}`), 0o644))
	assert.Empty(t, NewFileStore(object).Load())
}

func TestFileStoreLoadSkipsBadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.json")
	content := `[
  {"id": "marleyspoon.de/menu/a", "title": "Alpha", "url": "https://marleyspoon.de/menu/a", "image": null, "tags": [], "ingredients": []},
  {"id": "marleyspoon.de/menu/b", "title": "Beta", "url": "https://marleyspoon.de/menu/b", "calories": 520},
  {"id": "marleyspoon.de/menu/c", "title": "Gamma", "url": "https://marleyspoon.de/menu/c", "tags": "vegan"}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got := NewFileStore(path).Load()
	require.Len(t, got, 1)
	assert.Equal(t, "Alpha", got[0].Title)

	merged := Merge(got, nil)
	assert.Len(t, merged, 1)
}

func TestFileStoreSaveReplacesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.json")
	fs := NewFileStore(path)

	require.NoError(t, fs.Save(sampleRecords()))
	require.NoError(t, fs.Save(sampleRecords()[:1]))
	assert.Len(t, fs.Load(), 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestMergeKeepsFirstByURL(t *testing.T) {
	existing := []recipe.Record{{ID: "marleyspoon.de/menu/a", Title: "Old", URL: "https://marleyspoon.de/menu/a"}}
	scraped := []recipe.Record{
		{ID: "marleyspoon.de/menu/a", Title: "New", URL: "https://marleyspoon.de/menu/a"},
		{ID: "marleyspoon.de/menu/c", Title: "C", URL: "https://marleyspoon.de/menu/c"},
	}

	merged := Merge(existing, scraped)
	require.Len(t, merged, 2)
	assert.Equal(t, "Old", merged[0].Title)
	assert.Equal(t, "C", merged[1].Title)
}

func TestMergeDedupesSchemeVariantsByID(t *testing.T) {
	merged := Merge(nil, []recipe.Record{
		{ID: "marleyspoon.de/menu/a", Title: "A", URL: "https://marleyspoon.de/menu/a"},
		{ID: "marleyspoon.de/menu/a", Title: "A2", URL: "http://marleyspoon.de/menu/a"},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, "A", merged[0].Title)
}

func TestMergePurgesErrorPages(t *testing.T) {
	bad := recipe.Record{ID: "marleyspoon.de/menu/e", Title: "Error: The request could not be satisfied", URL: "https://marleyspoon.de/menu/e"}
	noTitle := recipe.Record{ID: "marleyspoon.de/menu/n", URL: "https://marleyspoon.de/menu/n"}
	good := recipe.Record{ID: "marleyspoon.de/menu/g", Title: "Good", URL: "https://marleyspoon.de/menu/g"}

	merged := Merge([]recipe.Record{bad, noTitle, good}, []recipe.Record{bad})
	require.Len(t, merged, 1)
	assert.Equal(t, "Good", merged[0].Title)
}

func TestKnownIDs(t *testing.T) {
	ids := KnownIDs(sampleRecords())
	assert.Contains(t, ids, "marleyspoon.de/menu/a")
	assert.Contains(t, ids, "marleyspoon.de/menu/b")
	assert.Len(t, ids, 2)
}

func TestMirrorReplaceAllSQLite(t *testing.T) {
	ctx := context.Background()
	m, err := NewMirror("sqlite", filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.RunMigrations(ctx))
	require.NoError(t, m.RunMigrations(ctx), "migrations must be idempotent")

	require.NoError(t, m.ReplaceAll(ctx, sampleRecords()))
	got, err := m.List(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleRecords(), got); diff != "" {
		t.Fatalf("mirror mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, m.ReplaceAll(ctx, sampleRecords()[1:]))
	got, err = m.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Beta", got[0].Title)
}
