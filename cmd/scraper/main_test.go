package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/recipe-hunter/internal/store"
)

const recipeHTML = `<html><head><title>Pasta | Marley Spoon</title>
<script type="application/ld+json">{"@type":"Recipe","name":"Pasta","recipeIngredient":["200 g Pasta"],"totalTime":"PT20M"}</script>
</head><body></body></html>`

func staticEnv(t *testing.T, baseURL, dir string) string {
	t.Helper()
	dbPath := filepath.Join(dir, "mirror.db")
	t.Setenv("BASE_URL", baseURL)
	t.Setenv("FETCHER", "static")
	t.Setenv("RATE_PER_SECOND", "100")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", dbPath)
	t.Setenv("LOG_LEVEL", "error")
	return dbPath
}

func TestRunWritesFileAndMirror(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/menu":
			fmt.Fprint(w, `<a href="/menu/a">A</a><a href="/menu/">Menu</a>`)
		case "/menu/a":
			fmt.Fprint(w, recipeHTML)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	dbPath := staticEnv(t, srv.URL, dir)
	out := filepath.Join(dir, "recipes.json")

	require.Equal(t, 0, run([]string{"-out", out}))
	require.Len(t, store.NewFileStore(out).Load(), 1)

	mirror, err := store.NewMirror("sqlite", dbPath)
	require.NoError(t, err)
	defer mirror.Close()
	rows, err := mirror.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Pasta", rows[0].Title)
}

func TestRunFailedListingExitsNonZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dbPath := staticEnv(t, srv.URL, dir)
	out := filepath.Join(dir, "recipes.json")

	assert.Equal(t, 1, run([]string{"-out", out}))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))

	// the mirror was released on the failure path and can be reopened and migrated
	mirror, err := store.NewMirror("sqlite", dbPath)
	require.NoError(t, err)
	defer mirror.Close()
	require.NoError(t, mirror.RunMigrations(context.Background()))
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-no-such-flag"}))
}
