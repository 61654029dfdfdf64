package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baxromumarov/recipe-hunter/internal/observability"
	"github.com/baxromumarov/recipe-hunter/internal/recipe"
)

// handleListRecipes returns the persisted file as-is so the front-end sees
// exactly what the scraper wrote.
func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	raw, err := s.files.Raw()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			respondJSON(w, http.StatusOK, []recipe.Record{})
			return
		}
		slog.Error("read recipes failed", "path", s.files.Path(), "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to read recipes")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// handleGetRecipe looks a record up by id. Ids look like
// "marleyspoon.de/menu/12345-name", so the whole wildcard is the id.
func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(chi.URLParam(r, "*"), "/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Missing recipe id")
		return
	}
	for _, rec := range s.files.Load() {
		if rec.ID == id {
			respondJSON(w, http.StatusOK, rec)
			return
		}
	}
	respondError(w, http.StatusNotFound, "Recipe not found")
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, rec := range s.files.Load() {
		for _, tag := range rec.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	respondJSON(w, http.StatusOK, tags)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, observability.Snapshot())
}
