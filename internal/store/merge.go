package store

import "github.com/baxromumarov/recipe-hunter/internal/recipe"

// Purge drops records that must not survive a run: error-page titles and
// entries missing a title or url.
func Purge(records []recipe.Record) []recipe.Record {
	out := make([]recipe.Record, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// KnownIDs indexes ids of a collection.
func KnownIDs(records []recipe.Record) map[string]struct{} {
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID != "" {
			ids[r.ID] = struct{}{}
		}
	}
	return ids
}

// Merge appends scraped to the purged existing collection and keeps the first
// record per url. http and https variants of one page share an id, so ids are
// checked as well.
func Merge(existing, scraped []recipe.Record) []recipe.Record {
	combined := make([]recipe.Record, 0, len(existing)+len(scraped))
	combined = append(combined, Purge(existing)...)
	combined = append(combined, Purge(scraped)...)

	seenURL := make(map[string]struct{}, len(combined))
	seenID := make(map[string]struct{}, len(combined))
	out := make([]recipe.Record, 0, len(combined))
	for _, r := range combined {
		if _, ok := seenURL[r.URL]; ok {
			continue
		}
		if _, ok := seenID[r.ID]; ok && r.ID != "" {
			continue
		}
		seenURL[r.URL] = struct{}{}
		if r.ID != "" {
			seenID[r.ID] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
