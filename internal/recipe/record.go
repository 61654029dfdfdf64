package recipe

import "strings"

// PlaceholderTitle is used when no title source yields anything.
const PlaceholderTitle = "Rezept"

// Record is the canonical persisted recipe.
type Record struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	Image            *string  `json:"image"`
	Tags             []string `json:"tags"`
	TotalTimeMinutes *int     `json:"totalTimeMinutes,omitempty"`
	Calories         string   `json:"calories,omitempty"`
	Ingredients      []string `json:"ingredients"`
}

// IsErrorTitle matches the CDN error page ("Error: The request could not be
// satisfied"). Such records are never persisted.
func IsErrorTitle(title string) bool {
	lower := strings.ToLower(title)
	return strings.Contains(lower, "error") && strings.Contains(lower, "request could not be satisfied")
}

// Valid reports whether r may live in the persisted collection.
func (r Record) Valid() bool {
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.URL) == "" {
		return false
	}
	return !IsErrorTitle(r.Title)
}
