package recipe

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/baxromumarov/recipe-hunter/internal/content"
	"github.com/baxromumarov/recipe-hunter/internal/urlutil"
)

// ErrErrorPage marks a page whose resolved title is the site error page.
var ErrErrorPage = errors.New("site error page")

var durationPattern = regexp.MustCompile(`(?i)PT(?:(\d+)H)?(?:(\d+)M)?`)

// ParseDuration converts PT#H#M into minutes. ok is false when the input does
// not look like a duration at all.
func ParseDuration(d string) (minutes int, ok bool) {
	if d == "" {
		return 0, false
	}
	m := durationPattern.FindStringSubmatch(d)
	if m == nil {
		return 0, false
	}
	hours, err := strconv.Atoi(orZero(m[1]))
	if err != nil {
		return 0, false
	}
	mins, err := strconv.Atoi(orZero(m[2]))
	if err != nil {
		return 0, false
	}
	if hours > (math.MaxInt-mins)/60 {
		return 0, false
	}
	return hours*60 + mins, true
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// CollectTags flattens strings, comma-separated strings and nested lists into a
// lowercase, de-duplicated tag list in first-seen order.
func CollectTags(values ...any) []string {
	var raw []string
	var add func(v any)
	add = func(v any) {
		switch t := v.(type) {
		case nil:
		case string:
			for _, piece := range strings.Split(t, ",") {
				raw = append(raw, strings.TrimSpace(piece))
			}
		case []any:
			for _, item := range t {
				add(item)
			}
		case []string:
			for _, item := range t {
				add(item)
			}
		}
	}
	for _, v := range values {
		add(v)
	}

	lower := cases.Lower(language.Und)
	seen := make(map[string]struct{}, len(raw))
	tags := make([]string, 0, len(raw))
	for _, tag := range raw {
		if tag == "" {
			continue
		}
		tag = lower.String(tag)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// Ingredients trims each entry of a structured ingredient list and drops the
// empty ones. Anything other than a list yields an empty slice.
func Ingredients(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Calories returns the nutrition calorie value verbatim as text.
func Calories(nutrition map[string]any) string {
	if nutrition == nil {
		return ""
	}
	v, ok := nutrition["calories"]
	if !ok || !truthy(v) {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// ID derives the record id from its absolute URL.
func ID(rawURL string) string {
	return urlutil.StripScheme(rawURL)
}

// Normalize turns an analyzed page into a Record. It returns ErrErrorPage
// when the page is the site's error page.
func Normalize(pageURL string, page content.Page) (Record, error) {
	node := page.Node
	if node == nil {
		node = &content.Node{}
	}

	title := content.FirstOf(
		func() string { return stringValue(node.Name) },
		page.FallbackTitle,
		func() string { return PlaceholderTitle },
	)
	if IsErrorTitle(title) {
		return Record{}, ErrErrorPage
	}

	rec := Record{
		ID:          ID(pageURL),
		Title:       title,
		URL:         pageURL,
		Tags:        CollectTags(node.RecipeCategory, node.Keywords, node.RecipeCuisine, node.SuitableForDiet),
		Calories:    Calories(node.Nutrition),
		Ingredients: Ingredients(node.RecipeIngredient),
	}

	if image := content.FirstOf(
		func() string { return structuredImage(node.Image) },
		page.FallbackImage,
	); image != "" {
		rec.Image = &image
	}

	durationSource := content.FirstOf(
		func() string { return stringValue(node.TotalTime) },
		func() string { return stringValue(node.CookTime) },
		func() string { return stringValue(node.PrepTime) },
	)
	if minutes, ok := ParseDuration(durationSource); ok {
		rec.TotalTimeMinutes = &minutes
	}

	return rec, nil
}

func structuredImage(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) == 0 {
			return ""
		}
		return structuredImage(t[0])
	case map[string]any:
		return stringValue(t["url"])
	}
	return ""
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	case bool:
		return t
	}
	return true
}
