package discovery

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/baxromumarov/recipe-hunter/internal/urlutil"
)

// RecipeLinks returns the absolute recipe detail URLs linked from a listing
// page, in document order without duplicates.
func RecipeLinks(listingHTML string, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listingHTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	seen := make(map[string]struct{})
	out := []string{}

	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !urlutil.IsRecipePath(href) {
			return
		}
		add(urlutil.Resolve(base, href))
	})

	return out, nil
}
