package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/baxromumarov/recipe-hunter/internal/urlutil"
)

// titleSuffixPattern strips the site name appended to document titles.
var titleSuffixPattern = regexp.MustCompile(`(?i)\s+\|\s*Marley Spoon.*$`)

// ImageCandidate holds the attributes of the first <img> on a page.
type ImageCandidate struct {
	Src     string
	DataSrc string
	SrcSet  string
}

// Page is everything the normalizer needs from one rendered recipe page.
type Page struct {
	Node          *Node
	DocTitle      string
	Heading       string
	OGImage       string
	Image         ImageCandidate
	DroppedBlocks int
}

// Analyze parses rendered HTML and collects the structured Recipe node plus
// the DOM values used when structured data is missing.
func Analyze(rawHTML string) (Page, error) {
	var page Page

	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return page, err
	}
	doc := goquery.NewDocumentFromNode(root)

	var raws []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raws = append(raws, ExtractText(s.Nodes[0]))
	})
	blocks, dropped := ParseBlocks(raws)
	page.DroppedBlocks = dropped

	if raw := FindRecipeNode(blocks); raw != nil {
		node, err := DecodeNode(raw)
		if err == nil {
			page.Node = node
		}
	}

	page.DocTitle = strings.TrimSpace(doc.Find("title").First().Text())
	page.Heading = strings.TrimSpace(doc.Find("h1").First().Text())
	if v, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		page.OGImage = strings.TrimSpace(v)
	}

	img := doc.Find("img").First()
	page.Image = ImageCandidate{
		Src:     strings.TrimSpace(img.AttrOr("src", "")),
		DataSrc: strings.TrimSpace(img.AttrOr("data-src", "")),
		SrcSet:  strings.TrimSpace(img.AttrOr("srcset", "")),
	}

	return page, nil
}

// CleanTitle removes the site suffix from a document title.
func CleanTitle(title string) string {
	return strings.TrimSpace(titleSuffixPattern.ReplaceAllString(title, ""))
}

// FallbackTitle walks the DOM title sources in priority order.
func (p Page) FallbackTitle() string {
	return FirstOf(
		func() string { return CleanTitle(p.DocTitle) },
		func() string { return p.Heading },
	)
}

// FallbackImage walks the DOM image sources in priority order. Only absolute
// http(s) URLs are accepted.
func (p Page) FallbackImage() string {
	return FirstOf(
		func() string { return httpOnly(p.OGImage) },
		func() string { return httpOnly(p.Image.Src) },
		func() string { return httpOnly(p.Image.DataSrc) },
		func() string { return httpOnly(firstSrcSetURL(p.Image.SrcSet)) },
	)
}

// FirstOf runs attempts in order and returns the first non-empty result.
func FirstOf(attempts ...func() string) string {
	for _, attempt := range attempts {
		if v := strings.TrimSpace(attempt()); v != "" {
			return v
		}
	}
	return ""
}

// ExtractText concatenates all text beneath n.
func ExtractText(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(ExtractText(c))
	}
	return sb.String()
}

func firstSrcSetURL(srcset string) string {
	srcset = strings.TrimSpace(srcset)
	if srcset == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(srcset, ",")[0])
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func httpOnly(raw string) string {
	if !urlutil.IsAbsoluteHTTP(raw) {
		return ""
	}
	return strings.TrimSpace(raw)
}
