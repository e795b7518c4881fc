package chromedp_extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/quiz-runner-service/pkg/utils"
)

// pageDocument is the DOM-derived portion of an extracted page.
type pageDocument struct {
	visibleText     string
	codeBlocks      []string
	links           []string
	providedDataURL string
}

// linkSelectors pairs element selectors with the attribute carrying the URL.
var linkSelectors = []struct {
	selector string
	attr     string
}{
	{"a", "href"},
	{"img", "src"},
	{"audio", "src"},
	{"video", "src"},
	{"script", "src"},
	{"link", "href"},
}

// parsePageDocument parses rendered HTML into visible text, ordered code
// blocks, the de-duplicated set of absolute resource links, and the
// provided-data URL (first anchor href, resolved to absolute form).
// Relative URLs resolve against the page URL with its query string stripped.
func parsePageDocument(html, pageURL string) (*pageDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	stripped, err := utils.StripQuery(pageURL)
	if err != nil {
		stripped = pageURL
	}
	base, err := url.Parse(stripped)
	if err != nil {
		return nil, err
	}

	out := &pageDocument{}

	doc.Find("pre, code").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out.codeBlocks = append(out.codeBlocks, text)
		}
	})

	seen := make(map[string]struct{})
	for _, ls := range linkSelectors {
		doc.Find(ls.selector).Each(func(i int, s *goquery.Selection) {
			value, exists := s.Attr(ls.attr)
			if !exists || value == "" {
				return
			}
			absolute, err := utils.ToAbsoluteURL(base, value)
			if err != nil {
				return
			}
			if ls.selector == "a" && out.providedDataURL == "" {
				out.providedDataURL = absolute
			}
			if _, ok := seen[absolute]; ok {
				return
			}
			seen[absolute] = struct{}{}
			out.links = append(out.links, absolute)
		})
	}

	// Drop script and style payloads before reading the visible body text.
	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	out.visibleText = collapseWhitespace(doc.Find("body").Text())

	return out, nil
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
