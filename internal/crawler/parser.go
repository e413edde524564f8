package crawler

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageMeta is the descriptive metadata found in a page's head.
type pageMeta struct {
	Title       string
	Description string
	Language    string
}

// extractPageMeta reads title, description and language from common tags,
// falling back to JSON-LD structured data.
func extractPageMeta(sel *goquery.Selection) pageMeta {
	var meta pageMeta

	titleSelectors := []string{
		"title",
		"meta[property='og:title']",
		"h1",
	}
	for _, selector := range titleSelectors {
		if title := textOrContent(sel.Find(selector).First()); title != "" {
			meta.Title = title
			break
		}
	}

	descSelectors := []string{
		"meta[name='description']",
		"meta[property='og:description']",
		"[itemprop='description']",
	}
	for _, selector := range descSelectors {
		if desc := textOrContent(sel.Find(selector).First()); desc != "" {
			meta.Description = desc
			break
		}
	}

	if meta.Title == "" || meta.Description == "" {
		sel.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			var data map[string]interface{}
			if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
				return true
			}
			if meta.Title == "" {
				meta.Title = firstString(data, "headline", "name")
			}
			if meta.Description == "" {
				meta.Description = firstString(data, "description")
			}
			return meta.Title == "" || meta.Description == ""
		})
	}

	lang, _ := sel.Attr("lang")
	if lang == "" {
		lang, _ = sel.Find("html").Attr("lang")
	}
	meta.Language = strings.ToLower(strings.TrimSpace(lang))

	meta.Title = collapseSpace(meta.Title)
	meta.Description = collapseSpace(meta.Description)
	return meta
}

func textOrContent(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if goquery.NodeName(s) == "meta" {
		content, _ := s.Attr("content")
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(s.Text())
}

func firstString(data map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
