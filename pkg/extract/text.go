package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"medcrawl/pkg/utils"
)

// textOf returns the whitespace-collapsed text of a selection.
func textOf(s *goquery.Selection) string {
	return utils.CollapseWhitespace(s.Text())
}

// findText returns the collapsed text of the first match of selector, or ""
// when the selector is empty or matches nothing. Absence is normal here.
func findText(root *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return textOf(root.Find(selector).First())
}

// ownText returns the collapsed text of a node excluding any nested list
// content, which section walking harvests separately into items.
func ownText(s *goquery.Selection) string {
	clone := s.Clone()
	clone.Find("ul, ol").Remove()
	return textOf(clone)
}

// imageSrc reads an image URL from src, falling back to common lazy-load
// attributes when src is absent or a placeholder.
func imageSrc(img *goquery.Selection) string {
	if img.Length() == 0 {
		return ""
	}
	src, _ := img.Attr("src")
	src = strings.TrimSpace(src)
	if src != "" && !strings.HasPrefix(src, "data:") {
		return src
	}
	for _, attr := range []string{"data-src", "data-lazy-src", "data-original"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// isHeadingNode reports whether a node acts as a group heading inside a
// long-form section: a bold inline or an actual heading element.
func isHeadingNode(s *goquery.Selection) bool {
	return s.Is("b, strong, h1, h2, h3, h4, h5, h6")
}

// isListNode reports whether a node is an ordered or unordered list.
func isListNode(s *goquery.Selection) bool {
	return s.Is("ul, ol")
}
