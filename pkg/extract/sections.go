package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"medcrawl/pkg/models"
)

// ParseSectionGroups converts a free-form annotated section container (mixed
// text, lists, headings) into ordered title/information/items groups.
//
// The walk maintains three accumulators over the container's direct children
// in document order: the current group title (most recent bold/heading
// inline), collected prose fragments, and collected list items. A heading
// flushes the previous group and starts a new one; a list contributes its
// item texts; anything else contributes its direct text (nested lists are
// harvested into items, not prose). A non-empty container that produces no
// groups yields one untitled group carrying the full text, so unstructured
// prose is never dropped.
func ParseSectionGroups(container *goquery.Selection) []models.SectionGroup {
	if container == nil || container.Length() == 0 {
		return nil
	}

	var groups []models.SectionGroup
	var title *string
	var prose []string
	var items []string

	flush := func() {
		info := strings.TrimSpace(strings.Join(prose, " "))
		if title != nil || info != "" || len(items) > 0 {
			groups = append(groups, models.SectionGroup{
				Title:       title,
				Information: models.StrPtr(info),
				Items:       items,
			})
		}
		title = nil
		prose = nil
		items = nil
	}

	container.Contents().Each(func(i int, node *goquery.Selection) {
		switch {
		case isHeadingNode(node):
			flush()
			title = models.StrPtr(textOf(node))
		case isListNode(node):
			node.ChildrenFiltered("li").Each(func(j int, li *goquery.Selection) {
				if text := textOf(li); text != "" {
					items = append(items, text)
				}
			})
		default:
			// Text node or other element: direct text becomes prose, any
			// nested lists become items.
			if goquery.NodeName(node) == "#text" {
				if text := textOf(node); text != "" {
					prose = append(prose, text)
				}
				return
			}
			if text := ownText(node); text != "" {
				prose = append(prose, text)
			}
			node.Find("ul li, ol li").Each(func(j int, li *goquery.Selection) {
				if text := textOf(li); text != "" {
					items = append(items, text)
				}
			})
		}
	})
	flush()

	// Fallback: markup that fits none of the patterns still yields its text
	if len(groups) == 0 {
		if text := textOf(container); text != "" {
			groups = append(groups, models.SectionGroup{Information: models.StrPtr(text), Items: []string{}})
		}
	}

	for i := range groups {
		if groups[i].Items == nil {
			groups[i].Items = []string{}
		}
	}
	return groups
}

// AnswerLines extracts a question's answer as an ordered sequence of text
// fragments using the same walk as ParseSectionGroups, because answers mix
// sentences with bullet lists. Falls back to one single-string sequence when
// the walk yields nothing but the container has text.
func AnswerLines(container *goquery.Selection) []string {
	if container == nil || container.Length() == 0 {
		return []string{}
	}

	var lines []string
	for _, group := range ParseSectionGroups(container) {
		if group.Title != nil {
			lines = append(lines, *group.Title)
		}
		if group.Information != nil {
			lines = append(lines, *group.Information)
		}
		lines = append(lines, group.Items...)
	}

	if len(lines) == 0 {
		if text := textOf(container); text != "" {
			lines = []string{text}
		}
	}
	if lines == nil {
		lines = []string{}
	}
	return lines
}
