package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"medcrawl/pkg/models"
)

// ParseDosageGroups converts a dosage section container into ordered
// DosageGroup values. The walk mirrors ParseSectionGroups with one extra
// rule: a list whose items lead with their own bold inline node encodes
// per-medication-type sub-blocks, so each such list item becomes its own
// group (bold text = medication type, remaining text = information, nested
// sub-list items = instructions). A list without bold-led items is a plain
// instruction list feeding the current group. The two authoring patterns
// share the same tag vocabulary and are distinguishable only by inspecting
// each list item's first child.
func ParseDosageGroups(container *goquery.Selection) []models.DosageGroup {
	if container == nil || container.Length() == 0 {
		return nil
	}

	var groups []models.DosageGroup
	var medType *string
	var prose []string
	var instructions []string

	flush := func() {
		info := strings.TrimSpace(strings.Join(prose, " "))
		if medType != nil || info != "" || len(instructions) > 0 {
			groups = append(groups, models.DosageGroup{
				MedicationType: medType,
				Information:    models.StrPtr(info),
				Instructions:   instructions,
			})
		}
		medType = nil
		prose = nil
		instructions = nil
	}

	container.Contents().Each(func(i int, node *goquery.Selection) {
		switch {
		case isHeadingNode(node):
			flush()
			medType = models.StrPtr(textOf(node))
		case isListNode(node):
			if listHasBoldLedItems(node) {
				// Per-medication-type list: the accumulated group ends here
				// and each list item stands alone.
				flush()
				node.ChildrenFiltered("li").Each(func(j int, li *goquery.Selection) {
					groups = append(groups, dosageGroupFromListItem(li))
				})
			} else {
				node.ChildrenFiltered("li").Each(func(j int, li *goquery.Selection) {
					if text := textOf(li); text != "" {
						instructions = append(instructions, text)
					}
				})
			}
		default:
			if goquery.NodeName(node) == "#text" {
				if text := textOf(node); text != "" {
					prose = append(prose, text)
				}
				return
			}
			if text := ownText(node); text != "" {
				prose = append(prose, text)
			}
		}
	})
	flush()

	if len(groups) == 0 {
		if text := textOf(container); text != "" {
			groups = append(groups, models.DosageGroup{Information: models.StrPtr(text), Instructions: []string{}})
		}
	}

	for i := range groups {
		if groups[i].Instructions == nil {
			groups[i].Instructions = []string{}
		}
	}
	return groups
}

// listHasBoldLedItems reports whether any direct list item leads with a bold
// inline node. One bold-led item is enough to treat the whole list as
// per-medication-type; items without a leading bold inside such a list
// become untyped standalone groups.
func listHasBoldLedItems(list *goquery.Selection) bool {
	found := false
	list.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
		if leadingBold(li) != nil {
			found = true
		}
	})
	return found
}

// leadingBold returns the list item's leading bold inline node, or nil if the
// first meaningful child is anything else.
func leadingBold(li *goquery.Selection) *goquery.Selection {
	for node := li.Nodes[0].FirstChild; node != nil; node = node.NextSibling {
		switch node.Type {
		case html.TextNode:
			if strings.TrimSpace(node.Data) != "" {
				return nil // Leading prose: not a bold-led item
			}
		case html.ElementNode:
			if node.Data == "b" || node.Data == "strong" {
				return li.FindNodes(node)
			}
			return nil
		}
	}
	return nil
}

// dosageGroupFromListItem builds one DosageGroup from a bold-led (or plain)
// list item inside a per-medication-type list.
func dosageGroupFromListItem(li *goquery.Selection) models.DosageGroup {
	bold := leadingBold(li)
	if bold == nil {
		// Untyped item: full text is the sole instruction
		group := models.DosageGroup{Instructions: []string{}}
		if text := textOf(li); text != "" {
			group.Instructions = append(group.Instructions, text)
		}
		return group
	}

	medType := models.StrPtr(textOf(bold))

	// Information is the item's remaining text after removing the bold node
	// and any nested sub-lists.
	clone := li.Clone()
	clone.Find("b, strong").First().Remove()
	clone.Find("ul, ol").Remove()
	info := models.StrPtr(strings.TrimLeft(textOf(clone), ":- "))

	instructions := []string{}
	li.Find("ul li, ol li").Each(func(i int, sub *goquery.Selection) {
		if text := textOf(sub); text != "" {
			instructions = append(instructions, text)
		}
	})

	return models.DosageGroup{MedicationType: medType, Information: info, Instructions: instructions}
}
