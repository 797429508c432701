package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"medcrawl/pkg/config"
	"medcrawl/pkg/models"
	"medcrawl/pkg/parse"
)

var molecularFormulaPattern = regexp.MustCompile(`(?i)molecular\s+formula\s*:?\s*([A-Za-z0-9().\x{2080}-\x{2089}]+)`)

// DetailExtractor maps one brand detail page's parse tree to a DetailRecord.
// Every selector lookup is treated as possibly absent; absence degrades to
// null or an empty sequence, never to an aborted extraction.
type DetailExtractor struct {
	site config.SiteConfig
	log  *logrus.Logger
}

// NewDetailExtractor creates a DetailExtractor for one site
func NewDetailExtractor(site config.SiteConfig, log *logrus.Logger) *DetailExtractor {
	return &DetailExtractor{site: site, log: log}
}

// Extract builds the full structured profile for one brand page. seed is the
// listing entry that spawned this fetch, attached for traceability; it may be
// nil when the page was reached some other way.
func (e *DetailExtractor) Extract(doc *goquery.Document, pageURL string, seed *models.SummaryRecord) models.DetailRecord {
	rules := e.site.Detail

	sourceURL := pageURL
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	} else {
		sourceURL = parse.NormalizeURL(base)
	}

	record := models.DetailRecord{
		SourceURL:         sourceURL,
		FetchedAt:         time.Now().UTC(),
		OriginalRecordRef: seed,
	}

	record.Name, record.DosageForm = e.extractHeading(doc, rules)
	record.Generic = models.StrPtr(findText(doc.Selection, rules.GenericSelector))
	record.Strength = models.StrPtr(findText(doc.Selection, rules.StrengthSelector))
	record.Company = e.extractCompany(doc, rules)
	record.PackImage = e.absoluteImage(doc.Find(rules.PackImageSelector).First(), base)

	record.Pricing = e.extractPricing(doc, rules)
	record.Flags = e.extractFlags(doc, rules)
	record.AlsoAvailable = e.extractAlsoAvailable(doc, rules, base)
	record.AlternateBrandsURL = e.extractAlternateBrandsURL(doc, rules, base)
	record.TherapeuticClass = models.StrPtr(findText(doc.Selection, rules.TherapeuticClassSelector))

	record.Sections = e.extractSections(doc, rules)
	record.Dosage = ParseDosageGroups(doc.Find(rules.DosageSelector).First())
	record.CommonQuestions = e.extractFAQs(doc, rules)
	record.Compound = e.extractCompound(doc, rules, base)

	record.NormalizeShapes()
	record.RecordID = models.DeriveRecordID(record.SourceURL, &record)

	e.log.WithFields(logrus.Fields{
		"url":       pageURL,
		"record_id": record.RecordID,
		"sections":  len(record.Sections),
	}).Debug("Extracted detail record")
	return record
}

// extractHeading reads name and dosage form from the page heading. The source
// nests the dosage-form subtitle inside the name heading with no separator, so
// the bare name is recovered by subtracting the subtitle text from the
// heading's full text.
func (e *DetailExtractor) extractHeading(doc *goquery.Document, rules config.DetailRules) (*string, *string) {
	heading := doc.Find(rules.NameSelector).First()
	if heading.Length() == 0 {
		return nil, nil
	}
	full := textOf(heading)

	var dosageForm string
	if rules.DosageFormSelector != "" {
		dosageForm = textOf(heading.Find(rules.DosageFormSelector).First())
		if dosageForm == "" {
			dosageForm = findText(doc.Selection, rules.DosageFormSelector)
		}
	}

	name := full
	if dosageForm != "" {
		name = strings.TrimSpace(strings.Replace(full, dosageForm, "", 1))
	}
	return models.StrPtr(name), models.StrPtr(dosageForm)
}

// extractCompany resolves the manufacturer through an anchor-first hierarchy:
// the anchor's text when the company node links out, otherwise the node's own
// text with any nested anchors already accounted for.
func (e *DetailExtractor) extractCompany(doc *goquery.Document, rules config.DetailRules) *string {
	if rules.CompanySelector == "" {
		return nil
	}
	node := doc.Find(rules.CompanySelector).First()
	if node.Length() == 0 {
		return nil
	}
	if anchor := node.Find("a").First(); anchor.Length() > 0 {
		if text := textOf(anchor); text != "" {
			return models.StrPtr(text)
		}
	}
	return models.StrPtr(textOf(node))
}

// extractPricing scans the repeating package containers, reading sibling
// label/value pairs positionally and descending one level into wrapped
// sub-containers. Entries are deduplicated by exact (label, price) text in
// first-seen order before the named prices are resolved.
func (e *DetailExtractor) extractPricing(doc *goquery.Document, rules config.DetailRules) models.PricingInfo {
	pricing := models.PricingInfo{Packages: []models.PackageEntry{}}
	if rules.PricingPackageSelector == "" {
		return pricing
	}

	var entries []models.PackageEntry
	doc.Find(rules.PricingPackageSelector).Each(func(i int, container *goquery.Selection) {
		entries = append(entries, packageEntriesFrom(container)...)
	})

	seen := make(map[string]bool)
	for _, entry := range entries {
		key := derefOr(entry.Label, "") + "\x00" + derefOr(entry.Price, "")
		if seen[key] {
			continue
		}
		seen[key] = true
		pricing.Packages = append(pricing.Packages, entry)
	}

	for _, entry := range pricing.Packages {
		label := strings.ToLower(derefOr(entry.Label, ""))
		switch {
		case strings.Contains(label, "unit price"):
			if pricing.UnitPrice == nil {
				pricing.UnitPrice = entry.Price
			}
		case strings.Contains(label, "strip price"):
			if pricing.StripPrice == nil {
				pricing.StripPrice = entry.Price
			}
		}
		if pricing.PackSizeInfo == nil && entry.PackSizeInfo != nil {
			pricing.PackSizeInfo = entry.PackSizeInfo
		}
	}

	// Never fully null when at least one package entry was found
	if pricing.UnitPrice == nil && pricing.StripPrice == nil && len(pricing.Packages) > 0 {
		first := pricing.Packages[0]
		pricing.UnitPrice = first.Price
		if pricing.PackSizeInfo == nil {
			pricing.PackSizeInfo = first.PackSizeInfo
		}
	}
	return pricing
}

// packageEntriesFrom reads (label, price, packSizeInfo) triples from one
// package container. Children that are themselves label/value wrappers yield
// one entry each; a container without wrapper children is read directly as
// one positional sibling pair. Reading both would turn each wrapper's full
// text into a bogus concatenated entry, so the direct read only applies when
// no wrapper was found.
func packageEntriesFrom(container *goquery.Selection) []models.PackageEntry {
	var entries []models.PackageEntry
	container.Children().Each(func(i int, child *goquery.Selection) {
		if entry, ok := entryFromSiblings(child); ok {
			entries = append(entries, entry)
		}
	})
	if len(entries) == 0 {
		if entry, ok := entryFromSiblings(container); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// entryFromSiblings reads one triple from a node whose direct children are
// label, value, and optionally pack size, in document order.
func entryFromSiblings(node *goquery.Selection) (models.PackageEntry, bool) {
	children := node.Children()
	if children.Length() < 2 {
		return models.PackageEntry{}, false
	}
	label := textOf(children.Eq(0))
	price := textOf(children.Eq(1))
	if label == "" && price == "" {
		return models.PackageEntry{}, false
	}
	entry := models.PackageEntry{
		Label: models.StrPtr(label),
		Price: models.StrPtr(price),
	}
	if children.Length() > 2 {
		entry.PackSizeInfo = models.StrPtr(textOf(children.Eq(2)))
	}
	return entry, true
}

// extractFlags reads labeled notices (e.g. a discontinued banner). The label
// is the node's bold inline when present, with remaining text as the note;
// otherwise the full text is the label.
func (e *DetailExtractor) extractFlags(doc *goquery.Document, rules config.DetailRules) []models.BrandFlag {
	flags := []models.BrandFlag{}
	if rules.FlagSelector == "" {
		return flags
	}
	doc.Find(rules.FlagSelector).Each(func(i int, node *goquery.Selection) {
		bold := node.Find("b, strong").First()
		if bold.Length() > 0 {
			label := textOf(bold)
			clone := node.Clone()
			clone.Find("b, strong").First().Remove()
			note := strings.TrimLeft(textOf(clone), ":- ")
			if label != "" {
				flags = append(flags, models.BrandFlag{Label: label, Note: models.StrPtr(note)})
				return
			}
		}
		if text := textOf(node); text != "" {
			flags = append(flags, models.BrandFlag{Label: text})
		}
	})
	return flags
}

func (e *DetailExtractor) extractAlsoAvailable(doc *goquery.Document, rules config.DetailRules, base *url.URL) []models.RelatedLink {
	links := []models.RelatedLink{}
	if rules.AlsoAvailableSelector == "" {
		return links
	}
	doc.Find(rules.AlsoAvailableSelector).Each(func(i int, node *goquery.Selection) {
		anchor := node
		if !node.Is("a") {
			anchor = node.Find("a").First()
		}
		href, _ := anchor.Attr("href")
		abs := parse.ResolveAbsolute(base, href)
		text := textOf(node)
		if abs == "" || text == "" {
			return
		}
		links = append(links, models.RelatedLink{Text: text, Href: abs})
	})
	return links
}

func (e *DetailExtractor) extractAlternateBrandsURL(doc *goquery.Document, rules config.DetailRules, base *url.URL) *string {
	if rules.AlternateBrandsSelector == "" {
		return nil
	}
	node := doc.Find(rules.AlternateBrandsSelector).First()
	anchor := node
	if node.Length() > 0 && !node.Is("a") {
		anchor = node.Find("a").First()
	}
	href, _ := anchor.Attr("href")
	return models.StrPtr(parse.ResolveAbsolute(base, href))
}

// extractSections runs the section parser over every configured long-form
// section. Only keys whose container yields at least one group are emitted.
func (e *DetailExtractor) extractSections(doc *goquery.Document, rules config.DetailRules) map[string][]models.SectionGroup {
	sections := make(map[string][]models.SectionGroup)
	for key, selector := range rules.Sections {
		if selector == "" {
			continue
		}
		groups := ParseSectionGroups(doc.Find(selector).First())
		if len(groups) > 0 {
			sections[key] = groups
		}
	}
	return sections
}

// extractFAQs reads question/answer pairs. Answers keep their fragment
// structure via AnswerLines; a pair with neither question nor answer text is
// dropped.
func (e *DetailExtractor) extractFAQs(doc *goquery.Document, rules config.DetailRules) []models.QAEntry {
	faqs := []models.QAEntry{}
	if rules.FAQItemSelector == "" {
		return faqs
	}
	doc.Find(rules.FAQItemSelector).Each(func(i int, item *goquery.Selection) {
		question := models.StrPtr(findText(item, rules.FAQQuestionSelector))

		answerNode := item
		if rules.FAQAnswerSelector != "" {
			answerNode = item.Find(rules.FAQAnswerSelector).First()
		}
		lines := AnswerLines(answerNode)

		if question == nil && len(lines) == 0 {
			return
		}
		faqs = append(faqs, models.QAEntry{Question: question, AnswerLines: lines})
	})
	return faqs
}

// extractCompound scans the compound table's rows for the molecular formula
// and structure image, falling back to a regex over the section's full text
// and the section's first image when no table row matches.
func (e *DetailExtractor) extractCompound(doc *goquery.Document, rules config.DetailRules, base *url.URL) models.CompoundSummary {
	var compound models.CompoundSummary
	if rules.CompoundSectionSelector == "" {
		return compound
	}
	section := doc.Find(rules.CompoundSectionSelector).First()
	if section.Length() == 0 {
		return compound
	}

	section.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Children()
		if cells.Length() == 0 {
			return
		}
		key := strings.ToLower(textOf(cells.Eq(0)))
		switch {
		case strings.Contains(key, "molecular formula"):
			if compound.MolecularFormula == nil && cells.Length() > 1 {
				compound.MolecularFormula = models.StrPtr(textOf(cells.Eq(1)))
			}
		case strings.Contains(key, "structure"):
			if compound.ChemicalStructureImageURL == nil {
				compound.ChemicalStructureImageURL = e.absoluteImage(row.Find("img").First(), base)
			}
		}
	})

	if compound.MolecularFormula == nil {
		if match := molecularFormulaPattern.FindStringSubmatch(textOf(section)); match != nil {
			compound.MolecularFormula = models.StrPtr(match[1])
		}
	}
	if compound.ChemicalStructureImageURL == nil {
		compound.ChemicalStructureImageURL = e.absoluteImage(section.Find("img").First(), base)
	}
	return compound
}

// absoluteImage resolves an image node's URL against the page URL.
func (e *DetailExtractor) absoluteImage(img *goquery.Selection, base *url.URL) *string {
	src := imageSrc(img)
	if src == "" {
		return nil
	}
	return models.StrPtr(parse.ResolveAbsolute(base, src))
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
