package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"medcrawl/pkg/config"
	"medcrawl/pkg/models"
	"medcrawl/pkg/parse"
	"medcrawl/pkg/utils"
)

// Positional column roles recognized in SummaryRules.Columns.
const (
	ColStrength     = "strength"
	ColGeneric      = "generic"
	ColCompany      = "company"
	ColPrice        = "price"
	ColMedicineType = "medicine_type"
)

// SummaryExtractor maps one listing page's parse tree to zero or more
// SummaryRecords. Field identity is positional (rank within the entry) unless
// the rules carry semantic selectors; semantic wins, position is the fallback,
// and a field that resolves neither way stays null rather than guessing.
type SummaryExtractor struct {
	site           config.SiteConfig
	companyPattern *regexp.Regexp
	log            *logrus.Logger
}

// NewSummaryExtractor creates a SummaryExtractor for one site. The company
// suffix pattern is compiled once here; Validate has already rejected configs
// where it cannot compile.
func NewSummaryExtractor(site config.SiteConfig, log *logrus.Logger) (*SummaryExtractor, error) {
	var pattern *regexp.Regexp
	if site.CompanySuffixPattern != "" {
		var err error
		pattern, err = regexp.Compile(site.CompanySuffixPattern)
		if err != nil {
			return nil, utils.WrapErrorf(utils.ErrConfigValidation, "compiling company_suffix_pattern: %v", err)
		}
	}
	return &SummaryExtractor{site: site, companyPattern: pattern, log: log}, nil
}

// Extract returns the listing records found on one index page using the
// site's primary summary rules. Index sections can switch to the alternate
// layout mid-range, so a page the primary rules don't match at all is retried
// with the alternate rules before being treated as empty. Zero matches is not
// an error: an empty page (pagination overrun, transient gap) simply yields
// an empty slice.
func (e *SummaryExtractor) Extract(doc *goquery.Document, pageURL string, originPage int) []models.SummaryRecord {
	records := e.extract(doc, e.site.Summary, false, pageURL, originPage)
	if len(records) == 0 && e.site.SummaryAlternate != nil {
		return e.extract(doc, *e.site.SummaryAlternate, true, pageURL, originPage)
	}
	return records
}

// ExtractAlternate returns listing records using the alternate rules, which
// resolve company and generic by label-first disambiguation instead of pure
// position. Falls back to the primary rules when no alternate is configured.
func (e *SummaryExtractor) ExtractAlternate(doc *goquery.Document, pageURL string, originPage int) []models.SummaryRecord {
	if e.site.SummaryAlternate == nil {
		return e.Extract(doc, pageURL, originPage)
	}
	return e.extract(doc, *e.site.SummaryAlternate, true, pageURL, originPage)
}

func (e *SummaryExtractor) extract(doc *goquery.Document, rules config.SummaryRules, alternate bool, pageURL string, originPage int) []models.SummaryRecord {
	records := []models.SummaryRecord{}
	if rules.EntrySelector == "" {
		return records
	}

	pageLog := e.log.WithFields(logrus.Fields{"page_url": pageURL, "origin_page": originPage})

	base, err := url.Parse(pageURL)
	if err != nil {
		pageLog.Warnf("Unparseable page URL, skipping extraction: %v", err)
		return records
	}

	doc.Find(rules.EntrySelector).Each(func(i int, entry *goquery.Selection) {
		record, ok := e.extractEntry(entry, rules, alternate, base, originPage)
		if !ok {
			pageLog.WithField("entry_index", i).Debug("Discarded listing entry (no resolvable link or name)")
			return
		}
		records = append(records, record)
	})

	pageLog.WithField("record_count", len(records)).Debug("Extracted listing page")
	return records
}

// extractEntry builds one SummaryRecord from a listing-entry node. Entries
// without a resolvable detail link under the configured path prefix, or
// without a resolvable name, are discarded whole; no partial records.
func (e *SummaryExtractor) extractEntry(entry *goquery.Selection, rules config.SummaryRules, alternate bool, base *url.URL, originPage int) (models.SummaryRecord, bool) {
	linkSelector := rules.LinkSelector
	if linkSelector == "" {
		linkSelector = "a"
	}
	link := entry.Find(linkSelector).First()
	href, _ := link.Attr("href")
	sourceURL := parse.ResolveAbsolute(base, href)
	if sourceURL == "" || !e.underDetailPrefix(sourceURL) {
		return models.SummaryRecord{}, false
	}

	name := findText(entry, rules.NameSelector)
	if name == "" {
		name = textOf(link)
	}
	if name == "" {
		return models.SummaryRecord{}, false
	}

	record := models.SummaryRecord{
		SourceURL:  sourceURL,
		OriginPage: originPage,
	}
	record.PrimaryName, record.SecondaryName = e.splitLanguages(name)

	columns := columnTexts(entry, rules)
	assignColumns(&record, rules.Columns, columns)
	if rules.ColumnSelector == "" {
		e.applyFreeTextFallback(&record, entry, rules, name)
	}

	if alternate {
		e.resolveCompanyLabelFirst(&record, entry, rules, columns)
		e.resolveGenericWithCollisionScan(&record, rules, columns)
	}

	return record, true
}

// applyFreeTextFallback decomposes the entry's flattened text when the layout
// has no column nodes at all. The brand name anchors the heuristics but the
// anchor-derived name stays authoritative; the split only fills fields still
// null, and a line no strategy is confident about stays undecomposed.
func (e *SummaryExtractor) applyFreeTextFallback(record *models.SummaryRecord, entry *goquery.Selection, rules config.SummaryRules, name string) {
	line := strings.TrimSpace(textOf(entry))
	if line == "" || line == name {
		return
	}
	result := SplitFreeText(line, rules.FreeTextSeparator, e.companyPattern)
	if record.Strength == nil {
		record.Strength = result.Strength
	}
	if record.GenericName == nil {
		record.GenericName = result.Generic
	}
	if record.Company == nil {
		record.Company = result.Company
	}
}

// underDetailPrefix reports whether an absolute URL's path begins with the
// site's detail path prefix. An empty prefix accepts everything.
func (e *SummaryExtractor) underDetailPrefix(absURL string) bool {
	if e.site.DetailPathPrefix == "" {
		return true
	}
	parsed, err := url.Parse(absURL)
	if err != nil {
		return false
	}
	return strings.HasPrefix(parsed.Path, e.site.DetailPathPrefix)
}

// splitLanguages splits a multilingual display name on the site's language
// separator token into primary and secondary parts.
func (e *SummaryExtractor) splitLanguages(name string) (string, *string) {
	sep := e.site.LanguageSeparator
	if sep == "" {
		return name, nil
	}
	primary, secondary, found := strings.Cut(name, sep)
	if !found {
		return name, nil
	}
	return strings.TrimSpace(primary), models.StrPtr(strings.TrimSpace(secondary))
}

// columnTexts reads the unlabeled positional text nodes of an entry in
// document order. A present-but-empty node keeps its rank as "" so later
// ranks do not shift into the wrong field.
func columnTexts(entry *goquery.Selection, rules config.SummaryRules) []string {
	if rules.ColumnSelector == "" {
		return nil
	}
	var texts []string
	entry.Find(rules.ColumnSelector).Each(func(i int, col *goquery.Selection) {
		texts = append(texts, textOf(col))
	})
	return texts
}

// assignColumns maps positional ranks to record fields per the configured
// role list. A rank with no matching node, or an empty node, leaves its field
// null.
func assignColumns(record *models.SummaryRecord, roles []string, columns []string) {
	for rank, role := range roles {
		var text string
		if rank < len(columns) {
			text = columns[rank]
		}
		value := models.StrPtr(text)
		switch role {
		case ColStrength:
			record.Strength = value
		case ColGeneric:
			record.GenericName = value
		case ColCompany:
			record.Company = value
		case ColPrice:
			record.Price = value
		case ColMedicineType:
			record.MedicineType = value
		}
	}
}

// resolveCompanyLabelFirst applies the alternate variant's two-tier company
// resolution: a labeled sub-element wins outright; failing that, the last
// positional column is accepted only when its text matches the
// organizational-suffix heuristic. Neither match leaves company null.
func (e *SummaryExtractor) resolveCompanyLabelFirst(record *models.SummaryRecord, entry *goquery.Selection, rules config.SummaryRules, columns []string) {
	if labeled := findText(entry, rules.CompanyLabelSelector); labeled != "" {
		record.Company = models.StrPtr(labeled)
		return
	}
	record.Company = nil
	if e.companyPattern == nil || len(columns) == 0 {
		return
	}
	last := columns[len(columns)-1]
	if last != "" && e.companyPattern.MatchString(last) {
		record.Company = models.StrPtr(last)
	}
}

// resolveGenericWithCollisionScan takes the preferred generic column unless
// its text collides with a field already assigned (name, strength, company),
// in which case the remaining columns are scanned for the first unassigned
// non-empty text.
func (e *SummaryExtractor) resolveGenericWithCollisionScan(record *models.SummaryRecord, rules config.SummaryRules, columns []string) {
	if rules.GenericColumn < 0 || rules.GenericColumn >= len(columns) {
		return
	}
	preferred := columns[rules.GenericColumn]
	if preferred != "" && !collidesWithAssigned(record, preferred) {
		record.GenericName = models.StrPtr(preferred)
		return
	}
	record.GenericName = nil
	for rank, text := range columns {
		if rank == rules.GenericColumn || text == "" {
			continue
		}
		if !collidesWithAssigned(record, text) {
			record.GenericName = models.StrPtr(text)
			return
		}
	}
}

func collidesWithAssigned(record *models.SummaryRecord, text string) bool {
	if strings.EqualFold(text, record.PrimaryName) {
		return true
	}
	for _, assigned := range []*string{record.Strength, record.Company} {
		if assigned != nil && strings.EqualFold(text, *assigned) {
			return true
		}
	}
	return false
}
