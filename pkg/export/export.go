package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"medcrawl/pkg/models"
	"medcrawl/pkg/utils"
)

const reportsSubdir = "reports"

// Exporter renders persisted detail records into one Markdown report per
// brand. The export reads only the record; the original HTML is never needed
// again.
type Exporter struct {
	dir string
	log *logrus.Entry
}

// NewExporter creates the per-site report directory
func NewExporter(outputBaseDir, siteKey string, logger *logrus.Entry) (*Exporter, error) {
	dir := filepath.Join(outputBaseDir, utils.SanitizeFilename(siteKey), reportsSubdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create report directory %s: %w", utils.ErrFilesystem, dir, err)
	}
	return &Exporter{dir: dir, log: logger}, nil
}

// Dir returns the report output directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// ExportAll writes one report per record and returns the number written.
// A record that fails to write is logged and skipped; export is best-effort
// over an already-durable store.
func (e *Exporter) ExportAll(records []models.DetailRecord) int {
	written := 0
	for i := range records {
		record := &records[i]
		path := filepath.Join(e.dir, e.fileName(record))
		if err := os.WriteFile(path, []byte(Render(record)), 0644); err != nil {
			e.log.Errorf("Failed to write report for %s: %v", record.SourceURL, err)
			continue
		}
		written++
	}
	e.log.Infof("Exported %d of %d reports to %s", written, len(records), e.dir)
	return written
}

func (e *Exporter) fileName(record *models.DetailRecord) string {
	base := record.RecordID
	if record.Name != nil && *record.Name != "" {
		base = utils.SanitizeFilename(*record.Name) + "_" + record.RecordID
	}
	return base + ".md"
}

// Render produces the Markdown report for one record.
func Render(record *models.DetailRecord) string {
	var b strings.Builder

	name := "Unknown brand"
	if record.Name != nil {
		name = *record.Name
	}
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "Source: %s\n\n", record.SourceURL)

	writeField(&b, "Dosage form", record.DosageForm)
	writeField(&b, "Generic", record.Generic)
	writeField(&b, "Strength", record.Strength)
	writeField(&b, "Company", record.Company)
	writeField(&b, "Therapeutic class", record.TherapeuticClass)
	b.WriteString("\n")

	renderPricing(&b, record.Pricing)
	renderFlags(&b, record.Flags)
	renderSections(&b, record.Sections)
	renderDosage(&b, record.Dosage)
	renderQuestions(&b, record.CommonQuestions)
	renderCompound(&b, record.Compound)

	return b.String()
}

func writeField(b *strings.Builder, label string, value *string) {
	if value == nil || *value == "" {
		return
	}
	fmt.Fprintf(b, "- **%s:** %s\n", label, *value)
}

func renderPricing(b *strings.Builder, pricing models.PricingInfo) {
	if pricing.UnitPrice == nil && pricing.StripPrice == nil && len(pricing.Packages) == 0 {
		return
	}
	b.WriteString("## Pricing\n\n")
	writeField(b, "Unit price", pricing.UnitPrice)
	writeField(b, "Strip price", pricing.StripPrice)
	writeField(b, "Pack size", pricing.PackSizeInfo)
	for _, pkg := range pricing.Packages {
		label := valueOr(pkg.Label, "Package")
		price := valueOr(pkg.Price, "n/a")
		if pkg.PackSizeInfo != nil {
			fmt.Fprintf(b, "- %s %s %s\n", label, price, *pkg.PackSizeInfo)
		} else {
			fmt.Fprintf(b, "- %s %s\n", label, price)
		}
	}
	b.WriteString("\n")
}

func renderFlags(b *strings.Builder, flags []models.BrandFlag) {
	for _, flag := range flags {
		if flag.Note != nil {
			fmt.Fprintf(b, "> **%s:** %s\n\n", flag.Label, *flag.Note)
		} else {
			fmt.Fprintf(b, "> **%s**\n\n", flag.Label)
		}
	}
}

// Section keys render in a fixed reader-friendly order; unknown keys follow
// alphabetically.
var sectionOrder = []string{
	models.SectionIndications,
	models.SectionModeOfAction,
	models.SectionAdministration,
	models.SectionInteractions,
	models.SectionContraindications,
	models.SectionSideEffects,
	models.SectionPregnancyCategory,
	models.SectionPrecautions,
	models.SectionPediatricUse,
	models.SectionOverdoseEffects,
	models.SectionStorageConditions,
	models.SectionDescription,
}

var sectionTitles = map[string]string{
	models.SectionIndications:       "Indications",
	models.SectionModeOfAction:      "Mode of action",
	models.SectionAdministration:    "Administration",
	models.SectionInteractions:      "Interactions",
	models.SectionContraindications: "Contraindications",
	models.SectionSideEffects:       "Side effects",
	models.SectionPregnancyCategory: "Pregnancy and lactation",
	models.SectionPrecautions:       "Precautions",
	models.SectionPediatricUse:      "Pediatric use",
	models.SectionOverdoseEffects:   "Overdose effects",
	models.SectionStorageConditions: "Storage conditions",
	models.SectionDescription:       "Description",
}

func renderSections(b *strings.Builder, sections map[string][]models.SectionGroup) {
	ordered := make([]string, 0, len(sections))
	known := make(map[string]struct{}, len(sectionOrder))
	for _, key := range sectionOrder {
		known[key] = struct{}{}
		if _, ok := sections[key]; ok {
			ordered = append(ordered, key)
		}
	}
	var extra []string
	for key := range sections {
		if _, ok := known[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	ordered = append(ordered, extra...)

	for _, key := range ordered {
		title := sectionTitles[key]
		if title == "" {
			title = key
		}
		fmt.Fprintf(b, "## %s\n\n", title)
		for _, group := range sections[key] {
			if group.Title != nil {
				fmt.Fprintf(b, "### %s\n\n", *group.Title)
			}
			if group.Information != nil {
				fmt.Fprintf(b, "%s\n\n", *group.Information)
			}
			for _, item := range group.Items {
				fmt.Fprintf(b, "- %s\n", item)
			}
			if len(group.Items) > 0 {
				b.WriteString("\n")
			}
		}
	}
}

func renderDosage(b *strings.Builder, dosage []models.DosageGroup) {
	if len(dosage) == 0 {
		return
	}
	b.WriteString("## Dosage\n\n")
	for _, group := range dosage {
		if group.MedicationType != nil {
			fmt.Fprintf(b, "### %s\n\n", *group.MedicationType)
		}
		if group.Information != nil {
			fmt.Fprintf(b, "%s\n\n", *group.Information)
		}
		for _, instruction := range group.Instructions {
			fmt.Fprintf(b, "- %s\n", instruction)
		}
		if len(group.Instructions) > 0 {
			b.WriteString("\n")
		}
	}
}

func renderQuestions(b *strings.Builder, questions []models.QAEntry) {
	if len(questions) == 0 {
		return
	}
	b.WriteString("## Common questions\n\n")
	for _, qa := range questions {
		if qa.Question != nil {
			fmt.Fprintf(b, "**%s**\n\n", *qa.Question)
		}
		for _, line := range qa.AnswerLines {
			fmt.Fprintf(b, "%s\n", line)
		}
		b.WriteString("\n")
	}
}

func renderCompound(b *strings.Builder, compound models.CompoundSummary) {
	if compound.MolecularFormula == nil && compound.ChemicalStructureImageURL == nil {
		return
	}
	b.WriteString("## Compound\n\n")
	writeField(b, "Molecular formula", compound.MolecularFormula)
	if compound.ChemicalStructureImageURL != nil {
		fmt.Fprintf(b, "![Chemical structure](%s)\n", *compound.ChemicalStructureImageURL)
	}
	b.WriteString("\n")
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
