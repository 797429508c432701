package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcrawl/pkg/config"
	"medcrawl/pkg/models"
)

func testDetailSite() config.SiteConfig {
	site := testSite()
	site.Detail = config.DetailRules{
		NameSelector:             "h1.brand",
		DosageFormSelector:       "small.form",
		GenericSelector:          `div[title="Generic"]`,
		StrengthSelector:         `div[title="Strength"]`,
		CompanySelector:          `div[title="Company"]`,
		PackImageSelector:        "img.pack",
		PricingPackageSelector:   "div.package",
		FlagSelector:             "div.flag",
		AlsoAvailableSelector:    "div.also a",
		AlternateBrandsSelector:  "a.alternates",
		TherapeuticClassSelector: `div[title="Therapeutic Class"]`,
		Sections: map[string]string{
			models.SectionIndications: "#indications",
			models.SectionSideEffects: "#side-effects",
		},
		DosageSelector:          "#dosage",
		FAQItemSelector:         "div.faq",
		FAQQuestionSelector:     "div.q",
		FAQAnswerSelector:       "div.a",
		CompoundSectionSelector: "#compound",
	}
	return site
}

const detailPageHTML = `
<html><body>
	<h1 class="brand">Napa <small class="form">Tablet</small></h1>
	<div title="Generic">Paracetamol</div>
	<div title="Strength">500 mg</div>
	<div title="Company"><a href="/company/beximco">Beximco Pharmaceuticals Ltd.</a></div>
	<img class="pack" src="/images/napa-500.jpg">

	<div class="package">
		<span>Unit Price:</span><span>1.20</span><span>(30 tablets)</span>
	</div>
	<div class="package">
		<div><span>Strip Price:</span><span>12.00</span></div>
		<div><span>Strip Price:</span><span>12.00</span></div>
	</div>

	<div class="flag"><b>Discontinued</b>: no longer marketed</div>
	<div class="also"><a href="/brands/napa-syrup">Napa Syrup</a></div>
	<a class="alternates" href="/generics/paracetamol/brands">Alternate brands</a>
	<div title="Therapeutic Class">Non-opioid analgesics</div>

	<div id="indications">
		<b>Fever</b><p>First-line antipyretic.</p>
		<ul><li>Adults and children</li></ul>
	</div>
	<div id="side-effects"><p>Generally well tolerated.</p></div>

	<div id="dosage">
		<ul>
			<li><b>Tablet</b>: with or without food
				<ul><li>1-2 tablets every 4-6 hours</li></ul>
			</li>
		</ul>
	</div>

	<div class="faq">
		<div class="q">Is it safe in pregnancy?</div>
		<div class="a"><p>Yes, at recommended doses.</p><ul><li>Consult a physician first</li></ul></div>
	</div>

	<div id="compound">
		<table>
			<tr><td>Molecular Formula</td><td>C8H9NO2</td></tr>
			<tr><td>Chemical Structure</td><td><img src="/structures/paracetamol.svg"></td></tr>
		</table>
	</div>
</body></html>`

func extractDetailFixture(t *testing.T) models.DetailRecord {
	t.Helper()
	doc := docFrom(t, detailPageHTML)
	extractor := NewDetailExtractor(testDetailSite(), newTestLogger())
	return extractor.Extract(doc, "https://directory.test/brands/napa-500/", nil)
}

func TestDetailExtractHeadingSubtraction(t *testing.T) {
	rec := extractDetailFixture(t)
	require.NotNil(t, rec.Name)
	assert.Equal(t, "Napa", *rec.Name)
	require.NotNil(t, rec.DosageForm)
	assert.Equal(t, "Tablet", *rec.DosageForm)
}

func TestDetailExtractIdentity(t *testing.T) {
	rec := extractDetailFixture(t)
	// Normalized: trailing slash stripped
	assert.Equal(t, "https://directory.test/brands/napa-500", rec.SourceURL)
	assert.Len(t, rec.RecordID, 16)

	again := extractDetailFixture(t)
	assert.Equal(t, rec.RecordID, again.RecordID)
}

func TestDetailExtractLabeledFields(t *testing.T) {
	rec := extractDetailFixture(t)
	require.NotNil(t, rec.Generic)
	assert.Equal(t, "Paracetamol", *rec.Generic)
	require.NotNil(t, rec.Strength)
	assert.Equal(t, "500 mg", *rec.Strength)
	require.NotNil(t, rec.Company)
	assert.Equal(t, "Beximco Pharmaceuticals Ltd.", *rec.Company)
	require.NotNil(t, rec.PackImage)
	assert.Equal(t, "https://directory.test/images/napa-500.jpg", *rec.PackImage)
	require.NotNil(t, rec.TherapeuticClass)
	assert.Equal(t, "Non-opioid analgesics", *rec.TherapeuticClass)
}

func TestDetailExtractCompanyWithoutAnchor(t *testing.T) {
	doc := docFrom(t, `<div title="Company">Square Pharmaceuticals PLC</div>`)
	extractor := NewDetailExtractor(testDetailSite(), newTestLogger())
	rec := extractor.Extract(doc, "https://directory.test/brands/x", nil)
	require.NotNil(t, rec.Company)
	assert.Equal(t, "Square Pharmaceuticals PLC", *rec.Company)
}

func TestDetailExtractPricing(t *testing.T) {
	rec := extractDetailFixture(t)

	// The duplicated strip-price wrapper collapses to one entry
	require.Len(t, rec.Pricing.Packages, 2)
	require.NotNil(t, rec.Pricing.UnitPrice)
	assert.Equal(t, "1.20", *rec.Pricing.UnitPrice)
	require.NotNil(t, rec.Pricing.StripPrice)
	assert.Equal(t, "12.00", *rec.Pricing.StripPrice)
	require.NotNil(t, rec.Pricing.PackSizeInfo)
	assert.Equal(t, "(30 tablets)", *rec.Pricing.PackSizeInfo)
}

func TestDetailExtractPricingFirstEntryDefault(t *testing.T) {
	// No label matches "unit price" or "strip price": the first entry's price
	// still resolves so pricing is never fully null.
	doc := docFrom(t, `
		<div class="package"><span>Pack:</span><span>45.00</span><span>(1 box)</span></div>`)
	extractor := NewDetailExtractor(testDetailSite(), newTestLogger())
	rec := extractor.Extract(doc, "https://directory.test/brands/x", nil)

	require.Len(t, rec.Pricing.Packages, 1)
	require.NotNil(t, rec.Pricing.UnitPrice)
	assert.Equal(t, "45.00", *rec.Pricing.UnitPrice)
	assert.Nil(t, rec.Pricing.StripPrice)
	require.NotNil(t, rec.Pricing.PackSizeInfo)
	assert.Equal(t, "(1 box)", *rec.Pricing.PackSizeInfo)
}

func TestDetailExtractFlagsAndLinks(t *testing.T) {
	rec := extractDetailFixture(t)

	require.Len(t, rec.Flags, 1)
	assert.Equal(t, "Discontinued", rec.Flags[0].Label)
	require.NotNil(t, rec.Flags[0].Note)
	assert.Equal(t, "no longer marketed", *rec.Flags[0].Note)

	require.Len(t, rec.AlsoAvailable, 1)
	assert.Equal(t, "Napa Syrup", rec.AlsoAvailable[0].Text)
	assert.Equal(t, "https://directory.test/brands/napa-syrup", rec.AlsoAvailable[0].Href)

	require.NotNil(t, rec.AlternateBrandsURL)
	assert.Equal(t, "https://directory.test/generics/paracetamol/brands", *rec.AlternateBrandsURL)
}

func TestDetailExtractSections(t *testing.T) {
	rec := extractDetailFixture(t)

	require.Contains(t, rec.Sections, models.SectionIndications)
	groups := rec.Sections[models.SectionIndications]
	require.Len(t, groups, 1)
	require.NotNil(t, groups[0].Title)
	assert.Equal(t, "Fever", *groups[0].Title)
	assert.Equal(t, []string{"Adults and children"}, groups[0].Items)

	require.Contains(t, rec.Sections, models.SectionSideEffects)
	sideEffects := rec.Sections[models.SectionSideEffects]
	require.Len(t, sideEffects, 1)
	assert.Nil(t, sideEffects[0].Title)
}

func TestDetailExtractDosageAndFAQ(t *testing.T) {
	rec := extractDetailFixture(t)

	require.Len(t, rec.Dosage, 1)
	require.NotNil(t, rec.Dosage[0].MedicationType)
	assert.Equal(t, "Tablet", *rec.Dosage[0].MedicationType)
	assert.Equal(t, []string{"1-2 tablets every 4-6 hours"}, rec.Dosage[0].Instructions)

	require.Len(t, rec.CommonQuestions, 1)
	require.NotNil(t, rec.CommonQuestions[0].Question)
	assert.Equal(t, "Is it safe in pregnancy?", *rec.CommonQuestions[0].Question)
	assert.Equal(t, []string{
		"Yes, at recommended doses.",
		"Consult a physician first",
	}, rec.CommonQuestions[0].AnswerLines)
}

func TestDetailExtractCompound(t *testing.T) {
	rec := extractDetailFixture(t)
	require.NotNil(t, rec.Compound.MolecularFormula)
	assert.Equal(t, "C8H9NO2", *rec.Compound.MolecularFormula)
	require.NotNil(t, rec.Compound.ChemicalStructureImageURL)
	assert.Equal(t, "https://directory.test/structures/paracetamol.svg", *rec.Compound.ChemicalStructureImageURL)
}

func TestDetailExtractCompoundTextFallback(t *testing.T) {
	doc := docFrom(t, `
		<div id="compound">
			<p>Molecular Formula: C9H8O4 and other properties.</p>
			<img src="/structures/aspirin.png">
		</div>`)
	extractor := NewDetailExtractor(testDetailSite(), newTestLogger())
	rec := extractor.Extract(doc, "https://directory.test/brands/x", nil)

	require.NotNil(t, rec.Compound.MolecularFormula)
	assert.Equal(t, "C9H8O4", *rec.Compound.MolecularFormula)
	require.NotNil(t, rec.Compound.ChemicalStructureImageURL)
	assert.Equal(t, "https://directory.test/structures/aspirin.png", *rec.Compound.ChemicalStructureImageURL)
}

func TestDetailExtractEmptyPageStableShape(t *testing.T) {
	// A page matching nothing still yields a record with every sequence
	// non-nil and every optional field null.
	doc := docFrom(t, `<html><body><p>nothing here</p></body></html>`)
	extractor := NewDetailExtractor(testDetailSite(), newTestLogger())
	rec := extractor.Extract(doc, "https://directory.test/brands/ghost", nil)

	assert.Nil(t, rec.Name)
	assert.Nil(t, rec.Company)
	assert.NotNil(t, rec.Pricing.Packages)
	assert.NotNil(t, rec.Flags)
	assert.NotNil(t, rec.AlsoAvailable)
	assert.NotNil(t, rec.Sections)
	assert.NotNil(t, rec.Dosage)
	assert.NotNil(t, rec.CommonQuestions)
	assert.NotEmpty(t, rec.RecordID)
}

func TestDetailExtractSeedBackReference(t *testing.T) {
	seed := &models.SummaryRecord{PrimaryName: "Napa", SourceURL: "https://directory.test/brands/napa-500", OriginPage: 3}
	doc := docFrom(t, detailPageHTML)
	extractor := NewDetailExtractor(testDetailSite(), newTestLogger())
	rec := extractor.Extract(doc, "https://directory.test/brands/napa-500", seed)

	require.NotNil(t, rec.OriginalRecordRef)
	assert.Equal(t, 3, rec.OriginalRecordRef.OriginPage)
}
