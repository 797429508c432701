package models

import "time"

// SummaryRecord is one listing entry parsed from a paginated brand index page.
// All optional fields are pointers so the persisted JSON carries explicit
// nulls rather than dropping keys; the source markup guarantees none of them.
type SummaryRecord struct {
	PrimaryName   string  `json:"primaryName"`
	SecondaryName *string `json:"secondaryName"`
	Strength      *string `json:"strength"`
	GenericName   *string `json:"genericName"`
	Company       *string `json:"company"`
	Price         *string `json:"price"`
	MedicineType  *string `json:"medicineType"`
	SourceURL     string  `json:"sourceUrl"`  // Absolute detail-page URL; join key to DetailRecord (not guaranteed unique per listing page)
	OriginPage    int     `json:"originPage"` // Index page the entry was scraped from, for traceability
}

// SectionGroup is one titled (or untitled) chunk within a long-form medical
// text block: a bolded heading optionally followed by prose and/or bullets.
type SectionGroup struct {
	Title       *string  `json:"title"`
	Information *string  `json:"information"`
	Items       []string `json:"items"`
}

// DosageGroup is the dosage-specific variant of SectionGroup. Kept distinct
// because dosage markup nests instruction lists under a named medication type.
type DosageGroup struct {
	MedicationType *string  `json:"medicationType"`
	Information    *string  `json:"information"`
	Instructions   []string `json:"instructions"`
}

// PackageEntry is one (label, price, pack size) triple from the pricing block.
type PackageEntry struct {
	Label        *string `json:"label"`
	Price        *string `json:"price"`
	PackSizeInfo *string `json:"packSizeInfo"`
}

// PricingInfo aggregates the pricing block of a detail page.
type PricingInfo struct {
	UnitPrice    *string        `json:"unitPrice"`
	StripPrice   *string        `json:"stripPrice"`
	PackSizeInfo *string        `json:"packSizeInfo"`
	Packages     []PackageEntry `json:"packages"`
}

// BrandFlag is a labeled notice attached to a brand (e.g. "Discontinued").
type BrandFlag struct {
	Label string  `json:"label"`
	Note  *string `json:"note"`
}

// RelatedLink is an "also available as" style cross-reference.
type RelatedLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// QAEntry is one common-question block. Answers stay an ordered sequence of
// fragments because source answers mix sentences and bullet lists.
type QAEntry struct {
	Question    *string  `json:"question"`
	AnswerLines []string `json:"answerLines"`
}

// CompoundSummary holds chemical metadata scraped from the compound table.
type CompoundSummary struct {
	MolecularFormula          *string `json:"molecularFormula"`
	ChemicalStructureImageURL *string `json:"chemicalStructureImageUrl"`
}

// DetailRecord is one brand's full profile parsed from its detail page.
// Identity is the normalized SourceURL; RecordID is a deterministic hash
// fallback for consumers that need a short stable key.
type DetailRecord struct {
	RecordID           string        `json:"recordId"`
	SourceURL          string        `json:"sourceUrl"`
	Name               *string       `json:"name"`
	DosageForm         *string       `json:"dosageForm"`
	Generic            *string       `json:"generic"`
	Strength           *string       `json:"strength"`
	Company            *string       `json:"company"`
	PackImage          *string       `json:"packImage"`
	Pricing            PricingInfo   `json:"pricing"`
	Flags              []BrandFlag   `json:"flags"`
	AlsoAvailable      []RelatedLink `json:"alsoAvailable"`
	AlternateBrandsURL *string       `json:"alternateBrandsUrl"`
	TherapeuticClass   *string       `json:"therapeuticClass"`

	// Named long-form sections, each an ordered sequence of groups.
	Sections map[string][]SectionGroup `json:"sections"`

	Dosage          []DosageGroup   `json:"dosage"`
	CommonQuestions []QAEntry       `json:"commonQuestions"`
	Compound        CompoundSummary `json:"compoundSummary"`

	FetchedAt         time.Time      `json:"fetchedAt"`
	OriginalRecordRef *SummaryRecord `json:"originalRecordRef"` // Back-reference to the seed entry, traceability only
}

// Canonical section keys for DetailRecord.Sections. Selector config maps each
// key to its container on the page; extraction only emits keys it found.
const (
	SectionIndications       = "indications"
	SectionModeOfAction      = "modeOfAction"
	SectionInteractions      = "interactions"
	SectionContraindications = "contraindications"
	SectionSideEffects       = "sideEffects"
	SectionPregnancyCategory = "pregnancyCategory"
	SectionPrecautions       = "precautions"
	SectionPediatricUse      = "pediatricUse"
	SectionOverdoseEffects   = "overdoseEffects"
	SectionStorageConditions = "storageConditions"
	SectionDescription       = "description"
	SectionAdministration    = "administration"
)

// FailureEntry records one identity that failed after exhausting retries.
type FailureEntry struct {
	Identity string `json:"identity"` // Page number (as string) or source URL
	Reason   string `json:"reason"`
	Category string `json:"category,omitempty"`
}

// BatchOutcome summarizes one processed batch, driving the resumability
// ledger and end-of-run reporting.
type BatchOutcome struct {
	RangeStart int            `json:"rangeStart"`
	RangeEnd   int            `json:"rangeEnd"`
	ItemsSaved int            `json:"itemsSaved"`
	Failures   []FailureEntry `json:"failures"`
	Skipped    bool           `json:"skipped,omitempty"`    // Batch artifact already existed
	Unverified bool           `json:"unverified,omitempty"` // Range skipped by the empty-batch early exit, not confirmed absent
}

// StrPtr returns a pointer to s, or nil if s is empty. Extraction code uses
// it so missing fields resolve to explicit nulls.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
