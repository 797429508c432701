package models

import (
	"encoding/json"

	"medcrawl/pkg/utils"
)

// recordIDLength is the truncation length for derived record identifiers.
const recordIDLength = 16

// DeriveRecordID computes the stable identifier for a DetailRecord.
// Preference order: the normalized source URL; lacking one, the record's
// JSON content. Both are deterministic, so re-deriving for the same input
// always yields the same id.
func DeriveRecordID(normalizedSourceURL string, record *DetailRecord) string {
	if normalizedSourceURL != "" {
		return utils.ShortHash(normalizedSourceURL, recordIDLength)
	}
	if record == nil {
		return ""
	}
	// Content fallback: hash the record with identity fields zeroed so the
	// id doesn't depend on itself.
	clone := *record
	clone.RecordID = ""
	content, err := json.Marshal(&clone)
	if err != nil {
		return ""
	}
	return utils.ShortHash(string(content), recordIDLength)
}

// NormalizeShapes replaces nil sequences with empty ones so every persisted
// record has the same JSON shape regardless of which extraction paths fired.
func (d *DetailRecord) NormalizeShapes() {
	if d.Pricing.Packages == nil {
		d.Pricing.Packages = []PackageEntry{}
	}
	if d.Flags == nil {
		d.Flags = []BrandFlag{}
	}
	if d.AlsoAvailable == nil {
		d.AlsoAvailable = []RelatedLink{}
	}
	if d.Sections == nil {
		d.Sections = map[string][]SectionGroup{}
	}
	for key, groups := range d.Sections {
		for i := range groups {
			if groups[i].Items == nil {
				groups[i].Items = []string{}
			}
		}
		d.Sections[key] = groups
	}
	if d.Dosage == nil {
		d.Dosage = []DosageGroup{}
	}
	for i := range d.Dosage {
		if d.Dosage[i].Instructions == nil {
			d.Dosage[i].Instructions = []string{}
		}
	}
	if d.CommonQuestions == nil {
		d.CommonQuestions = []QAEntry{}
	}
	for i := range d.CommonQuestions {
		if d.CommonQuestions[i].AnswerLines == nil {
			d.CommonQuestions[i].AnswerLines = []string{}
		}
	}
}
