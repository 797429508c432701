package extract

import (
	"regexp"
	"strings"

	"medcrawl/pkg/models"
)

// Strategy names recorded in SplitResult for reporting and tests.
const (
	SplitBySeparator  = "separator"
	SplitByDosageUnit = "dosage_unit"
	SplitByComma      = "comma"
	SplitWholeLine    = "whole_line"
)

var dosageUnitPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:mg|mcg|gm|g|ml|iu|%)\b`)

// SplitResult is the outcome of splitting one unlabeled free-text listing
// line into brand/strength/generic/company parts. Strategy names which rule
// produced the split; fields the winning strategy could not place are null.
type SplitResult struct {
	Brand    string
	Strength *string
	Generic  *string
	Company  *string
	Strategy string
}

// SplitFreeText decomposes a raw listing line that has no field containers at
// all. Strategies are tried in fixed order and the first confident result
// wins outright; partial results from two strategies are never mixed:
//
//  1. separator token: the line splits on the configured token into at least
//     two parts.
//  2. dosage-unit anchor: a "500 mg" style token marks the strength; text
//     before it is the brand, text after it the generic (and company when it
//     matches the organizational-suffix pattern).
//  3. comma split: last comma-part matching the company pattern is the
//     company, the rest is the brand.
//
// When no strategy is confident, the whole line is the brand and everything
// else stays null. The splitter never guesses a field it cannot anchor.
func SplitFreeText(line, separator string, companyPattern *regexp.Regexp) SplitResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return SplitResult{Strategy: SplitWholeLine}
	}

	if result, ok := splitBySeparator(line, separator, companyPattern); ok {
		return result
	}
	if result, ok := splitByDosageUnit(line, companyPattern); ok {
		return result
	}
	if result, ok := splitByComma(line, companyPattern); ok {
		return result
	}
	return SplitResult{Brand: line, Strategy: SplitWholeLine}
}

// splitBySeparator is confident when the configured token divides the line
// into two or more parts: brand, generic, then company.
func splitBySeparator(line, separator string, companyPattern *regexp.Regexp) (SplitResult, bool) {
	if separator == "" || !strings.Contains(line, separator) {
		return SplitResult{}, false
	}
	var parts []string
	for _, part := range strings.Split(line, separator) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) < 2 {
		return SplitResult{}, false
	}

	result := SplitResult{Brand: parts[0], Strategy: SplitBySeparator}
	rest := parts[1:]
	// Trailing company part is recognized by suffix, the remainder is generic
	if companyPattern != nil && companyPattern.MatchString(rest[len(rest)-1]) {
		result.Company = models.StrPtr(rest[len(rest)-1])
		rest = rest[:len(rest)-1]
	}
	if len(rest) > 0 {
		result.Generic = models.StrPtr(strings.Join(rest, " "))
	}
	return result, true
}

// splitByDosageUnit anchors on the first "500 mg" style token: brand before,
// strength is the token, generic (or company) after.
func splitByDosageUnit(line string, companyPattern *regexp.Regexp) (SplitResult, bool) {
	loc := dosageUnitPattern.FindStringIndex(line)
	if loc == nil {
		return SplitResult{}, false
	}
	brand := strings.TrimSpace(line[:loc[0]])
	if brand == "" {
		return SplitResult{}, false
	}

	result := SplitResult{
		Brand:    brand,
		Strength: models.StrPtr(strings.TrimSpace(line[loc[0]:loc[1]])),
		Strategy: SplitByDosageUnit,
	}
	tail := strings.TrimSpace(strings.Trim(line[loc[1]:], " ,-"))
	if tail != "" {
		if companyPattern != nil && companyPattern.MatchString(tail) {
			result.Company = models.StrPtr(tail)
		} else {
			result.Generic = models.StrPtr(tail)
		}
	}
	return result, true
}

// splitByComma is confident only when the last comma-part matches the
// organizational-suffix pattern; a bare comma is too weak an anchor.
func splitByComma(line string, companyPattern *regexp.Regexp) (SplitResult, bool) {
	if companyPattern == nil || !strings.Contains(line, ",") {
		return SplitResult{}, false
	}
	idx := strings.LastIndex(line, ",")
	head := strings.TrimSpace(line[:idx])
	tail := strings.TrimSpace(line[idx+1:])
	if head == "" || tail == "" || !companyPattern.MatchString(tail) {
		return SplitResult{}, false
	}
	return SplitResult{
		Brand:    head,
		Company:  models.StrPtr(tail),
		Strategy: SplitByComma,
	}, true
}
