package extract

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCompanyPattern = regexp.MustCompile(`(?i)(ltd|limited|pharma|pharmaceuticals|laboratories|inc)\.?$`)

func TestSplitFreeTextSeparatorWins(t *testing.T) {
	result := SplitFreeText("Napa - Paracetamol - Beximco Pharmaceuticals Ltd.", "-", testCompanyPattern)

	assert.Equal(t, SplitBySeparator, result.Strategy)
	assert.Equal(t, "Napa", result.Brand)
	require.NotNil(t, result.Generic)
	assert.Equal(t, "Paracetamol", *result.Generic)
	require.NotNil(t, result.Company)
	assert.Equal(t, "Beximco Pharmaceuticals Ltd.", *result.Company)
	assert.Nil(t, result.Strength)
}

func TestSplitFreeTextDosageUnitAnchor(t *testing.T) {
	result := SplitFreeText("Napa Extra 500 mg Paracetamol", "|", testCompanyPattern)

	assert.Equal(t, SplitByDosageUnit, result.Strategy)
	assert.Equal(t, "Napa Extra", result.Brand)
	require.NotNil(t, result.Strength)
	assert.Equal(t, "500 mg", *result.Strength)
	require.NotNil(t, result.Generic)
	assert.Equal(t, "Paracetamol", *result.Generic)
	assert.Nil(t, result.Company)
}

func TestSplitFreeTextDosageUnitTailIsCompany(t *testing.T) {
	result := SplitFreeText("Napa 500 mg, ACME Laboratories Ltd.", "|", testCompanyPattern)

	assert.Equal(t, SplitByDosageUnit, result.Strategy)
	assert.Equal(t, "Napa", result.Brand)
	require.NotNil(t, result.Company)
	assert.Equal(t, "ACME Laboratories Ltd.", *result.Company)
	assert.Nil(t, result.Generic)
}

func TestSplitFreeTextCommaNeedsCompanyMatch(t *testing.T) {
	result := SplitFreeText("Seclo, Square Pharmaceuticals Ltd.", "|", testCompanyPattern)
	assert.Equal(t, SplitByComma, result.Strategy)
	assert.Equal(t, "Seclo", result.Brand)
	require.NotNil(t, result.Company)
	assert.Equal(t, "Square Pharmaceuticals Ltd.", *result.Company)

	// A comma whose tail is not an organization is too weak an anchor
	weak := SplitFreeText("Seclo, the purple capsule", "|", testCompanyPattern)
	assert.Equal(t, SplitWholeLine, weak.Strategy)
	assert.Equal(t, "Seclo, the purple capsule", weak.Brand)
	assert.Nil(t, weak.Company)
}

func TestSplitFreeTextWholeLineFallback(t *testing.T) {
	result := SplitFreeText("Mysterious Elixir", "|", testCompanyPattern)
	assert.Equal(t, SplitWholeLine, result.Strategy)
	assert.Equal(t, "Mysterious Elixir", result.Brand)
	assert.Nil(t, result.Strength)
	assert.Nil(t, result.Generic)
	assert.Nil(t, result.Company)
}

func TestSplitFreeTextStrategiesNeverMix(t *testing.T) {
	// Separator wins outright even though the line also carries a dosage
	// unit; the strength stays null rather than borrowing from strategy 2.
	result := SplitFreeText("Napa 500 mg - Paracetamol", "-", testCompanyPattern)
	assert.Equal(t, SplitBySeparator, result.Strategy)
	assert.Equal(t, "Napa 500 mg", result.Brand)
	assert.Nil(t, result.Strength)
	require.NotNil(t, result.Generic)
	assert.Equal(t, "Paracetamol", *result.Generic)
}
