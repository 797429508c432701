package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDosageGroupsBoldLedList(t *testing.T) {
	doc := docFrom(t, `<div id="d">
		<ul>
			<li><b>Tablet</b>: swallow whole with water
				<ul><li>Adults: 1 tablet daily</li><li>Elderly: half tablet</li></ul>
			</li>
			<li><strong>Syrup</strong> shake well before use</li>
		</ul>
	</div>`)

	groups := ParseDosageGroups(doc.Find("#d"))
	require.Len(t, groups, 2)

	require.NotNil(t, groups[0].MedicationType)
	assert.Equal(t, "Tablet", *groups[0].MedicationType)
	require.NotNil(t, groups[0].Information)
	assert.Equal(t, "swallow whole with water", *groups[0].Information)
	assert.Equal(t, []string{"Adults: 1 tablet daily", "Elderly: half tablet"}, groups[0].Instructions)

	require.NotNil(t, groups[1].MedicationType)
	assert.Equal(t, "Syrup", *groups[1].MedicationType)
	require.NotNil(t, groups[1].Information)
	assert.Equal(t, "shake well before use", *groups[1].Information)
	assert.Empty(t, groups[1].Instructions)
}

func TestParseDosageGroupsPlainListFoldsIntoGroup(t *testing.T) {
	doc := docFrom(t, `<div id="d">
		<p>General guidance.</p>
		<ul><li>Take after meals</li><li>Do not exceed 3 doses</li></ul>
	</div>`)

	groups := ParseDosageGroups(doc.Find("#d"))
	require.Len(t, groups, 1)
	assert.Nil(t, groups[0].MedicationType)
	require.NotNil(t, groups[0].Information)
	assert.Equal(t, "General guidance.", *groups[0].Information)
	assert.Equal(t, []string{"Take after meals", "Do not exceed 3 doses"}, groups[0].Instructions)
}

func TestParseDosageGroupsUntypedItemInBoldLedList(t *testing.T) {
	// An item without a leading bold inside a bold-led list becomes a
	// standalone group with its full text as the sole instruction.
	doc := docFrom(t, `<div id="d">
		<ul>
			<li><b>Capsule</b> once daily</li>
			<li>Store below 30 degrees</li>
		</ul>
	</div>`)

	groups := ParseDosageGroups(doc.Find("#d"))
	require.Len(t, groups, 2)

	require.NotNil(t, groups[0].MedicationType)
	assert.Equal(t, "Capsule", *groups[0].MedicationType)

	assert.Nil(t, groups[1].MedicationType)
	assert.Nil(t, groups[1].Information)
	assert.Equal(t, []string{"Store below 30 degrees"}, groups[1].Instructions)
}

func TestParseDosageGroupsHeadingStartsNewGroup(t *testing.T) {
	doc := docFrom(t, `<div id="d">
		<b>Adult</b>
		<p>One tablet twice daily.</p>
		<b>Pediatric</b>
		<p>As directed by physician.</p>
	</div>`)

	groups := ParseDosageGroups(doc.Find("#d"))
	require.Len(t, groups, 2)
	require.NotNil(t, groups[0].MedicationType)
	assert.Equal(t, "Adult", *groups[0].MedicationType)
	require.NotNil(t, groups[1].MedicationType)
	assert.Equal(t, "Pediatric", *groups[1].MedicationType)
}

func TestParseDosageGroupsFallback(t *testing.T) {
	doc := docFrom(t, `<div id="d"><span>Use as directed.</span></div>`)

	groups := ParseDosageGroups(doc.Find("#d"))
	require.Len(t, groups, 1)
	assert.Nil(t, groups[0].MedicationType)
	require.NotNil(t, groups[0].Information)
	assert.Equal(t, "Use as directed.", *groups[0].Information)
	assert.NotNil(t, groups[0].Instructions)
}
