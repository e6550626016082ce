package formfill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreGreenhouseOption_ExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, scoreGreenhouseOption("California", "california"))
}

func TestScoreGreenhouseOption_DegreeNormalization(t *testing.T) {
	score := scoreGreenhouseOption("Master's", "Master of Science")
	assert.GreaterOrEqual(t, score, 0.9)
}

func TestScoreGreenhouseOption_TokenOverlap(t *testing.T) {
	score := scoreGreenhouseOption("Computer Science", "Bachelor of Computer Science Engineering")
	assert.GreaterOrEqual(t, score, 0.5)
}

func TestScoreGreenhouseOption_NoMatch(t *testing.T) {
	assert.Equal(t, 0.0, scoreGreenhouseOption("Underwater Basket Weaving", "Civil Engineering"))
}

func TestBestGreenhouseOption_PicksHighestScore(t *testing.T) {
	best, score := bestGreenhouseOption("Master's Degree", []string{"High School", "Bachelor of Arts", "Master of Science", "Doctorate"})
	assert.Equal(t, "Master of Science", best)
	assert.GreaterOrEqual(t, score, 0.9)
}

func TestBestGreenhouseOption_BelowThresholdReturnsEmpty(t *testing.T) {
	best, _ := bestGreenhouseOption("Quantum Basket Weaving", []string{"Software Engineering", "Civil Engineering"})
	assert.Empty(t, best)
}

func TestDetectVendor_Greenhouse(t *testing.T) {
	attrs := map[string]string{"role": "combobox", "aria-haspopup": "listbox"}
	assert.Equal(t, VendorGreenhouse, DetectVendor(attrs, "div", ""))
}

func TestDetectVendor_Workday(t *testing.T) {
	attrs := map[string]string{"data-automation-id": "multiSelectDropdown"}
	assert.Equal(t, VendorWorkday, DetectVendor(attrs, "div", ""))
}

func TestDetectVendor_Lever(t *testing.T) {
	attrs := map[string]string{}
	assert.Equal(t, VendorLever, DetectVendor(attrs, "select", "lever-application-field"))
}

func TestDetectVendor_Ashby(t *testing.T) {
	attrs := map[string]string{"role": "button", "data-testid": "option-item"}
	assert.Equal(t, VendorAshby, DetectVendor(attrs, "button", ""))
}

func TestDetectVendor_Generic(t *testing.T) {
	attrs := map[string]string{}
	assert.Equal(t, VendorGeneric, DetectVendor(attrs, "select", "my-select"))
}
