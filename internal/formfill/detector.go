package formfill

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/jobforge/orchestrator/internal/models"
)

// ClassifyCategory assigns the normalized field-category vocabulary from
// §6 to a raw control, combining tag/input-type with the vendor-detection
// predicates from §4.8 (a Greenhouse combobox and a Workday dropdown share
// a tag name but need different categories so C9 dispatches to the right
// driver). Pure and unit-testable without a browser.
func ClassifyCategory(tagName, inputType string, attrs map[string]string) models.FieldCategory {
	tag := strings.ToLower(tagName)
	typ := strings.ToLower(inputType)
	class := strings.ToLower(attrs["class"])
	multi := attrs["aria-multiselectable"] == "true" || strings.Contains(class, "multi")

	switch tag {
	case "input":
		switch typ {
		case "file":
			return models.CategoryFileUpload
		case "checkbox":
			return models.CategoryCheckbox
		case "radio":
			return models.CategoryRadio
		}
	case "textarea":
		return models.CategoryTextarea
	}

	switch DetectVendor(attrs, tag, class) {
	case VendorGreenhouse:
		if multi {
			return models.CategoryGreenhouseDropdownMulti
		}
		return models.CategoryGreenhouseDropdown
	case VendorWorkday:
		if multi {
			return models.CategoryWorkdayMultiselect
		}
		return models.CategoryWorkdayDropdown
	case VendorLever:
		return models.CategoryLeverDropdown
	case VendorAshby:
		return models.CategoryAshbyButtonGroup
	}

	if tag == "select" {
		return models.CategoryDropdown
	}
	if attrs["role"] == "listbox" {
		return models.CategoryListbox
	}
	return models.CategoryTextInput
}

// StableID computes the deterministic per-field identifier described in
// §4.9: "{tag}_{id}", "{tag}_{name}", or "{tag}_{md5(label)[:8]}" — same
// label implies the same id across re-detection passes.
func StableID(tagName, id, name, label string) string {
	tag := strings.ToLower(tagName)
	if id != "" {
		return fmt.Sprintf("%s_%s", tag, id)
	}
	if name != "" {
		return fmt.Sprintf("%s_%s", tag, name)
	}
	sum := md5.Sum([]byte(label))
	return fmt.Sprintf("%s_%s", tag, hex.EncodeToString(sum[:])[:8])
}

// FieldDetector builds the current page's FormField set. Two
// implementations share the ClassifyCategory/StableID pure logic above:
// ChromedpDetector walks a live page, StaticDetector walks parsed HTML
// fixtures.
type FieldDetector interface {
	DetectFields(ctx context.Context) ([]*models.FormField, error)
}

// visibleInputTags lists the tag names of form controls, buttons included
// for ATS widgets that represent a dropdown option as a clickable button
// (Ashby) rather than a native control. Neither detector reads it; each
// selects controls with its own selector.
var visibleInputTags = []string{"input", "select", "textarea", "button", "div"}
