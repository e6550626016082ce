package formfill

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/ternarybob/arbor"
)

// Interactor implements C9: it dispatches a FieldMapping's value into the
// live DOM by category, verifying the result landed, and reports a
// FillOutcome the orchestrator uses to drive phase escalation. Every
// interaction re-resolves field.Handle.Selector() rather than caching a
// live node, since chromedp handles go stale across navigations and
// re-renders (§4.9).
type Interactor struct {
	logger        arbor.ILogger
	dropdownTimeout time.Duration
}

// NewInteractor builds an Interactor. dropdownTimeout bounds ATS widget
// interactions distinctly from the plain DOM primitives below, since
// opening/scoring/clicking an option menu takes longer than setting an
// input's value.
func NewInteractor(logger arbor.ILogger, dropdownTimeout time.Duration) *Interactor {
	if dropdownTimeout <= 0 {
		dropdownTimeout = 8 * time.Second
	}
	return &Interactor{logger: logger, dropdownTimeout: dropdownTimeout}
}

// Fill dispatches value into field per its category and reports the
// outcome. method is recorded on the outcome for the caller's audit trail.
func (in *Interactor) Fill(ctx context.Context, field *models.FormField, value string, method models.MappingMethod) models.FillOutcome {
	start := time.Now()
	outcome := models.FillOutcome{Method: method}

	if value == "" {
		outcome.Error = &models.FieldError{Kind: models.ErrKindRequiresHuman, FieldLabel: field.Label, Details: "empty value"}
		outcome.TimeMillis = time.Since(start).Milliseconds()
		return outcome
	}

	if already, ok := in.currentValue(ctx, field); ok && already != "" && already == value {
		outcome.Success = true
		outcome.Verification = true
		outcome.FinalValue = already
		outcome.Method = models.MethodSkipped
		outcome.TimeMillis = time.Since(start).Milliseconds()
		return outcome
	}

	var err error
	switch {
	case field.FieldCategory == models.CategoryFileUpload:
		err = in.fillFile(ctx, field, value)
	case field.FieldCategory == models.CategoryCheckbox:
		err = in.fillCheckbox(ctx, field, value)
	case field.FieldCategory == models.CategoryRadio || field.FieldCategory == models.CategoryRadioGroup:
		err = in.fillRadio(ctx, field, value)
	case field.FieldCategory == models.CategoryTextarea:
		err = in.fillText(ctx, field, value)
	case field.FieldCategory.IsDropdownLike():
		err = in.fillDropdown(ctx, field, value)
	default:
		err = in.fillText(ctx, field, value)
	}

	if err != nil {
		outcome.Error = err
		outcome.TimeMillis = time.Since(start).Milliseconds()
		return outcome
	}

	final, verified := in.currentValue(ctx, field)
	outcome.Success = true
	outcome.Verification = verified
	outcome.FinalValue = final
	outcome.TimeMillis = time.Since(start).Milliseconds()
	return outcome
}

// currentValueJS reads back whatever the control currently holds, used both
// for the pre-fill skip check and post-fill verification.
const currentValueJS = `
(selector) => {
  const el = document.querySelector(selector);
  if (!el) return '';
  const tag = el.tagName.toLowerCase();
  if (tag === 'input' && (el.type === 'checkbox' || el.type === 'radio')) return el.checked ? 'true' : 'false';
  if (tag === 'select') return el.options[el.selectedIndex] ? el.options[el.selectedIndex].text : '';
  return el.value || el.textContent || '';
}
`

func (in *Interactor) currentValue(ctx context.Context, field *models.FormField) (string, bool) {
	if field.Handle == nil {
		return "", false
	}
	var value string
	expr := fmt.Sprintf("(%s)(%q)", currentValueJS, field.Handle.Selector())
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &value)); err != nil {
		return "", false
	}
	return cleanText(value), true
}

// setValueJS assigns via the native property setter (rather than
// .setAttribute) and dispatches input+change, the combination React- and
// vanilla-JS-bound forms both observe.
const setValueJS = `
(selector, value) => {
  const el = document.querySelector(selector);
  if (!el) return false;
  const proto = Object.getPrototypeOf(el);
  const setter = Object.getOwnPropertyDescriptor(proto, 'value');
  if (setter && setter.set) {
    setter.set.call(el, value);
  } else {
    el.value = value;
  }
  el.dispatchEvent(new Event('input', {bubbles: true}));
  el.dispatchEvent(new Event('change', {bubbles: true}));
  return true;
}
`

func (in *Interactor) fillText(ctx context.Context, field *models.FormField, value string) error {
	var ok bool
	expr := fmt.Sprintf("(%s)(%q, %q)", setValueJS, field.Handle.Selector(), value)
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &ok)); err != nil {
		return &models.FieldError{Kind: models.ErrKindElementStale, FieldLabel: field.Label, Details: err.Error()}
	}
	if !ok {
		return &models.FieldError{Kind: models.ErrKindElementStale, FieldLabel: field.Label, Details: "element not found"}
	}
	return nil
}

func (in *Interactor) fillCheckbox(ctx context.Context, field *models.FormField, value string) error {
	want := parseBoolish(value)
	expr := fmt.Sprintf(`
(selector, want) => {
  const el = document.querySelector(selector);
  if (!el) return false;
  if (el.checked !== want) el.click();
  return true;
}`)
	var ok bool
	call := fmt.Sprintf("(%s)(%q, %t)", expr, field.Handle.Selector(), want)
	if err := chromedp.Run(ctx, chromedp.Evaluate(call, &ok)); err != nil {
		return &models.FieldError{Kind: models.ErrKindElementStale, FieldLabel: field.Label, Details: err.Error()}
	}
	if !ok {
		return &models.FieldError{Kind: models.ErrKindElementStale, FieldLabel: field.Label, Details: "checkbox not found"}
	}
	return nil
}

func (in *Interactor) fillRadio(ctx context.Context, field *models.FormField, value string) error {
	group := field.IndividualRadios
	if len(group) == 0 {
		group = field.Options
	}
	target := findBestOption(value, group)
	if target == nil {
		return &models.FieldError{Kind: models.ErrKindVerificationFailed, FieldLabel: field.Label, Details: "no radio option matched " + value}
	}
	selector := target.ElementID
	if selector != "" {
		selector = "#" + selector
	} else if target.Handle != nil {
		selector = target.Handle.Selector()
	} else {
		return &models.FieldError{Kind: models.ErrKindElementStale, FieldLabel: field.Label, Details: "matched radio option has no selector"}
	}
	if err := clickWithEscalation(ctx, selector); err != nil {
		return &models.FieldError{Kind: models.ErrKindElementStale, FieldLabel: field.Label, Details: err.Error()}
	}
	return nil
}

func findBestOption(value string, options []models.FieldOption) *models.FieldOption {
	var best *models.FieldOption
	var bestScore float64
	for i := range options {
		score := scoreGreenhouseOption(value, options[i].Label)
		if score > bestScore {
			bestScore = score
			best = &options[i]
		}
	}
	if bestScore < 0.3 {
		return nil
	}
	return best
}

func isMultiselectCategory(category models.FieldCategory) bool {
	return category == models.CategoryGreenhouseDropdownMulti || category == models.CategoryWorkdayMultiselect
}

func (in *Interactor) fillDropdown(ctx context.Context, field *models.FormField, value string) error {
	deadline, cancel := context.WithTimeout(ctx, in.dropdownTimeout)
	defer cancel()

	vendor := vendorOf(field)
	driver := DriverFor(vendor, in.logger, in.dropdownTimeout)

	if isMultiselectCategory(field.FieldCategory) {
		values := splitCommaList(value)
		if len(values) == 0 {
			return &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: "empty multiselect value"}
		}
		for _, v := range values {
			if _, err := driver.Fill(deadline, field, v); err != nil {
				if fe, ok := err.(*models.FieldError); ok {
					return fe
				}
				return &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
			}
		}
		_ = chromedp.Run(deadline, chromedp.KeyEvent(""))
		return nil
	}

	if _, err := driver.Fill(deadline, field, value); err != nil {
		if fe, ok := err.(*models.FieldError); ok {
			return fe
		}
		return &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	return nil
}

func vendorOf(field *models.FormField) Vendor {
	switch field.FieldCategory {
	case models.CategoryGreenhouseDropdown, models.CategoryGreenhouseDropdownMulti:
		return VendorGreenhouse
	case models.CategoryWorkdayDropdown, models.CategoryWorkdayMultiselect:
		return VendorWorkday
	case models.CategoryLeverDropdown:
		return VendorLever
	case models.CategoryAshbyButtonGroup:
		return VendorAshby
	default:
		return VendorGeneric
	}
}

// splitCommaList splits a comma-separated multiselect value into trimmed,
// non-empty parts, per §4.9's "split comma-list" instruction for
// workday_multiselect and greenhouse_dropdown_multi.
func splitCommaList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolish(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "on", "checked":
		return true
	}
	return false
}

// resumeFileName builds the "FirstName_LastName_{Resume|CoverLetter}.ext"
// naming convention per §4.9's upload step.
func resumeFileName(firstName, lastName, kind, sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	safe := func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" {
			return "Applicant"
		}
		return s
	}
	return fmt.Sprintf("%s_%s_%s%s", safe(firstName), safe(lastName), kind, ext)
}

func (in *Interactor) fillFile(ctx context.Context, field *models.FormField, sourcePath string) error {
	if sourcePath == "" {
		return &models.FieldError{Kind: models.ErrKindRequiresHuman, FieldLabel: field.Label, Details: "no file path provided"}
	}
	if err := chromedp.Run(ctx, chromedp.SetUploadFiles(field.Handle.Selector(), []string{sourcePath}, chromedp.ByQuery)); err != nil {
		return &models.FieldError{Kind: models.ErrKindElementStale, FieldLabel: field.Label, Details: err.Error()}
	}
	return nil
}
