package formfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/ternarybob/arbor"
)

// Vendor identifies which ATS rendered a dropdown-like widget, per §4.8's
// five detection predicates.
type Vendor string

const (
	VendorGreenhouse Vendor = "greenhouse"
	VendorWorkday    Vendor = "workday"
	VendorLever      Vendor = "lever"
	VendorAshby      Vendor = "ashby"
	VendorGeneric    Vendor = "generic"
)

// DetectVendor applies §4.8's predicates in the fixed order the spec lists
// them: a Greenhouse combobox, a Workday data-automation-id dropdown, a
// Lever select, an Ashby option button, else generic. Order matters because
// a generic combobox could otherwise satisfy more than one predicate.
func DetectVendor(attrs map[string]string, tagName, class string) Vendor {
	role := strings.ToLower(attrs["role"])
	if role == "combobox" && attrs["aria-haspopup"] != "" {
		return VendorGreenhouse
	}
	if strings.Contains(strings.ToLower(attrs["data-automation-id"]), "dropdown") {
		return VendorWorkday
	}
	if tagName == "select" && (strings.Contains(class, "lever") || strings.Contains(class, "application-field")) {
		return VendorLever
	}
	if role == "button" && strings.Contains(strings.ToLower(attrs["data-testid"]), "option") {
		return VendorAshby
	}
	return VendorGeneric
}

// WidgetDriver resolves a profile value against one ATS vendor's dropdown
// widget and drives the clicks/keystrokes needed to select it. Each
// implementation is grounded in a distinct section of
// original_source/Agents/components/executors/field_interactor.py's
// per-vendor branches.
type WidgetDriver interface {
	Fill(ctx context.Context, field *models.FormField, value string) (selected string, err error)
}

// DriverFor returns the widget driver for a vendor, defaulting to the
// generic native-select driver for VendorGeneric and any value this package
// doesn't otherwise special-case.
func DriverFor(vendor Vendor, logger arbor.ILogger, actionTimeout time.Duration) WidgetDriver {
	switch vendor {
	case VendorGreenhouse:
		return &GreenhouseDriver{logger: logger, timeout: actionTimeout}
	case VendorWorkday:
		return &WorkdayDriver{logger: logger, timeout: actionTimeout}
	case VendorLever:
		return &LeverDriver{logger: logger, timeout: actionTimeout}
	case VendorAshby:
		return &AshbyDriver{logger: logger, timeout: actionTimeout}
	default:
		return &GenericDriver{logger: logger, timeout: actionTimeout}
	}
}

// openComboboxJS clicks the combobox and returns the selector of whichever
// element now owns the open option list, located by aria-controls/
// aria-owns/a visible role=listbox sibling — the three patterns Greenhouse's
// Select2-style widget and Workday's prompt-based widget both use.
const openComboboxJS = `
(selector) => {
  const el = document.querySelector(selector);
  if (!el) return '';
  el.click();
  let listId = el.getAttribute('aria-controls') || el.getAttribute('aria-owns');
  if (listId) {
    const list = document.getElementById(listId);
    if (list) return '#' + listId;
  }
  const listbox = document.querySelector('[role="listbox"]:not([hidden])') ||
                   document.querySelector('[role="menu"]:not([hidden])') ||
                   document.querySelector('ul[class*="menu"]:not([hidden])');
  if (listbox) {
    if (!listbox.id) listbox.id = 'jobforge-open-list-' + Date.now();
    return '#' + listbox.id;
  }
  return '';
}
`

// listOptionsJS enumerates the visible option nodes under a container
// selector, tagging each with a stable per-run selector so the driver can
// click back into it after scoring.
const listOptionsJS = `
(containerSelector) => {
  const container = document.querySelector(containerSelector);
  if (!container) return [];
  const nodes = container.querySelectorAll('[role="option"], li, div[class*="option"]');
  const out = [];
  let i = 0;
  for (const node of nodes) {
    const text = (node.textContent || '').trim();
    if (!text) continue;
    if (!node.id) node.id = 'jobforge-opt-' + Date.now() + '-' + (i++);
    out.push({text: text, selector: '#' + node.id});
  }
  return out;
}
`

type jsOption struct {
	Text     string `json:"text"`
	Selector string `json:"selector"`
}

// GreenhouseDriver handles the combobox widget Greenhouse renders for
// school/degree/discipline/location fields: open, optionally type a filter
// string, enumerate options, score with scoreGreenhouseOption, then click
// the best match with an escalating sequence of click strategies since a
// plain chromedp.Click sometimes lands before the option's own click
// handler has attached.
type GreenhouseDriver struct {
	logger  arbor.ILogger
	timeout time.Duration
}

func (d *GreenhouseDriver) Fill(ctx context.Context, field *models.FormField, value string) (string, error) {
	deadline, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var listSelector string
	if err := chromedp.Run(deadline, chromedp.Evaluate(fmt.Sprintf("(%s)(%q)", openComboboxJS, field.Handle.Selector()), &listSelector)); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	if listSelector == "" {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: "combobox did not open a list"}
	}

	_ = chromedp.Run(deadline, chromedp.SendKeys(field.Handle.Selector(), value))
	time.Sleep(300 * time.Millisecond)

	var opts []jsOption
	if err := chromedp.Run(deadline, chromedp.Evaluate(fmt.Sprintf("(%s)(%q)", listOptionsJS, listSelector), &opts)); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	texts := make([]string, len(opts))
	for i, o := range opts {
		texts[i] = o.Text
	}
	best, score := bestGreenhouseOption(value, texts)
	if best == "" {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: fmt.Sprintf("no option scored above threshold (best %.2f)", score)}
	}

	var chosenSelector string
	for _, o := range opts {
		if o.Text == best {
			chosenSelector = o.Selector
			break
		}
	}
	if err := clickWithEscalation(deadline, chosenSelector); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	return best, nil
}

// clickWithEscalation tries four increasingly forceful click strategies, per
// §4.8: a normal chromedp.Click, a JS .click(), a synthetic pointerdown/up
// dispatch, and finally a mousedown+mouseup pair — some Greenhouse option
// nodes only respond to one of these depending on the listener they attach.
func clickWithEscalation(ctx context.Context, selector string) error {
	if selector == "" {
		return fmt.Errorf("no selector to click")
	}
	if err := chromedp.Run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err == nil {
		return nil
	}
	jsClick := fmt.Sprintf(`(() => { const el = document.querySelector(%q); if (el) el.click(); return !!el; })()`, selector)
	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsClick, &clicked)); err == nil && clicked {
		return nil
	}
	pointerEvents := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		for (const type of ['pointerdown', 'pointerup']) {
			el.dispatchEvent(new PointerEvent(type, {bubbles: true}));
		}
		return true;
	})()`, selector)
	if err := chromedp.Run(ctx, chromedp.Evaluate(pointerEvents, &clicked)); err == nil && clicked {
		return nil
	}
	mouseEvents := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		for (const type of ['mousedown', 'mouseup']) {
			el.dispatchEvent(new MouseEvent(type, {bubbles: true}));
		}
		return true;
	})()`, selector)
	if err := chromedp.Run(ctx, chromedp.Evaluate(mouseEvents, &clicked)); err == nil && clicked {
		return nil
	}
	return fmt.Errorf("all click strategies failed for %s", selector)
}

// WorkdayDriver opens the data-automation-id dropdown button, enumerates
// the resulting listbox, and reuses Greenhouse's scoring since Workday's
// options are plain text nodes with no vendor-specific normalization needs
// of their own.
type WorkdayDriver struct {
	logger  arbor.ILogger
	timeout time.Duration
}

func (d *WorkdayDriver) Fill(ctx context.Context, field *models.FormField, value string) (string, error) {
	deadline, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var listSelector string
	if err := chromedp.Run(deadline, chromedp.Evaluate(fmt.Sprintf("(%s)(%q)", openComboboxJS, field.Handle.Selector()), &listSelector)); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	if listSelector == "" {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: "dropdown did not open"}
	}

	var opts []jsOption
	if err := chromedp.Run(deadline, chromedp.Evaluate(fmt.Sprintf("(%s)(%q)", listOptionsJS, listSelector), &opts)); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	texts := make([]string, len(opts))
	for i, o := range opts {
		texts[i] = o.Text
	}
	best, score := bestGreenhouseOption(value, texts)
	if best == "" {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: fmt.Sprintf("no option scored above threshold (best %.2f)", score)}
	}
	var chosenSelector string
	for _, o := range opts {
		if o.Text == best {
			chosenSelector = o.Selector
			break
		}
	}
	if err := clickWithEscalation(deadline, chosenSelector); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	return best, nil
}

// LeverDriver targets Lever's plain <select>, which needs no combobox
// opening step: set the option via a native <select>.value assignment and
// dispatch a change event so React-style listeners observe it.
type LeverDriver struct {
	logger  arbor.ILogger
	timeout time.Duration
}

const selectByTextJS = `
(selector, wanted) => {
  const el = document.querySelector(selector);
  if (!el || el.tagName.toLowerCase() !== 'select') return '';
  let best = '', bestLower = wanted.toLowerCase();
  for (const opt of el.options) {
    if (opt.text.trim().toLowerCase() === bestLower) { best = opt.text.trim(); break; }
  }
  if (!best) {
    for (const opt of el.options) {
      const t = opt.text.trim();
      if (t.toLowerCase().includes(bestLower) || bestLower.includes(t.toLowerCase())) { best = t; break; }
    }
  }
  if (!best) return '';
  el.value = Array.from(el.options).find(o => o.text.trim() === best).value;
  el.dispatchEvent(new Event('change', {bubbles: true}));
  return best;
}
`

func (d *LeverDriver) Fill(ctx context.Context, field *models.FormField, value string) (string, error) {
	deadline, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var selected string
	expr := fmt.Sprintf("(%s)(%q, %q)", selectByTextJS, field.Handle.Selector(), value)
	if err := chromedp.Run(deadline, chromedp.Evaluate(expr, &selected)); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	if selected == "" {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: "no select option matched " + value}
	}
	return selected, nil
}

// AshbyDriver renders each dropdown option as its own button rather than a
// listbox; fill clicks the sibling button whose text best matches value.
type AshbyDriver struct {
	logger  arbor.ILogger
	timeout time.Duration
}

const listButtonGroupJS = `
(selector) => {
  const el = document.querySelector(selector);
  if (!el) return [];
  const group = el.closest('[role="group"]') || el.parentElement;
  if (!group) return [];
  const buttons = group.querySelectorAll('button[role="button"], button');
  const out = [];
  let i = 0;
  for (const b of buttons) {
    const text = (b.textContent || '').trim();
    if (!text) continue;
    if (!b.id) b.id = 'jobforge-ashby-' + Date.now() + '-' + (i++);
    out.push({text: text, selector: '#' + b.id});
  }
  return out;
}
`

func (d *AshbyDriver) Fill(ctx context.Context, field *models.FormField, value string) (string, error) {
	deadline, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var opts []jsOption
	expr := fmt.Sprintf("(%s)(%q)", listButtonGroupJS, field.Handle.Selector())
	if err := chromedp.Run(deadline, chromedp.Evaluate(expr, &opts)); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	texts := make([]string, len(opts))
	for i, o := range opts {
		texts[i] = o.Text
	}
	best, score := bestGreenhouseOption(value, texts)
	if best == "" {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: fmt.Sprintf("no button scored above threshold (best %.2f)", score)}
	}
	var chosenSelector string
	for _, o := range opts {
		if o.Text == best {
			chosenSelector = o.Selector
			break
		}
	}
	if err := clickWithEscalation(deadline, chosenSelector); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	return best, nil
}

// GenericDriver handles any unbranded <select> or role=listbox control that
// matched none of the four named vendors, falling back to the same
// select-by-text logic LeverDriver uses for native selects, and to
// click-the-best-scored-option for ARIA listboxes.
type GenericDriver struct {
	logger  arbor.ILogger
	timeout time.Duration
}

func (d *GenericDriver) Fill(ctx context.Context, field *models.FormField, value string) (string, error) {
	deadline, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if strings.ToLower(field.TagName) == "select" {
		var selected string
		expr := fmt.Sprintf("(%s)(%q, %q)", selectByTextJS, field.Handle.Selector(), value)
		if err := chromedp.Run(deadline, chromedp.Evaluate(expr, &selected)); err != nil {
			return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
		}
		if selected == "" {
			return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: "no select option matched " + value}
		}
		return selected, nil
	}

	var listSelector string
	if err := chromedp.Run(deadline, chromedp.Evaluate(fmt.Sprintf("(%s)(%q)", openComboboxJS, field.Handle.Selector()), &listSelector)); err != nil || listSelector == "" {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: "generic widget did not open a list"}
	}
	var opts []jsOption
	if err := chromedp.Run(deadline, chromedp.Evaluate(fmt.Sprintf("(%s)(%q)", listOptionsJS, listSelector), &opts)); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	texts := make([]string, len(opts))
	for i, o := range opts {
		texts[i] = o.Text
	}
	best, score := bestGreenhouseOption(value, texts)
	if best == "" {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: fmt.Sprintf("no option scored above threshold (best %.2f)", score)}
	}
	var chosenSelector string
	for _, o := range opts {
		if o.Text == best {
			chosenSelector = o.Selector
			break
		}
	}
	if err := clickWithEscalation(deadline, chosenSelector); err != nil {
		return "", &models.FieldError{Kind: models.ErrKindDropdownInteraction, FieldLabel: field.Label, Details: err.Error()}
	}
	return best, nil
}
