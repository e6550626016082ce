package formfill

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/ternarybob/arbor"
)

// detectFieldsJS walks the live page for every candidate control and
// returns its tag, resolved attributes, and label text, leaving
// classification to the Go-side ClassifyCategory so the JS stays a dumb
// DOM walk. Controls already filled by a prior iteration are still
// returned; C11's FieldCompletion tracker is what skips them, per §4.9.
const detectFieldsJS = `
() => {
  function getLabelText(el) {
    if (el.id) {
      const label = document.querySelector('label[for="' + el.id + '"]');
      if (label) return label.textContent.trim().replace(/\s+/g, ' ');
    }
    let parent = el.parentElement;
    if (parent && parent.tagName.toLowerCase() === 'label') {
      return parent.textContent.trim().replace(/\s+/g, ' ');
    }
    return el.getAttribute('aria-label') || el.getAttribute('placeholder') || '';
  }

  function isVisible(el) {
    const rect = el.getBoundingClientRect();
    const style = window.getComputedStyle(el);
    return rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none';
  }

  const selector = 'input, select, textarea, [role="combobox"], [role="button"][data-testid], [role="listbox"]';
  const nodes = document.querySelectorAll(selector);
  const out = [];
  let i = 0;
  for (const el of nodes) {
    if (!isVisible(el)) continue;
    if (!el.id) el.id = 'jobforge-field-' + Date.now() + '-' + (i++);
    const attrs = {};
    for (const a of el.attributes) attrs[a.name] = a.value;
    out.push({
      tagName: el.tagName.toLowerCase(),
      inputType: el.getAttribute('type') || '',
      id: el.getAttribute('id') || '',
      name: el.getAttribute('name') || '',
      label: getLabelText(el),
      required: el.hasAttribute('required') || el.getAttribute('aria-required') === 'true',
      attrs: attrs,
      selector: '#' + el.id,
    });
  }
  return out;
}
`

type jsDetectedField struct {
	TagName   string            `json:"tagName"`
	InputType string            `json:"inputType"`
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Label     string            `json:"label"`
	Required  bool              `json:"required"`
	Attrs     map[string]string `json:"attrs"`
	Selector  string            `json:"selector"`
}

// ChromedpDetector walks a live page via a single JS evaluate call per
// detection pass, mirroring ChromedpExtractor's one-round-trip approach.
type ChromedpDetector struct {
	logger arbor.ILogger
}

// NewChromedpDetector builds a ChromedpDetector.
func NewChromedpDetector(logger arbor.ILogger) *ChromedpDetector {
	return &ChromedpDetector{logger: logger}
}

func (d *ChromedpDetector) DetectFields(ctx context.Context) ([]*models.FormField, error) {
	var raw []jsDetectedField
	if err := chromedp.Run(ctx, chromedp.Evaluate("("+detectFieldsJS+")()", &raw)); err != nil {
		return nil, fmt.Errorf("formfill: detect fields: %w", err)
	}

	fields := make([]*models.FormField, 0, len(raw))
	for _, r := range raw {
		category := ClassifyCategory(r.TagName, r.InputType, r.Attrs)
		fields = append(fields, &models.FormField{
			StableID:      StableID(r.TagName, r.ID, r.Name, r.Label),
			Label:         cleanText(r.Label),
			FieldCategory: category,
			Handle:        NewChromedpElementHandle(r.Selector),
			Name:          r.Name,
			ID:            r.ID,
			AriaLabel:     r.Attrs["aria-label"],
			Placeholder:   r.Attrs["placeholder"],
			TagName:       r.TagName,
			InputType:     r.InputType,
			Required:      r.Required,
			Attributes:    r.Attrs,
		})
	}
	return fields, nil
}
