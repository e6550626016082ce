package formfill

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/ternarybob/arbor"
)

// extractQuestionJS is ported near-verbatim from the embedded page.evaluate
// script in original_source/Agents/components/executors/question_extractor.py
// (_extract_radio_checkbox_question / _extract_dropdown_question /
// _extract_text_field_question collapsed into one dispatch). It returns a
// JSON-serializable object; see jsQuestionResult for the Go-side shape.
const extractQuestionJS = `
(selector, fieldType) => {
  const el = document.querySelector(selector);
  if (!el) return { question: '', questionSource: 'not_found', optionLabel: '', allOptions: [] };

  function getCleanText(element) {
    if (!element) return '';
    let text = '';
    for (const node of element.childNodes) {
      if (node.nodeType === Node.TEXT_NODE) {
        text += node.textContent;
      } else if (node.nodeType === Node.ELEMENT_NODE) {
        const tag = node.tagName.toLowerCase();
        if (tag === 'label' || tag === 'span' || tag === 'div' || tag === 'p') {
          text += ' ' + node.textContent;
        }
      }
    }
    return text.trim().replace(/\s+/g, ' ');
  }

  function looksLikeQuestion(text) {
    if (!text || text.length < 5) return false;
    const indicators = ['?', 'are you', 'do you', 'have you', 'will you', 'can you',
      'please select', 'please indicate', 'please choose',
      'which', 'what', 'when', 'where', 'how', 'why',
      'select your', 'select the', 'indicate your', 'choose your'];
    const lower = text.toLowerCase();
    return indicators.some(i => lower.includes(i));
  }

  if (fieldType === 'radio' || fieldType === 'checkbox') {
    let optionLabel = '';
    if (el.id) {
      const label = document.querySelector('label[for="' + el.id + '"]');
      if (label) optionLabel = getCleanText(label);
    }
    if (!optionLabel && el.parentElement && el.parentElement.tagName.toLowerCase() === 'label') {
      optionLabel = getCleanText(el.parentElement);
    }
    if (!optionLabel) optionLabel = el.getAttribute('aria-label') || '';
    if (!optionLabel && el.parentElement) {
      let siblingText = '';
      for (const child of el.parentElement.childNodes) {
        if (child.nodeType === Node.TEXT_NODE && child.textContent.trim()) {
          siblingText += child.textContent.trim() + ' ';
        } else if (child.nodeType === Node.ELEMENT_NODE && child !== el) {
          const tag = child.tagName.toLowerCase();
          if (tag === 'label' || tag === 'span') siblingText += child.textContent.trim() + ' ';
        }
      }
      if (siblingText.trim()) optionLabel = siblingText.trim();
    }

    let questionText = '', questionSource = 'unknown';
    let current = el;
    for (let i = 0; i < 5; i++) {
      current = current.parentElement;
      if (!current) break;
      if (current.tagName.toLowerCase() === 'fieldset') {
        const legend = current.querySelector('legend');
        if (legend) { questionText = getCleanText(legend); questionSource = 'fieldset_legend'; break; }
      }
    }

    if (!questionText) {
      const labelledBy = el.getAttribute('aria-labelledby');
      if (labelledBy) {
        const labelEl = document.getElementById(labelledBy);
        if (labelEl) {
          const text = getCleanText(labelEl);
          if (looksLikeQuestion(text)) { questionText = text; questionSource = 'aria_labelledby'; }
        }
      }
    }
    if (!questionText) {
      const describedBy = el.getAttribute('aria-describedby');
      if (describedBy) {
        const descEl = document.getElementById(describedBy);
        if (descEl) {
          const text = getCleanText(descEl);
          if (looksLikeQuestion(text)) { questionText = text; questionSource = 'aria_describedby'; }
        }
      }
    }
    if (!questionText) {
      const fieldName = el.getAttribute('name') || '';
      let container = el.parentElement;
      for (let i = 0; i < 5; i++) {
        if (!container) break;
        if (fieldName) {
          const sameName = container.querySelectorAll('input[name="' + fieldName + '"]');
          if (sameName.length > 1) {
            const headings = container.querySelectorAll('h1,h2,h3,h4,h5,h6,label,legend,div[class*="label"],div[class*="question"],span[class*="label"],span[class*="question"],p[class*="question"]');
            for (const heading of headings) {
              const hy = heading.getBoundingClientRect().top;
              const fy = sameName[0].getBoundingClientRect().top;
              if (hy <= fy) {
                const text = getCleanText(heading);
                if (text && text.length > 5 && text !== optionLabel) { questionText = text; questionSource = 'container_heading'; break; }
              }
            }
            if (questionText) break;
          }
        }
        container = container.parentElement;
      }
    }
    if (!questionText) {
      let sibling = el.previousElementSibling, attempts = 0;
      while (sibling && attempts < 5) {
        const text = getCleanText(sibling);
        if (looksLikeQuestion(text) && text !== optionLabel) { questionText = text; questionSource = 'preceding_sibling'; break; }
        sibling = sibling.previousElementSibling; attempts++;
      }
    }
    if (!questionText && el.parentElement) {
      let sibling = el.parentElement.previousElementSibling, attempts = 0;
      while (sibling && attempts < 3) {
        const text = getCleanText(sibling);
        if (looksLikeQuestion(text)) { questionText = text; questionSource = 'parent_preceding_sibling'; break; }
        sibling = sibling.previousElementSibling; attempts++;
      }
    }
    if (!questionText) {
      let parent = el.parentElement;
      for (let i = 0; i < 5; i++) {
        if (!parent) break;
        const role = parent.getAttribute('role');
        if (role === 'group' || role === 'radiogroup') {
          const ariaLabel = parent.getAttribute('aria-label');
          if (ariaLabel && ariaLabel.length > 5) { questionText = ariaLabel; questionSource = 'role_group_aria_label'; break; }
        }
        parent = parent.parentElement;
      }
    }

    let allOptions = [];
    const fieldName = el.getAttribute('name');
    if (fieldName && fieldType === 'radio') {
      const group = document.querySelectorAll('input[type="radio"][name="' + fieldName + '"]');
      for (const radio of group) {
        let radioLabel = '';
        if (radio.id) {
          const label = document.querySelector('label[for="' + radio.id + '"]');
          if (label) radioLabel = getCleanText(label);
        }
        if (!radioLabel && radio.parentElement && radio.parentElement.tagName.toLowerCase() === 'label') {
          radioLabel = getCleanText(radio.parentElement);
        }
        if (!radioLabel) radioLabel = radio.getAttribute('aria-label') || radio.getAttribute('value') || '';
        if (radioLabel) {
          allOptions.push({ label: radioLabel, value: radio.getAttribute('value') || radioLabel, element_id: radio.getAttribute('id') || '' });
        }
      }
    }

    return { question: questionText, questionSource: questionSource, optionLabel: optionLabel, allOptions: allOptions };
  }

  if (fieldType === 'dropdown') {
    let questionText = '', questionSource = 'unknown';
    if (el.id) {
      const label = document.querySelector('label[for="' + el.id + '"]');
      if (label) { questionText = getCleanText(label); questionSource = 'label_for'; }
    }
    if (!questionText) {
      const labelledBy = el.getAttribute('aria-labelledby');
      if (labelledBy) {
        const labelEl = document.getElementById(labelledBy);
        if (labelEl) { questionText = getCleanText(labelEl); questionSource = 'aria_labelledby'; }
      }
    }
    if (!questionText) {
      questionText = el.getAttribute('aria-label') || '';
      if (questionText) questionSource = 'aria_label';
    }
    if (!questionText && el.previousElementSibling) {
      questionText = getCleanText(el.previousElementSibling);
      if (questionText) questionSource = 'preceding_sibling';
    }
    if (!questionText && el.parentElement && el.parentElement.tagName.toLowerCase() === 'label') {
      questionText = getCleanText(el.parentElement);
      if (questionText) questionSource = 'parent_label';
    }
    return { question: questionText, questionSource: questionSource, optionLabel: '', allOptions: [] };
  }

  // text_input / textarea
  let questionText = '', questionSource = 'unknown';
  if (el.id) {
    const label = document.querySelector('label[for="' + el.id + '"]');
    if (label) { questionText = getCleanText(label); questionSource = 'label_for'; }
  }
  if (!questionText) {
    questionText = el.getAttribute('aria-label') || '';
    if (questionText) questionSource = 'aria_label';
  }
  if (!questionText) {
    questionText = el.getAttribute('placeholder') || '';
    if (questionText) questionSource = 'placeholder';
  }
  return { question: questionText, questionSource: questionSource, optionLabel: '', allOptions: [] };
}
`

type jsFieldOption struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	ElementID string `json:"element_id"`
}

type jsQuestionResult struct {
	Question       string          `json:"question"`
	QuestionSource string          `json:"questionSource"`
	OptionLabel    string          `json:"optionLabel"`
	AllOptions     []jsFieldOption `json:"allOptions"`
}

// ChromedpExtractor runs the DOM-walking heuristics against a live page via
// chromedp.Evaluate, invoking a single JS function per field so the round
// trip cost is one eval rather than a walk of separate chromedp actions.
type ChromedpExtractor struct {
	logger arbor.ILogger
}

// NewChromedpExtractor builds a ChromedpExtractor.
func NewChromedpExtractor(logger arbor.ILogger) *ChromedpExtractor {
	return &ChromedpExtractor{logger: logger}
}

// ExtractQuestion evaluates extractQuestionJS against field.Handle's selector
// inside the chromedp context carried by ctx.
func (e *ChromedpExtractor) ExtractQuestion(ctx context.Context, field *models.FormField) (QuestionContext, error) {
	if field.Handle == nil {
		return QuestionContext{}, fmt.Errorf("formfill: field %q has no element handle", field.StableID)
	}

	var result jsQuestionResult
	expr := fmt.Sprintf("(%s)(%q, %q)", extractQuestionJS, field.Handle.Selector(), string(field.FieldCategory))
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &result)); err != nil {
		return QuestionContext{}, fmt.Errorf("formfill: evaluate question extractor: %w", err)
	}

	return toQuestionContext(result), nil
}

func toQuestionContext(result jsQuestionResult) QuestionContext {
	opts := make([]models.FieldOption, 0, len(result.AllOptions))
	for _, o := range result.AllOptions {
		opts = append(opts, models.FieldOption{Label: o.Label, Value: o.Value, ElementID: o.ElementID})
	}
	return QuestionContext{
		Question:       cleanText(result.Question),
		QuestionSource: result.QuestionSource,
		OptionLabel:    cleanText(result.OptionLabel),
		AllOptions:     opts,
	}
}
