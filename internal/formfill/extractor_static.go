package formfill

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/jobforge/orchestrator/internal/models"
)

// StaticExtractor runs a subset of ChromedpExtractor's question-finding
// heuristics (label-for, fieldset legend, aria attributes, placeholder and
// preceding sibling) against a parsed goquery document, so C7's logic is
// exercised in table-driven tests against HTML fixtures instead of a live
// browser. The remaining fallbacks of the live walker are not implemented
// here.
type StaticExtractor struct {
	doc *goquery.Document
}

// NewStaticExtractor wraps a parsed document. field.Handle must be a
// StaticElementHandle whose selector resolves within doc.
func NewStaticExtractor(doc *goquery.Document) *StaticExtractor {
	return &StaticExtractor{doc: doc}
}

func (e *StaticExtractor) ExtractQuestion(ctx context.Context, field *models.FormField) (QuestionContext, error) {
	if field.Handle == nil {
		return QuestionContext{}, fmt.Errorf("formfill: field %q has no element handle", field.StableID)
	}
	sel := e.doc.Find(field.Handle.Selector())
	if sel.Length() == 0 {
		return QuestionContext{QuestionSource: "not_found"}, nil
	}

	switch string(field.FieldCategory) {
	case string(models.CategoryRadio), string(models.CategoryRadioGroup):
		return e.extractRadioQuestion(sel, field), nil
	case string(models.CategoryDropdown):
		return e.extractDropdownQuestion(sel), nil
	default:
		return e.extractTextQuestion(sel), nil
	}
}

func (e *StaticExtractor) labelFor(id string) string {
	if id == "" {
		return ""
	}
	label := e.doc.Find(fmt.Sprintf("label[for=%q]", id))
	if label.Length() == 0 {
		return ""
	}
	return cleanText(label.First().Text())
}

func (e *StaticExtractor) extractRadioQuestion(sel *goquery.Selection, field *models.FormField) QuestionContext {
	id, _ := sel.Attr("id")
	optionLabel := e.labelFor(id)
	if optionLabel == "" {
		if parent := sel.Parent(); parent.Length() > 0 && goquery.NodeName(parent) == "label" {
			optionLabel = cleanText(parent.Text())
		}
	}
	if optionLabel == "" {
		optionLabel, _ = sel.Attr("aria-label")
	}

	var question, source string
	fieldset := sel.Closest("fieldset")
	if fieldset.Length() > 0 {
		if legend := fieldset.Find("legend"); legend.Length() > 0 {
			question = cleanText(legend.First().Text())
			source = "fieldset_legend"
		}
	}
	if question == "" {
		if prev := sel.Prev(); prev.Length() > 0 {
			text := cleanText(prev.Text())
			if looksLikeQuestion(text) && text != optionLabel {
				question, source = text, "preceding_sibling"
			}
		}
	}

	var allOptions []models.FieldOption
	name, _ := sel.Attr("name")
	if name != "" {
		e.doc.Find(fmt.Sprintf(`input[type="radio"][name=%q]`, name)).Each(func(_ int, radio *goquery.Selection) {
			rid, _ := radio.Attr("id")
			label := e.labelFor(rid)
			if label == "" {
				label, _ = radio.Attr("aria-label")
			}
			if label == "" {
				label, _ = radio.Attr("value")
			}
			value, _ := radio.Attr("value")
			if label != "" {
				allOptions = append(allOptions, models.FieldOption{Label: label, Value: value, ElementID: rid})
			}
		})
	}

	return QuestionContext{Question: question, QuestionSource: source, OptionLabel: optionLabel, AllOptions: allOptions}
}

func (e *StaticExtractor) extractDropdownQuestion(sel *goquery.Selection) QuestionContext {
	id, _ := sel.Attr("id")
	if q := e.labelFor(id); q != "" {
		return QuestionContext{Question: q, QuestionSource: "label_for"}
	}
	if labelledBy, ok := sel.Attr("aria-labelledby"); ok {
		if target := e.doc.Find("#" + labelledBy); target.Length() > 0 {
			return QuestionContext{Question: cleanText(target.Text()), QuestionSource: "aria_labelledby"}
		}
	}
	if ariaLabel, ok := sel.Attr("aria-label"); ok && ariaLabel != "" {
		return QuestionContext{Question: ariaLabel, QuestionSource: "aria_label"}
	}
	if prev := sel.Prev(); prev.Length() > 0 {
		if text := cleanText(prev.Text()); text != "" {
			return QuestionContext{Question: text, QuestionSource: "preceding_sibling"}
		}
	}
	return QuestionContext{}
}

func (e *StaticExtractor) extractTextQuestion(sel *goquery.Selection) QuestionContext {
	id, _ := sel.Attr("id")
	if q := e.labelFor(id); q != "" {
		return QuestionContext{Question: q, QuestionSource: "label_for"}
	}
	if ariaLabel, ok := sel.Attr("aria-label"); ok && ariaLabel != "" {
		return QuestionContext{Question: ariaLabel, QuestionSource: "aria_label"}
	}
	if placeholder, ok := sel.Attr("placeholder"); ok && placeholder != "" {
		return QuestionContext{Question: placeholder, QuestionSource: "placeholder"}
	}
	return QuestionContext{}
}
