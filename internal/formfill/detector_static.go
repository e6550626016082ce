package formfill

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jobforge/orchestrator/internal/models"
)

// StaticDetector walks a parsed HTML fixture with the same field-detection
// logic ChromedpDetector runs against a live page, so C8/C11's
// classification and stable-id logic are exercised in table-driven tests
// without a browser.
type StaticDetector struct {
	doc *goquery.Document
}

// NewStaticDetector wraps a parsed document.
func NewStaticDetector(doc *goquery.Document) *StaticDetector {
	return &StaticDetector{doc: doc}
}

func nodeAttrs(s *goquery.Selection) map[string]string {
	attrs := make(map[string]string)
	if len(s.Nodes) == 0 {
		return attrs
	}
	for _, a := range s.Nodes[0].Attr {
		attrs[a.Key] = a.Val
	}
	return attrs
}

func staticLabelText(doc *goquery.Document, s *goquery.Selection, id string) string {
	if id != "" {
		if label := doc.Find(fmt.Sprintf("label[for=%q]", id)); label.Length() > 0 {
			return cleanText(label.First().Text())
		}
	}
	if parent := s.Parent(); parent.Length() > 0 && goquery.NodeName(parent) == "label" {
		return cleanText(parent.Text())
	}
	attrs := nodeAttrs(s)
	if v := attrs["aria-label"]; v != "" {
		return v
	}
	return attrs["placeholder"]
}

func (d *StaticDetector) DetectFields(ctx context.Context) ([]*models.FormField, error) {
	fields := make([]*models.FormField, 0)
	selector := `input, select, textarea, [role="combobox"], [role="button"][data-testid], [role="listbox"]`

	d.doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		tagName := goquery.NodeName(s)
		attrs := nodeAttrs(s)
		id := attrs["id"]
		name := attrs["name"]
		inputType := attrs["type"]
		label := staticLabelText(d.doc, s, id)

		selectorExpr := ""
		switch {
		case id != "":
			selectorExpr = "#" + id
		case name != "":
			selectorExpr = fmt.Sprintf("%s[name=%q]", tagName, name)
		default:
			selectorExpr = fmt.Sprintf("%s:nth-of-type(%d)", tagName, i+1)
		}

		_, required := attrs["required"]
		if attrs["aria-required"] == "true" {
			required = true
		}

		category := ClassifyCategory(tagName, inputType, attrs)
		fields = append(fields, &models.FormField{
			StableID:      StableID(tagName, id, name, label),
			Label:         strings.TrimSpace(label),
			FieldCategory: category,
			Handle:        NewStaticElementHandle(selectorExpr),
			Name:          name,
			ID:            id,
			AriaLabel:     attrs["aria-label"],
			Placeholder:   attrs["placeholder"],
			TagName:       tagName,
			InputType:     inputType,
			Required:      required,
			Attributes:    attrs,
		})
	})

	return fields, nil
}
