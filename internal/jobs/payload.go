package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var payloadValidator = validator.New()

// decodeAndValidate re-marshals a job's raw payload map into a typed schema
// and validates it with struct tags, so a malformed submission (a missing
// required field, a job_url that isn't a URL) is rejected before any
// handler-specific logic runs. This sits above the payload* helpers in
// base.go, which still do the permissive field-by-field extraction for
// values this layer doesn't pin down (optional fields, nested maps).
func decodeAndValidate(payload map[string]interface{}, dst interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jobs: encoding payload: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("jobs: payload does not match expected shape: %w", err)
	}
	if err := payloadValidator.Struct(dst); err != nil {
		return fmt.Errorf("jobs: payload validation failed: %w", err)
	}
	return nil
}

// resumeTailoringPayload pins down resume_tailoring's two required fields
// (spec §4.12, §6).
type resumeTailoringPayload struct {
	OriginalResumeURL string `json:"original_resume_url" validate:"required,url"`
	JobDescription    string `json:"job_description" validate:"required"`
}

// jobApplicationPayload pins down job_application's two required URLs.
type jobApplicationPayload struct {
	JobURL    string `json:"job_url" validate:"required,url"`
	ResumeURL string `json:"resume_url" validate:"required,url"`
}

// jobSearchPayload bounds the optional relevance threshold to a sane range.
type jobSearchPayload struct {
	MinRelevanceScore int `json:"min_relevance_score" validate:"gte=0,lte=100"`
}

// projectAnalysisPayload pins down project_analysis's one required field.
type projectAnalysisPayload struct {
	JobDescription string `json:"job_description" validate:"required"`
}
