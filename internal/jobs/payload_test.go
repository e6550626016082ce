package jobs

import "testing"

func TestDecodeAndValidate_RejectsMalformedURL(t *testing.T) {
	var schema resumeTailoringPayload
	err := decodeAndValidate(map[string]interface{}{
		"original_resume_url": "not-a-url",
		"job_description":     "x",
	}, &schema)
	if err == nil {
		t.Fatal("expected validation error for malformed URL")
	}
}

func TestDecodeAndValidate_RejectsMissingRequiredField(t *testing.T) {
	var schema jobApplicationPayload
	err := decodeAndValidate(map[string]interface{}{
		"job_url": "https://example.com/job",
	}, &schema)
	if err == nil {
		t.Fatal("expected validation error for missing resume_url")
	}
}

func TestDecodeAndValidate_AcceptsValidPayload(t *testing.T) {
	var schema jobApplicationPayload
	err := decodeAndValidate(map[string]interface{}{
		"job_url":    "https://example.com/job",
		"resume_url": "https://example.com/resume.pdf",
	}, &schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.JobURL != "https://example.com/job" {
		t.Errorf("got %q", schema.JobURL)
	}
}

func TestDecodeAndValidate_RejectsOutOfRangeScore(t *testing.T) {
	var schema jobSearchPayload
	err := decodeAndValidate(map[string]interface{}{"min_relevance_score": 150}, &schema)
	if err == nil {
		t.Fatal("expected validation error for out-of-range score")
	}
}
