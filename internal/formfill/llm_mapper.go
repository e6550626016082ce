package formfill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/quota"
	"github.com/ternarybob/arbor"
)

// AIClassification is the response-line grammar C10's batch prompt asks the
// model to answer in, one line per field.
type AIClassification string

const (
	ClassSimple             AIClassification = "SIMPLE"
	ClassDropdown           AIClassification = "DROPDOWN"
	ClassMultiselect        AIClassification = "MULTISELECT"
	ClassMultiselectSkills  AIClassification = "MULTISELECT_SKILLS"
	ClassManual             AIClassification = "MANUAL"
	ClassNeedsHumanInput    AIClassification = "NEEDS_HUMAN_INPUT"
)

// AIFieldResult is one parsed line of a batch classification response.
type AIFieldResult struct {
	StableID       string
	Classification AIClassification
	Value          string
}

const (
	manualTextareaCharCap = 1000
	manualTextInputCap    = 300
)

// LLMFieldMapper implements C10: a single batched classification call
// covering every field the deterministic and learned tiers couldn't answer,
// followed by a per-field manual-generation call only for fields classified
// MANUAL.
type LLMFieldMapper struct {
	quota  *quota.Manager
	logger arbor.ILogger
}

// NewLLMFieldMapper builds an LLMFieldMapper over an already-constructed
// quota Manager, so every call it makes is reservation-gated.
func NewLLMFieldMapper(q *quota.Manager, logger arbor.ILogger) *LLMFieldMapper {
	return &LLMFieldMapper{quota: q, logger: logger}
}

// profileContextFields lists the canonical profile keys rendered into every
// batch prompt, in the order a human reading the block would expect: identity
// first, then background, then the authorization questions that show up on
// nearly every ATS form.
var profileContextFields = []string{
	"first_name", "last_name", "email", "phone",
	"current_title", "current_company", "years_experience",
	"technical_skills", "programming_languages",
	"nationality", "race_ethnicity",
	"work_authorization", "require_sponsorship", "visa_status",
	"willing_to_relocate", "preferred_locations", "salary_expectation",
	"veteran_status", "disability_status",
}

// renderProfileContext turns the candidate profile into the structured text
// block §4.10 requires every batch prompt to carry, so the model can use
// profile data instead of defaulting to "prefer not to say" when a value
// exists. Absent race_ethnicity is flagged for inference from nationality
// per the MUST rule, rather than left out of the block silently.
func renderProfileContext(profile *models.Profile) string {
	if profile == nil {
		return "Candidate profile: (none provided)"
	}

	var b strings.Builder
	b.WriteString("Candidate profile:\n")
	_, hasEthnicity := profile.GetString("race_ethnicity")
	for _, key := range profileContextFields {
		v, ok := profile.GetString(key)
		if !ok || v == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", key, v)
	}
	if !hasEthnicity {
		if nationality, ok := profile.GetString("nationality"); ok && nationality != "" {
			fmt.Fprintf(&b, "- race_ethnicity: not given; infer from nationality (%s) and answer hispanic-or-not accordingly\n", nationality)
		}
	}
	if education, ok := profile.GetRecords("education"); ok {
		for _, rec := range education {
			fmt.Fprintf(&b, "- education: %s, %s, ends %s\n", rec["degree"], rec["institution"], rec["end_date"])
		}
	}
	if skills, ok := profile.Get("technical_skills"); ok && skills.Kind == models.ProfileValueStringList {
		fmt.Fprintf(&b, "- technical_skills (list): %s\n", strings.Join(skills.List, ", "))
	}
	return b.String()
}

// BuildBatchPrompt renders the fields needing AI classification into a
// single prompt, one line per field keyed by its stable id plus the full profile
// context, so one round trip classifies the whole remaining set instead of
// one call per field.
func BuildBatchPrompt(fields []*models.FormField, profile *models.Profile) (systemPrompt, userPrompt string) {
	systemPrompt = "You are completing a job application form on behalf of a candidate. " +
		"For each numbered field below, respond on its own line in the exact format " +
		"\"<stable_id>|<CLASSIFICATION>|<value>\" where CLASSIFICATION is one of " +
		"SIMPLE, DROPDOWN, MULTISELECT, MULTISELECT_SKILLS, MANUAL, or NEEDS_HUMAN_INPUT. " +
		"Use MANUAL only when the field expects free-form prose you cannot answer in one line. " +
		"Use NEEDS_HUMAN_INPUT when no reasonable answer exists from the candidate's profile. " +
		"Use the candidate profile below whenever it has a relevant value; never answer " +
		"\"prefer not to say\" when the profile already has the data."

	var b strings.Builder
	b.WriteString(renderProfileContext(profile))
	b.WriteString("\nFields:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: label=%q category=%s", f.StableID, f.Label, f.FieldCategory)
		if len(f.Options) > 0 {
			opts := make([]string, 0, len(f.Options))
			for _, o := range f.Options {
				opts = append(opts, o.Label)
			}
			fmt.Fprintf(&b, " options=[%s]", strings.Join(opts, ", "))
		}
		b.WriteString("\n")
	}
	userPrompt = b.String()
	return systemPrompt, userPrompt
}

// ParseBatchResponse parses the pipe-delimited response grammar into
// AIFieldResult values, skipping malformed lines rather than failing the
// whole batch over one bad line.
func ParseBatchResponse(raw string) []AIFieldResult {
	var results []AIFieldResult
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) < 2 {
			continue
		}
		stableID := strings.TrimSpace(parts[0])
		classification := AIClassification(strings.ToUpper(strings.TrimSpace(parts[1])))
		value := ""
		if len(parts) == 3 {
			value = strings.TrimSpace(parts[2])
		}
		switch classification {
		case ClassSimple, ClassDropdown, ClassMultiselect, ClassMultiselectSkills, ClassManual, ClassNeedsHumanInput:
		default:
			continue
		}
		results = append(results, AIFieldResult{StableID: stableID, Classification: classification, Value: value})
	}
	return results
}

// ClassifyBatch runs the batch classification call and parses its response.
// userID/priority are forwarded to the quota manager so the call is
// reservation-gated like every other Gemini request in the system.
func (m *LLMFieldMapper) ClassifyBatch(ctx context.Context, userID string, priority models.JobPriority, fields []*models.FormField, profile *models.Profile) ([]AIFieldResult, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	systemPrompt, userPrompt := BuildBatchPrompt(fields, profile)
	raw, err := m.quota.InvokeBatchGuarded(ctx, userID, priority, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("formfill: batch classification call: %w", err)
	}
	return ParseBatchResponse(raw), nil
}

// manualCharCap picks the length cap per §4.10's distinction between a
// single-line manual answer and a full textarea response.
func manualCharCap(category models.FieldCategory) int {
	if category == models.CategoryTextarea {
		return manualTextareaCharCap
	}
	return manualTextInputCap
}

func truncateToLimit(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit])
}

// GenerateManualText performs the follow-up free-text generation call for a
// field classified MANUAL, capping the result to the field's character
// budget.
func (m *LLMFieldMapper) GenerateManualText(ctx context.Context, userID string, priority models.JobPriority, field *models.FormField, profile *models.Profile) (string, error) {
	systemPrompt := "You are writing a short, specific answer to a job application question on behalf of a candidate, using only the facts given. Do not invent employers, dates, or achievements."
	userPrompt := fmt.Sprintf("Question: %s\nCandidate summary: %s", field.Label, profileSummary(profile))

	raw, err := m.quota.InvokeGuarded(ctx, userID, priority, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("formfill: manual generation call: %w", err)
	}
	return truncateToLimit(cleanText(raw), manualCharCap(field.FieldCategory)), nil
}

func profileSummary(profile *models.Profile) string {
	var parts []string
	for _, key := range []string{"current_title", "current_company", "years_experience", "technical_skills"} {
		if v, ok := profile.GetString(key); ok && v != "" {
			parts = append(parts, key+": "+v)
		}
	}
	return strings.Join(parts, "; ")
}

// ReviewResult is the final-review JSON contract: {"approved": bool,
// "issues": [...], "confidence": float}.
type ReviewResult struct {
	Approved   bool     `json:"approved"`
	Issues     []string `json:"issues"`
	Confidence float64  `json:"confidence"`
}

// Correction is one entry of the corrective pass's JSON contract.
type Correction struct {
	FieldName      string `json:"field_name"`
	CurrentValue   string `json:"current_value"`
	CorrectedValue string `json:"corrected_value"`
	Reason         string `json:"reason"`
}

// ParseReviewResult decodes the final-review JSON response, tolerating a
// response wrapped in a markdown code fence since models frequently add one
// despite being asked not to.
func ParseReviewResult(raw string) (ReviewResult, error) {
	var result ReviewResult
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		return ReviewResult{}, fmt.Errorf("formfill: parsing review result: %w", err)
	}
	return result, nil
}

// ParseCorrections decodes a JSON array of Correction entries.
func ParseCorrections(raw string) ([]Correction, error) {
	var corrections []Correction
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &corrections); err != nil {
		return nil, fmt.Errorf("formfill: parsing corrections: %w", err)
	}
	return corrections, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// RunFinalReview performs the end-of-page LLM review call over the (label,
// value) pairs actually filled plus the profile context, per §4.11.
func (m *LLMFieldMapper) RunFinalReview(ctx context.Context, userID string, priority models.JobPriority, filledSummary string) (ReviewResult, error) {
	systemPrompt := "Review the filled job application answers below for obvious mistakes, placeholder text, or mismatched fields. " +
		"Respond with exactly one JSON object: {\"approved\": bool, \"issues\": [string], \"confidence\": number between 0 and 1}."
	raw, err := m.quota.InvokeGuarded(ctx, userID, priority, systemPrompt, filledSummary)
	if err != nil {
		return ReviewResult{}, fmt.Errorf("formfill: final review call: %w", err)
	}
	return ParseReviewResult(raw)
}

// RequestCorrections asks for structured fixes to the issues RunFinalReview
// raised, per §4.11's "request structured corrections ... and apply them"
// step. filledSummary should be the same (label, value) + profile context
// block passed to RunFinalReview so the model corrects in place rather than
// guessing at field names with no context.
func (m *LLMFieldMapper) RequestCorrections(ctx context.Context, userID string, priority models.JobPriority, filledSummary string, issues []string) ([]Correction, error) {
	systemPrompt := "The filled job application answers below were flagged with issues. Respond with exactly one JSON array of " +
		"corrections, each {\"field_name\": string, \"current_value\": string, \"corrected_value\": string, \"reason\": string}. " +
		"Use an empty corrected_value to clear a field that should not have been filled at all."
	userPrompt := fmt.Sprintf("Issues: %s\n\n%s", strings.Join(issues, "; "), filledSummary)
	raw, err := m.quota.InvokeGuarded(ctx, userID, priority, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("formfill: corrections call: %w", err)
	}
	return ParseCorrections(raw)
}
