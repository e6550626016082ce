package models

import "fmt"

// FieldErrorKind enumerates the error taxonomy from spec §7. Per §9's design
// note, these replace the source's mixed typed-exception/broad-catch style
// with a single sum type.
type FieldErrorKind string

const (
	ErrKindFieldTimeout       FieldErrorKind = "field_timeout_exceeded"
	ErrKindDropdownInteraction FieldErrorKind = "dropdown_interaction_error"
	ErrKindVerificationFailed FieldErrorKind = "verification_failure"
	ErrKindRequiresHuman      FieldErrorKind = "requires_human_input"
	ErrKindElementStale       FieldErrorKind = "element_stale"
	ErrKindBrowserFatal       FieldErrorKind = "browser_fatal"
)

// FieldError is the single sum type for form-fill failures (§9). Kinds that
// are recoverable at the orchestrator level (timeout, dropdown interaction,
// verification, element-stale) are caught by C11 and drive phase escalation;
// RequiresHuman is terminal for that field only; BrowserFatal propagates to
// fail the whole job.
type FieldError struct {
	Kind       FieldErrorKind
	FieldLabel string
	Details    string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", e.Kind, e.FieldLabel, e.Details)
}

// IsRecoverable reports whether C11 should escalate to the next mapping
// phase rather than fail the field permanently or the job outright.
func (e *FieldError) IsRecoverable() bool {
	switch e.Kind {
	case ErrKindFieldTimeout, ErrKindDropdownInteraction, ErrKindVerificationFailed, ErrKindElementStale:
		return true
	}
	return false
}

// LimitDeniedError is returned when a rate limit (C1) or quota (C2) check
// fails admission.
type LimitDeniedError struct {
	LimitName  string
	RetryAfter float64 // seconds
}

func (e *LimitDeniedError) Error() string {
	return fmt.Sprintf("limit %q exceeded: try again in %.0f seconds", e.LimitName, e.RetryAfter)
}

// QuotaExceededError is returned by C2 when reservation would exceed the
// per-minute/per-day Gemini budget.
type QuotaExceededError struct {
	Reason string
}

func (e *QuotaExceededError) Error() string {
	return "gemini quota exceeded: " + e.Reason
}
