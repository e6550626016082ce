package formfill

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/ternarybob/arbor"
)

const maxPageIterations = 5

// nextButtonRe/submitButtonRe implement §4.11's next-button heuristic:
// click the first visible control matching nextButtonRe that does NOT also
// match submitButtonRe. submitButtonRe is checked first and always wins,
// since accidentally submitting an incomplete application is far worse than
// missing a legitimate "next" button.
var nextButtonRe = regexp.MustCompile(`(?i)next|continue|proceed|save and continue|save\s*&\s*continue|save and next|next step|next page|→|>`)
var submitButtonRe = regexp.MustCompile(`(?i)submit|apply|send application|finish|complete application|review and submit|confirm and submit`)

// ChooseNextButton picks the first candidate button text that should be
// clicked to advance the application, or (_, false) if none qualifies. Pure
// and unit-testable independent of the chromedp click it drives.
func ChooseNextButton(buttonTexts []string) (string, bool) {
	for _, text := range buttonTexts {
		if submitButtonRe.MatchString(text) {
			continue
		}
		if nextButtonRe.MatchString(text) {
			return text, true
		}
	}
	return "", false
}

// FilledField is one (label, value) pair actually written to the page,
// tracked so the final review and any corrective pass can be grounded in
// what was really filled rather than a bare count.
type FilledField struct {
	Label string
	Value string
}

// PageResult summarizes one FillPage call's outcome for the caller's audit
// trail and final JobResult.
type PageResult struct {
	FieldsFilled       int
	FieldsNeedHuman    []string
	FilledFields       []FilledField
	ReviewApproved     bool
	ReviewIssues       []string
	CorrectionsApplied int
	Iterations         int
	NextButtonClicked  bool
}

// recordFilled upserts a (label, value) pair into result.FilledFields. An
// empty value removes the pair, matching the corrective pass's "empty
// corrected_value clears the field" rule from §4.11.
func recordFilled(result *PageResult, label, value string) {
	for i, ff := range result.FilledFields {
		if ff.Label != label {
			continue
		}
		if value == "" {
			result.FilledFields = append(result.FilledFields[:i], result.FilledFields[i+1:]...)
		} else {
			result.FilledFields[i].Value = value
		}
		return
	}
	if value != "" {
		result.FilledFields = append(result.FilledFields, FilledField{Label: label, Value: value})
	}
}

// buildFilledSummary renders the fields actually filled so far plus the
// candidate profile context into the block §4.11 requires the final review
// (and any corrective pass) to see, instead of a bare fields-filled count.
func buildFilledSummary(filled []FilledField, profile *models.Profile) string {
	var b strings.Builder
	b.WriteString("Filled fields:\n")
	for _, f := range filled {
		fmt.Fprintf(&b, "- %s: %s\n", f.Label, f.Value)
	}
	b.WriteString("\n")
	b.WriteString(renderProfileContext(profile))
	return b.String()
}

// Orchestrator implements C11: the per-page iteration loop that consolidates
// C4-C10 into one fill pass, then runs the final LLM review and the
// next-button heuristic.
type Orchestrator struct {
	detector     FieldDetector
	extractor    QuestionExtractor
	deterministic *DeterministicMapper
	learned      *LearnedMapper
	ai           *LLMFieldMapper
	interactor   *Interactor
	logger       arbor.ILogger
}

// NewOrchestrator wires the full C4-C11 pipeline.
func NewOrchestrator(detector FieldDetector, extractor QuestionExtractor, deterministic *DeterministicMapper, learned *LearnedMapper, ai *LLMFieldMapper, interactor *Interactor, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		detector:     detector,
		extractor:    extractor,
		deterministic: deterministic,
		learned:      learned,
		ai:           ai,
		interactor:   interactor,
		logger:       logger,
	}
}

// isCleanCandidate drops fields per §4.11 step 4: no label and no stable id,
// listbox role/category, or a field explicitly marked disabled/hidden via
// its raw attributes.
func isCleanCandidate(f *models.FormField) bool {
	if f.Label == "" && f.StableID == "" {
		return false
	}
	if f.FieldCategory == models.CategoryListbox {
		return false
	}
	if _, disabled := f.Attributes["disabled"]; disabled {
		return false
	}
	if f.Attributes["aria-hidden"] == "true" {
		return false
	}
	return true
}

// FillPage runs the iteration loop against whatever page the detector's
// underlying context is currently pointed at, then the final review and
// next-button step, for userID/profile/resumePath. priority is forwarded to
// every LLM call this page triggers so C10's quota reservations reflect the
// originating job's priority (spec §4.2's headroom rule).
func (o *Orchestrator) FillPage(ctx context.Context, userID string, priority models.JobPriority, profile *models.Profile, resumePath string) (*PageResult, error) {
	completion := models.NewFieldCompletion()
	attempts := models.NewAttemptTracker()
	result := &PageResult{}

	for iteration := 0; iteration < maxPageIterations; iteration++ {
		result.Iterations = iteration + 1

		if iteration == 0 && resumePath != "" {
			if err := o.attemptResumeUpload(ctx, resumePath); err != nil {
				o.logger.Warn().Err(err).Msg("resume upload failed, continuing without it")
			}
		}

		fields, err := o.detector.DetectFields(ctx)
		if err != nil {
			return result, fmt.Errorf("formfill: detecting fields: %w", err)
		}

		candidates := make([]*models.FormField, 0, len(fields))
		for _, f := range fields {
			if !isCleanCandidate(f) || completion.IsDone(f.StableID) {
				continue
			}
			candidates = append(candidates, f)
		}
		if len(candidates) == 0 {
			break
		}

		remaining := o.runDeterministicPhase(ctx, candidates, profile, completion, attempts, result)
		remaining = o.runLearnedPhase(ctx, userID, remaining, profile, completion, attempts, result)
		o.runAIPhase(ctx, userID, priority, remaining, profile, completion, attempts, result)

		time.Sleep(1 * time.Second)
	}

	o.runFinalReview(ctx, userID, priority, profile, result)
	o.clickNextButton(ctx, result)
	return result, nil
}

func (o *Orchestrator) runDeterministicPhase(ctx context.Context, fields []*models.FormField, profile *models.Profile, completion *models.FieldCompletion, attempts *models.AttemptTracker, result *PageResult) []*models.FormField {
	var remaining []*models.FormField
	for _, f := range fields {
		if attempts.HasTried(f.StableID, models.AttemptDeterministic) {
			remaining = append(remaining, f)
			continue
		}
		attempts.MarkTried(f.StableID, models.AttemptDeterministic)

		mapping := o.deterministic.MapField(f.Label, f.FieldCategory, profile)
		if mapping.Method == models.MethodNeedsAI {
			remaining = append(remaining, f)
			continue
		}
		cleaned := Clean(mapping.Value, f.Label, f.FieldCategory)
		if cleaned == "" {
			remaining = append(remaining, f)
			continue
		}
		outcome := o.interactor.Fill(ctx, f, cleaned, mapping.Method)
		if outcome.Success {
			completion.MarkDone(f.StableID)
			result.FieldsFilled++
			recordFilled(result, f.Label, cleaned)
		} else {
			remaining = append(remaining, f)
		}
	}
	return remaining
}

func (o *Orchestrator) runLearnedPhase(ctx context.Context, userID string, fields []*models.FormField, profile *models.Profile, completion *models.FieldCompletion, attempts *models.AttemptTracker, result *PageResult) []*models.FormField {
	var remaining []*models.FormField
	for _, f := range fields {
		if o.learned == nil || attempts.HasTried(f.StableID, models.AttemptLearnedPattern) {
			remaining = append(remaining, f)
			continue
		}
		attempts.MarkTried(f.StableID, models.AttemptLearnedPattern)

		pattern, ok := o.learned.Lookup(ctx, userID, f.Label, f.FieldCategory)
		if !ok {
			remaining = append(remaining, f)
			continue
		}
		value, ok := profile.GetString(pattern.ProfileField)
		if !ok || value == "" {
			remaining = append(remaining, f)
			continue
		}
		cleaned := Clean(value, f.Label, f.FieldCategory)
		if cleaned == "" {
			remaining = append(remaining, f)
			continue
		}
		outcome := o.interactor.Fill(ctx, f, cleaned, models.MethodLearned)
		if outcome.Success {
			completion.MarkDone(f.StableID)
			result.FieldsFilled++
			recordFilled(result, f.Label, cleaned)
			_ = o.learned.RecordSuccess(ctx, userID, f.Label, f.FieldCategory, pattern.ProfileField)
		} else {
			_ = o.learned.RecordFailure(ctx, userID, f.Label, f.FieldCategory, pattern.ProfileField)
			remaining = append(remaining, f)
		}
	}
	return remaining
}

func (o *Orchestrator) runAIPhase(ctx context.Context, userID string, priority models.JobPriority, fields []*models.FormField, profile *models.Profile, completion *models.FieldCompletion, attempts *models.AttemptTracker, result *PageResult) {
	if o.ai == nil || len(fields) == 0 {
		return
	}
	var batch []*models.FormField
	for _, f := range fields {
		if attempts.HasTried(f.StableID, models.AttemptAI) {
			continue
		}
		attempts.MarkTried(f.StableID, models.AttemptAI)
		batch = append(batch, f)
	}
	if len(batch) == 0 {
		return
	}

	classifications, err := o.ai.ClassifyBatch(ctx, userID, priority, batch, profile)
	if err != nil {
		o.logger.Warn().Err(err).Msg("ai batch classification failed")
		return
	}
	byID := make(map[string]*models.FormField, len(batch))
	for _, f := range batch {
		byID[f.StableID] = f
	}

	for _, c := range classifications {
		f, ok := byID[c.StableID]
		if !ok {
			continue
		}
		switch c.Classification {
		case ClassNeedsHumanInput:
			attempts.MarkNeedsHuman(f.StableID)
			result.FieldsNeedHuman = append(result.FieldsNeedHuman, f.Label)
			continue
		case ClassManual:
			text, err := o.ai.GenerateManualText(ctx, userID, priority, f, profile)
			if err != nil || text == "" {
				attempts.MarkNeedsHuman(f.StableID)
				result.FieldsNeedHuman = append(result.FieldsNeedHuman, f.Label)
				continue
			}
			if flagged, reason := DetectHallucination(text); flagged {
				o.logger.Warn().Str("field", f.Label).Str("reason", reason).Msg("discarding hallucinated manual answer")
				attempts.MarkNeedsHuman(f.StableID)
				result.FieldsNeedHuman = append(result.FieldsNeedHuman, f.Label)
				continue
			}
			o.applyAIValue(ctx, f, text, completion, result)
		default:
			value := Clean(c.Value, f.Label, f.FieldCategory)
			if value == "" {
				attempts.MarkNeedsHuman(f.StableID)
				result.FieldsNeedHuman = append(result.FieldsNeedHuman, f.Label)
				continue
			}
			if flagged, reason := DetectHallucination(value); flagged {
				o.logger.Warn().Str("field", f.Label).Str("reason", reason).Msg("discarding hallucinated AI value")
				attempts.MarkNeedsHuman(f.StableID)
				result.FieldsNeedHuman = append(result.FieldsNeedHuman, f.Label)
				continue
			}
			o.applyAIValue(ctx, f, value, completion, result)
		}
	}
}

func (o *Orchestrator) applyAIValue(ctx context.Context, f *models.FormField, value string, completion *models.FieldCompletion, result *PageResult) {
	outcome := o.interactor.Fill(ctx, f, value, models.MethodAI)
	if outcome.Success {
		completion.MarkDone(f.StableID)
		result.FieldsFilled++
		recordFilled(result, f.Label, value)
	} else {
		result.FieldsNeedHuman = append(result.FieldsNeedHuman, f.Label)
	}
}

func (o *Orchestrator) attemptResumeUpload(ctx context.Context, resumePath string) error {
	fields, err := o.detector.DetectFields(ctx)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.FieldCategory != models.CategoryFileUpload {
			continue
		}
		outcome := o.interactor.Fill(ctx, f, resumePath, models.MethodExact)
		if outcome.Success {
			return nil
		}
	}
	return fmt.Errorf("no file upload control found")
}

// runFinalReview implements §4.11's post-loop review: feed the (label,
// value) pairs actually filled plus the profile context to the model, and if
// it doesn't approve, request structured corrections, apply them, and
// re-review exactly once more.
func (o *Orchestrator) runFinalReview(ctx context.Context, userID string, priority models.JobPriority, profile *models.Profile, result *PageResult) {
	if o.ai == nil {
		result.ReviewApproved = true
		return
	}

	summary := buildFilledSummary(result.FilledFields, profile)
	review, err := o.ai.RunFinalReview(ctx, userID, priority, summary)
	if err != nil {
		o.logger.Warn().Err(err).Msg("final review call failed, proceeding without it")
		result.ReviewApproved = true
		return
	}
	result.ReviewApproved = review.Approved
	result.ReviewIssues = review.Issues

	if review.Approved || len(review.Issues) == 0 {
		return
	}

	corrections, err := o.ai.RequestCorrections(ctx, userID, priority, summary, review.Issues)
	if err != nil {
		o.logger.Warn().Err(err).Msg("corrections call failed, leaving final review findings as-is")
		return
	}
	if len(corrections) == 0 {
		return
	}
	o.applyCorrections(ctx, corrections, result)

	summary = buildFilledSummary(result.FilledFields, profile)
	review, err = o.ai.RunFinalReview(ctx, userID, priority, summary)
	if err != nil {
		o.logger.Warn().Err(err).Msg("re-review after corrections failed, keeping prior review result")
		return
	}
	result.ReviewApproved = review.Approved
	result.ReviewIssues = review.Issues
}

// applyCorrections re-detects the page's current fields and writes each
// correction's value onto the field matching its FieldName, clearing the
// field when CorrectedValue is empty. Fields are re-detected rather than
// reused from the fill loop since corrections run after the loop has
// finished iterating and the DOM may have settled further.
func (o *Orchestrator) applyCorrections(ctx context.Context, corrections []Correction, result *PageResult) {
	fields, err := o.detector.DetectFields(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("re-detecting fields for corrections failed")
		return
	}
	byLabel := make(map[string]*models.FormField, len(fields))
	for _, f := range fields {
		byLabel[f.Label] = f
	}

	for _, c := range corrections {
		f, ok := byLabel[c.FieldName]
		if !ok {
			o.logger.Warn().Str("field", c.FieldName).Msg("correction targets a field no longer on the page")
			continue
		}
		outcome := o.interactor.Fill(ctx, f, c.CorrectedValue, models.MethodAI)
		if !outcome.Success {
			o.logger.Warn().Str("field", c.FieldName).Str("reason", c.Reason).Msg("failed to apply correction")
			continue
		}
		result.CorrectionsApplied++
		recordFilled(result, f.Label, c.CorrectedValue)
	}
}

const listButtonTextsJS = `
() => {
  const els = document.querySelectorAll('button, a[role="button"], input[type="submit"], input[type="button"]');
  const out = [];
  for (const el of els) {
    const rect = el.getBoundingClientRect();
    if (rect.width === 0 || rect.height === 0) continue;
    const text = (el.textContent || el.value || '').trim();
    if (text) out.push(text);
  }
  return out;
}
`

func (o *Orchestrator) clickNextButton(ctx context.Context, result *PageResult) {
	buttonTexts, err := o.listVisibleButtonTexts(ctx)
	if err != nil || len(buttonTexts) == 0 {
		return
	}
	chosen, ok := ChooseNextButton(buttonTexts)
	if !ok {
		return
	}
	if err := o.clickButtonByText(ctx, chosen); err != nil {
		o.logger.Warn().Err(err).Str("button", chosen).Msg("failed to click next button")
		return
	}
	result.NextButtonClicked = true
}

func (o *Orchestrator) listVisibleButtonTexts(ctx context.Context) ([]string, error) {
	var texts []string
	if err := chromedp.Run(ctx, chromedp.Evaluate("("+listButtonTextsJS+")()", &texts)); err != nil {
		return nil, fmt.Errorf("formfill: listing buttons: %w", err)
	}
	return texts, nil
}

const clickButtonByTextJS = `
(wanted) => {
  const els = document.querySelectorAll('button, a[role="button"], input[type="submit"], input[type="button"]');
  for (const el of els) {
    const text = (el.textContent || el.value || '').trim();
    if (text === wanted) { el.click(); return true; }
  }
  return false;
}
`

func (o *Orchestrator) clickButtonByText(ctx context.Context, text string) error {
	var clicked bool
	expr := fmt.Sprintf("(%s)(%q)", clickButtonByTextJS, text)
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("button %q not found", text)
	}
	return nil
}
