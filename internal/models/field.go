package models

// FieldCategory is the normalized kind of a form control, per the
// vocabulary enumerated in spec §6.
type FieldCategory string

const (
	CategoryTextInput               FieldCategory = "text_input"
	CategoryTextarea                FieldCategory = "textarea"
	CategoryCheckbox                FieldCategory = "checkbox"
	CategoryRadio                   FieldCategory = "radio"
	CategoryRadioGroup              FieldCategory = "radio_group"
	CategoryCheckboxGroup           FieldCategory = "checkbox_group"
	CategoryDropdown                FieldCategory = "dropdown"
	CategoryGreenhouseDropdown      FieldCategory = "greenhouse_dropdown"
	CategoryGreenhouseDropdownMulti FieldCategory = "greenhouse_dropdown_multi"
	CategoryWorkdayDropdown         FieldCategory = "workday_dropdown"
	CategoryWorkdayMultiselect      FieldCategory = "workday_multiselect"
	CategoryLeverDropdown           FieldCategory = "lever_dropdown"
	CategoryAshbyButtonGroup        FieldCategory = "ashby_button_group"
	CategoryFileUpload              FieldCategory = "file_upload"
	CategoryListbox                 FieldCategory = "listbox"
)

// IsDropdownLike reports whether the category is handled by a C8 ATS widget
// driver rather than a plain DOM primitive.
func (c FieldCategory) IsDropdownLike() bool {
	switch c {
	case CategoryDropdown, CategoryGreenhouseDropdown, CategoryGreenhouseDropdownMulti,
		CategoryWorkdayDropdown, CategoryWorkdayMultiselect, CategoryLeverDropdown, CategoryAshbyButtonGroup:
		return true
	}
	return false
}

// FieldOption is one member of a dropdown/radio/checkbox group.
type FieldOption struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	ElementID string `json:"element_id"`
	Handle    ElementHandle `json:"-"`
}

// ElementHandle is an opaque reference to a live DOM node. The production
// implementation (ChromedpElementHandle) wraps a chromedp execution context
// and a node selector; the StaticElementHandle used by goquery-backed tests
// wraps a *goquery.Selection. Both satisfy this interface so C7/C8/C9 can be
// exercised without a live browser.
type ElementHandle interface {
	// Selector returns a CSS selector usable to re-resolve this element.
	Selector() string
}

// FormField is the structure C9/C11 build per control, per §3. Fields are
// re-detected every loop iteration; only StableID is expected to persist
// across iterations.
type FormField struct {
	StableID             string
	Label                string
	FieldCategory        FieldCategory
	Handle               ElementHandle
	Name                 string
	ID                   string
	Placeholder          string
	AriaLabel            string
	Options              []FieldOption
	IndividualRadios     []FieldOption
	IndividualCheckboxes []FieldOption
	TagName              string
	InputType            string
	Required             bool
	FieldQuestion        string

	// Attributes carries the raw DOM attributes C8's vendor detection reads
	// (role, aria-haspopup, data-automation-id, class, data-testid) that
	// don't otherwise have a named slot on this struct.
	Attributes map[string]string
}

// Attr is a convenience accessor over Attributes, returning "" for an
// absent key instead of requiring a nil check at every call site.
func (f *FormField) Attr(name string) string {
	if f.Attributes == nil {
		return ""
	}
	return f.Attributes[name]
}

// MappingMethod identifies which tier of the three-tier mapping strategy
// produced a FieldMapping.
type MappingMethod string

const (
	MethodExact         MappingMethod = "exact"
	MethodPattern        MappingMethod = "pattern"
	MethodSemantic       MappingMethod = "semantic"
	MethodLearned        MappingMethod = "learned"
	MethodAI             MappingMethod = "ai"
	MethodTermsAutocheck MappingMethod = "terms_autocheck"
	MethodNeedsAI        MappingMethod = "needs_ai"
	MethodSkipped        MappingMethod = "skipped_already_filled"
)

// FieldMapping is the profile-key/value answer produced for one field by any
// tier of C5/C6/C10.
type FieldMapping struct {
	ProfileKey string
	Value      string
	Confidence float64
	Method     MappingMethod
}

// AttemptMethod enumerates the strategies tried against a field within one
// fill session, used by the AttemptTracker to govern phase progression.
type AttemptMethod string

const (
	AttemptDeterministic AttemptMethod = "deterministic"
	AttemptLearnedPattern AttemptMethod = "learned_pattern"
	AttemptAI             AttemptMethod = "ai"
)

// FieldCompletion tracks which stable ids have already been filled this
// session, preventing re-fills when the loop re-detects a static field.
type FieldCompletion struct {
	done map[string]bool
}

// NewFieldCompletion returns an empty tracker.
func NewFieldCompletion() *FieldCompletion {
	return &FieldCompletion{done: make(map[string]bool)}
}

func (f *FieldCompletion) IsDone(stableID string) bool { return f.done[stableID] }
func (f *FieldCompletion) MarkDone(stableID string)    { f.done[stableID] = true }

// AttemptTracker records, per stable id, which methods have been tried and
// which fields have been marked as requiring human input.
type AttemptTracker struct {
	tried      map[string]map[AttemptMethod]bool
	needsHuman map[string]bool
}

// NewAttemptTracker returns an empty tracker.
func NewAttemptTracker() *AttemptTracker {
	return &AttemptTracker{
		tried:      make(map[string]map[AttemptMethod]bool),
		needsHuman: make(map[string]bool),
	}
}

// HasTried reports whether a method was already attempted for a field.
func (t *AttemptTracker) HasTried(stableID string, method AttemptMethod) bool {
	return t.tried[stableID] != nil && t.tried[stableID][method]
}

// MarkTried records an attempt.
func (t *AttemptTracker) MarkTried(stableID string, method AttemptMethod) {
	if t.tried[stableID] == nil {
		t.tried[stableID] = make(map[AttemptMethod]bool)
	}
	t.tried[stableID][method] = true
}

// MarkNeedsHuman flags a field as terminal: never retried, job still succeeds.
func (t *AttemptTracker) MarkNeedsHuman(stableID string) { t.needsHuman[stableID] = true }

// NeedsHuman reports whether a field was flagged for human input.
func (t *AttemptTracker) NeedsHuman(stableID string) bool { return t.needsHuman[stableID] }

// FillOutcome is the result of C9's fill(field, value, profile) operation.
type FillOutcome struct {
	Success       bool
	Method        MappingMethod
	FinalValue    string
	Error         error
	Verification  bool
	TimeMillis    int64
}
