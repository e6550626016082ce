// Package models defines the domain types shared across the rate limiter,
// quota manager, queue, and form-filling engine.
package models

import "fmt"

// ProfileValueKind tags the variant stored in a ProfileValue.
type ProfileValueKind int

const (
	ProfileValueString ProfileValueKind = iota
	ProfileValueStringList
	ProfileValueRecordList
)

// ProfileRecord is a nested profile entry such as one education or
// work_experience item.
type ProfileRecord map[string]string

// ProfileValue is a tagged sum type standing in for the source's
// heterogeneous profile map (scalar string, list of strings, or list of
// nested records).
type ProfileValue struct {
	Kind    ProfileValueKind
	Scalar  string
	List    []string
	Records []ProfileRecord
}

// NewScalar wraps a plain string value.
func NewScalar(s string) ProfileValue {
	return ProfileValue{Kind: ProfileValueString, Scalar: s}
}

// NewList wraps a list-of-strings value.
func NewList(items []string) ProfileValue {
	return ProfileValue{Kind: ProfileValueStringList, List: items}
}

// NewRecords wraps a list-of-records value (education, work_experience, projects).
func NewRecords(records []ProfileRecord) ProfileValue {
	return ProfileValue{Kind: ProfileValueRecordList, Records: records}
}

// ErrWrongKind is returned by the typed accessors when a caller asks for a
// shape the stored value doesn't have, instead of silently returning a zero
// value or nil sentinel.
type ErrWrongKind struct {
	Key      string
	Expected ProfileValueKind
	Actual   ProfileValueKind
}

func (e *ErrWrongKind) Error() string {
	return fmt.Sprintf("profile key %q: expected kind %d, got %d", e.Key, e.Expected, e.Actual)
}

// AsString returns the scalar form of the value, or an error if the value
// isn't a scalar.
func (v ProfileValue) AsString(key string) (string, error) {
	if v.Kind != ProfileValueString {
		return "", &ErrWrongKind{Key: key, Expected: ProfileValueString, Actual: v.Kind}
	}
	return v.Scalar, nil
}

// AsList returns the list-of-strings form of the value.
func (v ProfileValue) AsList(key string) ([]string, error) {
	if v.Kind != ProfileValueStringList {
		return nil, &ErrWrongKind{Key: key, Expected: ProfileValueStringList, Actual: v.Kind}
	}
	return v.List, nil
}

// AsRecords returns the list-of-records form of the value.
func (v ProfileValue) AsRecords(key string) ([]ProfileRecord, error) {
	if v.Kind != ProfileValueRecordList {
		return nil, &ErrWrongKind{Key: key, Expected: ProfileValueRecordList, Actual: v.Kind}
	}
	return v.Records, nil
}

// profileAliases maps canonical profile keys to their known space-separated
// alias form, per spec §6 ("some keys appear in both snake and space form").
var profileAliases = map[string]string{
	"first_name":         "first name",
	"last_name":          "last name",
	"zip_code":            "zip code",
	"state_code":          "state code",
	"country_code":        "country code",
	"date_of_birth":       "date of birth",
	"preferred_language":  "preferred language",
	"race_ethnicity":      "race ethnicity",
	"veteran_status":      "veteran status",
	"disability_status":   "disability status",
	"work_authorization":  "work authorization",
	"visa_status":         "visa status",
	"require_sponsorship": "require sponsorship",
	"programming_languages": "programming languages",
	"technical_skills":    "technical skills",
	"cover_letter":        "cover letter",
	"salary_expectation":  "salary expectation",
	"willing_to_relocate": "willing to relocate",
	"preferred_locations": "preferred locations",
	"referral_source":     "referral source",
	"years_experience":    "years experience",
	"current_title":       "current title",
	"current_company":     "current company",
}

// Profile is a read-only snapshot of a user's application profile, keyed by
// the canonical profile-key vocabulary from spec §6. A Profile MUST NOT be
// mutated during a fill session — callers that need derived values build a
// new map.
type Profile struct {
	values map[string]ProfileValue
}

// NewProfile builds a Profile from canonical-key values.
func NewProfile(values map[string]ProfileValue) *Profile {
	return &Profile{values: values}
}

// Get looks up a profile key, trying the canonical key and then its known
// space-separated alias.
func (p *Profile) Get(key string) (ProfileValue, bool) {
	if v, ok := p.values[key]; ok {
		return v, true
	}
	if alias, ok := profileAliases[key]; ok {
		if v, ok := p.values[alias]; ok {
			return v, true
		}
	}
	return ProfileValue{}, false
}

// GetString is a convenience accessor for scalar profile fields; returns
// ("", false) both when the key is absent and when it holds a non-scalar
// shape, since callers at the form-fill layer treat both as "no value".
func (p *Profile) GetString(key string) (string, bool) {
	v, ok := p.Get(key)
	if !ok || v.Kind != ProfileValueString {
		return "", false
	}
	return v.Scalar, true
}

// GetRecords is a convenience accessor for nested list fields
// (work_experience, education, projects).
func (p *Profile) GetRecords(key string) ([]ProfileRecord, bool) {
	v, ok := p.Get(key)
	if !ok || v.Kind != ProfileValueRecordList {
		return nil, false
	}
	return v.Records, true
}
