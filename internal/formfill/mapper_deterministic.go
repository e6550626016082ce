// Package formfill implements C4-C11: field value cleaning, the three-tier
// mapping strategy (deterministic, learned, AI), question extraction, ATS
// widget drivers, the field interactor, and the per-page orchestrator.
package formfill

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jobforge/orchestrator/internal/models"
)

// DeterministicMapper maps form fields to profile data using lookup tables
// and semantic inference, without any AI call — ported field-for-field from
// deterministic_field_mapper.py, including its exact-match table, pattern
// table, dropdown-value mappings, and the five semantic inference rules.
type DeterministicMapper struct {
	exact    map[string][]string
	patterns map[string][]*regexp.Regexp
	dropdown map[string]map[string][]string
}

// NewDeterministicMapper builds a mapper with the tables below.
func NewDeterministicMapper() *DeterministicMapper {
	return &DeterministicMapper{
		exact:    buildExactMatchTable(),
		patterns: buildPatternMatchTable(),
		dropdown: buildDropdownMappings(),
	}
}

func buildExactMatchTable() map[string][]string {
	return map[string][]string{
		"first_name":  {"first name", "fname", "given name", "first"},
		"last_name":   {"last name", "lname", "surname", "family name", "last"},
		"full_name":   {"full name", "name", "your name"},
		"email":       {"email", "e-mail", "email address", "e-mail address"},
		"phone":       {"phone", "telephone", "mobile", "phone number", "mobile number", "cell phone", "contact number"},
		"address":     {"address", "street address", "address line 1", "street", "address 1"},
		"address_line_2": {"address line 2", "apt", "apartment", "suite", "unit", "address 2"},
		"city":        {"city", "town"},
		"state":       {"state", "province", "state/province", "region"},
		"state_code":  {"state code", "state abbreviation"},
		"zip_code":    {"zip", "zip code", "postal code", "zipcode", "postcode"},
		"country":     {"country", "country of residence"},
		"country_code": {"country code", "phone country code"},
		"linkedin":    {"linkedin", "linkedin profile", "linkedin url", "linkedin profile url"},
		"github":      {"github", "github profile", "github url", "github username"},
		"portfolio":   {"portfolio", "portfolio url", "website", "personal website"},
		"other_links": {"other links", "additional links", "social media"},
		"work_authorization":  {"work authorization", "authorized to work", "employment authorization", "right to work"},
		"visa_status":         {"visa status", "visa type", "immigration status", "current visa"},
		"require_sponsorship": {"visa sponsorship", "require sponsorship", "need sponsorship", "sponsorship required", "sponsorship"},
		"gender":             {"gender", "gender identity", "sex"},
		"race_ethnicity":     {"race", "ethnicity", "race/ethnicity", "ethnic background"},
		"veteran_status":     {"veteran", "veteran status", "military veteran"},
		"disability_status":  {"disability", "disability status", "disabled"},
		"date_of_birth":      {"date of birth", "birth date", "birthday", "dob"},
		"nationality":        {"nationality", "citizenship"},
		"current_title":      {"current title", "current position", "current role", "job title"},
		"current_company":    {"current company", "current employer", "employer"},
		"years_experience":   {"years of experience", "years experience", "experience years", "total experience"},
		"university":         {"university", "school", "college", "institution", "educational institution"},
		"degree":             {"degree", "degree type", "education level", "highest degree"},
		"major":              {"major", "field of study", "area of study", "specialization", "concentration"},
		"graduation_date":    {"graduation date", "graduation year", "expected graduation", "grad date", "completion date"},
		"gpa":                {"gpa", "grade point average", "cumulative gpa"},
		"start_date":         {"start date", "availability", "available to start", "earliest start date", "when can you start"},
		"salary_expectation": {"salary", "expected salary", "salary expectation", "salary requirements", "desired salary"},
		"willing_to_relocate": {"relocate", "willing to relocate", "relocation", "open to relocation"},
		"preferred_locations": {"preferred location", "location preference", "desired location", "work location"},
		"source":             {"how did you hear", "referral source", "how did you find", "source"},
		"cover_letter":        {"cover letter", "letter of interest", "why do you want", "motivation"},
		"resume_path":         {"resume", "cv", "curriculum vitae", "upload resume", "attach resume"},
	}
}

func buildPatternMatchTable() map[string][]*regexp.Regexp {
	ci := func(pattern string) *regexp.Regexp { return regexp.MustCompile("(?i)" + pattern) }
	return map[string][]*regexp.Regexp{
		"first_name":  {ci(`^(first|given)\s*(name)?$`), ci(`fname`)},
		"last_name":   {ci(`^(last|family|sur)\s*(name)?$`), ci(`lname`)},
		"email":       {ci(`e[\s-]?mail`), ci(`email\s*address`)},
		"phone":       {ci(`(phone|mobile|cell|telephone)(\s*number)?`), ci(`contact\s*number`)},
		"linkedin":    {ci(`linked\s*in`), ci(`linkedin\s*(profile|url)?`)},
		"work_authorization": {
			ci(`(work|employment)\s*authorization`),
			ci(`authorized\s*to\s*work`),
			ci(`right\s*to\s*work`),
		},
		"require_sponsorship": {
			ci(`(visa|work)?\s*sponsorship`),
			ci(`require\s*sponsorship`),
			ci(`need\s*sponsorship`),
		},
		"graduation_date": {
			ci(`graduat(ion|e)\s*(date|year)`),
			ci(`expected\s*graduat`),
			ci(`complet(ion|e)\s*date`),
		},
	}
}

func buildDropdownMappings() map[string]map[string][]string {
	return map[string]map[string][]string{
		"gender": {
			"Male":       {"Male", "M", "Man", "male", "Man - He/Him", "Male (He/Him)"},
			"Female":     {"Female", "F", "Woman", "female", "Woman - She/Her", "Female (She/Her)"},
			"Non-binary": {"Non-binary", "Non binary", "Nonbinary", "Other", "Non-Binary - They/Them", "Prefer not to say"},
		},
		"race_ethnicity": {
			"Asian": {
				"Asian", "Asian American", "South Asian", "East Asian", "Southeast Asian",
				"Asian (Not Hispanic or Latino)", "Asian/Pacific Islander", "Asian - Indian",
				"Asian - Chinese", "Asian - Filipino", "Asian - Vietnamese", "Asian - Korean",
				"Asian - Japanese", "Asian - Other",
			},
			"White": {
				"White", "Caucasian", "European", "White (Not Hispanic or Latino)",
				"White - European", "White/Caucasian",
			},
			"Black": {
				"Black", "African American", "Black or African American",
				"Black/African American (Not Hispanic or Latino)", "African American/Black",
			},
			"Hispanic": {
				"Hispanic", "Latino", "Hispanic or Latino", "Hispanic/Latino",
				"Hispanic or Latino (of any race)", "Latinx",
			},
			"Native American": {
				"Native American", "American Indian", "Indigenous", "Alaska Native",
				"American Indian or Alaska Native", "Native American/Alaska Native",
				"Indigenous American", "Native Hawaiian or Other Pacific Islander",
			},
			"Two or More": {
				"Two or More Races", "Multiple", "Multiracial", "Two or more races (Not Hispanic or Latino)",
			},
			"Prefer not to say": {
				"Prefer not to say", "Decline to self identify", "I don't wish to answer",
				"Prefer not to disclose", "Decline to answer", "Rather not say",
			},
		},
		"work_authorization": {
			"Yes": {
				"Yes", "Authorized", "Yes, authorized", "Legally authorized", "I am authorized",
				"Yes, I am authorized to work", "Yes - Authorized to work in the US",
				"Authorized to work", "US Citizen or Permanent Resident", "Citizen",
				"Green Card Holder", "Permanent Resident",
			},
			"No": {
				"No", "Not authorized", "No, not authorized", "I am not authorized",
				"No - Not authorized", "Not currently authorized", "Require authorization",
			},
			"F-1":  {"F-1", "F1 Student", "Student Visa (F-1)", "F-1 Visa", "F-1 OPT", "OPT"},
			"H1B":  {"H-1B", "H1B", "Work Visa (H-1B)", "H-1B Visa", "H1-B"},
		},
		"require_sponsorship": {
			"Yes": {
				"Yes", "Yes, I require sponsorship", "I will require", "Will require",
				"Yes - I will require sponsorship", "Yes, now or in the future",
				"Now or in the future", "Currently or in the future",
			},
			"No": {
				"No", "No, I do not require", "I will not require", "Will not require",
				"No - I will not require sponsorship", "Do not require sponsorship",
				"No, I will not require",
			},
		},
		"degree": {
			"Bachelor": {
				"Bachelor", "Bachelor's", "BS", "BA", "B.S.", "B.A.", "Bachelors",
				"Bachelor's Degree", "Bachelors Degree", "Bachelor of Science",
				"Bachelor of Arts", "Undergraduate Degree",
			},
			"Master": {
				"Master", "Master's", "MS", "MA", "M.S.", "M.A.", "Masters",
				"Master's Degree", "Masters Degree", "Master of Science",
				"Master of Arts", "Graduate Degree", "MBA",
			},
			"PhD": {
				"PhD", "Ph.D.", "Doctorate", "Doctoral", "Doctoral Degree",
				"Doctor of Philosophy", "Postgraduate", "Terminal Degree",
			},
			"Associate": {
				"Associate", "Associate's", "AS", "AA", "A.S.", "A.A.",
				"Associate Degree", "Associates Degree", "Associate's Degree",
			},
			"High School": {
				"High School", "High School Diploma", "Secondary School", "GED",
				"High School or equivalent", "Secondary Education",
			},
		},
		"veteran_status": {
			"Yes": {"Yes", "Veteran", "I am a veteran", "Protected veteran", "Yes - I am a protected veteran", "Military veteran"},
			"No":  {"No", "Not a veteran", "I am not a veteran", "Not applicable", "No - I am not a protected veteran", "Non-veteran"},
		},
		"disability_status": {
			"Yes": {"Yes", "Yes, I have a disability", "I have a disability", "Yes - I have a disability", "Disabled"},
			"No":  {"No", "No, I don't have a disability", "I do not have a disability", "No - I do not have a disability", "Not disabled"},
			"Prefer not to say": {"Prefer not to say", "I don't wish to answer", "Decline to self identify", "Rather not say", "Prefer not to disclose"},
		},
		"willing_to_relocate": {
			"Yes": {"Yes", "Yes, willing", "Open to relocation", "Willing", "Will relocate"},
			"No":  {"No", "Not willing", "Not open to relocation", "Will not relocate"},
		},
	}
}

var trailingPunct = regexp.MustCompile(`[*:]+$`)
var collapseWhitespace = regexp.MustCompile(`\s+`)

func normalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	l = collapseWhitespace.ReplaceAllString(l, " ")
	l = trailingPunct.ReplaceAllString(l, "")
	return strings.TrimSpace(l)
}

// MapField runs the three deterministic strategies in order (exact, pattern,
// semantic) and returns MethodNeedsAI when none apply, per §4.5.
func (m *DeterministicMapper) MapField(label string, category models.FieldCategory, profile *models.Profile) models.FieldMapping {
	normalized := normalizeLabel(label)

	if fm, ok := m.tryExactMatch(normalized, profile); ok {
		return fm
	}
	if fm, ok := m.tryPatternMatch(normalized, profile); ok {
		return fm
	}
	if fm, ok := m.trySemanticInference(normalized, category, profile); ok {
		return fm
	}
	return models.FieldMapping{Method: models.MethodNeedsAI}
}

func (m *DeterministicMapper) tryExactMatch(label string, profile *models.Profile) (models.FieldMapping, bool) {
	for profileKey, variants := range m.exact {
		for _, v := range variants {
			if label == v {
				if value, ok := profileValue(profile, profileKey); ok && value != "" {
					return models.FieldMapping{ProfileKey: profileKey, Value: value, Confidence: 1.0, Method: models.MethodExact}, true
				}
			}
		}
	}
	return models.FieldMapping{}, false
}

func (m *DeterministicMapper) tryPatternMatch(label string, profile *models.Profile) (models.FieldMapping, bool) {
	for profileKey, patterns := range m.patterns {
		for _, p := range patterns {
			if p.MatchString(label) {
				if value, ok := profileValue(profile, profileKey); ok && value != "" {
					return models.FieldMapping{ProfileKey: profileKey, Value: value, Confidence: 0.9, Method: models.MethodPattern}, true
				}
			}
		}
	}
	return models.FieldMapping{}, false
}

var termsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bterms?\b`),
	regexp.MustCompile(`(?i)\bconditions?\b`),
	regexp.MustCompile(`(?i)\bagreement\b`),
	regexp.MustCompile(`(?i)\bconsent\b`),
	regexp.MustCompile(`(?i)\backnowledge\b`),
	regexp.MustCompile(`(?i)\bprivacy\s*policy\b`),
	regexp.MustCompile(`(?i)\baccept\b`),
	regexp.MustCompile(`(?i)\bagree\b`),
	regexp.MustCompile(`(?i)\bi\s*have\s*read\b`),
	regexp.MustCompile(`(?i)\bi\s*understand\b`),
	regexp.MustCompile(`(?i)\bconfirm\b`),
}

func (m *DeterministicMapper) trySemanticInference(label string, category models.FieldCategory, profile *models.Profile) (models.FieldMapping, bool) {
	// Terms/agreement checkboxes are always auto-checked, even if the
	// element id looks like a honeypot — a visible checkbox carrying these
	// keywords is a real consent control.
	if category == models.CategoryCheckbox || category == models.CategoryCheckboxGroup {
		for _, p := range termsPatterns {
			if p.MatchString(label) {
				return models.FieldMapping{ProfileKey: "terms_agreement", Value: "true", Confidence: 0.9, Method: models.MethodTermsAutocheck}, true
			}
		}
	}

	type rule struct {
		pattern *regexp.Regexp
		infer   func(label string, profile *models.Profile) (models.FieldMapping, bool)
	}
	rules := []rule{
		{regexp.MustCompile(`(?i)(have you|do you|are you)\s*(ever\s*)?(worked|employed)\s*(at|for|with)\s*([a-zA-Z\s]+)`), inferWorkedAtCompany},
		{regexp.MustCompile(`(?i)(authorized|eligible|permitted)\s*to\s*work`), inferWorkAuthorization},
		{regexp.MustCompile(`(?i)(require|need)\s*(visa\s*)?sponsorship`), inferSponsorship},
		{regexp.MustCompile(`(?i)(willing|open)\s*to\s*(relocate|relocation)`), inferRelocation},
		{regexp.MustCompile(`(?i)(currently|presently)\s*(enrolled|pursuing|studying)`), inferCurrentStudent},
	}
	for _, r := range rules {
		if r.pattern.MatchString(label) {
			if fm, ok := r.infer(label, profile); ok {
				return fm, true
			}
		}
	}
	return models.FieldMapping{}, false
}

var workedAtCompanyRe = regexp.MustCompile(`(?i)(worked|employed)\s*(at|for|with)\s*([a-zA-Z\s]+)`)

func inferWorkedAtCompany(label string, profile *models.Profile) (models.FieldMapping, bool) {
	match := workedAtCompanyRe.FindStringSubmatch(label)
	if match == nil {
		return models.FieldMapping{}, false
	}
	companyInQuestion := strings.ToLower(strings.TrimSpace(match[3]))

	records, _ := profile.GetRecords("work_experience")
	for _, exp := range records {
		company := strings.ToLower(exp["company"])
		if company == "" {
			continue
		}
		if strings.Contains(company, companyInQuestion) || strings.Contains(companyInQuestion, company) {
			return models.FieldMapping{ProfileKey: "work_experience", Value: "Yes", Confidence: 0.9, Method: models.MethodSemantic}, true
		}
	}
	return models.FieldMapping{ProfileKey: "work_experience", Value: "No", Confidence: 0.9, Method: models.MethodSemantic}, true
}

func inferWorkAuthorization(_ string, profile *models.Profile) (models.FieldMapping, bool) {
	if workAuth, ok := profile.GetString("work_authorization"); ok && workAuth != "" {
		return models.FieldMapping{ProfileKey: "work_authorization", Value: workAuth, Confidence: 0.9, Method: models.MethodSemantic}, true
	}
	if visaStatus, ok := profile.GetString("visa_status"); ok && visaStatus != "" {
		switch visaStatus {
		case "F-1", "H1B", "H-1B", "Green Card", "US Citizen":
			return models.FieldMapping{ProfileKey: "visa_status", Value: "Yes", Confidence: 0.7, Method: models.MethodSemantic}, true
		}
	}
	return models.FieldMapping{}, false
}

func inferSponsorship(_ string, profile *models.Profile) (models.FieldMapping, bool) {
	if v, ok := profile.GetString("require_sponsorship"); ok && v != "" {
		return models.FieldMapping{ProfileKey: "require_sponsorship", Value: v, Confidence: 1.0, Method: models.MethodSemantic}, true
	}
	return models.FieldMapping{}, false
}

func inferRelocation(_ string, profile *models.Profile) (models.FieldMapping, bool) {
	if v, ok := profile.GetString("willing_to_relocate"); ok && v != "" {
		return models.FieldMapping{ProfileKey: "willing_to_relocate", Value: v, Confidence: 1.0, Method: models.MethodSemantic}, true
	}
	return models.FieldMapping{}, false
}

var gradDateFormats = []string{"2006-01", "01/2006", "January 2006", "Jan 2006", "2006-01-02", "01/02/2006"}

// inferCurrentStudent infers enrollment purely from date arithmetic against
// each education record's end_date: future end_date means still enrolled,
// past means graduated, matching the original's explicit "NO reliance on a
// current boolean" design note.
func inferCurrentStudent(_ string, profile *models.Profile) (models.FieldMapping, bool) {
	records, ok := profile.GetRecords("education")
	if !ok {
		return models.FieldMapping{}, false
	}
	now := time.Now()
	for _, edu := range records {
		endDate := strings.TrimSpace(edu["end_date"])
		if endDate == "" {
			continue
		}
		gradDate, ok := parseFlexibleDate(endDate, now)
		if !ok {
			continue
		}
		if gradDate.After(now) {
			return models.FieldMapping{ProfileKey: "education", Value: "Yes", Confidence: 0.9, Method: models.MethodSemantic}, true
		}
		return models.FieldMapping{ProfileKey: "education", Value: "No", Confidence: 0.9, Method: models.MethodSemantic}, true
	}
	return models.FieldMapping{}, false
}

func parseFlexibleDate(s string, now time.Time) (time.Time, bool) {
	if len(s) == 4 {
		if year, err := strconv.Atoi(s); err == nil {
			return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC), true
		}
	}
	for _, layout := range gradDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func profileValue(profile *models.Profile, profileKey string) (string, bool) {
	return profile.GetString(profileKey)
}
