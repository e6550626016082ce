// Package jobs implements C12: the four job handler types dispatched by
// C13's worker pool. Every handler follows the skeleton in spec §4.12:
// start timestamp, rate-limit check, optional quota reservation, delegate to
// an external collaborator, increment counters, emit a security-audit
// event, release the reservation on every exit path.
//
// The résumé-tailoring pipeline, the ATS job board adapters, and the
// Mimikree Q&A service are named in spec §1 as external collaborators whose
// internals are explicitly out of scope ("specify only where the core
// consumes them"). They are represented here as small interfaces so C12 can
// be exercised and unit-tested without the real integrations; a deployment
// wires a real implementation in cmd/jobforge.
package jobs

import (
	"context"
	"fmt"

	"github.com/jobforge/orchestrator/internal/models"
)

// TailoringCredentials mirrors the OAuth credential dict the original
// reconstructs a google.oauth2.credentials.Credentials object from (spec
// §4.12, §6): "Reconstruct OAuth credentials from the dict".
type TailoringCredentials struct {
	Token        string
	RefreshToken string
	TokenURI     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// TailoringRequest is what ExternalTailoringService.Tailor consumes.
type TailoringRequest struct {
	OriginalResumeURL string
	JobDescription    string
	JobTitle          string
	Company           string
	Credentials       *TailoringCredentials
	UserFullName      string
	MimikreeEmail     string
	MimikreePassword  string
}

// ExternalTailoringService is the out-of-scope résumé tailoring subsystem
// (spec §1: "semantic résumé writing quality... the core only orchestrates
// it"). It returns the URL of the tailored document.
type ExternalTailoringService interface {
	Tailor(ctx context.Context, req TailoringRequest) (tailoredURL string, err error)
}

// JobRecord is one normalized job returned by an external job-search
// provider, per spec §1's "return normalized job records" contract.
type JobRecord struct {
	Source         string
	ExternalID     string
	Title          string
	Company        string
	URL            string
	RelevanceScore int
}

// ExternalJobBoard is the aggregator over the out-of-scope external
// job-API adapters.
type ExternalJobBoard interface {
	Search(ctx context.Context, userID string, minRelevanceScore int) ([]JobRecord, error)
}

// QAAnswer is one answered question from the Mimikree-equivalent Q&A
// service, used by project-discovery.
type QAAnswer struct {
	Question string
	Answer   string
}

// ExternalQAService is the out-of-scope Q&A collaborator (spec §1:
// "authenticate and answer a batch of text questions").
type ExternalQAService interface {
	Authenticate(ctx context.Context, email, password string) error
	AnswerBatch(ctx context.Context, questions []string) ([]QAAnswer, error)
}

// Project is one entry in a user's project catalog, scored by C12's
// project_analysis handler.
type Project struct {
	ID           string
	Name         string
	Description  string
	Technologies []string
	Features     []string
	OnResume     bool
}

// ProjectStore is the out-of-scope persistence collaborator for a user's
// project catalog (the original loads these via a SQL session; here it's a
// narrow interface so C12 doesn't depend on a concrete schema).
type ProjectStore interface {
	ProjectsForUser(ctx context.Context, userID string) ([]Project, error)
}

// ErrMissingCredentials is returned when project discovery is requested but
// the user has no linked Q&A-service credentials; the handler treats this
// as "continue without discovery", never a hard failure (original_source
// comment: "Continue without Mimikree - the tailoring agent can handle
// this").
var ErrMissingCredentials = fmt.Errorf("jobs: user has no linked Q&A service credentials")

// CredentialStore resolves a user's stored third-party credentials (OAuth,
// Q&A service), out of scope per spec §1 ("OAuth token acquisition").
type CredentialStore interface {
	MimikreeCredentials(ctx context.Context, userID string) (email, password string, err error)
}

// ProfileStore resolves a user's application Profile (spec §3's read-only
// snapshot), out of scope per spec §1 (the web/DB layer owns Profile
// persistence; C12 only consumes it).
type ProfileStore interface {
	ProfileForUser(ctx context.Context, userID string) (*models.Profile, error)
}

