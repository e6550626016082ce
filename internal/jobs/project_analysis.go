package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jobforge/orchestrator/internal/models"
	"github.com/ternarybob/arbor"
)

const maxDiscoveryQuestions = 8

// ProjectAnalysisHandler implements the project_analysis job type (spec
// §4.12), grounded on
// original_source/server/job_handlers.py:handle_project_analysis and
// original_source/Agents/project_selection/relevance_engine.py's scoring
// model. It has no daily rate limit in the original and makes no Gemini
// call of its own, so it embeds only the audit sink, not the full base.
type ProjectAnalysisHandler struct {
	audit       *Auditor
	projects    ProjectStore
	credentials CredentialStore
	qa          ExternalQAService
	logger      arbor.ILogger
}

// NewProjectAnalysisHandler builds a ProjectAnalysisHandler. qa may be nil
// when project discovery is never requested in this deployment.
func NewProjectAnalysisHandler(audit *Auditor, projects ProjectStore, credentials CredentialStore, qa ExternalQAService, logger arbor.ILogger) *ProjectAnalysisHandler {
	return &ProjectAnalysisHandler{audit: audit, projects: projects, credentials: credentials, qa: qa, logger: logger}
}

// Execute satisfies queue.Handler.
func (h *ProjectAnalysisHandler) Execute(ctx context.Context, job *models.JobRequest) (*models.JobResult, error) {
	start := time.Now()
	userID := job.UserID

	var schema projectAnalysisPayload
	if err := decodeAndValidate(job.Payload, &schema); err != nil {
		return nil, err
	}
	jobKeywords := payloadStringSlice(job.Payload, "job_keywords")
	requiredTechnologies := payloadStringSlice(job.Payload, "required_technologies")
	discoverNew := payloadBool(job.Payload, "discover_new_projects")

	allProjects, err := h.projects.ProjectsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("jobs: loading projects for user %s: %w", userID, err)
	}

	var currentProjects, alternativeProjects []Project
	for _, p := range allProjects {
		if p.OnResume {
			currentProjects = append(currentProjects, p)
		} else {
			alternativeProjects = append(alternativeProjects, p)
		}
	}

	ranked := rankProjects(allProjects, jobKeywords, requiredTechnologies)
	swaps := recommendProjectSwaps(currentProjects, allProjects, jobKeywords, requiredTechnologies)

	var discovered []QAAnswer
	if discoverNew {
		discovered = h.discoverProjects(ctx, userID, jobKeywords)
	}

	h.audit.Record(ctx, AuditEvent{
		EventType: AuditDataAccess, UserID: userID, Action: "project_analysis",
		DurationSeconds: elapsed(start),
		RelevantPayload: map[string]interface{}{
			"projects_considered": len(allProjects),
			"swap_recommendations": len(swaps),
			"discovered_new":       len(discovered),
		},
	})

	rankedOut := make([]map[string]interface{}, 0, len(ranked))
	for _, r := range ranked {
		rankedOut = append(rankedOut, map[string]interface{}{
			"project_id":        r.Project.ID,
			"name":              r.Project.Name,
			"overall_score":     r.Score.OverallScore,
			"keyword_overlap":   r.Score.KeywordOverlap,
			"technology_match":  r.Score.TechnologyMatch,
			"currently_on_resume": r.Project.OnResume,
		})
	}
	swapsOut := make([]map[string]interface{}, 0, len(swaps))
	for _, s := range swaps {
		swapsOut = append(swapsOut, map[string]interface{}{
			"remove":      s.Remove.Name,
			"add":         s.Add.Name,
			"score_delta": s.ScoreDelta,
			"reason":      s.Reason,
		})
	}

	return &models.JobResult{
		JobID:  job.JobID,
		Status: models.JobStatusCompleted,
		Result: map[string]interface{}{
			"ranked_projects":       rankedOut,
			"swap_recommendations":  swapsOut,
			"alternative_count":     len(alternativeProjects),
			"discovered_project_count": len(discovered),
		},
	}, nil
}

// discoverProjects answers a batch of discovery questions through the Q&A
// collaborator when the user has linked credentials, per spec §1's "Continue
// without Mimikree" fallback: a missing or failing credential lookup
// degrades to skipping discovery rather than failing the whole job.
func (h *ProjectAnalysisHandler) discoverProjects(ctx context.Context, userID string, jobKeywords []string) []QAAnswer {
	if h.qa == nil || h.credentials == nil {
		return nil
	}
	email, password, err := h.credentials.MimikreeCredentials(ctx, userID)
	if err != nil {
		h.logger.Info().Str("user_id", userID).Msg("jobs: no linked Q&A credentials, continuing without project discovery")
		return nil
	}
	if err := h.qa.Authenticate(ctx, email, password); err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("jobs: Q&A service authentication failed, continuing without project discovery")
		return nil
	}
	questions := discoveryQuestions(jobKeywords)
	answers, err := h.qa.AnswerBatch(ctx, questions)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("jobs: project discovery batch failed")
		return nil
	}
	return answers
}

func discoveryQuestions(jobKeywords []string) []string {
	questions := make([]string, 0, maxDiscoveryQuestions)
	for _, kw := range jobKeywords {
		if len(questions) >= maxDiscoveryQuestions {
			break
		}
		questions = append(questions, fmt.Sprintf("Describe a project you built involving %s.", kw))
	}
	return questions
}
