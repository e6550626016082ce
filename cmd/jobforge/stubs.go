package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jobforge/orchestrator/internal/jobs"
	"github.com/jobforge/orchestrator/internal/models"
	"github.com/jobforge/orchestrator/internal/store"
)

// storeProfiles, storeCredentials, and storeProjects resolve the read-only
// persistence collaborators (spec §1: owned by the out-of-scope web/DB
// layer) from this module's own KV store, so the binary runs standalone
// without a real Postgres-backed web service in front of it. A deployment
// with a real web layer replaces these with clients against that service.
type storeProfiles struct{ s store.Store }

func (p *storeProfiles) ProfileForUser(ctx context.Context, userID string) (*models.Profile, error) {
	raw, err := p.s.Get(ctx, "profile:"+userID)
	if err != nil {
		return nil, fmt.Errorf("stubs: loading profile for %s: %w", userID, err)
	}
	var values map[string]models.ProfileValue
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("stubs: decoding profile for %s: %w", userID, err)
	}
	return models.NewProfile(values), nil
}

type storeCredentials struct{ s store.Store }

func (c *storeCredentials) MimikreeCredentials(ctx context.Context, userID string) (string, string, error) {
	raw, err := c.s.Get(ctx, "credentials:mimikree:"+userID)
	if err != nil {
		return "", "", jobs.ErrMissingCredentials
	}
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return "", "", fmt.Errorf("stubs: decoding credentials for %s: %w", userID, err)
	}
	return creds.Email, creds.Password, nil
}

type storeProjects struct{ s store.Store }

func (p *storeProjects) ProjectsForUser(ctx context.Context, userID string) ([]jobs.Project, error) {
	raw, err := p.s.Get(ctx, "projects:"+userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("stubs: loading projects for %s: %w", userID, err)
	}
	var projects []jobs.Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil, fmt.Errorf("stubs: decoding projects for %s: %w", userID, err)
	}
	return projects, nil
}

// unavailableJobBoard, unavailableTailoringService, and unavailableQAService
// stand in for the external ATS job-board adapters, the résumé-tailoring
// pipeline, and the Mimikree-equivalent Q&A service (spec §1's named
// out-of-scope collaborators) until a deployment wires real clients here.
type unavailableJobBoard struct{}

func (unavailableJobBoard) Search(ctx context.Context, userID string, minRelevanceScore int) ([]jobs.JobRecord, error) {
	return nil, fmt.Errorf("jobforge: no external job board adapter configured")
}

type unavailableTailoringService struct{}

func (unavailableTailoringService) Tailor(ctx context.Context, req jobs.TailoringRequest) (string, error) {
	return "", fmt.Errorf("jobforge: no resume tailoring service configured")
}

type unavailableQAService struct{}

func (unavailableQAService) Authenticate(ctx context.Context, email, password string) error {
	return fmt.Errorf("jobforge: no Q&A service configured")
}

func (unavailableQAService) AnswerBatch(ctx context.Context, questions []string) ([]jobs.QAAnswer, error) {
	return nil, fmt.Errorf("jobforge: no Q&A service configured")
}
