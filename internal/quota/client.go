package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

// Client wraps a real genai.Client with the model/timeout/temperature
// settings from configuration, following the same initialization shape as
// the teacher's GeminiService: resolve API key, default the model name,
// parse the timeout, open the client.
type Client struct {
	cfg     common.GeminiConfig
	logger  arbor.ILogger
	genai   *genai.Client
	timeout time.Duration
	retry   *RetryConfig
}

// NewClient initializes the underlying genai.Client.
func NewClient(ctx context.Context, logger arbor.ILogger, cfg common.GeminiConfig) (*Client, error) {
	apiKey, err := common.ResolveAPIKey(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BatchModel == "" {
		cfg.BatchModel = cfg.Model
	}

	timeout := common.ParseDurationOr(cfg.Timeout, 60*time.Second)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &Client{
		cfg:     cfg,
		logger:  logger,
		genai:   client,
		timeout: timeout,
		retry:   NewRetryConfig(cfg),
	}, nil
}

// Generate runs a single prompt against the configured default model, with
// retry/backoff on rate-limit errors.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GenerateWithModel(ctx, c.cfg.Model, systemPrompt, userPrompt)
}

// GenerateWithModel runs a single prompt against an explicit model name.
func (c *Client) GenerateWithModel(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		resp, err := c.generateOnce(timeoutCtx, model, systemPrompt, userPrompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRateLimitError(err) {
			return "", err
		}
		if attempt == c.retry.MaxRetries {
			break
		}
		delay := c.retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("gemini rate limited, retrying")
		select {
		case <-timeoutCtx.Done():
			return "", timeoutCtx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("gemini generation failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

func (c *Client) generateOnce(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	content := &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(userPrompt)},
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.genai.Models.GenerateContent(ctx, model, []*genai.Content{content}, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return out.String(), nil
}
