package quota

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jobforge/orchestrator/internal/common"
)

// RetryConfig defines retry behavior for Gemini API rate-limit handling.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewRetryConfig builds a RetryConfig from the gemini section of Config,
// falling back to the teacher's observed defaults (5 retries, 45s/90s
// backoff bounds, 1.5x multiplier) matching Gemini's ~60s quota window.
func NewRetryConfig(cfg common.GeminiConfig) *RetryConfig {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	multiplier := cfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1.5
	}
	return &RetryConfig{
		MaxRetries:        maxRetries,
		InitialBackoff:    common.ParseDurationOr(cfg.InitialBackoff, 45*time.Second),
		MaxBackoff:        common.ParseDurationOr(cfg.MaxBackoff, 90*time.Second),
		BackoffMultiplier: multiplier,
	}
}

// IsRateLimitError checks if an error is a Gemini rate-limit error, matching
// 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota")
}

var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from a Gemini
// error, returning 0 if no delay is present.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the backoff duration for a given attempt,
// capped at MaxBackoff. If apiDelay > 0 it's used as the base plus a small
// buffer; otherwise InitialBackoff is the base.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + 5*time.Second
	}

	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}
	return backoff
}
