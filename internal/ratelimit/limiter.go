// Package ratelimit implements C1: fixed-window counters and concurrent
// semaphores keyed by (limit-name, scope-key), backed by any store.Store.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jobforge/orchestrator/internal/common"
	"github.com/jobforge/orchestrator/internal/store"
	"github.com/ternarybob/arbor"
)

// Scope is the kind of counter a limit defines.
type Scope string

const (
	ScopeUser       Scope = "user"
	ScopeGlobal     Scope = "global"
	ScopeConcurrent Scope = "concurrent"
)

// Limit is one predefined rate limit, resolved from configuration.
type Limit struct {
	Name   string
	Scope  Scope
	Max    int
	Window time.Duration
}

// CheckResult is returned by CheckLimit.
type CheckResult struct {
	Allowed        bool
	Used           int
	Max            int
	WindowRemaining time.Duration
	RetryAfter     time.Duration
}

// Limiter is the C1 contract: admission checks, unconditional usage
// recording, and a per-user snapshot, all over a shared atomic-increment +
// TTL store (§9: "the design admits any store with atomic increment + TTL").
type Limiter struct {
	store  store.Store
	logger arbor.ILogger
	limits map[string]Limit
}

// New builds a Limiter from the configured limit table.
func New(s store.Store, logger arbor.ILogger, cfg common.RateLimitConfig) (*Limiter, error) {
	limits := make(map[string]Limit, len(cfg.Limits))
	for name, entry := range cfg.Limits {
		l := Limit{Name: name, Scope: Scope(entry.Scope), Max: entry.Max}
		if entry.Window != "" {
			d, err := time.ParseDuration(normalizeWindow(entry.Window))
			if err != nil {
				return nil, fmt.Errorf("ratelimit: invalid window %q for %q: %w", entry.Window, name, err)
			}
			l.Window = d
		}
		limits[name] = l
	}
	return &Limiter{store: s, logger: logger, limits: limits}, nil
}

// normalizeWindow accepts bare-second window strings like "86400" in
// addition to Go duration strings, since the spec's table expresses windows
// in seconds (e.g. "86400 s").
func normalizeWindow(w string) string {
	for _, r := range w {
		if r < '0' || r > '9' {
			return w
		}
	}
	return w + "s"
}

func counterKey(name, scopeKey string) string {
	return fmt.Sprintf("ratelimit:%s:%s", name, scopeKey)
}

func semaphoreKey(name, scopeKey string) string {
	return fmt.Sprintf("ratelimit:sem:%s:%s", name, scopeKey)
}

// CheckLimit atomically increments the counter for (name, scopeKey) within
// the limit's fixed window. For concurrent-scope limits it acquires a
// bounded semaphore slot instead; callers MUST call Release for those.
//
// On backing-store failure, user-scope limits fail closed (deny); global
// counters fail open, per §4.1.
func (l *Limiter) CheckLimit(ctx context.Context, name, scopeKey string) (CheckResult, error) {
	limit, ok := l.limits[name]
	if !ok {
		return CheckResult{}, fmt.Errorf("ratelimit: unknown limit %q", name)
	}

	if limit.Scope == ScopeConcurrent {
		return l.acquireSemaphore(ctx, limit, scopeKey)
	}

	key := counterKey(name, scopeKey)
	count, err := l.store.Incr(ctx, key, 1, limit.Window)
	if err != nil {
		if limit.Scope == ScopeGlobal {
			l.logger.Warn().Err(err).Str("limit", name).Msg("rate limiter store failure, failing open for global scope")
			return CheckResult{Allowed: true}, nil
		}
		l.logger.Error().Err(err).Str("limit", name).Msg("rate limiter store failure, failing closed for user scope")
		return CheckResult{Allowed: false}, err
	}

	if int(count) > limit.Max {
		return CheckResult{
			Allowed:    false,
			Used:       int(count),
			Max:        limit.Max,
			RetryAfter: limit.Window,
		}, nil
	}
	return CheckResult{Allowed: true, Used: int(count), Max: limit.Max, WindowRemaining: limit.Window}, nil
}

// acquireSemaphore implements the concurrent-scope bounded-permit behavior:
// the caller must later call Release(name, scopeKey).
func (l *Limiter) acquireSemaphore(ctx context.Context, limit Limit, scopeKey string) (CheckResult, error) {
	key := semaphoreKey(limit.Name, scopeKey)
	count, err := l.store.Incr(ctx, key, 1, 0)
	if err != nil {
		l.logger.Error().Err(err).Str("limit", limit.Name).Msg("rate limiter semaphore store failure, failing closed")
		return CheckResult{Allowed: false}, err
	}
	if int(count) > limit.Max {
		// Roll back our own increment since we weren't admitted.
		_, _ = l.store.Incr(ctx, key, -1, 0)
		return CheckResult{Allowed: false, Used: int(count) - 1, Max: limit.Max}, nil
	}
	return CheckResult{Allowed: true, Used: int(count), Max: limit.Max}, nil
}

// Release gives back a concurrent-scope permit acquired via CheckLimit.
func (l *Limiter) Release(ctx context.Context, name, scopeKey string) error {
	limit, ok := l.limits[name]
	if !ok || limit.Scope != ScopeConcurrent {
		return nil
	}
	_, err := l.store.Incr(ctx, semaphoreKey(name, scopeKey), -1, 0)
	return err
}

// IncrementUsage unconditionally increments a counter, for recording actual
// consumption when admission was checked separately (§4.1).
func (l *Limiter) IncrementUsage(ctx context.Context, name, scopeKey string) error {
	limit, ok := l.limits[name]
	if !ok {
		return fmt.Errorf("ratelimit: unknown limit %q", name)
	}
	_, err := l.store.Incr(ctx, counterKey(name, scopeKey), 1, limit.Window)
	return err
}

// UserLimitSnapshot is one row of GetUserLimits.
type UserLimitSnapshot struct {
	Name            string
	Used            int
	Max             int
	WindowRemaining time.Duration
}

// GetUserLimits returns a snapshot of every user-scoped limit for a user.
func (l *Limiter) GetUserLimits(ctx context.Context, userID string) ([]UserLimitSnapshot, error) {
	var snapshots []UserLimitSnapshot
	for name, limit := range l.limits {
		if limit.Scope != ScopeUser {
			continue
		}
		raw, err := l.store.Get(ctx, counterKey(name, userID))
		used := 0
		if err == nil {
			fmt.Sscanf(string(raw), "%d", &used)
		}
		snapshots = append(snapshots, UserLimitSnapshot{
			Name:            name,
			Used:            used,
			Max:             limit.Max,
			WindowRemaining: limit.Window,
		})
	}
	return snapshots, nil
}
