// Package browser manages headless Chrome sessions for C8/C9 (ATS widget
// drivers and the field interactor), grounded in the teacher's
// ChromeDPPool but reshaped for this domain: each job application gets its
// own isolated browser context (an ATS session can't be round-robin shared
// across concurrent applicants) rather than the teacher's fixed pool of
// reusable instances.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/jobforge/orchestrator/internal/common"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Session wraps one chromedp browser context plus its teardown.
type Session struct {
	Ctx    context.Context
	cancel context.CancelFunc
}

// Close releases the browser context and its allocator.
func (s *Session) Close() {
	s.cancel()
}

// Pool launches isolated chromedp sessions, gated by a local token-bucket
// limiter (golang.org/x/time/rate) that smooths the rate of new session
// launches so a burst of jobs coming off the queue doesn't spike the
// allocator all at once — distinct from C1's store-backed concurrent-scope
// limiter, which enforces the hard cap on how many sessions may be open at
// a time across the whole fleet.
type Pool struct {
	cfg     common.BrowserConfig
	logger  arbor.ILogger
	limiter *rate.Limiter
}

// New builds a Pool. launchesPerSecond/burst tune how quickly new sessions
// may be opened; a sensible default is 1 launch/sec with a burst of 2.
func New(cfg common.BrowserConfig, logger arbor.ILogger, launchesPerSecond float64, burst int) *Pool {
	if launchesPerSecond <= 0 {
		launchesPerSecond = 1
	}
	if burst <= 0 {
		burst = 2
	}
	return &Pool{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(launchesPerSecond), burst),
	}
}

// Open waits for launch-rate admission, then starts a fresh headless
// session. The configured navigate timeout bounds only the startup
// navigation; the returned Session.Ctx carries no deadline of its own.
func (p *Pool) Open(ctx context.Context) (*Session, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("browser: waiting for launch slot: %w", err)
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if p.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	navTimeout := common.ParseDurationOr(p.cfg.NavigateTimeout, 30*time.Second)
	deadlineCtx, deadlineCancel := context.WithTimeout(browserCtx, navTimeout)

	if err := chromedp.Run(deadlineCtx, chromedp.Navigate("about:blank")); err != nil {
		deadlineCancel()
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: startup navigation failed: %w", err)
	}

	cancelAll := func() {
		deadlineCancel()
		browserCancel()
		allocCancel()
	}
	return &Session{Ctx: browserCtx, cancel: cancelAll}, nil
}

// ActionTimeout returns the configured per-action deadline (distinct from
// the session-wide navigate timeout), used by C9's dropdown interactions
// which need their own shorter deadline per §4.9.
func (p *Pool) ActionTimeout() time.Duration {
	return common.ParseDurationOr(p.cfg.ActionTimeout, 10*time.Second)
}
