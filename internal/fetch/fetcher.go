// Package fetch implements the rate-limited, retrying page fetcher used by
// every scrape of the source site.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/igwatch/igbot/internal/metrics"
)

// ErrNotFound marks a 404 response. It is terminal: callers must not retry.
var ErrNotFound = errors.New("page not found")

const maxBodyBytes = 10 << 20

// Config controls fetch pacing and retry behavior.
type Config struct {
	// RateInterval is the minimum spacing between requests, enforced
	// process-wide through the fetcher's limiter.
	RateInterval time.Duration
	Timeout      time.Duration
	MaxRetries   int
	// BackoffInitial is the first retry delay; it doubles per retry.
	BackoffInitial time.Duration
	// ThrottleWait is the unit wait for 429 responses: the nth throttle
	// waits n * ThrottleWait.
	ThrottleWait time.Duration
	UserAgents   []string
}

// pauseController abstracts how the fetcher backs off between attempts.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Fetcher downloads pages politely: a shared interval limiter spaces
// requests, user agents rotate round-robin, and transient failures are
// retried with exponential backoff. Construct one Fetcher per process and
// pass it to every call site so the rate limit is actually shared.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	pause   pauseController
	logger  *zap.Logger

	mu      sync.Mutex
	uaIndex int
}

// New builds a Fetcher from config.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = time.Second
	}
	if cfg.ThrottleWait <= 0 {
		cfg.ThrottleWait = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = []string{"igbot/1.0"}
	}
	limit := rate.Inf
	if cfg.RateInterval > 0 {
		limit = rate.Every(cfg.RateInterval)
	}
	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		pause:   timerPauseController{},
		logger:  logger,
	}
}

// Client exposes the underlying HTTP client for one-off downloads that
// share the fetcher's timeout but not its retry loop.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// Fetch retrieves url and returns the response body as text.
//
// 404 fails immediately with ErrNotFound. 429 pauses with a linearly
// growing wait and does not consume a content attempt (bounded separately
// so a permanently throttling host cannot hang the run). Any other non-2xx
// status, timeout, or connection error is retried up to MaxRetries with
// doubling backoff. A fetch failure means "page unavailable", never a
// fatal pipeline error.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	userAgent := f.nextUserAgent()
	backoff := f.cfg.BackoffInitial
	throttled := 0

	for attempt := 1; attempt <= f.cfg.MaxRetries; {
		f.logger.Debug("fetching page",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", f.cfg.MaxRetries))

		body, status, err := f.do(ctx, url, userAgent)

		switch {
		case err == nil && status >= 200 && status < 300:
			metrics.PagesFetched.WithLabelValues("success").Inc()
			return body, nil

		case status == http.StatusNotFound:
			metrics.PagesFetched.WithLabelValues("not_found").Inc()
			f.logger.Warn("page not found", zap.String("url", url))
			return "", fmt.Errorf("fetch %s: %w", url, ErrNotFound)

		case status == http.StatusTooManyRequests:
			throttled++
			if throttled > f.cfg.MaxRetries {
				metrics.PagesFetched.WithLabelValues("throttled").Inc()
				return "", fmt.Errorf("fetch %s: still throttled after %d waits", url, f.cfg.MaxRetries)
			}
			wait := time.Duration(throttled) * f.cfg.ThrottleWait
			f.logger.Warn("rate limited by source, waiting",
				zap.String("url", url), zap.Duration("wait", wait))
			f.pause.Pause(ctx, wait)

		default:
			if err != nil {
				f.logger.Warn("fetch attempt failed",
					zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
			} else {
				f.logger.Warn("unexpected status",
					zap.String("url", url), zap.Int("attempt", attempt), zap.Int("status", status))
			}
			attempt++
			if attempt > f.cfg.MaxRetries {
				metrics.PagesFetched.WithLabelValues("failed").Inc()
				if err != nil {
					return "", fmt.Errorf("fetch %s: giving up after %d attempts: %w", url, f.cfg.MaxRetries, err)
				}
				return "", fmt.Errorf("fetch %s: giving up after %d attempts (last status %d)", url, f.cfg.MaxRetries, status)
			}
			metrics.FetchRetries.Inc()
			f.pause.Pause(ctx, backoff)
			backoff *= 2
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
	}

	return "", fmt.Errorf("fetch %s: giving up after %d attempts", url, f.cfg.MaxRetries)
}

func (f *Fetcher) do(ctx context.Context, url, userAgent string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(raw), resp.StatusCode, nil
}

// nextUserAgent rotates through the configured pool, one agent per call.
func (f *Fetcher) nextUserAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ua := f.cfg.UserAgents[f.uaIndex]
	f.uaIndex = (f.uaIndex + 1) % len(f.cfg.UserAgents)
	return ua
}
