package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"medcrawl/pkg/config"
	"medcrawl/pkg/utils"
)

// Result is the outcome of one FetchPage call. The fetch unit never returns
// a Go error to the caller; every failure path is represented here so the
// scheduler can aggregate without exception handling.
type Result struct {
	Identity string // Page number (as string) or item URL, echoed back for aggregation
	HTML     string // Response body on success
	FinalURL string // URL after redirects on success
	Attempts int    // Attempts actually made (>= 0; 0 only for policy denials)

	Err      error  // nil iff the fetch succeeded
	Category string // utils.CategorizeError(Err) on failure, "" on success
}

// OK reports whether the fetch produced usable HTML.
func (r Result) OK() bool { return r.Err == nil }

// Reason returns the failure message, or "" on success.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Fetcher wraps a single network fetch with bounded retries and a fixed
// inter-attempt delay, using an underlying http.Client
type Fetcher struct {
	client      *http.Client
	cfg         *config.AppConfig
	userAgent   string
	rateLimiter *RateLimiter // Optional per-host politeness delay
	robots      *RobotsGate  // Optional robots.txt gate
	log         *logrus.Logger
}

// NewFetcher creates a new Fetcher instance. rateLimiter and robots may be
// nil to disable the respective gate.
func NewFetcher(client *http.Client, cfg *config.AppConfig, userAgent string, rateLimiter *RateLimiter, robots *RobotsGate, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		client:      client,
		cfg:         cfg,
		userAgent:   userAgent,
		rateLimiter: rateLimiter,
		robots:      robots,
		log:         log,
	}
}

// FetchPage attempts to fetch targetURL up to cfg.MaxAttempts times, waiting
// cfg.RetryDelay between attempts. Any network error, timeout, or non-2xx
// status counts as a failed attempt; a single attempt either yields full HTML
// or nothing. Context cancellation stops retrying immediately.
func (f *Fetcher) FetchPage(ctx context.Context, identity, targetURL string) Result {
	reqLog := f.log.WithFields(logrus.Fields{"identity": identity, "url": targetURL})

	maxAttempts := f.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryDelay := f.cfg.RetryDelay

	// Policy check before spending any network attempt
	if f.robots != nil {
		if allowed := f.robots.Allowed(ctx, targetURL); !allowed {
			reqLog.Warn("URL disallowed by robots.txt, skipping fetch")
			err := fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, targetURL)
			return Result{Identity: identity, Attempts: 0, Err: err, Category: utils.CategorizeError(err)}
		}
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Check cancellation before the attempt and before sleeping
		select {
		case <-ctx.Done():
			return f.failure(identity, attempt-1, ctxWrappedErr(ctx, lastErr))
		default:
		}

		if attempt > 1 && retryDelay > 0 {
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_attempts": maxAttempts, "delay": retryDelay}).Warn("Retrying fetch...")
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return f.failure(identity, attempt-1, ctxWrappedErr(ctx, lastErr))
			}
		}

		if f.rateLimiter != nil {
			f.rateLimiter.ApplyDelay(hostOf(targetURL), 0)
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if reqErr != nil {
			// Malformed URL: no amount of retrying fixes this
			err := fmt.Errorf("%w: %w", utils.ErrRequestCreation, reqErr)
			reqLog.Error(err)
			return f.failure(identity, attempt, err)
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, doErr := f.client.Do(req)
		if f.rateLimiter != nil {
			f.rateLimiter.UpdateLastRequestTime(hostOf(targetURL))
		}

		// --- Network-level errors (DNS, TCP, TLS, timeout) ---
		if doErr != nil {
			if resp != nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			if errors.Is(doErr, context.Canceled) || errors.Is(doErr, context.DeadlineExceeded) {
				// Caller's context died mid-request; stop retrying
				return f.failure(identity, attempt, doErr)
			}
			lastErr = doErr
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", doErr)
			continue
		}

		statusCode := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		// --- 2xx: read the full body or count the attempt as failed ---
		if statusCode >= 200 && statusCode < 300 {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, readErr)
				resLog.Errorf("Body read error: %v", readErr)
				continue
			}
			finalURL := targetURL
			if resp.Request != nil && resp.Request.URL != nil {
				finalURL = resp.Request.URL.String()
			}
			resLog.Debug("Successfully fetched")
			return Result{Identity: identity, HTML: string(body), FinalURL: finalURL, Attempts: attempt}
		}

		// --- Non-2xx: classify for the failure report, then retry ---
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		switch {
		case statusCode >= 500:
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, resp.Status)
			resLog.Warn("Server error")
		case statusCode >= 400:
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)
			resLog.Warn("Client error")
		default:
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, resp.Status)
			resLog.Warnf("Unexpected status: %d", statusCode)
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxAttempts, lastErr)
	if lastErr == nil {
		lastErr = utils.ErrRetryFailed
	} else {
		lastErr = fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return f.failure(identity, maxAttempts, lastErr)
}

func (f *Fetcher) failure(identity string, attempts int, err error) Result {
	return Result{Identity: identity, Attempts: attempts, Err: err, Category: utils.CategorizeError(err)}
}

// ctxWrappedErr folds a prior attempt error into the context error so the
// failure reason shows what was happening when the run was cancelled.
func ctxWrappedErr(ctx context.Context, lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("context cancelled (%v) after error: %w", ctx.Err(), lastErr)
	}
	return ctx.Err()
}
