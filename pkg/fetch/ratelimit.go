package fetch

import (
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter manages request timing per host for politeness. The delay is
// static (configured), not adaptive; batch and item pacing on top of this
// live in the scheduler.
type RateLimiter struct {
	hostLastRequest   map[string]time.Time // hostname -> last request attempt time
	hostLastRequestMu sync.Mutex           // Protects hostLastRequest map
	defaultDelay      time.Duration        // Fallback delay if specific delay is invalid
	log               *logrus.Logger
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		hostLastRequest: make(map[string]time.Time),
		defaultDelay:    defaultDelay,
		log:             log,
	}
}

// ApplyDelay sleeps if the time since the last request to the host is less than minDelay
func (rl *RateLimiter) ApplyDelay(host string, minDelay time.Duration) {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return
	}

	// Read last request time safely
	rl.hostLastRequestMu.Lock()
	lastReqTime, exists := rl.hostLastRequest[host]
	rl.hostLastRequestMu.Unlock() // Unlock before potentially sleeping

	if exists {
		elapsed := time.Since(lastReqTime)
		if elapsed < minDelay {
			sleepDuration := minDelay - elapsed
			rl.log.WithFields(logrus.Fields{
				"host": host, "sleep": sleepDuration, "required_delay": minDelay, "elapsed": elapsed,
			}).Debug("Rate limit applying sleep")
			time.Sleep(sleepDuration)
		}
	}
	// Timestamp update via UpdateLastRequestTime happens *after* the request attempt in calling code
}

// UpdateLastRequestTime records the current time as the last request attempt time for the host
// Call this *after* an HTTP request attempt to the host
func (rl *RateLimiter) UpdateLastRequestTime(host string) {
	rl.hostLastRequestMu.Lock()
	rl.hostLastRequest[host] = time.Now()
	rl.hostLastRequestMu.Unlock()
}

// hostOf extracts the hostname from a URL string, or "" if unparseable.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
