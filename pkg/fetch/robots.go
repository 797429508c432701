package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsGate fetches, parses, and caches robots.txt per host and answers
// allow/deny for individual URLs. Any error obtaining or parsing robots.txt
// results in "allowed"; the gate never blocks the crawl on its own failures.
type RobotsGate struct {
	client    *http.Client
	userAgent string
	cache     map[string]*robotstxt.RobotsData // hostname -> parsed data (nil = no usable robots.txt)
	cacheMu   sync.Mutex
	log       *logrus.Logger
}

// NewRobotsGate creates a RobotsGate
func NewRobotsGate(client *http.Client, userAgent string, log *logrus.Logger) *RobotsGate {
	return &RobotsGate{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log,
	}
}

// Allowed reports whether targetURL may be fetched under the host's
// robots.txt for the gate's user agent.
func (rg *RobotsGate) Allowed(ctx context.Context, targetURL string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return true // Unparseable URLs fail later at request creation with a better error
	}

	data := rg.robotsData(ctx, parsed)
	if data == nil {
		return true
	}
	group := data.FindGroup(rg.userAgent)
	if group == nil {
		return true
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

// robotsData returns cached robots data for the URL's host, fetching once on
// first use. A nil entry is cached for hosts without a usable robots.txt so
// failed fetches aren't repeated per URL.
func (rg *RobotsGate) robotsData(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Hostname()

	rg.cacheMu.Lock()
	data, found := rg.cache[host]
	rg.cacheMu.Unlock()
	if found {
		return data
	}

	hostLog := rg.log.WithField("host", host)
	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"

	var fetched *robotstxt.RobotsData
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err == nil {
		req.Header.Set("User-Agent", rg.userAgent)
		resp, doErr := rg.client.Do(req)
		if doErr != nil {
			hostLog.Warnf("Failed to fetch robots.txt: %v", doErr)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				hostLog.Warnf("Failed to read robots.txt body: %v", readErr)
			} else {
				parsed, parseErr := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
				if parseErr != nil {
					hostLog.Warnf("Failed to parse robots.txt: %v", parseErr)
				} else {
					fetched = parsed
					hostLog.Debug("Cached robots.txt")
				}
			}
		}
	}

	rg.cacheMu.Lock()
	rg.cache[host] = fetched
	rg.cacheMu.Unlock()
	return fetched
}
