package config

import (
	"fmt"
	"strings"
	"time"

	"medcrawl/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// OutputBaseDir
	if c.OutputBaseDir == "" {
		warnings = append(warnings, "output_base_dir is empty, defaulting to './scraped_data'")
		c.OutputBaseDir = "./scraped_data"
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './crawl_state'")
		c.StateDir = "./crawl_state"
	}

	// TotalPages is the hard bound on the index space; without it page mode
	// has no unit of work.
	if c.TotalPages < 0 {
		warnings = append(warnings, "total_pages cannot be negative, setting to 0")
		c.TotalPages = 0
	}

	// BatchSize
	if c.BatchSize <= 0 {
		warnings = append(warnings, "batch_size should be > 0, defaulting to 10")
		c.BatchSize = 10
	}

	// MaxAttempts: at least one attempt is always made
	if c.MaxAttempts < 1 {
		warnings = append(warnings, "max_attempts should be >= 1, defaulting to 3")
		c.MaxAttempts = 3
	}

	// RetryDelay
	if c.RetryDelay < 0 {
		warnings = append(warnings, "retry_delay cannot be negative, setting to 0")
		c.RetryDelay = 0
	}
	if c.MaxAttempts > 1 && c.RetryDelay == 0 {
		c.RetryDelay = 2 * time.Second
	}

	// RequestDelay
	if c.RequestDelay < 0 {
		warnings = append(warnings, "request_delay cannot be negative, setting to 0")
		c.RequestDelay = 0
	}

	// Inter-batch / inter-item delays
	if c.InterBatchDelay < 0 {
		warnings = append(warnings, "inter_batch_delay cannot be negative, setting to 0")
		c.InterBatchDelay = 0
	}
	if c.InterItemDelay < 0 {
		warnings = append(warnings, "inter_item_delay cannot be negative, setting to 0")
		c.InterItemDelay = 0
	}

	// EmptyBatchLimit
	if c.EmptyBatchLimit < 0 {
		warnings = append(warnings, "empty_batch_limit cannot be negative, disabling early exit")
		c.EmptyBatchLimit = 0
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil // AppConfig validation never fails fatally
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place (e.g., path prefix normalization).
func (c *SiteConfig) Validate() (warnings []string, err error) {
	// Required: BaseURL
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: site needs base_url", utils.ErrConfigValidation)
	}

	// Required: ListingURLTemplate with exactly one page-number slot
	if c.ListingURLTemplate == "" {
		return nil, fmt.Errorf("%w: site needs listing_url_template", utils.ErrConfigValidation)
	}
	if strings.Count(c.ListingURLTemplate, "%d") != 1 {
		return nil, fmt.Errorf("%w: listing_url_template must contain exactly one %%d placeholder", utils.ErrConfigValidation)
	}

	// DetailPathPrefix normalization
	if c.DetailPathPrefix == "" {
		warnings = append(warnings, "detail_path_prefix is empty; all entry links will be accepted")
	} else if c.DetailPathPrefix[0] != '/' {
		c.DetailPathPrefix = "/" + c.DetailPathPrefix
	}

	// Required: summary entry selector
	if c.Summary.EntrySelector == "" {
		return nil, fmt.Errorf("%w: site needs summary.entry_selector", utils.ErrConfigValidation)
	}
	if c.Summary.LinkSelector == "" {
		c.Summary.LinkSelector = "a"
	}

	// Alternate variant, if present, has the same requirements
	if c.SummaryAlternate != nil {
		if c.SummaryAlternate.EntrySelector == "" {
			return nil, fmt.Errorf("%w: summary_alternate needs entry_selector", utils.ErrConfigValidation)
		}
		if c.SummaryAlternate.LinkSelector == "" {
			c.SummaryAlternate.LinkSelector = "a"
		}
	}

	// CompanySuffixPattern must compile if provided
	if c.CompanySuffixPattern != "" {
		if _, err := utils.CompileRegexPatterns([]string{c.CompanySuffixPattern}); err != nil {
			return nil, fmt.Errorf("%w: company_suffix_pattern: %v", utils.ErrConfigValidation, err)
		}
	}

	// Detail name selector is the anchor of the whole detail extraction
	if c.Detail.NameSelector == "" {
		warnings = append(warnings, "detail.name_selector is empty; detail names will resolve to null")
	}

	// Overrides
	if c.TotalPages != nil && *c.TotalPages < 0 {
		warnings = append(warnings, "site total_pages cannot be negative, ignoring override")
		c.TotalPages = nil
	}
	if c.BatchSize != nil && *c.BatchSize <= 0 {
		warnings = append(warnings, "site batch_size must be > 0, ignoring override")
		c.BatchSize = nil
	}

	return warnings, nil
}
