package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleYAML = `
default_user_agent: "medcrawl/1.0 (+https://example.org)"
output_base_dir: "./out"
state_dir: "./state"
total_pages: 700
batch_size: 10
max_attempts: 3
retry_delay: 2s
inter_batch_delay: 5s
inter_item_delay: 1s
empty_batch_limit: 3
respect_robots: true
sites:
  medex:
    base_url: "https://medex.example.com"
    listing_url_template: "https://medex.example.com/brands?page=%d"
    detail_path_prefix: "/brands/"
    language_separator: " - "
    company_suffix_pattern: '(Ltd|Limited|Pharma|Pharmaceuticals|Laboratories|Inc)\.?$'
    summary:
      entry_selector: "div.data-row"
      link_selector: "a.hoverable-block"
      name_selector: "div.data-row-top"
      column_selector: "div.col"
      columns: [strength, generic, company, price]
    detail:
      name_selector: "h1.page-heading-1-l"
      dosage_form_selector: "small"
      generic_selector: "[title='Generic Name']"
      strength_selector: "[title='Strength']"
      company_selector: "[title='Manufactured by']"
      pricing_package_selector: "div.package-container"
      dosage_selector: "#dosage"
      sections:
        indications: "#indications"
        sideEffects: "#side_effects"
`

func TestAppConfig_UnmarshalYAML(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, yaml.Unmarshal([]byte(sampleYAML), &cfg))

	assert.Equal(t, 700, cfg.TotalPages)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, 5*time.Second, cfg.InterBatchDelay)
	assert.True(t, cfg.RespectRobots)

	site, ok := cfg.Sites["medex"]
	require.True(t, ok)
	assert.Equal(t, "/brands/", site.DetailPathPrefix)
	assert.Equal(t, []string{"strength", "generic", "company", "price"}, site.Summary.Columns)
	assert.Equal(t, "#indications", site.Detail.Sections["indications"])
}

func TestAppConfig_ValidateDefaults(t *testing.T) {
	cfg := AppConfig{}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	assert.Equal(t, "./scraped_data", cfg.OutputBaseDir)
	assert.Equal(t, "./crawl_state", cfg.StateDir)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay, "retry delay defaulted when retries enabled")
	assert.Equal(t, 30*time.Second, cfg.HTTPClientSettings.Timeout)
}

func TestAppConfig_ValidateNegatives(t *testing.T) {
	cfg := AppConfig{TotalPages: -5, MaxAttempts: 0, RetryDelay: -time.Second, EmptyBatchLimit: -1}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 0, cfg.TotalPages)
	assert.GreaterOrEqual(t, cfg.MaxAttempts, 1)
	assert.Equal(t, 0, cfg.EmptyBatchLimit)
}

func TestSiteConfig_ValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SiteConfig)
	}{
		{"MissingBaseURL", func(c *SiteConfig) { c.BaseURL = "" }},
		{"MissingTemplate", func(c *SiteConfig) { c.ListingURLTemplate = "" }},
		{"TemplateWithoutPlaceholder", func(c *SiteConfig) { c.ListingURLTemplate = "https://x/brands" }},
		{"TemplateWithTwoPlaceholders", func(c *SiteConfig) { c.ListingURLTemplate = "https://x/%d/%d" }},
		{"MissingEntrySelector", func(c *SiteConfig) { c.Summary.EntrySelector = "" }},
		{"BadSuffixPattern", func(c *SiteConfig) { c.CompanySuffixPattern = "([unclosed" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validSiteConfig()
			tt.mutate(&cfg)
			_, err := cfg.Validate()
			assert.Error(t, err)
		})
	}
}

func TestSiteConfig_ValidateNormalization(t *testing.T) {
	cfg := validSiteConfig()
	cfg.DetailPathPrefix = "brands/"
	cfg.Summary.LinkSelector = ""

	warnings, err := cfg.Validate()
	require.NoError(t, err)
	_ = warnings

	assert.Equal(t, "/brands/", cfg.DetailPathPrefix, "prefix gains leading slash")
	assert.Equal(t, "a", cfg.Summary.LinkSelector, "link selector defaults to anchor")
}

func TestGetEffectiveOverrides(t *testing.T) {
	app := AppConfig{DefaultUserAgent: "global-ua", TotalPages: 100, BatchSize: 10, InterBatchDelay: 5 * time.Second}
	site := validSiteConfig()

	assert.Equal(t, "global-ua", GetEffectiveUserAgent(site, app))
	assert.Equal(t, 100, GetEffectiveTotalPages(site, app))
	assert.Equal(t, 10, GetEffectiveBatchSize(site, app))
	assert.Equal(t, 5*time.Second, GetEffectiveInterBatchDelay(site, app))

	pages := 250
	batch := 25
	delay := time.Second
	site.UserAgent = "site-ua"
	site.TotalPages = &pages
	site.BatchSize = &batch
	site.InterBatchDelay = &delay
	site.InterItemDelay = &delay

	assert.Equal(t, "site-ua", GetEffectiveUserAgent(site, app))
	assert.Equal(t, 250, GetEffectiveTotalPages(site, app))
	assert.Equal(t, 25, GetEffectiveBatchSize(site, app))
	assert.Equal(t, time.Second, GetEffectiveInterBatchDelay(site, app))
	assert.Equal(t, time.Second, GetEffectiveInterItemDelay(site, app))
}

func validSiteConfig() SiteConfig {
	return SiteConfig{
		BaseURL:            "https://medex.example.com",
		ListingURLTemplate: "https://medex.example.com/brands?page=%d",
		DetailPathPrefix:   "/brands/",
		Summary: SummaryRules{
			EntrySelector:  "div.data-row",
			LinkSelector:   "a",
			ColumnSelector: "div.col",
			Columns:        []string{"strength", "generic", "company", "price"},
		},
		Detail: DetailRules{NameSelector: "h1"},
	}
}
