package config

import "time"

// SummaryRules describes how to extract listing entries from one index-page
// layout. Selectors are data rather than code so markup drift between site
// sections is a config edit, not a new extractor.
type SummaryRules struct {
	// EntrySelector locates the repeating listing-entry nodes.
	EntrySelector string `yaml:"entry_selector"`
	// LinkSelector locates the detail-page anchor within an entry.
	LinkSelector string `yaml:"link_selector"`
	// NameSelector locates the brand name node within an entry.
	NameSelector string `yaml:"name_selector"`
	// ColumnSelector locates the unlabeled positional text nodes within an entry.
	ColumnSelector string `yaml:"column_selector"`
	// Columns assigns field roles to positional ranks in document order.
	// Recognized roles: strength, generic, company, price, medicine_type.
	Columns []string `yaml:"columns"`
	// FreeTextSeparator is the token tried first when an entry has no column
	// nodes and its remaining text must be decomposed heuristically.
	FreeTextSeparator string `yaml:"free_text_separator,omitempty"`
	// CompanyLabelSelector, when set, is tried before any positional company
	// column (label-first extraction, alternate site sections).
	CompanyLabelSelector string `yaml:"company_label_selector,omitempty"`
	// GenericColumn is the preferred positional rank for the generic name in
	// the alternate variant; on text collision with an already-assigned field
	// the remaining columns are scanned instead. Negative = disabled.
	GenericColumn int `yaml:"generic_column,omitempty"`
}

// DetailRules describes the selector set for one brand detail-page layout.
type DetailRules struct {
	NameSelector       string `yaml:"name_selector"`
	DosageFormSelector string `yaml:"dosage_form_selector"` // Subtitle node nested inside the name heading
	GenericSelector    string `yaml:"generic_selector"`
	StrengthSelector   string `yaml:"strength_selector"`
	CompanySelector    string `yaml:"company_selector"`
	PackImageSelector  string `yaml:"pack_image_selector"`

	PricingPackageSelector string `yaml:"pricing_package_selector"`

	FlagSelector             string `yaml:"flag_selector,omitempty"`
	AlsoAvailableSelector    string `yaml:"also_available_selector,omitempty"`
	AlternateBrandsSelector  string `yaml:"alternate_brands_selector,omitempty"`
	TherapeuticClassSelector string `yaml:"therapeutic_class_selector,omitempty"`

	// Sections maps canonical section keys (models.Section*) to container selectors.
	Sections map[string]string `yaml:"sections"`

	DosageSelector string `yaml:"dosage_selector"`

	FAQItemSelector     string `yaml:"faq_item_selector,omitempty"`
	FAQQuestionSelector string `yaml:"faq_question_selector,omitempty"`
	FAQAnswerSelector   string `yaml:"faq_answer_selector,omitempty"`

	CompoundSectionSelector string `yaml:"compound_section_selector,omitempty"`
}

// SiteConfig holds configuration specific to a single directory site
type SiteConfig struct {
	BaseURL            string `yaml:"base_url"`
	ListingURLTemplate string `yaml:"listing_url_template"` // fmt template with one %d for the page number
	DetailPathPrefix   string `yaml:"detail_path_prefix"`   // Entries whose detail link lacks this prefix are discarded

	// LanguageSeparator splits a multilingual name into primary/secondary parts.
	LanguageSeparator string `yaml:"language_separator,omitempty"`
	// CompanySuffixPattern is the organizational-entity heuristic used by the
	// positional company fallback (e.g. matching "... Pharmaceuticals Ltd.").
	CompanySuffixPattern string `yaml:"company_suffix_pattern,omitempty"`

	// NameSourceLang/NameTargetLang configure secondary-name translation for
	// listings whose markup carries only one language. Ignored unless a
	// translation backend is attached to the page scheduler.
	NameSourceLang string `yaml:"name_source_lang,omitempty"`
	NameTargetLang string `yaml:"name_target_lang,omitempty"`

	Summary          SummaryRules  `yaml:"summary"`
	SummaryAlternate *SummaryRules `yaml:"summary_alternate,omitempty"`
	Detail           DetailRules   `yaml:"detail"`

	UserAgent       string         `yaml:"user_agent,omitempty"`
	TotalPages      *int           `yaml:"total_pages,omitempty"`
	BatchSize       *int           `yaml:"batch_size,omitempty"`
	InterBatchDelay *time.Duration `yaml:"inter_batch_delay,omitempty"`
	InterItemDelay  *time.Duration `yaml:"inter_item_delay,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent string `yaml:"default_user_agent"`
	OutputBaseDir    string `yaml:"output_base_dir"`
	StateDir         string `yaml:"state_dir"`

	TotalPages      int           `yaml:"total_pages"` // Hard upper bound on the index space
	BatchSize       int           `yaml:"batch_size"`
	MaxAttempts     int           `yaml:"max_attempts,omitempty"`  // Fetch attempts per identity, >= 1
	RetryDelay      time.Duration `yaml:"retry_delay,omitempty"`   // Fixed wait between attempts
	RequestDelay    time.Duration `yaml:"request_delay,omitempty"` // Minimum per-host spacing between requests
	InterBatchDelay time.Duration `yaml:"inter_batch_delay,omitempty"`
	InterItemDelay  time.Duration `yaml:"inter_item_delay,omitempty"`

	// EmptyBatchLimit bounds the consecutive-empty-batch early exit in page
	// mode. 0 disables the optimization; the TotalPages bound always applies.
	EmptyBatchLimit int `yaml:"empty_batch_limit,omitempty"`

	RespectRobots bool `yaml:"respect_robots,omitempty"`

	HTTPClientSettings HTTPClientConfig      `yaml:"http_client_settings,omitempty"`
	Sites              map[string]SiteConfig `yaml:"sites"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout             time.Duration `yaml:"timeout,omitempty"`                 // Per-attempt request timeout
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	DialerTimeout       time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// GetEffectiveUserAgent determines the effective user agent for a site
func GetEffectiveUserAgent(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.UserAgent != "" {
		return siteCfg.UserAgent
	}
	if appCfg.DefaultUserAgent != "" {
		return appCfg.DefaultUserAgent
	}
	return "medcrawl/1.0"
}

// GetEffectiveTotalPages determines the effective index-space bound
func GetEffectiveTotalPages(siteCfg SiteConfig, appCfg AppConfig) int {
	if siteCfg.TotalPages != nil {
		return *siteCfg.TotalPages
	}
	return appCfg.TotalPages
}

// GetEffectiveBatchSize determines the effective batch size
func GetEffectiveBatchSize(siteCfg SiteConfig, appCfg AppConfig) int {
	if siteCfg.BatchSize != nil {
		return *siteCfg.BatchSize
	}
	return appCfg.BatchSize
}

// GetEffectiveInterBatchDelay determines the sleep between page batches
func GetEffectiveInterBatchDelay(siteCfg SiteConfig, appCfg AppConfig) time.Duration {
	if siteCfg.InterBatchDelay != nil {
		return *siteCfg.InterBatchDelay
	}
	return appCfg.InterBatchDelay
}

// GetEffectiveInterItemDelay determines the sleep between detail items
func GetEffectiveInterItemDelay(siteCfg SiteConfig, appCfg AppConfig) time.Duration {
	if siteCfg.InterItemDelay != nil {
		return *siteCfg.InterItemDelay
	}
	return appCfg.InterItemDelay
}
