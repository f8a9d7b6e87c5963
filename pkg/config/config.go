package config

import "time"

// Failure policies for upstream fetch errors
const (
	FailurePolicyLenient = "lenient" // Degrade to empty results and keep going
	FailurePolicyStrict  = "strict"  // Surface the failure and skip persistence
)

// Term store backends
const (
	StoreBackendBadger   = "badger"
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"
)

// AppConfig holds the global application configuration
type AppConfig struct {
	ServerAddr              string           `yaml:"server_addr"`
	UserAgent               string           `yaml:"user_agent"`
	MaxConcurrentRequests   int              `yaml:"max_concurrent_requests"`             // Ceiling on simultaneous upstream fetches
	RequestTimeout          time.Duration    `yaml:"request_timeout"`                     // Per-fetch timeout
	SemaphoreAcquireTimeout time.Duration    `yaml:"semaphore_acquire_timeout,omitempty"` // 0 = wait for a slot indefinitely
	RequestsPerSecond       float64          `yaml:"requests_per_second,omitempty"`       // Outbound pacing, 0 = unpaced
	Burst                   int              `yaml:"burst,omitempty"`
	RespectRobotsTxt        bool             `yaml:"respect_robots_txt,omitempty"`
	FailurePolicy           string           `yaml:"failure_policy"`
	CoalesceSearches        *bool            `yaml:"coalesce_searches,omitempty"` // nil = enabled
	Upstream                UpstreamConfig   `yaml:"upstream"`
	Selectors               SelectorConfig   `yaml:"selectors,omitempty"`
	Cache                   CacheConfig      `yaml:"cache"`
	Store                   StoreConfig      `yaml:"store"`
	HTTPClientSettings      HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	ClientConfig            *ClientConfig    `yaml:"client_config,omitempty"` // nil = built-in defaults
}

// UpstreamConfig locates the scraped pages
type UpstreamConfig struct {
	BaseURL      string `yaml:"base_url"`
	NewTagsPath  string `yaml:"new_tags_path"`  // Must contain one %d for the page number
	NewTagsPages int    `yaml:"new_tags_pages"` // Pages 0..n-1 are fetched
	BestTagsPath string `yaml:"best_tags_path"`
	SearchPath   string `yaml:"search_path"` // Must contain one %s for the escaped term
}

// SelectorConfig holds the CSS selectors for each section of the upstream markup
type SelectorConfig struct {
	RecommendedHeadingTag string `yaml:"recommended_heading_tag,omitempty"`
	RecommendedLabel      string `yaml:"recommended_label,omitempty"`
	TopContainer          string `yaml:"top_container,omitempty"`
	TopHeading            string `yaml:"top_heading,omitempty"`
	TopProgress           string `yaml:"top_progress,omitempty"`
	TopBar                string `yaml:"top_bar,omitempty"`
	TopValueAttr          string `yaml:"top_value_attr,omitempty"`
	BestContainer         string `yaml:"best_container,omitempty"`
	BestText              string `yaml:"best_text,omitempty"`
	Exact                 string `yaml:"exact,omitempty"`
	Popular               string `yaml:"popular,omitempty"`
	Related               string `yaml:"related,omitempty"`
	ListingTable          string `yaml:"listing_table,omitempty"`
}

// CacheConfig controls the bulk listings cache
type CacheConfig struct {
	Path            string        `yaml:"path"`
	TTL             time.Duration `yaml:"ttl"`
	RefreshSchedule string        `yaml:"refresh_schedule,omitempty"` // Cron spec for warm-up, empty = disabled
}

// StoreConfig selects and configures the term store
type StoreConfig struct {
	Backend     string        `yaml:"backend"`
	DatabaseURL string        `yaml:"database_url,omitempty"` // postgres
	StateDir    string        `yaml:"state_dir,omitempty"`    // badger
	SQLitePath  string        `yaml:"sqlite_path,omitempty"`  // sqlite
	GCInterval  time.Duration `yaml:"gc_interval,omitempty"`  // badger value-log GC, 0 = disabled
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	MaxConnsPerHost       int           `yaml:"max_conns_per_host,omitempty"`      // 0 = unlimited
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// ClientConfig is the static configuration served to front-end clients
type ClientConfig struct {
	EnableBilling  bool                     `yaml:"enable_billing" json:"enable_billing"`
	EnableAds      bool                     `yaml:"enable_ads" json:"enable_ads"`
	MaxRequest     string                   `yaml:"max_request" json:"max_request"`
	Recommendation []PlatformRecommendation `yaml:"social_media_recommendation" json:"social_media_recomendation"`
}

// PlatformRecommendation describes hashtag limits for one platform
type PlatformRecommendation struct {
	Platform        string `yaml:"platform" json:"platform"`
	MaxHashtagsChar string `yaml:"max_hashtags_char" json:"max_hashtags_char"`
	Recommendation  string `yaml:"recommendation" json:"recommendation"`
}

// DefaultClientConfig returns the built-in client configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		EnableBilling: false,
		EnableAds:     false,
		MaxRequest:    "unlimited",
		Recommendation: []PlatformRecommendation{
			{Platform: "Instagram", MaxHashtagsChar: "30 HashTags", Recommendation: "Use all 30 hashtags, as they can be hidden under the caption."},
			{Platform: "TikTok", MaxHashtagsChar: "120 Characters", Recommendation: "Use 5-8 most relevant hashtags in your video caption."},
			{Platform: "X (Twitter)", MaxHashtagsChar: "280 Characters", Recommendation: "Use 3-5 most relevant hashtags per tweet."},
			{Platform: "YouTube", MaxHashtagsChar: "15 HashTags", Recommendation: "Use 3 most relevant hashtags in the title to avoid being removed from search."},
			{Platform: "LinkedIn", MaxHashtagsChar: "Unlimited", Recommendation: "Use 5-8 most relevant hashtags; avoid over-tagging for better appearance."},
			{Platform: "Snapchat", MaxHashtagsChar: "Unlimited", Recommendation: "Use 2-3 most relevant hashtags in Spotlight."},
			{Platform: "Pinterest", MaxHashtagsChar: "20 HashTags", Recommendation: "Use 5-8 most relevant hashtags on your pins."},
			{Platform: "Facebook", MaxHashtagsChar: "Unlimited", Recommendation: "Use 2-5 relevant hashtags; too many can reduce engagement."},
			{Platform: "Threads", MaxHashtagsChar: "10 HashTags", Recommendation: "Use 3-5 relevant hashtags to improve visibility and engagement."},
		},
	}
}

// GetEffectiveCoalesceSearches determines whether concurrent first-time searches share one fetch
func GetEffectiveCoalesceSearches(appCfg AppConfig) bool {
	if appCfg.CoalesceSearches != nil {
		return *appCfg.CoalesceSearches
	}
	return true
}

// GetEffectiveClientConfig returns the configured client config or the built-in one
func GetEffectiveClientConfig(appCfg AppConfig) *ClientConfig {
	if appCfg.ClientConfig != nil {
		return appCfg.ClientConfig
	}
	return DefaultClientConfig()
}

// IsStrict reports whether upstream failures must be surfaced
func (c *AppConfig) IsStrict() bool {
	return c.FailurePolicy == FailurePolicyStrict
}
