package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/build"
	"github.com/rohmanhakim/capture-crawler/pkg/urlutil"
	"gopkg.in/yaml.v3"
)

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// Page the crawl starts from. Normalized by Build.
	seedURL url.URL
	// String prefix every dispatched URL must start with. Empty means derive it from the seed.
	scopePrefix string
	// How to derive the scope prefix when it is empty
	scopeMode ScopeMode
	// Regular expressions of URLs that must never be dispatched, evaluated in order
	exclusionPatterns []string
	exclusions        []*regexp.Regexp

	//===============
	// Limits
	//===============
	// Maximum number of discovered pages dispatched in addition to the seed. 0 means unlimited.
	limit int
	// Number of render workers, each owning one browser tab
	workers int

	//===============
	// Rendering
	//===============
	// Page events to wait for after navigation
	waitCondition WaitCondition
	// Upper bound of a single navigation
	pageTimeout time.Duration
	// Whether to scroll each page to the bottom before extracting links
	scroll bool
	// Upper bound of the auto-scroll routine
	scrollCeiling time.Duration
	// Grace period after the crawl went idle
	settleDelay time.Duration
	// Chrome/Chromium binary. Empty lets the renderer search the usual locations.
	chromePath string
	// Run the browser with a visible window
	headful bool

	//===============
	// Network
	//===============
	userAgent string
	// Contact appended to the user agent
	adminEmail string
	// Address of the capture proxy the browser is routed through
	captureHost string
	capturePort int
	// Upper bound of admission probes and direct captures
	probeTimeout time.Duration
	// Per-host request rate, 0 disables limiting
	rateLimit float64
	rateBurst int
	// Skip resolving seed redirects before the crawl starts
	skipSeedCheck bool

	//===============
	// Retry (seed check)
	//===============
	maxAttempt             int
	jitter                 time.Duration
	randomSeed             int64
	backoffInitialDuration time.Duration
	backoffMultiplier      float64
	backoffMaxDuration     time.Duration

	//===============
	// Output
	//===============
	// Directory the packaged archive is written to
	outputDir string
	// Directory the capture relay writes its collections into
	workDir string
	// Archive name, defaults to the seed hostname
	name        string
	title       string
	description string
	favicon     string
	lang        string
	// Packaging executable
	packagerBinary string
	// Stop after the crawl without packaging
	skipPackage bool
	// Progress file rewritten after every page. Empty disables it.
	statsFile string
	// SQLite ledger of page outcomes. Empty disables it.
	ledgerPath string

	//===============
	// Observability
	//===============
	// Listen address for the Prometheus endpoint. Empty disables it.
	metricsAddr string
	logLevel    string
	logFormat   string
	// Rotated log file in addition to stderr. Empty disables it.
	logFile string
}

type configDTO struct {
	Seed                   string        `yaml:"seed"`
	Scope                  string        `yaml:"scope,omitempty"`
	ScopeType              string        `yaml:"scopeType,omitempty"`
	Exclude                []string      `yaml:"exclude,omitempty"`
	Limit                  int           `yaml:"limit,omitempty"`
	Workers                int           `yaml:"workers,omitempty"`
	WaitUntil              string        `yaml:"waitUntil,omitempty"`
	Timeout                time.Duration `yaml:"timeout,omitempty"`
	Scroll                 bool          `yaml:"scroll,omitempty"`
	ScrollCeiling          time.Duration `yaml:"scrollCeiling,omitempty"`
	SettleDelay            time.Duration `yaml:"settleDelay,omitempty"`
	ChromePath             string        `yaml:"chromePath,omitempty"`
	Headful                bool          `yaml:"headful,omitempty"`
	UserAgent              string        `yaml:"userAgent,omitempty"`
	AdminEmail             string        `yaml:"adminEmail,omitempty"`
	ProxyHost              string        `yaml:"proxyHost,omitempty"`
	ProxyPort              int           `yaml:"proxyPort,omitempty"`
	ProbeTimeout           time.Duration `yaml:"probeTimeout,omitempty"`
	RateLimit              float64       `yaml:"rateLimit,omitempty"`
	RateBurst              int           `yaml:"rateBurst,omitempty"`
	SkipSeedCheck          bool          `yaml:"skipSeedCheck,omitempty"`
	MaxAttempt             int           `yaml:"maxAttempt,omitempty"`
	Jitter                 time.Duration `yaml:"jitter,omitempty"`
	RandomSeed             int64         `yaml:"randomSeed,omitempty"`
	BackoffInitialDuration time.Duration `yaml:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64       `yaml:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration `yaml:"backoffMaxDuration,omitempty"`
	Output                 string        `yaml:"output,omitempty"`
	WorkDir                string        `yaml:"workDir,omitempty"`
	Name                   string        `yaml:"name,omitempty"`
	Title                  string        `yaml:"title,omitempty"`
	Description            string        `yaml:"description,omitempty"`
	Favicon                string        `yaml:"favicon,omitempty"`
	Lang                   string        `yaml:"lang,omitempty"`
	Packager               string        `yaml:"packager,omitempty"`
	SkipPackage            bool          `yaml:"skipPackage,omitempty"`
	StatsFile              string        `yaml:"statsFile,omitempty"`
	Ledger                 string        `yaml:"ledger,omitempty"`
	MetricsAddr            string        `yaml:"metricsAddr,omitempty"`
	LogLevel               string        `yaml:"logLevel,omitempty"`
	LogFormat              string        `yaml:"logFormat,omitempty"`
	LogFile                string        `yaml:"logFile,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	seed, err := url.Parse(dto.Seed)
	if err != nil || dto.Seed == "" {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidSeed, dto.Seed)
	}

	b := WithDefault(*seed)

	// only override when a non-zero value is provided
	if dto.Scope != "" {
		b.WithScopePrefix(dto.Scope)
	}
	if dto.ScopeType != "" {
		mode, err := ParseScopeMode(dto.ScopeType)
		if err != nil {
			return Config{}, err
		}
		b.WithScopeMode(mode)
	}
	if len(dto.Exclude) > 0 {
		b.WithExclusions(dto.Exclude)
	}
	if dto.Limit != 0 {
		b.WithLimit(dto.Limit)
	}
	if dto.Workers != 0 {
		b.WithWorkers(dto.Workers)
	}
	if dto.WaitUntil != "" {
		wc, err := ParseWaitCondition(dto.WaitUntil)
		if err != nil {
			return Config{}, err
		}
		b.WithWaitCondition(wc)
	}
	if dto.Timeout != 0 {
		b.WithPageTimeout(dto.Timeout)
	}
	b.WithScroll(dto.Scroll)
	if dto.ScrollCeiling != 0 {
		b.WithScrollCeiling(dto.ScrollCeiling)
	}
	if dto.SettleDelay != 0 {
		b.WithSettleDelay(dto.SettleDelay)
	}
	if dto.ChromePath != "" {
		b.WithChromePath(dto.ChromePath)
	}
	b.WithHeadful(dto.Headful)
	if dto.UserAgent != "" {
		b.WithUserAgent(dto.UserAgent)
	}
	if dto.AdminEmail != "" {
		b.WithAdminEmail(dto.AdminEmail)
	}
	if dto.ProxyHost != "" {
		b.WithCaptureHost(dto.ProxyHost)
	}
	if dto.ProxyPort != 0 {
		b.WithCapturePort(dto.ProxyPort)
	}
	if dto.ProbeTimeout != 0 {
		b.WithProbeTimeout(dto.ProbeTimeout)
	}
	if dto.RateLimit != 0 {
		b.WithRateLimit(dto.RateLimit, dto.RateBurst)
	}
	b.WithSkipSeedCheck(dto.SkipSeedCheck)
	if dto.MaxAttempt != 0 {
		b.WithMaxAttempt(dto.MaxAttempt)
	}
	if dto.Jitter != 0 {
		b.WithJitter(dto.Jitter)
	}
	if dto.RandomSeed != 0 {
		b.WithRandomSeed(dto.RandomSeed)
	}
	if dto.BackoffInitialDuration != 0 || dto.BackoffMultiplier != 0 || dto.BackoffMaxDuration != 0 {
		initial, multiplier, maxDuration := b.backoffInitialDuration, b.backoffMultiplier, b.backoffMaxDuration
		if dto.BackoffInitialDuration != 0 {
			initial = dto.BackoffInitialDuration
		}
		if dto.BackoffMultiplier != 0 {
			multiplier = dto.BackoffMultiplier
		}
		if dto.BackoffMaxDuration != 0 {
			maxDuration = dto.BackoffMaxDuration
		}
		b.WithBackoff(initial, multiplier, maxDuration)
	}
	if dto.Output != "" {
		b.WithOutputDir(dto.Output)
	}
	if dto.WorkDir != "" {
		b.WithWorkDir(dto.WorkDir)
	}
	if dto.Name != "" {
		b.WithName(dto.Name)
	}
	b.WithArchiveMetadata(dto.Title, dto.Description, dto.Favicon, dto.Lang)
	if dto.Packager != "" {
		b.WithPackagerBinary(dto.Packager)
	}
	b.WithSkipPackage(dto.SkipPackage)
	if dto.StatsFile != "" {
		b.WithStatsFile(dto.StatsFile)
	}
	if dto.Ledger != "" {
		b.WithLedgerPath(dto.Ledger)
	}
	if dto.MetricsAddr != "" {
		b.WithMetricsAddr(dto.MetricsAddr)
	}
	if dto.LogLevel != "" || dto.LogFormat != "" || dto.LogFile != "" {
		level, format := b.logLevel, b.logFormat
		if dto.LogLevel != "" {
			level = dto.LogLevel
		}
		if dto.LogFormat != "" {
			format = dto.LogFormat
		}
		b.WithLogging(level, format, dto.LogFile)
	}

	return b.Build()
}

// WithConfigFile loads a YAML (or JSON) config file on top of the defaults.
func WithConfigFile(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	dto := configDTO{}
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(dto)
}

// WithDefault creates a Config builder for seed with default values for all other fields.
func WithDefault(seed url.URL) *Config {
	defaultConfig := Config{
		seedURL:                seed,
		scopeMode:              ScopeModePrefix,
		limit:                  0,
		workers:                1,
		waitCondition:          MustParseWaitCondition(string(WaitLoad)),
		pageTimeout:            90 * time.Second,
		scroll:                 false,
		scrollCeiling:          30 * time.Second,
		settleDelay:            5 * time.Second,
		userAgent:              build.UserAgent(),
		captureHost:            "localhost",
		capturePort:            8080,
		probeTimeout:           10 * time.Second,
		rateLimit:              0,
		rateBurst:              1,
		maxAttempt:             3,
		jitter:                 100 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		backoffInitialDuration: 500 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     5 * time.Second,
		outputDir:              "/output",
		workDir:                ".",
		packagerBinary:         "warc2zim",
		logLevel:               "info",
		logFormat:              "text",
	}
	return &defaultConfig
}

func (c *Config) WithSeedURL(seed url.URL) *Config {
	c.seedURL = seed
	return c
}

func (c *Config) WithScopePrefix(prefix string) *Config {
	c.scopePrefix = prefix
	return c
}

func (c *Config) WithScopeMode(mode ScopeMode) *Config {
	c.scopeMode = mode
	return c
}

// WithExclusions sets the exclusion regular expressions. They are compiled by Build.
func (c *Config) WithExclusions(patterns []string) *Config {
	c.exclusionPatterns = append([]string(nil), patterns...)
	return c
}

func (c *Config) WithLimit(limit int) *Config {
	c.limit = limit
	return c
}

func (c *Config) WithWorkers(workers int) *Config {
	c.workers = workers
	return c
}

func (c *Config) WithWaitCondition(wc WaitCondition) *Config {
	c.waitCondition = wc
	return c
}

func (c *Config) WithPageTimeout(timeout time.Duration) *Config {
	c.pageTimeout = timeout
	return c
}

func (c *Config) WithScroll(scroll bool) *Config {
	c.scroll = scroll
	return c
}

func (c *Config) WithScrollCeiling(ceiling time.Duration) *Config {
	c.scrollCeiling = ceiling
	return c
}

func (c *Config) WithSettleDelay(delay time.Duration) *Config {
	c.settleDelay = delay
	return c
}

func (c *Config) WithChromePath(path string) *Config {
	c.chromePath = path
	return c
}

func (c *Config) WithHeadful(headful bool) *Config {
	c.headful = headful
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithAdminEmail(email string) *Config {
	c.adminEmail = email
	return c
}

func (c *Config) WithCaptureHost(host string) *Config {
	c.captureHost = host
	return c
}

func (c *Config) WithCapturePort(port int) *Config {
	c.capturePort = port
	return c
}

func (c *Config) WithProbeTimeout(timeout time.Duration) *Config {
	c.probeTimeout = timeout
	return c
}

func (c *Config) WithRateLimit(perSecond float64, burst int) *Config {
	c.rateLimit = perSecond
	if burst > 0 {
		c.rateBurst = burst
	}
	return c
}

func (c *Config) WithSkipSeedCheck(skip bool) *Config {
	c.skipSeedCheck = skip
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithBackoff(initial time.Duration, multiplier float64, maxDuration time.Duration) *Config {
	c.backoffInitialDuration = initial
	c.backoffMultiplier = multiplier
	c.backoffMaxDuration = maxDuration
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithWorkDir(workDir string) *Config {
	c.workDir = workDir
	return c
}

func (c *Config) WithName(name string) *Config {
	c.name = name
	return c
}

func (c *Config) WithArchiveMetadata(title, description, favicon, lang string) *Config {
	c.title = title
	c.description = description
	c.favicon = favicon
	c.lang = lang
	return c
}

func (c *Config) WithPackagerBinary(binary string) *Config {
	c.packagerBinary = binary
	return c
}

func (c *Config) WithSkipPackage(skip bool) *Config {
	c.skipPackage = skip
	return c
}

func (c *Config) WithStatsFile(path string) *Config {
	c.statsFile = path
	return c
}

func (c *Config) WithLedgerPath(path string) *Config {
	c.ledgerPath = path
	return c
}

func (c *Config) WithMetricsAddr(addr string) *Config {
	c.metricsAddr = addr
	return c
}

func (c *Config) WithLogging(level, format, file string) *Config {
	c.logLevel = level
	c.logFormat = format
	c.logFile = file
	return c
}

// Build validates the builder and returns an immutable Config.
// The seed is normalized and exclusion patterns are compiled here.
func (c *Config) Build() (Config, error) {
	seed, err := urlutil.NormalizeURL(c.seedURL)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	c.seedURL = seed

	if c.workers < 1 {
		return Config{}, fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.workers)
	}
	if c.limit < 0 {
		return Config{}, fmt.Errorf("%w: limit cannot be negative, got %d", ErrInvalidConfig, c.limit)
	}
	if c.waitCondition.IsZero() {
		return Config{}, fmt.Errorf("%w: empty", ErrInvalidWaitCondition)
	}
	if c.pageTimeout <= 0 || c.probeTimeout <= 0 || c.scrollCeiling <= 0 {
		return Config{}, fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.settleDelay < 0 {
		return Config{}, fmt.Errorf("%w: settle delay cannot be negative", ErrInvalidConfig)
	}
	if c.capturePort < 1 || c.capturePort > 65535 {
		return Config{}, fmt.Errorf("%w: capture port out of range: %d", ErrInvalidConfig, c.capturePort)
	}
	if c.captureHost == "" {
		return Config{}, fmt.Errorf("%w: capture host cannot be empty", ErrInvalidConfig)
	}
	if c.rateLimit < 0 {
		return Config{}, fmt.Errorf("%w: rate limit cannot be negative", ErrInvalidConfig)
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: max attempt must be at least 1", ErrInvalidConfig)
	}
	if c.scopeMode != ScopeModePrefix && c.scopeMode != ScopeModeHost {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidScopeMode, c.scopeMode)
	}

	c.exclusions = make([]*regexp.Regexp, 0, len(c.exclusionPatterns))
	for _, pattern := range c.exclusionPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Config{}, fmt.Errorf("%w: exclusion %q: %v", ErrInvalidConfig, pattern, err)
		}
		c.exclusions = append(c.exclusions, re)
	}

	return *c, nil
}

func (c Config) SeedURL() url.URL {
	return c.seedURL
}

// ScopePrefix returns the configured scope override, empty when the
// scope is derived from the seed.
func (c Config) ScopePrefix() string {
	return c.scopePrefix
}

func (c Config) ScopeMode() ScopeMode {
	return c.scopeMode
}

func (c Config) ExclusionPatterns() []string {
	patterns := make([]string, len(c.exclusionPatterns))
	copy(patterns, c.exclusionPatterns)
	return patterns
}

func (c Config) Exclusions() []*regexp.Regexp {
	exclusions := make([]*regexp.Regexp, len(c.exclusions))
	copy(exclusions, c.exclusions)
	return exclusions
}

func (c Config) Limit() int {
	return c.limit
}

func (c Config) Workers() int {
	return c.workers
}

func (c Config) WaitCondition() WaitCondition {
	return c.waitCondition
}

func (c Config) PageTimeout() time.Duration {
	return c.pageTimeout
}

func (c Config) Scroll() bool {
	return c.scroll
}

func (c Config) ScrollCeiling() time.Duration {
	return c.scrollCeiling
}

func (c Config) SettleDelay() time.Duration {
	return c.settleDelay
}

func (c Config) ChromePath() string {
	return c.chromePath
}

func (c Config) Headful() bool {
	return c.headful
}

// UserAgent returns the configured user agent with the admin contact appended.
func (c Config) UserAgent() string {
	if c.adminEmail == "" {
		return c.userAgent
	}
	return c.userAgent + " +capture-crawler " + c.adminEmail
}

func (c Config) CaptureHost() string {
	return c.captureHost
}

func (c Config) CapturePort() int {
	return c.capturePort
}

// ProxyServer returns the proxy address handed to the browser.
func (c Config) ProxyServer() string {
	return fmt.Sprintf("http://%s:%d", c.captureHost, c.capturePort)
}

func (c Config) ProbeTimeout() time.Duration {
	return c.probeTimeout
}

func (c Config) RateLimit() float64 {
	return c.rateLimit
}

func (c Config) RateBurst() int {
	return c.rateBurst
}

func (c Config) SkipSeedCheck() bool {
	return c.skipSeedCheck
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) OutputDir() string {
	return c.outputDir
}

func (c Config) WorkDir() string {
	return c.workDir
}

// Name returns the archive name, defaulting to the seed hostname.
func (c Config) Name() string {
	if c.name != "" {
		return c.name
	}
	return c.seedURL.Hostname()
}

func (c Config) Title() string {
	return c.title
}

func (c Config) Description() string {
	return c.description
}

func (c Config) Favicon() string {
	return c.favicon
}

func (c Config) Lang() string {
	return c.lang
}

func (c Config) PackagerBinary() string {
	return c.packagerBinary
}

func (c Config) SkipPackage() bool {
	return c.skipPackage
}

func (c Config) StatsFile() string {
	return c.statsFile
}

func (c Config) LedgerPath() string {
	return c.ledgerPath
}

func (c Config) MetricsAddr() string {
	return c.metricsAddr
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) LogFormat() string {
	return c.logFormat
}

func (c Config) LogFile() string {
	return c.logFile
}
