package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/build"
	"github.com/rohmanhakim/capture-crawler/internal/config"
	"github.com/rohmanhakim/capture-crawler/internal/logging"
	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/internal/packager"
	"github.com/rohmanhakim/capture-crawler/internal/render"
	"github.com/rohmanhakim/capture-crawler/internal/scheduler"
	"github.com/rohmanhakim/capture-crawler/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInvalidArgs = 2
	ExitInterrupted = 3
)

var (
	cfgFile       string
	seedURL       string
	workers       int
	waitUntil     string
	timeout       time.Duration
	limit         int
	scopePrefix   string
	scopeType     string
	exclusions    []string
	scroll        bool
	settleDelay   time.Duration
	chromePath    string
	headful       bool
	userAgent     string
	adminEmail    string
	captureHost   string
	capturePort   int
	probeTimeout  time.Duration
	rateLimit     float64
	rateBurst     int
	skipSeedCheck bool
	outputDir     string
	workDir       string
	archiveName   string
	title         string
	description   string
	favicon       string
	lang          string
	packagerBin   string
	skipPackage   bool
	statsFile     string
	ledgerPath    string
	metricsAddr   string
	logLevel      string
	logFormat     string
	logFile       string

	// set in init
	rootFlags *pflag.FlagSet
)

// exitError carries the process exit code out of RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// ExitCode maps an error returned by the root command to a process exit
// code. Errors not raised by the crawl itself come from argument parsing.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return ExitInvalidArgs
}

// parseSeedURL parses the --url value into a url.URL.
func parseSeedURL(raw string) (url.URL, error) {
	if raw == "" {
		return url.URL{}, fmt.Errorf("%w: --url is required", config.ErrInvalidSeed)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return url.URL{}, fmt.Errorf("%w: %s: %v", config.ErrInvalidSeed, raw, err)
	}
	return *parsed, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "capture-crawler",
	Short: "Crawl a website through a capture proxy with a real browser.",
	Long: `capture-crawler renders every in-scope page of a website in headless
Chrome, routing all traffic through a recording proxy so the proxy can write
WARC archives. Non-HTML resources are handed to the proxy directly instead
of being rendered.

When the crawl completes the recorded WARC files are packaged with warc2zim.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return &exitError{code: ExitInvalidArgs, err: err}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code := runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		if code != ExitOK {
			return &exitError{code: code}
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "capture-crawler %s (built %s)\n", build.FullVersion(), build.BuildTime)
	},
}

// Execute runs the root command and returns the process exit code.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() int {
	err := rootCmd.Execute()
	var exitErr *exitError
	if err != nil && (!errors.As(err, &exitErr) || exitErr.err != nil) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	return ExitCode(err)
}

func init() {
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.Flags()
	rootFlags = flags
	flags.StringVar(&cfgFile, "config-file", "", "config file path, YAML or JSON (e.g., /etc/capture-crawler.yaml)")
	flags.StringVar(&seedURL, "url", "", "seed URL to start crawling from (required)")
	flags.IntVar(&workers, "workers", 1, "number of concurrent browser tabs")
	flags.StringVar(&waitUntil, "wait-until", "", "navigation wait condition: load, domcontentloaded, networkidle, networkidle0, networkidle2 or a comma separated combination")
	flags.DurationVar(&timeout, "timeout", 0, "per-page navigation timeout (default 90s)")
	flags.IntVar(&limit, "limit", 0, "maximum number of discovered pages to crawl besides the seed (0 for unlimited)")
	flags.StringVar(&scopePrefix, "scope", "", "URL prefix pages must start with (derived from the seed when empty)")
	flags.StringVar(&scopeType, "scope-type", "", "how to derive the scope from the seed: prefix or host")
	flags.StringArrayVar(&exclusions, "exclude", []string{}, "regular expression of URLs to skip (can be repeated)")
	flags.BoolVar(&scroll, "scroll", false, "scroll every page to the bottom before extracting links")
	flags.DurationVar(&settleDelay, "settle-delay", 5*time.Second, "wait after the crawl so the proxy can flush")
	flags.StringVar(&chromePath, "chrome-path", "", "path to the Chrome executable")
	flags.BoolVar(&headful, "headful", false, "show the browser window")
	flags.StringVar(&userAgent, "user-agent", "", "user agent for the browser and the prober")
	flags.StringVar(&adminEmail, "admin-email", "", "contact address appended to the user agent")
	flags.StringVar(&captureHost, "capture-host", os.Getenv("PROXY_HOST"), "capture proxy host (env PROXY_HOST)")
	flags.IntVar(&capturePort, "capture-port", envInt("PROXY_PORT"), "capture proxy port (env PROXY_PORT)")
	flags.DurationVar(&probeTimeout, "probe-timeout", 0, "timeout for HEAD probes and capture requests (default 10s)")
	flags.Float64Var(&rateLimit, "rate-limit", 0, "requests per second per host (0 for unlimited)")
	flags.IntVar(&rateBurst, "rate-burst", 0, "burst size for --rate-limit")
	flags.BoolVar(&skipSeedCheck, "skip-seed-check", false, "do not resolve seed redirects before crawling")
	flags.StringVar(&outputDir, "output", "", "directory the ZIM file is written to (default /output)")
	flags.StringVar(&workDir, "work-dir", "", "directory holding the capture collections (default .)")
	flags.StringVar(&archiveName, "name", "", "archive name (defaults to the seed host)")
	flags.StringVar(&title, "title", "", "archive title")
	flags.StringVar(&description, "description", "", "archive description")
	flags.StringVar(&favicon, "favicon", "", "archive favicon URL")
	flags.StringVar(&lang, "lang", "", "archive language (ISO 639-3)")
	flags.StringVar(&packagerBin, "packager", "", "packager executable (default warc2zim)")
	flags.BoolVar(&skipPackage, "skip-package", false, "crawl only, do not package")
	flags.StringVar(&statsFile, "stats-file", "", "write JSON crawl progress to this file")
	flags.StringVar(&ledgerPath, "ledger", "", "record every page outcome in this SQLite database")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while crawling")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this file, rotated")
}

func envInt(key string) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return n
}

// InitConfigWithError builds the crawl configuration from the config file
// when one is given, otherwise from the command line flags.
func InitConfigWithError() (config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	seed, err := parseSeedURL(seedURL)
	if err != nil {
		return config.Config{}, err
	}

	configBuilder := config.WithDefault(seed)

	if workers > 0 {
		configBuilder = configBuilder.WithWorkers(workers)
	}

	if waitUntil != "" {
		wc, err := config.ParseWaitCondition(waitUntil)
		if err != nil {
			return config.Config{}, err
		}
		configBuilder = configBuilder.WithWaitCondition(wc)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithPageTimeout(timeout)
	}

	if limit != 0 {
		configBuilder = configBuilder.WithLimit(limit)
	}

	if scopePrefix != "" {
		configBuilder = configBuilder.WithScopePrefix(scopePrefix)
	}

	if scopeType != "" {
		mode, err := config.ParseScopeMode(scopeType)
		if err != nil {
			return config.Config{}, err
		}
		configBuilder = configBuilder.WithScopeMode(mode)
	}

	if len(exclusions) > 0 {
		configBuilder = configBuilder.WithExclusions(exclusions)
	}

	if scroll {
		configBuilder = configBuilder.WithScroll(scroll)
	}

	if rootFlags != nil && rootFlags.Changed("settle-delay") {
		configBuilder = configBuilder.WithSettleDelay(settleDelay)
	}

	if chromePath != "" {
		configBuilder = configBuilder.WithChromePath(chromePath)
	}

	if headful {
		configBuilder = configBuilder.WithHeadful(headful)
	}

	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}

	if adminEmail != "" {
		configBuilder = configBuilder.WithAdminEmail(adminEmail)
	}

	if captureHost != "" {
		configBuilder = configBuilder.WithCaptureHost(captureHost)
	}

	if capturePort != 0 {
		configBuilder = configBuilder.WithCapturePort(capturePort)
	}

	if probeTimeout > 0 {
		configBuilder = configBuilder.WithProbeTimeout(probeTimeout)
	}

	if rateLimit != 0 {
		configBuilder = configBuilder.WithRateLimit(rateLimit, rateBurst)
	}

	if skipSeedCheck {
		configBuilder = configBuilder.WithSkipSeedCheck(skipSeedCheck)
	}

	if outputDir != "" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}

	if workDir != "" {
		configBuilder = configBuilder.WithWorkDir(workDir)
	}

	if archiveName != "" {
		configBuilder = configBuilder.WithName(archiveName)
	}

	if title != "" || description != "" || favicon != "" || lang != "" {
		configBuilder = configBuilder.WithArchiveMetadata(title, description, favicon, lang)
	}

	if packagerBin != "" {
		configBuilder = configBuilder.WithPackagerBinary(packagerBin)
	}

	if skipPackage {
		configBuilder = configBuilder.WithSkipPackage(skipPackage)
	}

	if statsFile != "" {
		configBuilder = configBuilder.WithStatsFile(statsFile)
	}

	if ledgerPath != "" {
		configBuilder = configBuilder.WithLedgerPath(ledgerPath)
	}

	if metricsAddr != "" {
		configBuilder = configBuilder.WithMetricsAddr(metricsAddr)
	}

	if logLevel != "" || logFormat != "" || logFile != "" {
		configBuilder = configBuilder.WithLogging(logLevel, logFormat, logFile)
	}

	return configBuilder.Build()
}

// runCrawl wires the crawl components for cfg, runs the crawl and packages
// the result. It returns the process exit code.
func runCrawl(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) int {
	logger, logCloser, err := logging.New(logging.Options{
		Level:   cfg.LogLevel(),
		Format:  cfg.LogFormat(),
		File:    cfg.LogFile(),
		Console: stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", err)
		return ExitInvalidArgs
	}
	defer logCloser.Close()

	metrics := metadata.NewMetrics()
	if cfg.MetricsAddr() != "" {
		server, err := metadata.StartMetricsServer(cfg.MetricsAddr(), metrics, logger)
		if err != nil {
			logger.Error("metrics server failed to start", slog.String("error", err.Error()))
			return ExitFailure
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	var pageStore metadata.PageStore
	if cfg.LedgerPath() != "" {
		ledger, err := storage.OpenLedger(cfg.LedgerPath())
		if err != nil {
			logger.Error("ledger failed to open",
				slog.String(string(metadata.AttrWritePath), cfg.LedgerPath()),
				slog.String("error", err.Error()),
			)
			return ExitFailure
		}
		defer ledger.Close()
		pageStore = ledger
	}

	recorder := metadata.NewRecorder(logger, metrics, pageStore)

	engineOpts := render.Options{
		ProxyServer:   cfg.ProxyServer(),
		UserAgent:     cfg.UserAgent(),
		ExecPath:      cfg.ChromePath(),
		Headful:       cfg.Headful(),
		ShutdownGrace: 5 * time.Second,
	}
	controller := scheduler.NewController(cfg, scheduler.ControllerDeps{
		LaunchEngine: func(ctx context.Context) (render.Engine, error) {
			return render.NewChromeEngine(ctx, engineOpts)
		},
		MetadataSink: recorder,
		Finalizer:    recorder,
		Stats:        storage.NewStatsWriter(cfg.StatsFile(), recorder),
		Logger:       logger,
	})

	result, err := controller.Run(ctx)
	if err != nil {
		logger.Error("crawl failed", slog.String("error", err.Error()))
		return ExitFailure
	}
	if result.Interrupted {
		logger.Warn("crawl interrupted, skipping packaging",
			slog.Int("dispatched", result.Dispatched),
		)
		return ExitInterrupted
	}
	if cfg.SkipPackage() {
		logger.Info("packaging skipped")
		return ExitOK
	}

	p := packager.NewPackager(logger, stdout, stderr)
	err = p.Run(ctx, packager.Options{
		Binary:      cfg.PackagerBinary(),
		URL:         result.Seed,
		Name:        cfg.Name(),
		Output:      cfg.OutputDir(),
		WorkDir:     cfg.WorkDir(),
		Title:       cfg.Title(),
		Description: cfg.Description(),
		Favicon:     cfg.Favicon(),
		Lang:        cfg.Lang(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ExitInterrupted
		}
		var pkgErr *packager.PackageError
		if errors.As(err, &pkgErr) {
			recorder.RecordError(
				time.Now(),
				"packager",
				"Packager.Run",
				packager.MapPackageErrorToMetadataCause(pkgErr),
				pkgErr.Error(),
				[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, cfg.OutputDir())},
			)
		}
		return ExitFailure
	}
	logger.Info("archive packaged",
		slog.String("name", cfg.Name()),
		slog.String(string(metadata.AttrWritePath), cfg.OutputDir()),
	)
	return ExitOK
}

func ResetFlags() {
	cfgFile = ""
	seedURL = ""
	workers = 0
	waitUntil = ""
	timeout = 0
	limit = 0
	scopePrefix = ""
	scopeType = ""
	exclusions = []string{}
	scroll = false
	settleDelay = 0
	chromePath = ""
	headful = false
	userAgent = ""
	adminEmail = ""
	captureHost = ""
	capturePort = 0
	probeTimeout = 0
	rateLimit = 0
	rateBurst = 0
	skipSeedCheck = false
	outputDir = ""
	workDir = ""
	archiveName = ""
	title = ""
	description = ""
	favicon = ""
	lang = ""
	packagerBin = ""
	skipPackage = false
	statsFile = ""
	ledgerPath = ""
	metricsAddr = ""
	logLevel = ""
	logFormat = ""
	logFile = ""
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
}

// ParseFlagsForTest applies command line arguments to the package flag
// variables without running the command.
func ParseFlagsForTest(args ...string) error {
	return rootCmd.Flags().Parse(args)
}

// RunForTest executes the root command with args and returns the exit code.
func RunForTest(ctx context.Context, stdout, stderr io.Writer, args ...string) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	return ExitCode(rootCmd.ExecuteContext(ctx))
}
