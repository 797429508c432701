package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"medcrawl/pkg/config"
	"medcrawl/pkg/export"
	"medcrawl/pkg/extract"
	"medcrawl/pkg/fetch"
	"medcrawl/pkg/schedule"
	"medcrawl/pkg/store"
	"medcrawl/pkg/utils"
)

const version = "0.4.1"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "index":
		runIndex(os.Args[2:])
	case "details":
		runDetails(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-sites":
		runListSites(os.Args[2:])
	case "version":
		fmt.Printf("medcrawl %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`medcrawl - pharmaceutical directory crawler

Usage:
  medcrawl <command> [options]

Commands:
  index       Crawl the paginated brand index into batch artifacts
  details     Fetch detail pages for every indexed brand
  export      Render persisted detail records into Markdown reports
  validate    Validate configuration file
  list-sites  List available site keys
  version     Show version info

Run 'medcrawl <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) *config.AppConfig {
	log.Infof("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	appWarnings, err := appCfg.Validate()
	for _, w := range appWarnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Config validation error: %v", err)
	}
	return appCfg
}

// resolveSite validates a single site's configuration and returns it.
func resolveSite(appCfg *config.AppConfig, siteKey string, log *logrus.Logger) config.SiteConfig {
	siteCfg, ok := appCfg.Sites[siteKey]
	if !ok {
		log.Fatalf("Site '%s' not found in config", siteKey)
	}
	siteWarnings, err := siteCfg.Validate()
	if err != nil {
		log.Fatalf("Site '%s' configuration error: %v", siteKey, err)
	}
	for _, w := range siteWarnings {
		log.Warnf("[%s] %s", siteKey, w)
	}
	return siteCfg
}

// newHTTPClient builds the shared HTTP client from config
func newHTTPClient(cfg config.HTTPClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialerTimeout,
		KeepAlive: cfg.DialerKeepAlive,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

// newFetcher wires the fetch unit with the site's politeness settings.
func newFetcher(appCfg *config.AppConfig, siteCfg config.SiteConfig, client *http.Client, log *logrus.Logger) *fetch.Fetcher {
	userAgent := config.GetEffectiveUserAgent(siteCfg, *appCfg)
	rateLimiter := fetch.NewRateLimiter(appCfg.RequestDelay, log)
	var robots *fetch.RobotsGate
	if appCfg.RespectRobots {
		robots = fetch.NewRobotsGate(client, userAgent, log)
	}
	return fetch.NewFetcher(client, appCfg, userAgent, rateLimiter, robots, log)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, shutting down...", sig)
		cancel()
	}()
	return ctx, cancel
}

// writeRunReport persists the run report next to the site's output.
func writeRunReport(appCfg *config.AppConfig, siteKey string, report *schedule.RunReport, log *logrus.Logger) {
	dir := filepath.Join(appCfg.OutputBaseDir, utils.SanitizeFilename(siteKey))
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Errorf("Failed to create report directory: %v", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("run_%s_%s.json", report.Mode, report.RunID))
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Errorf("Failed to marshal run report: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Errorf("Failed to write run report: %v", err)
		return
	}
	log.Infof("Run report written to %s", path)
}

// runIndex handles the index subcommand
func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key from config (required)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: medcrawl index [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n  medcrawl index -site medex\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *siteKey == "" {
		fmt.Fprintln(os.Stderr, "Error: -site is required")
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*logLevel)
	appCfg := loadAndValidateConfig(*configFile, log)
	siteCfg := resolveSite(appCfg, *siteKey, log)
	siteLog := log.WithField("site", *siteKey)

	client := newHTTPClient(appCfg.HTTPClientSettings)
	fetcher := newFetcher(appCfg, siteCfg, client, log)

	extractor, err := extract.NewSummaryExtractor(siteCfg, log)
	if err != nil {
		log.Fatalf("Extractor setup error: %v", err)
	}
	batchStore, err := store.NewBatchStore(appCfg.OutputBaseDir, *siteKey, siteLog)
	if err != nil {
		log.Fatalf("Store setup error: %v", err)
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	scheduler := schedule.NewPageScheduler(*siteKey, siteCfg, appCfg, fetcher, extractor, batchStore, siteLog)
	report, err := scheduler.Run(ctx)
	writeRunReport(appCfg, *siteKey, report, log)
	if err != nil {
		log.Fatalf("Index run aborted: %v", err)
	}
	if failed := report.FailedIdentities(); len(failed) > 0 {
		log.Warnf("Pages failed after retries: %v", failed)
	}
}

// runDetails handles the details subcommand
func runDetails(args []string) {
	fs := flag.NewFlagSet("details", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key from config (required)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	resume := fs.Bool("resume", true, "Keep state from previous runs (false wipes the seen index)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: medcrawl details [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n  medcrawl details -site medex\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *siteKey == "" {
		fmt.Fprintln(os.Stderr, "Error: -site is required")
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*logLevel)
	appCfg := loadAndValidateConfig(*configFile, log)
	siteCfg := resolveSite(appCfg, *siteKey, log)
	siteLog := log.WithField("site", *siteKey)

	// Seeds come from the index phase's artifacts. Their absence is the one
	// fatal startup condition: there is no unit of work to attempt.
	batchStore, err := store.NewBatchStore(appCfg.OutputBaseDir, *siteKey, siteLog)
	if err != nil {
		log.Fatalf("Store setup error: %v", err)
	}
	seeds, err := batchStore.ReadAllRecords()
	if err != nil {
		log.Fatalf("Failed to read index artifacts: %v", err)
	}
	if len(seeds) == 0 {
		log.Fatalf("%v: run 'medcrawl index -site %s' first", utils.ErrSeedMissing, *siteKey)
	}
	siteLog.Infof("Loaded %d seed entries from index artifacts", len(seeds))

	seen, err := store.NewSeenStore(appCfg.StateDir, *siteKey, *resume, siteLog)
	if err != nil {
		log.Fatalf("Seen store setup error: %v", err)
	}
	defer seen.Close()

	detailLog, err := store.OpenDetailLog(appCfg.OutputBaseDir, *siteKey, siteLog)
	if err != nil {
		log.Fatalf("Detail log setup error: %v", err)
	}
	defer detailLog.Close()

	// The append log is the source of truth; reconcile the seen index from
	// it so identities recorded before a crash are never re-fetched.
	recorded, err := store.LoadRecordedIdentities(detailLog.Path(), siteLog)
	if err != nil {
		log.Fatalf("Failed to index detail log: %v", err)
	}
	reconciled := 0
	for identity := range recorded {
		if seen.IsRecorded(identity) {
			continue
		}
		if err := seen.UpdateStatus(identity, &store.ItemDBEntry{Status: store.ItemStatusRecorded}); err != nil {
			siteLog.Warnf("Failed to reconcile %s into seen index: %v", identity, err)
			continue
		}
		reconciled++
	}
	if reconciled > 0 {
		siteLog.Infof("Reconciled %d identities from detail log into seen index", reconciled)
	}

	client := newHTTPClient(appCfg.HTTPClientSettings)
	fetcher := newFetcher(appCfg, siteCfg, client, log)
	extractor := extract.NewDetailExtractor(siteCfg, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	go seen.RunGC(ctx, 10*time.Minute)

	scheduler := schedule.NewItemScheduler(*siteKey, siteCfg, appCfg, fetcher, extractor, detailLog, seen, siteLog)
	report, err := scheduler.Run(ctx, seeds)
	if report != nil {
		writeRunReport(appCfg, *siteKey, report, log)
	}
	if err != nil {
		if errors.Is(err, utils.ErrSeedMissing) {
			log.Fatalf("No work to do: %v", err)
		}
		log.Fatalf("Detail run aborted: %v", err)
	}
	if failed := report.FailedIdentities(); len(failed) > 0 {
		log.Warnf("Items failed after retries: %v", failed)
	}
}

// runExport handles the export subcommand
func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key from config (required)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: medcrawl export [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *siteKey == "" {
		fmt.Fprintln(os.Stderr, "Error: -site is required")
		fs.Usage()
		os.Exit(1)
	}

	log := setupLogger(*logLevel)
	appCfg := loadAndValidateConfig(*configFile, log)
	resolveSite(appCfg, *siteKey, log)
	siteLog := log.WithField("site", *siteKey)

	logPath := store.DetailLogPath(appCfg.OutputBaseDir, *siteKey)
	records, err := store.ReadDetailRecords(logPath, siteLog)
	if err != nil {
		log.Fatalf("Failed to read detail log: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("No detail records at %s: run 'medcrawl details -site %s' first", logPath, *siteKey)
	}

	exporter, err := export.NewExporter(appCfg.OutputBaseDir, *siteKey, siteLog)
	if err != nil {
		log.Fatalf("Exporter setup error: %v", err)
	}
	written := exporter.ExportAll(records)
	log.Infof("Exported %d of %d records", written, len(records))
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	siteKey := fs.String("site", "", "Site key to validate (optional, validates all if empty)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: medcrawl validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doValidate(*configFile, *siteKey, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to the provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, siteKey string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	if siteKey != "" {
		siteCfg, ok := appCfg.Sites[siteKey]
		if !ok {
			fmt.Fprintf(stderr, "Error: site '%s' not found in config\n", siteKey)
			return 1
		}
		siteWarnings, err := siteCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", siteKey, err)
			return 1
		}
		for _, w := range siteWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", siteKey, w)
		}
		fmt.Fprintf(stdout, "OK: Site '%s' configuration is valid\n", siteKey)
		return 0
	}

	hasError := false
	keys := make([]string, 0, len(appCfg.Sites))
	for k := range appCfg.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		siteCfg := appCfg.Sites[key]
		siteWarnings, err := siteCfg.Validate()
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: [%s] %v\n", key, err)
			hasError = true
			continue
		}
		for _, w := range siteWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		fmt.Fprintf(stdout, "OK: [%s]\n", key)
	}
	if hasError {
		return 1
	}
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListSites handles the list-sites subcommand
func runListSites(args []string) {
	fs := flag.NewFlagSet("list-sites", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: medcrawl list-sites [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doListSites(*configFile, os.Stdout, os.Stderr))
}

// doListSites lists sites and writes output to the provided writers.
func doListSites(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	keys := make([]string, 0, len(appCfg.Sites))
	for k := range appCfg.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(stdout, "Sites in %s:\n\n", configPath)
	for _, key := range keys {
		site := appCfg.Sites[key]
		fmt.Fprintf(stdout, "  %s\n", key)
		fmt.Fprintf(stdout, "    Base URL: %s\n", site.BaseURL)
		if site.DetailPathPrefix != "" {
			fmt.Fprintf(stdout, "    Detail prefix: %s\n", site.DetailPathPrefix)
		}
		fmt.Fprintln(stdout)
	}
	return 0
}
