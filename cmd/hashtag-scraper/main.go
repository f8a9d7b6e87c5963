package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/config"
	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
	"github.com/Sriram-PR/hashtag-scraper/pkg/watch"
)

const (
	version           = "1.0.0"
	defaultConfigPath = "config.yaml"
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "refresh":
		runRefresh(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("hashtag-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `hashtag-scraper - Hashtag aggregation service

Usage:
  hashtag-scraper <command> [options]

Commands:
  serve       Start the HTTP API
  refresh     Force a refresh of the bulk listings cache
  search      Look up hashtags for one term and print the JSON response
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'hashtag-scraper <command> -h' for command-specific help.`)
}

// loadConfig reads the config file and applies environment overrides.
// The default path may be absent, in which case built-in defaults apply.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg, err := config.Load(path, path == defaultConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}
	return log
}

// loadAndValidateConfig loads the config file, validates it, and logs warnings.
func loadAndValidateConfig(configFile string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Infof("Loading configuration from %s", configFile)
	appCfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// checkSchedule rejects a refresh_schedule the warm-up scheduler cannot parse
func checkSchedule(cfg *config.AppConfig) error {
	if cfg.Cache.RefreshSchedule == "" {
		return nil
	}
	if _, err := watch.ParseSchedule(cfg.Cache.RefreshSchedule); err != nil {
		return fmt.Errorf("cache.refresh_schedule: %w", err)
	}
	return nil
}

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	addr := fs.String("addr", "", "Listen address (overrides server_addr)")
	warm := fs.Bool("warm", false, "Refresh a stale bulk cache at startup (requires cache.refresh_schedule)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hashtag-scraper serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(*logLevel, os.Stderr)
	appCfg, err := loadAndValidateConfig(*configFile, log)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *addr != "" {
		appCfg.ServerAddr = *addr
	}
	if err := checkSchedule(appCfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	logAppConfig(appCfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appCfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.close()

	scheduler, err := a.scheduler()
	if err != nil {
		log.Errorf("Invalid cache.refresh_schedule: %v", err)
		return
	}
	if scheduler != nil {
		scheduler.Start(*warm)
		defer scheduler.Stop()
	}

	srv := a.server()
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", appCfg.ServerAddr)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Errorf("Server error: %v", err)
		}
	case <-ctx.Done():
		log.Warn("Received shutdown signal, draining requests...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Graceful shutdown failed: %v", err)
		}
	}
	log.Info("Server stopped")
}

// runRefresh handles the refresh subcommand
func runRefresh(args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	ifStale := fs.Bool("if-stale", false, "Only refresh when the cache is older than its TTL")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hashtag-scraper refresh [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doRefresh(*configFile, *logLevel, *ifStale, os.Stdout, os.Stderr))
}

// doRefresh refreshes the bulk cache and prints a summary.
// Returns exit code (0 = success, 1 = error).
func doRefresh(configPath, logLevel string, ifStale bool, stdout, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	var entry *models.BulkCacheEntry
	if ifStale {
		refreshed, err := a.bulk.RefreshIfStale(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Refresh failed (%s): %v\n", utils.CategorizeError(err), err)
			return 1
		}
		if !refreshed {
			fmt.Fprintln(stdout, "Bulk cache is fresh, nothing to do.")
			return 0
		}
		entry, err = a.bulk.Entry(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	} else {
		entry, err = a.bulk.ForceRefresh(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Refresh failed (%s): %v\n", utils.CategorizeError(err), err)
			return 1
		}
	}

	fmt.Fprintf(stdout, "Refreshed bulk cache %s\n", a.bulk.Cache().Path())
	fmt.Fprintf(stdout, "  New tags:    %d\n", len(entry.NewTags))
	fmt.Fprintf(stdout, "  Best tags:   %d\n", len(entry.BestTags))
	fmt.Fprintf(stdout, "  Last update: %s\n", entry.LastUpdate.Format(time.RFC3339))
	return 0
}

// runSearch handles the search subcommand
func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error, fatal)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hashtag-scraper search [options] <term>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one search term is required")
		fs.Usage()
		os.Exit(1)
	}

	os.Exit(doSearch(*configFile, *logLevel, fs.Arg(0), os.Stdout, os.Stderr))
}

// doSearch runs one search and prints the same envelope /getSearchTags returns.
// Returns exit code (0 = found, 1 = error, 2 = no tags found).
func doSearch(configPath, logLevel, term string, stdout, stderr io.Writer) int {
	log := setupLogger(logLevel, stderr)
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	result, err := a.search.Search(ctx, term)
	if err != nil {
		fmt.Fprintf(stderr, "Search failed (%s): %v\n", utils.CategorizeError(err), err)
		return 1
	}

	env := models.Envelope{Status: true, Message: "Data fetched successfully", Data: result}
	code := 0
	if result.IsEmpty() {
		env = models.Envelope{Status: false, Message: "Data Not found"}
		code = 2
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return code
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hashtag-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
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

	if err := checkSchedule(appCfg); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: upstream %s (%d new-tags pages)\n", appCfg.Upstream.BaseURL, appCfg.Upstream.NewTagsPages)
	fmt.Fprintf(stdout, "OK: store backend %s\n", appCfg.Store.Backend)
	fmt.Fprintf(stdout, "OK: cache %s (ttl %v)\n", appCfg.Cache.Path, appCfg.Cache.TTL)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
