// otsd watches one or more drop directories and stamps every stabilized
// file it sees, batching concurrent digests into a single Merkle tip per
// calendar submission and periodically attempting to upgrade pending
// proofs to confirmed Bitcoin attestations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"otsgo/internal/config"
	"otsgo/internal/logging"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	Commit    = "unknown"
)

var (
	configPath  = flag.String("config", "", "path to config file")
	showVersion = flag.Bool("version", false, "show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("otsd %s (built %s, commit %s)\n", Version, BuildTime, Commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "otsd: loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "otsd: invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "otsd: creating data directories: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(loggingConfigFrom(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "otsd: initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logging.DefaultCrashHandler().SetVersion(Version)
	defer logging.RecoverPanicWith(map[string]interface{}{"stage": "main"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemon := NewDaemon(cfg, logger)
	if err := daemon.Start(ctx); err != nil {
		logger.Error("failed to start daemon", "error", err)
		os.Exit(1)
	}

	logger.Info("otsd started", "version", Version, "watch_paths", cfg.Watch.Paths)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	resolvedConfigPath := *configPath
	if resolvedConfigPath == "" {
		resolvedConfigPath = config.ConfigPath()
	}

	loader := config.NewLoader(resolvedConfigPath)
	loader.OnChange(func(newCfg *config.Config) {
		logger.Info("config reloaded")
		daemon.Reconfigure(newCfg)
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot-reload unavailable", "error", err)
	}
	defer loader.Close()

	<-sigChan
	logger.Info("shutting down")
	cancel()
	if err := daemon.Stop(); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	logger.Info("otsd stopped")
}

func loggingConfigFrom(cfg *config.Config) *logging.Config {
	lc := logging.DefaultConfig()

	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		lc.Level = level
	}
	if cfg.Logging.Format == "json" {
		lc.Format = logging.FormatJSON
	} else {
		lc.Format = logging.FormatText
	}
	if cfg.Logging.Output != "" {
		lc.Output = cfg.Logging.Output
	}
	if cfg.Logging.FilePath != "" {
		lc.FilePath = cfg.Logging.FilePath
	}
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSize = int64(cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups > 0 {
		lc.MaxBackups = cfg.Logging.MaxBackups
	}
	if cfg.Logging.MaxAgeDays > 0 {
		lc.MaxAge = cfg.Logging.MaxAgeDays
	}
	lc.Component = "otsd"

	return lc
}
