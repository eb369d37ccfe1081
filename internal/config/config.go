// Package config handles configuration loading and validation for otsd
// and otsctl.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Version is the current config schema version.
const Version = 1

// Config holds the daemon and CLI configuration.
type Config struct {
	Version int `toml:"version"`

	Watch    WatchConfig    `toml:"watch"`
	Storage  StorageConfig  `toml:"storage"`
	Calendar CalendarConfig `toml:"calendar"`
	Logging  LoggingConfig  `toml:"logging"`
}

// WatchConfig controls otsd's drop-directory stamping.
type WatchConfig struct {
	// Paths is a list of directories monitored for new files to stamp.
	Paths []string `toml:"paths"`

	// IncludePatterns and ExcludePatterns are glob patterns applied to
	// the base name of each file seen under Paths. When IncludePatterns
	// is non-empty, only files matching one of them are stamped.
	IncludePatterns []string `toml:"include_patterns"`
	ExcludePatterns []string `toml:"exclude_patterns"`

	// DebounceMs is how long a file must be stable before it is stamped.
	DebounceMs int `toml:"debounce_ms"`

	// BatchWindowMs is how long otsd accumulates digests before closing
	// a Merkle batch and submitting its tip to the calendar.
	BatchWindowMs int `toml:"batch_window_ms"`

	// MaxFileSize bounds files considered for stamping, in bytes. Zero
	// means unbounded.
	MaxFileSize int64 `toml:"max_file_size"`
}

// StorageConfig locates otsd's on-disk state.
type StorageConfig struct {
	// PendingDBPath is the SQLite database tracking proofs awaiting a
	// Bitcoin attestation (see internal/pending).
	PendingDBPath string `toml:"pending_db_path"`

	// ProofDir is where finished .ots files are written, one per
	// stamped input, named after the input's digest.
	ProofDir string `toml:"proof_dir"`
}

// CalendarConfig configures the multi-aggregator stamping round.
type CalendarConfig struct {
	// Aggregators is the list of calendar base URLs submitted to.
	Aggregators []string `toml:"aggregators"`

	// AggregatorsFile, if set, names a JSON file (schema-validated by
	// LoadAggregatorsFile) whose contents override Aggregators. This lets
	// an operator hot-swap the calendar list without touching the TOML.
	AggregatorsFile string `toml:"aggregators_file"`

	// MinAttestations is the quorum required for Stamp to succeed.
	MinAttestations int `toml:"min_attestations"`

	// TimeoutSec bounds each aggregator's request.
	TimeoutSec int `toml:"timeout_sec"`

	// UpgradeIntervalSec is how often otsd polls pending proofs for a
	// confirmed attestation.
	UpgradeIntervalSec int `toml:"upgrade_interval_sec"`
}

// LoggingConfig controls otsd's structured logging.
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	FilePath   string `toml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := OtsgoDir()

	return &Config{
		Version: Version,
		Watch: WatchConfig{
			Paths:         []string{},
			DebounceMs:    2000,
			BatchWindowMs: 10000,
		},
		Storage: StorageConfig{
			PendingDBPath: filepath.Join(dir, "pending.db"),
			ProofDir:      filepath.Join(dir, "proofs"),
		},
		Calendar: CalendarConfig{
			Aggregators: []string{
				"https://alice.btc.calendar.opentimestamps.org",
				"https://bob.btc.calendar.opentimestamps.org",
				"https://finney.calendar.eternitywall.com",
			},
			MinAttestations:    2,
			TimeoutSec:         10,
			UpgradeIntervalSec: 3600,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(OtsgoDir(), "config.toml")
}

// Load reads configuration from path, falling back to TOML. If the file
// doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	if cfg.Calendar.AggregatorsFile != "" {
		aggregators, err := LoadAggregatorsFile(cfg.Calendar.AggregatorsFile)
		if err != nil {
			return nil, err
		}
		cfg.Calendar.Aggregators = aggregators
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates all directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Storage.PendingDBPath),
		c.Storage.ProofDir,
	}
	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	return nil
}

// Clone returns a deep-enough copy of c for Merge to modify without
// aliasing slices back into c.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Watch.Paths = append([]string(nil), c.Watch.Paths...)
	clone.Watch.IncludePatterns = append([]string(nil), c.Watch.IncludePatterns...)
	clone.Watch.ExcludePatterns = append([]string(nil), c.Watch.ExcludePatterns...)
	clone.Calendar.Aggregators = append([]string(nil), c.Calendar.Aggregators...)
	return &clone
}

// ApplyEnvOverrides lets a small number of settings be overridden without
// touching the config file, for containerized deployments.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("OTSGO_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OTSGO_PENDING_DB_PATH"); v != "" {
		c.Storage.PendingDBPath = v
	}
}

// OtsgoDir returns the base otsgo state directory.
func OtsgoDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".otsgo")
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")
