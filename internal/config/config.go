package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Backend contains settings for the upload backend.
type Backend struct {
	UploadURL          string `toml:"upload_url"`
	HealthURL          string `toml:"health_url"`
	SessionCompleteURL string `toml:"session_complete_url"`
	APIKey             string `toml:"api_key"`
	HTTPTimeout        int    `toml:"http_timeout_seconds"`
	AudioFormat        string `toml:"audio_format"`
}

// Audio contains capture settings.
type Audio struct {
	RecordSeconds int `toml:"record_seconds"`
	QueueSize     int `toml:"queue_size"`
	SampleRate    int `toml:"sample_rate"`
	PushTimeoutMs int `toml:"push_timeout_ms"`
	PopTimeoutMs  int `toml:"pop_timeout_ms"`
}

// Network contains link monitoring settings.
type Network struct {
	Interface                string `toml:"interface"`
	MinProbeIntervalSeconds  int    `toml:"min_probe_interval_seconds"`
	MaxProbeIntervalSeconds  int    `toml:"max_probe_interval_seconds"`
	ReachabilityRecheckSecs  int    `toml:"reachability_recheck_seconds"`
	HTTPGuardTimeoutSeconds  int    `toml:"http_guard_timeout_seconds"`
	ProbeGuardTimeoutSeconds int    `toml:"probe_guard_timeout_seconds"`
}

// Upload contains uploader task settings.
type Upload struct {
	PollIntervalSeconds   int     `toml:"poll_interval_seconds"`
	FailureLimit          int     `toml:"failure_limit"`
	BufferMiB             int     `toml:"buffer_mib"`
	BatteryThresholdVolts float64 `toml:"battery_threshold_volts"`
}

// Power contains arbiter, battery, and sleep settings.
type Power struct {
	BatteryRecordingThresholdVolts float64 `toml:"battery_recording_threshold_volts"`
	BatterySampleIntervalSeconds   int     `toml:"battery_sample_interval_seconds"`
	BatteryPath                    string  `toml:"battery_path"`
	SleepCheckIntervalSeconds      int     `toml:"sleep_check_interval_seconds"`
	SleepDurationMinutes           int     `toml:"sleep_duration_minutes"`
	SuspendCommand                 string  `toml:"suspend_command"`
	WakeDebounceMs                 int     `toml:"wake_debounce_ms"`
	WakeValidationTimeoutMs        int     `toml:"wake_validation_timeout_ms"`
	WakeDevice                     string  `toml:"wake_device"`
	WakeTriggerPath                string  `toml:"wake_trigger_path"`
}

// Storage contains storage guard settings.
type Storage struct {
	GuardTimeoutSeconds int `toml:"guard_timeout_seconds"`
	MinFreeMiB          int `toml:"min_free_mib"`
}

// Time contains wall-clock checkpoint settings.
type Time struct {
	PersistIntervalMinutes int    `toml:"persist_interval_minutes"`
	TimestampFormat        string `toml:"timestamp_format"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cocod.
//
// Sections by subsystem:
//   - Paths: data and log directories
//   - Backend: upload/health endpoints, API key, HTTP timeout
//   - Audio: capture duration, bounded queue sizing
//   - Network: link interface, probe backoff bounds
//   - Upload: uploader polling, failure threshold, transfer buffer
//   - Power: battery thresholds, sleep timing, wake debounce
//   - Storage: exclusive guard timeout, free-space floor
//   - Time: checkpoint persistence cadence
//   - Logging: format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Backend Backend `toml:"backend"`
	Audio   Audio   `toml:"audio"`
	Network Network `toml:"network"`
	Upload  Upload  `toml:"upload"`
	Power   Power   `toml:"power"`
	Storage Storage `toml:"storage"`
	Time    Time    `toml:"time"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/coco/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A .env file next to the
// working directory is consulted for secrets before the environment.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	// Best-effort: secrets may live in .env per deployment convention.
	_ = godotenv.Load()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err = os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("coco.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories daemon operation requires.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.RecordingsDir(), c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RecordingsDir returns the directory captured audio files are written to.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.Paths.DataDir, "recordings")
}

// QueuePath returns the durable upload queue file path.
func (c *Config) QueuePath() string {
	return filepath.Join(c.Paths.DataDir, "upload_queue.txt")
}

// TimeFilePath returns the persisted wall-clock checkpoint path.
func (c *Config) TimeFilePath() string {
	return filepath.Join(c.Paths.DataDir, "time.txt")
}

// SessionFilePath returns the boot session counter path.
func (c *Config) SessionFilePath() string {
	return filepath.Join(c.Paths.DataDir, "session.txt")
}

// LedgerPath returns the SQLite upload ledger path.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.DataDir, "ledger.db")
}

// LockPath returns the daemon single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "cocod.lock")
}

// SocketPath returns the IPC socket path the CLI talks to.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "cocod.sock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
