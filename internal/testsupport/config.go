// Package testsupport provides shared builders for tests that need a full
// daemon configuration without touching the host system.
package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/mitralabs/coco/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The backend points at an unroutable port and the network interface does not
// exist, so no background task can reach outside the sandbox.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Backend.UploadURL = "http://127.0.0.1:1/recording"
	cfg.Backend.HealthURL = "http://127.0.0.1:1/health"
	cfg.Backend.APIKey = "test-key"
	cfg.Network.Interface = "does-not-exist0"
	cfg.Power.BatteryPath = ""
	cfg.Power.WakeDebounceMs = 10

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAPIKey overrides the backend API key.
func WithAPIKey(key string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.APIKey = key
	}
}

// WithBackend points the upload and health URLs at a test server base URL.
func WithBackend(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Backend.UploadURL = baseURL + "/recording"
		cfg.Backend.HealthURL = baseURL + "/health"
	}
}

// WithBatteryPath enables the sysfs battery reader at the given path.
func WithBatteryPath(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Power.BatteryPath = path
	}
}
