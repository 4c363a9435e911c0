package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/nfrund/parley/internal/config"
	"github.com/nfrund/parley/internal/logging"
)

// ConfigForTests sets a hermetic environment for one test and returns the
// config built from it: an on-disk badger store under t.TempDir, cheap
// password hashing and no profile cache. Values from a .env.test file at the
// project root, when present, are applied on top so integration runs can
// point at a real backend.
func ConfigForTests(t *testing.T) *config.Config {
	t.Helper()

	defaults := map[string]string{
		"ENV":                "test",
		"JWT_SECRET":         "test-secret",
		"JWT_EXPIRE":         "1h",
		"STORE_DRIVER":       config.DriverBadger,
		"BADGER_PATH":        t.TempDir(),
		"PROFILE_CACHE_TTL":  "0s",
		"ARGON2_MEMORY_KB":   "1024",
		"ARGON2_ITERATIONS":  "1",
		"ARGON2_PARALLELISM": "1",
		"LOG_LEVEL":          "error",
	}
	for key, value := range defaults {
		t.Setenv(key, value)
	}

	if root, ok := projectRoot(); ok {
		if env, err := godotenv.Read(filepath.Join(root, ".env.test")); err == nil {
			for key, value := range env {
				t.Setenv(key, value)
			}
		}
	}

	cfg, err := config.FromEnviron()
	if err != nil {
		t.Fatalf("failed to build test config: %v", err)
	}
	logging.New(cfg.LogFormat, cfg.LogLevel)
	return cfg
}

// projectRoot walks up from the working directory to the one holding go.mod.
func projectRoot() (string, bool) {
	path, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
			return path, true
		}
		if path == filepath.Dir(path) {
			return "", false
		}
		path = filepath.Dir(path)
	}
}
