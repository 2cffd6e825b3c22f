package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

func TestStoreAndGetAppContext(t *testing.T) {
	original := globalAppContext
	defer func() {
		globalAppContext = original
	}()

	cmd := &cobra.Command{Use: "root"}
	appCtx := &AppContext{ResultsDir: "/tmp/reports"}

	storeAppContext(cmd, appCtx)

	got := getAppContext(cmd)
	if got != appCtx {
		t.Fatalf("expected stored app context to be returned")
	}
}

func TestGetAppContextFallback(t *testing.T) {
	original := globalAppContext
	globalAppContext = nil
	defer func() {
		globalAppContext = original
	}()

	got := getAppContext(&cobra.Command{Use: "orphan"})
	if got == nil || got.Logger == nil || got.Config == nil {
		t.Fatalf("expected a usable fallback context, got %+v", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("WEBHARDEN_TEST_ENV_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("WEBHARDEN_TEST_ENV_KEY", "")
	os.Unsetenv("WEBHARDEN_TEST_ENV_KEY")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv("WEBHARDEN_TEST_ENV_KEY"); got != "from-dotenv" {
		t.Fatalf("expected value from env file, got %q", got)
	}
}

func TestInitConfigReadsEnvironment(t *testing.T) {
	originalCfg := cfgFile
	t.Cleanup(func() {
		cfgFile = originalCfg
		viper.Reset()
	})
	cfgFile = ""
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WEBHARDEN_DEFAULTS_TIMEOUT_SECS", "42")

	if err := initConfig(); err != nil {
		t.Fatalf("initConfig without a config file: %v", err)
	}
	if !viper.IsSet("defaults.timeout_secs") || viper.GetInt("defaults.timeout_secs") != 42 {
		t.Fatalf("expected env override 42, got %d", viper.GetInt("defaults.timeout_secs"))
	}
}

func TestInitConfigExplicitFileMustExist(t *testing.T) {
	originalCfg := cfgFile
	t.Cleanup(func() {
		cfgFile = originalCfg
		viper.Reset()
	})
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")

	if err := initConfig(); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"below threshold", &ScoreBelowThresholdError{Score: 40, Threshold: 80}, exitBelowScore},
		{"wrapped below threshold", fmt.Errorf("batch: %w", &ScoreBelowThresholdError{Score: 1, Threshold: 2}), exitBelowScore},
		{"invalid input", fmt.Errorf("%w: bad flag", sharederrors.ErrInvalidInput), exitUsage},
		{"unsupported format", sharederrors.ErrUnsupportedFormat, exitUsage},
		{"other", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := &ScoreBelowThresholdError{Target: "https://example.com", Score: 40, Threshold: 80}
	if got := err.Error(); got != "https://example.com scored 40, below threshold 80" {
		t.Fatalf("unexpected message: %s", got)
	}

	tf := &TargetsFileError{Path: "targets.txt", Err: os.ErrNotExist}
	if !errors.Is(tf, os.ErrNotExist) {
		t.Fatal("TargetsFileError should unwrap to the cause")
	}
}
