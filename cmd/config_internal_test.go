package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
)

func TestApplyIntDefault(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("timeout", 0, "")

	var applied int
	applyIntDefault(flags, "timeout", 15, func(v int) {
		applied = v
	})
	if applied != 15 {
		t.Fatalf("expected setter to receive 15, got %d", applied)
	}
	if got := flags.Lookup("timeout").Value.String(); got != "15" {
		t.Fatalf("expected flag value 15, got %s", got)
	}

	// When flag already set, setter should not run.
	if err := flags.Set("timeout", "7"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	applied = 0
	applyIntDefault(flags, "timeout", 20, func(v int) {
		applied = v
	})
	if applied != 0 {
		t.Fatalf("setter should not run when flag overridden, got %d", applied)
	}
}

func TestSetStringFlagIfUnset(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output-dir", "", "")

	setStringFlagIfUnset(flags, "output-dir", "/var/reports")
	if got := flags.Lookup("output-dir").Value.String(); got != "/var/reports" {
		t.Fatalf("expected output-dir to be default, got %s", got)
	}

	if err := flags.Set("output-dir", "user-provided"); err != nil {
		t.Fatalf("failed to set output-dir: %v", err)
	}
	setStringFlagIfUnset(flags, "output-dir", "new-default")
	if got := flags.Lookup("output-dir").Value.String(); got != "user-provided" {
		t.Fatalf("expected output-dir to remain user-provided, got %s", got)
	}
}

func TestNewCLIConfigDefaults(t *testing.T) {
	cfg := newCLIConfig()
	if cfg.Defaults.TimeoutSecs != defaultTimeoutSeconds {
		t.Fatalf("unexpected timeout default: %d", cfg.Defaults.TimeoutSecs)
	}
	if cfg.Defaults.ResultsDir != consts.DefaultResultsDir {
		t.Fatalf("unexpected results dir: %s", cfg.Defaults.ResultsDir)
	}
	if len(cfg.Defaults.Formats) != 2 || cfg.Defaults.Formats[0] != "json" || cfg.Defaults.Formats[1] != "html" {
		t.Fatalf("unexpected formats: %v", cfg.Defaults.Formats)
	}
	if cfg.Audit.UserAgent != consts.UserAgent {
		t.Fatalf("unexpected user agent: %s", cfg.Audit.UserAgent)
	}
	if cfg.Serve.Addr != consts.DefaultAPIAddr {
		t.Fatalf("unexpected serve addr: %s", cfg.Serve.Addr)
	}
}

func TestLoadDefaultOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Set("defaults.timeout_secs", 30)
	viper.Set("defaults.results_dir", "/tmp/audits")
	viper.Set("defaults.formats", "json, pdf")
	viper.Set("audit.tls_port", 8443)
	viper.Set("audit.user_agent", "custom-agent")
	viper.Set("serve.auth_token", "s3cret")

	overrides := loadDefaultOverrides()

	if overrides.TimeoutSecs == nil || *overrides.TimeoutSecs != 30 {
		t.Fatalf("expected timeout override 30, got %+v", overrides.TimeoutSecs)
	}
	if overrides.ResultsDir != "/tmp/audits" {
		t.Fatalf("expected results dir override, got %s", overrides.ResultsDir)
	}
	if len(overrides.Formats) != 2 || overrides.Formats[0] != "json" || overrides.Formats[1] != "pdf" {
		t.Fatalf("expected formats [json pdf], got %v", overrides.Formats)
	}
	if overrides.TLSPort == nil || *overrides.TLSPort != 8443 {
		t.Fatalf("expected tls port override 8443, got %+v", overrides.TLSPort)
	}
	if overrides.HTTPPort != nil {
		t.Fatalf("expected no http port override, got %d", *overrides.HTTPPort)
	}
	if overrides.UserAgent != "custom-agent" {
		t.Fatalf("expected user agent override, got %s", overrides.UserAgent)
	}
	if overrides.AuthToken != "s3cret" {
		t.Fatalf("expected auth token override, got %s", overrides.AuthToken)
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		*cliConfig = *newCLIConfig()
	})

	*cliConfig = *newCLIConfig()

	viper.Set("defaults.timeout_secs", 20)
	viper.Set("defaults.results_dir", "cfg-reports")
	viper.Set("defaults.formats", []string{"pdf"})
	viper.Set("audit.http_port", 8080)

	testCmd := &cobra.Command{Use: "audit"}
	addAuditFlags(testCmd)
	if err := testCmd.Flags().Set("tls-port", "9443"); err != nil {
		t.Fatalf("failed to set tls-port: %v", err)
	}
	viper.Set("audit.tls_port", 443)

	applyConfigDefaults(testCmd)

	if cliConfig.Defaults.TimeoutSecs != 20 {
		t.Fatalf("expected timeout default 20, got %d", cliConfig.Defaults.TimeoutSecs)
	}
	if got := testCmd.Flags().Lookup("timeout").Value.String(); got != "20" {
		t.Fatalf("expected timeout flag 20, got %s", got)
	}
	if got := testCmd.Flags().Lookup("output-dir").Value.String(); got != "cfg-reports" {
		t.Fatalf("expected output-dir flag from config, got %s", got)
	}
	if got := testCmd.Flags().Lookup("format").Value.String(); got != "pdf" {
		t.Fatalf("expected format flag pdf, got %s", got)
	}
	if cliConfig.Audit.HTTPPort != 8080 {
		t.Fatalf("expected http port 8080, got %d", cliConfig.Audit.HTTPPort)
	}
	if cliConfig.Audit.TLSPort != 0 {
		t.Fatalf("explicit --tls-port must win over config, got config value %d", cliConfig.Audit.TLSPort)
	}
	if got := testCmd.Flags().Lookup("tls-port").Value.String(); got != "9443" {
		t.Fatalf("expected tls-port flag to stay 9443, got %s", got)
	}
}

func TestApplyConfigDefaults_IgnoresInvalidFormats(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		*cliConfig = *newCLIConfig()
	})
	*cliConfig = *newCLIConfig()

	viper.Set("defaults.formats", "xml")

	testCmd := &cobra.Command{Use: "audit"}
	addAuditFlags(testCmd)
	applyConfigDefaults(testCmd)

	if got := testCmd.Flags().Lookup("format").Value.String(); got != "json,html" {
		t.Fatalf("expected format flag to keep its default, got %s", got)
	}
}
