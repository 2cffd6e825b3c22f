package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/webharden/internal/report"
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
)

const (
	defaultTimeoutSeconds = 10
	defaultConcurrency    = 4
	defaultRateLimit      = 2
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Defaults DefaultValues
	Audit    AuditRuntimeConfig
	Serve    ServeRuntimeConfig
}

// DefaultValues represent operator-level defaults, typically derived from env/config.
type DefaultValues struct {
	TimeoutSecs int
	ResultsDir  string
	Formats     []string
}

// AuditRuntimeConfig consolidates flag-driven settings for audit and batch.
type AuditRuntimeConfig struct {
	TLSPort   int
	HTTPPort  int
	UserAgent string
}

// ServeRuntimeConfig holds the API server settings.
type ServeRuntimeConfig struct {
	Addr      string
	AuthToken string
}

type defaultOverrides struct {
	TimeoutSecs *int
	ResultsDir  string
	Formats     []string
	TLSPort     *int
	HTTPPort    *int
	UserAgent   string
	ServeAddr   string
	AuthToken   string
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Defaults: DefaultValues{
			TimeoutSecs: defaultTimeoutSeconds,
			ResultsDir:  consts.DefaultResultsDir,
			Formats:     append([]string(nil), report.DefaultFormats...),
		},
		Audit: AuditRuntimeConfig{
			UserAgent: consts.UserAgent,
		},
		Serve: ServeRuntimeConfig{
			Addr: consts.DefaultAPIAddr,
		},
	}
}

func loadDefaultOverrides() defaultOverrides {
	overrides := defaultOverrides{}

	if viper.IsSet("defaults.timeout_secs") {
		val := viper.GetInt("defaults.timeout_secs")
		overrides.TimeoutSecs = &val
	}
	if viper.IsSet("defaults.results_dir") {
		overrides.ResultsDir = viper.GetString("defaults.results_dir")
	}
	if viper.IsSet("defaults.formats") {
		for _, f := range viper.GetStringSlice("defaults.formats") {
			// env values arrive as one comma separated string
			for _, part := range strings.Split(f, ",") {
				if part = strings.TrimSpace(part); part != "" {
					overrides.Formats = append(overrides.Formats, part)
				}
			}
		}
	}
	if viper.IsSet("audit.tls_port") {
		val := viper.GetInt("audit.tls_port")
		overrides.TLSPort = &val
	}
	if viper.IsSet("audit.http_port") {
		val := viper.GetInt("audit.http_port")
		overrides.HTTPPort = &val
	}
	if viper.IsSet("audit.user_agent") {
		overrides.UserAgent = viper.GetString("audit.user_agent")
	}
	if viper.IsSet("serve.addr") {
		overrides.ServeAddr = viper.GetString("serve.addr")
	}
	if viper.IsSet("serve.auth_token") {
		overrides.AuthToken = viper.GetString("serve.auth_token")
	}

	return overrides
}

// applyConfigDefaults merges config file defaults into the runtime config when the user
// did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	overrides := loadDefaultOverrides()
	flags := cmd.Flags()

	if overrides.TimeoutSecs != nil {
		applyIntDefault(flags, "timeout", *overrides.TimeoutSecs, func(v int) {
			cliConfig.Defaults.TimeoutSecs = v
		})
	}
	if overrides.ResultsDir != "" {
		setStringFlagIfUnset(flags, "output-dir", overrides.ResultsDir)
		cliConfig.Defaults.ResultsDir = overrides.ResultsDir
	}
	if len(overrides.Formats) > 0 {
		if formats, err := report.ParseFormats(strings.Join(overrides.Formats, ",")); err == nil && len(formats) > 0 {
			setStringFlagIfUnset(flags, "format", strings.Join(formats, ","))
			cliConfig.Defaults.Formats = formats
		}
	}
	if overrides.TLSPort != nil {
		applyIntDefault(flags, "tls-port", *overrides.TLSPort, func(v int) {
			cliConfig.Audit.TLSPort = v
		})
	}
	if overrides.HTTPPort != nil {
		applyIntDefault(flags, "http-port", *overrides.HTTPPort, func(v int) {
			cliConfig.Audit.HTTPPort = v
		})
	}
	if overrides.UserAgent != "" {
		cliConfig.Audit.UserAgent = overrides.UserAgent
	}
	if overrides.ServeAddr != "" {
		setStringFlagIfUnset(flags, "addr", overrides.ServeAddr)
		cliConfig.Serve.Addr = overrides.ServeAddr
	}
	if overrides.AuthToken != "" {
		setStringFlagIfUnset(flags, "auth-token", overrides.AuthToken)
		cliConfig.Serve.AuthToken = overrides.AuthToken
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	if flag != nil {
		_ = flag.Value.Set(strconv.Itoa(value))
	}
	setter(value)
}

func setStringFlagIfUnset(flags *pflag.FlagSet, name, value string) {
	if flags == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || flag.Changed {
		return
	}
	_ = flag.Value.Set(value)
}
