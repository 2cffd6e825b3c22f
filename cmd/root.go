package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var cfgFile string
var envFile string
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "webharden",
	Short: "Audit the web hardening posture of a site (headers, cookies, TLS, redirects)",
	Long: `webharden fetches a target once, inspects its security headers, information
leakage headers, cookie flags, TLS certificate and HTTP to HTTPS redirect, and
computes a 0-100 hardening score with recommendations.

Only passive, read-only requests are made.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		if err := initConfig(); err != nil {
			return err
		}

		applyConfigDefaults(cmd)

		resultsDir := cliConfig.Defaults.ResultsDir
		if flag := cmd.Flags().Lookup("output-dir"); flag != nil && flag.Value.String() != "" {
			resultsDir = flag.Value.String()
		}
		// Make final resultsDir absolute (for clarity in logs)
		if abs, err := filepath.Abs(resultsDir); err == nil {
			resultsDir = abs
		}

		logger, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger.Debug("configuration loaded",
			zap.String("results_dir", resultsDir),
			zap.String("config_file", viper.ConfigFileUsed()),
		)

		storeAppContext(cmd, &AppContext{
			Logger:     logger,
			ResultsDir: resultsDir,
			Config:     cliConfig,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = getAppContext(cmd).Logger.Sync()
	},
}

// Execute runs the root command and exits with a status derived from the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError("Error:"), err)
		os.Exit(exitCode(err))
	}
}

// loadEnvFile exports KEY=VALUE pairs from path. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".webharden")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("WEBHARDEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && (errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.webharden.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with WEBHARDEN_* overrides")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
