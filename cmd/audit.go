package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/webharden/internal/checker"
	"github.com/khanhnv2901/webharden/internal/report"
	consts "github.com/khanhnv2901/webharden/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

var auditCmd = &cobra.Command{
	Use:   "audit <url>",
	Short: "Audit one target and write JSON/HTML/PDF reports",
	Long: `Fetch the target once and evaluate:
- Security headers (HSTS, CSP, X-Frame-Options, ...)
- Information leakage headers (Server, X-Powered-By, ...)
- Cookie Secure/HttpOnly/SameSite flags
- TLS certificate issuer, expiry and protocol version
- HTTP to HTTPS redirect

A bare host such as "example.com" is audited over https.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		flags := cmd.Flags()

		timeoutSecs, _ := flags.GetInt("timeout")
		formatsRaw, _ := flags.GetString("format")
		outputDir, _ := flags.GetString("output-dir")
		noReport, _ := flags.GetBool("no-report")
		asJSON, _ := flags.GetBool("json")
		failUnder, _ := flags.GetInt("fail-under")

		if timeoutSecs < 0 {
			return fmt.Errorf("%w: --timeout must not be negative", sharederrors.ErrInvalidInput)
		}
		formats, err := report.ParseFormats(formatsRaw)
		if err != nil {
			return err
		}

		auditor := newAuditor(appCtx, cmd, timeoutSecs)
		result := auditor.Run(cmd.Context(), args[0])

		out := cmd.OutOrStdout()
		if asJSON {
			data, err := report.RenderJSON(result)
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}
		} else {
			printAuditSummary(out, result)
		}

		if !noReport {
			writer := &report.Writer{Dir: reportDir(appCtx, outputDir)}
			paths, err := writer.Write(result, formats)
			if err != nil {
				return fmt.Errorf("write reports: %w", err)
			}
			appCtx.Logger.Info("reports written", zap.Strings("paths", paths))
			if !asJSON {
				for _, p := range paths {
					fmt.Fprintf(out, "%s %s\n", colorInfo("Report:"), p)
				}
			}
		}

		if failUnder > 0 && result.Score < failUnder {
			return &ScoreBelowThresholdError{Target: result.URL, Score: result.Score, Threshold: failUnder}
		}
		return nil
	},
}

// newAuditor builds an Auditor from the runtime config and the command's
// audit flags. Flags that were not registered on cmd keep the config values.
func newAuditor(appCtx *AppContext, cmd *cobra.Command, timeoutSecs int) *checker.Auditor {
	cfg := appCtx.Config
	if cfg == nil {
		cfg = newCLIConfig()
	}
	if timeoutSecs <= 0 {
		timeoutSecs = cfg.Defaults.TimeoutSecs
	}

	tlsPort := cfg.Audit.TLSPort
	httpPort := cfg.Audit.HTTPPort
	if cmd != nil {
		if v, err := cmd.Flags().GetInt("tls-port"); err == nil && v > 0 {
			tlsPort = v
		}
		if v, err := cmd.Flags().GetInt("http-port"); err == nil && v > 0 {
			httpPort = v
		}
	}

	return &checker.Auditor{
		Timeout:   time.Duration(timeoutSecs) * time.Second,
		TLSPort:   tlsPort,
		HTTPPort:  httpPort,
		UserAgent: cfg.Audit.UserAgent,
		Logger:    appCtx.Logger,
	}
}

// reportDir prefers the directory resolved in PersistentPreRunE.
func reportDir(appCtx *AppContext, flagValue string) string {
	switch {
	case appCtx.ResultsDir != "":
		return appCtx.ResultsDir
	case flagValue != "":
		return flagValue
	default:
		return consts.DefaultResultsDir
	}
}

func printAuditSummary(w io.Writer, result checker.AuditResult) {
	fmt.Fprintf(w, "%s %s\n", colorBold("Target:"), result.URL)
	fmt.Fprintf(w, "%s %s\n", colorBold("Score:"), formatScoreWithColor(result.Score))

	if result.Failed() {
		fmt.Fprintf(w, "%s %s\n", colorError("Request failed:"), result.Failure.Label())
		return
	}

	fmt.Fprintln(w, colorInfo("Security headers:"))
	names := make([]string, 0, len(result.Headers))
	for name := range result.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-28s %s\n", name, formatHeaderState(result.Headers[name]))
	}

	if len(result.Leaks) > 0 {
		fmt.Fprintln(w, colorInfo("Information leakage:"))
		for _, leak := range result.Leaks {
			fmt.Fprintf(w, "  %s: %s\n", colorWarn(leak.Header), leak.Value)
		}
	}

	if len(result.Cookies) > 0 {
		fmt.Fprintln(w, colorInfo("Cookies:"))
		for _, c := range result.Cookies {
			sameSite := "-"
			if c.SameSite != nil {
				sameSite = *c.SameSite
			}
			fmt.Fprintf(w, "  %-20s secure=%t httponly=%t samesite=%s\n", c.Name, c.Secure, c.HttpOnly, sameSite)
		}
	}

	fmt.Fprintf(w, "%s %s", colorInfo("TLS:"), formatStatusWithColor(string(result.HTTPS.Status)))
	if result.HTTPS.TLSVersion != nil {
		fmt.Fprintf(w, " %s", *result.HTTPS.TLSVersion)
	}
	if result.HTTPS.NotAfter != nil {
		fmt.Fprintf(w, " (expires %s)", *result.HTTPS.NotAfter)
	}
	fmt.Fprintln(w)

	for _, check := range result.Checks {
		fmt.Fprintf(w, "%s %s\n", colorInfo(check.Name+":"), formatOutcomeWithColor(check.Result))
	}

	if len(result.Recommendations) > 0 {
		fmt.Fprintln(w, colorInfo("Recommendations:"))
		for _, rec := range result.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
}

func init() {
	addAuditFlags(auditCmd)
	auditCmd.Flags().Bool("json", false, "Print the JSON result to stdout instead of a summary")
	auditCmd.Flags().Int("fail-under", 0, "Exit with status 2 when the score is below this value")
}

// addAuditFlags registers the flags shared by audit and batch.
func addAuditFlags(c *cobra.Command) {
	c.Flags().Int("timeout", defaultTimeoutSeconds, "Per-probe timeout in seconds")
	c.Flags().String("format", "json,html", "Report formats (json, html, pdf)")
	c.Flags().String("output-dir", "", "Directory for reports (default from config or ./reports)")
	c.Flags().Bool("no-report", false, "Skip writing report files")
	c.Flags().Int("tls-port", 0, "Port for the direct TLS handshake (default: target port or 443)")
	c.Flags().Int("http-port", 0, "Port for the plain-HTTP redirect probe (default: target port)")
}
