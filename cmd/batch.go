package cmd

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/webharden/internal/checker"
	"github.com/khanhnv2901/webharden/internal/report"
	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

var batchCmd = &cobra.Command{
	Use:   "batch [url...]",
	Short: "Audit many targets concurrently",
	Long: `Audit every target given as an argument or listed in --file (one per line,
'#' starts a comment). Each target runs the same single-target audit; the batch
only bounds concurrency and the global start rate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		flags := cmd.Flags()

		file, _ := flags.GetString("file")
		concurrency, _ := flags.GetInt("concurrency")
		rateLimit, _ := flags.GetInt("rate-limit")
		timeoutSecs, _ := flags.GetInt("timeout")
		formatsRaw, _ := flags.GetString("format")
		outputDir, _ := flags.GetString("output-dir")
		noReport, _ := flags.GetBool("no-report")
		showProgress, _ := flags.GetBool("progress")
		failUnder, _ := flags.GetInt("fail-under")

		if concurrency < 1 {
			return fmt.Errorf("%w: --concurrency must be at least 1", sharederrors.ErrInvalidInput)
		}
		if timeoutSecs < 0 {
			return fmt.Errorf("%w: --timeout must not be negative", sharederrors.ErrInvalidInput)
		}
		formats, err := report.ParseFormats(formatsRaw)
		if err != nil {
			return err
		}
		targets, err := collectTargets(args, file)
		if err != nil {
			return err
		}

		auditor := newAuditor(appCtx, cmd, timeoutSecs)
		runner := &checker.Runner{Concurrency: concurrency, RateLimit: rateLimit}

		var writer *report.Writer
		if !noReport {
			writer = &report.Writer{Dir: reportDir(appCtx, outputDir)}
		}

		var bar *progressbar.ProgressBar
		if showProgress {
			bar = progressbar.NewOptions(len(targets),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("auditing"),
				progressbar.OptionShowCount(),
			)
		}

		var mu sync.Mutex
		reportPaths := make(map[string][]string, len(targets))
		var writeErrs []error

		results := runner.RunAudits(cmd.Context(), targets, auditor, func(target string, result checker.AuditResult, d time.Duration) error {
			appCtx.Logger.Info("audit finished",
				zap.String("target", target),
				zap.Int("score", result.Score),
				zap.Duration("duration", d),
			)
			if writer != nil {
				paths, err := writer.Write(result, formats)
				mu.Lock()
				if err != nil {
					writeErrs = append(writeErrs, fmt.Errorf("%s: %w", target, err))
				} else {
					reportPaths[target] = paths
				}
				mu.Unlock()
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			return nil
		})
		if bar != nil {
			_ = bar.Finish()
			fmt.Fprintln(cmd.ErrOrStderr())
		}

		printBatchSummary(cmd.OutOrStdout(), targets, results, reportPaths)

		if len(writeErrs) > 0 {
			return fmt.Errorf("write reports: %w", writeErrs[0])
		}
		if failUnder > 0 {
			for _, r := range results {
				if r.Score < failUnder {
					return &ScoreBelowThresholdError{Target: r.URL, Score: r.Score, Threshold: failUnder}
				}
			}
		}
		return nil
	},
}

func printBatchSummary(w io.Writer, targets []string, results []checker.AuditResult, reportPaths map[string][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tSCORE\tGRADE\tSTATUS\tREPORT")

	failed := 0
	total := 0
	for i, r := range results {
		status := "ok"
		if r.Failed() {
			status = r.Failure.Label()
			failed++
		}
		total += r.Score

		reportPath := "-"
		if paths := reportPaths[targets[i]]; len(paths) > 0 {
			reportPath = paths[0]
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", r.URL, r.Score, checker.Grade(r.Score), status, reportPath)
	}
	_ = tw.Flush()

	if len(results) == 0 {
		return
	}
	avg := float64(total) / float64(len(results))
	fmt.Fprintf(w, "\n%s %d targets, average score %.1f", colorInfo("Summary:"), len(results), avg)
	if failed > 0 {
		fmt.Fprintf(w, ", %s", colorError(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintln(w)
}

func init() {
	addAuditFlags(batchCmd)
	batchCmd.Flags().StringP("file", "f", "", "File with one target per line")
	batchCmd.Flags().Int("concurrency", defaultConcurrency, "Maximum concurrent audits")
	batchCmd.Flags().Int("rate-limit", defaultRateLimit, "Audits started per second (0 = unlimited)")
	batchCmd.Flags().Bool("progress", true, "Show a progress bar on stderr")
	batchCmd.Flags().Int("fail-under", 0, "Exit with status 2 when any score is below this value")
}
