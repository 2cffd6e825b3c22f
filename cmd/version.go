package cmd

import (
	"fmt"
	"runtime"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

// Version information (injected at build time via -ldflags)
// These default values indicate a development build
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Display detailed version information for webharden",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !verbose {
			fmt.Fprintf(out, "webharden version %s\n", Version)
			return
		}

		fmt.Fprintln(out, figure.NewFigure("webharden", "doom", true).String())
		fmt.Fprintf(out, `webharden Version Information:
  Version:    %s
  Git Commit: %s
  Build Date: %s
  Go Version: %s
  OS/Arch:    %s/%s
  Compiler:   %s
`, Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.Compiler)
	},
}
