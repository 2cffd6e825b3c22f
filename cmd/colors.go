package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/khanhnv2901/webharden/internal/checker"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "pass", "present":
		return colorSuccess(status)
	case "error", "fail", "failed", "missing":
		return colorError(status)
	case "unavailable", "skipped":
		return colorWarn(status)
	default:
		return status
	}
}

func formatScoreWithColor(score int) string {
	text := fmt.Sprintf("%d/100", score)
	switch checker.Grade(score) {
	case "good":
		return colorSuccess(text)
	case "warn":
		return colorWarn(text)
	default:
		return colorError(text)
	}
}

func formatOutcomeWithColor(o checker.Outcome) string {
	switch o {
	case checker.OutcomeTrue:
		return colorSuccess("yes")
	case checker.OutcomeFalse:
		return colorError("no")
	default:
		return colorWarn("unknown")
	}
}

func formatHeaderState(state checker.HeaderState) string {
	return formatStatusWithColor(string(state))
}
