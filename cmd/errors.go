package cmd

import (
	"errors"
	"fmt"

	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

// Process exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitBelowScore = 2
	exitUsage      = 64
)

// ScoreBelowThresholdError is returned when --fail-under rejects an audit score.
type ScoreBelowThresholdError struct {
	Target    string
	Score     int
	Threshold int
}

func (e *ScoreBelowThresholdError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("score %d is below threshold %d", e.Score, e.Threshold)
	}
	return fmt.Sprintf("%s scored %d, below threshold %d", e.Target, e.Score, e.Threshold)
}

// TargetsFileError signals that a batch targets file could not be used.
type TargetsFileError struct {
	Path string
	Err  error
}

func (e *TargetsFileError) Error() string {
	return fmt.Sprintf("targets file %s: %v", e.Path, e.Err)
}

func (e *TargetsFileError) Unwrap() error {
	return e.Err
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var below *ScoreBelowThresholdError
	if errors.As(err, &below) {
		return exitBelowScore
	}
	if errors.Is(err, sharederrors.ErrInvalidInput) || errors.Is(err, sharederrors.ErrUnsupportedFormat) {
		return exitUsage
	}
	return exitError
}
