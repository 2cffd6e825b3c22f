package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	sharederrors "github.com/khanhnv2901/webharden/internal/shared/errors"
)

// readTargets parses one target per line. Blank lines and lines starting with
// '#' are ignored; duplicates keep their first position.
func readTargets(r io.Reader) ([]string, error) {
	seen := make(map[string]struct{})
	var targets []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

func loadTargetsFile(path string) ([]string, error) {
	if strings.ContainsAny(path, "\r\n") {
		return nil, &TargetsFileError{Path: path, Err: fmt.Errorf("%w: path contains newline", sharederrors.ErrInvalidInput)}
	}
	f, err := os.Open(path) // #nosec G304 -- operator supplied targets list.
	if err != nil {
		return nil, &TargetsFileError{Path: path, Err: err}
	}
	defer f.Close()

	targets, err := readTargets(f)
	if err != nil {
		return nil, &TargetsFileError{Path: path, Err: err}
	}
	return targets, nil
}

// collectTargets merges positional arguments with the optional targets file.
func collectTargets(args []string, file string) ([]string, error) {
	targets := make([]string, 0, len(args))
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			targets = append(targets, a)
		}
	}
	if file != "" {
		fromFile, err := loadTargetsFile(file)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
	}
	if len(targets) == 0 {
		return nil, errors.Join(sharederrors.ErrInvalidInput, errors.New("no targets given (pass URLs or --file)"))
	}
	return targets, nil
}
