package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const logTimeLayout = "20060102-150405"

// SetupLogFile opens dir/<name>-<timestamp>.log for appending and prunes
// older logs of the same name so at most keep remain. The caller closes it.
func SetupLogFile(dir, name string, keep int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, name+"-"+time.Now().Format(logTimeLayout)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	if removed, err := pruneLogs(dir, name, keep); err != nil {
		fmt.Fprintf(os.Stderr, "warning: pruned %d old logs, then: %v\n", removed, err)
	}
	return f, nil
}

// pruneLogs removes the oldest <name>-*.log files beyond keep. Timestamps sort
// lexically, so name order is age order.
func pruneLogs(dir, name string, keep int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var logs []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, name+"-") && strings.HasSuffix(n, ".log") {
			logs = append(logs, n)
		}
	}
	if keep < 1 || len(logs) <= keep {
		return 0, nil
	}
	slices.Sort(logs)

	removed := 0
	for _, n := range logs[:len(logs)-keep] {
		if err := os.Remove(filepath.Join(dir, n)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", n, err)
		}
		removed++
	}
	return removed, nil
}
