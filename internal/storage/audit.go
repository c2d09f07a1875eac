// Package storage keeps the flat-file audit trail of privileged commands.
package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dalnet/lobbybot/internal/clock"
)

const (
	// AuditFile is the name of the audit log inside the data directory
	AuditFile = "audit.txt"

	maxEntries = 500

	timestampLayout = "Mon Jan 02, 2006 15:04:05 MST"
)

// AuditLog is a bounded list of privileged actions, newest first in memory
// and oldest first on disk.
type AuditLog struct {
	mu      sync.Mutex
	path    string
	entries []string
	clock   clock.Clock
}

// OpenAuditLog loads the audit log from dataDir. A missing file starts an
// empty log.
func OpenAuditLog(dataDir string, clk clock.Clock) (*AuditLog, error) {
	path := filepath.Join(dataDir, AuditFile)
	lines, err := readLines(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	if len(lines) > maxEntries {
		lines = lines[len(lines)-maxEntries:]
	}
	return &AuditLog{
		path:    path,
		entries: reverse(lines),
		clock:   clk,
	}, nil
}

// Record adds an entry for an action taken by hostmask and saves the log
func (a *AuditLog) Record(hostmask, action string) error {
	entry := fmt.Sprintf("[%s] %s: %s", a.clock.Now().UTC().Format(timestampLayout), hostmask, action)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append([]string{entry}, a.entries...)
	if len(a.entries) > maxEntries {
		a.entries = a.entries[:maxEntries]
	}
	return writeLines(a.path, reverse(a.entries))
}

// Recent returns up to n entries, newest first
func (a *AuditLog) Recent(n int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n > len(a.entries) {
		n = len(a.entries)
	}
	out := make([]string, n)
	copy(out, a.entries[:n])
	return out
}

// Len returns the number of entries held
func (a *AuditLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// writeLines replaces path through a temp file so a crash never leaves a
// truncated log.
func writeLines(path string, lines []string) error {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func reverse(s []string) []string {
	result := make([]string, len(s))
	for i, v := range s {
		result[len(s)-1-i] = v
	}
	return result
}
