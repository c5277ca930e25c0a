package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

const (
	historyLimit = 1000
	historyShown = 20
)

// statementHistory holds submitted statements, oldest first. Each statement is
// kept on a single line so the history file stays line oriented.
type statementHistory struct {
	path    string
	entries []string
}

func newStatementHistory(path string) *statementHistory {
	return &statementHistory{path: path}
}

// historyPath returns $DUCKSERVE_HISTORY, or ~/.duckserve_history. An empty
// result disables persistence.
func historyPath() string {
	if path, ok := os.LookupEnv("DUCKSERVE_HISTORY"); ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".duckserve_history")
}

// Add records stmt unless it repeats the most recent entry.
func (h *statementHistory) Add(stmt string) {
	stmt = compact(stmt)
	if stmt == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == stmt {
		return
	}
	h.entries = append(h.entries, stmt)
	h.entries = lastN(h.entries, historyLimit)
}

// Recent returns up to n trailing entries and the 1-based number of the first.
func (h *statementHistory) Recent(n int) (int, []string) {
	recent := lastN(h.entries, n)
	return len(h.entries) - len(recent) + 1, recent
}

// Load replaces the entries with the contents of the history file. A missing
// file leaves the history empty.
func (h *statementHistory) Load() error {
	if h.path == "" {
		return nil
	}
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	h.entries = h.entries[:0]
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			h.entries = append(h.entries, line)
		}
	}
	h.entries = lastN(h.entries, historyLimit)
	return nil
}

// Save atomically replaces the history file.
func (h *statementHistory) Save() error {
	if h.path == "" || len(h.entries) == 0 {
		return nil
	}
	data := strings.Join(h.entries, "\n") + "\n"
	return renameio.WriteFile(h.path, []byte(data), 0600)
}

func lastN(entries []string, n int) []string {
	if len(entries) > n {
		return entries[len(entries)-n:]
	}
	return entries
}

// compact collapses every run of whitespace to one space.
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// abbreviate compacts s and cuts it to at most width runes.
func abbreviate(s string, width int) string {
	runes := []rune(compact(s))
	if len(runes) <= width {
		return string(runes)
	}
	return string(runes[:width-1]) + "…"
}
