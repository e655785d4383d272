package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Report is a titled list of lines collected during a run, for example one
// line per verified package. It is safe for concurrent use.
type Report struct {
	Title string

	mu    sync.Mutex
	items []string
}

// NewReport returns an empty report.
func NewReport(title string) *Report {
	return &Report{Title: title}
}

// Addf appends a formatted line.
func (r *Report) Addf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, fmt.Sprintf(format, args...))
}

// Items returns a copy of the collected lines.
func (r *Report) Items() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

// WriteToDir appends the report to <dir>/report-<title>.txt and clears it.
// The title is sanitised for use in a filename.
func (r *Report) WriteToDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	title := r.Title
	if title == "" {
		title = "untitled"
	}
	safeTitle := make([]rune, 0, len(title))
	for _, c := range title {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			safeTitle = append(safeTitle, c)
		} else {
			safeTitle = append(safeTitle, '_')
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("report-%s.txt", string(safeTitle)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("opening report file: %w", err)
	}
	defer f.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return "", fmt.Errorf("writing to report file: %w", err)
		}
	}
	if _, err := fmt.Fprintln(f); err != nil {
		return "", fmt.Errorf("writing new line to report file: %w", err)
	}
	r.items = nil
	return path, nil
}
