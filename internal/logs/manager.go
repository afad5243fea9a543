package logs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// timestampLayout matches the plain-text prefix the logger writes on
// every file line.
const timestampLayout = "2006-01-02 15:04:05"

// LogFile describes one daily log file on disk.
type LogFile struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// SearchOptions narrows a search to a substring and a time window.
// Zero-value times mean no bound on that side.
type SearchOptions struct {
	Query string
	Since time.Time
	Until time.Time
}

// Summary holds per-level line counts for one file.
type Summary struct {
	File  string         `json:"file"`
	Lines int            `json:"lines"`
	Level map[string]int `json:"level"`
}

// Manager reads the daily log files the logger writes. All operations
// are linear scans; the files are small enough that indexing would not
// pay for itself.
type Manager struct {
	dir    string
	prefix string
}

// NewManager creates a manager for log files under dir named
// <prefix>_YYYY-MM-DD.log.
func NewManager(dir, prefix string) *Manager {
	return &Manager{dir: dir, prefix: prefix}
}

// List returns the known log files, oldest first.
func (m *Manager) List() ([]LogFile, error) {
	pattern := filepath.Join(m.dir, m.prefix+"_*.log")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var files []LogFile
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, LogFile{
			Name:    filepath.Base(path),
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Latest returns the newest log file, or nil when none exist.
func (m *Manager) Latest() (*LogFile, error) {
	files, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[len(files)-1], nil
}

// Tail returns the last n lines of the named file.
func (m *Manager) Tail(name string, n int) ([]string, error) {
	if n <= 0 {
		n = 50
	}
	lines, err := m.readLines(name)
	if err != nil {
		return nil, err
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Search scans the named file for lines matching the options. The
// substring match is case-insensitive. Lines without a parseable
// timestamp prefix match substring queries but are excluded once a
// time window is set.
func (m *Manager) Search(name string, opts SearchOptions) ([]string, error) {
	lines, err := m.readLines(name)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(opts.Query)
	windowed := !opts.Since.IsZero() || !opts.Until.IsZero()

	var out []string
	for _, line := range lines {
		if query != "" && !strings.Contains(strings.ToLower(line), query) {
			continue
		}
		if windowed {
			ts, ok := lineTime(line)
			if !ok {
				continue
			}
			if !opts.Since.IsZero() && ts.Before(opts.Since) {
				continue
			}
			if !opts.Until.IsZero() && !ts.Before(opts.Until) {
				continue
			}
		}
		out = append(out, line)
	}
	return out, nil
}

// Summarize counts lines per level in the named file.
func (m *Manager) Summarize(name string) (*Summary, error) {
	lines, err := m.readLines(name)
	if err != nil {
		return nil, err
	}

	s := &Summary{File: name, Level: map[string]int{}}
	for _, line := range lines {
		s.Lines++
		for _, lvl := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
			if strings.Contains(line, " "+lvl+" ") {
				s.Level[lvl]++
				break
			}
		}
	}
	return s, nil
}

// Delete removes log files older than the cutoff date. Returns the
// names of the files removed.
func (m *Manager) Delete(olderThan time.Time) ([]string, error) {
	files, err := m.List()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, f := range files {
		day, ok := m.fileDate(f.Name)
		if !ok || !day.Before(olderThan) {
			continue
		}
		if err := os.Remove(f.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", f.Name, err)
		}
		removed = append(removed, f.Name)
	}
	return removed, nil
}

func (m *Manager) readLines(name string) ([]string, error) {
	// Reject path traversal; only basenames inside the log dir.
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("logs: invalid file name %q", name)
	}
	f, err := os.Open(filepath.Join(m.dir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// fileDate extracts the date from a file name like prefix_2026-08-30.log.
func (m *Manager) fileDate(name string) (time.Time, bool) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, m.prefix+"_"), ".log")
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// lineTime parses the timestamp prefix of a log line.
func lineTime(line string) (time.Time, bool) {
	if len(line) < len(timestampLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(timestampLayout, line[:len(timestampLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
