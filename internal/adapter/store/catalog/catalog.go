// Package catalog provides facet-based dataset discovery over a CSV
// catalog file in the intake-esm column layout.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Entry is one catalog row: a set of selection facets plus the paths of
// the SST dataset and its cell-area dataset.
type Entry struct {
	ActivityID    string
	InstitutionID string
	SourceID      string
	ExperimentID  string
	MemberID      string
	TableID       string
	VariableID    string
	GridLabel     string
	Path          string
	AreaPath      string
}

// Query selects entries by exact facet match; an empty facet matches
// everything.
type Query struct {
	ActivityID   string
	SourceID     string
	ExperimentID string
	MemberID     string
	TableID      string
	VariableID   string
	GridLabel    string
}

// Matches reports whether the entry satisfies every non-empty facet.
func (q Query) Matches(e Entry) bool {
	match := func(want, have string) bool {
		return want == "" || want == have
	}
	return match(q.ActivityID, e.ActivityID) &&
		match(q.SourceID, e.SourceID) &&
		match(q.ExperimentID, e.ExperimentID) &&
		match(q.MemberID, e.MemberID) &&
		match(q.TableID, e.TableID) &&
		match(q.VariableID, e.VariableID) &&
		match(q.GridLabel, e.GridLabel)
}

var expectedHeader = []string{
	"activity_id", "institution_id", "source_id", "experiment_id",
	"member_id", "table_id", "variable_id", "grid_label", "path", "area_path",
}

// Catalog is a reloadable facet table. The backing CSV file is watched
// with fsnotify and re-read when it changes on disk, so new datasets
// become visible without a restart.
type Catalog struct {
	path    string
	mu      sync.RWMutex
	entries []Entry
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open reads the catalog file and starts watching it for changes.
func Open(path string) (*Catalog, error) {
	c := &Catalog{path: path, done: make(chan struct{})}
	if err := c.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	// Watch the directory, not the file: editors and atomic writes
	// replace the inode, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch catalog directory: %w", err)
	}
	c.watcher = watcher
	go c.watch()

	return c, nil
}

// OpenStatic reads the catalog once without watching for changes. Used
// by one-shot CLI invocations.
func OpenStatic(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) watch() {
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(c.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.Reload(); err != nil {
				log.Warn().Err(err).Str("path", c.path).Msg("Catalog reload failed, keeping previous entries")
				continue
			}
			log.Info().Str("path", c.path).Int("entries", c.Len()).Msg("Catalog reloaded")
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Catalog watcher error")
		}
	}
}

// Reload re-reads the catalog file, replacing the entry set atomically.
// On parse failure the previous entries are kept.
func (c *Catalog) Reload() error {
	entries, err := readCatalogCSV(c.path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// Search returns the entries matching every non-empty facet of the query.
func (c *Catalog) Search(q Query) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := make([]Entry, 0)
	for _, e := range c.entries {
		if q.Matches(e) {
			matches = append(matches, e)
		}
	}
	return matches
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the file watcher, if one is running.
func (c *Catalog) Close() error {
	if c.watcher == nil {
		return nil
	}
	close(c.done)
	return c.watcher.Close()
}

func readCatalogCSV(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}
	if len(header) != len(expectedHeader) {
		return nil, fmt.Errorf("invalid catalog header: expected %v, got %v", expectedHeader, header)
	}
	for i, h := range header {
		if strings.TrimSpace(h) != expectedHeader[i] {
			return nil, fmt.Errorf("invalid catalog header: expected column %d to be %s, got %s", i, expectedHeader[i], h)
		}
	}

	entries := make([]Entry, 0)
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read catalog record: %w", err)
		}
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("invalid catalog record: expected %d columns, got %d", len(expectedHeader), len(record))
		}

		entry := Entry{
			ActivityID:    strings.TrimSpace(record[0]),
			InstitutionID: strings.TrimSpace(record[1]),
			SourceID:      strings.TrimSpace(record[2]),
			ExperimentID:  strings.TrimSpace(record[3]),
			MemberID:      strings.TrimSpace(record[4]),
			TableID:       strings.TrimSpace(record[5]),
			VariableID:    strings.TrimSpace(record[6]),
			GridLabel:     strings.TrimSpace(record[7]),
			Path:          strings.TrimSpace(record[8]),
			AreaPath:      strings.TrimSpace(record[9]),
		}
		if entry.SourceID == "" || entry.VariableID == "" || entry.Path == "" {
			return nil, fmt.Errorf("invalid catalog record: source_id, variable_id, and path are required")
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog %s contains no entries", path)
	}
	return entries, nil
}
