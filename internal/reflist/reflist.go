// Package reflist implements the Reference List Store of spec §4.A: a
// process-wide, multi-column set index loaded from a delimited file with
// atomic hot-reload, grounded on the original FilterListManager and rclone's
// reader/writer lock discipline for shared state.
package reflist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/TransportDebuger/filterservice/internal/fserrors"
	"github.com/TransportDebuger/filterservice/internal/logging"
)

// Store is the single process-wide reference list. Many readers, at most
// one writer (§4.A Concurrency); Contains takes only the shared lock.
type Store struct {
	mu          sync.RWMutex
	path        string
	columns     []string
	data        map[string]map[string]struct{}
	initialized bool
	log         *logging.Facade
}

// New returns an empty, uninitialized Store. log may be nil, in which case
// dropped-row warnings (see loadCsv) are discarded rather than logged.
func New(log *logging.Facade) *Store {
	return &Store{log: log}
}

// Initialize loads the delimited file at path once. Returns a classified
// *fserrors.Error with kind KindCsv wrapping NotFound|MalformedCsv|Empty.
func (s *Store) Initialize(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	columns, data, err := loadCsv(path, s.log)
	if err != nil {
		return err
	}
	s.path = path
	s.columns = columns
	s.data = data
	s.initialized = true
	return nil
}

// Reload re-reads the same path without holding the lock, then swaps the new
// contents in under the exclusive write lock. On any failure the previous
// contents remain intact — no partial update is ever visible to readers
// (§4.A).
func (s *Store) Reload() error {
	s.mu.RLock()
	path := s.path
	initialized := s.initialized
	log := s.log
	s.mu.RUnlock()
	if !initialized {
		return fserrors.New(fserrors.KindCsv, "reflist.reload", path, fmt.Errorf("store not initialized"))
	}

	columns, data, err := loadCsv(path, log)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.columns = columns
	s.data = data
	s.mu.Unlock()
	return nil
}

// Contains reports whether value is present in column. Fails with
// ErrUnknownColumn (wrapped in a *fserrors.Error) if column is not in the
// header row.
func (s *Store) Contains(column, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.data[column]
	if !ok {
		return false, fserrors.New(fserrors.KindCsv, "reflist.contains", column, fserrors.ErrUnknownColumn)
	}
	_, found := set[value]
	return found, nil
}

// IsInitialized reports whether Initialize has succeeded at least once.
func (s *Store) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Path returns the currently loaded file path, or "" if uninitialized.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Columns returns the header names of the currently loaded file.
func (s *Store) Columns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

func loadCsv(path string, log *logging.Facade) ([]string, map[string]map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fserrors.New(fserrors.KindCsv, "reflist.load", path, fserrors.ErrNotFound)
		}
		return nil, nil, fserrors.New(fserrors.KindCsv, "reflist.load", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var headers []string
	data := make(map[string]map[string]struct{})
	lineNo := 0
	sawDataRow := false

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := parseCsvLine(raw)
		for i := range fields {
			fields[i] = cleanField(fields[i])
		}

		if headers == nil {
			if len(fields) == 0 || allEmpty(fields) {
				return nil, nil, fserrors.New(fserrors.KindCsv, "reflist.load", path, fmt.Errorf("empty header row: %w", fserrors.ErrMalformedCsv))
			}
			headers = fields
			for _, h := range headers {
				if h != "" {
					data[h] = make(map[string]struct{})
				}
			}
			continue
		}

		if len(fields) != len(headers) {
			if log != nil {
				log.Warningf("reflist: %s line %d: expected %d columns, got %d, dropping row", path, lineNo, len(headers), len(fields))
			}
			continue
		}

		sawDataRow = true
		for i, v := range fields {
			if v == "" {
				continue
			}
			col := headers[i]
			if col == "" {
				continue
			}
			data[col][v] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fserrors.New(fserrors.KindCsv, "reflist.load", path, err)
	}
	if headers == nil {
		return nil, nil, fserrors.New(fserrors.KindCsv, "reflist.load", path, fserrors.ErrEmpty)
	}
	_ = sawDataRow // zero data rows is valid: contains() returns false for every value

	return headers, data, nil
}

func allEmpty(fields []string) bool {
	for _, f := range fields {
		if f != "" {
			return false
		}
	}
	return true
}

// parseCsvLine splits a comma-delimited line honoring double-quoted fields
// that may contain commas and escaped double quotes ("").
func parseCsvLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					cur.WriteRune('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				cur.WriteRune(c)
			}
		case c == '"':
			inQuotes = true
		case c == ',':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// cleanField strips surrounding whitespace and one pair of enclosing quotes.
func cleanField(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
	}
	return strings.TrimSpace(v)
}
