package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrEmptyID is returned for ids that are blank after normalization.
	ErrEmptyID = errors.New("ledger: empty id")
	// ErrRecordSeparator is returned for ids containing a line break.
	ErrRecordSeparator = errors.New("ledger: id contains a record separator")
)

// Ledger is the append-only set of source ids that completed the pipeline.
// Membership is answered from the snapshot taken by Load; MarkProcessed has a
// single writer, the coordinator.
type Ledger struct {
	path string

	mu   sync.RWMutex
	seen map[string]struct{}
}

// New creates a ledger bound to path. Call Load before use.
func New(path string) *Ledger {
	return &Ledger{path: path, seen: make(map[string]struct{})}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Load reads the persisted ledger. A missing file is an empty set; any other
// read failure is returned so the caller can stop the batch.
func (l *Ledger) Load() (map[string]struct{}, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.replace(map[string]struct{}{})
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("open ledger %s: %w", l.path, err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := normalizeID(scanner.Text())
		if id == "" {
			continue
		}
		seen[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", l.path, err)
	}

	l.replace(seen)

	out := make(map[string]struct{}, len(seen))
	for id := range seen {
		out[id] = struct{}{}
	}
	return out, nil
}

func (l *Ledger) replace(seen map[string]struct{}) {
	l.mu.Lock()
	l.seen = seen
	l.mu.Unlock()
}

// IsProcessed reports membership in the snapshot loaded at run start. Ids
// are compared after the same normalization Load and MarkProcessed apply.
func (l *Ledger) IsProcessed(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[normalizeID(id)]
	return ok
}

// Validate reports whether id can be stored as a single ledger record.
func (l *Ledger) Validate(id string) error {
	_, err := recordID(id)
	return err
}

// Len returns the number of ids in the snapshot.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.seen)
}

// MarkProcessed appends id and a newline, then fsyncs before returning.
// Earlier content is never rewritten; if the file does not end in a newline
// (hand edit, torn write) a separator is written first.
func (l *Ledger) MarkProcessed(id string) error {
	id, err := recordID(id)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger for append: %w", err)
	}
	defer f.Close()

	prefix, err := needsSeparator(f)
	if err != nil {
		return fmt.Errorf("inspect ledger tail: %w", err)
	}

	var record bytes.Buffer
	if prefix {
		record.WriteByte('\n')
	}
	record.WriteString(id)
	record.WriteByte('\n')

	if _, err := f.Write(record.Bytes()); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}

	l.mu.Lock()
	l.seen[id] = struct{}{}
	l.mu.Unlock()
	return nil
}

// normalizeID strips surrounding whitespace, which hand edits and CRLF line
// endings introduce.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// recordID normalizes id and rejects values that would not read back as the
// same single record.
func recordID(id string) (string, error) {
	id = normalizeID(id)
	if id == "" {
		return "", ErrEmptyID
	}
	if strings.ContainsAny(id, "\r\n") {
		return "", fmt.Errorf("%w: %q", ErrRecordSeparator, id)
	}
	return id, nil
}

// needsSeparator reports whether the file is non-empty and its last byte is
// not a newline.
func needsSeparator(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return last[0] != '\n', nil
}
