package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const transcriptExt = ".txt"

// ErrTranscriptExists is returned when an id is already taken on disk.
var ErrTranscriptExists = errors.New("transcript already exists")

// Writer persists write-once transcripts named <prefix><id>.txt.
// It assumes a single writer per output directory.
type Writer struct {
	dir    string
	prefix string
}

// NewWriter creates a transcript writer for dir.
func NewWriter(dir, prefix string) *Writer {
	return &Writer{dir: dir, prefix: prefix}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// NextID scans existing transcripts and returns max(id)+1, or 1 when none
// exist. Gaps are not reused.
func (w *Writer) NextID() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("scan output directory: %w", err)
	}

	ids := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (int, bool) {
		if entry.IsDir() {
			return 0, false
		}
		return w.parseID(entry.Name())
	})
	if len(ids) == 0 {
		return 1, nil
	}
	return lo.Max(ids) + 1, nil
}

// parseID extracts the numeric suffix from <prefix><digits>.txt.
func (w *Writer) parseID(name string) (int, bool) {
	if !strings.HasPrefix(name, w.prefix) || !strings.HasSuffix(name, transcriptExt) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, w.prefix), transcriptExt)
	if digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return id, true
}

// FileName builds the transcript name for id.
func (w *Writer) FileName(id int) string {
	return w.prefix + strconv.Itoa(id) + transcriptExt
}

// Write creates the transcript for id and returns its path. An existing file
// is never overwritten.
func (w *Writer) Write(id int, text string) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("invalid transcript id %d", id)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(w.dir, w.FileName(id))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrTranscriptExists, path)
		}
		return "", fmt.Errorf("create transcript: %w", err)
	}

	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("sync transcript: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close transcript: %w", err)
	}
	return path, nil
}
