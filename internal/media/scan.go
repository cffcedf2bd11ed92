package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"batch-transcriber/internal/domain"
)

// ErrSourceDirMissing is fatal: the batch has nothing to enumerate.
var ErrSourceDirMissing = errors.New("source directory does not exist")

var videoExts = []string{".mp4", ".mov", ".mkv", ".avi", ".webm", ".m4v"}
var audioExts = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg", ".aac"}
var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff"}

// convertExts are containers ffmpeg's audio extraction handles poorly; they
// are transcoded to mp4 first.
var convertExts = []string{".wmv", ".flv", ".3gp", ".mpg", ".mpeg", ".ts"}

// Classify maps an extension to a media kind.
func Classify(ext string) (kind domain.MediaKind, needsConversion bool, ok bool) {
	ext = strings.ToLower(ext)
	switch {
	case lo.Contains(videoExts, ext):
		return domain.MediaKindVideo, false, true
	case lo.Contains(audioExts, ext):
		return domain.MediaKindAudio, false, true
	case lo.Contains(convertExts, ext):
		return domain.MediaKindVideo, true, true
	case lo.Contains(imageExts, ext):
		return domain.MediaKindImage, false, true
	default:
		return "", false, false
	}
}

// Scanner enumerates source files whose extension is on the allow-list.
type Scanner struct {
	dir        string
	extensions map[string]struct{}
	readDir    func(name string) ([]os.DirEntry, error)
}

// NewScanner creates a scanner over dir accepting the given extensions.
func NewScanner(dir string, extensions []string) *Scanner {
	return &Scanner{
		dir:        dir,
		extensions: lo.SliceToMap(extensions, func(ext string) (string, struct{}) { return strings.ToLower(ext), struct{}{} }),
		readDir:    os.ReadDir,
	}
}

// Scan lists eligible files in lexical order. Subdirectories and hidden
// files are ignored.
func (s *Scanner) Scan() ([]domain.SourceFile, error) {
	entries, err := s.readDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceDirMissing, s.dir)
		}
		return nil, fmt.Errorf("read source directory %s: %w", s.dir, err)
	}

	files := make([]domain.SourceFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := s.extensions[ext]; !ok {
			continue
		}
		kind, convert, ok := Classify(ext)
		if !ok {
			// allow-listed but unknown: let ffmpeg try after conversion
			kind, convert = domain.MediaKindVideo, true
		}
		files = append(files, domain.SourceFile{
			ID:              name,
			Path:            filepath.Join(s.dir, name),
			Kind:            kind,
			NeedsConversion: convert,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}
