package media

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"batch-transcriber/internal/domain"
)

// TestScanFiltersByExtension checks allow-list, ordering and hidden files.
func TestScanFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.MP4", "notes.txt", ".hidden.mp4", "clip.wmv", "photo.png"} {
		mustWriteFile(t, filepath.Join(dir, name))
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.mp4"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := NewScanner(dir, []string{".mp4", ".wmv", ".png"}).Scan()
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"a.MP4", "b.mp4", "clip.wmv", "photo.png"}
	if len(files) != len(want) {
		t.Fatalf("files = %+v, want %v", files, want)
	}
	for i, name := range want {
		if files[i].ID != name {
			t.Fatalf("files[%d] = %q, want %q", i, files[i].ID, name)
		}
	}
	if files[0].Path != filepath.Join(dir, "a.MP4") {
		t.Fatalf("path = %q", files[0].Path)
	}
	if !files[2].NeedsConversion || files[2].Kind != domain.MediaKindVideo {
		t.Fatalf("wmv should be a video needing conversion: %+v", files[2])
	}
	if files[3].Kind != domain.MediaKindImage {
		t.Fatalf("png kind = %s, want image", files[3].Kind)
	}
}

// TestScanMissingDirectory checks the fatal sentinel.
func TestScanMissingDirectory(t *testing.T) {
	_, err := NewScanner(filepath.Join(t.TempDir(), "nope"), []string{".mp4"}).Scan()
	if !errors.Is(err, ErrSourceDirMissing) {
		t.Fatalf("error = %v, want ErrSourceDirMissing", err)
	}
}

// TestClassify covers each media family.
func TestClassify(t *testing.T) {
	cases := []struct {
		ext     string
		kind    domain.MediaKind
		convert bool
		ok      bool
	}{
		{".mp4", domain.MediaKindVideo, false, true},
		{".WAV", domain.MediaKindAudio, false, true},
		{".flv", domain.MediaKindVideo, true, true},
		{".jpeg", domain.MediaKindImage, false, true},
		{".docx", "", false, false},
	}
	for _, tc := range cases {
		kind, convert, ok := Classify(tc.ext)
		if kind != tc.kind || convert != tc.convert || ok != tc.ok {
			t.Fatalf("Classify(%q) = (%s, %v, %v)", tc.ext, kind, convert, ok)
		}
	}
}

func mustWriteFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
