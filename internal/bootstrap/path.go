package bootstrap

import (
	"os"
	"path/filepath"
)

// LocalBinDir is where a user-local ffmpeg build may be installed.
func LocalBinDir(homeDir string) string {
	return filepath.Join(homeDir, ".batch-transcriber", "bin")
}

// EnsureLocalBinOnPATH prepends LocalBinDir to PATH when the directory
// exists, so a bare "ffmpeg" resolves to the local build first.
func EnsureLocalBinOnPATH(homeDir string) error {
	binDir := LocalBinDir(homeDir)
	if info, err := os.Stat(binDir); err != nil || !info.IsDir() {
		return nil
	}

	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if filepath.Clean(entry) == filepath.Clean(binDir) {
			return nil
		}
	}

	if current == "" {
		return os.Setenv("PATH", binDir)
	}
	return os.Setenv("PATH", binDir+string(os.PathListSeparator)+current)
}
