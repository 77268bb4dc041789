// Package paths resolves project-relative locations and the layout of the
// .retrospec data directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDir is the hidden directory at the project root holding retrospec state.
	DataDir = ".retrospec"
	// SnapshotFile is the JSON baseline snapshot.
	SnapshotFile = "project-snapshot.json"
	// CompressedSuffix is appended to SnapshotFile when zstd compression is on.
	CompressedSuffix = ".zst"
	// DatabaseFile is the SQLite store used by the sqlite backend.
	DatabaseFile = "retrospec.db"
	// HistoryFile records past runs for the JSON backend.
	HistoryFile = "history.json"
	// LogsSubdir holds log files when logging.file is relative.
	LogsSubdir = "logs"
)

// DataDirPath returns <root>/.retrospec.
func DataDirPath(root string) string {
	return filepath.Join(root, DataDir)
}

// EnsureDataDir creates <root>/.retrospec if missing and returns its path.
func EnsureDataDir(root string) (string, error) {
	dir := DataDirPath(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", DataDir, err)
	}
	return dir, nil
}

// SnapshotPath returns the baseline snapshot location.
func SnapshotPath(root string, compressed bool) string {
	p := filepath.Join(DataDirPath(root), SnapshotFile)
	if compressed {
		p += CompressedSuffix
	}
	return p
}

// DatabasePath returns the SQLite database location.
func DatabasePath(root string) string {
	return filepath.Join(DataDirPath(root), DatabaseFile)
}

// HistoryPath returns the JSON run-history location.
func HistoryPath(root string) string {
	return filepath.Join(DataDirPath(root), HistoryFile)
}

// LogPath resolves a configured log file; relative names land in
// .retrospec/logs.
func LogPath(root, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(DataDirPath(root), LogsSubdir, name)
}

// Resolve returns p unchanged when absolute, otherwise joined to root.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// CanonicalizePath converts an absolute path to a root-relative path with
// forward slashes, resolving symlinks on both sides when they exist.
func CanonicalizePath(absolutePath string, root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		resolved = absolutePath
	}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		rootResolved = root
	}

	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// IsWithinRepo checks if a path is inside root.
func IsWithinRepo(path string, root string) bool {
	canonical, err := CanonicalizePath(path, root)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts any backslashes to forward slashes. Snapshot keys
// are always slash-separated so baselines are portable between platforms.
func NormalizePath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), `\`, "/")
}

// JoinRepoPath joins a root with a canonical (slash-separated) path.
func JoinRepoPath(root string, canonicalPath string) string {
	parts := strings.Split(NormalizePath(canonicalPath), "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
