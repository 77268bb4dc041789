package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/klauspost/compress/zstd"

	"retrospec/internal/errors"
	"retrospec/internal/paths"
	"retrospec/internal/project"
)

// JSONStore keeps the baseline in .retrospec/project-snapshot.json (or
// .json.zst) and the run history in .retrospec/history.json.
type JSONStore struct {
	path         string
	altPath      string
	historyPath  string
	compress     bool
	historyLimit int
	logger       *slog.Logger

	mu sync.Mutex
}

// NewJSONStore creates a JSON store for the project at root. Nothing is
// written until Save or RecordRun.
func NewJSONStore(root string, opts Options) *JSONStore {
	return &JSONStore{
		path:         paths.SnapshotPath(root, opts.Compress),
		altPath:      paths.SnapshotPath(root, !opts.Compress),
		historyPath:  paths.HistoryPath(root),
		compress:     opts.Compress,
		historyLimit: opts.historyLimit(),
		logger:       opts.logger(),
	}
}

// Location returns the snapshot file path.
func (s *JSONStore) Location() string {
	return s.path
}

// Close is a no-op.
func (s *JSONStore) Close() error {
	return nil
}

// Load reads the baseline. When the configured variant is missing but the
// other one (compressed or plain) exists, that one is read instead so
// toggling compression keeps the baseline.
func (s *JSONStore) Load(ctx context.Context) (*project.Project, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []string{s.path, s.altPath} {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		data, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, false, errors.New(errors.SnapshotReadFailed, fmt.Sprintf("read snapshot %s", p), err)
		}

		if isZstd(data) {
			if data, err = decompress(data); err != nil {
				return nil, false, errors.New(errors.SnapshotReadFailed, fmt.Sprintf("decompress snapshot %s", p), err)
			}
		}
		proj, err := Decode(data)
		if err != nil {
			return nil, false, errors.New(errors.SnapshotReadFailed, fmt.Sprintf("snapshot %s", p), err)
		}
		s.logger.Debug("loaded snapshot", "path", p, "modules", len(proj.Modules), "testSuites", len(proj.TestSuites))
		return proj, true, nil
	}
	return nil, false, nil
}

// Save atomically replaces the baseline.
func (s *JSONStore) Save(ctx context.Context, p *project.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := Encode(p)
	if err != nil {
		return errors.New(errors.SnapshotWriteFailed, "encode snapshot", err)
	}
	if s.compress {
		if data, err = compress(data); err != nil {
			return errors.New(errors.SnapshotWriteFailed, "compress snapshot", err)
		}
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return errors.New(errors.SnapshotWriteFailed, fmt.Sprintf("write snapshot %s", s.path), err)
	}
	if err := os.Remove(s.altPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("could not remove stale snapshot", "path", s.altPath, "error", err)
	}
	s.logger.Debug("saved snapshot", "path", s.path, "bytes", len(data))
	return nil
}

// Reset removes the baseline in both variants.
func (s *JSONStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []string{s.path, s.altPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.New(errors.SnapshotWriteFailed, fmt.Sprintf("remove snapshot %s", p), err)
		}
	}
	return nil
}

// RecordRun prepends run to history.json, trimming to the history limit.
func (s *JSONStore) RecordRun(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.readHistory()
	if err != nil {
		return err
	}
	runs = append([]Run{run}, runs...)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > s.historyLimit {
		runs = runs[:s.historyLimit]
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return errors.New(errors.SnapshotWriteFailed, "encode history", err)
	}
	if err := writeFileAtomic(s.historyPath, append(data, '\n')); err != nil {
		return errors.New(errors.SnapshotWriteFailed, fmt.Sprintf("write history %s", s.historyPath), err)
	}
	return nil
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (s *JSONStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.readHistory()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *JSONStore) readHistory() ([]Run, error) {
	data, err := os.ReadFile(s.historyPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.SnapshotReadFailed, fmt.Sprintf("read history %s", s.historyPath), err)
	}
	var runs []Run
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, errors.New(errors.SnapshotReadFailed, fmt.Sprintf("decode history %s", s.historyPath), err)
	}
	return runs, nil
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func isZstd(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never see a partial snapshot.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
