// Package snapshot persists the baseline Project between runs and keeps a
// short history of past runs. Two backends exist: a JSON document (the
// format earlier releases wrote, optionally zstd-compressed) and a SQLite
// database.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"retrospec/internal/project"
	"retrospec/internal/slogutil"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultHistoryLimit bounds the run history when no limit is configured.
const DefaultHistoryLimit = 50

// Store loads and saves the baseline snapshot.
type Store interface {
	// Load returns the baseline. found is false when none was ever saved
	// (or it was reset); a baseline that exists but cannot be read is an
	// error, never an empty project.
	Load(ctx context.Context) (p *project.Project, found bool, err error)
	// Save replaces the baseline with p.
	Save(ctx context.Context, p *project.Project) error
	// Reset discards the baseline.
	Reset(ctx context.Context) error
}

// HistoryStore records past runs, newest first.
type HistoryStore interface {
	RecordRun(ctx context.Context, run Run) error
	Runs(ctx context.Context, limit int) ([]Run, error)
}

// Backend is a Store with run history.
type Backend interface {
	Store
	HistoryStore
	// Location is the file backing the baseline.
	Location() string
	Close() error
}

// Outcome is how a run ended.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeNoTests Outcome = "no-tests"
	OutcomeDryRun  Outcome = "dry-run"
	OutcomeError   Outcome = "error"
)

// Run is one history entry.
type Run struct {
	ID        uuid.UUID     `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Selected  int           `json:"selected"`
	Total     int           `json:"total"`
	Modules   int           `json:"modules"`
	Saved     bool          `json:"saved"`
	Outcome   Outcome       `json:"outcome"`
}

// NewRun starts a history entry with a fresh id.
func NewRun(startedAt time.Time) Run {
	return Run{ID: uuid.New(), StartedAt: startedAt.UTC()}
}

// Options selects and configures a backend.
type Options struct {
	Backend      string
	Compress     bool
	HistoryLimit int
	Logger       *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slogutil.NewDiscardLogger()
	}
	return o.Logger
}

func (o Options) historyLimit() int {
	if o.HistoryLimit > 0 {
		return o.HistoryLimit
	}
	return DefaultHistoryLimit
}

// Open returns the configured backend for the project at root.
func Open(root string, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendJSON:
		return NewJSONStore(root, opts), nil
	case BackendSQLite:
		return OpenSQLiteStore(root, opts)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", opts.Backend)
	}
}
