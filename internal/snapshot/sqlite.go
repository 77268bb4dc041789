package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"retrospec/internal/errors"
	"retrospec/internal/paths"
	"retrospec/internal/project"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps the baseline and run history in .retrospec/retrospec.db.
type SQLiteStore struct {
	db           *DB
	historyLimit int
	logger       *slog.Logger
}

// OpenSQLiteStore opens (creating if needed) the database for root.
func OpenSQLiteStore(root string, opts Options) (*SQLiteStore, error) {
	db, err := OpenDB(paths.DatabasePath(root), opts.logger())
	if err != nil {
		return nil, errors.New(errors.SnapshotReadFailed, "open snapshot database", err)
	}
	return &SQLiteStore{db: db, historyLimit: opts.historyLimit(), logger: opts.logger()}, nil
}

// Location returns the database file path.
func (s *SQLiteStore) Location() string {
	return s.db.Path()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads the baseline.
func (s *SQLiteStore) Load(ctx context.Context) (*project.Project, bool, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM snapshot_meta WHERE key = 'saved_at'").Scan(&savedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, readErr("read snapshot metadata", err)
	}

	modDeps, err := s.deps(ctx, "SELECT module_id, dependency FROM module_deps ORDER BY module_id, dependency")
	if err != nil {
		return nil, false, err
	}
	suiteDeps, err := s.deps(ctx, "SELECT suite_path, dependency FROM test_suite_deps ORDER BY suite_path, dependency")
	if err != nil {
		return nil, false, err
	}

	var modules []project.Module
	rows, err := s.db.QueryContext(ctx, "SELECT id, path, content_hash FROM modules ORDER BY id")
	if err != nil {
		return nil, false, readErr("query modules", err)
	}
	for rows.Next() {
		var m project.Module
		if err := rows.Scan(&m.ID, &m.Path, &m.ContentHash); err != nil {
			rows.Close()
			return nil, false, readErr("scan module", err)
		}
		m.Dependencies = modDeps[m.ID]
		modules = append(modules, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, readErr("iterate modules", err)
	}

	var suites []project.TestSuite
	rows, err = s.db.QueryContext(ctx, "SELECT path, content_hash FROM test_suites ORDER BY path")
	if err != nil {
		return nil, false, readErr("query test suites", err)
	}
	for rows.Next() {
		var ts project.TestSuite
		if err := rows.Scan(&ts.Path, &ts.ContentHash); err != nil {
			rows.Close()
			return nil, false, readErr("scan test suite", err)
		}
		ts.Dependencies = suiteDeps[ts.Path]
		suites = append(suites, ts)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, readErr("iterate test suites", err)
	}

	p, err := project.Build(modules, suites)
	if err != nil {
		return nil, false, readErr("invalid snapshot", err)
	}
	s.logger.Debug("loaded snapshot", "path", s.db.Path(), "savedAt", savedAt,
		"modules", len(p.Modules), "testSuites", len(p.TestSuites))
	return p, true, nil
}

func (s *SQLiteStore) deps(ctx context.Context, query string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, readErr("query dependencies", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var key, dep string
		if err := rows.Scan(&key, &dep); err != nil {
			return nil, readErr("scan dependency", err)
		}
		out[key] = append(out[key], dep)
	}
	if err := rows.Err(); err != nil {
		return nil, readErr("iterate dependencies", err)
	}
	return out, nil
}

// Save replaces the baseline in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, p *project.Project) error {
	if p == nil {
		p = project.Empty()
	}
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := clearSnapshot(tx); err != nil {
			return err
		}

		insMod, err := tx.PrepareContext(ctx, "INSERT INTO modules (id, path, content_hash) VALUES (?, ?, ?)")
		if err != nil {
			return err
		}
		defer insMod.Close()
		insModDep, err := tx.PrepareContext(ctx, "INSERT INTO module_deps (module_id, dependency) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer insModDep.Close()
		insSuite, err := tx.PrepareContext(ctx, "INSERT INTO test_suites (path, content_hash) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer insSuite.Close()
		insSuiteDep, err := tx.PrepareContext(ctx, "INSERT INTO test_suite_deps (suite_path, dependency) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer insSuiteDep.Close()

		for _, id := range p.ModuleIDs() {
			m := p.Modules[id]
			if _, err := insMod.ExecContext(ctx, m.ID, m.Path, m.ContentHash); err != nil {
				return fmt.Errorf("insert module %s: %w", m.ID, err)
			}
			for _, d := range m.Dependencies {
				if _, err := insModDep.ExecContext(ctx, m.ID, d); err != nil {
					return fmt.Errorf("insert dependency %s -> %s: %w", m.ID, d, err)
				}
			}
		}
		for _, path := range p.TestSuitePaths() {
			ts := p.TestSuites[path]
			if _, err := insSuite.ExecContext(ctx, ts.Path, ts.ContentHash); err != nil {
				return fmt.Errorf("insert test suite %s: %w", ts.Path, err)
			}
			for _, d := range ts.Dependencies {
				if _, err := insSuiteDep.ExecContext(ctx, ts.Path, d); err != nil {
					return fmt.Errorf("insert dependency %s -> %s: %w", ts.Path, d, err)
				}
			}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO snapshot_meta (key, value) VALUES ('saved_at', ?)",
			time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return errors.New(errors.SnapshotWriteFailed, "save snapshot", err)
	}
	return nil
}

// Reset discards the baseline; run history is kept.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if err := s.db.WithTx(ctx, clearSnapshot); err != nil {
		return errors.New(errors.SnapshotWriteFailed, "reset snapshot", err)
	}
	return nil
}

func clearSnapshot(tx *sql.Tx) error {
	for _, table := range []string{"module_deps", "test_suite_deps", "modules", "test_suites", "snapshot_meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// RecordRun inserts run and prunes history beyond the limit.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, started_at, duration_ms, selected, total, modules, saved, outcome)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID.String(),
			run.StartedAt.UTC().Format(timeLayout),
			run.Duration.Milliseconds(),
			run.Selected,
			run.Total,
			run.Modules,
			boolToInt(run.Saved),
			string(run.Outcome),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM runs WHERE id NOT IN (
				SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
			)`, s.historyLimit)
		return err
	})
	if err != nil {
		return errors.New(errors.SnapshotWriteFailed, "record run", err)
	}
	return nil
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, selected, total, modules, saved, outcome
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, readErr("query runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id, startedAt, outcome string
			durationMs            int64
			saved                 int
			r                     Run
		)
		if err := rows.Scan(&id, &startedAt, &durationMs, &r.Selected, &r.Total, &r.Modules, &saved, &outcome); err != nil {
			return nil, readErr("scan run", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, readErr("parse run id", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, readErr("parse run time", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Saved = saved != 0
		r.Outcome = Outcome(outcome)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, readErr("iterate runs", err)
	}
	return runs, nil
}

func readErr(msg string, err error) error {
	return errors.New(errors.SnapshotReadFailed, msg, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
