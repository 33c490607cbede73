// Package store keeps a history of finished simulations in SQLite so a
// learner can revisit and annotate earlier runs.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/njchilds90/descent"
	"github.com/njchilds90/descent/internal/store/migrations"
)

// ErrNotFound is returned for run IDs that are not in the store.
var ErrNotFound = errors.New("store: run not found")

// Run is one saved simulation.
type Run struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	Preset     string          `json:"preset,omitempty"`
	Expr       string          `json:"expr"`
	Verdict    descent.Verdict `json:"verdict"`
	Steps      int             `json:"steps"`
	FinalValue *float64        `json:"final_value"`
	Note       string          `json:"note,omitempty"`
	// Result is only populated by Get.
	Result *descent.Result `json:"result,omitempty"`
}

// Store is a SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var up []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			up = append(up, e.Name())
		}
	}
	sort.Strings(up)

	for _, name := range up {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// Save stores res under a new ID. preset is the preset name the run was
// started from, or "".
func (s *Store) Save(ctx context.Context, preset string, res *descent.Result) (Run, error) {
	if res == nil {
		return Run{}, errors.New("store: nil result")
	}
	body, err := json.Marshal(res)
	if err != nil {
		return Run{}, fmt.Errorf("marshal result: %w", err)
	}
	run := Run{
		ID:         uuid.NewString(),
		CreatedAt:  s.now().UTC(),
		Preset:     preset,
		Expr:       res.Expr,
		Verdict:    res.Verdict,
		Steps:      res.StepCount,
		FinalValue: res.FinalValue,
	}
	var final any
	if run.FinalValue != nil {
		final = *run.FinalValue
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, preset, expr, verdict, steps, final_value, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixNano(), run.Preset, run.Expr, string(run.Verdict), run.Steps, final, string(body))
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

const runColumns = "id, created_at, preset, expr, verdict, steps, final_value, note"

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (Run, error) {
	var (
		r       Run
		created int64
		verdict string
		final   sql.NullFloat64
	)
	dest := append([]any{&r.ID, &created, &r.Preset, &r.Expr, &verdict, &r.Steps, &final, &r.Note}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.Verdict = descent.Verdict(verdict)
	if final.Valid {
		v := final.Float64
		r.FinalValue = &v
	}
	return r, nil
}

// Get returns the run with its full result.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	var body string
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+", result_json FROM runs WHERE id = ?", id)
	r, err := scanRun(row, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Result = new(descent.Result)
	if err := json.Unmarshal([]byte(body), r.Result); err != nil {
		return Run{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit runs, newest first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Annotate replaces the learner's note on a run.
func (s *Store) Annotate(ctx context.Context, id, note string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE runs SET note = ? WHERE id = ?", note, id)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
