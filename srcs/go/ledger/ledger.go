// Package ledger keeps a sqlite record of sweeps and their iterations.
package ledger

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lsds/collsweep/srcs/go/sweep"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sweeps (
  id          TEXT PRIMARY KEY,
  hosts       TEXT,
  iface       TEXT,
  started_at  TEXT,
  finished_at TEXT,
  failed      INTEGER
);
CREATE TABLE IF NOT EXISTS runs (
  seq         INTEGER PRIMARY KEY AUTOINCREMENT,
  sweep_id    TEXT REFERENCES sweeps(id),
  iteration   INTEGER,
  benchmark   TEXT,
  algorithm   TEXT,
  alg_index   INTEGER,
  command     TEXT,
  status      TEXT,
  started_at  TEXT,
  took_ms     INTEGER,
  staged      TEXT,
  error       TEXT
);`

type Ledger struct {
	db *sql.DB
}

func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init ledger schema")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Sweep is one invocation of the tool. It implements sweep.Recorder.
type Sweep struct {
	ID string
	l  *Ledger
}

func (l *Ledger) Begin(ctx context.Context, hosts []string, iface string) (*Sweep, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sweeps (id, hosts, iface, started_at) VALUES (?, ?, ?, ?)`,
		id, strings.Join(hosts, ","), iface, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, errors.Wrap(err, "begin sweep")
	}
	return &Sweep{ID: id, l: l}, nil
}

func (s *Sweep) Record(ctx context.Context, r sweep.Record) error {
	var msg string
	if r.Err != nil {
		msg = r.Err.Error()
	}
	_, err := s.l.db.ExecContext(ctx,
		`INSERT INTO runs (sweep_id, iteration, benchmark, algorithm, alg_index, command, status, started_at, took_ms, staged, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, r.Iteration, r.Selection.Benchmark.Name, r.Selection.AlgorithmName(), r.Selection.Algorithm,
		r.Command, string(r.Status), r.Started.UTC().Format(time.RFC3339), r.Took.Milliseconds(),
		strings.Join(r.Staged(), ","), msg)
	return errors.Wrapf(err, "record %s", r.Selection)
}

func (s *Sweep) Finish(ctx context.Context, failed int) error {
	_, err := s.l.db.ExecContext(ctx,
		`UPDATE sweeps SET finished_at = ?, failed = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), failed, s.ID)
	return errors.Wrap(err, "finish sweep")
}

// Run is a stored iteration.
type Run struct {
	Iteration int
	Benchmark string
	Algorithm string
	Index     int
	Command   string
	Status    sweep.Status
	Took      time.Duration
	Staged    []string
	Error     string
}

// Runs returns the iterations of a sweep in the order they were recorded.
func (l *Ledger) Runs(ctx context.Context, sweepID string) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT iteration, benchmark, algorithm, alg_index, command, status, took_ms, staged, error
		 FROM runs WHERE sweep_id = ? ORDER BY seq`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var status, staged string
		var took int64
		if err := rows.Scan(&r.Iteration, &r.Benchmark, &r.Algorithm, &r.Index, &r.Command, &status, &took, &staged, &r.Error); err != nil {
			return nil, err
		}
		r.Status = sweep.Status(status)
		r.Took = time.Duration(took) * time.Millisecond
		if len(staged) > 0 {
			r.Staged = strings.Split(staged, ",")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Failed reads back the failure count stored by Finish.
func (l *Ledger) Failed(ctx context.Context, sweepID string) (int, bool, error) {
	var failed sql.NullInt64
	err := l.db.QueryRowContext(ctx, `SELECT failed FROM sweeps WHERE id = ?`, sweepID).Scan(&failed)
	if err != nil {
		return 0, false, err
	}
	return int(failed.Int64), failed.Valid, nil
}
