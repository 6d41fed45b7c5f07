// Package store keeps a history of chain runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/ib-77/ropchain/pkg/bundle"
	"github.com/ib-77/ropchain/pkg/chain"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// timeLayout is fixed width so that started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Run is one persisted chain execution.
type Run struct {
	ID          uuid.UUID
	Stages      []string
	Status      string
	FailedStage string
	Error       string
	Output      bundle.Bundle
	StartedAt   time.Time
	Took        time.Duration
}

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open initializes the configured store.
// It returns (nil, nil) if history is disabled.
func Open(cfg Config, log zerolog.Logger) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none":
		return nil, nil
	case "sqlite", "sqlite3":
	default:
		return nil, errors.Newf("unknown store driver: %s", driver)
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create store dir")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return errors.Wrap(err, "migrate")
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record persists the report of a finished chain.
func (s *Store) Record(ctx context.Context, rep chain.Report) error {
	if s == nil || s.db == nil {
		return nil
	}
	run := FromReport(rep)

	var output any
	if run.Status == StatusSucceeded {
		b, err := run.Output.MarshalJSON()
		if err != nil {
			return errors.Wrap(err, "encode output")
		}
		output = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, stages, status, failed_stage, err, output, started_at, took_ms)
		 VALUES(?,?,?,?,?,?,?,?)`,
		run.ID.String(), strings.Join(run.Stages, ","), run.Status,
		nullStr(run.FailedStage), nullStr(run.Error), output,
		run.StartedAt.UTC().Format(timeLayout), run.Took.Milliseconds(),
	)
	if err != nil {
		return errors.Wrapf(err, "record run %s", run.ID)
	}
	s.log.Debug().Str("run", run.ID.String()).Str("status", run.Status).Msg("run recorded")
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stages, status, failed_stage, err, output, started_at, took_ms
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			id, stages, status, startedAt string
			failedStage, errText, output  sql.NullString
			tookMS                        int64
		)
		if err := rows.Scan(&id, &stages, &status, &failedStage, &errText, &output, &startedAt, &tookMS); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		run := Run{
			Stages:      splitStages(stages),
			Status:      status,
			FailedStage: failedStage.String,
			Error:       errText.String,
			Took:        time.Duration(tookMS) * time.Millisecond,
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "run id %q", id)
		}
		if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, errors.Wrapf(err, "run %s started_at", id)
		}
		if output.Valid {
			if err := run.Output.UnmarshalJSON([]byte(output.String)); err != nil {
				return nil, errors.Wrapf(err, "run %s output", id)
			}
		}
		out = append(out, run)
	}
	return out, errors.Wrap(rows.Err(), "iterate runs")
}

// FromReport flattens an executor report into a history row.
func FromReport(rep chain.Report) Run {
	run := Run{
		ID:        rep.ChainID,
		Status:    StatusSucceeded,
		StartedAt: rep.Started,
		Took:      rep.Took,
	}
	for _, st := range rep.Steps {
		run.Stages = append(run.Stages, st.Stage)
	}
	if rep.Outcome.IsSuccess() {
		run.Output = rep.Outcome.Result()
		return run
	}
	run.Status = StatusFailed
	if err := rep.Outcome.Err(); err != nil {
		run.Error = err.Error()
		if name, ok := chain.FailedStage(err); ok {
			run.FailedStage = name
		}
	}
	return run
}

func splitStages(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
