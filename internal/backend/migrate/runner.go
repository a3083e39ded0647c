package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/plinth-dev/plinth/internal/backend"
)

// Runner applies a migration chain to one database.
type Runner struct {
	db    *sql.DB
	chain []Migration
	src   fs.FS
}

// NewRunner returns a runner for the given chain with scripts read from src.
func NewRunner(db *sql.DB, chain []Migration, src fs.FS) *Runner {
	return &Runner{db: db, chain: chain, src: src}
}

// RunForBackend applies the default chain when the handler exposes a
// relational connection. Graph backends carry no managed schema, so they
// report up to date without being touched.
func RunForBackend(ctx context.Context, h backend.Handler) (*Report, error) {
	conn, ok := h.(backend.SQLConn)
	if !ok {
		return &Report{State: StateUpToDate}, nil
	}
	return NewRunner(conn.DB(), Default(), Scripts()).Run(ctx)
}

// Run applies every step past the recorded revision, in chain order, each
// inside its own transaction. The first failing step stops the pass; steps
// already applied stay applied and the report names the failure. Run
// returns an error only when the chain itself or the revision marker is
// unusable.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	order, err := orderChain(r.chain)
	if err != nil {
		return nil, err
	}

	if err := r.ensureRevisionTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure revision table: %w", err)
	}

	current, err := r.currentRevision(ctx)
	if err != nil {
		return nil, fmt.Errorf("read current revision: %w", err)
	}

	report := &Report{FromVersion: current, ToVersion: current}
	if len(order) == 0 {
		report.State = StateUpToDate
		return report, nil
	}

	start := 0
	switch {
	case current == "":
		report.State = StateNotInitialized
	default:
		idx := -1
		for i, m := range order {
			if m.ID == current {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, current)
		}
		start = idx + 1
		if start == len(order) {
			report.State = StateUpToDate
			return report, nil
		}
		report.State = StatePending
	}
	report.Pending = len(order) - start

	for _, m := range order[start:] {
		if err := r.apply(ctx, m); err != nil {
			report.Failed = &StepFailure{ID: m.ID, Err: err}
			slog.Error("migration failed", "version", m.ID, "error", err)
			break
		}
		report.Applied = append(report.Applied, m.ID)
		report.ToVersion = m.ID
		slog.Info("migration applied", "version", m.ID, "label", m.Label)
	}
	return report, nil
}

func (r *Runner) ensureRevisionTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_revision (
			version VARCHAR(255) NOT NULL
		)
	`)
	return err
}

func (r *Runner) currentRevision(ctx context.Context) (string, error) {
	var version string
	err := r.db.QueryRowContext(ctx, "SELECT version FROM schema_revision LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return version, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	script, err := fs.ReadFile(r.src, m.File)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Drivers on the extended protocol reject multi-statement strings, so
	// scripts run one statement at a time.
	for _, stmt := range splitStatements(string(script)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute statement: %w", err)
		}
	}

	// Step IDs pass the identifier check during chain validation, so the
	// marker value is safe to inline.
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_revision"); err != nil {
		return fmt.Errorf("clear revision: %w", err)
	}
	insert := fmt.Sprintf("INSERT INTO schema_revision (version) VALUES ('%s')", m.ID)
	if _, err := tx.ExecContext(ctx, insert); err != nil {
		return fmt.Errorf("record revision: %w", err)
	}

	return tx.Commit()
}

func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
