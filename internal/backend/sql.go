package backend

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/plinth-dev/plinth/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLHandler serves the relational kinds (postgresql, mysql, sqlite)
// over database/sql with the matching driver. Construction opens the
// pool lazily; no connection is made until the first statement runs.
type SQLHandler struct {
	kind   config.Kind
	driver string
	dsn    string

	mu sync.RWMutex // guards db; Reopen swaps the pool while reads are in flight
	db *sql.DB

	closeOnce sync.Once
	closeErr  error
}

func newSQLHandler(cfg *config.Config) (*SQLHandler, error) {
	driver, dsn, err := cfg.SQLDSN()
	if err != nil {
		return nil, err
	}
	db, err := openPool(cfg.DBType, driver, dsn)
	if err != nil {
		return nil, err
	}
	return &SQLHandler{kind: cfg.DBType, driver: driver, dsn: dsn, db: db}, nil
}

func openPool(kind config.Kind, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if kind == config.KindSQLite {
		// WAL mode for concurrent reads, foreign keys on, and a single
		// writer connection.
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
			if _, err := db.ExecContext(context.Background(), pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("configure sqlite: %w", err)
			}
		}
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

func (h *SQLHandler) Kind() config.Kind { return h.kind }

// DB exposes the raw pool for migrations and backup tooling.
func (h *SQLHandler) DB() *sql.DB { return h.pool() }

// MaskedDSN returns the connection string with the password blanked.
func (h *SQLHandler) MaskedDSN() string { return MaskDSN(h.dsn) }

func (h *SQLHandler) pool() *sql.DB {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.db
}

// Reopen closes the pool and opens a fresh one on the same DSN. A read
// that straddles the swap still runs against the old pool and may fail;
// it never sees a mix of old and new pages.
func (h *SQLHandler) Reopen() error {
	db, err := openPool(h.kind, h.driver, h.dsn)
	if err != nil {
		return err
	}
	h.mu.Lock()
	old := h.db
	h.db = db
	h.mu.Unlock()
	if err := old.Close(); err != nil {
		return fmt.Errorf("close previous pool: %w", err)
	}
	return nil
}

// TestConnection issues SELECT 1. Failures are reported in the Status,
// never as an error; this feeds health reporting.
func (h *SQLHandler) TestConnection(ctx context.Context) Status {
	var one int
	if err := h.pool().QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return Status{OK: false, Message: fmt.Sprintf("database connection failed: %v", err)}
	}
	return Status{OK: true, Message: "database connection successful"}
}

// ExecuteQuery runs one statement with ":name" parameters and returns
// the result rows as column-name to value maps. Statement errors
// propagate to the caller.
func (h *SQLHandler) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	q, args, err := expandNamed(query, params, placeholderFor(h.kind))
	if err != nil {
		return nil, err
	}

	rows, err := h.pool().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

func (h *SQLHandler) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.pool().Close()
	})
	return h.closeErr
}

func collectRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			// The MySQL driver hands strings back as []byte.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
