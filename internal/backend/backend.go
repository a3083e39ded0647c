// Package backend wraps the configured database behind a small
// capability contract shared by the relational and graph
// implementations. Everything above this package talks to a Handler;
// nothing above it branches on the database kind except through the
// optional capability interfaces.
package backend

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/plinth-dev/plinth/internal/config"
)

// Status is the outcome of a connectivity probe. Probes never fail with
// an error; an unreachable backend is data, reported to health callers.
type Status struct {
	OK      bool
	Message string
}

// Handler is the capability contract every backend satisfies.
//
//   - TestConnection issues a trivial round-trip and reports the result.
//   - ExecuteQuery runs one parameterized statement. Parameters are
//     named (":name" for SQL, "$name" for Cypher) and rows come back as
//     column/property-name to value maps. Errors propagate to the
//     caller, which owns the HTTP translation.
//   - Close releases pooled connections and is safe to call twice.
type Handler interface {
	Kind() config.Kind
	TestConnection(ctx context.Context) Status
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Close() error
}

// SQLConn is the optional capability exposing the raw connection pool
// of a relational handler. Callers that need it (migrations, backup)
// assert for it instead of downcasting to a concrete type.
type SQLConn interface {
	DB() *sql.DB
}

// Reopener is the optional capability for discarding the current pool
// and opening a fresh one on the same DSN. Restores that replace the
// SQLite database file call it; pages cached before the swap must not
// be served afterwards.
type Reopener interface {
	Reopen() error
}

var (
	urlCredentials = regexp.MustCompile(`://([^:/@]+):([^@]+)@`)
	dsnCredentials = regexp.MustCompile(`^([^:@/]+):([^@]+)@`)
)

// MaskDSN blanks the password in a connection string so it can be
// logged or reported. Handles both URL DSNs and the MySQL
// "user:pass@tcp(...)" form.
func MaskDSN(dsn string) string {
	if urlCredentials.MatchString(dsn) {
		return urlCredentials.ReplaceAllString(dsn, "://$1:****@")
	}
	return dsnCredentials.ReplaceAllString(dsn, "$1:****@")
}
