package backend

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/plinth-dev/plinth/internal/config"
	"github.com/plinth-dev/plinth/internal/domain"
)

// Factory constructs the process-wide database handler. Exactly one
// handler exists per factory; every service receives it from here so
// connection pools never diverge. The factory value itself is built in
// main and passed down explicitly.
type Factory struct {
	cfg  *config.Config
	once sync.Once
	h    Handler
	err  error
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// Get returns the handler, constructing it on first call. Subsequent
// calls return the same instance — or the same construction error.
func (f *Factory) Get() (Handler, error) {
	f.once.Do(func() {
		f.h, f.err = Open(f.cfg)
		if f.err != nil {
			return
		}
		if m, ok := f.h.(interface{ MaskedDSN() string }); ok {
			slog.Info("database handler created", "db_type", f.h.Kind(), "dsn", m.MaskedDSN())
		} else {
			slog.Info("database handler created", "db_type", f.h.Kind())
		}
	})
	return f.h, f.err
}

// Open validates the configured kind and constructs the matching
// handler. An unsupported kind is a configuration error, fatal at
// startup and never retried.
func Open(cfg *config.Config) (Handler, error) {
	switch {
	case cfg.DBType.IsSQL():
		return newSQLHandler(cfg)
	case cfg.DBType.IsGraph():
		return newGraphHandler(cfg)
	default:
		return nil, fmt.Errorf("%w: %q (supported: postgresql, mysql, sqlite, neo4j)",
			domain.ErrUnsupportedKind, string(cfg.DBType))
	}
}
