// Package migrate applies versioned schema migrations to relational
// backends. Migrations form a single chain: every step names exactly one
// parent, and the database records the last applied step in a one-row
// schema_revision table. Graph backends are schema-free and always report
// an up-to-date state.
package migrate

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
)

//go:embed sql/*.sql
var scripts embed.FS

var (
	// ErrMultipleHeads reports a chain where two steps share a parent, so
	// there is no single latest version to migrate to.
	ErrMultipleHeads = errors.New("migration chain has multiple heads")

	// ErrUnknownVersion reports a database whose recorded revision does not
	// appear in the chain, usually a database managed by a newer or foreign
	// build.
	ErrUnknownVersion = errors.New("database revision not in migration chain")

	// ErrBadChain reports a structurally broken chain definition: duplicate
	// IDs, a missing or duplicated root, or steps whose parent does not
	// exist.
	ErrBadChain = errors.New("invalid migration chain")
)

// Migration is one step of the schema chain. IDs are written verbatim into
// the revision marker, so they are restricted to [0-9a-z_].
type Migration struct {
	ID     string
	Parent string // ID of the predecessor step; empty for the root
	Label  string
	File   string // script path inside the source filesystem
}

// State describes where a database sits relative to the chain before any
// steps are applied.
type State int

const (
	StateNotInitialized State = iota
	StatePending
	StateUpToDate
)

func (s State) String() string {
	switch s {
	case StateNotInitialized:
		return "not_initialized"
	case StatePending:
		return "pending"
	case StateUpToDate:
		return "up_to_date"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StepFailure records the first step that failed to apply.
type StepFailure struct {
	ID  string
	Err error
}

// Report summarizes one runner pass: the state observed on entry, the
// revisions moved between, and the steps applied before success or the
// first failure.
type Report struct {
	State       State
	Pending     int
	FromVersion string
	ToVersion   string
	Applied     []string
	Failed      *StepFailure
}

var identPattern = regexp.MustCompile(`^[0-9a-z_]+$`)

// orderChain validates the chain and returns its steps in application
// order, root first. An empty chain orders to nothing.
func orderChain(chain []Migration) ([]Migration, error) {
	if len(chain) == 0 {
		return nil, nil
	}

	byID := make(map[string]Migration, len(chain))
	for _, m := range chain {
		if !identPattern.MatchString(m.ID) {
			return nil, fmt.Errorf("%w: id %q is not a valid identifier", ErrBadChain, m.ID)
		}
		if _, dup := byID[m.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrBadChain, m.ID)
		}
		byID[m.ID] = m
	}

	var root string
	child := make(map[string]string, len(chain))
	for _, m := range chain {
		if m.Parent == "" {
			if root != "" {
				return nil, fmt.Errorf("%w: both %q and %q have no parent", ErrBadChain, root, m.ID)
			}
			root = m.ID
			continue
		}
		if _, ok := byID[m.Parent]; !ok {
			return nil, fmt.Errorf("%w: %q references unknown parent %q", ErrBadChain, m.ID, m.Parent)
		}
		if prev, ok := child[m.Parent]; ok {
			return nil, fmt.Errorf("%w: %q and %q both follow %q", ErrMultipleHeads, prev, m.ID, m.Parent)
		}
		child[m.Parent] = m.ID
	}
	if root == "" {
		return nil, fmt.Errorf("%w: no root step", ErrBadChain)
	}

	order := make([]Migration, 0, len(chain))
	for id := root; id != ""; id = child[id] {
		order = append(order, byID[id])
	}
	if len(order) != len(chain) {
		return nil, fmt.Errorf("%w: %d of %d steps unreachable from root %q",
			ErrBadChain, len(chain)-len(order), len(chain), root)
	}
	return order, nil
}

// Default returns the chain of migrations built into the binary.
func Default() []Migration {
	chain := make([]Migration, len(defaultChain))
	copy(chain, defaultChain)
	return chain
}

// Scripts returns the embedded SQL scripts backing the default chain.
func Scripts() fs.FS {
	return scripts
}

var defaultChain = []Migration{
	{
		ID:    "0001_create_examples",
		Label: "create examples table",
		File:  "sql/0001_create_examples.sql",
	},
	{
		ID:     "0002_create_categories",
		Parent: "0001_create_examples",
		Label:  "create categories table",
		File:   "sql/0002_create_categories.sql",
	},
	{
		ID:     "0003_example_category_link",
		Parent: "0002_create_categories",
		Label:  "link examples to categories",
		File:   "sql/0003_example_category_link.sql",
	},
	{
		ID:     "0004_create_users",
		Parent: "0003_example_category_link",
		Label:  "create users table",
		File:   "sql/0004_create_users.sql",
	},
}
