// Package lock coordinates exclusive maintenance operations across
// processes through a JSON lock file. The file is advisory: writers
// overwrite unconditionally, and readers treat records older than the TTL
// as released so a crashed process can never wedge the service.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/plinth-dev/plinth/internal/domain"
)

type record struct {
	IsLocked   bool      `json:"is_locked"`
	Operation  string    `json:"operation"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Coordinator reads and writes one lock file.
type Coordinator struct {
	path string
	ttl  time.Duration
	now  func() time.Time
}

// New returns a coordinator for the lock file at path. Records older than
// ttl read as unlocked; ttl <= 0 disables expiry.
func New(path string, ttl time.Duration) *Coordinator {
	return &Coordinator{path: path, ttl: ttl, now: time.Now}
}

// Path returns the lock file location.
func (c *Coordinator) Path() string {
	return c.path
}

// Lock writes a fresh lock record for the named operation, replacing any
// existing record. Callers that need held-lock detection check Status
// first; the window between the two calls is accepted.
func (c *Coordinator) Lock(operation string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	data, err := json.Marshal(record{
		IsLocked:   true,
		Operation:  operation,
		AcquiredAt: c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode lock record: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// Unlock removes the lock file. A missing file is already unlocked.
func (c *Coordinator) Unlock() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// Status reports the current lock state. An expired record reads as
// unlocked but stays on disk; the next Lock overwrites it.
func (c *Coordinator) Status() (domain.LockStatus, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return domain.LockStatus{}, nil
	}
	if err != nil {
		return domain.LockStatus{}, fmt.Errorf("read lock file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.LockStatus{}, fmt.Errorf("decode lock file: %w", err)
	}
	if !rec.IsLocked {
		return domain.LockStatus{}, nil
	}

	age := c.now().Sub(rec.AcquiredAt)
	if c.ttl > 0 && age >= c.ttl {
		return domain.LockStatus{}, nil
	}
	return domain.LockStatus{
		Locked:     true,
		Operation:  rec.Operation,
		AcquiredAt: rec.AcquiredAt,
		Age:        age,
	}, nil
}
