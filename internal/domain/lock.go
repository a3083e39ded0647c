package domain

import "time"

// LockStatus is the coordinator's view of the database lock file.
// A record older than the TTL reads as unlocked.
type LockStatus struct {
	Locked     bool
	Operation  string
	AcquiredAt time.Time
	Age        time.Duration
}
