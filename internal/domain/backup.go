package domain

import "time"

// Backup describes one artifact in the backup directory.
type Backup struct {
	Filename   string
	SizeBytes  int64
	SizeMB     float64
	CreatedAt  time.Time
	Compressed bool
}

// RestoreResult reports a completed restore, including the safety
// snapshot taken before any destructive step.
type RestoreResult struct {
	SafetyBackupCreated  bool
	SafetyBackupFilename string
}

// GraphStats summarizes the contents of a graph database.
type GraphStats struct {
	NodeCount         int64    `json:"node_count"`
	RelationshipCount int64    `json:"relationship_count"`
	Labels            []string `json:"labels"`
	RelationshipTypes []string `json:"relationship_types"`
}
