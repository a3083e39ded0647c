package handler

import (
	"time"

	"github.com/plinth-dev/plinth/internal/domain"
)

// ExampleDTO is the JSON representation of an example record.
type ExampleDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toExampleDTO(e *domain.Example) ExampleDTO {
	return ExampleDTO{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

func toExampleDTOs(examples []domain.Example) []ExampleDTO {
	dtos := make([]ExampleDTO, len(examples))
	for i := range examples {
		dtos[i] = toExampleDTO(&examples[i])
	}
	return dtos
}

// NodeDTO is the JSON representation of a graph node record. Timestamps
// pass through as stored; the graph keeps them as RFC 3339 strings.
type NodeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toNodeDTO(n *domain.ExampleNode) NodeDTO {
	return NodeDTO(*n)
}

func toNodeDTOs(nodes []domain.ExampleNode) []NodeDTO {
	dtos := make([]NodeDTO, len(nodes))
	for i := range nodes {
		dtos[i] = toNodeDTO(&nodes[i])
	}
	return dtos
}

// UserDTO is the JSON representation of a user account.
type UserDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

// BackupDTO is the JSON representation of one backup artifact.
type BackupDTO struct {
	Filename   string  `json:"filename"`
	SizeBytes  int64   `json:"size_bytes"`
	SizeMB     float64 `json:"size_mb"`
	CreatedAt  string  `json:"created_at"`
	Compressed bool    `json:"compressed"`
}

func toBackupDTO(b domain.Backup) BackupDTO {
	return BackupDTO{
		Filename:   b.Filename,
		SizeBytes:  b.SizeBytes,
		SizeMB:     b.SizeMB,
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
		Compressed: b.Compressed,
	}
}

func toBackupDTOs(backups []domain.Backup) []BackupDTO {
	dtos := make([]BackupDTO, len(backups))
	for i, b := range backups {
		dtos[i] = toBackupDTO(b)
	}
	return dtos
}

// BackupResponse reports a completed backup.
type BackupResponse struct {
	Success  bool    `json:"success"`
	Message  string  `json:"message"`
	Filename string  `json:"filename"`
	SizeMB   float64 `json:"size_mb"`
}

// RestoreResponse reports a completed restore and the safety snapshot
// taken before it.
type RestoreResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	SafetyBackupCreated  bool   `json:"safety_backup_created"`
	SafetyBackupFilename string `json:"safety_backup_filename,omitempty"`
}

// DeleteResponse reports a completed artifact deletion.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LockResponse reports the database lock state. The lock, unlock, and
// status routes all return this shape so the backup orchestrator
// parses one model everywhere.
type LockResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	IsLocked      bool   `json:"is_locked"`
	LockOperation string `json:"lock_operation,omitempty"`
}

// Pagination describes the window of a list response.
type Pagination struct {
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
