// Package backup creates, restores and manages database backup artifacts.
// Relational backends dump through the vendor tools (pg_dump, mariadb-dump,
// a file copy for SQLite); graph backends export Cypher CREATE statements.
// Destructive restores take a compressed safety backup first, and restoring
// never proceeds when that snapshot cannot be written.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/config"
	"github.com/plinth-dev/plinth/internal/domain"
)

// runFunc executes one external command and returns its stdout. The env
// entries are appended to the inherited environment.
type runFunc func(ctx context.Context, bin string, args []string, env []string, stdin io.Reader) ([]byte, error)

// Service manages the backup directory for one configured backend.
type Service struct {
	cfg     *config.Config
	handler backend.Handler
	dir     string

	now      func() time.Time
	lookPath func(string) (string, error)
	run      runFunc
}

// New returns a service writing artifacts to cfg.BackupDir, creating the
// directory if needed.
func New(cfg *config.Config, h backend.Handler) (*Service, error) {
	if err := os.MkdirAll(cfg.BackupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Service{
		cfg:      cfg,
		handler:  h,
		dir:      cfg.BackupDir,
		now:      time.Now,
		lookPath: exec.LookPath,
		run:      runCommand,
	}, nil
}

// Dir returns the backup directory.
func (s *Service) Dir() string {
	return s.dir
}

// Create dumps the configured database into a new artifact.
func (s *Service) Create(ctx context.Context, compress bool) (domain.Backup, error) {
	return s.createNamed(ctx, "backup", compress)
}

func (s *Service) createNamed(ctx context.Context, prefix string, compress bool) (domain.Backup, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case s.cfg.DBType.IsGraph():
		data, err = s.dumpGraph(ctx)
	case s.cfg.DBType.IsSQL():
		data, err = s.dumpSQL(ctx)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, s.cfg.DBType)
	}
	if err != nil {
		return domain.Backup{}, err
	}

	filename := s.artifactName(prefix, compress)
	path := filepath.Join(s.dir, filename)
	if err := writeArtifact(path, data, compress); err != nil {
		return domain.Backup{}, fmt.Errorf("write artifact: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.Backup{}, fmt.Errorf("stat artifact: %w", err)
	}
	slog.Info("backup created", "filename", filename, "size_bytes", info.Size())
	return domain.Backup{
		Filename:   filename,
		SizeBytes:  info.Size(),
		SizeMB:     roundMB(info.Size()),
		CreatedAt:  info.ModTime(),
		Compressed: compress,
	}, nil
}

// Restore replaces the database contents with the named artifact. With
// createSafety set, a compressed snapshot of the current state is written
// first and any snapshot failure aborts the restore before data is touched.
func (s *Service) Restore(ctx context.Context, filename string, createSafety bool) (domain.RestoreResult, error) {
	path, err := s.Path(filename)
	if err != nil {
		return domain.RestoreResult{}, err
	}
	return s.restore(ctx, path, createSafety)
}

// RestoreUpload stages an uploaded artifact in a temporary file and
// restores from it. The original filename decides whether the payload is
// treated as gzip-compressed.
func (s *Service) RestoreUpload(ctx context.Context, r io.Reader, filename string, createSafety bool) (domain.RestoreResult, error) {
	pattern := "upload-*.restore"
	if strings.HasSuffix(filename, ".gz") {
		pattern += ".gz"
	}
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return domain.RestoreResult{}, fmt.Errorf("stage upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return domain.RestoreResult{}, fmt.Errorf("stage upload: %w", err)
	}
	return s.restore(ctx, tmp.Name(), createSafety)
}

func (s *Service) restore(ctx context.Context, path string, createSafety bool) (domain.RestoreResult, error) {
	var res domain.RestoreResult
	if createSafety {
		snap, err := s.createNamed(ctx, "safety_backup", true)
		if err != nil {
			return res, fmt.Errorf("create safety backup: %w", err)
		}
		res.SafetyBackupCreated = true
		res.SafetyBackupFilename = snap.Filename
		slog.Info("safety backup created", "filename", snap.Filename)
	}

	compressed := strings.HasSuffix(path, ".gz")
	switch {
	case s.cfg.DBType.IsGraph():
		return res, s.restoreGraph(ctx, path, compressed)
	case s.cfg.DBType == config.KindSQLite:
		// The artifact is a complete database file; swapping it in
		// replaces everything without a drop pass.
		if err := s.restoreSQLiteFile(ctx, path, compressed); err != nil {
			return res, err
		}
	default:
		if err := s.dropSQL(ctx); err != nil {
			return res, fmt.Errorf("drop existing data: %w", err)
		}
		if err := s.loadSQL(ctx, path, compressed); err != nil {
			return res, err
		}
	}
	slog.Info("database restored", "artifact", filepath.Base(path))
	return res, nil
}

// List returns every artifact in the backup directory, newest first.
// Safety backups are included.
func (s *Service) List() ([]domain.Backup, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	backups := make([]domain.Backup, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), "backup_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		backups = append(backups, domain.Backup{
			Filename:   entry.Name(),
			SizeBytes:  info.Size(),
			SizeMB:     roundMB(info.Size()),
			CreatedAt:  info.ModTime(),
			Compressed: strings.HasSuffix(entry.Name(), ".gz"),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if !backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].CreatedAt.After(backups[j].CreatedAt)
		}
		return backups[i].Filename > backups[j].Filename
	})
	return backups, nil
}

// Delete removes the named artifact.
func (s *Service) Delete(filename string) error {
	path, err := s.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	slog.Info("backup deleted", "filename", filename)
	return nil
}

// Path resolves an artifact name to its path inside the backup directory.
// Names that could escape the directory are rejected, missing artifacts
// report domain.ErrNotFound.
func (s *Service) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFilename, filename)
	}
	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrNotFound, filename)
		}
		return "", fmt.Errorf("stat %s: %w", filename, err)
	}
	return path, nil
}

func (s *Service) artifactName(prefix string, compress bool) string {
	var ext string
	switch {
	case s.cfg.DBType == config.KindSQLite:
		ext = ".db"
	case s.cfg.DBType.IsGraph():
		ext = ".cypher"
	default:
		ext = ".sql"
	}
	name := fmt.Sprintf("%s_%s_%s%s", prefix, s.cfg.DBType, s.now().Format("20060102_150405"), ext)
	if compress {
		name += ".gz"
	}
	return name
}

func roundMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}

func writeArtifact(path string, data []byte, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if !compress {
		_, err = f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return err
	}

	zw := gzip.NewWriter(f)
	_, err = zw.Write(data)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func readArtifact(path string, compressed bool) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

func runCommand(ctx context.Context, bin string, args []string, env []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, msg)
		}
		return nil, fmt.Errorf("%s: %w", filepath.Base(bin), err)
	}
	return out, nil
}
