package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/plinth-dev/plinth/internal/backend"
	"github.com/plinth-dev/plinth/internal/config"
	"github.com/plinth-dev/plinth/internal/domain"
)

// pgDropScript drops every table in the public schema; CASCADE clears the
// dependency order problem.
const pgDropScript = `
DO $$ DECLARE
    r RECORD;
BEGIN
    FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
        EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
    END LOOP;
END $$;
`

// mysqlDropScript collects the schema's tables into one DROP statement with
// foreign key checks suspended. The database name is interpolated by the
// caller.
const mysqlDropScript = `
SET FOREIGN_KEY_CHECKS = 0;
SET @tables = NULL;
SELECT GROUP_CONCAT(table_name) INTO @tables
FROM information_schema.tables
WHERE table_schema = '%s';
SET @tables = IFNULL(CONCAT('DROP TABLE IF EXISTS ', @tables), 'SELECT 1');
PREPARE stmt FROM @tables;
EXECUTE stmt;
DEALLOCATE PREPARE stmt;
SET FOREIGN_KEY_CHECKS = 1;
`

func pgDumpArgs(cfg *config.Config) []string {
	return []string{
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"--no-owner",
		"--no-acl",
		"-F", "p",
	}
}

func pgRestoreArgs(cfg *config.Config) []string {
	return []string{
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
	}
}

// mysqlArgs builds the shared connection arguments. The password travels in
// MYSQL_PWD rather than argv, where it would be visible in the process
// list.
func mysqlArgs(cfg *config.Config, extra ...string) []string {
	args := []string{
		"-h", cfg.DBHost,
		"-P", strconv.Itoa(cfg.DBPort),
		"-u", cfg.DBUser,
		cfg.DBName,
	}
	return append(args, extra...)
}

func (s *Service) dumpSQL(ctx context.Context) ([]byte, error) {
	switch s.cfg.DBType {
	case config.KindPostgres:
		bin, err := s.lookPath("pg_dump")
		if err != nil {
			return nil, fmt.Errorf("pg_dump not found: %w", err)
		}
		return s.run(ctx, bin, pgDumpArgs(s.cfg), []string{"PGPASSWORD=" + s.cfg.DBPassword}, nil)

	case config.KindMySQL:
		bin, err := s.firstBinary("mariadb-dump", "mysqldump")
		if err != nil {
			return nil, err
		}
		args := mysqlArgs(s.cfg, "--single-transaction", "--skip-lock-tables")
		return s.run(ctx, bin, args, []string{"MYSQL_PWD=" + s.cfg.DBPassword}, nil)

	case config.KindSQLite:
		if err := s.checkpointSQLite(ctx); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(s.cfg.DBName)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database file not found: %s", s.cfg.DBName)
		}
		if err != nil {
			return nil, fmt.Errorf("read database file: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, s.cfg.DBType)
}

// checkpointSQLite folds pending WAL frames into the main database file
// so a raw file copy carries every committed write. Without a pool on
// the handler nothing holds the file open in WAL mode and there is
// nothing to fold.
func (s *Service) checkpointSQLite(ctx context.Context) error {
	conn, ok := s.handler.(backend.SQLConn)
	if !ok {
		return nil
	}
	if _, err := conn.DB().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint wal: %w", err)
	}
	return nil
}

func (s *Service) loadSQL(ctx context.Context, path string, compressed bool) error {
	data, err := readArtifact(path, compressed)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	switch s.cfg.DBType {
	case config.KindPostgres:
		bin, err := s.lookPath("psql")
		if err != nil {
			return fmt.Errorf("psql not found: %w", err)
		}
		_, err = s.run(ctx, bin, pgRestoreArgs(s.cfg), []string{"PGPASSWORD=" + s.cfg.DBPassword}, bytes.NewReader(data))
		return err

	case config.KindMySQL:
		bin, err := s.firstBinary("mariadb", "mysql")
		if err != nil {
			return err
		}
		_, err = s.run(ctx, bin, mysqlArgs(s.cfg), []string{"MYSQL_PWD=" + s.cfg.DBPassword}, bytes.NewReader(data))
		return err
	}
	return fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, s.cfg.DBType)
}

func (s *Service) dropSQL(ctx context.Context) error {
	switch s.cfg.DBType {
	case config.KindPostgres:
		bin, err := s.lookPath("psql")
		if err != nil {
			return fmt.Errorf("psql not found: %w", err)
		}
		_, err = s.run(ctx, bin, pgRestoreArgs(s.cfg), []string{"PGPASSWORD=" + s.cfg.DBPassword}, strings.NewReader(pgDropScript))
		return err

	case config.KindMySQL:
		bin, err := s.firstBinary("mariadb", "mysql")
		if err != nil {
			return err
		}
		script := fmt.Sprintf(mysqlDropScript, s.cfg.DBName)
		_, err = s.run(ctx, bin, mysqlArgs(s.cfg), []string{"MYSQL_PWD=" + s.cfg.DBPassword}, strings.NewReader(script))
		return err
	}
	return fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, s.cfg.DBType)
}

// restoreSQLiteFile swaps the database file for the artifact contents,
// then reopens the application pool so nothing serves pages cached from
// the replaced file. The previous file is kept beside it with a .backup
// suffix and put back when the swap fails. The WAL is checkpointed and
// truncated first; an empty log cannot be replayed against the restored
// file.
func (s *Service) restoreSQLiteFile(ctx context.Context, path string, compressed bool) error {
	dbFile := s.cfg.DBName
	rollback := dbFile + ".backup"

	if err := s.checkpointSQLite(ctx); err != nil {
		return err
	}

	if _, err := os.Stat(dbFile); err == nil {
		if err := copyFile(dbFile, rollback); err != nil {
			return fmt.Errorf("snapshot current database file: %w", err)
		}
	}

	data, err := readArtifact(path, compressed)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	if err := os.WriteFile(dbFile, data, 0o644); err != nil {
		if _, rerr := os.Stat(rollback); rerr == nil {
			if cerr := copyFile(rollback, dbFile); cerr != nil {
				return fmt.Errorf("restore failed and rollback failed: %w", cerr)
			}
		}
		return fmt.Errorf("write database file: %w", err)
	}

	if r, ok := s.handler.(backend.Reopener); ok {
		if err := r.Reopen(); err != nil {
			return fmt.Errorf("reopen database pool: %w", err)
		}
		return nil
	}

	// No pool holds the file; drop the sidecars describing the replaced
	// file so they are never replayed against the restored one.
	os.Remove(dbFile + "-wal")
	os.Remove(dbFile + "-shm")
	return nil
}

func (s *Service) firstBinary(names ...string) (string, error) {
	for _, name := range names {
		if bin, err := s.lookPath(name); err == nil {
			return bin, nil
		}
	}
	return "", fmt.Errorf("none of %s found in PATH", strings.Join(names, ", "))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
