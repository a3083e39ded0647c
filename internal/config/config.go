// Package config resolves all runtime settings from the environment.
// The service is deployed as a container; there are no flags or files,
// only environment variables (with Docker-secret support for the
// database password).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Kind selects the configured database backend.
type Kind string

const (
	KindPostgres Kind = "postgresql"
	KindMySQL    Kind = "mysql"
	KindSQLite   Kind = "sqlite"
	KindNeo4j    Kind = "neo4j"
)

// ParseKind normalizes a database-kind string. "postgres" is accepted
// as an alias for "postgresql".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres":
		return KindPostgres, nil
	case "mysql":
		return KindMySQL, nil
	case "sqlite":
		return KindSQLite, nil
	case "neo4j":
		return KindNeo4j, nil
	default:
		return "", fmt.Errorf("unknown database type %q (supported: postgresql, mysql, sqlite, neo4j)", s)
	}
}

func (k Kind) String() string { return string(k) }

// IsSQL reports whether the kind is one of the relational backends.
func (k Kind) IsSQL() bool {
	return k == KindPostgres || k == KindMySQL || k == KindSQLite
}

// IsGraph reports whether the kind is the schema-free graph backend.
func (k Kind) IsGraph() bool { return k == KindNeo4j }

// Config holds every runtime setting.
type Config struct {
	Port     int
	ImageTag string
	Debug    bool

	DBType      Kind
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	Neo4jURL    string

	RedisURL string

	AdminAPIKey   string
	RestoreAPIKey string
	DeleteAPIKey  string
	JWTSecret     string

	BackupDir string
	FilesDir  string

	LockFile string
	LockTTL  time.Duration

	MigrationsFailFast bool
}

// Load reads and validates the configuration from the environment.
// Invalid values are configuration errors and fatal to startup.
func Load() (*Config, error) {
	kind, err := ParseKind(envOrDefault("DB_TYPE", "sqlite"))
	if err != nil {
		return nil, err
	}

	port, err := envInt("PORT", 8000)
	if err != nil {
		return nil, err
	}
	dbPort, err := envInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	lockTTL, err := envInt("DB_LOCK_TIMEOUT_SECONDS", 7200)
	if err != nil {
		return nil, err
	}

	password := os.Getenv("DB_PASSWORD")
	if file := os.Getenv("DB_PASSWORD_FILE"); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read DB_PASSWORD_FILE: %w", err)
		}
		password = strings.TrimSpace(string(raw))
	}

	cfg := &Config{
		Port:     port,
		ImageTag: envOrDefault("IMAGE_TAG", "dev"),
		Debug:    os.Getenv("DEBUG") == "true",

		DBType:      kind,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      envOrDefault("DB_HOST", "localhost"),
		DBPort:      dbPort,
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  password,
		DBName:      envOrDefault("DB_NAME", "plinth"),
		Neo4jURL:    os.Getenv("NEO4J_URL"),

		RedisURL: os.Getenv("REDIS_URL"),

		AdminAPIKey:   os.Getenv("ADMIN_API_KEY"),
		RestoreAPIKey: os.Getenv("RESTORE_API_KEY"),
		DeleteAPIKey:  os.Getenv("DELETE_API_KEY"),
		JWTSecret:     os.Getenv("JWT_SECRET"),

		BackupDir: envOrDefault("BACKUP_DIR", "backups"),
		FilesDir:  os.Getenv("FILES_DIR"),

		LockFile: envOrDefault("LOCK_FILE", filepath.Join(os.TempDir(), "plinth_db_lock", "database.lock")),
		LockTTL:  time.Duration(lockTTL) * time.Second,

		MigrationsFailFast: os.Getenv("MIGRATIONS_FAIL_FAST") == "true",
	}

	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}
	if cfg.DBType == KindNeo4j && cfg.Neo4jURL == "" {
		return nil, fmt.Errorf("NEO4J_URL is required when DB_TYPE=neo4j")
	}

	return cfg, nil
}

// SQLDSN returns the database/sql driver name and DSN for the configured
// relational backend. DATABASE_URL, when set, is passed through verbatim
// and must match the driver's own DSN format.
func (c *Config) SQLDSN() (driver, dsn string, err error) {
	switch c.DBType {
	case KindPostgres:
		if c.DatabaseURL != "" {
			return "pgx", c.DatabaseURL, nil
		}
		return "pgx", fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName), nil
	case KindMySQL:
		if c.DatabaseURL != "" {
			return "mysql", c.DatabaseURL, nil
		}
		mc := mysql.NewConfig()
		mc.User = c.DBUser
		mc.Passwd = c.DBPassword
		mc.Net = "tcp"
		mc.Addr = fmt.Sprintf("%s:%d", c.DBHost, c.DBPort)
		mc.DBName = c.DBName
		mc.ParseTime = true
		return "mysql", mc.FormatDSN(), nil
	case KindSQLite:
		if c.DatabaseURL != "" {
			return "sqlite", c.DatabaseURL, nil
		}
		return "sqlite", c.DBName, nil
	default:
		return "", "", fmt.Errorf("no SQL DSN for database type %q", c.DBType)
	}
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
