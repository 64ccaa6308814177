package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresConfig contains database configuration for the consent repo.
type PostgresConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

const consentSchema = `
CREATE TABLE IF NOT EXISTS consents (
    tenant_id  TEXT        NOT NULL,
    user_id    TEXT        NOT NULL,
    purpose    TEXT        NOT NULL,
    granted    BOOLEAN     NOT NULL,
    granted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    revoked_at TIMESTAMPTZ,
    PRIMARY KEY (tenant_id, user_id, purpose)
)`

// PostgresRepo reads consent state from Postgres. The gateway core only
// reads; grants and revocations are written by the compliance platform
// that owns the table.
type PostgresRepo struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresRepo connects, configures the pool and ensures the schema.
func NewPostgresRepo(cfg PostgresConfig, logger *zap.Logger) (*PostgresRepo, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to consent database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	repo := &PostgresRepo{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("consent database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, consentSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure consent schema: %w", err)
	}

	logger.Info("consent repository initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return repo, nil
}

// Status returns the latest grant state for the triple. Each call hits
// the database: revocation takes effect on the next check.
func (r *PostgresRepo) Status(ctx context.Context, tenantID, userID, purpose string) (Status, error) {
	var granted bool
	err := r.db.GetContext(ctx, &granted,
		`SELECT granted FROM consents WHERE tenant_id = $1 AND user_id = $2 AND purpose = $3`,
		tenantID, userID, purpose)
	if errors.Is(err, sql.ErrNoRows) {
		return StatusNone, nil
	}
	if err != nil {
		return StatusNone, fmt.Errorf("consent query failed: %w", err)
	}
	if granted {
		return StatusGranted, nil
	}
	return StatusRevoked, nil
}

// Close releases the underlying connection pool.
func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

// maskDatabaseURL hides credentials before the URL reaches a log line.
func maskDatabaseURL(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		if i := strings.Index(dsn, "@"); i > 0 {
			return "***" + dsn[i:]
		}
		return dsn
	}
	u.User = url.User("***")
	return u.String()
}
