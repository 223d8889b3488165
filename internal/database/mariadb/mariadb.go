package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/facewatch/internal/config"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
// The DSN is rewritten so that RowsAffected counts matched rows rather than
// changed rows and DATE/DATETIME columns scan into time.Time.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := mysql.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MariaDB DSN: %w", err)
	}
	dsn.ClientFoundRows = true
	dsn.ParseTime = true
	dsn.Loc = time.UTC

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(max(cfg.MaxOpenConns, 1))
	db.SetMaxIdleConns(max(cfg.MaxIdleConns, 1))
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Ping verifies the database is reachable.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping MariaDB: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// EnsureSchema creates the cases table when it does not exist yet.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cases (
			id                 BIGINT AUTO_INCREMENT PRIMARY KEY,
			missing_full_name  VARCHAR(255) NOT NULL,
			gender             VARCHAR(32) NOT NULL DEFAULT '',
			age                INT NOT NULL DEFAULT 0,
			missing_state      VARCHAR(128) NOT NULL DEFAULT '',
			missing_city       VARCHAR(128) NOT NULL DEFAULT '',
			pin_code           VARCHAR(16) NOT NULL DEFAULT '',
			missing_date       DATE NULL,
			description        TEXT NOT NULL,
			image_path         VARCHAR(512) NOT NULL DEFAULT '',
			complainant_name   VARCHAR(255) NOT NULL DEFAULT '',
			relationship       VARCHAR(64) NOT NULL DEFAULT '',
			complainant_phone  VARCHAR(32) NOT NULL DEFAULT '',
			address_line1      VARCHAR(512) NOT NULL DEFAULT '',
			status             VARCHAR(32) NOT NULL DEFAULT 'Pending',
			embedding_json     LONGTEXT NULL,
			embedding_profile  VARCHAR(255) NOT NULL DEFAULT '',
			embedded_at        DATETIME NULL,
			created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX cases_created_at_idx (created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`)
	if err != nil {
		return fmt.Errorf("create cases table: %w", err)
	}
	return nil
}
