package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/rivalscope/pkg/logger"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Client holds the database handle and the ent driver wrapping it
type Client struct {
	Driver  *entsql.Driver
	db      *sql.DB
	dialect string
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// SSLConfig holds SSL/TLS configuration for database connections
type SSLConfig struct {
	Mode         string // disable, require, verify-ca, verify-full
	CertPath     string
	KeyPath      string
	RootCertPath string
}

// Options selects the driver and tunes the pool
type Options struct {
	Driver string // postgres or sqlite3
	URL    string
	Pool   PoolConfig
	SSL    *SSLConfig
}

// DefaultPoolConfig returns sensible defaults for connection pooling
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// BuildConnectionString builds a PostgreSQL connection string with SSL parameters
func BuildConnectionString(baseURL string, sslCfg *SSLConfig) (string, error) {
	if sslCfg == nil {
		return baseURL, nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}

	query := parsedURL.Query()

	// Overrides any sslmode already in the URL
	if sslCfg.Mode != "" {
		query.Set("sslmode", sslCfg.Mode)
	}
	if sslCfg.CertPath != "" {
		query.Set("sslcert", sslCfg.CertPath)
	}
	if sslCfg.KeyPath != "" {
		query.Set("sslkey", sslCfg.KeyPath)
	}
	if sslCfg.RootCertPath != "" {
		query.Set("sslrootcert", sslCfg.RootCertPath)
	}

	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// Open connects, configures the pool and applies migrations
func Open(ctx context.Context, opts Options, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}

	var (
		driverName string
		connStr    = opts.URL
		err        error
	)

	switch opts.Driver {
	case "", dialect.Postgres:
		driverName = dialect.Postgres
		connStr, err = BuildConnectionString(opts.URL, opts.SSL)
		if err != nil {
			return nil, fmt.Errorf("failed building connection string: %w", err)
		}
		if opts.SSL != nil && opts.SSL.Mode != "" && opts.SSL.Mode != "disable" {
			log.Info("database SSL enabled", "mode", opts.SSL.Mode, "root_cert", opts.SSL.RootCertPath)
		}
	case dialect.SQLite:
		driverName = dialect.SQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to %s: %w", driverName, err)
	}

	pool := opts.Pool
	if pool.MaxOpenConns == 0 {
		pool = DefaultPoolConfig()
	}
	// sqlite serializes writers; a single connection also keeps in-memory databases shared
	if driverName == dialect.SQLite {
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
		pool.ConnMaxLifetime = 0
		pool.ConnMaxIdleTime = 0
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	log.Info("database connection pool configured",
		"driver", driverName,
		"max_open", pool.MaxOpenConns,
		"max_idle", pool.MaxIdleConns,
		"max_lifetime", pool.ConnMaxLifetime.String(),
	)

	client := &Client{
		Driver:  entsql.OpenDB(driverName, db),
		db:      db,
		dialect: driverName,
	}

	if err := client.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed creating schema resources: %w", err)
	}

	log.Info("database connected and migrations applied")

	return client, nil
}

// DB returns the underlying handle
func (c *Client) DB() *sql.DB {
	return c.db
}

// Dialect returns the ent dialect name of the connection
func (c *Client) Dialect() string {
	return c.dialect
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.Driver.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (c *Client) Stats() sql.DBStats {
	return c.db.Stats()
}
