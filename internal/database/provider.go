package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const pingTimeout = 5 * time.Second

// Open resolves cfg into a live, pinged connection for role. Every failure is
// reported as a *ConnectionError. The caller must Close the handle.
func Open(ctx context.Context, role Role, cfg Config) (*Handle, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, &ConnectionError{Role: role, Err: err}
	}
	cfg.Driver = dialect.Name()
	if err := checkConfig(cfg); err != nil {
		return nil, &ConnectionError{Role: role, Err: err}
	}

	var cleanup func()
	if cfg.SSHKey != "" {
		if cfg.URL != "" {
			return nil, &ConnectionError{Role: role, Err: errors.New("SSH tunnel requires host settings, not a connection URL")}
		}
		cfg, cleanup, err = SetupTunnel(cfg)
		if err != nil {
			return nil, &ConnectionError{Role: role, Err: fmt.Errorf("failed to setup SSH tunnel: %w", err)}
		}
	}

	dsn := buildDSN(cfg)
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, &ConnectionError{Role: role, Err: fmt.Errorf("failed to open %s: %w", cfg.Driver, err)}
	}
	// One owner, sequential use; the second slot covers introspection while a
	// transaction is open.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		if cleanup != nil {
			cleanup()
		}
		return nil, &ConnectionError{Role: role, Err: fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)}
	}

	return &Handle{
		Role:    role,
		Dialect: dialect,
		DB:      db,
		dsn:     dsn,
		copy:    cfg.Copy,
		cleanup: cleanup,
	}, nil
}

func checkConfig(cfg Config) error {
	if cfg.URL != "" {
		return nil
	}
	switch cfg.Driver {
	case DriverSQLite:
		if cfg.Database == "" {
			return errors.New("database file is required")
		}
	default:
		if cfg.Host == "" {
			return errors.New("host is required")
		}
		if cfg.Database == "" {
			return errors.New("database name is required")
		}
		if cfg.User == "" {
			return errors.New("user is required")
		}
	}
	return nil
}

func buildDSN(cfg Config) string {
	switch cfg.Driver {
	case DriverMySQL:
		return mysqlDSN(cfg)
	case DriverSQLite:
		return sqliteDSN(cfg)
	default:
		return postgresDSN(cfg)
	}
}
