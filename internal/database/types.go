package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Role names which side of a copy a connection serves.
type Role string

const (
	RoleSource      Role = "source"
	RoleDestination Role = "destination"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// Config holds all configuration for one database connection
type Config struct {
	Driver        string
	URL           string
	Host          string
	Port          int
	Database      string
	User          string
	Password      string
	SSLMode       string
	SSHKey        string
	SSHUser       string
	SSHHost       string
	SSHPort       int
	SSHKnownHosts string
	// Copy enables COPY TO STDOUT extraction on PostgreSQL sources.
	Copy bool
}

// ColumnInfo stores information about a column's structure
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
}

// ForeignKey is a single referencing column of a table.
type ForeignKey struct {
	Table    string
	Column   string
	RefTable string
}

// ConnectionError reports a store that could not be reached or authenticated
// against. It is fatal to a pipeline run.
type ConnectionError struct {
	Role Role
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection: %v", e.Role, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Handle is a live connection to one store. It is owned by a single caller
// and used sequentially.
type Handle struct {
	Role    Role
	Dialect Dialect
	DB      *sql.DB

	dsn       string
	copy      bool
	copyConn  *pgx.Conn
	cleanup   func()
	closeOnce sync.Once
}

// CanCopy reports whether the handle supports COPY TO STDOUT extraction.
func (h *Handle) CanCopy() bool {
	return h.copy && h.Dialect.Name() == DriverPostgres
}

// TableExists reports whether table exists in the handle's default schema.
func (h *Handle) TableExists(ctx context.Context, table string) (bool, error) {
	return h.Dialect.TableExists(ctx, h.DB, table)
}

// Columns returns the columns of table in ordinal order.
func (h *Handle) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	return h.Dialect.Columns(ctx, h.DB, table)
}

// ForeignKeys returns every foreign key column declared in the store.
func (h *Handle) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	return h.Dialect.ForeignKeys(ctx, h.DB)
}

// Close closes the database connections and cleans up resources. It is safe
// to call more than once.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if h.copyConn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			h.copyConn.Close(ctx)
			cancel()
		}
		if h.DB != nil {
			err = h.DB.Close()
		}
		if h.cleanup != nil {
			h.cleanup()
		}
	})
	return err
}
