package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect hides the SQL differences between the supported stores.
type Dialect interface {
	Name() string
	DriverName() string
	// Quote returns ident as a quoted identifier, preserving case.
	Quote(ident string) string
	// Placeholder returns the bind parameter for the n-th (1-based) argument.
	Placeholder(n int) string
	// MaxParams is the largest number of bind parameters in one statement.
	MaxParams() int
	TableExists(ctx context.Context, q Querier, table string) (bool, error)
	Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error)
	ForeignKeys(ctx context.Context, q Querier) ([]ForeignKey, error)
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres, "postgresql":
		return postgresDialect{}, nil
	case DriverMySQL:
		return mysqlDialect{}, nil
	case DriverSQLite, "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %q", driver)
	}
}
