package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// postgresDSN builds a key/value connection string understood by both lib/pq
// and pgx.
func postgresDSN(cfg Config) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	parts := []string{
		kv("host", cfg.Host),
		fmt.Sprintf("port=%d", port),
		kv("dbname", cfg.Database),
		kv("user", cfg.User),
	}
	if cfg.Password != "" {
		parts = append(parts, kv("password", cfg.Password))
	}
	parts = append(parts, kv("sslmode", sslMode))
	return strings.Join(parts, " ")
}

func kv(key, value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return key + "=" + value
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return key + "='" + r.Replace(value) + "'"
}

// CopyTo runs a COPY ... TO STDOUT statement on the source and streams its
// output into w. The pgx connection is opened on first use and released by
// Close.
func (h *Handle) CopyTo(ctx context.Context, w io.Writer, query string) (int64, error) {
	if !h.CanCopy() {
		return 0, fmt.Errorf("COPY is not available on %s", h.Dialect.Name())
	}
	if h.copyConn == nil {
		conn, err := pgx.Connect(ctx, h.dsn)
		if err != nil {
			return 0, &ConnectionError{Role: h.Role, Err: fmt.Errorf("failed to connect for COPY: %w", err)}
		}
		h.copyConn = conn
	}
	tag, err := h.copyConn.PgConn().CopyTo(ctx, w, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return DriverPostgres }
func (postgresDialect) DriverName() string { return "postgres" }
func (postgresDialect) MaxParams() int     { return 65535 }

func (postgresDialect) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			AND table_name = $1
		)
	`, table).Scan(&exists)
	return exists, err
}

func (postgresDialect) Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, err
	}
	return scanColumns(rows)
}

func (postgresDialect) ForeignKeys(ctx context.Context, q Querier) ([]ForeignKey, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT kcu.table_name, kcu.column_name, ccu.table_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = current_schema()
		ORDER BY kcu.table_name, kcu.column_name
	`)
	if err != nil {
		return nil, err
	}
	return scanForeignKeys(rows)
}

func scanColumns(rows *sql.Rows) ([]ColumnInfo, error) {
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, err
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func scanForeignKeys(rows *sql.Rows) ([]ForeignKey, error) {
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Table, &fk.Column, &fk.RefTable); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
