package database

import (
	"context"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteDSN opens the database file with foreign keys enforced.
func sqliteDSN(cfg Config) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return "file:" + cfg.Database + "?_foreign_keys=on"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return DriverSQLite }
func (sqliteDialect) DriverName() string { return "sqlite3" }

// MaxParams is SQLITE_MAX_VARIABLE_NUMBER for builds before 3.32.
func (sqliteDialect) MaxParams() int { return 999 }

func (sqliteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		table,
	).Scan(&count)
	return count > 0, err
}

func (sqliteDialect) Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, type, CASE WHEN "notnull" = 0 THEN 'YES' ELSE 'NO' END
		FROM pragma_table_info(?)
		ORDER BY cid
	`, table)
	if err != nil {
		return nil, err
	}
	return scanColumns(rows)
}

func (sqliteDialect) ForeignKeys(ctx context.Context, q Querier) ([]ForeignKey, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.name, p."from", p."table"
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) p
		WHERE m.type = 'table'
		ORDER BY m.name, p."from"
	`)
	if err != nil {
		return nil, err
	}
	return scanForeignKeys(rows)
}
