package database

import (
	"context"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// mysqlDSN constructs a go-sql-driver DSN. parseTime is always on so DATETIME
// columns scan into time.Time.
func mysqlDSN(cfg Config) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	if cfg.SSLMode == "require" {
		mc.TLSConfig = "true"
	}
	return mc.FormatDSN()
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return DriverMySQL }
func (mysqlDialect) DriverName() string { return "mysql" }
func (mysqlDialect) MaxParams() int     { return 65535 }

func (mysqlDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
	`, table).Scan(&count)
	return count > 0, err
}

// Columns reports COLUMN_TYPE rather than DATA_TYPE so tinyint(1) booleans
// can be told apart from integers.
func (mysqlDialect) Columns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, table)
	if err != nil {
		return nil, err
	}
	return scanColumns(rows)
}

func (mysqlDialect) ForeignKeys(ctx context.Context, q Querier) ([]ForeignKey, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE() AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY TABLE_NAME, COLUMN_NAME
	`)
	if err != nil {
		return nil, err
	}
	return scanForeignKeys(rows)
}
