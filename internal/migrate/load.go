package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/robmartinson/tablecopy/internal/codec"
	"github.com/robmartinson/tablecopy/internal/database"
	"github.com/robmartinson/tablecopy/internal/plan"
)

const defaultBatchSize = 500

// TableLoader appends a batch to its destination table.
type TableLoader interface {
	Load(ctx context.Context, spec plan.TableSpec, b *codec.Batch) (Result, error)
}

// Loader appends batches to tables of a destination store. Each table is
// written inside one transaction: either every row lands or none does.
type Loader struct {
	Handle *database.Handle
	// BatchSize is the number of rows per multi-row INSERT. It is lowered
	// further when the store's placeholder limit requires it.
	BatchSize int
}

// NewLoader returns a loader with the default batch size.
func NewLoader(h *database.Handle) *Loader {
	return &Loader{Handle: h, BatchSize: defaultBatchSize}
}

// Load appends every row of b to spec's destination table. A missing table is
// skipped without writing and reported with a *DestinationMissingError. Any
// other error fails the table with nothing written.
func (l *Loader) Load(ctx context.Context, spec plan.TableSpec, b *codec.Batch) (Result, error) {
	table := spec.DestTable()
	res := Result{Table: spec.Name}

	exists, err := l.Handle.TableExists(ctx, table)
	if err != nil {
		return failed(res, &QueryError{Table: table, Op: "inspect", Err: err})
	}
	if !exists {
		res.Status = StatusSkippedMissingDestination
		return res, &DestinationMissingError{Table: table}
	}
	if b.Len() == 0 {
		res.Status = StatusInserted
		return res, nil
	}

	kinds, err := l.columnKinds(ctx, table, b.Columns)
	if err != nil {
		return failed(res, err)
	}
	args, err := bindRows(b, kinds)
	if err != nil {
		return failed(res, err)
	}

	tx, err := l.Handle.DB.BeginTx(ctx, nil)
	if err != nil {
		return failed(res, &QueryError{Table: table, Op: "begin", Err: err})
	}
	if spec.RowByRow {
		err = l.insertRows(ctx, tx, table, b.Columns, args)
	} else {
		err = l.insertChunks(ctx, tx, table, b.Columns, args)
	}
	if err != nil {
		tx.Rollback()
		return failed(res, &QueryError{Table: table, Op: "insert", Err: err})
	}
	if err := tx.Commit(); err != nil {
		return failed(res, &QueryError{Table: table, Op: "commit", Err: err})
	}

	res.Status = StatusInserted
	res.RowCount = b.Len()
	return res, nil
}

func failed(res Result, err error) (Result, error) {
	res.Status = StatusFailed
	res.RowCount = 0
	if err != nil {
		res.Error = err.Error()
	}
	return res, err
}

// columnKinds resolves the destination type of every batch column.
func (l *Loader) columnKinds(ctx context.Context, table string, columns []string) ([]columnKind, error) {
	info, err := l.Handle.Columns(ctx, table)
	if err != nil {
		return nil, &QueryError{Table: table, Op: "inspect", Err: err}
	}
	types := make(map[string]string, len(info))
	for _, c := range info {
		types[c.Name] = c.Type
	}

	kinds := make([]columnKind, len(columns))
	for i, c := range columns {
		typ, ok := types[c]
		if !ok {
			return nil, &QueryError{Table: table, Op: "insert", Err: fmt.Errorf("column %s does not exist at destination", c)}
		}
		kinds[i] = kindOf(typ)
	}
	return kinds, nil
}

// bindRows coerces every value before anything is written, so a bad value
// fails the table without a partial insert.
func bindRows(b *codec.Batch, kinds []columnKind) ([][]any, error) {
	out := make([][]any, len(b.Rows))
	for i, row := range b.Rows {
		if len(row) != len(b.Columns) {
			return nil, &codec.ParseError{Line: i + 2, Err: fmt.Errorf("row has %d values, want %d", len(row), len(b.Columns))}
		}
		args := make([]any, len(row))
		for j, v := range row {
			val, err := coerce(v, kinds[j])
			if err != nil {
				return nil, &codec.ParseError{Line: i + 2, Column: b.Columns[j], Err: err}
			}
			args[j] = val
		}
		out[i] = args
	}
	return out, nil
}

func (l *Loader) insertRows(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	stmt, err := tx.PrepareContext(ctx, l.insertSQL(table, columns, 1))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) insertChunks(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) error {
	size := l.chunkSize(len(columns))
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(columns))
		for _, r := range chunk {
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, l.insertSQL(table, columns, len(chunk)), args...); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) chunkSize(columns int) int {
	size := l.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	if limit := l.Handle.Dialect.MaxParams() / columns; size > limit {
		size = limit
	}
	return max(size, 1)
}

// insertSQL builds an INSERT with n value tuples.
func (l *Loader) insertSQL(table string, columns []string, n int) string {
	d := l.Handle.Dialect
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.Quote(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.Quote(table), strings.Join(quoted, ", "))
	param := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(param))
			param++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}
