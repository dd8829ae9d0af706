package migrate

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/robmartinson/tablecopy/internal/codec"
	"github.com/robmartinson/tablecopy/internal/database"
	"github.com/robmartinson/tablecopy/internal/plan"
)

// Extractor reads the full content of one table.
type Extractor interface {
	Extract(ctx context.Context, spec plan.TableSpec) (*codec.Batch, error)
}

// NewExtractor returns a CopyExtractor when h supports COPY, otherwise a
// SQLExtractor.
func NewExtractor(h *database.Handle) Extractor {
	if h.CanCopy() {
		return &CopyExtractor{Handle: h}
	}
	return &SQLExtractor{Handle: h}
}

// SQLExtractor reads a table with a plain SELECT.
type SQLExtractor struct {
	Handle *database.Handle
}

func (e *SQLExtractor) Extract(ctx context.Context, spec plan.TableSpec) (*codec.Batch, error) {
	query := selectQuery(e.Handle.Dialect, spec)
	rows, err := e.Handle.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, extractError(spec.Name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, extractError(spec.Name, err)
	}

	b := &codec.Batch{Table: spec.Name, Columns: columns}
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, extractError(spec.Name, err)
		}
		row := make(codec.Row, len(columns))
		for i, v := range values {
			row[i] = convertValue(v)
		}
		b.Rows = append(b.Rows, row)
	}
	// a failure mid-stream discards what was read so far
	if err := rows.Err(); err != nil {
		return nil, extractError(spec.Name, err)
	}
	return b, nil
}

// CopyExtractor reads a PostgreSQL table with COPY ... TO STDOUT WITH CSV
// HEADER and decodes the output with the CSV codec.
type CopyExtractor struct {
	Handle *database.Handle
}

func (e *CopyExtractor) Extract(ctx context.Context, spec plan.TableSpec) (*codec.Batch, error) {
	var buf bytes.Buffer
	if _, err := e.Handle.CopyTo(ctx, &buf, copyQuery(e.Handle.Dialect, spec)); err != nil {
		return nil, extractError(spec.Name, err)
	}
	b, err := codec.Decode(&buf)
	if err != nil {
		return nil, &QueryError{Table: spec.Name, Op: "decode", Err: err}
	}
	b.Table = spec.Name
	return b, nil
}

func selectQuery(d database.Dialect, spec plan.TableSpec) string {
	cols := "*"
	if len(spec.Columns) > 0 {
		quoted := make([]string, len(spec.Columns))
		for i, c := range spec.Columns {
			quoted[i] = d.Quote(c)
		}
		cols = strings.Join(quoted, ", ")
	}
	return fmt.Sprintf("SELECT %s FROM %s", cols, d.Quote(spec.Name))
}

func copyQuery(d database.Dialect, spec plan.TableSpec) string {
	if len(spec.Columns) == 0 {
		return fmt.Sprintf("COPY %s TO STDOUT WITH CSV HEADER", d.Quote(spec.Name))
	}
	return fmt.Sprintf("COPY (%s) TO STDOUT WITH CSV HEADER", selectQuery(d, spec))
}

func extractError(table string, err error) error {
	if database.IsUndefinedTable(err) {
		err = fmt.Errorf("%w: %v", ErrSourceTableMissing, err)
	}
	return &QueryError{Table: table, Op: "extract", Err: err}
}

// convertValue normalizes scanned driver values. Text columns often arrive
// as []byte.
func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return append([]byte(nil), val...)
	default:
		return val
	}
}
