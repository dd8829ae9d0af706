package migrate

import (
	"time"

	"github.com/robmartinson/tablecopy/internal/codec"
	"github.com/robmartinson/tablecopy/internal/plan"
)

// Transform applies spec's column renames and appends its stamp column set to
// runAt. b is not modified.
func Transform(b *codec.Batch, spec plan.TableSpec, runAt time.Time) *codec.Batch {
	out := &codec.Batch{
		Table:   spec.DestTable(),
		Columns: make([]string, len(b.Columns), len(b.Columns)+1),
		Rows:    make([]codec.Row, len(b.Rows)),
	}
	for i, c := range b.Columns {
		if to, ok := spec.Rename[c]; ok {
			c = to
		}
		out.Columns[i] = c
	}

	stamp := -1
	if spec.StampColumn != "" {
		stamp = out.Index(spec.StampColumn)
		if stamp < 0 {
			out.Columns = append(out.Columns, spec.StampColumn)
			stamp = len(out.Columns) - 1
		}
	}

	for i, row := range b.Rows {
		r := make(codec.Row, len(out.Columns))
		copy(r, row)
		if stamp >= 0 {
			r[stamp] = runAt
		}
		out.Rows[i] = r
	}
	return out
}
