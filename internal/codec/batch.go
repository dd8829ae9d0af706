// Package codec holds the in-memory table representation used between
// extraction and loading, and its CSV interchange format (header line
// followed by one line per row).
package codec

// Row is one record, aligned to its batch's Columns.
type Row []any

// Batch is the full content of one table, all rows sharing Columns.
type Batch struct {
	Table   string
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Index returns the position of column, or -1.
func (b *Batch) Index(column string) int {
	for i, c := range b.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Record returns row i as a column → value map.
func (b *Batch) Record(i int) map[string]any {
	rec := make(map[string]any, len(b.Columns))
	for j, c := range b.Columns {
		rec[c] = b.Rows[i][j]
	}
	return rec
}
