package codec

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseError reports malformed interchange data. Line is 1-based and counts
// the header.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// Encode writes b as a header line plus one line per row. NULL values are
// written as empty fields.
func Encode(w io.Writer, b *Batch) error {
	if len(b.Columns) == 0 {
		return errors.New("batch has no columns")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(b.Columns); err != nil {
		return err
	}

	record := make([]string, len(b.Columns))
	for i, row := range b.Rows {
		if len(row) != len(b.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(b.Columns))
		}
		for j, v := range row {
			record[j] = Text(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads a header line and rows. Values are not coerced: every
// non-empty field is a string and every empty field is nil.
func Decode(r io.Reader) (*Batch, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = 0
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Err: errors.New("missing header line")}
	}
	if err != nil {
		return nil, wrapCSVError(err)
	}
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if name == "" {
			return nil, &ParseError{Line: 1, Err: fmt.Errorf("empty column name at position %d", i+1)}
		}
		if seen[name] {
			return nil, &ParseError{Line: 1, Column: name, Err: errors.New("duplicate column name")}
		}
		seen[name] = true
		columns[i] = name
	}

	b := &Batch{Columns: columns}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapCSVError(err)
		}
		row := make(Row, len(record))
		for i, field := range record {
			if field == "" {
				continue
			}
			row[i] = field
		}
		b.Rows = append(b.Rows, row)
	}
	return b, nil
}

func wrapCSVError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &ParseError{Line: perr.Line, Err: perr.Err}
	}
	return err
}

// WriteFile encodes b into path. The data is written to a temporary file in
// the same directory and renamed into place once fully closed, so a reader
// never observes a partial file.
func WriteFile(path string, b *Batch) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	bw := bufio.NewWriter(f)
	if err := Encode(bw, b); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// ReadFile decodes the file at path. The batch's Table is left empty.
func ReadFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Text renders a scalar value as interchange text.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
