package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/robmartinson/tablecopy/internal/codec"
	"github.com/robmartinson/tablecopy/internal/database"
	"github.com/robmartinson/tablecopy/internal/plan"
)

func openStore(t *testing.T, role database.Role, name string, ddl ...string) *database.Handle {
	t.Helper()

	h, err := database.Open(context.Background(), role, database.Config{
		Driver:   database.DriverSQLite,
		Database: filepath.Join(t.TempDir(), name+".db"),
	})
	if err != nil {
		t.Fatalf("Open(%s) error = %v", name, err)
	}
	t.Cleanup(func() { h.Close() })

	for _, stmt := range ddl {
		if _, err := h.DB.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return h
}

func countRows(t *testing.T, h *database.Handle, table string) int {
	t.Helper()

	var n int
	if err := h.DB.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// spyExtractor serves canned batches and records the call order.
type spyExtractor struct {
	batches map[string]*codec.Batch
	errs    map[string]error
	calls   []string
}

func (s *spyExtractor) Extract(_ context.Context, spec plan.TableSpec) (*codec.Batch, error) {
	s.calls = append(s.calls, spec.Name)
	if err := s.errs[spec.Name]; err != nil {
		return nil, err
	}
	if b, ok := s.batches[spec.Name]; ok {
		return b, nil
	}
	return &codec.Batch{Table: spec.Name, Columns: []string{"id"}}, nil
}

// spyLoader records loads and reports every table as inserted.
type spyLoader struct {
	calls   []string
	batches map[string]*codec.Batch
}

func (s *spyLoader) Load(_ context.Context, spec plan.TableSpec, b *codec.Batch) (Result, error) {
	s.calls = append(s.calls, spec.Name)
	if s.batches == nil {
		s.batches = make(map[string]*codec.Batch)
	}
	s.batches[spec.Name] = b
	return Result{Table: spec.Name, Status: StatusInserted, RowCount: b.Len()}, nil
}

func tables(names ...string) *plan.Plan {
	p := &plan.Plan{Name: "test"}
	for _, n := range names {
		p.Tables = append(p.Tables, plan.TableSpec{Name: n})
	}
	return p
}
