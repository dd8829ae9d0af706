package plan

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestBuiltinFull(t *testing.T) {
	p, err := Builtin("full")
	if err != nil {
		t.Fatalf("Builtin(full) error = %v", err)
	}
	if p.Source != FromSource {
		t.Errorf("Source = %q", p.Source)
	}
	names := p.Names()
	if len(names) != 15 || names[0] != "Role" || names[len(names)-1] != "EstimateJobMaterial" {
		t.Fatalf("unexpected tables: %v", names)
	}

	index := map[string]int{}
	for i, n := range names {
		index[n] = i
	}
	for _, pair := range [][2]string{
		{"Role", "User"},
		{"CustomerType", "Customer"},
		{"VehicleType", "Vehicle"},
		{"Customer", "Vehicle"},
		{"Job", "Invoice"},
		{"InvoiceDraft", "InvoiceDraftJobMaterial"},
	} {
		if index[pair[0]] >= index[pair[1]] {
			t.Errorf("%s must precede %s", pair[0], pair[1])
		}
	}
	for _, ts := range p.Tables {
		if ts.Key() != "id" {
			t.Errorf("%s key = %q, want id", ts.Name, ts.Key())
		}
	}
}

func TestBuiltinMileage(t *testing.T) {
	p, err := Builtin("mileage")
	if err != nil {
		t.Fatalf("Builtin(mileage) error = %v", err)
	}
	if p.Source != FromDestination {
		t.Errorf("Source = %q, want destination", p.Source)
	}
	ts := p.Tables[0]
	if ts.DestTable() != "Mileage" || ts.FileName() != "vehicle_data.csv" {
		t.Errorf("DestTable/FileName = %s/%s", ts.DestTable(), ts.FileName())
	}
	if !reflect.DeepEqual(ts.Columns, []string{"id", "mileage"}) {
		t.Errorf("Columns = %v", ts.Columns)
	}
	if ts.Rename["id"] != "vehicleID" || ts.StampColumn != "updatedAt" || !ts.RowByRow || !ts.Enriched() {
		t.Errorf("unexpected variant settings: %+v", ts)
	}
}

func TestBuiltinUnknown(t *testing.T) {
	_, err := Builtin("nope")
	if err == nil || !strings.Contains(err.Error(), "full") {
		t.Fatalf("expected error listing available plans, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid with defaults",
			yaml: "tables:\n  - name: Role\n  - name: User\n    references: [Role, User]\n",
		},
		{
			name:    "no tables",
			yaml:    "name: empty\ntables: []\n",
			wantErr: "at least one table",
		},
		{
			name:    "duplicate",
			yaml:    "tables:\n  - name: Role\n  - name: Role\n",
			wantErr: "more than once",
		},
		{
			name:    "child before parent",
			yaml:    "tables:\n  - name: User\n    references: [Role]\n  - name: Role\n",
			wantErr: "must be listed before",
		},
		{
			name:    "missing name",
			yaml:    "tables:\n  - primaryKey: id\n",
			wantErr: "name is required",
		},
		{
			name:    "bad source",
			yaml:    "source: elsewhere\ntables:\n  - name: Role\n",
			wantErr: "plan source",
		},
		{
			name:    "shared file",
			yaml:    "tables:\n  - name: A\n    file: x.csv\n  - name: B\n    file: x.csv\n",
			wantErr: "share file",
		},
		{
			name:    "unknown field",
			yaml:    "tables:\n  - name: Role\n    truncate: true\n",
			wantErr: "truncate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Parse() error = %v", err)
				}
				if p.Source != FromSource {
					t.Errorf("default Source = %q", p.Source)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte("name: custom\ntables:\n  - name: Role\n    primaryKey: roleId\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Name != "custom" || p.Tables[0].Key() != "roleId" {
		t.Fatalf("unexpected plan: %+v", p)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestCheckOrder(t *testing.T) {
	p := &Plan{Tables: []TableSpec{{Name: "User"}, {Name: "Role"}, {Name: "Vehicle", Target: "Mileage"}}}
	refs := map[string][]string{
		"User":    {"Role", "Role"},
		"Role":    {"Role"},
		"Mileage": {"Vehicle"},
	}

	got := p.CheckOrder(refs)
	want := []Violation{
		{Table: "User", Parent: "Role"},
		{Table: "Vehicle", Parent: "Vehicle", Missing: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CheckOrder() = %+v, want %+v", got, want)
	}
	if !strings.Contains(got[0].String(), "listed before Role") {
		t.Errorf("String() = %q", got[0].String())
	}

	full, _ := Builtin("full")
	if v := full.CheckOrder(map[string][]string{"Job": {"JobType", "Vehicle"}}); len(v) != 0 {
		t.Fatalf("full plan violations: %v", v)
	}
}

func TestBuiltinNames(t *testing.T) {
	if got := BuiltinNames(); !reflect.DeepEqual(got, []string{"full", "mileage"}) {
		t.Fatalf("BuiltinNames() = %v", got)
	}
}
