// Package plan defines the Table Order Plan: the ordered list of tables a
// run copies, parents before the tables that reference them.
package plan

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source values for Plan.Source.
const (
	FromSource      = "source"
	FromDestination = "destination"
)

//go:embed plans/*.yaml
var builtinFS embed.FS

// Plan is an ordered set of tables to copy.
type Plan struct {
	Name string `yaml:"name"`
	// Source selects which configured store rows are read from. The mileage
	// plan reads from the destination store itself.
	Source string      `yaml:"source"`
	Tables []TableSpec `yaml:"tables"`
}

// TableSpec identifies one table and how it is copied.
type TableSpec struct {
	Name       string `yaml:"name"`
	PrimaryKey string `yaml:"primaryKey,omitempty"`
	// References lists tables this one holds foreign keys into. They must
	// appear earlier in the plan.
	References []string `yaml:"references,omitempty"`

	Columns     []string          `yaml:"columns,omitempty"`
	Target      string            `yaml:"target,omitempty"`
	File        string            `yaml:"file,omitempty"`
	Rename      map[string]string `yaml:"rename,omitempty"`
	StampColumn string            `yaml:"stampColumn,omitempty"`
	RowByRow    bool              `yaml:"rowByRow,omitempty"`
}

// DestTable is the table name written at the destination.
func (t TableSpec) DestTable() string {
	if t.Target != "" {
		return t.Target
	}
	return t.Name
}

// FileName is the interchange file name for the table.
func (t TableSpec) FileName() string {
	if t.File != "" {
		return t.File
	}
	return t.Name + ".csv"
}

// Key returns the primary key column, "id" unless configured.
func (t TableSpec) Key() string {
	if t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	return "id"
}

// Enriched reports whether rows are rewritten between staging and loading.
func (t TableSpec) Enriched() bool {
	return len(t.Rename) > 0 || t.StampColumn != ""
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	if path == "" {
		return nil, errors.New("plan path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a YAML plan.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Builtin returns one of the plans shipped with the binary.
func Builtin(name string) (*Plan, error) {
	data, err := builtinFS.ReadFile("plans/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown plan %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return Parse(data)
}

// BuiltinNames lists the embedded plans.
func BuiltinNames() []string {
	entries, _ := builtinFS.ReadDir("plans")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Validate checks names are present and unique and that every reference
// points at an earlier table.
func (p *Plan) Validate() error {
	switch p.Source {
	case "":
		p.Source = FromSource
	case FromSource, FromDestination:
	default:
		return fmt.Errorf("plan source must be %q or %q, got %q", FromSource, FromDestination, p.Source)
	}
	if len(p.Tables) == 0 {
		return errors.New("at least one table is required")
	}

	seen := make(map[string]bool, len(p.Tables))
	files := make(map[string]string, len(p.Tables))
	for i, t := range p.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("tables[%d].name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("table %s is listed more than once", t.Name)
		}
		if other, dup := files[t.FileName()]; dup {
			return fmt.Errorf("tables %s and %s share file %s", other, t.Name, t.FileName())
		}
		for _, ref := range t.References {
			// self references are satisfied row by row
			if ref != t.Name && !seen[ref] {
				return fmt.Errorf("table %s references %s, which must be listed before it", t.Name, ref)
			}
		}
		seen[t.Name] = true
		files[t.FileName()] = t.Name
	}
	return nil
}

// Names returns the table names in plan order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.Tables))
	for i, t := range p.Tables {
		names[i] = t.Name
	}
	return names
}
