package migrate

import (
	"fmt"
	"path/filepath"

	"github.com/robmartinson/tablecopy/internal/codec"
	"github.com/robmartinson/tablecopy/internal/plan"
)

// Stager checkpoints batches as CSV files in a backup directory, one file per
// table.
type Stager struct {
	Dir string
}

// Path returns the interchange file for spec.
func (s *Stager) Path(spec plan.TableSpec) string {
	return filepath.Join(s.Dir, spec.FileName())
}

// Put writes b to spec's file, replacing any earlier checkpoint.
func (s *Stager) Put(spec plan.TableSpec, b *codec.Batch) error {
	if err := codec.WriteFile(s.Path(spec), b); err != nil {
		return fmt.Errorf("stage %s: %w", spec.Name, err)
	}
	return nil
}

// Get reads spec's file back.
func (s *Stager) Get(spec plan.TableSpec) (*codec.Batch, error) {
	b, err := codec.ReadFile(s.Path(spec))
	if err != nil {
		return nil, fmt.Errorf("read staged %s: %w", spec.Name, err)
	}
	b.Table = spec.Name
	return b, nil
}
