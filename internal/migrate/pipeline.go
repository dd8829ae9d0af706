package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/robmartinson/tablecopy/internal/codec"
	"github.com/robmartinson/tablecopy/internal/database"
	"github.com/robmartinson/tablecopy/internal/metrics"
	"github.com/robmartinson/tablecopy/internal/plan"
)

// Mode selects which half of the per-table sequence a run performs.
type Mode int

const (
	// ModeRun extracts, stages and loads every table.
	ModeRun Mode = iota
	// ModeExtractOnly stops each table once it is staged.
	ModeExtractOnly
	// ModeLoadOnly loads tables staged by an earlier run.
	ModeLoadOnly
)

func (m Mode) String() string {
	switch m {
	case ModeExtractOnly:
		return "extract"
	case ModeLoadOnly:
		return "load"
	default:
		return "run"
	}
}

// Pipeline copies the tables of a plan strictly in order, one at a time. A
// failed table never stops the run; only connection loss does.
type Pipeline struct {
	Plan      *plan.Plan
	Mode      Mode
	Extractor Extractor
	Loader    TableLoader
	// Stager checkpoints each table between extraction and loading. When nil
	// batches stay in memory, which only ModeRun allows.
	Stager *Stager

	// RunID identifies the run in logs; a random one is used when empty.
	RunID string
	// Now supplies the run timestamp used for stamp columns.
	Now func() time.Time
	Log zerolog.Logger
	// Out receives one progress line per table.
	Out io.Writer
}

func (p *Pipeline) check() error {
	if p.Plan == nil || len(p.Plan.Tables) == 0 {
		return errors.New("pipeline has no tables")
	}
	if p.Mode != ModeLoadOnly && p.Extractor == nil {
		return errors.New("pipeline has no extractor")
	}
	if p.Mode != ModeExtractOnly && p.Loader == nil {
		return errors.New("pipeline has no loader")
	}
	if p.Mode != ModeRun && p.Stager == nil {
		return fmt.Errorf("%s mode needs a backup directory", p.Mode)
	}
	return nil
}

// Run processes every plan table and returns one result per table in plan
// order. The error is non-nil only for an unusable pipeline, in which case
// the report is nil, or for connection loss, which ends the run: the current
// table fails and the remaining ones are recorded as not attempted.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	runID := p.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	out := p.Out
	if out == nil {
		out = io.Discard
	}

	runAt := now()
	log := p.Log.With().Str("run_id", runID).Str("plan", p.Plan.Name).Str("mode", p.Mode.String()).Logger()
	report := &Report{
		RunID:     runID,
		Plan:      p.Plan.Name,
		StartedAt: runAt,
		Results:   make([]Result, 0, len(p.Plan.Tables)),
	}
	log.Info().Int("tables", len(p.Plan.Tables)).Msg("starting run")

	for i, spec := range p.Plan.Tables {
		tlog := log.With().Str("table", spec.Name).Logger()
		start := time.Now()
		res, err := p.runTable(ctx, tlog, spec, runAt)
		res.Table = spec.Name
		res.Duration = time.Since(start)
		if res.Status == StatusFailed && res.Error == "" && err != nil {
			res.Error = err.Error()
		}
		report.Results = append(report.Results, res)
		metrics.RecordTable(p.Plan.Name, spec.Name, string(res.Status), res.RowCount, res.Duration)
		progress(out, spec, res, err)
		tlog.Info().Str("status", string(res.Status)).Int("rows", res.RowCount).Dur("took", res.Duration).Msg("table done")

		abort := ctx.Err()
		var connErr *database.ConnectionError
		if errors.As(err, &connErr) {
			abort = connErr
		}
		if abort != nil {
			for _, rest := range p.Plan.Tables[i+1:] {
				report.Results = append(report.Results, Result{
					Table:  rest.Name,
					Status: StatusFailed,
					Error:  fmt.Sprintf("not attempted: %v", abort),
				})
				metrics.RecordTable(p.Plan.Name, rest.Name, string(StatusFailed), 0, 0)
			}
			log.Error().Err(abort).Msg("run aborted")
			return report, abort
		}
	}

	counts := report.Counts()
	log.Info().
		Int("inserted", counts[StatusInserted]).
		Int("skipped", counts[StatusSkippedMissingDestination]).
		Int("failed", counts[StatusFailed]).
		Int("staged", counts[StatusStaged]).
		Int("rows", report.Rows()).
		Msg("run finished")
	return report, nil
}

// runTable drives one table from Pending to a terminal status.
func (p *Pipeline) runTable(ctx context.Context, log zerolog.Logger, spec plan.TableSpec, runAt time.Time) (Result, error) {
	res := Result{Table: spec.Name}
	enter := func(s State) { log.Debug().Str("state", string(s)).Msg("state change") }
	enter(StatePending)

	var (
		b   *codec.Batch
		err error
	)
	if p.Mode != ModeLoadOnly {
		enter(StateExtracting)
		b, err = p.Extractor.Extract(ctx, spec)
		if err != nil {
			return failed(res, connectionError(p.sourceRole(), err))
		}
		if p.Stager != nil {
			if err := p.Stager.Put(spec, b); err != nil {
				return failed(res, err)
			}
		}
	}

	enter(StateStaged)
	if p.Mode == ModeExtractOnly {
		res.Status = StatusStaged
		res.RowCount = b.Len()
		return res, nil
	}
	if p.Stager != nil {
		if b, err = p.Stager.Get(spec); err != nil {
			return failed(res, err)
		}
	}
	if spec.Enriched() {
		b = Transform(b, spec, runAt)
	}

	enter(StateLoading)
	res, err = p.Loader.Load(ctx, spec, b)
	if res.Status == StatusFailed {
		return failed(res, connectionError(database.RoleDestination, err))
	}
	return res, err
}

func (p *Pipeline) sourceRole() database.Role {
	if p.Plan.Source == plan.FromDestination {
		return database.RoleDestination
	}
	return database.RoleSource
}

func progress(w io.Writer, spec plan.TableSpec, res Result, err error) {
	switch res.Status {
	case StatusInserted:
		fmt.Fprintf(w, "inserted %d rows into %s\n", res.RowCount, spec.DestTable())
	case StatusSkippedMissingDestination:
		fmt.Fprintf(w, "table %s does not exist at destination, skipping\n", spec.DestTable())
	case StatusStaged:
		fmt.Fprintf(w, "staged %d rows of %s\n", res.RowCount, spec.Name)
	default:
		fmt.Fprintf(w, "failed %s: %v\n", spec.Name, err)
	}
}
