package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robmartinson/tablecopy/internal/database"
	"github.com/robmartinson/tablecopy/internal/logger"
	"github.com/robmartinson/tablecopy/internal/metrics"
	"github.com/robmartinson/tablecopy/internal/metrics/prompush"
	"github.com/robmartinson/tablecopy/internal/migrate"
	"github.com/robmartinson/tablecopy/internal/plan"
)

// stores holds the connections a command opened. Either may be nil.
type stores struct {
	source *database.Handle
	dest   *database.Handle
}

func (s *stores) Close() {
	if s.source != nil {
		s.source.Close()
	}
	if s.dest != nil {
		s.dest.Close()
	}
}

// openStores opens the connections needed by mode for p. A plan that reads
// from the destination never opens the source.
func openStores(ctx context.Context, s Settings, p *plan.Plan, mode migrate.Mode) (*stores, error) {
	st := &stores{}
	needDest := mode != migrate.ModeExtractOnly || p.Source == plan.FromDestination
	needSource := mode != migrate.ModeLoadOnly && p.Source != plan.FromDestination

	var err error
	if needSource {
		if st.source, err = database.Open(ctx, database.RoleSource, s.Source); err != nil {
			return nil, err
		}
	}
	if needDest {
		if st.dest, err = database.Open(ctx, database.RoleDestination, s.Destination); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

// newPipeline wires the stores and settings into a pipeline for mode.
func newPipeline(s Settings, p *plan.Plan, mode migrate.Mode, st *stores, log zerolog.Logger, out io.Writer) *migrate.Pipeline {
	pipe := &migrate.Pipeline{
		Plan:  p,
		Mode:  mode,
		RunID: uuid.NewString(),
		Now:   time.Now,
		Log:   log,
		Out:   out,
	}
	if mode != migrate.ModeLoadOnly {
		from := st.source
		if p.Source == plan.FromDestination {
			from = st.dest
		}
		pipe.Extractor = migrate.NewExtractor(from)
	}
	if mode != migrate.ModeExtractOnly {
		l := migrate.NewLoader(st.dest)
		if s.BatchSize > 0 {
			l.BatchSize = s.BatchSize
		}
		pipe.Loader = l
	}
	if mode != migrate.ModeRun || !s.NoStage {
		pipe.Stager = &migrate.Stager{Dir: s.BackupDir}
	}
	return pipe
}

func setupMetrics(s Settings, log zerolog.Logger) {
	if s.PushgatewayURL == "" {
		return
	}
	backend, err := prompush.NewBackend("tablecopy", s.PushgatewayURL)
	if err != nil {
		log.Warn().Err(err).Msg("metrics disabled")
		return
	}
	metrics.SetBackend(backend)
}

func runPipeline(cmd *cobra.Command, mode migrate.Mode, builtin string) error {
	s := Load(viper.GetViper())
	log := logger.Setup(s.LogLevel, s.LogFormat, os.Stderr)

	var (
		p   *plan.Plan
		err error
	)
	if builtin != "" {
		p, err = plan.Builtin(builtin)
	} else {
		p, err = s.LoadPlan()
	}
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStores(ctx, s, p, mode)
	if err != nil {
		return err
	}
	defer st.Close()

	setupMetrics(s, log)
	out := cmd.OutOrStdout()
	report, err := newPipeline(s, p, mode, st, log, out).Run(ctx)
	if ferr := metrics.Flush(); ferr != nil {
		log.Warn().Err(ferr).Msg("failed to push metrics")
	}
	if err != nil {
		return err
	}

	counts := report.Counts()
	if mode == migrate.ModeExtractOnly {
		fmt.Fprintf(out, "staged %d tables to %s, %d failed\n",
			counts[migrate.StatusStaged], s.BackupDir, counts[migrate.StatusFailed])
		return nil
	}
	fmt.Fprintf(out, "%d inserted (%d rows), %d skipped, %d failed\n",
		counts[migrate.StatusInserted], report.Rows(),
		counts[migrate.StatusSkippedMissingDestination], counts[migrate.StatusFailed])
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	s := Load(viper.GetViper())
	p, err := s.LoadPlan()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printPlan(out, p)

	check, _ := cmd.Flags().GetBool("check")
	if !check {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	dest, err := database.Open(ctx, database.RoleDestination, s.Destination)
	if err != nil {
		return err
	}
	defer dest.Close()

	return checkPlan(ctx, out, p, dest)
}

func printPlan(w io.Writer, p *plan.Plan) {
	fmt.Fprintf(w, "plan %s (rows read from %s)\n", p.Name, p.Source)
	for i, t := range p.Tables {
		if t.DestTable() != t.Name {
			fmt.Fprintf(w, "%3d. %s -> %s\n", i+1, t.Name, t.DestTable())
			continue
		}
		fmt.Fprintf(w, "%3d. %s\n", i+1, t.Name)
	}
}

// checkPlan audits p against the foreign keys declared at dest.
func checkPlan(ctx context.Context, w io.Writer, p *plan.Plan, dest *database.Handle) error {
	fks, err := dest.ForeignKeys(ctx)
	if err != nil {
		return fmt.Errorf("read destination foreign keys: %w", err)
	}
	refs := make(map[string][]string)
	for _, fk := range fks {
		refs[fk.Table] = append(refs[fk.Table], fk.RefTable)
	}

	violations := p.CheckOrder(refs)
	for _, v := range violations {
		fmt.Fprintln(w, v.String())
	}
	if len(violations) > 0 {
		return fmt.Errorf("plan %s has %d ordering problems", p.Name, len(violations))
	}
	fmt.Fprintln(w, "order is consistent with destination foreign keys")
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	s := Load(viper.GetViper())
	p, err := s.LoadPlan()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStores(ctx, s, p, migrate.ModeRun)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid and databases are accessible")
	return nil
}
