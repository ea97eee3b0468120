package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/louyanyang/tensorrt-inference-server/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Instance string // optional - specific instance only
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Instances        []*store.ReplayReport `json:"instances"`
	TotalInstances   int                   `json:"total_instances"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Replay journaled batches and verify they are reproducible.

Every journaled step is re-applied, in seq order, to fresh accumulators
and compared with the journaled accumulator, emitted flag and output.
Instances restored from a checkpoint report mismatches on their first
steps.

Exit codes:
  0 - Every instance replayed identically
  1 - Replay mismatch detected
  2 - Command error (database not found, unknown instance, etc.)

Examples:
  sequence replay --db ./journal.db
  sequence replay --db ./journal.db --instance run-7
  sequence replay --db ./journal.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, rootOpts)
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "replay specific instance only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	if err := requireDatabase(opts.RootOptions); err != nil {
		return err
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return formatter.Fail("E_DATABASE", "failed to open database", err)
	}
	defer st.Close()

	var instances []string
	if opts.Instance != "" {
		instances = []string{opts.Instance}
	} else {
		summaries, err := st.ListInstances(ctx)
		if err != nil {
			return formatter.Fail("E_DATABASE", "failed to list instances", err)
		}
		for _, s := range summaries {
			instances = append(instances, s.InstanceID)
		}
	}

	result := ReplayResult{
		Instances:        make([]*store.ReplayReport, 0, len(instances)),
		TotalInstances:   len(instances),
		AllDeterministic: true,
	}

	for _, id := range instances {
		formatter.VerboseLog("Replaying %s", id)
		report, err := st.Replay(ctx, id)
		if err != nil {
			return formatter.Fail("E_REPLAY", fmt.Sprintf("failed to replay instance %s", id), err)
		}
		result.Instances = append(result.Instances, report)
		if !report.OK() {
			result.AllDeterministic = false
		}
	}

	var failure *CLIError
	if !result.AllDeterministic {
		failure = &CLIError{Code: "E_DETERMINISM", Message: "determinism verification failed"}
	}

	return formatter.Report(result, func(w io.Writer) { outputReplayText(w, result, opts.Verbose) }, failure)
}

func outputReplayText(w io.Writer, result ReplayResult, verbose bool) {
	if result.TotalInstances == 0 {
		fmt.Fprintln(w, "No instances found in database.")
		return
	}

	fmt.Fprintf(w, "Replay Summary: %d instance(s)\n", result.TotalInstances)
	fmt.Fprintln(w)

	for _, r := range result.Instances {
		status := "✓"
		if !r.OK() {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Instance: %s\n", status, r.InstanceID)
		fmt.Fprintf(w, "  Batches: %d, steps: %d\n", r.Batches, r.Steps)
		if verbose {
			fmt.Fprintf(w, "  Accumulators: %v\n", r.Accumulators)
		}
		for _, m := range r.Mismatches {
			fmt.Fprintf(w, "  seq %d slot %d: journaled %s %d, replayed %d\n",
				m.Seq, m.Slot, m.Field, m.Recorded, m.Replayed)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All instances verified deterministic")
		return
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
}
