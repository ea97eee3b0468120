package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/louyanyang/tensorrt-inference-server/internal/engine"
	"github.com/louyanyang/tensorrt-inference-server/internal/harness"
	"github.com/louyanyang/tensorrt-inference-server/internal/store"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Instance string

	// IDGenerator names the instance when neither --instance nor the
	// scenario does. If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// ExecResult summarizes one journaled scenario run.
type ExecResult struct {
	Scenario     string   `json:"scenario"`
	InstanceID   string   `json:"instance_id"`
	Pass         bool     `json:"pass"`
	Batches      int      `json:"batches"`
	LastSeq      int64    `json:"last_seq"`
	Accumulators []int32  `json:"accumulators"`
	Errors       []string `json:"errors,omitempty"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <scenario>",
		Short: "Run a scenario against a journal-backed instance",
		Long: `Run one scenario file with every batch journaled to a SQLite database.

The database is created if it doesn't exist. The instance ID comes from
--instance, then the scenario's instance_id, then a fresh UUIDv7. An
instance that already has journaled batches is refused.

Exit codes:
  0 - Scenario passed
  1 - Scenario expectations failed
  2 - Command error (invalid scenario, database error, etc.)

Examples:
  sequence exec --db ./journal.db ./testdata/scenarios/accumulate.yaml
  sequence exec --db ./journal.db --instance run-7 ./scenario.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	addDatabaseFlag(cmd, rootOpts)
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "instance ID to journal under")

	return cmd
}

func runExec(opts *ExecOptions, scenarioFile string, cmd *cobra.Command) error {
	if err := requireDatabase(opts.RootOptions); err != nil {
		return err
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return formatter.Fail(ErrCodeLoad, "failed to load scenario", err)
	}

	instanceID := opts.Instance
	if instanceID == "" {
		instanceID = scenario.InstanceID
	}
	if instanceID == "" {
		gen := opts.IDGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		instanceID = gen.Generate()
	}

	formatter.VerboseLog("Opening journal %s", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail("E_DATABASE", "failed to open database", err)
	}
	defer st.Close()

	result, err := harness.RunWithOptions(scenario, harness.Options{
		Store:      st,
		Logger:     formatter.Logger(),
		InstanceID: instanceID,
	})
	if err != nil {
		return formatter.Fail("E_EXEC", "failed to run scenario", err)
	}

	out := ExecResult{
		Scenario:     scenario.Name,
		InstanceID:   result.InstanceID,
		Pass:         result.Pass,
		Batches:      len(result.Batches),
		Accumulators: result.Accumulators,
		Errors:       result.Errors,
	}
	for _, b := range result.Batches {
		out.LastSeq = max(out.LastSeq, b.Seq)
	}

	var failure *CLIError
	if !result.Pass {
		failure = &CLIError{Code: "E_TEST_FAILED", Message: fmt.Sprintf("scenario %s failed", scenario.Name)}
	}

	return formatter.Report(out, func(w io.Writer) {
		status := "✓"
		if !out.Pass {
			status = "✗"
		}
		fmt.Fprintf(w, "%s %s journaled as %s\n", status, out.Scenario, out.InstanceID)
		fmt.Fprintf(w, "  Batches: %d (last seq %d)\n", out.Batches, out.LastSeq)
		fmt.Fprintf(w, "  Accumulators: %v\n", out.Accumulators)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}, failure)
}
