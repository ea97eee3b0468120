package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/louyanyang/tensorrt-inference-server/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Instance string
}

// InspectResult is the checkpoint of one instance, or the instance list
// when no instance was given.
type InspectResult struct {
	Instances    []store.InstanceSummary `json:"instances,omitempty"`
	InstanceID   string                  `json:"instance_id,omitempty"`
	Seq          int64                   `json:"seq,omitempty"`
	Accumulators []int32                 `json:"accumulators,omitempty"`
	FailedSlots  []store.FailedSlot      `json:"failed_slots,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show checkpointed accumulators",
		Long: `Show the latest journaled accumulator values of an instance, together
with every failed slot. Without --instance, list the journaled instances.

Examples:
  sequence inspect --db ./journal.db
  sequence inspect --db ./journal.db --instance run-7 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, cmd)
		},
	}

	addDatabaseFlag(cmd, rootOpts)
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "instance to inspect")

	return cmd
}

func runInspect(opts *InspectOptions, cmd *cobra.Command) error {
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

	if opts.Instance == "" {
		instances, err := st.ListInstances(ctx)
		if err != nil {
			return formatter.Fail("E_DATABASE", "failed to list instances", err)
		}
		result := InspectResult{Instances: instances}
		return formatter.Report(result, func(w io.Writer) {
			if len(instances) == 0 {
				fmt.Fprintln(w, "No instances found in database.")
				return
			}
			for _, inst := range instances {
				fmt.Fprintf(w, "%s  model=%s batches=%d last_seq=%d\n",
					inst.InstanceID, inst.ModelName, inst.Batches, inst.LastSeq)
			}
		}, nil)
	}

	checkpoint, err := st.ReadAccumulators(ctx, opts.Instance)
	if err != nil {
		return formatter.Fail("E_DATABASE", "failed to read accumulators", err)
	}
	if len(checkpoint.Values) == 0 {
		return formatter.Fail("E_NOT_FOUND", fmt.Sprintf("instance %s has no checkpoint", opts.Instance), nil)
	}
	failed, err := st.ReadFailedSlots(ctx, opts.Instance)
	if err != nil {
		return formatter.Fail("E_DATABASE", "failed to read failed slots", err)
	}

	result := InspectResult{
		InstanceID:   checkpoint.InstanceID,
		Seq:          checkpoint.Seq,
		Accumulators: checkpoint.Values,
		FailedSlots:  failed,
	}
	return formatter.Report(result, func(w io.Writer) {
		fmt.Fprintf(w, "Instance: %s (seq %d)\n", result.InstanceID, result.Seq)
		for slot, v := range result.Accumulators {
			fmt.Fprintf(w, "  slot %d: %d\n", slot, v)
		}
		if len(failed) > 0 {
			fmt.Fprintf(w, "Failed slots: %d\n", len(failed))
			for _, f := range failed {
				fmt.Fprintf(w, "  seq %d slot %d: %s\n", f.Seq, f.Slot, f.ErrorCode)
			}
		}
	}, nil)
}

// openExisting opens a journal without creating it.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}
