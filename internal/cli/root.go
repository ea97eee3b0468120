package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // journal path for exec, replay and inspect
	Device   int    // device affinity for validate
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command with flag defaults taken from
// the environment (see EnvConfig).
func NewRootCommand() *cobra.Command {
	cfg, envErr := LoadEnv()
	cmd := NewRootCommandWithEnv(cfg)
	if envErr != nil {
		check := cmd.PersistentPreRunE
		cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
			if err := check(c, args); err != nil {
				return err
			}
			return WrapExitError(ExitCommandError, "invalid environment", envErr)
		}
	}
	return cmd
}

// NewRootCommandWithEnv creates the root command with explicit flag
// defaults.
func NewRootCommandWithEnv(cfg EnvConfig) *cobra.Command {
	opts := &RootOptions{
		Verbose:  cfg.Verbose,
		Format:   cfg.Format,
		Database: cfg.Database,
		Device:   cfg.Device,
	}

	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Sequence accumulator backend",
		Long: `A stateful custom backend that keeps one int32 accumulator per batch slot.

Compiles and validates model configurations, runs scenario files against
the backend, and inspects or replays the execution journal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "verbose output (env SEQUENCE_VERBOSE)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", opts.Format, "output format (json|text) (env SEQUENCE_FORMAT)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// addDatabaseFlag binds --db to the shared option, defaulting to
// SEQUENCE_DB.
func addDatabaseFlag(cmd *cobra.Command, opts *RootOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", opts.Database, "path to SQLite journal (env SEQUENCE_DB)")
}

func requireDatabase(opts *RootOptions) error {
	if opts.Database == "" {
		return NewExitError(ExitCommandError, "--db is required (or set SEQUENCE_DB)")
	}
	return nil
}
