package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/louyanyang/tensorrt-inference-server/internal/compiler"
	"github.com/louyanyang/tensorrt-inference-server/internal/engine"
)

// Error codes for model loading.
const (
	ErrCodeLoad = "E001" // model configuration could not be loaded or compiled
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Model      string                     `json:"model,omitempty"`
	ConfigHash string                     `json:"config_hash,omitempty"`
	Slots      int                        `json:"slots,omitempty"`
	Delay      string                     `json:"delay,omitempty"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
	InitError  *CLIError                  `json:"init_error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model>",
		Short: "Validate a model configuration",
		Long: `Validate a CUE model configuration (a directory or a single file).

Compiles the configuration, checks it against the descriptor schema,
then runs the backend's Init checks: device, control inputs, tensor
shapes, data types and names.

Exit codes:
  0 - Model is valid and the backend accepts it
  1 - Schema violations or Init failure
  2 - Command error (path not found, CUE syntax error)

Examples:
  sequence validate ./models/simple_sequence
  sequence validate ./models/simple_sequence --device 0 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&rootOpts.Device, "device", rootOpts.Device, "device affinity, -1 for CPU (env SEQUENCE_DEVICE)")

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := compiler.LoadModel(path)
	if err != nil {
		return formatter.Fail(ErrCodeLoad, "failed to load model", err)
	}
	cfg := loaded.Config
	formatter.VerboseLog("Loaded %s from %d CUE file(s) in %s", cfg.Name, loaded.FileCount, path)

	result := ValidationResult{Valid: true, Model: cfg.Name}

	if errs := compiler.Validate(cfg); len(errs) > 0 {
		result.Valid = false
		result.Errors = errs
		return formatter.Report(result, func(w io.Writer) {
			fmt.Fprintf(w, "✗ %s: %d schema error(s)\n", cfg.Name, len(errs))
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e.Error())
			}
		}, &CLIError{Code: errs[0].Code, Message: fmt.Sprintf("%d schema error(s)", len(errs))})
	}

	eng, err := engine.Create(cfg.Name, cfg, opts.Device, engine.WithLogger(formatter.Logger()))
	if eng == nil {
		return formatter.Fail(ErrCodeLoad, "failed to create instance", err)
	}
	result.ConfigHash = eng.ConfigHash()
	if d := eng.Delay(); d > 0 {
		result.Delay = d.String()
	}

	if err != nil {
		result.Valid = false
		result.InitError = &CLIError{Code: string(engine.CodeOf(err)), Message: err.Error()}
		return formatter.Report(result, func(w io.Writer) {
			fmt.Fprintf(w, "✗ %s: backend rejected the model\n", cfg.Name)
			fmt.Fprintf(w, "  %s\n", err.Error())
		}, result.InitError)
	}

	result.Slots = len(eng.Accumulators())
	return formatter.Report(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s valid (%d slot(s), config %s)\n", cfg.Name, result.Slots, shortHash(result.ConfigHash))
		if result.Delay != "" {
			fmt.Fprintf(w, "  execute delay: %s\n", result.Delay)
		}
	}, nil)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
