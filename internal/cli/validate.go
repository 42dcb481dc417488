package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fuser/internal/config"
	"github.com/roach88/fuser/internal/decision"
	"github.com/roach88/fuser/internal/sources"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	ConfigPath string
	ShowSchema bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Agent    string   `json:"agent,omitempty"`
	Provider string   `json:"provider,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Commands []string `json:"commands,omitempty"`
	Schema   string   `json:"schema,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a configuration without starting the agent",
		Long: `Load and validate an agent configuration.

Every problem is reported at once. A valid configuration also has its
command catalog compiled into the decision schema, which --show-schema
prints. No network connection is made.

Examples:
  fuser validate --config ./agent.yaml
  fuser validate --config ./agent.yaml --show-schema --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to the agent configuration (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().BoolVar(&opts.ShowSchema, "show-schema", false, "print the compiled decision schema")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	formatter.VerboseLog("loaded %s", opts.ConfigPath)

	if err := cfg.Validate(); err != nil {
		return outputValidationErrors(formatter, splitErrors(err))
	}

	actions, err := buildActions(cfg.Actions, nil, nil)
	if err != nil {
		return outputValidationErrors(formatter, []string{err.Error()})
	}
	schema, err := decision.NewSchema(actions.Catalog())
	if err != nil {
		return outputValidationErrors(formatter, []string{err.Error()})
	}
	formatter.VerboseLog("compiled decision schema for %d commands", actions.Len())

	result := ValidationResult{
		Valid:    true,
		Agent:    cfg.Agent.Name,
		Provider: cfg.Decision.Provider,
		Sources:  enabledSources(cfg.Sources),
	}
	for _, h := range actions.Catalog() {
		result.Commands = append(result.Commands, h.Signature())
	}
	if opts.ShowSchema {
		result.Schema = schema.Source()
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	writeValidationText(formatter.Writer, result)
	return nil
}

func writeValidationText(w io.Writer, r ValidationResult) {
	fmt.Fprintf(w, "Configuration valid for agent %s\n", r.Agent)
	fmt.Fprintf(w, "  provider: %s\n", r.Provider)
	fmt.Fprintf(w, "  sources:  %s\n", strings.Join(r.Sources, ", "))
	fmt.Fprintf(w, "  commands: %s\n", strings.Join(r.Commands, ", "))
	if r.Schema != "" {
		fmt.Fprintf(w, "\n%s\n", r.Schema)
	}
}

func outputValidationErrors(formatter *OutputFormatter, errs []string) error {
	if formatter.Format == "json" {
		if err := formatter.Error(CodeInvalidConfig, "invalid configuration", ValidationResult{Errors: errs}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "Configuration invalid (%d errors):\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  - %s\n", e)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("configuration invalid: %d errors", len(errs)))
}

// splitErrors flattens an errors.Join result into one message per problem.
func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// enabledSources lists the enabled sources in the order the runtime formats
// them.
func enabledSources(cfg config.SourcesConfig) []string {
	var out []string
	if cfg.Governance.Enabled {
		out = append(out, sources.GovernanceName)
	}
	if cfg.Wallet.Enabled {
		out = append(out, sources.WalletName)
	}
	if cfg.Vision.Enabled {
		out = append(out, sources.VisionName)
	}
	if cfg.ASR.Enabled {
		out = append(out, sources.ASRName)
	}
	return out
}
