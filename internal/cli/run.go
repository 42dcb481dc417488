package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fuser/internal/config"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Monitor    bool
	LogFile    string

	// Build overrides runtime collaborators (for testing).
	Build BuildOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the fusion loop",
		Long: `Start the agent described by a configuration file.

Every enabled source starts acquiring in the background. Each cycle the
latest inputs are fused into one prompt, the model picks commands, and the
commands are dispatched to their handlers. With --monitor the simulated
agent is rendered in the terminal; logs then go to --log-file or nowhere.

Example:
  fuser run --config ./agent.yaml
  fuser run --config ./agent.yaml --monitor --log-file ./fuser.log`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to the agent configuration (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().BoolVar(&opts.Monitor, "monitor", false, "render the simulator in the terminal")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "append logs to this file instead of stderr")

	return cmd
}

func runAgent(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}

	var logOut io.Writer = cmd.ErrOrStderr()
	switch {
	case opts.LogFile != "":
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		defer f.Close()
		logOut = f
	case opts.Monitor:
		logOut = io.Discard
	}
	logger, err := newLogger(cfg.Logging, opts.Verbose, logOut)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid configuration", err)
	}
	slog.SetDefault(logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	rt, err := BuildRuntime(ctx, cfg, logger, opts.Build)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build runtime", err)
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			logger.Error("error closing trace store", "error", closeErr)
		}
	}()

	if !opts.Monitor {
		fmt.Fprintf(cmd.OutOrStdout(), "Agent %s started with %d sources and %d commands.\n",
			cfg.Agent.Name, len(rt.Sources), rt.Actions.Len())
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}

	if err := rt.Run(ctx, opts.Monitor); err != nil {
		return WrapExitError(ExitFailure, "runtime error", err)
	}

	logger.Info("agent stopped gracefully")
	return nil
}
