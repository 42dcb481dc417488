package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fuser/internal/action"
	"github.com/roach88/fuser/internal/cadence"
	"github.com/roach88/fuser/internal/config"
	"github.com/roach88/fuser/internal/decision"
	"github.com/roach88/fuser/internal/fuser"
	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/registry"
	"github.com/roach88/fuser/internal/simulator"
	"github.com/roach88/fuser/internal/sources"
	"github.com/roach88/fuser/internal/store"
)

// errMonitorClosed stops the runtime when the user quits the monitor.
var errMonitorClosed = errors.New("monitor closed")

// BuildOptions overrides collaborators when building a Runtime (for testing).
type BuildOptions struct {
	// HTTPClient is shared by the sources, webhooks and the OpenAI client.
	HTTPClient *http.Client

	// Client replaces the configured model provider.
	Client decision.Client

	// IDs overrides the cycle ID generator. Defaults to UUIDv7Generator.
	IDs fuser.IDGenerator
}

// Runtime is a fully wired agent: sources, decider, dispatcher and the
// orchestrator, plus the optional trace store and simulator.
type Runtime struct {
	Config   *config.Config
	Registry *registry.Registry
	Cadence  *cadence.Controller
	Sources  []sources.Runner
	Actions  *action.Registry
	Schema   *decision.Schema
	Racoon   *simulator.Racoon
	Store    *store.Store
	Fuser    *fuser.Fuser

	logger *slog.Logger
}

// BuildRuntime wires a Runtime from a validated configuration. Nothing runs
// until Run is called. Close releases the trace store.
func BuildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts BuildOptions) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	rt := &Runtime{
		Config:   cfg,
		Registry: registry.New(),
		Cadence:  cadence.New(cfg.Agent.Cadence),
		logger:   logger,
	}

	actions, err := buildActions(cfg.Actions, httpClient, logger)
	if err != nil {
		return nil, err
	}
	rt.Actions = actions

	schema, err := decision.NewSchema(actions.Catalog())
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	rt.Schema = schema

	client := opts.Client
	if client == nil {
		client, err = newClient(ctx, cfg.Decision, httpClient, logger)
		if err != nil {
			return nil, err
		}
	}
	adapter := decision.NewAdapter(client, schema, rt.Registry,
		decision.WithTimeout(cfg.Decision.Timeout),
		decision.WithLogger(logger),
	)

	rt.Sources, err = buildSources(cfg.Sources, rt.Registry, rt.Cadence, httpClient,
		sources.WithLogger(logger),
		sources.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, err
	}

	mode, err := action.ParseMode(cfg.Actions.Mode)
	if err != nil {
		return nil, err
	}
	dispatchOpts := []action.DispatcherOption{
		action.WithMode(mode),
		action.WithConcurrency(cfg.Actions.Concurrency),
		action.WithHandlerTimeout(cfg.Actions.HandlerTimeout),
		action.WithLogger(logger),
	}
	if cfg.Agent.Simulator {
		rt.Racoon = simulator.NewRacoon(logger)
		dispatchOpts = append(dispatchOpts, action.WithSimulators(rt.Racoon))
	}
	dispatcher := action.NewDispatcher(actions, dispatchOpts...)

	fuserOpts := []fuser.Option{
		fuser.WithLogger(logger),
		fuser.WithPollTimeout(cfg.Agent.PollTimeout),
		fuser.WithPromptBuilder(fuser.PromptBuilder{System: cfg.Agent.SystemPrompt}),
		fuser.WithIDGenerator(opts.IDs),
	}
	if cfg.Trace.DB != "" {
		st, err := store.Open(cfg.Trace.DB)
		if err != nil {
			return nil, fmt.Errorf("open trace store: %w", err)
		}
		seq, err := st.LastSeq(ctx)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("read trace store: %w", err)
		}
		rt.Store = st
		fuserOpts = append(fuserOpts,
			fuser.WithRecorder(st),
			fuser.WithClock(fuser.NewClockAt(seq)),
		)
	}

	srcs := make([]input.Source, len(rt.Sources))
	for i, s := range rt.Sources {
		srcs[i] = s
	}
	rt.Fuser, err = fuser.New(srcs, adapter, dispatcher, rt.Registry, rt.Cadence, fuserOpts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// Run starts every source loop and the orchestrator and blocks until ctx is
// done, a source fails, or the monitor is closed. With monitor set the
// simulator is rendered in the terminal; it requires agent.simulator.
func (r *Runtime) Run(ctx context.Context, monitor bool) error {
	if monitor && r.Racoon == nil {
		return errors.New("monitor requires agent.simulator to be enabled")
	}

	r.logger.Info("runtime starting", "agent", r.Config.Agent.Name, "sources", len(r.Sources), "commands", r.Actions.Len())

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range r.Sources {
		g.Go(func() error {
			if err := src.Run(gctx); err != nil {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return r.Fuser.Run(gctx)
	})
	if monitor {
		g.Go(func() error {
			if err := simulator.RunMonitor(gctx, r.Registry, r.Racoon); err != nil {
				return fmt.Errorf("monitor: %w", err)
			}
			return errMonitorClosed
		})
	}

	err := g.Wait()
	switch {
	case errors.Is(err, errMonitorClosed):
		return nil
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return nil
	}
	return err
}

// Close releases the trace store, if any.
func (r *Runtime) Close() error {
	if r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// buildActions registers the configured handlers in configuration order.
func buildActions(cfg config.ActionsConfig, client *http.Client, logger *slog.Logger) (*action.Registry, error) {
	reg := action.NewRegistry()
	for _, h := range cfg.Handlers {
		var handler action.Handler
		switch h.Name {
		case action.SpeechSpec.Name:
			handler = action.Speech(implFor[action.SpeechInput](h, client, logger))
		case action.TweetSpec.Name:
			handler = action.Tweet(implFor[action.TweetInput](h, client, logger))
		case action.MoveSpec.Name:
			handler = action.Move(implFor[action.MoveInput](h, client, logger))
		case action.FaceSpec.Name:
			handler = action.Face(implFor[action.FaceInput](h, client, logger))
		case action.WalletSpec.Name:
			handler = action.Wallet(implFor[action.WalletInput](h, client, logger))
		default:
			return nil, fmt.Errorf("actions: unknown handler %q", h.Name)
		}
		if err := reg.Register(handler); err != nil {
			return nil, fmt.Errorf("actions: %w", err)
		}
	}
	return reg, nil
}

// implFor posts to the handler's webhook, or passes the input through when
// none is configured.
func implFor[T any](h config.HandlerConfig, client *http.Client, logger *slog.Logger) action.Implementation[T, T] {
	if h.Webhook == "" {
		return action.Passthrough[T]{}
	}
	return action.NewWebhookPoster[T](h.Name, h.Webhook, client, logger)
}

func newClient(ctx context.Context, cfg config.DecisionConfig, httpClient *http.Client, logger *slog.Logger) (decision.Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		oc := decision.DefaultOpenAIConfig(cfg.APIKey)
		oc.Model = cfg.Model
		oc.Temperature = cfg.Temperature
		oc.MaxRetries = cfg.MaxRetries
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		return decision.NewOpenAIClient(oc, httpClient, logger), nil
	case config.ProviderGemini:
		gc := decision.DefaultGeminiConfig(cfg.APIKey)
		gc.Model = cfg.Model
		gc.Temperature = float32(cfg.Temperature)
		gc.BaseURL = cfg.BaseURL
		c, err := decision.NewGeminiClient(ctx, gc, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("decision: unknown provider %q", cfg.Provider)
}

// buildSources creates the enabled adapters. The order fixes the prompt
// layout: standing context first, then fresh observations.
func buildSources(cfg config.SourcesConfig, reg *registry.Registry, cad *cadence.Controller, client *http.Client, opts ...sources.Option) ([]sources.Runner, error) {
	var out []sources.Runner

	if cfg.Governance.Enabled {
		g, err := sources.NewGovernance(sources.GovernanceConfig{
			BaseURL:    cfg.Governance.BaseURL,
			Interval:   cfg.Governance.Interval,
			Timeout:    cfg.Governance.Timeout,
			BackupRule: cfg.Governance.BackupRule,
		}, reg, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}

	if cfg.Wallet.Enabled {
		w, err := sources.NewWallet(sources.WalletConfig{
			RPCURL:   cfg.Wallet.RPCURL,
			Address:  cfg.Wallet.Address,
			Interval: cfg.Wallet.Interval,
			Timeout:  cfg.Wallet.Timeout,
		}, reg, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}

	if cfg.Vision.Enabled {
		v, err := sources.NewVision(sources.VisionConfig{Interval: cfg.Vision.Interval},
			sources.HTTPFrameGrabber{URL: cfg.Vision.CameraURL, Client: client},
			sources.HTTPEmotionClassifier{URL: cfg.Vision.ClassifierURL, Client: client},
			reg, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	if cfg.ASR.Enabled {
		a, err := sources.NewASR(sources.ASRConfig{
			URL:           cfg.ASR.URL,
			PollWait:      cfg.ASR.PollWait,
			QueueCapacity: cfg.ASR.QueueCapacity,
		}, reg, cad, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	return out, nil
}
