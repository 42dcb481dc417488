package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
)

// Governance defaults.
const (
	GovernanceName            = "governance"
	GovernanceDescriptor      = "Universal Laws"
	DefaultGovernanceBaseURL  = "https://api.openmind.org/api"
	DefaultGovernanceInterval = 5 * time.Second
	DefaultBackupRule         = "You are honest, curious, and friendly. Don't hurt people."
	defaultGovernanceTimeout  = 10 * time.Second
	governancePollWait        = 50 * time.Millisecond
)

// GovernanceConfig configures the governance rules adapter.
type GovernanceConfig struct {
	BaseURL    string
	Interval   time.Duration
	Timeout    time.Duration
	BackupRule string
}

func (c GovernanceConfig) withDefaults() GovernanceConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultGovernanceBaseURL
	}
	if c.Interval <= 0 {
		c.Interval = DefaultGovernanceInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultGovernanceTimeout
	}
	if c.BackupRule == "" {
		c.BackupRule = DefaultBackupRule
	}
	return c
}

// Governance periodically loads the universal rules. Any failure falls back
// to the backup rule, so the prompt always carries a rule set.
type Governance struct {
	*input.Input[ir.Record]

	cfg     GovernanceConfig
	queue   *input.Queue[ir.Record]
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
	logger  *slog.Logger
}

// NewGovernance creates the adapter. The rule set is persistent state and is
// re-surfaced every cycle.
func NewGovernance(cfg GovernanceConfig, reg *registry.Registry, opts ...Option) (*Governance, error) {
	cfg = cfg.withDefaults()
	s := newSettings(opts)
	logger := s.logger.With("source", GovernanceName)

	q := input.NewQueue[ir.Record](8)
	in, err := input.New(input.Spec{
		Name:       GovernanceName,
		Descriptor: GovernanceDescriptor,
		Policy:     input.AppendDistinct,
		Retention:  input.Persist,
	}, input.NewQueuePoller(q, governancePollWait), passRecord, reg)
	if err != nil {
		return nil, err
	}

	return &Governance{
		Input:   in,
		cfg:     cfg,
		queue:   q,
		client:  s.client,
		breaker: newBreaker(GovernanceName, 3, 30*time.Second, logger),
		now:     s.now,
		logger:  logger,
	}, nil
}

// RulesURL returns the endpoint the rules are loaded from.
func (g *Governance) RulesURL() string {
	return strings.TrimRight(g.cfg.BaseURL, "/") + "/core/rules"
}

// Rules loads the current rule text, returning the backup rule on any failure.
func (g *Governance) Rules(ctx context.Context) string {
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.fetch(ctx)
	})
	if err != nil {
		g.logger.Error("could not load rules, using backup rule", "url", g.RulesURL(), "error", err)
		return g.cfg.BackupRule
	}
	return out.(string)
}

func (g *Governance) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.RulesURL(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get rules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("get rules: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Rules *string `json:"rules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode rules: %w", err)
	}
	if payload.Rules == nil {
		return "", fmt.Errorf("decode rules: response has no rules field")
	}
	return *payload.Rules, nil
}

// Run loads the rules immediately and then every Interval.
func (g *Governance) Run(ctx context.Context) error {
	defer g.queue.Close()

	for {
		rules := g.Rules(ctx)
		if ctx.Err() != nil {
			return nil
		}
		g.logger.Debug("loaded rules", "rules", rules)
		g.queue.Offer(ir.NewRecord(g.now(), rules))

		if !sleepCtx(ctx, g.cfg.Interval) {
			return nil
		}
	}
}
