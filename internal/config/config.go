// Package config loads the runtime configuration from YAML.
//
// Every optional field is enumerated here with its default. Defaults are
// applied once in Load, before Validate, so downstream constructors never
// have to probe for missing settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fuser/internal/action"
	"github.com/roach88/fuser/internal/cadence"
	"github.com/roach88/fuser/internal/decision"
	"github.com/roach88/fuser/internal/fuser"
	"github.com/roach88/fuser/internal/sources"
)

// Decision providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Environment variables consulted when the file leaves a secret empty.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvGeminiKey = "GEMINI_API_KEY"
	EnvTraceDB   = "FUSER_TRACE_DB"
)

// ValidProviders lists the supported decision providers.
var ValidProviders = []string{ProviderOpenAI, ProviderGemini}

// ValidActions lists the built-in command handlers.
var ValidActions = []string{
	action.SpeechSpec.Name,
	action.TweetSpec.Name,
	action.MoveSpec.Name,
	action.FaceSpec.Name,
	action.WalletSpec.Name,
}

// Config is the full runtime configuration.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Decision DecisionConfig `yaml:"decision"`
	Sources  SourcesConfig  `yaml:"sources"`
	Actions  ActionsConfig  `yaml:"actions"`
	Trace    TraceConfig    `yaml:"trace"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AgentConfig shapes the fusion loop.
type AgentConfig struct {
	Name         string        `yaml:"name"`
	SystemPrompt string        `yaml:"system_prompt"`
	Cadence      time.Duration `yaml:"cadence"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	Simulator    bool          `yaml:"simulator"`
}

// DecisionConfig selects and tunes the model.
type DecisionConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxRetries  int           `yaml:"max_retries"`
}

// SourcesConfig enables and tunes each input adapter.
type SourcesConfig struct {
	ASR        ASRConfig        `yaml:"asr"`
	Governance GovernanceConfig `yaml:"governance"`
	Vision     VisionConfig     `yaml:"vision"`
	Wallet     WalletConfig     `yaml:"wallet"`
}

// ASRConfig configures the speech transcript stream.
type ASRConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	PollWait      time.Duration `yaml:"poll_wait"`
	QueueCapacity int           `yaml:"queue_capacity"`
}

// GovernanceConfig configures the rules feed.
type GovernanceConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	Interval   time.Duration `yaml:"interval"`
	Timeout    time.Duration `yaml:"timeout"`
	BackupRule string        `yaml:"backup_rule"`
}

// VisionConfig configures the face emotion adapter.
type VisionConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CameraURL     string        `yaml:"camera_url"`
	ClassifierURL string        `yaml:"classifier_url"`
	Interval      time.Duration `yaml:"interval"`
}

// WalletConfig configures the balance poller.
type WalletConfig struct {
	Enabled  bool          `yaml:"enabled"`
	RPCURL   string        `yaml:"rpc_url"`
	Address  string        `yaml:"address"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ActionsConfig configures dispatch and the registered handlers.
type ActionsConfig struct {
	Mode           string          `yaml:"mode"`
	Concurrency    int             `yaml:"concurrency"`
	HandlerTimeout time.Duration   `yaml:"handler_timeout"`
	Handlers       []HandlerConfig `yaml:"handlers"`
}

// HandlerConfig registers one command. With a webhook the command input is
// POSTed as JSON; without one the handler is a passthrough observed by the
// simulator.
type HandlerConfig struct {
	Name    string `yaml:"name"`
	Webhook string `yaml:"webhook"`
}

// TraceConfig configures cycle persistence. An empty DB disables it.
type TraceConfig struct {
	DB string `yaml:"db"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied and only the
// governance source enabled.
func Default() *Config {
	c := &Config{
		Agent: AgentConfig{Simulator: true},
		Sources: SourcesConfig{
			Governance: GovernanceConfig{Enabled: true},
		},
	}
	c.applyDefaults()
	return c
}

// Load reads, defaults and env-overrides the configuration at path. Unknown
// keys are rejected. The result is not validated; call Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document the same way Load does.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Agent.Name == "" {
		c.Agent.Name = "racoon"
	}
	if c.Agent.SystemPrompt == "" {
		c.Agent.SystemPrompt = "You are a friendly, curious racoon. You react to what you hear and see."
	}
	if c.Agent.Cadence <= 0 {
		c.Agent.Cadence = cadence.DefaultInterval
	}
	if c.Agent.PollTimeout <= 0 {
		c.Agent.PollTimeout = fuser.DefaultPollTimeout
	}

	if c.Decision.Provider == "" {
		c.Decision.Provider = ProviderOpenAI
	}
	if c.Decision.Model == "" {
		switch c.Decision.Provider {
		case ProviderGemini:
			c.Decision.Model = decision.DefaultGeminiConfig("").Model
		default:
			c.Decision.Model = decision.DefaultOpenAIConfig("").Model
		}
	}
	if c.Decision.Timeout <= 0 {
		c.Decision.Timeout = decision.DefaultTimeout
	}
	if c.Decision.MaxRetries <= 0 {
		c.Decision.MaxRetries = decision.DefaultOpenAIConfig("").MaxRetries
	}

	if c.Sources.ASR.URL == "" {
		c.Sources.ASR.URL = sources.DefaultASRURL
	}
	if c.Sources.Governance.BaseURL == "" {
		c.Sources.Governance.BaseURL = sources.DefaultGovernanceBaseURL
	}
	if c.Sources.Governance.Interval <= 0 {
		c.Sources.Governance.Interval = sources.DefaultGovernanceInterval
	}
	if c.Sources.Governance.BackupRule == "" {
		c.Sources.Governance.BackupRule = sources.DefaultBackupRule
	}
	if c.Sources.Vision.Interval <= 0 {
		c.Sources.Vision.Interval = sources.DefaultVisionInterval
	}
	if c.Sources.Wallet.Interval <= 0 {
		c.Sources.Wallet.Interval = sources.DefaultWalletInterval
	}

	if c.Actions.Mode == "" {
		c.Actions.Mode = action.Concurrent.String()
	}
	if c.Actions.Concurrency <= 0 {
		c.Actions.Concurrency = action.DefaultConcurrency
	}
	if c.Actions.HandlerTimeout <= 0 {
		c.Actions.HandlerTimeout = action.DefaultHandlerTimeout
	}
	if len(c.Actions.Handlers) == 0 {
		c.Actions.Handlers = []HandlerConfig{
			{Name: action.SpeechSpec.Name},
			{Name: action.MoveSpec.Name},
			{Name: action.FaceSpec.Name},
			{Name: action.WalletSpec.Name},
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) applyEnvOverrides() {
	if c.Decision.APIKey == "" {
		switch c.Decision.Provider {
		case ProviderOpenAI:
			c.Decision.APIKey = os.Getenv(EnvOpenAIKey)
		case ProviderGemini:
			c.Decision.APIKey = os.Getenv(EnvGeminiKey)
		}
	}
	if path := os.Getenv(EnvTraceDB); path != "" && c.Trace.DB == "" {
		c.Trace.DB = path
	}
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !slices.Contains(ValidProviders, c.Decision.Provider) {
		add("decision.provider: %q is not one of %v", c.Decision.Provider, ValidProviders)
	}
	if c.Decision.APIKey == "" && c.Decision.BaseURL == "" {
		add("decision.api_key: not configured (set it or %s / %s)", EnvOpenAIKey, EnvGeminiKey)
	}
	if c.Decision.BaseURL != "" {
		if err := checkURL(c.Decision.BaseURL, "http", "https"); err != nil {
			add("decision.base_url: %v", err)
		}
	}
	if c.Decision.Temperature < 0 || c.Decision.Temperature > 2 {
		add("decision.temperature: %v is outside [0, 2]", c.Decision.Temperature)
	}

	s := c.Sources
	if !s.ASR.Enabled && !s.Governance.Enabled && !s.Vision.Enabled && !s.Wallet.Enabled {
		add("sources: at least one source must be enabled")
	}
	if s.ASR.Enabled {
		if err := checkURL(s.ASR.URL, "ws", "wss"); err != nil {
			add("sources.asr.url: %v", err)
		}
		if s.ASR.QueueCapacity < 0 {
			add("sources.asr.queue_capacity: must not be negative")
		}
	}
	if s.Governance.Enabled {
		if err := checkURL(s.Governance.BaseURL, "http", "https"); err != nil {
			add("sources.governance.base_url: %v", err)
		}
	}
	if s.Vision.Enabled {
		if err := checkURL(s.Vision.CameraURL, "http", "https"); err != nil {
			add("sources.vision.camera_url: %v", err)
		}
		if err := checkURL(s.Vision.ClassifierURL, "http", "https"); err != nil {
			add("sources.vision.classifier_url: %v", err)
		}
	}
	if s.Wallet.Enabled {
		if err := checkURL(s.Wallet.RPCURL, "http", "https"); err != nil {
			add("sources.wallet.rpc_url: %v", err)
		}
		if !sources.ValidAddress(s.Wallet.Address) {
			add("sources.wallet.address: %q is not a 0x-prefixed 20-byte hex address", s.Wallet.Address)
		}
	}

	if _, err := action.ParseMode(c.Actions.Mode); err != nil {
		add("actions.mode: %v", err)
	}
	seen := make(map[string]bool)
	for i, h := range c.Actions.Handlers {
		if !slices.Contains(ValidActions, h.Name) {
			add("actions.handlers[%d].name: %q is not one of %v", i, h.Name, ValidActions)
		}
		if seen[h.Name] {
			add("actions.handlers[%d].name: %q registered twice", i, h.Name)
		}
		seen[h.Name] = true
		if h.Webhook != "" {
			if err := checkURL(h.Webhook, "http", "https"); err != nil {
				add("actions.handlers[%d].webhook: %v", i, err)
			}
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		add("logging.level: %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		add("logging.format: %q is not text or json", c.Logging.Format)
	}

	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("scheme %q is not one of %v", u.Scheme, schemes)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
