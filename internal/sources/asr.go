package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/fuser/internal/cadence"
	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
)

// ASR defaults.
const (
	ASRName             = "asr"
	ASRDescriptor       = "Voice"
	DefaultASRURL       = "wss://api-asr.openmind.org"
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 30 * time.Second
)

// ASRConfig configures the speech recognition adapter.
type ASRConfig struct {
	URL           string
	PollWait      time.Duration
	QueueCapacity int
	ReconnectMin  time.Duration
	ReconnectMax  time.Duration
}

func (c ASRConfig) withDefaults() ASRConfig {
	if c.URL == "" {
		c.URL = DefaultASRURL
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = defaultReconnectMin
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = defaultReconnectMax
	}
	return c
}

// ASR reads transcript segments from a speech recognition websocket.
type ASR struct {
	*input.Input[ir.Record]

	cfg    ASRConfig
	queue  *input.Queue[ir.Record]
	dialer *websocket.Dialer
	now    func() time.Time
	logger *slog.Logger
}

// asrMessage is the server frame. Frames without asr_reply are ignored.
type asrMessage struct {
	Reply *string `json:"asr_reply"`
}

// NewASR creates the adapter. Segments accumulate into one line that is
// consumed by the next prompt; a backlog asks the orchestrator to skip its
// idle wait.
func NewASR(cfg ASRConfig, reg *registry.Registry, cad *cadence.Controller, opts ...Option) (*ASR, error) {
	cfg = cfg.withDefaults()
	s := newSettings(opts)

	q := input.NewQueue[ir.Record](cfg.QueueCapacity)
	in, err := input.New(input.Spec{
		Name:       ASRName,
		Descriptor: ASRDescriptor,
		Policy:     input.TokenAccumulate,
		Retention:  input.ClearOnFormat,
	}, input.NewQueuePoller(q, cfg.PollWait), passRecord, reg, input.WithSkipHint(cad))
	if err != nil {
		return nil, err
	}

	return &ASR{
		Input:  in,
		cfg:    cfg,
		queue:  q,
		dialer: websocket.DefaultDialer,
		now:    s.now,
		logger: s.logger.With("source", ASRName),
	}, nil
}

// HandleMessage decodes one websocket frame and queues its transcript.
// Malformed frames are dropped.
func (a *ASR) HandleMessage(raw []byte) {
	var msg asrMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		a.logger.Debug("ignoring malformed asr frame", "error", err)
		return
	}
	if msg.Reply == nil {
		return
	}
	text := norm.NFC.String(strings.TrimSpace(*msg.Reply))
	if text == "" {
		return
	}
	a.logger.Info("detected asr message", "text", text)
	a.queue.Offer(ir.NewRecord(a.now(), text))
}

// Run keeps a websocket session open, reconnecting with exponential backoff.
func (a *ASR) Run(ctx context.Context) error {
	defer a.queue.Close()

	backoff := a.cfg.ReconnectMin
	for {
		connected, err := a.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = a.cfg.ReconnectMin
		}
		a.logger.Warn("asr connection lost", "url", a.cfg.URL, "error", err, "retry_in", backoff)
		if !sleepCtx(ctx, backoff) {
			return nil
		}
		backoff = min(backoff*2, a.cfg.ReconnectMax)
	}
}

func (a *ASR) session(ctx context.Context) (bool, error) {
	conn, _, err := a.dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", a.cfg.URL, err)
	}
	defer conn.Close()

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	a.logger.Info("asr connected", "url", a.cfg.URL)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		a.HandleMessage(data)
	}
}
