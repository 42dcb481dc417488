// Package simulator provides a terminal stand-in for the robot body: a state
// machine driven by dispatched commands, a lipgloss panel that shows it next
// to the latest inputs and cycle timings, and a bubbletea monitor that keeps
// the panel live.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/fuser/internal/ir"
)

const (
	// IdleAction is the action shown before any move command.
	IdleAction = "idle"

	maxSpeechRunes = 50
	zeroBalance    = "0.000 ETH"
)

// Snapshot is the simulator state at one instant.
type Snapshot struct {
	Action     string
	LastSpeech string
	Emotion    string
	Balance    string
	Commands   []ir.Command
}

// Racoon is the command-driven simulator. It implements action.Simulator.
type Racoon struct {
	logger *slog.Logger

	mu    sync.RWMutex
	state Snapshot
}

// NewRacoon creates a simulator in its idle state. logger may be nil.
func NewRacoon(logger *slog.Logger) *Racoon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Racoon{
		logger: logger,
		state:  Snapshot{Action: IdleAction, Balance: zeroBalance},
	}
}

// Name implements action.Simulator.
func (r *Racoon) Name() string {
	return "racoon"
}

// Sim applies one decision batch. Commands it does not simulate are ignored.
func (r *Racoon) Sim(_ context.Context, cmds []ir.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range cmds {
		if len(cmd.Arguments) == 0 {
			continue
		}
		arg := cmd.Arg(0)
		switch cmd.Name {
		case "move":
			r.state.Action = arg
		case "speech":
			r.state.LastSpeech = truncate(arg, maxSpeechRunes)
		case "face":
			r.state.Emotion = arg
		case "wallet":
			r.state.Balance = formatBalance(arg, r.logger)
		}
	}
	r.state.Commands = append([]ir.Command(nil), cmds...)
	return nil
}

// Snapshot returns a copy of the current state.
func (r *Racoon) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.state
	s.Commands = append([]ir.Command(nil), r.state.Commands...)
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func formatBalance(s string, logger *slog.Logger) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "ETH")), 64)
	if err != nil {
		logger.Error("invalid wallet balance", "value", s, "error", err)
		return zeroBalance
	}
	return fmt.Sprintf("%.3f ETH", v)
}
