package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
)

// Wallet defaults.
const (
	WalletName            = "wallet"
	WalletDescriptor      = "Wallet"
	DefaultWalletInterval = 10 * time.Second
	defaultWalletTimeout  = 10 * time.Second
	walletPollWait        = 50 * time.Millisecond
)

var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// ValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func ValidAddress(s string) bool {
	hex, ok := strings.CutPrefix(s, "0x")
	if !ok || len(hex) != 40 {
		return false
	}
	for _, r := range hex {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// WalletConfig configures the wallet balance adapter.
type WalletConfig struct {
	RPCURL   string
	Address  string
	Interval time.Duration
	Timeout  time.Duration
}

// Wallet polls an account balance over Ethereum JSON-RPC.
type Wallet struct {
	*input.Input[ir.Record]

	cfg     WalletConfig
	queue   *input.Queue[ir.Record]
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
	logger  *slog.Logger

	mu   sync.Mutex
	last *float64
}

// NewWallet creates the adapter. The balance is persistent state.
func NewWallet(cfg WalletConfig, reg *registry.Registry, opts ...Option) (*Wallet, error) {
	if cfg.RPCURL == "" || cfg.Address == "" {
		return nil, fmt.Errorf("%s: rpc url and address are required", WalletName)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWalletInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWalletTimeout
	}
	s := newSettings(opts)
	logger := s.logger.With("source", WalletName)

	q := input.NewQueue[ir.Record](4)
	in, err := input.New(input.Spec{
		Name:       WalletName,
		Descriptor: WalletDescriptor,
		Policy:     input.SingleSlot,
		Retention:  input.Persist,
	}, input.NewQueuePoller(q, walletPollWait), passRecord, reg)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		Input:   in,
		cfg:     cfg,
		queue:   q,
		client:  s.client,
		breaker: newBreaker(WalletName, 3, 30*time.Second, logger),
		now:     s.now,
		logger:  logger,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Balance returns the account balance in ether.
func (w *Wallet) Balance(ctx context.Context) (float64, error) {
	out, err := w.breaker.Execute(func() (interface{}, error) {
		return w.fetch(ctx)
	})
	if err != nil {
		return 0, err
	}
	return out.(float64), nil
}

func (w *Wallet) fetch(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_getBalance",
		Params:  []any{w.cfg.Address, "latest"},
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.RPCURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("eth_getBalance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("eth_getBalance: status %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode eth_getBalance: %w", err)
	}
	if out.Error != nil {
		return 0, fmt.Errorf("eth_getBalance: rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	return WeiToEther(out.Result)
}

// WeiToEther converts a 0x-prefixed hex wei quantity to ether.
func WeiToEther(hexWei string) (float64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(hexWei, "0x"), "0X")
	if digits == "" {
		return 0, fmt.Errorf("invalid quantity %q", hexWei)
	}
	wei, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return 0, fmt.Errorf("invalid quantity %q", hexWei)
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return eth, nil
}

// BalanceMessage renders a balance observation, noting incoming funds.
func BalanceMessage(balance, change float64) string {
	if change > 0 {
		return fmt.Sprintf("You just received %.5f ETH. Wallet balance: %.3f ETH", change, balance)
	}
	return fmt.Sprintf("Wallet balance: %.3f ETH", balance)
}

// Refresh fetches the balance once and queues an observation.
func (w *Wallet) Refresh(ctx context.Context) error {
	balance, err := w.Balance(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	var change float64
	if w.last != nil {
		change = balance - *w.last
	}
	w.last = &balance
	w.mu.Unlock()

	w.queue.Offer(ir.NewRecord(w.now(), BalanceMessage(balance, change)))
	return nil
}

// Run refreshes immediately and then every Interval.
func (w *Wallet) Run(ctx context.Context) error {
	defer w.queue.Close()

	for {
		if err := w.Refresh(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("balance refresh failed", "error", err)
		}
		if !sleepCtx(ctx, w.cfg.Interval) {
			return nil
		}
	}
}
