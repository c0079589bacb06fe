package chain

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/interfaces"
	"github.com/rentchain/rental-client/internal/metrics"
	"github.com/rentchain/rental-client/internal/notify"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

type Notifier interface {
	Publish(n notify.Notification)
}

type GatewayConfig struct {
	ReadsPerSecond float64
	ReadBurst      int
}

// Gateway is the only component that talks to the wallet. It owns the account session,
// enforces the network and wraps contract reads and writes with the error taxonomy.
type Gateway struct {
	// config
	network NetworkDescriptor

	// state
	pendingSwitch *atomic.Uint64
	reloadMu      sync.Mutex
	reloadHooks   []func()

	// deps
	wallet   Wallet
	session  *SessionStore
	limiter  *rate.Limiter
	notifier Notifier
	log      interfaces.ILogger
}

// NewGateway creates a gateway, wallet may be nil when no wallet is configured
func NewGateway(network NetworkDescriptor, wallet Wallet, session *SessionStore, notifier Notifier, cfg GatewayConfig, log interfaces.ILogger) *Gateway {
	limit := rate.Inf
	if cfg.ReadsPerSecond > 0 {
		limit = rate.Limit(cfg.ReadsPerSecond)
	}
	if cfg.ReadBurst < 1 {
		cfg.ReadBurst = 1
	}
	return &Gateway{
		network:       network,
		pendingSwitch: atomic.NewUint64(0),
		wallet:        wallet,
		session:       session,
		limiter:       rate.NewLimiter(limit, cfg.ReadBurst),
		notifier:      notifier,
		log:           log,
	}
}

func (g *Gateway) Network() NetworkDescriptor {
	return g.network
}

func (g *Gateway) Session() Session {
	return g.session.Get()
}

// OnReload registers a hook fired when the wallet moves to another chain on its own
func (g *Gateway) OnReload(hook func()) {
	g.reloadMu.Lock()
	defer g.reloadMu.Unlock()
	g.reloadHooks = append(g.reloadHooks, hook)
}

// Connect asks the wallet for accounts and opens the session with the first one
func (g *Gateway) Connect(ctx context.Context) (common.Address, error) {
	if g.wallet == nil {
		return common.Address{}, errors.WalletUnavailable("connect")
	}

	accounts, err := g.wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, g.walletError("connect", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, errors.UserRejected("connect", fmt.Errorf("wallet returned no accounts"))
	}

	chainID, err := g.wallet.ChainID(ctx)
	if err != nil {
		return common.Address{}, g.walletError("connect", err)
	}

	g.session.Open(accounts[0], chainID)
	g.log.Infof("connected %s on chain %d", accounts[0].Hex(), chainID)
	return accounts[0], nil
}

func (g *Gateway) Disconnect() {
	g.session.Clear()
}

// EnsureNetwork makes the wallet use the expected chain. Declines and failures are reported
// with a warning notification and a false result, never an error.
func (g *Gateway) EnsureNetwork(ctx context.Context, expected uint64) bool {
	if g.wallet == nil {
		g.warnNetwork("No wallet found. Configure a wallet to continue.")
		return false
	}

	current, err := g.wallet.ChainID(ctx)
	if err != nil {
		g.log.Warnf("failed to read wallet chain id: %s", err)
		g.warnNetwork("Unable to read the wallet network.")
		return false
	}
	if current == expected {
		return true
	}

	g.log.Infof("wallet on chain %d, switching to %d", current, expected)
	g.pendingSwitch.Store(expected)
	defer g.pendingSwitch.Store(0)

	target := ChainIDToHex(expected)
	err = g.wallet.SwitchChain(ctx, target)
	if HasRPCCode(err, CodeUnrecognizedChain) {
		if expected != g.network.ChainID {
			g.warnNetwork(fmt.Sprintf("Chain %d is unknown to the wallet.", expected))
			return false
		}
		g.log.Infof("chain %d unknown to wallet, adding %s", expected, g.network.DisplayName)
		if err := g.wallet.AddChain(ctx, g.network); err != nil {
			g.log.Warnf("add chain failed: %s", err)
			g.warnNetwork(fmt.Sprintf("Please add %s to your wallet and switch to it.", g.network.DisplayName))
			return false
		}
		err = g.wallet.SwitchChain(ctx, target)
	}
	if err != nil {
		g.log.Warnf("switch chain failed: %s", err)
		g.warnNetwork(fmt.Sprintf("Please switch your wallet to %s.", g.network.DisplayName))
		return false
	}

	current, err = g.wallet.ChainID(ctx)
	if err != nil || current != expected {
		g.warnNetwork(fmt.Sprintf("Please switch your wallet to %s.", g.network.DisplayName))
		return false
	}

	if s := g.session.Get(); s.IsConnected {
		g.session.Open(s.Address, current)
	}
	return true
}

func (g *Gateway) warnNetwork(msg string) {
	g.notifier.Publish(notify.Notification{
		Level:   notify.LevelWarning,
		Title:   "Wrong network",
		Message: msg,
	})
}

// Call performs a read-only contract call and returns the unpacked outputs
func (g *Gateway) Call(ctx context.Context, h *contracts.Handle, method string, args ...interface{}) (out []interface{}, err error) {
	defer func() { metrics.RecordCall(string(h.Name), method, err) }()

	if g.wallet == nil {
		return nil, errors.WalletUnavailable("call")
	}

	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s.%s: %w", h.Name, method, err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{From: g.session.Get().Address, To: &h.Address, Data: data}
	raw, err := g.wallet.CallContract(ctx, msg)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, errors.Reverted(h.Name.String()+"."+method, reason, err)
		}
		return nil, fmt.Errorf("call %s.%s: %w", h.Name, method, err)
	}

	out, err = h.ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s.%s: %w", h.Name, method, err)
	}
	return out, nil
}

// Submit signs and broadcasts a contract call without waiting for it to be mined
func (g *Gateway) Submit(ctx context.Context, h *contracts.Handle, method string, args ...interface{}) (tx *types.Transaction, err error) {
	defer func() { metrics.RecordSend(string(h.Name), method, err) }()
	op := h.Name.String() + "." + method

	if g.wallet == nil {
		return nil, errors.WalletUnavailable(op)
	}
	if !h.Signed || !g.session.IsConnected() {
		return nil, errors.NoSigner(string(h.Name))
	}

	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Internal(op, err)
	}

	tx, err = g.wallet.SignAndSend(ctx, h.Address, data)
	if err != nil {
		return nil, g.walletError(op, err)
	}
	g.log.Infof("submitted %s tx %s", op, tx.Hash().Hex())
	return tx, nil
}

// Confirm waits for n confirmations of a submitted transaction. A reverted receipt is replayed as
// a call to recover the revert reason.
func (g *Gateway) Confirm(ctx context.Context, h *contracts.Handle, method string, tx *types.Transaction, n uint64) (*types.Receipt, error) {
	op := h.Name.String() + "." + method
	started := time.Now()

	receipt, err := g.wallet.WaitForConfirmations(ctx, tx, n)
	metrics.ObserveConfirmationWait(strconv.FormatUint(n, 10), time.Since(started).Seconds())
	if err != nil {
		return nil, errors.Internal(op, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err))
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		msg := ethereum.CallMsg{From: g.session.Get().Address, To: &h.Address, Data: tx.Data()}
		_, callErr := g.wallet.CallContract(ctx, msg)
		reason, _ := revertReason(callErr)
		g.log.Warnf("%s tx %s reverted: %s", op, tx.Hash().Hex(), reason)
		return receipt, errors.Reverted(op, reason, nil)
	}

	g.log.Infof("%s tx %s confirmed in block %s", op, tx.Hash().Hex(), receipt.BlockNumber)
	return receipt, nil
}

// Send is Submit followed by Confirm
func (g *Gateway) Send(ctx context.Context, h *contracts.Handle, method string, confirmations uint64, args ...interface{}) (*types.Receipt, error) {
	tx, err := g.Submit(ctx, h, method, args...)
	if err != nil {
		return nil, err
	}
	return g.Confirm(ctx, h, method, tx, confirmations)
}

func (g *Gateway) walletError(op string, err error) error {
	if HasRPCCode(err, CodeUserRejected) {
		return errors.UserRejected(op, err)
	}
	if reason, ok := revertReason(err); ok {
		return errors.Reverted(op, reason, err)
	}
	return errors.Internal(op, err)
}

// Run consumes wallet events until ctx is done
func (g *Gateway) Run(ctx context.Context) error {
	if g.wallet == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	events := g.wallet.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			g.handleEvent(ev)
		}
	}
}

func (g *Gateway) handleEvent(ev WalletEvent) {
	switch ev.Type {
	case AccountsChanged:
		if len(ev.Accounts) == 0 {
			g.log.Info("wallet has no accounts, clearing session")
			g.session.Clear()
			return
		}
		if g.session.IsConnected() {
			g.log.Infof("account changed to %s", ev.Accounts[0].Hex())
			g.session.SetAddress(ev.Accounts[0])
		}
	case ChainChanged:
		id, err := ParseChainIDHex(ev.ChainIDHex)
		if err != nil {
			g.log.Warnf("ignoring chain change: %s", err)
			return
		}
		if pending := g.pendingSwitch.Load(); pending != 0 && pending == id {
			return
		}
		if s := g.session.Get(); !s.IsConnected || s.ChainID == id {
			return
		}
		g.log.Warnf("wallet moved to chain %d, reloading", id)
		g.session.Clear()
		g.fireReload()
	}
}

func (g *Gateway) fireReload() {
	g.reloadMu.Lock()
	hooks := append([]func(){}, g.reloadHooks...)
	g.reloadMu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}
