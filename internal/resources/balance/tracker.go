package balance

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/interfaces"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/metrics"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/rentchain/rental-client/internal/resources"
)

const pollerName = "balance"

// Tracker keeps the latest token balance and allowances of the session account
type Tracker struct {
	// config
	interval time.Duration

	// state
	mu         sync.RWMutex
	symbol     string
	state      resources.LoadState
	account    common.Address
	balance    *Snapshot
	allowances map[allowanceKey]*AllowanceSnapshot
	polling    *lib.Polling

	// deps
	reader  resources.Reader
	handles resources.HandleProvider
	log     interfaces.ILogger
}

func NewTracker(reader resources.Reader, handles resources.HandleProvider, symbol string, interval time.Duration, log interfaces.ILogger) *Tracker {
	return &Tracker{
		interval:   interval,
		symbol:     symbol,
		state:      resources.LoadStateIdle,
		allowances: make(map[allowanceKey]*AllowanceSnapshot),
		reader:     reader,
		handles:    handles,
		log:        log,
	}
}

// Start begins polling the balance of account, replacing any previous polling
func (t *Tracker) Start(ctx context.Context, account common.Address) *lib.Polling {
	<-t.Stop()

	t.mu.Lock()
	t.account = account
	t.balance = nil
	t.allowances = make(map[allowanceKey]*AllowanceSnapshot)
	t.state = resources.LoadStateLoading
	t.mu.Unlock()

	p := lib.StartPolling(ctx, pollerName, t.interval, func(ctx context.Context) error {
		_, err := t.RefreshBalance(ctx, account)
		if err != nil {
			metrics.RecordPollFailure(pollerName)
		}
		return err
	}, t.log)

	t.mu.Lock()
	t.polling = p
	t.mu.Unlock()
	return p
}

// Stop cancels polling, the channel is closed once the last read returned
func (t *Tracker) Stop() <-chan struct{} {
	t.mu.Lock()
	p := t.polling
	t.polling = nil
	t.mu.Unlock()

	if p == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.Stop()
}

// Reset forgets the session data, used on disconnect
func (t *Tracker) Reset() {
	<-t.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.account = common.Address{}
	t.balance = nil
	t.allowances = make(map[allowanceKey]*AllowanceSnapshot)
	t.state = resources.LoadStateIdle
}

func (t *Tracker) tokenHandle() (*contracts.Handle, error) {
	return t.handles.Handle(contracts.Token, false)
}

// RefreshBalance reads balanceOf(account). On failure the previous snapshot is kept and
// returned with a stale read error.
func (t *Tracker) RefreshBalance(ctx context.Context, account common.Address) (Snapshot, error) {
	h, err := t.tokenHandle()
	if err != nil {
		return Snapshot{}, err
	}

	raw, err := t.readUint(ctx, h, "balanceOf", account)
	if err != nil {
		t.log.Warnf("balance refresh for %s failed: %s", account.Hex(), err)

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.account == account {
			t.state = resources.NextLoadState(t.state, err)
		}
		if t.balance != nil && t.balance.Account == account {
			return *t.balance, errors.StaleRead("balanceOf", err)
		}
		return Snapshot{}, errors.StaleRead("balanceOf", err)
	}

	snap := Snapshot{
		Account:     account,
		TokenSymbol: t.tokenSymbol(ctx, h),
		Raw:         raw,
		Decimals:    h.Decimals,
		ObservedAt:  time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.account == account || t.account == (common.Address{}) {
		t.balance = &snap
		t.state = resources.LoadStateReady
	}
	return snap, nil
}

// RefreshAllowance reads allowance(owner, spender), keeping the previous snapshot on failure
func (t *Tracker) RefreshAllowance(ctx context.Context, owner, spender common.Address) (AllowanceSnapshot, error) {
	h, err := t.tokenHandle()
	if err != nil {
		return AllowanceSnapshot{}, err
	}
	key := allowanceKey{owner: owner, spender: spender}

	raw, err := t.readUint(ctx, h, "allowance", owner, spender)
	if err != nil {
		t.log.Warnf("allowance refresh %s->%s failed: %s", owner.Hex(), spender.Hex(), err)

		t.mu.RLock()
		defer t.mu.RUnlock()
		if prev, ok := t.allowances[key]; ok {
			return *prev, errors.StaleRead("allowance", err)
		}
		return AllowanceSnapshot{}, errors.StaleRead("allowance", err)
	}

	snap := AllowanceSnapshot{
		Owner:       owner,
		Spender:     spender,
		TokenSymbol: t.tokenSymbol(ctx, h),
		Raw:         raw,
		Decimals:    h.Decimals,
		ObservedAt:  time.Now(),
	}

	t.mu.Lock()
	t.allowances[key] = &snap
	t.mu.Unlock()
	return snap, nil
}

// OnAmountChanged refreshes the allowance for a new input amount and reports whether an
// approval is needed before spending it
func (t *Tracker) OnAmountChanged(ctx context.Context, owner, spender common.Address, amount *big.Int) (bool, error) {
	snap, err := t.RefreshAllowance(ctx, owner, spender)
	if err != nil && snap.Raw == nil {
		return true, err
	}
	return !snap.Covers(amount), nil
}

// Allowance returns the last known allowance snapshot
func (t *Tracker) Allowance(owner, spender common.Address) (AllowanceSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.allowances[allowanceKey{owner: owner, spender: spender}]
	if !ok {
		return AllowanceSnapshot{}, false
	}
	return *snap, true
}

func (t *Tracker) Balance() (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.balance == nil {
		return Snapshot{}, false
	}
	return *t.balance, true
}

func (t *Tracker) State() resources.LoadState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tracker) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v := View{State: t.state, TokenSymbol: t.symbol}
	if t.account != (common.Address{}) {
		v.Account = t.account.Hex()
	}
	if t.balance != nil {
		observed := t.balance.ObservedAt
		v.Raw = t.balance.Raw.String()
		v.Display = t.balance.Display(DisplayPrecision)
		v.ObservedAt = &observed
	}
	return v
}

func (t *Tracker) readUint(ctx context.Context, h *contracts.Handle, method string, args ...interface{}) (*big.Int, error) {
	out, err := t.reader.Call(ctx, h, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T", method, out[0])
	}
	return raw, nil
}

// tokenSymbol returns the configured symbol, asking the token contract once when none was set
func (t *Tracker) tokenSymbol(ctx context.Context, h *contracts.Handle) string {
	t.mu.RLock()
	symbol := t.symbol
	t.mu.RUnlock()
	if symbol != "" {
		return symbol
	}

	out, err := t.reader.Call(ctx, h, "symbol")
	if err != nil || len(out) != 1 {
		return ""
	}
	s, _ := out[0].(string)

	t.mu.Lock()
	t.symbol = s
	t.mu.Unlock()
	return s
}
