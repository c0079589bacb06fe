package orchestrator

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rentchain/rental-client/internal/chain"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/interfaces"
	"github.com/rentchain/rental-client/internal/metrics"
	"github.com/rentchain/rental-client/internal/notify"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/rentchain/rental-client/internal/resources/balance"
	"github.com/rentchain/rental-client/internal/resources/rental"
	"github.com/rentchain/rental-client/internal/resources/vault"
)

const (
	DefaultConfirmations       = 1
	DefaultStrongConfirmations = 2
	DefaultWaitTimeout         = 10 * time.Minute
)

type Gateway interface {
	Network() chain.NetworkDescriptor
	Session() chain.Session
	EnsureNetwork(ctx context.Context, expected uint64) bool
	Submit(ctx context.Context, h *contracts.Handle, method string, args ...interface{}) (*types.Transaction, error)
	Confirm(ctx context.Context, h *contracts.Handle, method string, tx *types.Transaction, n uint64) (*types.Receipt, error)
}

type Handles interface {
	Handle(name contracts.Name, signed bool) (*contracts.Handle, error)
	Address(name contracts.Name) common.Address
}

type Balances interface {
	RefreshBalance(ctx context.Context, account common.Address) (balance.Snapshot, error)
	RefreshAllowance(ctx context.Context, owner, spender common.Address) (balance.AllowanceSnapshot, error)
}

type Positions interface {
	Refresh(ctx context.Context, account common.Address) (vault.Position, error)
}

type Records interface {
	Property(ctx context.Context, id uint64) (rental.Property, error)
	Agreement(ctx context.Context, id uint64) (rental.Agreement, error)
	HasPassport(ctx context.Context, account common.Address) (bool, error)
	Passport(ctx context.Context, account common.Address) (*rental.TenantReputation, error)
}

type Notifier interface {
	Publish(n notify.Notification)
}

type Config struct {
	// Confirmations is the depth waited for by default
	Confirmations uint64
	// StrongConfirmations is the depth waited for by vault deposits and withdrawals
	StrongConfirmations uint64
	// WaitTimeout bounds a single confirmation wait and the refresh after a flow
	WaitTimeout time.Duration
	// History is the number of flows whose latest status is kept
	History int
}

func (c *Config) setDefaults() {
	if c.Confirmations == 0 {
		c.Confirmations = DefaultConfirmations
	}
	if c.StrongConfirmations == 0 {
		c.StrongConfirmations = DefaultStrongConfirmations
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
}

// step is one transaction of a flow
type step struct {
	name          string
	contract      contracts.Name
	method        string
	args          []interface{}
	confirmations uint64
	// precheck runs right before the step is signed
	precheck func(ctx context.Context) error
}

// plan describes a flow. Steps are prepared after the network check so that reads they depend on
// are done on the right chain.
type plan struct {
	name    string
	title   string
	prepare func(ctx context.Context, account common.Address) ([]step, error)
	// skipped is reported when prepare returns no steps, onSkip then loads what is already on chain
	skipped string
	onSkip  func(ctx context.Context, account common.Address, res *Result)
	// refresh runs once after the last confirmation
	refresh func(ctx context.Context, account common.Address, res *Result, receipts []*types.Receipt)
	success func(res *Result) string
}

// Orchestrator runs user actions as ordered sequences of transactions. Within a flow a step is
// sent only after the previous one reached its confirmations, independent flows may interleave.
type Orchestrator struct {
	cfg Config

	flows *flowLog

	gateway   Gateway
	handles   Handles
	balances  Balances
	positions Positions
	records   Records
	notifier  Notifier
	log       interfaces.ILogger
}

func NewOrchestrator(gateway Gateway, handles Handles, balances Balances, positions Positions, records Records, notifier Notifier, cfg Config, log interfaces.ILogger) *Orchestrator {
	cfg.setDefaults()
	return &Orchestrator{
		cfg:       cfg,
		flows:     newFlowLog(cfg.History),
		gateway:   gateway,
		handles:   handles,
		balances:  balances,
		positions: positions,
		records:   records,
		notifier:  notifier,
		log:       log,
	}
}

// FlowStatus returns the latest status of a recent flow
func (o *Orchestrator) FlowStatus(id string) (Status, bool) {
	return o.flows.get(id)
}

func (o *Orchestrator) RecentFlows() []Status {
	return o.flows.list()
}

func (o *Orchestrator) run(ctx context.Context, p plan, opts []Option) (*Result, error) {
	op := applyOptions(opts)
	res := &Result{FlowID: op.flowID, Flow: p.name, Steps: []string{}, TxHashes: []string{}}
	log := o.log.With("flow", p.name, "flowId", op.flowID)

	stepCount := 0
	emit := func(s Status) {
		s.FlowID = op.flowID
		s.Flow = p.name
		s.StepCount = stepCount
		s.At = time.Now()
		o.flows.record(s)
		metrics.RecordFlow(p.name, string(s.State))
		if s.State.IsTerminal() {
			log.Debugf("flow ended in state %s after %d of %d steps", s.State, len(res.Steps), stepCount)
		}
		if op.observer != nil {
			op.observer(s)
		}
	}

	fail := func(failedStep string, err error) (*Result, error) {
		ferr := &FlowError{
			FlowID:     op.flowID,
			Flow:       p.name,
			Completed:  append([]string(nil), res.Steps...),
			FailedStep: failedStep,
			Err:        err,
		}
		res.Message = ferr.Error()
		log.Warnf("failed: %s", res.Message)
		emit(Status{State: StateFailed, StepName: failedStep, Message: res.Message})
		o.notifier.Publish(notify.Notification{
			Level:   notify.LevelError,
			Title:   p.title + " failed",
			Message: res.Message,
			FlowID:  op.flowID,
		})
		return res, ferr
	}

	emit(Status{State: StateIdle})

	network := o.gateway.Network()
	if !o.gateway.EnsureNetwork(ctx, network.ChainID) {
		return fail("", errors.WrongNetwork(p.name, network.ChainID, o.gateway.Session().ChainID))
	}
	emit(Status{State: StateNetworkChecked})

	session := o.gateway.Session()
	if !session.IsConnected {
		return fail("", errors.NoSigner(p.name))
	}

	steps, err := p.prepare(ctx, session.Address)
	if err != nil {
		return fail("", err)
	}
	stepCount = len(steps)

	if len(steps) == 0 {
		if p.onSkip != nil {
			p.onSkip(ctx, session.Address, res)
		}
		res.Message = p.skipped
		log.Infof("nothing to send: %s", p.skipped)
		emit(Status{State: StateDone, Message: res.Message})
		o.notifier.Publish(notify.Notification{Level: notify.LevelInfo, Title: p.title, Message: res.Message, FlowID: op.flowID})
		return res, nil
	}

	receipts := make([]*types.Receipt, 0, len(steps))
	for i, s := range steps {
		if ctx.Err() != nil {
			return fail(s.name, errors.Internal(p.name, ctx.Err()))
		}
		if s.precheck != nil {
			if err := s.precheck(ctx); err != nil {
				return fail(s.name, err)
			}
		}

		h, err := o.handles.Handle(s.contract, true)
		if err != nil {
			return fail(s.name, err)
		}

		tx, err := o.gateway.Submit(ctx, h, s.method, s.args...)
		if err != nil {
			return fail(s.name, err)
		}
		res.TxHashes = append(res.TxHashes, tx.Hash().Hex())
		emit(Status{State: StateSubmitted, Step: i + 1, StepName: s.name, TxHash: tx.Hash().Hex()})

		// the transaction is out, its outcome is awaited even if the caller goes away
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.WaitTimeout)
		receipt, err := o.gateway.Confirm(waitCtx, h, s.method, tx, s.confirmations)
		cancel()
		if err != nil {
			return fail(s.name, err)
		}
		receipts = append(receipts, receipt)
		res.Steps = append(res.Steps, s.name)
		emit(Status{State: StateConfirmed, Step: i + 1, StepName: s.name, TxHash: tx.Hash().Hex()})
	}

	if p.refresh != nil {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.WaitTimeout)
		p.refresh(refreshCtx, session.Address, res, receipts)
		cancel()
	}

	res.Message = p.success(res)
	log.Infof("done: %s", res.Message)
	emit(Status{State: StateDone, Message: res.Message})
	o.notifier.Publish(notify.Notification{Level: notify.LevelSuccess, Title: p.title, Message: res.Message, FlowID: op.flowID})
	return res, nil
}

// approveStep plans an approval of spender when the current allowance does not cover amount
func (o *Orchestrator) approveStep(ctx context.Context, account, spender common.Address, amount *big.Int) ([]step, error) {
	snap, err := o.balances.RefreshAllowance(ctx, account, spender)
	if err != nil {
		return nil, err
	}
	if snap.Covers(amount) {
		return nil, nil
	}
	return []step{{
		name:          "approval",
		contract:      contracts.Token,
		method:        "approve",
		args:          []interface{}{spender, amount},
		confirmations: o.cfg.Confirmations,
	}}, nil
}

// allowanceCheck re-reads the allowance right before spending. A drop since planning fails the
// flow instead of approving again.
func (o *Orchestrator) allowanceCheck(account, spender common.Address, amount *big.Int, op string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		snap, err := o.balances.RefreshAllowance(ctx, account, spender)
		if err != nil {
			return err
		}
		if !snap.Covers(amount) {
			return errors.Reverted(op, "insufficient allowance", nil)
		}
		return nil
	}
}

// refreshPayment updates the balance and the allowance of spender, failures keep the previous
// snapshots and are only logged
func (o *Orchestrator) refreshPayment(ctx context.Context, account, spender common.Address) {
	if _, err := o.balances.RefreshBalance(ctx, account); err != nil {
		o.log.Warnf("balance refresh after flow failed: %s", err)
	}
	if _, err := o.balances.RefreshAllowance(ctx, account, spender); err != nil {
		o.log.Warnf("allowance refresh after flow failed: %s", err)
	}
}

// createdID finds the id announced by event in the receipt logs of contract
func (o *Orchestrator) createdID(receipts []*types.Receipt, name contracts.Name, event string) *uint64 {
	h, err := o.handles.Handle(name, false)
	if err != nil {
		return nil
	}
	ev, ok := h.ABI.Events[event]
	if !ok {
		return nil
	}
	for _, r := range receipts {
		for _, l := range r.Logs {
			if l.Address != h.Address || len(l.Topics) < 2 || l.Topics[0] != ev.ID {
				continue
			}
			id := new(big.Int).SetBytes(l.Topics[1].Bytes())
			if !id.IsUint64() {
				continue
			}
			v := id.Uint64()
			return &v
		}
	}
	return nil
}
