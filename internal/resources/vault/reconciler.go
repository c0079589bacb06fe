package vault

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
	"github.com/shopspring/decimal"
)

const pollerName = "vault"

var daysPerYear = decimal.NewFromInt(365)

type Config struct {
	Interval    time.Duration
	APYPercent  decimal.Decimal
	DaysAssumed int
}

type Position struct {
	Account            common.Address  `json:"account"`
	Deposited          Figure          `json:"deposited"`
	AccruedYield       Figure          `json:"accruedYield"`
	VaultTotalDeposits Figure          `json:"vaultTotalDeposits"`
	APYPercent         decimal.Decimal `json:"apyPercent"`
	APYProvenance      Provenance      `json:"apyProvenance"`
	ObservedAt         time.Time       `json:"observedAt"`
}

type View struct {
	State    resources.LoadState `json:"state"`
	Position *Position           `json:"position,omitempty"`
}

// Reconciler keeps the vault position of the open view fresh while the view is open
type Reconciler struct {
	// config
	cfg Config

	// state
	mu       sync.RWMutex
	state    resources.LoadState
	position *Position
	polling  *lib.Polling

	// deps
	reader  resources.Reader
	handles resources.HandleProvider
	log     interfaces.ILogger
}

func NewReconciler(reader resources.Reader, handles resources.HandleProvider, cfg Config, log interfaces.ILogger) *Reconciler {
	return &Reconciler{
		cfg:     cfg,
		state:   resources.LoadStateIdle,
		reader:  reader,
		handles: handles,
		log:     log,
	}
}

// Open starts polling the position of account until Close
func (r *Reconciler) Open(ctx context.Context, account common.Address) *lib.Polling {
	<-r.Close()

	r.mu.Lock()
	r.state = resources.LoadStateLoading
	r.position = nil
	r.mu.Unlock()

	p := lib.StartPolling(ctx, pollerName, r.cfg.Interval, func(ctx context.Context) error {
		_, err := r.Refresh(ctx, account)
		if err != nil {
			metrics.RecordPollFailure(pollerName)
		}
		return err
	}, r.log)

	r.mu.Lock()
	r.polling = p
	r.mu.Unlock()
	return p
}

// Close stops polling; the channel is closed after the last in-flight read returned
func (r *Reconciler) Close() <-chan struct{} {
	r.mu.Lock()
	p := r.polling
	r.polling = nil
	if p != nil {
		r.state = resources.LoadStateIdle
	}
	r.mu.Unlock()

	if p == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.Stop()
}

func (r *Reconciler) IsOpen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.polling != nil
}

// Refresh resolves every figure of the position. It fails with a stale read error only when
// no figure could be read from the chain.
func (r *Reconciler) Refresh(ctx context.Context, account common.Address) (Position, error) {
	vaultH, err := r.handles.Handle(contracts.Vault, false)
	if err != nil {
		return Position{}, err
	}
	tokenH, err := r.handles.Handle(contracts.Token, false)
	if err != nil {
		return Position{}, err
	}

	deposited, err := Resolve(ctx, r.depositStrategies(vaultH, account))
	if err != nil {
		return r.fail(ctx, err)
	}
	accrued, err := Resolve(ctx, r.yieldStrategies(vaultH, account, deposited.Value))
	if err != nil {
		return r.fail(ctx, err)
	}
	total, err := Resolve(ctx, r.totalStrategies(vaultH, tokenH))
	if err != nil {
		r.log.Debugf("vault total deposits unavailable: %s", err)
		total = Figure{Value: big.NewInt(0), Provenance: Estimated, Source: "none"}
	}

	if !deposited.IsAuthoritative() && !accrued.IsAuthoritative() && !total.IsAuthoritative() {
		return r.fail(ctx, fmt.Errorf("no vault figure could be read"))
	}

	pos := Position{
		Account:            account,
		Deposited:          deposited,
		AccruedYield:       accrued,
		VaultTotalDeposits: total,
		APYPercent:         r.cfg.APYPercent,
		APYProvenance:      Estimated,
		ObservedAt:         time.Now(),
	}

	r.mu.Lock()
	r.position = &pos
	r.setState(resources.LoadStateReady)
	r.mu.Unlock()
	return pos, nil
}

// setState moves the view state unless the view is closed. Open leaves idle before its first
// read, so this also covers the read racing the assignment of polling. Callers hold mu.
func (r *Reconciler) setState(s resources.LoadState) {
	if r.state == resources.LoadStateIdle {
		return
	}
	r.state = s
}

func (r *Reconciler) fail(ctx context.Context, cause error) (Position, error) {
	if ctx.Err() != nil {
		return Position{}, ctx.Err()
	}
	r.log.Warnf("vault refresh failed: %s", cause)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.setState(resources.NextLoadState(r.state, cause))
	if r.position != nil {
		return *r.position, errors.StaleRead("vault.position", cause)
	}
	return Position{}, errors.StaleRead("vault.position", cause)
}

func (r *Reconciler) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v := View{State: r.state}
	if r.position != nil {
		pos := *r.position
		v.Position = &pos
	}
	return v
}

func (r *Reconciler) depositStrategies(vaultH *contracts.Handle, account common.Address) []Strategy {
	return []Strategy{
		{Name: "vault.deposits", Provenance: Authoritative, Read: r.readUint(vaultH, "deposits", account)},
		{Name: "vault.balanceOf", Provenance: Authoritative, Read: r.readUint(vaultH, "balanceOf", account)},
		Constant("zero", big.NewInt(0)),
	}
}

func (r *Reconciler) yieldStrategies(vaultH *contracts.Handle, account common.Address, deposited *big.Int) []Strategy {
	return []Strategy{
		{Name: "vault.calculateYield", Provenance: Authoritative, Read: r.readUint(vaultH, "calculateYield", account)},
		{
			Name:       "apy-estimate",
			Provenance: Estimated,
			Read: func(ctx context.Context) (*big.Int, error) {
				return EstimateYield(deposited, r.cfg.APYPercent, r.cfg.DaysAssumed), nil
			},
		},
	}
}

func (r *Reconciler) totalStrategies(vaultH, tokenH *contracts.Handle) []Strategy {
	return []Strategy{
		{Name: "vault.totalDeposits", Provenance: Authoritative, Read: r.readUint(vaultH, "totalDeposits")},
		{Name: "token.balanceOf(vault)", Provenance: Authoritative, Read: r.readUint(tokenH, "balanceOf", vaultH.Address)},
	}
}

func (r *Reconciler) readUint(h *contracts.Handle, method string, args ...interface{}) func(ctx context.Context) (*big.Int, error) {
	return func(ctx context.Context) (*big.Int, error) {
		out, err := r.reader.Call(ctx, h, method, args...)
		if err != nil {
			return nil, err
		}
		if len(out) != 1 {
			return nil, fmt.Errorf("%s returned %d values", method, len(out))
		}
		v, ok := out[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("%s returned %T", method, out[0])
		}
		return v, nil
	}
}

// EstimateYield approximates accrued yield as deposit * apy/100 / 365 * days, truncated to base units
func EstimateYield(deposited *big.Int, apyPercent decimal.Decimal, days int) *big.Int {
	if deposited == nil || deposited.Sign() == 0 || days <= 0 {
		return big.NewInt(0)
	}
	rate := apyPercent.Div(decimal.NewFromInt(100))
	return decimal.NewFromBigInt(deposited, 0).
		Mul(rate).
		Div(daysPerYear).
		Mul(decimal.NewFromInt(int64(days))).
		Truncate(0).
		BigInt()
}
