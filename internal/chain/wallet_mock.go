package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type SentTx struct {
	To   common.Address
	Data []byte
}

// WalletMock is an in-memory wallet recording every request, used by tests of the packages
// built on the gateway
type WalletMock struct {
	mu sync.Mutex

	Accounts []common.Address
	Chain    uint64
	Known    map[uint64]bool

	ConnectErr error
	SwitchErr  error
	AddErr     error

	// CallFunc answers contract reads, it also replays reverted transactions
	CallFunc func(msg ethereum.CallMsg) ([]byte, error)
	// SendFunc runs before a transaction is accepted, a non-nil error rejects it
	SendFunc func(to common.Address, data []byte) error
	// RevertFunc marks a mined transaction as reverted
	RevertFunc func(to common.Address, data []byte) bool
	// LogsFunc supplies the logs of a mined transaction
	LogsFunc func(to common.Address, data []byte) []*types.Log
	// WaitGate holds confirmation waits until it is closed
	WaitGate chan struct{}

	requests []string
	sent     []SentTx
	block    uint64
	events   chan WalletEvent
}

var _ Wallet = (*WalletMock)(nil)

func NewWalletMock(account common.Address, chainID uint64) *WalletMock {
	return &WalletMock{
		Accounts: []common.Address{account},
		Chain:    chainID,
		Known:    map[uint64]bool{chainID: true},
		events:   make(chan WalletEvent, 16),
	}
}

func (m *WalletMock) record(req string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
}

// Requests lists the wallet methods called so far, in order
func (m *WalletMock) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

func (m *WalletMock) Sent() []SentTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentTx(nil), m.sent...)
}

func (m *WalletMock) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	m.record("requestAccounts")
	if m.ConnectErr != nil {
		return nil, m.ConnectErr
	}
	return m.Accounts, nil
}

func (m *WalletMock) ChainID(ctx context.Context) (uint64, error) {
	m.record("chainId")
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Chain, nil
}

func (m *WalletMock) SwitchChain(ctx context.Context, chainIDHex string) error {
	m.record("switchChain")
	if m.SwitchErr != nil {
		return m.SwitchErr
	}
	id, err := ParseChainIDHex(chainIDHex)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if !m.Known[id] {
		m.mu.Unlock()
		return &RPCError{Code: CodeUnrecognizedChain, Message: "unrecognized chain"}
	}
	m.Chain = id
	m.mu.Unlock()

	m.Emit(WalletEvent{Type: ChainChanged, ChainIDHex: chainIDHex})
	return nil
}

func (m *WalletMock) AddChain(ctx context.Context, desc NetworkDescriptor) error {
	m.record("addChain")
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Known[desc.ChainID] = true
	return nil
}

func (m *WalletMock) SignAndSend(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	m.record("signAndSend")
	if m.SendFunc != nil {
		if err := m.SendFunc(to, data); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentTx{To: to, Data: data})
	return types.NewTx(&types.LegacyTx{
		Nonce: uint64(len(m.sent)),
		To:    &to,
		Value: big.NewInt(0),
		Data:  data,
	}), nil
}

func (m *WalletMock) WaitForConfirmations(ctx context.Context, tx *types.Transaction, n uint64) (*types.Receipt, error) {
	m.record("waitForConfirmations")

	if m.WaitGate != nil {
		select {
		case <-m.WaitGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	status := types.ReceiptStatusSuccessful
	if m.RevertFunc != nil && m.RevertFunc(*tx.To(), tx.Data()) {
		status = types.ReceiptStatusFailed
	}
	var logs []*types.Log
	if m.LogsFunc != nil {
		logs = m.LogsFunc(*tx.To(), tx.Data())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.block += n
	return &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(m.block),
		Logs:        logs,
	}, nil
}

func (m *WalletMock) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if m.CallFunc == nil {
		return nil, nil
	}
	return m.CallFunc(msg)
}

func (m *WalletMock) Events() <-chan WalletEvent {
	return m.events
}

// Emit pushes a wallet event, dropped when nobody consumes the channel
func (m *WalletMock) Emit(ev WalletEvent) {
	select {
	case m.events <- ev:
	default:
	}
}
