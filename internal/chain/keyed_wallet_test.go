package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/stretchr/testify/require"
)

const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// a mnemonic from the BIP-39 test vectors
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type fakeNode struct {
	mu       sync.Mutex
	chainID  uint64
	head     uint64
	nonce    uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	closed   bool
}

var _ contracts.EthereumClient = (*fakeNode)(nil)

func newFakeNode(chainID uint64) *fakeNode {
	return &fakeNode{chainID: chainID, head: 100, receipts: make(map[common.Hash]*types.Receipt)}
}

func (n *fakeNode) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(n.chainID), nil
}

func (n *fakeNode) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (n *fakeNode) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (n *fakeNode) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func (n *fakeNode) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, tx)
	n.nonce++
	n.receipts[tx.Hash()] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(n.head + 1),
	}
	return nil
}

func (n *fakeNode) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (n *fakeNode) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (n *fakeNode) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (n *fakeNode) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (n *fakeNode) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(n.head), BaseFee: big.NewInt(10_000_000_000)}, nil
}

func (n *fakeNode) BlockNumber(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.head, nil
}

func (n *fakeNode) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

func (n *fakeNode) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
}

func (n *fakeNode) mine(blocks uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.head += blocks
}

func nodeDialer(nodes map[string]*fakeNode) Dialer {
	return func(ctx context.Context, url string) (contracts.EthereumClient, error) {
		node, ok := nodes[url]
		if !ok {
			return nil, errors.New("dial failed")
		}
		return node, nil
	}
}

func newTestKeyedWallet(t *testing.T, nodes map[string]*fakeNode, legacy bool) *KeyedWallet {
	t.Helper()
	keys, err := NewPrivateKeySource(testPrivateKey)
	require.NoError(t, err)
	w, err := NewKeyedWallet(keys, 0, nodeDialer(nodes), KeyedWalletConfig{LegacyTx: legacy, ReceiptPollInterval: time.Millisecond}, lib.NewTestLogger())
	require.NoError(t, err)
	return w
}

func TestKeyedWalletSwitchToUnknownChain(t *testing.T) {
	nodes := map[string]*fakeNode{"home": newFakeNode(1), "base": newFakeNode(testChainID)}
	w := newTestKeyedWallet(t, nodes, false)
	id, err := w.Attach(context.Background(), "home")
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	err = w.SwitchChain(context.Background(), ChainIDToHex(testChainID))
	require.True(t, HasRPCCode(err, CodeUnrecognizedChain))

	err = w.AddChain(context.Background(), NetworkDescriptor{ChainID: testChainID, RPCURL: "home"})
	require.Error(t, err, "node serving another chain must be refused")

	require.NoError(t, w.AddChain(context.Background(), NetworkDescriptor{ChainID: testChainID, RPCURL: "base"}))
	require.NoError(t, w.SwitchChain(context.Background(), ChainIDToHex(testChainID)))

	current, err := w.ChainID(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(testChainID), current)

	ev := <-w.Events()
	require.Equal(t, ChainChanged, ev.Type)
	require.Equal(t, ChainIDToHex(testChainID), ev.ChainIDHex)
}

func TestKeyedWalletSignAndSend(t *testing.T) {
	node := newFakeNode(testChainID)
	w := newTestKeyedWallet(t, map[string]*fakeNode{"base": node}, false)
	_, err := w.Attach(context.Background(), "base")
	require.NoError(t, err)

	to := lib.GetRandomAddr()
	tx1, err := w.SignAndSend(context.Background(), to, []byte{0xde, 0xad})
	require.NoError(t, err)
	tx2, err := w.SignAndSend(context.Background(), to, []byte{0xbe, 0xef})
	require.NoError(t, err)

	require.Equal(t, uint8(types.DynamicFeeTxType), tx1.Type())
	require.Equal(t, uint64(0), tx1.Nonce())
	require.Equal(t, uint64(1), tx2.Nonce(), "cached nonce must advance past the node's pending nonce")
	require.Equal(t, big.NewInt(21_000_000_000), tx1.GasFeeCap())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(testChainID)), tx1)
	require.NoError(t, err)
	require.Equal(t, w.Address(), sender)
}

func TestKeyedWalletLegacyTx(t *testing.T) {
	node := newFakeNode(testChainID)
	w := newTestKeyedWallet(t, map[string]*fakeNode{"base": node}, true)
	_, err := w.Attach(context.Background(), "base")
	require.NoError(t, err)

	tx, err := w.SignAndSend(context.Background(), lib.GetRandomAddr(), nil)
	require.NoError(t, err)
	require.Equal(t, uint8(types.LegacyTxType), tx.Type())
	require.Equal(t, big.NewInt(2_000_000_000), tx.GasPrice())
}

func TestKeyedWalletWaitsForConfirmations(t *testing.T) {
	node := newFakeNode(testChainID)
	w := newTestKeyedWallet(t, map[string]*fakeNode{"base": node}, false)
	_, err := w.Attach(context.Background(), "base")
	require.NoError(t, err)

	tx, err := w.SignAndSend(context.Background(), lib.GetRandomAddr(), nil)
	require.NoError(t, err)

	done := make(chan *types.Receipt, 1)
	go func() {
		r, err := w.WaitForConfirmations(context.Background(), tx, 2)
		if err == nil {
			done <- r
		}
	}()

	node.mine(1)
	select {
	case <-done:
		t.Fatal("returned after a single confirmation")
	case <-time.After(20 * time.Millisecond):
	}

	node.mine(1)
	select {
	case r := <-done:
		require.Equal(t, tx.Hash(), r.TxHash)
	case <-time.After(time.Second):
		t.Fatal("confirmation wait did not return")
	}
}

func TestMnemonicAccounts(t *testing.T) {
	keys, err := NewMnemonicSource(testMnemonic)
	require.NoError(t, err)

	w, err := NewKeyedWallet(keys, 0, nodeDialer(nil), KeyedWalletConfig{}, lib.NewTestLogger())
	require.NoError(t, err)
	first := w.Address()

	key, err := keys.Key(0)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), first)

	require.NoError(t, w.SwitchAccount(1))
	require.NotEqual(t, first, w.Address())

	ev := <-w.Events()
	require.Equal(t, AccountsChanged, ev.Type)
	require.Equal(t, []common.Address{w.Address()}, ev.Accounts)

	w.Lock()
	ev = <-w.Events()
	require.Empty(t, ev.Accounts)
}
