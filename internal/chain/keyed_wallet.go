package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rentchain/rental-client/internal/interfaces"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
)

var ErrNoActiveChain = errors.New("wallet has no active chain")

// Dialer opens a node connection for a network added to the wallet
type Dialer func(ctx context.Context, url string) (contracts.EthereumClient, error)

func DefaultDialer(ctx context.Context, url string) (contracts.EthereumClient, error) {
	client, err := contracts.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type KeyedWalletConfig struct {
	LegacyTx            bool
	ReceiptPollInterval time.Duration
}

// KeyedWallet signs with a locally held key and talks to the nodes of the chains it was given
type KeyedWallet struct {
	// config
	legacyTx     bool
	pollInterval time.Duration

	// state
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	address common.Address
	clients map[uint64]contracts.EthereumClient
	active  uint64

	nonceMu lib.Mutex
	nonces  map[uint64]uint64 // next nonce per chain, zero means unknown

	events chan WalletEvent

	// deps
	keys KeySource
	dial Dialer
	log  interfaces.ILogger
}

func NewKeyedWallet(keys KeySource, accountIndex int, dial Dialer, cfg KeyedWalletConfig, log interfaces.ILogger) (*KeyedWallet, error) {
	if cfg.ReceiptPollInterval == 0 {
		cfg.ReceiptPollInterval = time.Second
	}
	w := &KeyedWallet{
		legacyTx:     cfg.LegacyTx,
		pollInterval: cfg.ReceiptPollInterval,
		clients:      make(map[uint64]contracts.EthereumClient),
		nonceMu:      lib.NewMutex(),
		nonces:       make(map[uint64]uint64),
		events:       make(chan WalletEvent, 16),
		keys:         keys,
		dial:         dial,
		log:          log,
	}
	if err := w.useAccount(accountIndex); err != nil {
		return nil, err
	}
	return w, nil
}

// Attach connects the wallet to a node and makes its chain active. Used for the wallet's own
// default node before any dapp interaction.
func (w *KeyedWallet) Attach(ctx context.Context, rpcURL string) (uint64, error) {
	client, err := w.dial(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.storeClient(id.Uint64(), client)
	w.active = id.Uint64()
	return w.active, nil
}

func (w *KeyedWallet) useAccount(index int) error {
	key, err := w.keys.Key(index)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.key = key
	w.address = crypto.PubkeyToAddress(key.PublicKey)
	w.mu.Unlock()

	w.nonceMu.Lock()
	w.nonces = make(map[uint64]uint64)
	w.nonceMu.Unlock()
	return nil
}

// SwitchAccount selects another derived account and emits accountsChanged
func (w *KeyedWallet) SwitchAccount(index int) error {
	if err := w.useAccount(index); err != nil {
		return err
	}
	w.emit(WalletEvent{Type: AccountsChanged, Accounts: []common.Address{w.Address()}})
	return nil
}

// Lock emits accountsChanged with no accounts, as a wallet does when the user disconnects the site
func (w *KeyedWallet) Lock() {
	w.emit(WalletEvent{Type: AccountsChanged, Accounts: nil})
}

func (w *KeyedWallet) Address() common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address
}

func (w *KeyedWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{w.Address()}, nil
}

func (w *KeyedWallet) ChainID(ctx context.Context) (uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.active == 0 {
		return 0, ErrNoActiveChain
	}
	return w.active, nil
}

func (w *KeyedWallet) SwitchChain(ctx context.Context, chainIDHex string) error {
	id, err := ParseChainIDHex(chainIDHex)
	if err != nil {
		return &RPCError{Code: -32602, Message: err.Error()}
	}

	w.mu.Lock()
	if _, ok := w.clients[id]; !ok {
		w.mu.Unlock()
		return &RPCError{Code: CodeUnrecognizedChain, Message: fmt.Sprintf("unrecognized chain id %s", chainIDHex)}
	}
	changed := w.active != id
	w.active = id
	w.mu.Unlock()

	if changed {
		w.emit(WalletEvent{Type: ChainChanged, ChainIDHex: ChainIDToHex(id)})
	}
	return nil
}

// AddChain dials the descriptor RPC and checks the node serves the declared chain
func (w *KeyedWallet) AddChain(ctx context.Context, desc NetworkDescriptor) error {
	client, err := w.dial(ctx, desc.RPCURL)
	if err != nil {
		return fmt.Errorf("cannot reach rpc of %s: %w", desc.DisplayName, err)
	}
	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return err
	}
	if id.Uint64() != desc.ChainID {
		client.Close()
		return fmt.Errorf("rpc %s serves chain %d, expected %d", desc.RPCURL, id.Uint64(), desc.ChainID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.storeClient(desc.ChainID, client)
	return nil
}

func (w *KeyedWallet) storeClient(id uint64, client contracts.EthereumClient) {
	if old, ok := w.clients[id]; ok && old != client {
		old.Close()
	}
	w.clients[id] = client
}

func (w *KeyedWallet) activeClient() (contracts.EthereumClient, uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	client, ok := w.clients[w.active]
	if !ok {
		return nil, 0, ErrNoActiveChain
	}
	return client, w.active, nil
}

func (w *KeyedWallet) clientFor(chainID *big.Int) (contracts.EthereumClient, error) {
	if chainID == nil || chainID.Sign() == 0 {
		client, _, err := w.activeClient()
		return client, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	client, ok := w.clients[chainID.Uint64()]
	if !ok {
		return nil, fmt.Errorf("no node for chain %s", chainID)
	}
	return client, nil
}

func (w *KeyedWallet) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	client, _, err := w.activeClient()
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, msg, nil)
}

// SignAndSend builds, signs and broadcasts a transaction calling `to` with data.
// Nonce allocation is serialized so concurrent sends from one account do not collide.
func (w *KeyedWallet) SignAndSend(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error) {
	client, chainID, err := w.activeClient()
	if err != nil {
		return nil, err
	}

	w.mu.RLock()
	key, from := w.key, w.address
	w.mu.RUnlock()

	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, err
	}

	if err := w.nonceMu.LockCtx(ctx); err != nil {
		return nil, err
	}
	defer w.nonceMu.Unlock()

	nonce, err := w.nextNonce(ctx, client, chainID, from)
	if err != nil {
		return nil, err
	}

	txData, err := w.txData(ctx, client, chainID, nonce, gas, to, data)
	if err != nil {
		return nil, err
	}

	signed, err := types.SignTx(types.NewTx(txData), types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)), key)
	if err != nil {
		return nil, err
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		delete(w.nonces, chainID)
		return nil, err
	}
	w.nonces[chainID] = nonce + 1

	w.log.Debugf("sent tx %s nonce %d to %s", signed.Hash(), nonce, to)
	return signed, nil
}

func (w *KeyedWallet) nextNonce(ctx context.Context, client contracts.EthereumClient, chainID uint64, from common.Address) (uint64, error) {
	pending, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return 0, err
	}
	if cached := w.nonces[chainID]; cached > pending {
		return cached, nil
	}
	return pending, nil
}

func (w *KeyedWallet) txData(ctx context.Context, client contracts.EthereumClient, chainID uint64, nonce uint64, gas uint64, to common.Address, data []byte) (types.TxData, error) {
	if w.legacyTx {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		return &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    big.NewInt(0),
			Data:     data,
		}, nil
	}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, err
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	return &types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(chainID),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	}, nil
}

// WaitForConfirmations returns once the transaction is mined and n blocks deep, counting its own block
func (w *KeyedWallet) WaitForConfirmations(ctx context.Context, tx *types.Transaction, n uint64) (*types.Receipt, error) {
	client, err := w.clientFor(tx.ChainId())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		n = 1
	}

	var receipt *types.Receipt
	err = lib.PollUntil(ctx, 0, w.pollInterval, func(ctx context.Context) (bool, error) {
		if receipt == nil {
			r, err := client.TransactionReceipt(ctx, tx.Hash())
			if err != nil {
				if !errors.Is(err, ethereum.NotFound) {
					w.log.Debugf("receipt of %s not available: %s", tx.Hash(), err)
				}
				return false, nil
			}
			receipt = r
		}
		head, err := client.BlockNumber(ctx)
		if err != nil {
			return false, nil
		}
		return head+1 >= receipt.BlockNumber.Uint64()+n, nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (w *KeyedWallet) Events() <-chan WalletEvent {
	return w.events
}

func (w *KeyedWallet) emit(ev WalletEvent) {
	select {
	case w.events <- ev:
	default:
		w.log.Warnf("wallet event %s dropped, no consumer", ev.Type)
	}
}

// Close releases all node connections
func (w *KeyedWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, client := range w.clients {
		client.Close()
		delete(w.clients, id)
	}
	w.active = 0
}
