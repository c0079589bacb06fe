package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	rerrors "github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/notify"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/stretchr/testify/require"
)

const testChainID = 84532

var testNetwork = NetworkDescriptor{
	ChainID:          testChainID,
	DisplayName:      "Base Sepolia",
	RPCURL:           "https://sepolia.base.org",
	NativeCurrency:   NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
	BlockExplorerURL: "https://sepolia.basescan.org",
}

func newTestGateway(t *testing.T, wallet Wallet) (*Gateway, *notify.Hub, *contracts.Registry) {
	t.Helper()
	log := lib.NewTestLogger()
	hub := notify.NewHub(10, log)
	session := NewSessionStore()

	addrs := make(map[contracts.Name]common.Address)
	for _, name := range contracts.AllNames {
		addrs[name] = lib.GetRandomAddr()
	}
	reg, err := contracts.NewRegistry(addrs, nil)
	require.NoError(t, err)
	reg.SetSigner(session)

	return NewGateway(testNetwork, wallet, session, hub, GatewayConfig{}, log), hub, reg
}

func TestConnectWithoutWallet(t *testing.T) {
	gw, _, _ := newTestGateway(t, nil)

	_, err := gw.Connect(context.Background())
	require.ErrorIs(t, err, rerrors.ErrWalletUnavailable)
	require.False(t, gw.Session().IsConnected)
}

func TestConnectRejected(t *testing.T) {
	wallet := NewWalletMock(lib.GetRandomAddr(), testChainID)
	wallet.ConnectErr = &RPCError{Code: CodeUserRejected, Message: "User rejected the request."}
	gw, _, _ := newTestGateway(t, wallet)

	_, err := gw.Connect(context.Background())
	require.ErrorIs(t, err, rerrors.ErrUserRejected)
	require.True(t, rerrors.IsRetriable(err))
	require.False(t, gw.Session().IsConnected)
}

func TestConnectOpensSession(t *testing.T) {
	account := lib.GetRandomAddr()
	gw, _, _ := newTestGateway(t, NewWalletMock(account, testChainID))

	addr, err := gw.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, account, addr)
	require.Equal(t, Session{Address: account, ChainID: testChainID, IsConnected: true}, gw.Session())
}

func TestEnsureNetworkAddsUnknownChain(t *testing.T) {
	wallet := NewWalletMock(lib.GetRandomAddr(), 1)
	gw, _, _ := newTestGateway(t, wallet)
	_, err := gw.Connect(context.Background())
	require.NoError(t, err)

	ok := gw.EnsureNetwork(context.Background(), testChainID)
	require.True(t, ok)
	require.Equal(t,
		[]string{"requestAccounts", "chainId", "chainId", "switchChain", "addChain", "switchChain", "chainId"},
		wallet.Requests(),
	)
	require.Equal(t, uint64(testChainID), gw.Session().ChainID)
}

func TestEnsureNetworkDeclinedAdd(t *testing.T) {
	wallet := NewWalletMock(lib.GetRandomAddr(), 1)
	wallet.AddErr = &RPCError{Code: CodeUserRejected, Message: "User rejected the request."}
	gw, hub, _ := newTestGateway(t, wallet)

	ok := gw.EnsureNetwork(context.Background(), testChainID)
	require.False(t, ok)
	require.Empty(t, wallet.Sent())

	recent := hub.Recent(1)
	require.Len(t, recent, 1)
	require.Equal(t, notify.LevelWarning, recent[0].Level)
	require.Contains(t, recent[0].Message, "Base Sepolia")
}

func TestEnsureNetworkSameChainIsNoop(t *testing.T) {
	wallet := NewWalletMock(lib.GetRandomAddr(), testChainID)
	gw, _, _ := newTestGateway(t, wallet)

	require.True(t, gw.EnsureNetwork(context.Background(), testChainID))
	require.Equal(t, []string{"chainId"}, wallet.Requests())
}

func TestCallUnpacksOutputs(t *testing.T) {
	account := lib.GetRandomAddr()
	wallet := NewWalletMock(account, testChainID)
	wallet.CallFunc = func(msg ethereum.CallMsg) ([]byte, error) {
		method, err := contracts.TokenABI.MethodById(msg.Data[:4])
		if err != nil {
			return nil, err
		}
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		if args[0].(common.Address) != account {
			return method.Outputs.Pack(big.NewInt(0))
		}
		return method.Outputs.Pack(big.NewInt(1_500_000))
	}
	gw, _, reg := newTestGateway(t, wallet)

	h, err := reg.Handle(contracts.Token, false)
	require.NoError(t, err)

	out, err := gw.Call(context.Background(), h, "balanceOf", account)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_500_000), out[0].(*big.Int))
}

func TestSubmitNeedsSignedHandle(t *testing.T) {
	wallet := NewWalletMock(lib.GetRandomAddr(), testChainID)
	gw, _, reg := newTestGateway(t, wallet)

	_, err := reg.Handle(contracts.Token, true)
	require.ErrorIs(t, err, rerrors.ErrNoSignerAvailable)

	h, err := reg.Handle(contracts.Token, false)
	require.NoError(t, err)
	_, err = gw.Submit(context.Background(), h, "approve", lib.GetRandomAddr(), big.NewInt(1))
	require.ErrorIs(t, err, rerrors.ErrNoSignerAvailable)
	require.Empty(t, wallet.Sent())
}

func TestSendSurfacesRevertReason(t *testing.T) {
	wallet := NewWalletMock(lib.GetRandomAddr(), testChainID)
	wallet.RevertFunc = func(to common.Address, data []byte) bool { return true }
	wallet.CallFunc = func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("execution reverted: ERC20: insufficient allowance")
	}
	gw, _, reg := newTestGateway(t, wallet)
	_, err := gw.Connect(context.Background())
	require.NoError(t, err)

	h, err := reg.Handle(contracts.Vault, true)
	require.NoError(t, err)

	_, err = gw.Send(context.Background(), h, "deposit", 2, big.NewInt(100), gw.Session().Address)
	require.ErrorIs(t, err, rerrors.ErrContractCallReverted)
	require.Contains(t, rerrors.UserMessage(err), "ERC20: insufficient allowance")
	require.Len(t, wallet.Sent(), 1)
}

func TestSendRejectedByUser(t *testing.T) {
	wallet := NewWalletMock(lib.GetRandomAddr(), testChainID)
	wallet.SendFunc = func(to common.Address, data []byte) error {
		return &RPCError{Code: CodeUserRejected, Message: "User denied transaction signature."}
	}
	gw, _, reg := newTestGateway(t, wallet)
	_, err := gw.Connect(context.Background())
	require.NoError(t, err)

	h, err := reg.Handle(contracts.Token, true)
	require.NoError(t, err)

	_, err = gw.Send(context.Background(), h, "approve", 1, lib.GetRandomAddr(), big.NewInt(1))
	require.ErrorIs(t, err, rerrors.ErrUserRejected)
}

func TestRunHandlesWalletEvents(t *testing.T) {
	wallet := NewWalletMock(lib.GetRandomAddr(), testChainID)
	gw, _, _ := newTestGateway(t, wallet)
	_, err := gw.Connect(context.Background())
	require.NoError(t, err)

	reloaded := make(chan struct{}, 1)
	gw.OnReload(func() { reloaded <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = gw.Run(ctx) }()

	other := lib.GetRandomAddr()
	wallet.Emit(WalletEvent{Type: AccountsChanged, Accounts: []common.Address{other}})
	require.Eventually(t, func() bool { return gw.Session().Address == other }, time.Second, time.Millisecond)

	wallet.Emit(WalletEvent{Type: ChainChanged, ChainIDHex: ChainIDToHex(1)})
	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("reload hook not fired")
	}
	require.False(t, gw.Session().IsConnected)
}
