package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	// CodeUserRejected is returned by the wallet when the user declines a prompt
	CodeUserRejected = 4001
	// CodeUnrecognizedChain is returned on switch to a chain the wallet does not know
	CodeUnrecognizedChain = 4902
)

// RPCError is a wallet provider error carrying a numeric code
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

func HasRPCCode(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

type WalletEventType string

const (
	AccountsChanged WalletEventType = "accountsChanged"
	ChainChanged    WalletEventType = "chainChanged"
)

type WalletEvent struct {
	Type       WalletEventType
	Accounts   []common.Address
	ChainIDHex string
}

// Wallet is the signing capability provided by the host
type Wallet interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainIDHex string) error
	AddChain(ctx context.Context, desc NetworkDescriptor) error
	SignAndSend(ctx context.Context, to common.Address, data []byte) (*types.Transaction, error)
	WaitForConfirmations(ctx context.Context, tx *types.Transaction, n uint64) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	Events() <-chan WalletEvent
}
