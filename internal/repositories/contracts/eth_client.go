package contracts

import (
	"context"
	"math/big"
	"net/url"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthereumClient is the subset of the node API used by the wallet and the event watcher
type EthereumClient interface {
	ethereum.ChainIDReader
	ethereum.ContractCaller
	ethereum.LogFilterer
	ethereum.TransactionSender
	ethereum.GasPricer
	ethereum.GasEstimator

	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	Close()
}

type EthClient struct {
	// config
	url string

	// state
	*ethclient.Client
}

var _ EthereumClient = (*EthClient)(nil)

func DialContext(ctx context.Context, urlString string) (*EthClient, error) {
	if _, err := url.Parse(urlString); err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, urlString)
	if err != nil {
		return nil, err
	}
	return &EthClient{
		Client: client,
		url:    urlString,
	}, nil
}

func (c *EthClient) URL() string {
	return c.url
}
