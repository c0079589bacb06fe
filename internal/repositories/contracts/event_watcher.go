package contracts

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rentchain/rental-client/internal/interfaces"
)

// ContractEvent is a decoded log of one of the watched contracts. EntityID is the first
// indexed argument, the property or agreement id for every event we watch.
type ContractEvent struct {
	Contract    Name
	Name        string
	EntityID    *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

type EventHandler func(ctx context.Context, ev ContractEvent)

// LogFilterer is what the watcher needs from the node
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EventWatcher polls contract logs and hands decoded events to the handler
type EventWatcher struct {
	// config
	maxRetries   int
	pollInterval time.Duration
	contracts    map[common.Address]Name

	// deps
	client  LogFilterer
	handler EventHandler
	log     interfaces.ILogger
}

func NewEventWatcher(client LogFilterer, registry *Registry, names []Name, pollInterval time.Duration, maxRetries int, handler EventHandler, log interfaces.ILogger) *EventWatcher {
	watched := make(map[common.Address]Name, len(names))
	for _, name := range names {
		watched[registry.Address(name)] = name
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &EventWatcher{
		maxRetries:   maxRetries,
		pollInterval: pollInterval,
		contracts:    watched,
		client:       client,
		handler:      handler,
		log:          log,
	}
}

// Run watches from the current head until ctx is cancelled
func (w *EventWatcher) Run(ctx context.Context) error {
	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	next := head + 1

	addrs := make([]common.Address, 0, len(w.contracts))
	for addr := range w.contracts {
		addrs = append(addrs, addr)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.pollInterval):
		}

		head, err := w.client.BlockNumber(ctx)
		if err != nil {
			w.log.Warnf("failed to read head block: %s", err)
			continue
		}
		if head < next {
			continue
		}

		logs, err := w.filterLogsRetry(ctx, ethereum.FilterQuery{
			Addresses: addrs,
			FromBlock: new(big.Int).SetUint64(next),
			ToBlock:   new(big.Int).SetUint64(head),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warnf("failed to filter logs, will retry on next poll: %s", err)
			continue
		}

		for _, l := range logs {
			if l.Removed {
				continue
			}
			ev, err := w.mapLog(l)
			if err != nil {
				w.log.Debugf("skipping log %s: %s", l.TxHash, err)
				continue
			}
			w.handler(ctx, ev)
		}
		next = head + 1
	}
}

func (w *EventWatcher) mapLog(l types.Log) (ContractEvent, error) {
	name, ok := w.contracts[l.Address]
	if !ok {
		return ContractEvent{}, fmt.Errorf("log from unwatched address %s", l.Address)
	}
	if len(l.Topics) < 2 {
		return ContractEvent{}, fmt.Errorf("log has no indexed id")
	}
	event, err := abis[name].EventByID(l.Topics[0])
	if err != nil {
		return ContractEvent{}, err
	}
	return ContractEvent{
		Contract:    name,
		Name:        event.Name,
		EntityID:    new(big.Int).SetBytes(l.Topics[1].Bytes()),
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
	}, nil
}

func (w *EventWatcher) filterLogsRetry(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var lastErr error

	for attempts := 0; attempts < w.maxRetries; attempts++ {
		logs, err := w.client.FilterLogs(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}
		if attempts > 0 {
			w.log.Warnf("log filter recovered after error: %s", lastErr)
		}

		return logs, nil
	}

	return nil, lastErr
}
