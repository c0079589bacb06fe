package contracts

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/stretchr/testify/require"
)

type fakeLogFilterer struct {
	mu      sync.Mutex
	head    uint64
	reads   int
	logs    []types.Log
	queries []ethereum.FilterQuery
}

func (f *fakeLogFilterer) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.head, nil
}

func (f *fakeLogFilterer) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	logs := f.logs
	f.logs = nil
	return logs, nil
}

func (f *fakeLogFilterer) push(head uint64, logs ...types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = head
	f.logs = append(f.logs, logs...)
}

func TestEventWatcherDecodesLogs(t *testing.T) {
	reg, err := NewRegistry(testAddresses(), nil)
	require.NoError(t, err)

	client := &fakeLogFilterer{head: 10}
	events := make(chan ContractEvent, 4)
	w := NewEventWatcher(client, reg, []Name{PropertyRegistry, AgreementNFT}, 5*time.Millisecond, 2,
		func(ctx context.Context, ev ContractEvent) { events <- ev }, lib.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.reads > 0
	}, time.Second, time.Millisecond)

	client.push(12,
		types.Log{
			Address:     reg.Address(AgreementNFT),
			Topics:      []common.Hash{AgreementNFTABI.Events["RentPaid"].ID, common.BigToHash(big.NewInt(7))},
			BlockNumber: 11,
		},
		types.Log{
			Address: reg.Address(AgreementNFT),
			Topics:  []common.Hash{AgreementNFTABI.Events["RentPaid"].ID, common.BigToHash(big.NewInt(8))},
			Removed: true,
		},
		types.Log{
			Address:     reg.Address(PropertyRegistry),
			Topics:      []common.Hash{PropertyRegistryABI.Events["PropertyVerified"].ID, common.BigToHash(big.NewInt(3))},
			BlockNumber: 12,
		},
	)

	var got []ContractEvent
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	require.Equal(t, AgreementNFT, got[0].Contract)
	require.Equal(t, "RentPaid", got[0].Name)
	require.Equal(t, int64(7), got[0].EntityID.Int64())
	require.Equal(t, PropertyRegistry, got[1].Contract)
	require.Equal(t, "PropertyVerified", got[1].Name)
	require.Equal(t, int64(3), got[1].EntityID.Int64())

	client.mu.Lock()
	defer client.mu.Unlock()
	require.NotEmpty(t, client.queries)
	require.Equal(t, uint64(11), client.queries[0].FromBlock.Uint64())
}
