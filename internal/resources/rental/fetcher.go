package rental

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rentchain/rental-client/internal/errors"
	"github.com/rentchain/rental-client/internal/interfaces"
	"github.com/rentchain/rental-client/internal/lib"
	"github.com/rentchain/rental-client/internal/metrics"
	"github.com/rentchain/rental-client/internal/repositories/cache"
	"github.com/rentchain/rental-client/internal/repositories/contracts"
	"github.com/rentchain/rental-client/internal/resources"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

const (
	entityProperty  = "property"
	entityAgreement = "agreement"
)

func PropertyKey(id uint64) string {
	return "property:" + strconv.FormatUint(id, 10)
}

func AgreementKey(id uint64) string {
	return "agreement:" + strconv.FormatUint(id, 10)
}

// Batch is the result of an enumeration. Items that failed to load are left out and listed in Failed.
type Batch[T any] struct {
	Items    []T               `json:"items"`
	Expected int               `json:"expected"`
	Failed   map[uint64]string `json:"failed,omitempty"`
}

// Partial returns a PartialFetchFailure describing the skipped items, nil when the batch is complete
func (b Batch[T]) Partial(op string) error {
	if len(b.Failed) == 0 {
		return nil
	}
	failed := make(map[string]error, len(b.Failed))
	for id, msg := range b.Failed {
		failed[strconv.FormatUint(id, 10)] = fmt.Errorf("%s", msg)
	}
	return errors.PartialFetch(op, failed)
}

// Fetcher reads marketplace records. Per-item failures never fail an enumeration.
type Fetcher struct {
	// config
	concurrency int

	// deps
	reader   resources.Reader
	handles  resources.HandleProvider
	records  *cache.Records
	statuses *StatusMonitor
	log      interfaces.ILogger
}

func NewFetcher(reader resources.Reader, handles resources.HandleProvider, records *cache.Records, statuses *StatusMonitor, concurrency int, log interfaces.ILogger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		concurrency: concurrency,
		reader:      reader,
		handles:     handles,
		records:     records,
		statuses:    statuses,
		log:         log,
	}
}

func (f *Fetcher) call(ctx context.Context, name contracts.Name, method string, args ...interface{}) ([]interface{}, error) {
	h, err := f.handles.Handle(name, false)
	if err != nil {
		return nil, err
	}
	return f.reader.Call(ctx, h, method, args...)
}

// Property reads and decodes a single property, refreshing its cache entry
func (f *Fetcher) Property(ctx context.Context, id uint64) (Property, error) {
	out, err := f.call(ctx, contracts.PropertyRegistry, "getProperty", new(big.Int).SetUint64(id))
	if err != nil {
		return Property{}, err
	}
	p, err := DecodeProperty(out)
	if err != nil {
		return Property{}, fmt.Errorf("property %d: %w", id, err)
	}
	f.store(ctx, PropertyKey(id), p)
	return p, nil
}

// CachedProperty serves a property from the record cache, reading the chain on a miss
func (f *Fetcher) CachedProperty(ctx context.Context, id uint64) (Property, error) {
	if f.records == nil {
		return f.Property(ctx, id)
	}
	return cache.ReadThrough(ctx, f.records, PropertyKey(id), func(ctx context.Context) (Property, error) {
		return f.Property(ctx, id)
	})
}

// AllProperties enumerates ids 1..propertyCounter
func (f *Fetcher) AllProperties(ctx context.Context) (Batch[Property], error) {
	out, err := f.call(ctx, contracts.PropertyRegistry, "propertyCounter")
	if err != nil {
		return Batch[Property]{}, err
	}
	count, err := DecodeUint(out)
	if err != nil {
		return Batch[Property]{}, err
	}
	if !count.IsUint64() {
		return Batch[Property]{}, fmt.Errorf("property counter %s out of range", count)
	}

	ids := make([]uint64, 0, count.Uint64())
	for id := uint64(1); id <= count.Uint64(); id++ {
		ids = append(ids, id)
	}
	return fetchAll(ctx, f, entityProperty, ids, f.Property), nil
}

func (f *Fetcher) PropertiesByLandlord(ctx context.Context, landlord common.Address) (Batch[Property], error) {
	out, err := f.call(ctx, contracts.PropertyRegistry, "getPropertiesByLandlord", landlord)
	if err != nil {
		return Batch[Property]{}, err
	}
	ids, err := DecodeIDs(out)
	if err != nil {
		return Batch[Property]{}, err
	}
	return fetchAll(ctx, f, entityProperty, lib.NewOrderedSet(ids...).ToSlice(), f.Property), nil
}

// Agreement reads one agreement and checks its status against the last observed one
func (f *Fetcher) Agreement(ctx context.Context, id uint64) (Agreement, error) {
	out, err := f.call(ctx, contracts.AgreementNFT, "getAgreement", new(big.Int).SetUint64(id))
	if err != nil {
		return Agreement{}, err
	}
	a, err := DecodeAgreement(out)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement %d: %w", id, err)
	}
	if f.statuses != nil {
		f.statuses.Observe(a.ID, a.Status)
	}
	f.store(ctx, AgreementKey(id), a)
	return a, nil
}

func (f *Fetcher) CachedAgreement(ctx context.Context, id uint64) (Agreement, error) {
	if f.records == nil {
		return f.Agreement(ctx, id)
	}
	return cache.ReadThrough(ctx, f.records, AgreementKey(id), func(ctx context.Context) (Agreement, error) {
		return f.Agreement(ctx, id)
	})
}

// AgreementIDs returns the union of the landlord and tenant agreement ids of account,
// an agreement where account is both parties is listed once
func (f *Fetcher) AgreementIDs(ctx context.Context, account common.Address) ([]uint64, error) {
	ids := lib.NewOrderedSet[uint64]()
	for _, method := range []string{"getLandlordAgreements", "getTenantAgreements"} {
		out, err := f.call(ctx, contracts.AgreementFactory, method, account)
		if err != nil {
			return nil, err
		}
		list, err := DecodeIDs(out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		ids.Add(list...)
	}
	return ids.ToSlice(), nil
}

func (f *Fetcher) AgreementsFor(ctx context.Context, account common.Address) (Batch[Agreement], error) {
	ids, err := f.AgreementIDs(ctx, account)
	if err != nil {
		return Batch[Agreement]{}, err
	}
	return fetchAll(ctx, f, entityAgreement, ids, f.Agreement), nil
}

func (f *Fetcher) FactoryStats(ctx context.Context) (FactoryStats, error) {
	out, err := f.call(ctx, contracts.AgreementFactory, "getFactoryStats")
	if err != nil {
		return FactoryStats{}, err
	}
	return DecodeFactoryStats(out)
}

func (f *Fetcher) HasPassport(ctx context.Context, account common.Address) (bool, error) {
	out, err := f.call(ctx, contracts.Passport, "balanceOf", account)
	if err != nil {
		return false, err
	}
	n, err := DecodeUint(out)
	if err != nil {
		return false, err
	}
	return n.Sign() > 0, nil
}

// TenantInfo reads the reputation record, without badges
func (f *Fetcher) TenantInfo(ctx context.Context, account common.Address) (TenantReputation, error) {
	out, err := f.call(ctx, contracts.Passport, "getTenantInfo", TokenIDOf(account))
	if err != nil {
		return TenantReputation{}, err
	}
	return DecodeTenantInfo(account, out)
}

// Badges reads all badge flags in one call. A failed read yields no badges rather than an error.
func (f *Fetcher) Badges(ctx context.Context, tokenID *big.Int) [BadgeCount]bool {
	out, err := f.call(ctx, contracts.Passport, "getAllBadges", tokenID)
	if err != nil {
		f.log.Warnf("badges of token %s unavailable: %s", tokenID, err)
		return [BadgeCount]bool{}
	}
	badges, err := DecodeBadges(out)
	if err != nil {
		f.log.Warnf("badges of token %s malformed: %s", tokenID, err)
		return [BadgeCount]bool{}
	}
	return badges
}

// Passport returns the reputation record of account, nil when the account holds no passport
func (f *Fetcher) Passport(ctx context.Context, account common.Address) (*TenantReputation, error) {
	has, err := f.HasPassport(ctx, account)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	rep, err := f.TenantInfo(ctx, account)
	if err != nil {
		return nil, err
	}
	rep.Badges = f.Badges(ctx, rep.TokenID)
	return &rep, nil
}

// Invalidate drops the cached record touched by a contract event. A newly created agreement
// also resets the lifecycle history kept for its id.
func (f *Fetcher) Invalidate(ctx context.Context, ev contracts.ContractEvent) {
	if ev.EntityID == nil || !ev.EntityID.IsUint64() {
		return
	}
	id := ev.EntityID.Uint64()
	if ev.Name == "AgreementCreated" && f.statuses != nil {
		f.statuses.Forget(id)
	}
	if f.records == nil {
		return
	}
	switch ev.Contract {
	case contracts.PropertyRegistry:
		f.records.Invalidate(ctx, PropertyKey(id))
	case contracts.AgreementNFT, contracts.AgreementFactory:
		f.records.Invalidate(ctx, AgreementKey(id))
	}
}

func (f *Fetcher) store(ctx context.Context, key string, record interface{}) {
	if f.records != nil {
		f.records.Put(ctx, key, record)
	}
}

// fetchAll reads every id with bounded concurrency and returns the successes ordered by id
func fetchAll[T any](ctx context.Context, f *Fetcher, entity string, ids []uint64, read func(ctx context.Context, id uint64) (T, error)) Batch[T] {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	results := make([]*T, len(sorted))
	errs := make([]error, len(sorted))

	var grp errgroup.Group
	grp.SetLimit(f.concurrency)
	for i, id := range sorted {
		i, id := i, id
		grp.Go(func() error {
			item, err := read(ctx, id)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &item
			return nil
		})
	}
	_ = grp.Wait()

	batch := Batch[T]{Items: make([]T, 0, len(sorted)), Expected: len(sorted)}
	for i, id := range sorted {
		if errs[i] != nil {
			if batch.Failed == nil {
				batch.Failed = make(map[uint64]string)
			}
			batch.Failed[id] = errs[i].Error()
			metrics.RecordFetchItemFailure(entity)
			f.log.Warnf("skipping %s %d: %s", entity, id, errs[i])
			continue
		}
		batch.Items = append(batch.Items, *results[i])
	}
	return batch
}
