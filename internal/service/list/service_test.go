package list

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homefleet/shoplist/internal/cache"
	"github.com/homefleet/shoplist/internal/config"
	"github.com/homefleet/shoplist/internal/entity"
	repo "github.com/homefleet/shoplist/internal/repository/order"
)

type fakeStore struct {
	orders    map[int64]*entity.Order
	listCalls int
}

func newFakeStore(products ...string) *fakeStore {
	store := &fakeStore{orders: make(map[int64]*entity.Order)}
	for i, product := range products {
		id := int64(i + 1)
		store.orders[id] = &entity.Order{ID: id, Product: product, Status: entity.StatusActive}
	}
	return store
}

func (f *fakeStore) ListActive(context.Context) ([]entity.Order, error) {
	f.listCalls++
	var active []entity.Order
	for id := int64(1); id <= int64(len(f.orders)); id++ {
		if order, ok := f.orders[id]; ok && order.Active() {
			active = append(active, *order)
		}
	}
	return active, nil
}

func (f *fakeStore) SetFulfilled(_ context.Context, id int64) error {
	order, ok := f.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	order.Status = entity.StatusFulfilled
	return nil
}

func (f *fakeStore) SetAmount(_ context.Context, id int64, amount *int64) error {
	if amount == nil {
		return nil
	}
	order, ok := f.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	order.Amount = amount
	return nil
}

type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := f.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func newTestService(store *fakeStore, c cache.Store) *Service {
	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	return NewService(Params{
		Store:  store,
		Cache:  c,
		Config: cfg,
		Logger: zap.NewNop(),
	})
}

func TestListActiveReadsThroughCache(t *testing.T) {
	store := newFakeStore("milk", "eggs")
	svc := newTestService(store, newFakeCache())
	ctx := context.Background()

	orders, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, 1, store.listCalls)

	// Second read is served from cache.
	orders, err = svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, 1, store.listCalls)
}

func TestCommitAppliesEditsAndInvalidates(t *testing.T) {
	store := newFakeStore("milk", "eggs", "flour")
	c := newFakeCache()
	svc := newTestService(store, c)
	ctx := context.Background()

	_, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Contains(t, c.entries, activeListKey)

	seven := int64(7)
	results := svc.Commit(ctx, []Edit{
		{ID: 1, Fulfilled: true},
		{ID: 2, Amount: &seven},
	})
	require.Len(t, results, 2)
	assert.True(t, results[0].Updated)
	assert.True(t, results[1].Updated)

	// Cache is dropped so the next render reloads from the store.
	assert.NotContains(t, c.entries, activeListKey)

	orders, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.NotNil(t, orders[0].Amount)
	assert.Equal(t, int64(7), *orders[0].Amount)
}

func TestCommitMissingIDContinuesBatch(t *testing.T) {
	store := newFakeStore("milk")
	svc := newTestService(store, newFakeCache())
	ctx := context.Background()

	results := svc.Commit(ctx, []Edit{
		{ID: 999, Fulfilled: true},
		{ID: 1, Fulfilled: true},
	})
	require.Len(t, results, 2)

	assert.False(t, results[0].Updated)
	assert.True(t, errors.Is(results[0].Err, repo.ErrNotFound))
	assert.True(t, results[1].Updated)

	// The active set only lost the row that existed.
	orders, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCommitNilAmountIsNoop(t *testing.T) {
	store := newFakeStore("milk")
	five := int64(5)
	store.orders[1].Amount = &five
	svc := newTestService(store, newFakeCache())

	results := svc.Commit(context.Background(), []Edit{{ID: 1}})
	require.Len(t, results, 1)
	assert.False(t, results[0].Updated)
	assert.NoError(t, results[0].Err)

	require.NotNil(t, store.orders[1].Amount)
	assert.Equal(t, int64(5), *store.orders[1].Amount)
}

func TestRefreshRewritesCache(t *testing.T) {
	store := newFakeStore("milk")
	c := newFakeCache()
	svc := newTestService(store, c)
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx))
	require.Contains(t, c.entries, activeListKey)

	// A cached read after Refresh does not touch the store again.
	calls := store.listCalls
	_, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, calls, store.listCalls)
}
