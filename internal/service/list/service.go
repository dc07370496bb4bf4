package list

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/homefleet/shoplist/internal/cache"
	"github.com/homefleet/shoplist/internal/config"
	"github.com/homefleet/shoplist/internal/entity"
	repo "github.com/homefleet/shoplist/internal/repository/order"
	"github.com/homefleet/shoplist/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/homefleet/shoplist/service/list")

// activeListKey caches the rendered active list between store mutations.
const activeListKey = "orders:active"

// Store is the slice of the order repository the list view needs.
type Store interface {
	ListActive(ctx context.Context) ([]entity.Order, error)
	SetFulfilled(ctx context.Context, id int64) error
	SetAmount(ctx context.Context, id int64, amount *int64) error
}

// Edit is one user change to an existing row: a check-off, an amended
// amount, or both.
type Edit struct {
	ID        int64
	Fulfilled bool
	Amount    *int64
}

// EditResult reports what happened to one edit during a commit.
type EditResult struct {
	ID      int64
	Updated bool
	Err     error
}

// Service backs the list view: cached active reads and batched write-back
// of user edits.
type Service struct {
	store    Store
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store  Store
	Cache  cache.Store
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new list Service.
func NewService(p Params) *Service {
	return &Service{
		store:    p.Store,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
	}
}

// ListActive returns every open order, serving from cache when possible.
func (s *Service) ListActive(ctx context.Context) ([]entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "ListService.ListActive")
	defer span.End()

	if orders, err := s.fromCache(ctx); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return orders, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("active list cache read failed", zap.Error(err))
	}

	orders, err := s.store.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store read failed")
		return nil, errorbank.Internal("failed to load shopping list", errorbank.WithCause(err))
	}

	s.storeInCache(ctx, orders)
	return orders, nil
}

// Commit issues every edit of the current view in one batch: check-offs
// first, then amount corrections for rows the user left on the list. A
// missing id fails that row only; the rest of the batch proceeds. Callers
// refresh from the store afterwards, there is no local merge.
func (s *Service) Commit(ctx context.Context, edits []Edit) []EditResult {
	ctx, span := serviceTracer.Start(ctx, "ListService.Commit", trace.WithAttributes(attribute.Int("list.edits", len(edits))))
	defer span.End()

	results := make([]EditResult, 0, len(edits))
	for _, edit := range edits {
		result := EditResult{ID: edit.ID}

		if edit.Fulfilled {
			if err := s.store.SetFulfilled(ctx, edit.ID); err != nil {
				result.Err = err
				results = append(results, result)
				continue
			}
			result.Updated = true
		}
		if edit.Amount != nil {
			if err := s.store.SetAmount(ctx, edit.ID, edit.Amount); err != nil {
				result.Err = err
				results = append(results, result)
				continue
			}
			result.Updated = true
		}
		results = append(results, result)
	}

	for _, result := range results {
		if result.Err != nil {
			s.logger.Warn("edit skipped",
				zap.Int64("id", result.ID),
				zap.Bool("missing", errors.Is(result.Err, repo.ErrNotFound)),
				zap.Error(result.Err),
			)
		}
	}

	s.Invalidate(ctx)
	return results
}

// Invalidate drops the cached active list after a store mutation.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activeListKey); err != nil {
		s.logger.Warn("active list cache invalidation failed", zap.Error(err))
	}
}

// Refresh re-reads the store and rewrites the cached list. Used by the
// background worker to warm the cache after order-created events.
func (s *Service) Refresh(ctx context.Context) error {
	orders, err := s.store.ListActive(ctx)
	if err != nil {
		return err
	}
	s.storeInCache(ctx, orders)
	return nil
}

func (s *Service) fromCache(ctx context.Context) ([]entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, activeListKey)
	if err != nil {
		return nil, err
	}
	var orders []entity.Order
	if err := json.Unmarshal(bytes, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Service) storeInCache(ctx context.Context, orders []entity.Order) {
	if s.cache == nil {
		return
	}
	bytes, err := json.Marshal(orders)
	if err != nil {
		s.logger.Warn("active list cache encode failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, activeListKey, bytes, s.cacheTTL); err != nil {
		s.logger.Warn("active list cache write failed", zap.Error(err))
	}
}
