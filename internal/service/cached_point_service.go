package service

import (
	"context"
	"time"

	"pointflow/internal/domain"
	"pointflow/pkg/cache"
)

// CachedPointService serves balance reads from the cache and drops the cached
// balance after every write. Histories are never cached.
type CachedPointService struct {
	next  domain.PointService
	cache *cache.Manager
	ttl   time.Duration
}

func NewCachedPointService(next domain.PointService, cacheManager *cache.Manager, ttl time.Duration) *CachedPointService {
	return &CachedPointService{
		next:  next,
		cache: cacheManager,
		ttl:   ttl,
	}
}

func (s *CachedPointService) GetUserPoint(ctx context.Context, userID int64) (*domain.UserPoint, error) {
	return cache.ReadThrough(ctx, s.cache, cache.UserPointCacheKey(userID), func() (*domain.UserPoint, error) {
		return s.next.GetUserPoint(ctx, userID)
	}, s.ttl)
}

func (s *CachedPointService) GetUserPointHistories(ctx context.Context, userID int64) ([]*domain.PointHistory, error) {
	return s.next.GetUserPointHistories(ctx, userID)
}

func (s *CachedPointService) ChargeUserPoint(ctx context.Context, userID int64, amount int64) (*domain.UserPoint, error) {
	return s.invalidateAfter(ctx, userID, func() (*domain.UserPoint, error) {
		return s.next.ChargeUserPoint(ctx, userID, amount)
	})
}

func (s *CachedPointService) UseUserPoint(ctx context.Context, userID int64, amount int64) (*domain.UserPoint, error) {
	return s.invalidateAfter(ctx, userID, func() (*domain.UserPoint, error) {
		return s.next.UseUserPoint(ctx, userID, amount)
	})
}

func (s *CachedPointService) InitializeUserPoint(ctx context.Context, userID int64) (*domain.UserPoint, error) {
	return s.invalidateAfter(ctx, userID, func() (*domain.UserPoint, error) {
		return s.next.InitializeUserPoint(ctx, userID)
	})
}

func (s *CachedPointService) invalidateAfter(ctx context.Context, userID int64, write func() (*domain.UserPoint, error)) (*domain.UserPoint, error) {
	point, err := write()
	if err == nil {
		s.cache.Invalidate(context.WithoutCancel(ctx), cache.UserPointCacheKey(userID))
	}
	return point, err
}
