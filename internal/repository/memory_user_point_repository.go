package repository

import (
	"context"
	"sync"
	"time"

	"pointflow/internal/domain"
)

// MemoryUserPointRepository keeps balances in a map. Reads take a shared lock,
// so concurrent lookups for different users never wait on each other.
type MemoryUserPointRepository struct {
	mu              sync.RWMutex
	points          map[int64]domain.UserPoint
	requireExisting bool
	now             func() time.Time
}

func NewMemoryUserPointRepository(requireExisting bool) *MemoryUserPointRepository {
	return &MemoryUserPointRepository{
		points:          make(map[int64]domain.UserPoint),
		requireExisting: requireExisting,
		now:             time.Now,
	}
}

func (r *MemoryUserPointRepository) FindByUserID(_ context.Context, userID int64) (*domain.UserPoint, error) {
	r.mu.RLock()
	point, ok := r.points[userID]
	r.mu.RUnlock()

	if !ok {
		if r.requireExisting {
			return nil, domain.ErrUserNotFound
		}
		return domain.EmptyUserPoint(userID), nil
	}

	return &point, nil
}

func (r *MemoryUserPointRepository) Upsert(_ context.Context, userID int64, point int64) (*domain.UserPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updateMillis := r.now().UnixMilli()
	if prev, ok := r.points[userID]; ok && prev.UpdateMillis > updateMillis {
		updateMillis = prev.UpdateMillis
	}

	updated := domain.UserPoint{ID: userID, Point: point, UpdateMillis: updateMillis}
	r.points[userID] = updated

	return &updated, nil
}

func (r *MemoryUserPointRepository) Initialize(_ context.Context, userID int64) (*domain.UserPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.points[userID]; ok {
		return &existing, nil
	}

	created := domain.UserPoint{ID: userID, Point: 0, UpdateMillis: r.now().UnixMilli()}
	r.points[userID] = created

	return &created, nil
}

func (r *MemoryUserPointRepository) Ping(_ context.Context) error {
	return nil
}
