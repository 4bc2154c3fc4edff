package repository

import (
	"context"
	"sync"

	"pointflow/internal/domain"
)

type MemoryPointHistoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byUser map[int64][]domain.PointHistory
}

func NewMemoryPointHistoryRepository() *MemoryPointHistoryRepository {
	return &MemoryPointHistoryRepository{
		byUser: make(map[int64][]domain.PointHistory),
	}
}

func (r *MemoryPointHistoryRepository) Append(_ context.Context, userID int64, amount int64, txType domain.TransactionType, updateMillis int64) (*domain.PointHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	entry := domain.PointHistory{
		ID:           r.nextID,
		UserID:       userID,
		Amount:       amount,
		Type:         txType,
		UpdateMillis: updateMillis,
	}
	r.byUser[userID] = append(r.byUser[userID], entry)

	return &entry, nil
}

func (r *MemoryPointHistoryRepository) FindByUserID(_ context.Context, userID int64) ([]*domain.PointHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.byUser[userID]
	histories := make([]*domain.PointHistory, 0, len(entries))
	for i := range entries {
		entry := entries[i]
		histories = append(histories, &entry)
	}

	return histories, nil
}

func (r *MemoryPointHistoryRepository) Ping(_ context.Context) error {
	return nil
}
