package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pointflow/internal/domain"
	"pointflow/pkg/logger"
)

type PointHistoryRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPointHistoryRepository(db *sql.DB, log logger.Logger) *PointHistoryRepository {
	return &PointHistoryRepository{
		db:     db,
		logger: log,
	}
}

func (r *PointHistoryRepository) Append(ctx context.Context, userID int64, amount int64, txType domain.TransactionType, updateMillis int64) (*domain.PointHistory, error) {
	query := `
		INSERT INTO point_histories (user_id, amount, type, update_millis)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	entry := domain.PointHistory{
		UserID:       userID,
		Amount:       amount,
		Type:         txType,
		UpdateMillis: updateMillis,
	}

	err := r.db.QueryRowContext(ctx, query, userID, amount, string(txType), updateMillis).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("Failed to append point history", map[string]interface{}{
			"user_id": userID,
			"amount":  amount,
			"type":    txType,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("failed to append point history: %w", err)
	}

	return &entry, nil
}

func (r *PointHistoryRepository) FindByUserID(ctx context.Context, userID int64) ([]*domain.PointHistory, error) {
	query := `
		SELECT id, user_id, amount, type, update_millis
		FROM point_histories
		WHERE user_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to read point histories", map[string]interface{}{"user_id": userID, "error": err.Error()})
		return nil, fmt.Errorf("failed to read point histories: %w", err)
	}
	defer rows.Close()

	histories := make([]*domain.PointHistory, 0)
	for rows.Next() {
		var entry domain.PointHistory
		var txType string

		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Amount, &txType, &entry.UpdateMillis); err != nil {
			return nil, fmt.Errorf("failed to scan point history: %w", err)
		}

		entry.Type = domain.TransactionType(txType)
		histories = append(histories, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate point histories: %w", err)
	}

	return histories, nil
}

func (r *PointHistoryRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
