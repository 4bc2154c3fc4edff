package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pointflow/internal/domain"
	"pointflow/pkg/logger"
)

type UserPointRepository struct {
	db              *sql.DB
	logger          logger.Logger
	requireExisting bool
}

func NewUserPointRepository(db *sql.DB, log logger.Logger, requireExisting bool) *UserPointRepository {
	return &UserPointRepository{
		db:              db,
		logger:          log,
		requireExisting: requireExisting,
	}
}

func (r *UserPointRepository) FindByUserID(ctx context.Context, userID int64) (*domain.UserPoint, error) {
	query := `
		SELECT user_id, point, update_millis
		FROM user_points
		WHERE user_id = $1
	`

	var point domain.UserPoint
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&point.ID,
		&point.Point,
		&point.UpdateMillis,
	)

	if errors.Is(err, sql.ErrNoRows) {
		if r.requireExisting {
			return nil, domain.ErrUserNotFound
		}
		return domain.EmptyUserPoint(userID), nil
	}

	if err != nil {
		r.logger.Error("Failed to read user point", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("failed to read user point: %w", err)
	}

	return &point, nil
}

func (r *UserPointRepository) Upsert(ctx context.Context, userID int64, point int64) (*domain.UserPoint, error) {
	query := `
		INSERT INTO user_points (user_id, point, update_millis)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET point = excluded.point,
		    update_millis = CASE
		        WHEN excluded.update_millis > user_points.update_millis THEN excluded.update_millis
		        ELSE user_points.update_millis
		    END
		RETURNING user_id, point, update_millis
	`

	var updated domain.UserPoint
	err := r.db.QueryRowContext(ctx, query, userID, point, time.Now().UnixMilli()).Scan(
		&updated.ID,
		&updated.Point,
		&updated.UpdateMillis,
	)

	if err != nil {
		r.logger.Error("Failed to upsert user point", map[string]interface{}{
			"user_id": userID,
			"point":   point,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("failed to upsert user point: %w", err)
	}

	return &updated, nil
}

func (r *UserPointRepository) Initialize(ctx context.Context, userID int64) (*domain.UserPoint, error) {
	query := `
		INSERT INTO user_points (user_id, point, update_millis)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UnixMilli()); err != nil {
		r.logger.Error("Failed to initialize user point", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("failed to initialize user point: %w", err)
	}

	return r.FindByUserID(ctx, userID)
}

func (r *UserPointRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
