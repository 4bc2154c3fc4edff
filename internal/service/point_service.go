package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pointflow/internal/concurrent"
	"pointflow/internal/domain"
	"pointflow/pkg/logger"
	"pointflow/pkg/metrics"
	"pointflow/pkg/tracing"
)

type balanceRule func(currentPoint, amount int64) error

// PointService serializes balance mutations per user through the lock
// manager. Reads go straight to the stores.
type PointService struct {
	pointRepo   domain.UserPointRepository
	historyRepo domain.PointHistoryRepository
	locks       *concurrent.LockManager
	lockTimeout time.Duration
	logger      logger.Logger
}

func NewPointService(
	pointRepo domain.UserPointRepository,
	historyRepo domain.PointHistoryRepository,
	locks *concurrent.LockManager,
	lockTimeout time.Duration,
	log logger.Logger,
) *PointService {
	return &PointService{
		pointRepo:   pointRepo,
		historyRepo: historyRepo,
		locks:       locks,
		lockTimeout: lockTimeout,
		logger:      log.WithFields(map[string]interface{}{"component": "point_service"}),
	}
}

func (s *PointService) GetUserPoint(ctx context.Context, userID int64) (*domain.UserPoint, error) {
	point, err := s.pointRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user point %d: %w", userID, err)
	}

	return point, nil
}

func (s *PointService) GetUserPointHistories(ctx context.Context, userID int64) ([]*domain.PointHistory, error) {
	if _, err := s.pointRepo.FindByUserID(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to get point histories %d: %w", userID, err)
	}

	histories, err := s.historyRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get point histories %d: %w", userID, err)
	}

	return histories, nil
}

func (s *PointService) ChargeUserPoint(ctx context.Context, userID int64, amount int64) (*domain.UserPoint, error) {
	if err := domain.ValidateChargeAmount(amount); err != nil {
		s.reject(ctx, domain.TransactionTypeCharge, userID, amount, err)
		return nil, err
	}

	return s.mutate(ctx, userID, amount, domain.TransactionTypeCharge, domain.ValidateMaxHold)
}

func (s *PointService) UseUserPoint(ctx context.Context, userID int64, amount int64) (*domain.UserPoint, error) {
	if err := domain.ValidateUseAmount(amount); err != nil {
		s.reject(ctx, domain.TransactionTypeUse, userID, amount, err)
		return nil, err
	}

	return s.mutate(ctx, userID, amount, domain.TransactionTypeUse, domain.ValidateSufficientBalance)
}

// InitializeUserPoint registers a zero balance for userID. It is a no-op for
// users that already have one.
func (s *PointService) InitializeUserPoint(ctx context.Context, userID int64) (*domain.UserPoint, error) {
	lock, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	point, err := s.pointRepo.Initialize(context.WithoutCancel(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize user point %d: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "User point initialized", map[string]interface{}{
		"user_id": userID,
		"point":   point.Point,
	})

	return point, nil
}

func (s *PointService) mutate(ctx context.Context, userID int64, amount int64, txType domain.TransactionType, rule balanceRule) (result *domain.UserPoint, err error) {
	ctx, span := tracing.StartSpan(ctx, "point."+strings.ToLower(string(txType)))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("point.amount", amount),
	)

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	lock, err := s.acquire(ctx, userID)
	if err != nil {
		metrics.RecordPointTransaction(string(txType), "timeout")
		s.logger.WarnContext(ctx, "Could not acquire user lock", map[string]interface{}{
			"user_id": userID,
			"type":    txType,
			"error":   err.Error(),
		})
		return nil, err
	}
	defer lock.Release()

	// Once the lock is held the operation runs to completion, so a caller that
	// goes away cannot leave a balance written without its history entry.
	opCtx := context.WithoutCancel(ctx)

	current, err := s.pointRepo.FindByUserID(opCtx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.reject(ctx, txType, userID, amount, err)
		return nil, fmt.Errorf("failed to read user point %d: %w", userID, err)
	}
	if err != nil {
		metrics.RecordPointTransaction(string(txType), "error")
		return nil, fmt.Errorf("failed to read user point %d: %w", userID, err)
	}

	if err := rule(current.Point, amount); err != nil {
		s.reject(ctx, txType, userID, amount, err)
		return nil, err
	}

	updated, err := s.pointRepo.Upsert(opCtx, userID, current.Point+txType.Signed(amount))
	if err != nil {
		metrics.RecordPointTransaction(string(txType), "error")
		return nil, fmt.Errorf("failed to write user point %d: %w", userID, err)
	}

	if _, err := s.historyRepo.Append(opCtx, userID, amount, txType, updated.UpdateMillis); err != nil {
		metrics.RecordPointTransaction(string(txType), "error")
		s.restore(opCtx, current, err)
		return nil, fmt.Errorf("failed to record point history %d: %w", userID, err)
	}

	metrics.RecordPointTransaction(string(txType), "success")
	s.logger.InfoContext(ctx, "Point transaction applied", map[string]interface{}{
		"user_id":  userID,
		"type":     txType,
		"amount":   amount,
		"previous": current.Point,
		"point":    updated.Point,
	})

	return updated, nil
}

// restore puts back the balance read at the start of a mutation whose history
// append failed. Called with the user lock held.
func (s *PointService) restore(ctx context.Context, previous *domain.UserPoint, cause error) {
	if _, err := s.pointRepo.Upsert(ctx, previous.ID, previous.Point); err != nil {
		s.logger.ErrorContext(ctx, "Failed to restore user point after history error", map[string]interface{}{
			"user_id": previous.ID,
			"point":   previous.Point,
			"cause":   cause.Error(),
			"error":   err.Error(),
		})
		return
	}

	s.logger.WarnContext(ctx, "User point restored after history error", map[string]interface{}{
		"user_id": previous.ID,
		"point":   previous.Point,
		"cause":   cause.Error(),
	})
}

func (s *PointService) acquire(ctx context.Context, userID int64) (*concurrent.UserLock, error) {
	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	start := time.Now()
	lock, err := s.locks.Acquire(waitCtx, userID)
	wait := time.Since(start)

	if err != nil {
		metrics.RecordLockWait("timeout", wait, s.locks.Len())
		return nil, fmt.Errorf("%w: user %d after %s: %w", domain.ErrLockTimeout, userID, wait.Round(time.Millisecond), err)
	}

	metrics.RecordLockWait("acquired", wait, s.locks.Len())
	return lock, nil
}

func (s *PointService) reject(ctx context.Context, txType domain.TransactionType, userID int64, amount int64, err error) {
	metrics.RecordPointTransaction(string(txType), "rejected")

	fields := map[string]interface{}{
		"user_id": userID,
		"type":    txType,
		"amount":  amount,
		"error":   err.Error(),
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		s.logger.WarnContext(ctx, "Point transaction for unknown user", fields)
		return
	}
	s.logger.InfoContext(ctx, "Point transaction rejected", fields)
}
