package domain

import (
	"context"
	"time"
)

type TransactionType string

const (
	TransactionTypeCharge TransactionType = "CHARGE"
	TransactionTypeUse    TransactionType = "USE"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeCharge || t == TransactionTypeUse
}

// Signed returns amount with the sign this transaction type applies to a balance.
func (t TransactionType) Signed(amount int64) int64 {
	if t == TransactionTypeUse {
		return -amount
	}
	return amount
}

type UserPoint struct {
	ID           int64 `json:"id"`
	Point        int64 `json:"point"`
	UpdateMillis int64 `json:"update_millis"`
}

func EmptyUserPoint(userID int64) *UserPoint {
	return &UserPoint{
		ID:           userID,
		Point:        0,
		UpdateMillis: time.Now().UnixMilli(),
	}
}

type PointHistory struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Amount       int64           `json:"amount"`
	Type         TransactionType `json:"type"`
	UpdateMillis int64           `json:"update_millis"`
}

type PointCommand struct {
	UserID int64           `json:"user_id"`
	Amount int64           `json:"amount"`
	Type   TransactionType `json:"type"`
}

type CommandResult struct {
	Command   PointCommand
	UserPoint *UserPoint
	Err       error
}

type BatchStats struct {
	Submitted      int64
	Completed      int64
	Failed         int64
	Rejected       int64
	AvgProcessTime time.Duration
	QueueLength    int
	QueueCapacity  int
}

type UserPointRepository interface {
	FindByUserID(ctx context.Context, userID int64) (*UserPoint, error)
	Upsert(ctx context.Context, userID int64, point int64) (*UserPoint, error)
	Initialize(ctx context.Context, userID int64) (*UserPoint, error)
	Ping(ctx context.Context) error
}

type PointHistoryRepository interface {
	Append(ctx context.Context, userID int64, amount int64, txType TransactionType, updateMillis int64) (*PointHistory, error)
	FindByUserID(ctx context.Context, userID int64) ([]*PointHistory, error)
	Ping(ctx context.Context) error
}

type PointService interface {
	GetUserPoint(ctx context.Context, userID int64) (*UserPoint, error)
	GetUserPointHistories(ctx context.Context, userID int64) ([]*PointHistory, error)
	ChargeUserPoint(ctx context.Context, userID int64, amount int64) (*UserPoint, error)
	UseUserPoint(ctx context.Context, userID int64, amount int64) (*UserPoint, error)
	InitializeUserPoint(ctx context.Context, userID int64) (*UserPoint, error)
}

type BatchService interface {
	ProcessBatch(ctx context.Context, commands []PointCommand) []CommandResult
	Stats() BatchStats
	Shutdown()
}
