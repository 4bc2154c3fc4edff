package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pointflow/internal/concurrent"
	"pointflow/internal/domain"
	"pointflow/pkg/logger"
)

// userBatch is one worker pool job: every command of a batch that targets the
// same user, in submission order.
type userBatch struct {
	ctx     context.Context
	userID  int64
	indexes []int
	results []domain.CommandResult
	done    func()
}

type BatchService struct {
	points domain.PointService
	pool   *concurrent.WorkerPool[*userBatch]
	logger logger.Logger
}

func NewBatchService(points domain.PointService, numWorkers, queueSize int, log logger.Logger) *BatchService {
	s := &BatchService{
		points: points,
		logger: log.WithFields(map[string]interface{}{"component": "batch_service"}),
	}

	s.pool = concurrent.NewWorkerPool(numWorkers, queueSize, s.process, log)
	s.pool.Start()

	return s
}

// ProcessBatch applies commands and returns one result per command, in input
// order. Commands for the same user run sequentially in input order; different
// users run in parallel.
func (s *BatchService) ProcessBatch(ctx context.Context, commands []domain.PointCommand) []domain.CommandResult {
	results := make([]domain.CommandResult, len(commands))

	groups := make(map[int64]*userBatch)
	order := make([]int64, 0)

	for i, cmd := range commands {
		results[i].Command = cmd

		if !cmd.Type.Valid() {
			results[i].Err = fmt.Errorf("%w: %q", domain.ErrInvalidType, cmd.Type)
			continue
		}
		if cmd.UserID <= 0 {
			results[i].Err = fmt.Errorf("%w: %d", domain.ErrInvalidUserID, cmd.UserID)
			continue
		}

		batch, ok := groups[cmd.UserID]
		if !ok {
			batch = &userBatch{ctx: ctx, userID: cmd.UserID, results: results}
			groups[cmd.UserID] = batch
			order = append(order, cmd.UserID)
		}
		batch.indexes = append(batch.indexes, i)
	}

	var wg sync.WaitGroup
	wg.Add(len(order))

	for _, userID := range order {
		batch := groups[userID]
		batch.done = wg.Done

		if !s.pool.Submit(batch) {
			for _, idx := range batch.indexes {
				results[idx].Err = domain.ErrQueueFull
			}
			wg.Done()
		}
	}

	wg.Wait()

	s.logger.InfoContext(ctx, "Batch processed", map[string]interface{}{
		"commands": len(commands),
		"users":    len(order),
	})

	return results
}

// process reports only failures that are not business rejections, so refused
// commands still count as completed jobs in the pool stats.
func (s *BatchService) process(_ context.Context, batch *userBatch) error {
	defer batch.done()

	var errs []error
	for _, idx := range batch.indexes {
		cmd := batch.results[idx].Command

		if err := batch.ctx.Err(); err != nil {
			batch.results[idx].Err = err
			errs = append(errs, err)
			continue
		}

		var point *domain.UserPoint
		var err error
		switch cmd.Type {
		case domain.TransactionTypeCharge:
			point, err = s.points.ChargeUserPoint(batch.ctx, cmd.UserID, cmd.Amount)
		case domain.TransactionTypeUse:
			point, err = s.points.UseUserPoint(batch.ctx, cmd.UserID, cmd.Amount)
		}

		batch.results[idx].UserPoint = point
		batch.results[idx].Err = err
		switch {
		case err == nil:
		case domain.IsRejection(err):
			s.logger.DebugContext(batch.ctx, "Batch command rejected", map[string]interface{}{
				"user_id": cmd.UserID,
				"type":    cmd.Type,
				"amount":  cmd.Amount,
				"error":   err.Error(),
			})
		default:
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *BatchService) Stats() domain.BatchStats {
	stats := s.pool.GetStats()

	return domain.BatchStats{
		Submitted:      stats.Submitted,
		Completed:      stats.Completed,
		Failed:         stats.Failed,
		Rejected:       stats.Rejected,
		AvgProcessTime: stats.AvgProcessTime,
		QueueLength:    s.pool.QueueLength(),
		QueueCapacity:  s.pool.QueueCapacity(),
	}
}

func (s *BatchService) Shutdown() {
	s.pool.Stop()
}
