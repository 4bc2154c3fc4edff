package concurrent

import (
	"context"
	"sync"
	"time"

	"pointflow/pkg/logger"
	"pointflow/pkg/metrics"
)

type Processor[T any] func(ctx context.Context, job T) error

// WorkerPool runs jobs on a fixed number of goroutines. Submit never blocks:
// when the queue is full the job is rejected.
type WorkerPool[T any] struct {
	numWorkers     int
	jobQueue       chan T
	processor      Processor[T]
	wg             sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
	logger         logger.Logger
	started        bool
	stopped        bool
	mutex          sync.Mutex
	statsCollector *StatsCollector
}

func NewWorkerPool[T any](numWorkers int, queueSize int, processor Processor[T], log logger.Logger) *WorkerPool[T] {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool[T]{
		numWorkers:     numWorkers,
		jobQueue:       make(chan T, queueSize),
		processor:      processor,
		ctx:            ctx,
		cancel:         cancel,
		logger:         log.WithFields(map[string]interface{}{"component": "worker_pool"}),
		statsCollector: NewStatsCollector(),
	}
}

func (wp *WorkerPool[T]) Start() {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if wp.started || wp.stopped {
		return
	}

	wp.logger.Info("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"queue_size":  cap(wp.jobQueue),
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		workerID := i
		go func() {
			defer wp.wg.Done()
			wp.worker(workerID)
		}()
	}

	wp.started = true
}

// Stop drains the queue and waits for in-flight jobs. A stopped pool cannot
// be restarted.
func (wp *WorkerPool[T]) Stop() {
	wp.mutex.Lock()
	if !wp.started {
		wp.mutex.Unlock()
		return
	}
	wp.started = false
	wp.stopped = true
	close(wp.jobQueue)
	wp.mutex.Unlock()

	wp.logger.Info("Stopping worker pool", map[string]interface{}{})
	wp.wg.Wait()
	wp.cancel()
}

func (wp *WorkerPool[T]) Submit(job T) bool {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()

	if !wp.started {
		wp.statsCollector.IncrementRejected()
		return false
	}

	select {
	case wp.jobQueue <- job:
		wp.statsCollector.IncrementSubmitted()
		metrics.RecordWorkerJob("submitted", len(wp.jobQueue))
		return true
	default:
		wp.statsCollector.IncrementRejected()
		metrics.RecordWorkerJob("rejected", len(wp.jobQueue))
		wp.logger.Warn("Job queue is full, job rejected", map[string]interface{}{
			"queue_capacity": cap(wp.jobQueue),
		})
		return false
	}
}

func (wp *WorkerPool[T]) worker(id int) {
	wp.logger.Debug("Worker started", map[string]interface{}{"worker_id": id})

	for job := range wp.jobQueue {
		startTime := time.Now()

		err := wp.processor(wp.ctx, job)
		processingTime := time.Since(startTime)

		if err != nil {
			wp.statsCollector.IncrementFailed()
			metrics.RecordWorkerJob("failed", len(wp.jobQueue))
			wp.logger.Error("Job failed", map[string]interface{}{
				"worker_id":       id,
				"error":           err.Error(),
				"processing_time": processingTime.String(),
			})
			continue
		}

		wp.statsCollector.IncrementCompleted()
		wp.statsCollector.RecordProcessingTime(processingTime)
		metrics.RecordWorkerJob("completed", len(wp.jobQueue))
		wp.logger.Debug("Job completed", map[string]interface{}{
			"worker_id":       id,
			"processing_time": processingTime.String(),
		})
	}

	wp.logger.Debug("Job queue closed, worker exiting", map[string]interface{}{"worker_id": id})
}

func (wp *WorkerPool[T]) GetStats() Stats {
	return wp.statsCollector.GetStats()
}

func (wp *WorkerPool[T]) QueueLength() int {
	return len(wp.jobQueue)
}

func (wp *WorkerPool[T]) QueueCapacity() int {
	return cap(wp.jobQueue)
}
