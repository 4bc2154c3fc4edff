package concurrent

import (
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	Submitted      int64
	Completed      int64
	Failed         int64
	Rejected       int64
	AvgProcessTime time.Duration
}

type StatsCollector struct {
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	mutex          sync.Mutex
	totalProcTime  time.Duration
	processedCount int64
}

func NewStatsCollector() *StatsCollector {
	return &StatsCollector{}
}

func (sc *StatsCollector) IncrementSubmitted() { sc.submitted.Add(1) }
func (sc *StatsCollector) IncrementCompleted() { sc.completed.Add(1) }
func (sc *StatsCollector) IncrementFailed()    { sc.failed.Add(1) }
func (sc *StatsCollector) IncrementRejected()  { sc.rejected.Add(1) }

func (sc *StatsCollector) RecordProcessingTime(d time.Duration) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	sc.totalProcTime += d
	sc.processedCount++
}

func (sc *StatsCollector) GetStats() Stats {
	stats := Stats{
		Submitted: sc.submitted.Load(),
		Completed: sc.completed.Load(),
		Failed:    sc.failed.Load(),
		Rejected:  sc.rejected.Load(),
	}

	sc.mutex.Lock()
	if sc.processedCount > 0 {
		stats.AvgProcessTime = sc.totalProcTime / time.Duration(sc.processedCount)
	}
	sc.mutex.Unlock()

	return stats
}
