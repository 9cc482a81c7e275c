package purger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/photovault/internal/logging"
)

// Status accumulates pipeline counters and periodically reports progress on a
// side goroutine, so reporting never blocks the purge loop. Counters are
// atomics: the loop writes them between rounds while the reporter reads them
// on its own ticker.
type Status struct {
	logger   logging.Logger
	interval time.Duration

	totalRequests  atomic.Int64
	failedRequests atomic.Int64
	totalPurged    atomic.Int64
	quarantined    atomic.Int64

	started  time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewStatus constructs a Status reporting at the given interval.
func NewStatus(logger logging.Logger, interval time.Duration) *Status {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Status{
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start records the pipeline start time and launches the interval reporter.
func (s *Status) Start() {
	s.started = time.Now()
	go s.report()
}

// Stop halts the reporter and emits the final summary. Safe to call more
// than once.
func (s *Status) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.done)
		s.logger.Info(ctx, "purge finished",
			"purged", s.totalPurged.Load(),
			"requests", s.totalRequests.Load(),
			"failedRequests", s.failedRequests.Load(),
			"quarantined", s.quarantined.Load(),
			"duration", time.Since(s.started).Round(time.Millisecond).String(),
		)
	})
}

func (s *Status) report() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.logger.Info(context.Background(), "purge progress",
				"purgeRatePerSec", s.PurgeRate(),
				"failureRate", s.FailureRate(),
				"purged", s.totalPurged.Load(),
			)
		}
	}
}

// AddRequests records a round's blob-deletion calls and how many of them
// failed outright.
func (s *Status) AddRequests(total, failed int) {
	s.totalRequests.Add(int64(total))
	s.failedRequests.Add(int64(failed))
	requestsTotal.Add(float64(total))
	requestsFailed.Add(float64(failed))
}

// AddPurged records metadata records removed.
func (s *Status) AddPurged(n int64) {
	s.totalPurged.Add(n)
	recordsPurged.Add(float64(n))
}

// AddQuarantined records blob references put aside after repeated failures.
func (s *Status) AddQuarantined(n int64) {
	s.quarantined.Add(n)
	refsQuarantined.Add(float64(n))
}

// PurgeRate is records purged per second since the pipeline started.
func (s *Status) PurgeRate() float64 {
	elapsed := time.Since(s.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.totalPurged.Load()) / elapsed
}

// FailureRate is the fraction of blob-deletion calls that failed outright.
func (s *Status) FailureRate() float64 {
	total := s.totalRequests.Load()
	if total == 0 {
		return 0
	}
	return float64(s.failedRequests.Load()) / float64(total)
}
