package session

import (
	"context"
	"log/slog"
	"sync"

	"envscope/internal/modules/analysis/types"
)

const (
	DefaultSinkWorkers = 2
	DefaultSinkQueue   = 64
)

type sinkJob struct {
	ctx       context.Context
	sessionID string
	record    *types.EnvironmentalRecord
}

// dispatcher fans extracted records out to the sinks on a fixed set of
// workers. Each job visits the sinks in order. A full queue drops the record.
type dispatcher struct {
	sinks  []RecordSink
	logger *slog.Logger
	jobs   chan sinkJob
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func newDispatcher(sinks []RecordSink, workers, queue int, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		sinks:  sinks,
		logger: logger,
		jobs:   make(chan sinkJob, queue),
	}
	if len(sinks) == 0 {
		workers = 0
	}
	for range workers {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *dispatcher) work() {
	defer d.wg.Done()
	for job := range d.jobs {
		for _, sink := range d.sinks {
			if err := sink.RecordExtracted(job.ctx, job.sessionID, job.record); err != nil {
				d.logger.Warn("record sink failed", "session_id", job.sessionID, "sink", sinkName(sink), "error", err)
			}
		}
	}
}

// enqueue never blocks. It reports whether the record was accepted.
func (d *dispatcher) enqueue(ctx context.Context, sessionID string, rec *types.EnvironmentalRecord) bool {
	if len(d.sinks) == 0 {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("record dropped after shutdown", "session_id", sessionID)
		return false
	}
	select {
	case d.jobs <- sinkJob{ctx: ctx, sessionID: sessionID, record: rec}:
		return true
	default:
		d.logger.Warn("record sink queue full, record dropped", "session_id", sessionID, "queue", cap(d.jobs))
		return false
	}
}

// close stops intake and waits for queued records to reach the sinks, or for
// ctx to end.
func (d *dispatcher) close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
