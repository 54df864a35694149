package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Orchestrator queues runs for a single serial worker.
type Orchestrator struct {
	runs   *RunStore
	queue  chan *Run
	worker *Worker
	log    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to begin processing.
func NewOrchestrator(worker *Worker, runTTL time.Duration, maxQueue int, log *slog.Logger) *Orchestrator {
	if maxQueue <= 0 {
		maxQueue = 1
	}
	return &Orchestrator{
		runs:   NewRunStore(runTTL),
		queue:  make(chan *Run, maxQueue),
		worker: worker,
		log:    log,
	}
}

// Start launches the worker goroutine and run store cleanup.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case run, ok := <-o.queue:
				if !ok {
					return
				}
				o.worker.Process(workerCtx, run)
			}
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.runs.Cleanup()
			}
		}
	}()
}

// Stop cancels the current run and waits for the worker to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new run.
func (o *Orchestrator) Submit(spec Spec) (*Run, error) {
	run := NewRun(spec)
	o.runs.Put(run)
	select {
	case o.queue <- run:
		o.log.Info("run queued", "run_id", run.ID, "op", spec.Op, "dry_run", spec.DryRun)
		return run, nil
	default:
		run.AddError("queue full")
		run.SetStatus(StatusFailed)
		return run, fmt.Errorf("run queue is full (%d)", cap(o.queue))
	}
}

// GetRun returns a run by ID.
func (o *Orchestrator) GetRun(id string) *Run {
	return o.runs.Get(id)
}

// ListRuns returns snapshots of the retained runs.
func (o *Orchestrator) ListRuns() []RunSnapshot {
	return o.runs.List()
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Worker returns the worker for single-document calls.
func (o *Orchestrator) Worker() *Worker {
	return o.worker
}
