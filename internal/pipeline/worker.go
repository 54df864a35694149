package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/mutate"
	"github.com/dgallion1/offersplice/internal/relevance"
	"github.com/dgallion1/offersplice/internal/store"
)

// WriteError marks a failed whole-document replace. The document is left
// in its pre-transform state.
type WriteError struct {
	DocID string
	Err   error
}

func (e *WriteError) Error() string { return fmt.Sprintf("replace %s: %v", e.DocID, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// Worker runs the fetch, transform, replace cycle one document at a time.
// Calls from several goroutines are serialized.
type Worker struct {
	store      store.Store
	engine     *engine.Engine
	log        *slog.Logger
	batchDelay time.Duration

	backoff func(int) time.Duration
	mu      sync.Mutex
}

func NewWorker(st store.Store, eng *engine.Engine, log *slog.Logger, batchDelay time.Duration) *Worker {
	return &Worker{
		store:      st,
		engine:     eng,
		log:        log,
		batchDelay: batchDelay,
		backoff:    Backoff,
	}
}

// Process runs every document the run's filter selects.
func (w *Worker) Process(ctx context.Context, run *Run) {
	log := w.log.With("run_id", run.ID, "op", run.Spec.Op, "dry_run", run.Spec.DryRun)
	run.SetStatus(StatusRunning)

	var heads []store.Head
	_, err := retry(ctx, log, w.backoff, "list", func() error {
		var err error
		heads, err = w.store.ListDocuments(ctx, run.Spec.Filter)
		return err
	})
	if err != nil {
		log.Error("list documents failed", "error", err)
		run.AddError(fmt.Sprintf("list: %s", err))
		run.SetStatus(StatusFailed)
		return
	}
	run.SetTotal(len(heads))
	log.Info("run started", "documents", len(heads))

	for i, h := range heads {
		if ctx.Err() != nil {
			run.AddError(ctx.Err().Error())
			run.SetStatus(StatusCancelled)
			return
		}
		if limit := run.Spec.ApplyLimit; limit > 0 && run.changedCount() >= limit {
			log.Info("apply limit reached", "limit", limit, "remaining", len(heads)-i)
			break
		}
		if i > 0 && w.batchDelay > 0 {
			select {
			case <-time.After(w.batchDelay):
			case <-ctx.Done():
				run.AddError(ctx.Err().Error())
				run.SetStatus(StatusCancelled)
				return
			}
		}
		run.Record(w.ProcessDocument(ctx, run.ID, run.Spec, h.ID))
	}

	run.Finish()
	snap := run.Snapshot()
	log.Info("run finished",
		"status", snap.Status,
		"changed", snap.Progress.Changed,
		"unchanged", snap.Progress.Unchanged,
		"skipped", snap.Progress.Skipped,
		"failed", snap.Progress.Failed,
	)
}

// ProcessDocument fetches one document, applies the operation in memory
// and, unless it is a dry run, replaces the whole document.
func (w *Worker) ProcessDocument(ctx context.Context, runID string, spec Spec, id string) DocResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.log.With("run_id", runID, "doc_id", id, "op", spec.Op)
	res := DocResult{DocID: id, Changes: []mutate.Change{}}

	var rec store.Record
	attempts, err := retry(ctx, log, w.backoff, "fetch", func() error {
		var err error
		rec, err = w.store.FetchDocument(ctx, id)
		return err
	})
	res.Attempts = attempts
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Warn("document not found, skipping")
		res.Status, res.Reason = DocSkipped, "not found"
		return res
	case err != nil:
		log.Error("fetch failed", "error", err)
		res.Status, res.Reason = DocFailed, err.Error()
		return res
	}
	res.Title = rec.Doc.Title

	outcome, err := w.engine.Apply(rec.Doc, engine.Request{Op: spec.Op, Preferred: spec.Preferred, Section: spec.Section, Keys: spec.Keys})
	switch {
	case errors.Is(err, relevance.ErrNoCandidate):
		log.Warn("no candidate offer")
		res.Reason = "no candidate"
	case errors.Is(err, mutate.ErrAmbiguousSection):
		log.Warn("summary section missing")
		res.Reason = "summary section missing"
	case err != nil:
		log.Error("transform failed", "error", err)
		res.Status, res.Reason = DocFailed, err.Error()
		return res
	}
	if outcome.Report.Changes != nil {
		res.Changes = outcome.Report.Changes
	}
	if spec.IncludeDocument {
		doc := outcome.Doc
		res.Document = &doc
	}

	if !outcome.Changed {
		res.Status = DocUnchanged
		if errors.Is(err, mutate.ErrAmbiguousSection) {
			res.Status = DocSkipped
		}
		log.Info("document unchanged", "reason", res.Reason)
		return res
	}
	if spec.Diff || spec.DryRun {
		res.Diff = TextDiff(rec.Doc, outcome.Doc)
	}
	if spec.DryRun {
		res.Status = DocChanged
		log.Info("dry run, skipping replace", "changes", outcome.Report.Count())
		return res
	}

	n, err := retry(ctx, log, w.backoff, "replace", func() error {
		return w.store.ReplaceDocument(ctx, id, outcome.Doc.Blocks)
	})
	res.Attempts += n
	if err != nil {
		werr := &WriteError{DocID: id, Err: err}
		log.Error("replace failed", "error", werr)
		res.Status, res.Reason = DocFailed, werr.Error()
		return res
	}
	res.Status = DocChanged
	log.Info("document replaced", "changes", outcome.Report.Count())
	return res
}
