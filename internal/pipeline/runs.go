package pipeline

import (
	"slices"
	"sync"
	"time"

	"github.com/dgallion1/offersplice/internal/block"
	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/mutate"
	"github.com/dgallion1/offersplice/internal/store"
	"github.com/google/uuid"
)

// RunStatus represents the state of a batch run.
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusPartial   RunStatus = "partial" // some documents failed
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// DocStatus is the outcome for one document in a run.
type DocStatus string

const (
	DocChanged   DocStatus = "changed"
	DocUnchanged DocStatus = "unchanged"
	DocSkipped   DocStatus = "skipped"
	DocFailed    DocStatus = "failed"
)

// Spec describes what a run does.
type Spec struct {
	Op         engine.Op    `json:"op"`
	Filter     store.Filter `json:"-"`
	Preferred  []string     `json:"preferred,omitempty"`
	Section    []string     `json:"section,omitempty"`
	Keys       []string     `json:"keys,omitempty"`
	DryRun     bool         `json:"dry_run"`
	ApplyLimit int          `json:"apply_limit,omitempty"` // stop after this many changed documents, 0 = none
	Diff       bool         `json:"diff,omitempty"`

	// IncludeDocument attaches the transformed document to each result.
	IncludeDocument bool `json:"-"`
}

// DocResult is what happened to one document.
type DocResult struct {
	DocID    string          `json:"doc_id"`
	Title    string          `json:"title,omitempty"`
	Status   DocStatus       `json:"status"`
	Changes  []mutate.Change `json:"changes"`
	Reason   string          `json:"reason,omitempty"`
	Diff     string          `json:"diff,omitempty"`
	Attempts int             `json:"attempts,omitempty"`

	Document *block.Document `json:"document,omitempty"`
}

// ChangeCount is the number of real changes in the result.
func (r DocResult) ChangeCount() int {
	return mutate.Report{Changes: r.Changes}.Count()
}

// Progress counts processed documents by outcome.
type Progress struct {
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Changed   int      `json:"changed"`
	Unchanged int      `json:"unchanged"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// Run tracks one batch over a set of documents.
type Run struct {
	mu sync.Mutex

	ID        string
	Spec      Spec
	Status    RunStatus
	Progress  Progress
	CreatedAt time.Time
	UpdatedAt time.Time

	results []DocResult
}

// NewRun creates a queued run with a fresh ID.
func NewRun(spec Spec) *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.NewString(),
		Spec:      spec,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus updates run status atomically.
func (r *Run) SetStatus(status RunStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = status
	r.UpdatedAt = time.Now()
}

// SetTotal records how many documents the run will visit.
func (r *Run) SetTotal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.Total = n
	r.UpdatedAt = time.Now()
}

// AddError records a run-level error.
func (r *Run) AddError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Progress.Errors = append(r.Progress.Errors, err)
	r.UpdatedAt = time.Now()
}

// Record adds a document result and updates the counters.
func (r *Run) Record(res DocResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	r.Progress.Processed++
	switch res.Status {
	case DocChanged:
		r.Progress.Changed++
	case DocUnchanged:
		r.Progress.Unchanged++
	case DocSkipped:
		r.Progress.Skipped++
	case DocFailed:
		r.Progress.Failed++
	}
	r.UpdatedAt = time.Now()
}

// Finish sets the terminal status from the counters.
func (r *Run) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.Progress.Failed > 0 && r.Progress.Failed == r.Progress.Processed:
		r.Status = StatusFailed
	case r.Progress.Failed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusCompleted
	}
	r.UpdatedAt = time.Now()
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID        string      `json:"run_id"`
	Spec      Spec        `json:"spec"`
	Status    RunStatus   `json:"status"`
	Progress  Progress    `json:"progress"`
	Results   []DocResult `json:"results"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the run state.
func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.Progress
	p.Errors = append([]string{}, r.Progress.Errors...)
	results := append([]DocResult{}, r.results...)
	return RunSnapshot{
		ID:        r.ID,
		Spec:      r.Spec,
		Status:    r.Status,
		Progress:  p,
		Results:   results,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *Run) changedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Progress.Changed
}

func (r *Run) updatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.UpdatedAt
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// List returns snapshots of every run, oldest first.
func (s *RunStore) List() []RunSnapshot {
	s.mu.Lock()
	runs := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.Unlock()

	out := make([]RunSnapshot, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Snapshot())
	}
	slices.SortFunc(out, func(a, b RunSnapshot) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Cleanup removes expired runs.
func (s *RunStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, run := range s.runs {
		if now.Sub(run.updatedAt()) > s.ttl {
			delete(s.runs, id)
		}
	}
}
