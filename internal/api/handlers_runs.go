package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/pipeline"
	"github.com/dgallion1/offersplice/internal/store"
	"github.com/go-chi/chi/v5"
)

type runRequest struct {
	Op         string   `json:"op"`
	IDs        []string `json:"ids"`
	Slug       string   `json:"slug"`
	Category   string   `json:"category"`
	Limit      int      `json:"limit"`
	Preferred  []string `json:"preferred"`
	Section    []string `json:"section"`
	Keys       []string `json:"keys"`
	DryRun     *bool    `json:"dry_run"`
	ApplyLimit int      `json:"apply_limit"`
	Diff       bool     `json:"diff"`
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	op, err := engine.ParseOp(req.Op)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Limit < 0 || req.ApplyLimit < 0 {
		jsonError(w, "limits must be non-negative", http.StatusBadRequest)
		return
	}
	dryRun := s.cfg.DryRun
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	run, err := s.svc.Orchestrator.Submit(pipeline.Spec{
		Op:         op,
		Filter:     store.Filter{IDs: req.IDs, Slug: req.Slug, Category: req.Category, Limit: req.Limit},
		Preferred:  req.Preferred,
		Section:    req.Section,
		Keys:       req.Keys,
		DryRun:     dryRun,
		ApplyLimit: req.ApplyLimit,
		Diff:       req.Diff,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := run.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":   snap.ID,
		"status":   snap.Status,
		"dry_run":  dryRun,
		"poll_url": fmt.Sprintf("/api/runs/%s", snap.ID),
	})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run := s.svc.Orchestrator.GetRun(runID)
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run.Snapshot())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	type runSummary struct {
		ID       string             `json:"run_id"`
		Op       engine.Op          `json:"op"`
		DryRun   bool               `json:"dry_run"`
		Status   pipeline.RunStatus `json:"status"`
		Progress pipeline.Progress  `json:"progress"`
	}
	out := []runSummary{}
	for _, snap := range s.svc.Orchestrator.ListRuns() {
		out = append(out, runSummary{
			ID:       snap.ID,
			Op:       snap.Spec.Op,
			DryRun:   snap.Spec.DryRun,
			Status:   snap.Status,
			Progress: snap.Progress,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"runs": out})
}
