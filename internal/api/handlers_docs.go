package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/offersplice/internal/engine"
	"github.com/dgallion1/offersplice/internal/pipeline"
	"github.com/dgallion1/offersplice/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// handleListDocuments lists document heads, filtered by id, slug or category.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		IDs:      splitList(q.Get("id")),
		Slug:     q.Get("slug"),
		Category: q.Get("category"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	heads, err := s.svc.Store.ListDocuments(r.Context(), f)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusBadGateway)
		return
	}
	if heads == nil {
		heads = []store.Head{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": heads})
}

type suggestionJSON struct {
	Key         string `json:"key"`
	Category    string `json:"category"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
}

// handleSuggestions ranks the offers relevant to one document.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	rec, err := s.svc.Store.FetchDocument(r.Context(), docID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to fetch document: "+err.Error(), http.StatusBadGateway)
		return
	}

	out := []suggestionJSON{}
	for _, sg := range s.svc.Engine.Suggest(rec.Doc) {
		out = append(out, suggestionJSON{
			Key:         sg.Offer.Key,
			Category:    string(sg.Offer.Category),
			DisplayName: sg.Offer.DisplayName,
			Score:       sg.Score,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doc_id":      docID,
		"suggestions": out,
	})
}

// handleApply runs one operation on one document synchronously. Dry runs
// return the transformed document and a diff without writing.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	op, err := engine.ParseOp(chi.URLParam(r, "op"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	dryRun := s.cfg.DryRun
	if v := q.Get("dry_run"); v != "" {
		if dryRun, err = strconv.ParseBool(v); err != nil {
			jsonError(w, "dry_run must be a boolean", http.StatusBadRequest)
			return
		}
	}
	spec := pipeline.Spec{
		Op:              op,
		Preferred:       splitList(q.Get("preferred")),
		Section:         splitList(q.Get("section")),
		Keys:            splitList(q.Get("keys")),
		DryRun:          dryRun,
		Diff:            true,
		IncludeDocument: dryRun,
	}

	res := s.svc.Orchestrator.Worker().ProcessDocument(r.Context(), middleware.GetReqID(r.Context()), spec, docID)

	code := http.StatusOK
	if res.Status == pipeline.DocFailed {
		code = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"dry_run":      dryRun,
		"change_count": res.ChangeCount(),
		"result":       res,
	})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
