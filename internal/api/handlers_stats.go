package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStoreStats(w http.ResponseWriter, r *http.Request) {
	if s.svc.Stats == nil {
		jsonError(w, "store stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"driver":      s.cfg.StoreDriver,
		"queue_depth": s.queueDepth(),
		"stats":       s.svc.Stats.Snapshot(),
	})
}

func (s *Server) queueDepth() int {
	if s.svc.Orchestrator == nil {
		return 0
	}
	return s.svc.Orchestrator.QueueDepth()
}
