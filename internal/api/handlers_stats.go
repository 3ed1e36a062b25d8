package api

import (
	"net/http"
)

func (s *Server) handleBackendStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "backend stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"backend":     s.cfg.Backend,
		"queue_depth": s.orchestrator.QueueDepth(),
		"operations":  s.stats.Snapshot(),
	})
}
