package http

import (
	"io"
	"net/http"
)

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.memories.TakeMonthlySnapshot()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

func (s *Server) handleAnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.memories.AnalyzeCategoryPatterns()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, analysis)
}

func (s *Server) handleGenerateInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := s.memories.GenerateInsights()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, insights)
}

func (s *Server) handleRecentInsights(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 10)
	writeJSON(w, http.StatusOK, s.memories.RecentInsights(limit))
}

func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.memories.BalanceHistory())
}

func (s *Server) handleExportMemories(w http.ResponseWriter, r *http.Request) {
	blob, err := s.memories.ExportSnapshot()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="financas-backup.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

func (s *Server) handleImportMemories(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := s.memories.ImportSnapshot(blob); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
