package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kjannette/pricegraph/internal/models"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Provider string `json:"provider"`
	History  string `json:"history"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: healthServices{
			Provider: s.svc.Provider(),
			History:  s.svc.HistoryBackend(),
		},
	})
}

type historyResponse struct {
	Backend string          `json:"backend"`
	Count   int             `json:"count"`
	Lookups []models.Lookup `json:"lookups"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, defaultHistory)

	lookups, err := s.svc.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list lookup history")
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if lookups == nil {
		lookups = []models.Lookup{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Backend: s.svc.HistoryBackend(),
		Count:   len(lookups),
		Lookups: lookups,
	})
}
