package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// GetComposite fetches the pillar report for one game and returns the
// probability composite at the supplied book odds.
// Query params: sport (required), odds (required, American price)
func (h *Handler) GetComposite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.respondError(w, http.StatusBadRequest, "game_id is required", nil)
		return
	}

	sport := r.URL.Query().Get("sport")
	if sport == "" {
		h.respondError(w, http.StatusBadRequest, "sport query parameter is required", nil)
		return
	}

	oddsStr := r.URL.Query().Get("odds")
	odds, err := strconv.Atoi(oddsStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "odds must be an integer American price", nil)
		return
	}

	report, err := h.pillars.GetPillars(ctx, gameID, sport)
	if err != nil {
		h.respondError(w, http.StatusBadGateway, "pillar service unavailable", err)
		return
	}

	result, err := h.composite.Compute(gameID, odds, *report)
	if err != nil {
		h.respondError(w, statusFor(err), "composite computation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
