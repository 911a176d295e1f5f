package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// TriggerDetection runs the full detection pass for one game right now.
// The same flow the change stream drives, exposed for manual replays.
func (h *Handler) TriggerDetection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.respondError(w, http.StatusBadRequest, "game_id is required", nil)
		return
	}

	result, err := h.detector.DetectGame(ctx, gameID)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "detection failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// RunLifecycle evaluates every active and fading edge once and returns the
// batch report. Per-edge failures ride inside the report, not the status.
func (h *Handler) RunLifecycle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	report, err := h.lifecycle.UpdateEdges(ctx)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "lifecycle run failed", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// ExpireStarted force-expires edges whose game has started
func (h *Handler) ExpireStarted(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	expired, err := h.lifecycle.ExpireStartedGames(ctx)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "expire run failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"expired": expired,
	})
}

// RunCleanup archives and deletes expired edges past retention
func (h *Handler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	report, err := h.lifecycle.CleanupOldEdges(ctx)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "cleanup failed", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}
