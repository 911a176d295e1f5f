package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// ListEdges retrieves edges with optional filtering
// Query params: sport, game_id, status, market_type, signal_type,
// min_confidence, limit, offset
func (h *Handler) ListEdges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filters, ok := h.parseEdgeFilters(w, r)
	if !ok {
		return
	}

	edges, err := h.edges.ListEdges(ctx, filters)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to retrieve edges", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"edges":  edges,
		"count":  len(edges),
		"limit":  filters.Limit,
		"offset": filters.Offset,
	})
}

// GetEdge retrieves a single edge by id
func (h *Handler) GetEdge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	idStr := chi.URLParam(r, "edgeID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "edge id must be numeric", nil)
		return
	}

	edge, err := h.edges.GetEdge(ctx, id)
	if err != nil {
		h.respondError(w, statusFor(err), "failed to retrieve edge", err)
		return
	}

	respondJSON(w, http.StatusOK, edge)
}

// GetGameEdges retrieves every edge for one game, optionally by status
func (h *Handler) GetGameEdges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.respondError(w, http.StatusBadRequest, "game_id is required", nil)
		return
	}

	status := models.EdgeStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		h.respondError(w, http.StatusBadRequest, "unknown status "+string(status), nil)
		return
	}

	edges, err := h.edges.ListEdges(ctx, contracts.EdgeFilters{
		GameID: gameID,
		Status: status,
	})
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to retrieve edges", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"game_id": gameID,
		"edges":   edges,
		"count":   len(edges),
	})
}

func (h *Handler) parseEdgeFilters(w http.ResponseWriter, r *http.Request) (contracts.EdgeFilters, bool) {
	q := r.URL.Query()

	status := models.EdgeStatus(q.Get("status"))
	if status != "" && !status.IsValid() {
		h.respondError(w, http.StatusBadRequest, "unknown status "+string(status), nil)
		return contracts.EdgeFilters{}, false
	}

	marketType := models.MarketType(q.Get("market_type"))
	if marketType != "" && !marketType.IsValid() {
		h.respondError(w, http.StatusBadRequest, "unknown market_type "+string(marketType), nil)
		return contracts.EdgeFilters{}, false
	}

	signalType := models.SignalType(q.Get("signal_type"))
	if signalType != "" && !signalType.IsValid() {
		h.respondError(w, http.StatusBadRequest, "unknown signal_type "+string(signalType), nil)
		return contracts.EdgeFilters{}, false
	}

	limit := parseIntParam(r, "limit", 100)
	if limit > 500 {
		limit = 500
	}

	return contracts.EdgeFilters{
		SportKey:      q.Get("sport"),
		GameID:        q.Get("game_id"),
		Status:        status,
		MarketType:    marketType,
		SignalType:    signalType,
		MinConfidence: parseFloatParam(r, "min_confidence", 0),
		Limit:         limit,
		Offset:        parseIntParam(r, "offset", 0),
	}, true
}
