// Package api implements the edge-api HTTP handlers: edge reads, the manual
// detection and lifecycle triggers, and the probability composite endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/composite"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/engine"
	"github.com/OMIGROUPOPS/omi-edge-engine/internal/lifecycle"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// GameDetector runs on-demand detection for one game.
type GameDetector interface {
	DetectGame(ctx context.Context, gameID string) (*engine.RunResult, error)
}

// LifecycleRunner exposes the discrete lifecycle operations.
type LifecycleRunner interface {
	UpdateEdges(ctx context.Context) (*lifecycle.Report, error)
	ExpireStartedGames(ctx context.Context) (int64, error)
	CleanupOldEdges(ctx context.Context) (*lifecycle.CleanupReport, error)
}

// Handler contains dependencies for the HTTP handlers.
type Handler struct {
	edges     contracts.EdgeStore
	detector  GameDetector
	lifecycle LifecycleRunner
	composite *composite.Engine
	pillars   contracts.PillarProvider
	logger    zerolog.Logger
}

// NewHandler creates a handler with its dependencies.
func NewHandler(
	edges contracts.EdgeStore,
	det GameDetector,
	lc LifecycleRunner,
	comp *composite.Engine,
	pillars contracts.PillarProvider,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		edges:     edges,
		detector:  det,
		lifecycle: lc,
		composite: comp,
		pillars:   pillars,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// HealthCheck reports service health. The store is pinged when it supports
// it; the memory store does not and always counts as healthy.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if p, ok := h.edges.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			h.respondError(w, http.StatusServiceUnavailable, "edge store unhealthy", err)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "edge-api",
		"timestamp": time.Now().UTC(),
	})
}

// statusFor maps sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidOdds), errors.Is(err, models.ErrInvalidWeights):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseFloatParam(r *http.Request, param string, defaultValue float64) float64 {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		h.logger.Error().Err(err).Int("status", status).Msg(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
