// Package memory provides an in-memory store used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// Store implements the snapshot and edge stores over mutex-guarded maps.
type Store struct {
	mu        sync.RWMutex
	snapshots []models.OddsSnapshot
	edges     map[int64]*models.LiveEdge
	byKey     map[string]int64 // identity key -> edge id
	nextID    int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		edges:  make(map[int64]*models.LiveEdge),
		byKey:  make(map[string]int64),
		nextID: 1,
	}
}

func identityKey(gameID string, mt models.MarketType, outcome string, st models.SignalType) string {
	return fmt.Sprintf("%s|%s|%s|%s", gameID, mt, outcome, st)
}

// AddSnapshots seeds observation rows. In production the ingest pipeline
// writes these; the store itself never mutates them afterwards.
func (s *Store) AddSnapshots(snapshots ...models.OddsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		if snap.ID == 0 {
			snap.ID = int64(len(s.snapshots) + 1)
		}
		s.snapshots = append(s.snapshots, snap)
	}
}

// GetSnapshots returns a game's snapshots matching the filters, oldest first.
func (s *Store) GetSnapshots(_ context.Context, gameID string, filters contracts.SnapshotFilters) ([]models.OddsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.OddsSnapshot
	for _, snap := range s.snapshots {
		if snap.GameID != gameID {
			continue
		}
		if filters.Market != "" && snap.Market != filters.Market {
			continue
		}
		if filters.OutcomeKey != "" && snap.OutcomeKey != filters.OutcomeKey {
			continue
		}
		if filters.Since != nil && snap.ObservedAt.Before(*filters.Since) {
			continue
		}
		if filters.Until != nil && snap.ObservedAt.After(*filters.Until) {
			continue
		}
		result = append(result, snap)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}

// UpsertEdge writes an edge, overwriting any row with the same identity key.
// The surviving row keeps its id; fade and expiry marks are cleared so a
// re-detected edge comes back live.
func (s *Store) UpsertEdge(_ context.Context, edge *models.LiveEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(edge.GameID, edge.MarketType, edge.OutcomeKey, edge.SignalType)

	if id, exists := s.byKey[key]; exists {
		edge.ID = id
	} else {
		edge.ID = s.nextID
		s.nextID++
		s.byKey[key] = edge.ID
	}

	cp := *edge
	cp.FadedAt = nil
	cp.ExpiredAt = nil
	s.edges[edge.ID] = &cp
	return nil
}

// UpdateEdgeLifecycle applies the non-nil patch fields to one row.
func (s *Store) UpdateEdgeLifecycle(_ context.Context, id int64, patch contracts.EdgePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.edges[id]
	if !exists {
		return models.ErrEdgeNotFound
	}

	if patch.Status != nil {
		e.Status = *patch.Status
	}
	if patch.Magnitude != nil {
		e.Magnitude = *patch.Magnitude
	}
	if patch.CurrentValue != nil {
		e.CurrentValue = *patch.CurrentValue
	}
	if patch.FadedAt != nil {
		t := *patch.FadedAt
		e.FadedAt = &t
	}
	if patch.ExpiredAt != nil {
		t := *patch.ExpiredAt
		e.ExpiredAt = &t
	}
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// GetEvaluableEdges returns the active and fading edges, id order.
func (s *Store) GetEvaluableEdges(_ context.Context) ([]models.LiveEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.LiveEdge
	for _, e := range s.edges {
		if e.Status == models.EdgeStatusActive || e.Status == models.EdgeStatusFading {
			result = append(result, *e)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ExpireStartedGames expires every non-expired edge whose expiry has passed.
func (s *Store) ExpireStartedGames(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched int64
	for _, e := range s.edges {
		if e.Status == models.EdgeStatusExpired {
			continue
		}
		if e.ExpiresAt == nil || e.ExpiresAt.After(now) {
			continue
		}
		t := now
		e.Status = models.EdgeStatusExpired
		e.ExpiredAt = &t
		e.UpdatedAt = now
		touched++
	}
	return touched, nil
}

// ListExpiredBefore returns expired edges older than the cutoff, oldest first
func (s *Store) ListExpiredBefore(_ context.Context, cutoff time.Time) ([]models.LiveEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.LiveEdge
	for _, e := range s.edges {
		if e.Status == models.EdgeStatusExpired && e.ExpiredAt != nil && e.ExpiredAt.Before(cutoff) {
			result = append(result, *e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiredAt.Before(*result[j].ExpiredAt)
	})
	return result, nil
}

// DeleteExpiredBefore removes expired edges older than the cutoff.
func (s *Store) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, e := range s.edges {
		if e.Status != models.EdgeStatusExpired || e.ExpiredAt == nil || !e.ExpiredAt.Before(cutoff) {
			continue
		}
		delete(s.edges, id)
		delete(s.byKey, identityKey(e.GameID, e.MarketType, e.OutcomeKey, e.SignalType))
		removed++
	}
	return removed, nil
}

// ListEdges returns edges matching the filters, newest detection first.
func (s *Store) ListEdges(_ context.Context, filters contracts.EdgeFilters) ([]models.LiveEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.LiveEdge
	for _, e := range s.edges {
		if filters.SportKey != "" && e.SportKey != filters.SportKey {
			continue
		}
		if filters.GameID != "" && e.GameID != filters.GameID {
			continue
		}
		if filters.Status != "" && e.Status != filters.Status {
			continue
		}
		if filters.MarketType != "" && e.MarketType != filters.MarketType {
			continue
		}
		if filters.SignalType != "" && e.SignalType != filters.SignalType {
			continue
		}
		if filters.MinConfidence > 0 && e.Confidence < filters.MinConfidence {
			continue
		}
		result = append(result, *e)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].DetectedAt.Equal(result[j].DetectedAt) {
			return result[i].DetectedAt.After(result[j].DetectedAt)
		}
		return result[i].ID > result[j].ID
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(result) {
			return nil, nil
		}
		result = result[filters.Offset:]
	}
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

// GetEdge returns a copy of one edge by id.
func (s *Store) GetEdge(_ context.Context, id int64) (*models.LiveEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.edges[id]
	if !exists {
		return nil, models.ErrEdgeNotFound
	}
	cp := *e
	return &cp, nil
}

// CountEdgesByStatus tallies rows per lifecycle status.
func (s *Store) CountEdgesByStatus(_ context.Context) (map[models.EdgeStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.EdgeStatus]int64)
	for _, e := range s.edges {
		counts[e.Status]++
	}
	return counts, nil
}

// Verify interface compliance at compile time.
var (
	_ contracts.SnapshotStore = (*Store)(nil)
	_ contracts.EdgeStore     = (*Store)(nil)
)
