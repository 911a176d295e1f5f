package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/store/memory"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

var base = time.Date(2025, 11, 3, 18, 0, 0, 0, time.UTC)

func edge(gameID, outcome string, st models.SignalType, confidence float64) *models.LiveEdge {
	c := models.EdgeCandidate{
		SignalType:   st,
		MarketType:   models.MarketTypeSpreads,
		Market:       "spreads",
		OutcomeKey:   outcome,
		Magnitude:    1.0,
		InitialValue: -3.0,
		CurrentValue: -4.0,
		Confidence:   confidence,
	}
	return models.NewLiveEdge(gameID, "basketball_nba", c, nil, base)
}

func TestUpsertAssignsAndKeepsID(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	first := edge("game-1", "DAL", models.SignalLineMovement, 80)
	if err := s.UpsertEdge(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("upsert did not assign an id")
	}

	second := edge("game-1", "DAL", models.SignalLineMovement, 90)
	second.CurrentValue = -5.0
	if err := s.UpsertEdge(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second upsert got id %d, want %d (same identity key)", second.ID, first.ID)
	}

	all, err := s.ListEdges(ctx, contracts.EdgeFilters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 row after double upsert, got %d", len(all))
	}
	if all[0].Confidence != 90 || all[0].CurrentValue != -5.0 {
		t.Errorf("second write did not win: %+v", all[0])
	}
}

func TestUpsertResurrectsExpiredEdge(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	e := edge("game-1", "DAL", models.SignalLineMovement, 80)
	if err := s.UpsertEdge(ctx, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expired := models.EdgeStatusExpired
	at := base.Add(time.Hour)
	err := s.UpdateEdgeLifecycle(ctx, e.ID, contracts.EdgePatch{Status: &expired, ExpiredAt: &at})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh := edge("game-1", "DAL", models.SignalLineMovement, 85)
	if err := s.UpsertEdge(ctx, fresh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetEdge(ctx, e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.EdgeStatusActive {
		t.Errorf("status = %s, want active after re-detection", got.Status)
	}
	if got.ExpiredAt != nil || got.FadedAt != nil {
		t.Errorf("lifecycle marks not cleared: faded=%v expired=%v", got.FadedAt, got.ExpiredAt)
	}
}

func TestUpdateEdgeLifecycleUnknownID(t *testing.T) {
	s := memory.NewStore()
	status := models.EdgeStatusFading
	err := s.UpdateEdgeLifecycle(context.Background(), 42, contracts.EdgePatch{Status: &status})
	if !errors.Is(err, models.ErrEdgeNotFound) {
		t.Errorf("error = %v, want ErrEdgeNotFound", err)
	}
}

func TestGetEvaluableEdgesExcludesExpired(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	active := edge("game-1", "DAL", models.SignalLineMovement, 80)
	fading := edge("game-1", "NYK", models.SignalLineMovement, 75)
	dead := edge("game-2", "BOS", models.SignalLineMovement, 70)
	for _, e := range []*models.LiveEdge{active, fading, dead} {
		if err := s.UpsertEdge(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	fadingStatus := models.EdgeStatusFading
	if err := s.UpdateEdgeLifecycle(ctx, fading.ID, contracts.EdgePatch{Status: &fadingStatus}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expiredStatus := models.EdgeStatusExpired
	at := base.Add(time.Hour)
	if err := s.UpdateEdgeLifecycle(ctx, dead.ID, contracts.EdgePatch{Status: &expiredStatus, ExpiredAt: &at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetEvaluableEdges(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 evaluable edges, got %d", len(got))
	}
	for _, e := range got {
		if e.Status == models.EdgeStatusExpired {
			t.Errorf("expired edge %d returned as evaluable", e.ID)
		}
	}
}

func TestExpireStartedGames(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	started := edge("game-1", "DAL", models.SignalLineMovement, 80)
	startTime := base.Add(-time.Hour)
	started.ExpiresAt = &startTime

	upcoming := edge("game-2", "BOS", models.SignalLineMovement, 80)
	future := base.Add(3 * time.Hour)
	upcoming.ExpiresAt = &future

	noStart := edge("game-3", "MIA", models.SignalLineMovement, 80)

	for _, e := range []*models.LiveEdge{started, upcoming, noStart} {
		if err := s.UpsertEdge(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	n, err := s.ExpireStartedGames(ctx, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d edges, want 1", n)
	}

	got, err := s.GetEdge(ctx, started.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.EdgeStatusExpired || got.ExpiredAt == nil {
		t.Errorf("started game edge not expired: %+v", got)
	}

	stillLive, err := s.GetEdge(ctx, upcoming.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stillLive.Status != models.EdgeStatusActive {
		t.Errorf("upcoming game edge expired early: %s", stillLive.Status)
	}
}

func TestCleanupQueriesHonorCutoff(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	old := edge("game-1", "DAL", models.SignalLineMovement, 80)
	recent := edge("game-2", "BOS", models.SignalLineMovement, 80)
	for _, e := range []*models.LiveEdge{old, recent} {
		if err := s.UpsertEdge(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	expired := models.EdgeStatusExpired
	oldAt := base.Add(-8 * 24 * time.Hour)
	recentAt := base.Add(-time.Hour)
	if err := s.UpdateEdgeLifecycle(ctx, old.ID, contracts.EdgePatch{Status: &expired, ExpiredAt: &oldAt}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.UpdateEdgeLifecycle(ctx, recent.ID, contracts.EdgePatch{Status: &expired, ExpiredAt: &recentAt}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cutoff := base.Add(-7 * 24 * time.Hour)

	listed, err := s.ListExpiredBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != old.ID {
		t.Fatalf("ListExpiredBefore returned %d rows, want just the old edge", len(listed))
	}

	removed, err := s.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d rows, want 1", removed)
	}

	if _, err := s.GetEdge(ctx, old.ID); !errors.Is(err, models.ErrEdgeNotFound) {
		t.Errorf("old edge still present after delete: %v", err)
	}
	if _, err := s.GetEdge(ctx, recent.ID); err != nil {
		t.Errorf("recent expired edge should survive cleanup: %v", err)
	}
}

func TestListEdgesFilters(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	a := edge("game-1", "DAL", models.SignalLineMovement, 80)
	b := edge("game-1", "DAL", models.SignalExchangeDivergence, 90)
	c := edge("game-2", "BOS", models.SignalLineMovement, 60)
	c.SportKey = "americanfootball_nfl"
	for _, e := range []*models.LiveEdge{a, b, c} {
		if err := s.UpsertEdge(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	bySport, err := s.ListEdges(ctx, contracts.EdgeFilters{SportKey: "basketball_nba"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bySport) != 2 {
		t.Errorf("sport filter returned %d, want 2", len(bySport))
	}

	bySignal, err := s.ListEdges(ctx, contracts.EdgeFilters{SignalType: models.SignalExchangeDivergence})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bySignal) != 1 || bySignal[0].ID != b.ID {
		t.Errorf("signal filter returned %d rows", len(bySignal))
	}

	confident, err := s.ListEdges(ctx, contracts.EdgeFilters{MinConfidence: 75})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(confident) != 2 {
		t.Errorf("confidence filter returned %d, want 2", len(confident))
	}

	limited, err := s.ListEdges(ctx, contracts.EdgeFilters{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit filter returned %d, want 1", len(limited))
	}
}

func TestCountEdgesByStatus(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	a := edge("game-1", "DAL", models.SignalLineMovement, 80)
	b := edge("game-1", "NYK", models.SignalLineMovement, 75)
	for _, e := range []*models.LiveEdge{a, b} {
		if err := s.UpsertEdge(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	fading := models.EdgeStatusFading
	if err := s.UpdateEdgeLifecycle(ctx, b.ID, contracts.EdgePatch{Status: &fading}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts, err := s.CountEdgesByStatus(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts[models.EdgeStatusActive] != 1 || counts[models.EdgeStatusFading] != 1 {
		t.Errorf("counts = %v, want 1 active / 1 fading", counts)
	}
}

func TestGetSnapshotsFilters(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()

	line := -3.0
	s.AddSnapshots(
		models.OddsSnapshot{GameID: "game-1", BookKey: "draftkings", Market: "spreads", OutcomeKey: "DAL", Line: &line, Odds: -110, ObservedAt: base},
		models.OddsSnapshot{GameID: "game-1", BookKey: "fanduel", Market: "spreads", OutcomeKey: "DAL", Line: &line, Odds: -112, ObservedAt: base.Add(time.Hour)},
		models.OddsSnapshot{GameID: "game-1", BookKey: "draftkings", Market: "h2h", OutcomeKey: "DAL", Odds: -140, ObservedAt: base.Add(2 * time.Hour)},
		models.OddsSnapshot{GameID: "game-2", BookKey: "draftkings", Market: "spreads", OutcomeKey: "BOS", Line: &line, Odds: -110, ObservedAt: base},
	)

	all, err := s.GetSnapshots(ctx, "game-1", contracts.SnapshotFilters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 snapshots for game-1, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ObservedAt.Before(all[i-1].ObservedAt) {
			t.Error("snapshots not ordered oldest first")
		}
	}

	spreads, err := s.GetSnapshots(ctx, "game-1", contracts.SnapshotFilters{Market: "spreads"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spreads) != 2 {
		t.Errorf("market filter returned %d, want 2", len(spreads))
	}

	since := base.Add(30 * time.Minute)
	recent, err := s.GetSnapshots(ctx, "game-1", contracts.SnapshotFilters{Since: &since})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("since filter returned %d, want 2", len(recent))
	}
}
