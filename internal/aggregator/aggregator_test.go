package aggregator_test

import (
	"testing"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/aggregator"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

func cand(mt models.MarketType, outcome string, st models.SignalType, confidence float64, book string) models.EdgeCandidate {
	return models.EdgeCandidate{
		MarketType:      mt,
		OutcomeKey:      outcome,
		SignalType:      st,
		Confidence:      confidence,
		BestCurrentBook: book,
	}
}

func TestAggregateKeepsHigherConfidence(t *testing.T) {
	in := []models.EdgeCandidate{
		cand(models.MarketTypeSpreads, "DAL", models.SignalLineMovement, 70, "draftkings"),
		cand(models.MarketTypeSpreads, "DAL", models.SignalLineMovement, 85, "fanduel"),
	}

	got := aggregator.Aggregate(in)
	if len(got) != 1 {
		t.Fatalf("expected 1 edge after dedup, got %d", len(got))
	}
	if got[0].Confidence != 85 || got[0].BestCurrentBook != "fanduel" {
		t.Errorf("kept %s at %.0f, want fanduel at 85", got[0].BestCurrentBook, got[0].Confidence)
	}
}

func TestAggregateTieKeepsFirst(t *testing.T) {
	in := []models.EdgeCandidate{
		cand(models.MarketTypeSpreads, "DAL", models.SignalLineMovement, 80, "draftkings"),
		cand(models.MarketTypeSpreads, "DAL", models.SignalLineMovement, 80, "fanduel"),
	}

	got := aggregator.Aggregate(in)
	if len(got) != 1 {
		t.Fatalf("expected 1 edge after dedup, got %d", len(got))
	}
	if got[0].BestCurrentBook != "draftkings" {
		t.Errorf("tie kept %s, want the first candidate (draftkings)", got[0].BestCurrentBook)
	}
}

func TestAggregateDistinctKeysPassThrough(t *testing.T) {
	in := []models.EdgeCandidate{
		cand(models.MarketTypeSpreads, "DAL", models.SignalLineMovement, 80, "draftkings"),
		cand(models.MarketTypeSpreads, "DAL", models.SignalExchangeDivergence, 82, "fanduel"),
		cand(models.MarketTypeSpreads, "NYK", models.SignalLineMovement, 75, "caesars"),
		cand(models.MarketTypeTotals, "Over", models.SignalLineMovement, 70, "betmgm"),
	}

	got := aggregator.Aggregate(in)
	if len(got) != 4 {
		t.Fatalf("expected all 4 distinct keys to survive, got %d", len(got))
	}

	seen := map[string]bool{}
	for _, c := range got {
		seen[c.Key()] = true
	}
	for _, c := range in {
		if !seen[c.Key()] {
			t.Errorf("key %s missing from output", c.Key())
		}
	}
}

func TestAggregateOutputSortedByKey(t *testing.T) {
	in := []models.EdgeCandidate{
		cand(models.MarketTypeTotals, "Over", models.SignalLineMovement, 70, "betmgm"),
		cand(models.MarketTypeH2H, "DAL", models.SignalJuiceImprovement, 65, "fanduel"),
		cand(models.MarketTypeSpreads, "DAL", models.SignalReverseLine, 85, "draftkings"),
	}

	got := aggregator.Aggregate(in)
	if len(got) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Key() > got[i].Key() {
			t.Errorf("output not sorted: %s before %s", got[i-1].Key(), got[i].Key())
		}
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	if got := aggregator.Aggregate(nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
