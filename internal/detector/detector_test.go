package detector_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/detector"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

var base = time.Date(2025, 11, 3, 18, 0, 0, 0, time.UTC)

func fptr(v float64) *float64 { return &v }

func snap(book, market, outcome string, line *float64, odds int, at time.Time) models.OddsSnapshot {
	return models.OddsSnapshot{
		GameID:     "game-1",
		SportKey:   "basketball_nba",
		BookKey:    book,
		Market:     market,
		OutcomeKey: outcome,
		Line:       line,
		Odds:       odds,
		ObservedAt: at,
	}
}

func groupOf(t *testing.T, snapshots ...models.OddsSnapshot) models.OutcomeGroup {
	t.Helper()
	groups := detector.GroupSnapshots(snapshots)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	return groups[0]
}

func sharps() *detector.StaticSharpBooks {
	return detector.NewStaticSharpBooks([]string{"pinnacle", "betcris", "circa", "bookmaker"})
}

func TestLineMovementSpread(t *testing.T) {
	group := groupOf(t,
		snap("draftkings", "spreads", "DAL", fptr(-3.0), -110, base),
		snap("fanduel", "spreads", "DAL", fptr(-4.0), -110, base.Add(30*time.Minute)),
	)

	d := detector.NewLineMovementDetector(detector.DefaultThresholds())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.SignalType != models.SignalLineMovement {
		t.Errorf("signal = %s, want line_movement", c.SignalType)
	}
	if c.Magnitude != 1.0 {
		t.Errorf("magnitude = %f, want 1.0", c.Magnitude)
	}
	if math.Abs(c.MagnitudePct-33.333) > 0.01 {
		t.Errorf("magnitude pct = %f, want ~33.3", c.MagnitudePct)
	}
	if c.Confidence != 80 {
		t.Errorf("confidence = %f, want 80", c.Confidence)
	}
	if c.InitialValue != -3.0 || c.CurrentValue != -4.0 {
		t.Errorf("values = %f → %f, want -3.0 → -4.0", c.InitialValue, c.CurrentValue)
	}
	if c.TriggeringBook != "draftkings" || c.BestCurrentBook != "fanduel" {
		t.Errorf("books = %s/%s, want draftkings/fanduel", c.TriggeringBook, c.BestCurrentBook)
	}
}

func TestLineMovementBelowThreshold(t *testing.T) {
	group := groupOf(t,
		snap("draftkings", "spreads", "DAL", fptr(-3.0), -110, base),
		snap("fanduel", "spreads", "DAL", fptr(-3.25), -110, base.Add(30*time.Minute)),
	)

	d := detector.NewLineMovementDetector(detector.DefaultThresholds())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates below threshold, got %d", len(got))
	}
}

func TestLineMovementH2HUsesCents(t *testing.T) {
	group := groupOf(t,
		snap("draftkings", "h2h", "DAL", nil, -110, base),
		snap("fanduel", "h2h", "DAL", nil, -130, base.Add(time.Hour)),
	)

	d := detector.NewLineMovementDetector(detector.DefaultThresholds())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Magnitude != 20 {
		t.Errorf("magnitude = %f, want 20 cents", c.Magnitude)
	}
	// 20 cents is two h2h threshold units: 60 + 10*2
	if c.Confidence != 80 {
		t.Errorf("confidence = %f, want 80", c.Confidence)
	}
}

func TestJuiceImprovement(t *testing.T) {
	group := groupOf(t,
		snap("draftkings", "h2h", "DAL", nil, -120, base),
		snap("fanduel", "h2h", "DAL", nil, -105, base.Add(10*time.Minute)),
	)

	d := detector.NewJuiceImprovementDetector(detector.DefaultThresholds())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Magnitude != 15 {
		t.Errorf("improvement = %f, want 15", c.Magnitude)
	}
	// min(55 + 5*15, 85) caps at 85
	if c.Confidence != 85 {
		t.Errorf("confidence = %f, want 85", c.Confidence)
	}
	if c.TriggeringBook != "draftkings" {
		t.Errorf("triggering book = %s, want the opener draftkings", c.TriggeringBook)
	}
	if c.BestCurrentBook != "fanduel" {
		t.Errorf("best book = %s, want fanduel", c.BestCurrentBook)
	}
	if c.InitialValue != -120 || c.CurrentValue != -105 {
		t.Errorf("values = %f/%f, want -120/-105", c.InitialValue, c.CurrentValue)
	}
}

func TestJuiceWorseningIgnored(t *testing.T) {
	group := groupOf(t,
		snap("draftkings", "h2h", "DAL", nil, -105, base),
		snap("fanduel", "h2h", "DAL", nil, -120, base.Add(10*time.Minute)),
	)

	d := detector.NewJuiceImprovementDetector(detector.DefaultThresholds())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates when juice worsens, got %d", len(got))
	}
}

func TestExchangeDivergence(t *testing.T) {
	group := groupOf(t,
		snap("pinnacle", "spreads", "DAL", fptr(-3.0), -108, base),
		snap("fanduel", "spreads", "DAL", fptr(-4.5), -110, base.Add(5*time.Minute)),
	)

	d := detector.NewExchangeDivergenceDetector(detector.DefaultThresholds(), sharps())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Magnitude != 1.5 {
		t.Errorf("divergence = %f, want 1.5", c.Magnitude)
	}
	// min(70 + 8*1.5, 95) = 82
	if c.Confidence != 82 {
		t.Errorf("confidence = %f, want 82", c.Confidence)
	}
	if c.SharpBook != "pinnacle" {
		t.Errorf("sharp book = %s, want pinnacle", c.SharpBook)
	}
	if c.SharpBookLine == nil || *c.SharpBookLine != -3.0 {
		t.Errorf("sharp line = %v, want -3.0", c.SharpBookLine)
	}
	if c.BestCurrentBook != "fanduel" {
		t.Errorf("best book = %s, want fanduel", c.BestCurrentBook)
	}
}

func TestExchangeDivergencePriorityOrder(t *testing.T) {
	// Pinnacle absent: betcris outranks circa as the reference
	group := groupOf(t,
		snap("circa", "spreads", "DAL", fptr(-2.0), -110, base),
		snap("betcris", "spreads", "DAL", fptr(-3.0), -110, base.Add(time.Minute)),
		snap("fanduel", "spreads", "DAL", fptr(-4.5), -110, base.Add(2*time.Minute)),
	)

	d := detector.NewExchangeDivergenceDetector(detector.DefaultThresholds(), sharps())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].SharpBook != "betcris" {
		t.Errorf("sharp book = %s, want betcris (priority over circa)", got[0].SharpBook)
	}
	if got[0].Magnitude != 1.5 {
		t.Errorf("divergence = %f, want 1.5 vs betcris", got[0].Magnitude)
	}
}

func TestExchangeDivergenceNoSharpBook(t *testing.T) {
	group := groupOf(t,
		snap("draftkings", "spreads", "DAL", fptr(-3.0), -110, base),
		snap("fanduel", "spreads", "DAL", fptr(-4.5), -110, base.Add(5*time.Minute)),
	)

	d := detector.NewExchangeDivergenceDetector(detector.DefaultThresholds(), sharps())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates without a sharp reference, got %d", len(got))
	}
}

func TestReverseLineFastMove(t *testing.T) {
	var snaps []models.OddsSnapshot
	lines := []float64{-3.0, -3.25, -3.5, -3.75, -4.0}
	for i, line := range lines {
		snaps = append(snaps, snap("draftkings", "spreads", "DAL", fptr(line), -110,
			base.Add(time.Duration(i)*20*time.Minute)))
	}
	group := groupOf(t, snaps...)

	d := detector.NewReverseLineDetector(detector.DefaultThresholds())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Magnitude != 1.0 {
		t.Errorf("magnitude = %f, want 1.0", c.Magnitude)
	}
	// min(75 + 5*(1.0/0.5), 95) = 85
	if c.Confidence != 85 {
		t.Errorf("confidence = %f, want 85", c.Confidence)
	}
}

func TestReverseLineSlowDriftIgnored(t *testing.T) {
	var snaps []models.OddsSnapshot
	lines := []float64{-3.0, -3.25, -3.5, -3.75, -4.0}
	for i, line := range lines {
		// Same total move spread over 160 minutes, past the 2h window
		snaps = append(snaps, snap("draftkings", "spreads", "DAL", fptr(line), -110,
			base.Add(time.Duration(i)*40*time.Minute)))
	}
	group := groupOf(t, snaps...)

	d := detector.NewReverseLineDetector(detector.DefaultThresholds())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates for a slow drift, got %d", len(got))
	}
}

func TestReverseLineOnlySeesRecentWindow(t *testing.T) {
	// Big early move, flat recent window: the strategy must not fire off
	// history outside the last five snapshots
	lines := []float64{-1.0, -2.0, -3.9, -4.0, -3.9, -4.0, -3.95}
	var snaps []models.OddsSnapshot
	for i, line := range lines {
		snaps = append(snaps, snap("draftkings", "spreads", "DAL", fptr(line), -110,
			base.Add(time.Duration(i)*10*time.Minute)))
	}
	group := groupOf(t, snaps...)

	d := detector.NewReverseLineDetector(detector.DefaultThresholds())
	got, err := d.Detect(context.Background(), group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no candidates from a flat recent window, got %d", len(got))
	}
}

func TestInsufficientSnapshotsYieldNothing(t *testing.T) {
	group := groupOf(t,
		snap("pinnacle", "spreads", "DAL", fptr(-3.0), -110, base),
	)

	th := detector.DefaultThresholds()
	strategies := []contracts.SignalDetector{
		detector.NewLineMovementDetector(th),
		detector.NewJuiceImprovementDetector(th),
		detector.NewExchangeDivergenceDetector(th, sharps()),
		detector.NewReverseLineDetector(th),
	}

	for _, s := range strategies {
		got, err := s.Detect(context.Background(), group)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", s.Name(), err)
		}
		if len(got) != 0 {
			t.Errorf("%s: expected no candidates from a single snapshot, got %d", s.Name(), len(got))
		}
	}
}

func TestDetectGameEmitsOnePerFiringSignal(t *testing.T) {
	snaps := []models.OddsSnapshot{
		snap("pinnacle", "spreads", "DAL", fptr(-3.0), -110, base),
		snap("fanduel", "spreads", "DAL", fptr(-3.0), -120, base.Add(time.Minute)),
		snap("fanduel", "spreads", "DAL", fptr(-4.5), -105, base.Add(30*time.Minute)),
	}

	d := detector.New(detector.DefaultThresholds(), sharps(), zerolog.Nop())
	got, err := d.DetectGame(context.Background(), snaps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[models.SignalType]bool{}
	for _, c := range got {
		if seen[c.SignalType] {
			t.Errorf("signal %s emitted twice for one outcome", c.SignalType)
		}
		seen[c.SignalType] = true
	}

	for _, want := range []models.SignalType{
		models.SignalLineMovement,
		models.SignalJuiceImprovement,
		models.SignalExchangeDivergence,
		models.SignalReverseLine,
	} {
		if !seen[want] {
			t.Errorf("expected a %s candidate, got signals %v", want, seen)
		}
	}
}

func TestDetectGameSkipsUnknownMarkets(t *testing.T) {
	snaps := []models.OddsSnapshot{
		snap("pinnacle", "futures_championship", "DAL", fptr(-3.0), -110, base),
		snap("fanduel", "futures_championship", "DAL", fptr(-4.5), -110, base.Add(time.Minute)),
	}

	d := detector.New(detector.DefaultThresholds(), sharps(), zerolog.Nop())
	got, err := d.DetectGame(context.Background(), snaps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected unknown markets to be skipped, got %d candidates", len(got))
	}
}

func TestGroupSnapshotsSplitsAndOrders(t *testing.T) {
	snaps := []models.OddsSnapshot{
		snap("fanduel", "totals", "Over", fptr(220.5), -110, base.Add(time.Hour)),
		snap("draftkings", "spreads", "DAL", fptr(-3.0), -110, base.Add(10*time.Minute)),
		snap("pinnacle", "totals", "Over", fptr(219.5), -108, base),
		snap("draftkings", "spreads", "NYK", fptr(3.0), -110, base),
	}

	groups := detector.GroupSnapshots(snaps)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	for _, g := range groups {
		for i := 1; i < len(g.Snapshots); i++ {
			if g.Snapshots[i].ObservedAt.Before(g.Snapshots[i-1].ObservedAt) {
				t.Errorf("group %s/%s not sorted by time", g.Market, g.OutcomeKey)
			}
		}
	}

	// totals/Over has both books, earliest first
	for _, g := range groups {
		if g.Market == "totals" && g.OutcomeKey == "Over" {
			if len(g.Snapshots) != 2 || g.Snapshots[0].BookKey != "pinnacle" {
				t.Errorf("totals group misordered: %+v", g.Snapshots)
			}
			if g.MarketType != models.MarketTypeTotals {
				t.Errorf("market type = %s, want totals", g.MarketType)
			}
		}
	}
}
