package alerts_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/alerts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// fakeDedup claims keys in memory with SETNX semantics
type fakeDedup struct {
	keys map[string]bool
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{keys: make(map[string]bool)}
}

func (f *fakeDedup) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	if f.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func (f *fakeDedup) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if f.keys[key] {
			delete(f.keys, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// webhook captures Slack payload texts
type webhook struct {
	server *httptest.Server
	texts  []string
	status int
}

func newWebhook() *webhook {
	w := &webhook{status: http.StatusOK}
	w.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(body, &payload)
		w.texts = append(w.texts, payload.Text)
		rw.WriteHeader(w.status)
	}))
	return w
}

func edge(signal models.SignalType, status models.EdgeStatus, confidence float64) models.LiveEdge {
	return models.LiveEdge{
		ID:              42,
		GameID:          "game-1",
		SportKey:        "nba",
		MarketType:      models.MarketTypeSpreads,
		Market:          "spreads",
		OutcomeKey:      "lakers",
		SignalType:      signal,
		Status:          status,
		InitialValue:    -3.0,
		CurrentValue:    -4.0,
		Magnitude:       1.0,
		Confidence:      confidence,
		TriggeringBook:  "draftkings",
		BestCurrentBook: "fanduel",
		DetectedAt:      time.Date(2025, 11, 3, 15, 4, 5, 0, time.UTC),
	}
}

func notifier(dedup *fakeDedup, url string, cfg alerts.Config) *alerts.Notifier {
	cfg.WebhookURL = url
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = 30 * time.Minute
	}
	return alerts.New(dedup, cfg, nil, zerolog.Nop())
}

func TestNotifySendsQualifyingEdge(t *testing.T) {
	hook := newWebhook()
	defer hook.server.Close()
	dedup := newFakeDedup()

	n := notifier(dedup, hook.server.URL, alerts.Config{MinConfidence: 75})

	err := n.Notify(context.Background(), edge(models.SignalLineMovement, models.EdgeStatusActive, 80))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(hook.texts) != 1 {
		t.Fatalf("expected 1 webhook call, got %d", len(hook.texts))
	}
	text := hook.texts[0]
	for _, want := range []string{"LINE MOVEMENT", "game-1", "spreads | lakers", "-3.0", "-4.0", "draftkings"} {
		if !strings.Contains(text, want) {
			t.Errorf("message missing %q:\n%s", want, text)
		}
	}

	wantKey := "alert:dedup:game-1:spreads:lakers:line_movement"
	if !dedup.keys[wantKey] {
		t.Errorf("expected dedup key %q claimed, have %v", wantKey, dedup.keys)
	}
}

func TestNotifySkipsLowConfidence(t *testing.T) {
	hook := newWebhook()
	defer hook.server.Close()

	n := notifier(newFakeDedup(), hook.server.URL, alerts.Config{MinConfidence: 75})

	if err := n.Notify(context.Background(), edge(models.SignalLineMovement, models.EdgeStatusActive, 60)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hook.texts) != 0 {
		t.Errorf("expected no webhook calls, got %d", len(hook.texts))
	}
}

func TestNotifySkipsNonActiveEdges(t *testing.T) {
	hook := newWebhook()
	defer hook.server.Close()

	n := notifier(newFakeDedup(), hook.server.URL, alerts.Config{MinConfidence: 50})

	for _, status := range []models.EdgeStatus{models.EdgeStatusFading, models.EdgeStatusExpired} {
		if err := n.Notify(context.Background(), edge(models.SignalLineMovement, status, 90)); err != nil {
			t.Fatalf("unexpected error for %s: %v", status, err)
		}
	}
	if len(hook.texts) != 0 {
		t.Errorf("expected no webhook calls, got %d", len(hook.texts))
	}
}

func TestNotifyHonorsSignalAllowlist(t *testing.T) {
	hook := newWebhook()
	defer hook.server.Close()

	n := notifier(newFakeDedup(), hook.server.URL, alerts.Config{
		MinConfidence: 50,
		Signals:       []string{"juice_improvement"},
	})

	if err := n.Notify(context.Background(), edge(models.SignalLineMovement, models.EdgeStatusActive, 90)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hook.texts) != 0 {
		t.Fatalf("expected line movement filtered out, got %d calls", len(hook.texts))
	}

	if err := n.Notify(context.Background(), edge(models.SignalJuiceImprovement, models.EdgeStatusActive, 90)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hook.texts) != 1 {
		t.Errorf("expected juice improvement delivered, got %d calls", len(hook.texts))
	}
}

func TestNotifyDeduplicatesRepeats(t *testing.T) {
	hook := newWebhook()
	defer hook.server.Close()

	n := notifier(newFakeDedup(), hook.server.URL, alerts.Config{MinConfidence: 50})

	for i := 0; i < 3; i++ {
		if err := n.Notify(context.Background(), edge(models.SignalLineMovement, models.EdgeStatusActive, 90)); err != nil {
			t.Fatalf("unexpected error on call %d: %v", i, err)
		}
	}
	if len(hook.texts) != 1 {
		t.Errorf("expected 1 delivery within the dedup window, got %d", len(hook.texts))
	}
}

func TestNotifySurfacesWebhookFailure(t *testing.T) {
	hook := newWebhook()
	defer hook.server.Close()
	hook.status = http.StatusInternalServerError

	n := notifier(newFakeDedup(), hook.server.URL, alerts.Config{MinConfidence: 50})

	err := n.Notify(context.Background(), edge(models.SignalLineMovement, models.EdgeStatusActive, 90))
	if err == nil {
		t.Fatal("expected error from failing webhook, got nil")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status 500 in error, got %v", err)
	}
}

func TestNotifyRetriesAfterFailedSend(t *testing.T) {
	hook := newWebhook()
	defer hook.server.Close()
	hook.status = http.StatusInternalServerError
	dedup := newFakeDedup()

	n := notifier(dedup, hook.server.URL, alerts.Config{MinConfidence: 50})

	if err := n.Notify(context.Background(), edge(models.SignalLineMovement, models.EdgeStatusActive, 90)); err == nil {
		t.Fatal("expected error from failing webhook, got nil")
	}
	if len(dedup.keys) != 0 {
		t.Fatalf("dedup key still claimed after failed send: %v", dedup.keys)
	}

	// Webhook recovers; the next detection of the same edge must deliver
	hook.status = http.StatusOK
	if err := n.Notify(context.Background(), edge(models.SignalLineMovement, models.EdgeStatusActive, 90)); err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if len(hook.texts) != 2 {
		t.Errorf("expected 2 webhook attempts, got %d", len(hook.texts))
	}
}
