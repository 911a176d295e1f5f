package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// SlackSender posts edge alerts to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlackSender creates a sender for the webhook URL
func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts one edge alert. Slack replies 200 on success.
func (s *SlackSender) Send(ctx context.Context, edge models.LiveEdge) error {
	payload := map[string]interface{}{
		"text": formatMessage(edge),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// formatMessage renders the edge as Slack mrkdwn
func formatMessage(edge models.LiveEdge) string {
	var sb strings.Builder

	title := strings.ToUpper(strings.ReplaceAll(string(edge.SignalType), "_", " "))
	sb.WriteString(fmt.Sprintf("%s *%s* | Confidence: %.0f\n\n",
		signalEmoji(edge.SignalType), title, edge.Confidence))

	sb.WriteString(fmt.Sprintf("*Game:* %s (%s)\n", edge.GameID, edge.SportKey))
	sb.WriteString(fmt.Sprintf("*Market:* %s | %s\n", edge.Market, edge.OutcomeKey))
	sb.WriteString(fmt.Sprintf("*Move:* %s → %s (magnitude %.1f)\n",
		formatValue(edge.MarketType, edge.InitialValue),
		formatValue(edge.MarketType, edge.CurrentValue),
		edge.Magnitude))
	sb.WriteString(fmt.Sprintf("*Books:* opened %s | now %s\n", edge.TriggeringBook, edge.BestCurrentBook))

	if edge.SharpBook != "" {
		sb.WriteString(fmt.Sprintf("*Sharp:* %s", edge.SharpBook))
		if edge.SharpBookLine != nil {
			sb.WriteString(fmt.Sprintf(" @ %+.1f", *edge.SharpBookLine))
		}
		sb.WriteString("\n")
	}
	if edge.Notes != "" {
		sb.WriteString(fmt.Sprintf("_%s_\n", edge.Notes))
	}

	sb.WriteString(fmt.Sprintf("\n_Detected: %s | ID: %d_",
		edge.DetectedAt.Format("15:04:05"), edge.ID))

	return sb.String()
}

// signalEmoji returns the marker for each signal family
func signalEmoji(signal models.SignalType) string {
	switch signal {
	case models.SignalLineMovement:
		return "📈"
	case models.SignalJuiceImprovement:
		return "💰"
	case models.SignalExchangeDivergence:
		return "🎯"
	case models.SignalReverseLine:
		return "⚡"
	default:
		return "📊"
	}
}

// formatValue renders a signed line or a signed American price
func formatValue(mt models.MarketType, v float64) string {
	if mt.UsesLine() {
		return fmt.Sprintf("%+.1f", v)
	}
	return fmt.Sprintf("%+d", int(v))
}
