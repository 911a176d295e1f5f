// Package pillars fetches six-factor game reports from the pillar service.
package pillars

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/OMIGROUPOPS/omi-edge-engine/internal/retry"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// Client calls the pillar service's REST API with retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	policy     *retry.Policy
	logger     zerolog.Logger
}

// NewClient creates a pillar service client. retryBase seeds the backoff
// between attempts; zero falls back to 500ms.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryBase time.Duration, logger zerolog.Logger) *Client {
	if retryBase <= 0 {
		retryBase = 500 * time.Millisecond
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.NewPolicy(maxRetries, retryBase),
		logger:     logger.With().Str("component", "pillars").Logger(),
	}
}

// GetPillars fetches the pillar report for one game.
func (c *Client) GetPillars(ctx context.Context, gameID, sport string) (*models.PillarReport, error) {
	endpoint := fmt.Sprintf("%s/pillars/%s?sport=%s",
		c.baseURL, url.PathEscape(gameID), url.QueryEscape(sport))

	var report models.PillarReport
	err := c.policy.Execute(ctx, func() error {
		return c.fetch(ctx, endpoint, &report)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching pillars for %s: %w", gameID, err)
	}

	c.logger.Debug().
		Str("game_id", gameID).
		Str("sport", sport).
		Msg("fetched pillar report")
	return &report, nil
}

// Verify interface compliance at compile time.
var _ contracts.PillarProvider = (*Client)(nil)

func (c *Client) fetch(ctx context.Context, endpoint string, out *models.PillarReport) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("pillar service error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
