package postgres

import (
	"context"
	"fmt"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

// GetSnapshots retrieves a game's odds observations with optional filtering,
// ordered oldest first so detectors see the opening value at index zero.
func (c *Client) GetSnapshots(ctx context.Context, gameID string, filters contracts.SnapshotFilters) ([]models.OddsSnapshot, error) {
	query := `
		SELECT id, game_id, sport_key, book_key, market, outcome_key,
		       line, odds, commence_time, observed_at
		FROM odds_snapshots
		WHERE game_id = $1
	`
	args := []interface{}{gameID}
	argIdx := 2

	if filters.Market != "" {
		query += fmt.Sprintf(" AND market = $%d", argIdx)
		args = append(args, filters.Market)
		argIdx++
	}

	if filters.OutcomeKey != "" {
		query += fmt.Sprintf(" AND outcome_key = $%d", argIdx)
		args = append(args, filters.OutcomeKey)
		argIdx++
	}

	if filters.Since != nil {
		query += fmt.Sprintf(" AND observed_at >= $%d", argIdx)
		args = append(args, *filters.Since)
		argIdx++
	}

	if filters.Until != nil {
		query += fmt.Sprintf(" AND observed_at <= $%d", argIdx)
		args = append(args, *filters.Until)
		argIdx++
	}

	query += " ORDER BY observed_at ASC, id ASC"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.OddsSnapshot
	for rows.Next() {
		var s models.OddsSnapshot
		if err := rows.Scan(
			&s.ID, &s.GameID, &s.SportKey, &s.BookKey, &s.Market, &s.OutcomeKey,
			&s.Line, &s.Odds, &s.CommenceTime, &s.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snapshots, nil
}
