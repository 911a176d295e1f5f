package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/contracts"
	"github.com/OMIGROUPOPS/omi-edge-engine/pkg/models"
)

const edgeColumns = `
	id, game_id, sport_key, market_type, market, outcome_key, signal_type,
	status, initial_value, current_value, magnitude, initial_magnitude,
	magnitude_pct, confidence, triggering_book, best_current_book,
	sharp_book, sharp_book_line, notes,
	detected_at, faded_at, expired_at, expires_at, updated_at`

func scanEdge(row interface{ Scan(...interface{}) error }) (models.LiveEdge, error) {
	var e models.LiveEdge
	err := row.Scan(
		&e.ID, &e.GameID, &e.SportKey, &e.MarketType, &e.Market, &e.OutcomeKey,
		&e.SignalType, &e.Status, &e.InitialValue, &e.CurrentValue,
		&e.Magnitude, &e.InitialMagnitude, &e.MagnitudePct, &e.Confidence,
		&e.TriggeringBook, &e.BestCurrentBook, &e.SharpBook, &e.SharpBookLine,
		&e.Notes, &e.DetectedAt, &e.FadedAt, &e.ExpiredAt, &e.ExpiresAt,
		&e.UpdatedAt,
	)
	return e, err
}

// UpsertEdge writes an edge row. A conflict on the identity key overwrites
// the row in place with the fresh detection and resets the lifecycle, so a
// re-detected edge comes back active with its fade and expiry marks cleared.
func (c *Client) UpsertEdge(ctx context.Context, edge *models.LiveEdge) error {
	query := `
		INSERT INTO live_edges (
			game_id, sport_key, market_type, market, outcome_key, signal_type,
			status, initial_value, current_value, magnitude, initial_magnitude,
			magnitude_pct, confidence, triggering_book, best_current_book,
			sharp_book, sharp_book_line, notes, detected_at, expires_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		ON CONFLICT ON CONSTRAINT live_edges_identity DO UPDATE SET
			market            = EXCLUDED.market,
			status            = EXCLUDED.status,
			initial_value     = EXCLUDED.initial_value,
			current_value     = EXCLUDED.current_value,
			magnitude         = EXCLUDED.magnitude,
			initial_magnitude = EXCLUDED.initial_magnitude,
			magnitude_pct     = EXCLUDED.magnitude_pct,
			confidence        = EXCLUDED.confidence,
			triggering_book   = EXCLUDED.triggering_book,
			best_current_book = EXCLUDED.best_current_book,
			sharp_book        = EXCLUDED.sharp_book,
			sharp_book_line   = EXCLUDED.sharp_book_line,
			notes             = EXCLUDED.notes,
			detected_at       = EXCLUDED.detected_at,
			faded_at          = NULL,
			expired_at        = NULL,
			expires_at        = EXCLUDED.expires_at,
			updated_at        = EXCLUDED.updated_at
		RETURNING id
	`

	err := c.db.QueryRowContext(
		ctx,
		query,
		edge.GameID,
		edge.SportKey,
		string(edge.MarketType),
		edge.Market,
		edge.OutcomeKey,
		string(edge.SignalType),
		string(edge.Status),
		edge.InitialValue,
		edge.CurrentValue,
		edge.Magnitude,
		edge.InitialMagnitude,
		edge.MagnitudePct,
		edge.Confidence,
		edge.TriggeringBook,
		edge.BestCurrentBook,
		edge.SharpBook,
		edge.SharpBookLine,
		edge.Notes,
		edge.DetectedAt,
		edge.ExpiresAt,
		edge.UpdatedAt,
	).Scan(&edge.ID)

	if err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}

// UpdateEdgeLifecycle patches one row's lifecycle fields by id.
func (c *Client) UpdateEdgeLifecycle(ctx context.Context, id int64, patch contracts.EdgePatch) error {
	query := "UPDATE live_edges SET updated_at = NOW()"
	args := []interface{}{}
	argIdx := 1

	if patch.Status != nil {
		query += fmt.Sprintf(", status = $%d", argIdx)
		args = append(args, string(*patch.Status))
		argIdx++
	}

	if patch.Magnitude != nil {
		query += fmt.Sprintf(", magnitude = $%d", argIdx)
		args = append(args, *patch.Magnitude)
		argIdx++
	}

	if patch.CurrentValue != nil {
		query += fmt.Sprintf(", current_value = $%d", argIdx)
		args = append(args, *patch.CurrentValue)
		argIdx++
	}

	if patch.FadedAt != nil {
		query += fmt.Sprintf(", faded_at = $%d", argIdx)
		args = append(args, *patch.FadedAt)
		argIdx++
	}

	if patch.ExpiredAt != nil {
		query += fmt.Sprintf(", expired_at = $%d", argIdx)
		args = append(args, *patch.ExpiredAt)
		argIdx++
	}

	query += fmt.Sprintf(" WHERE id = $%d", argIdx)
	args = append(args, id)

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update edge lifecycle: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update edge lifecycle rows: %w", err)
	}
	if affected == 0 {
		return models.ErrEdgeNotFound
	}
	return nil
}

// GetEvaluableEdges returns the rows the lifecycle loop still evaluates.
// Expired rows stay out permanently.
func (c *Client) GetEvaluableEdges(ctx context.Context) ([]models.LiveEdge, error) {
	query := `SELECT ` + edgeColumns + `
		FROM live_edges
		WHERE status IN ($1, $2)
		ORDER BY id ASC`

	rows, err := c.db.QueryContext(ctx, query,
		string(models.EdgeStatusActive), string(models.EdgeStatusFading))
	if err != nil {
		return nil, fmt.Errorf("query evaluable edges: %w", err)
	}
	defer rows.Close()

	return collectEdges(rows)
}

// ExpireStartedGames force-expires every non-expired edge whose game has
// started, in one statement.
func (c *Client) ExpireStartedGames(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE live_edges
		SET status = $1, expired_at = $2, updated_at = $2
		WHERE status <> $1 AND expires_at IS NOT NULL AND expires_at <= $2
	`

	res, err := c.db.ExecContext(ctx, query, string(models.EdgeStatusExpired), now)
	if err != nil {
		return 0, fmt.Errorf("expire started games: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire started games rows: %w", err)
	}
	return affected, nil
}

// ListExpiredBefore returns expired edges older than the cutoff for archival
func (c *Client) ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.LiveEdge, error) {
	query := `SELECT ` + edgeColumns + `
		FROM live_edges
		WHERE status = $1 AND expired_at IS NOT NULL AND expired_at < $2
		ORDER BY expired_at ASC`

	rows, err := c.db.QueryContext(ctx, query, string(models.EdgeStatusExpired), cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expired edges: %w", err)
	}
	defer rows.Close()

	return collectEdges(rows)
}

// DeleteExpiredBefore removes expired edges older than the cutoff
func (c *Client) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM live_edges
		WHERE status = $1 AND expired_at IS NOT NULL AND expired_at < $2
	`

	res, err := c.db.ExecContext(ctx, query, string(models.EdgeStatusExpired), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired edges: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired edges rows: %w", err)
	}
	return affected, nil
}

// ListEdges retrieves edges with optional filtering, newest detection first
func (c *Client) ListEdges(ctx context.Context, filters contracts.EdgeFilters) ([]models.LiveEdge, error) {
	query := `SELECT ` + edgeColumns + `
		FROM live_edges
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filters.SportKey != "" {
		query += fmt.Sprintf(" AND sport_key = $%d", argIdx)
		args = append(args, filters.SportKey)
		argIdx++
	}

	if filters.GameID != "" {
		query += fmt.Sprintf(" AND game_id = $%d", argIdx)
		args = append(args, filters.GameID)
		argIdx++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filters.Status))
		argIdx++
	}

	if filters.MarketType != "" {
		query += fmt.Sprintf(" AND market_type = $%d", argIdx)
		args = append(args, string(filters.MarketType))
		argIdx++
	}

	if filters.SignalType != "" {
		query += fmt.Sprintf(" AND signal_type = $%d", argIdx)
		args = append(args, string(filters.SignalType))
		argIdx++
	}

	if filters.MinConfidence > 0 {
		query += fmt.Sprintf(" AND confidence >= $%d", argIdx)
		args = append(args, filters.MinConfidence)
		argIdx++
	}

	query += " ORDER BY detected_at DESC, id DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	return collectEdges(rows)
}

// GetEdge retrieves a single edge by id
func (c *Client) GetEdge(ctx context.Context, id int64) (*models.LiveEdge, error) {
	query := `SELECT ` + edgeColumns + ` FROM live_edges WHERE id = $1`

	e, err := scanEdge(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEdgeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query edge: %w", err)
	}
	return &e, nil
}

// CountEdgesByStatus returns row counts per lifecycle status
func (c *Client) CountEdgesByStatus(ctx context.Context) (map[models.EdgeStatus]int64, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM live_edges GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count edges: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EdgeStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.EdgeStatus(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func collectEdges(rows *sql.Rows) ([]models.LiveEdge, error) {
	var edges []models.LiveEdge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return edges, nil
}
