package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/pixelboard/internal/domain"
)

const insertPixelSQL = `
INSERT INTO pixels (x, y, color, placed_at, user_id, anon_id)
VALUES ($1, $2, $3, $4, $5, $6)`

const latestBoardSQL = `
SELECT DISTINCT ON (x, y) x, y, color, placed_at, user_id, anon_id
FROM pixels
WHERE x < $1 AND y < $2
ORDER BY x, y, placed_at DESC, id DESC`

type PixelRepo struct {
	pool *pgxpool.Pool
}

var (
	_ domain.PixelStore  = (*PixelRepo)(nil)
	_ domain.BoardReader = (*PixelRepo)(nil)
)

func NewPixelRepo(pool *pgxpool.Pool) *PixelRepo {
	return &PixelRepo{pool: pool}
}

// InsertPixel writes one placement in its own transaction. The pooled connection is held only
// for the duration of that transaction.
func (r *PixelRepo) InsertPixel(ctx context.Context, p domain.Pixel) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, insertPixelSQL, p.X, p.Y, p.Color, p.PlacedAt.UTC(), p.UserID, p.AnonID); err != nil {
		return fmt.Errorf("failed to insert pixel (%d,%d): %w", p.X, p.Y, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Board returns the newest pixel per coordinate inside width x height.
func (r *PixelRepo) Board(ctx context.Context, width, height int) ([]domain.Pixel, error) {
	rows, err := r.pool.Query(ctx, latestBoardSQL, width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to query board: %w", err)
	}

	pixels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Pixel, error) {
		var p domain.Pixel
		err := row.Scan(&p.X, &p.Y, &p.Color, &p.PlacedAt, &p.UserID, &p.AnonID)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan board: %w", err)
	}
	return pixels, nil
}
