package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/exdash/exdash/internal/domain"
)

// CandleStore implements domain.CandleStore using PostgreSQL.
type CandleStore struct {
	pool *pgxpool.Pool
}

// NewCandleStore creates a CandleStore backed by the given connection pool.
func NewCandleStore(pool *pgxpool.Pool) *CandleStore {
	return &CandleStore{pool: pool}
}

const candleSelectCols = `symbol, interval_start, open, high, low, close`

func scanCandleRows(rows pgx.Rows) ([]domain.Candle, error) {
	var candles []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(
			&c.Symbol, &c.IntervalStart, &c.Open, &c.High, &c.Low, &c.Close,
		); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Insert stores a finalized candle. Re-inserting the same (symbol, interval
// start) is silently skipped via ON CONFLICT DO NOTHING, so a reconnect that
// replays a roll-over cannot corrupt persisted history.
func (s *CandleStore) Insert(ctx context.Context, c domain.Candle) error {
	const query = `
		INSERT INTO candles (symbol, interval_start, open, high, low, close)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, interval_start) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query,
		c.Symbol, c.IntervalStart, c.Open, c.High, c.Low, c.Close,
	); err != nil {
		return fmt.Errorf("postgres: insert candle %s@%s: %w",
			c.Symbol, c.IntervalStart.Format(time.RFC3339), err)
	}
	return nil
}

// InsertBatch inserts multiple finalized candles using pgx Batch.
func (s *CandleStore) InsertBatch(ctx context.Context, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO candles (symbol, interval_start, open, high, low, close)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, interval_start) DO NOTHING`

	for _, c := range candles {
		batch.Queue(query, c.Symbol, c.IntervalStart, c.Open, c.High, c.Low, c.Close)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range candles {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert candle batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRecent returns up to limit finalized candles for symbol, ascending by
// interval start.
func (s *CandleStore) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.Candle, error) {
	const query = `
		SELECT ` + candleSelectCols + `
		FROM (
			SELECT ` + candleSelectCols + `
			FROM candles
			WHERE symbol = $1
			ORDER BY interval_start DESC
			LIMIT $2
		) recent
		ORDER BY interval_start ASC`

	rows, err := s.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent candles %s: %w", symbol, err)
	}
	defer rows.Close()

	candles, err := scanCandleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent candles %s: %w", symbol, err)
	}
	return candles, nil
}

// ListBefore returns all candles with interval start strictly before the
// given time, ascending, for archival.
func (s *CandleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Candle, error) {
	const query = `
		SELECT ` + candleSelectCols + `
		FROM candles
		WHERE interval_start < $1
		ORDER BY interval_start ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list candles before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	candles, err := scanCandleRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan candles before %s: %w", before.Format(time.RFC3339), err)
	}
	return candles, nil
}

// DeleteBefore removes candles with interval start strictly before the given
// time and returns the number deleted.
func (s *CandleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM candles WHERE interval_start < $1", before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete candles before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.CandleStore = (*CandleStore)(nil)
