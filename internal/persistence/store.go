// Package persistence durably records a symbol's merged-bar, stroke, and
// segment chains so a replay can resume or be audited without recomputing
// the whole structural pipeline from raw bars. Grounded on the teacher's
// pgx-backed probe persistence client.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/algomatic/chanstream/pkg/bi"
	"github.com/algomatic/chanstream/pkg/kline"
	"github.com/algomatic/chanstream/pkg/seg"
)

// Store persists structural pipeline state for one or more symbols.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewStore creates a Store with a pooled pgx connection.
func NewStore(ctx context.Context, connStr string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info("structural store connected", "max_conns", cfg.MaxConns)
	return &Store{pool: pool, log: log}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
	s.log.Info("structural store closed")
}

// SaveBars bulk-inserts merged bars for symbol from the last persisted idx
// onward. Earlier rows are kept as they are, but the last persisted merged
// bar is deleted and written again: the tail merged bar can still absorb
// bars (moving its high/low) and only gets its fractal once a successor
// arrives.
func (s *Store) SaveBars(ctx context.Context, symbol string, bars []*kline.MergedBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	var fromIdx int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(idx), 0) FROM merged_bars WHERE symbol = $1`, symbol,
	).Scan(&fromIdx)
	if err != nil {
		return 0, fmt.Errorf("finding merged bar watermark for %s: %w", symbol, err)
	}

	var rows [][]any
	for _, b := range bars {
		if b.Idx < fromIdx {
			continue
		}
		rows = append(rows, []any{
			symbol, b.Idx, b.TimeBegin(), b.TimeEnd(),
			b.PriceHigh(), b.PriceLow(), b.Dir().String(), b.Fractal().String(),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM merged_bars WHERE symbol = $1 AND idx >= $2`, symbol, fromIdx,
	); err != nil {
		return 0, fmt.Errorf("clearing merged bar tail for %s: %w", symbol, err)
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"merged_bars"},
		[]string{"symbol", "idx", "begin_ts", "end_ts", "high", "low", "dir", "fractal"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("bulk inserting merged bars for %s: %w", symbol, err)
	}
	s.log.Debug("saved merged bars", "symbol", symbol, "count", n)
	return int(n), nil
}

// SaveStrokes replaces the persisted stroke tail for symbol from fromIdx
// onward with strokes. Strokes are mutable while virtual/unsure, so callers
// must re-save the full volatile suffix on every change rather than relying
// on append-only writes.
func (s *Store) SaveStrokes(ctx context.Context, symbol string, strokes []*bi.Stroke, fromIdx int) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning stroke transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM strokes WHERE symbol = $1 AND idx >= $2`, symbol, fromIdx,
	); err != nil {
		return 0, fmt.Errorf("clearing stroke tail for %s: %w", symbol, err)
	}

	var rows [][]any
	for _, st := range strokes {
		if st.Idx < fromIdx {
			continue
		}
		rows = append(rows, []any{
			symbol, st.Idx, st.Dir.String(), st.IsSure,
			st.Begin().TimeBegin(), st.End().TimeEnd(), st.BeginValue(), st.EndValue(),
		})
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"strokes"},
			[]string{"symbol", "idx", "dir", "is_sure", "begin_ts", "end_ts", "begin_value", "end_value"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return 0, fmt.Errorf("bulk inserting strokes for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing stroke transaction: %w", err)
	}
	s.log.Debug("saved strokes", "symbol", symbol, "count", n, "from_idx", fromIdx)
	return int(n), nil
}

// SaveSegments replaces the persisted segment tail for symbol from fromIdx
// onward. Segments can be retracted and re-split by do_init/cal_seg_sure, so
// the same delete-then-insert shape used for strokes applies here.
func (s *Store) SaveSegments(ctx context.Context, symbol string, segments []*seg.Segment, fromIdx int) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning segment transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM segments WHERE symbol = $1 AND idx >= $2`, symbol, fromIdx,
	); err != nil {
		return 0, fmt.Errorf("clearing segment tail for %s: %w", symbol, err)
	}

	var rows [][]any
	for _, sg := range segments {
		if sg.Idx < fromIdx {
			continue
		}
		rows = append(rows, []any{
			symbol, sg.Idx, sg.Dir.String(), sg.IsSure, sg.Status.String(), sg.Reason,
			sg.StartStroke.Idx, sg.EndStroke.Idx, sg.GetBeginVal(), sg.GetEndVal(),
		})
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"segments"},
			[]string{
				"symbol", "idx", "dir", "is_sure", "status", "reason",
				"start_bi_idx", "end_bi_idx", "begin_value", "end_value",
			},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return 0, fmt.Errorf("bulk inserting segments for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing segment transaction: %w", err)
	}
	s.log.Debug("saved segments", "symbol", symbol, "count", n, "from_idx", fromIdx)
	return int(n), nil
}

// LookupLastBarIdx returns the highest merged-bar idx persisted for symbol,
// or -1 if none exists, so a resumed replay knows where to pick up.
func (s *Store) LookupLastBarIdx(ctx context.Context, symbol string) (int, error) {
	var idx int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(idx), -1) FROM merged_bars WHERE symbol = $1`, symbol,
	).Scan(&idx)
	if err != nil {
		return 0, fmt.Errorf("looking up last merged bar idx for %s: %w", symbol, err)
	}
	return idx, nil
}
