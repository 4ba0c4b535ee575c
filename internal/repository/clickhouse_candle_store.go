package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CandleScope/internal/domain/models"
	domrepo "CandleScope/internal/domain/repository"
	pkgch "CandleScope/pkg/clickhouse"
	applogger "CandleScope/pkg/logger"
)

// ClickHouseCandleStore implements CandleStore with one table per
// timeframe. ReplacingMergeTree keyed on (symbol, bucket) lets a re-flushed
// forming candle overwrite its earlier partial row.
type ClickHouseCandleStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewClickHouseCandleStore(ch *pkgch.Client, l *applogger.Logger) *ClickHouseCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseCandleStore{db: ch.DB(), l: l}
}

func tableForTF(tf domrepo.Timeframe) (string, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return "candlescope.candles_" + string(tf), nil
}

// Init creates the per-timeframe tables (idempotent).
func (s *ClickHouseCandleStore) Init(ctx context.Context) error {
	stmts := []string{"CREATE DATABASE IF NOT EXISTS candlescope"}
	for _, tf := range domrepo.AllTimeframes() {
		table, _ := tableForTF(tf)
		stmts = append(stmts, fmt.Sprintf(`
            CREATE TABLE IF NOT EXISTS %s (
                symbol LowCardinality(String),
                bucket DateTime,
                open   Float64,
                high   Float64,
                low    Float64,
                close  Float64,
                vol    Float64
            ) ENGINE = ReplacingMergeTree()
            ORDER BY (symbol, bucket)
        `, table))
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseCandleStore) Store(ctx context.Context, tf domrepo.Timeframe, c *models.Candle) error {
	return s.StoreBatch(ctx, tf, []*models.Candle{c})
}

func (s *ClickHouseCandleStore) StoreBatch(ctx context.Context, tf domrepo.Timeframe, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	table, err := tableForTF(tf)
	if err != nil {
		return err
	}

	// Multi-row VALUES insert, chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, c := range candles[start:end] {
			if c == nil || c.Symbol == "" || c.Timestamp.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Symbol, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, bucket, open, high, low, close, vol) VALUES %s",
			table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert candles error",
				applogger.String("table", table),
				applogger.Int("rows", len(values)),
				applogger.Error(err),
			)
			return fmt.Errorf("store candles: %w", err)
		}
	}
	return nil
}

// LatestN returns up to n candles for symbol/tf, newest first.
func (s *ClickHouseCandleStore) LatestN(ctx context.Context, symbol string, tf domrepo.Timeframe, n int) ([]models.Candle, error) {
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT symbol, bucket, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `, table)
	return s.query(ctx, table, q, symbol, n)
}

// Page returns up to limit candles strictly older than before, newest first.
func (s *ClickHouseCandleStore) Page(ctx context.Context, symbol string, tf domrepo.Timeframe, before time.Time, limit int) ([]models.Candle, error) {
	if before.IsZero() {
		return s.LatestN(ctx, symbol, tf, limit)
	}
	table, err := tableForTF(tf)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
        SELECT symbol, bucket, open, high, low, close, vol
        FROM %s FINAL
        WHERE symbol = ? AND bucket < ?
        ORDER BY bucket DESC
        LIMIT ?
    `, table)
	return s.query(ctx, table, q, symbol, before, limit)
}

func (s *ClickHouseCandleStore) query(ctx context.Context, table, q string, args ...interface{}) ([]models.Candle, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse candle query error",
			applogger.String("table", table),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 256)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Symbol, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse candle query ok",
		applogger.String("table", table),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *ClickHouseCandleStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseCandleStore) Close() error {
	return nil // connection pool owned by pkg/clickhouse
}

var _ domrepo.CandleStore = (*ClickHouseCandleStore)(nil)
