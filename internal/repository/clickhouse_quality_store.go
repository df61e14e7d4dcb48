package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/clickhouse"
)

// ClickHouseQualityStore implements QualityStore on ClickHouse. Rows are
// append-only; the MergeTree is partitioned by day to mirror the local
// JSONL layout.
type ClickHouseQualityStore struct {
	client *clickhouse.Client
	db     *sql.DB
	table  string
}

// NewClickHouseQualityStore creates a ClickHouse-backed quality store.
func NewClickHouseQualityStore(client *clickhouse.Client, table string) repository.QualityStore {
	return &ClickHouseQualityStore{client: client, db: client.DB(), table: table}
}

func (s *ClickHouseQualityStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    ts DateTime64(3),
    symbol LowCardinality(String),
    confluence_score Float64,
    consensus Float64,
    confidence Float64,
    disagreement Float64,
    filtered UInt8,
    filter_reason LowCardinality(String)
) ENGINE = MergeTree()
PARTITION BY toDate(ts)
ORDER BY (symbol, ts)`, s.table)
	return s.client.InitSchema(ctx, []string{ddl})
}

func (s *ClickHouseQualityStore) Append(ctx context.Context, e *models.QualityLogEntry) error {
	if e == nil {
		return nil
	}
	return s.AppendBatch(ctx, []*models.QualityLogEntry{e})
}

func (s *ClickHouseQualityStore) AppendBatch(ctx context.Context, entries []*models.QualityLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	// Multi-row VALUES insert to reduce round-trips. Chunked so a burst
	// cannot build an unbounded statement.
	const chunkSize = 2000
	for start := 0; start < len(entries); start += chunkSize {
		end := start + chunkSize
		if end > len(entries) {
			end = len(entries)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, e := range entries[start:end] {
			if e == nil || e.Symbol == "" {
				continue
			}
			filtered := uint8(0)
			if e.Filtered {
				filtered = 1
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				e.Timestamp,
				e.Symbol,
				e.ConfluenceScore,
				e.Consensus,
				e.Confidence,
				e.Disagreement,
				filtered,
				e.FilterReason,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, symbol, confluence_score, consensus, confidence, disagreement, filtered, filter_reason) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("quality insert: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseQualityStore) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.QualityLogEntry, error) {
	q := fmt.Sprintf("SELECT ts, symbol, confluence_score, consensus, confidence, disagreement, filtered, filter_reason FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.QualityLogEntry
	for rows.Next() {
		var e models.QualityLogEntry
		var filtered uint8
		if err := rows.Scan(&e.Timestamp, &e.Symbol, &e.ConfluenceScore, &e.Consensus, &e.Confidence, &e.Disagreement, &filtered, &e.FilterReason); err != nil {
			return nil, err
		}
		e.Filtered = filtered != 0
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *ClickHouseQualityStore) Close() error {
	return nil // connection owned by pkg client
}
