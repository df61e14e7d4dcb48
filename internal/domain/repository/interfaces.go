package repository

import (
	"context"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
)

// ResultPublisher hands finished evaluations to external consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, ev *models.SignalEvent) error
	Close() error
}

// ResultCache keeps the latest result per symbol for low-latency readers.
type ResultCache interface {
	StoreLatest(ctx context.Context, res *models.ConfluenceResult) error
	Latest(ctx context.Context, symbol string) (*models.ConfluenceResult, error)
}

// QualityStore persists quality log entries durably for offline analysis.
type QualityStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Append(ctx context.Context, e *models.QualityLogEntry) error
	AppendBatch(ctx context.Context, entries []*models.QualityLogEntry) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.QualityLogEntry, error)
	Close() error
}

type Metrics interface {
	RecordEvaluation(symbol string, quality string)
	RecordFilter(reason string)
	RecordScore(symbol string, score float64)
	RecordManipulation(symbol string, pattern string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordQueueDepth(worker int, depth int)
}
