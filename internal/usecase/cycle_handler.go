package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	domrepo "github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
)

// Submitter accepts cycles for evaluation. Implemented by the pipeline in
// production and by the evaluator directly in tests.
type Submitter interface {
	Submit(ctx context.Context, cycle *models.EvaluationCycle) error
}

// CycleHandler decodes evaluation cycles off Kafka and hands them to the
// pipeline.
type CycleHandler struct {
	topic   string
	sink    Submitter
	metrics domrepo.Metrics
}

func NewCycleHandler(topic string, sink Submitter, metrics domrepo.Metrics) *CycleHandler {
	return &CycleHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *CycleHandler) Topic() string { return h.topic }

func (h *CycleHandler) Handle(ctx context.Context, b []byte) error {
	var cycle models.EvaluationCycle
	if err := json.Unmarshal(b, &cycle); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if cycle.Timestamp.IsZero() {
		cycle.Timestamp = time.Now()
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(cycle.Timestamp).Seconds())

	if err := h.sink.Submit(ctx, &cycle); err != nil {
		h.metrics.RecordError("submit")
		return err
	}
	return nil
}
