package middleware

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	domrepo "github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/service/ratelimit"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Evaluate(ctx context.Context, cycle *models.EvaluationCycle) (*models.SignalEvent, error)
}

// EvalPipeline sits between ingestion and the evaluator. It validates,
// throttles per symbol, and fans cycles out to a fixed worker pool.
// Workers are hash-partitioned by symbol so one symbol's cycles are always
// evaluated in arrival order.
type EvalPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	log     *logger.Logger

	workers int
	bufSize int
	maxRPS  float64
	limiter *ratelimit.Limiter

	chans []chan *models.EvaluationCycle

	// mu orders Submit's channel sends before Stop's channel close:
	// Submit sends under the read lock, Stop closes under the write lock,
	// so a send can never race a close.
	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

type PipelineOption func(*EvalPipeline)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) PipelineOption {
	return func(p *EvalPipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBufferSize sets each worker's queue depth.
func WithBufferSize(n int) PipelineOption {
	return func(p *EvalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithMaxPerSymbol caps accepted cycles per second per symbol.
func WithMaxPerSymbol(n float64) PipelineOption {
	return func(p *EvalPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// NewEvalPipeline creates a pipeline around the processor.
func NewEvalPipeline(proc Proc, metrics domrepo.Metrics, log *logger.Logger, opts ...PipelineOption) *EvalPipeline {
	p := &EvalPipeline{
		proc:    proc,
		metrics: metrics,
		log:     log,
		workers: 4,
		bufSize: 1024,
		maxRPS:  10,
		limiter: ratelimit.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.chans = make([]chan *models.EvaluationCycle, p.workers)
	for i := range p.chans {
		p.chans[i] = make(chan *models.EvaluationCycle, p.bufSize)
	}
	return p
}

// Start launches the worker pool. A stopped pipeline cannot be restarted.
func (p *EvalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := range p.chans {
		p.wg.Add(1)
		go p.worker(ctx, p.chans[i])
	}
	p.log.Info("pipeline started",
		logger.Int("workers", p.workers),
		logger.Int("buffer", p.bufSize))
}

// Stop drains the workers and blocks until they exit. Submits arriving
// after Stop are rejected, not enqueued.
func (p *EvalPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.stopped = true
	for i := range p.chans {
		close(p.chans[i])
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Submit validates and enqueues one cycle. Throttled or overflowing cycles
// are dropped with a metric; Submit never blocks the caller.
func (p *EvalPipeline) Submit(_ context.Context, cycle *models.EvaluationCycle) error {
	if err := validateCycle(cycle); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started {
		p.metrics.RecordError("pipeline_stopped")
		return fmt.Errorf("pipeline not running")
	}
	if !p.limiter.Allow(cycle.Symbol, p.maxRPS, p.maxRPS) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	idx := p.partition(cycle.Symbol)
	ch := p.chans[idx]
	select {
	case ch <- cycle:
		p.metrics.RecordQueueDepth(idx, len(ch))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		p.log.Warn("pipeline buffer full, dropping cycle",
			logger.String("symbol", cycle.Symbol))
	}
	return nil
}

func (p *EvalPipeline) partition(symbol string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(len(p.chans)))
}

func (p *EvalPipeline) worker(ctx context.Context, ch <-chan *models.EvaluationCycle) {
	defer p.wg.Done()
	for cycle := range ch {
		if cycle == nil {
			continue
		}
		start := time.Now()
		if _, err := p.proc.Evaluate(ctx, cycle); err != nil {
			p.metrics.RecordError("pipeline_evaluate")
			p.log.Error("evaluate cycle", logger.Error(err),
				logger.String("symbol", cycle.Symbol))
			continue
		}
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	}
}

func validateCycle(c *models.EvaluationCycle) error {
	if c == nil {
		return fmt.Errorf("cycle nil")
	}
	if c.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if len(c.Samples) == 0 {
		return fmt.Errorf("no samples")
	}
	return nil
}
