package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/confluence"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	domrepo "github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/manipulation"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/normalize"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/quality"
	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/safemath"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// EvaluatorConfig selects how manipulation detection feeds the score and
// which indicators take which normalization path.
type EvaluatorConfig struct {
	// Prefilter removes spoof-flagged orders from the book before any
	// book-derived indicator is read.
	Prefilter bool
	// PenaltyAdjust scales book-derived indicator scores by the
	// manipulation confidence instead of discarding them.
	PenaltyAdjust bool
	// PublishTimeout bounds the async publish/cache fan-out per event.
	PublishTimeout time.Duration
	// ZScoreIndicators are standardized through the rolling normalizer;
	// everything else is read as a native [0,100] score.
	ZScoreIndicators []string
	// OrderbookIndicators receive the manipulation confidence adjustment.
	OrderbookIndicators []string
}

// Evaluator runs one full confluence evaluation per cycle: manipulation
// screening, per-indicator normalization, weighted aggregation, quality
// filtering, then fan-out to the tracker, publisher and cache.
type Evaluator struct {
	cfg       EvaluatorConfig
	detector  *manipulation.Detector
	norms     *normalize.Registry
	agg       *confluence.Aggregator
	filter    *quality.Filter
	tracker   *quality.Tracker
	publisher domrepo.ResultPublisher
	cache     domrepo.ResultCache
	metrics   domrepo.Metrics
	log       *logger.Logger

	zscore    map[string]bool
	orderbook map[string]bool

	// locks serializes evaluations per symbol so normalizer windows and
	// trade history see cycles in arrival order.
	locks sync.Map // symbol -> *sync.Mutex

	pubWG sync.WaitGroup
}

// NewEvaluator wires the evaluation pipeline.
func NewEvaluator(
	cfg EvaluatorConfig,
	detector *manipulation.Detector,
	norms *normalize.Registry,
	agg *confluence.Aggregator,
	filter *quality.Filter,
	tracker *quality.Tracker,
	publisher domrepo.ResultPublisher,
	cache domrepo.ResultCache,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Evaluator {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	e := &Evaluator{
		cfg:       cfg,
		detector:  detector,
		norms:     norms,
		agg:       agg,
		filter:    filter,
		tracker:   tracker,
		publisher: publisher,
		cache:     cache,
		metrics:   metrics,
		log:       log,
		zscore:    make(map[string]bool, len(cfg.ZScoreIndicators)),
		orderbook: make(map[string]bool, len(cfg.OrderbookIndicators)),
	}
	for _, name := range cfg.ZScoreIndicators {
		e.zscore[name] = true
	}
	for _, name := range cfg.OrderbookIndicators {
		e.orderbook[name] = true
	}
	return e
}

func (e *Evaluator) symbolLock(symbol string) *sync.Mutex {
	if mu, ok := e.locks.Load(symbol); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := e.locks.LoadOrStore(symbol, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Evaluate scores one cycle and returns the published event. The returned
// event always carries a result; filtered evaluations are published with
// their suppression reason rather than dropped silently.
func (e *Evaluator) Evaluate(ctx context.Context, cycle *models.EvaluationCycle) (*models.SignalEvent, error) {
	if cycle == nil || cycle.Symbol == "" {
		return nil, fmt.Errorf("cycle is empty")
	}
	start := time.Now()

	mu := e.symbolLock(cycle.Symbol)
	mu.Lock()

	e.detector.Observe(cycle.Symbol, cycle.Trades)

	penalty := e.screenOrderbook(cycle)
	inputs := e.buildInputs(cycle, penalty)

	res := e.agg.Evaluate(cycle.Symbol, inputs, time.Now())
	decision := e.filter.Decide(res)
	mu.Unlock()

	e.metrics.RecordEvaluation(cycle.Symbol, string(res.Quality))
	e.metrics.RecordScore(cycle.Symbol, res.Score)
	if !decision.Passed() {
		e.metrics.RecordFilter(decision.Reason)
	}

	e.tracker.Log(models.QualityLogEntry{
		Timestamp:       res.Timestamp,
		Symbol:          res.Symbol,
		ConfluenceScore: res.Score,
		Consensus:       res.Consensus,
		Confidence:      res.Confidence,
		Disagreement:    res.Disagreement,
		Filtered:        !decision.Passed(),
		FilterReason:    decision.Reason,
	})

	ev := &models.SignalEvent{
		Symbol:   cycle.Symbol,
		Result:   res,
		Decision: decision,
	}
	e.fanOut(ev)

	e.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	return ev, nil
}

// screenOrderbook runs manipulation detection on the cycle's book and
// returns the penalty. With Prefilter on, spoof-flagged orders are removed
// from the cycle's book so book-derived readings never see them.
func (e *Evaluator) screenOrderbook(cycle *models.EvaluationCycle) float64 {
	if cycle.OrderBook == nil {
		return 0
	}
	fb := e.detector.FilterOrderbook(cycle.OrderBook, e.cfg.Prefilter)
	if fb.ManipulationDetected {
		for _, evd := range fb.Evidence {
			e.metrics.RecordManipulation(cycle.Symbol, string(evd.Pattern))
		}
		e.log.Debug("manipulation detected",
			logger.String("symbol", cycle.Symbol),
			logger.Uint64("orders_removed", uint64(fb.OrdersRemoved)),
			logger.Float64("layering_score", fb.LayeringScore))
	}
	if e.cfg.Prefilter {
		cycle.OrderBook = fb.Book
	}
	if !e.cfg.PenaltyAdjust {
		return 0
	}
	return manipulation.Penalty(fb.Evidence)
}

// buildInputs converts raw samples into [0,100] aggregation inputs.
func (e *Evaluator) buildInputs(cycle *models.EvaluationCycle, penalty float64) []confluence.Input {
	inputs := make([]confluence.Input, 0, len(cycle.Samples))
	for _, s := range cycle.Samples {
		score := s.RawValue
		if e.zscore[s.Name] {
			norm := e.norms.Get(cycle.Symbol, s.Name)
			norm.Update(s.RawValue)
			z := norm.Normalize(s.RawValue)
			// Map the winsorized z back onto the display scale: the
			// winsor bound lands on 0/100, zero stays at 50.
			score = safemath.EnsureScoreRange(50 + 50*safemath.SafeDivide(z, norm.WinsorBound(), 0))
		}
		if penalty > 0 && e.orderbook[s.Name] {
			n := (score - 50) / 50
			score = 50 + 50*manipulation.AdjustScore(n, penalty)
		}
		inputs = append(inputs, confluence.Input{
			Name:      s.Name,
			Score:     score,
			Timestamp: s.Timestamp,
		})
	}
	return inputs
}

// fanOut publishes and caches the event off the hot path. Failures are
// logged and counted, never propagated back into evaluation.
func (e *Evaluator) fanOut(ev *models.SignalEvent) {
	e.pubWG.Add(1)
	go func() {
		defer e.pubWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PublishTimeout)
		defer cancel()

		if e.publisher != nil {
			if err := e.publisher.Publish(ctx, ev); err != nil {
				e.metrics.RecordError("publish")
				e.log.Error("publish result", logger.Error(err), logger.String("symbol", ev.Symbol))
			}
		}
		if e.cache != nil {
			if err := e.cache.StoreLatest(ctx, ev.Result); err != nil {
				e.metrics.RecordError("cache")
				e.log.Error("cache result", logger.Error(err), logger.String("symbol", ev.Symbol))
			}
		}
	}()
}

// Drain blocks until in-flight publishes complete. Called on shutdown.
func (e *Evaluator) Drain() {
	e.pubWG.Wait()
}

// ResetSymbol clears per-symbol rolling state after a data gap.
func (e *Evaluator) ResetSymbol(symbol string) {
	mu := e.symbolLock(symbol)
	mu.Lock()
	e.norms.ResetSymbol(symbol)
	mu.Unlock()
}
