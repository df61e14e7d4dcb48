package quality

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	domrepo "github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/repository"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// dayLayout names one quality log file per UTC day.
const dayLayout = "2006-01-02"

// TrackerConfig tunes the audit trail sinks.
type TrackerConfig struct {
	Dir           string        `yaml:"dir" default:"data/quality"`
	FileEnabled   bool          `yaml:"file_enabled" default:"true"`
	RingSize      int           `yaml:"ring_size" default:"4096"`
	QueueSize     int           `yaml:"queue_size" default:"1024"`
	FlushBatch    int           `yaml:"flush_batch" default:"64"`
	FlushInterval time.Duration `yaml:"flush_interval" default:"2s"`
	SinkTimeout   time.Duration `yaml:"sink_timeout" default:"5s"`
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Dir:           "data/quality",
		FileEnabled:   true,
		RingSize:      4096,
		QueueSize:     1024,
		FlushBatch:    64,
		FlushInterval: 2 * time.Second,
		SinkTimeout:   5 * time.Second,
	}
}

// Tracker records every quality decision: an in-memory ring buffer for
// low-latency recent stats, a line-delimited JSON file partitioned by UTC
// day, and an optional durable store fed asynchronously so a slow sink
// never stalls signal generation. Sink failures degrade to log-and-continue.
type Tracker struct {
	cfg     TrackerConfig
	log     *logger.Logger
	metrics domrepo.Metrics
	store   domrepo.QualityStore

	mu    sync.Mutex
	ring  []models.QualityLogEntry
	next  int
	count int

	// fileMu keeps disk appends off the ring mutex so stats readers
	// never wait on I/O.
	fileMu  sync.Mutex
	fileDay string
	file    *os.File

	storeCh  chan models.QualityLogEntry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewTracker creates a tracker. store and metrics may be nil.
func NewTracker(cfg TrackerConfig, store domrepo.QualityStore, metrics domrepo.Metrics, log *logger.Logger) *Tracker {
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultTrackerConfig().RingSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultTrackerConfig().QueueSize
	}
	if cfg.FlushBatch <= 0 {
		cfg.FlushBatch = DefaultTrackerConfig().FlushBatch
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultTrackerConfig().FlushInterval
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = DefaultTrackerConfig().SinkTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		store:   store,
		ring:    make([]models.QualityLogEntry, cfg.RingSize),
		storeCh: make(chan models.QualityLogEntry, cfg.QueueSize),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the background store flusher. No-op without a store.
func (t *Tracker) Start(ctx context.Context) {
	if t.store == nil {
		return
	}
	t.wg.Add(1)
	go t.flushLoop(ctx)
}

// Close stops the flusher and closes the day file.
func (t *Tracker) Close() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	t.wg.Wait()
	t.fileMu.Lock()
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
	t.fileMu.Unlock()
}

// Log appends one entry to every sink. Never returns an error and never
// blocks the evaluation path: file failures are logged, a full store
// queue drops the durable copy (the file and ring still have it).
func (t *Tracker) Log(entry models.QualityLogEntry) {
	t.mu.Lock()
	t.ring[t.next] = entry
	t.next = (t.next + 1) % len(t.ring)
	t.count++
	t.mu.Unlock()

	t.fileMu.Lock()
	t.writeFileLocked(entry)
	t.fileMu.Unlock()

	if t.store == nil {
		return
	}
	select {
	case t.storeCh <- entry:
	default:
		t.recordError("quality_store_queue_full")
		t.log.Warn("quality store queue full, dropping durable copy",
			logger.String("symbol", entry.Symbol))
	}
}

func (t *Tracker) writeFileLocked(entry models.QualityLogEntry) {
	if !t.cfg.FileEnabled {
		return
	}
	day := entry.Timestamp.UTC().Format(dayLayout)
	if t.file == nil || day != t.fileDay {
		if t.file != nil {
			_ = t.file.Close()
			t.file = nil
		}
		if err := os.MkdirAll(t.cfg.Dir, 0o755); err != nil {
			t.recordError("quality_file_mkdir")
			t.log.Error("quality log dir", logger.Error(err))
			return
		}
		path := filepath.Join(t.cfg.Dir, "quality_"+day+".jsonl")
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			t.recordError("quality_file_open")
			t.log.Error("quality log open", logger.Error(err), logger.String("path", path))
			return
		}
		t.file = f
		t.fileDay = day
	}

	b, err := json.Marshal(entry)
	if err != nil {
		t.recordError("quality_file_marshal")
		return
	}
	if _, err := t.file.Write(append(b, '\n')); err != nil {
		t.recordError("quality_file_write")
		t.log.Error("quality log write", logger.Error(err))
	}
}

func (t *Tracker) flushLoop(ctx context.Context) {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*models.QualityLogEntry, 0, t.cfg.FlushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		fctx, cancel := context.WithTimeout(context.Background(), t.cfg.SinkTimeout)
		err := t.store.AppendBatch(fctx, batch)
		cancel()
		if err != nil {
			t.recordError("quality_store_flush")
			t.log.Warn("quality store flush failed, entries dropped from durable sink",
				logger.Error(err), logger.Int("entries", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-t.stopCh:
			// drain what is already queued, then stop
			for {
				select {
				case e := <-t.storeCh:
					cp := e
					batch = append(batch, &cp)
					if len(batch) >= t.cfg.FlushBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case e := <-t.storeCh:
			cp := e
			batch = append(batch, &cp)
			if len(batch) >= t.cfg.FlushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (t *Tracker) recordError(kind string) {
	if t.metrics != nil {
		t.metrics.RecordError(kind)
	}
}

// Statistics aggregates quality metrics over recent entries.
type Statistics struct {
	Count        int            `json:"count"`
	FilterRate   float64        `json:"filter_rate"`
	Confidence   SummaryStats   `json:"confidence"`
	Consensus    SummaryStats   `json:"consensus"`
	Disagreement SummaryStats   `json:"disagreement"`
	Reasons      map[string]int `json:"reasons"`
}

// GetStatistics aggregates over ring-buffer entries newer than now-period.
// A zero period means everything the ring still holds.
func (t *Tracker) GetStatistics(period time.Duration) Statistics {
	entries := t.recent(period)
	stats := Statistics{Count: len(entries), Reasons: make(map[string]int)}
	if len(entries) == 0 {
		return stats
	}

	confidence := make([]float64, 0, len(entries))
	consensus := make([]float64, 0, len(entries))
	disagreement := make([]float64, 0, len(entries))
	filtered := 0
	for _, e := range entries {
		confidence = append(confidence, e.Confidence)
		consensus = append(consensus, e.Consensus)
		disagreement = append(disagreement, e.Disagreement)
		if e.Filtered {
			filtered++
			stats.Reasons[e.FilterReason]++
		}
	}
	stats.FilterRate = float64(filtered) / float64(len(entries))
	stats.Confidence = summarize(confidence)
	stats.Consensus = summarize(consensus)
	stats.Disagreement = summarize(disagreement)
	return stats
}

// GroupStats describes one side of the filtered/passed comparison.
type GroupStats struct {
	Count            int     `json:"count"`
	MeanConfidence   float64 `json:"mean_confidence"`
	MeanConsensus    float64 `json:"mean_consensus"`
	MeanDisagreement float64 `json:"mean_disagreement"`
}

// FilterEffectiveness compares filtered and passed populations. Outcome
// correlation (did filtered signals actually perform worse) needs data
// this engine does not have; it plugs in through OutcomeCorrelator.
type FilterEffectiveness struct {
	Passed   GroupStats     `json:"passed"`
	Filtered GroupStats     `json:"filtered"`
	Reasons  map[string]int `json:"reasons"`
}

// OutcomeCorrelator is the interface point for the external layer that
// joins quality decisions with realized trade outcomes.
type OutcomeCorrelator interface {
	Correlate(ctx context.Context, entries []models.QualityLogEntry) (map[string]float64, error)
}

// GetFilterEffectiveness compares the distributions of filtered vs passed
// signals over the ring buffer.
func (t *Tracker) GetFilterEffectiveness() FilterEffectiveness {
	entries := t.recent(0)
	out := FilterEffectiveness{Reasons: make(map[string]int)}
	var pc, pcons, pd, fc, fcons, fd float64
	for _, e := range entries {
		if e.Filtered {
			out.Filtered.Count++
			fc += e.Confidence
			fcons += e.Consensus
			fd += e.Disagreement
			out.Reasons[e.FilterReason]++
			continue
		}
		out.Passed.Count++
		pc += e.Confidence
		pcons += e.Consensus
		pd += e.Disagreement
	}
	if out.Passed.Count > 0 {
		n := float64(out.Passed.Count)
		out.Passed.MeanConfidence = pc / n
		out.Passed.MeanConsensus = pcons / n
		out.Passed.MeanDisagreement = pd / n
	}
	if out.Filtered.Count > 0 {
		n := float64(out.Filtered.Count)
		out.Filtered.MeanConfidence = fc / n
		out.Filtered.MeanConsensus = fcons / n
		out.Filtered.MeanDisagreement = fd / n
	}
	return out
}

// recent returns ring entries within the period, oldest first.
func (t *Tracker) recent(period time.Duration) []models.QualityLogEntry {
	var cutoff time.Time
	if period > 0 {
		cutoff = time.Now().Add(-period)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.count
	if n > len(t.ring) {
		n = len(t.ring)
	}
	out := make([]models.QualityLogEntry, 0, n)
	start := (t.next - n + len(t.ring)) % len(t.ring)
	for i := 0; i < n; i++ {
		e := t.ring[(start+i)%len(t.ring)]
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out
}
