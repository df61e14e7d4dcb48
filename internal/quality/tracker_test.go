package quality

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtexvirtuoso/Virtuoso-sub004/internal/domain/models"
	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	entries []*models.QualityLogEntry
	fail    bool
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) Append(ctx context.Context, e *models.QualityLogEntry) error {
	return s.AppendBatch(ctx, []*models.QualityLogEntry{e})
}

func (s *fakeStore) AppendBatch(_ context.Context, entries []*models.QualityLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *fakeStore) Query(context.Context, string, time.Time, time.Time, int) ([]*models.QualityLogEntry, error) {
	return nil, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func entry(sym string, ts time.Time, confidence, disagreement float64, filtered bool, reason string) models.QualityLogEntry {
	return models.QualityLogEntry{
		Timestamp:       ts,
		Symbol:          sym,
		ConfluenceScore: 50 + confidence*50,
		Consensus:       1 - disagreement,
		Confidence:      confidence,
		Disagreement:    disagreement,
		Filtered:        filtered,
		FilterReason:    reason,
	}
}

func newFileTracker(t *testing.T, dir string) *Tracker {
	t.Helper()
	cfg := DefaultTrackerConfig()
	cfg.Dir = dir
	cfg.RingSize = 64
	return NewTracker(cfg, nil, nil, logger.Nop())
}

func TestTrackerWritesDayPartitionedJSONL(t *testing.T) {
	dir := t.TempDir()
	tr := newFileTracker(t, dir)
	defer tr.Close()

	day1 := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 0, 1, 0, 0, time.UTC)
	tr.Log(entry("BTCUSDT", day1, 0.7, 0.02, false, ""))
	tr.Log(entry("BTCUSDT", day1.Add(time.Second), 0.2, 0.05, true, models.ReasonLowConfidence))
	tr.Log(entry("ETHUSDT", day2, 0.5, 0.01, false, ""))
	tr.Close()

	b1, err := os.ReadFile(filepath.Join(dir, "quality_2025-03-01.jsonl"))
	require.NoError(t, err)
	b2, err := os.ReadFile(filepath.Join(dir, "quality_2025-03-02.jsonl"))
	require.NoError(t, err)

	sc := bufio.NewScanner(bytes.NewReader(b1))
	var lines []models.QualityLogEntry
	for sc.Scan() {
		var e models.QualityLogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		lines = append(lines, e)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "BTCUSDT", lines[0].Symbol)
	assert.InDelta(t, 0.7, lines[0].Confidence, 1e-12)
	assert.True(t, lines[1].Filtered)
	assert.Equal(t, models.ReasonLowConfidence, lines[1].FilterReason)

	var e2 models.QualityLogEntry
	first, _, _ := bytes.Cut(b2, []byte{'\n'})
	require.NoError(t, json.Unmarshal(first, &e2))
	assert.Equal(t, "ETHUSDT", e2.Symbol)
}

func TestTrackerFileDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultTrackerConfig()
	cfg.Dir = dir
	cfg.FileEnabled = false
	tr := NewTracker(cfg, nil, nil, logger.Nop())
	tr.Log(entry("BTCUSDT", time.Now(), 0.7, 0.02, false, ""))
	tr.Close()

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestGetStatistics(t *testing.T) {
	tr := newFileTracker(t, t.TempDir())
	defer tr.Close()

	now := time.Now()
	tr.Log(entry("BTCUSDT", now, 0.6, 0.05, false, ""))
	tr.Log(entry("BTCUSDT", now, 0.4, 0.10, false, ""))
	tr.Log(entry("BTCUSDT", now, 0.1, 0.05, true, models.ReasonLowConfidence))
	tr.Log(entry("BTCUSDT", now, 0.05, 0.50, true, models.ReasonHighDisagreement))

	st := tr.GetStatistics(time.Hour)
	assert.Equal(t, 4, st.Count)
	assert.InDelta(t, 0.5, st.FilterRate, 1e-12)
	assert.InDelta(t, (0.6+0.4+0.1+0.05)/4, st.Confidence.Mean, 1e-12)
	assert.InDelta(t, 0.05, st.Confidence.Min, 1e-12)
	assert.InDelta(t, 0.6, st.Confidence.Max, 1e-12)
	assert.Equal(t, 1, st.Reasons[models.ReasonLowConfidence])
	assert.Equal(t, 1, st.Reasons[models.ReasonHighDisagreement])
}

func TestGetStatisticsPeriodCutoff(t *testing.T) {
	tr := newFileTracker(t, t.TempDir())
	defer tr.Close()

	old := time.Now().Add(-2 * time.Hour)
	tr.Log(entry("BTCUSDT", old, 0.6, 0.05, false, ""))
	tr.Log(entry("BTCUSDT", time.Now(), 0.4, 0.10, false, ""))

	assert.Equal(t, 1, tr.GetStatistics(time.Hour).Count)
	assert.Equal(t, 2, tr.GetStatistics(0).Count)
}

func TestRingOverwritesOldest(t *testing.T) {
	cfg := DefaultTrackerConfig()
	cfg.Dir = t.TempDir()
	cfg.RingSize = 8
	tr := NewTracker(cfg, nil, nil, logger.Nop())
	defer tr.Close()

	now := time.Now()
	for i := 0; i < 20; i++ {
		tr.Log(entry("BTCUSDT", now, float64(i)/20, 0, false, ""))
	}
	st := tr.GetStatistics(0)
	assert.Equal(t, 8, st.Count)
	// only the newest 8 survive: 12/20 .. 19/20
	assert.InDelta(t, 12.0/20, st.Confidence.Min, 1e-12)
	assert.InDelta(t, 19.0/20, st.Confidence.Max, 1e-12)
}

func TestGetFilterEffectiveness(t *testing.T) {
	tr := newFileTracker(t, t.TempDir())
	defer tr.Close()

	now := time.Now()
	tr.Log(entry("BTCUSDT", now, 0.6, 0.05, false, ""))
	tr.Log(entry("BTCUSDT", now, 0.8, 0.01, false, ""))
	tr.Log(entry("BTCUSDT", now, 0.1, 0.40, true, models.ReasonHighDisagreement))

	eff := tr.GetFilterEffectiveness()
	assert.Equal(t, 2, eff.Passed.Count)
	assert.Equal(t, 1, eff.Filtered.Count)
	assert.InDelta(t, 0.7, eff.Passed.MeanConfidence, 1e-12)
	assert.InDelta(t, 0.1, eff.Filtered.MeanConfidence, 1e-12)
	assert.Equal(t, 1, eff.Reasons[models.ReasonHighDisagreement])
}

func TestTrackerFlushesToStore(t *testing.T) {
	store := &fakeStore{}
	cfg := DefaultTrackerConfig()
	cfg.Dir = t.TempDir()
	cfg.FlushInterval = 10 * time.Millisecond
	tr := NewTracker(cfg, store, nil, logger.Nop())
	tr.Start(context.Background())

	now := time.Now()
	for i := 0; i < 10; i++ {
		tr.Log(entry("BTCUSDT", now, 0.5, 0.1, false, ""))
	}
	tr.Close()
	assert.Equal(t, 10, store.stored())
}

func TestTrackerSurvivesStoreFailure(t *testing.T) {
	store := &fakeStore{fail: true}
	cfg := DefaultTrackerConfig()
	cfg.Dir = t.TempDir()
	cfg.FlushInterval = 10 * time.Millisecond
	tr := NewTracker(cfg, store, nil, logger.Nop())
	tr.Start(context.Background())

	now := time.Now()
	for i := 0; i < 5; i++ {
		tr.Log(entry("BTCUSDT", now, 0.5, 0.1, false, ""))
	}
	tr.Close()

	// durable sink lost the entries, the ring did not
	assert.Equal(t, 0, store.stored())
	assert.Equal(t, 5, tr.GetStatistics(0).Count)
}

func TestSummarize(t *testing.T) {
	s := summarize([]float64{4, 1, 3, 2})
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 2.5, s.Median, 1e-12)
	assert.InDelta(t, 1, s.Min, 1e-12)
	assert.InDelta(t, 4, s.Max, 1e-12)
	assert.InDelta(t, 1.29099, s.Stdev, 1e-4)

	odd := summarize([]float64{3, 1, 2})
	assert.InDelta(t, 2, odd.Median, 1e-12)

	assert.Equal(t, SummaryStats{}, summarize(nil))
}

func TestConcurrentLogAndStats(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultTrackerConfig()
	cfg.Dir = dir
	cfg.RingSize = 1024
	tr := NewTracker(cfg, nil, nil, logger.Nop())

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	const writers, perWriter = 4, 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				tr.Log(entry("BTCUSDT", ts, 0.5, 0.1, false, ""))
			}
		}()
	}
	// stats readers run against the ring while the file sink is busy
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = tr.GetStatistics(0)
				_ = tr.GetFilterEffectiveness()
			}
		}()
	}
	wg.Wait()
	tr.Close()

	assert.Equal(t, writers*perWriter, tr.GetStatistics(0).Count)

	b, err := os.ReadFile(filepath.Join(dir, "quality_2025-03-01.jsonl"))
	require.NoError(t, err)
	lines := 0
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		lines++
		var e models.QualityLogEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
	}
	assert.Equal(t, writers*perWriter, lines)
}
