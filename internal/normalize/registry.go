package normalize

import (
	"strings"
	"sync"

	"github.com/virtexvirtuoso/Virtuoso-sub004/pkg/logger"
)

// Registry owns one Normalizer per (indicator, symbol) pair, created
// lazily on first observation and kept for the process lifetime.
type Registry struct {
	mu  sync.RWMutex
	cfg Config
	log *logger.Logger
	m   map[string]*Normalizer
}

func NewRegistry(cfg Config, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{cfg: cfg, log: log, m: make(map[string]*Normalizer)}
}

func key(symbol, indicator string) string {
	return symbol + "|" + indicator
}

// Get returns the normalizer for the pair, creating it if needed.
func (r *Registry) Get(symbol, indicator string) *Normalizer {
	k := key(symbol, indicator)

	r.mu.RLock()
	n, ok := r.m[k]
	r.mu.RUnlock()
	if ok {
		return n
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok = r.m[k]; ok {
		return n
	}
	n = New(r.cfg, r.log)
	r.m[k] = n
	r.log.Debug("normalizer created", logger.String("symbol", symbol), logger.String("indicator", indicator))
	return n
}

// ResetSymbol drops all normalizer state for a symbol (e.g. delisting).
func (r *Registry) ResetSymbol(symbol string) {
	prefix := symbol + "|"
	r.mu.Lock()
	for k := range r.m {
		if strings.HasPrefix(k, prefix) {
			delete(r.m, k)
		}
	}
	r.mu.Unlock()
	r.log.Info("normalizer state reset", logger.String("symbol", symbol))
}

// Snapshots returns diagnostic stats for every tracked pair.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Snapshot, len(r.m))
	for k, n := range r.m {
		out[k] = n.Stats()
	}
	return out
}
