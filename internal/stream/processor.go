package stream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

var allWindowSizes = []WindowSize{Window1Min, Window5Min, Window1Hour, Window1Day}

type streamState struct {
	mu     sync.Mutex
	buffer *ringBuffer
	cache  map[WindowSize]AggregatedWindow
}

// Processor buffers readings per stream id and serves windowed
// aggregation, statistical analysis, trend detection, and anomaly
// detection over them.
type Processor struct {
	cfg Config
	log zerolog.Logger

	mu      sync.RWMutex
	streams map[string]*streamState
}

// NewProcessor builds a Processor. cfg is validated eagerly.
func NewProcessor(cfg Config, log zerolog.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{
		cfg:     cfg,
		log:     log.With().Str("service", "stream_processor").Logger(),
		streams: make(map[string]*streamState),
	}, nil
}

func (p *Processor) stateFor(streamID string) *streamState {
	p.mu.RLock()
	s, ok := p.streams[streamID]
	p.mu.RUnlock()
	if ok {
		return s
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.streams[streamID]; ok {
		return s
	}
	s = &streamState{
		buffer: newRingBuffer(p.cfg.MaxPointsPerStream),
		cache:  make(map[WindowSize]AggregatedWindow),
	}
	p.streams[streamID] = s
	return s
}

// Ingest appends a reading to streamID's buffer, evicting the oldest
// point if the buffer is full.
func (p *Processor) Ingest(streamID string, value float64, at time.Time) {
	s := p.stateFor(streamID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer.push(DataPoint{Timestamp: at, Value: value})
	// Any cached aggregation is now behind the live buffer; next read
	// recomputes once its TTL would otherwise have allowed reuse, but an
	// ingest always invalidates eagerly to avoid serving stale windows to
	// latency-sensitive callers such as the opportunity detector.
	for size := range s.cache {
		delete(s.cache, size)
	}
}

// Window returns the aggregation over the last `size` seconds ending at
// now, reusing a cached copy if it was computed within AggregationCacheTTL.
func (p *Processor) Window(streamID string, size WindowSize, now time.Time) (AggregatedWindow, error) {
	if err := requireWindowSize(size); err != nil {
		return AggregatedWindow{}, err
	}

	s := p.stateFor(streamID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[size]; ok && now.Sub(cached.computedAt) < p.cfg.AggregationCacheTTL {
		return cached, nil
	}

	start := now.Add(-time.Duration(size) * time.Second)
	points := s.buffer.snapshot()
	window := aggregate(streamID, size, points, start, now)
	window.computedAt = now
	s.cache[size] = window
	return window, nil
}

// Analyze returns a StatisticalAnalysis over the full retained buffer for
// streamID, or ok=false if fewer than StatisticalAnalysisMinPoints are
// available.
func (p *Processor) Analyze(streamID string, now time.Time) (StatisticalAnalysis, bool) {
	s := p.stateFor(streamID)
	s.mu.Lock()
	points := s.buffer.snapshot()
	s.mu.Unlock()

	if len(points) < p.cfg.StatisticalAnalysisMinPoints {
		return StatisticalAnalysis{}, false
	}

	start := points[0].Timestamp
	base := aggregate(streamID, 0, points, start, now.Add(time.Nanosecond))
	base.computedAt = now
	return analyze(base, points, start, now.Add(time.Nanosecond)), true
}

// Trend detects a linear trend over the full retained buffer for
// streamID, or ok=false if fewer than TrendMinPoints are available.
func (p *Processor) Trend(streamID string, predict bool) (Trend, bool) {
	s := p.stateFor(streamID)
	s.mu.Lock()
	points := s.buffer.snapshot()
	s.mu.Unlock()

	if len(points) < p.cfg.TrendMinPoints {
		return Trend{}, false
	}
	return detectTrend(points, predict), true
}

// Anomalies runs z-score anomaly detection over the full retained
// buffer for streamID.
func (p *Processor) Anomalies(streamID string) []Anomaly {
	s := p.stateFor(streamID)
	s.mu.Lock()
	points := s.buffer.snapshot()
	s.mu.Unlock()

	return detectAnomalies(points, p.cfg.AnomalyZScoreThreshold)
}

// Recent returns up to the last n retained values for streamID,
// oldest first, for callers that need a raw close-price series rather
// than an aggregated window (the enhancement package's technical-
// confirmation gate).
func (p *Processor) Recent(streamID string, n int) []float64 {
	s := p.stateFor(streamID)
	s.mu.Lock()
	points := s.buffer.snapshot()
	s.mu.Unlock()

	if n > 0 && len(points) > n {
		points = points[len(points)-n:]
	}

	values := make([]float64, len(points))
	for i, pt := range points {
		values[i] = pt.Value
	}
	return values
}

// Len returns the number of points currently retained for streamID.
func (p *Processor) Len(streamID string) int {
	s := p.stateFor(streamID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.len()
}

// Evicted returns the number of points dropped from streamID's buffer
// due to capacity overflow since the stream was created.
func (p *Processor) Evicted(streamID string) uint64 {
	s := p.stateFor(streamID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.evicted
}

// Cleanup prunes points older than MaxPointAge and any cached windows
// that have expired, across every known stream. It returns the total
// number of points pruned.
func (p *Processor) Cleanup(now time.Time) int {
	cutoff := now.Add(-p.cfg.MaxPointAge).UnixNano()

	p.mu.RLock()
	states := make([]*streamState, 0, len(p.streams))
	for _, s := range p.streams {
		states = append(states, s)
	}
	p.mu.RUnlock()

	pruned := 0
	for _, s := range states {
		s.mu.Lock()
		pruned += s.buffer.prune(cutoff)
		for size, cached := range s.cache {
			if now.Sub(cached.computedAt) >= p.cfg.AggregationCacheTTL {
				delete(s.cache, size)
			}
		}
		s.mu.Unlock()
	}
	if pruned > 0 {
		p.log.Debug().Int("pruned_points", pruned).Msg("stream cleanup")
	}
	return pruned
}

// requireWindowSize validates a caller-supplied window duration against
// the supported set, returning a classified error otherwise.
func requireWindowSize(size WindowSize) error {
	for _, s := range allWindowSizes {
		if s == size {
			return nil
		}
	}
	return apperr.New(apperr.ValidationError, "stream.Processor", errInvalid("unsupported window size"))
}
