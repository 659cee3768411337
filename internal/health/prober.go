package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"macropulse/internal/model"
	"macropulse/internal/providers"
)

type State int

const (
	// StateUnknown means no probe has run since start or the last refresh.
	StateUnknown State = iota
	StateUp
	StateDown
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	default:
		return "unknown"
	}
}

// Record is one source's last known availability.
type Record struct {
	State     State
	CheckedAt time.Time
}

const (
	defaultTTL          = 5 * time.Minute
	defaultProbeTimeout = 5 * time.Second

	warmupKey = "warmup"
)

// Prober tracks per-source availability with a TTL'd cache. Concurrent
// probes of one source share a single in-flight check, and the very first
// call probes every source in parallel exactly once so early routing
// decisions are not made against unknown records.
type Prober struct {
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger

	flight singleflight.Group

	mu      sync.RWMutex
	sources map[model.SourceID]providers.Provider
	records map[model.SourceID]Record
	warmed  bool
}

type Option func(*Prober)

func WithTTL(ttl time.Duration) Option {
	return func(p *Prober) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

func WithProbeTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(sources []providers.Provider, opts ...Option) *Prober {
	p := &Prober{
		ttl:     defaultTTL,
		timeout: defaultProbeTimeout,
		logger:  slog.Default(),
		sources: make(map[model.SourceID]providers.Provider, len(sources)),
		records: make(map[model.SourceID]Record, len(sources)),
	}
	for _, source := range sources {
		p.sources[source.Name()] = source
		p.records[source.Name()] = Record{State: StateUnknown}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsAvailable answers from the cached record when it is younger than the
// TTL, otherwise performs (or joins) a probe. Unregistered sources are
// reported unavailable.
func (p *Prober) IsAvailable(ctx context.Context, id model.SourceID) bool {
	p.mu.RLock()
	_, registered := p.sources[id]
	warmed := p.warmed
	p.mu.RUnlock()
	if !registered {
		return false
	}

	if !warmed {
		p.warmUp(ctx)
	}

	record, fresh := p.freshRecord(id)
	if fresh {
		return record.State == StateUp
	}
	return p.probe(ctx, id) == StateUp
}

// Record returns the current availability record without triggering a probe.
func (p *Prober) Record(id model.SourceID) Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.records[id]
}

// Records snapshots every source's record, for the source-health view.
func (p *Prober) Records() map[model.SourceID]Record {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[model.SourceID]Record, len(p.records))
	for id, record := range p.records {
		out[id] = record
	}
	return out
}

// RefreshAll resets every record to unknown and forgets in-flight memos, so
// the next IsAvailable calls re-probe from scratch.
func (p *Prober) RefreshAll() {
	p.mu.Lock()
	for id := range p.records {
		p.records[id] = Record{State: StateUnknown}
	}
	p.warmed = false
	p.mu.Unlock()

	p.flight.Forget(warmupKey)
	for id := range p.sources {
		p.flight.Forget(probeKey(id))
	}
}

// warmUp probes all sources in parallel behind one shared flight. Every
// caller that arrives during the window awaits the same completion.
func (p *Prober) warmUp(ctx context.Context) {
	p.flight.Do(warmupKey, func() (any, error) {
		p.mu.RLock()
		warmed := p.warmed
		ids := make([]model.SourceID, 0, len(p.sources))
		for id := range p.sources {
			ids = append(ids, id)
		}
		p.mu.RUnlock()
		if warmed {
			return nil, nil
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id model.SourceID) {
				defer wg.Done()
				p.probe(ctx, id)
			}(id)
		}
		wg.Wait()

		p.mu.Lock()
		p.warmed = true
		p.mu.Unlock()
		return nil, nil
	})
}

func (p *Prober) freshRecord(id model.SourceID) (Record, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	record := p.records[id]
	if record.State == StateUnknown {
		return record, false
	}
	return record, time.Since(record.CheckedAt) < p.ttl
}

func probeKey(id model.SourceID) string {
	return "probe:" + string(id)
}

// probe runs one health check with a strict timeout. Errors are recorded as
// down and never propagated: an unreachable source is routine, not
// exceptional. Concurrent callers for the same source share the result.
func (p *Prober) probe(ctx context.Context, id model.SourceID) State {
	result, _, _ := p.flight.Do(probeKey(id), func() (any, error) {
		p.mu.RLock()
		source := p.sources[id]
		p.mu.RUnlock()
		if source == nil {
			return StateDown, nil
		}

		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		state := StateUp
		if err := source.CheckHealth(probeCtx); err != nil {
			state = StateDown
			p.logger.Warn("health probe failed",
				slog.String("source", string(id)),
				slog.String("error", err.Error()),
			)
		}

		p.mu.Lock()
		p.records[id] = Record{State: state, CheckedAt: time.Now()}
		p.mu.Unlock()
		return state, nil
	})
	state, ok := result.(State)
	if !ok {
		return StateDown
	}
	return state
}
