package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macropulse/internal/catalog"
	"macropulse/internal/model"
	"macropulse/internal/providers"
)

// stubSource implements providers.Provider with a counting health check.
type stubSource struct {
	id     model.SourceID
	checks atomic.Int64
	fail   atomic.Bool
	delay  time.Duration
}

func (s *stubSource) Name() model.SourceID { return s.id }

func (s *stubSource) CheckHealth(ctx context.Context) error {
	s.checks.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.fail.Load() {
		return errors.New("stub down")
	}
	return nil
}

func (s *stubSource) ListIndicators(context.Context, catalog.Filter) ([]model.Indicator, error) {
	return nil, nil
}

func (s *stubSource) Latest(context.Context, string) (model.Observation, error) {
	return model.Observation{}, errors.New("not implemented")
}

func (s *stubSource) Series(context.Context, string, providers.SeriesOptions) ([]model.SeriesPoint, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSource) NextScheduledUpdate(context.Context, string) (*time.Time, error) {
	return nil, nil
}

func (s *stubSource) Supports(string) bool { return true }

func TestIsAvailableReportsState(t *testing.T) {
	up := &stubSource{id: model.SourceMoSPI}
	down := &stubSource{id: model.SourceRBI}
	down.fail.Store(true)

	p := New([]providers.Provider{up, down})
	ctx := context.Background()

	assert.True(t, p.IsAvailable(ctx, model.SourceMoSPI))
	assert.False(t, p.IsAvailable(ctx, model.SourceRBI))
	assert.False(t, p.IsAvailable(ctx, model.SourceID("unregistered")))
}

func TestWarmUpProbesEverySourceOnce(t *testing.T) {
	a := &stubSource{id: model.SourceMoSPI, delay: 50 * time.Millisecond}
	b := &stubSource{id: model.SourceRBI, delay: 50 * time.Millisecond}
	p := New([]providers.Provider{a, b})

	const callers = 16
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.SourceMoSPI
			if i%2 == 1 {
				id = model.SourceRBI
			}
			p.IsAvailable(context.Background(), id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), a.checks.Load())
	assert.Equal(t, int64(1), b.checks.Load())
}

func TestTTLSuppressesReprobes(t *testing.T) {
	source := &stubSource{id: model.SourceMoSPI}
	p := New([]providers.Provider{source})
	ctx := context.Background()

	p.IsAvailable(ctx, model.SourceMoSPI)
	p.IsAvailable(ctx, model.SourceMoSPI)
	p.IsAvailable(ctx, model.SourceMoSPI)

	assert.Equal(t, int64(1), source.checks.Load())
}

func TestTTLExpiryTriggersOneReprobe(t *testing.T) {
	source := &stubSource{id: model.SourceMoSPI}
	p := New([]providers.Provider{source}, WithTTL(30*time.Millisecond))
	ctx := context.Background()

	p.IsAvailable(ctx, model.SourceMoSPI)
	require.Equal(t, int64(1), source.checks.Load())

	time.Sleep(60 * time.Millisecond)
	p.IsAvailable(ctx, model.SourceMoSPI)
	assert.Equal(t, int64(2), source.checks.Load())
}

func TestProbeErrorIsSwallowed(t *testing.T) {
	source := &stubSource{id: model.SourceMoSPI}
	source.fail.Store(true)
	p := New([]providers.Provider{source})

	assert.False(t, p.IsAvailable(context.Background(), model.SourceMoSPI))
	record := p.Record(model.SourceMoSPI)
	assert.Equal(t, StateDown, record.State)
	assert.False(t, record.CheckedAt.IsZero())
}

func TestRefreshAllResetsRecords(t *testing.T) {
	source := &stubSource{id: model.SourceMoSPI}
	p := New([]providers.Provider{source})
	ctx := context.Background()

	require.True(t, p.IsAvailable(ctx, model.SourceMoSPI))
	require.Equal(t, int64(1), source.checks.Load())

	p.RefreshAll()
	record := p.Record(model.SourceMoSPI)
	assert.Equal(t, StateUnknown, record.State)

	// A flipped source is noticed immediately after refresh, not served
	// from a stale record.
	source.fail.Store(true)
	assert.False(t, p.IsAvailable(ctx, model.SourceMoSPI))
	assert.Equal(t, int64(2), source.checks.Load())
}

func TestProbeTimeout(t *testing.T) {
	source := &stubSource{id: model.SourceMoSPI, delay: 200 * time.Millisecond}
	p := New([]providers.Provider{source}, WithProbeTimeout(20*time.Millisecond))

	assert.False(t, p.IsAvailable(context.Background(), model.SourceMoSPI))
	assert.Equal(t, StateDown, p.Record(model.SourceMoSPI).State)
}
