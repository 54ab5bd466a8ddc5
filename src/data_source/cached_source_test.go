package datasource

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"market-agent/src/helpers"
	"market-agent/src/logger"
	"market-agent/src/models"
	"market-agent/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls  atomic.Int32
	series []models.MTimeSeriesPoint
	err    error
	gate   chan struct{}
}

func (p *countingProvider) Name() string { return "fake" }

func (p *countingProvider) FetchDaily(ctx context.Context, symbol string) ([]models.MTimeSeriesPoint, error) {
	p.calls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	return p.series, p.err
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*models.MCachedSeries
	readErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*models.MCachedSeries{}}
}

func (c *memoryCache) Initialize() error { return nil }
func (c *memoryCache) Close() error      { return nil }

func (c *memoryCache) GetSeries(_ context.Context, symbol string) (*models.MCachedSeries, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.entries[symbol], nil
}

func (c *memoryCache) SaveSeries(_ context.Context, entry *models.MCachedSeries) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Symbol] = entry
	return nil
}

func (c *memoryCache) CleanupOldData(context.Context, time.Time) error { return nil }

var testSeries = []models.MTimeSeriesPoint{{Date: "2024-03-14", Value: 173.0}, {Date: "2024-03-15", Value: 172.62}}

func newCached(p *countingProvider, c *memoryCache, now time.Time) *CachedSource {
	log := logger.NewLoggerWithWriter(io.Discard, "ERROR", "cache")
	s := NewCachedSource(p, c, utils.NewMarketScheduler(log), time.Hour, log)
	s.Now = func() time.Time { return now }
	return s
}

func TestCachedSourceMissThenHit(t *testing.T) {
	p := &countingProvider{series: testSeries}
	c := newMemoryCache()
	s := newCached(p, c, time.Now())

	for i := 0; i < 3; i++ {
		got, err := s.FetchDaily(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, testSeries, got)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestCachedSourceExpiredRefetches(t *testing.T) {
	p := &countingProvider{series: testSeries}
	c := newMemoryCache()
	now := time.Now().UTC()
	// Older than any window a scan would treat as closed
	c.entries["AAPL"] = &models.MCachedSeries{Symbol: "AAPL", Series: testSeries[:1], FetchedAt: now.Add(-30 * 24 * time.Hour)}

	got, err := newCached(p, c, now).FetchDaily(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(1), p.calls.Load())
	assert.True(t, c.entries["AAPL"].FetchedAt.Equal(now))
}

func TestCachedSourceReadErrorFallsThrough(t *testing.T) {
	p := &countingProvider{series: testSeries}
	c := newMemoryCache()
	c.readErr = errors.New("disk gone")

	got, err := newCached(p, c, time.Now()).FetchDaily(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, testSeries, got)
}

func TestCachedSourceProviderErrorNotCached(t *testing.T) {
	p := &countingProvider{err: helpers.NewUpstreamDataError("rate limited", nil)}
	c := newMemoryCache()

	_, err := newCached(p, c, time.Now()).FetchDaily(context.Background(), "AAPL")
	var upstream *helpers.UpstreamDataError
	assert.ErrorAs(t, err, &upstream)
	assert.Empty(t, c.entries)
}

func TestCachedSourceSharesConcurrentFetches(t *testing.T) {
	p := &countingProvider{series: testSeries, gate: make(chan struct{})}
	s := newCached(p, newMemoryCache(), time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.FetchDaily(context.Background(), "MSFT")
			assert.NoError(t, err)
		}()
	}
	// Let every caller reach the flight before releasing it
	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(p.gate)
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
}
