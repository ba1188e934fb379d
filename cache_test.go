package takarakuji

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves canned payloads and counts provider traffic, so
// cache behavior is testable without any network.
type fakeSource struct {
	mu               sync.Mutex
	indexCalls       int
	selectionCalls   int
	traditionalCalls int

	indexPayload     string
	selectionPayload string
	traditionalCSV   string
	err              error
	delay            time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		indexPayload:     "A1022078.CSV\r\nA1022077.CSV\r\n",
		selectionPayload: loto6CSV,
		traditionalCSV:   jumboCSV,
	}
}

func (f *fakeSource) FetchIndex(ctx context.Context, game Game) ([]byte, string, error) {
	f.mu.Lock()
	f.indexCalls++
	payload, err, delay := f.indexPayload, f.err, f.delay
	f.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return nil, "fake://index", err
	}
	return []byte(payload), "fake://index", nil
}

func (f *fakeSource) FetchSelectionCSV(ctx context.Context, game Game, period int) ([]byte, string, error) {
	f.mu.Lock()
	f.selectionCalls++
	payload, err, delay := f.selectionPayload, f.err, f.delay
	f.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return nil, "fake://selection", err
	}
	return []byte(payload), "fake://selection", nil
}

func (f *fakeSource) FetchTraditionalCSV(ctx context.Context, game Game) ([]byte, string, error) {
	f.mu.Lock()
	f.traditionalCalls++
	payload, err, delay := f.traditionalCSV, f.err, f.delay
	f.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return nil, "fake://traditional", err
	}
	return []byte(payload), "fake://traditional", nil
}

func (f *fakeSource) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) calls() (index, selection, traditional int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexCalls, f.selectionCalls, f.traditionalCalls
}

// fakeClock is a settable timeline for freshness tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 19, 19, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(source DrawSource, clock *fakeClock) *DrawCache {
	config := &CacheConfig{LatestTTL: 10 * time.Minute}
	return NewDrawCacheWithClock(source, config, clock.Now, NewSilentLogger())
}

func TestDrawCache_PeriodRequestIsCachedForever(t *testing.T) {
	source := newFakeSource()
	cache := newTestCache(source, newFakeClock())
	ctx := context.Background()

	first, err := cache.GetDraw(ctx, GameLoto6, 2078)
	require.NoError(t, err)
	assert.Equal(t, 2078, first.Period)

	second, err := cache.GetDraw(ctx, GameLoto6, 2078)
	require.NoError(t, err)

	_, selection, _ := source.calls()
	assert.Equal(t, 1, selection, "a settled draw is fetched once")
	assert.Same(t, first, second, "all readers observe the same immutable draw")
}

func TestDrawCache_LatestHonorsFreshnessWindow(t *testing.T) {
	source := newFakeSource()
	clock := newFakeClock()
	cache := newTestCache(source, clock)
	ctx := context.Background()

	draw, err := cache.GetLatestDraw(ctx, GameLoto6)
	require.NoError(t, err)
	assert.Equal(t, 2078, draw.Period)

	// Inside the window the cached answer is reused without traffic.
	clock.Advance(9 * time.Minute)
	_, err = cache.GetLatestDraw(ctx, GameLoto6)
	require.NoError(t, err)
	index, selection, _ := source.calls()
	assert.Equal(t, 1, index)
	assert.Equal(t, 1, selection)

	// Past the window the latest pointer is reconfirmed; the settled
	// draw itself needs no second download.
	clock.Advance(2 * time.Minute)
	_, err = cache.GetLatestDraw(ctx, GameLoto6)
	require.NoError(t, err)
	index, selection, _ = source.calls()
	assert.Equal(t, 2, index)
	assert.Equal(t, 1, selection)
}

func TestDrawCache_PeriodZeroMeansLatest(t *testing.T) {
	source := newFakeSource()
	cache := newTestCache(source, newFakeClock())

	draw, err := cache.GetDraw(context.Background(), GameLoto6, 0)
	require.NoError(t, err)
	assert.Equal(t, 2078, draw.Period)
}

func TestDrawCache_TraditionalFileSettlesEverySection(t *testing.T) {
	source := newFakeSource()
	cache := newTestCache(source, newFakeClock())
	ctx := context.Background()

	latest, err := cache.GetLatestDraw(ctx, GameJumbo)
	require.NoError(t, err)
	assert.Equal(t, 1045, latest.Period)

	// The combined file already carried the older draw.
	older, err := cache.GetDraw(ctx, GameJumbo, 1044)
	require.NoError(t, err)
	assert.Equal(t, 1044, older.Period)

	_, _, traditional := source.calls()
	assert.Equal(t, 1, traditional, "one combined download covers both draws")
}

func TestDrawCache_TraditionalPeriodOutsideFileIsNotFound(t *testing.T) {
	source := newFakeSource()
	cache := newTestCache(source, newFakeClock())

	_, err := cache.GetDraw(context.Background(), GameJumbo, 900)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestDrawCache_FetchFailureLeavesKeyEmpty(t *testing.T) {
	source := newFakeSource()
	cache := newTestCache(source, newFakeClock())
	ctx := context.Background()

	source.setError(ErrFetchFailed)
	_, err := cache.GetDraw(ctx, GameLoto6, 2078)
	require.Error(t, err)
	assert.True(t, IsFetchError(err), "source errors propagate unchanged")

	// The failure was not cached: the next request goes back to the
	// provider and succeeds.
	source.setError(nil)
	draw, err := cache.GetDraw(ctx, GameLoto6, 2078)
	require.NoError(t, err)
	assert.Equal(t, 2078, draw.Period)

	_, selection, _ := source.calls()
	assert.Equal(t, 2, selection)
}

func TestDrawCache_ParseFailurePropagatesDistinctly(t *testing.T) {
	source := newFakeSource()
	source.selectionPayload = "A52\nbroken payload"
	cache := newTestCache(source, newFakeClock())

	_, err := cache.GetDraw(context.Background(), GameLoto6, 2078)
	require.Error(t, err)
	assert.True(t, IsParseError(err))
	assert.False(t, IsFetchError(err))
}

func TestDrawCache_PeriodMismatchIsRejected(t *testing.T) {
	source := newFakeSource()
	cache := newTestCache(source, newFakeClock())

	// The fixture says 第2078回; asking for 2077 must not settle it
	// under the wrong key.
	_, err := cache.GetDraw(context.Background(), GameLoto6, 2077)
	require.Error(t, err)
	assert.True(t, IsParseError(err))

	_, err = cache.GetDraw(context.Background(), GameLoto6, 2078)
	require.NoError(t, err)
}

func TestDrawCache_SingleFlightCollapsesConcurrentMisses(t *testing.T) {
	source := newFakeSource()
	source.delay = 30 * time.Millisecond
	cache := newTestCache(source, newFakeClock())

	const callers = 16
	var wg sync.WaitGroup
	draws := make([]*Draw, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			draws[i], errs[i] = cache.GetDraw(context.Background(), GameLoto6, 2078)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, draws[0], draws[i], "every caller shares the one fetched draw")
	}

	_, selection, _ := source.calls()
	assert.Equal(t, 1, selection, "concurrent misses must not stampede the provider")
}

func TestDrawCache_InvalidateLatestForcesReconfirmation(t *testing.T) {
	source := newFakeSource()
	cache := newTestCache(source, newFakeClock())
	ctx := context.Background()

	_, err := cache.GetLatestDraw(ctx, GameLoto6)
	require.NoError(t, err)

	cache.InvalidateLatest(GameLoto6)

	_, err = cache.GetLatestDraw(ctx, GameLoto6)
	require.NoError(t, err)

	index, selection, _ := source.calls()
	assert.Equal(t, 2, index, "invalidation forces an index round trip")
	assert.Equal(t, 1, selection, "the settled draw stays cached")
}

func TestDrawCache_ValidatesInput(t *testing.T) {
	cache := newTestCache(newFakeSource(), newFakeClock())
	ctx := context.Background()

	_, err := cache.GetDraw(ctx, Game("bogus"), 1)
	assert.ErrorIs(t, err, ErrInvalidGame)

	_, err = cache.GetDraw(ctx, GameLoto6, -1)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestDrawCache_Stats(t *testing.T) {
	source := newFakeSource()
	cache := newTestCache(source, newFakeClock())
	ctx := context.Background()

	_, err := cache.GetDraw(ctx, GameLoto6, 2078)
	require.NoError(t, err)
	_, err = cache.GetDraw(ctx, GameLoto6, 2078)
	require.NoError(t, err)

	stats := cache.Stats()
	assert.Equal(t, 1, stats["cached_draws"])
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
}
