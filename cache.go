package takarakuji

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// cacheKey identifies one settled draw.
type cacheKey struct {
	game   Game
	period int
}

// latestEntry remembers which period is the latest for a game and when
// that was last confirmed with the provider.
type latestEntry struct {
	period    int
	fetchedAt time.Time
}

// DrawCache serves parsed draws, fetching from the provider only on
// cache misses. Settled draws never change, so they are cached without
// expiry; only the "which period is latest" answer ages out. Concurrent
// requests for the same missing draw are collapsed into a single
// provider fetch.
type DrawCache struct {
	source DrawSource
	ttl    time.Duration
	clock  Clock
	logger Logger

	mu     sync.RWMutex
	draws  map[cacheKey]*Draw
	latest map[Game]latestEntry

	flight singleflight.Group

	hits   int64
	misses int64
}

// NewDrawCache creates a cache over the given source.
func NewDrawCache(source DrawSource, config *CacheConfig, logger Logger) *DrawCache {
	return NewDrawCacheWithClock(source, config, time.Now, logger)
}

// NewDrawCacheWithClock creates a cache on an injected timeline. Tests
// use this to drive freshness without sleeping.
func NewDrawCacheWithClock(source DrawSource, config *CacheConfig, clock Clock, logger Logger) *DrawCache {
	if config == nil {
		config = DefaultCacheConfig()
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = &DefaultLogger{}
	}

	ttl := config.LatestTTL
	if ttl < MinLatestTTL {
		ttl = MinLatestTTL
	}
	if ttl > MaxLatestTTL {
		ttl = MaxLatestTTL
	}

	return &DrawCache{
		source: source,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
		draws:  make(map[cacheKey]*Draw),
		latest: make(map[Game]latestEntry),
	}
}

// GetDraw returns the draw for a specific period, fetching it on a cache
// miss. Period 0 is shorthand for the latest draw.
func (c *DrawCache) GetDraw(ctx context.Context, game Game, period int) (*Draw, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, err
	}
	if err := ValidatePeriod(period); err != nil {
		return nil, err
	}
	if period == 0 {
		return c.GetLatestDraw(ctx, game)
	}

	if draw := c.lookup(game, period); draw != nil {
		atomic.AddInt64(&c.hits, 1)
		return draw, nil
	}
	atomic.AddInt64(&c.misses, 1)

	v, err, _ := c.flight.Do(fmt.Sprintf("%s/%d", game, period), func() (any, error) {
		// A concurrent flight may have settled the draw already.
		if draw := c.lookup(game, period); draw != nil {
			return draw, nil
		}
		return c.fillPeriod(ctx, spec, period)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Draw), nil
}

// GetLatestDraw returns the most recent published draw for a game. The
// answer is reconfirmed with the provider once the freshness window has
// passed.
func (c *DrawCache) GetLatestDraw(ctx context.Context, game Game) (*Draw, error) {
	spec, err := game.Spec()
	if err != nil {
		return nil, err
	}

	if draw := c.freshLatest(game); draw != nil {
		atomic.AddInt64(&c.hits, 1)
		return draw, nil
	}
	atomic.AddInt64(&c.misses, 1)

	v, err, _ := c.flight.Do(fmt.Sprintf("%s/latest", game), func() (any, error) {
		if draw := c.freshLatest(game); draw != nil {
			return draw, nil
		}
		return c.fillLatest(ctx, spec)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Draw), nil
}

// InvalidateLatest forgets which period is latest for a game. The next
// latest request reconfirms with the provider. Settled draws stay cached.
func (c *DrawCache) InvalidateLatest(game Game) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.latest, game)
}

// Purge drops every cached draw.
func (c *DrawCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draws = make(map[cacheKey]*Draw)
	c.latest = make(map[Game]latestEntry)
}

// Stats reports cache occupancy and traffic for the health endpoint.
func (c *DrawCache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]any{
		"cached_draws":   len(c.draws),
		"tracked_latest": len(c.latest),
		"latest_ttl":     c.ttl.String(),
		"hits":           atomic.LoadInt64(&c.hits),
		"misses":         atomic.LoadInt64(&c.misses),
	}
}

func (c *DrawCache) lookup(game Game, period int) *Draw {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draws[cacheKey{game: game, period: period}]
}

// freshLatest returns the latest draw if the pointer is still inside the
// freshness window.
func (c *DrawCache) freshLatest(game Game) *Draw {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.latest[game]
	if !ok {
		return nil
	}
	if c.clock().Sub(entry.fetchedAt) >= c.ttl {
		return nil
	}
	return c.draws[cacheKey{game: game, period: entry.period}]
}

// fillPeriod fetches and caches one specific draw. Runs inside a
// single-flight group, outside the cache lock.
func (c *DrawCache) fillPeriod(ctx context.Context, spec *GameSpec, period int) (*Draw, error) {
	if spec.Kind == KindSelection {
		payload, sourceURL, err := c.source.FetchSelectionCSV(ctx, spec.Game, period)
		if err != nil {
			return nil, err
		}
		draw, err := ParseSelectionDraw(spec.Game, payload, sourceURL)
		if err != nil {
			return nil, err
		}
		if draw.Period != period {
			return nil, ErrParseFailed.
				WithDetailsf("requested draw %d but payload says %d", period, draw.Period).
				WithSourceURL(sourceURL)
		}
		c.store(draw)
		return draw, nil
	}

	draws, err := c.fetchTraditional(ctx, spec)
	if err != nil {
		return nil, err
	}
	for _, draw := range draws {
		if draw.Period == period {
			return draw, nil
		}
	}
	return nil, ErrPeriodNotFound.WithDetailsf("draw %d is not in the provider's recent %s file", period, spec.Game)
}

// fillLatest resolves which period is latest and returns its draw.
func (c *DrawCache) fillLatest(ctx context.Context, spec *GameSpec) (*Draw, error) {
	if spec.Kind == KindTraditional {
		draws, err := c.fetchTraditional(ctx, spec)
		if err != nil {
			return nil, err
		}
		return draws[0], nil
	}

	payload, sourceURL, err := c.source.FetchIndex(ctx, spec.Game)
	if err != nil {
		return nil, err
	}
	filenames := ParseIndexFilenames(payload, 1)
	if len(filenames) == 0 {
		return nil, ErrParseFailed.WithDetails("index contains no result filenames").WithSourceURL(sourceURL)
	}
	period, ok := periodFromFilename(filenames[0])
	if !ok {
		return nil, ErrParseFailed.WithDetailsf("cannot read a period out of %q", filenames[0]).WithSourceURL(sourceURL)
	}

	// The draw itself may already be settled in cache; then the index
	// round trip is all the refresh costs.
	if draw := c.lookup(spec.Game, period); draw != nil {
		c.stampLatest(spec.Game, period)
		return draw, nil
	}

	draw, err := c.fillPeriod(ctx, spec, period)
	if err != nil {
		return nil, err
	}
	c.stampLatest(spec.Game, period)
	return draw, nil
}

// fetchTraditional downloads the combined file, caches every draw in it
// and refreshes the latest pointer.
func (c *DrawCache) fetchTraditional(ctx context.Context, spec *GameSpec) ([]*Draw, error) {
	payload, sourceURL, err := c.source.FetchTraditionalCSV(ctx, spec.Game)
	if err != nil {
		return nil, err
	}
	draws, err := ParseTraditionalDraws(spec.Game, payload, sourceURL)
	if err != nil {
		return nil, err
	}

	for _, draw := range draws {
		c.store(draw)
	}
	c.stampLatest(spec.Game, draws[0].Period)
	return draws, nil
}

// store caches a settled draw. An already cached draw wins so concurrent
// readers keep seeing one immutable value per period.
func (c *DrawCache) store(draw *Draw) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{game: draw.Game, period: draw.Period}
	if _, ok := c.draws[key]; !ok {
		c.draws[key] = draw
	}
}

func (c *DrawCache) stampLatest(game Game, period int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[game] = latestEntry{period: period, fetchedAt: c.clock()}
}
