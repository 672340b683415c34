package datacache

import "context"

// Strategy selects whether the source or the cache is consulted first.
type Strategy string

const (
	// StrategyAPIFirst always tries the fetch function and falls back to the
	// cache only when it fails.
	StrategyAPIFirst Strategy = "api_first"
	// StrategyCacheFirst serves any cached value and only fetches on a miss or,
	// in the background, when the cached value is stale.
	StrategyCacheFirst Strategy = "cache_first"
)

type strategy[T any] interface {
	retrieve(ctx context.Context, c *Coordinator[T]) (T, error)
}

func strategyFor[T any](s Strategy) (strategy[T], error) {
	switch s {
	case StrategyAPIFirst:
		return apiFirst[T]{}, nil
	case StrategyCacheFirst:
		return cacheFirst[T]{}, nil
	default:
		return nil, unknownStrategy(s)
	}
}

type apiFirst[T any] struct{}

func (apiFirst[T]) retrieve(ctx context.Context, c *Coordinator[T]) (T, error) {
	var zero T

	c.debug("api_first: calling fetch")
	value, err := c.fetch(ctx)
	if err == nil {
		c.debug("api_first: fetch succeeded, caching and returning it")
		c.persistAsync(ctx, value)
		return value, nil
	}
	c.report("api_first: fetch", err, SeverityWarning)

	c.debug("api_first: fetch failed, reading cache")
	entry, ok, err := c.lookup(ctx)
	if err != nil {
		c.report("api_first: cache read", &StoreError{Op: OpGet, Key: c.key, Err: err}, SeverityError)
		return zero, err
	}
	if !ok {
		c.debug("api_first: no cached value")
		return zero, &NoDataError{Strategy: StrategyAPIFirst, Key: c.key}
	}
	c.debug("api_first: returning cached value")
	return entry.Value, nil
}

type cacheFirst[T any] struct{}

func (cacheFirst[T]) retrieve(ctx context.Context, c *Coordinator[T]) (T, error) {
	var zero T

	c.debug("cache_first: reading cache")
	entry, ok, err := c.lookup(ctx)
	if err != nil {
		// A broken store is treated as a miss so the source still gets a chance.
		c.report("cache_first: cache read", &StoreError{Op: OpGet, Key: c.key, Err: err}, SeverityWarning)
		ok = false
	}

	if ok {
		if entry.isStale(c.now(), c.cfg.StaleAfter) {
			c.debug("cache_first: cached value is stale, refreshing in background")
			c.refreshAsync(ctx)
		}
		c.debug("cache_first: returning cached value")
		return entry.Value, nil
	}

	c.debug("cache_first: no cached value, calling fetch")
	value, err := c.fetch(ctx)
	if err != nil {
		c.report("cache_first: fetch", err, SeverityError)
		return zero, &NoDataError{Strategy: StrategyCacheFirst, Key: c.key}
	}
	c.debug("cache_first: fetch succeeded, caching and returning it")
	c.persistAsync(ctx, value)
	return value, nil
}
