package datacache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultFetchTimeout bounds a fetch when Config.FetchTimeout is unset.
	DefaultFetchTimeout = 5000 * time.Millisecond
	// DefaultStoreTimeout bounds a store read or write when Config.StoreTimeout is unset.
	DefaultStoreTimeout = 1000 * time.Millisecond
)

// Config describes a single retrieval.
//
// Strategy, Store, ObjectType, ObjectID and Fetch are required. Everything
// else is optional and falls back to a default.
type Config[T any] struct {
	Strategy   Strategy
	Store      EntryStore[T]
	ObjectType string
	ObjectID   string
	Fetch      FetchFunc[T]

	// FetchTimeout bounds every call to Fetch. Zero means DefaultFetchTimeout.
	FetchTimeout time.Duration
	// StoreTimeout bounds every Store read and write. Zero means DefaultStoreTimeout.
	StoreTimeout time.Duration
	// StaleAfter is the age past which a cache_first hit triggers a background
	// refresh. Zero disables refreshing.
	StaleAfter time.Duration

	OnError      func(err error, sev Severity)
	OnRefreshing func()
	OnRefreshed  func(value T)

	// Debug enables the diagnostic log trail.
	Debug  bool
	Logger logrus.FieldLogger

	Clock    Clock
	Observer Observer
	// IsEmpty decides whether a fetched value counts as "no data". The default
	// treats the zero value of T as empty.
	IsEmpty func(value T) bool
}

func (c Config[T]) withDefaults() Config[T] {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.StaleAfter < 0 {
		c.StaleAfter = 0
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	if c.IsEmpty == nil {
		c.IsEmpty = isZeroValue[T]
	}
	return c
}

func (c Config[T]) validate() error {
	switch {
	case c.Strategy == "":
		return missingParameter("strategy")
	case c.Store == nil:
		return missingParameter("store")
	case c.ObjectType == "":
		return missingParameter("objectType")
	case c.ObjectID == "":
		return missingParameter("objectId")
	case c.Fetch == nil:
		return missingParameter("fetch")
	}
	return nil
}

// Coordinator resolves one value for one (object type, object id) pair.
// It is built per request and Retrieve may be called once.
type Coordinator[T any] struct {
	cfg     Config[T]
	key     Key
	id      string
	invoked atomic.Bool
}

// New validates cfg and returns a coordinator. It does not touch the store or
// call the fetch function. The strategy value is checked by Retrieve.
func New[T any](cfg Config[T]) (*Coordinator[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Coordinator[T]{
		cfg: cfg,
		key: Key{ObjectType: cfg.ObjectType, ObjectID: cfg.ObjectID},
		id:  uuid.NewString(),
	}, nil
}

// NewWith builds a coordinator from the required fields plus options.
//
// Example: api first with cache fallback
//
//	store := datacache.NewMemoryEntryStore[string]()
//	c, _ := datacache.NewWith(datacache.StrategyAPIFirst, store, "profile", "42",
//		func(context.Context) (string, error) { return "Ada", nil },
//		datacache.WithFetchTimeout[string](2*time.Second),
//	)
//	name, err := c.Retrieve(ctx)
//	fmt.Println(err == nil, name) // true Ada
func NewWith[T any](strategy Strategy, store EntryStore[T], objectType, objectID string, fetch FetchFunc[T], opts ...Option[T]) (*Coordinator[T], error) {
	cfg := Config[T]{
		Strategy:   strategy,
		Store:      store,
		ObjectType: objectType,
		ObjectID:   objectID,
		Fetch:      fetch,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return New(cfg)
}

// Key returns the (object type, object id) pair this coordinator resolves.
func (c *Coordinator[T]) Key() Key { return c.key }

// Retrieve runs the configured strategy and returns exactly one of a value or
// an error. A second call fails with ErrAlreadyInvoked without doing any work.
func (c *Coordinator[T]) Retrieve(ctx context.Context) (T, error) {
	var zero T
	if !c.invoked.CompareAndSwap(false, true) {
		return zero, alreadyInvoked()
	}
	s, err := strategyFor[T](c.cfg.Strategy)
	if err != nil {
		return zero, err
	}
	return s.retrieve(ctx, c)
}

func (c *Coordinator[T]) now() time.Time { return c.cfg.Clock.Now() }

// fetch calls the source under FetchTimeout. Failures, timeouts and empty
// results come back as *SourceError.
func (c *Coordinator[T]) fetch(ctx context.Context) (T, error) {
	start := time.Now()
	value, err := withTimeout(ctx, OpFetch, c.cfg.FetchTimeout, func(ctx context.Context) (T, error) {
		return c.cfg.Fetch(ctx)
	})
	if err == nil && c.cfg.IsEmpty(value) {
		err = ErrEmptyResult
	}
	c.observe(ctx, OpFetch, err == nil, err, start)
	if err != nil {
		var zero T
		return zero, &SourceError{Key: c.key, Err: err}
	}
	return value, nil
}

type lookupResult[T any] struct {
	entry Entry[T]
	ok    bool
}

// lookup reads the store under StoreTimeout. Errors are returned unwrapped.
func (c *Coordinator[T]) lookup(ctx context.Context) (Entry[T], bool, error) {
	start := time.Now()
	res, err := withTimeout(ctx, "store get", c.cfg.StoreTimeout, func(ctx context.Context) (lookupResult[T], error) {
		entry, ok, err := c.cfg.Store.Get(ctx, c.key.ObjectType, c.key.ObjectID)
		return lookupResult[T]{entry: entry, ok: ok}, err
	})
	c.observe(ctx, OpGet, err == nil && res.ok, err, start)
	if err != nil {
		return Entry[T]{}, false, err
	}
	return res.entry, res.ok, nil
}

// persist writes entry to the store. Failures are reported, never returned.
func (c *Coordinator[T]) persist(ctx context.Context, entry Entry[T]) {
	start := time.Now()
	_, err := withTimeout(ctx, "store set", c.cfg.StoreTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.cfg.Store.Set(ctx, c.key.ObjectType, c.key.ObjectID, entry)
	})
	c.observe(ctx, OpSet, false, err, start)
	if err != nil {
		c.report("cache write", &StoreError{Op: OpSet, Key: c.key, Err: err}, SeverityWarning)
		return
	}
	c.debug("cached value stored")
}

// persistAsync stamps value now and writes it in the background.
func (c *Coordinator[T]) persistAsync(ctx context.Context, value T) {
	entry := newEntry(value, c.now())
	go c.persist(context.WithoutCancel(ctx), entry)
}

// refreshAsync fetches a new value in the background and stores it.
// Retrieve has already returned the stale value by the time this completes.
func (c *Coordinator[T]) refreshAsync(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		start := time.Now()
		if c.cfg.OnRefreshing != nil {
			safeCall(c.cfg.OnRefreshing)
		}
		value, err := c.fetch(ctx)
		if err != nil {
			c.report("cache_first: background refresh", err, SeverityWarning)
			c.observe(ctx, OpRefresh, false, err, start)
			return
		}
		c.persist(ctx, newEntry(value, c.now()))
		c.observe(ctx, OpRefresh, true, nil, start)
		c.debug("cache_first: background refresh finished")
		if c.cfg.OnRefreshed != nil {
			safeCall(func() { c.cfg.OnRefreshed(value) })
		}
	}()
}

func (c *Coordinator[T]) observe(ctx context.Context, op string, hit bool, err error, start time.Time) {
	if c.cfg.Observer == nil {
		return
	}
	safeCall(func() { c.cfg.Observer.OnCacheOp(ctx, op, c.key, hit, err, time.Since(start)) })
}
