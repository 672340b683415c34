package cachecore

import (
	"context"
	"time"
)

// KeySeparator joins object type and id in Key.Composite.
const KeySeparator = "__"

// Key identifies one cached object.
type Key struct {
	ObjectType string
	ObjectID   string
}

// Composite returns the single-string form "type__id".
func (k Key) Composite() string {
	return k.ObjectType + KeySeparator + k.ObjectID
}

func (k Key) String() string {
	return k.Composite()
}

// Record is what a backend keeps for one Key: the encoded value and the Unix
// millisecond time the value was fetched from its source.
type Record struct {
	Value    []byte
	StoredAt int64
}

// Store is the backend contract persistent entry stores sit on.
//
// Get reports a miss as (Record{}, false, nil). ttl <= 0 on Put means the
// backend default. Invalidate removes every record of one object type, or
// every record under the store prefix when objectType is empty.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key Key) (Record, bool, error)
	Put(ctx context.Context, key Key, rec Record, ttl time.Duration) error
	Delete(ctx context.Context, key Key) error
	Invalidate(ctx context.Context, objectType string) error
}
