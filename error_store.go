package datacache

import (
	"context"
	"time"
)

// errorStore is returned when a driver fails to initialize; it keeps the driver
// identity while surfacing the construction error on every call.
type errorStore struct {
	driver Driver
	err    error
}

func (e *errorStore) Driver() Driver                                 { return e.driver }
func (e *errorStore) Get(context.Context, Key) (Record, bool, error) { return Record{}, false, e.err }
func (e *errorStore) Put(context.Context, Key, Record, time.Duration) error {
	return e.err
}
func (e *errorStore) Delete(context.Context, Key) error        { return e.err }
func (e *errorStore) Invalidate(context.Context, string) error { return e.err }

// StoreInitError reports why NewStore could not build the requested backend,
// or nil when store is usable.
func StoreInitError(store Store) error {
	if es, ok := store.(*errorStore); ok {
		return es.err
	}
	return nil
}
