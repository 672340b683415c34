package datacache

import (
	"context"
	"time"
)

// nullStore accepts every write and never returns a hit. Useful for running a
// coordinator with caching switched off.
type nullStore struct{}

func newNullStore() Store { return &nullStore{} }

func (s *nullStore) Driver() Driver { return DriverNull }

func (s *nullStore) Get(context.Context, Key) (Record, bool, error) {
	return Record{}, false, nil
}

func (s *nullStore) Put(context.Context, Key, Record, time.Duration) error { return nil }

func (s *nullStore) Delete(context.Context, Key) error { return nil }

func (s *nullStore) Invalidate(context.Context, string) error { return nil }
