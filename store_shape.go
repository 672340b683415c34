package datacache

import (
	"context"
	"time"
)

// shapingStore compresses record values and enforces the size cap. StoredAt
// passes through untouched so backends can keep it as native metadata.
type shapingStore struct {
	inner Store
	codec CompressionCodec
	max   int
}

func newShapingStore(inner Store, codec CompressionCodec, max int) Store {
	if (codec == CompressionNone || codec == "") && max <= 0 {
		return inner
	}
	return &shapingStore{inner: inner, codec: codec, max: max}
}

func (s *shapingStore) Driver() Driver { return s.inner.Driver() }

func (s *shapingStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	rec, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return rec, ok, err
	}
	decoded, err := decodeValue(rec.Value)
	if err != nil {
		return Record{}, false, err
	}
	rec.Value = decoded
	return rec, true, nil
}

func (s *shapingStore) Put(ctx context.Context, key Key, rec Record, ttl time.Duration) error {
	encoded, err := encodeValue(s.codec, s.max, rec.Value)
	if err != nil {
		return err
	}
	rec.Value = encoded
	return s.inner.Put(ctx, key, rec, ttl)
}

func (s *shapingStore) Delete(ctx context.Context, key Key) error {
	return s.inner.Delete(ctx, key)
}

func (s *shapingStore) Invalidate(ctx context.Context, objectType string) error {
	return s.inner.Invalidate(ctx, objectType)
}
