package datacache

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

var (
	encryptionMagic = []byte("ENC1")

	ErrEncryptionKey = errors.New("datacache: encryption key must be 16, 24 or 32 bytes")
	ErrDecryptFailed = errors.New("datacache: decrypt failed")
)

// encryptingStore seals record values with AES-GCM. Values without the ENC1
// header are returned as stored, so a store can be switched to encryption in
// place.
type encryptingStore struct {
	inner Store
	aead  cipher.AEAD
}

func newEncryptingStore(inner Store, key []byte) (Store, error) {
	if len(key) == 0 {
		return inner, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrEncryptionKey
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &encryptingStore{inner: inner, aead: aead}, nil
}

func (s *encryptingStore) Driver() Driver { return s.inner.Driver() }

func (s *encryptingStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	rec, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return rec, ok, err
	}
	plain, err := s.decrypt(rec.Value, recordAAD(key, rec.StoredAt))
	if err != nil {
		return Record{}, false, err
	}
	rec.Value = plain
	return rec, true, nil
}

func (s *encryptingStore) Put(ctx context.Context, key Key, rec Record, ttl time.Duration) error {
	enc, err := s.encrypt(rec.Value, recordAAD(key, rec.StoredAt))
	if err != nil {
		return err
	}
	rec.Value = enc
	return s.inner.Put(ctx, key, rec, ttl)
}

func (s *encryptingStore) Delete(ctx context.Context, key Key) error {
	return s.inner.Delete(ctx, key)
}

func (s *encryptingStore) Invalidate(ctx context.Context, objectType string) error {
	return s.inner.Invalidate(ctx, objectType)
}

// recordAAD binds a sealed value to its key and fetch time, so a ciphertext
// copied to another key or restamped in the backend fails to open.
func recordAAD(key Key, storedAt int64) []byte {
	aad := make([]byte, 0, len(key.ObjectType)+len(key.ObjectID)+16)
	aad = append(aad, packKey(key.ObjectType, key.ObjectID)...)
	return binary.BigEndian.AppendUint64(aad, uint64(storedAt))
}

func (s *encryptingStore) encrypt(plain, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ct := s.aead.Seal(nil, nonce, plain, aad)
	buf := make([]byte, 0, len(encryptionMagic)+1+len(nonce)+len(ct))
	buf = append(buf, encryptionMagic...)
	buf = append(buf, byte(len(nonce)))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return buf, nil
}

func (s *encryptingStore) decrypt(in, aad []byte) ([]byte, error) {
	if len(in) < len(encryptionMagic)+1 || !bytes.Equal(in[:len(encryptionMagic)], encryptionMagic) {
		return in, nil
	}
	nonceLen := int(in[len(encryptionMagic)])
	offset := len(encryptionMagic) + 1
	if len(in) < offset+nonceLen {
		return nil, ErrDecryptFailed
	}
	plain, err := s.aead.Open(nil, in[offset:offset+nonceLen], in[offset+nonceLen:], aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
