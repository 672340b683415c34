package datacache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	createTempFile = os.CreateTemp
	renameFile     = os.Rename
)

// recordMagic prefixes every record written by the file and NATS stores,
// followed by the 8 byte big-endian fetch time and the 8 byte expiry, both in
// Unix milliseconds. An expiry of 0 never expires.
var recordMagic = []byte("DCR2")

const recordHeaderLen = 20

// ErrCorruptRecord is returned when a stored record lacks a valid header.
var ErrCorruptRecord = errors.New("datacache: corrupt stored record")

// fileStore lays records out as <dir>/t-<sha(type)>/<sha(id)>.rec so a whole
// object type can be invalidated by removing one directory.
type fileStore struct {
	dir        string
	defaultTTL time.Duration
}

func newFileStore(dir string, defaultTTL time.Duration) (Store, error) {
	if dir == "" {
		dir = defaultFileDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %q: %w", dir, err)
	}
	return &fileStore{
		dir:        dir,
		defaultTTL: defaultTTL,
	}, nil
}

func (s *fileStore) Driver() Driver {
	return DriverFile
}

func (s *fileStore) Get(_ context.Context, key Key) (Record, bool, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}

	rec, expiresAt, err := decodeRecord(data)
	if err != nil {
		_ = os.Remove(path)
		return Record{}, false, err
	}
	if expiredAt(expiresAt) {
		_ = os.Remove(path)
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Put writes through a temp file and rename so readers never see a partial record.
func (s *fileStore) Put(_ context.Context, key Key, rec Record, ttl time.Duration) error {
	data := encodeRecord(rec, expiresAtMillis(effectiveTTL(ttl, s.defaultTTL)))

	dir := s.typeDir(key.ObjectType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := createTempFile(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := renameFile(tmpPath, s.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *fileStore) Delete(_ context.Context, key Key) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Invalidate removes one type directory, or every type directory when
// objectType is empty. Anything else in the cache dir is left alone.
func (s *fileStore) Invalidate(_ context.Context, objectType string) error {
	if objectType != "" {
		return os.RemoveAll(s.typeDir(objectType))
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "t-") {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) typeDir(objectType string) string {
	return filepath.Join(s.dir, "t-"+hashHex(objectType))
}

func (s *fileStore) path(key Key) string {
	return filepath.Join(s.typeDir(key.ObjectType), hashHex(key.ObjectID)+".rec")
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func encodeRecord(rec Record, expiresAt int64) []byte {
	out := make([]byte, recordHeaderLen+len(rec.Value))
	copy(out[:4], recordMagic)
	binary.BigEndian.PutUint64(out[4:12], uint64(rec.StoredAt))
	binary.BigEndian.PutUint64(out[12:recordHeaderLen], uint64(expiresAt))
	copy(out[recordHeaderLen:], rec.Value)
	return out
}

func decodeRecord(data []byte) (Record, int64, error) {
	if len(data) < recordHeaderLen || !bytes.Equal(data[:4], recordMagic) {
		return Record{}, 0, ErrCorruptRecord
	}
	rec := Record{
		StoredAt: int64(binary.BigEndian.Uint64(data[4:12])),
		Value:    data[recordHeaderLen:],
	}
	return rec, int64(binary.BigEndian.Uint64(data[12:recordHeaderLen])), nil
}
