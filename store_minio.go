package datacache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned by an ObjectClient for a missing object.
var ErrObjectNotFound = errors.New("datacache: object not found")

const (
	minioStoredAtMeta  = "Stored-At"
	minioExpiresAtMeta = "Expires-At"
)

// StoredObject is an object body plus its user metadata.
type StoredObject struct {
	Body     []byte
	Metadata map[string]string
}

// ObjectClient captures the object storage calls used by the minio store.
// NewMinioObjectClient adapts a *minio.Client; tests provide in-memory fakes.
type ObjectClient interface {
	EnsureBucket(ctx context.Context, bucket string) error
	GetObject(ctx context.Context, bucket, name string) (StoredObject, error)
	PutObject(ctx context.Context, bucket, name string, obj StoredObject) error
	RemoveObject(ctx context.Context, bucket, name string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
}

type minioObjectClient struct {
	client *minio.Client
}

// NewMinioObjectClient adapts client to ObjectClient.
func NewMinioObjectClient(client *minio.Client) ObjectClient {
	return &minioObjectClient{client: client}
}

func (c *minioObjectClient) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == "BucketAlreadyOwnedByYou" {
		return nil
	}
	return err
}

func (c *minioObjectClient) GetObject(ctx context.Context, bucket, name string) (StoredObject, error) {
	obj, err := c.client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return StoredObject{}, translateMinioErr(err)
	}
	defer obj.Close()
	info, err := obj.Stat()
	if err != nil {
		return StoredObject{}, translateMinioErr(err)
	}
	body, err := io.ReadAll(obj)
	if err != nil {
		return StoredObject{}, translateMinioErr(err)
	}
	return StoredObject{Body: body, Metadata: info.UserMetadata}, nil
}

func (c *minioObjectClient) PutObject(ctx context.Context, bucket, name string, obj StoredObject) error {
	_, err := c.client.PutObject(ctx, bucket, name, bytes.NewReader(obj.Body), int64(len(obj.Body)), minio.PutObjectOptions{
		ContentType:  "application/octet-stream",
		UserMetadata: obj.Metadata,
	})
	return err
}

func (c *minioObjectClient) RemoveObject(ctx context.Context, bucket, name string) error {
	return c.client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{})
}

func (c *minioObjectClient) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	return collectObjectNames(ctx, func(ctx context.Context) <-chan minio.ObjectInfo {
		return c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	})
}

// collectObjectNames drains a listing. The listing runs under its own
// context, cancelled on return, so stopping early on an error also stops the
// producer goroutine.
func collectObjectNames(ctx context.Context, list func(context.Context) <-chan minio.ObjectInfo) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var names []string
	for info := range list(ctx) {
		if info.Err != nil {
			return nil, info.Err
		}
		names = append(names, info.Key)
	}
	return names, nil
}

// GetObject only reports a missing key once the object is read, so the
// translation is applied to every call.
func translateMinioErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return err
}

// minioStore writes one object per key at <prefix>/<type>/<id>, keeping the
// fetch time and expiry as user metadata rather than inside the body.
type minioStore struct {
	client     ObjectClient
	bucket     string
	prefix     string
	defaultTTL time.Duration
}

func newMinioStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	client := cfg.MinioClient
	if client == nil {
		if cfg.MinioEndpoint == "" {
			return nil, errors.New("minio driver requires an endpoint or client")
		}
		mc, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
			Secure: cfg.MinioSecure,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		client = NewMinioObjectClient(mc)
	}
	if err := client.EnsureBucket(ctx, cfg.MinioBucket); err != nil {
		return nil, fmt.Errorf("ensure bucket %q: %w", cfg.MinioBucket, err)
	}
	return &minioStore{
		client:     client,
		bucket:     cfg.MinioBucket,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

func (s *minioStore) Driver() Driver { return DriverMinio }

func (s *minioStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	name := s.objectName(key)
	obj, err := s.client.GetObject(ctx, s.bucket, name)
	if errors.Is(err, ErrObjectNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	storedAt, err := minioMetaInt(obj.Metadata, minioStoredAtMeta)
	if err != nil {
		return Record{}, false, err
	}
	expiresAt, err := minioMetaInt(obj.Metadata, minioExpiresAtMeta)
	if err != nil {
		return Record{}, false, err
	}
	if expiredAt(expiresAt) {
		_ = s.client.RemoveObject(ctx, s.bucket, name)
		return Record{}, false, nil
	}
	return Record{Value: obj.Body, StoredAt: storedAt}, true, nil
}

func (s *minioStore) Put(ctx context.Context, key Key, rec Record, ttl time.Duration) error {
	exp := expiresAtMillis(effectiveTTL(ttl, s.defaultTTL))
	return s.client.PutObject(ctx, s.bucket, s.objectName(key), StoredObject{
		Body: cloneBytes(rec.Value),
		Metadata: map[string]string{
			minioStoredAtMeta:  strconv.FormatInt(rec.StoredAt, 10),
			minioExpiresAtMeta: strconv.FormatInt(exp, 10),
		},
	})
}

func (s *minioStore) Delete(ctx context.Context, key Key) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectName(key))
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

// Invalidate removes every object of one type, or every object under the
// store prefix when objectType is empty.
func (s *minioStore) Invalidate(ctx context.Context, objectType string) error {
	scope := s.prefix + "/"
	if objectType != "" {
		scope += encodeKeyPart(objectType) + "/"
	}
	names, err := s.client.ListObjects(ctx, s.bucket, scope)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.client.RemoveObject(ctx, s.bucket, name); err != nil && !errors.Is(err, ErrObjectNotFound) {
			return err
		}
	}
	return nil
}

// objectName encodes both parts so a "/" or ".." inside an id or type cannot
// shift the object into another folder.
func (s *minioStore) objectName(key Key) string {
	return s.prefix + "/" + encodeKeyPart(key.ObjectType) + "/" + encodeKeyPart(key.ObjectID)
}

// minioMetaInt reads a numeric metadata entry. Servers return user metadata
// with or without the X-Amz-Meta- prefix and in any case, so both forms are
// accepted. A missing entry reads as 0.
func minioMetaInt(meta map[string]string, name string) (int64, error) {
	for k, v := range meta {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		if k != strings.ToLower(name) {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: metadata %s=%q", ErrCorruptRecord, name, v)
		}
		return n, nil
	}
	return 0, nil
}
