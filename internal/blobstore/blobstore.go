// Package blobstore stores public media objects under opaque keys.
//
// Drivers are interchangeable: S3 (AWS SDK v2), MinIO and an in-memory store
// for tests and local development. Objects are addressed by a random hex key
// and served from a configured public URL base.
package blobstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by drivers when the addressed object does not exist.
var ErrNotFound = errors.New("blobstore: object not found")

// KeyBytes is the number of random bytes behind every object key.
const KeyBytes = 32

// Store is the object storage contract used by the media coordinator.
type Store interface {
	// Put writes data under key, optionally granting anonymous read access.
	Put(ctx context.Context, key string, data []byte, contentType string, publicRead bool) error
	// Delete removes the object under key.
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by drivers that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewKey returns a fresh object key: KeyBytes random bytes, hex encoded.
func NewKey() (string, error) {
	buf := make([]byte, KeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate blob key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// PublicURL joins the public base and key. The base is used verbatim, so it
// must already end with the separator it needs.
func PublicURL(base, key string) string {
	return base + key
}

// KeyFromURL recovers the key from a URL built by PublicURL. It reports false
// when url is empty, does not carry base, or has nothing after it.
func KeyFromURL(base, url string) (string, bool) {
	if url == "" || base == "" || !strings.HasPrefix(url, base) {
		return "", false
	}
	key := strings.TrimPrefix(url, base)
	if key == "" {
		return "", false
	}
	return key, true
}

// Options selects and configures a driver.
type Options struct {
	Driver    string // s3, minio or memory
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	UseSSL    bool
}

// Open builds the configured driver wrapped with metrics and tracing.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)

	switch strings.ToLower(opts.Driver) {
	case "s3", "":
		client, clientErr := NewS3Client(ctx, opts)
		if clientErr != nil {
			return nil, clientErr
		}
		store = NewS3Store(client, opts.Bucket)
	case "minio":
		store, err = NewMinioStore(ctx, opts)
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown blob driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(opts.Driver)
	if driver == "" {
		driver = "s3"
	}
	return Instrument(store, driver), nil
}
