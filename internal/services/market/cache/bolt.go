package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const countsBucket = "counts"

// BoltBackend persists cache entries in a BoltDB file so counts survive
// process restarts within their TTL.
type BoltBackend struct {
	db *bbolt.DB
}

// OpenBolt opens a BoltDB-backed cache at the provided path.
func OpenBolt(path string) (*BoltBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(countsBucket))
		if err != nil {
			return fmt.Errorf("create counts bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltBackend{db: db}, nil
}

// Get reads one cache entry payload.
func (b *BoltBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if b == nil || b.db == nil {
		return nil, false, fmt.Errorf("cache is not configured")
	}

	var payload []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(countsBucket))
		if bucket == nil {
			return fmt.Errorf("counts bucket is missing")
		}
		if value := bucket.Get([]byte(key)); value != nil {
			payload = append([]byte(nil), value...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload, payload != nil, nil
}

// Set writes one cache entry payload.
func (b *BoltBackend) Set(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || b.db == nil {
		return fmt.Errorf("cache is not configured")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(countsBucket))
		if bucket == nil {
			return fmt.Errorf("counts bucket is missing")
		}
		return bucket.Put([]byte(key), payload)
	})
}

// Delete removes one cache entry.
func (b *BoltBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || b.db == nil {
		return fmt.Errorf("cache is not configured")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(countsBucket))
		if bucket == nil {
			return fmt.Errorf("counts bucket is missing")
		}
		return bucket.Delete([]byte(key))
	})
}

// Close closes the underlying BoltDB database.
func (b *BoltBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
