package storage

import (
	"bytes"
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("acp-sync")

// BoltAdapter is a durable, embedded key/value store backed by a single
// bbolt file, the closest idiomatic Go analogue to a browser's
// local indexed store: an ordered, crash-safe on-disk B+tree that
// ScanPrefix can walk directly via a cursor instead of a full scan.
type BoltAdapter struct {
	path string
	db   *bolt.DB
}

// NewBoltAdapter creates an adapter that will open its database file at
// path on Init.
func NewBoltAdapter(path string) *BoltAdapter {
	return &BoltAdapter{path: path}
}

func (b *BoltAdapter) Init(ctx context.Context) error {
	db, err := bolt.Open(b.path, 0o600, nil)
	if err != nil {
		return fmt.Errorf("storage: open bolt db %q: %w", b.path, err)
	}
	b.db = db

	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
}

func (b *BoltAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			value = make([]byte, len(v))
			copy(value, v)
			found = true
		}
		return nil
	})
	return value, found, err
}

func (b *BoltAdapter) Set(ctx context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
}

func (b *BoltAdapter) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func (b *BoltAdapter) ScanPrefix(ctx context.Context, prefix string) ([]KV, error) {
	var out []KV
	prefixBytes := []byte(prefix)

	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Seek(prefixBytes); k != nil && bytes.HasPrefix(k, prefixBytes); k, v = c.Next() {
			cp := make([]byte, len(v))
			copy(cp, v)
			out = append(out, KV{Key: string(k), Value: cp})
		}
		return nil
	})
	return out, err
}

func (b *BoltAdapter) ClearAll(ctx context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

func (b *BoltAdapter) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
