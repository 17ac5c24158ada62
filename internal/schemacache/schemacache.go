// Package schemacache persists introspected schema graphs across runs
// keyed by (host, database), so repeat invocations against the same
// database skip a full information_schema walk.
package schemacache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/dbsmedya/pgreplay/internal/lock"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
)

var bucketName = []byte("schema_graphs")

// entry is the gob-encoded value stored per key: the graph plus the time
// it was stored, so load() can compare against the caller's TTL.
type entry struct {
	StoredAt time.Time
	Graph    *pgcatalog.Graph
}

// Cache is a bbolt-backed key/value store of schema graphs, guarded by
// an OS-level file lock for cross-process serializability (bbolt's own
// locking only covers one process at a time).
type Cache struct {
	path string
	flk  *lock.FileLock
}

// Open creates a Cache rooted at path. The bbolt file is created on the
// first operation of any kind; its bucket is created on first Store.
func Open(path string) *Cache {
	return &Cache{path: path, flk: lock.New(path)}
}

func key(host, database string) []byte {
	return []byte(fmt.Sprintf("%s/%s", host, database))
}

// Load returns the cached graph for (host, database) iff it was stored no
// longer ago than ttl. A corrupt or unreadable entry is treated as a miss
// and purged, per §4.2's guarantee.
func (c *Cache) Load(host, database string, ttl time.Duration) (*pgcatalog.Graph, bool, error) {
	var found *pgcatalog.Graph
	var corrupt bool

	err := c.withLock(func(db *bbolt.DB) error {
		return db.View(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketName)
			if b == nil {
				return nil
			}
			raw := b.Get(key(host, database))
			if raw == nil {
				return nil
			}

			var e entry
			if decodeErr := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); decodeErr != nil {
				corrupt = true
				return nil
			}
			if time.Since(e.StoredAt) > ttl {
				return nil
			}
			found = e.Graph
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}

	if corrupt {
		if purgeErr := c.Invalidate(host, database); purgeErr != nil {
			return nil, false, fmt.Errorf("purge corrupt cache entry: %w", purgeErr)
		}
		return nil, false, nil
	}

	return found, found != nil, nil
}

// Store atomically replaces any previous entry for (host, database).
func (c *Cache) Store(host, database string, graph *pgcatalog.Graph) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry{StoredAt: time.Now(), Graph: graph}); err != nil {
		return fmt.Errorf("encode schema graph: %w", err)
	}
	payload := buf.Bytes()

	return c.withLock(func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			b, err := tx.CreateBucketIfNotExists(bucketName)
			if err != nil {
				return err
			}
			return b.Put(key(host, database), payload)
		})
	})
}

// Invalidate removes any cached entry for (host, database). It is a no-op
// if no entry exists.
func (c *Cache) Invalidate(host, database string) error {
	return c.withLock(func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket(bucketName)
			if b == nil {
				return nil
			}
			return b.Delete(key(host, database))
		})
	})
}

// Clear removes every cached entry, used by the `cache clear` CLI mode.
func (c *Cache) Clear() error {
	return c.withLock(func(db *bbolt.DB) error {
		return db.Update(func(tx *bbolt.Tx) error {
			if tx.Bucket(bucketName) == nil {
				return nil
			}
			return tx.DeleteBucket(bucketName)
		})
	})
}

// withLock serializes one bbolt open/operate/close cycle behind the file
// lock, so no two pgreplay processes touch the bbolt file concurrently.
func (c *Cache) withLock(fn func(db *bbolt.DB) error) error {
	acquired, err := c.flk.TryAcquire()
	if err != nil {
		return fmt.Errorf("acquire schema cache lock: %w", err)
	}
	if !acquired {
		return errors.New("schema cache is locked by another pgreplay process")
	}
	defer c.flk.Release()

	db, err := bbolt.Open(c.path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("open schema cache %q: %w", c.path, err)
	}
	defer db.Close()

	return fn(db)
}
