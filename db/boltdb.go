// Implements the Database interface for BoltDB

package db

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

// chunksBucket is the single bucket holding chunk payloads.
const chunksBucket = "chunks"

// BoltDB implements the IterableDatabase interface over an embedded
// BoltDB store. Keys are converted with the supplied KeyCodec.
type BoltDB[K comparable] struct {
	db    *bolt.DB
	codec KeyCodec[K]
}

// OpenBoltDB opens a BoltDB file at the given path (creating it if it
// doesn't already exist) and initializes the chunks bucket.
func OpenBoltDB[K comparable](path string, codec KeyCodec[K]) (*BoltDB[K], error) {
	bdb, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 15 * time.Second})
	if err != nil {
		return nil, err
	}

	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(chunksBucket))
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, err
	}

	return &BoltDB[K]{db: bdb, codec: codec}, nil
}

// Close the connection to the BoltDB.
func (b *BoltDB[K]) Close() error {
	return b.db.Close()
}

//===========================================================================
// Database interface
//===========================================================================

// TryInsert stores the pair unless the key is already present.
func (b *BoltDB[K]) TryInsert(key K, value []byte) error {
	pkey := b.codec.Marshal(key)
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(chunksBucket))
		if bkt.Get(pkey) != nil {
			return nil
		}
		return bkt.Put(pkey, value)
	})
}

// Insert stores the pair, overwriting any previous value.
func (b *BoltDB[K]) Insert(key K, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(chunksBucket)).Put(b.codec.Marshal(key), value)
	})
}

// Get returns the value for a key or ErrNotFound. Bolt values are only
// valid for the life of the transaction, so the value is copied out.
func (b *BoltDB[K]) Get(key K) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket([]byte(chunksBucket)).Get(b.codec.Marshal(key))
		if stored == nil {
			return fmt.Errorf("%v: %w", key, ErrNotFound)
		}
		value = make([]byte, len(stored))
		copy(value, stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Contains reports whether the key is present.
func (b *BoltDB[K]) Contains(key K) bool {
	var exists bool
	b.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket([]byte(chunksBucket)).Get(b.codec.Marshal(key)) != nil
		return nil
	})
	return exists
}

// InsertMulti try-inserts each pair inside a single transaction.
func (b *BoltDB[K]) InsertMulti(pairs []Pair[K, []byte]) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(chunksBucket))
		for _, pair := range pairs {
			pkey := b.codec.Marshal(pair.Key)
			if bkt.Get(pkey) != nil {
				continue
			}
			if err := bkt.Put(pkey, pair.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMulti returns the values for the keys in the input key order.
func (b *BoltDB[K]) GetMulti(keys []K) ([][]byte, error) {
	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		value, err := b.Get(key)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

//===========================================================================
// IterableDatabase interface
//===========================================================================

// Iterator returns a cursor over a snapshot of the bucket. The snapshot is
// taken in one view transaction so iteration never holds a transaction
// open across caller code.
func (b *BoltDB[K]) Iterator() Cursor[K, []byte] {
	var pairs []Pair[K, []byte]
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(chunksBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			key, err := b.codec.Unmarshal(k)
			if err != nil {
				return err
			}
			value := make([]byte, len(v))
			copy(value, v)
			pairs = append(pairs, Pair[K, []byte]{Key: key, Value: value})
		}
		return nil
	})
	if err != nil {
		return &errorCursor[K]{err: err}
	}
	return newSliceCursor(pairs)
}

// Keys returns all keys currently present.
func (b *BoltDB[K]) Keys() []K {
	var keys []K
	b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(chunksBucket)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			key, err := b.codec.Unmarshal(k)
			if err != nil {
				continue
			}
			keys = append(keys, key)
		}
		return nil
	})
	return keys
}

// Values returns all values currently present.
func (b *BoltDB[K]) Values() ([][]byte, error) {
	var values [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(chunksBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			value := make([]byte, len(v))
			copy(value, v)
			values = append(values, value)
		}
		return nil
	})
	return values, err
}

// Clear removes every pair by dropping and recreating the bucket.
func (b *BoltDB[K]) Clear() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(chunksBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(chunksBucket))
		return err
	})
}

// errorCursor reports a failed snapshot through the Cursor interface.
type errorCursor[K comparable] struct {
	err error
}

func (c *errorCursor[K]) Next() bool           { return false }
func (c *errorCursor[K]) Pair() *Pair[K, []byte] { return nil }
func (c *errorCursor[K]) Error() error         { return c.err }
