// Implements the Database interface for LevelDB

package db

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
)

// LevelDB implements the IterableDatabase interface over an embedded
// LevelDB store, giving chunk payloads a persistent backend. Keys are
// converted with the supplied KeyCodec.
type LevelDB[K comparable] struct {
	db    *leveldb.DB
	codec KeyCodec[K]
}

// OpenLevelDB opens a LevelDB store at the given path, creating it if it
// does not already exist.
func OpenLevelDB[K comparable](path string, codec KeyCodec[K]) (*LevelDB[K], error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB[K]{db: ldb, codec: codec}, nil
}

// Close the connection to the LevelDB.
func (l *LevelDB[K]) Close() error {
	return l.db.Close()
}

//===========================================================================
// Database interface
//===========================================================================

// TryInsert stores the pair unless the key is already present.
func (l *LevelDB[K]) TryInsert(key K, value []byte) error {
	pkey := l.codec.Marshal(key)
	exists, err := l.db.Has(pkey, nil)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return l.db.Put(pkey, value, nil)
}

// Insert stores the pair, overwriting any previous value.
func (l *LevelDB[K]) Insert(key K, value []byte) error {
	return l.db.Put(l.codec.Marshal(key), value, nil)
}

// Get returns the value for a key, translating the library's not-found
// error into the package sentinel.
func (l *LevelDB[K]) Get(key K) ([]byte, error) {
	value, err := l.db.Get(l.codec.Marshal(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("%v: %w", key, ErrNotFound)
	}
	return value, err
}

// Contains reports whether the key is present.
func (l *LevelDB[K]) Contains(key K) bool {
	exists, err := l.db.Has(l.codec.Marshal(key), nil)
	return err == nil && exists
}

// InsertMulti try-inserts each pair in order. A batch write would be
// faster but cannot express try-insert semantics without reading first.
func (l *LevelDB[K]) InsertMulti(pairs []Pair[K, []byte]) error {
	for _, pair := range pairs {
		if err := l.TryInsert(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// GetMulti returns the values for the keys in the input key order.
func (l *LevelDB[K]) GetMulti(keys []K) ([][]byte, error) {
	values := make([][]byte, 0, len(keys))
	for _, key := range keys {
		value, err := l.Get(key)
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

// Iterator returns a cursor over the whole store.
func (l *LevelDB[K]) Iterator() Cursor[K, []byte] {
	return &levelCursor[K]{iter: l.db.NewIterator(nil, nil), codec: l.codec}
}

// Keys returns all keys currently present.
func (l *LevelDB[K]) Keys() []K {
	var keys []K
	iter := l.db.NewIterator(nil, nil)
	for iter.Next() {
		key, err := l.codec.Unmarshal(iter.Key())
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	iter.Release()
	return keys
}

// Values returns all values currently present.
func (l *LevelDB[K]) Values() ([][]byte, error) {
	var values [][]byte
	iter := l.db.NewIterator(nil, nil)
	for iter.Next() {
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		values = append(values, value)
	}
	err := iter.Error()
	iter.Release()
	return values, err
}

// Clear removes every pair from the store.
func (l *LevelDB[K]) Clear() error {
	batch := new(leveldb.Batch)
	iter := l.db.NewIterator(nil, nil)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	err := iter.Error()
	iter.Release()
	if err != nil {
		return err
	}
	return l.db.Write(batch, nil)
}

//===========================================================================
// levelCursor type and methods
//===========================================================================

// levelCursor wraps a LevelDB iterator in the Cursor interface, decoding
// keys with the store's codec.
type levelCursor[K comparable] struct {
	iter  iterator.Iterator
	codec KeyCodec[K]
	pair  *Pair[K, []byte]
	err   error
}

// Next returns true if there is another key/value pair available.
func (c *levelCursor[K]) Next() bool {
	if !c.iter.Next() {
		c.err = c.iter.Error()
		c.iter.Release()
		return false
	}

	key, err := c.codec.Unmarshal(c.iter.Key())
	if err != nil {
		c.err = err
		c.iter.Release()
		return false
	}

	// The iterator owns its buffers; copy the value out.
	value := make([]byte, len(c.iter.Value()))
	copy(value, c.iter.Value())

	c.pair = &Pair[K, []byte]{Key: key, Value: value}
	return true
}

// Pair returns the current key/value pair on the cursor.
func (c *levelCursor[K]) Pair() *Pair[K, []byte] {
	return c.pair
}

// Error returns any errors from the iteration.
func (c *levelCursor[K]) Error() error {
	return c.err
}
