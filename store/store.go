// Package store defines an ordered key/value contract and one concrete,
// production-grade implementation of it on top of
// github.com/cockroachdb/pebble.
//
// The rest of the core (table, index, cursor) programs exclusively against
// the Store and Cursor interfaces here, so swapping the concrete engine
// never touches that code.
package store

// Options configures a store at open time.
type Options struct {
	// CacheSize is the target size, in bytes, of the engine's block cache.
	// Zero selects the engine's own default. Must be set before Open; it
	// has no effect on an already-open store.
	CacheSize int64
}

// Store is an ordered, byte-key/byte-value store supporting duplicate keys:
// Put never overwrites an existing entry for the same key, and a Cursor
// visiting duplicate keys does so in insertion order.
type Store interface {
	// Put appends (key, value). Unlike a conventional map, an existing
	// entry for key is not replaced; a second Put with the same key adds
	// a second entry, ordered after the first under iteration.
	Put(key, value []byte) error

	// Get returns the value of the first entry (in insertion order) for
	// key. It returns a NotFoundError if key has no entry.
	Get(key []byte) ([]byte, error)

	// NewCursor returns a cursor positioned before the first entry. The
	// caller must Close it.
	NewCursor() (Cursor, error)

	// Close releases the engine handle. A store must not be used after
	// Close.
	Close() error
}

// Cursor iterates a Store's entries in ascending key order, with duplicate
// keys visited in insertion order.
type Cursor interface {
	// First positions at the earliest entry. Returns false if the store
	// is empty.
	First() bool

	// Last positions at the latest entry. Returns false if the store is
	// empty.
	Last() bool

	// Next advances to the following entry. Returns false once exhausted.
	Next() bool

	// Prev moves to the preceding entry. Returns false once exhausted.
	Prev() bool

	// Seek positions at the first entry whose key is >= key. Returns
	// false if no such entry exists.
	Seek(key []byte) bool

	// Key returns the logical key at the current position (the
	// duplicate-disambiguating suffix, if any, is never exposed to
	// callers).
	Key() []byte

	// Value returns the value at the current position.
	Value() []byte

	// Close releases the underlying engine iterator.
	Close() error
}
