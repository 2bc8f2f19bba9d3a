package store

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/jeromekelleher/wormtable/werror"
)

// seqSuffixLen is the width of the big-endian insertion-sequence number
// pebbleStore appends to every physical key, so that duplicate logical keys
// (as produced by an index build over a column with repeated values) get
// distinct physical keys ordered by insertion order rather than being
// silently overwritten by pebble's last-write-wins Set semantics.
const seqSuffixLen = 8

// pebbleStore implements Store on top of a *pebble.DB opened over a
// directory.
type pebbleStore struct {
	dir    string
	db     *pebble.DB
	cache  *pebble.Cache
	seq    uint64
	log    *zap.Logger
	closed bool
}

// ExclusiveCreate opens a new store at dir, which must not already exist.
func ExclusiveCreate(dir string, opts Options, log *zap.Logger) (Store, error) {
	popts := &pebble.Options{ErrorIfExists: true}
	cache := attachCache(popts, opts.CacheSize)
	db, err := pebble.Open(dir, popts)
	if err != nil {
		if cache != nil {
			cache.Unref()
		}
		return nil, werror.IO(err, "create store at %q", dir)
	}
	log.Info("store created", zap.String("dir", dir))
	return &pebbleStore{dir: dir, db: db, cache: cache, log: log}, nil
}

// OpenReadOnly opens an existing store at dir for reading only.
func OpenReadOnly(dir string, opts Options, log *zap.Logger) (Store, error) {
	popts := &pebble.Options{ErrorIfNotExists: true, ReadOnly: true}
	cache := attachCache(popts, opts.CacheSize)
	db, err := pebble.Open(dir, popts)
	if err != nil {
		if cache != nil {
			cache.Unref()
		}
		return nil, werror.IO(err, "open store at %q", dir)
	}
	log.Info("store opened read-only", zap.String("dir", dir))
	return &pebbleStore{dir: dir, db: db, cache: cache, log: log}, nil
}

// Rename atomically renames a store's backing directory. The store named by
// oldDir must be closed first; this is the operation table.Publish uses to
// move __build_primary.db to primary.db.
func Rename(oldDir, newDir string) error {
	if err := os.Rename(oldDir, newDir); err != nil {
		return werror.IO(err, "rename store %q to %q", oldDir, newDir)
	}
	return nil
}

func attachCache(popts *pebble.Options, bytes int64) *pebble.Cache {
	if bytes <= 0 {
		return nil
	}
	cache := pebble.NewCache(bytes)
	popts.Cache = cache
	return cache
}

func (s *pebbleStore) Put(key, value []byte) error {
	phys := appendSeq(key, s.seq)
	s.seq++
	if err := s.db.Set(phys, value, pebble.NoSync); err != nil {
		return werror.IO(err, "put key of %d bytes", len(key))
	}
	return nil
}

func (s *pebbleStore) Get(key []byte) ([]byte, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: key,
		UpperBound: prefixUpperBound(key),
	})
	if err != nil {
		return nil, werror.IO(err, "get key of %d bytes", len(key))
	}
	defer iter.Close()
	if !iter.First() {
		return nil, werror.NotFound(nil, "key of %d bytes not present", len(key))
	}
	out := append([]byte(nil), iter.Value()...)
	return out, nil
}

func (s *pebbleStore) NewCursor() (Cursor, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, werror.IO(err, "new cursor")
	}
	return &pebbleCursor{iter: iter}, nil
}

func (s *pebbleStore) Close() error {
	if s.closed {
		return werror.State(nil, "store %q already closed", s.dir)
	}
	s.closed = true
	err := s.db.Close()
	if s.cache != nil {
		s.cache.Unref()
	}
	if err != nil {
		return werror.IO(err, "close store %q", s.dir)
	}
	s.log.Info("store closed", zap.String("dir", s.dir))
	return nil
}

// pebbleCursor adapts a *pebble.Iterator to Cursor, stripping the
// insertion-sequence suffix pebbleStore.Put appended.
type pebbleCursor struct {
	iter *pebble.Iterator
}

func (c *pebbleCursor) First() bool { return c.iter.First() }
func (c *pebbleCursor) Last() bool  { return c.iter.Last() }
func (c *pebbleCursor) Next() bool  { return c.iter.Next() }
func (c *pebbleCursor) Prev() bool  { return c.iter.Prev() }

func (c *pebbleCursor) Seek(key []byte) bool {
	return c.iter.SeekGE(key)
}

func (c *pebbleCursor) Key() []byte {
	phys := c.iter.Key()
	return append([]byte(nil), phys[:len(phys)-seqSuffixLen]...)
}

func (c *pebbleCursor) Value() []byte {
	return append([]byte(nil), c.iter.Value()...)
}

func (c *pebbleCursor) Close() error {
	if err := c.iter.Close(); err != nil {
		return werror.IO(err, "close cursor")
	}
	return nil
}

// appendSeq appends seq, big-endian, to key so that repeated Put calls with
// an identical logical key get distinct, insertion-ordered physical keys.
func appendSeq(key []byte, seq uint64) []byte {
	phys := make([]byte, len(key)+seqSuffixLen)
	copy(phys, key)
	binary.BigEndian.PutUint64(phys[len(key):], seq)
	return phys
}

// prefixUpperBound returns the smallest byte string greater than every
// string with the given prefix, for bounding a single-logical-key scan in
// Get. It returns nil (unbounded) if prefix is all 0xff bytes.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] == 0xff {
			upper = upper[:i]
			continue
		}
		upper[i]++
		return upper[:i+1]
	}
	return nil
}
