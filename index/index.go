// Package index builds and opens a secondary ordered store whose key is a
// lexicographic concatenation of one or more column values, optionally
// binning the last column, and whose value is the primary key of the
// source row.
package index

import (
	"bytes"
	"math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jeromekelleher/wormtable/codec"
	"github.com/jeromekelleher/wormtable/schema"
	"github.com/jeromekelleher/wormtable/store"
	"github.com/jeromekelleher/wormtable/table"
	"github.com/jeromekelleher/wormtable/werror"
)

// progressInterval is how often (in rows scanned) Build logs progress.
const progressInterval = 100000

// Index is a named, built secondary store over a published table.
type Index struct {
	name string
	spec Spec
	cols []*schema.Column

	keySize int // width, in bytes, of the source table's row_id

	st  store.Store
	log *zap.Logger
}

// fileName returns the on-disk name for an index called name.
func fileName(name string) string {
	return name + ".db"
}

// resolveColumns validates spec's columns against tbl's schema: each must be
// a fixed, single-element column; a binned last column must support
// arithmetic (not CHAR).
func resolveColumns(s *schema.Schema, spec Spec) ([]*schema.Column, error) {
	cols := make([]*schema.Column, len(spec.Columns))
	for i, name := range spec.Columns {
		col, err := s.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Variable {
			return nil, werror.Validation(nil, "index column %q: variable columns cannot be indexed", name)
		}
		if col.NumElements != 1 {
			return nil, werror.Validation(nil, "index column %q: only single-element columns can be indexed", name)
		}
		cols[i] = col
	}
	if spec.HasBin && cols[len(cols)-1].Type == codec.Char {
		return nil, werror.Validation(nil, "index %v: CHAR columns do not support bins", spec.Columns)
	}
	return cols, nil
}

// Build scans tbl (which must be OPEN-FOR-READ, i.e. a published table
// reopened with table.Open) sequentially in
// row_id order and writes one (composite key, row_id) entry per row into a
// fresh store named name.
func Build(tbl *table.Table, dir, name string, opts store.Options, log *zap.Logger) (*Index, error) {
	if log == nil {
		log = zap.NewNop()
	}
	spec, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	cols, err := resolveColumns(tbl.Schema(), spec)
	if err != nil {
		return nil, err
	}
	st, err := store.ExclusiveCreate(filepath.Join(dir, fileName(name)), opts, log)
	if err != nil {
		return nil, err
	}
	idx := &Index{name: name, spec: spec, cols: cols, keySize: tbl.Schema().RowIDSize(), st: st, log: log}

	total := tbl.RowCount()
	for rowID := uint64(0); rowID < total; rowID++ {
		rb, err := tbl.GetRow(rowID)
		if err != nil {
			st.Close()
			return nil, err
		}
		key, err := idx.compositeKey(rb)
		if err != nil {
			st.Close()
			return nil, err
		}
		rowKey, err := codec.EncodeUint(rowID, idx.keySize)
		if err != nil {
			st.Close()
			return nil, err
		}
		if err := st.Put(key, rowKey); err != nil {
			st.Close()
			return nil, err
		}
		if (rowID+1)%progressInterval == 0 {
			log.Info("index build progress", zap.String("index", name), zap.Uint64("rows", rowID+1))
		}
	}
	log.Info("index built", zap.String("index", name), zap.Uint64("rows", total))
	return idx, nil
}

// Open opens a previously built index for reading.
func Open(s *schema.Schema, dir, name string, opts store.Options, log *zap.Logger) (*Index, error) {
	if log == nil {
		log = zap.NewNop()
	}
	spec, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	cols, err := resolveColumns(s, spec)
	if err != nil {
		return nil, err
	}
	st, err := store.OpenReadOnly(filepath.Join(dir, fileName(name)), opts, log)
	if err != nil {
		return nil, err
	}
	return &Index{name: name, spec: spec, cols: cols, keySize: s.RowIDSize(), st: st, log: log}, nil
}

// Close releases the index's store handle.
func (idx *Index) Close() error {
	return idx.st.Close()
}

// Store returns the index's underlying ordered store, for cursor.
func (idx *Index) Store() store.Store {
	return idx.st
}

// Columns returns the resolved column descriptors in index order.
func (idx *Index) Columns() []*schema.Column {
	return idx.cols
}

// rowValueGetter is the set of typed row accessors columnValue uses to
// extract a column's single decoded element.
type rowValueGetter interface {
	GetUint(name string) ([]uint64, error)
	GetInt(name string) ([]int64, error)
	GetFloat(name string) ([]float64, error)
	GetChar(name string) ([]byte, error)
}

func columnValue(rb rowValueGetter, col *schema.Column) (interface{}, error) {
	switch col.Type {
	case codec.Uint:
		vs, err := rb.GetUint(col.Name)
		if err != nil {
			return nil, err
		}
		return vs[0], nil
	case codec.Int:
		vs, err := rb.GetInt(col.Name)
		if err != nil {
			return nil, err
		}
		return vs[0], nil
	case codec.Float:
		vs, err := rb.GetFloat(col.Name)
		if err != nil {
			return nil, err
		}
		return vs[0], nil
	case codec.Char:
		vs, err := rb.GetChar(col.Name)
		if err != nil {
			return nil, err
		}
		return vs[0], nil
	default:
		return nil, werror.Validation(nil, "column %q: unknown element type", col.Name)
	}
}

func encodeColumnValue(col *schema.Column, v interface{}) ([]byte, error) {
	switch col.Type {
	case codec.Uint:
		return codec.EncodeUint(v.(uint64), col.ElementSize)
	case codec.Int:
		return codec.EncodeInt(v.(int64), col.ElementSize)
	case codec.Float:
		return codec.EncodeFloat(v.(float64), col.ElementSize)
	case codec.Char:
		return []byte{v.(byte)}, nil
	default:
		return nil, werror.Validation(nil, "column %q: unknown element type", col.Name)
	}
}

func decodeColumnValue(col *schema.Column, raw []byte) interface{} {
	switch col.Type {
	case codec.Uint:
		return codec.DecodeUint(raw)
	case codec.Int:
		return codec.DecodeInt(raw)
	case codec.Float:
		return codec.DecodeFloat(raw)
	case codec.Char:
		return codec.DecodeChar(raw)
	default:
		return nil
	}
}

// binValue replaces v with floor(v/width)*width under col's own type,
// preserving sort order; negative values round toward negative infinity.
func binValue(col *schema.Column, v interface{}, width float64) (interface{}, error) {
	switch col.Type {
	case codec.Uint:
		w := uint64(width)
		if w == 0 {
			return nil, werror.Validation(nil, "column %q: bin width must be a positive integer for uint columns", col.Name)
		}
		val := v.(uint64)
		return (val / w) * w, nil
	case codec.Int:
		w := int64(width)
		if w == 0 {
			return nil, werror.Validation(nil, "column %q: bin width must be a positive integer for int columns", col.Name)
		}
		val := v.(int64)
		q := val / w
		if val%w != 0 && val < 0 {
			q--
		}
		return q * w, nil
	case codec.Float:
		val := v.(float64)
		return math.Floor(val/width) * width, nil
	default:
		return nil, werror.Validation(nil, "column %q: this element type does not support bins", col.Name)
	}
}

// compositeKey builds the index key for a decoded row: the raw encoded
// bytes of each leading column, followed by the (possibly binned) encoded
// bytes of the last column.
func (idx *Index) compositeKey(rb rowValueGetter) ([]byte, error) {
	var buf bytes.Buffer
	for i, col := range idx.cols {
		v, err := columnValue(rb, col)
		if err != nil {
			return nil, err
		}
		if idx.spec.HasBin && i == len(idx.cols)-1 {
			v, err = binValue(col, v, idx.spec.BinWidth)
			if err != nil {
				return nil, err
			}
		}
		b, err := encodeColumnValue(col, v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// decodeKey reverses compositeKey's byte layout into one decoded value per
// indexed column.
func (idx *Index) decodeKey(raw []byte) ([]interface{}, error) {
	out := make([]interface{}, len(idx.cols))
	offset := 0
	for i, col := range idx.cols {
		size := col.ElementSize
		if offset+size > len(raw) {
			return nil, werror.Validation(nil, "index %q: key too short to decode column %q", idx.name, col.Name)
		}
		out[i] = decodeColumnValue(col, raw[offset:offset+size])
		offset += size
	}
	return out, nil
}

// encodePrefix encodes the first len(values) columns of the index (not
// binning the last one, since a full-length prefix must supply the already-
// binned boundary value directly).
func (idx *Index) encodePrefix(values []interface{}) ([]byte, error) {
	if len(values) == 0 || len(values) > len(idx.cols) {
		return nil, werror.Validation(nil, "index %q: prefix length %d out of range [1,%d]", idx.name, len(values), len(idx.cols))
	}
	var buf bytes.Buffer
	for i, v := range values {
		b, err := encodeColumnValue(idx.cols[i], v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// EncodeKeyPrefix encodes a 1..N-length prefix of indexed column values
// into the raw bytes used for key comparison, for callers (cursor) that
// need start/stop bounds without going through MinKeyPrefix/MaxKeyPrefix.
func (idx *Index) EncodeKeyPrefix(values ...interface{}) ([]byte, error) {
	return idx.encodePrefix(values)
}

// MinKey returns the smallest key in the index, decoded into one value per
// indexed column.
func (idx *Index) MinKey() ([]interface{}, error) {
	cur, err := idx.st.NewCursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	if !cur.First() {
		return nil, werror.NotFound(nil, "index %q is empty", idx.name)
	}
	return idx.decodeKey(cur.Key())
}

// MaxKey returns the largest key in the index.
func (idx *Index) MaxKey() ([]interface{}, error) {
	cur, err := idx.st.NewCursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	if !cur.Last() {
		return nil, werror.NotFound(nil, "index %q is empty", idx.name)
	}
	return idx.decodeKey(cur.Key())
}

// MinKeyPrefix returns the full key at the first entry whose leading
// columns match prefix.
func (idx *Index) MinKeyPrefix(prefix ...interface{}) ([]interface{}, error) {
	prefixBytes, err := idx.encodePrefix(prefix)
	if err != nil {
		return nil, err
	}
	cur, err := idx.st.NewCursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	if !cur.Seek(prefixBytes) || !bytes.HasPrefix(cur.Key(), prefixBytes) {
		return nil, werror.NotFound(nil, "index %q: no key with prefix %v", idx.name, prefix)
	}
	return idx.decodeKey(cur.Key())
}

// MaxKeyPrefix returns the full key at the last entry whose leading columns
// match prefix.
func (idx *Index) MaxKeyPrefix(prefix ...interface{}) ([]interface{}, error) {
	prefixBytes, err := idx.encodePrefix(prefix)
	if err != nil {
		return nil, err
	}
	upper := prefixUpperBound(prefixBytes)
	cur, err := idx.st.NewCursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var found bool
	if upper == nil {
		found = cur.Last()
	} else if cur.Seek(upper) {
		found = cur.Prev()
	} else {
		found = cur.Last()
	}
	if !found || !bytes.HasPrefix(cur.Key(), prefixBytes) {
		return nil, werror.NotFound(nil, "index %q: no key with prefix %v", idx.name, prefix)
	}
	return idx.decodeKey(cur.Key())
}

// prefixUpperBound returns the smallest byte string greater than every
// string with the given prefix, or nil if prefix is all 0xff (unbounded).
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

// Entry is one distinct key and its occurrence count.
type Entry struct {
	Key   []interface{}
	Count int
}

// Keys returns every distinct key in ascending order, with duplicate raw
// entries coalesced into a count.
func (idx *Index) Keys() ([]Entry, error) {
	cur, err := idx.st.NewCursor()
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var entries []Entry
	var curRaw []byte
	count := 0
	flush := func() error {
		if curRaw == nil {
			return nil
		}
		tuple, err := idx.decodeKey(curRaw)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Key: tuple, Count: count})
		return nil
	}
	for ok := cur.First(); ok; ok = cur.Next() {
		k := cur.Key()
		if curRaw != nil && bytes.Equal(k, curRaw) {
			count++
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		curRaw = append([]byte(nil), k...)
		count = 1
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Counter is a mapping view from distinct keys to their occurrence counts.
type Counter struct {
	idx     *Index
	entries []Entry
	byKey   map[string]int
}

// Counter builds the key -> count mapping view by a single full scan.
func (idx *Index) Counter() (*Counter, error) {
	entries, err := idx.Keys()
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]int, len(entries))
	for _, e := range entries {
		raw, err := idx.encodePrefix(e.Key)
		if err != nil {
			return nil, err
		}
		byKey[string(raw)] = e.Count
	}
	return &Counter{idx: idx, entries: entries, byKey: byKey}, nil
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.entries)
}

// Get returns the count for key, or 0 if key is absent.
func (c *Counter) Get(key ...interface{}) (int, error) {
	raw, err := c.idx.encodePrefix(key)
	if err != nil {
		return 0, err
	}
	return c.byKey[string(raw)], nil
}

// Entries returns the (key, count) pairs in ascending key order.
func (c *Counter) Entries() []Entry {
	return c.entries
}
