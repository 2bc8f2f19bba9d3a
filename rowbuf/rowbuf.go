// Package rowbuf implements the in-memory scratch buffer that holds one
// encoded row: a fixed region with one slot per column, followed by a
// variable region holding the packed elements of var(k) columns, in write
// order.
package rowbuf

import (
	"github.com/jeromekelleher/wormtable/codec"
	"github.com/jeromekelleher/wormtable/schema"
	"github.com/jeromekelleher/wormtable/werror"
)

// MaxRowSize is the hard cap on an encoded row's total size.
const MaxRowSize = 65536

// RowBuffer is allocated against a finalized schema and reused across
// appends via Clear.
type RowBuffer struct {
	schema *schema.Schema
	buf    []byte
}

// New allocates a row buffer for s, which must already be finalized.
func New(s *schema.Schema) (*RowBuffer, error) {
	if !s.Finalized() {
		return nil, werror.State(nil, "rowbuf.New: schema must be finalized first")
	}
	r := &RowBuffer{schema: s}
	r.Clear()
	return r, nil
}

// Clear resets the buffer to the row header size and zeroes it, so that
// every fixed slot reads back as "missing" (all-zero bytes) until set.
func (r *RowBuffer) Clear() {
	r.buf = make([]byte, r.schema.RowHeaderSize())
}

// Bytes returns the current encoded row. The fixed region occupies
// [0, RowHeaderSize), followed by the variable region.
func (r *RowBuffer) Bytes() []byte {
	return r.buf
}

// Load replaces the buffer's contents wholesale, e.g. when a table
// reassembles a row from its stored key and value bytes. data must be at
// least as long as the schema's row header.
func (r *RowBuffer) Load(data []byte) error {
	if len(data) < r.schema.RowHeaderSize() {
		return werror.Validation(nil, "rowbuf.Load: %d bytes shorter than row header size %d", len(data), r.schema.RowHeaderSize())
	}
	r.buf = append([]byte(nil), data...)
	return nil
}

// SetUint writes vals into column name, which must be a UINT column.
func (r *RowBuffer) SetUint(name string, vals []uint64) error {
	col, err := r.columnOfType(name, codec.Uint)
	if err != nil {
		return err
	}
	return r.setElements(col, len(vals), func(i int) ([]byte, error) {
		return codec.EncodeUint(vals[i], col.ElementSize)
	})
}

// GetUint reads column name, which must be a UINT column.
func (r *RowBuffer) GetUint(name string) ([]uint64, error) {
	col, err := r.columnOfType(name, codec.Uint)
	if err != nil {
		return nil, err
	}
	return getElements(r, col, codec.DecodeUint)
}

// SetInt writes vals into column name, which must be an INT column.
func (r *RowBuffer) SetInt(name string, vals []int64) error {
	col, err := r.columnOfType(name, codec.Int)
	if err != nil {
		return err
	}
	return r.setElements(col, len(vals), func(i int) ([]byte, error) {
		return codec.EncodeInt(vals[i], col.ElementSize)
	})
}

// GetInt reads column name, which must be an INT column.
func (r *RowBuffer) GetInt(name string) ([]int64, error) {
	col, err := r.columnOfType(name, codec.Int)
	if err != nil {
		return nil, err
	}
	return getElements(r, col, codec.DecodeInt)
}

// SetFloat writes vals into column name, which must be a FLOAT column.
func (r *RowBuffer) SetFloat(name string, vals []float64) error {
	col, err := r.columnOfType(name, codec.Float)
	if err != nil {
		return err
	}
	return r.setElements(col, len(vals), func(i int) ([]byte, error) {
		return codec.EncodeFloat(vals[i], col.ElementSize)
	})
}

// GetFloat reads column name, which must be a FLOAT column.
func (r *RowBuffer) GetFloat(name string) ([]float64, error) {
	col, err := r.columnOfType(name, codec.Float)
	if err != nil {
		return nil, err
	}
	return getElements(r, col, codec.DecodeFloat)
}

// SetChar writes vals (raw bytes, one element each) into column name, which
// must be a CHAR column.
func (r *RowBuffer) SetChar(name string, vals []byte) error {
	col, err := r.columnOfType(name, codec.Char)
	if err != nil {
		return err
	}
	return r.setElements(col, len(vals), func(i int) ([]byte, error) {
		return codec.EncodeChar(vals[i]), nil
	})
}

// GetChar reads column name, which must be a CHAR column.
func (r *RowBuffer) GetChar(name string) ([]byte, error) {
	col, err := r.columnOfType(name, codec.Char)
	if err != nil {
		return nil, err
	}
	return getElements(r, col, codec.DecodeChar)
}

// RowID is a convenience accessor for column 0.
func (r *RowBuffer) RowID() (uint64, error) {
	vals, err := r.GetUint(schema.RowIDColumnName)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

// SetRowID is a convenience setter for column 0.
func (r *RowBuffer) SetRowID(v uint64) error {
	return r.SetUint(schema.RowIDColumnName, []uint64{v})
}

func (r *RowBuffer) columnOfType(name string, t codec.ElementType) (*schema.Column, error) {
	col, err := r.schema.Column(name)
	if err != nil {
		return nil, err
	}
	if col.Type != t {
		return nil, werror.Validation(nil, "column %q is %s, not %s", name, col.Type, t)
	}
	return col, nil
}

// setElements writes count elements (produced by encodeAt) into col's slot,
// handling the fixed vs. variable layout difference and all of its
// failure modes.
func (r *RowBuffer) setElements(col *schema.Column, count int, encodeAt func(i int) ([]byte, error)) error {
	if !col.Variable {
		if count != col.NumElements {
			return werror.Validation(nil, "column %q: expected %d elements, got %d", col.Name, col.NumElements, count)
		}
		off := col.FixedRegionOffset
		for i := 0; i < count; i++ {
			b, err := encodeAt(i)
			if err != nil {
				return werror.Validation(err, "column %q: element %d", col.Name, i)
			}
			copy(r.buf[off+i*col.ElementSize:off+(i+1)*col.ElementSize], b)
		}
		return nil
	}

	maxN := col.MaxElements()
	if count > maxN {
		return werror.Validation(nil, "column %q: %d elements exceeds the var(%d) limit of %d", col.Name, count, col.VarWidth, maxN)
	}
	tail := len(r.buf)
	if tail > (1<<16)-1 {
		return werror.Validation(nil, "column %q: row already exceeds the addressable tail offset", col.Name)
	}

	packed := make([]byte, 0, count*col.ElementSize)
	for i := 0; i < count; i++ {
		b, err := encodeAt(i)
		if err != nil {
			return werror.Validation(err, "column %q: element %d", col.Name, i)
		}
		packed = append(packed, b...)
	}
	if newLen := len(r.buf) + len(packed); newLen > MaxRowSize {
		return werror.Validation(nil, "column %q: row would grow to %d bytes, exceeding the %d-byte limit", col.Name, newLen, MaxRowSize)
	}

	r.buf = append(r.buf, packed...)
	off := col.FixedRegionOffset
	codec.PutUintBE(r.buf[off:off+2], uint64(tail))
	codec.PutUintBE(r.buf[off+2:off+2+col.VarWidth], uint64(count))
	return nil
}

// getElements reads back the elements written by setElements, decoding each
// with decode.
func getElements[T any](r *RowBuffer, col *schema.Column, decode func([]byte) T) ([]T, error) {
	if !col.Variable {
		off := col.FixedRegionOffset
		out := make([]T, col.NumElements)
		for i := 0; i < col.NumElements; i++ {
			b := r.buf[off+i*col.ElementSize : off+(i+1)*col.ElementSize]
			out[i] = decode(b)
		}
		return out, nil
	}

	off := col.FixedRegionOffset
	if off+2+col.VarWidth > len(r.buf) {
		return nil, werror.Validation(nil, "column %q: row buffer too short to hold its variable slot", col.Name)
	}
	tailOffset := int(codec.GetUintBE(r.buf[off : off+2]))
	count := int(codec.GetUintBE(r.buf[off+2 : off+2+col.VarWidth]))
	end := tailOffset + count*col.ElementSize
	if tailOffset < 0 || end > len(r.buf) {
		return nil, werror.Validation(nil, "column %q: variable region [%d,%d) out of bounds (row is %d bytes)", col.Name, tailOffset, end, len(r.buf))
	}
	out := make([]T, count)
	for i := 0; i < count; i++ {
		b := r.buf[tailOffset+i*col.ElementSize : tailOffset+(i+1)*col.ElementSize]
		out[i] = decode(b)
	}
	return out, nil
}
