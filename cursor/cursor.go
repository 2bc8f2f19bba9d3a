// Package cursor implements a row-wise iterator driven by either a table
// (primary, row_id order) or an index (index-key order), with a
// caller-chosen column projection and optional start/stop bounds.
package cursor

import (
	"bytes"

	"github.com/jeromekelleher/wormtable/codec"
	"github.com/jeromekelleher/wormtable/index"
	"github.com/jeromekelleher/wormtable/rowbuf"
	"github.com/jeromekelleher/wormtable/schema"
	"github.com/jeromekelleher/wormtable/store"
	"github.com/jeromekelleher/wormtable/table"
	"github.com/jeromekelleher/wormtable/werror"
)

// Row is one visited row: its row_id and the decoded value of each
// projected column, in the order requested.
type Row struct {
	RowID  uint64
	Values []interface{}
}

// Cursor is a forward-only, single-owner iterator. Call Next until it
// returns false, reading Row in between; Close when done.
type Cursor struct {
	tbl     *table.Table
	columns []*schema.Column

	// table-driven mode
	tableMode bool
	nextID    uint64
	stopID    *uint64

	// index-driven mode
	idx        *index.Index
	sc         store.Cursor
	startBytes []byte
	stopBytes  []byte
	started    bool

	curRowID uint64
	done     bool
}

func resolveColumns(s *schema.Schema, names []string) ([]*schema.Column, error) {
	if len(names) == 0 {
		return nil, werror.Validation(nil, "cursor: at least one projected column is required")
	}
	cols := make([]*schema.Column, len(names))
	for i, name := range names {
		col, err := s.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}

// NewTableCursor drives iteration from tbl's primary store in ascending
// row_id order. start is the first row_id to visit (inclusive); stop is the
// row_id to stop before (exclusive). Either may be nil for unbounded.
func NewTableCursor(tbl *table.Table, columnNames []string, start, stop *uint64) (*Cursor, error) {
	cols, err := resolveColumns(tbl.Schema(), columnNames)
	if err != nil {
		return nil, err
	}
	c := &Cursor{tbl: tbl, columns: cols, tableMode: true, stopID: stop}
	if start != nil {
		c.nextID = *start
	}
	return c, nil
}

// NewIndexCursor drives iteration from idx in ascending index-key order,
// with ties broken by ascending row_id (guaranteed by idx.Build's
// sequential, ascending-row_id insertion order). start/stop are prefixes
// (1..N values, N = number of indexed columns); a shorter prefix is
// implicitly the smallest (for start) or, symmetrically, the boundary at
// which iteration stops (for stop) completion of the omitted columns,
// since byte-prefix comparison already orders that way.
func NewIndexCursor(tbl *table.Table, idx *index.Index, columnNames []string, start, stop []interface{}) (*Cursor, error) {
	cols, err := resolveColumns(tbl.Schema(), columnNames)
	if err != nil {
		return nil, err
	}
	c := &Cursor{tbl: tbl, columns: cols, idx: idx}
	if start != nil {
		b, err := idx.EncodeKeyPrefix(start...)
		if err != nil {
			return nil, err
		}
		c.startBytes = b
	}
	if stop != nil {
		b, err := idx.EncodeKeyPrefix(stop...)
		if err != nil {
			return nil, err
		}
		c.stopBytes = b
	}
	sc, err := idx.Store().NewCursor()
	if err != nil {
		return nil, err
	}
	c.sc = sc
	return c, nil
}

// Next advances the cursor. It returns false once iteration is exhausted or
// the stop bound has been reached; Row must not be called after that.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	if c.tableMode {
		return c.nextTable()
	}
	return c.nextIndex()
}

func (c *Cursor) nextTable() bool {
	if c.stopID != nil && c.nextID >= *c.stopID {
		c.done = true
		return false
	}
	if c.nextID >= c.tbl.RowCount() {
		c.done = true
		return false
	}
	c.curRowID = c.nextID
	c.nextID++
	return true
}

func (c *Cursor) nextIndex() bool {
	var ok bool
	if !c.started {
		c.started = true
		if c.startBytes != nil {
			ok = c.sc.Seek(c.startBytes)
		} else {
			ok = c.sc.First()
		}
	} else {
		ok = c.sc.Next()
	}
	if !ok {
		c.done = true
		return false
	}
	if c.stopBytes != nil && bytes.Compare(c.sc.Key(), c.stopBytes) >= 0 {
		c.done = true
		return false
	}
	c.curRowID = codec.DecodeUint(c.sc.Value())
	return true
}

// Row decodes and projects the row at the cursor's current position. It is
// only valid to call after Next has returned true.
func (c *Cursor) Row() (*Row, error) {
	rb, err := c.tbl.GetRow(c.curRowID)
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(c.columns))
	for i, col := range c.columns {
		v, err := projectedValue(rb, col)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return &Row{RowID: c.curRowID, Values: values}, nil
}

func projectedValue(rb *rowbuf.RowBuffer, col *schema.Column) (interface{}, error) {
	switch col.Type {
	case codec.Uint:
		return rb.GetUint(col.Name)
	case codec.Int:
		return rb.GetInt(col.Name)
	case codec.Float:
		return rb.GetFloat(col.Name)
	case codec.Char:
		return rb.GetChar(col.Name)
	default:
		return nil, werror.Validation(nil, "column %q: unknown element type", col.Name)
	}
}

// Close releases the cursor's underlying store cursor, if any.
func (c *Cursor) Close() error {
	if c.sc != nil {
		return c.sc.Close()
	}
	return nil
}
