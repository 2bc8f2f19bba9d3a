// Package table implements a wormtable's lifecycle: BUILDING, PUBLISHED, and
// OPEN-FOR-READ, backed by a store.Store and a schema.Schema, serializing
// rows through rowbuf.
package table

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jeromekelleher/wormtable/codec"
	"github.com/jeromekelleher/wormtable/rowbuf"
	"github.com/jeromekelleher/wormtable/schema"
	"github.com/jeromekelleher/wormtable/store"
	"github.com/jeromekelleher/wormtable/werror"
)

// State is one of the three lifecycle states a Table can be in.
type State int

const (
	Building State = iota
	Published
	OpenForRead
)

const (
	buildFileName  = "__build_primary.db"
	publishedName  = "primary.db"
	schemaFileName = "schema.xml"
)

// Options configures a table at creation or open time.
type Options struct {
	// RowIDSize is the element size, in bytes, of the row_id column.
	// Zero selects schema.DefaultRowIDSize. Ignored when opening an
	// existing table, whose row_id size comes from schema.xml.
	RowIDSize int

	// CacheSize is forwarded to the underlying store. It must be set
	// before the store is opened; it has no effect afterward.
	CacheSize int64
}

// Table is a single BUILDING, PUBLISHED, or OPEN-FOR-READ handle.
type Table struct {
	dir   string
	state State
	opts  Options
	log   *zap.Logger

	schema   *schema.Schema
	st       store.Store
	rowCount uint64
	built    bool // true once the schema has been finalized by the first AddRow/NewRow
}

// Create starts building a new table at dir, which must not already exist.
// The row_id column is installed automatically as column 0.
func Create(dir string, opts Options, log *zap.Logger) (*Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, werror.State(err, "create table home directory %q", dir)
	}
	s, err := schema.New(opts.RowIDSize)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	st, err := store.ExclusiveCreate(filepath.Join(dir, buildFileName), store.Options{CacheSize: opts.CacheSize}, log)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	log.Info("table created", zap.String("dir", dir))
	return &Table{dir: dir, state: Building, opts: opts, log: log, schema: s, st: st}, nil
}

// AddColumn declares an additional column. It is only valid while BUILDING
// and before the first row has been appended.
func (t *Table) AddColumn(col schema.Column) error {
	if t.state != Building {
		return werror.State(nil, "AddColumn: table is not BUILDING")
	}
	if t.built {
		return werror.State(nil, "AddColumn: schema already finalized by the first row")
	}
	return t.schema.AddColumn(col)
}

// NewRow returns a freshly cleared row buffer bound to this table's schema,
// finalizing the schema on first use.
func (t *Table) NewRow() (*rowbuf.RowBuffer, error) {
	if t.state != Building {
		return nil, werror.State(nil, "NewRow: table is not BUILDING")
	}
	if err := t.ensureFinalized(); err != nil {
		return nil, err
	}
	return rowbuf.New(t.schema)
}

func (t *Table) ensureFinalized() error {
	if t.built {
		return nil
	}
	if err := t.schema.Finalize(); err != nil {
		return err
	}
	t.built = true
	return nil
}

// AddRow assigns the current row counter to rb's row_id, splits its encoded
// bytes into key (the row_id) and value (everything else), and appends them
// to the store.
func (t *Table) AddRow(rb *rowbuf.RowBuffer) error {
	if t.state != Building {
		return werror.State(nil, "AddRow: table is not BUILDING")
	}
	if err := t.ensureFinalized(); err != nil {
		return err
	}
	if err := rb.SetRowID(t.rowCount); err != nil {
		return err
	}
	keySize := t.schema.RowIDSize()
	buf := rb.Bytes()
	if len(buf) < keySize {
		return werror.Validation(nil, "AddRow: encoded row shorter than row_id size %d", keySize)
	}
	if err := t.st.Put(buf[:keySize], buf[keySize:]); err != nil {
		return err
	}
	t.rowCount++
	return nil
}

// Publish freezes the schema, writes schema.xml, and atomically renames the
// build store to its published name, transitioning BUILDING -> PUBLISHED.
func (t *Table) Publish() error {
	if t.state != Building {
		return werror.State(nil, "Publish: table is not BUILDING")
	}
	if err := t.ensureFinalized(); err != nil {
		return err
	}
	data, err := t.schema.ToXML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(t.dir, schemaFileName), data, 0600); err != nil {
		return werror.IO(err, "write schema.xml")
	}
	if err := t.st.Close(); err != nil {
		return err
	}
	if err := store.Rename(filepath.Join(t.dir, buildFileName), filepath.Join(t.dir, publishedName)); err != nil {
		return err
	}
	t.st = nil
	t.state = Published
	t.log.Info("table published", zap.String("dir", t.dir), zap.Uint64("rows", t.rowCount))
	return nil
}

// Open opens a PUBLISHED table at dir for reading.
func Open(dir string, opts Options, log *zap.Logger) (*Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	data, err := os.ReadFile(filepath.Join(dir, schemaFileName))
	if err != nil {
		return nil, werror.IO(err, "read schema.xml")
	}
	s, err := schema.FromXML(data)
	if err != nil {
		return nil, err
	}
	st, err := store.OpenReadOnly(filepath.Join(dir, publishedName), store.Options{CacheSize: opts.CacheSize}, log)
	if err != nil {
		return nil, err
	}
	count, err := deriveRowCount(st, s.RowIDSize())
	if err != nil {
		st.Close()
		return nil, err
	}
	log.Info("table opened", zap.String("dir", dir), zap.Uint64("rows", count))
	return &Table{dir: dir, state: OpenForRead, opts: opts, log: log, schema: s, st: st, rowCount: count, built: true}, nil
}

// deriveRowCount seeks to the last key in the store and decodes it as
// UINT(keysize) + 1, or 0 if the store is empty.
func deriveRowCount(st store.Store, keySize int) (uint64, error) {
	cur, err := st.NewCursor()
	if err != nil {
		return 0, err
	}
	defer cur.Close()
	if !cur.Last() {
		return 0, nil
	}
	return codec.DecodeUint(cur.Key()) + 1, nil
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount() uint64 {
	return t.rowCount
}

// Schema returns the table's schema. It must not be mutated by callers.
func (t *Table) Schema() *schema.Schema {
	return t.schema
}

// Store returns the table's underlying store, for use by index.Build and
// cursor, which need to open their own cursors against it.
func (t *Table) Store() store.Store {
	return t.st
}

// GetRow fetches the row with the given row_id and decodes it into a fresh
// row buffer. The table must be OPEN-FOR-READ (a freshly Published handle
// must be reopened with Open before reading).
func (t *Table) GetRow(rowID uint64) (*rowbuf.RowBuffer, error) {
	if t.state != OpenForRead {
		return nil, werror.State(nil, "GetRow: table is not OPEN-FOR-READ")
	}
	if rowID >= t.rowCount {
		return nil, werror.NotFound(nil, "row_id %d out of range [0,%d)", rowID, t.rowCount)
	}
	keySize := t.schema.RowIDSize()
	key, err := codec.EncodeUint(rowID, keySize)
	if err != nil {
		return nil, err
	}
	value, err := t.st.Get(key)
	if err != nil {
		return nil, err
	}
	rb, err := rowbuf.New(t.schema)
	if err != nil {
		return nil, err
	}
	if err := rb.Load(append(append([]byte(nil), key...), value...)); err != nil {
		return nil, err
	}
	return rb, nil
}

// Close releases the table's store handle. A BUILDING table is published
// first, exactly as by Publish.
func (t *Table) Close() error {
	if t.state == Building {
		return t.Publish()
	}
	if t.st == nil {
		return nil
	}
	err := t.st.Close()
	t.st = nil
	return err
}
