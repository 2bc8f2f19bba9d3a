package schema

import (
	"github.com/jeromekelleher/wormtable/codec"
	"github.com/jeromekelleher/wormtable/werror"
)

// Schema is an ordered, finalized-or-not list of column descriptors.
// Column 0 is always the auto-managed row_id column.
type Schema struct {
	Version string
	columns []Column
	byName  map[string]int
	final   bool
}

// DefaultVersion is written into newly created schemas and is the only
// version this implementation reads back.
const DefaultVersion = "1.0"

// New returns a schema containing only the auto-managed row_id column, with
// the given element size (defaulting to DefaultRowIDSize when rowIDSize is
// zero).
func New(rowIDSize int) (*Schema, error) {
	if rowIDSize == 0 {
		rowIDSize = DefaultRowIDSize
	}
	if rowIDSize < 1 || rowIDSize > 8 {
		return nil, werror.Validation(nil, "row_id element_size must be 1-8, got %d", rowIDSize)
	}
	rowID, err := NewFixedColumn(RowIDColumnName, "auto-assigned row number", codec.Uint, rowIDSize, 1)
	if err != nil {
		return nil, err
	}
	s := &Schema{
		Version: DefaultVersion,
		columns: []Column{rowID},
		byName:  map[string]int{RowIDColumnName: 0},
	}
	return s, nil
}

// AddColumn appends col to the schema. It fails if the schema has already
// been finalized, or if col's name duplicates an existing column.
func (s *Schema) AddColumn(col Column) error {
	if s.final {
		return werror.State(nil, "cannot add column %q: schema is already finalized", col.Name)
	}
	if _, dup := s.byName[col.Name]; dup {
		return werror.Validation(nil, "duplicate column name %q", col.Name)
	}
	s.byName[col.Name] = len(s.columns)
	s.columns = append(s.columns, col)
	return nil
}

// Columns returns the columns in declared order. The returned slice must
// not be mutated by callers.
func (s *Schema) Columns() []Column {
	return s.columns
}

// Column looks up a column by name.
func (s *Schema) Column(name string) (*Column, error) {
	i, ok := s.byName[name]
	if !ok {
		return nil, werror.NotFound(nil, "unknown column %q", name)
	}
	return &s.columns[i], nil
}

// ColumnAt returns the column at physical position i.
func (s *Schema) ColumnAt(i int) (*Column, error) {
	if i < 0 || i >= len(s.columns) {
		return nil, werror.NotFound(nil, "column index %d out of range [0,%d)", i, len(s.columns))
	}
	return &s.columns[i], nil
}

// RowIDColumn returns column 0.
func (s *Schema) RowIDColumn() *Column {
	return &s.columns[0]
}

// RowIDSize is the element size of the row_id column, i.e. the width of a
// primary key.
func (s *Schema) RowIDSize() int {
	return s.columns[0].ElementSize
}

// RowHeaderSize is the total size of the fixed region: valid only after
// Finalize.
func (s *Schema) RowHeaderSize() int {
	var total int
	for _, c := range s.columns {
		total += c.FixedRegionSize
	}
	return total
}

// Finalize assigns FixedRegionOffset to each column (the running sum of
// previous FixedRegionSize values) and validates that the resulting row
// header size is representable by every var(k) column's offset field.
// Finalize is idempotent; once finalized, AddColumn is rejected.
func (s *Schema) Finalize() error {
	offset := 0
	for i := range s.columns {
		s.columns[i].FixedRegionOffset = offset
		offset += s.columns[i].FixedRegionSize
	}
	maxOffset := (1 << (8 * offsetFieldSize)) - 1
	for _, c := range s.columns {
		if c.Variable && offset > maxOffset {
			return werror.Validation(nil,
				"row header size %d exceeds the %d-byte offset field addressable by variable column %q",
				offset, offsetFieldSize, c.Name)
		}
	}
	s.final = true
	return nil
}

// Finalized reports whether Finalize has run.
func (s *Schema) Finalized() bool {
	return s.final
}
