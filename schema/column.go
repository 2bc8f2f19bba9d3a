package schema

import (
	"github.com/jeromekelleher/wormtable/codec"
	"github.com/jeromekelleher/wormtable/werror"
)

// RowIDColumnName is the reserved name of the auto-managed primary key
// column that schema.New always installs as column 0.
const RowIDColumnName = "row_id"

// DefaultRowIDSize is the element size, in bytes, used for row_id when the
// caller does not request a specific size.
const DefaultRowIDSize = 4

// Column describes one field of a row: its logical type, its storage width,
// and whether it holds a fixed or variable number of elements.
//
// FixedRegionOffset and FixedRegionSize are derived, not set by callers; see
// Schema.Finalize.
type Column struct {
	Name        string
	Description string
	Type        codec.ElementType
	ElementSize int

	// NumElements is the element count for a fixed column. It is ignored
	// (and should be zero) for a variable column.
	NumElements int

	// Variable marks this column as var(k)-addressed; NumElements is
	// unused and VarWidth selects the count-field width (the tail-offset
	// field is always offsetFieldSize bytes).
	Variable bool
	VarWidth int // 1 or 2, meaningful only when Variable

	FixedRegionOffset int
	FixedRegionSize   int
}

// NewFixedColumn describes a column holding exactly numElements elements of
// the given type and per-element size.
func NewFixedColumn(name, description string, typ codec.ElementType, elementSize, numElements int) (Column, error) {
	c := Column{
		Name:        name,
		Description: description,
		Type:        typ,
		ElementSize: elementSize,
		NumElements: numElements,
	}
	if err := c.validateCommon(); err != nil {
		return Column{}, err
	}
	if numElements <= 0 {
		return Column{}, werror.Validation(nil, "column %q: num_elements must be positive, got %d", name, numElements)
	}
	c.FixedRegionSize = elementSize * numElements
	return c, nil
}

// NewVariableColumn describes a var(varWidth) column: 0..255 elements for
// varWidth==1, 0..65535 for varWidth==2.
func NewVariableColumn(name, description string, typ codec.ElementType, elementSize, varWidth int) (Column, error) {
	c := Column{
		Name:        name,
		Description: description,
		Type:        typ,
		ElementSize: elementSize,
		Variable:    true,
		VarWidth:    varWidth,
	}
	if err := c.validateCommon(); err != nil {
		return Column{}, err
	}
	if varWidth != 1 && varWidth != 2 {
		return Column{}, werror.Validation(nil, "column %q: var address width must be 1 or 2, got %d", name, varWidth)
	}
	c.FixedRegionSize = offsetFieldSize + varWidth
	return c, nil
}

func (c *Column) validateCommon() error {
	if c.Name == "" {
		return werror.Validation(nil, "column name must not be empty")
	}
	switch c.Type {
	case codec.Uint, codec.Int:
		if c.ElementSize < 1 || c.ElementSize > 8 {
			return werror.Validation(nil, "column %q: %s element_size must be 1-8, got %d", c.Name, c.Type, c.ElementSize)
		}
	case codec.Float:
		if c.ElementSize != 2 && c.ElementSize != 4 && c.ElementSize != 8 {
			return werror.Validation(nil, "column %q: float element_size must be 2, 4 or 8, got %d", c.Name, c.ElementSize)
		}
	case codec.Char:
		if c.ElementSize != 1 {
			return werror.Validation(nil, "column %q: char element_size must be 1, got %d", c.Name, c.ElementSize)
		}
	default:
		return werror.Validation(nil, "column %q: unknown element type %v", c.Name, c.Type)
	}
	return nil
}

// offsetFieldSize is the width, in bytes, of the tail-offset field stored in
// a variable column's fixed slot. A row is capped at 65536 bytes, so a
// 2-byte offset can address any position within it.
const offsetFieldSize = 2

// MaxElements returns the largest element count this column can hold: for a
// fixed column, NumElements itself; for a variable column, 255 or 65535
// depending on VarWidth.
func (c *Column) MaxElements() int {
	if !c.Variable {
		return c.NumElements
	}
	if c.VarWidth == 1 {
		return 255
	}
	return 65535
}
