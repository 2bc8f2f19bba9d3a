package schema

import (
	"testing"

	"github.com/jeromekelleher/wormtable/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildNameAndBornSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := New(DefaultRowIDSize)
	require.NoError(t, err)
	name, err := NewVariableColumn("name", "", codec.Char, 1, 1)
	require.NoError(t, err)
	require.NoError(t, s.AddColumn(name))
	born, err := NewFixedColumn("born", "", codec.Uint, 2, 1)
	require.NoError(t, err)
	require.NoError(t, s.AddColumn(born))
	return s
}

func TestFinalizeAssignsOffsets(t *testing.T) {
	s := buildNameAndBornSchema(t)
	require.NoError(t, s.Finalize())

	rowID, err := s.Column("row_id")
	require.NoError(t, err)
	assert.Equal(t, 0, rowID.FixedRegionOffset)
	assert.Equal(t, 4, rowID.FixedRegionSize)

	name, err := s.Column("name")
	require.NoError(t, err)
	assert.Equal(t, 4, name.FixedRegionOffset)
	assert.Equal(t, 3, name.FixedRegionSize) // var(1): 2-byte offset + 1-byte count

	born, err := s.Column("born")
	require.NoError(t, err)
	assert.Equal(t, 7, born.FixedRegionOffset)
	assert.Equal(t, 2, born.FixedRegionSize)

	assert.Equal(t, 9, s.RowHeaderSize())
}

func TestAddColumnRejectsDuplicateName(t *testing.T) {
	s := buildNameAndBornSchema(t)
	dup, err := NewFixedColumn("born", "", codec.Uint, 2, 1)
	require.NoError(t, err)
	assert.Error(t, s.AddColumn(dup))
}

func TestAddColumnRejectedAfterFinalize(t *testing.T) {
	s := buildNameAndBornSchema(t)
	require.NoError(t, s.Finalize())
	extra, err := NewFixedColumn("extra", "", codec.Uint, 1, 1)
	require.NoError(t, err)
	assert.Error(t, s.AddColumn(extra))
}

func TestXMLRoundTrip(t *testing.T) {
	s := buildNameAndBornSchema(t)
	require.NoError(t, s.Finalize())

	data, err := s.ToXML()
	require.NoError(t, err)

	loaded, err := FromXML(data)
	require.NoError(t, err)

	assert.Equal(t, s.Columns(), loaded.Columns())
}

func TestXMLRejectsMissingVersion(t *testing.T) {
	_, err := FromXML([]byte(`<schema><columns><column name="row_id" element_type="uint" element_size="4" num_elements="1"/></columns></schema>`))
	assert.Error(t, err)
}

func TestXMLRejectsUnknownAttribute(t *testing.T) {
	_, err := FromXML([]byte(`<schema version="1.0"><columns><column name="row_id" element_type="uint" element_size="4" num_elements="1" bogus="x"/></columns></schema>`))
	assert.Error(t, err)
}

func TestXMLRejectsUnknownElementType(t *testing.T) {
	_, err := FromXML([]byte(`<schema version="1.0"><columns><column name="row_id" element_type="decimal" element_size="4" num_elements="1"/></columns></schema>`))
	assert.Error(t, err)
}
