package cursor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeromekelleher/wormtable/codec"
	"github.com/jeromekelleher/wormtable/index"
	"github.com/jeromekelleher/wormtable/schema"
	"github.com/jeromekelleher/wormtable/store"
	"github.com/jeromekelleher/wormtable/table"
)

func buildPeopleTable(t *testing.T) (*table.Table, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "people")
	tbl, err := table.Create(dir, table.Options{}, zap.NewNop())
	require.NoError(t, err)

	name, err := schema.NewVariableColumn("name", "", codec.Char, 1, 1)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(name))
	born, err := schema.NewFixedColumn("born", "", codec.Uint, 2, 1)
	require.NoError(t, err)
	require.NoError(t, tbl.AddColumn(born))

	rows := []struct {
		name string
		born uint64
	}{
		{"Graham Chapman", 1941},
		{"John Cleese", 1939},
		{"Terry Gilliam", 1940},
		{"Eric Idle", 1943},
	}
	for _, r := range rows {
		rb, err := tbl.NewRow()
		require.NoError(t, err)
		require.NoError(t, rb.SetChar("name", []byte(r.name)))
		require.NoError(t, rb.SetUint("born", []uint64{r.born}))
		require.NoError(t, tbl.AddRow(rb))
	}
	require.NoError(t, tbl.Publish())

	opened, err := table.Open(dir, table.Options{}, zap.NewNop())
	require.NoError(t, err)
	return opened, dir
}

func TestTableCursorFullScanAscendingRowID(t *testing.T) {
	tbl, _ := buildPeopleTable(t)
	defer tbl.Close()

	cur, err := NewTableCursor(tbl, []string{"name"}, nil, nil)
	require.NoError(t, err)
	defer cur.Close()

	var names []string
	for cur.Next() {
		row, err := cur.Row()
		require.NoError(t, err)
		names = append(names, string(row.Values[0].([]byte)))
	}
	assert.Equal(t, []string{"Graham Chapman", "John Cleese", "Terry Gilliam", "Eric Idle"}, names)
}

func TestTableCursorBounds(t *testing.T) {
	tbl, _ := buildPeopleTable(t)
	defer tbl.Close()

	start, stop := uint64(1), uint64(3)
	cur, err := NewTableCursor(tbl, []string{"born"}, &start, &stop)
	require.NoError(t, err)
	defer cur.Close()

	var rowIDs []uint64
	for cur.Next() {
		row, err := cur.Row()
		require.NoError(t, err)
		rowIDs = append(rowIDs, row.RowID)
	}
	assert.Equal(t, []uint64{1, 2}, rowIDs)
}

func TestIndexCursorAscendingKeyOrder(t *testing.T) {
	tbl, dir := buildPeopleTable(t)
	defer tbl.Close()

	idx, err := index.Build(tbl, dir, "born", store.Options{}, zap.NewNop())
	require.NoError(t, err)
	defer idx.Close()

	cur, err := NewIndexCursor(tbl, idx, []string{"name"}, nil, nil)
	require.NoError(t, err)
	defer cur.Close()

	var names []string
	for cur.Next() {
		row, err := cur.Row()
		require.NoError(t, err)
		names = append(names, string(row.Values[0].([]byte)))
	}
	assert.Equal(t, []string{"John Cleese", "Terry Gilliam", "Graham Chapman", "Eric Idle"}, names)
}

func TestIndexCursorPrefixBounds(t *testing.T) {
	tbl, dir := buildPeopleTable(t)
	defer tbl.Close()

	idx, err := index.Build(tbl, dir, "born", store.Options{}, zap.NewNop())
	require.NoError(t, err)
	defer idx.Close()

	cur, err := NewIndexCursor(tbl, idx, []string{"name"}, []interface{}{uint64(1940)}, []interface{}{uint64(1943)})
	require.NoError(t, err)
	defer cur.Close()

	var names []string
	for cur.Next() {
		row, err := cur.Row()
		require.NoError(t, err)
		names = append(names, string(row.Values[0].([]byte)))
	}
	assert.Equal(t, []string{"Terry Gilliam", "Graham Chapman"}, names)
}
