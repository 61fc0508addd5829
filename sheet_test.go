package gridcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) Addr {
	t.Helper()
	a, err := ParseAddress(s)
	require.NoError(t, err)
	return a
}

func TestSheet_SetCellKeepsMapSparse(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")

	s.SetCell(mustAddr(t, "A1"), &Cell{Value: "x", DataType: "string"})
	require.Len(t, s.Cells, 1)

	// Writing an empty cell removes the entry rather than storing a blank.
	s.SetCell(mustAddr(t, "A1"), &Cell{})
	assert.Empty(t, s.Cells)
}

func TestSheet_SetCellGrowsBounds(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.SetCell(mustAddr(t, "AB2000"), &Cell{Value: 1.0, DataType: "number"})

	assert.Equal(t, 2000, s.Rows)
	assert.Equal(t, 28, s.Cols)
}

func TestSheet_InsertRowsShiftsCells(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.SetCell(mustAddr(t, "A1"), &Cell{Value: "header", DataType: "string"})
	s.SetCell(mustAddr(t, "A2"), &Cell{Value: "row two", DataType: "string"})

	res := s.InsertRows(2, 1)

	assert.Nil(t, s.Cells["A2"])
	require.NotNil(t, s.Cells["A3"])
	assert.Equal(t, "row two", s.Cells["A3"].Value)
	assert.Equal(t, "header", s.Cells["A1"].Value)
	assert.Equal(t, map[string]string{"A2": "A3"}, res.Moved)
	assert.Equal(t, DefaultRows+1, s.Rows)
}

func TestSheet_InsertRowsGrowsSpanningNamedRange(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.NamedRanges = map[string]string{"Data": "$A$1:$A$3"}

	s.InsertRows(2, 1)

	assert.Equal(t, "$A$1:$A$4", s.NamedRanges["Data"])
}

func TestSheet_DeleteRowsDropsCellsInSpan(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.SetCell(mustAddr(t, "A1"), &Cell{Value: 1.0, DataType: "number"})
	s.SetCell(mustAddr(t, "A2"), &Cell{Value: 2.0, DataType: "number"})
	s.SetCell(mustAddr(t, "A3"), &Cell{Value: 3.0, DataType: "number"})

	res := s.DeleteRows(2, 1)

	assert.Equal(t, []string{"A2"}, res.Removed)
	require.NotNil(t, s.Cells["A2"])
	assert.Equal(t, 3.0, s.Cells["A2"].Value)
	assert.Nil(t, s.Cells["A3"])
}

func TestSheet_DeleteRowsCollapsesContainedMerge(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.Merges = []string{"A2:B2", "A5:B6"}

	s.DeleteRows(2, 1)

	// The merge living entirely in the deleted row disappears; the one
	// below shifts up.
	assert.Equal(t, []string{"A4:B5"}, s.Merges)
}

func TestSheet_DeleteRowsTrimsRangeEnd(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.NamedRanges = map[string]string{"Pair": "$A$1:$A$2"}

	s.DeleteRows(2, 1)

	// The tail row is gone, so the range shrinks; it must not absorb the
	// old row 3 shifting up into its place.
	assert.Equal(t, "$A$1:$A$1", s.NamedRanges["Pair"])
}

func TestSheet_DeleteRowsDissolvesMergeLosingItsTail(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.Merges = []string{"A1:A2", "C1:D2"}

	s.DeleteRows(2, 1)

	// A1:A2 shrinks to a single cell and is no longer a merge; C1:D2
	// keeps its surviving two-cell top row.
	assert.Equal(t, []string{"C1:D1"}, s.Merges)
}

func TestSheet_DeleteColsTrimsRangeEnd(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.NamedRanges = map[string]string{"Wide": "$A$1:$C$1"}
	s.Merges = []string{"B1:C2"}

	s.DeleteCols(3, 1)

	assert.Equal(t, "$A$1:$B$1", s.NamedRanges["Wide"])
	assert.Equal(t, []string{"B1:B2"}, s.Merges)
}

func TestSheet_InsertColsShiftsCellsAndLayout(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.SetCell(mustAddr(t, "B1"), &Cell{Value: "b", DataType: "string"})
	s.ColWidths = map[int]float64{2: 18}

	s.InsertCols(1, 2)

	require.NotNil(t, s.Cells["D1"])
	assert.Equal(t, "b", s.Cells["D1"].Value)
	assert.Equal(t, map[int]float64{4: 18}, s.ColWidths)
	assert.Equal(t, DefaultCols+2, s.Cols)
}

func TestSheet_MergeOverlap(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.Merges = []string{"A1:B2"}

	overlapping, err := ParseRange("B2:C3")
	require.NoError(t, err)
	m, found := s.MergeOverlap(overlapping)
	assert.True(t, found)
	assert.Equal(t, "A1:B2", m)

	clear, err := ParseRange("C3:D4")
	require.NoError(t, err)
	_, found = s.MergeOverlap(clear)
	assert.False(t, found)
}

func TestSheet_FormulaCells(t *testing.T) {
	s := NewSheet("sheet-1", "Sheet1")
	s.SetCell(mustAddr(t, "A1"), &Cell{Value: 1.0, DataType: "number"})
	s.SetCell(mustAddr(t, "B1"), &Cell{Formula: "=A1*2"})
	s.SetCell(mustAddr(t, "C1"), &Cell{Formula: "=B1+1"})

	assert.Len(t, s.FormulaCells(), 2)
}
