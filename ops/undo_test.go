package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajack/gridcore"
)

func TestUndo_EmptyHistory(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	res := Undo(wb)
	assert.False(t, res.Success)
	assert.Equal(t, "nothing to undo", res.Reason)

	res = Redo(wb)
	assert.False(t, res.Success)
	assert.Equal(t, "nothing to redo", res.Reason)
}

func TestUndo_StopsAtNonUndoableAction(t *testing.T) {
	res := Apply(nil, []Operation{NewCreateWorkbook("Budget")})
	require.True(t, res.Success)
	wb := res.Workbook

	undone := Undo(wb)
	assert.False(t, undone.Success)
	assert.Contains(t, undone.Reason, "not undoable")
	assert.Equal(t, 1, wb.Cursor)
}

func TestUndoRedo_SetCellsInverse(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	s.SetCell(gridcore.NewAddr(1, 1), &gridcore.Cell{Value: "old", DataType: "string"})

	res := Apply(wb, []Operation{NewSetCells("Sheet1", map[string]CellInput{
		"A1": {Value: "new"},
		"B1": {Value: 7.0},
	})})
	require.True(t, res.Success)

	undone := Undo(wb)
	require.True(t, undone.Success)
	assert.Equal(t, "old", s.Cells["A1"].Value)
	assert.Nil(t, s.Cells["B1"], "cell created by the action is blank again")
	assert.False(t, wb.CanUndo())

	redone := Redo(wb)
	require.True(t, redone.Success)
	assert.Equal(t, "new", s.Cells["A1"].Value)
	require.NotNil(t, s.Cells["B1"])
	assert.Equal(t, 7.0, s.Cells["B1"].Value)
}

func TestUndoRedo_RepeatedCyclesAreStable(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	res := Apply(wb, []Operation{NewSetCells("Sheet1", map[string]CellInput{"A1": {Value: 1.0}})})
	require.True(t, res.Success)

	// The log snapshots must survive any number of undo/redo round trips.
	for i := 0; i < 3; i++ {
		require.True(t, Undo(wb).Success, "cycle %d", i)
		assert.Nil(t, wb.Sheets[0].Cells["A1"])
		require.True(t, Redo(wb).Success, "cycle %d", i)
		assert.Equal(t, 1.0, wb.Sheets[0].Cells["A1"].Value)
	}
}

func TestUndoRedo_AddSheet(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	res := Apply(wb, []Operation{NewAddSheetAt("Data", 0)})
	require.True(t, res.Success)

	require.True(t, Undo(wb).Success)
	require.Len(t, wb.Sheets, 1)
	assert.Equal(t, "Sheet1", wb.Sheets[0].Name)

	require.True(t, Redo(wb).Success)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "Data", wb.Sheets[0].Name)
}

func TestUndoRedo_RemoveSheetRestoresContent(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget", "Income", "Expenses")
	wb.Sheets[1].SetCell(gridcore.NewAddr(1, 2), &gridcore.Cell{Value: 1800.0, DataType: "number"})

	res := Apply(wb, []Operation{NewRemoveSheet("sheet-2")})
	require.True(t, res.Success)
	require.Len(t, wb.Sheets, 1)

	require.True(t, Undo(wb).Success)
	require.Len(t, wb.Sheets, 2)
	restored := wb.Sheets[1]
	assert.Equal(t, "Expenses", restored.Name)
	require.NotNil(t, restored.Cells["B1"])
	assert.Equal(t, 1800.0, restored.Cells["B1"].Value)
}

func TestUndoRedo_RenameSheet(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget", "Data")
	wb.NamedRanges["Sales"] = "Data!$A$1:$A$9"

	res := Apply(wb, []Operation{NewRenameSheet("sheet-1", "History")})
	require.True(t, res.Success)

	require.True(t, Undo(wb).Success)
	assert.Equal(t, "Data", wb.Sheets[0].Name)
	assert.Equal(t, "Data!$A$1:$A$9", wb.NamedRanges["Sales"])

	require.True(t, Redo(wb).Success)
	assert.Equal(t, "History", wb.Sheets[0].Name)
	assert.Equal(t, "History!$A$1:$A$9", wb.NamedRanges["Sales"])
}

func TestUndoRedo_MergeCells(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	res := Apply(wb, []Operation{NewMergeCells("Sheet1", "A1:D1")})
	require.True(t, res.Success)

	require.True(t, Undo(wb).Success)
	assert.Empty(t, wb.Sheets[0].Merges)

	require.True(t, Redo(wb).Success)
	assert.Equal(t, []string{"A1:D1"}, wb.Sheets[0].Merges)
}

func TestUndoRedo_DefineNamedRange(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	res := Apply(wb, []Operation{NewDefineNamedRange("Sales", "Sheet1", "A1:A9", "")})
	require.True(t, res.Success)

	require.True(t, Undo(wb).Success)
	assert.Empty(t, wb.NamedRanges)

	require.True(t, Redo(wb).Success)
	assert.Equal(t, "Sheet1!$A$1:$A$9", wb.NamedRanges["Sales"])
}

func TestUndoRedo_StructuralRestoresSheetAndNames(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	s.SetCell(gridcore.NewAddr(2, 1), &gridcore.Cell{Value: "row two", DataType: "string"})
	wb.NamedRanges["Data"] = "Sheet1!$A$1:$A$3"

	res := Apply(wb, []Operation{NewInsertRow("sheet-1", 2, 1)})
	require.True(t, res.Success)

	require.True(t, Undo(wb).Success)
	cur := wb.Sheets[0]
	require.NotNil(t, cur.Cells["A2"])
	assert.Nil(t, cur.Cells["A3"])
	assert.Equal(t, "Sheet1!$A$1:$A$3", wb.NamedRanges["Data"])

	require.True(t, Redo(wb).Success)
	cur = wb.Sheets[0]
	assert.Nil(t, cur.Cells["A2"])
	require.NotNil(t, cur.Cells["A3"])
	assert.Equal(t, "Sheet1!$A$1:$A$4", wb.NamedRanges["Data"])
}

func TestUndo_NewActionTruncatesRedoTail(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	Apply(wb, []Operation{NewSetCells("Sheet1", map[string]CellInput{"A1": {Value: 1.0}})})
	Apply(wb, []Operation{NewSetCells("Sheet1", map[string]CellInput{"A2": {Value: 2.0}})})

	require.True(t, Undo(wb).Success)
	require.True(t, wb.CanRedo())

	Apply(wb, []Operation{NewSetCells("Sheet1", map[string]CellInput{"A3": {Value: 3.0}})})
	assert.False(t, wb.CanRedo(), "new action discards the undone branch")
	require.Len(t, wb.Log, 2)
}
