package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajack/gridcore"
	"github.com/javajack/gridcore/ops"
)

func writeJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestApplyCommand_WritesBackWorkbook(t *testing.T) {
	dir := t.TempDir()
	wb := gridcore.NewWorkbook("wb-1", "Budget", "Income")
	wbPath := writeJSON(t, dir, "wb.json", wb)
	opsPath := writeJSON(t, dir, "batch.json", []ops.Operation{
		ops.NewSetCells("Income", map[string]ops.CellInput{"A1": {Value: 42.0}}),
	})

	require.NoError(t, execute("apply", wbPath, "--ops", opsPath))

	saved, err := loadWorkbook(wbPath)
	require.NoError(t, err)
	cell := saved.SheetByName("Income").Cell("A1")
	require.NotNil(t, cell)
	assert.Equal(t, 42.0, cell.Value)
	assert.Len(t, saved.Log, 1)
}

func TestApplyCommand_PlanModeLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	wb := gridcore.NewWorkbook("wb-1", "Budget", "Income")
	wbPath := writeJSON(t, dir, "wb.json", wb)
	opsPath := writeJSON(t, dir, "batch.json", []ops.Operation{
		ops.NewSetCells("Income", map[string]ops.CellInput{"A1": {Value: 42.0}}),
	})
	original, err := os.ReadFile(wbPath)
	require.NoError(t, err)

	err = execute("apply", wbPath, "--ops", opsPath, "--plan")
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)

	after, err := os.ReadFile(wbPath)
	require.NoError(t, err)
	assert.Equal(t, original, after)
	applyPlan = false
}

func TestCalcCommand_ExitCode2OnFormulaErrors(t *testing.T) {
	dir := t.TempDir()
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	a1, err := gridcore.ParseAddress("A1")
	require.NoError(t, err)
	wb.Sheets[0].SetCell(a1, &gridcore.Cell{Formula: "=1/0"})
	wbPath := writeJSON(t, dir, "wb.json", wb)

	err = execute("calc", wbPath)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestCalcCommand_CyclesBlockRecalculation(t *testing.T) {
	dir := t.TempDir()
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	a1, err := gridcore.ParseAddress("A1")
	require.NoError(t, err)
	b1, err := gridcore.ParseAddress("B1")
	require.NoError(t, err)
	wb.Sheets[0].SetCell(a1, &gridcore.Cell{Formula: "=B1"})
	wb.Sheets[0].SetCell(b1, &gridcore.Cell{Formula: "=A1"})
	wbPath := writeJSON(t, dir, "wb.json", wb)
	original, err := os.ReadFile(wbPath)
	require.NoError(t, err)

	err = execute("calc", wbPath)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)

	after, err := os.ReadFile(wbPath)
	require.NoError(t, err)
	assert.Equal(t, original, after, "a cyclic workbook must not be rewritten")
}

func TestCyclesCommand(t *testing.T) {
	dir := t.TempDir()
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	a1, err := gridcore.ParseAddress("A1")
	require.NoError(t, err)
	wb.Sheets[0].SetCell(a1, &gridcore.Cell{Formula: "=A1+1"})
	wbPath := writeJSON(t, dir, "wb.json", wb)

	err = execute("cycles", wbPath)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestUndoCommand_EmptyHistory(t *testing.T) {
	dir := t.TempDir()
	wbPath := writeJSON(t, dir, "wb.json", gridcore.NewWorkbook("wb-1", "Budget"))

	err := execute("undo", wbPath)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}
