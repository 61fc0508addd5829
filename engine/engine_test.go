package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajack/gridcore"
)

func setCell(t *testing.T, s *gridcore.Sheet, ref string, c *gridcore.Cell) {
	t.Helper()
	a, err := gridcore.ParseAddress(ref)
	require.NoError(t, err)
	s.SetCell(a, c)
}

func budgetWorkbook(t *testing.T) *gridcore.Workbook {
	t.Helper()
	wb := gridcore.NewWorkbook("wb-1", "Budget", "Income", "Expenses")
	income := wb.Sheets[0]
	setCell(t, income, "A1", &gridcore.Cell{Value: "Salary", DataType: "string"})
	setCell(t, income, "B1", &gridcore.Cell{Value: 5000.0, DataType: "number"})
	setCell(t, income, "A2", &gridcore.Cell{Value: "Freelance", DataType: "string"})
	setCell(t, income, "B2", &gridcore.Cell{Value: 1500.0, DataType: "number"})
	setCell(t, income, "B3", &gridcore.Cell{Formula: "=SUM(B1:B2)"})
	expenses := wb.Sheets[1]
	setCell(t, expenses, "B1", &gridcore.Cell{Value: 1800.0, DataType: "number"})
	setCell(t, expenses, "B2", &gridcore.Cell{Value: 700.0, DataType: "number"})
	setCell(t, expenses, "B3", &gridcore.Cell{Formula: "=SUM(B1:B2)"})
	return wb
}

func TestCompute_Budget(t *testing.T) {
	wb := budgetWorkbook(t)
	res, err := Compute(wb)
	require.NoError(t, err)

	assert.Equal(t, 2, res.UpdatedCells)
	assert.Empty(t, res.Errors)

	income := wb.Sheets[0].Cell("B3")
	require.NotNil(t, income.Computed)
	assert.Equal(t, 6500.0, income.Computed.Value)
	assert.Equal(t, gridcore.ComputedNumber, income.Computed.Type)
	assert.Equal(t, 2500.0, wb.Sheets[1].Cell("B3").Computed.Value)

	assert.Equal(t, 6500.0, wb.ComputedCache["Income!B3"].Value)
	assert.Equal(t, 2500.0, wb.ComputedCache["Expenses!B3"].Value)
}

func TestCompute_CrossSheetReference(t *testing.T) {
	wb := budgetWorkbook(t)
	setCell(t, wb.Sheets[0], "B5", &gridcore.Cell{Formula: "=B3-Expenses!B3"})

	_, err := Compute(wb)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, wb.Sheets[0].Cell("B5").Computed.Value)
}

func TestCompute_NamedRange(t *testing.T) {
	wb := budgetWorkbook(t)
	wb.NamedRanges["Revenue"] = "Income!$B$1:$B$2"
	setCell(t, wb.Sheets[0], "B6", &gridcore.Cell{Formula: "=SUM(Revenue)"})

	_, err := Compute(wb)
	require.NoError(t, err)
	assert.Equal(t, 6500.0, wb.Sheets[0].Cell("B6").Computed.Value)
}

func TestCompute_ErrorValuesAreData(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	setCell(t, wb.Sheets[0], "A1", &gridcore.Cell{Value: 1.0, DataType: "number"})
	setCell(t, wb.Sheets[0], "A2", &gridcore.Cell{Formula: "=A1/0"})

	res, err := Compute(wb)
	require.NoError(t, err, "evaluation errors never fail the pass")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "A2", res.Errors[0].Ref)
	computed := wb.Sheets[0].Cell("A2").Computed
	require.NotNil(t, computed)
	assert.Equal(t, gridcore.ComputedError, computed.Type)
}

func TestCompute_Provenance(t *testing.T) {
	wb := budgetWorkbook(t)
	_, err := Compute(wb, WithProvenance("simulate"))
	require.NoError(t, err)

	assert.Equal(t, "simulate", wb.Sheets[0].Cell("B3").Computed.Provenance)
	assert.Equal(t, "simulate", wb.ComputedCache["Income!B3"].Provenance)
}

func TestHydrate_EmptyWorkbookRejected(t *testing.T) {
	_, err := Hydrate(&gridcore.Workbook{})
	assert.Error(t, err)
}

func TestHydration_DisposeIsIdempotent(t *testing.T) {
	wb := budgetWorkbook(t)
	h, err := Hydrate(wb)
	require.NoError(t, err)

	require.NoError(t, h.Dispose())
	require.NoError(t, h.Dispose())

	_, err = h.Recompute(wb)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, h.UpdateCells("Income", nil), ErrDisposed)
}

func TestHydration_UpdateCells(t *testing.T) {
	wb := budgetWorkbook(t)
	h, err := Hydrate(wb)
	require.NoError(t, err)
	defer h.Dispose()

	_, err = h.Recompute(wb)
	require.NoError(t, err)

	// Push a changed input and recompute without rehydrating.
	setCell(t, wb.Sheets[0], "B1", &gridcore.Cell{Value: 6000.0, DataType: "number"})
	require.NoError(t, h.UpdateCells("Income", map[string]*gridcore.Cell{
		"B1": wb.Sheets[0].Cell("B1"),
	}))

	res, err := h.Recompute(wb)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 7500.0, wb.Sheets[0].Cell("B3").Computed.Value)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, gridcore.ComputedNumber, classifyType(t, "42.5"))
	assert.Equal(t, gridcore.ComputedBoolean, classifyType(t, "TRUE"))
	assert.Equal(t, gridcore.ComputedString, classifyType(t, "hello"))
	assert.Equal(t, gridcore.ComputedError, classifyType(t, "#DIV/0!"))
}

func classifyType(t *testing.T, raw string) gridcore.ComputedType {
	t.Helper()
	return classify(raw, time.Time{}, "").Type
}
