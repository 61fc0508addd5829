package circular

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajack/gridcore"
)

func TestComputeWithTimeout_EvaluatesAcyclicWorkbook(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setValue(t, s, "B1", 5000)
	setValue(t, s, "B2", 1500)
	setFormula(t, s, "B3", "SUM(B1:B2)")

	res, det, err := ComputeWithTimeout(context.Background(), wb, 30*time.Second)
	require.NoError(t, err)
	assert.False(t, det.HasCycles)
	assert.Equal(t, 1, res.UpdatedCells)

	// Results from the worker clone are patched back into the caller's
	// workbook.
	require.NotNil(t, s.Cells["B3"].Computed)
	assert.Equal(t, 6500.0, s.Cells["B3"].Computed.Value)
	assert.Contains(t, wb.ComputedCache, "Sheet1!B3")
}

func TestComputeWithTimeout_CyclesBlockEvaluation(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setFormula(t, s, "A1", "B1")
	setFormula(t, s, "B1", "A1")

	res, det, err := ComputeWithTimeout(context.Background(), wb, 30*time.Second)
	require.ErrorIs(t, err, ErrCircularReferences)
	assert.Nil(t, res)
	require.NotNil(t, det)
	require.Len(t, det.Cycles, 1)
	assert.Nil(t, s.Cells["A1"].Computed, "the evaluator must never see cyclic input")
}

func TestComputeWithTimeout_CanceledContext(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	setFormula(t, wb.Sheets[0], "A1", "B1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := ComputeWithTimeout(ctx, wb, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
