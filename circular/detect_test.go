package circular

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajack/gridcore"
)

func setFormula(t *testing.T, s *gridcore.Sheet, ref, formula string) {
	t.Helper()
	a, err := gridcore.ParseAddress(ref)
	require.NoError(t, err)
	s.SetCell(a, &gridcore.Cell{Formula: gridcore.NormalizeFormula(formula)})
}

func setValue(t *testing.T, s *gridcore.Sheet, ref string, v float64) {
	t.Helper()
	a, err := gridcore.ParseAddress(ref)
	require.NoError(t, err)
	s.SetCell(a, &gridcore.Cell{Value: v, DataType: "number"})
}

func TestCheck_AcyclicWorkbook(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setValue(t, s, "A1", 1)
	setFormula(t, s, "B1", "A1*2")
	setFormula(t, s, "C1", "B1+A1")

	d := Check(wb)
	assert.False(t, d.HasCycles)
	assert.Empty(t, d.Cycles)
}

func TestCheck_DirectCycle(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setFormula(t, s, "A1", "B1+1")
	setFormula(t, s, "B1", "A1*2")

	d := Check(wb)
	require.True(t, d.HasCycles)
	require.Len(t, d.Cycles, 1)

	c := d.Cycles[0]
	assert.Equal(t, []string{"Sheet1!A1", "Sheet1!B1", "Sheet1!A1"}, c.Chain)
	assert.Equal(t, SeverityMedium, c.Severity)
}

func TestCheck_SelfReference(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	setFormula(t, wb.Sheets[0], "A1", "A1+1")

	d := Check(wb)
	require.True(t, d.HasCycles)
	require.Len(t, d.Cycles, 1)
	assert.Equal(t, []string{"Sheet1!A1", "Sheet1!A1"}, d.Cycles[0].Chain)
}

func TestCheck_CrossSheetCycle(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget", "Income", "Plan 2026")
	setFormula(t, wb.Sheets[0], "A1", "'Plan 2026'!B2")
	setFormula(t, wb.Sheets[1], "B2", "Income!A1")

	d := Check(wb)
	require.True(t, d.HasCycles)
	require.Len(t, d.Cycles, 1)
	assert.Equal(t, []string{"Income!A1", "Plan 2026!B2", "Income!A1"}, d.Cycles[0].Chain)
}

func TestCheck_CycleThroughRange(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setValue(t, s, "A1", 1)
	setFormula(t, s, "A3", "SUM(A1:A3)")

	d := Check(wb)
	assert.True(t, d.HasCycles, "a range containing the formula's own cell is a cycle")
}

func TestCheck_CycleThroughNamedRange(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	wb.NamedRanges["Data"] = "Sheet1!$A$1:$A$3"
	setFormula(t, wb.Sheets[0], "A2", "SUM(Data)")

	d := Check(wb)
	assert.True(t, d.HasCycles)
}

func TestCheck_SameLoopReportedOnce(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setFormula(t, s, "A1", "B1")
	setFormula(t, s, "B1", "C1")
	setFormula(t, s, "C1", "A1")

	d := Check(wb)
	require.True(t, d.HasCycles)
	assert.Len(t, d.Cycles, 1, "one loop entered through three members")
}

func TestCheck_SeverityHighForComplexFormula(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setFormula(t, s, "A1", "IF(B1>0, SUM(B1:B1)*1.21+MAX(B1,0)-MIN(B1,100), B1)")
	setFormula(t, s, "B1", "A1")

	d := Check(wb)
	require.True(t, d.HasCycles)
	assert.Equal(t, SeverityHigh, d.Cycles[0].Severity)
}

func TestCheck_SeverityHighForLongCycle(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	// A1 -> A2 -> ... -> A12 -> A1: twelve members.
	for row := 1; row <= 12; row++ {
		next := row + 1
		if next > 12 {
			next = 1
		}
		setFormula(t, s, "A"+strconv.Itoa(row), "A"+strconv.Itoa(next))
	}

	d := Check(wb)
	require.True(t, d.HasCycles)
	assert.Equal(t, SeverityHigh, d.Cycles[0].Severity)
}

func TestGraph_PrecedentsAndTransitive(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setValue(t, s, "A1", 1)
	setFormula(t, s, "B1", "A1*2")
	setFormula(t, s, "C1", "B1+1")

	g := BuildGraph(wb)
	assert.Equal(t, []string{"Sheet1!A1"}, g.Precedents("Sheet1!B1"))
	assert.Equal(t, []string{"Sheet1!B1"}, g.Dependents("Sheet1!A1"))
	assert.Equal(t, []string{"Sheet1!B1", "Sheet1!C1"}, g.Transitive("Sheet1!A1"))
}

func TestCheck_DepthCapTruncatesWithWarning(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setFormula(t, s, "A1", "A2+1")
	setFormula(t, s, "A2", "A3+1")
	setFormula(t, s, "A3", "A4+1")
	setFormula(t, s, "A4", "A5+1")
	setValue(t, s, "A5", 1)

	d := Check(wb, WithMaxDepth(2))

	assert.False(t, d.HasCycles, "a long chain is not a cycle")
	require.NotEmpty(t, d.Warnings)
	assert.Contains(t, d.Warnings[0], "exceeds depth 2")
}

func TestCheck_ScanCapStopsWithWarning(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	s := wb.Sheets[0]
	setFormula(t, s, "A1", "B1*2")
	setFormula(t, s, "A2", "B2*2")
	setFormula(t, s, "A3", "B3*2")
	setValue(t, s, "B1", 1)
	setValue(t, s, "B2", 2)
	setValue(t, s, "B3", 3)

	d := Check(wb, WithMaxScan(2))

	assert.Equal(t, 2, d.Scanned)
	require.NotEmpty(t, d.Warnings)
	assert.Contains(t, d.Warnings[len(d.Warnings)-1], "scan stopped after 2 cells")
}

func TestRecoveryOptions(t *testing.T) {
	opts := RecoveryOptions(Cycle{
		Chain:    []string{"Sheet1!A1", "Sheet1!B1", "Sheet1!A1"},
		Severity: SeverityMedium,
	})
	require.NotEmpty(t, opts)
	assert.Contains(t, opts[0], "Sheet1!A1")

	selfRef := RecoveryOptions(Cycle{
		Chain:    []string{"Sheet1!A1", "Sheet1!A1"},
		Severity: SeverityMedium,
	})
	found := false
	for _, o := range selfRef {
		if o == "Sheet1!A1 references itself; remove the self-reference" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCheckWithTimeout_FinishesInTime(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	setFormula(t, wb.Sheets[0], "A1", "B1")

	d, err := CheckWithTimeout(context.Background(), wb, 5*time.Second)
	require.NoError(t, err)
	assert.False(t, d.HasCycles)
}

func TestCheckWithTimeout_CanceledContext(t *testing.T) {
	wb := gridcore.NewWorkbook("wb-1", "Budget")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CheckWithTimeout(ctx, wb, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
