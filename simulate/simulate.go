// Package simulate applies operation batches to a disposable copy of a
// workbook and reports what would change. The input workbook is never
// mutated; two simulations of the same workbook and batch produce
// identical output.
package simulate

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/javajack/gridcore"
	"github.com/javajack/gridcore/ops"
)

// DefaultProvenance tags computed values produced during simulation so a
// consumer can tell preview data from committed data.
const DefaultProvenance = "simulate"

// Options configures a simulation run.
type Options struct {
	provenance      string
	continueOnError bool
	recompute       bool
	logger          *slog.Logger
}

type Option func(*Options)

// WithProvenance overrides the provenance tag on simulated computed values.
func WithProvenance(label string) Option {
	return func(o *Options) { o.provenance = label }
}

// WithContinueOnError applies later operations past a rejection instead of
// halting the simulated batch.
func WithContinueOnError(cont bool) Option {
	return func(o *Options) { o.continueOnError = cont }
}

// WithoutRecompute skips the formula recomputation that normally follows
// the batch, leaving only the structural and value-level effects.
func WithoutRecompute() Option {
	return func(o *Options) { o.recompute = false }
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.logger = l }
}

// CellChange is one cell-level difference between the base workbook and
// the simulated result. A nil Before means the cell was created; a nil
// After means it was removed.
type CellChange struct {
	Sheet  string         `json:"sheet"`
	Ref    string         `json:"ref"`
	Before *gridcore.Cell `json:"before"`
	After  *gridcore.Cell `json:"after"`
}

// Diff summarizes everything the batch would change.
type Diff struct {
	CellChanges        []CellChange `json:"cellChanges,omitempty"`
	SheetsAdded        []string     `json:"sheetsAdded,omitempty"`
	SheetsRemoved      []string     `json:"sheetsRemoved,omitempty"`
	SheetsRenamed      []string     `json:"sheetsRenamed,omitempty"`
	StructuralChanges  []string     `json:"structuralChanges,omitempty"`
	TotalAffectedCells int          `json:"totalAffectedCells"`

	// ComputedProvenance maps "SheetName!A1" to the provenance label for
	// every computed value this pass produced, so callers can tell
	// preview data from committed data without walking the workbook.
	ComputedProvenance map[string]string `json:"computedProvenance,omitempty"`
}

// Outcome is the full result of a simulation.
type Outcome struct {
	Result   ops.Result         `json:"result"`
	Workbook *gridcore.Workbook `json:"-"`
	Diff     Diff               `json:"diff"`
}

// Apply simulates the batch against a deep copy of wb. The copy is
// returned in the outcome for inspection; wb itself is untouched. Unless
// disabled, a recompute pass follows the batch so the diff includes
// formula results, tagged with the simulation provenance.
func Apply(wb *gridcore.Workbook, operations []ops.Operation, opts ...Option) (*Outcome, error) {
	o := &Options{
		provenance: DefaultProvenance,
		recompute:  true,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	var clone *gridcore.Workbook
	if wb != nil {
		var err error
		clone, err = wb.Clone()
		if err != nil {
			return nil, fmt.Errorf("simulate: clone workbook: %w", err)
		}
	}

	baseLog := 0
	if clone != nil {
		baseLog = len(clone.Log)
	}

	if o.recompute && !hasCompute(operations) && hasFormulas(wb) {
		operations = append(append([]ops.Operation(nil), operations...), ops.NewCompute())
	}

	res := ops.Apply(clone, operations,
		ops.WithProvenance(o.provenance),
		ops.WithContinueOnError(o.continueOnError),
		ops.WithLogger(o.logger),
	)
	sim := res.Workbook

	if sim != nil {
		normalizeTimestamps(sim)
	}

	diff := computeDiff(wb, sim, o.provenance)
	if sim != nil {
		diff.StructuralChanges = structuralChanges(sim.Log[min(baseLog, len(sim.Log)):])
	}

	o.logger.Debug("simulation finished",
		"applied", res.Applied, "errors", len(res.Errors), "affectedCells", diff.TotalAffectedCells)
	return &Outcome{Result: res, Workbook: sim, Diff: diff}, nil
}

func hasCompute(operations []ops.Operation) bool {
	for _, op := range operations {
		if op.Type == ops.OpCompute {
			return true
		}
	}
	return false
}

func hasFormulas(wb *gridcore.Workbook) bool {
	if wb == nil {
		return false
	}
	for _, s := range wb.Sheets {
		if len(s.FormulaCells()) > 0 {
			return true
		}
	}
	return false
}

// normalizeTimestamps zeroes wall-clock fields on the simulated copy.
// Simulation output must be reproducible; the only timestamps it may carry
// are the base workbook's own.
func normalizeTimestamps(wb *gridcore.Workbook) {
	wb.Meta.ModifiedAt = wb.Meta.CreatedAt
	for _, s := range wb.Sheets {
		for _, cell := range s.Cells {
			if cell.Computed != nil {
				cell.Computed.At = time.Time{}
			}
		}
	}
	for key, cv := range wb.ComputedCache {
		cv.At = time.Time{}
		wb.ComputedCache[key] = cv
	}
	for i := range wb.Log {
		wb.Log[i].At = time.Time{}
	}
}

// computeDiff walks both workbooks and records sheet-level and cell-level
// differences. Sheets are matched by ID. Change lists come out in base
// sheet order, then row-major, so equal inputs diff identically.
func computeDiff(base, sim *gridcore.Workbook, provenance string) Diff {
	var d Diff
	if sim == nil {
		return d
	}
	for key, cv := range sim.ComputedCache {
		if cv.Provenance == provenance {
			if d.ComputedProvenance == nil {
				d.ComputedProvenance = make(map[string]string)
			}
			d.ComputedProvenance[key] = cv.Provenance
		}
	}
	if base == nil {
		for _, s := range sim.Sheets {
			d.SheetsAdded = append(d.SheetsAdded, s.Name)
			d.CellChanges = append(d.CellChanges, sheetCells(s, true)...)
		}
		d.TotalAffectedCells = len(d.CellChanges)
		return d
	}

	simByID := make(map[string]*gridcore.Sheet, len(sim.Sheets))
	for _, s := range sim.Sheets {
		simByID[s.ID] = s
	}
	baseByID := make(map[string]*gridcore.Sheet, len(base.Sheets))
	for _, s := range base.Sheets {
		baseByID[s.ID] = s
	}

	for _, bs := range base.Sheets {
		ss, ok := simByID[bs.ID]
		if !ok {
			d.SheetsRemoved = append(d.SheetsRemoved, bs.Name)
			d.CellChanges = append(d.CellChanges, sheetCells(bs, false)...)
			continue
		}
		if ss.Name != bs.Name {
			d.SheetsRenamed = append(d.SheetsRenamed, fmt.Sprintf("%s -> %s", bs.Name, ss.Name))
		}
		d.CellChanges = append(d.CellChanges, diffCells(bs, ss)...)
	}
	for _, ss := range sim.Sheets {
		if _, ok := baseByID[ss.ID]; !ok {
			d.SheetsAdded = append(d.SheetsAdded, ss.Name)
			d.CellChanges = append(d.CellChanges, sheetCells(ss, true)...)
		}
	}

	d.TotalAffectedCells = len(d.CellChanges)
	return d
}

// diffCells compares two sheets cell by cell over the union of their keys.
func diffCells(base, sim *gridcore.Sheet) []CellChange {
	keys := make(map[string]bool, len(base.Cells)+len(sim.Cells))
	for k := range base.Cells {
		keys[k] = true
	}
	for k := range sim.Cells {
		keys[k] = true
	}

	var changes []CellChange
	for k := range keys {
		b := base.Cells[k]
		s := sim.Cells[k]
		if cellsEqual(b, s) {
			continue
		}
		changes = append(changes, CellChange{Sheet: sim.Name, Ref: k, Before: b, After: s})
	}
	sortChanges(changes)
	return changes
}

// sheetCells lists a whole sheet's cells as creations (added=true) or
// removals.
func sheetCells(s *gridcore.Sheet, added bool) []CellChange {
	changes := make([]CellChange, 0, len(s.Cells))
	for k, cell := range s.Cells {
		c := CellChange{Sheet: s.Name, Ref: k}
		if added {
			c.After = cell
		} else {
			c.Before = cell
		}
		changes = append(changes, c)
	}
	sortChanges(changes)
	return changes
}

func sortChanges(changes []CellChange) {
	sort.Slice(changes, func(i, j int) bool {
		ai, erri := gridcore.ParseAddress(changes[i].Ref)
		aj, errj := gridcore.ParseAddress(changes[j].Ref)
		if erri != nil || errj != nil {
			return changes[i].Ref < changes[j].Ref
		}
		if ai.Row != aj.Row {
			return ai.Row < aj.Row
		}
		return ai.Col < aj.Col
	})
}

// cellsEqual compares cells ignoring computed-value timestamps and
// provenance tags; those always differ between a committed workbook and
// its simulation even when nothing meaningful changed.
func cellsEqual(a, b *gridcore.Cell) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Value != b.Value || a.DataType != b.DataType || a.Formula != b.Formula ||
		a.NumberFormat != b.NumberFormat {
		return false
	}
	if !stylesEqual(a.Style, b.Style) {
		return false
	}
	ac, bc := a.Computed, b.Computed
	if ac == nil || bc == nil {
		return ac == nil && bc == nil
	}
	return ac.Value == bc.Value && ac.Type == bc.Type
}

func stylesEqual(a, b *gridcore.Style) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Bold != b.Bold || a.Italic != b.Italic || a.Color != b.Color ||
		a.Background != b.Background || a.Align != b.Align || a.FontSize != b.FontSize {
		return false
	}
	ab, bb := a.Border, b.Border
	if ab == nil || bb == nil {
		return ab == nil && bb == nil
	}
	return *ab == *bb
}

// structuralChanges describes the layout-altering actions of a simulated
// batch, one entry per applied structural operation in log order.
func structuralChanges(actions []gridcore.Action) []string {
	var out []string
	for _, a := range actions {
		switch ops.OpType(a.Type) {
		case ops.OpAddSheet:
			out = append(out, fmt.Sprintf("%s %s", a.Type, actionSheetName(a)))
		case ops.OpRemoveSheet:
			out = append(out, fmt.Sprintf("%s %s", a.Type, actionSheetName(a)))
		case ops.OpRenameSheet:
			out = append(out, fmt.Sprintf("%s %s -> %s", a.Type, a.OldName, a.NewName))
		case ops.OpInsertRow, ops.OpInsertCol, ops.OpDeleteRow, ops.OpDeleteCol:
			out = append(out, fmt.Sprintf("%s %s", a.Type, actionSheetName(a)))
		}
	}
	return out
}

func actionSheetName(a gridcore.Action) string {
	if a.SheetAfter != nil {
		return a.SheetAfter.Name
	}
	if a.SheetBefore != nil {
		return a.SheetBefore.Name
	}
	return a.SheetID
}
