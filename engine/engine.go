// Package engine bridges the workbook document model to a spreadsheet
// formula evaluator. The evaluator is treated as a black box: the model is
// hydrated into it, formulas are evaluated there, and results are patched
// back into the model's cells and computed-value cache.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/javajack/gridcore"
)

// ErrDisposed is returned when a hydration is used after Dispose.
var ErrDisposed = errors.New("engine: hydration disposed")

// Options configures hydration and recomputation.
type Options struct {
	provenance string
	logger     *slog.Logger
}

type Option func(*Options)

// WithProvenance tags every computed value written during Recompute.
func WithProvenance(label string) Option {
	return func(o *Options) { o.provenance = label }
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.logger = l }
}

func buildOptions(opts []Option) *Options {
	o := &Options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CellError is one formula-evaluation failure. Evaluation failures are
// per-cell data, never a failed recompute: the rest of the workbook still
// gets fresh values.
type CellError struct {
	Sheet   string `json:"sheet"`
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

func (e CellError) String() string {
	return fmt.Sprintf("%s!%s: %s", e.Sheet, e.Ref, e.Message)
}

// Result summarizes one recomputation pass.
type Result struct {
	UpdatedCells int           `json:"updatedCells"`
	Errors       []CellError   `json:"errors,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Hydration is a live evaluator instance loaded with one workbook's
// content. It holds resources until Dispose is called. The evaluator is
// name-addressed, so the model's sheet names and A1 addresses serve
// verbatim as its identifiers; no translation table is kept.
type Hydration struct {
	file     *excelize.File
	disposed bool
}

// Hydrate loads the workbook's sheets, cell values, formulas, merges, and
// named ranges into a fresh evaluator instance.
func Hydrate(wb *gridcore.Workbook) (*Hydration, error) {
	if wb == nil || len(wb.Sheets) == 0 {
		return nil, errors.New("engine: workbook has no sheets")
	}

	f := excelize.NewFile()
	for i, s := range wb.Sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return nil, fmt.Errorf("engine: rename sheet %q: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, fmt.Errorf("engine: add sheet %q: %w", s.Name, err)
		}
	}

	h := &Hydration{file: f}
	for _, s := range wb.Sheets {
		if err := h.loadSheet(s); err != nil {
			h.Dispose()
			return nil, err
		}
	}

	for name, ref := range wb.NamedRanges {
		err := f.SetDefinedName(&excelize.DefinedName{Name: name, RefersTo: ref})
		if err != nil {
			h.Dispose()
			return nil, fmt.Errorf("engine: define name %q: %w", name, err)
		}
	}
	for _, s := range wb.Sheets {
		for name, ref := range s.NamedRanges {
			err := f.SetDefinedName(&excelize.DefinedName{Name: name, RefersTo: ref, Scope: s.Name})
			if err != nil {
				h.Dispose()
				return nil, fmt.Errorf("engine: define name %q on %q: %w", name, s.Name, err)
			}
		}
	}
	return h, nil
}

func (h *Hydration) loadSheet(s *gridcore.Sheet) error {
	for key, cell := range s.Cells {
		if err := h.loadCell(s.Name, key, cell); err != nil {
			return err
		}
	}
	for _, m := range s.Merges {
		start, end, ok := strings.Cut(m, ":")
		if !ok {
			continue
		}
		if err := h.file.MergeCell(s.Name, start, end); err != nil {
			return fmt.Errorf("engine: merge %s on %q: %w", m, s.Name, err)
		}
	}
	return nil
}

func (h *Hydration) loadCell(sheet, ref string, cell *gridcore.Cell) error {
	if cell.IsFormula() {
		formula := strings.TrimPrefix(cell.Formula, "=")
		if err := h.file.SetCellFormula(sheet, ref, formula); err != nil {
			return fmt.Errorf("engine: set formula %s!%s: %w", sheet, ref, err)
		}
		return nil
	}
	if cell.Value == nil {
		return nil
	}
	if err := h.file.SetCellValue(sheet, ref, cell.Value); err != nil {
		return fmt.Errorf("engine: set value %s!%s: %w", sheet, ref, err)
	}
	return nil
}

// UpdateCells pushes a batch of changed cells into the live evaluator
// without a full rehydration. A nil cell clears the evaluator-side cell.
func (h *Hydration) UpdateCells(sheet string, cells map[string]*gridcore.Cell) error {
	if h.disposed {
		return ErrDisposed
	}
	for ref, cell := range cells {
		if cell == nil {
			if err := h.file.SetCellValue(sheet, ref, nil); err != nil {
				return fmt.Errorf("engine: clear cell %s!%s: %w", sheet, ref, err)
			}
			continue
		}
		if err := h.loadCell(sheet, ref, cell); err != nil {
			return err
		}
	}
	return nil
}

// Recompute evaluates every formula cell and patches the result into the
// cell's computed snapshot and the workbook's computed-value cache. Cells
// are visited in sheet order, then row-major within a sheet, so repeated
// runs over equal workbooks produce identical results.
func (h *Hydration) Recompute(wb *gridcore.Workbook, opts ...Option) (*Result, error) {
	if h.disposed {
		return nil, ErrDisposed
	}
	o := buildOptions(opts)
	start := time.Now()
	now := start.UTC()

	res := &Result{}
	for _, s := range wb.Sheets {
		for _, ref := range formulaRefs(s) {
			cell := s.Cells[ref]
			raw, err := h.file.CalcCellValue(s.Name, ref)

			computed := classify(raw, now, o.provenance)
			if err != nil {
				computed.Type = gridcore.ComputedError
				if raw == "" || !strings.HasPrefix(raw, "#") {
					computed.Value = "#VALUE!"
				}
				res.Errors = append(res.Errors, CellError{Sheet: s.Name, Ref: ref, Message: err.Error()})
			} else if computed.Type == gridcore.ComputedError {
				res.Errors = append(res.Errors, CellError{Sheet: s.Name, Ref: ref, Message: raw})
			}

			cell.Computed = &computed
			if wb.ComputedCache == nil {
				wb.ComputedCache = make(map[string]gridcore.CachedValue)
			}
			wb.ComputedCache[s.Name+"!"+ref] = gridcore.CachedValue{
				Value: computed.Value, Type: computed.Type, At: now, Provenance: o.provenance,
			}
			res.UpdatedCells++
		}
	}

	res.Elapsed = time.Since(start)
	o.logger.Debug("recompute finished",
		"updatedCells", res.UpdatedCells, "errors", len(res.Errors), "elapsed", res.Elapsed)
	return res, nil
}

// Dispose releases the evaluator instance. Safe to call more than once.
func (h *Hydration) Dispose() error {
	if h.disposed {
		return nil
	}
	h.disposed = true
	if err := h.file.Close(); err != nil {
		return fmt.Errorf("engine: dispose: %w", err)
	}
	return nil
}

// Compute is the one-shot convenience path: hydrate, recompute, dispose.
func Compute(wb *gridcore.Workbook, opts ...Option) (*Result, error) {
	h, err := Hydrate(wb)
	if err != nil {
		return nil, err
	}
	defer h.Dispose()
	return h.Recompute(wb, opts...)
}

// formulaRefs lists a sheet's formula-cell addresses in row-major order.
func formulaRefs(s *gridcore.Sheet) []string {
	type entry struct {
		ref string
		a   gridcore.Addr
	}
	entries := make([]entry, 0, len(s.Cells))
	for ref, cell := range s.Cells {
		if !cell.IsFormula() {
			continue
		}
		a, err := gridcore.ParseAddress(ref)
		if err != nil {
			continue
		}
		entries = append(entries, entry{ref: ref, a: a})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].a.Row != entries[j].a.Row {
			return entries[i].a.Row < entries[j].a.Row
		}
		return entries[i].a.Col < entries[j].a.Col
	})
	refs := make([]string, len(entries))
	for i, e := range entries {
		refs[i] = e.ref
	}
	return refs
}

// classify maps an evaluator result string onto a typed computed value:
// "#..." error literals, booleans, numbers, then plain text.
func classify(raw string, at time.Time, provenance string) gridcore.Computed {
	c := gridcore.Computed{Value: raw, Type: gridcore.ComputedString, At: at, Provenance: provenance}
	switch {
	case strings.HasPrefix(raw, "#"):
		c.Type = gridcore.ComputedError
	case raw == "TRUE":
		c.Value = true
		c.Type = gridcore.ComputedBoolean
	case raw == "FALSE":
		c.Value = false
		c.Type = gridcore.ComputedBoolean
	default:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			c.Value = n
			c.Type = gridcore.ComputedNumber
		}
	}
	return c
}
