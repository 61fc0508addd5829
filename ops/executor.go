package ops

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/javajack/gridcore"
	"github.com/javajack/gridcore/circular"
)

// Mode gates mutation. In ModePlan every operation is rejected with
// CodePlanModeBlocked before validation, so a layer above can describe what
// would happen without touching the document.
type Mode string

const (
	ModeAct  Mode = "act"
	ModePlan Mode = "plan"
)

// ComputeFunc recomputes a workbook's formula cells and patches results
// back into it. It returns the number of cells updated and one message per
// formula-evaluation error (which are warnings, not failures).
type ComputeFunc func(wb *gridcore.Workbook, provenance string) (updated int, cellErrors []string, err error)

// Options configures an Apply call.
type Options struct {
	mode            Mode
	continueOnError bool
	provenance      string
	computer        ComputeFunc
	computeTimeout  time.Duration
	logger          *slog.Logger
}

// Option configures the executor.
type Option func(*Options)

// WithMode sets plan or act mode (default act).
func WithMode(m Mode) Option {
	return func(o *Options) { o.mode = m }
}

// WithContinueOnError keeps applying later operations after a rejection
// instead of halting the batch.
func WithContinueOnError(cont bool) Option {
	return func(o *Options) { o.continueOnError = cont }
}

// WithProvenance tags computed values produced by compute operations in
// this batch. The simulation layer uses this to distinguish preview data.
func WithProvenance(label string) Option {
	return func(o *Options) { o.provenance = label }
}

// WithComputeTimeout bounds the default computer's scan-plus-evaluation
// pass. Ignored when WithComputer substitutes a custom function.
func WithComputeTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.computeTimeout = d
		}
	}
}

// WithComputer overrides the formula recomputation function used by
// compute operations.
func WithComputer(fn ComputeFunc) Option {
	return func(o *Options) { o.computer = fn }
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.logger = l }
}

func buildOptions(opts []Option) *Options {
	o := &Options{
		mode:           ModeAct,
		computeTimeout: DefaultComputeTimeout,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.computer == nil {
		o.computer = newComputer(o.computeTimeout)
	}
	return o
}

// OpError describes one rejected operation.
type OpError struct {
	Op      OpType `json:"op"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Sheet   string `json:"sheet,omitempty"`
	Ref     string `json:"ref,omitempty"`
}

func (e OpError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", e.Op, e.Ref, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Code)
}

// Result is the outcome of applying a batch. Expected failures are data,
// never panics or returned Go errors: batch processing must be able to
// continue past individually rejected operations.
type Result struct {
	Success  bool               `json:"success"`
	Workbook *gridcore.Workbook `json:"-"`
	Errors   []OpError          `json:"errors,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Applied  int                `json:"applied"`
	Skipped  int                `json:"skipped"`
}

type executor struct {
	wb   *gridcore.Workbook
	opts *Options
	res  Result
}

// Apply validates and applies the operations in order against wb. Later
// operations observe the effects of earlier ones. Under the default
// stop-on-first-error mode a rejection halts the batch; already-applied
// operations stay applied — the caller owns whether to discard the result.
// wb may be nil when the batch begins with createWorkbook.
func Apply(wb *gridcore.Workbook, operations []Operation, opts ...Option) Result {
	x := &executor{wb: wb, opts: buildOptions(opts)}
	x.res.Success = true

	for i, op := range operations {
		if x.opts.mode == ModePlan {
			x.reject(OpError{Op: op.Type, Code: CodePlanModeBlocked,
				Message: "operation blocked: executor is in plan mode"})
			if !x.opts.continueOnError {
				x.res.Skipped += len(operations) - i - 1
				break
			}
			continue
		}

		action, opErr, warnings := x.apply(op)
		for _, w := range warnings {
			x.res.Warnings = append(x.res.Warnings, fmt.Sprintf("%s: %s", op.Type, w))
		}
		if opErr != nil {
			x.reject(*opErr)
			if !x.opts.continueOnError {
				x.res.Skipped += len(operations) - i - 1
				break
			}
			continue
		}

		x.res.Applied++
		if action != nil && x.wb != nil {
			x.wb.AppendAction(*action)
		}
		if x.wb != nil {
			x.wb.Touch()
		}
		x.opts.logger.Debug("operation applied", "type", string(op.Type))
	}

	x.res.Workbook = x.wb
	return x.res
}

func (x *executor) reject(e OpError) {
	x.res.Success = false
	x.res.Errors = append(x.res.Errors, e)
	x.opts.logger.Debug("operation rejected", "type", string(e.Op), "code", e.Code, "message", e.Message)
}

// apply dispatches a single validated operation. It returns the action to
// log (nil for no-ops and compute), the rejection if any, and warnings.
func (x *executor) apply(op Operation) (*gridcore.Action, *OpError, []string) {
	switch op.Type {
	case OpCreateWorkbook:
		return x.createWorkbook(op.CreateWorkbook)
	case OpAddSheet:
		return x.addSheet(op.AddSheet)
	case OpRemoveSheet:
		return x.removeSheet(op.RemoveSheet)
	case OpRenameSheet:
		return x.renameSheet(op.RenameSheet)
	case OpSetCells:
		return x.setCells(op.SetCells)
	case OpSetFormula:
		if op.SetFormula == nil || strings.TrimSpace(op.SetFormula.Formula) == "" {
			return nil, &OpError{Op: OpSetFormula, Code: CodeEmptyPayload, Message: "formula text is blank"}, nil
		}
		p := &SetCellsParams{
			Sheet: op.SetFormula.Sheet,
			Cells: map[string]CellInput{op.SetFormula.Cell: {Formula: op.SetFormula.Formula}},
		}
		a, e, w := x.setCells(p)
		if e != nil {
			e.Op = OpSetFormula
		}
		if a != nil {
			a.Type = string(OpSetFormula)
		}
		return a, e, w
	case OpCompute:
		return x.compute()
	case OpApplyFormat:
		return x.applyFormat(op.ApplyFormat)
	case OpMergeCells:
		return x.mergeCells(op.MergeCells)
	case OpDefineNamedRange:
		return x.defineNamedRange(op.DefineNamedRange)
	case OpInsertRow, OpInsertCol, OpDeleteRow, OpDeleteCol:
		return x.structural(op.Type, op.Structural)
	default:
		return nil, &OpError{Op: op.Type, Code: CodeUnknownOp, Message: "unknown operation type"}, nil
	}
}

func (x *executor) createWorkbook(p *CreateWorkbookParams) (*gridcore.Action, *OpError, []string) {
	if x.wb != nil {
		return nil, &OpError{Op: OpCreateWorkbook, Code: CodeWorkbookExists,
			Message: "a workbook already exists in this execution context"}, nil
	}
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil, &OpError{Op: OpCreateWorkbook, Code: CodeInvalidName, Message: "workbook name is blank"}, nil
	}

	var warnings []string
	var sheets []string
	seen := make(map[string]bool)
	for _, name := range p.InitialSheets {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, &OpError{Op: OpCreateWorkbook, Code: CodeDuplicateName,
				Message: fmt.Sprintf("duplicate initial sheet name %q", name), Ref: name}, nil
		}
		seen[name] = true
		sheets = append(sheets, name)
	}
	if len(p.InitialSheets) > 0 && len(sheets) == 0 {
		warnings = append(warnings, "all initial sheet names were blank; created default sheet")
	}

	x.wb = gridcore.NewWorkbook("wb-1", p.Name, sheets...)
	return &gridcore.Action{Type: string(OpCreateWorkbook), At: x.wb.Meta.CreatedAt}, nil, warnings
}

func (x *executor) addSheet(p *AddSheetParams) (*gridcore.Action, *OpError, []string) {
	if x.wb == nil {
		return nil, &OpError{Op: OpAddSheet, Code: CodeNoWorkbook, Message: "no workbook exists"}, nil
	}
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil, &OpError{Op: OpAddSheet, Code: CodeInvalidName, Message: "sheet name is blank"}, nil
	}

	pos := len(x.wb.Sheets)
	if p.Position != nil {
		pos = *p.Position
		if pos < 0 || pos > len(x.wb.Sheets) {
			return nil, &OpError{Op: OpAddSheet, Code: CodeOutOfBounds,
				Message: fmt.Sprintf("position %d out of bounds (0..%d)", pos, len(x.wb.Sheets))}, nil
		}
	}

	var warnings []string
	name := x.wb.UniqueSheetName(strings.TrimSpace(p.Name))
	if name != strings.TrimSpace(p.Name) {
		warnings = append(warnings, fmt.Sprintf("sheet name %q already in use; added as %q", p.Name, name))
	}

	id := p.ID
	if id == "" {
		id = x.wb.NextSheetID()
	} else if x.wb.SheetByID(id) != nil {
		return nil, &OpError{Op: OpAddSheet, Code: CodeDuplicateName,
			Message: fmt.Sprintf("sheet id %q already in use", id), Ref: id}, nil
	}

	s := gridcore.NewSheet(id, name)
	x.wb.InsertSheetAt(s, pos)

	snap, err := gridcore.CloneSheet(s)
	if err != nil {
		return nil, &OpError{Op: OpAddSheet, Code: CodeComputeFailed, Message: err.Error()}, nil
	}
	return &gridcore.Action{
		Type: string(OpAddSheet), At: x.wb.Meta.ModifiedAt, Undoable: true,
		SheetID: id, SheetAfter: snap, SheetPos: pos,
	}, nil, warnings
}

func (x *executor) removeSheet(p *RemoveSheetParams) (*gridcore.Action, *OpError, []string) {
	if x.wb == nil {
		return nil, &OpError{Op: OpRemoveSheet, Code: CodeNoWorkbook, Message: "no workbook exists"}, nil
	}
	if p == nil || x.wb.SheetByID(p.SheetID) == nil {
		return nil, &OpError{Op: OpRemoveSheet, Code: CodeSheetNotFound,
			Message: "sheet not found", Ref: paramSheetID(p)}, nil
	}
	if len(x.wb.Sheets) == 1 {
		return nil, &OpError{Op: OpRemoveSheet, Code: CodeLastSheet,
			Message: "cannot remove the last sheet", Ref: p.SheetID}, nil
	}

	pos := x.wb.SheetIndex(p.SheetID)
	removed := x.wb.RemoveSheetAt(pos)
	x.wb.InvalidateSheetCache(removed.Name)

	snap, err := gridcore.CloneSheet(removed)
	if err != nil {
		return nil, &OpError{Op: OpRemoveSheet, Code: CodeComputeFailed, Message: err.Error()}, nil
	}
	return &gridcore.Action{
		Type: string(OpRemoveSheet), At: x.wb.Meta.ModifiedAt, Undoable: true,
		SheetID: p.SheetID, SheetBefore: snap, SheetPos: pos,
	}, nil, nil
}

func paramSheetID(p *RemoveSheetParams) string {
	if p == nil {
		return ""
	}
	return p.SheetID
}

func (x *executor) renameSheet(p *RenameSheetParams) (*gridcore.Action, *OpError, []string) {
	if x.wb == nil {
		return nil, &OpError{Op: OpRenameSheet, Code: CodeNoWorkbook, Message: "no workbook exists"}, nil
	}
	if p == nil {
		return nil, &OpError{Op: OpRenameSheet, Code: CodeEmptyPayload, Message: "missing params"}, nil
	}
	s := x.wb.SheetByID(p.SheetID)
	if s == nil {
		return nil, &OpError{Op: OpRenameSheet, Code: CodeSheetNotFound, Message: "sheet not found", Ref: p.SheetID}, nil
	}
	newName := strings.TrimSpace(p.NewName)
	if newName == "" {
		return nil, &OpError{Op: OpRenameSheet, Code: CodeInvalidName, Message: "sheet name is blank"}, nil
	}
	if newName == s.Name {
		return nil, nil, nil // renaming to the current name is a no-op success
	}
	if x.wb.SheetByName(newName) != nil {
		return nil, &OpError{Op: OpRenameSheet, Code: CodeDuplicateName,
			Message: fmt.Sprintf("sheet name %q already in use", newName), Ref: newName}, nil
	}

	oldName := s.Name
	s.Name = newName
	x.wb.RenameSheetRefs(oldName, newName)
	return &gridcore.Action{
		Type: string(OpRenameSheet), At: x.wb.Meta.ModifiedAt, Undoable: true,
		SheetID: s.ID, OldName: oldName, NewName: newName,
	}, nil, nil
}

func (x *executor) setCells(p *SetCellsParams) (*gridcore.Action, *OpError, []string) {
	if x.wb == nil {
		return nil, &OpError{Op: OpSetCells, Code: CodeNoWorkbook, Message: "no workbook exists"}, nil
	}
	if p == nil || len(p.Cells) == 0 {
		return nil, &OpError{Op: OpSetCells, Code: CodeEmptyPayload, Message: "cell map is empty"}, nil
	}
	s := x.resolveSheet(p.Sheet)
	if s == nil {
		return nil, &OpError{Op: OpSetCells, Code: CodeSheetNotFound, Message: "sheet not found", Ref: p.Sheet}, nil
	}

	// Validate every address before mutating anything.
	addrs := make(map[string]gridcore.Addr, len(p.Cells))
	for raw := range p.Cells {
		a, err := gridcore.ParseAddress(raw)
		if err != nil {
			return nil, &OpError{Op: OpSetCells, Code: CodeInvalidAddress,
				Message: err.Error(), Sheet: s.Name, Ref: raw}, nil
		}
		addrs[raw] = a
	}

	before := make(map[string]*gridcore.Cell, len(p.Cells))
	after := make(map[string]*gridcore.Cell, len(p.Cells))
	for raw, input := range p.Cells {
		a := addrs[raw]
		key := a.String()

		prev := s.CellAt(a)
		if prev != nil {
			snap, err := gridcore.CloneCells(map[string]*gridcore.Cell{key: prev})
			if err != nil {
				return nil, &OpError{Op: OpSetCells, Code: CodeComputeFailed, Message: err.Error()}, nil
			}
			before[key] = snap[key]
		} else {
			before[key] = nil
		}

		next := buildCell(input, prev)
		s.SetCell(a, next)
		delete(x.wb.ComputedCache, gridcore.Key(s.Name, a))

		if next.IsEmpty() {
			after[key] = nil
			continue
		}
		snap, err := gridcore.CloneCells(map[string]*gridcore.Cell{key: next})
		if err != nil {
			return nil, &OpError{Op: OpSetCells, Code: CodeComputeFailed, Message: err.Error()}, nil
		}
		after[key] = snap[key]
	}

	return &gridcore.Action{
		Type: string(OpSetCells), At: x.wb.Meta.ModifiedAt, Undoable: true,
		SheetID: s.ID, CellsBefore: before, CellsAfter: after,
	}, nil, nil
}

// buildCell turns a CellInput into a Cell. Formula writes keep the prior
// cell's presentation state unless the input overrides it; raw writes
// replace the whole cell.
func buildCell(input CellInput, prev *gridcore.Cell) *gridcore.Cell {
	if strings.TrimSpace(input.Formula) != "" {
		c := &gridcore.Cell{Formula: gridcore.NormalizeFormula(input.Formula)}
		if prev != nil {
			c.Style = prev.Style
			c.NumberFormat = prev.NumberFormat
		}
		if input.Style != nil {
			c.Style = input.Style
		}
		if input.NumberFormat != "" {
			c.NumberFormat = input.NumberFormat
		}
		return c
	}

	c := &gridcore.Cell{
		Value:        input.Value,
		DataType:     input.DataType,
		Style:        input.Style,
		NumberFormat: input.NumberFormat,
	}
	if c.DataType == "" && c.Value != nil {
		c.DataType = inferDataType(c.Value)
	}
	return c
}

func inferDataType(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case string:
		return "string"
	case int, int32, int64, float32, float64:
		return "number"
	default:
		return "string"
	}
}

func (x *executor) compute() (*gridcore.Action, *OpError, []string) {
	if x.wb == nil || len(x.wb.Sheets) == 0 {
		return nil, &OpError{Op: OpCompute, Code: CodeNoWorkbook, Message: "no workbook or zero sheets"}, nil
	}

	updated, cellErrors, err := x.opts.computer(x.wb, x.opts.provenance)
	if err != nil {
		code := CodeComputeFailed
		switch {
		case errors.Is(err, circular.ErrComputeTimeout):
			code = CodeComputeTimeout
		case errors.Is(err, circular.ErrCircularReferences):
			code = CodeCircular
		}
		return nil, &OpError{Op: OpCompute, Code: code, Message: err.Error()}, nil
	}

	warnings := make([]string, 0, len(cellErrors))
	warnings = append(warnings, cellErrors...)
	x.opts.logger.Debug("recompute finished", "updatedCells", updated, "errors", len(cellErrors))
	// Computed values are derived state: compute is logged nowhere and is
	// not part of the undo history.
	return nil, nil, warnings
}

func (x *executor) applyFormat(p *ApplyFormatParams) (*gridcore.Action, *OpError, []string) {
	if x.wb == nil {
		return nil, &OpError{Op: OpApplyFormat, Code: CodeNoWorkbook, Message: "no workbook exists"}, nil
	}
	if p == nil || p.Format.Empty() {
		return nil, &OpError{Op: OpApplyFormat, Code: CodeEmptyPayload, Message: "format payload is empty"}, nil
	}
	s := x.resolveSheet(p.Sheet)
	if s == nil {
		return nil, &OpError{Op: OpApplyFormat, Code: CodeSheetNotFound, Message: "sheet not found", Ref: p.Sheet}, nil
	}
	rng, err := gridcore.ParseRange(p.Range)
	if err != nil {
		return nil, &OpError{Op: OpApplyFormat, Code: CodeInvalidRange,
			Message: err.Error(), Sheet: s.Name, Ref: p.Range}, nil
	}

	before := make(map[string]*gridcore.Cell)
	after := make(map[string]*gridcore.Cell)
	for _, a := range rng.Expand() {
		key := a.String()
		prev := s.CellAt(a)
		if prev != nil {
			snap, cerr := gridcore.CloneCells(map[string]*gridcore.Cell{key: prev})
			if cerr != nil {
				return nil, &OpError{Op: OpApplyFormat, Code: CodeComputeFailed, Message: cerr.Error()}, nil
			}
			before[key] = snap[key]
		} else {
			before[key] = nil
			prev = &gridcore.Cell{}
		}

		next := *prev
		if p.Format.Style != nil {
			base := gridcore.Style{}
			if prev.Style != nil {
				base = *prev.Style
			}
			merged := base.Merge(*p.Format.Style)
			next.Style = &merged
		}
		if p.Format.NumberFormat != "" {
			next.NumberFormat = p.Format.NumberFormat
		}
		s.SetCell(a, &next)

		snap, cerr := gridcore.CloneCells(map[string]*gridcore.Cell{key: &next})
		if cerr != nil {
			return nil, &OpError{Op: OpApplyFormat, Code: CodeComputeFailed, Message: cerr.Error()}, nil
		}
		after[key] = snap[key]
	}

	return &gridcore.Action{
		Type: string(OpApplyFormat), At: x.wb.Meta.ModifiedAt, Undoable: true,
		SheetID: s.ID, CellsBefore: before, CellsAfter: after,
	}, nil, nil
}

func (x *executor) mergeCells(p *MergeCellsParams) (*gridcore.Action, *OpError, []string) {
	if x.wb == nil {
		return nil, &OpError{Op: OpMergeCells, Code: CodeNoWorkbook, Message: "no workbook exists"}, nil
	}
	if p == nil {
		return nil, &OpError{Op: OpMergeCells, Code: CodeEmptyPayload, Message: "missing params"}, nil
	}
	s := x.resolveSheet(p.Sheet)
	if s == nil {
		return nil, &OpError{Op: OpMergeCells, Code: CodeSheetNotFound, Message: "sheet not found", Ref: p.Sheet}, nil
	}
	rng, err := gridcore.ParseRange(p.Range)
	if err != nil {
		return nil, &OpError{Op: OpMergeCells, Code: CodeInvalidRange,
			Message: err.Error(), Sheet: s.Name, Ref: p.Range}, nil
	}
	if rng.Size() < 2 {
		return nil, &OpError{Op: OpMergeCells, Code: CodeMergeTooSmall,
			Message: "merged range must span at least two cells", Sheet: s.Name, Ref: p.Range}, nil
	}
	if s.HasMerge(rng) {
		return nil, nil, []string{fmt.Sprintf("range %s is already merged", rng)}
	}
	if existing, overlap := s.MergeOverlap(rng); overlap {
		return nil, &OpError{Op: OpMergeCells, Code: CodeMergeOverlap,
			Message: fmt.Sprintf("range overlaps existing merge %s", existing), Sheet: s.Name, Ref: p.Range}, nil
	}

	mergesBefore := append([]string(nil), s.Merges...)
	s.Merges = append(s.Merges, rng.Start.String()+":"+rng.End.String())
	return &gridcore.Action{
		Type: string(OpMergeCells), At: x.wb.Meta.ModifiedAt, Undoable: true,
		SheetID: s.ID, MergesChanged: true,
		MergesBefore: mergesBefore,
		MergesAfter:  append([]string(nil), s.Merges...),
	}, nil, nil
}

func (x *executor) defineNamedRange(p *DefineNamedRangeParams) (*gridcore.Action, *OpError, []string) {
	if x.wb == nil {
		return nil, &OpError{Op: OpDefineNamedRange, Code: CodeNoWorkbook, Message: "no workbook exists"}, nil
	}
	if p == nil {
		return nil, &OpError{Op: OpDefineNamedRange, Code: CodeEmptyPayload, Message: "missing params"}, nil
	}
	if err := gridcore.ValidateName(p.Name); err != nil {
		return nil, &OpError{Op: OpDefineNamedRange, Code: CodeInvalidName, Message: err.Error(), Ref: p.Name}, nil
	}
	s := x.resolveSheet(p.Sheet)
	if s == nil {
		return nil, &OpError{Op: OpDefineNamedRange, Code: CodeSheetNotFound, Message: "sheet not found", Ref: p.Sheet}, nil
	}
	rng, err := gridcore.ParseRange(p.Range)
	if err != nil {
		return nil, &OpError{Op: OpDefineNamedRange, Code: CodeInvalidRange,
			Message: err.Error(), Sheet: s.Name, Ref: p.Range}, nil
	}
	rng.Sheet = s.Name

	scope := p.Scope
	if scope == "" || scope == "workbook" {
		if _, dup := x.wb.NamedRanges[p.Name]; dup {
			return nil, &OpError{Op: OpDefineNamedRange, Code: CodeDuplicateName,
				Message: fmt.Sprintf("named range %q already defined at workbook scope", p.Name), Ref: p.Name}, nil
		}
		namedBefore := cloneStringMap(x.wb.NamedRanges)
		if x.wb.NamedRanges == nil {
			x.wb.NamedRanges = make(map[string]string)
		}
		x.wb.NamedRanges[p.Name] = rng.Absolute()
		return &gridcore.Action{
			Type: string(OpDefineNamedRange), At: x.wb.Meta.ModifiedAt, Undoable: true,
			NamedScope: "workbook", NamedChanged: true,
			NamedBefore: namedBefore, NamedAfter: cloneStringMap(x.wb.NamedRanges),
		}, nil, nil
	}

	if _, dup := s.NamedRanges[p.Name]; dup {
		return nil, &OpError{Op: OpDefineNamedRange, Code: CodeDuplicateName,
			Message: fmt.Sprintf("named range %q already defined on sheet %q", p.Name, s.Name), Ref: p.Name}, nil
	}
	namedBefore := cloneStringMap(s.NamedRanges)
	if s.NamedRanges == nil {
		s.NamedRanges = make(map[string]string)
	}
	s.NamedRanges[p.Name] = rng.Absolute()
	return &gridcore.Action{
		Type: string(OpDefineNamedRange), At: x.wb.Meta.ModifiedAt, Undoable: true,
		SheetID: s.ID, NamedScope: s.ID, NamedChanged: true,
		NamedBefore: namedBefore, NamedAfter: cloneStringMap(s.NamedRanges),
	}, nil, nil
}

func (x *executor) structural(t OpType, p *StructuralParams) (*gridcore.Action, *OpError, []string) {
	if x.wb == nil {
		return nil, &OpError{Op: t, Code: CodeNoWorkbook, Message: "no workbook exists"}, nil
	}
	if p == nil {
		return nil, &OpError{Op: t, Code: CodeEmptyPayload, Message: "missing params"}, nil
	}
	s := x.wb.SheetByID(p.SheetID)
	if s == nil {
		return nil, &OpError{Op: t, Code: CodeSheetNotFound, Message: "sheet not found", Ref: p.SheetID}, nil
	}
	if p.Index < 1 {
		return nil, &OpError{Op: t, Code: CodeOutOfBounds,
			Message: fmt.Sprintf("index %d out of bounds (must be >= 1)", p.Index)}, nil
	}
	count := p.Count
	if count == 0 {
		count = 1
	}
	if count < 1 {
		return nil, &OpError{Op: t, Code: CodeOutOfBounds,
			Message: fmt.Sprintf("count %d out of bounds (must be >= 1)", count)}, nil
	}

	sheetBefore, err := gridcore.CloneSheet(s)
	if err != nil {
		return nil, &OpError{Op: t, Code: CodeComputeFailed, Message: err.Error()}, nil
	}
	namedBefore := cloneStringMap(x.wb.NamedRanges)

	switch t {
	case OpInsertRow:
		_, err = x.wb.InsertRows(p.SheetID, p.Index, count)
	case OpInsertCol:
		_, err = x.wb.InsertCols(p.SheetID, p.Index, count)
	case OpDeleteRow:
		_, err = x.wb.DeleteRows(p.SheetID, p.Index, count)
	case OpDeleteCol:
		_, err = x.wb.DeleteCols(p.SheetID, p.Index, count)
	}
	if err != nil {
		return nil, &OpError{Op: t, Code: CodeSheetNotFound, Message: err.Error(), Ref: p.SheetID}, nil
	}

	sheetAfter, err := gridcore.CloneSheet(s)
	if err != nil {
		return nil, &OpError{Op: t, Code: CodeComputeFailed, Message: err.Error()}, nil
	}
	return &gridcore.Action{
		Type: string(t), At: x.wb.Meta.ModifiedAt, Undoable: true,
		SheetID: s.ID, SheetBefore: sheetBefore, SheetAfter: sheetAfter,
		SheetPos:   x.wb.SheetIndex(s.ID),
		NamedScope: "workbook", NamedChanged: true,
		NamedBefore: namedBefore, NamedAfter: cloneStringMap(x.wb.NamedRanges),
	}, nil, nil
}

// resolveSheet accepts either a display name or a sheet id.
func (x *executor) resolveSheet(ref string) *gridcore.Sheet {
	if s := x.wb.SheetByName(ref); s != nil {
		return s
	}
	return x.wb.SheetByID(ref)
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
