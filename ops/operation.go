// Package ops applies validated, reversible mutation operations to a
// workbook, maintaining the action log that drives undo/redo.
package ops

import (
	"encoding/json"
	"fmt"

	"github.com/javajack/gridcore"
)

// OpType discriminates the operation tagged union.
type OpType string

const (
	OpCreateWorkbook   OpType = "createWorkbook"
	OpAddSheet         OpType = "addSheet"
	OpRemoveSheet      OpType = "removeSheet"
	OpRenameSheet      OpType = "renameSheet"
	OpSetCells         OpType = "setCells"
	OpSetFormula       OpType = "setFormula"
	OpCompute          OpType = "compute"
	OpApplyFormat      OpType = "applyFormat"
	OpMergeCells       OpType = "mergeCells"
	OpDefineNamedRange OpType = "defineNamedRange"
	OpInsertRow        OpType = "insertRow"
	OpInsertCol        OpType = "insertCol"
	OpDeleteRow        OpType = "deleteRow"
	OpDeleteCol        OpType = "deleteCol"
)

// Stable error codes surfaced in OpError. UIs rely on these for
// special-cased messaging, so they never change meaning.
const (
	CodePlanModeBlocked = "PLAN_MODE_BLOCKED"
	CodeNoWorkbook      = "NO_WORKBOOK"
	CodeWorkbookExists  = "WORKBOOK_EXISTS"
	CodeSheetNotFound   = "SHEET_NOT_FOUND"
	CodeLastSheet       = "LAST_SHEET"
	CodeDuplicateName   = "DUPLICATE_NAME"
	CodeInvalidName     = "INVALID_NAME"
	CodeInvalidAddress  = "INVALID_ADDRESS"
	CodeInvalidRange    = "INVALID_RANGE"
	CodeEmptyPayload    = "EMPTY_PAYLOAD"
	CodeOutOfBounds     = "OUT_OF_BOUNDS"
	CodeMergeOverlap    = "MERGE_OVERLAP"
	CodeMergeTooSmall   = "MERGE_TOO_SMALL"
	CodeComputeFailed   = "COMPUTE_FAILED"
	CodeComputeTimeout  = "COMPUTE_TIMEOUT"
	CodeCircular        = "CIRCULAR_REFERENCE"
	CodeUnknownOp       = "UNKNOWN_OPERATION"
)

// CellInput is the write payload for one cell in setCells. Formula and
// Value are mutually exclusive; a formula without a leading "=" is
// normalized on apply.
type CellInput struct {
	Value        any             `json:"value,omitempty"`
	DataType     string          `json:"dataType,omitempty"`
	Formula      string          `json:"formula,omitempty"`
	Style        *gridcore.Style `json:"style,omitempty"`
	NumberFormat string          `json:"numberFormat,omitempty"`
}

// Format is the applyFormat payload, shallow-merged into each target cell.
type Format struct {
	Style        *gridcore.Style `json:"style,omitempty"`
	NumberFormat string          `json:"numberFormat,omitempty"`
}

// Empty reports whether the payload carries nothing to apply.
func (f Format) Empty() bool {
	return f.Style == nil && f.NumberFormat == ""
}

type CreateWorkbookParams struct {
	Name          string   `json:"name"`
	InitialSheets []string `json:"initialSheets,omitempty"`
}

type AddSheetParams struct {
	Name     string `json:"name"`
	Position *int   `json:"position,omitempty"`
	ID       string `json:"id,omitempty"`
}

type RemoveSheetParams struct {
	SheetID string `json:"sheetId"`
}

type RenameSheetParams struct {
	SheetID string `json:"sheetId"`
	NewName string `json:"newName"`
}

type SetCellsParams struct {
	Sheet string               `json:"sheet"`
	Cells map[string]CellInput `json:"cells"`
}

type SetFormulaParams struct {
	Sheet   string `json:"sheet"`
	Cell    string `json:"cell"`
	Formula string `json:"formula"`
}

type ComputeParams struct{}

type ApplyFormatParams struct {
	Sheet  string `json:"sheet"`
	Range  string `json:"range"`
	Format Format `json:"format"`
}

type MergeCellsParams struct {
	Sheet string `json:"sheet"`
	Range string `json:"range"`
}

type DefineNamedRangeParams struct {
	Name  string `json:"name"`
	Sheet string `json:"sheet"`
	Range string `json:"range"`
	Scope string `json:"scope,omitempty"` // "workbook" (default) or "sheet"
}

type StructuralParams struct {
	SheetID string `json:"sheetId"`
	Index   int    `json:"index"` // 1-based row or column position
	Count   int    `json:"count"`
}

// Operation is one immutable instruction: a type discriminant plus exactly
// one populated params payload. Operations are pure data; the Executor
// carries all behavior.
type Operation struct {
	Type OpType `json:"type"`

	CreateWorkbook   *CreateWorkbookParams   `json:"-"`
	AddSheet         *AddSheetParams         `json:"-"`
	RemoveSheet      *RemoveSheetParams      `json:"-"`
	RenameSheet      *RenameSheetParams      `json:"-"`
	SetCells         *SetCellsParams         `json:"-"`
	SetFormula       *SetFormulaParams       `json:"-"`
	ApplyFormat      *ApplyFormatParams      `json:"-"`
	MergeCells       *MergeCellsParams       `json:"-"`
	DefineNamedRange *DefineNamedRangeParams `json:"-"`
	Structural       *StructuralParams       `json:"-"`
}

type operationJSON struct {
	Type   OpType          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

// MarshalJSON encodes the operation as {"type": ..., "params": {...}}.
func (op Operation) MarshalJSON() ([]byte, error) {
	var params any
	switch op.Type {
	case OpCreateWorkbook:
		params = op.CreateWorkbook
	case OpAddSheet:
		params = op.AddSheet
	case OpRemoveSheet:
		params = op.RemoveSheet
	case OpRenameSheet:
		params = op.RenameSheet
	case OpSetCells:
		params = op.SetCells
	case OpSetFormula:
		params = op.SetFormula
	case OpCompute:
		return json.Marshal(operationJSON{Type: op.Type})
	case OpApplyFormat:
		params = op.ApplyFormat
	case OpMergeCells:
		params = op.MergeCells
	case OpDefineNamedRange:
		params = op.DefineNamedRange
	case OpInsertRow, OpInsertCol, OpDeleteRow, OpDeleteCol:
		params = op.Structural
	default:
		return nil, fmt.Errorf("marshal operation: unknown type %q", op.Type)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(operationJSON{Type: op.Type, Params: raw})
}

// UnmarshalJSON decodes {"type": ..., "params": {...}} into the matching
// payload field.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var oj operationJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		return err
	}
	op.Type = oj.Type

	var dst any
	switch oj.Type {
	case OpCreateWorkbook:
		op.CreateWorkbook = &CreateWorkbookParams{}
		dst = op.CreateWorkbook
	case OpAddSheet:
		op.AddSheet = &AddSheetParams{}
		dst = op.AddSheet
	case OpRemoveSheet:
		op.RemoveSheet = &RemoveSheetParams{}
		dst = op.RemoveSheet
	case OpRenameSheet:
		op.RenameSheet = &RenameSheetParams{}
		dst = op.RenameSheet
	case OpSetCells:
		op.SetCells = &SetCellsParams{}
		dst = op.SetCells
	case OpSetFormula:
		op.SetFormula = &SetFormulaParams{}
		dst = op.SetFormula
	case OpCompute:
		return nil
	case OpApplyFormat:
		op.ApplyFormat = &ApplyFormatParams{}
		dst = op.ApplyFormat
	case OpMergeCells:
		op.MergeCells = &MergeCellsParams{}
		dst = op.MergeCells
	case OpDefineNamedRange:
		op.DefineNamedRange = &DefineNamedRangeParams{}
		dst = op.DefineNamedRange
	case OpInsertRow, OpInsertCol, OpDeleteRow, OpDeleteCol:
		op.Structural = &StructuralParams{}
		dst = op.Structural
	default:
		return fmt.Errorf("unmarshal operation: unknown type %q", oj.Type)
	}
	if len(oj.Params) == 0 {
		return fmt.Errorf("operation %q: missing params", oj.Type)
	}
	return json.Unmarshal(oj.Params, dst)
}

// Constructors keep call sites terse and make the populated-payload
// invariant hard to break.

func NewCreateWorkbook(name string, initialSheets ...string) Operation {
	return Operation{Type: OpCreateWorkbook, CreateWorkbook: &CreateWorkbookParams{Name: name, InitialSheets: initialSheets}}
}

func NewAddSheet(name string) Operation {
	return Operation{Type: OpAddSheet, AddSheet: &AddSheetParams{Name: name}}
}

func NewAddSheetAt(name string, position int) Operation {
	return Operation{Type: OpAddSheet, AddSheet: &AddSheetParams{Name: name, Position: &position}}
}

func NewRemoveSheet(sheetID string) Operation {
	return Operation{Type: OpRemoveSheet, RemoveSheet: &RemoveSheetParams{SheetID: sheetID}}
}

func NewRenameSheet(sheetID, newName string) Operation {
	return Operation{Type: OpRenameSheet, RenameSheet: &RenameSheetParams{SheetID: sheetID, NewName: newName}}
}

func NewSetCells(sheet string, cells map[string]CellInput) Operation {
	return Operation{Type: OpSetCells, SetCells: &SetCellsParams{Sheet: sheet, Cells: cells}}
}

func NewSetFormula(sheet, cell, formula string) Operation {
	return Operation{Type: OpSetFormula, SetFormula: &SetFormulaParams{Sheet: sheet, Cell: cell, Formula: formula}}
}

func NewCompute() Operation {
	return Operation{Type: OpCompute}
}

func NewApplyFormat(sheet, rng string, format Format) Operation {
	return Operation{Type: OpApplyFormat, ApplyFormat: &ApplyFormatParams{Sheet: sheet, Range: rng, Format: format}}
}

func NewMergeCells(sheet, rng string) Operation {
	return Operation{Type: OpMergeCells, MergeCells: &MergeCellsParams{Sheet: sheet, Range: rng}}
}

func NewDefineNamedRange(name, sheet, rng, scope string) Operation {
	return Operation{Type: OpDefineNamedRange, DefineNamedRange: &DefineNamedRangeParams{Name: name, Sheet: sheet, Range: rng, Scope: scope}}
}

func NewInsertRow(sheetID string, row, count int) Operation {
	return Operation{Type: OpInsertRow, Structural: &StructuralParams{SheetID: sheetID, Index: row, Count: count}}
}

func NewInsertCol(sheetID string, col, count int) Operation {
	return Operation{Type: OpInsertCol, Structural: &StructuralParams{SheetID: sheetID, Index: col, Count: count}}
}

func NewDeleteRow(sheetID string, row, count int) Operation {
	return Operation{Type: OpDeleteRow, Structural: &StructuralParams{SheetID: sheetID, Index: row, Count: count}}
}

func NewDeleteCol(sheetID string, col, count int) Operation {
	return Operation{Type: OpDeleteCol, Structural: &StructuralParams{SheetID: sheetID, Index: col, Count: count}}
}
