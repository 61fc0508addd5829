package ops

import (
	"fmt"

	"github.com/javajack/gridcore"
)

// UndoResult reports the outcome of an undo or redo step. Failure is data,
// not an error: an empty history is a normal state.
type UndoResult struct {
	Success bool             `json:"success"`
	Action  *gridcore.Action `json:"action,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// Undo reverts the most recent undoable action by applying its recorded
// "before" side, then moves the history cursor back one step.
func Undo(wb *gridcore.Workbook) UndoResult {
	if wb == nil || !wb.CanUndo() {
		return UndoResult{Reason: "nothing to undo"}
	}
	a := wb.Log[wb.Cursor-1]
	if !a.Undoable {
		return UndoResult{Action: &a, Reason: fmt.Sprintf("action %q is not undoable", a.Type)}
	}
	if err := applySide(wb, a, true); err != nil {
		return UndoResult{Action: &a, Reason: err.Error()}
	}
	wb.Cursor--
	wb.Touch()
	return UndoResult{Success: true, Action: &a}
}

// Redo re-applies the most recently undone action by applying its recorded
// "after" side, then moves the history cursor forward one step.
func Redo(wb *gridcore.Workbook) UndoResult {
	if wb == nil || !wb.CanRedo() {
		return UndoResult{Reason: "nothing to redo"}
	}
	a := wb.Log[wb.Cursor]
	if !a.Undoable {
		return UndoResult{Action: &a, Reason: fmt.Sprintf("action %q is not redoable", a.Type)}
	}
	if err := applySide(wb, a, false); err != nil {
		return UndoResult{Action: &a, Reason: err.Error()}
	}
	wb.Cursor++
	wb.Touch()
	return UndoResult{Success: true, Action: &a}
}

// applySide restores one side of an action's snapshot. before selects the
// pre-action state (undo); otherwise the post-action state (redo). Snapshots
// are cloned on the way out so the log stays immutable across repeated
// undo/redo cycles.
func applySide(wb *gridcore.Workbook, a gridcore.Action, before bool) error {
	switch OpType(a.Type) {
	case OpSetCells, OpSetFormula, OpApplyFormat:
		return restoreCells(wb, a, before)
	case OpMergeCells:
		return restoreMerges(wb, a, before)
	case OpAddSheet:
		if before {
			return detachSheet(wb, a.SheetID)
		}
		return attachSheet(wb, a.SheetAfter, a.SheetPos)
	case OpRemoveSheet:
		if before {
			return attachSheet(wb, a.SheetBefore, a.SheetPos)
		}
		return detachSheet(wb, a.SheetID)
	case OpRenameSheet:
		if before {
			return rename(wb, a.SheetID, a.NewName, a.OldName)
		}
		return rename(wb, a.SheetID, a.OldName, a.NewName)
	case OpDefineNamedRange:
		return restoreNamed(wb, a, before)
	case OpInsertRow, OpInsertCol, OpDeleteRow, OpDeleteCol:
		return restoreStructural(wb, a, before)
	default:
		return fmt.Errorf("action %q has no recorded inverse", a.Type)
	}
}

func restoreCells(wb *gridcore.Workbook, a gridcore.Action, before bool) error {
	s := wb.SheetByID(a.SheetID)
	if s == nil {
		return fmt.Errorf("sheet %q no longer exists", a.SheetID)
	}
	side := a.CellsAfter
	if before {
		side = a.CellsBefore
	}
	restored, err := gridcore.CloneCells(side)
	if err != nil {
		return fmt.Errorf("restore cells: %w", err)
	}
	for key, cell := range restored {
		addr, perr := gridcore.ParseAddress(key)
		if perr != nil {
			return fmt.Errorf("restore cells: %w", perr)
		}
		if cell == nil {
			s.DeleteCell(addr)
		} else {
			s.SetCell(addr, cell)
		}
		delete(wb.ComputedCache, gridcore.Key(s.Name, addr))
	}
	return nil
}

func restoreMerges(wb *gridcore.Workbook, a gridcore.Action, before bool) error {
	s := wb.SheetByID(a.SheetID)
	if s == nil {
		return fmt.Errorf("sheet %q no longer exists", a.SheetID)
	}
	side := a.MergesAfter
	if before {
		side = a.MergesBefore
	}
	s.Merges = append([]string(nil), side...)
	return nil
}

func detachSheet(wb *gridcore.Workbook, id string) error {
	pos := wb.SheetIndex(id)
	if pos < 0 {
		return fmt.Errorf("sheet %q no longer exists", id)
	}
	if len(wb.Sheets) == 1 {
		return fmt.Errorf("cannot detach the last sheet")
	}
	removed := wb.RemoveSheetAt(pos)
	wb.InvalidateSheetCache(removed.Name)
	return nil
}

func attachSheet(wb *gridcore.Workbook, snap *gridcore.Sheet, pos int) error {
	if snap == nil {
		return fmt.Errorf("action carries no sheet snapshot")
	}
	if wb.SheetByID(snap.ID) != nil {
		return fmt.Errorf("sheet %q already exists", snap.ID)
	}
	restored, err := gridcore.CloneSheet(snap)
	if err != nil {
		return fmt.Errorf("restore sheet: %w", err)
	}
	if pos < 0 || pos > len(wb.Sheets) {
		pos = len(wb.Sheets)
	}
	wb.InsertSheetAt(restored, pos)
	return nil
}

func rename(wb *gridcore.Workbook, id, from, to string) error {
	s := wb.SheetByID(id)
	if s == nil {
		return fmt.Errorf("sheet %q no longer exists", id)
	}
	if s.Name != from {
		return fmt.Errorf("sheet %q is named %q, expected %q", id, s.Name, from)
	}
	s.Name = to
	wb.RenameSheetRefs(from, to)
	return nil
}

func restoreNamed(wb *gridcore.Workbook, a gridcore.Action, before bool) error {
	side := a.NamedAfter
	if before {
		side = a.NamedBefore
	}
	restored := make(map[string]string, len(side))
	for k, v := range side {
		restored[k] = v
	}
	if a.NamedScope == "workbook" || a.NamedScope == "" {
		wb.NamedRanges = restored
		return nil
	}
	s := wb.SheetByID(a.NamedScope)
	if s == nil {
		return fmt.Errorf("sheet %q no longer exists", a.NamedScope)
	}
	s.NamedRanges = restored
	return nil
}

// restoreStructural swaps the whole sheet for the recorded snapshot. Row
// and column shifts touch cells, merges, named ranges, and layout at once;
// a full-sheet restore is the only inverse that cannot drift.
func restoreStructural(wb *gridcore.Workbook, a gridcore.Action, before bool) error {
	pos := wb.SheetIndex(a.SheetID)
	if pos < 0 {
		return fmt.Errorf("sheet %q no longer exists", a.SheetID)
	}
	snap := a.SheetAfter
	if before {
		snap = a.SheetBefore
	}
	if snap == nil {
		return fmt.Errorf("action carries no sheet snapshot")
	}
	restored, err := gridcore.CloneSheet(snap)
	if err != nil {
		return fmt.Errorf("restore sheet: %w", err)
	}
	wb.Sheets[pos] = restored
	wb.InvalidateSheetCache(restored.Name)

	named := a.NamedAfter
	if before {
		named = a.NamedBefore
	}
	if named != nil {
		m := make(map[string]string, len(named))
		for k, v := range named {
			m[k] = v
		}
		wb.NamedRanges = m
	}
	return nil
}
