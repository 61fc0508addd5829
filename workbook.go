package gridcore

import (
	"fmt"
	"strings"
	"time"
)

// SchemaVersion is the current workbook document schema.
const SchemaVersion = 1

// Meta is workbook-level metadata. ModifiedAt is updated by every mutating
// operation.
type Meta struct {
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Action is one entry of the workbook's append-only action log. It records
// enough before/after state to compute its own inverse: undo applies the
// "before" side, redo the "after" side.
type Action struct {
	Type     string    `json:"type"`
	At       time.Time `json:"timestamp"`
	Undoable bool      `json:"undoable"`

	// Cell-level mutations. A nil map value means the cell was blank.
	SheetID     string           `json:"sheetId,omitempty"`
	CellsBefore map[string]*Cell `json:"cellsBefore,omitempty"`
	CellsAfter  map[string]*Cell `json:"cellsAfter,omitempty"`

	// Merge registry changes.
	MergesChanged bool     `json:"mergesChanged,omitempty"`
	MergesBefore  []string `json:"mergesBefore,omitempty"`
	MergesAfter   []string `json:"mergesAfter,omitempty"`

	// Sheet-level changes: whole-sheet snapshots for structural shifts and
	// add/remove, rename pair for renames.
	SheetBefore *Sheet `json:"sheetBefore,omitempty"`
	SheetAfter  *Sheet `json:"sheetAfter,omitempty"`
	SheetPos    int    `json:"sheetPos,omitempty"`
	OldName     string `json:"oldName,omitempty"`
	NewName     string `json:"newName,omitempty"`

	// Named-range changes. Scope is "workbook" or a sheet id.
	NamedScope   string            `json:"namedScope,omitempty"`
	NamedChanged bool              `json:"namedChanged,omitempty"`
	NamedBefore  map[string]string `json:"namedBefore,omitempty"`
	NamedAfter   map[string]string `json:"namedAfter,omitempty"`
}

// Workbook is the top-level document aggregate. Its JSON form is the
// persisted and on-wire representation.
type Workbook struct {
	SchemaVersion int               `json:"schemaVersion"`
	ID            string            `json:"id"`
	Meta          Meta              `json:"meta"`
	Sheets        []*Sheet          `json:"sheets"`
	NamedRanges   map[string]string `json:"namedRanges,omitempty"`

	// ComputedCache stores evaluated formula results keyed "SheetName!A1"
	// (sheet name, not id — callers rely on this exact key form).
	ComputedCache map[string]CachedValue `json:"computedCache,omitempty"`

	Log    []Action `json:"actionLog,omitempty"`
	Cursor int      `json:"undoCursor"`
}

// NewWorkbook creates a workbook with one sheet per name. With no names it
// gets a single "Sheet1".
func NewWorkbook(id, title string, sheetNames ...string) *Workbook {
	if len(sheetNames) == 0 {
		sheetNames = []string{"Sheet1"}
	}
	now := time.Now().UTC()
	wb := &Workbook{
		SchemaVersion: SchemaVersion,
		ID:            id,
		Meta:          Meta{Title: title, CreatedAt: now, ModifiedAt: now},
		NamedRanges:   make(map[string]string),
		ComputedCache: make(map[string]CachedValue),
	}
	for _, name := range sheetNames {
		wb.Sheets = append(wb.Sheets, NewSheet(wb.NextSheetID(), name))
	}
	return wb
}

// Touch updates the modification timestamp.
func (wb *Workbook) Touch() {
	wb.Meta.ModifiedAt = time.Now().UTC()
}

// SheetByID returns the sheet with the given id, or nil.
func (wb *Workbook) SheetByID(id string) *Sheet {
	for _, s := range wb.Sheets {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// SheetByName returns the sheet with the given display name (case-sensitive),
// or nil.
func (wb *Workbook) SheetByName(name string) *Sheet {
	for _, s := range wb.Sheets {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SheetIndex returns the position of the sheet with the given id, or -1.
func (wb *Workbook) SheetIndex(id string) int {
	for i, s := range wb.Sheets {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// NextSheetID returns a deterministic unused sheet id. Determinism matters:
// the simulation layer requires identical operation batches to produce
// byte-identical results.
func (wb *Workbook) NextSheetID() string {
	n := 1
	for {
		id := fmt.Sprintf("sheet-%d", n)
		if wb.SheetByID(id) == nil {
			return id
		}
		n++
	}
}

// UniqueSheetName returns base if unused, otherwise base with the lowest
// numeric suffix that makes it unique ("Data" → "Data2").
func (wb *Workbook) UniqueSheetName(base string) string {
	if wb.SheetByName(base) == nil {
		return base
	}
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s%d", base, n)
		if wb.SheetByName(name) == nil {
			return name
		}
	}
}

// InsertSheetAt places a sheet at the given position, clamped to the valid
// range.
func (wb *Workbook) InsertSheetAt(s *Sheet, pos int) {
	if pos < 0 || pos > len(wb.Sheets) {
		pos = len(wb.Sheets)
	}
	wb.Sheets = append(wb.Sheets, nil)
	copy(wb.Sheets[pos+1:], wb.Sheets[pos:])
	wb.Sheets[pos] = s
}

// RemoveSheetAt removes and returns the sheet at the given position.
func (wb *Workbook) RemoveSheetAt(pos int) *Sheet {
	s := wb.Sheets[pos]
	wb.Sheets = append(wb.Sheets[:pos], wb.Sheets[pos+1:]...)
	return s
}

// InsertRows performs a structural row insert on the identified sheet and
// remaps workbook-scoped named ranges referencing it.
func (wb *Workbook) InsertRows(sheetID string, index, count int) (ShiftResult, error) {
	return wb.structural(sheetID, axisRow, index, count)
}

// DeleteRows performs a structural row delete.
func (wb *Workbook) DeleteRows(sheetID string, index, count int) (ShiftResult, error) {
	return wb.structural(sheetID, axisRow, index, -count)
}

// InsertCols performs a structural column insert.
func (wb *Workbook) InsertCols(sheetID string, index, count int) (ShiftResult, error) {
	return wb.structural(sheetID, axisCol, index, count)
}

// DeleteCols performs a structural column delete.
func (wb *Workbook) DeleteCols(sheetID string, index, count int) (ShiftResult, error) {
	return wb.structural(sheetID, axisCol, index, -count)
}

func (wb *Workbook) structural(sheetID string, ax axis, index, count int) (ShiftResult, error) {
	s := wb.SheetByID(sheetID)
	if s == nil {
		return ShiftResult{}, fmt.Errorf("sheet %q not found", sheetID)
	}
	res := s.shift(ax, index, count)

	for name, ref := range wb.NamedRanges {
		r, err := ParseRange(ref)
		if err != nil || r.Sheet != s.Name {
			continue
		}
		nr, ok := shiftRange(r, ax, index, count)
		if !ok {
			delete(wb.NamedRanges, name)
			continue
		}
		wb.NamedRanges[name] = nr.Absolute()
	}

	// Cached computed values keyed by address are stale after a shift.
	wb.InvalidateSheetCache(s.Name)
	return res, nil
}

// InvalidateSheetCache drops all computed-cache entries for a sheet name.
func (wb *Workbook) InvalidateSheetCache(sheetName string) {
	prefix := sheetName + "!"
	for key := range wb.ComputedCache {
		if strings.HasPrefix(key, prefix) {
			delete(wb.ComputedCache, key)
		}
	}
}

// RenameSheetRefs rewrites named-range references and computed-cache keys
// after a sheet display-name change. Formula text referencing the old name
// is the formula engine's concern, not the model's.
func (wb *Workbook) RenameSheetRefs(oldName, newName string) {
	for name, ref := range wb.NamedRanges {
		wb.NamedRanges[name] = renameRefSheet(ref, oldName, newName)
	}
	for _, s := range wb.Sheets {
		for name, ref := range s.NamedRanges {
			s.NamedRanges[name] = renameRefSheet(ref, oldName, newName)
		}
	}
	prefix := oldName + "!"
	for key, v := range wb.ComputedCache {
		if strings.HasPrefix(key, prefix) {
			delete(wb.ComputedCache, key)
			wb.ComputedCache[newName+key[len(oldName):]] = v
		}
	}
}

func renameRefSheet(ref, oldName, newName string) string {
	r, err := ParseRange(ref)
	if err != nil || r.Sheet != oldName {
		return ref
	}
	r.Sheet = newName
	return r.Absolute()
}

// AppendAction records an applied action, truncating any redo tail beyond
// the cursor (linear history).
func (wb *Workbook) AppendAction(a Action) {
	if wb.Cursor < len(wb.Log) {
		wb.Log = wb.Log[:wb.Cursor]
	}
	wb.Log = append(wb.Log, a)
	wb.Cursor = len(wb.Log)
}

// CanUndo reports whether an action is available behind the cursor.
func (wb *Workbook) CanUndo() bool {
	return wb.Cursor > 0
}

// CanRedo reports whether an action is available ahead of the cursor.
func (wb *Workbook) CanRedo() bool {
	return wb.Cursor < len(wb.Log)
}
