package gridcore

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"
)

// Clone returns a deep copy of the workbook. The copy shares no mutable
// state with the original; the simulation layer and undo snapshots depend
// on that.
func (wb *Workbook) Clone() (*Workbook, error) {
	out := &Workbook{}
	if err := deepcopy.Copy(out, wb); err != nil {
		return nil, fmt.Errorf("clone workbook %q: %w", wb.ID, err)
	}
	return out, nil
}

// CloneSheet returns a deep copy of a single sheet.
func CloneSheet(s *Sheet) (*Sheet, error) {
	out := &Sheet{}
	if err := deepcopy.Copy(out, s); err != nil {
		return nil, fmt.Errorf("clone sheet %q: %w", s.ID, err)
	}
	return out, nil
}

// CloneCells deep-copies a cell map. Nil map values (blank markers in
// action snapshots) are preserved.
func CloneCells(cells map[string]*Cell) (map[string]*Cell, error) {
	out := make(map[string]*Cell, len(cells))
	for key, c := range cells {
		if c == nil {
			out[key] = nil
			continue
		}
		cp := &Cell{}
		if err := deepcopy.Copy(cp, c); err != nil {
			return nil, fmt.Errorf("clone cell %s: %w", key, err)
		}
		out[key] = cp
	}
	return out, nil
}
