package gridcore

// Sheet is one worksheet of a Workbook. Cells are stored sparsely, keyed by
// their "A1"-style address string. The ID is stable for the sheet's
// lifetime; the Name is the mutable display name used in formula
// cross-references.
type Sheet struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Hidden      bool              `json:"hidden,omitempty"`
	Rows        int               `json:"rows"`
	Cols        int               `json:"cols"`
	Cells       map[string]*Cell  `json:"cells"`
	Merges      []string          `json:"mergedRanges,omitempty"`
	NamedRanges map[string]string `json:"namedRanges,omitempty"`

	ColWidths  map[int]float64 `json:"colWidths,omitempty"`
	RowHeights map[int]float64 `json:"rowHeights,omitempty"`
	HiddenCols map[int]bool    `json:"hiddenCols,omitempty"`
	HiddenRows map[int]bool    `json:"hiddenRows,omitempty"`

	View SheetView `json:"view,omitzero"`
}

// SheetView holds sheet-level display properties.
type SheetView struct {
	FrozenRows    int     `json:"frozenRows,omitempty"`
	FrozenCols    int     `json:"frozenCols,omitempty"`
	Zoom          float64 `json:"zoom,omitempty"`
	TabColor      string  `json:"tabColor,omitempty"`
	HideGridlines bool    `json:"hideGridlines,omitempty"`
}

const (
	// DefaultRows and DefaultCols bound a freshly created sheet's grid.
	DefaultRows = 1000
	DefaultCols = 26
)

// NewSheet creates an empty sheet with default grid bounds.
func NewSheet(id, name string) *Sheet {
	return &Sheet{
		ID:    id,
		Name:  name,
		Rows:  DefaultRows,
		Cols:  DefaultCols,
		Cells: make(map[string]*Cell),
	}
}

// Cell returns the cell at the given address, or nil when the address is
// blank or malformed.
func (s *Sheet) Cell(addr string) *Cell {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil
	}
	return s.Cells[a.String()]
}

// CellAt returns the cell at the given position, or nil when blank.
func (s *Sheet) CellAt(a Addr) *Cell {
	return s.Cells[a.String()]
}

// SetCell stores a cell at the given position. A nil or empty cell deletes
// the entry instead, keeping the map sparse.
func (s *Sheet) SetCell(a Addr, c *Cell) {
	if s.Cells == nil {
		s.Cells = make(map[string]*Cell)
	}
	key := a.String()
	if c.IsEmpty() {
		delete(s.Cells, key)
		return
	}
	s.Cells[key] = c
	if a.Row > s.Rows {
		s.Rows = a.Row
	}
	if a.Col > s.Cols {
		s.Cols = a.Col
	}
}

// DeleteCell removes the cell at the given position.
func (s *Sheet) DeleteCell(a Addr) {
	delete(s.Cells, a.String())
}

// FormulaCells returns the addresses of all formula cells, unordered.
func (s *Sheet) FormulaCells() []Addr {
	var out []Addr
	for key, c := range s.Cells {
		if !c.IsFormula() {
			continue
		}
		a, err := ParseAddress(key)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// MergeOverlap returns the first existing merge that shares a cell with
// rng, if any.
func (s *Sheet) MergeOverlap(rng Range) (string, bool) {
	for _, m := range s.Merges {
		existing, err := ParseRange(m)
		if err != nil {
			continue
		}
		if existing.Overlaps(rng) {
			return m, true
		}
	}
	return "", false
}

// HasMerge reports whether the exact merge range string is already
// registered.
func (s *Sheet) HasMerge(rng Range) bool {
	want := rng.Start.String() + ":" + rng.End.String()
	for _, m := range s.Merges {
		if m == want {
			return true
		}
	}
	return false
}

type axis int

const (
	axisRow axis = iota
	axisCol
)

// ShiftResult reports how a structural insert/delete moved the sheet's
// cells. Moved maps old address to new address; Removed lists cells that
// fell inside a deleted region.
type ShiftResult struct {
	Moved   map[string]string
	Removed []string
}

// InsertRows shifts every cell at or below row index down by count and
// grows the grid bound. Merged ranges, named ranges, and row layout
// overrides that include or follow the shifted region move with it.
func (s *Sheet) InsertRows(index, count int) ShiftResult {
	return s.shift(axisRow, index, count)
}

// DeleteRows removes count rows starting at index. Cells inside the
// deleted region are dropped; cells below it shift up.
func (s *Sheet) DeleteRows(index, count int) ShiftResult {
	return s.shift(axisRow, index, -count)
}

// InsertCols shifts every cell at or right of column index by count.
func (s *Sheet) InsertCols(index, count int) ShiftResult {
	return s.shift(axisCol, index, count)
}

// DeleteCols removes count columns starting at index.
func (s *Sheet) DeleteCols(index, count int) ShiftResult {
	return s.shift(axisCol, index, -count)
}

// shift applies a structural move along one axis. A positive count inserts,
// a negative count deletes |count| positions starting at index.
func (s *Sheet) shift(ax axis, index, count int) ShiftResult {
	res := ShiftResult{Moved: make(map[string]string)}
	if count == 0 {
		return res
	}

	moved := make(map[string]*Cell, len(s.Cells))
	for key, c := range s.Cells {
		a, err := ParseAddress(key)
		if err != nil {
			continue
		}
		na, ok := shiftAddr(a, ax, index, count)
		if !ok {
			res.Removed = append(res.Removed, key)
			continue
		}
		moved[na.String()] = c
		if na != a {
			res.Moved[key] = na.String()
		}
	}
	s.Cells = moved

	s.remapMerges(ax, index, count)
	s.remapNamedRanges(ax, index, count)
	s.remapLayout(ax, index, count)

	if ax == axisRow {
		s.Rows += count
		if s.Rows < 1 {
			s.Rows = 1
		}
	} else {
		s.Cols += count
		if s.Cols < 1 {
			s.Cols = 1
		}
	}
	return res
}

// shiftAddr moves a single address. The second return is false when the
// address falls inside a deleted region.
func shiftAddr(a Addr, ax axis, index, count int) (Addr, bool) {
	pos := a.Row
	if ax == axisCol {
		pos = a.Col
	}

	switch {
	case pos < index:
		return a, true
	case count < 0 && pos < index-count:
		// inside the deleted span [index, index-count-1]
		return Addr{}, false
	}

	pos += count
	if ax == axisRow {
		a.Row = pos
	} else {
		a.Col = pos
	}
	return a, true
}

// shiftRange moves both corners of a range. A range entirely inside a
// deleted span collapses and the second return is false; a range whose
// boundary overlaps a deleted span is clamped.
func shiftRange(r Range, ax axis, index, count int) (Range, bool) {
	start, end := r.Start, r.End
	if ax == axisCol {
		start = Addr{Row: start.Col, Col: start.Row}
		end = Addr{Row: end.Col, Col: end.Row}
	}

	// Work on the row coordinate; columns were transposed above.
	lo, hi := start.Row, end.Row
	if count > 0 {
		if lo >= index {
			lo += count
		}
		if hi >= index {
			hi += count
		}
	} else {
		delLo, delHi := index, index-count-1
		if lo >= delLo && hi <= delHi {
			return Range{}, false
		}
		lo = shiftStart(lo, delLo, delHi, count)
		hi = shiftEnd(hi, delLo, delHi, count)
		if hi < lo {
			return Range{}, false
		}
	}

	start.Row, end.Row = lo, hi
	if ax == axisCol {
		start = Addr{Row: start.Col, Col: start.Row}
		end = Addr{Row: end.Col, Col: end.Row}
	}
	return Range{Sheet: r.Sheet, Start: start, End: end}, true
}

// shiftStart and shiftEnd clamp a range bound overlapping a deleted span.
// A start bound lands on the first surviving position after the span; an
// end bound lands on the last surviving position before it, so a range
// whose tail is deleted shrinks instead of absorbing the cells shifted up.
func shiftStart(pos, delLo, delHi, count int) int {
	switch {
	case pos < delLo:
		return pos
	case pos <= delHi:
		return delLo
	default:
		return pos + count
	}
}

func shiftEnd(pos, delLo, delHi, count int) int {
	switch {
	case pos < delLo:
		return pos
	case pos <= delHi:
		return delLo - 1
	default:
		return pos + count
	}
}

func (s *Sheet) remapMerges(ax axis, index, count int) {
	if len(s.Merges) == 0 {
		return
	}
	out := s.Merges[:0]
	for _, m := range s.Merges {
		r, err := ParseRange(m)
		if err != nil {
			out = append(out, m)
			continue
		}
		nr, ok := shiftRange(r, ax, index, count)
		if !ok || nr.Size() < 2 {
			continue
		}
		out = append(out, nr.Start.String()+":"+nr.End.String())
	}
	s.Merges = out
}

func (s *Sheet) remapNamedRanges(ax axis, index, count int) {
	for name, ref := range s.NamedRanges {
		r, err := ParseRange(ref)
		if err != nil {
			continue
		}
		nr, ok := shiftRange(r, ax, index, count)
		if !ok {
			delete(s.NamedRanges, name)
			continue
		}
		s.NamedRanges[name] = nr.Absolute()
	}
}

func (s *Sheet) remapLayout(ax axis, index, count int) {
	if ax == axisRow {
		s.RowHeights = remapIndexMap(s.RowHeights, index, count)
		s.HiddenRows = remapIndexMap(s.HiddenRows, index, count)
	} else {
		s.ColWidths = remapIndexMap(s.ColWidths, index, count)
		s.HiddenCols = remapIndexMap(s.HiddenCols, index, count)
	}
}

func remapIndexMap[V any](m map[int]V, index, count int) map[int]V {
	if len(m) == 0 {
		return m
	}
	out := make(map[int]V, len(m))
	for pos, v := range m {
		switch {
		case pos < index:
			out[pos] = v
		case count < 0 && pos < index-count:
			// dropped with the deleted span
		default:
			out[pos+count] = v
		}
	}
	return out
}
