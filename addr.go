package gridcore

import (
	"fmt"
	"strings"
)

// ErrInvalidAddress reports a malformed cell address or range string.
var ErrInvalidAddress = fmt.Errorf("invalid address")

// Addr is a single cell position. Row and Col are 1-based: A1 is {1, 1}.
type Addr struct {
	Row int
	Col int
}

// NewAddr creates an Addr from 1-based row and column indexes.
func NewAddr(row, col int) Addr {
	return Addr{Row: row, Col: col}
}

// ParseAddress parses a cell address string like "A1" or "$B$2".
// Absolute markers ($) are accepted and discarded.
func ParseAddress(s string) (Addr, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "$", ""))
	if s == "" {
		return Addr{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	i := 0
	for i < len(s) && isAlpha(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	col, err := NameToCol(s[:i])
	if err != nil {
		return Addr{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}

	row := 0
	for _, ch := range s[i:] {
		if ch < '0' || ch > '9' {
			return Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		row = row*10 + int(ch-'0')
	}
	if row < 1 {
		return Addr{}, fmt.Errorf("%w: %q: row must be >= 1", ErrInvalidAddress, s)
	}

	return Addr{Row: row, Col: col}, nil
}

func isAlpha(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// String formats the address as "A1".
func (a Addr) String() string {
	return ColToName(a.Col) + fmt.Sprintf("%d", a.Row)
}

// Absolute formats the address as "$A$1".
func (a Addr) Absolute() string {
	return "$" + ColToName(a.Col) + fmt.Sprintf("$%d", a.Row)
}

// ColToName converts a 1-based column index to a column name.
// 1→"A", 26→"Z", 27→"AA", 702→"ZZ".
func ColToName(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

// NameToCol converts a column name to a 1-based column index.
// "A"→1, "Z"→26, "AA"→27.
func NameToCol(name string) (int, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return 0, fmt.Errorf("empty column name")
	}
	col := 0
	for _, ch := range name {
		if ch < 'A' || ch > 'Z' {
			return 0, fmt.Errorf("invalid column name: %q", name)
		}
		col = col*26 + int(ch-'A'+1)
	}
	return col, nil
}

// Ref is a sheet-qualified cell position. An empty Sheet means the
// reference is local to whatever sheet is being processed.
type Ref struct {
	Sheet string
	Addr
}

// ParseRef parses "A1", "Sheet1!B5", or "'Quoted Name'!C3".
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	sheet := ""
	cellPart := s
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		sheet = strings.Trim(s[:idx], "'")
		cellPart = s[idx+1:]
	}
	a, err := ParseAddress(cellPart)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Sheet: sheet, Addr: a}, nil
}

// String formats the Ref as "Sheet1!A1", or "A1" when no sheet is set.
// Sheet names containing spaces are quoted.
func (r Ref) String() string {
	if r.Sheet == "" {
		return r.Addr.String()
	}
	return quoteSheet(r.Sheet) + "!" + r.Addr.String()
}

// Key returns the canonical "SheetName!A1" cache key for a cell. The sheet
// name is never quoted here; the computed-value cache and the dependency
// graph both rely on this exact form.
func Key(sheet string, a Addr) string {
	return sheet + "!" + a.String()
}

func quoteSheet(name string) string {
	if strings.ContainsAny(name, " -()") {
		return "'" + name + "'"
	}
	return name
}

// Range is a rectangular cell region on one sheet. Start is the top-left
// and End the bottom-right corner; both are inclusive.
type Range struct {
	Sheet string
	Start Addr
	End   Addr
}

// ParseRange parses "A1:C3", "Sheet1!A1:C3", or a single address "B2"
// (which yields a one-cell range). Corners are normalized so that Start
// is always top-left.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	sheet := ""
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		sheet = strings.Trim(s[:idx], "'")
		s = s[idx+1:]
	}

	first, last := s, s
	if idx := strings.Index(s, ":"); idx >= 0 {
		first, last = s[:idx], s[idx+1:]
	}

	start, err := ParseAddress(first)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	end, err := ParseAddress(last)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}

	if start.Row > end.Row {
		start.Row, end.Row = end.Row, start.Row
	}
	if start.Col > end.Col {
		start.Col, end.Col = end.Col, start.Col
	}
	return Range{Sheet: sheet, Start: start, End: end}, nil
}

// String formats the range as "A1:C3" or "Sheet1!A1:C3".
func (r Range) String() string {
	body := r.Start.String() + ":" + r.End.String()
	if r.Sheet == "" {
		return body
	}
	return quoteSheet(r.Sheet) + "!" + body
}

// Absolute formats the range as "Sheet1!$A$1:$C$3", the stored form for
// named ranges.
func (r Range) Absolute() string {
	body := r.Start.Absolute() + ":" + r.End.Absolute()
	if r.Sheet == "" {
		return body
	}
	return quoteSheet(r.Sheet) + "!" + body
}

// Size returns the number of cells the range denotes.
func (r Range) Size() int {
	return (r.End.Row - r.Start.Row + 1) * (r.End.Col - r.Start.Col + 1)
}

// Contains reports whether the address lies inside the range.
func (r Range) Contains(a Addr) bool {
	return a.Row >= r.Start.Row && a.Row <= r.End.Row &&
		a.Col >= r.Start.Col && a.Col <= r.End.Col
}

// Overlaps reports whether two ranges share at least one cell.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Row <= other.End.Row && other.Start.Row <= r.End.Row &&
		r.Start.Col <= other.End.Col && other.Start.Col <= r.End.Col
}

// Expand returns every address in the range in row-major order.
func (r Range) Expand() []Addr {
	out := make([]Addr, 0, r.Size())
	for row := r.Start.Row; row <= r.End.Row; row++ {
		for col := r.Start.Col; col <= r.End.Col; col++ {
			out = append(out, Addr{Row: row, Col: col})
		}
	}
	return out
}

// ExpandSampled returns every address when the range holds at most ceiling
// cells. Beyond the ceiling it returns a representative sample: the four
// corners, the midpoint of each edge, and the center. The sample trades
// exhaustiveness for bounded cost and is meant for dependency-graph
// construction only, never for cell mutation.
func (r Range) ExpandSampled(ceiling int) []Addr {
	if ceiling <= 0 || r.Size() <= ceiling {
		return r.Expand()
	}

	midRow := (r.Start.Row + r.End.Row) / 2
	midCol := (r.Start.Col + r.End.Col) / 2
	sample := []Addr{
		{r.Start.Row, r.Start.Col},
		{r.Start.Row, r.End.Col},
		{r.End.Row, r.Start.Col},
		{r.End.Row, r.End.Col},
		{r.Start.Row, midCol},
		{r.End.Row, midCol},
		{midRow, r.Start.Col},
		{midRow, r.End.Col},
		{midRow, midCol},
	}

	seen := make(map[Addr]struct{}, len(sample))
	out := make([]Addr, 0, len(sample))
	for _, a := range sample {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
