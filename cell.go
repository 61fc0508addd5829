package gridcore

import (
	"strings"
	"time"
)

// ComputedType tags the type of an evaluated formula result, following the
// xlsx cell-type convention.
type ComputedType string

const (
	ComputedNumber  ComputedType = "n"
	ComputedString  ComputedType = "s"
	ComputedBoolean ComputedType = "b"
	ComputedError   ComputedType = "e"
)

// Computed is the last-evaluated snapshot of a formula cell. Provenance
// identifies which recomputation produced the value; preview layers use it
// to tag results that never came from a committed workbook.
type Computed struct {
	Value      any          `json:"v"`
	Type       ComputedType `json:"t"`
	At         time.Time    `json:"ts"`
	Provenance string       `json:"provenance,omitempty"`
}

// Border describes cell border sides. Empty strings mean "no border".
type Border struct {
	Top    string `json:"top,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Left   string `json:"left,omitempty"`
	Right  string `json:"right,omitempty"`
}

// Style is the presentation state of a cell, independent of its content.
// applyFormat merges styles shallowly: zero-valued fields in an incoming
// style leave the existing value untouched.
type Style struct {
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Color      string  `json:"color,omitempty"`
	Background string  `json:"background,omitempty"`
	Align      string  `json:"align,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	Border     *Border `json:"border,omitempty"`
}

// Merge overlays non-zero fields of other onto a copy of s.
func (s Style) Merge(other Style) Style {
	out := s
	if other.Bold {
		out.Bold = true
	}
	if other.Italic {
		out.Italic = true
	}
	if other.Color != "" {
		out.Color = other.Color
	}
	if other.Background != "" {
		out.Background = other.Background
	}
	if other.Align != "" {
		out.Align = other.Align
	}
	if other.FontSize != 0 {
		out.FontSize = other.FontSize
	}
	if other.Border != nil {
		b := *other.Border
		out.Border = &b
	}
	return out
}

// Cell is one entry in a sheet's sparse cell map. Exactly one content
// variant is populated: a raw Value (with its declared DataType), or a
// Formula. A logically blank cell is simply absent from the map, which is
// distinct from an explicit nil Value or an empty string.
type Cell struct {
	Value        any       `json:"value,omitempty"`
	DataType     string    `json:"dataType,omitempty"` // "string", "number", "boolean", "null"
	Formula      string    `json:"formula,omitempty"`  // always carries the leading "="
	Computed     *Computed `json:"computed,omitempty"`
	Style        *Style    `json:"style,omitempty"`
	NumberFormat string    `json:"numberFormat,omitempty"`
}

// IsFormula reports whether the cell holds a formula.
func (c *Cell) IsFormula() bool {
	return c != nil && c.Formula != ""
}

// IsEmpty reports whether the cell carries neither content nor presentation
// state. Such cells can be dropped from the sparse map.
func (c *Cell) IsEmpty() bool {
	return c == nil || (c.Value == nil && c.DataType == "" && c.Formula == "" &&
		c.Style == nil && c.NumberFormat == "")
}

// NormalizeFormula guarantees exactly one leading "=" on formula text.
func NormalizeFormula(formula string) string {
	formula = strings.TrimSpace(formula)
	for strings.HasPrefix(formula, "=") {
		formula = formula[1:]
	}
	return "=" + formula
}

// CachedValue is one entry of the workbook-level computed-value store,
// keyed "SheetName!A1".
type CachedValue struct {
	Value      any          `json:"value"`
	Type       ComputedType `json:"type"`
	At         time.Time    `json:"timestamp"`
	Provenance string       `json:"provenance,omitempty"`
}
