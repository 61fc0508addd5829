package gridcore

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// CellInfo is the environment exposed to a SelectCells predicate for one
// cell.
type CellInfo struct {
	Sheet    string `expr:"sheet"`
	Address  string `expr:"address"`
	Row      int    `expr:"row"`
	Col      int    `expr:"col"`
	Value    any    `expr:"value"`
	Formula  string `expr:"formula"`
	DataType string `expr:"dataType"`
	Computed any    `expr:"computed"`
	Type     string `expr:"type"` // "formula", "value", or "styled"
}

func (s *Sheet) cellInfo(key string, c *Cell) (CellInfo, bool) {
	a, err := ParseAddress(key)
	if err != nil {
		return CellInfo{}, false
	}
	info := CellInfo{
		Sheet:    s.Name,
		Address:  a.String(),
		Row:      a.Row,
		Col:      a.Col,
		Value:    c.Value,
		Formula:  c.Formula,
		DataType: c.DataType,
	}
	switch {
	case c.IsFormula():
		info.Type = "formula"
		if c.Computed != nil {
			info.Computed = c.Computed.Value
		}
	case c.Value != nil || c.DataType != "":
		info.Type = "value"
	default:
		info.Type = "styled"
	}
	return info, true
}

// SelectCells evaluates a boolean predicate over every non-blank cell and
// returns the matching refs sorted by sheet order, then row, then column.
// The predicate sees sheet, address, row, col, value, formula, dataType,
// computed, and type. An empty predicate matches everything.
//
//	refs, err := gridcore.SelectCells(wb, `type == "formula" && row <= 10`)
func SelectCells(wb *Workbook, predicate string) ([]Ref, error) {
	var program *vm.Program
	if predicate != "" {
		p, err := expr.Compile(predicate, expr.Env(CellInfo{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile predicate %q: %w", predicate, err)
		}
		program = p
	}

	var out []Ref
	for _, s := range wb.Sheets {
		for key, c := range s.Cells {
			info, ok := s.cellInfo(key, c)
			if !ok {
				continue
			}
			if program != nil {
				res, err := expr.Run(program, info)
				if err != nil {
					return nil, fmt.Errorf("evaluate predicate at %s!%s: %w", s.Name, key, err)
				}
				if match, _ := res.(bool); !match {
					continue
				}
			}
			out = append(out, Ref{Sheet: s.Name, Addr: NewAddr(info.Row, info.Col)})
		}
	}

	sheetPos := make(map[string]int, len(wb.Sheets))
	for i, s := range wb.Sheets {
		sheetPos[s.Name] = i
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Sheet != b.Sheet {
			return sheetPos[a.Sheet] < sheetPos[b.Sheet]
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Col < b.Col
	})
	return out, nil
}
