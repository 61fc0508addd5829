// Package circular builds a cell dependency graph from formula text and
// detects reference cycles before they reach the formula evaluator. The
// evaluator is a black box that may hang or burn CPU on cyclic input, so
// detection runs up front on the document model alone.
package circular

import (
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/efp"

	"github.com/javajack/gridcore"
)

// DefaultRangeCeiling caps how many cells a single range reference expands
// to. Larger ranges are sampled at their corners, edge midpoints, and
// center; the graph is a guard, not an exact recalculation plan.
const DefaultRangeCeiling = 100

var cellRefPattern = regexp.MustCompile(`^[A-Za-z]{1,3}[0-9]+$`)

// Options configures graph construction and the cycle scan.
type Options struct {
	rangeCeiling int
	maxDepth     int
	maxScan      int
	logger       *slog.Logger
}

type Option func(*Options)

// WithRangeCeiling sets the full-expansion cap for range references.
func WithRangeCeiling(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.rangeCeiling = n
		}
	}
}

// WithMaxDepth caps how deep one dependency chain is followed before the
// scan truncates that branch with a warning.
func WithMaxDepth(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithMaxScan caps the total cells visited in one detection pass.
func WithMaxScan(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.maxScan = n
		}
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.logger = l }
}

// Graph is a cell dependency graph keyed "SheetName!A1". Edges run from a
// formula cell to the cells it reads.
type Graph struct {
	precedents map[string][]string
	dependents map[string][]string
	formulas   map[string]string
	maxDepth   int
	maxScan    int
}

// BuildGraph extracts references from every formula cell in the workbook.
// References to named ranges are resolved through workbook- and
// sheet-scoped definitions; unresolvable references are ignored, since the
// evaluator will surface those as #NAME? errors on its own.
func BuildGraph(wb *gridcore.Workbook, opts ...Option) *Graph {
	o := &Options{
		rangeCeiling: DefaultRangeCeiling,
		maxDepth:     DefaultMaxDepth,
		maxScan:      DefaultMaxScan,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	g := &Graph{
		precedents: make(map[string][]string),
		dependents: make(map[string][]string),
		formulas:   make(map[string]string),
		maxDepth:   o.maxDepth,
		maxScan:    o.maxScan,
	}
	parser := efp.ExcelParser()

	for _, s := range wb.Sheets {
		for _, ref := range sortedFormulaRefs(s) {
			cell := s.Cells[ref]
			key := s.Name + "!" + ref
			g.formulas[key] = cell.Formula

			deps := extractRefs(parser, wb, s.Name, cell.Formula, o.rangeCeiling)
			for _, dep := range deps {
				g.precedents[key] = append(g.precedents[key], dep)
				g.dependents[dep] = append(g.dependents[dep], key)
			}
		}
	}

	o.logger.Debug("dependency graph built",
		"formulaCells", len(g.formulas), "edges", edgeCount(g.precedents))
	return g
}

// Precedents returns the cells the given cell reads, or nil.
func (g *Graph) Precedents(key string) []string {
	return g.precedents[key]
}

// Dependents returns the cells that read the given cell, or nil.
func (g *Graph) Dependents(key string) []string {
	return g.dependents[key]
}

// Transitive returns every cell reachable downstream of key: the cells
// whose computed values go stale when key changes.
func (g *Graph) Transitive(key string) []string {
	seen := map[string]bool{key: true}
	queue := []string{key}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependents[cur] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	sort.Strings(out)
	return out
}

// extractRefs tokenizes one formula and resolves each operand reference to
// workbook cell keys. Leading "=" is stripped; the tokenizer works on bare
// formula text.
func extractRefs(parser efp.Parser, wb *gridcore.Workbook, currentSheet, formula string, ceiling int) []string {
	tokens := parser.Parse(strings.TrimPrefix(formula, "="))
	if tokens == nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}

	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		for _, key := range resolveRef(wb, currentSheet, token.TValue, ceiling) {
			add(key)
		}
	}
	sort.Strings(out)
	return out
}

// resolveRef turns one operand reference ("B2", "A1:C3", "'Plan 2026'!B2",
// a named range) into cell keys.
func resolveRef(wb *gridcore.Workbook, currentSheet, ref string, ceiling int) []string {
	sheet := currentSheet
	part := ref
	if strings.Contains(ref, "!") {
		before, after, _ := strings.Cut(ref, "!")
		sheet = strings.Trim(before, "'")
		part = after
	}
	part = strings.ReplaceAll(part, "$", "")

	if start, end, isRange := strings.Cut(part, ":"); isRange {
		// Whole-column and whole-row spans have no finite expansion;
		// anchor them on their boundary labels.
		if !cellRefPattern.MatchString(start) || !cellRefPattern.MatchString(end) {
			return []string{sheet + "!" + start + ":" + end}
		}
		rng, err := gridcore.ParseRange(part)
		if err != nil {
			return nil
		}
		keys := make([]string, 0, len(rng.ExpandSampled(ceiling)))
		for _, a := range rng.ExpandSampled(ceiling) {
			keys = append(keys, sheet+"!"+a.String())
		}
		return keys
	}

	if cellRefPattern.MatchString(part) {
		a, err := gridcore.ParseAddress(part)
		if err != nil {
			return nil
		}
		return []string{sheet + "!" + a.String()}
	}

	// Not a cell reference: try named ranges, sheet scope first.
	if target := lookupNamed(wb, currentSheet, part); target != "" {
		return resolveRef(wb, currentSheet, target, ceiling)
	}
	return nil
}

func lookupNamed(wb *gridcore.Workbook, currentSheet, name string) string {
	if s := wb.SheetByName(currentSheet); s != nil {
		if target, ok := s.NamedRanges[name]; ok {
			return target
		}
	}
	return wb.NamedRanges[name]
}

func sortedFormulaRefs(s *gridcore.Sheet) []string {
	var refs []string
	for ref, cell := range s.Cells {
		if cell.IsFormula() {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs
}

func edgeCount(m map[string][]string) int {
	n := 0
	for _, edges := range m {
		n += len(edges)
	}
	return n
}
