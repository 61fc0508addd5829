package circular

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/javajack/gridcore"
)

// ErrComputeTimeout is returned when graph analysis or bounded evaluation
// does not finish within its deadline. A stuck analysis is treated the
// same as a stuck evaluator: the workbook is presumed unsafe to compute.
var ErrComputeTimeout = errors.New("circular: analysis timed out")

// Severity grades a detected cycle.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Detection limits, overridable per scan via WithMaxDepth and WithMaxScan.
// Chains deeper than the depth cap and scans wider than the cell cap are
// truncated with a warning rather than walked to completion.
const (
	DefaultMaxDepth = 100
	DefaultMaxScan  = 1000

	// severity thresholds
	longCycle      = 10
	complexFormula = 50
)

// Cycle is one detected reference loop. Chain lists the member cells in
// walk order with the first cell repeated at the end.
type Cycle struct {
	Chain    []string `json:"chain"`
	Severity Severity `json:"severity"`
}

// Detection is the result of one cycle scan.
type Detection struct {
	HasCycles bool     `json:"hasCycles"`
	Cycles    []Cycle  `json:"cycles,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Scanned   int      `json:"scanned"`
	ElapsedMs int64    `json:"analysisTimeMs"`
}

// dfs colors, three-state: unvisited, on the current path, finished.
const (
	white = iota
	gray
	black
)

// Detect runs a depth-first scan over the graph's formula cells and
// reports every distinct cycle. Each loop is reported once regardless of
// how many members it was entered through.
func (g *Graph) Detect() *Detection {
	start := time.Now()
	d := &Detection{}

	color := make(map[string]int, len(g.formulas))
	reported := make(map[string]bool)

	roots := make([]string, 0, len(g.formulas))
	for key := range g.formulas {
		roots = append(roots, key)
	}
	sort.Strings(roots)

	var path []string
	var walk func(key string, depth int)
	walk = func(key string, depth int) {
		if d.Scanned >= g.maxScan {
			return
		}
		if depth > g.maxDepth {
			d.Warnings = append(d.Warnings,
				fmt.Sprintf("dependency chain through %s exceeds depth %d; scan truncated", key, g.maxDepth))
			return
		}
		color[key] = gray
		path = append(path, key)
		d.Scanned++

		for _, dep := range g.precedents[key] {
			switch color[dep] {
			case white:
				walk(dep, depth+1)
			case gray:
				g.report(d, reported, path, dep)
			}
		}

		path = path[:len(path)-1]
		color[key] = black
	}

	for _, key := range roots {
		if d.Scanned >= g.maxScan {
			d.Warnings = append(d.Warnings,
				fmt.Sprintf("scan stopped after %d cells; remaining formulas not analyzed", g.maxScan))
			break
		}
		if color[key] == white {
			walk(key, 1)
		}
	}

	d.HasCycles = len(d.Cycles) > 0
	d.ElapsedMs = time.Since(start).Milliseconds()
	return d
}

// report extracts the loop from the current dfs path, canonicalizes it so
// the same loop entered at different members dedupes, and records it.
func (g *Graph) report(d *Detection, reported map[string]bool, path []string, repeat string) {
	start := -1
	for i, key := range path {
		if key == repeat {
			start = i
			break
		}
	}
	if start < 0 {
		return
	}
	loop := append([]string(nil), path[start:]...)

	canon := canonical(loop)
	sig := fmt.Sprint(canon)
	if reported[sig] {
		return
	}
	reported[sig] = true

	chain := append(append([]string(nil), canon...), canon[0])
	d.Cycles = append(d.Cycles, Cycle{Chain: chain, Severity: g.severity(canon)})
}

// canonical rotates a loop so it starts at its lexicographically smallest
// member.
func canonical(loop []string) []string {
	min := 0
	for i, key := range loop {
		if key < loop[min] {
			min = i
		}
	}
	return append(append([]string(nil), loop[min:]...), loop[:min]...)
}

// severity grades a loop: long loops are high; short ones are medium
// unless a member formula is complex enough that breaking the loop by hand
// is risky.
func (g *Graph) severity(loop []string) Severity {
	if len(loop) > longCycle {
		return SeverityHigh
	}
	for _, key := range loop {
		if len(g.formulas[key]) > complexFormula {
			return SeverityHigh
		}
	}
	return SeverityMedium
}

// RecoveryOptions suggests concrete ways to break the given cycle.
func RecoveryOptions(c Cycle) []string {
	if len(c.Chain) == 0 {
		return nil
	}
	first := c.Chain[0]
	opts := []string{
		fmt.Sprintf("replace the formula in %s with its last computed value to break the loop", first),
		"rewrite one member so it no longer references the cells that lead back to it",
		"clear every formula in the chain and re-enter the non-circular ones",
		"proceed anyway and accept that the evaluator will report these cells as errors",
	}
	if len(c.Chain) == 2 {
		opts = append(opts, fmt.Sprintf("%s references itself; remove the self-reference", first))
	}
	if c.Severity == SeverityHigh {
		opts = append(opts, "if the loop is intentional (iterative model), compute it outside the workbook and store results as plain values")
	}
	return opts
}

// Check builds the dependency graph for wb and scans it.
func Check(wb *gridcore.Workbook, opts ...Option) *Detection {
	return BuildGraph(wb, opts...).Detect()
}

// CheckWithTimeout runs Check under a deadline. Formula text is untrusted
// input; a pathological workbook must not wedge the caller. On timeout the
// workbook's analysis goroutine is abandoned and ErrComputeTimeout is
// returned.
func CheckWithTimeout(ctx context.Context, wb *gridcore.Workbook, timeout time.Duration, opts ...Option) (*Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("circular: %w", err)
	}

	done := make(chan *Detection, 1)
	go func() {
		done <- Check(wb, opts...)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-done:
		return d, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("circular: %w", ctx.Err())
	case <-timer.C:
		return nil, ErrComputeTimeout
	}
}
