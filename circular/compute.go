package circular

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/javajack/gridcore"
	"github.com/javajack/gridcore/engine"
)

// ErrCircularReferences is returned when the pre-flight scan finds at
// least one cycle; evaluation is blocked so the evaluator never sees the
// cyclic input.
var ErrCircularReferences = errors.New("circular: workbook has circular references")

// ComputeWithTimeout runs the cycle scan and then full formula evaluation
// under one deadline. The scan runs first and short-circuits: a workbook
// with cycles is never handed to the evaluator, and the Detection comes
// back with ErrCircularReferences so the caller can surface chains and
// recovery options.
//
// Evaluation runs on its own goroutine against a clone of wb, so a worker
// abandoned at the deadline cannot race the caller's workbook; computed
// values are patched back only on success. The remaining budget after the
// scan bounds evaluation, and ErrComputeTimeout fires when it runs out.
func ComputeWithTimeout(ctx context.Context, wb *gridcore.Workbook, timeout time.Duration, engineOpts ...engine.Option) (*engine.Result, *Detection, error) {
	start := time.Now()

	d, err := CheckWithTimeout(ctx, wb, timeout)
	if err != nil {
		return nil, nil, err
	}
	if d.HasCycles {
		return nil, d, ErrCircularReferences
	}

	remaining := timeout - time.Since(start)
	if remaining <= 0 {
		return nil, d, ErrComputeTimeout
	}

	scratch, err := wb.Clone()
	if err != nil {
		return nil, d, fmt.Errorf("circular: clone workbook: %w", err)
	}

	type outcome struct {
		res *engine.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := engine.Compute(scratch, engineOpts...)
		done <- outcome{res, err}
	}()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, d, out.err
		}
		patchComputed(wb, scratch)
		return out.res, d, nil
	case <-timer.C:
		return nil, d, ErrComputeTimeout
	case <-ctx.Done():
		return nil, d, fmt.Errorf("circular: %w", ctx.Err())
	}
}

// patchComputed copies the worker clone's computed state back into the
// caller's workbook. Only computed values move; the worker never changed
// anything else.
func patchComputed(dst, src *gridcore.Workbook) {
	for _, ss := range src.Sheets {
		ds := dst.SheetByID(ss.ID)
		if ds == nil {
			continue
		}
		for ref, cell := range ss.Cells {
			if cell == nil || cell.Computed == nil {
				continue
			}
			if dc := ds.Cells[ref]; dc != nil {
				dc.Computed = cell.Computed
			}
		}
	}
	dst.ComputedCache = src.ComputedCache
}
