package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/javajack/gridcore/circular"
	"github.com/javajack/gridcore/engine"
)

var (
	calcVerify  bool
	calcTimeout time.Duration
)

var calcCmd = &cobra.Command{
	Use:   "calc <workbook.json>",
	Short: "Recalculate formulas; use --verify for a non-mutating check",
	Long: `Recalculate every formula cell and update computed values in a workbook.

Behavior:
  - Circular references are detected before evaluation; the workbook is
    left untouched and the chains are printed.
  - The cycle scan plus evaluation run under --timeout.
  - By default, the workbook at <file> is overwritten with fresh computed
    values and an updated computed-value cache.
  - With --verify, the workbook is not modified.
  - Returns exit code 2 when cycles or formula errors are found.

Examples:
  gridcore calc budget.json
  gridcore calc budget.json --verify`,
	Args: cobra.ExactArgs(1),
	RunE: runCalc,
}

func init() {
	calcCmd.Flags().BoolVar(&calcVerify, "verify", false, "Check only: do not overwrite the workbook; exit 2 if errors exist")
	calcCmd.Flags().DurationVar(&calcTimeout, "timeout", 30*time.Second, "Deadline for the cycle scan plus recalculation")
	rootCmd.AddCommand(calcCmd)
}

func runCalc(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	wb, err := loadWorkbook(args[0])
	if err != nil {
		return err
	}

	res, det, err := circular.ComputeWithTimeout(cmd.Context(), wb, calcTimeout,
		engine.WithLogger(logger()))
	if errors.Is(err, circular.ErrCircularReferences) {
		fmt.Printf("%d circular reference chain", len(det.Cycles))
		if len(det.Cycles) != 1 {
			fmt.Print("s")
		}
		fmt.Println("; not recalculated:")
		for _, c := range det.Cycles {
			fmt.Printf("  [%s] %s\n", c.Severity, strings.Join(c.Chain, " -> "))
		}
		return &ExitError{Code: 2}
	}
	if errors.Is(err, circular.ErrComputeTimeout) {
		fmt.Printf("recalculation did not finish within %s\n", calcTimeout)
		return &ExitError{Code: 2}
	}
	if err != nil {
		return err
	}

	if !calcVerify {
		if err := saveWorkbook(args[0], wb); err != nil {
			return err
		}
	}

	if jsonOutput {
		if err := jsonPrint(res); err != nil {
			return err
		}
	} else if len(res.Errors) == 0 {
		fmt.Printf("%d cells recalculated, 0 errors\n", res.UpdatedCells)
	} else {
		fmt.Printf("%d cells recalculated, %d error", res.UpdatedCells, len(res.Errors))
		if len(res.Errors) != 1 {
			fmt.Print("s")
		}
		fmt.Println(":")
		for _, e := range res.Errors {
			fmt.Printf("  %s\n", e.String())
		}
	}

	if len(res.Errors) > 0 {
		return &ExitError{Code: 2}
	}
	return nil
}
