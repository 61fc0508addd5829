package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javajack/gridcore/simulate"
)

var simulateContinue bool

var simulateCmd = &cobra.Command{
	Use:   "simulate <workbook.json>",
	Short: "Preview an operation batch without committing it",
	Long: `Apply an operation batch to a disposable copy of the workbook and
report what would change. The workbook file is never modified.

The batch is read from --ops or stdin, in the same format as apply.
Formulas are recomputed on the copy so the diff includes computed values,
tagged with simulation provenance.

Examples:
  gridcore simulate budget.json --ops batch.json
  cat batch.json | gridcore simulate budget.json --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&applyOpsFile, "ops", "", "Path to the operation batch (default: stdin)")
	simulateCmd.Flags().BoolVar(&simulateContinue, "continue-on-error", false, "Skip rejected operations instead of halting the batch")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	wb, err := loadWorkbook(args[0])
	if err != nil {
		return err
	}
	batch, err := readOperations()
	if err != nil {
		return err
	}

	out, err := simulate.Apply(wb, batch,
		simulate.WithContinueOnError(simulateContinue),
		simulate.WithLogger(logger()),
	)
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := jsonPrint(out); err != nil {
			return err
		}
	} else {
		fmt.Printf("%d applied, %d rejected, %d cells affected, %d structural changes\n",
			out.Result.Applied, len(out.Result.Errors),
			out.Diff.TotalAffectedCells, len(out.Diff.StructuralChanges))
		for _, name := range out.Diff.SheetsAdded {
			fmt.Printf("  + sheet %s\n", name)
		}
		for _, name := range out.Diff.SheetsRemoved {
			fmt.Printf("  - sheet %s\n", name)
		}
		for _, r := range out.Diff.SheetsRenamed {
			fmt.Printf("  ~ sheet %s\n", r)
		}
		for _, c := range out.Diff.CellChanges {
			fmt.Printf("  %s!%s: %s -> %s\n", c.Sheet, c.Ref, cellBrief(c.Before), cellBrief(c.After))
		}
		for _, e := range out.Result.Errors {
			fmt.Printf("  rejected: %s\n", e.Error())
		}
	}

	if len(out.Result.Errors) > 0 {
		return &ExitError{Code: 2}
	}
	return nil
}
