package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/javajack/gridcore/ops"
)

var (
	applyOpsFile  string
	applyPlan     bool
	applyContinue bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <workbook.json>",
	Short: "Apply an operation batch to a workbook file",
	Long: `Apply a batch of operations to a workbook document and save the result.

The batch is a JSON array of {"type": ..., "params": {...}} objects, read
from --ops or stdin. Operations are validated and applied in order; by
default the batch halts at the first rejected operation. Already-applied
operations are still saved.

Behavior:
  - With --plan, every operation is rejected and nothing is written.
  - With --continue-on-error, rejected operations are skipped instead of
    halting the batch.
  - Returns exit code 2 when any operation was rejected.

Examples:
  gridcore apply budget.json --ops batch.json
  cat batch.json | gridcore apply budget.json
  gridcore apply budget.json --ops batch.json --plan`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyOpsFile, "ops", "", "Path to the operation batch (default: stdin)")
	applyCmd.Flags().BoolVar(&applyPlan, "plan", false, "Reject every operation without applying; nothing is written")
	applyCmd.Flags().BoolVar(&applyContinue, "continue-on-error", false, "Skip rejected operations instead of halting the batch")
	rootCmd.AddCommand(applyCmd)
}

func readOperations() ([]ops.Operation, error) {
	var data []byte
	var err error
	if applyOpsFile != "" {
		data, err = os.ReadFile(applyOpsFile)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("reading operations: %w", err)
	}
	var batch []ops.Operation
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing operations: %w", err)
	}
	return batch, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	wb, err := loadWorkbook(args[0])
	if err != nil {
		return err
	}
	batch, err := readOperations()
	if err != nil {
		return err
	}

	mode := ops.ModeAct
	if applyPlan {
		mode = ops.ModePlan
	}
	res := ops.Apply(wb, batch,
		ops.WithMode(mode),
		ops.WithContinueOnError(applyContinue),
		ops.WithLogger(logger()),
	)

	if !applyPlan {
		if err := saveWorkbook(args[0], res.Workbook); err != nil {
			return err
		}
	}

	if jsonOutput {
		if err := jsonPrint(res); err != nil {
			return err
		}
	} else {
		fmt.Printf("%d applied, %d skipped", res.Applied, res.Skipped)
		if len(res.Errors) > 0 {
			fmt.Printf(", %d rejected:\n", len(res.Errors))
			for _, e := range res.Errors {
				fmt.Printf("  %s\n", e.Error())
			}
		} else {
			fmt.Println()
		}
		for _, w := range res.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}

	if len(res.Errors) > 0 {
		return &ExitError{Code: 2}
	}
	return nil
}
