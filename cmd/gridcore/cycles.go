package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/javajack/gridcore/circular"
)

var (
	cyclesTimeout time.Duration
	cyclesRecover bool
)

var cyclesCmd = &cobra.Command{
	Use:   "cycles <workbook.json>",
	Short: "Scan formulas for circular references",
	Long: `Build the cell dependency graph and report every circular reference
chain, graded by severity. The workbook is never modified.

Behavior:
  - Returns exit code 2 when cycles are found.
  - With --recover, prints suggested ways to break each cycle.
  - Analysis is abandoned after --timeout.

Examples:
  gridcore cycles budget.json
  gridcore cycles budget.json --recover --timeout 5s`,
	Args: cobra.ExactArgs(1),
	RunE: runCycles,
}

func init() {
	cyclesCmd.Flags().DurationVar(&cyclesTimeout, "timeout", 10*time.Second, "Abandon analysis after this long")
	cyclesCmd.Flags().BoolVar(&cyclesRecover, "recover", false, "Print suggestions for breaking each cycle")
	rootCmd.AddCommand(cyclesCmd)
}

func runCycles(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	wb, err := loadWorkbook(args[0])
	if err != nil {
		return err
	}

	d, err := circular.CheckWithTimeout(cmd.Context(), wb, cyclesTimeout,
		circular.WithLogger(logger()))
	if err != nil {
		if errors.Is(err, circular.ErrComputeTimeout) {
			return fmt.Errorf("analysis did not finish within %s; treat the workbook as unsafe to compute", cyclesTimeout)
		}
		return err
	}

	if jsonOutput {
		if err := jsonPrint(d); err != nil {
			return err
		}
	} else if !d.HasCycles {
		fmt.Printf("no cycles found (%d cells scanned)\n", d.Scanned)
	} else {
		fmt.Printf("%d cycle", len(d.Cycles))
		if len(d.Cycles) != 1 {
			fmt.Print("s")
		}
		fmt.Println(":")
		for _, c := range d.Cycles {
			fmt.Printf("  [%s] %s\n", c.Severity, strings.Join(c.Chain, " -> "))
			if cyclesRecover {
				for _, opt := range circular.RecoveryOptions(c) {
					fmt.Printf("    - %s\n", opt)
				}
			}
		}
	}
	if !jsonOutput {
		for _, w := range d.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}

	if d.HasCycles {
		return &ExitError{Code: 2}
	}
	return nil
}
