package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javajack/gridcore"
	"github.com/javajack/gridcore/ops"
)

var undoCmd = &cobra.Command{
	Use:   "undo <workbook.json>",
	Short: "Revert the most recent undoable action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd, args[0], ops.Undo, "reverted")
	},
}

var redoCmd = &cobra.Command{
	Use:   "redo <workbook.json>",
	Short: "Re-apply the most recently undone action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd, args[0], ops.Redo, "re-applied")
	},
}

func init() {
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(redoCmd)
}

func runHistory(cmd *cobra.Command, path string, step func(*gridcore.Workbook) ops.UndoResult, verb string) error {
	cmd.SilenceUsage = true

	wb, err := loadWorkbook(path)
	if err != nil {
		return err
	}

	res := step(wb)
	if res.Success {
		if err := saveWorkbook(path, wb); err != nil {
			return err
		}
	}

	if jsonOutput {
		if err := jsonPrint(res); err != nil {
			return err
		}
	} else if res.Success {
		fmt.Printf("%s %q\n", verb, res.Action.Type)
	} else {
		fmt.Println(res.Reason)
	}

	if !res.Success {
		return &ExitError{Code: 2}
	}
	return nil
}
