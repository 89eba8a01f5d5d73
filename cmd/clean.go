package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanq16/fget/internal/output"
	"github.com/tanq16/fget/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [DIR]",
		Short: "Remove leftover temporary files from interrupted downloads",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := cfg.Dir
			if len(args) > 0 {
				dir = args[0]
			}
			removed, err := utils.CleanTempFiles(dir)
			for _, path := range removed {
				output.PrintDetail(fmt.Sprintf("Removed %s", path))
			}
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning up temporary files: %v", err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Temporary files cleaned up (%d removed)", len(removed)))
		},
	}
}
