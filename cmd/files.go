package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crunch/internal/discover"
)

var filesCmd = &cobra.Command{
	Use:   "files <paths...>",
	Short: "List the images a run over these paths would convert",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := discover.ExpandPaths(args)
		for _, p := range paths {
			fmt.Fprintln(os.Stdout, p)
		}
		if err != nil {
			return err
		}
		logger.Debug("files expanded", "inputs", len(args), "files", len(paths))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
}
