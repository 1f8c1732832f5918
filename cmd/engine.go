package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"crunch/internal/engine"
	"crunch/internal/events"
)

// engineCmd is the process engine's counterpart: it reads one request as
// JSON on stdin and streams JSON-line events on stdout. Logs go to stderr.
var engineCmd = &cobra.Command{
	Use:    "engine",
	Short:  "Run one batch from a JSON request on stdin",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var req engine.Request
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			return fmt.Errorf("failed to read request: %w", err)
		}
		enc := events.NewEncoder(os.Stdout)
		return engine.NewLocal(enc, logger.Named("engine"), cfg.Workers).Submit(cmd.Context(), req)
	},
}

func init() {
	rootCmd.AddCommand(engineCmd)
}
