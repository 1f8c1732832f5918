package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"crunch/internal/config"
	"crunch/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFile    string
	logJSON    bool

	cfg      *config.Config
	logger   hclog.Logger
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "crunch",
	Short: "crunch - batch convert and compress images",
	Long: `crunch converts batches of images between JPEG, PNG, GIF, BMP, TIFF and WebP,
optionally resizing them, and reports how much smaller the results are.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			loaded.Log.File = logFile
		}
		if cmd.Flags().Changed("log-json") {
			loaded.Log.JSON = logJSON
		}

		l, closeFn, err := logging.New("crunch", logging.Options{
			Level: loaded.Log.Level,
			JSON:  loaded.Log.JSON,
			File:  loaded.Log.File,
		})
		if err != nil {
			return err
		}
		cfg, logger, closeLog = loaded, l, closeFn
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute runs the command tree with signal handling and version output.
func Execute(ctx context.Context, version string) error {
	return fang.Execute(ctx, rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	)
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default $CRUNCH_CONFIG or ./crunch.yaml)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&logFile, "log-file", "", "write logs to this file")
	flags.BoolVar(&logJSON, "log-json", false, "log as JSON")
}
