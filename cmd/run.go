package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hashicorp/go-hclog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"crunch/internal/config"
	"crunch/internal/discover"
	"crunch/internal/engine"
	"crunch/internal/events"
	"crunch/internal/logging"
	"crunch/internal/notify"
	"crunch/internal/options"
	"crunch/internal/registry"
	"crunch/internal/report"
	"crunch/internal/session"
	"crunch/internal/tui"
)

var (
	runOutputDir    string
	runFormat       string
	runQuality      int
	runWidth        int
	runHeight       int
	runKeepMetadata bool
	runLossless     bool
	runWorkers      int
	runEngine       string
	runEngineCmd    string
	runPlain        bool
	runNoNotify     bool
	runReport       string
	runReportFormat string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <paths...>",
	Short: "Convert and compress a batch of images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyRunFlags(cmd)

		paths, err := discover.ExpandPaths(args)
		if err != nil {
			logger.Warn("some paths were skipped", "error", err)
		}
		if len(paths) == 0 {
			return errors.New("no supported images found")
		}

		opts, err := cfg.ProcessingOptions()
		if err != nil {
			return err
		}
		outputDir := cfg.OutputDir
		if outputDir == "" {
			outputDir = "crunched"
		}
		if abs, absErr := filepath.Abs(outputDir); absErr == nil {
			outputDir = abs
		}

		bus := events.NewBus(logger.Named("events"))
		defer bus.Close()

		eng, err := newEngine(bus, logger.Named("engine"))
		if err != nil {
			return err
		}

		// The notice is held until the progress display has been torn down.
		var notice bytes.Buffer
		var notifier notify.Notifier = notify.Nop{}
		if cfg.Notify {
			notifier = notify.NewTerminal(&notice, cfg.Bell)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var observer session.Observer
		var finish func(session.View)
		if cfg.Plain {
			observer, finish = plainProgress(len(paths))
		} else {
			logging.Quiet(logger)
			observer, finish = fullscreenProgress(ctx, func() { cancel() })
		}

		ctrl := session.New(bus, eng,
			session.WithOptions(options.NewStore(opts, outputDir)),
			session.WithLogger(logger.Named("session")),
			session.WithNotifier(notifier),
			session.WithObserver(observer),
		)
		if _, err := ctrl.AddFiles(paths...); err != nil {
			return err
		}

		runErr := ctrl.Start(ctx)
		busStats := bus.Stats()
		logger.Debug("event bus drained", "emitted", busStats.Emitted, "delivered", busStats.Delivered, "unheard", busStats.Unheard)
		view := ctrl.Snapshot()
		finish(view)
		_, _ = notice.WriteTo(os.Stderr)

		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("batch cancelled after %d of %d files", view.Counts[registry.StatusCompleted]+view.Counts[registry.StatusError], len(paths))
		}
		if runErr != nil {
			return runErr
		}
		if view.Stats == nil {
			return errors.New("batch finished without statistics")
		}

		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.BatchRows(*view.Stats)))
		if failed := tui.RenderFailures(ctrl.Failures()); failed != "" {
			fmt.Fprintln(os.Stdout, failed)
		}
		fmt.Fprintf(os.Stdout, "Converted files written to: %s\n", outputDir)

		if cfg.Report.Path != "" {
			if err := writeReport(view); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Report written to: %s\n", cfg.Report.Path)
		}
		return nil
	},
}

// applyRunFlags lays explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("output") {
		cfg.OutputDir = runOutputDir
	}
	if f.Changed("format") {
		cfg.Defaults.Format = runFormat
	}
	if f.Changed("quality") {
		cfg.Defaults.Quality = runQuality
	}
	if f.Changed("width") {
		cfg.Defaults.Width = runWidth
	}
	if f.Changed("height") {
		cfg.Defaults.Height = runHeight
	}
	if f.Changed("keep-metadata") {
		cfg.Defaults.KeepMetadata = runKeepMetadata
	}
	if f.Changed("lossless") {
		cfg.Defaults.Compression = string(options.CompressionLossy)
		if runLossless {
			cfg.Defaults.Compression = string(options.CompressionLossless)
		}
	}
	if f.Changed("workers") {
		cfg.Workers = runWorkers
	}
	if f.Changed("engine") {
		cfg.Engine.Kind = runEngine
	}
	if f.Changed("engine-command") {
		cfg.Engine.Command = runEngineCmd
	}
	if f.Changed("plain") {
		cfg.Plain = runPlain
	}
	if f.Changed("no-notify") {
		cfg.Notify = !runNoNotify
	}
	if f.Changed("report") {
		cfg.Report.Path = runReport
	}
	if f.Changed("report-format") {
		cfg.Report.Format = runReportFormat
	}
}

func newEngine(bus *events.Bus, log hclog.Logger) (session.Submitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Engine.Kind {
	case config.EngineProcess:
		return engine.NewProcess(bus, log, cfg.Engine.Command, cfg.Engine.Args...), nil
	default:
		return engine.NewLocal(bus, log, cfg.Workers), nil
	}
}

// fullscreenProgress runs the bubbletea view until finish is called. The
// view stops with ctx.
func fullscreenProgress(ctx context.Context, cancel func()) (session.Observer, func(session.View)) {
	updates := make(chan session.View, 64)
	program := tea.NewProgram(tui.NewModel(updates, cancel), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
	return relayViews(logger, updates, func() error {
		_, err := program.Run()
		return err
	}, cancel)
}

// relayViews feeds views to run on its own goroutine. If run fails before
// finish, the batch is cancelled and later views are dropped.
func relayViews(log hclog.Logger, updates chan session.View, run func() error, cancel func()) (session.Observer, func(session.View)) {
	uiDone := make(chan struct{})
	go func() {
		defer close(uiDone)
		err := run()
		switch {
		case err == nil:
		case errors.Is(err, tea.ErrProgramKilled):
			log.Debug("progress view stopped", "error", err)
			cancel()
		default:
			log.Error("progress view failed", "error", err)
			cancel()
		}
	}()

	observer := func(v session.View) {
		select {
		case updates <- v:
		default:
		}
	}
	finish := func(v session.View) {
		select {
		case updates <- v:
		case <-uiDone:
		}
		close(updates)
		<-uiDone
	}
	return observer, finish
}

// plainProgress draws a single-line bar for terminals that cannot host the
// full-screen view.
func plainProgress(total int) (session.Observer, func(session.View)) {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("crunching"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	update := func(v session.View) {
		done := v.Counts[registry.StatusCompleted] + v.Counts[registry.StatusError]
		_ = bar.Set(done)
	}
	finish := func(v session.View) {
		update(v)
		_ = bar.Finish()
	}
	return update, finish
}

func writeReport(v session.View) error {
	format, err := report.ParseFormat(cfg.Report.Format, cfg.Report.Path)
	if err != nil {
		return err
	}
	r, err := report.FromView(v)
	if err != nil {
		return err
	}
	return report.WriteFile(cfg.Report.Path, r, format)
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOutputDir, "output", "o", "", "destination folder (default ./crunched)")
	f.StringVarP(&runFormat, "format", "f", "", "output format: jpeg, png, gif, bmp, tiff, webp")
	f.IntVarP(&runQuality, "quality", "q", options.DefaultQuality, "quality 1-100 for lossy output")
	f.IntVar(&runWidth, "width", 0, "resize to this width")
	f.IntVar(&runHeight, "height", 0, "resize to this height")
	f.BoolVar(&runKeepMetadata, "keep-metadata", false, "carry metadata into outputs of the same format family")
	f.BoolVar(&runLossless, "lossless", false, "use lossless compression")
	f.IntVarP(&runWorkers, "workers", "w", 0, "parallel conversions (default half the CPUs, 2-8)")
	f.StringVar(&runEngine, "engine", config.EngineLocal, "engine: local or process")
	f.StringVar(&runEngineCmd, "engine-command", "", "command for the process engine")
	f.BoolVar(&runPlain, "plain", false, "single-line progress instead of the full-screen view")
	f.BoolVar(&runNoNotify, "no-notify", false, "do not print a completion notice")
	f.StringVar(&runReport, "report", "", "write a json, yaml or parquet report to this path")
	f.StringVar(&runReportFormat, "report-format", "", "report format (default from the report extension)")

	rootCmd.AddCommand(runCmd)
}
