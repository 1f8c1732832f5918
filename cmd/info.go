package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"crunch/internal/discover"
	"crunch/internal/display"
	"crunch/internal/inspect"
	"crunch/internal/tui"
)

var infoCmd = &cobra.Command{
	Use:   "info <paths...>",
	Short: "Show dimensions, size and identifying metadata of images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := discover.ExpandPaths(args)
		if err != nil {
			logger.Warn("some paths were skipped", "error", err)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no supported images found")
		}

		failed := 0
		for i, path := range paths {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			info, err := inspect.File(path)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stdout, "%s\n  %s\n", infoFileStyle.Render(path), infoErrorStyle.Render(err.Error()))
				logger.Debug("inspect failed", "path", path, "error", err)
				continue
			}
			printInfo(os.Stdout, info)
		}
		if failed == len(paths) {
			return fmt.Errorf("no file could be read")
		}
		return nil
	},
}

func printInfo(w io.Writer, info inspect.Info) {
	fmt.Fprintf(w, "%s\n", infoFileStyle.Render(info.Path))
	fmt.Fprintf(w, "  %s %s\n", infoCategoryStyle.Render("Format:"), infoValueStyle.Render(info.Kind.String()))
	fmt.Fprintf(w, "  %s %s\n", infoCategoryStyle.Render("Dimensions:"), infoValueStyle.Render(fmt.Sprintf("%dx%d", info.Width, info.Height)))
	fmt.Fprintf(w, "  %s %s\n", infoCategoryStyle.Render("Size:"), infoValueStyle.Render(display.FormatBytes(info.SizeBytes)))

	if len(info.Details) == 0 {
		fmt.Fprintf(w, "  %s %s\n", infoCategoryStyle.Render("Metadata:"), infoDimStyle.Render("none"))
		return
	}
	for _, detail := range info.Details {
		if len(detail.Values) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s\n", infoCategoryStyle.Render(detail.Category+":"))
		for _, value := range detail.Values {
			fmt.Fprintf(w, "    %s %s\n", infoDimStyle.Render("-"), infoValueStyle.Render(value))
		}
	}
	for _, insight := range info.Insights {
		fmt.Fprintf(w, "  %s %s\n", infoDimStyle.Render("!"), infoValueStyle.Render(insight.Message))
	}
}

var (
	infoFileStyle     = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	infoCategoryStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	infoValueStyle    = lipgloss.NewStyle().Foreground(tui.ColorInk)
	infoDimStyle      = lipgloss.NewStyle().Foreground(tui.ColorDim)
	infoErrorStyle    = lipgloss.NewStyle().Foreground(tui.ColorError)
)

func init() {
	rootCmd.AddCommand(infoCmd)
}
