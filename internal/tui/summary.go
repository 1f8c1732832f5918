package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crunch/internal/display"
	"crunch/internal/session"
	"crunch/internal/stats"
)

type SummaryRow struct {
	Label string
	Value string
}

// BatchRows lays out the statistics of a finished batch.
func BatchRows(b stats.Batch) []SummaryRow {
	return []SummaryRow{
		{Label: "Files", Value: fmt.Sprintf("%d", b.TotalFiles)},
		{Label: "Succeeded", Value: fmt.Sprintf("%d", b.SuccessfulFiles)},
		{Label: "Failed", Value: fmt.Sprintf("%d", b.FailedFiles)},
		{Label: "Original size", Value: display.FormatBytes(b.TotalOriginalSizeBytes)},
		{Label: "Output size", Value: display.FormatBytes(b.TotalOutputSizeBytes)},
		{Label: "Saved", Value: display.FormatBytes(b.BytesSaved())},
		{Label: "Overall reduction", Value: display.FormatPercent(b.OverallReductionPercent)},
		{Label: "Average reduction", Value: display.FormatPercent(b.AverageReductionPercent)},
		{Label: "Median reduction", Value: display.FormatPercent(b.MedianReductionPercent)},
	}
}

// RenderFailures lists failed files, one per line.
func RenderFailures(failures []session.ItemError) string {
	if len(failures) == 0 {
		return ""
	}
	lines := []string{errorStyle.Render(fmt.Sprintf("%d file(s) failed:", len(failures)))}
	for _, f := range failures {
		lines = append(lines, "  "+f.Path+dimStyle.Render(": "+f.Message))
	}
	return strings.Join(lines, "\n")
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, len(row.Label))
		valueWidth = max(valueWidth, len(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}
	for _, row := range rows {
		line := fmt.Sprintf("%s | %s", labelStyle.Render(padRight(row.Label, labelWidth)), valueStyle.Render(padRight(row.Value, valueWidth)))
		lines = append(lines, line)
	}
	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
