// Package report exports the outcome of a finished batch as JSON, YAML or
// Parquet.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"crunch/internal/options"
	"crunch/internal/registry"
	"crunch/internal/session"
	"crunch/internal/stats"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatParquet Format = "parquet"
)

var ErrNoStatistics = errors.New("batch has no statistics to report")

// ParseFormat accepts a format name. An empty name picks the format from the
// extension of path.
func ParseFormat(name, path string) (Format, error) {
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	switch strings.ToLower(name) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "parquet", "pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("unsupported report format %q", name)
}

// Row is one file in the report.
type Row struct {
	Path             string  `json:"path" yaml:"path" parquet:"path"`
	Status           string  `json:"status" yaml:"status" parquet:"status"`
	OriginalSize     int64   `json:"original_size" yaml:"original_size" parquet:"original_size"`
	OutputPath       string  `json:"output_path,omitempty" yaml:"output_path,omitempty" parquet:"output_path"`
	OutputSize       int64   `json:"output_size" yaml:"output_size" parquet:"output_size"`
	ReductionPercent float64 `json:"reduction_percent" yaml:"reduction_percent" parquet:"reduction_percent"`
	Error            string  `json:"error,omitempty" yaml:"error,omitempty" parquet:"error"`
}

type Report struct {
	SessionID   string          `json:"session_id" yaml:"session_id"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	OutputDir   string          `json:"output_dir" yaml:"output_dir"`
	Options     options.Options `json:"options" yaml:"options"`
	OutputType  string          `json:"output_type" yaml:"output_type"`
	Stats       stats.Batch     `json:"stats" yaml:"stats"`
	Files       []Row           `json:"files" yaml:"files"`
}

// FromView builds a report for a finished batch.
func FromView(v session.View) (Report, error) {
	if v.Stats == nil {
		return Report{}, ErrNoStatistics
	}
	r := Report{
		SessionID:   v.SessionID,
		GeneratedAt: time.Now().UTC(),
		OutputDir:   v.OutputDir,
		Options:     v.Options,
		OutputType:  v.Options.Format.MIMEType(),
		Stats:       *v.Stats,
		Files:       make([]Row, 0, len(v.Items)),
	}
	for _, item := range v.Items {
		r.Files = append(r.Files, rowFor(item))
	}
	return r, nil
}

func rowFor(item registry.Item) Row {
	return Row{
		Path:             item.Path,
		Status:           string(item.Status),
		OriginalSize:     item.OriginalSizeBytes,
		OutputPath:       item.OutputPath,
		OutputSize:       item.OutputSizeBytes,
		ReductionPercent: item.ReductionPercent,
		Error:            item.ErrorMessage,
	}
}

// Write encodes r to w. Parquet carries one row per file; the batch totals
// are recoverable from the rows.
func Write(w io.Writer, r Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatParquet:
		pw := parquet.NewGenericWriter[Row](w)
		if _, err := pw.Write(r.Files); err != nil {
			_ = pw.Close()
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
		return pw.Close()
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteFile writes r to path, creating parent directories.
func WriteFile(path string, r Report, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Write(f, r, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
