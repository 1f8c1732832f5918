// Package inspect reports an image's dimensions and the identifying metadata
// it carries, without modifying the file.
package inspect

import (
	"fmt"
	"io"
	"os"

	"crunch/internal/imaging"
	"crunch/pkg/imgutil"
)

const (
	CategoryGPS       = "GPS"
	CategoryDevice    = "Device Model"
	CategoryTimestamp = "Timestamp"
	CategorySerial    = "Serial Number"
)

var categoryOrder = []string{CategoryGPS, CategoryDevice, CategoryTimestamp, CategorySerial}

// Info describes one image file.
type Info struct {
	Path      string
	Kind      imgutil.Kind
	Width     int
	Height    int
	SizeBytes int64
	Details   []Detail
	Insights  []Insight
}

// Detail groups raw "Key=Value" metadata entries under a category.
type Detail struct {
	Category string
	Values   []string
}

// Insight is a human-readable note derived from the details.
type Insight struct {
	Kind    string
	Message string
}

// File inspects the image at path.
func File(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, err
	}

	kind, err := imaging.Sniff(f)
	if err != nil {
		return Info{}, fmt.Errorf("read header: %w", err)
	}
	if kind == imgutil.KindUnknown {
		return Info{}, fmt.Errorf("%s: %w", path, imaging.ErrUnsupportedFormat)
	}

	cfg, err := imaging.DecodeConfig(f, kind)
	if err != nil {
		return Info{}, fmt.Errorf("decode %s header: %w", kind, err)
	}

	info := Info{
		Path:      path,
		Kind:      kind,
		Width:     cfg.Width,
		Height:    cfg.Height,
		SizeBytes: st.Size(),
	}

	details, err := scanMetadata(f, kind)
	if err != nil {
		return info, fmt.Errorf("scan metadata: %w", err)
	}
	info.Details = details
	info.Insights = buildInsights(details)
	return info, nil
}

func scanMetadata(rs io.ReadSeeker, kind imgutil.Kind) ([]Detail, error) {
	switch kind {
	case imgutil.KindJPEG, imgutil.KindTIFF, imgutil.KindWebP:
		analysis, err := analyzeExif(rs)
		if err != nil {
			return nil, err
		}
		return analysis.details(), nil
	case imgutil.KindPNG:
		return scanPNGText(rs)
	default:
		return nil, nil
	}
}
