// Package options holds the output configuration applied to a batch.
package options

import (
	"errors"
	"fmt"
	"strings"
)

// Format is an output encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatWebP Format = "webp"
)

// Formats lists every supported output format.
var Formats = []Format{FormatJPEG, FormatPNG, FormatGIF, FormatBMP, FormatTIFF, FormatWebP}

// Extension is the file extension written for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	default:
		return string(f)
	}
}

// MIMEType returns the media type for f.
func (f Format) MIMEType() string {
	return "image/" + string(f)
}

// Lossy reports whether quality has any effect on f.
func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

// ParseFormat accepts a format name or a common extension alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// Compression selects lossy or lossless encoding.
type Compression string

const (
	CompressionLossy    Compression = "lossy"
	CompressionLossless Compression = "lossless"
)

func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(s))) {
	case CompressionLossy:
		return CompressionLossy, nil
	case CompressionLossless:
		return CompressionLossless, nil
	}
	return "", fmt.Errorf("unsupported compression mode %q", s)
}

const (
	MinQuality     = 1
	MaxQuality     = 100
	DefaultQuality = 80
)

// Options is the output configuration for one batch. A nil resize dimension
// means "keep"; both nil disables resizing. Quality is kept when Compression
// is lossless so the previous setting survives a mode toggle.
type Options struct {
	Format       Format      `json:"format" yaml:"format"`
	Quality      int         `json:"quality" yaml:"quality"`
	ResizeWidth  *int        `json:"width" yaml:"width"`
	ResizeHeight *int        `json:"height" yaml:"height"`
	KeepMetadata bool        `json:"keep_metadata" yaml:"keep_metadata"`
	Compression  Compression `json:"compression" yaml:"compression"`
}

// Default mirrors the defaults shown on first launch.
func Default() Options {
	return Options{
		Format:      FormatWebP,
		Quality:     DefaultQuality,
		Compression: CompressionLossy,
	}
}

// Resize reports whether either resize dimension is set.
func (o Options) Resize() bool {
	return o.ResizeWidth != nil || o.ResizeHeight != nil
}

// EffectiveQuality is the quality the encoder should use, or 0 when quality
// does not apply.
func (o Options) EffectiveQuality() int {
	if o.Compression == CompressionLossless || !o.Format.Lossy() {
		return 0
	}
	return o.Quality
}

// Clone returns a deep copy.
func (o Options) Clone() Options {
	out := o
	if o.ResizeWidth != nil {
		w := *o.ResizeWidth
		out.ResizeWidth = &w
	}
	if o.ResizeHeight != nil {
		h := *o.ResizeHeight
		out.ResizeHeight = &h
	}
	return out
}

// Validate checks every field and joins all problems into one error.
func (o Options) Validate() error {
	var errs []error
	if _, err := ParseFormat(string(o.Format)); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseCompression(string(o.Compression)); err != nil {
		errs = append(errs, err)
	}
	if o.Quality < MinQuality || o.Quality > MaxQuality {
		errs = append(errs, fmt.Errorf("quality must be between %d and %d, got %d", MinQuality, MaxQuality, o.Quality))
	}
	if o.ResizeWidth != nil && *o.ResizeWidth <= 0 {
		errs = append(errs, fmt.Errorf("resize width must be positive, got %d", *o.ResizeWidth))
	}
	if o.ResizeHeight != nil && *o.ResizeHeight <= 0 {
		errs = append(errs, fmt.Errorf("resize height must be positive, got %d", *o.ResizeHeight))
	}
	return errors.Join(errs...)
}
