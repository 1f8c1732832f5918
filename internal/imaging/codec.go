// Package imaging wraps the decoders, encoders and resampler used by the
// local engine.
package imaging

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"crunch/internal/options"
	"crunch/pkg/imgutil"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

// Sniff detects the kind of rs from its header and rewinds it.
func Sniff(rs io.ReadSeeker) (imgutil.Kind, error) {
	kind, err := imgutil.SniffReader(rs)
	if err != nil {
		return imgutil.KindUnknown, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return imgutil.KindUnknown, err
	}
	return kind, nil
}

// Decode reads a full image of the given kind.
func Decode(r io.Reader, kind imgutil.Kind) (image.Image, error) {
	switch kind {
	case imgutil.KindJPEG:
		return jpeg.Decode(r)
	case imgutil.KindPNG:
		return png.Decode(r)
	case imgutil.KindGIF:
		return gif.Decode(r)
	case imgutil.KindBMP:
		return bmp.Decode(r)
	case imgutil.KindTIFF:
		return tiff.Decode(r)
	case imgutil.KindWebP:
		return webp.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
}

// DecodeConfig reads only the dimensions and color model.
func DecodeConfig(r io.Reader, kind imgutil.Kind) (image.Config, error) {
	switch kind {
	case imgutil.KindJPEG:
		return jpeg.DecodeConfig(r)
	case imgutil.KindPNG:
		return png.DecodeConfig(r)
	case imgutil.KindGIF:
		return gif.DecodeConfig(r)
	case imgutil.KindBMP:
		return bmp.DecodeConfig(r)
	case imgutil.KindTIFF:
		return tiff.DecodeConfig(r)
	case imgutil.KindWebP:
		return webp.DecodeConfig(r)
	default:
		return image.Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
}

// losslessJPEGQuality is used when lossless output is requested for JPEG,
// which has no true lossless mode.
const losslessJPEGQuality = 100

// Encode writes img in the format and compression mode of opts.
func Encode(w io.Writer, img image.Image, opts options.Options) error {
	bw := bufio.NewWriter(w)
	var err error

	switch opts.Format {
	case options.FormatJPEG:
		quality := opts.Quality
		if opts.Compression == options.CompressionLossless {
			quality = losslessJPEGQuality
		}
		err = jpeg.Encode(bw, img, &jpeg.Options{Quality: quality})
	case options.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(bw, img)
	case options.FormatGIF:
		err = gif.Encode(bw, img, &gif.Options{NumColors: 256})
	case options.FormatBMP:
		err = bmp.Encode(bw, img)
	case options.FormatTIFF:
		err = tiff.Encode(bw, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case options.FormatWebP:
		wopts := &webp.Options{Quality: float32(opts.Quality)}
		if opts.Compression == options.CompressionLossless {
			wopts = &webp.Options{Lossless: true}
		}
		err = webp.Encode(bw, img, wopts)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, opts.Format)
	}

	if err != nil {
		return err
	}
	return bw.Flush()
}
