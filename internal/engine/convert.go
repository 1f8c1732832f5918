package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"crunch/internal/events"
	"crunch/internal/imaging"
	"crunch/internal/options"
	"crunch/internal/stats"
	"crunch/pkg/imgutil"
)

// convert transcodes input into output and never returns an error: failures
// are folded into the result.
func convert(input, output string, opts options.Options) events.ItemResult {
	res := events.ItemResult{OriginalPath: input, OutputPath: output}

	originalSize, outputSize, err := transcode(input, output, opts)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.OriginalSize = originalSize
	res.OutputSize = outputSize
	res.ReductionPercent = stats.Reduction(originalSize, outputSize)
	res.Success = true
	return res
}

func transcode(input, output string, opts options.Options) (int64, int64, error) {
	file, err := os.Open(input)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image: %w", err)
	}
	defer file.Close()

	srcInfo, err := file.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image: %w", err)
	}

	kind, err := imaging.Sniff(file)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image: %w", err)
	}
	if kind == imgutil.KindUnknown {
		return 0, 0, fmt.Errorf("failed to read image: %w", imaging.ErrUnsupportedFormat)
	}

	var md imaging.Metadata
	if opts.KeepMetadata {
		md, err = imaging.ReadMetadata(file, kind)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read metadata: %w", err)
		}
		if _, err := file.Seek(0, 0); err != nil {
			return 0, 0, fmt.Errorf("failed to read image: %w", err)
		}
	}

	img, err := imaging.Decode(file, kind)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	img = imaging.Resize(img, opts)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, opts); err != nil {
		return 0, 0, fmt.Errorf("failed to write image: %w", err)
	}
	encoded := buf.Bytes()
	if !md.Empty() {
		encoded, err = imaging.Splice(encoded, outputKind(opts.Format), md)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to write metadata: %w", err)
		}
	}

	if err := writeAtomic(output, encoded, srcInfo.Mode().Perm()); err != nil {
		return 0, 0, fmt.Errorf("failed to write image: %w", err)
	}
	return srcInfo.Size(), int64(len(encoded)), nil
}

func outputKind(f options.Format) imgutil.Kind {
	return imgutil.KindFromExtension(f.Extension())
}

// writeAtomic writes data to a temp file next to dest and renames it into
// place, so a failed write never leaves a truncated output.
func writeAtomic(dest string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".crunch-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm | 0o200); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return replaceFile(tmp.Name(), dest)
}

func replaceFile(tmpPath, destPath string) error {
	if err := os.Rename(tmpPath, destPath); err == nil {
		return nil
	}
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tmpPath, destPath)
}
