package imaging

import (
	"image"

	"github.com/nfnt/resize"

	"crunch/internal/options"
)

// Resize applies the resize settings of opts. With one dimension set the
// other follows the source aspect ratio; with both set the output is exact.
func Resize(img image.Image, opts options.Options) image.Image {
	if !opts.Resize() {
		return img
	}

	var width, height uint
	if opts.ResizeWidth != nil {
		width = uint(*opts.ResizeWidth)
	}
	if opts.ResizeHeight != nil {
		height = uint(*opts.ResizeHeight)
	}
	return resize.Resize(width, height, img, resize.Lanczos3)
}
