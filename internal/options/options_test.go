package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestDefaultOptionsValidate(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())
	assert.Equal(t, FormatWebP, opts.Format)
	assert.Equal(t, 80, opts.Quality)
	assert.False(t, opts.Resize())
	assert.False(t, opts.KeepMetadata)
	assert.Equal(t, CompressionLossy, opts.Compression)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"jpg": FormatJPEG, "JPEG": FormatJPEG, ".png": FormatPNG,
		"tif": FormatTIFF, "webp": FormatWebP, "gif": FormatGIF, "bmp": FormatBMP,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("heic")
	assert.Error(t, err)
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, "jpg", FormatJPEG.Extension())
	assert.Equal(t, "webp", FormatWebP.Extension())
	assert.Equal(t, "image/tiff", FormatTIFF.MIMEType())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	opts := Options{Format: "heic", Quality: 0, Compression: "zip", ResizeWidth: intPtr(-1)}
	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heic")
	assert.Contains(t, err.Error(), "quality")
	assert.Contains(t, err.Error(), "zip")
	assert.Contains(t, err.Error(), "width")
}

func TestLosslessRetainsQuality(t *testing.T) {
	store := NewStore(Default(), "")
	require.NoError(t, store.SetQuality(65))
	require.NoError(t, store.SetCompression(CompressionLossless))

	opts := store.Options()
	assert.Equal(t, 65, opts.Quality)
	assert.Zero(t, opts.EffectiveQuality())

	require.NoError(t, store.SetCompression(CompressionLossy))
	assert.Equal(t, 65, store.Options().EffectiveQuality())
}

func TestEffectiveQualityIgnoresLosslessFormats(t *testing.T) {
	opts := Default()
	opts.Format = FormatPNG
	assert.Zero(t, opts.EffectiveQuality())
}

func TestStoreRejectsInvalidUpdate(t *testing.T) {
	store := NewStore(Default(), "/out")
	err := store.SetQuality(101)
	require.Error(t, err)
	assert.Equal(t, DefaultQuality, store.Options().Quality)
	assert.Equal(t, "/out", store.OutputDir())
}

func TestStoreResizeIsCopied(t *testing.T) {
	store := NewStore(Default(), "")
	width := 800
	require.NoError(t, store.SetResize(&width, nil))
	width = 1

	opts := store.Options()
	require.NotNil(t, opts.ResizeWidth)
	assert.Equal(t, 800, *opts.ResizeWidth)
	assert.Nil(t, opts.ResizeHeight)
	assert.True(t, opts.Resize())

	*opts.ResizeWidth = 10
	assert.Equal(t, 800, *store.Options().ResizeWidth)
}

func TestStorePartialUpdates(t *testing.T) {
	store := NewStore(Default(), "")
	require.NoError(t, store.SetFormat(FormatPNG))
	require.NoError(t, store.SetKeepMetadata(true))
	store.SetOutputDir("/exports")

	opts := store.Options()
	assert.Equal(t, FormatPNG, opts.Format)
	assert.True(t, opts.KeepMetadata)
	assert.Equal(t, DefaultQuality, opts.Quality)
	assert.Equal(t, "/exports", store.OutputDir())

	assert.Error(t, store.SetFormat(Format("heic")))
	assert.Equal(t, FormatPNG, store.Options().Format)
}
