package inspect

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crunch/pkg/imgutil"
)

func TestFilePNGWithMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.png")
	require.NoError(t, buildPNGWithMetadata(path))

	info, err := File(path)
	require.NoError(t, err)

	assert.Equal(t, imgutil.KindPNG, info.Kind)
	assert.Equal(t, 2, info.Width)
	assert.Equal(t, 1, info.Height)
	assert.Positive(t, info.SizeBytes)
	assert.True(t, hasDetail(info.Details, CategoryDevice))
	assert.True(t, hasDetail(info.Details, CategoryTimestamp))
	assert.False(t, hasDetail(info.Details, CategoryGPS))

	require.NotEmpty(t, info.Insights)
	assert.Equal(t, "Device", info.Insights[0].Kind)
	assert.Equal(t, "Device: TestCam", info.Insights[0].Message)
}

func TestFilePlainPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 5, 4))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	info, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, 5, info.Width)
	assert.Empty(t, info.Details)
	assert.Empty(t, info.Insights)
}

func TestFileRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.png")
	require.NoError(t, os.WriteFile(path, []byte("just some text here"), 0o644))

	_, err := File(path)
	assert.Error(t, err)
}

func TestBuildInsightsGPS(t *testing.T) {
	insights := buildInsights([]Detail{{
		Category: CategoryGPS,
		Values: []string{
			"GPSLatitude=[40/1 26/1 4620/100]",
			"GPSLatitudeRef=N",
			"GPSLongitude=[79/1 58/1 5600/100]",
			"GPSLongitudeRef=W",
		},
	}})

	require.Len(t, insights, 1)
	assert.Equal(t, "Location", insights[0].Kind)
	assert.Equal(t, "Approx location: 40.44617, -79.98222", insights[0].Message)
}

func TestParseDegrees(t *testing.T) {
	v, ok := parseDegrees("12.5")
	require.True(t, ok)
	assert.InDelta(t, 12.5, v, 1e-9)

	_, ok = parseDegrees("[1/0]")
	assert.False(t, ok)
}

func hasDetail(details []Detail, category string) bool {
	for _, d := range details {
		if d.Category == category && len(d.Values) > 0 {
			return true
		}
	}
	return false
}

func buildPNGWithMetadata(path string) error {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	data := buf.Bytes()

	insertAt := len(data) - 12
	out := append([]byte{}, data[:insertAt]...)
	out = append(out, buildPNGChunk("tEXt", []byte("Model\x00TestCam"))...)
	out = append(out, buildPNGChunk("tIME", []byte{0x07, 0xE8, 0x01, 0x02, 0x03, 0x04, 0x05})...)
	out = append(out, data[insertAt:]...)

	return os.WriteFile(path, out, 0o644)
}

func buildPNGChunk(chunkType string, data []byte) []byte {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	crcBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBuf, crc32.ChecksumIEEE(append([]byte(chunkType), data...)))

	chunk := make([]byte, 0, 12+len(data))
	chunk = append(chunk, lenBuf...)
	chunk = append(chunk, chunkType...)
	chunk = append(chunk, data...)
	return append(chunk, crcBuf...)
}
