package imaging

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"crunch/pkg/imgutil"
)

// Metadata is the raw metadata carried from a source file into an output of
// the same container family.
type Metadata struct {
	Kind      imgutil.Kind
	Fragments [][]byte
}

// Empty reports whether there is nothing to carry.
func (m Metadata) Empty() bool {
	return len(m.Fragments) == 0
}

var (
	jpegExifHeader = []byte("Exif\x00\x00")
	jpegXmpHeader  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	jpegPhotoshop  = []byte("Photoshop 3.0\x00")
	jpegICCHeader  = []byte("ICC_PROFILE\x00")

	pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
)

// ReadMetadata collects EXIF, XMP, IPTC and ICC segments from a JPEG, or
// text, time, eXIf and iCCP chunks from a PNG. Other kinds carry nothing.
func ReadMetadata(r io.Reader, kind imgutil.Kind) (Metadata, error) {
	md := Metadata{Kind: kind}
	var err error
	switch kind {
	case imgutil.KindJPEG:
		md.Fragments, err = readJPEGSegments(r)
	case imgutil.KindPNG:
		md.Fragments, err = readPNGChunks(r)
	}
	return md, err
}

// Splice inserts md into an encoded image of kind. Metadata from a
// different container family is dropped and encoded is returned unchanged.
func Splice(encoded []byte, kind imgutil.Kind, md Metadata) ([]byte, error) {
	if md.Empty() || md.Kind != kind {
		return encoded, nil
	}
	switch kind {
	case imgutil.KindJPEG:
		return spliceJPEG(encoded, md.Fragments)
	case imgutil.KindPNG:
		return splicePNG(encoded, md.Fragments)
	default:
		return encoded, nil
	}
}

// readJPEGSegments walks markers up to the first scan and returns each kept
// segment verbatim, marker and length included.
func readJPEGSegments(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return nil, err
	}
	if soi[0] != 0xff || soi[1] != 0xd8 {
		return nil, fmt.Errorf("invalid JPEG SOI")
	}

	var kept [][]byte
	for {
		markerPrefix, err := br.ReadByte()
		if err != nil {
			return kept, err
		}
		for markerPrefix != 0xff {
			markerPrefix, err = br.ReadByte()
			if err != nil {
				return kept, err
			}
		}

		marker, err := br.ReadByte()
		if err != nil {
			return kept, err
		}
		for marker == 0xff {
			marker, err = br.ReadByte()
			if err != nil {
				return kept, err
			}
		}

		// EOI or SOS: no metadata past this point.
		if marker == 0xd9 || marker == 0xda {
			return kept, nil
		}
		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			continue
		}

		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(br, lenBuf); err != nil {
			return kept, err
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf))
		if segLen < 2 {
			return kept, fmt.Errorf("invalid JPEG segment length")
		}
		payload := make([]byte, segLen-2)
		if _, err := io.ReadFull(br, payload); err != nil {
			return kept, err
		}

		if isJPEGMetadataSegment(marker, payload) {
			seg := make([]byte, 0, 2+segLen)
			seg = append(seg, 0xff, marker)
			seg = append(seg, lenBuf...)
			seg = append(seg, payload...)
			kept = append(kept, seg)
		}
	}
}

func isJPEGMetadataSegment(marker byte, payload []byte) bool {
	switch marker {
	case 0xe1:
		return bytes.HasPrefix(payload, jpegExifHeader) || bytes.HasPrefix(payload, jpegXmpHeader)
	case 0xed:
		return bytes.HasPrefix(payload, jpegPhotoshop)
	case 0xe2:
		return bytes.HasPrefix(payload, jpegICCHeader)
	}
	return false
}

// spliceJPEG places segments directly after SOI.
func spliceJPEG(encoded []byte, segments [][]byte) ([]byte, error) {
	if len(encoded) < 2 || encoded[0] != 0xff || encoded[1] != 0xd8 {
		return nil, fmt.Errorf("invalid JPEG SOI")
	}
	size := len(encoded)
	for _, seg := range segments {
		size += len(seg)
	}
	out := make([]byte, 0, size)
	out = append(out, encoded[:2]...)
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return append(out, encoded[2:]...), nil
}

func isPNGMetadataChunk(name string) bool {
	switch name {
	case "tEXt", "zTXt", "iTXt", "eXIf", "tIME", "iCCP":
		return true
	default:
		return false
	}
}

// readPNGChunks returns each kept chunk verbatim, length and CRC included.
func readPNGChunks(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)

	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, fmt.Errorf("invalid PNG signature")
	}

	var kept [][]byte
	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				return kept, nil
			}
			return kept, err
		}
		length := binary.BigEndian.Uint32(header[:4])
		name := string(header[4:8])

		if !isPNGMetadataChunk(name) {
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return kept, err
			}
			if name == "IEND" {
				return kept, nil
			}
			continue
		}

		chunk := make([]byte, 8+int(length)+4)
		copy(chunk, header)
		if _, err := io.ReadFull(br, chunk[8:]); err != nil {
			return kept, err
		}
		kept = append(kept, chunk)
	}
}

// pngIHDREnd is the offset just past the signature and the fixed-size IHDR
// chunk that every encoder writes first.
const pngIHDREnd = 8 + 8 + 13 + 4

// splicePNG places chunks right after IHDR, which keeps iCCP ahead of PLTE
// and IDAT as PNG requires.
func splicePNG(encoded []byte, chunks [][]byte) ([]byte, error) {
	if len(encoded) < pngIHDREnd || !bytes.Equal(encoded[:8], pngSignature) || string(encoded[12:16]) != "IHDR" {
		return nil, fmt.Errorf("invalid PNG header")
	}
	size := len(encoded)
	for _, c := range chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	out = append(out, encoded[:pngIHDREnd]...)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return append(out, encoded[pngIHDREnd:]...), nil
}
