package inspect

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// scanPNGText collects the keys of text chunks and flags a tIME chunk.
func scanPNGText(rs io.ReadSeeker) ([]Detail, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	br := bufio.NewReader(rs)
	sig := make([]byte, 8)
	if _, err := io.ReadFull(br, sig); err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}

	byCategory := map[string][]string{}
	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		length := binary.BigEndian.Uint32(header[:4])
		name := string(header[4:8])

		switch name {
		case "tEXt", "zTXt", "iTXt":
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return nil, err
			}
			if _, err := io.CopyN(io.Discard, br, 4); err != nil {
				return nil, err
			}
			key, value := splitPNGText(name, data)
			if category := categoryForKey(key); category != "" {
				byCategory[category] = append(byCategory[category], key+"="+value)
			}
		case "tIME":
			byCategory[CategoryTimestamp] = append(byCategory[CategoryTimestamp], "tIME=present")
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return nil, err
			}
		default:
			if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
				return nil, err
			}
		}

		if name == "IEND" {
			break
		}
	}

	var details []Detail
	for _, category := range categoryOrder {
		if values := byCategory[category]; len(values) > 0 {
			details = append(details, Detail{Category: category, Values: values})
		}
	}
	return details, nil
}

// splitPNGText returns the keyword and, for uncompressed tEXt, the text.
func splitPNGText(chunk string, data []byte) (string, string) {
	idx := bytes.IndexByte(data, 0)
	if idx <= 0 {
		return "", ""
	}
	key := string(data[:idx])
	if chunk != "tEXt" {
		return key, "(compressed)"
	}
	return key, string(data[idx+1:])
}

func categoryForKey(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "gps"), strings.Contains(lower, "latitude"), strings.Contains(lower, "longitude"):
		return CategoryGPS
	case strings.Contains(lower, "model"), strings.Contains(lower, "make"):
		return CategoryDevice
	case strings.Contains(lower, "date"), strings.Contains(lower, "time"):
		return CategoryTimestamp
	case strings.Contains(lower, "serial"):
		return CategorySerial
	default:
		return ""
	}
}
