package inspect

import (
	"io"
	"sort"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// exifAnalysis summarizes the privacy-relevant tags of an EXIF block.
type exifAnalysis struct {
	HasGPS       bool
	GPSCount     int
	HasModel     bool
	HasTimestamp bool
	SerialCount  int
	Values       map[string][]string
}

func analyzeExif(rs io.ReadSeeker) (exifAnalysis, error) {
	analysis := exifAnalysis{Values: make(map[string][]string)}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return analysis, err
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		if isNoExif(err) {
			return analysis, nil
		}
		return analysis, err
	}

	for _, tag := range tags {
		name := tag.TagName
		lower := strings.ToLower(name)
		tracked := false

		if strings.HasPrefix(name, "GPS") || strings.Contains(tag.IfdPath, "GPS") {
			analysis.HasGPS = true
			analysis.GPSCount++
			tracked = true
		}
		if name == "Model" || name == "CameraModelName" {
			analysis.HasModel = true
			tracked = true
		}
		if name == "Make" {
			tracked = true
		}
		if name == "DateTimeOriginal" || name == "DateTimeDigitized" || name == "DateTime" {
			analysis.HasTimestamp = true
			tracked = true
		}
		if strings.Contains(lower, "serial") {
			analysis.SerialCount++
			tracked = true
		}

		if tracked {
			analysis.Values[name] = append(analysis.Values[name], strings.TrimSpace(tag.Formatted))
		}
	}

	return analysis, nil
}

func (a exifAnalysis) details() []Detail {
	var details []Detail
	add := func(category string, keys func(string) bool) {
		var values []string
		for key, vals := range a.Values {
			if !keys(key) {
				continue
			}
			for _, v := range vals {
				values = append(values, key+"="+v)
			}
		}
		if len(values) > 0 {
			sort.Strings(values)
			details = append(details, Detail{Category: category, Values: values})
		}
	}

	add(CategoryGPS, func(k string) bool { return strings.HasPrefix(k, "GPS") })
	add(CategoryDevice, func(k string) bool { return k == "Make" || k == "Model" || k == "CameraModelName" })
	add(CategoryTimestamp, func(k string) bool { return strings.HasPrefix(k, "DateTime") })
	add(CategorySerial, func(k string) bool { return strings.Contains(strings.ToLower(k), "serial") })
	return details
}

func isNoExif(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no exif")
}
