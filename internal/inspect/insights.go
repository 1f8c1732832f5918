package inspect

import (
	"fmt"
	"strconv"
	"strings"
)

// buildInsights turns raw details into short notes for the info command.
func buildInsights(details []Detail) []Insight {
	values := map[string]string{}
	for _, d := range details {
		for _, entry := range d.Values {
			key, value, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if _, seen := values[key]; !seen {
				values[key] = strings.TrimSpace(value)
			}
		}
	}
	if len(values) == 0 {
		return nil
	}

	var insights []Insight
	if lat, lon, ok := coordinates(values); ok {
		insights = append(insights, Insight{Kind: "Location", Message: fmt.Sprintf("Approx location: %.5f, %.5f", lat, lon)})
	}
	if device := strings.TrimSpace(values["Make"] + " " + values["Model"]); device != "" {
		insights = append(insights, Insight{Kind: "Device", Message: "Device: " + device})
	}
	for _, key := range []string{"DateTimeOriginal", "DateTimeDigitized", "DateTime"} {
		if ts := values[key]; ts != "" {
			insights = append(insights, Insight{Kind: "Timeline", Message: "Captured: " + strings.Replace(ts, ":", "-", 2)})
			break
		}
	}
	for key := range values {
		if strings.Contains(strings.ToLower(key), "serial") {
			insights = append(insights, Insight{Kind: "Identifier", Message: "Device serial numbers are present."})
			break
		}
	}
	return insights
}

func coordinates(values map[string]string) (float64, float64, bool) {
	lat, okLat := parseDegrees(values["GPSLatitude"])
	lon, okLon := parseDegrees(values["GPSLongitude"])
	if !okLat || !okLon {
		return 0, 0, false
	}
	if values["GPSLatitudeRef"] == "S" {
		lat = -lat
	}
	if values["GPSLongitudeRef"] == "W" {
		lon = -lon
	}
	return lat, lon, true
}

// parseDegrees reads "[d/1 m/1 s/100]" style rationals or a plain float.
func parseDegrees(raw string) (float64, bool) {
	parts := strings.Fields(strings.Trim(strings.TrimSpace(raw), "[]"))
	if len(parts) == 0 {
		return 0, false
	}

	scale := 1.0
	total := 0.0
	for _, part := range parts[:min(len(parts), 3)] {
		v, ok := parseRational(part)
		if !ok {
			return 0, false
		}
		total += v / scale
		scale *= 60
	}
	return total, true
}

func parseRational(s string) (float64, bool) {
	num, den, isFraction := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if !isFraction {
		return n, true
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, false
	}
	return n / d, true
}
