package domain

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WeaFileName is the scratch file name of the WEA derived from an EPW.
func WeaFileName(loc Location) string {
	return SafeName(loc.City) + ".wea"
}

// WriteWea writes the Radiance WEA form of the file's direct normal and
// diffuse horizontal radiation.
func WriteWea(w io.Writer, epw *EPW) error {
	bw := bufio.NewWriter(w)
	loc := epw.Location

	_, err := fmt.Fprintf(bw,
		"place %s\nlatitude %.2f\nlongitude %.2f\ntime_zone %d\nsite_elevation %.1f\nweather_data_file_units 1\n",
		strings.ReplaceAll(loc.City, " ", "_"),
		loc.Latitude,
		-loc.Longitude,
		int(-loc.TimeZone*15),
		loc.Elevation,
	)
	if err != nil {
		return fmt.Errorf("write wea header: %w", err)
	}

	for _, r := range epw.Records {
		_, err := fmt.Fprintf(bw, "%d %d %.3f %d %d\n",
			r.Month, r.Day, float64(r.Hour)-0.5, int(r.DirectNormal), int(r.DiffuseHorizontal))
		if err != nil {
			return fmt.Errorf("write wea record: %w", err)
		}
	}
	return bw.Flush()
}

// SafeName turns a location label into a file-name stem.
func SafeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case r < 0x20:
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "unknown"
	}
	return out
}
