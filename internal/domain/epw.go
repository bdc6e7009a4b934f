package domain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	epwHeaderLines = 8
	epwMinFields   = 22

	// HoursPerYear is the record count of a non-leap EPW file.
	HoursPerYear = 8760
	// HoursPerLeapYear is the record count of a leap-year EPW file.
	HoursPerLeapYear = 8784
)

// ErrInvalidEPW is wrapped by every parse failure.
var ErrInvalidEPW = errors.New("invalid epw")

// Location is the site described by the EPW LOCATION header.
type Location struct {
	City      string  `json:"city"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	Source    string  `json:"source,omitempty"`
	StationID string  `json:"station_id,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	TimeZone  float64 `json:"time_zone"`
	Elevation float64 `json:"elevation"`
}

// HourlyRecord holds the fields of one EPW data line used by the dashboard.
type HourlyRecord struct {
	Year                int
	Month               int
	Day                 int
	Hour                int // 1-24, hour ending
	Minute              int
	DryBulb             float64
	DewPoint            float64
	RelativeHumidity    float64
	AtmosphericPressure float64
	GlobalHorizontal    float64
	DirectNormal        float64
	DiffuseHorizontal   float64
	WindDirection       float64
	WindSpeed           float64
}

// EPW is a parsed weather file.
type EPW struct {
	Location Location
	Header   []string
	Records  []HourlyRecord
}

// IsLeapYear reports whether the file carries 8784 hourly records.
func (e *EPW) IsLeapYear() bool {
	return len(e.Records) == HoursPerLeapYear
}

// ParseEPW reads an EPW file. The file must carry the eight header lines and
// a full year of hourly records.
func ParseEPW(r io.Reader) (*EPW, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	epw := &EPW{
		Header:  make([]string, 0, epwHeaderLines),
		Records: make([]HourlyRecord, 0, HoursPerYear),
	}

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}

		if line <= epwHeaderLines {
			epw.Header = append(epw.Header, text)
			if line == 1 {
				loc, err := parseLocation(text)
				if err != nil {
					return nil, err
				}
				epw.Location = loc
			}
			continue
		}

		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := parseRecord(strings.Split(text, ","))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidEPW, line, err)
		}
		epw.Records = append(epw.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read epw: %w", err)
	}

	if len(epw.Header) < epwHeaderLines {
		return nil, fmt.Errorf("%w: expected %d header lines, got %d", ErrInvalidEPW, epwHeaderLines, len(epw.Header))
	}
	if n := len(epw.Records); n != HoursPerYear && n != HoursPerLeapYear {
		return nil, fmt.Errorf("%w: expected %d or %d hourly records, got %d", ErrInvalidEPW, HoursPerYear, HoursPerLeapYear, n)
	}
	return epw, nil
}

func parseLocation(line string) (Location, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 10 || !strings.EqualFold(strings.TrimSpace(fields[0]), "LOCATION") {
		return Location{}, fmt.Errorf("%w: first line is not a LOCATION header", ErrInvalidEPW)
	}

	nums := make([]float64, 4)
	for i, name := range []string{"latitude", "longitude", "time zone", "elevation"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[6+i]), 64)
		if err != nil {
			return Location{}, fmt.Errorf("%w: location %s %q", ErrInvalidEPW, name, fields[6+i])
		}
		nums[i] = v
	}
	if nums[0] < -90 || nums[0] > 90 || nums[1] < -180 || nums[1] > 180 {
		return Location{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidEPW)
	}

	city := strings.TrimSpace(fields[1])
	if city == "" {
		city = "unknown"
	}
	return Location{
		City:      city,
		State:     strings.TrimSpace(fields[2]),
		Country:   strings.TrimSpace(fields[3]),
		Source:    strings.TrimSpace(fields[4]),
		StationID: strings.TrimSpace(fields[5]),
		Latitude:  nums[0],
		Longitude: nums[1],
		TimeZone:  nums[2],
		Elevation: nums[3],
	}, nil
}

func parseRecord(fields []string) (HourlyRecord, error) {
	if len(fields) < epwMinFields {
		return HourlyRecord{}, fmt.Errorf("expected at least %d fields, got %d", epwMinFields, len(fields))
	}

	ints := make([]int, 5)
	for i := range ints {
		v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return HourlyRecord{}, fmt.Errorf("field %d: %w", i, err)
		}
		ints[i] = v
	}
	if ints[1] < 1 || ints[1] > 12 || ints[2] < 1 || ints[2] > 31 || ints[3] < 1 || ints[3] > 24 {
		return HourlyRecord{}, fmt.Errorf("date %d/%d hour %d out of range", ints[1], ints[2], ints[3])
	}

	floatAt := func(i int) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return 0, fmt.Errorf("field %d: %w", i, err)
		}
		return v, nil
	}

	idx := []int{6, 7, 8, 9, 13, 14, 15, 20, 21}
	vals := make([]float64, len(idx))
	for i, fi := range idx {
		v, err := floatAt(fi)
		if err != nil {
			return HourlyRecord{}, err
		}
		vals[i] = v
	}

	return HourlyRecord{
		Year:                ints[0],
		Month:               ints[1],
		Day:                 ints[2],
		Hour:                ints[3],
		Minute:              ints[4],
		DryBulb:             vals[0],
		DewPoint:            vals[1],
		RelativeHumidity:    vals[2],
		AtmosphericPressure: vals[3],
		GlobalHorizontal:    vals[4],
		DirectNormal:        vals[5],
		DiffuseHorizontal:   vals[6],
		WindDirection:       vals[7],
		WindSpeed:           vals[8],
	}, nil
}
