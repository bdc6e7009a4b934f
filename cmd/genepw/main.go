// Command genepw writes the synthetic sample year bundled with the dashboard.
// The values follow smooth seasonal and diurnal curves and the radiation
// follows the computed sun altitude, so charts and sun paths look plausible
// without shipping a licensed weather file.
//
// Usage:
//
//	go run ./cmd/genepw -out internal/assets/chicago.epw
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/couchcryptid/early-design-app/internal/domain"
)

const (
	sampleYear = 2001
	dataSource = "?9?9?9?9E0?9?9?9*9*9?9?9?9?9?9?9?9?9?9*_*9*9*9?9?9"
)

var chicago = domain.Location{
	City:      "Chicago Ohare Intl Ap",
	State:     "IL",
	Country:   "USA",
	Source:    "SYNTH",
	StationID: "725300",
	Latitude:  41.98,
	Longitude: -87.92,
	TimeZone:  -6,
	Elevation: 201,
}

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the sample EPW file")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range header(chicago) {
		fmt.Fprintln(w, line)
	}

	doy := 0
	for m, days := range daysInMonth {
		for d := 1; d <= days; d++ {
			doy++
			for h := 1; h <= 24; h++ {
				fmt.Fprintln(w, record(chicago, m+1, d, doy, h))
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	log.Printf("wrote %d hourly records to %s", doy*24, *out)
	return nil
}

func header(loc domain.Location) []string {
	return []string{
		fmt.Sprintf("LOCATION,%s,%s,%s,%s,%s,%.2f,%.2f,%.1f,%.1f",
			loc.City, loc.State, loc.Country, loc.Source, loc.StationID,
			loc.Latitude, loc.Longitude, loc.TimeZone, loc.Elevation),
		"DESIGN CONDITIONS,0",
		"TYPICAL/EXTREME PERIODS,0",
		"GROUND TEMPERATURES,0",
		"HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0",
		"COMMENTS 1,Synthetic sample year written by cmd/genepw",
		"COMMENTS 2,Smooth seasonal and diurnal curves; not for design use",
		"DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31",
	}
}

func record(loc domain.Location, month, day, doy, hour int) string {
	seasonal := -math.Cos(2 * math.Pi * float64(doy-15) / 365)
	diurnal := math.Sin(2 * math.Pi * float64(hour-10) / 24)

	dryBulb := round1(10 + 14*seasonal + 5*diurnal)
	dewPoint := round1(dryBulb - 4 - 2*(1+diurnal))
	rh := int(math.Round(70 - 15*diurnal))
	pressure := 99000 + int(math.Round(600*math.Cos(2*math.Pi*float64(doy)/30)))

	var ghr, dnr, dhr int
	alt := domain.SolarPosition(loc, doy, float64(hour)-0.5).Altitude
	if alt > 0 {
		s := math.Sin(alt * math.Pi / 180)
		dnr = int(math.Round(700 * math.Sqrt(s)))
		dhr = int(math.Round(120*s + 20))
		ghr = int(math.Round(float64(dnr)*s)) + dhr
	}

	windDir := (doy*37 + hour*11) % 360
	windSpeed := round1(2 + 3*math.Abs(math.Sin(float64(doy*hour))))

	return fmt.Sprintf("%d,%d,%d,%d,60,%s,%.1f,%.1f,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%.1f,%d,%d,%.1f,%d,%d,%d,%d,%.3f,%d,%d,%.3f,%.1f,%.1f",
		sampleYear, month, day, hour, dataSource,
		dryBulb, dewPoint, rh, pressure,
		9999, 9999, 300, ghr, dnr, dhr,
		999999, 999999, 999999, 9999,
		windDir, windSpeed,
		5, 3, 16.1, 77777, 9, 999999999, 10, 0.1, 0, 88, 0.2, 0.0, 1.0)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
