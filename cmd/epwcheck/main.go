// Command epwcheck parses an EPW weather file with the dashboard's parser and
// prints what the dashboard would derive from it: the location header, the
// record count, the dry-bulb range, the summer-solstice sun and the first
// lines of the WEA file.
//
// Usage:
//
//	go run ./cmd/epwcheck -epw weather.epw [-wea-lines 5] [-wea-out city.wea]
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/early-design-app/internal/assets"
	"github.com/couchcryptid/early-design-app/internal/domain"
)

func main() {
	epwPath := flag.String("epw", "", "path to the EPW file (defaults to the bundled sample)")
	weaLines := flag.Int("wea-lines", 8, "number of WEA lines to print")
	weaOut := flag.String("wea-out", "", "optional path to write the full WEA file to")
	flag.Parse()

	if err := run(*epwPath, *weaLines, *weaOut); err != nil {
		fmt.Fprintf(os.Stderr, "epwcheck: %v\n", err)
		os.Exit(1)
	}
}

func run(epwPath string, weaLines int, weaOut string) error {
	data := assets.SampleEPW()
	name := assets.SampleEPWName
	if epwPath != "" {
		var err error
		if data, err = os.ReadFile(epwPath); err != nil {
			return err
		}
		name = epwPath
	}

	epw, err := domain.ParseEPW(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	loc := epw.Location
	fmt.Printf("=== %s ===\n", name)
	fmt.Printf("City:      %s, %s, %s (%s %s)\n", loc.City, loc.State, loc.Country, loc.Source, loc.StationID)
	fmt.Printf("Position:  lat %.2f, lon %.2f, tz %+.1f, elev %.1f m\n", loc.Latitude, loc.Longitude, loc.TimeZone, loc.Elevation)
	fmt.Printf("Records:   %d (leap year: %t)\n", len(epw.Records), epw.IsLeapYear())

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range epw.Records {
		lo = math.Min(lo, r.DryBulb)
		hi = math.Max(hi, r.DryBulb)
	}
	fmt.Printf("Dry bulb:  %.1f to %.1f C\n", lo, hi)

	sp := domain.NewSunPath(loc, 100)
	fmt.Printf("Sun path:  %d analemmas, %d daily arcs, solstice noon altitude %.1f deg\n",
		len(sp.Analemmas), len(sp.DailyArcs), sp.Solstice.Altitude)

	var wea bytes.Buffer
	if err := domain.WriteWea(&wea, epw); err != nil {
		return err
	}

	fmt.Printf("\n%s (first %d lines):\n", domain.WeaFileName(loc), weaLines)
	sc := bufio.NewScanner(bytes.NewReader(wea.Bytes()))
	for i := 0; i < weaLines && sc.Scan(); i++ {
		fmt.Println("  " + sc.Text())
	}

	if weaOut != "" {
		if err := os.WriteFile(weaOut, wea.Bytes(), 0o600); err != nil {
			return err
		}
		fmt.Printf("\nwrote %s\n", weaOut)
	}
	return nil
}
