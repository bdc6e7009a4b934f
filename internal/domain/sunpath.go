package domain

import "math"

const deg = math.Pi / 180

// Point3 is a point in the sun-path frame (Y north, Z up).
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SunPosition is the apparent position of the sun in degrees.
type SunPosition struct {
	Altitude float64 `json:"altitude"`
	Azimuth  float64 `json:"azimuth"` // clockwise from north
}

// SunPath is the 3D geometry of a location's sun path.
type SunPath struct {
	Location  Location    `json:"location"`
	Radius    float64     `json:"radius"`
	Compass   []Point3    `json:"compass"`
	Analemmas [][]Point3  `json:"analemmas"`
	DailyArcs [][]Point3  `json:"daily_arcs"`
	ArcMonths []int       `json:"arc_months"`
	Solstice  SunPosition `json:"summer_solstice_noon"`
}

// SunpathFileName is the scratch file name of a location's sun-path geometry.
func SunpathFileName(loc Location) string {
	return SafeName(loc.City) + "_sunpath.json"
}

// SolarPosition returns the sun position for a day of year (1-366) and local
// standard time in decimal hours.
func SolarPosition(loc Location, doy int, hour float64) SunPosition {
	gamma := 2 * math.Pi / 365 * (float64(doy-1) + (hour-12)/24)

	eqTime := 229.18 * (0.000075 + 0.001868*math.Cos(gamma) - 0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) - 0.040849*math.Sin(2*gamma))
	decl := 0.006918 - 0.399912*math.Cos(gamma) + 0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) + 0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) + 0.00148*math.Sin(3*gamma)

	offset := eqTime + 4*loc.Longitude - 60*loc.TimeZone
	trueSolar := hour*60 + offset
	ha := (trueSolar/4 - 180) * deg

	lat := loc.Latitude * deg
	cosZen := math.Sin(lat)*math.Sin(decl) + math.Cos(lat)*math.Cos(decl)*math.Cos(ha)
	cosZen = math.Max(-1, math.Min(1, cosZen))
	alt := 90 - math.Acos(cosZen)/deg

	az := math.Atan2(math.Sin(ha), math.Cos(ha)*math.Sin(lat)-math.Tan(decl)*math.Cos(lat))/deg + 180
	az = math.Mod(az+360, 360)

	return SunPosition{Altitude: alt, Azimuth: az}
}

// Point projects a sun position onto the sun-path sphere.
func (p SunPosition) Point(radius float64) Point3 {
	alt, az := p.Altitude*deg, p.Azimuth*deg
	return Point3{
		X: radius * math.Cos(alt) * math.Sin(az),
		Y: radius * math.Cos(alt) * math.Cos(az),
		Z: radius * math.Sin(alt),
	}
}

// NewSunPath builds the hourly analemmas, the daily arcs for the 21st of
// every month, and the horizon compass for a location.
func NewSunPath(loc Location, radius float64) SunPath {
	sp := SunPath{
		Location:  loc,
		Radius:    radius,
		ArcMonths: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}

	for i := range 72 {
		a := float64(i) * 5 * deg
		sp.Compass = append(sp.Compass, Point3{X: radius * math.Sin(a), Y: radius * math.Cos(a)})
	}

	for hour := range 24 {
		var line []Point3
		for day := 1; day <= 365; day++ {
			line = appendAboveHorizon(&sp.Analemmas, line, SolarPosition(loc, day, float64(hour)), radius)
		}
		flushLine(&sp.Analemmas, line)
	}

	for _, month := range sp.ArcMonths {
		doy := dayOfYear(month, 21)
		var line []Point3
		for minute := 0; minute <= 24*60; minute += 10 {
			line = appendAboveHorizon(&sp.DailyArcs, line, SolarPosition(loc, doy, float64(minute)/60), radius)
		}
		flushLine(&sp.DailyArcs, line)
	}

	sp.Solstice = solarNoon(loc, dayOfYear(6, 21))
	return sp
}

// appendAboveHorizon extends the current polyline, closing it when the sun sets.
func appendAboveHorizon(lines *[][]Point3, line []Point3, pos SunPosition, radius float64) []Point3 {
	if pos.Altitude <= 0 {
		flushLine(lines, line)
		return nil
	}
	return append(line, pos.Point(radius))
}

func flushLine(lines *[][]Point3, line []Point3) {
	if len(line) > 1 {
		*lines = append(*lines, line)
	}
}

// solarNoon scans a day in one-minute steps for the highest sun.
func solarNoon(loc Location, doy int) SunPosition {
	best := SunPosition{Altitude: -90}
	for minute := 0; minute < 24*60; minute++ {
		if p := SolarPosition(loc, doy, float64(minute)/60); p.Altitude > best.Altitude {
			best = p
		}
	}
	return best
}

var cumulativeDays = [12]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

func dayOfYear(month, day int) int {
	return cumulativeDays[month-1] + day
}
