package domain

import "math"

// HeatMap is an hour-by-day grid of one hourly metric.
type HeatMap struct {
	Metric string      `json:"metric"`
	Unit   string      `json:"unit"`
	Days   int         `json:"days"`
	Values [][]float64 `json:"values"` // [hour 0-23][day]
	Min    float64     `json:"min"`
	Max    float64     `json:"max"`
}

// DryBulbHeatMap arranges dry bulb temperature as a 24 x days grid.
func DryBulbHeatMap(epw *EPW) HeatMap {
	days := len(epw.Records) / 24
	hm := HeatMap{
		Metric: "Dry Bulb Temperature",
		Unit:   "C",
		Days:   days,
		Values: make([][]float64, 24),
		Min:    math.Inf(1),
		Max:    math.Inf(-1),
	}
	for h := range hm.Values {
		hm.Values[h] = make([]float64, days)
	}
	for i, r := range epw.Records[:days*24] {
		v := r.DryBulb
		hm.Values[i%24][i/24] = v
		hm.Min = math.Min(hm.Min, v)
		hm.Max = math.Max(hm.Max, v)
	}
	if days == 0 {
		hm.Min, hm.Max = 0, 0
	}
	return hm
}

// DiurnalHour is the average of one hour of the day over a month.
type DiurnalHour struct {
	Hour              int     `json:"hour"`
	DryBulb           float64 `json:"dry_bulb"`
	DewPoint          float64 `json:"dew_point"`
	GlobalHorizontal  float64 `json:"global_horizontal"`
	DirectNormal      float64 `json:"direct_normal"`
	DiffuseHorizontal float64 `json:"diffuse_horizontal"`
}

// DiurnalMonth is the average day of one month.
type DiurnalMonth struct {
	Month  int           `json:"month"`
	Hourly []DiurnalHour `json:"hourly"`
}

// DiurnalChart holds the monthly average days of a weather file.
type DiurnalChart struct {
	Months []DiurnalMonth `json:"months"`
}

// DiurnalAverages averages every hour of the day within each month.
func DiurnalAverages(epw *EPW) DiurnalChart {
	var sums [12][24]DiurnalHour
	var counts [12][24]int

	for _, r := range epw.Records {
		m, h := r.Month-1, r.Hour-1
		s := &sums[m][h]
		s.DryBulb += r.DryBulb
		s.DewPoint += r.DewPoint
		s.GlobalHorizontal += r.GlobalHorizontal
		s.DirectNormal += r.DirectNormal
		s.DiffuseHorizontal += r.DiffuseHorizontal
		counts[m][h]++
	}

	chart := DiurnalChart{Months: make([]DiurnalMonth, 12)}
	for m := range 12 {
		month := DiurnalMonth{Month: m + 1, Hourly: make([]DiurnalHour, 24)}
		for h := range 24 {
			avg := DiurnalHour{Hour: h}
			if n := float64(counts[m][h]); n > 0 {
				s := sums[m][h]
				avg.DryBulb = round2(s.DryBulb / n)
				avg.DewPoint = round2(s.DewPoint / n)
				avg.GlobalHorizontal = round2(s.GlobalHorizontal / n)
				avg.DirectNormal = round2(s.DirectNormal / n)
				avg.DiffuseHorizontal = round2(s.DiffuseHorizontal / n)
			}
			month.Hourly[h] = avg
		}
		chart.Months[m] = month
	}
	return chart
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
