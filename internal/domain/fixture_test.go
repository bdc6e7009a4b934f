package domain

import (
	"fmt"
	"strings"
	"testing"
)

const testLocationLine = "LOCATION,Denver Intl Ap,CO,USA,TMY3,725650,39.83,-104.65,-7.0,1650.0"

// buildEPW renders a full-year EPW whose dry bulb equals month*10 + hour/100,
// which makes averages easy to predict.
func buildEPW(t *testing.T, locationLine string, leap bool) string {
	t.Helper()

	days := [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if leap {
		days[1] = 29
	}

	var b strings.Builder
	b.WriteString(locationLine + "\n")
	for _, h := range []string{
		"DESIGN CONDITIONS,0",
		"TYPICAL/EXTREME PERIODS,0",
		"GROUND TEMPERATURES,0",
		"HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0",
		"COMMENTS 1,test fixture",
		"COMMENTS 2,",
		"DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31",
	} {
		b.WriteString(h + "\n")
	}
	for m, n := range days {
		for d := 1; d <= n; d++ {
			for h := 1; h <= 24; h++ {
				fmt.Fprintf(&b, "2001,%d,%d,%d,60,A7A7,%.2f,%.1f,50,101325,0,0,300,%d,%d,%d,0,0,0,0,%d,3.5,5,3,16.1,77777,9,999999999,10,0.1,0,88,0.2,0.0,1.0\n",
					m+1, d, h, float64((m+1)*10)+float64(h)/100, -2.0, h*10, h*5, h*2, h*15)
			}
		}
	}
	return b.String()
}
