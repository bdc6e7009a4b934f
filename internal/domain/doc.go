// Package domain models EnergyPlus Weather (EPW) data, the files and charts
// derived from it, and the Pollination cloud resources the dashboard drives.
//
// # Data Source
//
// EPW files are plain-text, comma-separated hourly climate records published
// by the EnergyPlus project and climate.onebuilding.org. The dashboard accepts
// user uploads and falls back to a bundled sample for Chicago O'Hare.
//
// # EPW Layout
//
// Eight header lines precede the data:
//
//	LOCATION,<city>,<state>,<country>,<source>,<WMO>,<lat>,<lon>,<tz>,<elevation>
//	DESIGN CONDITIONS,...
//	TYPICAL/EXTREME PERIODS,...
//	GROUND TEMPERATURES,...
//	HOLIDAYS/DAYLIGHT SAVINGS,...
//	COMMENTS 1,...
//	COMMENTS 2,...
//	DATA PERIODS,...
//
// Latitude is north-positive, longitude east-positive and the time zone is
// hours from GMT (Chicago is -6.0). Each data line carries 35 fields; the ones
// read here are:
//
//	0 year | 1 month | 2 day | 3 hour (1-24, hour ending) | 4 minute
//	6 dry bulb (C) | 7 dew point (C) | 8 relative humidity (%)
//	9 atmospheric pressure (Pa)
//	13 global horizontal | 14 direct normal | 15 diffuse horizontal (Wh/m2)
//	20 wind direction (deg) | 21 wind speed (m/s)
//
// A full year has 8760 records, or 8784 in a leap year. Missing values use
// per-field sentinels (99.9, 999, 9999, 999999) and are passed through.
//
// # WEA Conversion
//
// The Radiance WEA format uses the opposite sign convention to EPW: longitude
// and time zone meridian are west-positive, and the time zone is expressed in
// degrees (hours x 15). Hourly values are stamped at the middle of the hour,
// so EPW hour 1 becomes 0.5. See [WriteWea].
//
// # Sun Path
//
// Sun positions use the NOAA general solar position equations (fractional
// year, equation of time, declination). Accuracy is within about a degree,
// which is plenty for a visual sun path. Geometry is emitted in a right-handed
// frame with Y pointing north and Z up. See [NewSunPath].
package domain
