package weather

import (
	"time"

	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/metar"
	"github.com/yegors/co-wx/internal/physics"
)

// PreciseTemperature returns temperature and dewpoint in Celsius.
// The RMK T-group (tenths of a degree) wins over the whole-degree group.
func PreciseTemperature(r metar.Report) (temp, dew float64) {
	if r.Remarks != nil && r.Remarks.TempBreakdown != nil {
		return r.Remarks.TempBreakdown.Temperature, r.Remarks.TempBreakdown.Dewpoint
	}
	return float64(r.Temperature), float64(r.Dewpoint)
}

// deriveConditions computes Conditions for a decoded report.
// station may be nil when the report is not for a tracked station.
func deriveConditions(r metar.Report, station *config.StationConfig, at time.Time) *Conditions {
	temp, dew := PreciseTemperature(r)

	c := &Conditions{
		Temperature:      temp,
		Dewpoint:         dew,
		RelativeHumidity: physics.RelativeHumidity(temp, dew),
	}
	c.WindU, c.WindV = physics.WindComponents(float64(r.Wind.Direction), float64(r.Wind.Speed))

	if r.Altimeter != nil {
		inHg := physics.AltimeterInHg(*r.Altimeter)
		c.AltimeterInHg = &inHg
	}

	if station == nil || !station.HasLocation() {
		return c
	}

	elevation := float64(station.ElevationFeet)
	if c.AltimeterInHg != nil {
		pa := physics.PressureAltitude(elevation, *c.AltimeterInHg)
		da := physics.CalculateDensityAltitude(pa, temp)
		c.PressureAltitudeFt = &pa
		c.DensityAltitudeFt = &da
	}

	variation := physics.CalculateMagneticVariation(station.Latitude, station.Longitude, elevation, at)
	c.MagneticVariation = &variation

	// Calm winds carry no direction
	if r.Wind.Speed > 0 {
		magnetic := physics.TrueToMagnetic(float64(r.Wind.Direction), variation)
		c.WindDirectionMagnetic = &magnetic
	}

	return c
}
