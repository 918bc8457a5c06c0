package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	T0          = 288.15   // Standard Sea Level Temperature (K)
	L           = 0.0065   // Temperature Lapse Rate (K/m) in Troposphere
	ZeroCelsius = 273.15   // 0°C in Kelvin
	KnotsToMs   = 0.514444 // Conversion factor from Knots to m/s

	StandardAltimeterInHg = 29.92 // Standard altimeter setting (inHg)
	FeetPerInHg           = 1000  // Approximate pressure altitude change per inHg
	TropopauseAltFt       = 36089.2
	StratosphereTempK     = 216.65 // Constant temperature in Stratosphere

	// Magnus formula coefficients over water (Alduchov & Eskridge)
	magnusB = 17.625
	magnusC = 243.04
)

// AltimeterInHg converts an altimeter group value in hundredths (3001) to inHg (30.01)
func AltimeterInHg(hundredths uint) float64 {
	return float64(hundredths) / 100
}

// PressureAltitude returns pressure altitude in feet for a field elevation and altimeter setting
func PressureAltitude(elevationFt float64, altimeterInHg float64) float64 {
	return elevationFt + (StandardAltimeterInHg-altimeterInHg)*FeetPerInHg
}

// CalculateDensityAltitude returns density altitude in feet
func CalculateDensityAltitude(pressureAltFt float64, tempCelsius float64) float64 {
	// ISA Temp at pressure altitude
	isaTempK := T0 - (L * (pressureAltFt * 0.3048))
	if pressureAltFt > TropopauseAltFt {
		isaTempK = StratosphereTempK
	}
	isaTempC := isaTempK - ZeroCelsius

	// DA = PA + 120 * (OAT - ISA_Temp)
	return pressureAltFt + 120*(tempCelsius-isaTempC)
}

// RelativeHumidity returns relative humidity in percent from temperature and dewpoint (Celsius)
func RelativeHumidity(tempCelsius, dewpointCelsius float64) float64 {
	rh := 100 * math.Exp((magnusB*dewpointCelsius)/(magnusC+dewpointCelsius)) /
		math.Exp((magnusB*tempCelsius)/(magnusC+tempCelsius))
	if rh > 100 {
		return 100
	}
	return rh
}

// Vector2D represents a 2D vector
type Vector2D struct {
	X float64 // East component
	Y float64 // North component
}

// HeadingToVector converts a heading (degrees) and magnitude to X/Y components
func HeadingToVector(headingDeg float64, magnitude float64) Vector2D {
	rad := (90 - headingDeg) * math.Pi / 180 // Convert compass heading to math angle
	return Vector2D{
		X: magnitude * math.Cos(rad),
		Y: magnitude * math.Sin(rad),
	}
}

// WindComponents returns the U (+East) and V (+North) components in m/s of a
// reported wind. Reported direction is where the wind blows from, so the
// vector points the opposite way.
func WindComponents(fromDeg float64, speedKnots float64) (u, v float64) {
	vec := HeadingToVector(NormalizeHeading(fromDeg+180), speedKnots*KnotsToMs)
	return vec.X, vec.Y
}

// NormalizeHeading maps a heading into [0, 360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	// Convert altitude to meters for WMM
	altM := altFt * 0.3048

	// Create location from Geodetic coordinates
	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	// Calculate magnetic field
	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D() // Declination
}

// TrueToMagnetic converts a true heading to magnetic given declination (+East)
func TrueToMagnetic(trueDeg, declination float64) float64 {
	return NormalizeHeading(trueDeg - declination)
}
