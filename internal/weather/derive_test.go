package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/metar"
)

func sampleReport() *metar.Report {
	r, err := metar.Decode("KBOS 031530Z 27010KT 10SM FEW050 04/00 A2992 RMK AO2 T00440000")
	if err != nil {
		panic(err)
	}
	return &r
}

func TestPreciseTemperature(t *testing.T) {
	temp, dew := PreciseTemperature(*sampleReport())
	assert.Equal(t, 4.4, temp)
	assert.Equal(t, 0.0, dew)

	r, err := metar.Decode("KTTA 031530Z 04008KT 10SM CLR 07/M02")
	require.NoError(t, err)
	temp, dew = PreciseTemperature(r)
	assert.Equal(t, 7.0, temp)
	assert.Equal(t, -2.0, dew)
}

func TestDeriveConditionsWithoutLocation(t *testing.T) {
	c := deriveConditions(*sampleReport(), nil, time.Now())

	assert.InDelta(t, 73.6, c.RelativeHumidity, 1.5)
	// Wind from the west pushes east
	assert.InDelta(t, 10*0.514444, c.WindU, 1e-6)
	assert.InDelta(t, 0.0, c.WindV, 1e-6)
	require.NotNil(t, c.AltimeterInHg)
	assert.InDelta(t, 29.92, *c.AltimeterInHg, 1e-9)

	assert.Nil(t, c.PressureAltitudeFt)
	assert.Nil(t, c.DensityAltitudeFt)
	assert.Nil(t, c.MagneticVariation)
	assert.Nil(t, c.WindDirectionMagnetic)
}

func TestDeriveConditionsWithLocation(t *testing.T) {
	station := &config.StationConfig{ICAO: "KBOS", Latitude: 42.36, Longitude: -71.0, ElevationFeet: 20}
	c := deriveConditions(*sampleReport(), station, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))

	require.NotNil(t, c.PressureAltitudeFt)
	assert.InDelta(t, 20.0, *c.PressureAltitudeFt, 1e-6)
	require.NotNil(t, c.DensityAltitudeFt)
	assert.Less(t, *c.DensityAltitudeFt, *c.PressureAltitudeFt, "cold day lowers density altitude")

	require.NotNil(t, c.MagneticVariation)
	assert.InDelta(t, -14.0, *c.MagneticVariation, 2.0)
	require.NotNil(t, c.WindDirectionMagnetic)
	assert.InDelta(t, 284.0, *c.WindDirectionMagnetic, 2.0)
}

func TestDeriveConditionsCalmWind(t *testing.T) {
	r, err := metar.Decode("KBOS 031530Z 00000KT 10SM CLR 04/00")
	require.NoError(t, err)

	station := &config.StationConfig{ICAO: "KBOS", Latitude: 42.36, Longitude: -71.0}
	c := deriveConditions(r, station, time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC))

	assert.Nil(t, c.WindDirectionMagnetic)
	assert.Nil(t, c.PressureAltitudeFt, "no altimeter, no pressure altitude")
	assert.NotNil(t, c.MagneticVariation)
}
