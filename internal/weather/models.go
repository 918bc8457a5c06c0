package weather

import (
	"errors"
	"time"

	"github.com/yegors/co-wx/internal/metar"
)

// Message types published to subscribers
const (
	MessageTypeMETARUpdate = "metar_update"
)

// ErrNoObservation is returned when nothing is known for a station
var ErrNoObservation = errors.New("no observation available")

// Observation is one fetched METAR together with its decode result
type Observation struct {
	ID            int64         `json:"id,omitempty"`
	Station       string        `json:"station"`
	Raw           string        `json:"raw"`
	Report        *metar.Report `json:"report,omitempty"`
	DecodeOutcome string        `json:"decode_outcome"`
	DecodeError   string        `json:"decode_error,omitempty"`
	Derived       *Conditions   `json:"derived,omitempty"`
	FetchedAt     time.Time     `json:"fetched_at"`
	Stale         bool          `json:"stale"` // Older than the cache expiry when served
}

// Decoded reports whether the raw text decoded successfully
func (o *Observation) Decoded() bool {
	return o.Report != nil
}

// Conditions are values computed from a decoded report and the station location
type Conditions struct {
	Temperature           float64  `json:"temperature"` // Celsius, from the RMK T-group when present
	Dewpoint              float64  `json:"dewpoint"`
	RelativeHumidity      float64  `json:"relative_humidity"` // percent
	WindU                 float64  `json:"wind_u"`            // m/s, +East
	WindV                 float64  `json:"wind_v"`            // m/s, +North
	AltimeterInHg         *float64 `json:"altimeter_inhg,omitempty"`
	PressureAltitudeFt    *float64 `json:"pressure_altitude_ft,omitempty"`
	DensityAltitudeFt     *float64 `json:"density_altitude_ft,omitempty"`
	MagneticVariation     *float64 `json:"magnetic_variation,omitempty"` // degrees, +East
	WindDirectionMagnetic *float64 `json:"wind_direction_magnetic,omitempty"`
}

// FetchResult represents the result of fetching one station
type FetchResult struct {
	Station string
	Raw     string
	Err     error
}
