package metar

// Report is a decoded METAR observation
type Report struct {
	Station         string     `json:"station"`
	ObservationTime string     `json:"observation_time"` // DDHHMMZ as reported
	AutomatedReport bool       `json:"automated_report"`
	Wind            Wind       `json:"wind"`
	Visibility      Visibility `json:"visibility"`
	Clouds          Clouds     `json:"clouds"`
	Temperature     int        `json:"temperature"`         // whole degrees Celsius
	Dewpoint        int        `json:"dewpoint"`            // whole degrees Celsius
	Altimeter       *uint      `json:"altimeter,omitempty"` // hundredths of inHg, 3001 = 30.01
	Remarks         *Remarks   `json:"remarks,omitempty"`
}

// Wind is the surface wind group
type Wind struct {
	Direction uint  `json:"direction"` // degrees true
	Speed     uint  `json:"speed"`     // knots
	GustSpeed *uint `json:"gust_speed,omitempty"`
}

// VisibilityUnit identifies the variant of a Visibility value
type VisibilityUnit string

const (
	VisibilityStatuteMiles VisibilityUnit = "SM"
)

// Visibility is prevailing visibility. Statute miles is the only variant.
type Visibility struct {
	Unit     VisibilityUnit `json:"unit"`
	Distance float64        `json:"distance"`
}

// StatuteMiles returns a visibility of d statute miles
func StatuteMiles(d float64) Visibility {
	return Visibility{Unit: VisibilityStatuteMiles, Distance: d}
}

// CloudsKind identifies the variant of a Clouds value
type CloudsKind string

const (
	CloudsClear  CloudsKind = "clear"
	CloudsLayers CloudsKind = "layers"
)

// Clouds is either a clear sky or an ordered list of layers
type Clouds struct {
	Kind   CloudsKind   `json:"kind"`
	Layers []CloudLayer `json:"layers,omitempty"`
}

// ClearSky returns the clear variant
func ClearSky() Clouds {
	return Clouds{Kind: CloudsClear}
}

// Layered returns the layer variant holding layers in report order
func Layered(layers ...CloudLayer) Clouds {
	return Clouds{Kind: CloudsLayers, Layers: layers}
}

// IsClear reports whether no layers were reported
func (c Clouds) IsClear() bool {
	return c.Kind != CloudsLayers
}

// CloudKind is sky coverage of a single layer
type CloudKind string

const (
	CloudFew       CloudKind = "few"
	CloudScattered CloudKind = "scattered"
	CloudBroken    CloudKind = "broken"
	CloudOvercast  CloudKind = "overcast"
)

// CloudLayer is one reported layer
type CloudLayer struct {
	Kind   CloudKind `json:"kind"`
	Height uint      `json:"height"` // feet AGL
}

// Remarks holds the fields extracted from the RMK section
type Remarks struct {
	StationType   *string        `json:"station_type,omitempty"` // e.g. AO2
	TempBreakdown *TempBreakdown `json:"temp_breakdown,omitempty"`
}

// TempBreakdown is the precise temperature/dewpoint from the RMK T-group
type TempBreakdown struct {
	Temperature float64 `json:"temperature"` // degrees Celsius, one decimal
	Dewpoint    float64 `json:"dewpoint"`
}
