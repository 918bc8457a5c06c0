package metar

import "errors"

// Mandatory field names in the order finalize checks them
const (
	FieldStation         = "station"
	FieldObservationTime = "observation_time"
	FieldWind            = "wind"
	FieldVisibility      = "visibility"
	FieldTemperature     = "temperature"
	FieldDewpoint        = "dewpoint"
)

var errFinalized = errors.New("report builder already finalized")

// builder accumulates decoded fields for a single decode call.
// Every field is absent until recorded; finalize converts to a Report.
type builder struct {
	station         *string
	observationTime *string
	automated       bool
	wind            *Wind
	visibility      *Visibility
	clouds          *Clouds
	temperature     *int
	dewpoint        *int
	altimeter       *uint
	remarks         *Remarks

	finalized bool
}

func newBuilder() *builder {
	return &builder{}
}

func (b *builder) recordStation(v string)         { b.station = &v }
func (b *builder) recordObservationTime(v string) { b.observationTime = &v }
func (b *builder) recordAutomated(v bool)         { b.automated = v }
func (b *builder) recordWind(v Wind)              { b.wind = &v }
func (b *builder) recordVisibility(v Visibility)  { b.visibility = &v }
func (b *builder) recordClouds(v Clouds)          { b.clouds = &v }
func (b *builder) recordTemperature(v int)        { b.temperature = &v }
func (b *builder) recordDewpoint(v int)           { b.dewpoint = &v }
func (b *builder) recordAltimeter(v uint)         { b.altimeter = &v }
func (b *builder) recordRemarks(v Remarks)        { b.remarks = &v }

// finalize checks presence of every mandatory field and yields the Report
func (b *builder) finalize() (Report, error) {
	if b.finalized {
		return Report{}, errFinalized
	}

	switch {
	case b.station == nil:
		return Report{}, &MissingElementError{Field: FieldStation}
	case b.observationTime == nil:
		return Report{}, &MissingElementError{Field: FieldObservationTime}
	case b.wind == nil:
		return Report{}, &MissingElementError{Field: FieldWind}
	case b.visibility == nil:
		return Report{}, &MissingElementError{Field: FieldVisibility}
	case b.temperature == nil:
		return Report{}, &MissingElementError{Field: FieldTemperature}
	case b.dewpoint == nil:
		return Report{}, &MissingElementError{Field: FieldDewpoint}
	}

	b.finalized = true

	report := Report{
		Station:         *b.station,
		ObservationTime: *b.observationTime,
		AutomatedReport: b.automated,
		Wind:            *b.wind,
		Visibility:      *b.visibility,
		Clouds:          ClearSky(),
		Temperature:     *b.temperature,
		Dewpoint:        *b.dewpoint,
		Altimeter:       b.altimeter,
		Remarks:         b.remarks,
	}
	if b.clouds != nil {
		report.Clouds = *b.clouds
	}
	return report, nil
}
