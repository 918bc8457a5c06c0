// Package metar decodes METAR surface weather reports.
//
// Decoding runs in two layers. Parse recognizes the coded groups in their
// fixed positional order; Decode converts each group into a typed value,
// accumulates them and checks that every mandatory field was reported.
// Both are pure functions and safe for concurrent use.
package metar

// Decode decodes a raw METAR into a Report.
//
// The error, if any, is one of *MalformedInputError, *DecodeError or
// *MissingElementError.
func Decode(raw string) (Report, error) {
	groups, err := Parse(raw)
	if err != nil {
		return Report{}, err
	}

	b := newBuilder()
	for _, g := range groups {
		if err := apply(b, g); err != nil {
			return Report{}, err
		}
	}

	return b.finalize()
}

// apply decodes a top-level group and records it on b
func apply(b *builder, g Group) error {
	switch g.Kind {
	case KindStation:
		b.recordStation(g.Text)

	case KindObservationTime:
		b.recordObservationTime(g.Text)

	case KindAuto:
		b.recordAutomated(true)

	case KindWind:
		wind, err := decodeWind(g)
		if err != nil {
			return err
		}
		b.recordWind(wind)

	case KindVisibility:
		vis, err := decodeVisibility(g)
		if err != nil {
			return err
		}
		b.recordVisibility(vis)

	case KindClouds:
		clouds, err := decodeClouds(g)
		if err != nil {
			return err
		}
		b.recordClouds(clouds)

	case KindTempDew:
		temp, dew, err := decodeTempDew(g)
		if err != nil {
			return err
		}
		b.recordTemperature(temp)
		b.recordDewpoint(dew)

	case KindAltimeter:
		alt, err := decodeAltimeter(g)
		if err != nil {
			return err
		}
		b.recordAltimeter(alt)

	case KindRemarks:
		rmk, err := decodeRemarks(g)
		if err != nil {
			return err
		}
		b.recordRemarks(rmk)
	}

	return nil
}
