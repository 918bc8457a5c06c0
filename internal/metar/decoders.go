package metar

import (
	"fmt"
	"strconv"
	"strings"
)

// cloudCodes maps a layer code to its coverage
var cloudCodes = map[string]CloudKind{
	"FEW": CloudFew,
	"SCT": CloudScattered,
	"BKN": CloudBroken,
	"OVC": CloudOvercast,
}

func decodeWind(g Group) (Wind, error) {
	var wind Wind
	for _, sub := range g.Sub {
		switch sub.Kind {
		case KindWindDirection:
			v, err := parseUint(sub.Text)
			if err != nil {
				return Wind{}, decodeErr(g, err)
			}
			wind.Direction = v
		case KindWindSpeed:
			v, err := parseUint(sub.Text)
			if err != nil {
				return Wind{}, decodeErr(g, err)
			}
			wind.Speed = v
		case KindWindGust:
			v, err := parseUint(strings.TrimPrefix(sub.Text, "G"))
			if err != nil {
				return Wind{}, decodeErr(g, err)
			}
			wind.GustSpeed = &v
		}
	}
	return wind, nil
}

func decodeVisibility(g Group) (Visibility, error) {
	text := g.Text
	if len(text) < 3 {
		return Visibility{}, decodeErr(g, fmt.Errorf("visibility too short"))
	}

	unit := VisibilityUnit(text[len(text)-2:])
	if unit != VisibilityStatuteMiles {
		return Visibility{}, decodeErr(g, fmt.Errorf("unsupported unit %q", unit))
	}
	value := text[:len(text)-2]

	// Mixed number: "1 1/2"
	var whole float64
	if i := strings.LastIndexByte(value, ' '); i >= 0 {
		w, err := strconv.ParseFloat(strings.TrimSpace(value[:i]), 64)
		if err != nil {
			return Visibility{}, decodeErr(g, err)
		}
		whole = w
		value = value[i+1:]
	}

	num, den, isFraction := strings.Cut(value, "/")
	if !isFraction {
		d, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Visibility{}, decodeErr(g, err)
		}
		return StatuteMiles(whole + d), nil
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Visibility{}, decodeErr(g, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return Visibility{}, decodeErr(g, err)
	}
	if d == 0 {
		return Visibility{}, decodeErr(g, fmt.Errorf("zero denominator"))
	}
	return StatuteMiles(whole + n/d), nil
}

func decodeClouds(g Group) (Clouds, error) {
	var layers []CloudLayer
	for _, sub := range g.Sub {
		switch sub.Kind {
		case KindClear:
			return ClearSky(), nil
		case KindCloudLayer:
			layer, err := decodeCloudLayer(sub)
			if err != nil {
				return Clouds{}, err
			}
			layers = append(layers, layer)
		}
	}
	if len(layers) == 0 {
		return Clouds{}, decodeErr(g, fmt.Errorf("no cloud layers"))
	}
	return Layered(layers...), nil
}

func decodeCloudLayer(g Group) (CloudLayer, error) {
	if len(g.Text) != 6 {
		return CloudLayer{}, decodeErr(g, fmt.Errorf("expected 6 characters, got %d", len(g.Text)))
	}

	kind, ok := cloudCodes[g.Text[:3]]
	if !ok {
		return CloudLayer{}, decodeErr(g, fmt.Errorf("unknown cloud code %q", g.Text[:3]))
	}

	height, err := parseUint(g.Text[3:])
	if err != nil {
		return CloudLayer{}, decodeErr(g, err)
	}

	return CloudLayer{Kind: kind, Height: height * 100}, nil
}

func decodeTempDew(g Group) (temperature, dewpoint int, err error) {
	var gotTemp, gotDew bool
	for _, sub := range g.Sub {
		v, err := parseSigned(sub.Text)
		if err != nil {
			return 0, 0, decodeErr(g, err)
		}
		switch sub.Kind {
		case KindTemperature:
			temperature, gotTemp = v, true
		case KindDewpoint:
			dewpoint, gotDew = v, true
		}
	}
	if !gotTemp || !gotDew {
		return 0, 0, decodeErr(g, fmt.Errorf("temperature and dewpoint are both required"))
	}
	return temperature, dewpoint, nil
}

func decodeAltimeter(g Group) (uint, error) {
	v, err := parseUint(strings.TrimPrefix(g.Text, "A"))
	if err != nil {
		return 0, decodeErr(g, err)
	}
	return v, nil
}

func decodeRemarks(g Group) (Remarks, error) {
	var rmk Remarks
	for _, sub := range g.Sub {
		switch sub.Kind {
		case KindStationType:
			code := sub.Text
			rmk.StationType = &code
		case KindTempBreakdown:
			tb, err := decodeTempBreakdown(sub)
			if err != nil {
				return Remarks{}, err
			}
			rmk.TempBreakdown = &tb
		}
	}
	return rmk, nil
}

// decodeTempBreakdown decodes "TsTTTsDDD" where s=1 marks a negative value
// and TTT/DDD are tenths of a degree
func decodeTempBreakdown(g Group) (TempBreakdown, error) {
	if len(g.Text) != 9 || g.Text[0] != 'T' {
		return TempBreakdown{}, decodeErr(g, fmt.Errorf("expected T followed by 8 digits"))
	}

	temp, err := parseTenths(g.Text[1:5])
	if err != nil {
		return TempBreakdown{}, decodeErr(g, err)
	}
	dew, err := parseTenths(g.Text[5:9])
	if err != nil {
		return TempBreakdown{}, decodeErr(g, err)
	}

	return TempBreakdown{Temperature: temp, Dewpoint: dew}, nil
}

func parseUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// parseSigned parses "07" or "M02"
func parseSigned(s string) (int, error) {
	negative := strings.HasPrefix(s, "M")
	v, err := strconv.Atoi(strings.TrimPrefix(s, "M"))
	if err != nil {
		return 0, err
	}
	if negative {
		v = -v
	}
	return v, nil
}

// parseTenths parses a sign digit followed by three digits of tenths
func parseTenths(s string) (float64, error) {
	var negative bool
	switch s[0] {
	case '0':
	case '1':
		negative = true
	default:
		return 0, fmt.Errorf("invalid sign digit %q", s[0])
	}

	v, err := strconv.ParseUint(s[1:], 10, 32)
	if err != nil {
		return 0, err
	}
	tenths := float64(v) / 10
	if negative {
		tenths = -tenths
	}
	return tenths, nil
}
