package metar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var cloudCodesByKind = map[CloudKind]string{
	CloudFew:       "FEW",
	CloudScattered: "SCT",
	CloudBroken:    "BKN",
	CloudOvercast:  "OVC",
}

// String encodes the report back into canonical METAR groups
func (r Report) String() string {
	parts := []string{r.Station, r.ObservationTime}
	if r.AutomatedReport {
		parts = append(parts, "AUTO")
	}
	parts = append(parts,
		r.Wind.String(),
		r.Visibility.String(),
		r.Clouds.String(),
		encodeSigned(r.Temperature)+"/"+encodeSigned(r.Dewpoint))
	if r.Altimeter != nil {
		parts = append(parts, fmt.Sprintf("A%04d", *r.Altimeter))
	}
	if r.Remarks != nil {
		parts = append(parts, r.Remarks.String())
	}
	return strings.Join(parts, " ")
}

func (w Wind) String() string {
	s := fmt.Sprintf("%03d%02d", w.Direction, w.Speed)
	if w.GustSpeed != nil {
		s += fmt.Sprintf("G%02d", *w.GustSpeed)
	}
	return s + "KT"
}

// String encodes distance as a whole number, a fraction or a mixed number
// when the fractional part has a denominator of 2, 4, 8 or 16
func (v Visibility) String() string {
	whole, frac := math.Modf(v.Distance)
	wholeText := strconv.FormatFloat(whole, 'f', 0, 64)
	if frac == 0 {
		return wholeText + string(v.Unit)
	}

	for _, den := range []float64{2, 4, 8, 16} {
		num := frac * den
		if num != math.Trunc(num) {
			continue
		}
		fraction := fmt.Sprintf("%d/%d%s", int(num), int(den), v.Unit)
		if whole == 0 {
			return fraction
		}
		return wholeText + " " + fraction
	}

	return strconv.FormatFloat(v.Distance, 'f', -1, 64) + string(v.Unit)
}

func (c Clouds) String() string {
	if c.IsClear() {
		return "CLR"
	}
	layers := make([]string, 0, len(c.Layers))
	for _, l := range c.Layers {
		layers = append(layers, l.String())
	}
	return strings.Join(layers, " ")
}

func (l CloudLayer) String() string {
	return fmt.Sprintf("%s%03d", cloudCodesByKind[l.Kind], l.Height/100)
}

func (r Remarks) String() string {
	parts := []string{"RMK"}
	if r.StationType != nil {
		parts = append(parts, *r.StationType)
	}
	if r.TempBreakdown != nil {
		parts = append(parts, r.TempBreakdown.String())
	}
	return strings.Join(parts, " ")
}

func (t TempBreakdown) String() string {
	return "T" + encodeTenths(t.Temperature) + encodeTenths(t.Dewpoint)
}

func encodeSigned(v int) string {
	if v < 0 {
		return fmt.Sprintf("M%02d", -v)
	}
	return fmt.Sprintf("%02d", v)
}

func encodeTenths(v float64) string {
	sign := 0
	if v < 0 {
		sign = 1
		v = -v
	}
	return fmt.Sprintf("%d%03d", sign, int(math.Round(v*10)))
}
