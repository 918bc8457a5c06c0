package metar

import (
	"regexp"
)

// GroupKind identifies a matched group or sub-group
type GroupKind int

const (
	KindStation GroupKind = iota
	KindObservationTime
	KindAuto
	KindWind
	KindVisibility
	KindClouds
	KindTempDew
	KindAltimeter
	KindRemarks

	// Sub-groups
	KindWindDirection
	KindWindSpeed
	KindWindGust
	KindClear
	KindCloudLayer
	KindTemperature
	KindDewpoint
	KindStationType
	KindTempBreakdown
)

var kindNames = map[GroupKind]string{
	KindStation:         "station",
	KindObservationTime: "observation_time",
	KindAuto:            "auto_kw",
	KindWind:            "wind",
	KindVisibility:      "visibility",
	KindClouds:          "clouds",
	KindTempDew:         "temp_dew",
	KindAltimeter:       "altimeter",
	KindRemarks:         "remarks",
	KindWindDirection:   "wind_direction",
	KindWindSpeed:       "wind_speed",
	KindWindGust:        "wind_gust",
	KindClear:           "clear",
	KindCloudLayer:      "cloud_layer",
	KindTemperature:     "temperature",
	KindDewpoint:        "dewpoint",
	KindStationType:     "station_type",
	KindTempBreakdown:   "temp_breakdown",
}

func (k GroupKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Group is one matched piece of the report
type Group struct {
	Kind GroupKind
	Text string  // exact matched substring of the raw report
	Pos  int     // byte offset of Text in the raw report
	Sub  []Group // ordered sub-matches of composite groups
}

// Group shapes. Each pattern matches a whole token.
var (
	stationRegex       = regexp.MustCompile(`^[A-Za-z0-9]{4}$`)
	timeRegex          = regexp.MustCompile(`^\d{6}Z$`)
	windRegex          = regexp.MustCompile(`^(\d{3})(\d{2})(G\d{2})?KT$`)
	visibilityRegex    = regexp.MustCompile(`^\d+(/\d+)?[A-Z]{2}$`)
	visibilityWhole    = regexp.MustCompile(`^\d+$`)
	visibilityFraction = regexp.MustCompile(`^\d+/\d+[A-Z]{2}$`)
	clearRegex         = regexp.MustCompile(`^(CLR|SKC)$`)
	cloudLayerRegex    = regexp.MustCompile(`^[A-Z]{3}\d{3}$`)
	tempDewRegex       = regexp.MustCompile(`^(M?\d{2})/(M?\d{2})$`)
	altimeterRegex     = regexp.MustCompile(`^A\d{4}$`)
	stationTypeRegex   = regexp.MustCompile(`^AO[12]A?$`)
	tempBreakdownRegex = regexp.MustCompile(`^T[01]\d{3}[01]\d{3}$`)
)

// token is a whitespace-delimited run of the raw report
type token struct {
	text string
	pos  int
}

func tokenize(raw string) []token {
	var tokens []token
	start := -1
	for i := 0; i < len(raw); i++ {
		if raw[i] == ' ' || raw[i] == '\t' || raw[i] == '\n' || raw[i] == '\r' {
			if start >= 0 {
				tokens = append(tokens, token{text: raw[start:i], pos: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{text: raw[start:], pos: start})
	}
	return tokens
}

// rule recognizes one group kind at the head of the remaining tokens.
// match returns the group and how many tokens it consumed, or ok=false.
type rule struct {
	kind     GroupKind
	required bool
	match    func(raw string, toks []token) (g Group, n int, ok bool)
}

// grammar is tried in order. The order is the positional order of a METAR.
var grammar = []rule{
	{kind: KindStation, required: true, match: single(KindStation, stationRegex)},
	{kind: KindObservationTime, required: true, match: single(KindObservationTime, timeRegex)},
	{kind: KindAuto, match: literal(KindAuto, "AUTO")},
	{kind: KindWind, required: true, match: matchWind},
	{kind: KindVisibility, match: matchVisibility},
	{kind: KindClouds, match: matchClouds},
	{kind: KindTempDew, required: true, match: matchTempDew},
	{kind: KindAltimeter, match: single(KindAltimeter, altimeterRegex)},
	{kind: KindRemarks, match: matchRemarks},
}

// Parse partitions raw into groups following the METAR group order
func Parse(raw string) ([]Group, error) {
	toks := tokenize(raw)
	groups := make([]Group, 0, len(grammar))

	// Optional kinds tried at the current position without matching.
	// They are part of what was expected if the next step fails.
	var skipped []GroupKind

	i := 0
	for _, r := range grammar {
		g, n, ok := r.match(raw, toks[i:])
		if ok {
			groups = append(groups, g)
			i += n
			skipped = skipped[:0]
			continue
		}

		if r.required {
			return nil, malformedAt(raw, toks, i, append(skipped, r.kind))
		}
		skipped = append(skipped, r.kind)
	}

	if i < len(toks) {
		return nil, malformedAt(raw, toks, i, skipped)
	}

	return groups, nil
}

func malformedAt(raw string, toks []token, i int, expected []GroupKind) error {
	err := &MalformedInputError{
		Pos:      len(raw),
		Expected: append([]GroupKind(nil), expected...),
	}
	if i < len(toks) {
		err.Pos = toks[i].pos
		err.Found = toks[i].text
	}
	return err
}

func single(kind GroupKind, re *regexp.Regexp) func(string, []token) (Group, int, bool) {
	return func(_ string, toks []token) (Group, int, bool) {
		if len(toks) == 0 || !re.MatchString(toks[0].text) {
			return Group{}, 0, false
		}
		return Group{Kind: kind, Text: toks[0].text, Pos: toks[0].pos}, 1, true
	}
}

func literal(kind GroupKind, word string) func(string, []token) (Group, int, bool) {
	return func(_ string, toks []token) (Group, int, bool) {
		if len(toks) == 0 || toks[0].text != word {
			return Group{}, 0, false
		}
		return Group{Kind: kind, Text: toks[0].text, Pos: toks[0].pos}, 1, true
	}
}

func matchWind(_ string, toks []token) (Group, int, bool) {
	if len(toks) == 0 {
		return Group{}, 0, false
	}
	t := toks[0]
	m := windRegex.FindStringSubmatchIndex(t.text)
	if m == nil {
		return Group{}, 0, false
	}

	g := Group{Kind: KindWind, Text: t.text, Pos: t.pos}
	g.Sub = append(g.Sub,
		subMatch(KindWindDirection, t, m[2], m[3]),
		subMatch(KindWindSpeed, t, m[4], m[5]))
	if m[6] >= 0 {
		g.Sub = append(g.Sub, subMatch(KindWindGust, t, m[6], m[7]))
	}
	return g, 1, true
}

// matchVisibility accepts "10SM", "1/2SM" and the two-token mixed form "1 1/2SM"
func matchVisibility(raw string, toks []token) (Group, int, bool) {
	if len(toks) == 0 {
		return Group{}, 0, false
	}
	if len(toks) > 1 && visibilityWhole.MatchString(toks[0].text) && visibilityFraction.MatchString(toks[1].text) {
		return spanning(raw, KindVisibility, toks[:2]), 2, true
	}
	if visibilityRegex.MatchString(toks[0].text) {
		return Group{Kind: KindVisibility, Text: toks[0].text, Pos: toks[0].pos}, 1, true
	}
	return Group{}, 0, false
}

func matchClouds(raw string, toks []token) (Group, int, bool) {
	if len(toks) == 0 {
		return Group{}, 0, false
	}
	if clearRegex.MatchString(toks[0].text) {
		t := toks[0]
		g := Group{Kind: KindClouds, Text: t.text, Pos: t.pos}
		g.Sub = []Group{{Kind: KindClear, Text: t.text, Pos: t.pos}}
		return g, 1, true
	}

	n := 0
	for n < len(toks) && cloudLayerRegex.MatchString(toks[n].text) {
		n++
	}
	if n == 0 {
		return Group{}, 0, false
	}

	g := spanning(raw, KindClouds, toks[:n])
	for _, t := range toks[:n] {
		g.Sub = append(g.Sub, Group{Kind: KindCloudLayer, Text: t.text, Pos: t.pos})
	}
	return g, n, true
}

func matchTempDew(_ string, toks []token) (Group, int, bool) {
	if len(toks) == 0 {
		return Group{}, 0, false
	}
	t := toks[0]
	m := tempDewRegex.FindStringSubmatchIndex(t.text)
	if m == nil {
		return Group{}, 0, false
	}

	g := Group{Kind: KindTempDew, Text: t.text, Pos: t.pos}
	g.Sub = []Group{
		subMatch(KindTemperature, t, m[2], m[3]),
		subMatch(KindDewpoint, t, m[4], m[5]),
	}
	return g, 1, true
}

// matchRemarks consumes RMK and everything after it
func matchRemarks(raw string, toks []token) (Group, int, bool) {
	if len(toks) == 0 || toks[0].text != "RMK" {
		return Group{}, 0, false
	}

	g := spanning(raw, KindRemarks, toks)
	for _, t := range toks[1:] {
		switch {
		case stationTypeRegex.MatchString(t.text):
			g.Sub = append(g.Sub, Group{Kind: KindStationType, Text: t.text, Pos: t.pos})
		case tempBreakdownRegex.MatchString(t.text):
			g.Sub = append(g.Sub, Group{Kind: KindTempBreakdown, Text: t.text, Pos: t.pos})
		}
	}
	return g, len(toks), true
}

func subMatch(kind GroupKind, t token, start, end int) Group {
	return Group{Kind: kind, Text: t.text[start:end], Pos: t.pos + start}
}

// spanning builds a group covering toks exactly as they appear in raw
func spanning(raw string, kind GroupKind, toks []token) Group {
	first, last := toks[0], toks[len(toks)-1]
	return Group{
		Kind: kind,
		Text: raw[first.pos : last.pos+len(last.text)],
		Pos:  first.pos,
	}
}
