package metar

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }

func TestDecode(t *testing.T) {
	t.Run("basic automated report", func(t *testing.T) {
		report, err := Decode("KTTA 031530Z AUTO 04008KT 10SM CLR 07/M02 A3001")
		require.NoError(t, err)

		expected := Report{
			Station:         "KTTA",
			ObservationTime: "031530Z",
			AutomatedReport: true,
			Wind:            Wind{Direction: 40, Speed: 8},
			Visibility:      StatuteMiles(10),
			Clouds:          ClearSky(),
			Temperature:     7,
			Dewpoint:        -2,
			Altimeter:       uintPtr(3001),
		}
		assert.Equal(t, expected, report)
		assert.Nil(t, report.Remarks)
		assert.Nil(t, report.Wind.GustSpeed)
	})

	t.Run("without optional groups", func(t *testing.T) {
		report, err := Decode("KTTA 031530Z 04008KT 10SM 07/M02")
		require.NoError(t, err)

		assert.False(t, report.AutomatedReport)
		assert.Nil(t, report.Altimeter)
		assert.Nil(t, report.Remarks)
		assert.True(t, report.Clouds.IsClear())
		assert.Equal(t, ClearSky(), report.Clouds)
	})

	t.Run("multiple cloud layers keep report order", func(t *testing.T) {
		report, err := Decode("KTTA 031530Z 04008KT 10SM BKN010 FEW020 SCT025 OVC055 07/M02 A3001")
		require.NoError(t, err)

		assert.Equal(t, Layered(
			CloudLayer{Kind: CloudBroken, Height: 1000},
			CloudLayer{Kind: CloudFew, Height: 2000},
			CloudLayer{Kind: CloudScattered, Height: 2500},
			CloudLayer{Kind: CloudOvercast, Height: 5500},
		), report.Clouds)
	})

	t.Run("gusts", func(t *testing.T) {
		report, err := Decode("KBOS 121854Z 03006G19KT 3SM FEW015 M05/M12")
		require.NoError(t, err)

		assert.Equal(t, uint(30), report.Wind.Direction)
		assert.Equal(t, uint(6), report.Wind.Speed)
		require.NotNil(t, report.Wind.GustSpeed)
		assert.Equal(t, uint(19), *report.Wind.GustSpeed)
		assert.Equal(t, -5, report.Temperature)
		assert.Equal(t, -12, report.Dewpoint)
	})

	t.Run("remarks", func(t *testing.T) {
		report, err := Decode("KTTA 031530Z AUTO 04008KT 10SM CLR 04/00 A3001 RMK AO2 SLP165 T00440000")
		require.NoError(t, err)

		require.NotNil(t, report.Remarks)
		assert.Equal(t, strPtr("AO2"), report.Remarks.StationType)
		require.NotNil(t, report.Remarks.TempBreakdown)
		assert.Equal(t, TempBreakdown{Temperature: 4.4, Dewpoint: 0.0}, *report.Remarks.TempBreakdown)
	})

	t.Run("remarks with only unknown tokens", func(t *testing.T) {
		report, err := Decode("KTTA 031530Z 04008KT 10SM CLR 07/M02 RMK SLP165 FROPA")
		require.NoError(t, err)

		require.NotNil(t, report.Remarks)
		assert.Nil(t, report.Remarks.StationType)
		assert.Nil(t, report.Remarks.TempBreakdown)
	})

	t.Run("mixed fraction visibility", func(t *testing.T) {
		report, err := Decode("KTTA 031530Z 04008KT 1 1/2SM OVC004 01/01")
		require.NoError(t, err)
		assert.Equal(t, StatuteMiles(1.5), report.Visibility)
	})

	t.Run("extra whitespace between groups", func(t *testing.T) {
		report, err := Decode("  KTTA   031530Z AUTO  04008KT 10SM CLR 07/M02  ")
		require.NoError(t, err)
		assert.Equal(t, "KTTA", report.Station)
		assert.Equal(t, -2, report.Dewpoint)
	})
}

func TestDecodeMalformedInput(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		pos      int
		expected []GroupKind
		found    string
	}{
		{
			name:     "empty",
			raw:      "",
			pos:      0,
			expected: []GroupKind{KindStation},
		},
		{
			name:     "missing station",
			raw:      "031530Z AUTO 04008KT 10SM CLR 07/M02",
			pos:      0,
			expected: []GroupKind{KindStation},
			found:    "031530Z",
		},
		{
			name:     "missing observation time",
			raw:      "KTTA AUTO 04008KT 10SM CLR 07/M02",
			pos:      5,
			expected: []GroupKind{KindObservationTime},
			found:    "AUTO",
		},
		{
			name:     "missing wind after AUTO",
			raw:      "KTTA 031530Z AUTO 10SM CLR 07/M02",
			pos:      18,
			expected: []GroupKind{KindWind},
			found:    "10SM",
		},
		{
			name:     "missing wind",
			raw:      "KTTA 031530Z 10SM CLR 07/M02",
			pos:      13,
			expected: []GroupKind{KindAuto, KindWind},
			found:    "10SM",
		},
		{
			name:     "short wind group",
			raw:      "KTTA 031530Z 0408KT 10SM CLR 07/M02",
			pos:      13,
			expected: []GroupKind{KindAuto, KindWind},
			found:    "0408KT",
		},
		{
			name:     "missing temperature",
			raw:      "KTTA 031530Z 04008KT 10SM CLR A3001",
			pos:      30,
			expected: []GroupKind{KindTempDew},
			found:    "A3001",
		},
		{
			name:     "truncated after clouds",
			raw:      "KTTA 031530Z 04008KT 10SM CLR",
			pos:      29,
			expected: []GroupKind{KindTempDew},
		},
		{
			name:     "unrecognized interior group",
			raw:      "KTTA 031530Z 04008KT FOO 10SM CLR 07/M02",
			pos:      21,
			expected: []GroupKind{KindVisibility, KindClouds, KindTempDew},
			found:    "FOO",
		},
		{
			name:     "trailing garbage",
			raw:      "KTTA 031530Z 04008KT 10SM CLR 07/M02 A3001 FOO",
			pos:      43,
			expected: []GroupKind{KindRemarks},
			found:    "FOO",
		},
		{
			name:     "short altimeter",
			raw:      "KTTA 031530Z 04008KT 10SM CLR 07/M02 A300",
			pos:      37,
			expected: []GroupKind{KindAltimeter, KindRemarks},
			found:    "A300",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedInput))

			var malformed *MalformedInputError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.pos, malformed.Pos)
			assert.Equal(t, tt.expected, malformed.Expected)
			assert.Equal(t, tt.found, malformed.Found)
		})
	}
}

func TestDecodeMissingElement(t *testing.T) {
	_, err := Decode("KTTA 031530Z AUTO 04008KT CLR 07/M02 A3001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingElement))

	var missing *MissingElementError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, FieldVisibility, missing.Field)
	assert.Equal(t, "missing element: visibility", err.Error())
}

func TestDecodeFailure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind GroupKind
		text string
	}{
		{"unsupported visibility unit", "KTTA 031530Z 04008KT 10KM CLR 07/M02", KindVisibility, "10KM"},
		{"zero denominator", "KTTA 031530Z 04008KT 1/0SM CLR 07/M02", KindVisibility, "1/0SM"},
		{"unknown cloud code", "KTTA 031530Z 04008KT 10SM FEW010 XYZ020 07/M02", KindCloudLayer, "XYZ020"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecode))
			assert.False(t, errors.Is(err, ErrMalformedInput))

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.kind, decodeErr.Kind)
			assert.Equal(t, tt.text, decodeErr.Text)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	reports := []string{
		"KTTA 031530Z AUTO 04008KT 10SM CLR 07/M02 A3001",
		"KBOS 121854Z 03006G19KT 1/2SM BKN010 FEW020 SCT025 OVC055 M05/M12 A2992",
		"KTTA 031530Z 04008KT 1 1/2SM OVC004 01/01",
		"KTTA 031530Z AUTO 04008KT 10SM CLR 04/00 A3001 RMK AO2 T00440000",
		"KSEA 010053Z 18012KT 3/4SM SCT008 M04/M05 RMK T10441056",
		"KSEA 010053Z 18012KT 3SM SKC 10/05 RMK",
		"KTTA 031530Z 04008KT 99999999999999999999SM CLR 07/M02",
		"KTTA 031530Z 04008KT 10000000000 1/2SM CLR 07/M02",
	}

	for _, raw := range reports {
		t.Run(raw, func(t *testing.T) {
			first, err := Decode(raw)
			require.NoError(t, err)

			second, err := Decode(first.String())
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestVisibilityStringLargeDistance(t *testing.T) {
	assert.Equal(t, "100000000000000000000SM", StatuteMiles(1e20).String())
	assert.Equal(t, "10000000000 1/2SM", StatuteMiles(10000000000.5).String())
	assert.Equal(t, "1/4SM", StatuteMiles(0.25).String())
}

func TestReportString(t *testing.T) {
	report, err := Decode("KTTA 031530Z AUTO 04008KT 10SM SKC 07/M02 A3001 RMK AO2 SLP165 T00721017")
	require.NoError(t, err)

	assert.Equal(t, "KTTA 031530Z AUTO 04008KT 10SM CLR 07/M02 A3001 RMK AO2 T00721017", report.String())
}

func TestDecodeConcurrent(t *testing.T) {
	inputs := []string{
		"KTTA 031530Z AUTO 04008KT 10SM CLR 07/M02 A3001",
		"KBOS 121854Z 03006G19KT 3SM FEW015 M05/M12",
		"KTTA 031530Z 04008KT CLR 07/M02",
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(raw string) {
			defer wg.Done()
			_, _ = Decode(raw)
		}(inputs[i%len(inputs)])
	}
	wg.Wait()

	report, err := Decode(inputs[1])
	require.NoError(t, err)
	assert.Equal(t, "KBOS", report.Station)
}
