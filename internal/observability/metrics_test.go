package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/yegors/co-wx/internal/metar"
)

func TestDecodeOutcome(t *testing.T) {
	_, malformed := metar.Decode("not a metar")
	_, missing := metar.Decode("KTTA 031530Z 04008KT CLR 07/M02")
	_, decodeErr := metar.Decode("KTTA 031530Z 04008KT 10KM CLR 07/M02")

	assert.Equal(t, OutcomeOK, DecodeOutcome(nil))
	assert.Equal(t, OutcomeMalformed, DecodeOutcome(malformed))
	assert.Equal(t, OutcomeMissingElement, DecodeOutcome(missing))
	assert.Equal(t, OutcomeDecodeError, DecodeOutcome(decodeErr))
	assert.Equal(t, OutcomeDecodeError, DecodeOutcome(errors.New("anything else")))
}

func TestObserveDecode(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveDecode(nil)
	m.ObserveDecode(nil)
	_, err := metar.Decode("")
	m.ObserveDecode(err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecodeTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeTotal.WithLabelValues(OutcomeMalformed)))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveDecode(nil) })
}

func TestObserveFetch(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveFetch(nil, 200*time.Millisecond)
	m.ObserveFetch(errors.New("timeout"), time.Second)
	m.SetStationsTracked(3)
	m.SetWSClients(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StationsTracked))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WSClients))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}
