package weather

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/co-wx/pkg/logger"
)

func TestCacheExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 3, 15, 30, 0, 0, time.UTC))
	c := NewCache(15*time.Minute, clock, logger.NewNop())

	obs, fresh := c.Get("KTTA")
	assert.Nil(t, obs)
	assert.False(t, fresh)

	c.Set(&Observation{Station: "KTTA", Raw: "raw"})
	obs, fresh = c.Get("KTTA")
	require.NotNil(t, obs)
	assert.True(t, fresh)
	assert.False(t, obs.Stale)

	clock.Advance(15 * time.Minute)
	obs, fresh = c.Get("KTTA")
	require.NotNil(t, obs, "stale entries are still served")
	assert.False(t, fresh)
	assert.True(t, obs.Stale)
	assert.True(t, c.All()[0].Stale)
}

func TestCacheStoresCopies(t *testing.T) {
	c := NewCache(time.Minute, clockwork.NewFakeClock(), logger.NewNop())

	original := &Observation{Station: "KTTA", Raw: "first"}
	c.Set(original)
	original.Raw = "changed"

	obs, _ := c.Get("KTTA")
	require.NotNil(t, obs)
	assert.Equal(t, "first", obs.Raw)

	obs.Raw = "mutated by reader"
	again, _ := c.Get("KTTA")
	assert.Equal(t, "first", again.Raw)
}

func TestCacheAllAndStats(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 3, 15, 30, 0, 0, time.UTC))
	c := NewCache(time.Minute, clock, logger.NewNop())

	c.Set(&Observation{Station: "KTTA", FetchedAt: clock.Now(), DecodeError: "boom"})
	c.Set(&Observation{Station: "KBOS", FetchedAt: clock.Now().Add(time.Second), Report: sampleReport()})

	all := c.All()
	require.Len(t, all, 2)
	assert.Equal(t, "KBOS", all[0].Station)
	assert.Equal(t, "KTTA", all[1].Station)

	stats := c.GetStats()
	assert.Equal(t, 2, stats["stations"])
	assert.Equal(t, 0, stats["expired"])
	assert.Equal(t, 1, stats["decode_failures"])
	assert.Equal(t, clock.Now().Add(time.Second), stats["last_updated"])
}
