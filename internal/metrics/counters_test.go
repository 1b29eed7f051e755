package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterSet(t *testing.T) {
	c := NewCounterSet("GoodMessage", "NotRecog")

	c.Incr("GoodMessage")
	c.Add("GoodMessage", 2)
	assert.Equal(t, uint64(3), c.Day("GoodMessage"))
	assert.Equal(t, uint64(3), c.Total("GoodMessage"))
	assert.Equal(t, uint64(0), c.Day("NotRecog"))

	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap["GoodMessage"])
}

func TestCounterSetRollover(t *testing.T) {
	c := NewCounterSet("GoodMessage", "NotRecog")
	c.Add("GoodMessage", 5)

	report := c.Rollover("daily statistics")
	assert.Contains(t, report, "daily statistics")
	assert.Contains(t, report, "GoodMessage")
	// Idle counters still appear so the report shape never changes.
	assert.Contains(t, report, "NotRecog")

	// Day values reset, totals survive.
	assert.Equal(t, uint64(0), c.Day("GoodMessage"))
	assert.Equal(t, uint64(5), c.Total("GoodMessage"))

	c.Incr("GoodMessage")
	assert.Equal(t, uint64(1), c.Day("GoodMessage"))
	assert.Equal(t, uint64(6), c.Total("GoodMessage"))
}

func TestCounterSetUnknownName(t *testing.T) {
	c := NewCounterSet("GoodMessage")
	assert.Panics(t, func() { c.Incr("Typo") })
}
