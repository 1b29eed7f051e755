package metrics

import (
	"fmt"
	"strings"
	"sync"
)

// CounterSet is the named statistics block behind the daily report. Each
// counter accumulates since the last daily rollover and into a grand total
// since process start. The message path increments single-threaded; the ops
// server and report timer read concurrently, hence the lock.
type CounterSet struct {
	mu    sync.RWMutex
	names []string
	idx   map[string]int
	day   []uint64
	total []uint64
}

// NewCounterSet builds a set with a fixed, ordered name list. Incrementing
// an unknown name panics: counter names are compile-time constants and a
// typo should fail loudly in test.
func NewCounterSet(names ...string) *CounterSet {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return &CounterSet{
		names: names,
		idx:   idx,
		day:   make([]uint64, len(names)),
		total: make([]uint64, len(names)),
	}
}

// Incr adds one to the named counter.
func (c *CounterSet) Incr(name string) { c.Add(name, 1) }

// Add adds n to the named counter.
func (c *CounterSet) Add(name string, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.idx[name]
	if !ok {
		panic("metrics: unknown counter " + name)
	}
	c.day[i] += n
	c.total[i] += n
}

// Day returns the since-rollover value of the named counter.
func (c *CounterSet) Day(name string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.day[c.idx[name]]
}

// Total returns the since-start value of the named counter.
func (c *CounterSet) Total(name string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total[c.idx[name]]
}

// Snapshot returns name→day values for the ops /status endpoint.
func (c *CounterSet) Snapshot() map[string]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]uint64, len(c.names))
	for i, n := range c.names {
		out[n] = c.day[i]
	}
	return out
}

// Rollover renders the daily report body and zeroes the per-day values.
// Counters with zero day and zero total are still listed so an idle day
// produces a complete report.
func (c *CounterSet) Rollover(title string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%-28s %12s %12s\n", title, "", "Day", "Total")
	for i, n := range c.names {
		fmt.Fprintf(&b, "%-28s %12d %12d\n", n, c.day[i], c.total[i])
		c.day[i] = 0
	}
	return b.String()
}
