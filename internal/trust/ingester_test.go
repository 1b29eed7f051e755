package trust

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/philwieland/openrail-sub000/internal/metrics"
	"github.com/philwieland/openrail-sub000/internal/store"
)

// One registration for the whole package; promauto metrics cannot be
// registered twice.
var testMetrics = metrics.New("trust_test")

func testIngester(buf *bytes.Buffer) *Ingester {
	return &Ingester{
		Counters:   metrics.NewCounterSet(CounterNames...),
		Metrics:    testMetrics,
		Logger:     log.New(buf, "", 0),
		QueueLen:   2,
		RetryAfter: 32 * time.Second,
		Now:        func() time.Time { return time.Date(2023, 6, 3, 10, 0, 0, 0, time.UTC) },
	}
}

func TestDeferredQueueCap(t *testing.T) {
	var buf bytes.Buffer
	in := testIngester(&buf)
	now := in.now()

	in.defer0001("AAAAAA", 0, 0, "id1", store.ActivationExtra{}, now)
	in.defer0001("BBBBBB", 0, 0, "id2", store.ActivationExtra{}, now)
	assert.Len(t, in.deferred, 2)
	assert.Equal(t, uint64(0), in.Counters.Day("DeferredDropped"))

	// The queue is full: the third activation is dropped, not queued.
	in.defer0001("CCCCCC", 0, 0, "id3", store.ActivationExtra{}, now)
	assert.Len(t, in.deferred, 2)
	assert.Equal(t, uint64(1), in.Counters.Day("DeferredDropped"))
	assert.Contains(t, buf.String(), "id3")
}

func TestDeferredEntriesCarryRetryDelay(t *testing.T) {
	var buf bytes.Buffer
	in := testIngester(&buf)
	now := in.now()

	in.defer0001("AAAAAA", 100, 200, "id1", store.ActivationExtra{TOCID: "25"}, now)
	assert.Len(t, in.deferred, 1)
	d := in.deferred[0]
	assert.Equal(t, "AAAAAA", d.trainUID)
	assert.Equal(t, int64(100), d.startDate)
	assert.Equal(t, int64(200), d.endDate)
	assert.Equal(t, "25", d.extra.TOCID)
	assert.Equal(t, now.Add(32*time.Second), d.due)
}

func TestDiscardDeferred(t *testing.T) {
	var buf bytes.Buffer
	in := testIngester(&buf)
	in.defer0001("AAAAAA", 0, 0, "id1", store.ActivationExtra{}, in.now())

	in.DiscardDeferred()
	assert.Empty(t, in.deferred)
	assert.Contains(t, buf.String(), "discarding 1 deferred")

	// Idempotent and quiet when already empty.
	buf.Reset()
	in.DiscardDeferred()
	assert.Empty(t, buf.String())
}

func TestObserveLatency(t *testing.T) {
	var buf bytes.Buffer
	in := testIngester(&buf)

	in.observeLatency(2 * time.Second)
	in.observeLatency(6 * time.Second)
	assert.Equal(t, 2, in.latN)
	assert.Equal(t, 8*time.Second, in.latSum)
	assert.Equal(t, 6*time.Second, in.latPeak)

	// Clock skew can make latency negative; it clamps to zero.
	in.observeLatency(-time.Second)
	assert.Equal(t, 8*time.Second, in.latSum)
}
