package trust

import (
	"fmt"
	"log"
	"time"

	"github.com/philwieland/openrail-sub000/internal/alert"
	"github.com/philwieland/openrail-sub000/internal/feed"
	"github.com/philwieland/openrail-sub000/internal/metrics"
	"github.com/philwieland/openrail-sub000/internal/railtime"
	"github.com/philwieland/openrail-sub000/internal/store"
)

// CounterNames is the ordered statistics block for the TRUST daemon.
var CounterNames = []string{
	"GoodMessage",
	"NotRecog",
	"Mess1",
	"Mess2",
	"Mess3",
	"Mess5",
	"Mess6",
	"Mess7",
	"Mess8",
	"Mess1Miss",
	"Mess1MissHit",
	"Mess1Cape",
	"DeferredDropped",
	"MovtNoAct",
	"DeducedAct",
	"DeducedActFail",
	"DeducedHC",
	"DeducedHCReplaced",
	"DeducedTSC",
	"ObfusAdded",
}

// activationWindow is how far back a movement looks for its activation.
const activationWindow = 4 * 24 * time.Hour

// countFlushInterval is the cadence of latency reporting and message-count
// persistence.
const countFlushInterval = 256 * time.Second

// deferredActivation parks a 0001 whose schedule was absent at receipt.
type deferredActivation struct {
	trainUID  string
	startDate int64
	endDate   int64
	trainID   string
	extra     store.ActivationExtra
	due       time.Time
}

// Ingester applies TRUST frames to the store, one frame per database
// transaction, and owns the deferred-activation queue.
type Ingester struct {
	Store    *store.Store
	Counters *metrics.CounterSet
	Metrics  *metrics.Metrics
	Logger   *log.Logger
	Alerter  *alert.Alerter

	NoDeduceAct    bool
	QueueLen       int
	RetryAfter     time.Duration
	LatencyAlertMs int
	Location       *time.Location // DST reference for feed timestamps
	Debug          bool
	Now            func() time.Time

	deferred []deferredActivation

	// stanox caches corpus STANOX to TIPLOC resolutions; the table only
	// changes when the reference data is reloaded.
	stanox map[string]string

	// latency accumulators since the last flush
	latSum, latPeak time.Duration
	latN            int
	latAlarm        bool
	msgCount        int
	lastFlush       time.Time
}

// HandleFrame is the feed.Handler for the TRUST stream.
func (in *Ingester) HandleFrame(body []byte) error {
	msgs, err := ParseFrame(body)
	if err != nil {
		in.Counters.Incr("NotRecog")
		if in.Debug {
			in.Logger.Printf("unparseable frame: %.120s", string(body))
		}
		return feed.ErrSkip
	}

	now := in.now()
	err = in.Store.Transact(func(tx *store.Tx) error {
		var newestActual int64
		for i := range msgs {
			if err := in.applyMessage(tx, &msgs[i], now); err != nil {
				return err
			}
			if ts, err := railtime.CorrectTrustTimestamp(
				msgs[i].Header.MsgQueueTimestamp, in.Location); err == nil {
				in.observeLatency(now.Sub(ts))
				if u := ts.Unix(); u > newestActual {
					newestActual = u
				}
			}
		}
		if err := tx.SetStatus(store.StatusTrustProcessed, now.Unix()); err != nil {
			return err
		}
		if newestActual > 0 {
			return tx.SetStatus(store.StatusTrustActual, newestActual)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("trust: %w", err)
	}
	in.msgCount += len(msgs)
	return nil
}

func (in *Ingester) applyMessage(tx *store.Tx, m *Message, now time.Time) error {
	switch m.Header.MsgType {
	case "0001":
		in.Counters.Incr("Mess1")
		return in.handleActivation(tx, m, now)
	case "0002":
		in.Counters.Incr("Mess2")
		return in.handleCancellation(tx, m, now, false)
	case "0003":
		in.Counters.Incr("Mess3")
		return in.handleMovement(tx, m, now)
	case "0005":
		in.Counters.Incr("Mess5")
		return in.handleCancellation(tx, m, now, true)
	case "0006":
		in.Counters.Incr("Mess6")
		return in.handleChangeOfOrigin(tx, m, now)
	case "0007":
		in.Counters.Incr("Mess7")
		return in.handleChangeOfID(tx, m, now)
	case "0008":
		in.Counters.Incr("Mess8")
		return in.handleChangeOfLocation(tx, m, now)
	default:
		// 0004 (UID messages) and anything new: tolerated, counted, skipped.
		in.Counters.Incr("NotRecog")
		in.Metrics.MessagesTotal.WithLabelValues("other").Inc()
		return nil
	}
}

// Idle runs between frames and on read timeouts: drains due deferred
// activations and flushes the periodic latency/message-count telemetry.
func (in *Ingester) Idle() {
	in.drainDeferred()
	in.flushTelemetry()
}

// DiscardDeferred empties the queue at shutdown, logging the loss.
func (in *Ingester) DiscardDeferred() {
	if n := len(in.deferred); n > 0 {
		in.Logger.Printf("MINOR discarding %d deferred activations at shutdown", n)
		in.deferred = nil
		in.Metrics.DeferredDepth.Set(0)
	}
}

func (in *Ingester) drainDeferred() {
	now := in.now()
	kept := in.deferred[:0]
	for i := range in.deferred {
		d := in.deferred[i]
		if now.Before(d.due) {
			kept = append(kept, d)
			continue
		}
		if err := in.retryDeferred(&d, now); err != nil {
			in.Logger.Printf("MINOR deferred activation %s failed: %v", d.trainID, err)
		}
	}
	in.deferred = kept
	in.Metrics.DeferredDepth.Set(float64(len(in.deferred)))
}

// retryDeferred gives a parked activation one more chance. Found now means
// the schedule arrived in the window (normally VSTP beating TRUST by
// seconds); not found is recorded as an unbound activation and forgotten.
func (in *Ingester) retryDeferred(d *deferredActivation, now time.Time) error {
	return in.Store.Transact(func(tx *store.Tx) error {
		scheds, err := tx.FindActivationSchedules(d.trainUID, d.startDate, d.endDate, now.Unix())
		if err != nil {
			return err
		}
		if len(scheds) > 0 {
			in.Counters.Incr("Mess1MissHit")
			return in.bind(tx, d.trainID, scheds[0], &d.extra, false, now)
		}
		if err := tx.InsertActivation(&store.Activation{
			Created: now.Unix(),
			TrainID: d.trainID,
		}); err != nil {
			return err
		}
		return tx.InsertActivationExtra(&d.extra)
	})
}

// flushTelemetry emits the 256-second latency summary and persists the
// interval message count.
func (in *Ingester) flushTelemetry() {
	now := in.now()
	if in.lastFlush.IsZero() {
		in.lastFlush = now
		return
	}
	if now.Sub(in.lastFlush) < countFlushInterval {
		return
	}
	in.lastFlush = now

	var mean time.Duration
	if in.latN > 0 {
		mean = in.latSum / time.Duration(in.latN)
	}
	in.Logger.Printf("latency over last interval: mean %v peak %v over %d messages, %d messages handled",
		mean, in.latPeak, in.latN, in.msgCount)

	threshold := time.Duration(in.LatencyAlertMs) * time.Millisecond
	if threshold > 0 && in.Alerter != nil {
		if mean > threshold && !in.latAlarm {
			in.latAlarm = true
			in.Alerter.Raise("trust-latency",
				fmt.Sprintf("TRUST feed latency %v exceeds %v", mean, threshold))
		} else if mean <= threshold && in.latAlarm {
			in.latAlarm = false
			in.Alerter.Clear("trust-latency",
				fmt.Sprintf("TRUST feed latency recovered: %v", mean))
		}
	}
	in.latSum, in.latPeak, in.latN = 0, 0, 0

	count := in.msgCount
	in.msgCount = 0
	err := in.Store.Transact(func(tx *store.Tx) error {
		return tx.RecordMessageCount("trustdb", now.Unix(), count)
	})
	if err != nil {
		in.Logger.Printf("MINOR message count flush failed: %v", err)
	}
}

func (in *Ingester) observeLatency(d time.Duration) {
	if d < 0 {
		d = 0
	}
	in.latSum += d
	in.latN++
	if d > in.latPeak {
		in.latPeak = d
	}
	in.Metrics.RecordLatency(d.Seconds())
}

func (in *Ingester) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// resolveStanox maps a STANOX to its corpus TIPLOC, caching hits for the
// life of the process. Misses are not cached so a corpus reload is picked
// up without a restart.
func (in *Ingester) resolveStanox(tx *store.Tx, stanox string) (string, error) {
	if tiploc, ok := in.stanox[stanox]; ok {
		return tiploc, nil
	}
	tiploc, err := tx.StanoxTiploc(stanox)
	if err != nil {
		return "", err
	}
	if tiploc != "" {
		if in.stanox == nil {
			in.stanox = make(map[string]string)
		}
		in.stanox[stanox] = tiploc
	}
	return tiploc, nil
}

func (in *Ingester) timestamp(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	t, err := railtime.CorrectTrustTimestamp(s, in.Location)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
