package trust

import (
	"time"

	"github.com/philwieland/openrail-sub000/internal/railtime"
	"github.com/philwieland/openrail-sub000/internal/store"
)

func (in *Ingester) handleActivation(tx *store.Tx, m *Message, now time.Time) error {
	trainID := m.Body.S("train_id")
	trainUID := m.Body.S("train_uid")
	in.Metrics.MessagesTotal.WithLabelValues("0001").Inc()

	start, err := isoDateEpoch(m.Body.S("schedule_start_date"))
	if err != nil {
		return err
	}
	end, err := isoDateEpoch(m.Body.S("schedule_end_date"))
	if err != nil {
		return err
	}

	extra := store.ActivationExtra{
		Created:           now.Unix(),
		TrainID:           trainID,
		ScheduleSource:    m.Body.S("schedule_source"),
		TrainFileAddress:  m.Body.S("train_file_address"),
		ScheduleEndDate:   m.Body.S("schedule_end_date"),
		TPOriginTimestamp: m.Body.S("tp_origin_timestamp"),
		CreationTimestamp: m.Body.S("creation_timestamp"),
		TPOriginStanox:    m.Body.S("tp_origin_stanox"),
		OriginDepTime:     m.Body.S("origin_dep_timestamp"),
		TrainServiceCode:  m.Body.S("train_service_code"),
		TOCID:             m.Body.S("toc_id"),
		CallType:          m.Body.S("train_call_type"),
		CallMode:          m.Body.S("train_call_mode"),
		ScheduleType:      m.Body.S("schedule_type"),
		OriginStanox:      m.Body.S("sched_origin_stanox"),
		WTTID:             m.Body.S("schedule_wtt_id"),
		ScheduleStartDate: m.Body.S("schedule_start_date"),
	}

	scheds, err := tx.FindActivationSchedules(trainUID, start, end, now.Unix())
	if err != nil {
		return err
	}

	if len(scheds) == 0 {
		in.Counters.Incr("Mess1Miss")
		in.defer0001(trainUID, start, end, trainID, extra, now)
		return nil
	}

	best := scheds[0]
	cancelled := best.STPIndicator == 'C'
	if cancelled {
		// The best match is a cancellation schedule. Still bind, so the
		// train's movements resolve, but skip headcode side effects.
		in.Counters.Incr("Mess1Cape")
	}
	if err := in.bind(tx, trainID, best, &extra, cancelled, now); err != nil {
		return err
	}
	in.Counters.Incr("GoodMessage")
	return nil
}

// bind records the activation and, unless the schedule is cancelled, runs
// the obfuscation and deduction side effects.
func (in *Ingester) bind(tx *store.Tx, trainID string, sched *store.Schedule, extra *store.ActivationExtra, cancelled bool, now time.Time) error {
	if err := tx.InsertActivation(&store.Activation{
		Created:    now.Unix(),
		TrainID:    trainID,
		ScheduleID: sched.ID,
	}); err != nil {
		return err
	}
	if err := tx.InsertActivationExtra(extra); err != nil {
		return err
	}
	if cancelled {
		return nil
	}
	return in.headcodeSideEffects(tx, trainID, sched, extra.TrainServiceCode, now)
}

// headcodeSideEffects maintains the obfuscation reverse lookup, the deduced
// headcode and the deduced train service code for a freshly bound train.
func (in *Ingester) headcodeSideEffects(tx *store.Tx, trainID string, sched *store.Schedule, tsc string, now time.Time) error {
	hc := HeadcodeFromID(trainID)

	if IsObfuscatedID(trainID) {
		trueHC := sched.SignallingID
		if trueHC == "" && sched.DeducedHeadcodeStatus == "A" {
			trueHC = sched.DeducedHeadcode
		}
		if len(trueHC) == 4 && trueHC[0] == hc[0] {
			if err := tx.InsertObfusLookup(now.Unix(), trueHC, hc); err != nil {
				return err
			}
			in.Counters.Incr("ObfusAdded")
		}
	} else if hc != "" && sched.SignallingID == "" {
		switch {
		case sched.DeducedHeadcode == "":
			if err := tx.SetDeducedHeadcode(sched.ID, hc, "A"); err != nil {
				return err
			}
			in.Counters.Incr("DeducedHC")
		case sched.DeducedHeadcode != hc:
			// An earlier deduction disagrees; the latest activation wins.
			if err := tx.SetDeducedHeadcode(sched.ID, hc, "A"); err != nil {
				return err
			}
			in.Counters.Incr("DeducedHCReplaced")
		}
	}

	if sched.ServiceCode == "" && tsc != "" {
		if err := tx.SetServiceCode(sched.ID, tsc); err != nil {
			return err
		}
		in.Counters.Incr("DeducedTSC")
	}
	return nil
}

// defer0001 parks an activation whose schedule has not arrived yet. The
// queue is small on purpose: VSTP schedules normally precede their
// activations by seconds, so anything still unmatched after the retry is
// recorded unbound.
func (in *Ingester) defer0001(uid string, start, end int64, trainID string, extra store.ActivationExtra, now time.Time) {
	if len(in.deferred) >= in.QueueLen {
		in.Counters.Incr("DeferredDropped")
		in.Logger.Printf("MINOR deferred queue full, dropping activation %s", trainID)
		return
	}
	in.deferred = append(in.deferred, deferredActivation{
		trainUID:  uid,
		startDate: start,
		endDate:   end,
		trainID:   trainID,
		extra:     extra,
		due:       now.Add(in.RetryAfter),
	})
	in.Metrics.DeferredDepth.Set(float64(len(in.deferred)))
}

func isoDateEpoch(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	t, err := railtime.ParseISODate(s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
