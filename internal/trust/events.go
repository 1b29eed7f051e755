package trust

import (
	"time"

	"github.com/philwieland/openrail-sub000/internal/store"
)

func (in *Ingester) handleCancellation(tx *store.Tx, m *Message, now time.Time, reinstate bool) error {
	msgType := "0002"
	tsField := "canx_timestamp"
	if reinstate {
		msgType = "0005"
		tsField = "reinstatement_timestamp"
	}
	in.Metrics.MessagesTotal.WithLabelValues(msgType).Inc()

	ts, err := in.timestamp(m.Body.S(tsField))
	if err != nil {
		return err
	}
	if err := tx.InsertCancellation(&store.Cancellation{
		Created:         now.Unix(),
		TrainID:         m.Body.S("train_id"),
		Reason:          m.Body.S("canx_reason_code"),
		Stanox:          m.Body.S("loc_stanox"),
		CancelTimestamp: ts,
		Reinstate:       reinstate,
	}); err != nil {
		return err
	}
	in.Counters.Incr("GoodMessage")
	return nil
}

func (in *Ingester) handleChangeOfOrigin(tx *store.Tx, m *Message, now time.Time) error {
	in.Metrics.MessagesTotal.WithLabelValues("0006").Inc()

	dep, err := in.timestamp(m.Body.S("dep_timestamp"))
	if err != nil {
		return err
	}
	orig, err := in.timestamp(m.Body.S("coo_timestamp"))
	if err != nil {
		return err
	}
	if err := tx.InsertChangeOfOrigin(&store.ChangeOfOrigin{
		Created:  now.Unix(),
		TrainID:  m.Body.S("train_id"),
		Reason:   m.Body.S("reason_code"),
		Stanox:   m.Body.S("loc_stanox"),
		DepTime:  dep,
		OrigTime: orig,
	}); err != nil {
		return err
	}
	in.Counters.Incr("GoodMessage")
	return nil
}

// handleChangeOfID records the identity change and re-runs the obfuscation
// lookup with the new id against the existing activation's schedule.
func (in *Ingester) handleChangeOfID(tx *store.Tx, m *Message, now time.Time) error {
	in.Metrics.MessagesTotal.WithLabelValues("0007").Inc()

	trainID := m.Body.S("train_id")
	newID := m.Body.S("revised_train_id")
	if err := tx.InsertChangeOfID(&store.ChangeOfID{
		Created: now.Unix(),
		TrainID: trainID,
		NewID:   newID,
	}); err != nil {
		return err
	}

	if newID != "" {
		act, err := tx.LatestActivation(trainID, now.Add(-activationWindow).Unix())
		if err != nil {
			return err
		}
		if act != nil && act.ScheduleID != 0 {
			sched, err := tx.GetSchedule(act.ScheduleID)
			if err != nil {
				return err
			}
			if sched != nil {
				if err := in.headcodeSideEffects(tx, newID, sched, "", now); err != nil {
					return err
				}
			}
		}
	}
	in.Counters.Incr("GoodMessage")
	return nil
}

func (in *Ingester) handleChangeOfLocation(tx *store.Tx, m *Message, now time.Time) error {
	in.Metrics.MessagesTotal.WithLabelValues("0008").Inc()

	dep, err := in.timestamp(m.Body.S("dep_timestamp"))
	if err != nil {
		return err
	}
	if err := tx.InsertChangeOfLocation(&store.ChangeOfLocation{
		Created:    now.Unix(),
		TrainID:    m.Body.S("train_id"),
		Stanox:     m.Body.S("loc_stanox"),
		OrigStanox: m.Body.S("original_loc_stanox"),
		DepTime:    dep,
	}); err != nil {
		return err
	}
	in.Counters.Incr("GoodMessage")
	return nil
}
