package trust

import (
	"strconv"
	"strings"
	"time"

	"github.com/philwieland/openrail-sub000/internal/railtime"
	"github.com/philwieland/openrail-sub000/internal/store"
)

// deduceWindow is the tolerance between a movement's planned time and a
// candidate schedule's call time.
const deduceWindow = 8 // minutes

func (in *Ingester) handleMovement(tx *store.Tx, m *Message, now time.Time) error {
	in.Metrics.MessagesTotal.WithLabelValues("0003").Inc()
	trainID := m.Body.S("train_id")

	planned, err := in.timestamp(m.Body.S("planned_timestamp"))
	if err != nil {
		return err
	}
	actual, err := in.timestamp(m.Body.S("actual_timestamp"))
	if err != nil {
		return err
	}
	variation, _ := strconv.Atoi(m.Body.S("timetable_variation"))

	facts := store.MovementFacts{
		EventKind:  eventKind(m.Body.S("event_type"), m.Body.Bool("train_terminated")),
		Manual:     m.Body.S("event_source") == "MANUAL",
		Variation:  variationBucket(m.Body.S("variation_status")),
		OffRoute:   m.Body.Bool("offroute_ind"),
		Terminated: m.Body.Bool("train_terminated"),
		Correction: m.Body.Bool("correction_ind"),
	}

	if err := tx.InsertMovement(&store.Movement{
		Created:          now.Unix(),
		TrainID:          trainID,
		PlannedTimestamp: planned,
		ActualTimestamp:  actual,
		Variation:        variation,
		Stanox:           m.Body.S("loc_stanox"),
		Platform:         m.Body.S("platform"),
		NextReportStanox: m.Body.S("next_report_stanox"),
		NextReportRun:    m.Body.S("next_report_run_time"),
		Flags:            facts.Pack(),
	}); err != nil {
		return err
	}

	// Every movement should belong to an activated train. When the
	// activation never arrived, try to work out which schedule this is.
	act, err := tx.LatestActivation(trainID, now.Add(-activationWindow).Unix())
	if err != nil {
		return err
	}
	if act == nil {
		if in.NoDeduceAct {
			in.Counters.Incr("MovtNoAct")
		} else if err := in.deduceActivation(tx, m, trainID, planned, facts.EventKind, now); err != nil {
			return err
		}
	}

	in.Counters.Incr("GoodMessage")
	return nil
}

// deduceRefusal enumerates why a deduction was abandoned. Refusals are
// logged and counted, never fatal.
type deduceRefusal string

const (
	refuseNoStanox    deduceRefusal = "movement carries no STANOX"
	refuseNoTiploc    deduceRefusal = "STANOX not in corpus"
	refuseNoPlanned   deduceRefusal = "movement carries no planned time"
	refuseNoCandidate deduceRefusal = "no schedule calls there at that time"
	refuseAmbiguous   deduceRefusal = "multiple candidate UIDs"
	refuseOverlay     deduceRefusal = "overlay ambiguity within UID"
)

func (in *Ingester) deduceActivation(tx *store.Tx, m *Message, trainID string, planned int64, eventKind int, now time.Time) error {
	winner, refusal, err := in.findDeducedSchedule(tx, m, trainID, planned, eventKind, now)
	if err != nil {
		return err
	}
	if winner == nil {
		in.Counters.Incr("MovtNoAct")
		in.Counters.Incr("DeducedActFail")
		if in.Debug {
			in.Logger.Printf("deduction refused for %s: %s", trainID, refusal)
		}
		return nil
	}

	if err := tx.InsertActivation(&store.Activation{
		Created:    now.Unix(),
		TrainID:    trainID,
		ScheduleID: winner.ID,
		Deduced:    true,
	}); err != nil {
		return err
	}
	in.Counters.Incr("DeducedAct")
	in.Logger.Printf("deduced activation: %s -> schedule %d (%s)",
		trainID, winner.ID, winner.TrainUID)
	return in.headcodeSideEffects(tx, trainID, winner, m.Body.S("train_service_code"), now)
}

func (in *Ingester) findDeducedSchedule(tx *store.Tx, m *Message, trainID string, planned int64, eventKind int, now time.Time) (*store.Schedule, deduceRefusal, error) {
	stanox := m.Body.S("loc_stanox")
	if stanox == "" {
		return nil, refuseNoStanox, nil
	}
	if planned == 0 {
		return nil, refuseNoPlanned, nil
	}
	tiploc, err := in.resolveStanox(tx, stanox)
	if err != nil {
		return nil, "", err
	}
	if tiploc == "" {
		return nil, refuseNoTiploc, nil
	}

	plannedUTC := time.Unix(planned, 0).UTC()
	day := time.Date(plannedUTC.Year(), plannedUTC.Month(), plannedUTC.Day(),
		0, 0, 0, 0, time.UTC)
	plannedMinute := plannedUTC.Hour()*60 + plannedUTC.Minute()

	calls, err := tx.FindCallsAt(tiploc, day.Unix(), now.Unix())
	if err != nil {
		return nil, "", err
	}

	var candidates []*store.ScheduleCall
	for _, c := range calls {
		if c.Schedule.Status == "B" || c.Schedule.Status == "5" {
			continue // buses never activate
		}
		if !in.runsOnDay(c, day) {
			continue
		}
		if !callWithinWindow(c, eventKind, plannedMinute) {
			continue
		}
		candidates = append(candidates, c)
	}

	switch {
	case len(candidates) == 0:
		return nil, refuseNoCandidate, nil
	case len(candidates) == 1:
		return candidates[0].Schedule, "", nil
	}

	// Multiple candidates: acceptable when they are all versions of one
	// UID and the STP winner is unambiguous.
	if s, ok := singleUIDWinner(candidates); ok {
		return s, "", nil
	}

	// Last resort: exact signalling-id match against the train id.
	hc := HeadcodeFromID(trainID)
	var matched []*store.ScheduleCall
	for _, c := range candidates {
		if c.Schedule.SignallingID == hc {
			matched = append(matched, c)
		}
	}
	if len(matched) == 1 {
		return matched[0].Schedule, "", nil
	}
	if s, ok := singleUIDWinner(matched); ok {
		return s, "", nil
	}
	if len(matched) > 1 {
		return nil, refuseOverlay, nil
	}
	return nil, refuseAmbiguous, nil
}

// runsOnDay checks the days bitmap, falling back to the previous day for a
// call flagged as past midnight relative to the train's origin.
func (in *Ingester) runsOnDay(c *store.ScheduleCall, day time.Time) bool {
	bitmap, err := railtime.DaysBitmap(c.Schedule.DaysRun)
	if err != nil {
		return false
	}
	if railtime.RunsOn(bitmap, day.Weekday()) {
		return true
	}
	if c.NextDay {
		return railtime.RunsOn(bitmap, day.AddDate(0, 0, -1).Weekday())
	}
	return false
}

// callWithinWindow compares the relevant scheduled time (arrival or
// departure, falling back to pass) against the planned minute of day.
// Time fields are trimmed before the emptiness test: a CHAR(5) column read
// back without trimming is all spaces when blank, not "".
func callWithinWindow(c *store.ScheduleCall, eventKind int, plannedMinute int) bool {
	t := c.Pass
	if eventKind == 1 && strings.TrimRight(c.Depart, " ") != "" {
		t = c.Depart
	} else if eventKind != 1 && strings.TrimRight(c.Arrival, " ") != "" {
		t = c.Arrival
	}
	sort, err := railtime.SortTime(t)
	if err != nil || sort < 0 {
		return false
	}
	minute := sort / 4
	diff := minute - plannedMinute
	if diff < 0 {
		diff = -diff
	}
	// Wrap across midnight.
	if diff > 720 {
		diff = 1440 - diff
	}
	return diff <= deduceWindow
}

// singleUIDWinner accepts a candidate set that collapses to one UID with a
// unique best STP precedence. Candidates arrive best-first from the store.
func singleUIDWinner(candidates []*store.ScheduleCall) (*store.Schedule, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	uid := candidates[0].Schedule.TrainUID
	for _, c := range candidates[1:] {
		if c.Schedule.TrainUID != uid {
			return nil, false
		}
	}
	best := candidates[0].Schedule
	for _, c := range candidates[1:] {
		if c.Schedule.ID != best.ID && c.Schedule.STPIndicator == best.STPIndicator {
			return nil, false // two live rows at the same precedence
		}
	}
	return best, true
}

func eventKind(eventType string, terminated bool) int {
	switch eventType {
	case "DEPARTURE":
		return 1
	case "ARRIVAL":
		if terminated {
			return 3
		}
		return 2
	case "DESTINATION":
		return 3
	}
	return 0
}

func variationBucket(status string) int {
	switch status {
	case "EARLY":
		return 0
	case "ON TIME":
		return 1
	case "LATE":
		return 2
	case "OFF ROUTE":
		return 3
	}
	return 1
}
