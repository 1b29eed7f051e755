package vstp

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/philwieland/openrail-sub000/internal/feed"
	"github.com/philwieland/openrail-sub000/internal/metrics"
	"github.com/philwieland/openrail-sub000/internal/railtime"
	"github.com/philwieland/openrail-sub000/internal/store"
)

// CounterNames is the ordered statistics block for the VSTP daemon.
var CounterNames = []string{
	"GoodMessage",
	"NotVSTP",
	"Create",
	"Update",
	"Delete",
	"DeleteHit",
	"DeleteMiss",
	"DeleteMulti",
	"UpdateDeleteMiss",
	"UpdateDeleteMulti",
	"HeadcodeDeduced",
	"ScheduleLocCreated",
}

// deducedHeadcodeWindow bounds the lookback for copying a deduced headcode
// onto a fresh overlay.
const deducedHeadcodeWindow = 64 * 24 * time.Hour

// Ingester applies VSTP transactions to the store, one frame per database
// transaction.
type Ingester struct {
	Store    *store.Store
	Counters *metrics.CounterSet
	Logger   *log.Logger
	Debug    bool
	Now      func() time.Time
}

// HandleFrame is the feed.Handler for the VSTP stream.
func (in *Ingester) HandleFrame(body []byte) error {
	msg, err := Parse(body)
	if err != nil || msg == nil {
		in.Counters.Incr("NotVSTP")
		if in.Debug {
			in.Logger.Printf("not a VSTP message: %.120s", string(body))
		}
		return feed.ErrSkip
	}

	switch msg.Schedule.TransactionType {
	case "Create", "Update", "Delete":
	default:
		in.Counters.Incr("NotVSTP")
		in.Logger.Printf("MINOR unknown VSTP transaction %q", msg.Schedule.TransactionType)
		return feed.ErrSkip
	}

	now := in.now()
	err = in.Store.Transact(func(tx *store.Tx) error {
		if err := in.applySchedule(tx, &msg.Schedule, now); err != nil {
			return err
		}
		return tx.SetStatus(store.StatusVSTPProcessed, now.Unix())
	})
	if err != nil {
		return fmt.Errorf("vstp: %s %s: %w",
			msg.Schedule.TransactionType, msg.Schedule.UID(), err)
	}
	in.Counters.Incr("GoodMessage")
	return nil
}

func (in *Ingester) applySchedule(tx *store.Tx, s *Schedule, now time.Time) error {
	switch s.TransactionType {
	case "Create":
		in.Counters.Incr("Create")
		return in.create(tx, s, now)
	case "Delete":
		in.Counters.Incr("Delete")
		return in.delete(tx, s, now)
	case "Update":
		in.Counters.Incr("Update")
		return in.update(tx, s, now)
	default:
		// HandleFrame has already filtered the transaction type.
		return fmt.Errorf("vstp: unhandled transaction %q", s.TransactionType)
	}
}

func (in *Ingester) delete(tx *store.Tx, s *Schedule, now time.Time) error {
	start, end, err := dates(s)
	if err != nil {
		return err
	}
	n, err := tx.DeleteVSTPSchedules(s.UID(), start, end, s.STP(), now.Unix())
	if err != nil {
		return err
	}
	switch {
	case n == 1:
		in.Counters.Incr("DeleteHit")
	case n == 0:
		in.Counters.Incr("DeleteMiss")
		in.Logger.Printf("MINOR VSTP delete matched nothing for %s", s.UID())
	default:
		in.Counters.Incr("DeleteMulti")
		in.Logger.Printf("MINOR VSTP delete matched %d rows for %s", n, s.UID())
	}
	return nil
}

// update is delete-then-create. Zero or multiple delete matches are logged
// and counted but the create still goes ahead: the feed's view wins.
func (in *Ingester) update(tx *store.Tx, s *Schedule, now time.Time) error {
	start, end, err := dates(s)
	if err != nil {
		return err
	}
	n, err := tx.DeleteVSTPSchedules(s.UID(), start, end, s.STP(), now.Unix())
	if err != nil {
		return err
	}
	if n == 0 {
		in.Counters.Incr("UpdateDeleteMiss")
		in.Logger.Printf("MINOR VSTP update found no row to supersede for %s", s.UID())
	} else if n > 1 {
		in.Counters.Incr("UpdateDeleteMulti")
		in.Logger.Printf("MINOR VSTP update superseded %d rows for %s", n, s.UID())
	}
	return in.create(tx, s, now)
}

func (in *Ingester) create(tx *store.Tx, s *Schedule, now time.Time) error {
	start, end, err := dates(s)
	if err != nil {
		return err
	}

	row := &store.Schedule{
		UpdateID:     0, // VSTP origin
		Created:      now.Unix(),
		Deleted:      store.NeverDeleted,
		TrainUID:     s.UID(),
		STPIndicator: s.STP(),
		StartDate:    start,
		EndDate:      end,
		DaysRun:      s.DaysRun,
		BankHoliday:  strings.TrimSpace(s.BankHoliday),
		Status:       strings.TrimSpace(s.TrainStatus),
	}

	var locs []Location
	if len(s.Segments) > 0 {
		seg := &s.Segments[0]
		row.SignallingID = strings.TrimSpace(seg.SignallingID)
		row.Headcode = strings.TrimSpace(seg.Headcode)
		row.Category = strings.TrimSpace(seg.Category)
		row.ServiceCode = strings.TrimSpace(seg.ServiceCode)
		row.PowerType = strings.TrimSpace(seg.PowerType)
		row.TimingLoad = strings.TrimSpace(seg.TimingLoad)
		row.Speed = strings.TrimSpace(seg.Speed)
		row.OpChars = strings.TrimSpace(seg.OpChars)
		row.TrainClass = strings.TrimSpace(seg.TrainClass)
		row.Sleepers = strings.TrimSpace(seg.Sleepers)
		row.Reservations = strings.TrimSpace(seg.Reservations)
		row.ConnectInd = strings.TrimSpace(seg.ConnectInd)
		row.Catering = strings.TrimSpace(seg.Catering)
		row.Branding = strings.TrimSpace(seg.Branding)
		row.UICCode = strings.TrimSpace(seg.UICCode)
		row.ATOCCode = strings.TrimSpace(seg.ATOCCode)
		row.ApplicableTimetable = strings.TrimSpace(s.Applicable)
		locs = seg.Locations
	}

	// A fresh overlay with no signalling id inherits the most recent
	// deduced headcode for its UID.
	if row.STPIndicator == 'O' && row.SignallingID == "" {
		hc, err := tx.LatestDeducedHeadcode(row.TrainUID,
			now.Add(-deducedHeadcodeWindow).Unix())
		if err != nil {
			return err
		}
		if hc != "" {
			row.DeducedHeadcode = hc
			row.DeducedHeadcodeStatus = "D"
			in.Counters.Incr("HeadcodeDeduced")
		}
	}

	id, err := tx.InsertSchedule(row)
	if err != nil {
		return err
	}

	originSort := -1
	for i := range locs {
		l, err := storeLocation(&locs[i], id, i, len(locs))
		if err != nil {
			return err
		}
		if originSort < 0 {
			originSort = l.SortTime
		} else if l.SortTime >= 0 && l.SortTime < originSort {
			l.NextDay = true
		}
		if err := tx.InsertLocation(l); err != nil {
			return err
		}
		in.Counters.Incr("ScheduleLocCreated")
	}
	return nil
}

func storeLocation(l *Location, scheduleID int64, idx, total int) (*store.ScheduleLocation, error) {
	arr, err := railtime.CanonTime(l.Arrival)
	if err != nil {
		return nil, err
	}
	dep, err := railtime.CanonTime(l.Departure)
	if err != nil {
		return nil, err
	}
	pass, err := railtime.CanonTime(l.Pass)
	if err != nil {
		return nil, err
	}

	identity := "LI"
	switch {
	case idx == 0:
		identity = "LO"
	case idx == total-1:
		identity = "LT"
	}

	sort := -1
	for _, t := range []string{arr, dep, pass} {
		s, err := railtime.SortTime(t)
		if err != nil {
			return nil, err
		}
		if s >= 0 {
			sort = s
			break
		}
	}
	if sort < 0 {
		sort = 0
	}

	return &store.ScheduleLocation{
		ScheduleID:     scheduleID,
		RecordIdentity: identity,
		Tiploc:         strings.TrimSpace(l.Loc.Tiploc.ID),
		Arrival:        strings.TrimRight(arr, " "),
		Departure:      strings.TrimRight(dep, " "),
		Pass:           strings.TrimRight(pass, " "),
		PublicArrival:  strings.TrimSpace(l.PublicArrival),
		PublicDepart:   strings.TrimSpace(l.PublicDepart),
		SortTime:       sort,
		Platform:       strings.TrimSpace(l.Platform),
		Line:           strings.TrimSpace(l.Line),
		Path:           strings.TrimSpace(l.Path),
		Activity:       strings.TrimSpace(l.Activity),
		EngAllowance:   strings.TrimSpace(l.EngAllowance),
		PathAllowance:  strings.TrimSpace(l.PathAllowance),
		PerfAllowance:  strings.TrimSpace(l.PerfAllowance),
	}, nil
}

func dates(s *Schedule) (start, end int64, err error) {
	st, err := railtime.ParseISODate(strings.TrimSpace(s.StartDate))
	if err != nil {
		return 0, 0, err
	}
	en, err := railtime.ParseISODate(strings.TrimSpace(s.EndDate))
	if err != nil {
		return 0, 0, err
	}
	if en.Before(st) {
		return 0, 0, fmt.Errorf("vstp: end date %s before start %s",
			s.EndDate, s.StartDate)
	}
	return st.Unix(), en.Unix(), nil
}

func (in *Ingester) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}
