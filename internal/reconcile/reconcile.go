// Package reconcile diffs the live schedule store against an authoritative
// full CIF extract. It never reloads: it walks the extract card by card,
// matches each schedule group against the store, and reports (or optionally
// repairs) the differences.
package reconcile

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/philwieland/openrail-sub000/internal/cif"
	"github.com/philwieland/openrail-sub000/internal/metrics"
	"github.com/philwieland/openrail-sub000/internal/store"
)

var (
	ErrNotFull     = errors.New("reconcile: extract is not a full extract")
	ErrNotSaturday = errors.New("reconcile: not Saturday, use override to run anyway")
)

// CounterNames is the ordered statistics block for a reconciliation run.
var CounterNames = []string{
	"CardsRead",
	"ScheduleExamined",
	"ScheduleOld",
	"ScheduleMissing",
	"ScheduleMatch1",
	"ScheduleMatchM",
	"ScheduleUnmatched",
	"ScheduleCreated",
	"ScheduleDeleted",
	"StoreExtra",
}

// group is one BS card with its trailing BX, location and CR cards.
type group struct {
	bs    cif.Card
	bx    *cif.Card
	cards []cif.Card // LO, LI, LT, CR in file order
}

// Reconciler holds one run's state. Apply turns the report-only pass into a
// repairing one: missing schedules are created and store rows absent from
// the extract are soft-deleted.
type Reconciler struct {
	Store    *store.Store
	Counters *metrics.CounterSet
	Logger   *log.Logger
	Apply    bool
	Override bool   // skip the Saturday check
	Verbose  bool
	Output   string // demote-to-revise card file, empty to disable
	Now      func() time.Time

	tx       *store.Tx
	updateID int64
	bitmap   *bitmap
	out      *os.File
	outCount int
}

// Run walks the extract against the store. The whole pass, including any
// repairs, is one transaction.
func (r *Reconciler) Run(path string) error {
	now := r.now()
	if !r.Override && now.Weekday() != time.Saturday {
		return ErrNotSaturday
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	defer f.Close()

	if r.Output != "" {
		r.out, err = os.Create(r.Output)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		defer r.out.Close()
	}

	tx, err := r.Store.Begin()
	if err != nil {
		return err
	}
	r.tx = tx
	defer tx.Rollback()

	if err := r.snapshot(now.Unix()); err != nil {
		return err
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 4096), 4096)

	var cur *group
	first := true
	for scanner.Scan() {
		card := cif.NewCard(scanner.Text())
		r.Counters.Incr("CardsRead")

		if first {
			first = false
			if card.Identity() != "HD" {
				return cif.ErrNoHeader
			}
			if err := r.header(card, now); err != nil {
				return err
			}
			continue
		}

		switch card.Identity() {
		case "BS":
			if err := r.flush(cur, now); err != nil {
				return err
			}
			cur = &group{bs: card}
		case "BX":
			if cur != nil {
				c := card
				cur.bx = &c
			}
		case "LO", "LI", "LT", "CR":
			if cur != nil {
				cur.cards = append(cur.cards, card)
			}
		case "ZZ":
			if err := r.flush(cur, now); err != nil {
				return err
			}
			cur = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reconcile: read: %w", err)
	}
	if err := r.flush(cur, now); err != nil {
		return err
	}

	if err := r.sweep(now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reconcile: commit: %w", err)
	}
	if r.out != nil {
		r.Logger.Printf("wrote %d demote-to-revise card groups to %s", r.outCount, r.Output)
	}
	return nil
}

// header verifies the full-extract indicator and, in apply mode, opens the
// update batch new schedules will be attributed to.
func (r *Reconciler) header(card cif.Card, now time.Time) error {
	if card.HeaderUpdateIndicator() != 'F' {
		return ErrNotFull
	}
	extract, err := card.HeaderExtractTime()
	if err != nil {
		return err
	}
	r.Logger.Printf("reconciling against full extract of %s",
		extract.Format(time.RFC3339))
	if r.Apply {
		r.updateID, err = r.tx.InsertBatch(extract.Unix(), store.SourceFull, now.Unix())
		return err
	}
	return nil
}

// snapshot loads every live non-VSTP schedule id into the bitmap. Any bit
// still set after the walk is a schedule the extract does not know about.
func (r *Reconciler) snapshot(now int64) error {
	lo, hi, err := r.tx.LiveScheduleIDRange(now)
	if err != nil {
		return err
	}
	r.bitmap = newBitmap(lo, hi)
	n := 0
	if err := r.tx.LiveScheduleIDs(now, func(id int64) {
		r.bitmap.set(id)
		n++
	}); err != nil {
		return err
	}
	r.Logger.Printf("snapshot: %d live schedules, ids %d..%d", n, lo, hi)
	return nil
}

func (r *Reconciler) flush(g *group, now time.Time) error {
	if g == nil {
		return nil
	}
	r.Counters.Incr("ScheduleExamined")
	if r.Verbose && r.Counters.Day("ScheduleExamined")%100000 == 0 {
		r.Logger.Printf("progress: %d schedules examined",
			r.Counters.Day("ScheduleExamined"))
	}

	s, err := cif.ScheduleFromBS(g.bs, now.Unix())
	if err != nil {
		return err
	}
	if s.EndDate < now.Unix() {
		r.Counters.Incr("ScheduleOld")
		return nil
	}

	matches, err := r.tx.FindReconcileSchedules(s.TrainUID, s.STPIndicator,
		s.StartDate, now.Unix())
	if err != nil {
		return err
	}

	switch len(matches) {
	case 0:
		r.Counters.Incr("ScheduleMissing")
		r.Logger.Printf("missing from store: %s stp %c start %s",
			s.TrainUID, s.STPIndicator,
			time.Unix(s.StartDate, 0).UTC().Format("2006-01-02"))
		if r.Apply {
			return r.create(g, s, now)
		}
		return nil
	case 1:
		same, err := r.sameCalls(matches[0].ID, g)
		if err != nil {
			return err
		}
		r.bitmap.clear(matches[0].ID)
		if same {
			r.Counters.Incr("ScheduleMatch1")
			return nil
		}
		r.Counters.Incr("ScheduleUnmatched")
		r.Logger.Printf("location mismatch: %s stp %c schedule %d",
			s.TrainUID, s.STPIndicator, matches[0].ID)
		r.demote(g)
		return nil
	default:
		// The store holds more than one live row on the reconciler key.
		// All are accounted for; a human sorts out which is right.
		r.Counters.Incr("ScheduleMatchM")
		r.Logger.Printf("MINOR ambiguous match: %s stp %c, %d live rows",
			s.TrainUID, s.STPIndicator, len(matches))
		for _, m := range matches {
			r.bitmap.clear(m.ID)
		}
		return nil
	}
}

// sameCalls compares the stored location list against the card group record
// for record. The store returns CHAR columns trimmed; card time fields keep
// their fixed width, so both sides are compared trimmed.
func (r *Reconciler) sameCalls(scheduleID int64, g *group) (bool, error) {
	stored, err := r.tx.ScheduleLocations(scheduleID)
	if err != nil {
		return false, err
	}
	var fromFile []*store.ScheduleLocation
	for _, c := range g.cards {
		switch c.Identity() {
		case "LO", "LI", "LT":
			fromFile = append(fromFile, cif.LocationFromCard(c))
		}
	}
	return locationsMatch(stored, fromFile), nil
}

// locationsMatch compares two stop lists field by field, trimming trailing
// spaces on both sides: stored values may carry CHAR(n) padding and card
// values keep their fixed width.
func locationsMatch(stored, fromFile []*store.ScheduleLocation) bool {
	if len(stored) != len(fromFile) {
		return false
	}
	trim := func(s string) string { return strings.TrimRight(s, " ") }
	for i := range stored {
		a, b := stored[i], fromFile[i]
		if trim(a.RecordIdentity) != trim(b.RecordIdentity) ||
			trim(a.Tiploc) != trim(b.Tiploc) ||
			trim(a.TiplocInstance) != trim(b.TiplocInstance) ||
			trim(a.Arrival) != trim(b.Arrival) ||
			trim(a.Departure) != trim(b.Departure) ||
			trim(a.Pass) != trim(b.Pass) ||
			trim(a.Platform) != trim(b.Platform) {
			return false
		}
	}
	return true
}

// create inserts the group as the bulk loader would have.
func (r *Reconciler) create(g *group, s *store.Schedule, now time.Time) error {
	s.UpdateID = r.updateID
	if _, err := r.tx.InsertSchedule(s); err != nil {
		return err
	}
	if g.bx != nil {
		if err := r.tx.UpdateScheduleBX(s.ID, g.bx.BXUICCode(),
			g.bx.BXATOCCode(), g.bx.BXApplicable()); err != nil {
			return err
		}
	}
	originSort := -1
	for _, c := range g.cards {
		switch c.Identity() {
		case "LO", "LI", "LT":
			l := cif.LocationFromCard(c)
			l.ScheduleID = s.ID
			sort, err := cif.LocationSortTime(l.Arrival, l.Departure, l.Pass)
			if err != nil {
				return err
			}
			l.SortTime = sort
			if originSort < 0 {
				originSort = sort
			} else if sort >= 0 && sort < originSort {
				l.NextDay = true
			}
			if err := r.tx.InsertLocation(l); err != nil {
				return err
			}
		}
	}
	r.Counters.Incr("ScheduleCreated")
	return nil
}

// demote emits the card group to the output file as a revise transaction for
// downstream application.
func (r *Reconciler) demote(g *group) {
	if r.out == nil {
		return
	}
	bs := []byte(string(g.bs))
	bs[2] = 'R'
	fmt.Fprintln(r.out, string(bs))
	if g.bx != nil {
		fmt.Fprintln(r.out, string(*g.bx))
	}
	for _, c := range g.cards {
		fmt.Fprintln(r.out, string(c))
	}
	r.outCount++
}

// sweep reports every still-set bit: a live schedule the full extract never
// mentioned. In apply mode these rows are soft-deleted.
func (r *Reconciler) sweep(now time.Time) error {
	var extra []int64
	r.bitmap.each(func(id int64) {
		extra = append(extra, id)
	})
	for _, id := range extra {
		r.Counters.Incr("StoreExtra")
		s, err := r.tx.GetSchedule(id)
		if err != nil {
			return err
		}
		if s == nil {
			continue
		}
		r.Logger.Printf("in store but not in extract: schedule %d %s stp %c",
			id, s.TrainUID, s.STPIndicator)
		if r.Apply {
			if err := r.tx.SoftDeleteSchedule(id, now.Unix()); err != nil {
				return err
			}
			r.Counters.Incr("ScheduleDeleted")
		}
	}
	r.Logger.Printf("sweep: %d schedules in store only", len(extra))
	return nil
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
