package cif

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/philwieland/openrail-sub000/internal/metrics"
	"github.com/philwieland/openrail-sub000/internal/store"
)

// Loading policy failures, distinguished so the caller can log them as
// CRITICAL without retrying.
var (
	ErrSuperseded     = errors.New("cif: extract not newer than last applied")
	ErrUnexpectedFull = errors.New("cif: full extract arrived when update expected")
	ErrNoHeader       = errors.New("cif: file does not start with HD card")
)

// CounterNames is the ordered statistics block for the loader.
var CounterNames = []string{
	"CardsRead",
	"ScheduleCreated",
	"ScheduleDeleteHit",
	"ScheduleDeleteMiss",
	"ScheduleDeleteMulti",
	"LocationCreated",
	"ChangeEnRouteCreated",
	"AssocCreated",
	"AssocDeleteHit",
	"AssocDeleteMiss",
	"AssocDeleteMulti",
	"TiplocCreated",
	"TiplocAmended",
	"TiplocDeleted",
	"HeadcodeDeduced",
	"NotRecog",
}

// Loader applies one bulk CIF file to the store in a single transaction.
type Loader struct {
	Store    *store.Store
	Counters *metrics.CounterSet
	Logger   *log.Logger
	TestMode bool // parse and count only, no database
	Verbose  bool
	Now      func() time.Time

	tx         *store.Tx
	updateID   int64
	curSched   *store.Schedule
	originSort int

	cards, schedules, locations int64
	lastProgress                time.Time
}

// LoadFile parses and applies the file. allowFull permits a full-extract
// header; source distinguishes daily from full in the update batch.
// The whole file runs in one transaction; any error rolls everything back.
func (ld *Loader) LoadFile(path string, allowFull bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cif: %w", err)
	}
	defer f.Close()

	if !ld.TestMode {
		tx, err := ld.Store.Begin()
		if err != nil {
			return err
		}
		ld.tx = tx
		defer func() { ld.tx = nil }()
	}

	ld.lastProgress = ld.now()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 4096), 4096)

	first := true
	for scanner.Scan() {
		card := NewCard(scanner.Text())
		ld.cards++
		ld.count("CardsRead")

		if first {
			first = false
			if card.Identity() != "HD" {
				ld.rollback()
				return ErrNoHeader
			}
			if err := ld.applyHeader(card, allowFull); err != nil {
				ld.rollback()
				return err
			}
			continue
		}

		if err := ld.apply(card); err != nil {
			ld.rollback()
			return fmt.Errorf("cif: card %d: %w", ld.cards, err)
		}
		ld.progress()
	}
	if err := scanner.Err(); err != nil {
		ld.rollback()
		return fmt.Errorf("cif: read: %w", err)
	}

	if ld.TestMode {
		ld.Logger.Printf("test mode: %d cards, %d schedules, %d locations, nothing written",
			ld.cards, ld.schedules, ld.locations)
		return nil
	}
	if err := ld.tx.Commit(); err != nil {
		return fmt.Errorf("cif: commit: %w", err)
	}
	ld.Logger.Printf("applied %s: %d cards, %d schedules, %d locations",
		path, ld.cards, ld.schedules, ld.locations)
	return nil
}

// CheckHeader validates an HD card against loading policy: a full extract
// is only accepted when asked for, and the extract must be strictly newer
// than the last applied one, so re-running the same file changes nothing.
func CheckHeader(card Card, allowFull bool, lastApplied int64) (extract time.Time, full bool, err error) {
	extract, err = card.HeaderExtractTime()
	if err != nil {
		return
	}
	full = card.HeaderUpdateIndicator() == 'F'
	if full && !allowFull {
		err = ErrUnexpectedFull
		return
	}
	if extract.Unix() <= lastApplied {
		err = fmt.Errorf("%w: extract %s, last applied %s", ErrSuperseded,
			extract.Format(time.RFC3339),
			time.Unix(lastApplied, 0).UTC().Format(time.RFC3339))
	}
	return
}

func (ld *Loader) applyHeader(card Card, allowFull bool) error {
	latest := int64(-1)
	if !ld.TestMode {
		var err error
		latest, err = ld.tx.LatestExtractTime()
		if err != nil {
			return err
		}
	}

	extract, full, err := CheckHeader(card, allowFull, latest)
	if err != nil {
		return err
	}

	if ld.TestMode {
		ld.Logger.Printf("header: extract %s, full=%v", extract.Format(time.RFC3339), full)
		return nil
	}

	source := store.SourceDaily
	if full {
		source = store.SourceFull
	}
	ld.updateID, err = ld.tx.InsertBatch(extract.Unix(), source, ld.now().Unix())
	return err
}

func (ld *Loader) apply(card Card) error {
	switch card.Identity() {
	case "BS":
		return ld.applyBS(card)
	case "BX":
		return ld.applyBX(card)
	case "LO", "LI", "LT":
		return ld.applyLocation(card)
	case "CR":
		return ld.applyCR(card)
	case "AA":
		return ld.applyAA(card)
	case "TI":
		return ld.applyTI(card)
	case "TA":
		return ld.applyTA(card)
	case "TD":
		return ld.applyTD(card)
	case "ZZ":
		return nil
	default:
		ld.count("NotRecog")
		return nil
	}
}

func (ld *Loader) applyBS(card Card) error {
	ld.curSched = nil
	tt := card.TransactionType()
	uid := card.TrainUID()
	now := ld.now().Unix()

	start, err := cifDateEpoch(card.StartDateRaw())
	if err != nil {
		return err
	}

	if tt == 'R' || tt == 'D' {
		if !ld.TestMode {
			n, err := ld.tx.DeleteCIFSchedules(uid, start, card.STPIndicator(), now)
			if err != nil {
				return err
			}
			switch {
			case n == 1:
				ld.count("ScheduleDeleteHit")
			case n > 1:
				ld.count("ScheduleDeleteMulti")
				ld.Logger.Printf("MINOR schedule delete matched %d rows for %s", n, uid)
			case tt == 'D':
				// A revise of an expired schedule deletes nothing and is
				// normal; a plain delete finding nothing is worth counting.
				ld.count("ScheduleDeleteMiss")
			}
		}
		if tt == 'D' {
			return nil
		}
	}

	s, err := ScheduleFromBS(card, now)
	if err != nil {
		return err
	}
	s.UpdateID = ld.updateID

	if !ld.TestMode {
		// Carry a deduced headcode forward onto a short-term schedule when
		// an earlier version of this UID had one.
		if s.STPIndicator != 'P' && s.SignallingID == "" {
			hc, err := ld.tx.LatestDeducedHeadcode(uid, 0)
			if err != nil {
				return err
			}
			if hc != "" {
				s.DeducedHeadcode = hc
				s.DeducedHeadcodeStatus = "D"
				ld.count("HeadcodeDeduced")
			}
		}
		if _, err := ld.tx.InsertSchedule(s); err != nil {
			return err
		}
	}
	ld.curSched = s
	ld.originSort = -1
	ld.schedules++
	ld.count("ScheduleCreated")
	return nil
}

func (ld *Loader) applyBX(card Card) error {
	if ld.curSched == nil {
		ld.count("NotRecog")
		return nil
	}
	ld.curSched.UICCode = card.BXUICCode()
	ld.curSched.ATOCCode = card.BXATOCCode()
	ld.curSched.ApplicableTimetable = card.BXApplicable()
	if ld.TestMode {
		return nil
	}
	return ld.tx.UpdateScheduleBX(ld.curSched.ID, ld.curSched.UICCode,
		ld.curSched.ATOCCode, ld.curSched.ApplicableTimetable)
}

func (ld *Loader) applyLocation(card Card) error {
	if ld.curSched == nil {
		ld.count("NotRecog")
		return nil
	}

	l := LocationFromCard(card)
	l.ScheduleID = ld.curSched.ID

	sort, err := LocationSortTime(l.Arrival, l.Departure, l.Pass)
	if err != nil {
		return err
	}
	l.SortTime = sort
	if ld.originSort < 0 {
		ld.originSort = sort
	} else if sort >= 0 && sort < ld.originSort {
		l.NextDay = true
	}

	ld.locations++
	ld.count("LocationCreated")
	if ld.TestMode {
		return nil
	}
	return ld.tx.InsertLocation(l)
}

func (ld *Loader) applyCR(card Card) error {
	if ld.curSched == nil {
		ld.count("NotRecog")
		return nil
	}
	cr := &store.ChangeEnRoute{
		ScheduleID:   ld.curSched.ID,
		Tiploc:       card.CRTiploc(),
		TiplocInst:   card.CRInstance(),
		Category:     card.CRCategory(),
		SignallingID: card.CRSignallingID(),
		Headcode:     card.CRHeadcode(),
		ServiceCode:  card.CRServiceCode(),
		PowerType:    card.CRPowerType(),
		TimingLoad:   card.CRTimingLoad(),
		Speed:        card.CRSpeed(),
		OpChars:      card.CROpChars(),
		TrainClass:   card.CRTrainClass(),
		Sleepers:     card.CRSleepers(),
		Reservations: card.CRReservations(),
		ConnectInd:   card.CRConnectInd(),
		Catering:     card.CRCatering(),
		Branding:     card.CRBranding(),
		UICCode:      card.CRUICCode(),
	}
	ld.count("ChangeEnRouteCreated")
	if ld.TestMode {
		return nil
	}
	return ld.tx.InsertChangeEnRoute(cr)
}

func (ld *Loader) applyAA(card Card) error {
	tt := card.TransactionType()
	now := ld.now().Unix()

	start, err := cifDateEpoch(card.AAStartDateRaw())
	if err != nil {
		return err
	}

	if tt == 'R' || tt == 'D' {
		if !ld.TestMode {
			n, err := ld.tx.DeleteAssociations(card.AAMainUID(), card.AAAssocUID(),
				start, card.AALocation(), card.STPIndicator(), now)
			if err != nil {
				return err
			}
			switch {
			case n == 1:
				ld.count("AssocDeleteHit")
			case n > 1:
				ld.count("AssocDeleteMulti")
			case tt == 'D':
				ld.count("AssocDeleteMiss")
			}
		}
		if tt == 'D' {
			return nil
		}
	}

	end, err := cifDateEpoch(card.AAEndDateRaw())
	if err != nil {
		return err
	}

	a := &store.Association{
		UpdateID:      ld.updateID,
		Created:       now,
		Deleted:       store.NeverDeleted,
		MainUID:       card.AAMainUID(),
		AssocUID:      card.AAAssocUID(),
		StartDate:     start,
		EndDate:       end,
		DaysRun:       card.AADaysRun(),
		Category:      card.AACategory(),
		DateIndicator: card.AADateInd(),
		Location:      card.AALocation(),
		BaseSuffix:    card.AABaseSuffix(),
		AssocSuffix:   card.AAAssocSuffix(),
		AssocType:     card.AAAssocType(),
		STPIndicator:  card.STPIndicator(),
	}
	ld.count("AssocCreated")
	if ld.TestMode {
		return nil
	}
	_, err = ld.tx.InsertAssociation(a)
	return err
}

func (ld *Loader) applyTI(card Card) error {
	ld.count("TiplocCreated")
	if ld.TestMode {
		return nil
	}
	return ld.tx.InsertTiploc(ld.tiplocFromCard(card, card.TICode()))
}

// applyTA is soft-delete-old-then-insert-new; the amend card may rename the
// TIPLOC, in which case the new row carries the new code.
func (ld *Loader) applyTA(card Card) error {
	ld.count("TiplocAmended")
	if ld.TestMode {
		return nil
	}
	now := ld.now().Unix()
	if _, err := ld.tx.DeleteTiplocs(card.TICode(), now); err != nil {
		return err
	}
	code := card.TANewCode()
	if code == "" {
		code = card.TICode()
	}
	return ld.tx.InsertTiploc(ld.tiplocFromCard(card, code))
}

func (ld *Loader) applyTD(card Card) error {
	ld.count("TiplocDeleted")
	if ld.TestMode {
		return nil
	}
	_, err := ld.tx.DeleteTiplocs(card.TICode(), ld.now().Unix())
	return err
}

func (ld *Loader) tiplocFromCard(card Card, code string) *store.Tiploc {
	return &store.Tiploc{
		UpdateID:       ld.updateID,
		Created:        ld.now().Unix(),
		Deleted:        store.NeverDeleted,
		Code:           code,
		Capitals:       card.TICapitals(),
		NALCO:          card.TINALCO(),
		NLCCheck:       card.TINLCCheck(),
		TPSDescription: card.TITPSDesc(),
		Stanox:         card.TIStanox(),
		CRS:            card.TICRS(),
		Description:    card.TIDescription(),
	}
}

func (ld *Loader) count(name string) {
	if ld.Counters != nil {
		ld.Counters.Incr(name)
	}
}

func (ld *Loader) now() time.Time {
	if ld.Now != nil {
		return ld.Now()
	}
	return time.Now()
}

func (ld *Loader) rollback() {
	if ld.tx != nil {
		ld.tx.Rollback()
	}
}

// progress logs a throughput line every ten minutes, or every minute in
// verbose mode.
func (ld *Loader) progress() {
	interval := 10 * time.Minute
	if ld.Verbose {
		interval = time.Minute
	}
	if ld.now().Sub(ld.lastProgress) < interval {
		return
	}
	ld.lastProgress = ld.now()
	ld.Logger.Printf("progress: %d cards, %d schedules, %d locations",
		ld.cards, ld.schedules, ld.locations)
}
