package cif

import (
	"github.com/philwieland/openrail-sub000/internal/railtime"
	"github.com/philwieland/openrail-sub000/internal/store"
)

// ScheduleFromBS builds the schedule row for a BS card. The caller fills in
// UpdateID and any deduced headcode.
func ScheduleFromBS(card Card, now int64) (*store.Schedule, error) {
	start, err := cifDateEpoch(card.StartDateRaw())
	if err != nil {
		return nil, err
	}
	end, err := cifDateEpoch(card.EndDateRaw())
	if err != nil {
		return nil, err
	}
	return &store.Schedule{
		Created:      now,
		Deleted:      store.NeverDeleted,
		TrainUID:     card.TrainUID(),
		STPIndicator: card.STPIndicator(),
		StartDate:    start,
		EndDate:      end,
		DaysRun:      card.DaysRun(),
		BankHoliday:  card.BankHoliday(),
		Status:       card.TrainStatus(),
		Category:     card.Category(),
		SignallingID: card.SignallingID(),
		Headcode:     card.Headcode(),
		ServiceCode:  card.ServiceCode(),
		PowerType:    card.PowerType(),
		TimingLoad:   card.TimingLoad(),
		Speed:        card.Speed(),
		OpChars:      card.OpChars(),
		TrainClass:   card.TrainClass(),
		Sleepers:     card.Sleepers(),
		Reservations: card.Reservations(),
		ConnectInd:   card.ConnectInd(),
		Catering:     card.Catering(),
		Branding:     card.Branding(),
	}, nil
}

// LocationFromCard builds the location row for an LO, LI or LT card. SortTime
// and NextDay are left for the caller, who knows the origin time.
func LocationFromCard(card Card) *store.ScheduleLocation {
	l := &store.ScheduleLocation{
		RecordIdentity: card.Identity(),
		Tiploc:         card.LocTiploc(),
		TiplocInstance: card.LocInstance(),
	}
	switch card.Identity() {
	case "LO":
		l.Departure = card.LODeparture()
		l.PublicDepart = card.LOPublicDep()
		l.Platform = card.LOPlatform()
		l.Line = card.LOLine()
		l.Activity = card.LOActivity()
		l.EngAllowance = card.LOEngAllowance()
		l.PathAllowance = card.LOPathAllow()
		l.PerfAllowance = card.LOPerfAllow()
	case "LI":
		l.Arrival = card.LIArrival()
		l.Departure = card.LIDeparture()
		l.Pass = card.LIPass()
		l.PublicArrival = card.LIPublicArr()
		l.PublicDepart = card.LIPublicDep()
		l.Platform = card.LIPlatform()
		l.Line = card.LILine()
		l.Path = card.LIPath()
		l.Activity = card.LIActivity()
		l.EngAllowance = card.LIEngAllowance()
		l.PathAllowance = card.LIPathAllow()
		l.PerfAllowance = card.LIPerfAllow()
	case "LT":
		l.Arrival = card.LTArrival()
		l.PublicArrival = card.LTPublicArr()
		l.Platform = card.LTPlatform()
		l.Path = card.LTPath()
		l.Activity = card.LTActivity()
	}
	return l
}

// LocationSortTime picks the first populated time in arrival, departure,
// pass order and quantises it. Returns 0 when no time is present.
func LocationSortTime(arrival, departure, pass string) (int, error) {
	for _, t := range []string{arrival, departure, pass} {
		s, err := railtime.SortTime(t)
		if err != nil {
			return 0, err
		}
		if s >= 0 {
			return s, nil
		}
	}
	return 0, nil
}

func cifDateEpoch(s string) (int64, error) {
	t, sentinel, err := railtime.ParseCIFDate(s)
	if err != nil {
		return 0, err
	}
	if sentinel {
		return store.NeverDeleted, nil
	}
	return t.Unix(), nil
}
