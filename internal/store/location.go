package store

import (
	"fmt"
	"strings"
)

// InsertLocation writes one LO/LI/LT row.
func (t *Tx) InsertLocation(l *ScheduleLocation) error {
	_, err := t.exec(`INSERT INTO cif_schedule_locations (cif_schedule_id,
		record_identity, tiploc_code, tiploc_instance, arrival, departure, pass,
		public_arrival, public_departure, sort_time, next_day, platform, line,
		path, activity, engineering_allowance, pathing_allowance,
		performance_allowance)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		l.ScheduleID, l.RecordIdentity, l.Tiploc, l.TiplocInstance, l.Arrival,
		l.Departure, l.Pass, l.PublicArrival, l.PublicDepart, l.SortTime,
		l.NextDay, l.Platform, l.Line, l.Path, l.Activity, l.EngAllowance,
		l.PathAllowance, l.PerfAllowance)
	if err != nil {
		return fmt.Errorf("store: insert location %s: %w", l.Tiploc, err)
	}
	return nil
}

// InsertChangeEnRoute writes one CR row.
func (t *Tx) InsertChangeEnRoute(c *ChangeEnRoute) error {
	_, err := t.exec(`INSERT INTO cif_changes_en_route (cif_schedule_id,
		tiploc_code, tiploc_instance, category, signalling_id, headcode,
		power_type, timing_load, speed, op_characteristics, train_class,
		sleepers, reservations, connection_indicator, catering, branding,
		uic_code, service_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		c.ScheduleID, c.Tiploc, c.TiplocInst, c.Category, c.SignallingID,
		c.Headcode, c.PowerType, c.TimingLoad, c.Speed, c.OpChars, c.TrainClass,
		c.Sleepers, c.Reservations, c.ConnectInd, c.Catering, c.Branding,
		c.UICCode, c.ServiceCode)
	if err != nil {
		return fmt.Errorf("store: insert change en route %s: %w", c.Tiploc, err)
	}
	return nil
}

// ScheduleLocations returns the ordered stop list of a schedule.
func (t *Tx) ScheduleLocations(scheduleID int64) ([]*ScheduleLocation, error) {
	rows, err := t.query(`SELECT id, cif_schedule_id, record_identity,
		tiploc_code, tiploc_instance, arrival, departure, pass, public_arrival,
		public_departure, sort_time, next_day, platform, line, path, activity,
		engineering_allowance, pathing_allowance, performance_allowance
		FROM cif_schedule_locations WHERE cif_schedule_id = $1
		ORDER BY id`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ScheduleLocation
	for rows.Next() {
		var l ScheduleLocation
		if err := rows.Scan(&l.ID, &l.ScheduleID, &l.RecordIdentity, &l.Tiploc,
			&l.TiplocInstance, &l.Arrival, &l.Departure, &l.Pass,
			&l.PublicArrival, &l.PublicDepart, &l.SortTime, &l.NextDay,
			&l.Platform, &l.Line, &l.Path, &l.Activity, &l.EngAllowance,
			&l.PathAllowance, &l.PerfAllowance); err != nil {
			return nil, err
		}
		l.unpad()
		out = append(out, &l)
	}
	return out, rows.Err()
}

// unpad strips the space padding CHAR(n) columns acquire in Postgres so a
// blank field reads back as "".
func (l *ScheduleLocation) unpad() {
	for _, f := range []*string{&l.RecordIdentity, &l.TiplocInstance,
		&l.Arrival, &l.Departure, &l.Pass, &l.PublicArrival, &l.PublicDepart,
		&l.EngAllowance, &l.PathAllowance, &l.PerfAllowance} {
		*f = strings.TrimRight(*f, " ")
	}
}

// ScheduleCall is one schedule paired with its call at a particular TIPLOC,
// as returned by the deduced-activation candidate search.
type ScheduleCall struct {
	Schedule *Schedule
	Arrival  string
	Depart   string
	Pass     string
	SortTime int
	NextDay  bool
}

// FindCallsAt returns live non-VSTP schedules that call or pass at the given
// TIPLOC and whose date range covers the given midnight epoch. Day-of-week
// and time-window filtering is the caller's business.
func (t *Tx) FindCallsAt(tiploc string, dayEpoch, now int64) ([]*ScheduleCall, error) {
	rows, err := t.query(`SELECT `+prefixedScheduleCols("s")+`,
		l.arrival, l.departure, l.pass, l.sort_time, l.next_day
		FROM cif_schedules s
		JOIN cif_schedule_locations l ON l.cif_schedule_id = s.id
		WHERE l.tiploc_code = $1 AND s.update_id != 0 AND s.deleted > $3
		AND s.schedule_start_date <= $2 AND s.schedule_end_date >= $2
		ORDER BY `+stpCaseSQL("s.stp_indicator")+`, s.created DESC`,
		tiploc, dayEpoch, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScheduleCall
	for rows.Next() {
		var c ScheduleCall
		var s Schedule
		var stp string
		if err := rows.Scan(&s.ID, &s.UpdateID, &s.Created, &s.Deleted,
			&s.TrainUID, &stp, &s.StartDate, &s.EndDate, &s.DaysRun,
			&s.BankHoliday, &s.Status, &s.Category, &s.SignallingID,
			&s.Headcode, &s.ServiceCode, &s.PowerType, &s.TimingLoad, &s.Speed,
			&s.OpChars, &s.TrainClass, &s.Sleepers, &s.Reservations,
			&s.ConnectInd, &s.Catering, &s.Branding, &s.UICCode, &s.ATOCCode,
			&s.ApplicableTimetable, &s.DeducedHeadcode,
			&s.DeducedHeadcodeStatus,
			&c.Arrival, &c.Depart, &c.Pass, &c.SortTime, &c.NextDay); err != nil {
			return nil, err
		}
		stp = strings.TrimRight(stp, " ")
		if len(stp) > 0 {
			s.STPIndicator = stp[0]
		}
		s.unpad()
		c.Arrival = strings.TrimRight(c.Arrival, " ")
		c.Depart = strings.TrimRight(c.Depart, " ")
		c.Pass = strings.TrimRight(c.Pass, " ")
		c.Schedule = &s
		out = append(out, &c)
	}
	return out, rows.Err()
}

func prefixedScheduleCols(p string) string {
	return p + `.id, ` + p + `.update_id, ` + p + `.created, ` + p + `.deleted, ` +
		p + `.train_uid, ` + p + `.stp_indicator, ` + p + `.schedule_start_date, ` +
		p + `.schedule_end_date, ` + p + `.days_run, ` + p + `.bank_holiday, ` +
		p + `.train_status, ` + p + `.category, ` + p + `.signalling_id, ` +
		p + `.headcode, ` + p + `.service_code, ` + p + `.power_type, ` +
		p + `.timing_load, ` + p + `.speed, ` + p + `.op_characteristics, ` +
		p + `.train_class, ` + p + `.sleepers, ` + p + `.reservations, ` +
		p + `.connection_indicator, ` + p + `.catering, ` + p + `.branding, ` +
		p + `.uic_code, ` + p + `.atoc_code, ` + p + `.applicable_timetable, ` +
		p + `.deduced_headcode, ` + p + `.deduced_headcode_status`
}
