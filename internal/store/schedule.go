package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// STPRank orders STP indicators by precedence, lower first: an overlay
// beats a new short-term schedule beats a permanent one beats a
// cancellation. Unknown indicators sort last.
func STPRank(stp byte) int {
	switch stp {
	case 'O':
		return 0
	case 'N':
		return 1
	case 'P':
		return 2
	case 'C':
		return 3
	}
	return 4
}

// stpCaseSQL renders STPRank as a SQL CASE so ORDER BY clauses follow the
// same precedence the Go side assumes when it takes the first row.
func stpCaseSQL(col string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CASE %s", col)
	for _, stp := range []byte{'O', 'N', 'P', 'C'} {
		fmt.Fprintf(&b, " WHEN '%c' THEN %d", stp, STPRank(stp))
	}
	fmt.Fprintf(&b, " ELSE %d END", STPRank(0))
	return b.String()
}

var stpOrder = stpCaseSQL("stp_indicator")

const scheduleCols = `id, update_id, created, deleted, train_uid, stp_indicator,
	schedule_start_date, schedule_end_date, days_run, bank_holiday, train_status,
	category, signalling_id, headcode, service_code, power_type, timing_load,
	speed, op_characteristics, train_class, sleepers, reservations,
	connection_indicator, catering, branding, uic_code, atoc_code,
	applicable_timetable, deduced_headcode, deduced_headcode_status`

func scanSchedule(row interface{ Scan(...interface{}) error }) (*Schedule, error) {
	var s Schedule
	var stp string
	err := row.Scan(&s.ID, &s.UpdateID, &s.Created, &s.Deleted, &s.TrainUID, &stp,
		&s.StartDate, &s.EndDate, &s.DaysRun, &s.BankHoliday, &s.Status,
		&s.Category, &s.SignallingID, &s.Headcode, &s.ServiceCode, &s.PowerType,
		&s.TimingLoad, &s.Speed, &s.OpChars, &s.TrainClass, &s.Sleepers,
		&s.Reservations, &s.ConnectInd, &s.Catering, &s.Branding, &s.UICCode,
		&s.ATOCCode, &s.ApplicableTimetable, &s.DeducedHeadcode,
		&s.DeducedHeadcodeStatus)
	if err != nil {
		return nil, err
	}
	stp = strings.TrimRight(stp, " ")
	if len(stp) > 0 {
		s.STPIndicator = stp[0]
	}
	s.unpad()
	return &s, nil
}

// unpad strips the space padding CHAR(n) columns acquire in Postgres so a
// blank field reads back as "". days_run is left alone: its interior and
// trailing blanks are positional.
func (s *Schedule) unpad() {
	for _, f := range []*string{&s.TrainUID, &s.BankHoliday, &s.Status,
		&s.Category, &s.SignallingID, &s.Headcode, &s.ServiceCode,
		&s.TrainClass, &s.Sleepers, &s.Reservations, &s.ConnectInd,
		&s.ApplicableTimetable, &s.DeducedHeadcode, &s.DeducedHeadcodeStatus} {
		*f = strings.TrimRight(*f, " ")
	}
}

// InsertSchedule writes a new schedule row and returns its id.
func (t *Tx) InsertSchedule(s *Schedule) (int64, error) {
	var id int64
	err := t.queryRow(`INSERT INTO cif_schedules (update_id, created, deleted,
		train_uid, stp_indicator, schedule_start_date, schedule_end_date,
		days_run, bank_holiday, train_status, category, signalling_id, headcode,
		service_code, power_type, timing_load, speed, op_characteristics,
		train_class, sleepers, reservations, connection_indicator, catering,
		branding, uic_code, atoc_code, applicable_timetable, deduced_headcode,
		deduced_headcode_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
		$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
		RETURNING id`,
		s.UpdateID, s.Created, s.Deleted, s.TrainUID, string(s.STPIndicator),
		s.StartDate, s.EndDate, s.DaysRun, s.BankHoliday, s.Status, s.Category,
		s.SignallingID, s.Headcode, s.ServiceCode, s.PowerType, s.TimingLoad,
		s.Speed, s.OpChars, s.TrainClass, s.Sleepers, s.Reservations,
		s.ConnectInd, s.Catering, s.Branding, s.UICCode, s.ATOCCode,
		s.ApplicableTimetable, s.DeducedHeadcode, s.DeducedHeadcodeStatus,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert schedule %s: %w", s.TrainUID, err)
	}
	s.ID = id
	return id, nil
}

// UpdateScheduleBX applies the BX card fields to a just-inserted schedule.
func (t *Tx) UpdateScheduleBX(id int64, uic, atoc, applicable string) error {
	_, err := t.exec(`UPDATE cif_schedules
		SET uic_code = $2, atoc_code = $3, applicable_timetable = $4
		WHERE id = $1`, id, uic, atoc, applicable)
	return err
}

// DeleteCIFSchedules soft-deletes all live non-VSTP schedules matching the
// CIF revise/delete key. Returns the number of rows hit.
func (t *Tx) DeleteCIFSchedules(uid string, startDate int64, stp byte, now int64) (int64, error) {
	res, err := t.exec(`UPDATE cif_schedules SET deleted = $4
		WHERE train_uid = $1 AND schedule_start_date = $2 AND stp_indicator = $3
		AND update_id != 0 AND deleted > $4`,
		uid, startDate, string(stp), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteVSTPSchedules soft-deletes live VSTP-origin schedules matching the
// VSTP key. Returns the number of rows hit.
func (t *Tx) DeleteVSTPSchedules(uid string, startDate, endDate int64, stp byte, now int64) (int64, error) {
	res, err := t.exec(`UPDATE cif_schedules SET deleted = $5
		WHERE train_uid = $1 AND schedule_start_date = $2
		AND schedule_end_date = $3 AND stp_indicator = $4
		AND update_id = 0 AND deleted > $5`,
		uid, startDate, endDate, string(stp), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindActivationSchedules returns live non-VSTP schedules matching a TRUST
// activation key, best first: STP precedence O > N > P > C, then newest.
func (t *Tx) FindActivationSchedules(uid string, startDate, endDate int64, now int64) ([]*Schedule, error) {
	rows, err := t.query(`SELECT `+scheduleCols+` FROM cif_schedules
		WHERE train_uid = $1 AND schedule_start_date = $2
		AND schedule_end_date = $3 AND update_id != 0 AND deleted > $4
		ORDER BY `+stpOrder+`, created DESC`,
		uid, startDate, endDate, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// FindReconcileSchedules returns live non-VSTP schedules on the reconciler
// key (uid, stp, start date) whose end date is still in the future.
func (t *Tx) FindReconcileSchedules(uid string, stp byte, startDate, now int64) ([]*Schedule, error) {
	rows, err := t.query(`SELECT `+scheduleCols+` FROM cif_schedules
		WHERE train_uid = $1 AND stp_indicator = $2
		AND schedule_start_date = $3 AND update_id != 0 AND deleted > $4
		AND schedule_end_date > $4`,
		uid, string(stp), startDate, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// GetSchedule fetches one schedule by id.
func (t *Tx) GetSchedule(id int64) (*Schedule, error) {
	s, err := scanSchedule(t.queryRow(`SELECT `+scheduleCols+
		` FROM cif_schedules WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// LatestDeducedHeadcode returns the most recent non-empty deduced headcode
// for a UID created on or after the cutoff, or "" if none.
func (t *Tx) LatestDeducedHeadcode(uid string, since int64) (string, error) {
	var hc string
	err := t.queryRow(`SELECT deduced_headcode FROM cif_schedules
		WHERE train_uid = $1 AND deduced_headcode != '' AND created >= $2
		ORDER BY created DESC LIMIT 1`, uid, since).Scan(&hc)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return strings.TrimRight(hc, " "), err
}

// SetDeducedHeadcode stamps a deduced headcode with its status letter.
func (t *Tx) SetDeducedHeadcode(id int64, hc, status string) error {
	_, err := t.exec(`UPDATE cif_schedules
		SET deduced_headcode = $2, deduced_headcode_status = $3
		WHERE id = $1`, id, hc, status)
	return err
}

// SetServiceCode fills a blank CIF train service code deduced from an
// activation.
func (t *Tx) SetServiceCode(id int64, tsc string) error {
	_, err := t.exec(`UPDATE cif_schedules SET service_code = $2 WHERE id = $1`,
		id, tsc)
	return err
}

// SoftDeleteSchedule marks one schedule row deleted by id.
func (t *Tx) SoftDeleteSchedule(id, now int64) error {
	_, err := t.exec(`UPDATE cif_schedules SET deleted = $2
		WHERE id = $1 AND deleted > $2`, id, now)
	return err
}

// LiveScheduleIDRange returns the min and max live non-VSTP schedule ids,
// used by the reconciler to size its bitmap.
func (t *Tx) LiveScheduleIDRange(now int64) (lo, hi int64, err error) {
	err = t.queryRow(`SELECT COALESCE(MIN(id),0), COALESCE(MAX(id),0)
		FROM cif_schedules WHERE update_id != 0 AND deleted > $1`, now).
		Scan(&lo, &hi)
	return
}

// LiveScheduleIDs streams all live non-VSTP schedule ids to fn.
func (t *Tx) LiveScheduleIDs(now int64, fn func(int64)) error {
	rows, err := t.query(`SELECT id FROM cif_schedules
		WHERE update_id != 0 AND deleted > $1`, now)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		fn(id)
	}
	return rows.Err()
}

func collectSchedules(rows *sql.Rows) ([]*Schedule, error) {
	var out []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
