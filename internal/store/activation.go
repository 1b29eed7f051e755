package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// InsertActivation writes an activation binding.
func (t *Tx) InsertActivation(a *Activation) error {
	_, err := t.exec(`INSERT INTO trust_activation (created, trust_id,
		cif_schedule_id, deduced) VALUES ($1,$2,$3,$4)`,
		a.Created, a.TrainID, a.ScheduleID, a.Deduced)
	if err != nil {
		return fmt.Errorf("store: insert activation %s: %w", a.TrainID, err)
	}
	return nil
}

// InsertActivationExtra writes the 0001 sidecar row.
func (t *Tx) InsertActivationExtra(e *ActivationExtra) error {
	_, err := t.exec(`INSERT INTO trust_activation_extra (created, trust_id,
		schedule_source, train_file_address, schedule_end_date,
		tp_origin_timestamp, creation_timestamp, tp_origin_stanox,
		origin_dep_timestamp, train_service_code, toc_id, train_call_type,
		train_call_mode, schedule_type, sched_origin_stanox, schedule_wtt_id,
		schedule_start_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		e.Created, e.TrainID, e.ScheduleSource, e.TrainFileAddress,
		e.ScheduleEndDate, e.TPOriginTimestamp, e.CreationTimestamp,
		e.TPOriginStanox, e.OriginDepTime, e.TrainServiceCode, e.TOCID,
		e.CallType, e.CallMode, e.ScheduleType, e.OriginStanox, e.WTTID,
		e.ScheduleStartDate)
	if err != nil {
		return fmt.Errorf("store: insert activation extra %s: %w", e.TrainID, err)
	}
	return nil
}

// LatestActivation returns the most recent activation for a train id created
// on or after the cutoff, or nil.
func (t *Tx) LatestActivation(trainID string, since int64) (*Activation, error) {
	var a Activation
	err := t.queryRow(`SELECT created, trust_id, cif_schedule_id, deduced
		FROM trust_activation WHERE trust_id = $1 AND created >= $2
		ORDER BY created DESC LIMIT 1`, trainID, since).
		Scan(&a.Created, &a.TrainID, &a.ScheduleID, &a.Deduced)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.TrainID = strings.TrimRight(a.TrainID, " ")
	return &a, nil
}
