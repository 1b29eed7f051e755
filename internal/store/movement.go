package store

import "fmt"

// InsertMovement writes one 0003 step event.
func (t *Tx) InsertMovement(m *Movement) error {
	_, err := t.exec(`INSERT INTO trust_movement (created, trust_id,
		planned_timestamp, actual_timestamp, timetable_variation, loc_stanox,
		platform, next_report_stanox, next_report_run_time, flags)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.Created, m.TrainID, m.PlannedTimestamp, m.ActualTimestamp,
		m.Variation, m.Stanox, m.Platform, m.NextReportStanox,
		m.NextReportRun, m.Flags)
	if err != nil {
		return fmt.Errorf("store: insert movement %s: %w", m.TrainID, err)
	}
	return nil
}

// InsertCancellation writes a 0002 (or, with Reinstate, 0005) row.
func (t *Tx) InsertCancellation(c *Cancellation) error {
	_, err := t.exec(`INSERT INTO trust_cancellation (created, trust_id,
		reason, loc_stanox, cancel_timestamp, reinstate)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.Created, c.TrainID, c.Reason, c.Stanox, c.CancelTimestamp,
		c.Reinstate)
	if err != nil {
		return fmt.Errorf("store: insert cancellation %s: %w", c.TrainID, err)
	}
	return nil
}

// InsertChangeOfOrigin writes a 0006 row.
func (t *Tx) InsertChangeOfOrigin(c *ChangeOfOrigin) error {
	_, err := t.exec(`INSERT INTO trust_changeorigin (created, trust_id,
		reason, loc_stanox, dep_timestamp, orig_timestamp)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		c.Created, c.TrainID, c.Reason, c.Stanox, c.DepTime, c.OrigTime)
	if err != nil {
		return fmt.Errorf("store: insert change of origin %s: %w", c.TrainID, err)
	}
	return nil
}

// InsertChangeOfID writes a 0007 row.
func (t *Tx) InsertChangeOfID(c *ChangeOfID) error {
	_, err := t.exec(`INSERT INTO trust_changeid (created, trust_id,
		new_trust_id) VALUES ($1,$2,$3)`,
		c.Created, c.TrainID, c.NewID)
	if err != nil {
		return fmt.Errorf("store: insert change of id %s: %w", c.TrainID, err)
	}
	return nil
}

// InsertChangeOfLocation writes a 0008 row.
func (t *Tx) InsertChangeOfLocation(c *ChangeOfLocation) error {
	_, err := t.exec(`INSERT INTO trust_changelocation (created, trust_id,
		loc_stanox, original_loc_stanox, dep_timestamp)
		VALUES ($1,$2,$3,$4,$5)`,
		c.Created, c.TrainID, c.Stanox, c.OrigStanox, c.DepTime)
	if err != nil {
		return fmt.Errorf("store: insert change of location %s: %w", c.TrainID, err)
	}
	return nil
}
