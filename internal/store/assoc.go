package store

import "fmt"

// InsertAssociation writes a new association row.
func (t *Tx) InsertAssociation(a *Association) (int64, error) {
	var id int64
	err := t.queryRow(`INSERT INTO cif_associations (update_id, created,
		deleted, main_train_uid, assoc_train_uid, assoc_start_date,
		assoc_end_date, assoc_days, category, date_indicator, location,
		base_location_suffix, assoc_location_suffix, assoc_type, stp_indicator)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		a.UpdateID, a.Created, a.Deleted, a.MainUID, a.AssocUID, a.StartDate,
		a.EndDate, a.DaysRun, a.Category, a.DateIndicator, a.Location,
		a.BaseSuffix, a.AssocSuffix, a.AssocType, string(a.STPIndicator),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert association %s/%s: %w",
			a.MainUID, a.AssocUID, err)
	}
	a.ID = id
	return id, nil
}

// DeleteAssociations soft-deletes live associations on the CIF revise/delete
// key: main uid, assoc uid, start date, location, STP indicator, with the
// end date still live. Returns rows hit.
func (t *Tx) DeleteAssociations(mainUID, assocUID string, startDate int64, location string, stp byte, now int64) (int64, error) {
	res, err := t.exec(`UPDATE cif_associations SET deleted = $6
		WHERE main_train_uid = $1 AND assoc_train_uid = $2
		AND assoc_start_date = $3 AND location = $4 AND stp_indicator = $5
		AND assoc_end_date >= $6 AND deleted > $6`,
		mainUID, assocUID, startDate, location, string(stp), now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
