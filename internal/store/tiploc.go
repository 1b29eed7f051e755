package store

import (
	"database/sql"
	"fmt"
)

// InsertTiploc writes a TI row.
func (t *Tx) InsertTiploc(tp *Tiploc) error {
	_, err := t.exec(`INSERT INTO cif_tiplocs (update_id, created, deleted,
		tiploc_code, capitals, nalco, nlc_check, tps_description, stanox,
		crs_code, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		tp.UpdateID, tp.Created, tp.Deleted, tp.Code, tp.Capitals, tp.NALCO,
		tp.NLCCheck, tp.TPSDescription, tp.Stanox, tp.CRS, tp.Description)
	if err != nil {
		return fmt.Errorf("store: insert tiploc %s: %w", tp.Code, err)
	}
	return nil
}

// DeleteTiplocs soft-deletes live rows for a TIPLOC code. Returns rows hit.
// A TA amend is delete-old-then-insert-new, which also covers the rename
// carried in the amend card.
func (t *Tx) DeleteTiplocs(code string, now int64) (int64, error) {
	res, err := t.exec(`UPDATE cif_tiplocs SET deleted = $2
		WHERE tiploc_code = $1 AND deleted > $2`, code, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StanoxTiploc resolves a STANOX to a TIPLOC via the corpus table. Returns
// "" when the STANOX is unknown.
func (t *Tx) StanoxTiploc(stanox string) (string, error) {
	var tiploc string
	err := t.queryRow(`SELECT tiploc FROM corpus
		WHERE stanox = $1 AND tiploc != '' LIMIT 1`, stanox).Scan(&tiploc)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return tiploc, err
}
