package store

import (
	"database/sql"
	"fmt"
)

// Batch sources.
const (
	SourceVSTP  = 0
	SourceDaily = 1
	SourceFull  = 2
)

// LatestExtractTime returns the newest extract timestamp in
// updates_processed, or 0 when no bulk file has ever been applied.
func (t *Tx) LatestExtractTime() (int64, error) {
	var v int64
	err := t.queryRow(`SELECT COALESCE(MAX(time),0) FROM updates_processed
		WHERE source != $1`, SourceVSTP).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

// InsertBatch heads a newly accepted feed file and returns the update_id to
// stamp on every row the file writes.
func (t *Tx) InsertBatch(extractTime int64, source int, now int64) (int64, error) {
	var id int64
	err := t.queryRow(`INSERT INTO updates_processed (time, source, applied)
		VALUES ($1,$2,$3) RETURNING id`, extractTime, source, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert update batch: %w", err)
	}
	return id, nil
}
