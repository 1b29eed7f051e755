package store

import "fmt"

// Status stream columns.
const (
	StatusTrustProcessed = "last_trust_processed"
	StatusTrustActual    = "last_trust_actual"
	StatusVSTPProcessed  = "last_vstp_processed"
	StatusTDProcessed    = "last_td_processed"
)

var statusColumns = map[string]bool{
	StatusTrustProcessed: true,
	StatusTrustActual:    true,
	StatusVSTPProcessed:  true,
	StatusTDProcessed:    true,
}

// SetStatus updates one last-processed column of the single status row.
// The column name comes from the fixed set above, never from input.
func (t *Tx) SetStatus(column string, value int64) error {
	if !statusColumns[column] {
		return fmt.Errorf("store: unknown status column %q", column)
	}
	_, err := t.exec(`UPDATE status SET `+column+` = $1`, value)
	return err
}

// GetStatus reads all four stream timestamps.
func (t *Tx) GetStatus() (trustProcessed, trustActual, vstpProcessed, tdProcessed int64, err error) {
	err = t.queryRow(`SELECT last_trust_processed, last_trust_actual,
		last_vstp_processed, last_td_processed FROM status`).
		Scan(&trustProcessed, &trustActual, &vstpProcessed, &tdProcessed)
	return
}

// RecordMessageCount appends one interval's message count to the rolling
// table and prunes entries older than 32 days.
func (t *Tx) RecordMessageCount(application string, now int64, count int) error {
	if _, err := t.exec(`INSERT INTO message_count (application, time, count)
		VALUES ($1,$2,$3)`, application, now, count); err != nil {
		return fmt.Errorf("store: message count: %w", err)
	}
	_, err := t.exec(`DELETE FROM message_count
		WHERE application = $1 AND time < $2`,
		application, now-32*24*3600)
	return err
}
