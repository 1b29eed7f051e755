package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrClassMismatch rejects an obfuscation mapping whose class letters differ.
var ErrClassMismatch = errors.New("store: obfuscation class letter mismatch")

// InsertObfusLookup records a learned true→obfuscated headcode pair and
// prunes mappings older than 24 hours. The class letter (first character)
// must match: the scrambling never crosses train classes.
func (t *Tx) InsertObfusLookup(now int64, trueHC, obfusHC string) error {
	if len(trueHC) != 4 || len(obfusHC) != 4 {
		return fmt.Errorf("store: obfuscation headcodes %q/%q not 4 chars", trueHC, obfusHC)
	}
	if trueHC[0] != obfusHC[0] {
		return ErrClassMismatch
	}
	if _, err := t.exec(`INSERT INTO obfus_lookup (created, true_hc, obfus_hc)
		VALUES ($1,$2,$3)`, now, trueHC, obfusHC); err != nil {
		return fmt.Errorf("store: insert obfus lookup: %w", err)
	}
	_, err := t.exec(`DELETE FROM obfus_lookup WHERE created < $1`, now-24*3600)
	return err
}

// TrueHeadcode resolves an obfuscated headcode seen within the last 24
// hours, or returns "".
func (t *Tx) TrueHeadcode(obfusHC string, now int64) (string, error) {
	var hc string
	err := t.queryRow(`SELECT true_hc FROM obfus_lookup
		WHERE obfus_hc = $1 AND created >= $2
		ORDER BY created DESC LIMIT 1`, obfusHC, now-24*3600).Scan(&hc)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return strings.TrimRight(hc, " "), err
}
