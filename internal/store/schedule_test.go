package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spacePaddedRow feeds scanSchedule what lib/pq hands back for a row whose
// CHAR(n) columns are all blank: space padding, never "".
type spacePaddedRow struct{}

func (spacePaddedRow) Scan(dest ...interface{}) error {
	for _, d := range dest {
		if s, ok := d.(*string); ok {
			*s = "    "
		}
	}
	return nil
}

func TestScanScheduleTrimsCharPadding(t *testing.T) {
	s, err := scanSchedule(spacePaddedRow{})
	require.NoError(t, err)

	assert.Empty(t, s.SignallingID)
	assert.Empty(t, s.ServiceCode)
	assert.Empty(t, s.DeducedHeadcode)
	assert.Empty(t, s.DeducedHeadcodeStatus)
	assert.Equal(t, byte(0), s.STPIndicator)
}

func TestScheduleUnpad(t *testing.T) {
	s := &Schedule{
		TrainUID:     "C12345",
		SignallingID: "    ",
		Headcode:     "2Y61",
		ServiceCode:  "        ",
		DaysRun:      "000001 ",
	}
	s.unpad()

	assert.Equal(t, "C12345", s.TrainUID)
	assert.Empty(t, s.SignallingID)
	assert.Equal(t, "2Y61", s.Headcode)
	assert.Empty(t, s.ServiceCode)
	// days_run keeps its positional blanks.
	assert.Equal(t, "000001 ", s.DaysRun)
}

func TestScheduleLocationUnpad(t *testing.T) {
	l := &ScheduleLocation{
		RecordIdentity: "LI",
		TiplocInstance: " ",
		Arrival:        "1000 ",
		Departure:      "1002H",
		Pass:           "     ",
	}
	l.unpad()

	assert.Empty(t, l.TiplocInstance)
	assert.Equal(t, "1000", l.Arrival)
	assert.Equal(t, "1002H", l.Departure)
	assert.Empty(t, l.Pass)
}

func TestSTPRankPrecedence(t *testing.T) {
	assert.Less(t, STPRank('O'), STPRank('N'))
	assert.Less(t, STPRank('N'), STPRank('P'))
	assert.Less(t, STPRank('P'), STPRank('C'))
	assert.Less(t, STPRank('C'), STPRank('X'))
	assert.Equal(t, STPRank(0), STPRank('X'))
}

func TestSTPOrderSQLFollowsRank(t *testing.T) {
	assert.Equal(t,
		"CASE stp_indicator WHEN 'O' THEN 0 WHEN 'N' THEN 1 WHEN 'P' THEN 2 WHEN 'C' THEN 3 ELSE 4 END",
		stpCaseSQL("stp_indicator"))
	assert.Equal(t, stpCaseSQL("stp_indicator"), stpOrder)
}
