package cif

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// at overlays s onto an 80-column blank card starting at the given offset.
func at(card []byte, offset int, s string) {
	copy(card[offset:], s)
}

func blank() []byte {
	return []byte(strings.Repeat(" ", 80))
}

func testBSCard() Card {
	c := blank()
	at(c, 0, "BSN")
	at(c, 3, "C12345")  // train uid
	at(c, 9, "230603")  // start
	at(c, 15, "230610") // end
	at(c, 21, "0000010") // Saturdays
	at(c, 29, "P")      // train status
	at(c, 30, "OO")     // category
	at(c, 32, "XX12")   // signalling id
	at(c, 36, "1234")   // headcode
	at(c, 41, "22209000")
	at(c, 50, "DMU")
	at(c, 57, "090")
	at(c, 66, "B")
	at(c, 79, "P")
	return NewCard(string(c))
}

func TestCardBS(t *testing.T) {
	card := testBSCard()
	assert.Equal(t, "BS", card.Identity())
	assert.Equal(t, byte('N'), card.TransactionType())
	assert.Equal(t, "C12345", card.TrainUID())
	assert.Equal(t, "230603", card.StartDateRaw())
	assert.Equal(t, "230610", card.EndDateRaw())
	assert.Equal(t, "0000010", card.DaysRun())
	assert.Equal(t, "P", card.TrainStatus())
	assert.Equal(t, "OO", card.Category())
	assert.Equal(t, "XX12", card.SignallingID())
	assert.Equal(t, "1234", card.Headcode())
	assert.Equal(t, "22209000", card.ServiceCode())
	assert.Equal(t, "DMU", card.PowerType())
	assert.Equal(t, "090", card.Speed())
	assert.Equal(t, "B", card.TrainClass())
	assert.Equal(t, byte('P'), card.STPIndicator())
}

func TestCardHeader(t *testing.T) {
	c := blank()
	at(c, 0, "HD")
	at(c, 22, "030623") // dd mm yy
	at(c, 28, "0200")   // hh mi
	at(c, 46, "U")
	card := NewCard(string(c))

	extract, err := card.HeaderExtractTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 6, 3, 2, 0, 0, 0, time.UTC), extract)
	assert.Equal(t, byte('U'), card.HeaderUpdateIndicator())
}

func TestCardLocations(t *testing.T) {
	lo := blank()
	at(lo, 0, "LO")
	at(lo, 2, "EUSTON")
	at(lo, 10, "1000 ")
	at(lo, 15, "1000")
	at(lo, 19, "1")
	card := NewCard(string(lo))
	assert.Equal(t, "EUSTON", card.LocTiploc())
	assert.Equal(t, "1000 ", card.LODeparture())
	assert.Equal(t, "1000", card.LOPublicDep())
	assert.Equal(t, "1", card.LOPlatform())

	lt := blank()
	at(lt, 0, "LT")
	at(lt, 2, "GLGC")
	at(lt, 10, "1830 ")
	at(lt, 15, "1830")
	card = NewCard(string(lt))
	assert.Equal(t, "GLGC", card.LocTiploc())
	assert.Equal(t, "1830 ", card.LTArrival())
	assert.Equal(t, "1830", card.LTPublicArr())
}

func TestCardShortLinePadded(t *testing.T) {
	card := NewCard("ZZ")
	assert.Equal(t, "ZZ", card.Identity())
	assert.Equal(t, byte(' '), card.STPIndicator())
}

func TestScheduleFromBS(t *testing.T) {
	s, err := ScheduleFromBS(testBSCard(), 1685750400)
	require.NoError(t, err)
	assert.Equal(t, "C12345", s.TrainUID)
	assert.Equal(t, byte('P'), s.STPIndicator)
	assert.Equal(t, time.Date(2023, 6, 3, 0, 0, 0, 0, time.UTC).Unix(), s.StartDate)
	assert.Equal(t, time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC).Unix(), s.EndDate)
	assert.Equal(t, "XX12", s.SignallingID)
	assert.Equal(t, int64(1685750400), s.Created)
}
