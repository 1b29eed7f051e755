package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/philwieland/openrail-sub000/internal/cif"
	"github.com/philwieland/openrail-sub000/internal/store"
)

func liCard(tiploc, arrival, departure string) cif.Card {
	c := make([]byte, 80)
	for i := range c {
		c[i] = ' '
	}
	copy(c[0:], "LI")
	copy(c[2:], tiploc)
	copy(c[10:], arrival)
	copy(c[15:], departure)
	return cif.Card(c)
}

// Stored rows come back from the store trimmed while card fields keep their
// fixed width; a schedule identical in both must still match.
func TestLocationsMatchTrimsPadding(t *testing.T) {
	fromFile := []*store.ScheduleLocation{
		cif.LocationFromCard(liCard("CREWE", "1200 ", "1202H")),
	}
	stored := []*store.ScheduleLocation{{
		RecordIdentity: "LI",
		Tiploc:         "CREWE",
		TiplocInstance: "",
		Arrival:        "1200",
		Departure:      "1202H",
		Pass:           "",
	}}
	assert.True(t, locationsMatch(stored, fromFile))

	// A CHAR(1) instance read back untrimmed is a single space, still blank.
	stored[0].TiplocInstance = " "
	assert.True(t, locationsMatch(stored, fromFile))

	stored[0].Arrival = "1201"
	assert.False(t, locationsMatch(stored, fromFile))
}

func TestLocationsMatchLengthAndFields(t *testing.T) {
	a := []*store.ScheduleLocation{{RecordIdentity: "LO", Tiploc: "EUSTON"}}
	assert.False(t, locationsMatch(a, nil))

	b := []*store.ScheduleLocation{{RecordIdentity: "LO", Tiploc: "EUSTON", Platform: "2"}}
	assert.False(t, locationsMatch(a, b))
}
