package cif

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philwieland/openrail-sub000/internal/metrics"
)

func writeCIF(t *testing.T, cards ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cif")
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(string(NewCard(c)))
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func headerCard(indicator byte) string {
	c := blank()
	at(c, 0, "HD")
	at(c, 22, "030623")
	at(c, 28, "0200")
	at(c, 46, string(indicator))
	return string(c)
}

func locationCard(identity, tiploc, tm string) string {
	c := blank()
	at(c, 0, identity)
	at(c, 2, tiploc)
	at(c, 10, tm)
	return string(c)
}

func testLoader(t *testing.T) *Loader {
	t.Helper()
	return &Loader{
		Counters: metrics.NewCounterSet(CounterNames...),
		Logger:   log.New(os.Stderr, "[test] ", 0),
		TestMode: true,
		Now:      func() time.Time { return time.Date(2023, 6, 3, 6, 0, 0, 0, time.UTC) },
	}
}

func TestLoadFileScheduleGroup(t *testing.T) {
	ld := testLoader(t)
	path := writeCIF(t,
		headerCard('U'),
		string(testBSCard()),
		locationCard("LO", "EUSTON", "1000 "),
		locationCard("LT", "GLGC", "1830 "),
		"ZZ",
	)
	require.NoError(t, ld.LoadFile(path, false))

	assert.Equal(t, uint64(5), ld.Counters.Day("CardsRead"))
	assert.Equal(t, uint64(1), ld.Counters.Day("ScheduleCreated"))
	assert.Equal(t, uint64(2), ld.Counters.Day("LocationCreated"))
	assert.Equal(t, uint64(0), ld.Counters.Day("NotRecog"))
}

func TestLoadFileNoHeader(t *testing.T) {
	ld := testLoader(t)
	path := writeCIF(t, string(testBSCard()))
	assert.ErrorIs(t, ld.LoadFile(path, false), ErrNoHeader)
}

func TestLoadFileUnexpectedFull(t *testing.T) {
	ld := testLoader(t)
	path := writeCIF(t, headerCard('F'), "ZZ")
	assert.ErrorIs(t, ld.LoadFile(path, false), ErrUnexpectedFull)
}

func TestLoadFileFullAllowed(t *testing.T) {
	ld := testLoader(t)
	path := writeCIF(t, headerCard('F'), "ZZ")
	assert.NoError(t, ld.LoadFile(path, true))
}

// A location card arriving outside a schedule group is counted and skipped,
// never fatal.
func TestLoadFileStrayLocation(t *testing.T) {
	ld := testLoader(t)
	path := writeCIF(t,
		headerCard('U'),
		locationCard("LI", "CREWE", "1200 "),
		"ZZ",
	)
	require.NoError(t, ld.LoadFile(path, false))
	assert.Equal(t, uint64(1), ld.Counters.Day("NotRecog"))
}

// An extract is only accepted when strictly newer than the last applied
// one, so re-running a file leaves the store untouched.
func TestCheckHeaderRejectsReplay(t *testing.T) {
	update := NewCard(headerCard('U'))
	extract := time.Date(2023, 6, 3, 2, 0, 0, 0, time.UTC)

	got, full, err := CheckHeader(update, false, extract.Unix()-1)
	require.NoError(t, err)
	assert.False(t, full)
	assert.True(t, got.Equal(extract))

	_, _, err = CheckHeader(update, false, extract.Unix())
	assert.ErrorIs(t, err, ErrSuperseded)

	_, _, err = CheckHeader(update, false, extract.Unix()+3600)
	assert.ErrorIs(t, err, ErrSuperseded)
}

func TestCheckHeaderFullIndicator(t *testing.T) {
	fullCard := NewCard(headerCard('F'))

	_, _, err := CheckHeader(fullCard, false, 0)
	assert.ErrorIs(t, err, ErrUnexpectedFull)

	_, full, err := CheckHeader(fullCard, true, 0)
	require.NoError(t, err)
	assert.True(t, full)
}

// Times quantise per the WTT rules: 10:00 is 2400 and 18:30 is 4320
// quarter-minutes, with the origin first so neither is next-day.
func TestLocationSortTimes(t *testing.T) {
	s, err := LocationSortTime("", "1000 ", "")
	require.NoError(t, err)
	assert.Equal(t, 2400, s)

	s, err = LocationSortTime("1830 ", "", "")
	require.NoError(t, err)
	assert.Equal(t, 4320, s)

	// Pass is the fallback when neither arrival nor departure is set.
	s, err = LocationSortTime("", "", "1215H")
	require.NoError(t, err)
	assert.Equal(t, 2942, s)
}
