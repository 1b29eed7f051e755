package railtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortTime(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"1000", 2400},
		{"1830", 4320},
		{"1830H", 4322},
		{"0000", 0},
		{"2359H", 5758},
		{"1000 ", 2400},
	}
	for _, c := range cases {
		got, err := SortTime(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	blank, err := SortTime("     ")
	require.NoError(t, err)
	assert.Equal(t, -1, blank)

	for _, bad := range []string{"2500", "1060", "10a0", "123", "1000X"} {
		_, err := SortTime(bad)
		assert.ErrorIs(t, err, ErrBadTime, bad)
	}
}

func TestSortTimeRoundTrip(t *testing.T) {
	for hh := 0; hh < 24; hh++ {
		for mm := 0; mm < 60; mm++ {
			for _, half := range []bool{false, true} {
				in := fmt.Sprintf("%02d%02d", hh, mm)
				want := (hh*60 + mm) * 4
				if half {
					in += "H"
					want += 2
				}
				got, err := SortTime(in)
				require.NoError(t, err)
				require.Equal(t, want, got)

				// The quantised value reconstructs the input uniquely.
				require.Equal(t, hh*60+mm, got/4)
				require.Equal(t, half, got%4 == 2)
			}
		}
	}
}

func TestCanonTime(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1000", "1000 "},
		{"1000H", "1000H"},
		{"10003", "1000H"},
		{"100030", "1000H"},
		{"100000", "1000 "},
		{"", ""},
		{"  1830  ", "1830 "},
	}
	for _, c := range cases {
		got, err := CanonTime(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"100", "100045", "1000X30"} {
		_, err := CanonTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCIFDate(t *testing.T) {
	d, sentinel, err := ParseCIFDate("230603")
	require.NoError(t, err)
	assert.False(t, sentinel)
	assert.Equal(t, time.Date(2023, 6, 3, 0, 0, 0, 0, time.UTC), d)

	_, sentinel, err = ParseCIFDate("999999")
	require.NoError(t, err)
	assert.True(t, sentinel)

	_, _, err = ParseCIFDate("2306XX")
	assert.Error(t, err)
}

func TestDaysBitmap(t *testing.T) {
	mon, err := DaysBitmap("1000000")
	require.NoError(t, err)
	assert.True(t, RunsOn(mon, time.Monday))
	assert.False(t, RunsOn(mon, time.Tuesday))
	assert.False(t, RunsOn(mon, time.Sunday))

	sat, err := DaysBitmap("0000010")
	require.NoError(t, err)
	assert.True(t, RunsOn(sat, time.Saturday))
	assert.False(t, RunsOn(sat, time.Friday))

	sun, err := DaysBitmap("0000001")
	require.NoError(t, err)
	assert.True(t, RunsOn(sun, time.Sunday))

	_, err = DaysBitmap("10000")
	assert.Error(t, err)
	_, err = DaysBitmap("100000X")
	assert.Error(t, err)
}

func TestCorrectTrustTimestamp(t *testing.T) {
	// No zone: taken at face value.
	got, err := CorrectTrustTimestamp("1685754000000", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1685754000), got.Unix())

	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	// Summer: the feed clock runs an hour ahead, so an hour comes off.
	summer, err := CorrectTrustTimestamp("1685754000000", london) // 2023-06-03
	require.NoError(t, err)
	assert.Equal(t, int64(1685754000-3600), summer.Unix())

	// Winter: no correction.
	winter, err := CorrectTrustTimestamp("1672574400000", london) // 2023-01-01
	require.NoError(t, err)
	assert.Equal(t, int64(1672574400), winter.Unix())

	_, err = CorrectTrustTimestamp("not-a-number", nil)
	assert.Error(t, err)
}
