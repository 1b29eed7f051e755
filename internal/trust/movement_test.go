package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/philwieland/openrail-sub000/internal/store"
)

func TestEventKind(t *testing.T) {
	assert.Equal(t, 1, eventKind("DEPARTURE", false))
	assert.Equal(t, 2, eventKind("ARRIVAL", false))
	assert.Equal(t, 3, eventKind("ARRIVAL", true))
	assert.Equal(t, 3, eventKind("DESTINATION", false))
	assert.Equal(t, 0, eventKind("", false))
}

func TestVariationBucket(t *testing.T) {
	assert.Equal(t, 0, variationBucket("EARLY"))
	assert.Equal(t, 1, variationBucket("ON TIME"))
	assert.Equal(t, 2, variationBucket("LATE"))
	assert.Equal(t, 3, variationBucket("OFF ROUTE"))
	assert.Equal(t, 1, variationBucket("SOMETHING NEW"))
}

func call(uid string, stp byte, depart string) *store.ScheduleCall {
	return &store.ScheduleCall{
		Schedule: &store.Schedule{TrainUID: uid, STPIndicator: stp},
		Depart:   depart,
	}
}

func TestCallWithinWindow(t *testing.T) {
	c := call("C12345", 'P', "1000 ")

	// 10:03 planned against a 10:00 departure.
	assert.True(t, callWithinWindow(c, 1, 10*60+3))
	// Exactly on the window edge.
	assert.True(t, callWithinWindow(c, 1, 10*60+8))
	assert.False(t, callWithinWindow(c, 1, 10*60+9))

	// Arrivals use the arrival time, falling back to pass.
	arr := &store.ScheduleCall{
		Schedule: &store.Schedule{},
		Arrival:  "1830 ",
	}
	assert.True(t, callWithinWindow(arr, 2, 18*60+25))
	assert.False(t, callWithinWindow(arr, 2, 18*60+45))

	pass := &store.ScheduleCall{Schedule: &store.Schedule{}, Pass: "1215H"}
	assert.True(t, callWithinWindow(pass, 2, 12*60+15))

	// Midnight wrap: a 23:59 call matches a 00:02 planned time.
	late := call("C12345", 'P', "2359 ")
	assert.True(t, callWithinWindow(late, 1, 2))

	// No time at all never matches.
	empty := &store.ScheduleCall{Schedule: &store.Schedule{}}
	assert.False(t, callWithinWindow(empty, 1, 600))
}

func TestCallWithinWindowPaddedBlankTimes(t *testing.T) {
	// A blank CHAR(5) column read back without trimming is all spaces; it
	// must still fall through to the pass time, either direction.
	dep := &store.ScheduleCall{
		Schedule: &store.Schedule{},
		Depart:   "     ",
		Pass:     "1000 ",
	}
	assert.True(t, callWithinWindow(dep, 1, 10*60+3))

	arr := &store.ScheduleCall{
		Schedule: &store.Schedule{},
		Arrival:  "     ",
		Pass:     "1215H",
	}
	assert.True(t, callWithinWindow(arr, 2, 12*60+15))
}

func TestSingleUIDWinner(t *testing.T) {
	_, ok := singleUIDWinner(nil)
	assert.False(t, ok)

	// One UID, distinct precedences: the first (best) row wins.
	s, ok := singleUIDWinner([]*store.ScheduleCall{
		call("C12345", 'O', "1000 "),
		call("C12345", 'P', "1000 "),
	})
	assert.True(t, ok)
	assert.Equal(t, byte('O'), s.STPIndicator)

	// Two UIDs is ambiguous.
	_, ok = singleUIDWinner([]*store.ScheduleCall{
		call("C12345", 'P', "1000 "),
		call("Z99999", 'P', "1000 "),
	})
	assert.False(t, ok)

	// Two live rows at the same precedence within one UID is overlay
	// ambiguity.
	a := call("C12345", 'P', "1000 ")
	a.Schedule.ID = 1
	b := call("C12345", 'P', "1005 ")
	b.Schedule.ID = 2
	_, ok = singleUIDWinner([]*store.ScheduleCall{a, b})
	assert.False(t, ok)
}
