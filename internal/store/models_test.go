package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMovementFactsPack(t *testing.T) {
	f := MovementFacts{
		EventKind:  2,
		Manual:     false,
		Variation:  3,
		OffRoute:   true,
		Terminated: false,
		Correction: true,
	}
	v := f.Pack()
	assert.Equal(t, 2|(3<<3)|(1<<5)|(1<<7), v)
	assert.Equal(t, f, UnpackMovementFacts(v))
}

func TestMovementFactsRoundTrip(t *testing.T) {
	for kind := 0; kind < 4; kind++ {
		for variation := 0; variation < 4; variation++ {
			for mask := 0; mask < 16; mask++ {
				f := MovementFacts{
					EventKind:  kind,
					Variation:  variation,
					Manual:     mask&1 != 0,
					OffRoute:   mask&2 != 0,
					Terminated: mask&4 != 0,
					Correction: mask&8 != 0,
				}
				assert.Equal(t, f, UnpackMovementFacts(f.Pack()))
			}
		}
	}
}

func TestScheduleLive(t *testing.T) {
	now := time.Unix(1685750400, 0)
	live := &Schedule{Deleted: NeverDeleted}
	assert.True(t, live.Live(now))

	dead := &Schedule{Deleted: now.Unix() - 1}
	assert.False(t, dead.Live(now))

	// Deleted exactly now is no longer live.
	edge := &Schedule{Deleted: now.Unix()}
	assert.False(t, edge.Live(now))
}
