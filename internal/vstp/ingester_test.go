package vstp

import (
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/philwieland/openrail-sub000/internal/feed"
	"github.com/philwieland/openrail-sub000/internal/metrics"
)

// An unknown transaction type is counted NotVSTP and skipped before any
// database work; it must never also count as a good message.
func TestHandleFrameUnknownTransaction(t *testing.T) {
	in := &Ingester{
		Counters: metrics.NewCounterSet(CounterNames...),
		Logger:   log.New(io.Discard, "", 0),
	}

	frame := strings.Replace(createFrame, `"Create"`, `"Reinstate"`, 1)
	err := in.HandleFrame([]byte(frame))

	assert.ErrorIs(t, err, feed.ErrSkip)
	assert.Equal(t, uint64(1), in.Counters.Day("NotVSTP"))
	assert.Equal(t, uint64(0), in.Counters.Day("GoodMessage"))
}
