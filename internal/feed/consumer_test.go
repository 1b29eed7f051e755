package feed

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/philwieland/openrail-sub000/internal/metrics"
)

var testMetrics = metrics.New("feed_test")

// scriptedSource delivers a fixed list of bodies, then errors so the consume
// loop ends.
type scriptedSource struct {
	bodies [][]byte
	reads  int
	acks   int
	closed bool
}

func (s *scriptedSource) Connect() error { return nil }

func (s *scriptedSource) Read() ([]byte, error) {
	if s.reads >= len(s.bodies) {
		return nil, errors.New("no more frames")
	}
	b := s.bodies[s.reads]
	s.reads++
	return b, nil
}

func (s *scriptedSource) Ack() error { s.acks++; return nil }
func (s *scriptedSource) Close()     { s.closed = true }

func testConsumer(src Source, h Handler) *Consumer {
	return &Consumer{
		Name:    "test",
		Source:  src,
		Handler: h,
		Metrics: testMetrics,
		Logger:  log.New(os.Stderr, "[test] ", 0),
	}
}

func TestConsumeAcksCommittedFrames(t *testing.T) {
	src := &scriptedSource{bodies: [][]byte{[]byte("a"), []byte("b")}}
	c := testConsumer(src, func([]byte) error { return nil })

	c.consume(context.Background())
	assert.Equal(t, 2, src.reads)
	assert.Equal(t, 2, src.acks)
}

// A frame whose transaction rolled back is never acknowledged; the
// connection drops so the broker redelivers.
func TestConsumeNoAckOnRollback(t *testing.T) {
	src := &scriptedSource{bodies: [][]byte{[]byte("a"), []byte("b")}}
	c := testConsumer(src, func([]byte) error { return errors.New("deadlock") })

	c.consume(context.Background())
	assert.Equal(t, 1, src.reads)
	assert.Equal(t, 0, src.acks)
}

// A malformed frame is acknowledged so it cannot wedge the stream.
func TestConsumeAcksSkippedFrames(t *testing.T) {
	src := &scriptedSource{bodies: [][]byte{[]byte("junk")}}
	c := testConsumer(src, func([]byte) error { return ErrSkip })

	c.consume(context.Background())
	assert.Equal(t, 1, src.acks)
}

func TestConsumeRunsIdleHook(t *testing.T) {
	src := &scriptedSource{bodies: [][]byte{[]byte("a")}}
	idles := 0
	c := testConsumer(src, func([]byte) error { return nil })
	c.Idle = func() { idles++ }

	c.consume(context.Background())
	assert.GreaterOrEqual(t, idles, 1)
}

func TestConsumeStopsOnCancel(t *testing.T) {
	src := &scriptedSource{}
	c := testConsumer(src, func([]byte) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.consume(ctx)
	assert.Equal(t, 0, src.reads)
}
