package feed

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/philwieland/openrail-sub000/internal/metrics"
)

// Source is a broker connection delivering one message body per Read.
// StompyClient and StompClient both satisfy it.
type Source interface {
	Connect() error
	Read() ([]byte, error)
	Ack() error
	Close()
}

// Handler processes one frame inside its own database transaction. A nil
// return means the commit succeeded and the frame may be acknowledged.
// ErrSkip means the frame is unusable but was counted and committed, so it
// is still acknowledged; any other error means rollback happened and the
// connection must be dropped without ack so the broker redelivers.
type Handler func(body []byte) error

// ErrSkip marks a malformed frame that must not block the stream.
var ErrSkip = errors.New("feed: frame skipped")

// Consumer runs the shared discipline: begin → process → commit → ack,
// reconnecting with capped exponential back-off.
type Consumer struct {
	Name    string // feed label for logs and metrics
	Source  Source
	Handler Handler
	Metrics *metrics.Metrics
	Logger  *log.Logger

	// Idle is called after every read timeout and between frames, for
	// deferred-queue drains and timer work. Optional.
	Idle func()
}

// Run consumes until ctx is cancelled. It returns only on cancellation.
func (c *Consumer) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := c.connect(ctx); err != nil {
			return // cancelled
		}
		c.Metrics.SetConnected(c.Name, true)
		c.Logger.Printf("%s feed connected", c.Name)

		c.consume(ctx)

		c.Metrics.SetConnected(c.Name, false)
		c.Source.Close()
	}
}

// connect retries with exponential back-off capped at ~5 minutes.
func (c *Consumer) connect(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0 // retry forever

	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if err := c.Source.Connect(); err != nil {
			c.Metrics.Reconnects.WithLabelValues(c.Name).Inc()
			c.Logger.Printf("%s connect failed, backing off: %v", c.Name, err)
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

// consume reads frames until the connection errors or ctx is cancelled.
func (c *Consumer) consume(ctx context.Context) {
	for ctx.Err() == nil {
		if c.Idle != nil {
			c.Idle()
		}

		body, err := c.Source.Read()
		if errors.Is(err, ErrTimeout) {
			c.Metrics.RecordFrame("timeout")
			continue
		}
		if err != nil {
			c.Logger.Printf("%s receive error, dropping connection: %v", c.Name, err)
			return
		}

		start := time.Now()
		err = c.Handler(body)
		switch {
		case err == nil:
			c.Metrics.RecordFrame("committed")
		case errors.Is(err, ErrSkip):
			c.Metrics.RecordFrame("malformed")
		default:
			// Rollback already happened in the handler. No ack: the broker
			// will redeliver after we reconnect.
			c.Metrics.RecordFrame("rolled_back")
			c.Logger.Printf("%s frame failed, dropping connection: %v", c.Name, err)
			return
		}
		c.Metrics.CommitSeconds.Observe(time.Since(start).Seconds())

		if err := c.Source.Ack(); err != nil {
			c.Logger.Printf("%s ack failed, dropping connection: %v", c.Name, err)
			return
		}
	}
}
