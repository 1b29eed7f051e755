package feed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

// Feed port offsets on the stompy proxy base port.
const (
	PortVSTP  = 0
	PortTRUST = 1
	PortTD    = 2
)

// ErrTimeout is returned by Read when no message arrives within the read
// deadline. It is not a connection failure; the caller's loop continues.
var ErrTimeout = errors.New("feed: read timeout")

// readDeadline matches the upstream client behaviour.
const readDeadline = 128 * time.Second

// StompyClient consumes the local fan-out proxy. The proxy protocol is a
// plain TCP exchange: each message is an ASCII decimal byte count,
// newline, then exactly that many body bytes; the client acknowledges the
// last delivered message by writing back a single 'A'.
type StompyClient struct {
	addr string
	conn net.Conn
	r    *bufio.Reader
}

// NewStompyClient targets localhost on base+offset.
func NewStompyClient(basePort, offset int) *StompyClient {
	return &StompyClient{addr: fmt.Sprintf("127.0.0.1:%d", basePort+offset)}
}

// Connect dials the proxy.
func (c *StompyClient) Connect() error {
	conn, err := net.DialTimeout("tcp", c.addr, 16*time.Second)
	if err != nil {
		return fmt.Errorf("feed: stompy connect %s: %w", c.addr, err)
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	return nil
}

// Read returns one complete message body, or ErrTimeout when the proxy has
// nothing within the deadline.
func (c *StompyClient) Read() ([]byte, error) {
	if c.conn == nil {
		return nil, errors.New("feed: stompy not connected")
	}
	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	line, err := c.r.ReadString('\n')
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("feed: stompy read: %w", err)
	}
	n, err := strconv.Atoi(line[:len(line)-1])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("feed: stompy bad frame header %q", line)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, fmt.Errorf("feed: stompy read body: %w", err)
	}
	return body, nil
}

// Ack acknowledges the last delivered message. Never called unless the
// frame's transaction committed.
func (c *StompyClient) Ack() error {
	if c.conn == nil {
		return errors.New("feed: stompy not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(16 * time.Second))
	if _, err := c.conn.Write([]byte{'A'}); err != nil {
		return fmt.Errorf("feed: stompy ack: %w", err)
	}
	return nil
}

// Close drops the connection.
func (c *StompyClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.r = nil
	}
}
