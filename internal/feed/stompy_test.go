package feed

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stompyServer accepts one connection, serves the given bodies in proxy
// framing and reports the acks it receives.
func stompyServer(t *testing.T, bodies ...string) (port int, acks <-chan byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan byte, len(bodies))
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for _, b := range bodies {
			fmt.Fprintf(conn, "%d\n%s", len(b), b)
			buf := make([]byte, 1)
			if _, err := conn.Read(buf); err != nil {
				return
			}
			ch <- buf[0]
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, ch
}

func TestStompyReadAndAck(t *testing.T) {
	port, acks := stompyServer(t, `{"a":1}`, "second message")

	c := NewStompyClient(port, 0)
	require.NoError(t, c.Connect())
	defer c.Close()

	body, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))
	require.NoError(t, c.Ack())
	assert.Equal(t, byte('A'), <-acks)

	body, err = c.Read()
	require.NoError(t, err)
	assert.Equal(t, "second message", string(body))
	require.NoError(t, c.Ack())
	assert.Equal(t, byte('A'), <-acks)
}

func TestStompyBadFrameHeader(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprint(conn, "not-a-length\nrest")
	}()

	c := NewStompyClient(ln.Addr().(*net.TCPAddr).Port, 0)
	require.NoError(t, c.Connect())
	defer c.Close()

	_, err = c.Read()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestStompyNotConnected(t *testing.T) {
	c := NewStompyClient(1, 0)
	_, err := c.Read()
	assert.Error(t, err)
	assert.Error(t, c.Ack())
}

func TestStompyPortOffsets(t *testing.T) {
	assert.Equal(t, "127.0.0.1:55840", NewStompyClient(55840, PortVSTP).addr)
	assert.Equal(t, "127.0.0.1:55841", NewStompyClient(55840, PortTRUST).addr)
	assert.Equal(t, "127.0.0.1:55842", NewStompyClient(55840, PortTD).addr)
}
