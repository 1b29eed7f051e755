package feed

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gmallard/stompngo"
	"github.com/google/uuid"
)

// StompClient subscribes straight to the Network Rail broker when no local
// stompy proxy is configured. Same Read/Ack surface as StompyClient so the
// consume loop does not care which transport it was given.
type StompClient struct {
	Addr     string // host:port
	User     string
	Password string
	Topic    string // e.g. /topic/VSTP_ALL

	netConn net.Conn
	conn    *stompngo.Connection
	sub     <-chan stompngo.MessageData
	subID   string
	lastMsg string // message-id awaiting ack
}

// Connect dials the broker and subscribes with client-individual ack so a
// crash before ack causes redelivery.
func (c *StompClient) Connect() error {
	netConn, err := net.DialTimeout("tcp", c.Addr, 16*time.Second)
	if err != nil {
		return fmt.Errorf("feed: stomp connect %s: %w", c.Addr, err)
	}

	h := stompngo.Headers{
		"login", c.User,
		"passcode", c.Password,
		"accept-version", "1.1",
		"host", "/",
		"heart-beat", "15000,15000",
	}
	conn, err := stompngo.Connect(netConn, h)
	if err != nil {
		netConn.Close()
		return fmt.Errorf("feed: stomp handshake: %w", err)
	}

	c.subID = uuid.NewString()
	sub, err := conn.Subscribe(stompngo.Headers{
		"destination", c.Topic,
		"id", c.subID,
		"ack", "client-individual",
		"activemq.subscriptionName", "openrail-" + c.Topic,
	})
	if err != nil {
		conn.Disconnect(stompngo.Headers{})
		netConn.Close()
		return fmt.Errorf("feed: stomp subscribe %s: %w", c.Topic, err)
	}

	c.netConn = netConn
	c.conn = conn
	c.sub = sub
	return nil
}

// Read returns the next MESSAGE body or ErrTimeout after the standard
// deadline with nothing delivered.
func (c *StompClient) Read() ([]byte, error) {
	if c.conn == nil {
		return nil, errors.New("feed: stomp not connected")
	}
	select {
	case md, ok := <-c.sub:
		if !ok {
			return nil, errors.New("feed: stomp subscription closed")
		}
		if md.Error != nil {
			return nil, fmt.Errorf("feed: stomp receive: %w", md.Error)
		}
		c.lastMsg = md.Message.Headers.Value("message-id")
		return md.Message.Body, nil
	case <-time.After(readDeadline):
		return nil, ErrTimeout
	}
}

// Ack acknowledges the last delivered message.
func (c *StompClient) Ack() error {
	if c.conn == nil || c.lastMsg == "" {
		return errors.New("feed: stomp nothing to ack")
	}
	err := c.conn.Ack(stompngo.Headers{
		"message-id", c.lastMsg,
		"subscription", c.subID,
	})
	if err != nil {
		return fmt.Errorf("feed: stomp ack: %w", err)
	}
	c.lastMsg = ""
	return nil
}

// Close disconnects politely where possible.
func (c *StompClient) Close() {
	if c.conn != nil {
		c.conn.Disconnect(stompngo.Headers{})
		c.conn = nil
	}
	if c.netConn != nil {
		c.netConn.Close()
		c.netConn = nil
	}
}
