package alert

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testAlerter(buf *bytes.Buffer) *Alerter {
	return &Alerter{
		Prog:   "testprog",
		Build:  "0000",
		Logger: log.New(buf, "", 0),
	}
}

func TestRaiseIsLatched(t *testing.T) {
	var buf bytes.Buffer
	a := testAlerter(&buf)

	a.Raise("latency", "too slow")
	a.Raise("latency", "still too slow")
	a.Raise("latency", "yet again")

	// One excursion, one alarm.
	assert.Equal(t, 1, strings.Count(buf.String(), "ALARM latency"))
}

func TestClearAfterRaise(t *testing.T) {
	var buf bytes.Buffer
	a := testAlerter(&buf)

	a.Raise("latency", "too slow")
	a.Clear("latency", "recovered")
	assert.Equal(t, 1, strings.Count(buf.String(), "CLEAR latency"))

	// A new excursion alarms again.
	a.Raise("latency", "too slow again")
	assert.Equal(t, 2, strings.Count(buf.String(), "ALARM latency"))
}

func TestClearWithoutRaiseIsSilent(t *testing.T) {
	var buf bytes.Buffer
	a := testAlerter(&buf)

	a.Clear("latency", "nothing happened")
	assert.Empty(t, buf.String())
}

func TestKeysAreIndependent(t *testing.T) {
	var buf bytes.Buffer
	a := testAlerter(&buf)

	a.Raise("latency", "x")
	a.Raise("disk", "y")
	assert.Contains(t, buf.String(), "ALARM latency")
	assert.Contains(t, buf.String(), "ALARM disk")
}

func TestSendWithoutRelayLogs(t *testing.T) {
	var buf bytes.Buffer
	a := testAlerter(&buf)

	a.Send("daily report", "body")
	assert.Contains(t, buf.String(), "not mailed")
	assert.Contains(t, buf.String(), "testprog 0000: daily report")
}
