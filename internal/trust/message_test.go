package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameObject(t *testing.T) {
	msgs, err := ParseFrame([]byte(`{
		"header":{"msg_type":"0003","msg_queue_timestamp":"1685754000000"},
		"body":{"train_id":"122P12345678","loc_stanox":"87701",
			"event_type":"DEPARTURE","train_terminated":"false"}}`))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "0003", msgs[0].Header.MsgType)
	assert.Equal(t, "122P12345678", msgs[0].Body.S("train_id"))
	assert.False(t, msgs[0].Body.Bool("train_terminated"))
}

func TestParseFrameArray(t *testing.T) {
	msgs, err := ParseFrame([]byte(` [
		{"header":{"msg_type":"0001"},"body":{"train_id":"A"}},
		{"header":{"msg_type":"0002"},"body":{"train_id":"B"}}]`))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "0001", msgs[0].Header.MsgType)
	assert.Equal(t, "0002", msgs[1].Header.MsgType)
}

func TestParseFrameMalformed(t *testing.T) {
	_, err := ParseFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestBodyS(t *testing.T) {
	b := Body{
		"padded":  "  X  ",
		"number":  float64(42),
		"boolean": true,
		"null":    nil,
	}
	assert.Equal(t, "X", b.S("padded"))
	assert.Equal(t, "42", b.S("number"))
	assert.Equal(t, "true", b.S("boolean"))
	assert.Equal(t, "", b.S("null"))
	assert.Equal(t, "", b.S("absent"))
	assert.True(t, b.Bool("boolean"))
	assert.False(t, b.Bool("absent"))
}

func TestIsObfuscatedID(t *testing.T) {
	// Genuine ids are untouched.
	assert.False(t, IsObfuscatedID("122P12345678"))
	assert.False(t, IsObfuscatedID("529A01M60345"))
	// Class 9 with scrambled characters in the headcode positions.
	assert.True(t, IsObfuscatedID("129 :12345678"[:12]))
	assert.True(t, IsObfuscatedID("879*#1M60345"))
	// Too short to carry a headcode at all.
	assert.False(t, IsObfuscatedID("129"))
}

func TestHeadcodeFromID(t *testing.T) {
	assert.Equal(t, "2P12", HeadcodeFromID("122P12345678"))
	assert.Equal(t, "9A01", HeadcodeFromID("529A01M60345"))
	assert.Equal(t, "", HeadcodeFromID("12"))
}
