// Package trust ingests the real-time train-running feed: activations,
// movements, cancellations and the change-of family, plus the schedule
// matching, deduction and obfuscation bookkeeping they need.
package trust

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is one TRUST message. The feed wraps every value as a string;
// booleans arrive as "true"/"false" and timestamps as decimal milliseconds.
// Unknown members are kept in the body map and ignored.
type Message struct {
	Header Header `json:"header"`
	Body   Body   `json:"body"`
}

// Header carries routing metadata; only the type and queue timestamp are
// load-bearing here.
type Header struct {
	MsgType           string `json:"msg_type"`
	MsgQueueTimestamp string `json:"msg_queue_timestamp"`
	SourceSystemID    string `json:"source_system_id"`
	OriginalSource    string `json:"original_data_source"`
}

// Body is the string-typed member bag of one message.
type Body map[string]interface{}

// S returns the named member as a trimmed string; nulls and absent members
// come back empty.
func (b Body) S(key string) string {
	v, ok := b[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", s))
	case bool:
		if s {
			return "true"
		}
		return "false"
	}
	return ""
}

// Bool returns a "true"/"false" member.
func (b Body) Bool(key string) bool { return b.S(key) == "true" }

// ParseFrame decodes one broker frame, which is either a single message
// object or an array of them.
func ParseFrame(body []byte) ([]Message, error) {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		var msgs []Message
		if err := json.Unmarshal(body, &msgs); err != nil {
			return nil, fmt.Errorf("trust: frame: %w", err)
		}
		return msgs, nil
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("trust: frame: %w", err)
	}
	return []Message{msg}, nil
}

// IsObfuscatedID reports whether a TRUST train id carries a scrambled
// headcode: class digit 9 followed by characters outside A-Z0-9 in the
// headcode positions.
func IsObfuscatedID(trainID string) bool {
	if len(trainID) < 6 || trainID[2] != '9' {
		return false
	}
	return !isHeadcodeChar(trainID[3]) || !isHeadcodeChar(trainID[4])
}

// HeadcodeFromID extracts the four signalling characters of a train id.
func HeadcodeFromID(trainID string) string {
	if len(trainID) < 6 {
		return ""
	}
	return trainID[2:6]
}

func isHeadcodeChar(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
