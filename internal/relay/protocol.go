package relay

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/aibidi/aibidi/pkg/types"
)

// ParseError reports an inbound frame that is not a valid message.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frame: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// decodeMessage parses one inbound text frame.
func decodeMessage(frame []byte) (types.Message, error) {
	var msg types.Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return types.Message{}, &ParseError{Err: err}
	}
	return msg, nil
}

// encodeOutput wraps PTY bytes in an output frame.
func encodeOutput(data []byte) ([]byte, error) {
	return json.Marshal(types.Message{Type: types.MessageOutput, Data: string(data)})
}

// splitUTF8 returns the longest prefix of p that does not end inside a
// multi-byte UTF-8 sequence, and the incomplete remainder. Bytes that can
// never become valid UTF-8 are left in the prefix.
func splitUTF8(p []byte) (complete, rest []byte) {
	// A UTF-8 sequence is at most 4 bytes, so only the last 3 can be pending.
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax+1; i-- {
		b := p[i]
		if b < utf8.RuneSelf {
			return p, nil
		}
		if utf8.RuneStart(b) {
			if !utf8.FullRune(p[i:]) {
				return p[:i], p[i:]
			}
			return p, nil
		}
	}
	return p, nil
}
