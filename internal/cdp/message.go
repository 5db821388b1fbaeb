package cdp

import (
	"encoding/json"
	"fmt"
)

// Message is a DevTools protocol frame: a command, its response, or an event
type Message struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    any             `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

func (m *Message) IsResponse() bool {
	return m.ID != 0 && m.Method == ""
}

func (m *Message) IsEvent() bool {
	return m.ID == 0 && m.Method != ""
}
