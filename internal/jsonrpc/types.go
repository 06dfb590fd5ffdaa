package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Version is the JSON-RPC version
const Version = "2.0"

// MethodSendRawTransaction submits one signed transaction
const MethodSendRawTransaction = "eth_sendRawTransaction"

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
)

// ID represents a JSON-RPC request/response ID
// It can be a string, number, or null
type ID struct {
	value interface{}
}

// NewIDUint creates an ID from an unsigned integer such as a nonce
func NewIDUint(n uint64) ID {
	return ID{value: n}
}

// IsNull returns true if the ID is null or absent
func (id ID) IsNull() bool {
	return id.value == nil
}

// String returns the ID in its JSON form, e.g. 7 or "abc"
func (id ID) String() string {
	data, err := json.Marshal(id.value)
	if err != nil {
		return ""
	}
	return string(data)
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are kept as
// json.Number so large nonces survive the round trip.
func (id *ID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	id.value = v
	return nil
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new JSON-RPC error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Common errors
var (
	ErrParse          = NewError(CodeParseError, "Parse error")
	ErrInvalidRequest = NewError(CodeInvalidRequest, "Invalid Request")
)

// Notification is a server push message such as an eth_subscription event
type Notification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

// NotificationParams contains the notification parameters
type NotificationParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// ParseNotification parses a server push
func ParseNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// HasResult returns true if the push carries a non-null params.result
func (n *Notification) HasResult() bool {
	return n != nil && !isNullRaw(n.Params.Result)
}

func isNullRaw(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
