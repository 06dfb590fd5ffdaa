package jsonrpc

import "encoding/json"

// Response represents a JSON-RPC response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      ID              `json:"id"`
}

// HasError returns true if the response contains an error
func (r *Response) HasError() bool {
	return r.Error != nil
}

// ResultIsNull returns true if the response result is absent or JSON null
func (r *Response) ResultIsNull() bool {
	return r == nil || isNullRaw(r.Result)
}

// ParseResponse parses a JSON-RPC response from bytes
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SplitMessages splits an inbound frame into its JSON-RPC messages. A batch
// array yields one element per entry, anything else yields the frame itself.
func SplitMessages(data []byte) ([]json.RawMessage, error) {
	data = trimWhitespace(data)
	if len(data) == 0 {
		return nil, ErrInvalidRequest
	}

	if data[0] == '[' {
		var msgs []json.RawMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			return nil, err
		}
		return msgs, nil
	}

	if !json.Valid(data) {
		return nil, ErrParse
	}
	return []json.RawMessage{json.RawMessage(data)}, nil
}

// trimWhitespace removes leading whitespace from byte slice
func trimWhitespace(data []byte) []byte {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return data[i:]
		}
	}
	return data
}
