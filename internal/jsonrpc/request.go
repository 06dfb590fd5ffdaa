package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Request represents a JSON-RPC request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      ID              `json:"id"`
}

// NewRequest creates a new JSON-RPC request
func NewRequest(method string, params interface{}, id ID) (*Request, error) {
	req := &Request{
		JSONRPC: Version,
		Method:  method,
		ID:      id,
	}

	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = paramsBytes
	}

	return req, nil
}

// NewSendRawTransaction builds an eth_sendRawTransaction request for one
// 0x-prefixed signed transaction
func NewSendRawTransaction(rawHex string, id ID) (*Request, error) {
	return NewRequest(MethodSendRawTransaction, []string{rawHex}, id)
}

// MarshalBatch marshals requests as one JSON array, preserving order
func MarshalBatch(requests []*Request) ([]byte, error) {
	if len(requests) == 0 {
		return nil, ErrInvalidRequest
	}
	return json.Marshal(requests)
}
