package transport

import (
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"txbatcher/internal/jsonrpc"
)

// InboundKind classifies a message received on a persistent connection
type InboundKind string

const (
	// InboundResult is a response carrying a result, normally a tx hash
	InboundResult InboundKind = "result"
	// InboundError is a response carrying a JSON-RPC error
	InboundError InboundKind = "error"
	// InboundNotification is a server push with params.result
	InboundNotification InboundKind = "notification"
	// InboundUnexpected is anything else
	InboundUnexpected InboundKind = "unexpected"
)

// Inbound is one message observed by the socket listener. Inbound messages
// are not correlated with outbound batches.
type Inbound struct {
	Kind       InboundKind
	ID         string
	Result     string
	Error      *jsonrpc.Error
	Raw        json.RawMessage
	ReceivedAt time.Time
}

// classify sorts one JSON-RPC message the way the listener reports it
func classify(msg json.RawMessage, now time.Time) Inbound {
	in := Inbound{Kind: InboundUnexpected, Raw: msg, ReceivedAt: now}

	resp, err := jsonrpc.ParseResponse(msg)
	if err != nil {
		return in
	}
	if !resp.ID.IsNull() {
		in.ID = resp.ID.String()
	}

	switch {
	case resp.HasError():
		in.Kind = InboundError
		in.Error = resp.Error
	case !resp.ResultIsNull():
		in.Kind = InboundResult
		in.Result = resultString(resp.Result)
	default:
		note, err := jsonrpc.ParseNotification(msg)
		if err == nil && note.HasResult() {
			in.Kind = InboundNotification
			in.Result = resultString(note.Params.Result)
		}
	}
	return in
}

// resultString unquotes string results and keeps anything else as raw JSON
func resultString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// compactOrQuote returns data if it is valid JSON, otherwise data as a JSON string
func compactOrQuote(data []byte) []byte {
	if json.Valid(data) {
		return data
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}

// Deduplicator suppresses notifications that were already seen, such as the
// same pending transaction hash reported twice
type Deduplicator struct {
	cache *lru.Cache[string, struct{}]
}

// NewDeduplicator creates a new Deduplicator with the given cache size
func NewDeduplicator(size int) (*Deduplicator, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Deduplicator{cache: cache}, nil
}

// IsDuplicate reports whether the message was seen before and records it.
// Only notifications are tracked; responses are always unique.
func (d *Deduplicator) IsDuplicate(in Inbound) bool {
	if in.Kind != InboundNotification || in.Result == "" {
		return false
	}
	key := "notification:" + in.Result
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Add(key, struct{}{})
	return false
}

// Len returns the current cache size
func (d *Deduplicator) Len() int {
	return d.cache.Len()
}
