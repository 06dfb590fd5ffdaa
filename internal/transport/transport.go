package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"txbatcher/internal/jsonrpc"
	"txbatcher/internal/runerr"
	"txbatcher/internal/signer"
)

// Kind identifies a transport variant
type Kind string

const (
	KindHTTP   Kind = "http"
	KindSocket Kind = "socket"
)

// Transport delivers batches to the endpoint.
//
// Streaming transports hand the batch to a long-lived connection and return
// immediately, so the dispatcher does not pace them. Request/response
// transports block for one round trip and are paced by the dispatcher.
type Transport interface {
	SubmitBatch(ctx context.Context, b Batch) error
	Kind() Kind
	Streaming() bool
	Stats() StatsSnapshot
	Close() error
}

// Batch is an ordered group of signed transactions sent in one call
type Batch struct {
	Index        int
	Transactions []signer.SignedTransaction
}

// Len returns the number of transactions in the batch
func (b Batch) Len() int {
	return len(b.Transactions)
}

// Requests converts the batch into eth_sendRawTransaction requests in
// batch order. The request id is the transaction nonce.
func (b Batch) Requests() ([]*jsonrpc.Request, error) {
	reqs := make([]*jsonrpc.Request, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		req, err := jsonrpc.NewSendRawTransaction(tx.RawHex(), jsonrpc.NewIDUint(tx.Nonce))
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Encode returns the batch as one JSON-RPC array
func (b Batch) Encode() ([]byte, error) {
	reqs, err := b.Requests()
	if err != nil {
		return nil, fmt.Errorf("failed to build batch %d: %w", b.Index, err)
	}
	data, err := jsonrpc.MarshalBatch(reqs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch %d: %w", b.Index, err)
	}
	return data, nil
}

// Options configures both transport variants
type Options struct {
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	InboundBuffer    int
	DedupCacheSize   int
	Logger           zerolog.Logger
}

// Default option values
const (
	DefaultRequestTimeout   = 10 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultInboundBuffer    = 1024
	DefaultDedupCacheSize   = 10000
)

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.InboundBuffer <= 0 {
		o.InboundBuffer = DefaultInboundBuffer
	}
	if o.DedupCacheSize <= 0 {
		o.DedupCacheSize = DefaultDedupCacheSize
	}
	return o
}

// KindOf selects the transport variant from the endpoint scheme
func KindOf(endpoint string) (Kind, error) {
	lower := strings.ToLower(strings.TrimSpace(endpoint))
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindHTTP, nil
	case strings.HasPrefix(lower, "ws://"), strings.HasPrefix(lower, "wss://"):
		return KindSocket, nil
	default:
		return "", fmt.Errorf("%w: endpoint %q must start with http(s):// or ws(s)://", runerr.ErrConfig, endpoint)
	}
}

// New creates the transport matching the endpoint scheme. Socket transports
// complete their handshake before New returns.
func New(ctx context.Context, endpoint string, opts Options) (Transport, error) {
	kind, err := KindOf(endpoint)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindSocket:
		return DialSocket(ctx, endpoint, opts)
	default:
		return NewHTTP(endpoint, opts), nil
	}
}
