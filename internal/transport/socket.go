package transport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"txbatcher/internal/jsonrpc"
	"txbatcher/internal/runerr"
)

// SocketTransport owns one WebSocket connection to the endpoint.
// SubmitBatch writes a frame and returns without waiting for a reply.
// A listener goroutine reads every inbound frame, logs it and publishes it
// on Inbound; it never touches dispatcher state.
type SocketTransport struct {
	url            string
	requestTimeout time.Duration
	logger         zerolog.Logger
	stats          Stats
	dedup          *Deduplicator

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex
	lost    atomic.Bool

	inbound chan Inbound

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed sync.Once
}

// DialSocket performs the WebSocket handshake and starts the listener.
// Failures are wrapped in runerr.ErrConnection.
func DialSocket(ctx context.Context, url string, opts Options) (*SocketTransport, error) {
	opts = opts.withDefaults()

	dedup, err := NewDeduplicator(opts.DedupCacheSize)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger.With().Str("transport", string(KindSocket)).Logger()
	logger.Info().Str("endpoint", url).Msg("WebSocket connecting")

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect WebSocket: %v", runerr.ErrConnection, err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	t := &SocketTransport{
		url:            url,
		requestTimeout: opts.RequestTimeout,
		logger:         logger,
		dedup:          dedup,
		conn:           conn,
		inbound:        make(chan Inbound, opts.InboundBuffer),
		ctx:            lctx,
		cancel:         cancel,
	}

	logger.Info().Msg("WebSocket connected")
	t.wg.Add(1)
	go t.readLoop()
	return t, nil
}

// Kind returns KindSocket
func (t *SocketTransport) Kind() Kind {
	return KindSocket
}

// Streaming returns true: submissions are queued on the connection
func (t *SocketTransport) Streaming() bool {
	return true
}

// Inbound returns the channel of messages seen by the listener. It is
// closed by Close. Messages are dropped when nobody drains it.
func (t *SocketTransport) Inbound() <-chan Inbound {
	return t.inbound
}

// SubmitBatch writes the batch as one text frame. It does not wait for or
// confirm receipt. A failed write means the connection is gone and is
// returned wrapped in runerr.ErrConnection.
func (t *SocketTransport) SubmitBatch(ctx context.Context, b Batch) error {
	body, err := b.Encode()
	if err != nil {
		return err
	}

	if t.lost.Load() {
		t.stats.RecordFailure()
		return fmt.Errorf("%w: WebSocket connection lost before batch %d", runerr.ErrConnection, b.Index)
	}

	t.connMu.RLock()
	conn := t.conn
	t.connMu.RUnlock()
	if conn == nil {
		t.stats.RecordFailure()
		return fmt.Errorf("%w: WebSocket not connected", runerr.ErrConnection)
	}

	deadline := time.Now().Add(t.requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	conn.SetWriteDeadline(deadline)
	writeErr := conn.WriteMessage(websocket.TextMessage, body)
	t.writeMu.Unlock()

	if writeErr != nil {
		t.stats.RecordFailure()
		t.logger.Error().Err(writeErr).Int("batch", b.Index).Msg("batch write failed")
		return fmt.Errorf("%w: failed to write batch %d: %v", runerr.ErrConnection, b.Index, writeErr)
	}

	t.stats.RecordBatch(b.Len())
	t.logger.Info().
		Int("batch", b.Index).
		Int("size", b.Len()).
		Msg("batch queued")
	return nil
}

// Stats returns the transport counters
func (t *SocketTransport) Stats() StatsSnapshot {
	return t.stats.Snapshot()
}

// Close sends a close frame, stops the listener and closes Inbound
func (t *SocketTransport) Close() error {
	var err error
	t.closed.Do(func() {
		t.logger.Info().Msg("WebSocket closing")
		t.cancel()

		t.connMu.Lock()
		if t.conn != nil {
			t.writeMu.Lock()
			_ = t.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			t.writeMu.Unlock()
			err = t.conn.Close()
			t.conn = nil
		}
		t.connMu.Unlock()

		t.wg.Wait()
		close(t.inbound)

		s := t.stats.Snapshot()
		t.logger.Info().
			Uint64("inbound", s.Inbound).
			Uint64("rejected", s.Rejected).
			Uint64("duplicates", s.Duplicates).
			Msg("WebSocket disconnected")
	})
	return err
}

func (t *SocketTransport) readLoop() {
	defer t.wg.Done()

	t.connMu.RLock()
	conn := t.conn
	t.connMu.RUnlock()
	if conn == nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.ctx.Done():
				t.logger.Debug().Msg("WebSocket reader stopped (shutdown)")
				return
			default:
			}

			t.lost.Store(true)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Warn().Err(err).Msg("WebSocket closed by endpoint")
			} else {
				t.logger.Error().Err(err).Msg("WebSocket connection lost")
			}
			return
		}

		t.handleFrame(data)
	}
}

func (t *SocketTransport) handleFrame(data []byte) {
	now := time.Now()

	msgs, err := jsonrpc.SplitMessages(data)
	if err != nil {
		t.stats.RecordInbound(false)
		t.logger.Warn().
			Err(err).
			Int("len", len(data)).
			RawJSON("message", compactOrQuote(data)).
			Msg("unexpected message")
		t.publish(Inbound{Kind: InboundUnexpected, Raw: compactOrQuote(data), ReceivedAt: now})
		return
	}

	for _, msg := range msgs {
		in := classify(msg, now)
		if t.dedup.IsDuplicate(in) {
			t.stats.RecordDuplicate()
			continue
		}
		t.stats.RecordInbound(in.Kind == InboundError)
		t.logInbound(in)
		t.publish(in)
	}
}

func (t *SocketTransport) logInbound(in Inbound) {
	switch in.Kind {
	case InboundResult:
		t.logger.Info().Str("id", in.ID).Str("result", in.Result).Msg("transaction accepted")
	case InboundError:
		t.logger.Warn().
			Str("id", in.ID).
			Int("code", in.Error.Code).
			Str("error", in.Error.Message).
			Msg("transaction rejected")
	case InboundNotification:
		t.logger.Info().Str("result", in.Result).Msg("new pending transaction")
	default:
		t.logger.Warn().RawJSON("message", in.Raw).Msg("unexpected message")
	}
}

func (t *SocketTransport) publish(in Inbound) {
	select {
	case t.inbound <- in:
	default:
		t.logger.Debug().Str("kind", string(in.Kind)).Msg("inbound queue full, dropping message")
	}
}
