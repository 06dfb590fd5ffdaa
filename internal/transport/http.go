package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"txbatcher/internal/runerr"
)

// HTTPTransport posts each batch as one JSON-RPC array and waits for the
// reply. Per-element results are not inspected.
type HTTPTransport struct {
	url        string
	httpClient *http.Client
	stats      Stats
	logger     zerolog.Logger
}

// NewHTTP creates a request/response transport
func NewHTTP(url string, opts Options) *HTTPTransport {
	opts = opts.withDefaults()

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}

	return &HTTPTransport{
		url: url,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.RequestTimeout,
		},
		logger: opts.Logger.With().Str("transport", string(KindHTTP)).Logger(),
	}
}

// Kind returns KindHTTP
func (t *HTTPTransport) Kind() Kind {
	return KindHTTP
}

// Streaming returns false: every submission is one blocking round trip
func (t *HTTPTransport) Streaming() bool {
	return false
}

// SubmitBatch sends the batch in a single POST. Network and HTTP status
// failures are returned wrapped in runerr.ErrSubmission.
func (t *HTTPTransport) SubmitBatch(ctx context.Context, b Batch) error {
	body, err := b.Encode()
	if err != nil {
		return err
	}

	start := time.Now()
	respBody, err := t.post(ctx, body)
	if err != nil {
		t.stats.RecordFailure()
		t.logger.Error().
			Err(err).
			Int("batch", b.Index).
			Int("size", b.Len()).
			Msg("batch send failed")
		return fmt.Errorf("%w: batch %d: %v", runerr.ErrSubmission, b.Index, err)
	}

	t.stats.RecordBatch(b.Len())
	t.logger.Info().
		Int("batch", b.Index).
		Int("size", b.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("batch sent")
	t.logger.Debug().
		Int("batch", b.Index).
		RawJSON("response", compactOrQuote(respBody)).
		Msg("batch response")
	return nil
}

func (t *HTTPTransport) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// Stats returns the transport counters
func (t *HTTPTransport) Stats() StatsSnapshot {
	return t.stats.Snapshot()
}

// Close releases idle connections
func (t *HTTPTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}
