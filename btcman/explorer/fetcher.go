package explorer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/TEENet-io/btcrelay/agreement"
	"github.com/btcsuite/btcd/wire"
)

// DefaultDeadline caps every single request made by the relay.
const DefaultDeadline = 2000 * time.Millisecond

// DefaultMaxBody fits the largest raw block plus slack for error pages.
const DefaultMaxBody = wire.MaxBlockPayload + 64*1024

// Fetcher issues bounded-deadline requests against the explorer and maps
// failures onto the agreement error taxonomy. It never retries.
type Fetcher struct {
	Client   *http.Client
	Deadline time.Duration
	MaxBody  int64
}

func NewFetcher(deadline time.Duration) *Fetcher {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Fetcher{Client: &http.Client{}, Deadline: deadline, MaxBody: DefaultMaxBody}
}

// Get returns the body of a 200 response.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	return f.do(ctx, http.MethodGet, url, nil)
}

// Post sends body as plain text and returns the body of a 200 response.
func (f *Fetcher) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	return f.do(ctx, http.MethodPost, url, body)
}

func (f *Fetcher) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Deadline)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", agreement.ErrHttpIoError, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	limit := f.MaxBody
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, classifyTransportErr(ctx, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", agreement.ErrHttpIoError, limit)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &agreement.StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func classifyTransportErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", agreement.ErrHttpDeadlineReached, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", agreement.ErrHttpDeadlineReached, err)
	}
	return fmt.Errorf("%w: %v", agreement.ErrHttpIoError, err)
}
