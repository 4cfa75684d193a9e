// Package srt dials remote SRT listeners and exposes the received MPEG-TS
// bytes as an io.ReadCloser.
package srt

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	srtgo "github.com/zsiec/srtgo"
)

// ReadBufferSize is the read buffer for SRT socket reads: ten 1316-byte
// payloads of seven TS packets each.
const ReadBufferSize = 1316 * 10

// latencyNs is the SRT receive latency in nanoseconds (120ms).
const latencyNs = 120_000_000

// DefaultDialTimeout bounds the SRT handshake when no timeout is given.
const DefaultDialTimeout = 10 * time.Second

// PullRequest describes a remote SRT source to pull from.
type PullRequest struct {
	Address  string
	StreamID string
	Timeout  time.Duration
}

// Dial connects to the remote listener, giving up after req.Timeout or when
// ctx is done. A connection that completes after giving up is closed.
func Dial(ctx context.Context, req PullRequest) (io.ReadCloser, error) {
	if req.Address == "" {
		return nil, fmt.Errorf("srt: address is required")
	}

	cfg := srtgo.DefaultConfig()
	cfg.Latency = latencyNs
	if req.StreamID != "" {
		cfg.StreamID = req.StreamID
	}

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(req.Address, cfg)
		ch <- dialResult{conn, err}
	}()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Close any connection that completes after we stop waiting.
	drain := func() {
		if res := <-ch; res.conn != nil {
			res.conn.Close()
		}
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("srt: dial %s: %w", req.Address, res.err)
		}
		return &conn{c: res.conn}, nil
	case <-timer.C:
		go drain()
		return nil, fmt.Errorf("srt: dial %s timed out after %s", req.Address, timeout)
	case <-ctx.Done():
		go drain()
		return nil, ctx.Err()
	}
}

// conn adapts an SRT connection to io.ReadCloser. Close is idempotent so a
// cancellation watcher and the reader can both call it.
type conn struct {
	c    *srtgo.Conn
	once sync.Once
}

func (c *conn) Read(p []byte) (int, error) {
	return c.c.Read(p)
}

func (c *conn) Close() error {
	c.once.Do(func() { c.c.Close() })
	return nil
}
