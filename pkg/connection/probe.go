// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/webastostat/pkg/webasto"
)

// ProbeResult describes a successful connectivity probe
type ProbeResult struct {
	Reply   string
	Replied bool          // false when the controller stayed silent
	RTT     time.Duration // dial to first reply, or to the reply deadline
}

// ProbeOptions tune Probe. Zero values select the controller defaults.
type ProbeOptions struct {
	Dialer         Dialer
	ConnectTimeout time.Duration
	ReplyTimeout   time.Duration
}

// Probe dials host, requests settings and waits briefly for any reply. A
// silent controller still counts as reachable. The session is always closed
// before returning.
func Probe(ctx context.Context, host string, opts ProbeOptions) (ProbeResult, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = webasto.ConnectTimeout
	}
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = webasto.ProbeReplyTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &WebSocketDialer{HandshakeTimeout: opts.ConnectTimeout}
	}

	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	conn, err := opts.Dialer.Dial(dctx, URL(host))
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ProbeResult{}, fmt.Errorf("%w: %w", ErrProbeTimeout, err)
		}
		return ProbeResult{}, fmt.Errorf("probe %s: %w", host, err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(webasto.CmdGetSettings); err != nil {
		return ProbeResult{}, fmt.Errorf("probe %s: send: %w", host, err)
	}

	replies := make(chan string, 1)
	go func() {
		// Unblocked by the deferred Close
		msg, err := conn.ReadMessage()
		if err == nil {
			replies <- msg
		}
		close(replies)
	}()

	timer := time.NewTimer(opts.ReplyTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-replies:
		return ProbeResult{Reply: msg, Replied: ok, RTT: time.Since(start)}, nil
	case <-timer.C:
		return ProbeResult{RTT: time.Since(start)}, nil
	case <-ctx.Done():
		return ProbeResult{}, ctx.Err()
	}
}
