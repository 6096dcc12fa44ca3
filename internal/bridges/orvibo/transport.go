package orvibo

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Transport timing constants.
const (
	// pollSlice is the granularity of every blocking socket wait. Send
	// and receive both poll in slices of this size so that context
	// cancellation is honoured at slice boundaries.
	pollSlice = time.Second

	// defaultSendSlices is how many poll slices a send may spend waiting
	// for the socket to accept the datagram before giving up silently.
	defaultSendSlices = 10

	// defaultResponseSlices is the receive window for a direct command
	// response (subscribe drain start, learn-arm acknowledgement).
	defaultResponseSlices = 10

	// maxFrameSize bounds one datagram. Captured RF433 signals are the
	// largest payloads observed and stay well under this.
	maxFrameSize = 1024
)

// Logger is the optional structured logger interface accepted by this
// package. Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// transport owns one UDP socket and implements the timeout-bounded
// send/receive primitives every procedure is built on.
//
// The socket is either connected (per-device sessions; raddr is nil and
// writes use Write) or unconnected (discovery; raddr carries the broadcast
// destination and writes use WriteToUDP).
type transport struct {
	conn       *net.UDPConn
	raddr      *net.UDPAddr // nil for connected sockets
	sendSlices int
	stats      *Stats
	logger     Logger
}

// send transmits one frame. The socket is polled in 1-second slices for up
// to sendSlices slices; if it never becomes writable the frame is dropped
// silently and callers treat the missing response as a soft failure. Socket
// faults other than deadline expiry wrap ErrTransport.
func (t *transport) send(ctx context.Context, frame []byte) error {
	slices := t.sendSlices
	if slices <= 0 {
		slices = defaultSendSlices
	}

	for i := 0; i < slices; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if err := t.conn.SetWriteDeadline(time.Now().Add(pollSlice)); err != nil {
			t.stats.addError()
			return fmt.Errorf("%w: set write deadline: %w", ErrTransport, err)
		}

		var err error
		if t.raddr != nil {
			_, err = t.conn.WriteToUDP(frame, t.raddr)
		} else {
			_, err = t.conn.Write(frame)
		}
		if err == nil {
			t.stats.addTx()
			return nil
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			continue
		}
		t.stats.addError()
		return fmt.Errorf("%w: send: %w", ErrTransport, err)
	}

	// The socket never became writable. Abandon the frame silently.
	t.logDebug("send abandoned, socket not writable", "slices", slices)
	return nil
}

// receive waits up to slices seconds for a frame whose command matches
// expect (CmdAny matches everything). Malformed frames and command
// mismatches are discarded and polling continues; they do not extend the
// overall window. Returns nil when the window elapses without a match.
func (t *transport) receive(ctx context.Context, expect Command, slices int) (*Frame, error) {
	deadline := time.Now().Add(time.Duration(slices) * pollSlice)
	buf := make([]byte, maxFrameSize)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.stats.addTimeout()
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		if err := t.conn.SetReadDeadline(time.Now().Add(min(pollSlice, remaining))); err != nil {
			t.stats.addError()
			return nil, fmt.Errorf("%w: set read deadline: %w", ErrTransport, err)
		}

		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			t.stats.addError()
			return nil, fmt.Errorf("%w: receive: %w", ErrTransport, err)
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		t.stats.addRx()

		if _, cmd, hdrErr := DecodeHeader(data); hdrErr != nil {
			t.stats.addDropped()
			t.logDebug("discarding malformed frame", "error", hdrErr, "from", addr.IP.String())
			continue
		} else if expect != CmdAny && cmd != expect {
			t.stats.addDropped()
			t.logDebug("discarding frame for other command",
				"got", fmt.Sprintf("%04x", uint16(cmd)),
				"want", fmt.Sprintf("%04x", uint16(expect)))
			continue
		}

		return &Frame{Addr: addr.IP.String(), Data: data, Received: time.Now()}, nil
	}
}

// receiveLast drains the socket and returns the last frame matching
// expect, or nil when none arrived at all. The first receive uses the
// given window; once something has matched, the drain continues with
// single-slice windows until the socket goes quiet. Emit uses this to
// flush trailing acknowledgements whose content it does not care about.
func (t *transport) receiveLast(ctx context.Context, expect Command, slices int) (*Frame, error) {
	var last *Frame
	window := slices
	for {
		f, err := t.receive(ctx, expect, window)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return last, nil
		}
		last = f
		window = 1
	}
}

func (t *transport) logDebug(msg string, keysAndValues ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, keysAndValues...)
	}
}
