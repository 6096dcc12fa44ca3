package orvibo

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// Learn arms the device for capture and waits up to LearnTimeout for a
// signal to arrive on its receiver. The raw signal bytes are returned and,
// when label is non-empty and a store is configured, persisted under that
// label.
//
// A device of the wrong kind, a silent subscribe, and a capture timeout
// all return (nil, nil): operationally routine outcomes, reported through
// the logger rather than as errors. A store failure is a real error.
func (d *Device) Learn(ctx context.Context, label string) ([]byte, error) {
	if d.opts.Kind != KindIRBlaster {
		d.logWarn("learn skipped: device cannot capture", "device", d.addr, "kind", d.opts.Kind)
		return nil, nil
	}

	var signal []byte
	err := d.withConn(func(tr *transport) error {
		_, ok, err := d.subscribeLocked(ctx, tr)
		if err != nil {
			return err
		}
		if !ok {
			d.logWarn("learn aborted: device did not acknowledge subscribe", "device", d.addr)
			return nil
		}

		signal, err = d.capture(ctx, tr)
		return err
	})
	if err != nil || signal == nil {
		return nil, err
	}

	if label != "" && d.opts.Signals != nil {
		if err := d.opts.Signals.Save(ctx, label, signal); err != nil {
			return nil, fmt.Errorf("save signal %q: %w", label, err)
		}
		d.logInfo("signal captured and saved", "device", d.addr, "label", label, "bytes", len(signal))
	} else {
		d.logInfo("signal captured", "device", d.addr, "bytes", len(signal))
	}
	return signal, nil
}

// capture sends the arm frame and polls for the captured signal until the
// learn timeout elapses. Returns (nil, nil) on timeout.
func (d *Device) capture(ctx context.Context, tr *transport) ([]byte, error) {
	id := d.opts.Identity
	arm := EncodeFrame(CmdLearn, id[:], fillerSpaces, learnArm, fillerZeros)
	if err := tr.send(ctx, arm); err != nil {
		return nil, err
	}

	ack, err := tr.receive(ctx, CmdLearn, d.opts.ResponseSlices)
	if err != nil {
		return nil, err
	}
	if ack == nil {
		d.logWarn("learn aborted: device did not enter capture mode", "device", d.addr)
		return nil, nil
	}
	// The confirmation carries no signal yet; a longer frame means the
	// device had one buffered already.
	if ack.DeclaredLength() != emptyLearnLength {
		return d.extractSignal(ack)
	}

	deadline := time.Now().Add(d.opts.LearnTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			d.logWarn("learn timed out: no signal received", "device", d.addr, "timeout", d.opts.LearnTimeout)
			return nil, nil
		}

		f, err := tr.receive(ctx, CmdLearn, 1)
		if err != nil {
			return nil, err
		}
		if f == nil {
			d.logDebug("waiting for signal", "device", d.addr, "remaining", remaining.Round(time.Second))
			continue
		}
		if f.DeclaredLength() == emptyLearnLength {
			// Repeated confirmation, still waiting for a press.
			continue
		}
		return d.extractSignal(f)
	}
}

// extractSignal pulls the raw signal bytes out of a capture report. The
// report repeats the identity-plus-filler marker followed by a 6-byte
// sub-header before the signal data.
func (d *Device) extractSignal(f *Frame) ([]byte, error) {
	id := d.opts.Identity
	marker := append(append([]byte{}, id[:]...), fillerSpaces...)
	idx := bytes.Index(f.Data, marker)
	if idx < 0 {
		return nil, fmt.Errorf("%w: capture report missing identity marker", ErrMalformedFrame)
	}
	start := idx + len(marker) + 6
	if start >= len(f.Data) {
		return nil, fmt.Errorf("%w: capture report truncated", ErrMalformedFrame)
	}
	signal := make([]byte, len(f.Data)-start)
	copy(signal, f.Data[start:])
	return signal, nil
}
