package orvibo

import (
	"context"
	"fmt"
)

// Emit transmits the stored signals named by labels, in order, over the
// device's blaster. Each transmission carries a fresh packet id so the
// device treats back-to-back repeats of the same signal as distinct.
//
// Reports (true, nil) when every signal was sent. A device of the wrong
// kind or a silent subscribe returns (false, nil); a missing label or a
// store failure is an error and aborts the remaining labels.
func (d *Device) Emit(ctx context.Context, labels ...string) (bool, error) {
	if d.opts.Kind != KindIRBlaster {
		d.logWarn("emit skipped: device cannot transmit", "device", d.addr, "kind", d.opts.Kind)
		return false, nil
	}
	if d.opts.Signals == nil {
		return false, ErrNoRepository
	}
	if len(labels) == 0 {
		return true, nil
	}

	sent := false
	err := d.withConn(func(tr *transport) error {
		_, ok, err := d.subscribeLocked(ctx, tr)
		if err != nil {
			return err
		}
		if !ok {
			d.logWarn("emit aborted: device did not acknowledge subscribe", "device", d.addr)
			return nil
		}

		id := d.opts.Identity
		for _, label := range labels {
			data, err := d.opts.Signals.Load(ctx, label)
			if err != nil {
				return fmt.Errorf("load signal %q: %w", label, err)
			}

			frame := EncodeFrame(CmdBlast, id[:], fillerSpaces, emitTag, d.nextPacketID(), data)
			if err := tr.send(ctx, frame); err != nil {
				return err
			}
			// Drain the echo so it does not pollute the next exchange.
			if _, err := tr.receiveLast(ctx, CmdAny, 1); err != nil {
				return err
			}
			d.logInfo("signal emitted", "device", d.addr, "label", label, "bytes", len(data))
		}
		sent = true
		return nil
	})
	return sent, err
}
