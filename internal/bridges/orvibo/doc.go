// Package orvibo implements the client side of the Orvibo UDP control
// protocol used by WiWo smart sockets and AllOne IR/RF433 blasters.
//
// The protocol is a fixed-header datagram exchange on UDP port 10000:
//
//	magic(2) | length(2, big-endian) | command(2) | payload(...)
//
// where length counts every byte from the length field onward, including
// itself. There are no transaction IDs; responses are matched purely by
// command code.
//
// # Key Responsibilities
//
//   - Encode and parse protocol frames
//   - Broadcast discovery of devices on the local segment
//   - Per-device subscription handshake (required before any command)
//   - Learn: arm a blaster's learning mode and wait for a captured signal
//   - Emit: replay previously captured signals
//
// # Usage
//
//	devices, err := orvibo.Discover(ctx, orvibo.DiscoverOptions{})
//	if err != nil {
//	    return err
//	}
//	dev, err := orvibo.NewDevice(ctx, "192.168.1.50", orvibo.DeviceOptions{
//	    Signals: repo,
//	})
//	if err != nil {
//	    return err
//	}
//	signal, err := dev.Learn(ctx, "tv_power")
//
// # Failure Model
//
// Socket faults wrap ErrTransport and abort the current operation. Device
// behaviour that simply does not go our way (no subscribe response, learn
// timeout, wrong device kind) is a soft outcome: it is logged and reported
// through the return value (nil signal, false ok), never as an error, so a
// caller iterating over many devices is not derailed by one silent box.
//
// # Concurrency
//
// A Device performs strictly sequential, blocking-with-timeout I/O. The
// protocol has no multiplexing: callers must not issue overlapping
// operations against the same Device.
package orvibo
