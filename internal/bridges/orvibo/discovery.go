package orvibo

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// Discovery constants.
const (
	// maxDiscoverResponses bounds the worst-case collect loop. It is not
	// an expected count; collection normally stops at the first empty
	// receive window.
	maxDiscoverResponses = 512

	// discoverIdentityOffset is where the 6-byte identity sits in a
	// discovery response: after the common header and one zero byte.
	discoverIdentityOffset = 7

	// discoverTypeOffset is where the 3-byte device-class tag sits in a
	// well-formed discovery response.
	discoverTypeOffset = 31

	// defaultBroadcastAddr is the limited broadcast address used when no
	// override is configured.
	defaultBroadcastAddr = "255.255.255.255"
)

// DiscoverOptions configures a discovery pass. The zero value discovers on
// the local segment using the standard control port.
type DiscoverOptions struct {
	// BroadcastAddr is the address the discovery frame is sent to.
	// Default: 255.255.255.255.
	BroadcastAddr string

	// ListenAddr is the local bind address. Default: ":<Port>"; devices
	// answer to the control port, so the collector must own it.
	ListenAddr string

	// Port is the UDP control port. Default: ControlPort (10000).
	Port int

	// SendSlices overrides the send poll budget. Default: 10.
	SendSlices int

	// Logger is an optional structured logger.
	Logger Logger

	// Stats is an optional shared counter set.
	Stats *Stats
}

func (o *DiscoverOptions) applyDefaults() {
	if o.Port == 0 {
		o.Port = ControlPort
	}
	if o.BroadcastAddr == "" {
		o.BroadcastAddr = defaultBroadcastAddr
	}
	if o.ListenAddr == "" {
		o.ListenAddr = ":" + strconv.Itoa(o.Port)
	}
}

// Discover broadcasts one discovery frame and collects every response that
// arrives before the segment goes quiet. The result maps device address to
// its record. Ghost responses (frames without a parsable identity) are
// discarded.
func Discover(ctx context.Context, opts DiscoverOptions) (map[string]DeviceInfo, error) {
	opts.applyDefaults()

	tr, err := openBroadcastTransport(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer tr.conn.Close()

	if err := tr.send(ctx, EncodeFrame(CmdDiscover)); err != nil {
		return nil, err
	}

	devices := make(map[string]DeviceInfo)
	for i := 0; i < maxDiscoverResponses; i++ {
		f, err := tr.receive(ctx, CmdDiscover, 1)
		if err != nil {
			return nil, err
		}
		if f == nil {
			// No more frames queued.
			break
		}

		info, ok := parseDiscoverResponse(f)
		if !ok {
			if opts.Logger != nil {
				opts.Logger.Debug("discarding ghost discovery response", "from", f.Addr)
			}
			continue
		}
		devices[info.Addr] = info
	}

	if opts.Logger != nil {
		opts.Logger.Info("discovery complete", "devices", len(devices))
	}
	return devices, nil
}

// DiscoverDevice runs a discovery pass and returns the record for addr.
// Returns ErrDeviceNotFound when the address did not answer.
func DiscoverDevice(ctx context.Context, addr string, opts DiscoverOptions) (DeviceInfo, error) {
	devices, err := Discover(ctx, opts)
	if err != nil {
		return DeviceInfo{}, err
	}
	info, ok := devices[addr]
	if !ok {
		return DeviceInfo{}, fmt.Errorf("%w: %s did not answer discovery", ErrDeviceNotFound, addr)
	}
	return info, nil
}

// openBroadcastTransport binds a broadcast-capable UDP socket on the
// control port. SO_REUSEADDR matters here: the port is fixed by the
// protocol and may still be in TIME_WAIT-adjacent state from a previous
// pass.
func openBroadcastTransport(ctx context.Context, opts DiscoverOptions) (*transport, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if e := syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); e != nil {
					sockErr = e
					return
				}
				sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp4", opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: bind %s: %w", ErrTransport, opts.ListenAddr, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("%w: unexpected socket type %T", ErrTransport, pc)
	}

	raddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(opts.BroadcastAddr, strconv.Itoa(opts.Port)))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: resolve broadcast address: %w", ErrTransport, err)
	}

	return &transport{
		conn:       conn,
		raddr:      raddr,
		sendSlices: opts.SendSlices,
		stats:      opts.Stats,
		logger:     opts.Logger,
	}, nil
}

// parseDiscoverResponse extracts the identity and device kind from a
// discovery response. The identity sits at a fixed offset after the
// header; the kind tag is read at its fixed offset first, with a
// whole-frame scan kept as a fallback for firmware that shifts the tag.
func parseDiscoverResponse(f *Frame) (DeviceInfo, bool) {
	data := f.Data
	if len(data) < discoverIdentityOffset+identitySize {
		return DeviceInfo{}, false
	}

	var id Identity
	copy(id[:], data[discoverIdentityOffset:discoverIdentityOffset+identitySize])
	if id.IsZero() {
		return DeviceInfo{}, false
	}

	return DeviceInfo{
		Addr:     f.Addr,
		Identity: id,
		Kind:     parseKindTag(data),
	}, true
}

// parseKindTag maps the 3-byte device-class tag to a Kind.
func parseKindTag(data []byte) Kind {
	if len(data) >= discoverTypeOffset+3 {
		switch {
		case bytes.Equal(data[discoverTypeOffset:discoverTypeOffset+3], typeTagSwitch):
			return KindSwitch
		case bytes.Equal(data[discoverTypeOffset:discoverTypeOffset+3], typeTagBlaster):
			return KindIRBlaster
		}
	}

	// Legacy fallback: some firmware revisions pad the response
	// differently, so scan the whole frame before giving up.
	switch {
	case bytes.Contains(data, typeTagSwitch):
		return KindSwitch
	case bytes.Contains(data, typeTagBlaster):
		return KindIRBlaster
	default:
		return KindUnknown
	}
}
