package orvibo

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// Kind classifies a discovered device.
type Kind string

const (
	// KindSwitch is a mains switch (wall plug).
	KindSwitch Kind = "switch"

	// KindIRBlaster is an RF/IR transmitter.
	KindIRBlaster Kind = "irda"

	// KindUnknown marks a device whose class tag could not be read.
	KindUnknown Kind = "unknown"
)

// DeviceInfo is the discovery record for one device.
type DeviceInfo struct {
	Addr     string   `json:"addr"`
	Identity Identity `json:"identity"`
	Kind     Kind     `json:"kind"`
}

// SignalStore persists captured signals by label. Implementations must be
// safe for concurrent use.
type SignalStore interface {
	Load(ctx context.Context, label string) ([]byte, error)
	Save(ctx context.Context, label string, data []byte) error
}

// subscribeMinInterval is the minimum spacing between subscribe frames to
// one device. Devices drop subscribes that arrive faster than this.
const subscribeMinInterval = 100 * time.Millisecond

// defaultLearnTimeout bounds how long Learn waits for a button press.
const defaultLearnTimeout = 15 * time.Second

// DeviceOptions configures a Device. All fields are optional; a zero
// Identity triggers a discovery pass to resolve it.
type DeviceOptions struct {
	// Identity is the 6-byte hardware identity. When zero, NewDevice
	// discovers it from the device itself.
	Identity Identity

	// Kind is the device class. Resolved by discovery when unset.
	Kind Kind

	// Port is the UDP control port. Default: ControlPort.
	Port int

	// SendSlices overrides the send poll budget. Default: 10.
	SendSlices int

	// ResponseSlices is the receive window, in one-second slices, for
	// direct command responses. Default: 10.
	ResponseSlices int

	// LearnTimeout bounds a capture session. Default: 15s.
	LearnTimeout time.Duration

	// Signals is the optional store Learn saves into and Emit loads from.
	Signals SignalStore

	// Logger is an optional structured logger.
	Logger Logger

	// Stats is an optional shared counter set.
	Stats *Stats
}

func (o *DeviceOptions) applyDefaults() {
	if o.Port == 0 {
		o.Port = ControlPort
	}
	if o.ResponseSlices == 0 {
		o.ResponseSlices = defaultResponseSlices
	}
	if o.LearnTimeout == 0 {
		o.LearnTimeout = defaultLearnTimeout
	}
	if o.Kind == "" {
		o.Kind = KindUnknown
	}
}

// Device is a handle on one unit. All exported methods are safe for
// concurrent use; command exchanges are serialized per device.
type Device struct {
	addr string
	opts DeviceOptions

	mu            sync.Mutex
	conn          *transport // non-nil while a persistent connection is held
	lastSubscribe time.Time
	lastPacketID  [2]byte
}

// NewDevice builds a handle for the device at addr. When opts.Identity is
// zero the identity and kind are resolved with a discovery pass, so the
// device must be reachable at construction time in that case.
func NewDevice(ctx context.Context, addr string, opts DeviceOptions) (*Device, error) {
	opts.applyDefaults()

	if opts.Identity.IsZero() {
		info, err := DiscoverDevice(ctx, addr, DiscoverOptions{
			Port:       opts.Port,
			SendSlices: opts.SendSlices,
			Logger:     opts.Logger,
			Stats:      opts.Stats,
		})
		if err != nil {
			return nil, err
		}
		opts.Identity = info.Identity
		opts.Kind = info.Kind
	}

	return &Device{addr: addr, opts: opts}, nil
}

// Info returns the device's discovery record.
func (d *Device) Info() DeviceInfo {
	return DeviceInfo{Addr: d.addr, Identity: d.opts.Identity, Kind: d.opts.Kind}
}

// Addr returns the device's network address.
func (d *Device) Addr() string { return d.addr }

// KeepConnection opens a persistent socket to the device and subscribes on
// it. Returns ErrSubscribeFailed when the device does not acknowledge; the
// socket is closed in that case. Call ReleaseConnection when done.
func (d *Device) KeepConnection(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return nil
	}
	tr, err := d.dial()
	if err != nil {
		return err
	}
	_, ok, err := d.subscribeLocked(ctx, tr)
	if err != nil {
		tr.conn.Close()
		return err
	}
	if !ok {
		tr.conn.Close()
		return fmt.Errorf("%w: %s did not acknowledge", ErrSubscribeFailed, d.addr)
	}
	d.conn = tr
	return nil
}

// ReleaseConnection closes the persistent socket, if any.
func (d *Device) ReleaseConnection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		d.conn.conn.Close()
		d.conn = nil
	}
}

// Close releases any held connection.
func (d *Device) Close() error {
	d.ReleaseConnection()
	return nil
}

// Subscribe sends one subscribe exchange and reports the device state byte
// from the acknowledgement. ok is false when the device stayed silent;
// that is not an error.
func (d *Device) Subscribe(ctx context.Context) (state byte, ok bool, err error) {
	err = d.withConn(func(tr *transport) error {
		state, ok, err = d.subscribeLocked(ctx, tr)
		return err
	})
	return state, ok, err
}

// subscribeLocked runs one subscribe exchange on tr. The caller must hold
// d.mu. The send timestamp is recorded whether or not the device answers,
// so back-to-back attempts still honor the spacing rule.
func (d *Device) subscribeLocked(ctx context.Context, tr *transport) (byte, bool, error) {
	if wait := subscribeMinInterval - time.Since(d.lastSubscribe); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return 0, false, fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
		}
	}
	d.lastSubscribe = time.Now()

	id := d.opts.Identity
	rev := id.Reversed()
	frame := EncodeFrame(CmdSubscribe, id[:], fillerSpaces, rev[:], fillerSpaces)
	if err := tr.send(ctx, frame); err != nil {
		return 0, false, err
	}

	f, err := tr.receiveLast(ctx, CmdSubscribe, 1)
	if err != nil {
		return 0, false, err
	}
	if f == nil {
		d.logDebug("subscribe not acknowledged", "device", d.addr)
		return 0, false, nil
	}
	payload := f.Payload()
	if len(payload) == 0 {
		return 0, false, fmt.Errorf("%w: empty subscribe acknowledgement", ErrMalformedFrame)
	}
	return payload[len(payload)-1], true, nil
}

// withConn runs fn with the persistent transport when one is held, or with
// a transient connected socket otherwise. Serializes all exchanges to the
// device.
func (d *Device) withConn(fn func(*transport) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tr := d.conn
	if tr == nil {
		var err error
		tr, err = d.dial()
		if err != nil {
			return err
		}
		defer tr.conn.Close()
	}
	return fn(tr)
}

// dial opens a connected UDP socket to the device on an ephemeral local
// port. A connected socket only accepts datagrams from the device, which
// keeps unrelated control-port chatter out of the receive loop.
func (d *Device) dial() (*transport, error) {
	raddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(d.addr, strconv.Itoa(d.opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrTransport, d.addr, err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, raddr, err)
	}
	return &transport{
		conn:       conn,
		sendSlices: d.opts.SendSlices,
		stats:      d.opts.Stats,
		logger:     d.opts.Logger,
	}, nil
}

// nextPacketID returns a fresh 2-byte packet id, guaranteed to differ from
// the previous one so consecutive emissions stay distinguishable on the
// wire. The caller must hold d.mu.
func (d *Device) nextPacketID() []byte {
	for {
		var pid [2]byte
		rand.Read(pid[:])
		if pid != d.lastPacketID {
			d.lastPacketID = pid
			return pid[:]
		}
	}
}

func (d *Device) logDebug(msg string, keysAndValues ...any) {
	if d.opts.Logger != nil {
		d.opts.Logger.Debug(msg, keysAndValues...)
	}
}

func (d *Device) logInfo(msg string, keysAndValues ...any) {
	if d.opts.Logger != nil {
		d.opts.Logger.Info(msg, keysAndValues...)
	}
}

func (d *Device) logWarn(msg string, keysAndValues ...any) {
	if d.opts.Logger != nil {
		d.opts.Logger.Warn(msg, keysAndValues...)
	}
}
