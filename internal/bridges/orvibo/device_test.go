package orvibo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDevice(t *testing.T, fake *fakeDevice, opts DeviceOptions) *Device {
	t.Helper()
	opts.Identity = fake.id
	if opts.Kind == "" {
		opts.Kind = KindIRBlaster
	}
	opts.Port = fake.port()
	d, err := NewDevice(context.Background(), "127.0.0.1", opts)
	if err != nil {
		t.Fatalf("new device: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSubscribeReportsState(t *testing.T) {
	fake := newFakeDevice(t, testIdentity())
	fake.serve(func(cmd Command, frame []byte, respond func([]byte)) {
		if cmd == CmdSubscribe {
			respond(fake.subscribeAck(0x01))
		}
	})
	d := newTestDevice(t, fake, DeviceOptions{})

	state, ok, err := d.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !ok {
		t.Fatal("device did not acknowledge")
	}
	if state != 0x01 {
		t.Errorf("state = %02x, want 01", state)
	}
}

func TestSubscribeSilentDevice(t *testing.T) {
	fake := newFakeDevice(t, testIdentity())
	// Fake never answers.
	d := newTestDevice(t, fake, DeviceOptions{})

	_, ok, err := d.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("silence must not be an error, got %v", err)
	}
	if ok {
		t.Error("acknowledged without a response")
	}
}

func TestSubscribeSpacing(t *testing.T) {
	fake := newFakeDevice(t, testIdentity())
	arrivals := make(chan time.Time, 4)
	fake.serve(func(cmd Command, frame []byte, respond func([]byte)) {
		if cmd == CmdSubscribe {
			arrivals <- time.Now()
			respond(fake.subscribeAck(0x00))
		}
	})
	d := newTestDevice(t, fake, DeviceOptions{})

	// Pretend a subscribe was just sent so the next one must wait.
	d.mu.Lock()
	d.lastSubscribe = time.Now()
	d.mu.Unlock()
	before := time.Now()

	if _, _, err := d.Subscribe(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case at := <-arrivals:
		if gap := at.Sub(before); gap < 90*time.Millisecond {
			t.Errorf("subscribe sent after %v, want at least ~100ms", gap)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subscribe never reached the device")
	}
}

func TestSubscribeCancelledWhileSpaced(t *testing.T) {
	fake := newFakeDevice(t, testIdentity())
	d := newTestDevice(t, fake, DeviceOptions{})

	// Force the spacing wait so cancellation hits inside it.
	d.mu.Lock()
	d.lastSubscribe = time.Now()
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := d.Subscribe(ctx)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled in the chain", err)
	}
}

func TestKeepConnection(t *testing.T) {
	fake := newFakeDevice(t, testIdentity())
	fake.serve(func(cmd Command, frame []byte, respond func([]byte)) {
		if cmd == CmdSubscribe {
			respond(fake.subscribeAck(0x01))
		}
	})
	d := newTestDevice(t, fake, DeviceOptions{})

	if err := d.KeepConnection(context.Background()); err != nil {
		t.Fatalf("keep connection: %v", err)
	}
	d.mu.Lock()
	held := d.conn != nil
	d.mu.Unlock()
	if !held {
		t.Fatal("no persistent socket held")
	}

	// Second call is a no-op on an open connection.
	if err := d.KeepConnection(context.Background()); err != nil {
		t.Fatalf("second keep connection: %v", err)
	}

	d.ReleaseConnection()
	d.mu.Lock()
	held = d.conn != nil
	d.mu.Unlock()
	if held {
		t.Error("socket still held after release")
	}
}

func TestKeepConnectionSilentDevice(t *testing.T) {
	fake := newFakeDevice(t, testIdentity())
	d := newTestDevice(t, fake, DeviceOptions{})

	err := d.KeepConnection(context.Background())
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("err = %v, want ErrSubscribeFailed", err)
	}
	d.mu.Lock()
	held := d.conn != nil
	d.mu.Unlock()
	if held {
		t.Error("socket held after failed handshake")
	}
}

func TestNewDeviceKnownIdentity(t *testing.T) {
	// A preset identity must not trigger discovery, so no fake is needed.
	d, err := NewDevice(context.Background(), "192.168.1.40", DeviceOptions{
		Identity: testIdentity(),
		Kind:     KindSwitch,
	})
	if err != nil {
		t.Fatalf("new device: %v", err)
	}
	info := d.Info()
	if info.Addr != "192.168.1.40" || info.Identity != testIdentity() || info.Kind != KindSwitch {
		t.Errorf("info = %+v", info)
	}
}

func TestNextPacketIDChanges(t *testing.T) {
	d := &Device{}
	seen := make(map[[2]byte]bool)
	var prev [2]byte
	for i := 0; i < 16; i++ {
		pid := d.nextPacketID()
		var cur [2]byte
		copy(cur[:], pid)
		if i > 0 && cur == prev {
			t.Fatalf("iteration %d repeated packet id %x", i, cur)
		}
		prev = cur
		seen[cur] = true
	}
	if len(seen) < 2 {
		t.Error("packet ids never varied")
	}
}
