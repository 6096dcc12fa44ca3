package orvibo

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// blastPayloadOffset is where signal data starts in a transmit frame:
// header, identity, filler, emit tag, packet id.
const blastPayloadOffset = headerSize + identitySize + 6 + 4 + 2

func TestEmitSendsLabelsInOrder(t *testing.T) {
	sigA := testSignal()
	sigB := make([]byte, 32)
	for i := range sigB {
		sigB[i] = byte(0xff - i)
	}

	fake := newFakeDevice(t, testIdentity())
	blasts := make(chan []byte, 8)
	fake.serve(func(cmd Command, frame []byte, respond func([]byte)) {
		switch cmd {
		case CmdSubscribe:
			respond(fake.subscribeAck(0x01))
		case CmdBlast:
			blasts <- frame
		}
	})

	store := newMemStore()
	store.Save(context.Background(), "a", sigA)
	store.Save(context.Background(), "b", sigB)
	d := newTestDevice(t, fake, DeviceOptions{Signals: store})

	sent, err := d.Emit(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !sent {
		t.Fatal("emit reported nothing sent")
	}

	first := <-blasts
	second := <-blasts
	if !bytes.Equal(first[blastPayloadOffset:], sigA) {
		t.Errorf("first transmission = %x, want signal a", first[blastPayloadOffset:])
	}
	if !bytes.Equal(second[blastPayloadOffset:], sigB) {
		t.Errorf("second transmission = %x, want signal b", second[blastPayloadOffset:])
	}

	id := testIdentity()
	if !bytes.Equal(first[headerSize:headerSize+identitySize], id[:]) {
		t.Errorf("identity = %x, want %x", first[headerSize:headerSize+identitySize], id[:])
	}

	pidFirst := first[blastPayloadOffset-2 : blastPayloadOffset]
	pidSecond := second[blastPayloadOffset-2 : blastPayloadOffset]
	if bytes.Equal(pidFirst, pidSecond) {
		t.Errorf("consecutive transmissions share packet id %x", pidFirst)
	}
}

func TestDiscoverThenEmit(t *testing.T) {
	sig := testSignal()
	fake := newFakeDevice(t, testIdentity())
	blasts := make(chan []byte, 1)
	fake.serve(func(cmd Command, frame []byte, respond func([]byte)) {
		switch cmd {
		case CmdDiscover:
			respond(discoverResponse(fake.id, typeTagBlaster))
		case CmdSubscribe:
			respond(fake.subscribeAck(0x01))
		case CmdBlast:
			blasts <- frame
		}
	})

	devices, err := Discover(context.Background(), loopbackDiscoverOptions(fake))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	info, ok := devices["127.0.0.1"]
	if !ok {
		t.Fatalf("device missing from results: %v", devices)
	}

	store := newMemStore()
	store.Save(context.Background(), "tv_power", sig)

	// Build the handle from the discovery record, as a caller would.
	d, err := NewDevice(context.Background(), info.Addr, DeviceOptions{
		Identity: info.Identity,
		Kind:     info.Kind,
		Port:     fake.port(),
		Signals:  store,
	})
	if err != nil {
		t.Fatalf("new device: %v", err)
	}
	defer d.Close()

	sent, err := d.Emit(context.Background(), "tv_power")
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !sent {
		t.Fatal("emit reported nothing sent")
	}

	frame := <-blasts
	if !bytes.Equal(frame[blastPayloadOffset:], sig) {
		t.Errorf("transmission = %x, want stored signal", frame[blastPayloadOffset:])
	}
	id := info.Identity
	if !bytes.Equal(frame[headerSize:headerSize+identitySize], id[:]) {
		t.Errorf("identity = %x, want %x", frame[headerSize:headerSize+identitySize], id[:])
	}
}

func TestEmitMissingLabel(t *testing.T) {
	fake := newFakeDevice(t, testIdentity())
	fake.serve(func(cmd Command, frame []byte, respond func([]byte)) {
		if cmd == CmdSubscribe {
			respond(fake.subscribeAck(0x01))
		}
	})
	d := newTestDevice(t, fake, DeviceOptions{Signals: newMemStore()})

	sent, err := d.Emit(context.Background(), "nope")
	if err == nil {
		t.Fatal("missing label must be an error")
	}
	if sent {
		t.Error("emit reported success on a missing label")
	}
}

func TestEmitSilentDevice(t *testing.T) {
	fake := newFakeDevice(t, testIdentity())
	store := newMemStore()
	store.Save(context.Background(), "a", testSignal())
	d := newTestDevice(t, fake, DeviceOptions{Signals: store})

	sent, err := d.Emit(context.Background(), "a")
	if err != nil {
		t.Fatalf("silence must not be an error, got %v", err)
	}
	if sent {
		t.Error("emit reported success without a handshake")
	}
}

func TestEmitWrongKind(t *testing.T) {
	d, err := NewDevice(context.Background(), "192.168.1.40", DeviceOptions{
		Identity: testIdentity(),
		Kind:     KindSwitch,
		Signals:  newMemStore(),
	})
	if err != nil {
		t.Fatalf("new device: %v", err)
	}

	sent, err := d.Emit(context.Background(), "a")
	if err != nil {
		t.Fatalf("wrong kind must not be an error, got %v", err)
	}
	if sent {
		t.Error("emit reported success on a switch")
	}
}

func TestEmitNoStore(t *testing.T) {
	d, err := NewDevice(context.Background(), "192.168.1.40", DeviceOptions{
		Identity: testIdentity(),
		Kind:     KindIRBlaster,
	})
	if err != nil {
		t.Fatalf("new device: %v", err)
	}

	if _, err := d.Emit(context.Background(), "a"); !errors.Is(err, ErrNoRepository) {
		t.Errorf("err = %v, want ErrNoRepository", err)
	}
}

func TestEmitNoLabels(t *testing.T) {
	d, err := NewDevice(context.Background(), "192.168.1.40", DeviceOptions{
		Identity: testIdentity(),
		Kind:     KindIRBlaster,
		Signals:  newMemStore(),
	})
	if err != nil {
		t.Fatalf("new device: %v", err)
	}

	sent, err := d.Emit(context.Background())
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if !sent {
		t.Error("empty emit must succeed vacuously")
	}
}
