package orvibo

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
)

// fakeDevice is a loopback UDP endpoint that plays the device side of the
// protocol. Tests drive it with a handler that inspects each incoming
// frame and sends zero or more responses, synchronously or from its own
// goroutine via respond.
type fakeDevice struct {
	t    *testing.T
	conn *net.UDPConn
	id   Identity
}

func newFakeDevice(t *testing.T, id Identity) *fakeDevice {
	t.Helper()
	laddr, err := net.ResolveUDPAddr("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("resolve loopback: %v", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &fakeDevice{t: t, conn: conn, id: id}
}

func (f *fakeDevice) port() int {
	return f.conn.LocalAddr().(*net.UDPAddr).Port
}

// serve reads frames until the socket closes, invoking handler for each
// decodable one. respond sends a datagram back to that frame's sender.
func (f *fakeDevice) serve(handler func(cmd Command, frame []byte, respond func([]byte))) {
	go func() {
		buf := make([]byte, 2048)
		for {
			n, raddr, err := f.conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			frame := make([]byte, n)
			copy(frame, buf[:n])
			_, cmd, err := DecodeHeader(frame)
			if err != nil {
				continue
			}
			handler(cmd, frame, func(resp []byte) {
				f.conn.WriteToUDP(resp, raddr)
			})
		}
	}()
}

// subscribeAck builds the acknowledgement for a subscribe, with state as
// its final payload byte.
func (f *fakeDevice) subscribeAck(state byte) []byte {
	return EncodeFrame(CmdSubscribe, f.id[:], fillerZeros, []byte{state})
}

// discoverResponse builds a well-formed discovery response carrying id at
// the fixed identity offset and tag at the fixed class-tag offset.
func discoverResponse(id Identity, tag []byte) []byte {
	payload := make([]byte, 0, 28+len(tag))
	payload = append(payload, 0x00)
	payload = append(payload, id[:]...)
	payload = append(payload, make([]byte, discoverTypeOffset-headerSize-1-identitySize)...)
	payload = append(payload, tag...)
	return EncodeFrame(CmdDiscover, payload)
}

// memStore is an in-memory SignalStore.
type memStore struct {
	mu      sync.Mutex
	signals map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{signals: make(map[string][]byte)}
}

func (s *memStore) Load(_ context.Context, label string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.signals[label]
	if !ok {
		return nil, fmt.Errorf("no signal %q", label)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *memStore) Save(_ context.Context, label string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.signals[label] = cp
	return nil
}

func testIdentity() Identity {
	return Identity{0xac, 0xcf, 0x23, 0x24, 0x19, 0xc0}
}
