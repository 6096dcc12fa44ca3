package orvibo

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ControlPort is the UDP port all protocol traffic uses, requests and
// responses alike.
const ControlPort = 10000

// Command is a 2-byte protocol command code, transmitted big-endian at
// bytes 4-5 of every frame.
type Command uint16

// Protocol command codes. Responses reuse the request code; the protocol
// has no transaction IDs, so receivers filter strictly by command.
const (
	// CmdAny matches any command when passed to a receive call.
	CmdAny Command = 0x0000

	// CmdDiscover is the broadcast discovery request and its response.
	CmdDiscover Command = 0x7161

	// CmdSubscribe is the session handshake required before any command.
	CmdSubscribe Command = 0x636c

	// CmdControl switches a socket device on/off. The same code carries
	// RF433 blast and learn traffic on blaster devices.
	CmdControl Command = 0x6463

	// CmdLearn arms IR/RF433 learning mode; the captured signal arrives
	// as a later frame with the same code.
	CmdLearn Command = 0x6c73

	// CmdBlast replays a captured IR signal.
	CmdBlast Command = 0x6963
)

// Wire constants shared by the codec and the procedures. Byte-exact values
// are required for interoperability with shipped firmware.
var (
	// frameMagic opens every frame.
	frameMagic = []byte{0x68, 0x64}

	// fillerSpaces is the 6-byte ASCII-space separator the firmware
	// expects between payload fields.
	fillerSpaces = []byte{0x20, 0x20, 0x20, 0x20, 0x20, 0x20}

	// fillerZeros pads the learn-arm payload.
	fillerZeros = []byte{0x00, 0x00, 0x00, 0x00}

	// learnArm is the "enter learning mode" sub-command.
	learnArm = []byte{0x01, 0x00}

	// emitTag is the blast-IR sub-command preceding the per-packet id.
	emitTag = []byte{0x65, 0x00, 0x00, 0x00}

	// typeTagSwitch and typeTagBlaster are the 3-byte device-class tags
	// carried in discovery responses.
	typeTagSwitch  = []byte("SOC")
	typeTagBlaster = []byte("IRD")
)

const (
	// headerSize is magic(2) + length(2) + command(2).
	headerSize = 6

	// emptyLearnLength is the declared length of the spurious frame a
	// blaster sends while armed but before a real capture. Frames with
	// this length are discarded by the learn poll loop.
	emptyLearnLength = 0x0018

	// identitySize is the size of a device's physical address.
	identitySize = 6
)

// Identity is the 6-byte physical address distinguishing one device.
// Several payloads carry it twice, forward and byte-reversed.
type Identity [identitySize]byte

// ParseIdentity parses a 12-character hex string into an Identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != identitySize {
		return id, fmt.Errorf("%w: %q", ErrInvalidIdentity, s)
	}
	copy(id[:], raw)
	return id, nil
}

// Reversed returns the identity with its byte order flipped. Reversing
// twice yields the original value.
func (id Identity) Reversed() Identity {
	var rev Identity
	for i, b := range id {
		rev[identitySize-1-i] = b
	}
	return rev
}

// IsZero reports whether the identity is all zeroes (i.e. unset).
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// String returns the identity as lowercase hex.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalJSON renders the identity as a hex string.
func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON parses a hex-string identity.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentity(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Frame is one received protocol datagram together with its sender.
type Frame struct {
	// Addr is the sender's IPv4 address in dotted form.
	Addr string

	// Data is the raw datagram, header included.
	Data []byte

	// Received records when the frame was read off the socket.
	Received time.Time
}

// Command returns the 2-byte command code at bytes 4-5.
func (f *Frame) Command() Command {
	return Command(binary.BigEndian.Uint16(f.Data[4:6]))
}

// DeclaredLength returns the frame's length field at bytes 2-3. The field
// counts every byte from itself onward, so a well-formed frame satisfies
// DeclaredLength() == len(Data)-2.
func (f *Frame) DeclaredLength() uint16 {
	return binary.BigEndian.Uint16(f.Data[2:4])
}

// Payload returns the bytes after the 6-byte header.
func (f *Frame) Payload() []byte {
	return f.Data[headerSize:]
}

// EncodeFrame assembles a frame from a command and payload parts. Parts are
// concatenated in order; the length field is computed as 4 + total payload
// length (counting the length and command fields themselves).
func EncodeFrame(cmd Command, parts ...[]byte) []byte {
	payloadLen := 0
	for _, p := range parts {
		payloadLen += len(p)
	}

	buf := make([]byte, headerSize, headerSize+payloadLen)
	copy(buf[0:2], frameMagic)
	binary.BigEndian.PutUint16(buf[2:4], uint16(4+payloadLen)) //nolint:gosec // datagrams are bounded well below 64 KiB
	binary.BigEndian.PutUint16(buf[4:6], uint16(cmd))
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// DecodeHeader reads the fixed-offset length and command fields without
// touching the payload. Callers use it to filter responses by command
// before any further parsing.
//
// It rejects frames that are shorter than the header, carry the wrong
// magic, or whose length field disagrees with the actual datagram size.
func DecodeHeader(data []byte) (length uint16, cmd Command, err error) {
	if len(data) < headerSize {
		return 0, 0, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(data), headerSize)
	}
	if data[0] != frameMagic[0] || data[1] != frameMagic[1] {
		return 0, 0, fmt.Errorf("%w: bad magic %02x%02x", ErrMalformedFrame, data[0], data[1])
	}

	length = binary.BigEndian.Uint16(data[2:4])
	if int(length) != len(data)-2 {
		return 0, 0, fmt.Errorf("%w: declared length %d, actual %d", ErrMalformedFrame, length, len(data)-2)
	}

	return length, Command(binary.BigEndian.Uint16(data[4:6])), nil
}
