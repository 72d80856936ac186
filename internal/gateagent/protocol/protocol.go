// Package protocol implements the framed binary protocol spoken with vehicles
// over the peer link:
//
//	STX | CMD | LEN | PAYLOAD... | CHECKSUM | ETX
//
// CHECKSUM is the XOR of CMD, LEN and every payload byte.
package protocol

import (
	"errors"
	"fmt"
)

const (
	STX byte = 0x02
	ETX byte = 0x03

	// MaxFrameSize is the transport MTU.
	MaxFrameSize = 128
	// overhead is STX, CMD, LEN, CHECKSUM and ETX.
	overhead   = 5
	MaxPayload = MaxFrameSize - overhead
)

var (
	// ErrFrame is matched by every decode failure.
	ErrFrame = errors.New("invalid frame")

	ErrPayloadTooLarge = errors.New("payload too large")
)

// Command is the frame command code.
type Command byte

const (
	CmdReady       Command = 0x01
	CmdEntryInfo   Command = 0x10
	CmdInfoRequest Command = 0x15
	CmdExitInfo    Command = 0x16
)

func (c Command) String() string {
	switch c {
	case CmdReady:
		return "ready"
	case CmdEntryInfo:
		return "entry-info"
	case CmdInfoRequest:
		return "info-request"
	case CmdExitInfo:
		return "exit-info"
	default:
		return fmt.Sprintf("0x%02X", byte(c))
	}
}

// Known reports whether c is part of the protocol.
func (c Command) Known() bool {
	switch c {
	case CmdReady, CmdEntryInfo, CmdInfoRequest, CmdExitInfo:
		return true
	}
	return false
}

// Frame is a decoded packet.
type Frame struct {
	Command Command
	Payload []byte
}

func frameError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFrame, fmt.Sprintf(format, args...))
}

// Checksum returns the XOR of the command, length and payload bytes.
func Checksum(cmd Command, payload []byte) byte {
	sum := byte(cmd) ^ byte(len(payload))
	for _, b := range payload {
		sum ^= b
	}
	return sum
}

// Encode builds the wire form of a frame.
func Encode(cmd Command, payload []byte) ([]byte, error) {
	if !cmd.Known() {
		return nil, frameError("unknown command %s", cmd)
	}
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}

	buf := make([]byte, 0, len(payload)+overhead)
	buf = append(buf, STX, byte(cmd), byte(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, Checksum(cmd, payload), ETX)
	return buf, nil
}

// Decode validates buf and returns its frame. The payload aliases buf.
func Decode(buf []byte) (Frame, error) {
	n := len(buf)
	if n < overhead {
		return Frame{}, frameError("short buffer: %d bytes", n)
	}
	if buf[0] != STX {
		return Frame{}, frameError("bad start byte 0x%02X", buf[0])
	}
	if buf[n-1] != ETX {
		return Frame{}, frameError("bad end byte 0x%02X", buf[n-1])
	}

	length := int(buf[2])
	if length+overhead != n {
		return Frame{}, frameError("length %d does not match %d byte buffer", length, n)
	}

	cmd := Command(buf[1])
	payload := buf[3 : 3+length]
	if got, want := buf[n-2], Checksum(cmd, payload); got != want {
		return Frame{}, frameError("checksum 0x%02X, want 0x%02X", got, want)
	}
	if !cmd.Known() {
		return Frame{}, frameError("unknown command %s", cmd)
	}

	return Frame{Command: cmd, Payload: payload}, nil
}
