package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		payload []byte
	}{
		{"ready", CmdReady, nil},
		{"info request", CmdInfoRequest, []byte{}},
		{"exit info", CmdExitInfo, append([]byte("AB12\x00"), 0x07)},
		{"max payload", CmdEntryInfo, bytes.Repeat([]byte{0xA5}, MaxPayload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Encode(tt.cmd, tt.payload)
			require.NoError(t, err)
			assert.Len(t, buf, len(tt.payload)+5)
			assert.LessOrEqual(t, len(buf), MaxFrameSize)

			f, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, f.Command)
			assert.Equal(t, len(tt.payload), len(f.Payload))
			if len(tt.payload) > 0 {
				assert.Equal(t, tt.payload, f.Payload)
			}
		})
	}
}

func TestEncodeKnownBytes(t *testing.T) {
	buf, err := Encode(CmdInfoRequest, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x15, 0x00, 0x15, 0x03}, buf)

	buf, err = Encode(CmdExitInfo, []byte{0x41, 0x00, 0x07})
	require.NoError(t, err)
	// 0x16 ^ 0x03 ^ 0x41 ^ 0x00 ^ 0x07 = 0x53
	assert.Equal(t, []byte{0x02, 0x16, 0x03, 0x41, 0x00, 0x07, 0x53, 0x03}, buf)
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(CmdEntryInfo, make([]byte, MaxPayload+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestEncodeRejectsUnknownCommand(t *testing.T) {
	_, err := Encode(Command(0x42), nil)
	require.ErrorIs(t, err, ErrFrame)
}

func TestDecodeErrors(t *testing.T) {
	valid, err := Encode(CmdExitInfo, []byte("X\x00\x01"))
	require.NoError(t, err)

	mutate := func(fn func(b []byte) []byte) []byte {
		return fn(append([]byte(nil), valid...))
	}

	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short", []byte{STX, 0x01, 0x00, ETX}},
		{"bad stx", mutate(func(b []byte) []byte { b[0] = 0xFF; return b })},
		{"bad etx", mutate(func(b []byte) []byte { b[len(b)-1] = 0xFF; return b })},
		{"length too long", mutate(func(b []byte) []byte { b[2]++; return b })},
		{"length too short", mutate(func(b []byte) []byte { b[2]--; return b })},
		{"trailing byte", mutate(func(b []byte) []byte { return append(b[:len(b)-1], 0x00, ETX) })},
		{"bad checksum", mutate(func(b []byte) []byte { b[len(b)-2] ^= 0xFF; return b })},
		{"unknown command", []byte{STX, 0x42, 0x00, 0x42, ETX}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.buf)
			assert.ErrorIs(t, err, ErrFrame)
		})
	}
}

func TestDecodeDetectsEverySingleBitFlip(t *testing.T) {
	valid, err := Encode(CmdEntryInfo, append([]byte("AB12\x00"), 0x07, 0x01, 0x00, 0x02, 0x01))
	require.NoError(t, err)

	// Every byte covered by the checksum, plus the checksum itself.
	for i := 1; i < len(valid)-1; i++ {
		for bit := 0; bit < 8; bit++ {
			buf := append([]byte(nil), valid...)
			buf[i] ^= 1 << bit
			_, err := Decode(buf)
			assert.ErrorIs(t, err, ErrFrame, "byte %d bit %d", i, bit)
		}
	}
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "entry-info", CmdEntryInfo.String())
	assert.Equal(t, "0x42", Command(0x42).String())
	assert.False(t, Command(0x00).Known())
}
