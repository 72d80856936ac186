package vehicle

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mac = []byte{0xAA, 0xBB, 0xCC, 0x01, 0x02, 0x03}

func entryPayload(fields ...byte) []byte {
	p := append([]byte("AB12\x00"), fields...)
	return append(p, mac...)
}

func TestParseEntry(t *testing.T) {
	r, err := ParseEntry(entryPayload(0x07, 0x01, 0x00, 0x02, 0x01))
	require.NoError(t, err)

	assert.Equal(t, Record{
		ID:          "AB12",
		Tag:         7,
		Class:       ClassElectric,
		Accessible:  false,
		Preferred:   SpotElectric,
		Destination: 1,
		PeerAddr:    net.HardwareAddr(mac),
	}, r)
	assert.Equal(t, "aa:bb:cc:01:02:03", r.PeerAddr.String())
}

func TestParseEntryIsDeterministic(t *testing.T) {
	p := entryPayload(0x07, 0x01, 0x00, 0x02, 0x01)
	first, err := ParseEntry(p)
	require.NoError(t, err)
	for range 3 {
		again, err := ParseEntry(p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseEntryFieldMapping(t *testing.T) {
	tests := []struct {
		name       string
		fields     []byte
		class      Class
		accessible bool
		preferred  Spot
	}{
		{"regular normal", []byte{1, 0x00, 0x00, 0, 0}, ClassRegular, false, SpotNormal},
		{"unknown class is regular", []byte{1, 0x02, 0x00, 0, 0}, ClassRegular, false, SpotNormal},
		{"accessible disabled spot", []byte{1, 0x00, 0x01, 1, 2}, ClassRegular, true, SpotDisabled},
		{"unknown preference is normal", []byte{1, 0x01, 0x00, 9, 0}, ClassElectric, false, SpotNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseEntry(entryPayload(tt.fields...))
			require.NoError(t, err)
			assert.Equal(t, tt.class, r.Class)
			assert.Equal(t, tt.accessible, r.Accessible)
			assert.Equal(t, tt.preferred, r.Preferred)
		})
	}
}

func TestParseEntryMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"unterminated id", []byte("AB12")},
		{"missing mac", append([]byte("AB12\x00"), 7, 1, 0, 2, 1)},
		{"short mac", append(append([]byte("AB12\x00"), 7, 1, 0, 2, 1), mac[:5]...)},
		{"destination out of range", append(append([]byte("AB12\x00"), 7, 1, 0, 2, 3), mac...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntry(tt.payload)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestParseExit(t *testing.T) {
	r, err := ParseExit([]byte("AB12\x00\x07"))
	require.NoError(t, err)
	assert.Equal(t, Record{ID: "AB12", Tag: 7}, r)

	_, err = ParseExit([]byte("AB12\x00"))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = ParseExit([]byte("AB12"))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestSpotString(t *testing.T) {
	assert.Equal(t, "elec", SpotElectric.String())
	assert.Equal(t, "disabled", SpotDisabled.String())
	assert.Equal(t, "normal", SpotNormal.String())
}

func TestEncodeEntryMatchesWireLayout(t *testing.T) {
	r := Record{
		ID:          "AB12",
		Tag:         0x07,
		Class:       ClassElectric,
		Preferred:   SpotElectric,
		Destination: 0x01,
		PeerAddr:    net.HardwareAddr(mac),
	}
	assert.Equal(t, entryPayload(0x07, 0x01, 0x00, 0x02, 0x01), EncodeEntry(r))

	got, err := ParseEntry(EncodeEntry(r))
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestEncodeExit(t *testing.T) {
	assert.Equal(t, []byte("CD34\x00\x09"), EncodeExit(Record{ID: "CD34", Tag: 0x09}))
}
