// Package vehicle decodes the vehicle description carried by entry and exit
// frames.
package vehicle

import (
	"bytes"
	"errors"
	"fmt"
	"net"
)

var ErrMalformedPayload = errors.New("malformed vehicle payload")

// Class is the propulsion class of the vehicle.
type Class uint8

const (
	ClassRegular Class = iota
	ClassElectric
)

func (c Class) String() string {
	if c == ClassElectric {
		return "electric"
	}
	return "regular"
}

// Spot is the kind of parking space the driver asks for.
type Spot uint8

const (
	SpotNormal Spot = iota
	SpotDisabled
	SpotElectric
)

// String returns the names used on the bridge.
func (s Spot) String() string {
	switch s {
	case SpotDisabled:
		return "disabled"
	case SpotElectric:
		return "elec"
	default:
		return "normal"
	}
}

// Record describes the connected vehicle. Exit records carry only ID and Tag.
type Record struct {
	ID          string           `json:"id"`
	Tag         uint8            `json:"tag"`
	Class       Class            `json:"class"`
	Accessible  bool             `json:"accessible"`
	Preferred   Spot             `json:"preferred"`
	Destination uint8            `json:"destination"`
	PeerAddr    net.HardwareAddr `json:"peerAddr,omitempty"`
}

// MaxDestination is the highest destination code a vehicle may ask for.
const MaxDestination = 2

const (
	macLen = 6
	// tag, class, accessibility, preferred, destination
	entryFields = 5
)

// splitID returns the NUL-terminated identifier and the bytes after it.
func splitID(payload []byte) (string, []byte, error) {
	i := bytes.IndexByte(payload, 0)
	if i < 0 {
		return "", nil, fmt.Errorf("%w: identifier is not terminated", ErrMalformedPayload)
	}
	return string(payload[:i]), payload[i+1:], nil
}

// ParseEntry decodes an entry-info payload:
// id NUL | tag | class | accessibility | preferred | destination | mac[6].
func ParseEntry(payload []byte) (Record, error) {
	id, rest, err := splitID(payload)
	if err != nil {
		return Record{}, err
	}
	if len(rest) < entryFields+macLen {
		return Record{}, fmt.Errorf("%w: entry needs %d bytes after the identifier, got %d",
			ErrMalformedPayload, entryFields+macLen, len(rest))
	}
	if rest[4] > MaxDestination {
		return Record{}, fmt.Errorf("%w: destination %d out of range", ErrMalformedPayload, rest[4])
	}

	r := Record{
		ID:          id,
		Tag:         rest[0],
		Class:       ClassRegular,
		Accessible:  rest[2] == 0x01,
		Preferred:   SpotNormal,
		Destination: rest[4],
		PeerAddr:    net.HardwareAddr(bytes.Clone(rest[entryFields : entryFields+macLen])),
	}
	if rest[1] == 0x01 {
		r.Class = ClassElectric
	}
	switch rest[3] {
	case 1:
		r.Preferred = SpotDisabled
	case 2:
		r.Preferred = SpotElectric
	}

	return r, nil
}

// ParseExit decodes an exit-info payload: id NUL | tag.
func ParseExit(payload []byte) (Record, error) {
	id, rest, err := splitID(payload)
	if err != nil {
		return Record{}, err
	}
	if len(rest) < 1 {
		return Record{}, fmt.Errorf("%w: exit is missing the tag", ErrMalformedPayload)
	}
	return Record{ID: id, Tag: rest[0]}, nil
}

// EncodeEntry builds the entry-info payload for r. A PeerAddr shorter than
// six bytes is zero padded.
func EncodeEntry(r Record) []byte {
	buf := make([]byte, 0, len(r.ID)+1+entryFields+macLen)
	buf = append(buf, r.ID...)
	buf = append(buf, 0)

	var class, accessible byte
	if r.Class == ClassElectric {
		class = 0x01
	}
	if r.Accessible {
		accessible = 0x01
	}
	buf = append(buf, r.Tag, class, accessible, byte(r.Preferred), r.Destination)

	var mac [macLen]byte
	copy(mac[:], r.PeerAddr)
	return append(buf, mac[:]...)
}

// EncodeExit builds the exit-info payload for r.
func EncodeExit(r Record) []byte {
	buf := make([]byte, 0, len(r.ID)+2)
	buf = append(buf, r.ID...)
	return append(buf, 0, r.Tag)
}
