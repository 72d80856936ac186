package core

// SessionID identifies one vehicle connection on the peer link.
type SessionID uint64

// PeerLink is the short-range transport towards vehicles.
type PeerLink interface {
	// Advertise makes the gate connectable, or stops it.
	Advertise(on bool)

	// Send writes one encoded frame to the session.
	Send(id SessionID, frame []byte) error

	// Disconnect drops the session. The handler sees OnDisconnect afterwards.
	Disconnect(id SessionID) error
}

// LinkHandler receives transport callbacks. Implementations must not block.
type LinkHandler interface {
	OnConnect(id SessionID, peer string)
	OnFrame(id SessionID, data []byte)
	OnDisconnect(id SessionID)
}

// CommandSink accepts barrier commands for the next control tick.
type CommandSink interface {
	Stage(g Gate, a Action, src Source)
}
