package modbus

// Transport is the byte-pipe abstraction the registry drives. It
// knows nothing about PDUs, MBAP headers, or RTU framing: it moves bytes
// in one direction and delivers them, as received, in the other. Framing
// (TCPFramer / RTUFramer) sits above a Transport, not inside one.
//
// A Transport implementation owns exactly one underlying connection and
// is not safe for concurrent Write calls; the registry serializes all
// writes through its single logical executor.
type Transport interface {
	// Write sends a fully-framed ADU (MBAP+PDU, or unitID+PDU+CRC) to the
	// peer. It blocks until the bytes are handed to the OS or an error
	// occurs.
	Write(data []byte) error

	// Inbound returns the channel of raw byte chunks read from the peer.
	// Chunk boundaries carry no framing meaning; a chunk may contain
	// part of a frame, exactly one frame, or several. The channel is
	// closed exactly once, when the transport can no longer deliver
	// bytes (on Close or on a read error).
	Inbound() <-chan []byte

	// Disconnected yields the error that closed the transport - nil for
	// a caller-initiated Close, otherwise the read error - after Inbound
	// closes. It is safe to receive from after the Inbound channel
	// closes; the value is sent before Inbound's goroutine exits, then
	// the channel is never written to again.
	Disconnected() <-chan error

	// Close releases the underlying connection. It unblocks any pending
	// Write and causes Inbound to close.
	Close() error

	// RemoteAddr identifies the peer, for logging and diagnostics only.
	RemoteAddr() string
}
