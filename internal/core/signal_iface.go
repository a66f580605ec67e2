package core

// Frame is one encoded outbound event, ready for the wire.
type Frame []byte

// SignalConnection is the outbound half of a participant's transport.
// TrySend must not block; the adapter owns the connection and must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
