package core

// SessionID identifies one live network connection. Assigned by the transport.
type SessionID string
