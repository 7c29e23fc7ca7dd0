package interfaces

// Connection is one live client transport, identified by an opaque id.
type Connection interface {
	// ID returns the server-assigned connection id.
	ID() string

	// Send queues an encoded frame for delivery. It never blocks; a full
	// outbound queue is reported as an error and the caller drops the
	// connection.
	Send(data []byte) error

	// Close terminates the transport without waiting on the network. Safe to
	// call more than once.
	Close() error

	// IsClosed reports whether Close has run or the transport failed.
	IsClosed() bool
}

// LivenessChecker answers whether a connection id still maps to an open
// transport. Stale-name eviction and signaling delivery depend on it.
type LivenessChecker interface {
	IsLive(connID string) bool
}

// Rooms is the fan-out surface the controllers emit through. A room is a
// named broadcast group; a session id names the session room and
// types.WaitingRoom(sessionID) names its pending room.
type Rooms interface {
	LivenessChecker

	// Emit sends one event to one connection. Unknown or closed targets are
	// ignored.
	Emit(connID, event string, data any)

	// Broadcast sends one event to every member of room except the listed
	// connection ids.
	Broadcast(room, event string, data any, except ...string)

	// Join adds a connection to a room.
	Join(connID, room string)

	// Leave removes a connection from a room.
	Leave(connID, room string)

	// Members lists the connection ids currently in room.
	Members(room string) []string

	// Disconnect closes the connection's transport. Cleanup of roster
	// state happens once the close is observed.
	Disconnect(connID string)
}
