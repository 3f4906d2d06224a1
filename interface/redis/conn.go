package redis

// Conn represents a borrowed connection with a redis server.
//
// Send only buffers the command; the write is flushed by the next Receive,
// ReceiveMany or ReadStatus call. A Conn is owned by a single caller between
// Acquire and Close; it is not safe for concurrent use.
type Conn interface {
	// Send appends one command (name + operands) to the output buffer
	Send(args [][]byte) error
	// ReceiveMany flushes the buffer and reads exactly n replies
	ReceiveMany(n int) ([]Reply, error)
	// Receive flushes the buffer and reads one reply
	Receive() (Reply, error)
	// ReadStatus flushes the buffer and reads one simple status reply
	ReadStatus() (string, error)
	// Protocol returns the negotiated RESP version (2 or 3)
	Protocol() int
	// MarkBroken flags the connection so its owner destroys it instead of reusing it
	MarkBroken()
	// Close releases the connection back to its owner
	Close() error
}

// ConnProvider supplies one usable connection per batch attempt,
// possibly rerouting across backing clusters
type ConnProvider interface {
	Acquire() (Conn, error)
	Close() error
}
