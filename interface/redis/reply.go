package redis

// Reply is the interface of redis serialization protocol message
type Reply interface {
	ToBytes() []byte
}

// ErrorReply is a Reply carrying a server-reported error
type ErrorReply interface {
	error
	Reply
}
