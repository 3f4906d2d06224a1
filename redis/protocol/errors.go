package protocol

import (
	"github.com/redmux/redmux/interface/redis"
)

// StandardErrReply represents a server error
type StandardErrReply struct {
	Status string
}

// MakeErrReply creates StandardErrReply
func MakeErrReply(status string) *StandardErrReply {
	return &StandardErrReply{
		Status: status,
	}
}

// ToBytes marshals redis.Reply
func (r *StandardErrReply) ToBytes() []byte {
	return []byte("-" + r.Status + "\r\n")
}

func (r *StandardErrReply) Error() string {
	return r.Status
}

// IsErrorReply returns true if the given reply is an error
func IsErrorReply(reply redis.Reply) bool {
	_, ok := reply.(redis.ErrorReply)
	return ok
}

// ProtocolErrReply represents meeting unexpected bytes while parsing a reply
type ProtocolErrReply struct {
	Msg string
}

// MakeProtocolErrReply creates ProtocolErrReply
func MakeProtocolErrReply(msg string) *ProtocolErrReply {
	return &ProtocolErrReply{
		Msg: msg,
	}
}

// ToBytes marshals redis.Reply
func (r *ProtocolErrReply) ToBytes() []byte {
	return []byte("-ERR Protocol error: '" + r.Msg + "'\r\n")
}

func (r *ProtocolErrReply) Error() string {
	return "ERR Protocol error: '" + r.Msg + "'"
}
