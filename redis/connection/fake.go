package connection

import (
	"errors"

	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/redis/protocol"
)

// Fake implements redis.Conn for tests: it records every sent command and
// hands back scripted replies in order.
type Fake struct {
	Sent    [][][]byte
	Flushes int
	Closed  bool
	IsBroke bool

	proto   int
	replies []redis.Reply
}

// NewFake creates a Fake speaking the given protocol version
func NewFake(proto int) *Fake {
	return &Fake{proto: proto}
}

// Script appends replies the connection will return on subsequent reads
func (f *Fake) Script(replies ...redis.Reply) {
	f.replies = append(f.replies, replies...)
}

func (f *Fake) Send(args [][]byte) error {
	if f.Closed {
		return errors.New("fake connection closed")
	}
	f.Sent = append(f.Sent, args)
	return nil
}

func (f *Fake) Receive() (redis.Reply, error) {
	f.Flushes++
	return f.pop()
}

func (f *Fake) ReceiveMany(n int) ([]redis.Reply, error) {
	f.Flushes++
	replies := make([]redis.Reply, 0, n)
	for i := 0; i < n; i++ {
		reply, err := f.pop()
		if err != nil {
			return nil, err
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

func (f *Fake) ReadStatus() (string, error) {
	f.Flushes++
	reply, err := f.pop()
	if err != nil {
		return "", err
	}
	switch r := reply.(type) {
	case *protocol.StatusReply:
		return r.Status, nil
	case redis.ErrorReply:
		return "", r
	}
	return "", errors.New("fake: not a status reply")
}

func (f *Fake) pop() (redis.Reply, error) {
	if len(f.replies) == 0 {
		return nil, errors.New("fake connection: no scripted reply left")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *Fake) Protocol() int {
	return f.proto
}

func (f *Fake) MarkBroken() {
	f.IsBroke = true
}

func (f *Fake) Broken() bool {
	return f.IsBroke
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
