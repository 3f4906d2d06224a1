// Package connection implements the client side of a single redis connection:
// pipelined writes, ordered reply reads and the AUTH/HELLO bootstrap.
package connection

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/lib/logger"
	"github.com/redmux/redmux/lib/utils"
	"github.com/redmux/redmux/redis/parser"
	"github.com/redmux/redmux/redis/protocol"
)

// Config controls how a connection is established
type Config struct {
	Password    string
	Protocol    int // requested RESP version, 2 or 3
	DialTimeout time.Duration
}

const defaultDialTimeout = 5 * time.Second

// Connection is a synchronous pipelined connection to one redis server.
// Send buffers commands; the next read call flushes the buffer. Not safe
// for concurrent use.
type Connection struct {
	id     string
	addr   string
	conn   net.Conn
	writer *bufio.Writer
	parser *parser.Parser
	proto  int
	broken bool
}

// Dial connects to addr, authenticates and negotiates the protocol version.
// A server that rejects HELLO keeps the connection on RESP2.
func Dial(addr string, cfg Config) (*Connection, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	netConn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect with %s failed: %w", addr, err)
	}
	c := &Connection{
		id:     uuid.NewString(),
		addr:   addr,
		conn:   netConn,
		writer: bufio.NewWriter(netConn),
		parser: parser.NewParser(netConn),
		proto:  2,
	}
	if err := c.handshake(cfg); err != nil {
		_ = netConn.Close()
		return nil, err
	}
	logger.Debugf("connected to %s (conn %s, RESP%d)", addr, c.id, c.proto)
	return c, nil
}

// Wrap builds a Connection over an already-established stream without any
// handshake, e.g. for tunneled connections or tests
func Wrap(netConn net.Conn, proto int) *Connection {
	if proto != 3 {
		proto = 2
	}
	return &Connection{
		id:     uuid.NewString(),
		addr:   netConn.RemoteAddr().String(),
		conn:   netConn,
		writer: bufio.NewWriter(netConn),
		parser: parser.NewParser(netConn),
		proto:  proto,
	}
}

func (c *Connection) handshake(cfg Config) error {
	if cfg.Protocol == 3 {
		helloArgs := []string{"HELLO", "3"}
		if cfg.Password != "" {
			helloArgs = append(helloArgs, "AUTH", "default", cfg.Password)
		}
		if err := c.Send(utils.ToCmdLine(helloArgs...)); err != nil {
			return err
		}
		reply, err := c.Receive()
		if err != nil {
			return err
		}
		if !protocol.IsErrorReply(reply) {
			c.proto = 3
			return nil
		}
		// old server, stay on RESP2 and authenticate the classic way
	}
	if cfg.Password != "" {
		if err := c.Send(utils.ToCmdLine("AUTH", cfg.Password)); err != nil {
			return err
		}
		reply, err := c.Receive()
		if err != nil {
			return err
		}
		if !protocol.IsOKReply(reply) {
			return fmt.Errorf("auth failed, resp: %s", string(reply.ToBytes()))
		}
	}
	return nil
}

// ID returns the connection identifier used in logs
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddress returns the server address
func (c *Connection) RemoteAddress() string {
	return c.addr
}

// Protocol returns the negotiated RESP version
func (c *Connection) Protocol() int {
	return c.proto
}

// Send buffers one command without flushing
func (c *Connection) Send(args [][]byte) error {
	if c.broken {
		return errors.New("connection is broken")
	}
	if len(args) == 0 {
		return errors.New("empty command")
	}
	if _, err := c.writer.Write(protocol.MakeMultiBulkReply(args).ToBytes()); err != nil {
		c.broken = true
		return fmt.Errorf("send to %s failed: %w", c.addr, err)
	}
	return nil
}

// Receive flushes pending commands and reads one reply
func (c *Connection) Receive() (redis.Reply, error) {
	if err := c.flush(); err != nil {
		return nil, err
	}
	reply, err := c.parser.Parse()
	if err != nil {
		c.broken = true
		return nil, fmt.Errorf("read from %s failed: %w", c.addr, err)
	}
	return reply, nil
}

// ReceiveMany flushes pending commands and reads exactly n replies
func (c *Connection) ReceiveMany(n int) ([]redis.Reply, error) {
	if err := c.flush(); err != nil {
		return nil, err
	}
	replies := make([]redis.Reply, 0, n)
	for i := 0; i < n; i++ {
		reply, err := c.parser.Parse()
		if err != nil {
			c.broken = true
			return nil, fmt.Errorf("read %d of %d from %s failed: %w", i+1, n, c.addr, err)
		}
		replies = append(replies, reply)
	}
	return replies, nil
}

// ReadStatus flushes pending commands and reads one simple status reply
func (c *Connection) ReadStatus() (string, error) {
	reply, err := c.Receive()
	if err != nil {
		return "", err
	}
	switch r := reply.(type) {
	case *protocol.StatusReply:
		return r.Status, nil
	case redis.ErrorReply:
		return "", r
	}
	return "", errors.New("expected status reply, got " + strconv.Quote(string(reply.ToBytes())))
}

func (c *Connection) flush() error {
	if c.broken {
		return errors.New("connection is broken")
	}
	if err := c.writer.Flush(); err != nil {
		c.broken = true
		return fmt.Errorf("flush to %s failed: %w", c.addr, err)
	}
	return nil
}

// MarkBroken flags the connection as unusable so the pool destroys it
func (c *Connection) MarkBroken() {
	c.broken = true
}

// Broken reports whether the connection saw an unrecoverable fault
func (c *Connection) Broken() bool {
	return c.broken
}

// Close closes the underlying socket
func (c *Connection) Close() error {
	return c.conn.Close()
}
