// Package transaction implements client-side MULTI/EXEC batches on top of a
// failover connection provider. Commands are queued in memory and sent in one
// pipelined burst on Exec or Discard; no queuing operation touches the
// network. All appended commands are held in memory until then.
package transaction

import (
	"errors"
	"fmt"

	"go.uber.org/atomic"

	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/lib/logger"
	"github.com/redmux/redmux/lib/utils"
	"github.com/redmux/redmux/redis/builder"
	"github.com/redmux/redmux/redis/protocol"
)

var (
	// ErrExecWithoutMulti is returned by Exec before Multi was issued
	ErrExecWithoutMulti = errors.New("EXEC without MULTI")
	// ErrDiscardWithoutMulti is returned by Discard before Multi was issued
	ErrDiscardWithoutMulti = errors.New("DISCARD without MULTI")
	// ErrAborted reports that the server dropped the whole batch, typically
	// because a watched key changed
	ErrAborted = errors.New("transaction aborted by server")
)

// DesyncError reports that the EXEC aggregate reply did not line up with the
// queued user commands. The connection is out of protocol sync and is
// discarded; the transaction cannot be recovered.
type DesyncError struct {
	Expected int
	Got      int
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("protocol desync: expected %d results in EXEC reply, got %d",
		e.Expected, e.Got)
}

type queuedCommand struct {
	args [][]byte
	resp *Response
}

// Transaction queues commands for one MULTI/EXEC batch. One instance serves
// one logical batch and is not safe for concurrent use; only the bookkeeping
// counter is synchronized.
type Transaction struct {
	provider redis.ConnProvider
	proto    int

	// number of leading WATCH/UNWATCH/MULTI entries whose responses are
	// dropped before resolving the aggregate reply
	bookkeeping atomic.Int32

	commands []*queuedCommand
	inWatch  bool
	inMulti  bool
}

// New creates a transaction and queues MULTI immediately. Watch, Unwatch and
// Multi must not be called on it.
func New(provider redis.ConnProvider) *Transaction {
	return newTransaction(provider, true)
}

// NewManual creates a transaction without queuing MULTI, for callers that
// WATCH keys first and call Multi themselves.
func NewManual(provider redis.ConnProvider) *Transaction {
	return newTransaction(provider, false)
}

func newTransaction(provider redis.ConnProvider, doMulti bool) *Transaction {
	tx := &Transaction{
		provider: provider,
		proto:    2,
	}
	// protocol hint, consulted once; the connection itself is returned right away
	if conn, err := provider.Acquire(); err == nil {
		tx.proto = conn.Protocol()
		_ = conn.Close()
	} else {
		logger.Debugf("protocol probe failed, assuming RESP2: %v", err)
	}
	if doMulti {
		tx.Multi()
	}
	return tx
}

// Protocol returns the RESP version negotiated with the backing cluster
func (tx *Transaction) Protocol() int {
	return tx.proto
}

// Enqueue appends an arbitrary command to the batch and returns the handle
// its result will be delivered through after Exec
func (tx *Transaction) Enqueue(args [][]byte, build builder.Builder) *Response {
	resp := newResponse(build)
	tx.commands = append(tx.commands, &queuedCommand{
		args: args,
		resp: resp,
	})
	return resp
}

// Watch queues a WATCH over the given keys. The returned response carries no
// meaningful value.
func (tx *Transaction) Watch(keys ...string) *Response {
	resp := tx.Enqueue(utils.ToCmdLine2("WATCH", keys...), builder.Raw)
	tx.bookkeeping.Inc()
	tx.inWatch = true
	return resp
}

// Unwatch queues an UNWATCH, clearing every watch
func (tx *Transaction) Unwatch() *Response {
	resp := tx.Enqueue(utils.ToCmdLine("UNWATCH"), builder.Raw)
	tx.bookkeeping.Inc()
	tx.inWatch = false
	return resp
}

// Multi queues the MULTI opening the transaction block
func (tx *Transaction) Multi() {
	tx.Enqueue(utils.ToCmdLine("MULTI"), builder.Raw)
	tx.bookkeeping.Inc()
	tx.inMulti = true
}

// Exec sends the whole batch over one borrowed connection and resolves every
// queued response. The result slice is positionally aligned with the queued
// user commands; a command the server rejected appears as an error value at
// its position without affecting its siblings. ErrAborted is returned when
// the server dropped the batch because a watched key changed.
func (tx *Transaction) Exec() ([]interface{}, error) {
	if !tx.inMulti {
		return nil, ErrExecWithoutMulti
	}
	defer tx.reset()

	conn, err := tx.provider.Acquire()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = conn.Close()
	}()

	elems, aborted, err := tx.sendBatch(conn)
	if err != nil {
		return nil, err
	}
	if aborted { // a watched key changed, nothing was applied
		return nil, ErrAborted
	}

	if len(elems) != len(tx.commands) {
		conn.MarkBroken()
		return nil, &DesyncError{Expected: len(tx.commands), Got: len(elems)}
	}
	results := make([]interface{}, 0, len(elems))
	for _, raw := range elems {
		cmd := tx.commands[0]
		tx.commands = tx.commands[1:]
		if err := cmd.resp.resolve(raw); err != nil {
			conn.MarkBroken()
			return nil, err
		}
		value, err := cmd.resp.Get()
		if err != nil {
			// per-command failure stays inline, siblings still resolve
			results = append(results, err)
			continue
		}
		results = append(results, value)
	}
	return results, nil
}

// Discard sends the batch followed by DISCARD, dropping it server-side, and
// returns the server's acknowledgement status.
func (tx *Transaction) Discard() (string, error) {
	if !tx.inMulti {
		return "", ErrDiscardWithoutMulti
	}
	defer tx.reset()

	conn, err := tx.provider.Acquire()
	if err != nil {
		return "", err
	}
	defer func() {
		_ = conn.Close()
	}()

	if err := tx.drainQueue(conn); err != nil {
		return "", err
	}
	if err := conn.Send(discardCmd); err != nil {
		return "", err
	}
	return conn.ReadStatus()
}

// Close discards an open transaction, or clears an outstanding watch
func (tx *Transaction) Close() error {
	if tx.inMulti {
		_, err := tx.Discard()
		return err
	}
	if tx.inWatch {
		tx.Unwatch()
	}
	return nil
}

var (
	execCmd    = utils.ToCmdLine("EXEC")
	discardCmd = utils.ToCmdLine("DISCARD")
)

// drainQueue pipelines every queued command and consumes exactly one
// acknowledgement per command (+OK, +QUEUED or an error, content ignored).
// The framing of everything that follows depends on draining exactly this many.
func (tx *Transaction) drainQueue(conn redis.Conn) error {
	for _, cmd := range tx.commands {
		if err := conn.Send(cmd.args); err != nil {
			return err
		}
	}
	_, err := conn.ReceiveMany(len(tx.commands))
	return err
}

// sendBatch runs the exec wire sequence and returns the aggregate reply
// elements, or aborted=true when the server dropped the transaction.
func (tx *Transaction) sendBatch(conn redis.Conn) (elems []redis.Reply, aborted bool, err error) {
	if err := tx.drainQueue(conn); err != nil {
		return nil, false, err
	}

	// bookkeeping entries carry no caller-visible result
	tx.commands = tx.commands[int(tx.bookkeeping.Load()):]

	if err := conn.Send(execCmd); err != nil {
		return nil, false, err
	}
	aggregate, err := conn.Receive()
	if err != nil {
		return nil, false, err
	}
	if protocol.IsNullReply(aggregate) {
		tx.commands = nil
		return nil, true, nil
	}
	if errReply, ok := aggregate.(redis.ErrorReply); ok {
		return nil, false, errReply
	}
	arr, ok := aggregate.(*protocol.ArrayReply)
	if !ok {
		conn.MarkBroken()
		return nil, false, &DesyncError{Expected: len(tx.commands), Got: -1}
	}
	return arr.Elems, false, nil
}

// reset leaves the transaction idle and empty whatever the outcome was
func (tx *Transaction) reset() {
	tx.commands = nil
	tx.bookkeeping.Store(0)
	tx.inMulti = false
	tx.inWatch = false
}
