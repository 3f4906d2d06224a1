package transaction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/redis/builder"
	"github.com/redmux/redmux/redis/connection"
	"github.com/redmux/redmux/redis/protocol"
)

// fakeProvider hands out scripted connections in order; the first one serves
// the protocol probe made at construction
type fakeProvider struct {
	conns    []redis.Conn
	acquires int
}

func (p *fakeProvider) Acquire() (redis.Conn, error) {
	p.acquires++
	if len(p.conns) == 0 {
		return nil, errors.New("no cluster reachable")
	}
	conn := p.conns[0]
	p.conns = p.conns[1:]
	return conn, nil
}

func (p *fakeProvider) Close() error {
	return nil
}

func provide(conns ...redis.Conn) *fakeProvider {
	probe := connection.NewFake(2)
	return &fakeProvider{conns: append([]redis.Conn{probe}, conns...)}
}

func queued(n int) []redis.Reply {
	acks := make([]redis.Reply, 0, n)
	for i := 0; i < n; i++ {
		acks = append(acks, protocol.MakeStatusReply("QUEUED"))
	}
	return acks
}

func sentCommands(conn *connection.Fake) []string {
	names := make([]string, 0, len(conn.Sent))
	for _, args := range conn.Sent {
		names = append(names, string(args[0]))
	}
	return names
}

func TestExecResolvesResultsInQueueOrder(t *testing.T) {
	conn := connection.NewFake(2)
	conn.Script(queued(3)...) // MULTI + SET + GET acknowledgements
	conn.Script(protocol.MakeArrayReply([]redis.Reply{
		protocol.MakeStatusReply("OK"),
		protocol.MakeBulkReply([]byte("1")),
	}))
	tx := New(provide(conn))

	setResp := tx.Set("a", "1")
	getResp := tx.Get("a")

	results, err := tx.Exec()
	require.NoError(t, err)
	require.Equal(t, []interface{}{"OK", "1"}, results)

	assert.Equal(t, []string{"MULTI", "SET", "GET", "EXEC"}, sentCommands(conn))

	value, err := setResp.Get()
	require.NoError(t, err)
	assert.Equal(t, "OK", value)
	value, err = getResp.Get()
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	assert.False(t, tx.inMulti)
	assert.False(t, tx.inWatch)
	assert.Empty(t, tx.commands)
	assert.True(t, conn.Closed)
}

func TestExecManyUserCommands(t *testing.T) {
	const n = 5
	conn := connection.NewFake(2)
	conn.Script(queued(n + 1)...)
	elems := make([]redis.Reply, 0, n)
	for i := 0; i < n; i++ {
		elems = append(elems, protocol.MakeIntReply(int64(i+1)))
	}
	conn.Script(protocol.MakeArrayReply(elems))
	tx := New(provide(conn))

	for i := 0; i < n; i++ {
		tx.Incr("counter")
	}
	results, err := tx.Exec()
	require.NoError(t, err)
	require.Len(t, results, n)
	for i, value := range results {
		assert.Equal(t, int64(i+1), value)
	}
}

func TestWatchedKeyChangedAbortsTransaction(t *testing.T) {
	conn := connection.NewFake(2)
	conn.Script(queued(3)...) // WATCH + MULTI + SET acknowledgements
	conn.Script(protocol.MakeNullArrayReply())
	tx := NewManual(provide(conn))

	tx.Watch("a")
	tx.Multi()
	tx.Set("a", "1")

	results, err := tx.Exec()
	require.ErrorIs(t, err, ErrAborted)
	assert.Nil(t, results)
	assert.Empty(t, tx.commands)
	assert.False(t, tx.inMulti)
	assert.False(t, tx.inWatch)
}

func TestPerCommandErrorStaysInline(t *testing.T) {
	conn := connection.NewFake(2)
	conn.Script(queued(3)...)
	conn.Script(protocol.MakeArrayReply([]redis.Reply{
		protocol.MakeIntReply(1),
		protocol.MakeErrReply("WRONGTYPE Operation against a key holding the wrong kind of value"),
	}))
	tx := New(provide(conn))

	tx.Incr("n")
	tx.LPush("n", "x")

	results, err := tx.Exec()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0])

	dataErr, ok := results[1].(*builder.DataError)
	require.True(t, ok, "second result should be the inline command error")
	assert.Contains(t, dataErr.Error(), "WRONGTYPE")
}

func TestExecWithoutMultiFailsWithoutIO(t *testing.T) {
	provider := provide()
	tx := NewManual(provider)
	tx.Set("a", "1")
	probes := provider.acquires

	results, err := tx.Exec()
	require.ErrorIs(t, err, ErrExecWithoutMulti)
	assert.Nil(t, results)
	assert.Equal(t, probes, provider.acquires, "illegal-state exec must not acquire a connection")
	assert.Len(t, tx.commands, 1, "queue must stay untouched")
}

func TestDiscardWithoutMultiFailsWithoutIO(t *testing.T) {
	provider := provide()
	tx := NewManual(provider)
	probes := provider.acquires

	_, err := tx.Discard()
	require.ErrorIs(t, err, ErrDiscardWithoutMulti)
	assert.Equal(t, probes, provider.acquires)
}

func TestDiscardDrainsQueueAndReturnsStatus(t *testing.T) {
	conn := connection.NewFake(2)
	conn.Script(queued(2)...) // MULTI + SET acknowledgements
	conn.Script(protocol.MakeStatusReply("OK"))
	tx := New(provide(conn))
	tx.Set("a", "1")

	status, err := tx.Discard()
	require.NoError(t, err)
	assert.Equal(t, "OK", status)
	assert.Equal(t, []string{"MULTI", "SET", "DISCARD"}, sentCommands(conn))
	assert.False(t, tx.inMulti)
	assert.Empty(t, tx.commands)
	assert.True(t, conn.Closed)
}

func TestStateResetsWhenAcquireFails(t *testing.T) {
	tx := New(&fakeProvider{}) // probe fails too, transaction falls back to RESP2
	tx.Set("a", "1")

	_, err := tx.Exec()
	require.Error(t, err)
	assert.False(t, tx.inMulti)
	assert.False(t, tx.inWatch)
	assert.Empty(t, tx.commands)
	assert.Equal(t, 2, tx.Protocol())
}

func TestAggregateCountMismatchIsFatal(t *testing.T) {
	conn := connection.NewFake(2)
	conn.Script(queued(3)...)
	conn.Script(protocol.MakeArrayReply([]redis.Reply{
		protocol.MakeStatusReply("OK"),
	}))
	tx := New(provide(conn))

	tx.Set("a", "1")
	tx.Get("a")

	_, err := tx.Exec()
	var desync *DesyncError
	require.ErrorAs(t, err, &desync)
	assert.Equal(t, 2, desync.Expected)
	assert.Equal(t, 1, desync.Got)
	assert.True(t, conn.IsBroke, "a desynced connection must not be reused")
}

func TestExecAbortErrorReplyPropagates(t *testing.T) {
	conn := connection.NewFake(2)
	conn.Script(queued(2)...)
	conn.Script(protocol.MakeErrReply("EXECABORT Transaction discarded because of previous errors."))
	tx := New(provide(conn))
	tx.Do("NOSUCHCOMMAND")

	_, err := tx.Exec()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXECABORT")
}

func TestCloseDiscardsOpenTransaction(t *testing.T) {
	conn := connection.NewFake(2)
	conn.Script(queued(2)...)
	conn.Script(protocol.MakeStatusReply("OK"))
	tx := New(provide(conn))
	tx.Set("a", "1")

	require.NoError(t, tx.Close())
	assert.Equal(t, []string{"MULTI", "SET", "DISCARD"}, sentCommands(conn))
	assert.False(t, tx.inMulti)
}

func TestCloseClearsOutstandingWatchLocally(t *testing.T) {
	provider := provide()
	tx := NewManual(provider)
	tx.Watch("a")
	probes := provider.acquires

	require.NoError(t, tx.Close())
	assert.False(t, tx.inWatch)
	assert.Equal(t, probes, provider.acquires, "unwatch is a queue append, not a round trip")
	assert.Equal(t, "UNWATCH", string(tx.commands[len(tx.commands)-1].args[0]))
}

func TestCloseOnIdleTransactionIsNoop(t *testing.T) {
	provider := provide()
	tx := NewManual(provider)
	probes := provider.acquires

	require.NoError(t, tx.Close())
	assert.Equal(t, probes, provider.acquires)
	assert.Empty(t, tx.commands)
}

func TestQueuingIsPurelyLocal(t *testing.T) {
	provider := provide()
	tx := NewManual(provider)
	probes := provider.acquires

	tx.Watch("k")
	tx.Multi()
	tx.Set("k", "v")
	tx.Get("k")
	tx.Unwatch()

	assert.Equal(t, probes, provider.acquires, "queuing must not touch the network")
	assert.Len(t, tx.commands, 5)
	assert.Equal(t, int32(3), tx.bookkeeping.Load())
}

func TestResponseBeforeExecIsUnresolved(t *testing.T) {
	tx := New(provide())
	resp := tx.Get("a")

	_, err := resp.Get()
	require.ErrorIs(t, err, ErrUnresolved)
	assert.False(t, resp.Resolved())
}

func TestGraphCommandsAreRejectedImmediately(t *testing.T) {
	provider := provide()
	tx := New(provider)
	queueLen := len(tx.commands)
	probes := provider.acquires

	_, err := tx.GraphQuery("g", "MATCH (n) RETURN n")
	require.ErrorIs(t, err, ErrGraphNotSupported)
	_, err = tx.GraphReadonlyQuery("g", "MATCH (n) RETURN n")
	require.ErrorIs(t, err, ErrGraphNotSupported)
	_, err = tx.GraphDelete("g")
	require.ErrorIs(t, err, ErrGraphNotSupported)
	_, err = tx.GraphProfile("g", "MATCH (n) RETURN n")
	require.ErrorIs(t, err, ErrGraphNotSupported)

	assert.Len(t, tx.commands, queueLen, "rejected commands must not be queued")
	assert.Equal(t, probes, provider.acquires)
}

func TestProtocolHintConsultedOnce(t *testing.T) {
	probe := connection.NewFake(3)
	provider := &fakeProvider{conns: []redis.Conn{probe}}

	tx := NewManual(provider)
	assert.Equal(t, 3, tx.Protocol())
	assert.True(t, probe.Closed, "probe connection must be released")
	assert.Equal(t, 1, provider.acquires)
}

func TestWatchSetGetScenario(t *testing.T) {
	conn := connection.NewFake(2)
	conn.Script(queued(4)...) // WATCH + MULTI + SET + GET acknowledgements
	conn.Script(protocol.MakeArrayReply([]redis.Reply{
		protocol.MakeStatusReply("OK"),
		protocol.MakeBulkReply([]byte("1")),
	}))
	tx := NewManual(provide(conn))

	tx.Watch("a")
	tx.Multi()
	tx.Set("a", "1")
	tx.Get("a")

	results, err := tx.Exec()
	require.NoError(t, err)
	require.Equal(t, []interface{}{"OK", "1"}, results)
	assert.Equal(t, []string{"WATCH", "MULTI", "SET", "GET", "EXEC"}, sentCommands(conn))
}
