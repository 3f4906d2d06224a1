package parser

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/redis/protocol"
)

func TestParseSimpleReplies(t *testing.T) {
	replies := []redis.Reply{
		protocol.MakeStatusReply("OK"),
		protocol.MakeErrReply("ERR unknown command 'foobar'"),
		protocol.MakeIntReply(42),
		protocol.MakeBulkReply([]byte("hello")),
		protocol.MakeNullBulkReply(),
		protocol.MakeNullReply(),
		protocol.MakeBoolReply(true),
		protocol.MakeBoolReply(false),
		protocol.MakeDoubleReply(3.14),
		protocol.MakeBigNumberReply("3492890328409238509324850943850943825024385"),
		protocol.MakeVerbatimReply("txt", []byte("Some string")),
	}
	var stream bytes.Buffer
	for _, reply := range replies {
		stream.Write(reply.ToBytes())
	}

	p := NewParser(&stream)
	for _, expected := range replies {
		actual, err := p.Parse()
		require.NoError(t, err)
		assert.Equal(t, expected.ToBytes(), actual.ToBytes())
	}
	_, err := p.Parse()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseArrays(t *testing.T) {
	reply, err := ParseOne([]byte("*3\r\n+OK\r\n:7\r\n$3\r\nfoo\r\n"))
	require.NoError(t, err)
	arr, ok := reply.(*protocol.ArrayReply)
	require.True(t, ok)
	require.Len(t, arr.Elems, 3)
	assert.Equal(t, "OK", arr.Elems[0].(*protocol.StatusReply).Status)
	assert.Equal(t, int64(7), arr.Elems[1].(*protocol.IntReply).Code)
	assert.Equal(t, []byte("foo"), arr.Elems[2].(*protocol.BulkReply).Arg)
}

func TestParseNestedArrayWithError(t *testing.T) {
	// the aggregate reply after EXEC may carry errors and nested arrays
	raw := []byte("*3\r\n:1\r\n-WRONGTYPE bad value\r\n*2\r\n$1\r\na\r\n$1\r\nb\r\n")
	reply, err := ParseOne(raw)
	require.NoError(t, err)
	arr := reply.(*protocol.ArrayReply)
	require.Len(t, arr.Elems, 3)
	_, isErr := arr.Elems[1].(redis.ErrorReply)
	assert.True(t, isErr)
	inner := arr.Elems[2].(*protocol.ArrayReply)
	assert.Len(t, inner.Elems, 2)
}

func TestParseNullArray(t *testing.T) {
	reply, err := ParseOne([]byte("*-1\r\n"))
	require.NoError(t, err)
	assert.IsType(t, &protocol.NullArrayReply{}, reply)
	assert.True(t, protocol.IsNullReply(reply))
}

func TestParseEmptyArray(t *testing.T) {
	reply, err := ParseOne([]byte("*0\r\n"))
	require.NoError(t, err)
	arr := reply.(*protocol.ArrayReply)
	assert.Empty(t, arr.Elems)
	assert.False(t, protocol.IsNullReply(reply))
}

func TestParseMap(t *testing.T) {
	reply, err := ParseOne([]byte("%2\r\n+first\r\n:1\r\n+second\r\n:2\r\n"))
	require.NoError(t, err)
	m := reply.(*protocol.MapReply)
	require.Len(t, m.Fields, 4)
	assert.Equal(t, "first", m.Fields[0].(*protocol.StatusReply).Status)
	assert.Equal(t, int64(2), m.Fields[3].(*protocol.IntReply).Code)
}

func TestParseMalformedInput(t *testing.T) {
	malformed := []string{
		"?what\r\n",
		":notanumber\r\n",
		"$3\r\nfoobar\r\n", // body longer than header
		"#x\r\n",
		",pi\r\n",
		"*x\r\n",
	}
	for _, input := range malformed {
		_, err := ParseOne([]byte(input))
		assert.Error(t, err, "input %q should not parse", input)
	}
}

func TestParseBinarySafeBulk(t *testing.T) {
	payload := []byte("a\r\nb\x00c")
	raw := protocol.MakeBulkReply(payload).ToBytes()
	reply, err := ParseOne(raw)
	require.NoError(t, err)
	assert.Equal(t, payload, reply.(*protocol.BulkReply).Arg)
}
