package parser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/redis/protocol"
)

// Parser reads RESP replies from a stream, one reply per Parse call.
// It understands both RESP2 and RESP3 framing.
type Parser struct {
	reader *bufio.Reader
}

// NewParser creates a Parser over the given reader
func NewParser(rawReader io.Reader) *Parser {
	return &Parser{
		reader: bufio.NewReader(rawReader),
	}
}

// ParseOne reads the first reply from data
func ParseOne(data []byte) (redis.Reply, error) {
	return NewParser(bytes.NewReader(data)).Parse()
}

// Parse reads exactly one reply. A malformed reply yields a protocol error;
// I/O errors are returned as-is.
func (p *Parser) Parse() (redis.Reply, error) {
	line, err := p.readLine()
	if err != nil {
		return nil, err
	}
	switch line[0] {
	case '+':
		return protocol.MakeStatusReply(string(line[1:])), nil
	case '-':
		return protocol.MakeErrReply(string(line[1:])), nil
	case ':':
		value, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, protocolError("illegal number " + string(line[1:]))
		}
		return protocol.MakeIntReply(value), nil
	case '$':
		return p.parseBulkString(line)
	case '*', '>':
		return p.parseArray(line)
	case '%':
		return p.parseMap(line)
	case '_':
		return protocol.MakeNullReply(), nil
	case '#':
		switch string(line[1:]) {
		case "t":
			return protocol.MakeBoolReply(true), nil
		case "f":
			return protocol.MakeBoolReply(false), nil
		}
		return nil, protocolError("illegal boolean " + string(line))
	case ',':
		value, err := strconv.ParseFloat(string(line[1:]), 64)
		if err != nil {
			return nil, protocolError("illegal double " + string(line[1:]))
		}
		return protocol.MakeDoubleReply(value), nil
	case '(':
		return protocol.MakeBigNumberReply(string(line[1:])), nil
	case '=':
		return p.parseVerbatim(line)
	default:
		return nil, protocolError("unexpected reply header " + string(line))
	}
}

// readLine reads one CRLF terminated header line without the terminator
func (p *Parser) readLine() ([]byte, error) {
	line, err := p.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	length := len(line)
	if length < 3 || line[length-2] != '\r' {
		return nil, protocolError("malformed line " + string(line))
	}
	return line[:length-2], nil
}

func (p *Parser) parseBulkString(header []byte) (redis.Reply, error) {
	strLen, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || strLen < -1 {
		return nil, protocolError("illegal bulk string header " + string(header))
	}
	if strLen == -1 {
		return protocol.MakeNullBulkReply(), nil
	}
	body := make([]byte, strLen+2)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		return nil, err
	}
	if body[strLen] != '\r' || body[strLen+1] != '\n' {
		return nil, protocolError("bulk string missing terminator")
	}
	return protocol.MakeBulkReply(body[:strLen]), nil
}

func (p *Parser) parseVerbatim(header []byte) (redis.Reply, error) {
	strLen, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || strLen < 4 {
		return nil, protocolError("illegal verbatim string header " + string(header))
	}
	body := make([]byte, strLen+2)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		return nil, err
	}
	if body[3] != ':' {
		return nil, protocolError("verbatim string missing format prefix")
	}
	return protocol.MakeVerbatimReply(string(body[:3]), body[4:strLen]), nil
}

func (p *Parser) parseArray(header []byte) (redis.Reply, error) {
	nElems, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || nElems < -1 {
		return nil, protocolError("illegal array header " + string(header))
	}
	if nElems == -1 {
		return protocol.MakeNullArrayReply(), nil
	}
	elems := make([]redis.Reply, 0, nElems)
	for i := int64(0); i < nElems; i++ {
		elem, err := p.Parse()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	return protocol.MakeArrayReply(elems), nil
}

func (p *Parser) parseMap(header []byte) (redis.Reply, error) {
	nPairs, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || nPairs < 0 {
		return nil, protocolError("illegal map header " + string(header))
	}
	fields := make([]redis.Reply, 0, nPairs*2)
	for i := int64(0); i < nPairs*2; i++ {
		elem, err := p.Parse()
		if err != nil {
			return nil, err
		}
		fields = append(fields, elem)
	}
	return protocol.MakeMapReply(fields), nil
}

func protocolError(msg string) error {
	return errors.New("protocol error: " + msg)
}
