package protocol

import (
	"bytes"
	"strconv"

	"github.com/redmux/redmux/interface/redis"
)

var (
	nullBulkReplyBytes  = []byte("$-1")
	nullArrayReplyBytes = []byte("*-1")

	// CRLF is the line separator of redis serialization protocol
	CRLF = "\r\n"
)

/* ---- Status Reply ---- */

// StatusReply stores a simple status string
type StatusReply struct {
	Status string
}

// MakeStatusReply creates StatusReply
func MakeStatusReply(status string) *StatusReply {
	return &StatusReply{
		Status: status,
	}
}

// ToBytes marshals redis.Reply
func (r *StatusReply) ToBytes() []byte {
	return []byte("+" + r.Status + CRLF)
}

// IsOKReply returns true if the given reply is +OK
func IsOKReply(reply redis.Reply) bool {
	return string(reply.ToBytes()) == "+OK\r\n"
}

/* ---- Int Reply ---- */

// IntReply stores an int64 number
type IntReply struct {
	Code int64
}

// MakeIntReply creates int reply
func MakeIntReply(code int64) *IntReply {
	return &IntReply{
		Code: code,
	}
}

// ToBytes marshals redis.Reply
func (r *IntReply) ToBytes() []byte {
	return []byte(":" + strconv.FormatInt(r.Code, 10) + CRLF)
}

/* ---- Bulk Reply ---- */

// BulkReply stores a binary-safe string
type BulkReply struct {
	Arg []byte
}

// MakeBulkReply creates BulkReply
func MakeBulkReply(arg []byte) *BulkReply {
	return &BulkReply{
		Arg: arg,
	}
}

// ToBytes marshals redis.Reply
func (r *BulkReply) ToBytes() []byte {
	if r.Arg == nil {
		return append([]byte{}, append(nullBulkReplyBytes, CRLF...)...)
	}
	return []byte("$" + strconv.Itoa(len(r.Arg)) + CRLF + string(r.Arg) + CRLF)
}

/* ---- Null Bulk Reply ---- */

// NullBulkReply is the RESP2 absent string ($-1)
type NullBulkReply struct{}

// MakeNullBulkReply creates a NullBulkReply
func MakeNullBulkReply() *NullBulkReply {
	return &NullBulkReply{}
}

// ToBytes marshals redis.Reply
func (r *NullBulkReply) ToBytes() []byte {
	return []byte("$-1" + CRLF)
}

/* ---- Multi Bulk Reply ---- */

// MultiBulkReply stores a list of binary-safe strings
type MultiBulkReply struct {
	Args [][]byte
}

// MakeMultiBulkReply creates MultiBulkReply
func MakeMultiBulkReply(args [][]byte) *MultiBulkReply {
	return &MultiBulkReply{
		Args: args,
	}
}

// ToBytes marshals redis.Reply
func (r *MultiBulkReply) ToBytes() []byte {
	argLen := len(r.Args)
	var buf bytes.Buffer
	buf.WriteString("*" + strconv.Itoa(argLen) + CRLF)
	for _, arg := range r.Args {
		if arg == nil {
			buf.WriteString("$-1" + CRLF)
		} else {
			buf.WriteString("$" + strconv.Itoa(len(arg)) + CRLF + string(arg) + CRLF)
		}
	}
	return buf.Bytes()
}

// MakeEmptyMultiBulkReply creates a MultiBulkReply with no element
func MakeEmptyMultiBulkReply() *MultiBulkReply {
	return &MultiBulkReply{}
}

/* ---- Array Reply ---- */

// ArrayReply stores a list of arbitrary replies, possibly nested and possibly
// containing error elements. The reply following EXEC has this shape.
type ArrayReply struct {
	Elems []redis.Reply
}

// MakeArrayReply creates ArrayReply
func MakeArrayReply(elems []redis.Reply) *ArrayReply {
	return &ArrayReply{
		Elems: elems,
	}
}

// ToBytes marshals redis.Reply
func (r *ArrayReply) ToBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString("*" + strconv.Itoa(len(r.Elems)) + CRLF)
	for _, elem := range r.Elems {
		buf.Write(elem.ToBytes())
	}
	return buf.Bytes()
}

/* ---- Null Array Reply ---- */

// NullArrayReply is the RESP2 absent array (*-1), sent after EXEC when the
// transaction was aborted by the server
type NullArrayReply struct{}

// MakeNullArrayReply creates a NullArrayReply
func MakeNullArrayReply() *NullArrayReply {
	return &NullArrayReply{}
}

// ToBytes marshals redis.Reply
func (r *NullArrayReply) ToBytes() []byte {
	return append([]byte{}, append(nullArrayReplyBytes, CRLF...)...)
}

/* ---- RESP3 replies ---- */

// NullReply is the RESP3 null (_)
type NullReply struct{}

// MakeNullReply creates a NullReply
func MakeNullReply() *NullReply {
	return &NullReply{}
}

// ToBytes marshals redis.Reply
func (r *NullReply) ToBytes() []byte {
	return []byte("_" + CRLF)
}

// BoolReply is the RESP3 boolean (#)
type BoolReply struct {
	Value bool
}

// MakeBoolReply creates a BoolReply
func MakeBoolReply(value bool) *BoolReply {
	return &BoolReply{
		Value: value,
	}
}

// ToBytes marshals redis.Reply
func (r *BoolReply) ToBytes() []byte {
	if r.Value {
		return []byte("#t" + CRLF)
	}
	return []byte("#f" + CRLF)
}

// DoubleReply is the RESP3 double (,)
type DoubleReply struct {
	Value float64
}

// MakeDoubleReply creates a DoubleReply
func MakeDoubleReply(value float64) *DoubleReply {
	return &DoubleReply{
		Value: value,
	}
}

// ToBytes marshals redis.Reply
func (r *DoubleReply) ToBytes() []byte {
	return []byte("," + strconv.FormatFloat(r.Value, 'f', -1, 64) + CRLF)
}

// VerbatimReply is the RESP3 verbatim string (=), e.g. "txt:..." payloads
type VerbatimReply struct {
	Format string
	Arg    []byte
}

// MakeVerbatimReply creates a VerbatimReply
func MakeVerbatimReply(format string, arg []byte) *VerbatimReply {
	return &VerbatimReply{
		Format: format,
		Arg:    arg,
	}
}

// ToBytes marshals redis.Reply
func (r *VerbatimReply) ToBytes() []byte {
	body := r.Format + ":" + string(r.Arg)
	return []byte("=" + strconv.Itoa(len(body)) + CRLF + body + CRLF)
}

// BigNumberReply is the RESP3 big number ((), kept as its decimal string
type BigNumberReply struct {
	Value string
}

// MakeBigNumberReply creates a BigNumberReply
func MakeBigNumberReply(value string) *BigNumberReply {
	return &BigNumberReply{
		Value: value,
	}
}

// ToBytes marshals redis.Reply
func (r *BigNumberReply) ToBytes() []byte {
	return []byte("(" + r.Value + CRLF)
}

// MapReply is the RESP3 map (%) as an ordered field-value list
type MapReply struct {
	Fields []redis.Reply // field0, value0, field1, value1 ...
}

// MakeMapReply creates a MapReply
func MakeMapReply(fields []redis.Reply) *MapReply {
	return &MapReply{
		Fields: fields,
	}
}

// ToBytes marshals redis.Reply
func (r *MapReply) ToBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString("%" + strconv.Itoa(len(r.Fields)/2) + CRLF)
	for _, elem := range r.Fields {
		buf.Write(elem.ToBytes())
	}
	return buf.Bytes()
}

// IsNullReply returns true for every absent marker the server may send
func IsNullReply(reply redis.Reply) bool {
	switch reply.(type) {
	case *NullBulkReply, *NullArrayReply, *NullReply:
		return true
	}
	return false
}
