// Package builder maps raw protocol replies to Go values. Builders recognize
// server-reported error replies and surface them as *DataError so that one
// failed command inside a transaction does not poison its siblings.
package builder

import (
	"fmt"
	"strconv"

	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/redis/protocol"
)

// DataError is an error the server reported for one specific command
type DataError struct {
	Message string
}

func (e *DataError) Error() string {
	return e.Message
}

// Builder decodes one raw wire value
type Builder func(reply redis.Reply) (interface{}, error)

// checkError extracts a server error, if any, before type-specific decoding
func checkError(reply redis.Reply) error {
	if errReply, ok := reply.(redis.ErrorReply); ok {
		return &DataError{Message: errReply.Error()}
	}
	return nil
}

// Raw passes the reply through untouched
func Raw(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// String decodes bulk, status and verbatim replies; absent values decode to nil
func String(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	switch r := reply.(type) {
	case *protocol.BulkReply:
		return string(r.Arg), nil
	case *protocol.StatusReply:
		return r.Status, nil
	case *protocol.VerbatimReply:
		return string(r.Arg), nil
	case *protocol.BigNumberReply:
		return r.Value, nil
	case *protocol.IntReply:
		return strconv.FormatInt(r.Code, 10), nil
	}
	if protocol.IsNullReply(reply) {
		return nil, nil
	}
	return nil, typeError("string", reply)
}

// Status decodes a simple status reply such as +OK
func Status(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	if r, ok := reply.(*protocol.StatusReply); ok {
		return r.Status, nil
	}
	return nil, typeError("status", reply)
}

// Int64 decodes integer replies; numeric bulk strings are accepted as well
func Int64(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	switch r := reply.(type) {
	case *protocol.IntReply:
		return r.Code, nil
	case *protocol.BulkReply:
		value, err := strconv.ParseInt(string(r.Arg), 10, 64)
		if err != nil {
			return nil, &DataError{Message: "value is not an integer: " + string(r.Arg)}
		}
		return value, nil
	}
	if protocol.IsNullReply(reply) {
		return nil, nil
	}
	return nil, typeError("integer", reply)
}

// Float64 decodes RESP3 doubles and RESP2 numeric bulk strings
func Float64(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	switch r := reply.(type) {
	case *protocol.DoubleReply:
		return r.Value, nil
	case *protocol.BulkReply:
		value, err := strconv.ParseFloat(string(r.Arg), 64)
		if err != nil {
			return nil, &DataError{Message: "value is not a float: " + string(r.Arg)}
		}
		return value, nil
	}
	if protocol.IsNullReply(reply) {
		return nil, nil
	}
	return nil, typeError("double", reply)
}

// Bool decodes RESP3 booleans and RESP2 0/1 integers
func Bool(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	switch r := reply.(type) {
	case *protocol.BoolReply:
		return r.Value, nil
	case *protocol.IntReply:
		return r.Code != 0, nil
	}
	if protocol.IsNullReply(reply) {
		return false, nil
	}
	return nil, typeError("boolean", reply)
}

// StringSlice decodes an array of bulk strings; absent elements decode to ""
func StringSlice(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	elems, err := arrayElems(reply)
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(elems))
	for _, elem := range elems {
		value, err := String(elem)
		if err != nil {
			return nil, err
		}
		if value == nil {
			result = append(result, "")
			continue
		}
		result = append(result, value.(string))
	}
	return result, nil
}

// AnySlice decodes an array recursively through String/Int64/nested AnySlice
func AnySlice(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	elems, err := arrayElems(reply)
	if err != nil {
		return nil, err
	}
	result := make([]interface{}, 0, len(elems))
	for _, elem := range elems {
		switch elem.(type) {
		case *protocol.ArrayReply, *protocol.MultiBulkReply, *protocol.MapReply:
			value, err := AnySlice(elem)
			if err != nil {
				return nil, err
			}
			result = append(result, value)
		case *protocol.IntReply:
			value, _ := Int64(elem)
			result = append(result, value)
		default:
			value, err := String(elem)
			if err != nil {
				return nil, err
			}
			result = append(result, value)
		}
	}
	return result, nil
}

// StringMap decodes field-value arrays (RESP2) and maps (RESP3)
func StringMap(reply redis.Reply) (interface{}, error) {
	if err := checkError(reply); err != nil {
		return nil, err
	}
	elems, err := arrayElems(reply)
	if err != nil {
		return nil, err
	}
	if len(elems)%2 != 0 {
		return nil, typeError("map", reply)
	}
	result := make(map[string]string, len(elems)/2)
	for i := 0; i < len(elems); i += 2 {
		field, err := String(elems[i])
		if err != nil {
			return nil, err
		}
		value, err := String(elems[i+1])
		if err != nil {
			return nil, err
		}
		result[field.(string)] = value.(string)
	}
	return result, nil
}

func arrayElems(reply redis.Reply) ([]redis.Reply, error) {
	switch r := reply.(type) {
	case *protocol.ArrayReply:
		return r.Elems, nil
	case *protocol.MapReply:
		return r.Fields, nil
	case *protocol.MultiBulkReply:
		elems := make([]redis.Reply, 0, len(r.Args))
		for _, arg := range r.Args {
			elems = append(elems, protocol.MakeBulkReply(arg))
		}
		return elems, nil
	}
	if protocol.IsNullReply(reply) {
		return nil, nil
	}
	return nil, typeError("array", reply)
}

func typeError(expected string, reply redis.Reply) error {
	return &DataError{
		Message: fmt.Sprintf("expected %s reply, got %q", expected, reply.ToBytes()),
	}
}
