package transaction

import (
	"errors"
	"strconv"

	"github.com/redmux/redmux/lib/utils"
	"github.com/redmux/redmux/redis/builder"
)

// Do queues an arbitrary command by name, decoding the result as a raw reply
func (tx *Transaction) Do(name string, args ...string) *Response {
	return tx.Enqueue(utils.ToCmdLine2(name, args...), builder.Raw)
}

/* ---- strings ---- */

func (tx *Transaction) Set(key, value string) *Response {
	return tx.Enqueue(utils.ToCmdLine("SET", key, value), builder.Status)
}

func (tx *Transaction) Get(key string) *Response {
	return tx.Enqueue(utils.ToCmdLine("GET", key), builder.String)
}

func (tx *Transaction) Incr(key string) *Response {
	return tx.Enqueue(utils.ToCmdLine("INCR", key), builder.Int64)
}

func (tx *Transaction) IncrBy(key string, delta int64) *Response {
	return tx.Enqueue(utils.ToCmdLine("INCRBY", key, strconv.FormatInt(delta, 10)), builder.Int64)
}

func (tx *Transaction) IncrByFloat(key string, delta float64) *Response {
	arg := strconv.FormatFloat(delta, 'f', -1, 64)
	return tx.Enqueue(utils.ToCmdLine("INCRBYFLOAT", key, arg), builder.Float64)
}

/* ---- keys ---- */

func (tx *Transaction) Del(keys ...string) *Response {
	return tx.Enqueue(utils.ToCmdLine2("DEL", keys...), builder.Int64)
}

func (tx *Transaction) Exists(keys ...string) *Response {
	return tx.Enqueue(utils.ToCmdLine2("EXISTS", keys...), builder.Int64)
}

func (tx *Transaction) Expire(key string, seconds int64) *Response {
	return tx.Enqueue(utils.ToCmdLine("EXPIRE", key, strconv.FormatInt(seconds, 10)), builder.Bool)
}

func (tx *Transaction) TTL(key string) *Response {
	return tx.Enqueue(utils.ToCmdLine("TTL", key), builder.Int64)
}

/* ---- hashes ---- */

func (tx *Transaction) HSet(key, field, value string) *Response {
	return tx.Enqueue(utils.ToCmdLine("HSET", key, field, value), builder.Int64)
}

func (tx *Transaction) HGet(key, field string) *Response {
	return tx.Enqueue(utils.ToCmdLine("HGET", key, field), builder.String)
}

func (tx *Transaction) HGetAll(key string) *Response {
	return tx.Enqueue(utils.ToCmdLine("HGETALL", key), builder.StringMap)
}

func (tx *Transaction) HDel(key string, fields ...string) *Response {
	return tx.Enqueue(utils.ToCmdLine2("HDEL", append([]string{key}, fields...)...), builder.Int64)
}

/* ---- lists ---- */

func (tx *Transaction) LPush(key string, values ...string) *Response {
	return tx.Enqueue(utils.ToCmdLine2("LPUSH", append([]string{key}, values...)...), builder.Int64)
}

func (tx *Transaction) RPush(key string, values ...string) *Response {
	return tx.Enqueue(utils.ToCmdLine2("RPUSH", append([]string{key}, values...)...), builder.Int64)
}

func (tx *Transaction) LRange(key string, start, stop int64) *Response {
	return tx.Enqueue(utils.ToCmdLine("LRANGE", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10)), builder.StringSlice)
}

func (tx *Transaction) LLen(key string) *Response {
	return tx.Enqueue(utils.ToCmdLine("LLEN", key), builder.Int64)
}

/* ---- sets ---- */

func (tx *Transaction) SAdd(key string, members ...string) *Response {
	return tx.Enqueue(utils.ToCmdLine2("SADD", append([]string{key}, members...)...), builder.Int64)
}

func (tx *Transaction) SRem(key string, members ...string) *Response {
	return tx.Enqueue(utils.ToCmdLine2("SREM", append([]string{key}, members...)...), builder.Int64)
}

func (tx *Transaction) SMembers(key string) *Response {
	return tx.Enqueue(utils.ToCmdLine("SMEMBERS", key), builder.StringSlice)
}

func (tx *Transaction) SIsMember(key, member string) *Response {
	return tx.Enqueue(utils.ToCmdLine("SISMEMBER", key, member), builder.Bool)
}

/* ---- sorted sets ---- */

func (tx *Transaction) ZAdd(key string, score float64, member string) *Response {
	arg := strconv.FormatFloat(score, 'f', -1, 64)
	return tx.Enqueue(utils.ToCmdLine("ZADD", key, arg, member), builder.Int64)
}

func (tx *Transaction) ZScore(key, member string) *Response {
	return tx.Enqueue(utils.ToCmdLine("ZSCORE", key, member), builder.Float64)
}

/* ---- graph sub-protocol ---- */

// ErrGraphNotSupported rejects graph commands: their client-side multi-step
// execution model cannot run inside a queued transaction.
var ErrGraphNotSupported = errors.New("graph commands are not supported")

func (tx *Transaction) GraphQuery(name, query string) (*Response, error) {
	return nil, ErrGraphNotSupported
}

func (tx *Transaction) GraphReadonlyQuery(name, query string) (*Response, error) {
	return nil, ErrGraphNotSupported
}

func (tx *Transaction) GraphDelete(name string) (*Response, error) {
	return nil, ErrGraphNotSupported
}

func (tx *Transaction) GraphProfile(name, query string) (*Response, error) {
	return nil, ErrGraphNotSupported
}
