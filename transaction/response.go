package transaction

import (
	"errors"

	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/redis/builder"
)

// ErrUnresolved is returned by Response.Get before the owning batch completed
var ErrUnresolved = errors.New("response is not ready, call Exec first")

// Response is a handle to a command result that is not known until the
// owning transaction executes. It is resolved exactly once.
type Response struct {
	build    builder.Builder
	value    interface{}
	err      error
	resolved bool
}

func newResponse(build builder.Builder) *Response {
	return &Response{build: build}
}

// resolve decodes the raw reply through the captured builder. Resolving a
// response twice is an engine bug, never caller-visible.
func (r *Response) resolve(raw redis.Reply) error {
	if r.resolved {
		return errors.New("response resolved twice")
	}
	r.resolved = true
	r.value, r.err = r.build(raw)
	return nil
}

// Resolved reports whether the owning batch completed
func (r *Response) Resolved() bool {
	return r.resolved
}

// Get returns the decoded value, or the error the server reported for this
// command. Reading before Exec/Discard completed returns ErrUnresolved.
func (r *Response) Get() (interface{}, error) {
	if !r.resolved {
		return nil, ErrUnresolved
	}
	return r.value, r.err
}
