// Package pool implements a small object pool used to reuse redis connections.
package pool

import (
	"errors"
	"sync/atomic"

	"go.uber.org/multierr"
)

var (
	ErrClosed = errors.New("pool closed")
	ErrMax    = errors.New("reach max connection limit")
)

// Config bounds the pool
type Config struct {
	MaxIdle   int32
	MaxActive int32
}

// Pool stores objects for reusing, such as redis connections
type Pool[T any] struct {
	Config
	factory     func() (T, error)
	finalizer   func(x T) error
	idles       chan T
	activeCount int32 // increases on create, decreases on destroy
	closed      atomic.Bool
}

// New creates a pool backed by factory; finalizer destroys evicted objects
func New[T any](factory func() (T, error), finalizer func(x T) error, cfg Config) *Pool[T] {
	return &Pool[T]{
		Config:    cfg,
		factory:   factory,
		finalizer: finalizer,
		idles:     make(chan T, cfg.MaxIdle),
	}
}

// getOnNoIdle creates a new object or waits for one being returned
func (pool *Pool[T]) getOnNoIdle() (T, error) {
	var zero T
	if atomic.LoadInt32(&pool.activeCount) >= pool.MaxActive {
		// waiting for an object being returned
		x, ok := <-pool.idles
		if !ok {
			return zero, ErrMax
		}
		return x, nil
	}
	atomic.AddInt32(&pool.activeCount, 1) // hold a place for the new object
	x, err := pool.factory()
	if err != nil {
		atomic.AddInt32(&pool.activeCount, -1) // release the holding place
		return zero, err
	}
	return x, nil
}

// Get borrows an object from the pool
func (pool *Pool[T]) Get() (T, error) {
	var zero T
	if pool.closed.Load() {
		return zero, ErrClosed
	}
	select {
	case item, ok := <-pool.idles:
		if !ok {
			return zero, ErrClosed
		}
		return item, nil
	default:
		// no pooled item, create one
		return pool.getOnNoIdle()
	}
}

// Put returns an object to the pool
func (pool *Pool[T]) Put(x T) {
	if pool.closed.Load() {
		_ = pool.finalizer(x)
		return
	}
	select {
	case pool.idles <- x:
	default:
		// reach max idle, destroy redundant item
		atomic.AddInt32(&pool.activeCount, -1)
		_ = pool.finalizer(x)
	}
}

// Discard destroys a borrowed object instead of returning it
func (pool *Pool[T]) Discard(x T) error {
	atomic.AddInt32(&pool.activeCount, -1)
	return pool.finalizer(x)
}

// Close destroys all idle objects and rejects further Get calls
func (pool *Pool[T]) Close() error {
	if !pool.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(pool.idles)
	var err error
	for x := range pool.idles {
		err = multierr.Append(err, pool.finalizer(x))
	}
	return err
}
