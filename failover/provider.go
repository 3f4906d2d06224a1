// Package failover supplies redis connections from an ordered list of
// backing clusters. Each cluster gets its own connection pool and circuit
// breaker; acquisition walks away from unhealthy clusters and sticks to the
// first one that serves.
package failover

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/redmux/redmux/failover/pool"
	"github.com/redmux/redmux/interface/redis"
	"github.com/redmux/redmux/lib/logger"
	"github.com/redmux/redmux/redis/connection"
)

// ErrNoCluster is returned when every cluster is unreachable or tripped
var ErrNoCluster = errors.New("no healthy cluster available")

// Conn is the connection type pooled by the provider
type Conn interface {
	redis.Conn
	Broken() bool
}

// Dialer opens a fresh connection to one cluster
type Dialer func(addr string) (Conn, error)

// Config configures a Provider
type Config struct {
	// Clusters lists server addresses in preference order
	Clusters []string
	// Connection is applied to every dialed connection
	Connection connection.Config
	// Pool bounds each per-cluster pool; zero values get defaults
	Pool pool.Config
	// BreakerThreshold trips a cluster after this many consecutive failures
	BreakerThreshold int32
	// BreakerOpenTimeout keeps a tripped cluster out of rotation this long
	BreakerOpenTimeout time.Duration
	// MaxSweeps bounds full passes over the cluster list per Acquire
	MaxSweeps uint64
	// Dialer overrides the default TCP dialer, mainly for tests
	Dialer Dialer
	// Clock drives breaker timing, mainly for tests
	Clock clockwork.Clock
}

func (cfg *Config) withDefaults() {
	if cfg.Pool.MaxIdle <= 0 {
		cfg.Pool.MaxIdle = 1
	}
	if cfg.Pool.MaxActive <= 0 {
		cfg.Pool.MaxActive = 16
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 5 * time.Second
	}
	if cfg.MaxSweeps == 0 {
		cfg.MaxSweeps = 3
	}
	if cfg.Dialer == nil {
		connCfg := cfg.Connection
		cfg.Dialer = func(addr string) (Conn, error) {
			return connection.Dial(addr, connCfg)
		}
	}
}

type cluster struct {
	addr    string
	pool    *pool.Pool[Conn]
	breaker *Breaker
}

// Provider hands out one connection per transaction batch, failing over
// between clusters. Implements redis.ConnProvider.
type Provider struct {
	clusters []*cluster
	active   atomic.Int32 // index of the cluster currently preferred
	sweeps   uint64
}

// NewProvider creates a Provider over the configured clusters
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.Clusters) == 0 {
		return nil, errors.New("at least one cluster address is required")
	}
	cfg.withDefaults()
	clusters := make([]*cluster, 0, len(cfg.Clusters))
	for _, addr := range cfg.Clusters {
		addr := addr
		dial := cfg.Dialer
		clusters = append(clusters, &cluster{
			addr: addr,
			pool: pool.New(
				func() (Conn, error) { return dial(addr) },
				func(c Conn) error { return c.Close() },
				cfg.Pool,
			),
			breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerOpenTimeout, cfg.Clock),
		})
	}
	return &Provider{
		clusters: clusters,
		sweeps:   cfg.MaxSweeps,
	}, nil
}

// Acquire borrows one connection, preferring the active cluster and failing
// over to the next healthy one. The returned Conn must be closed to release it.
func (p *Provider) Acquire() (redis.Conn, error) {
	var lease *Lease
	sweep := func() error {
		l, err := p.sweepOnce()
		if err != nil {
			return err
		}
		lease = l
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxInterval(time.Second),
	), p.sweeps)
	if err := backoff.Retry(sweep, policy); err != nil {
		return nil, err
	}
	return lease, nil
}

// sweepOnce tries every cluster once, starting at the active one
func (p *Provider) sweepOnce() (*Lease, error) {
	start := int(p.active.Load())
	size := len(p.clusters)
	for i := 0; i < size; i++ {
		idx := (start + i) % size
		node := p.clusters[idx]
		if !node.breaker.Allow() {
			continue
		}
		conn, err := node.pool.Get()
		if err != nil {
			node.breaker.MarkFailure()
			logger.Warn(fmt.Sprintf("cluster %s unavailable: %v (breaker %s)",
				node.addr, err, node.breaker.State()))
			continue
		}
		node.breaker.MarkSuccess()
		if idx != start {
			p.active.Store(int32(idx))
			logger.Infof("failed over to cluster %s", node.addr)
		}
		return &Lease{Conn: conn, home: node.pool}, nil
	}
	return nil, ErrNoCluster
}

// Close shuts down every per-cluster pool
func (p *Provider) Close() error {
	var err error
	for _, node := range p.clusters {
		err = multierr.Append(err, node.pool.Close())
	}
	return err
}

// Lease is a borrowed connection; Close returns it to its pool, or destroys
// it if it went broken while borrowed.
type Lease struct {
	Conn
	home     *pool.Pool[Conn]
	released bool
}

// Close releases the connection on first call; later calls are no-ops
func (l *Lease) Close() error {
	if l.released {
		return nil
	}
	l.released = true
	if l.Conn.Broken() {
		return l.home.Discard(l.Conn)
	}
	l.home.Put(l.Conn)
	return nil
}
