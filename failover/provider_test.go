package failover

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmux/redmux/redis/connection"
)

func testConfig(dialer Dialer) Config {
	return Config{
		Clusters:           []string{"primary:6379", "standby:6379"},
		BreakerThreshold:   1,
		BreakerOpenTimeout: time.Minute,
		MaxSweeps:          1,
		Dialer:             dialer,
	}
}

func TestAcquirePrefersFirstCluster(t *testing.T) {
	var dialed []string
	provider, err := NewProvider(testConfig(func(addr string) (Conn, error) {
		dialed = append(dialed, addr)
		return connection.NewFake(2), nil
	}))
	require.NoError(t, err)
	defer provider.Close()

	conn, err := provider.Acquire()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.Equal(t, []string{"primary:6379"}, dialed)
}

func TestAcquireFailsOverToNextCluster(t *testing.T) {
	var dialed []string
	provider, err := NewProvider(testConfig(func(addr string) (Conn, error) {
		dialed = append(dialed, addr)
		if addr == "primary:6379" {
			return nil, errors.New("connection refused")
		}
		return connection.NewFake(2), nil
	}))
	require.NoError(t, err)
	defer provider.Close()

	conn, err := provider.Acquire()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.Equal(t, []string{"primary:6379", "standby:6379"}, dialed)

	// primary's breaker is now open, the next acquire goes straight to standby
	dialed = nil
	conn, err = provider.Acquire()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.Empty(t, dialed, "standby connection should come from the pool")
}

func TestAcquireFailsWhenAllClustersDown(t *testing.T) {
	provider, err := NewProvider(testConfig(func(addr string) (Conn, error) {
		return nil, errors.New("connection refused")
	}))
	require.NoError(t, err)
	defer provider.Close()

	_, err = provider.Acquire()
	require.Error(t, err)
}

func TestLeaseReturnsConnectionToPool(t *testing.T) {
	dials := 0
	provider, err := NewProvider(testConfig(func(addr string) (Conn, error) {
		dials++
		return connection.NewFake(2), nil
	}))
	require.NoError(t, err)
	defer provider.Close()

	conn, err := provider.Acquire()
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn, err = provider.Acquire()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, dials, "released connection must be reused")
}

func TestLeaseDestroysBrokenConnection(t *testing.T) {
	var conns []*connection.Fake
	provider, err := NewProvider(testConfig(func(addr string) (Conn, error) {
		fake := connection.NewFake(2)
		conns = append(conns, fake)
		return fake, nil
	}))
	require.NoError(t, err)
	defer provider.Close()

	conn, err := provider.Acquire()
	require.NoError(t, err)
	conn.MarkBroken()
	require.NoError(t, conn.Close())
	assert.True(t, conns[0].Closed, "broken connection must be destroyed, not pooled")

	conn, err = provider.Acquire()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	assert.Len(t, conns, 2, "a fresh connection replaces the broken one")
}

func TestLeaseCloseIsIdempotent(t *testing.T) {
	provider, err := NewProvider(testConfig(func(addr string) (Conn, error) {
		return connection.NewFake(2), nil
	}))
	require.NoError(t, err)
	defer provider.Close()

	conn, err := provider.Acquire()
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
}

func TestNewProviderRequiresClusters(t *testing.T) {
	_, err := NewProvider(Config{})
	require.Error(t, err)
}
