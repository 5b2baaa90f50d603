package redis

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/pscheid92/hashpulse/internal/adapter/storetest"
	"github.com/pscheid92/hashpulse/internal/domain"
)

var (
	containerOnce sync.Once
	container     *tcredis.RedisContainer
	containerURL  string
	containerErr  error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if container != nil {
		_ = container.Terminate(context.Background())
	}
	os.Exit(code)
}

// redisURL starts one Redis container for the package and returns its URL.
func redisURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		c, err := tcredis.Run(ctx, "redis:7-alpine")
		if err != nil {
			containerErr = err
			return
		}
		container = c
		endpoint, err := c.Endpoint(ctx, "")
		if err != nil {
			containerErr = err
			return
		}
		containerURL = "redis://" + endpoint
	})
	require.NoError(t, containerErr, "failed to start redis container")
	return containerURL
}

func TestStoreContract_Redis(t *testing.T) {
	url := redisURL(t)

	storetest.Run(t, func(t *testing.T) domain.Store {
		ctx := context.Background()
		rdb, err := NewClient(ctx, url, Options{})
		require.NoError(t, err)
		require.NoError(t, rdb.FlushAll(ctx).Err())
		t.Cleanup(func() { _ = rdb.Close() })
		return NewStore(rdb)
	})
}
