// Package storetest holds the behavioral contract every domain.Store backend must satisfy.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/hashpulse/internal/domain"
)

// Run exercises a backend. newStore must return an empty store; namespaces are not shared between subtests.
func Run(t *testing.T, newStore func(t *testing.T) domain.Store) {
	t.Run("KVRoundTrip", func(t *testing.T) { testKVRoundTrip(t, newStore(t)) })
	t.Run("NamespacesAreIsolated", func(t *testing.T) { testNamespaceIsolation(t, newStore(t)) })
	t.Run("DeleteReportsExistence", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("LoadCredentialsMissing", func(t *testing.T) { testLoadMissing(t, newStore(t)) })
	t.Run("SwapIntoEmptyNamespace", func(t *testing.T) { testSwapEmpty(t, newStore(t)) })
	t.Run("SwapComparesRefreshToken", func(t *testing.T) { testSwapCompare(t, newStore(t)) })
	t.Run("UnparsableExpiryLoadsAsUnset", func(t *testing.T) { testUnparsableExpiry(t, newStore(t)) })
	t.Run("ConcurrentSwapsHaveOneWinner", func(t *testing.T) { testConcurrentSwap(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func testKVRoundTrip(t *testing.T, s domain.Store) {
	ctx := context.Background()

	_, found, err := s.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Put(ctx, "ns", "k", "v1"))
	require.NoError(t, s.Put(ctx, "ns", "k", "v2"))
	require.NoError(t, s.Put(ctx, "ns", "empty", ""))

	v, found, err := s.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", v)

	v, found, err = s.Get(ctx, "ns", "empty")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, v)
}

func testNamespaceIsolation(t *testing.T, s domain.Store) {
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", "k", "from-a"))
	require.NoError(t, s.Put(ctx, "b", "k", "from-b"))

	v, _, err := s.Get(ctx, "a", "k")
	require.NoError(t, err)
	assert.Equal(t, "from-a", v)

	v, _, err = s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "from-b", v)
}

func testDelete(t *testing.T, s domain.Store) {
	ctx := context.Background()

	deleted, err := s.Delete(ctx, "ns", "missing")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, s.Put(ctx, "ns", "k", "v"))
	deleted, err = s.Delete(ctx, "ns", "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err := s.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func testLoadMissing(t *testing.T, s domain.Store) {
	creds, found, err := s.LoadCredentials(context.Background(), "twitter")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, domain.CredentialSet{}, creds)
}

func testSwapEmpty(t *testing.T, s domain.Store) {
	ctx := context.Background()
	next := domain.CredentialSet{AccessToken: "a1", RefreshToken: "r1", ExpiresAtEpochMillis: 1733000000000, ClientID: "cid"}

	swapped, err := s.SwapCredentials(ctx, "twitter", "anything", next)
	require.NoError(t, err)
	assert.True(t, swapped)

	creds, found, err := s.LoadCredentials(ctx, "twitter")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.CredentialSet{AccessToken: "a1", RefreshToken: "r1", ExpiresAtEpochMillis: 1733000000000}, creds)

	raw, _, err := s.Get(ctx, "twitter", domain.KeyExpiresAt)
	require.NoError(t, err)
	assert.Equal(t, "1733000000000", raw)
}

func testSwapCompare(t *testing.T, s domain.Store) {
	ctx := context.Background()
	first := domain.CredentialSet{AccessToken: "a1", RefreshToken: "r1", ExpiresAtEpochMillis: 1}
	second := domain.CredentialSet{AccessToken: "a2", RefreshToken: "r2", ExpiresAtEpochMillis: 2}
	stale := domain.CredentialSet{AccessToken: "a3", RefreshToken: "r3", ExpiresAtEpochMillis: 3}

	swapped, err := s.SwapCredentials(ctx, "twitter", "", first)
	require.NoError(t, err)
	require.True(t, swapped)

	swapped, err = s.SwapCredentials(ctx, "twitter", "r1", second)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = s.SwapCredentials(ctx, "twitter", "r1", stale)
	require.NoError(t, err)
	assert.False(t, swapped)

	creds, _, err := s.LoadCredentials(ctx, "twitter")
	require.NoError(t, err)
	assert.Equal(t, "a2", creds.AccessToken)
	assert.Equal(t, "r2", creds.RefreshToken)
	assert.Equal(t, int64(2), creds.ExpiresAtEpochMillis)
}

func testUnparsableExpiry(t *testing.T, s domain.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "twitter", domain.KeyAccessToken, "a"))
	require.NoError(t, s.Put(ctx, "twitter", domain.KeyRefreshToken, "r"))
	require.NoError(t, s.Put(ctx, "twitter", domain.KeyExpiresAt, "not-a-number"))

	creds, found, err := s.LoadCredentials(ctx, "twitter")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, creds.ExpiresAtEpochMillis)
}

func testConcurrentSwap(t *testing.T, s domain.Store) {
	ctx := context.Background()
	_, err := s.SwapCredentials(ctx, "race", "", domain.CredentialSet{AccessToken: "a0", RefreshToken: "r0", ExpiresAtEpochMillis: 1})
	require.NoError(t, err)

	const writers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := domain.CredentialSet{AccessToken: "a", RefreshToken: "r-" + string(rune('a'+i)), ExpiresAtEpochMillis: 2}
			swapped, err := s.SwapCredentials(ctx, "race", "r0", next)
			assert.NoError(t, err)
			if swapped {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
